package webhook

import (
	"encoding/json"

	"minerva/internal/errs"
	"minerva/internal/ports"
)

// Typed contracts for the payload fields this gateway consumes. Shape
// mismatches fail at the boundary with a 400.

type pingEvent struct {
	Zen string `json:"zen"`
}

type labelPayload struct {
	Name string `json:"name"`
}

type refPayload struct {
	Ref string `json:"ref"`
}

type pullPayload struct {
	Number int            `json:"number"`
	Title  string         `json:"title"`
	Labels []labelPayload `json:"labels"`
	Head   refPayload     `json:"head"`
}

// PullRequestEvent is the single event kind this gateway processes.
type PullRequestEvent struct {
	Action      string      `json:"action"`
	PullRequest pullPayload `json:"pull_request"`
}

func parsePullRequestEvent(raw []byte) (PullRequestEvent, error) {
	var ev PullRequestEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return PullRequestEvent{}, errs.Wrap(err, "parse pull_request payload")
	}
	if ev.PullRequest.Number == 0 {
		return PullRequestEvent{}, errs.Wrap(errMalformedPayload, "pull_request.number is missing")
	}
	return ev, nil
}

func (e PullRequestEvent) hasLabel(name string) bool {
	for _, label := range e.PullRequest.Labels {
		if label.Name == name {
			return true
		}
	}
	return false
}

// Subject converts the payload into the ports shape the pipeline consumes.
func (e PullRequestEvent) Subject() ports.PullRequest {
	labels := make([]string, 0, len(e.PullRequest.Labels))
	for _, label := range e.PullRequest.Labels {
		labels = append(labels, label.Name)
	}
	return ports.PullRequest{
		Number:  e.PullRequest.Number,
		Title:   e.PullRequest.Title,
		HeadRef: e.PullRequest.Head.Ref,
		Labels:  labels,
	}
}
