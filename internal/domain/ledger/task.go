package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"minerva/internal/errs"
)

// Status is the finite task lifecycle. There is no transition out of
// completed.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

var (
	ErrTaskNotFound      = errors.New("task not found in ledger")
	ErrInvalidStatus     = errors.New("invalid task status")
	ErrInvalidTransition = errors.New("invalid task status transition")
	ErrDocumentMalformed = errors.New("ledger document is not valid json")
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusTodo, StatusInProgress, StatusCompleted:
		return Status(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

func validTransition(from Status, to Status) bool {
	switch from {
	case StatusTodo:
		return to == StatusInProgress || to == StatusCompleted
	case StatusInProgress:
		return to == StatusCompleted
	default:
		return false
	}
}

// Task is one entry of the shared ledger document. Tasks never exist outside
// the document.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Owner       string `json:"owner"`
	Status      Status `json:"status"`
	Description string `json:"description,omitempty"`
	PRNumber    int    `json:"pr_number,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// Document is the singleton task ledger. The revision marker travels outside
// the serialized body (it is the storage layer's content identifier).
type Document struct {
	Version       string `json:"version"`
	LastUpdated   string `json:"last_updated"`
	LastUpdatedBy string `json:"last_updated_by"`
	Tasks         []Task `json:"tasks"`
}

func Decode(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, errs.Wrap(ErrDocumentMalformed, err.Error())
	}
	return doc, nil
}

// Encode is the canonical serialization used both for writing and for the
// byte-for-byte no-op comparison before a write.
func (d Document) Encode() ([]byte, error) {
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, errs.Wrap(err, "marshal ledger document")
	}
	return out, nil
}

// NextTodoFor returns the first todo task owned by owner, in document order.
func (d Document) NextTodoFor(owner string) (Task, bool) {
	for _, task := range d.Tasks {
		if task.Owner == owner && task.Status == StatusTodo {
			return task, true
		}
	}
	return Task{}, false
}

// ApplyStatus mutates the identified task in place, stamping pr_number and
// completed_at as applicable, and bumps the document metadata.
func (d *Document) ApplyStatus(taskID string, status Status, prNumber int, updatedBy string, now time.Time) error {
	idx := -1
	for i := range d.Tasks {
		if d.Tasks[i].ID == taskID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, taskID)
	}

	task := &d.Tasks[idx]
	if task.Status != status && !validTransition(task.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, task.Status, status)
	}

	task.Status = status
	if prNumber > 0 {
		task.PRNumber = prNumber
	}
	if status == StatusCompleted && task.CompletedAt == "" {
		task.CompletedAt = now.UTC().Format(time.RFC3339)
	}

	d.LastUpdated = now.UTC().Format(time.RFC3339)
	d.LastUpdatedBy = updatedBy
	return nil
}
