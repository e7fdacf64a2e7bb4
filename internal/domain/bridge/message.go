package bridge

import (
	"encoding/json"
	"sort"
	"time"

	"minerva/internal/errs"
)

// Message is one chat item exchanged through the repository mailbox.
// Timestamp uses the wire name "ts" and carries RFC 3339 text.
type Message struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Type      string `json:"type"`
	Thread    string `json:"thread"`
	Text      string `json:"text"`
	Timestamp string `json:"ts"`
}

// ParseMessage decodes and validates an inbound mailbox file. Shape problems
// fail here at the boundary instead of surfacing deep in the pipeline.
func ParseMessage(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, errs.Wrap(ErrMessageMalformed, err.Error())
	}

	if msg.From == "" {
		return Message{}, ErrMessageFromRequired
	}
	if msg.To == "" {
		return Message{}, ErrMessageToRequired
	}
	if msg.Text == "" {
		return Message{}, ErrMessageTextRequired
	}
	return msg, nil
}

// CanonicalJSON is the stable serialization used for fingerprints and for
// files written to the outbox (two-space indent, fixed field order).
func (m Message) CanonicalJSON() ([]byte, error) {
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, errs.Wrap(err, "marshal message")
	}
	return out, nil
}

// Fingerprint returns the content hash of the canonical serialization, so the
// idempotency footer is reproducible from the payload alone.
func (m Message) Fingerprint() (string, error) {
	canonical, err := m.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return Fingerprint(canonical), nil
}

// ThreadName returns the message thread, defaulting when absent.
func (m Message) ThreadName() string {
	if m.Thread == "" {
		return DefaultThread
	}
	return m.Thread
}

func (m Message) parsedTime() time.Time {
	t, err := time.Parse(time.RFC3339, m.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SortByTimestamp orders messages by their embedded timestamp, oldest first.
// Only rendering relies on this; processing order is listing order.
func SortByTimestamp(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].parsedTime().Before(msgs[j].parsedTime())
	})
}

// GroupByThread buckets messages under their thread name.
func GroupByThread(msgs []Message) map[string][]Message {
	threads := make(map[string][]Message)
	for _, msg := range msgs {
		name := msg.ThreadName()
		threads[name] = append(threads[name], msg)
	}
	return threads
}
