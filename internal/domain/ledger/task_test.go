package ledger

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var ledgerNow = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func testDocument() Document {
	return Document{
		Version:       "1.0.0",
		LastUpdated:   "2025-01-14T09:00:00Z",
		LastUpdatedBy: "chatgpt",
		Tasks: []Task{
			{ID: "T-1", Title: "Implement webhook handler", Owner: "claude", Status: StatusTodo},
			{ID: "T-2", Title: "Write docs", Owner: "chatgpt", Status: StatusTodo},
			{ID: "T-3", Title: "Ship release", Owner: "claude", Status: StatusCompleted, CompletedAt: "2025-01-10T00:00:00Z"},
		},
	}
}

func TestParseStatus(t *testing.T) {
	for _, valid := range []string{"todo", "in_progress", "completed"} {
		if _, err := ParseStatus(valid); err != nil {
			t.Errorf("ParseStatus(%q) error = %v", valid, err)
		}
	}
	if _, err := ParseStatus("done"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("ParseStatus(done) error = %v, want ErrInvalidStatus", err)
	}
}

func TestApplyStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{"todo to in_progress", StatusTodo, StatusInProgress, false},
		{"todo to completed", StatusTodo, StatusCompleted, false},
		{"in_progress to completed", StatusInProgress, StatusCompleted, false},
		{"same status is a no-op", StatusInProgress, StatusInProgress, false},
		{"completed is terminal", StatusCompleted, StatusTodo, true},
		{"no backwards move", StatusInProgress, StatusTodo, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Document{Tasks: []Task{{ID: "T-1", Status: tt.from}}}
			err := doc.ApplyStatus("T-1", tt.to, 0, "operator-agent", ledgerNow)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("ApplyStatus() error = %v, want ErrInvalidTransition", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyStatus() error = %v", err)
			}
			if doc.Tasks[0].Status != tt.to {
				t.Errorf("status = %s, want %s", doc.Tasks[0].Status, tt.to)
			}
		})
	}
}

func TestApplyStatusStampsMetadata(t *testing.T) {
	doc := testDocument()
	if err := doc.ApplyStatus("T-1", StatusInProgress, 42, "operator-agent", ledgerNow); err != nil {
		t.Fatalf("ApplyStatus() error = %v", err)
	}

	task := doc.Tasks[0]
	if task.PRNumber != 42 {
		t.Errorf("pr_number = %d, want 42", task.PRNumber)
	}
	if task.CompletedAt != "" {
		t.Errorf("completed_at = %q, want empty for in_progress", task.CompletedAt)
	}
	if doc.LastUpdated != "2025-01-15T10:30:00Z" {
		t.Errorf("last_updated = %q", doc.LastUpdated)
	}
	if doc.LastUpdatedBy != "operator-agent" {
		t.Errorf("last_updated_by = %q", doc.LastUpdatedBy)
	}
}

func TestApplyStatusStampsCompletedAt(t *testing.T) {
	doc := testDocument()
	if err := doc.ApplyStatus("T-1", StatusCompleted, 0, "operator-agent", ledgerNow); err != nil {
		t.Fatalf("ApplyStatus() error = %v", err)
	}
	if doc.Tasks[0].CompletedAt != "2025-01-15T10:30:00Z" {
		t.Errorf("completed_at = %q", doc.Tasks[0].CompletedAt)
	}

	// An existing completion timestamp is preserved.
	preserved := testDocument()
	preserved.Tasks[2].Status = StatusCompleted
	if err := preserved.ApplyStatus("T-3", StatusCompleted, 0, "operator-agent", ledgerNow); err != nil {
		t.Fatalf("ApplyStatus() error = %v", err)
	}
	if preserved.Tasks[2].CompletedAt != "2025-01-10T00:00:00Z" {
		t.Errorf("completed_at = %q, want original stamp kept", preserved.Tasks[2].CompletedAt)
	}
}

func TestApplyStatusUnknownTask(t *testing.T) {
	doc := testDocument()
	err := doc.ApplyStatus("T-99", StatusInProgress, 0, "operator-agent", ledgerNow)
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("ApplyStatus() error = %v, want ErrTaskNotFound", err)
	}
}

func TestNextTodoFor(t *testing.T) {
	doc := testDocument()

	task, ok := doc.NextTodoFor("claude")
	if !ok {
		t.Fatal("NextTodoFor(claude) found nothing")
	}
	if task.ID != "T-1" {
		t.Errorf("task = %s, want T-1 (document order)", task.ID)
	}

	if _, ok := doc.NextTodoFor("nobody"); ok {
		t.Error("NextTodoFor(nobody) found a task")
	}
}

func TestDecodeRejectsMalformedDocument(t *testing.T) {
	if _, err := Decode([]byte("{nope")); !errors.Is(err, ErrDocumentMalformed) {
		t.Fatalf("Decode() error = %v, want ErrDocumentMalformed", err)
	}
}

func TestEncodeIsCanonical(t *testing.T) {
	doc := testDocument()
	first, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	second, _ := doc.Encode()
	if string(first) != string(second) {
		t.Fatal("encoding is not deterministic")
	}
	if !strings.Contains(string(first), `"version": "1.0.0"`) {
		t.Errorf("unexpected encoding:\n%s", first)
	}
}
