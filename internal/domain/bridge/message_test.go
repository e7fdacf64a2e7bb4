package bridge

import (
	"errors"
	"strings"
	"testing"
)

func TestParseMessage(t *testing.T) {
	raw := []byte(`{"from":"chatgpt","to":"claude","type":"chat","thread":"general","text":"Hallo Claude!","ts":"2025-01-15T10:00:00Z"}`)

	msg, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if msg.From != "chatgpt" || msg.To != "claude" {
		t.Errorf("identities = %s -> %s, want chatgpt -> claude", msg.From, msg.To)
	}
	if msg.Text != "Hallo Claude!" {
		t.Errorf("text = %q", msg.Text)
	}
	if msg.Timestamp != "2025-01-15T10:00:00Z" {
		t.Errorf("timestamp = %q", msg.Timestamp)
	}
}

func TestParseMessageRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `{nope`, ErrMessageMalformed},
		{"missing from", `{"to":"claude","text":"hi"}`, ErrMessageFromRequired},
		{"missing to", `{"from":"chatgpt","text":"hi"}`, ErrMessageToRequired},
		{"missing text", `{"from":"chatgpt","to":"claude"}`, ErrMessageTextRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMessage([]byte(tt.raw))
			if !errors.Is(err, tt.want) {
				t.Fatalf("ParseMessage() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCanonicalJSONIsStable(t *testing.T) {
	msg := Message{From: "a", To: "b", Type: "chat", Thread: "general", Text: "x", Timestamp: "2025-01-15T10:00:00Z"}

	first, err := msg.CanonicalJSON()
	if err != nil {
		t.Fatalf("CanonicalJSON() error = %v", err)
	}
	second, err := msg.CanonicalJSON()
	if err != nil {
		t.Fatalf("CanonicalJSON() error = %v", err)
	}
	if string(first) != string(second) {
		t.Fatal("canonical serialization is not deterministic")
	}
	if !strings.Contains(string(first), `"ts": "2025-01-15T10:00:00Z"`) {
		t.Errorf("serialization uses wrong wire name:\n%s", first)
	}
}

func TestFingerprintDistinguishesContent(t *testing.T) {
	a := Message{From: "a", To: "b", Text: "one"}
	b := Message{From: "a", To: "b", Text: "two"}

	hashA, err := a.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	hashA2, _ := a.Fingerprint()
	hashB, _ := b.Fingerprint()

	if hashA != hashA2 {
		t.Error("fingerprint is not deterministic")
	}
	if hashA == hashB {
		t.Error("different content produced the same fingerprint")
	}
	if len(hashA) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(hashA))
	}
}

func TestThreadNameDefault(t *testing.T) {
	if got := (Message{}).ThreadName(); got != DefaultThread {
		t.Errorf("ThreadName() = %q, want %q", got, DefaultThread)
	}
	if got := (Message{Thread: "api-design"}).ThreadName(); got != "api-design" {
		t.Errorf("ThreadName() = %q, want api-design", got)
	}
}

func TestSortByTimestamp(t *testing.T) {
	msgs := []Message{
		{Text: "third", Timestamp: "2025-01-15T12:00:00Z"},
		{Text: "first", Timestamp: "2025-01-15T10:00:00Z"},
		{Text: "second", Timestamp: "2025-01-15T11:00:00Z"},
	}

	SortByTimestamp(msgs)

	got := []string{msgs[0].Text, msgs[1].Text, msgs[2].Text}
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestGroupByThread(t *testing.T) {
	msgs := []Message{
		{Text: "a", Thread: "alpha"},
		{Text: "b"},
		{Text: "c", Thread: "alpha"},
	}

	threads := GroupByThread(msgs)
	if len(threads["alpha"]) != 2 {
		t.Errorf("alpha thread has %d messages, want 2", len(threads["alpha"]))
	}
	if len(threads[DefaultThread]) != 1 {
		t.Errorf("default thread has %d messages, want 1", len(threads[DefaultThread]))
	}
}

func TestDedupKeyNamespaces(t *testing.T) {
	msgKey := DedupKey("abc123")
	if !strings.HasPrefix(msgKey, "msg:") {
		t.Errorf("DedupKey() = %q, want msg: prefix", msgKey)
	}
	if DedupKey("abc123") != msgKey {
		t.Error("DedupKey() is not deterministic")
	}
	if DedupKey("abc124") == msgKey {
		t.Error("distinct blob identifiers share a dedup key")
	}

	if got := PullDedupKey(42); got != "pr:42" {
		t.Errorf("PullDedupKey(42) = %q, want pr:42", got)
	}
}
