package bridge

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

var pageNow = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func TestRenderConversationPage(t *testing.T) {
	in := Message{From: "chatgpt", To: "claude", Text: "Zeig mir eine Demo"}
	out := Message{From: "claude", To: "chatgpt", Text: "Hallo!"}

	page := RenderConversationPage(in, out, pageNow)

	for _, want := range []string{"<!DOCTYPE html>", "Zeig mir eine Demo", "Hallo!", "chatgpt → claude", "Generated: 2025-01-15T10:30:00Z"} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestRenderConversationPageEscapesHTML(t *testing.T) {
	in := Message{From: "chatgpt", To: "claude", Text: `<script>alert("x")</script>`}
	page := RenderConversationPage(in, Message{From: "claude", To: "chatgpt", Text: "ok"}, pageNow)

	if strings.Contains(page, "<script>alert") {
		t.Fatal("message text was not escaped")
	}
	if !strings.Contains(page, "&lt;script&gt;") {
		t.Error("escaped text not found in page")
	}
}

func TestRenderThreadOverviewOrdersChronologically(t *testing.T) {
	msgs := []Message{
		{From: "claude", To: "chatgpt", Text: "second", Timestamp: "2025-01-15T11:00:00Z"},
		{From: "chatgpt", To: "claude", Text: "first", Timestamp: "2025-01-15T10:00:00Z"},
	}

	page := RenderThreadOverview("api-design", msgs)

	if !strings.Contains(page, "Thread: api-design") {
		t.Error("page missing thread title")
	}
	if !strings.Contains(page, "2 Nachrichten") {
		t.Error("page missing message count")
	}
	if strings.Index(page, "first") > strings.Index(page, "second") {
		t.Error("messages are not in chronological order")
	}
}

func TestRenderThreadIndex(t *testing.T) {
	threads := map[string][]Message{
		"general": {{From: "chatgpt", To: "claude", Text: "hallo", Timestamp: "2025-01-15T10:00:00Z"}},
		"api":     {{From: "claude", To: "chatgpt", Text: "ok", Timestamp: "2025-01-15T11:00:00Z"}},
	}

	page := RenderThreadIndex(threads)

	if !strings.Contains(page, `href="general.html"`) || !strings.Contains(page, `href="api.html"`) {
		t.Error("index missing thread links")
	}
	// Deterministic: names are sorted.
	if strings.Index(page, `href="api.html"`) > strings.Index(page, `href="general.html"`) {
		t.Error("threads are not sorted by name")
	}
}

func TestRenderThreadData(t *testing.T) {
	msgs := []Message{
		{From: "claude", To: "chatgpt", Type: "chat", Text: "second", Timestamp: "2025-01-15T11:00:00Z"},
		{From: "chatgpt", To: "claude", Type: "chat", Text: "first", Timestamp: "2025-01-15T10:00:00Z"},
	}

	data, err := RenderThreadData(msgs)
	if err != nil {
		t.Fatalf("RenderThreadData() error = %v", err)
	}

	var decoded struct {
		Messages []struct {
			From string `json:"from"`
			Text string `json:"text"`
			TS   string `json:"ts"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid json: %v", err)
	}
	if len(decoded.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(decoded.Messages))
	}
	if decoded.Messages[0].Text != "first" {
		t.Errorf("first message = %q, want chronological order", decoded.Messages[0].Text)
	}

	// Same input, same bytes: the publish skip relies on it.
	again, _ := RenderThreadData(msgs)
	if string(data) != string(again) {
		t.Error("serialization is not deterministic")
	}
}

func TestRenderThreadIndexData(t *testing.T) {
	data, err := RenderThreadIndexData([]ThreadDataEntry{{Name: "general", Count: 3}})
	if err != nil {
		t.Fatalf("RenderThreadIndexData() error = %v", err)
	}
	if !strings.Contains(string(data), `"general"`) || !strings.Contains(string(data), `"count": 3`) {
		t.Errorf("unexpected index data:\n%s", data)
	}
}
