package bridge

import (
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"minerva/internal/errs"
)

// Page rendering is pure string building over already-read messages. The
// caller decides whether and where the output is published.

const pageStyle = `* { margin: 0; padding: 0; box-sizing: border-box; }
body {
  font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
  background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
  min-height: 100vh;
  padding: 20px;
}
.container {
  background: white;
  border-radius: 16px;
  box-shadow: 0 20px 60px rgba(0,0,0,0.3);
  max-width: 900px;
  margin: 0 auto;
  padding: 30px;
}
.message { margin: 15px 0; padding: 15px; border-radius: 8px; }
.meta { font-size: 12px; color: #666; margin-bottom: 8px; }
.text { color: #333; line-height: 1.5; }
.timestamp { color: #999; font-size: 12px; margin-top: 20px; }
table { width: 100%; border-collapse: collapse; }
th, td { padding: 12px; text-align: left; border-bottom: 1px solid #dee2e6; }`

// RenderConversationPage builds the demo page embedding one inbound message
// and its generated reply.
func RenderConversationPage(in Message, out Message, now time.Time) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"de\">\n<head>\n")
	b.WriteString("  <meta charset=\"UTF-8\">\n")
	b.WriteString("  <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&b, "  <title>Chat Bridge - %s</title>\n", now.UTC().Format("2006-01-02"))
	fmt.Fprintf(&b, "  <style>%s</style>\n</head>\n<body>\n  <div class=\"container\">\n", pageStyle)
	b.WriteString("    <h1>🌉 Chat Bridge</h1>\n")
	writeMessageBlock(&b, in)
	writeMessageBlock(&b, out)
	fmt.Fprintf(&b, "    <div class=\"timestamp\">Generated: %s</div>\n", now.UTC().Format(time.RFC3339))
	b.WriteString("  </div>\n</body>\n</html>")
	return b.String()
}

func writeMessageBlock(b *strings.Builder, msg Message) {
	fmt.Fprintf(b, "    <div class=\"message from-%s\">\n", html.EscapeString(msg.From))
	fmt.Fprintf(b, "      <div class=\"meta\">%s → %s</div>\n", html.EscapeString(msg.From), html.EscapeString(msg.To))
	fmt.Fprintf(b, "      <div class=\"text\">%s</div>\n", html.EscapeString(msg.Text))
	b.WriteString("    </div>\n")
}

// RenderThreadOverview lists one thread's messages chronologically.
func RenderThreadOverview(thread string, msgs []Message) string {
	ordered := make([]Message, len(msgs))
	copy(ordered, msgs)
	SortByTimestamp(ordered)

	var rows strings.Builder
	for _, msg := range ordered {
		fmt.Fprintf(
			&rows,
			"        <tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>\n",
			html.EscapeString(msg.Timestamp),
			html.EscapeString(msg.From),
			html.EscapeString(msg.To),
			html.EscapeString(excerpt(msg.Text, 80)),
		)
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"de\">\n<head>\n")
	b.WriteString("  <meta charset=\"UTF-8\">\n")
	fmt.Fprintf(&b, "  <title>Thread: %s - Chat Bridge</title>\n", html.EscapeString(thread))
	fmt.Fprintf(&b, "  <style>%s</style>\n</head>\n<body>\n  <div class=\"container\">\n", pageStyle)
	fmt.Fprintf(&b, "    <h1>🌉 Thread: %s</h1>\n", html.EscapeString(thread))
	fmt.Fprintf(&b, "    <div class=\"meta\">%d Nachrichten</div>\n", len(ordered))
	b.WriteString("    <table>\n      <thead><tr><th>Zeitstempel</th><th>Von</th><th>An</th><th>Nachricht</th></tr></thead>\n      <tbody>\n")
	b.WriteString(rows.String())
	b.WriteString("      </tbody>\n    </table>\n  </div>\n</body>\n</html>")
	return b.String()
}

// RenderThreadIndex links every thread with its message count and last entry.
func RenderThreadIndex(threads map[string][]Message) string {
	names := make([]string, 0, len(threads))
	for name := range threads {
		names = append(names, name)
	}
	sort.Strings(names)

	var cards strings.Builder
	for _, name := range names {
		msgs := make([]Message, len(threads[name]))
		copy(msgs, threads[name])
		SortByTimestamp(msgs)

		last := Message{}
		if len(msgs) > 0 {
			last = msgs[len(msgs)-1]
		}
		fmt.Fprintf(
			&cards,
			"    <div class=\"message\">\n      <h3><a href=\"%s.html\">%s</a></h3>\n      <div class=\"meta\">%d Nachrichten</div>\n      <div class=\"text\">%s: %s</div>\n    </div>\n",
			html.EscapeString(name),
			html.EscapeString(name),
			len(msgs),
			html.EscapeString(last.From),
			html.EscapeString(excerpt(last.Text, 100)),
		)
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"de\">\n<head>\n")
	b.WriteString("  <meta charset=\"UTF-8\">\n  <title>Chat Threads - Chat Bridge</title>\n")
	fmt.Fprintf(&b, "  <style>%s</style>\n</head>\n<body>\n  <div class=\"container\">\n", pageStyle)
	b.WriteString("    <h1>🌉 Chat Bridge - Thread Übersicht</h1>\n")
	b.WriteString(cards.String())
	b.WriteString("  </div>\n</body>\n</html>")
	return b.String()
}

type threadDataMessage struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
	TS   string `json:"ts"`
}

type threadData struct {
	Messages []threadDataMessage `json:"messages"`
}

// ThreadDataEntry is one row of the thread index JSON consumed by the viewer.
type ThreadDataEntry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type threadIndexData struct {
	Threads []ThreadDataEntry `json:"threads"`
}

// RenderThreadData serializes one thread's messages (chronological, trimmed
// to the fields the viewer needs) as the published data JSON.
func RenderThreadData(msgs []Message) ([]byte, error) {
	ordered := make([]Message, len(msgs))
	copy(ordered, msgs)
	SortByTimestamp(ordered)

	data := threadData{Messages: make([]threadDataMessage, 0, len(ordered))}
	for _, msg := range ordered {
		data.Messages = append(data.Messages, threadDataMessage{
			From: msg.From,
			To:   msg.To,
			Text: msg.Text,
			TS:   msg.Timestamp,
		})
	}

	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, errs.Wrap(err, "marshal thread data")
	}
	return out, nil
}

// RenderThreadIndexData serializes the thread index JSON.
func RenderThreadIndexData(entries []ThreadDataEntry) ([]byte, error) {
	out, err := json.MarshalIndent(threadIndexData{Threads: entries}, "", "  ")
	if err != nil {
		return nil, errs.Wrap(err, "marshal thread index")
	}
	return out, nil
}

func excerpt(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
