package bridge

import (
	"fmt"
	"strings"
	"time"
)

// DefaultThread is used when an inbound message carries no thread.
const DefaultThread = "general"

// Rule maps a case-insensitive keyword to a reply template. Rules are checked
// in order; the first keyword contained in the inbound text wins.
type Rule struct {
	Keyword string `toml:"keyword"`
	Reply   string `toml:"reply"`
}

// echoReply answers anything no rule matches, so a custom rule set without
// a catch-all never produces an empty reply.
const echoReply = `Ich habe deine Nachricht erhalten: "%s". Chat-Bridge v0.1 läuft erfolgreich!`

// DefaultRules reproduces the built-in classification: greeting, status,
// test, then echo (the empty keyword matches everything).
func DefaultRules() []Rule {
	return []Rule{
		{Keyword: "hallo", Reply: "Hallo ChatGPT! 👋 Ich habe deine Nachricht erhalten. Das Chat-Bridge System funktioniert!"},
		{Keyword: "status", Reply: "System Status: ✅ Operator v1.0.0 läuft, Chat-Bridge aktiv, alle Systeme operational."},
		{Keyword: "test", Reply: "Test erfolgreich! Die bidirektionale Kommunikation zwischen ChatGPT und Claude funktioniert einwandfrei."},
		{Keyword: "", Reply: echoReply},
	}
}

// Responder generates outbound replies. It is pure: the caller supplies the
// clock and performs all I/O.
type Responder struct {
	Self  string
	Peer  string
	Rules []Rule
}

func NewResponder(self string, peer string, rules []Rule) *Responder {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Responder{
		Self:  self,
		Peer:  peer,
		Rules: rules,
	}
}

// Respond classifies the inbound text and fills the matching template.
// The reply always carries the fixed self/peer identities, copies the thread
// (defaulted when absent), and is stamped with now.
func (r *Responder) Respond(msg Message, now time.Time) Message {
	lowered := strings.ToLower(msg.Text)

	text := ""
	for _, rule := range r.Rules {
		if rule.Keyword == "" {
			text = rule.Reply
			if strings.Contains(rule.Reply, "%s") {
				text = fmt.Sprintf(rule.Reply, msg.Text)
			}
			break
		}
		if strings.Contains(lowered, strings.ToLower(rule.Keyword)) {
			text = rule.Reply
			break
		}
	}
	if text == "" {
		text = fmt.Sprintf(echoReply, msg.Text)
	}

	return Message{
		From:      r.Self,
		To:        r.Peer,
		Type:      "chat",
		Thread:    msg.ThreadName(),
		Text:      text,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}

// DemoWorthy reports whether the inbound text asks for a rendered page.
func DemoWorthy(text string) bool {
	lowered := strings.ToLower(text)
	return strings.Contains(lowered, "demo") || strings.Contains(lowered, "page")
}

// WantsPublish reports whether the inbound text asks for auto-merge publication.
func WantsPublish(text string) bool {
	return strings.Contains(strings.ToLower(text), "publish")
}
