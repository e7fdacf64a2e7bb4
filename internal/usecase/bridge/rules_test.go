package bridge

import (
	"os"
	"path/filepath"
	"testing"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write rules file: %v", err)
	}
	return path
}

func TestLoadRulesPreservesOrder(t *testing.T) {
	path := writeRules(t, `
[[rules]]
keyword = "deploy"
reply = "Deployment gestartet."

[[rules]]
keyword = ""
reply = "Unbekannt: %s"
`)

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("len(rules) = %d, want 2", len(rules))
	}
	if rules[0].Keyword != "deploy" || rules[1].Keyword != "" {
		t.Errorf("rule order = %q, %q", rules[0].Keyword, rules[1].Keyword)
	}
	if rules[0].Reply != "Deployment gestartet." {
		t.Errorf("reply = %q", rules[0].Reply)
	}
}

func TestLoadRulesRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no rules", "# empty\n"},
		{"missing reply", "[[rules]]\nkeyword = \"x\"\n"},
		{"not toml", "rules = [[[\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadRules(writeRules(t, tt.content)); err == nil {
				t.Fatal("LoadRules() accepted invalid input")
			}
		})
	}
}

func TestLoadRulesMissingFile(t *testing.T) {
	if _, err := LoadRules(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("LoadRules() accepted a missing file")
	}
	if _, err := LoadRules(""); err == nil {
		t.Fatal("LoadRules() accepted an empty path")
	}
}
