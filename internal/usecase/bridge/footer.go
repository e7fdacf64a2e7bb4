package bridge

import (
	"fmt"
	"strings"
)

// idempotencyFooter is appended to every generated pull-request body. It is
// the audit trail tying an output to its triggering input: reproducible
// content hash, unique run id, tool tag. Advisory, not machine-parsed here.
func (s *Service) idempotencyFooter(inputHash string, sourceID string) string {
	var b strings.Builder
	b.WriteString("---\n\n**Idempotency**:\n")
	fmt.Fprintf(&b, "- Input: sha256:%s\n", inputHash)
	if sourceID != "" {
		fmt.Fprintf(&b, "- Source: %s\n", sourceID)
	}
	fmt.Fprintf(&b, "- Run: minerva://runs/%s\n", s.newRunID())
	fmt.Fprintf(&b, "- Tool: %s", ToolTag)
	return b.String()
}
