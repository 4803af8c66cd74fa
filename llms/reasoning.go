package llms

import (
	"regexp"
	"strings"
)

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripReasoning removes <think>...</think> blocks that reasoning models such
// as qwen3 emit before their answer.
func StripReasoning(s string) string {
	if !strings.Contains(s, "<think>") {
		return s
	}
	return strings.TrimSpace(thinkBlock.ReplaceAllString(s, ""))
}
