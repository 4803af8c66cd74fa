package conversation

import (
	"maps"
	"time"
	"unicode/utf8"
)

// DefaultTruncateLimit is the number of characters of tool output kept for
// error results and shown in transcripts.
const DefaultTruncateLimit = 600

// EntryKind classifies an entry of the visible transcript.
type EntryKind string

const (
	EntryUser       EntryKind = "user"
	EntryAssistant  EntryKind = "assistant"
	EntryToolCall   EntryKind = "tool_call"
	EntryToolResult EntryKind = "tool_result"
	EntryError      EntryKind = "error"
)

// Entry is one line of what a human sees of a conversation. The transcript is
// kept next to the model-facing history: it records tool activity in display
// form and explains failed turns without adding messages the model would see.
type Entry struct {
	Kind      EntryKind      `json:"kind"`
	Content   string         `json:"content"`
	ToolName  string         `json:"tool_name,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

const ellipsis = "..."

// Truncate shortens s to at most limit characters. When anything is cut the
// result ends in "...", which counts towards the limit; limits too small to
// hold it cut without one. A non-positive limit disables truncation.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	if limit <= len(ellipsis) {
		return string(runes[:limit])
	}
	return string(runes[:limit-len(ellipsis)]) + ellipsis
}

// Clone returns a copy whose argument map is not shared with e.
func (e Entry) Clone() Entry {
	e.Arguments = maps.Clone(e.Arguments)
	return e
}
