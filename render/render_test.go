package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smallnest/toolchat/conversation"
)

func TestToolLabel(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"wikipedia", "🌐 Wikipedia"},
		{"arxiv", "📜 ArXiv"},
		{"tavily_search", "🔍 Web Search (Tavily)"},
		{"brave_search", "🔍 Web Search (Brave)"},
		{"Wikipedia", "🌐 Wikipedia"},
		{"add", "🔧 Add"},
		{"stock_price", "🔧 Stock_Price"},
		{"get2nd", "🔧 Get2Nd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToolLabel(tt.name))
		})
	}

	assert.Equal(t, "🌐 Wikipedia", ResultLabel("wikipedia"))
	assert.Equal(t, "🔧 External Tool", ResultLabel("add"))
}

func TestQueryPreview(t *testing.T) {
	assert.Equal(t, "...", QueryPreview(nil))
	assert.Equal(t, "golang", QueryPreview(map[string]any{"query": "golang", "a": 1}))
	assert.Equal(t, "2", QueryPreview(map[string]any{"b": 3.0, "a": 2.0}))
	assert.Equal(t, "🔧 Add → Query: 2", CallHeader("add", map[string]any{"a": 2.0, "b": 2.0}))
	assert.Equal(t, "📜 ArXiv → Retrieved Data", ResultHeader("arxiv"))
}

func TestMarkdown(t *testing.T) {
	out := string(Markdown("# Title\n\nSome **bold** text and a [link](https://example.com)."))
	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.Contains(t, out, `href="https://example.com"`)
	assert.Contains(t, out, `rel="nofollow`)
}

func TestMarkdownSanitizes(t *testing.T) {
	out := string(Markdown("hello <script>alert(1)</script> <a href=\"javascript:alert(1)\">x</a>"))
	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "javascript:")
	assert.Contains(t, out, "hello")
}

func TestTerminal(t *testing.T) {
	term := NewTerminal(&bytes.Buffer{})
	term.ResultLimit = 10

	out := term.Transcript([]conversation.Entry{
		{Kind: conversation.EntryUser, Content: "What is 2+2?"},
		{Kind: conversation.EntryToolCall, ToolName: "add", Arguments: map[string]any{"a": 2.0, "b": 2.0}},
		{Kind: conversation.EntryToolResult, ToolName: "add", Content: "4 and some very long trailing output"},
		{Kind: conversation.EntryAssistant, Content: "2+2 is 4."},
		{Kind: conversation.EntryError, Content: "Error: llm unavailable"},
	})

	assert.Contains(t, out, "You: What is 2+2?")
	assert.Contains(t, out, "🔧 Add → Query: 2")
	assert.Contains(t, out, "🔧 External Tool → Retrieved Data")
	assert.Contains(t, out, "4 and s...")
	assert.NotContains(t, out, "trailing")
	assert.Contains(t, out, "2+2 is 4.")
	assert.Contains(t, out, "Error: llm unavailable")
	assert.Len(t, strings.Split(out, "\n"), 6)
}
