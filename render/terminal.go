package render

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/smallnest/toolchat/conversation"
)

// Terminal renders transcript entries for a terminal.
type Terminal struct {
	Title     lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	ToolCall  lipgloss.Style
	Result    lipgloss.Style
	Error     lipgloss.Style
	Muted     lipgloss.Style

	// ResultLimit bounds the characters of tool output shown.
	ResultLimit int
}

// NewTerminal builds the styles for output written to w. Colors are only
// emitted when w is a color-capable terminal.
func NewTerminal(w io.Writer) *Terminal {
	r := lipgloss.NewRenderer(w)
	return &Terminal{
		Title:       r.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).MarginBottom(1),
		User:        r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Assistant:   r.NewStyle().Foreground(lipgloss.Color("252")).PaddingLeft(2),
		ToolCall:    r.NewStyle().Foreground(lipgloss.Color("214")),
		Result:      r.NewStyle().Foreground(lipgloss.Color("245")).PaddingLeft(2).Border(lipgloss.NormalBorder(), false, false, false, true),
		Error:       r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		Muted:       r.NewStyle().Faint(true),
		ResultLimit: conversation.DefaultTruncateLimit,
	}
}

// Banner renders the application title.
func (t *Terminal) Banner(title string) string {
	return t.Title.Render(title)
}

// Entry renders one transcript entry.
func (t *Terminal) Entry(e conversation.Entry) string {
	switch e.Kind {
	case conversation.EntryUser:
		return t.User.Render("You: " + e.Content)
	case conversation.EntryAssistant:
		return t.Assistant.Render(strings.TrimSpace(e.Content))
	case conversation.EntryToolCall:
		return t.ToolCall.Render(CallHeader(e.ToolName, e.Arguments))
	case conversation.EntryToolResult:
		header := t.Muted.Render(ResultHeader(e.ToolName))
		body := conversation.Truncate(e.Content, t.ResultLimit)
		if e.IsError {
			return header + "\n" + t.Error.Render(body)
		}
		return header + "\n" + t.Result.Render(body)
	case conversation.EntryError:
		return t.Error.Render(e.Content)
	}
	return e.Content
}

// Transcript renders entries separated by newlines.
func (t *Terminal) Transcript(entries []conversation.Entry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, t.Entry(e))
	}
	return strings.Join(parts, "\n")
}
