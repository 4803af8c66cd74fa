package session

import (
	"context"
	"errors"
	"strings"

	"github.com/smallnest/toolchat/agent"
	"github.com/smallnest/toolchat/conversation"
)

// FallbackAnswer is shown when the model ends a turn with empty content.
const FallbackAnswer = "I couldn't retrieve an answer."

// recorder turns the events of one turn into transcript entries.
type recorder struct {
	entries []conversation.Entry
}

func (r *recorder) OnEvent(_ context.Context, e agent.Event) {
	switch e.Type {
	case agent.EventUserMessage:
		r.add(conversation.Entry{Kind: conversation.EntryUser, Content: e.Content, Timestamp: e.Timestamp})
	case agent.EventToolCall:
		r.add(conversation.Entry{
			Kind:      conversation.EntryToolCall,
			ToolName:  e.ToolName,
			Arguments: e.Arguments,
			Timestamp: e.Timestamp,
		})
	case agent.EventToolResult:
		r.add(conversation.Entry{
			Kind:      conversation.EntryToolResult,
			ToolName:  e.ToolName,
			Content:   e.Content,
			IsError:   e.IsError,
			Timestamp: e.Timestamp,
		})
	case agent.EventFinalAnswer:
		answer := e.Content
		if strings.TrimSpace(answer) == "" {
			answer = FallbackAnswer
		}
		r.add(conversation.Entry{Kind: conversation.EntryAssistant, Content: answer, Timestamp: e.Timestamp})
	case agent.EventTurnFailed:
		r.add(conversation.Entry{
			Kind:      conversation.EntryError,
			Content:   FailureText(e.Err),
			IsError:   true,
			Timestamp: e.Timestamp,
		})
	}
}

func (r *recorder) add(e conversation.Entry) {
	r.entries = append(r.entries, e)
}

// FailureText is the single line shown to people for a turn that did not
// reach an answer.
func FailureText(err error) string {
	if errors.Is(err, agent.ErrCancelled) {
		return "Cancelled."
	}
	var te *agent.TurnError
	if errors.As(err, &te) && te.Err != nil {
		return "Error: " + te.Kind.Error() + ": " + te.Err.Error()
	}
	if err == nil {
		return "Error: unknown failure"
	}
	return "Error: " + err.Error()
}
