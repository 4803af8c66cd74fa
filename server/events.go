package server

import (
	"context"
	"strings"

	"github.com/smallnest/toolchat/agent"
	"github.com/smallnest/toolchat/log"
	"github.com/smallnest/toolchat/render"
	"github.com/smallnest/toolchat/session"
)

type toolCallData struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Label     string         `json:"label"`
	Query     string         `json:"query"`
	Arguments map[string]any `json:"arguments"`
}

type toolResultData struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Label   string `json:"label"`
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

type finalData struct {
	Content string `json:"content"`
	HTML    string `json:"html"`
}

type endData struct {
	State      string `json:"state"`
	Iterations int    `json:"iterations"`
	ToolCalls  int    `json:"tool_calls"`
}

// streamListener relays turn events to the SSE stream.
type streamListener struct {
	sse    *sseWriter
	logger log.Logger
	failed bool
}

func (l *streamListener) OnEvent(_ context.Context, e agent.Event) {
	var err error
	switch e.Type {
	case agent.EventUserMessage:
		err = l.sse.send(EventUser, map[string]string{"content": e.Content})
	case agent.EventToolCall:
		err = l.sse.send(EventToolCall, toolCallData{
			ID:        e.ToolCallID,
			Name:      e.ToolName,
			Label:     render.ToolLabel(e.ToolName),
			Query:     render.QueryPreview(e.Arguments),
			Arguments: e.Arguments,
		})
	case agent.EventToolResult:
		err = l.sse.send(EventToolResult, toolResultData{
			ID:      e.ToolCallID,
			Name:    e.ToolName,
			Label:   render.ResultLabel(e.ToolName),
			Content: e.Content,
			IsError: e.IsError,
		})
	case agent.EventFinalAnswer:
		answer := e.Content
		if strings.TrimSpace(answer) == "" {
			answer = session.FallbackAnswer
		}
		err = l.sse.send(EventFinal, finalData{Content: answer, HTML: string(render.Markdown(answer))})
	case agent.EventTurnFailed:
		l.failed = true
		err = l.sse.send(EventError, map[string]string{"error": session.FailureText(e.Err)})
	}
	if err != nil {
		// the client went away, the turn still completes and is saved
		l.logger.Debug("failed to stream %s event: %v", e.Type, err)
	}
}
