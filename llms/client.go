package llms

import (
	"context"

	"github.com/smallnest/toolchat/conversation"
	"github.com/smallnest/toolchat/tool"
)

// Client sends a conversation to a model and returns its reply.
//
// The reply is an assistant message that either carries tool calls or a final
// answer in Content. Failures are *Error values classified as ErrUnavailable or
// ErrRequest; caller cancellation is returned as the context error.
type Client interface {
	Generate(ctx context.Context, messages []conversation.Message, tools []tool.Info) (conversation.Message, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, messages []conversation.Message, tools []tool.Info) (conversation.Message, error)

// Generate calls f.
func (f ClientFunc) Generate(ctx context.Context, messages []conversation.Message, tools []tool.Info) (conversation.Message, error) {
	return f(ctx, messages, tools)
}
