package llms

import (
	"context"
	"fmt"
	"time"

	"github.com/smallnest/toolchat/conversation"
	"github.com/smallnest/toolchat/tool"
)

type timeoutClient struct {
	client  Client
	timeout time.Duration
}

// WithTimeout bounds every call to client by d. A call that runs out of time
// fails with ErrRequest. A non-positive d returns client unchanged.
func WithTimeout(client Client, d time.Duration) Client {
	if d <= 0 {
		return client
	}
	return &timeoutClient{client: client, timeout: d}
}

func (tc *timeoutClient) Generate(ctx context.Context, messages []conversation.Message, tools []tool.Info) (conversation.Message, error) {
	callCtx, cancel := context.WithTimeout(ctx, tc.timeout)
	defer cancel()

	msg, err := tc.client.Generate(callCtx, messages, tools)
	if err != nil && ctx.Err() == nil && callCtx.Err() == context.DeadlineExceeded {
		return conversation.Message{}, &Error{
			Kind: ErrRequest,
			Err:  fmt.Errorf("model call timed out after %v: %w", tc.timeout, context.DeadlineExceeded),
		}
	}
	return msg, err
}
