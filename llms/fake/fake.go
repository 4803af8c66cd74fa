// Package fake provides a scripted llms.Client.
package fake

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smallnest/toolchat/conversation"
	"github.com/smallnest/toolchat/llms"
	"github.com/smallnest/toolchat/tool"
)

// ErrExhausted is returned once every scripted response has been used.
var ErrExhausted = errors.New("fake: no scripted response left")

// Response is one scripted reply.
type Response struct {
	Message conversation.Message
	Err     error
	// Delay is waited before replying; it honors context cancellation.
	Delay time.Duration
}

// Text scripts a final answer.
func Text(content string) Response {
	return Response{Message: conversation.AssistantMessage(content)}
}

// Calls scripts an assistant message requesting tool calls.
func Calls(calls ...conversation.ToolCall) Response {
	return Response{Message: conversation.AssistantMessage("", calls...)}
}

// Call builds a tool call.
func Call(id, name string, args map[string]any) conversation.ToolCall {
	return conversation.ToolCall{ID: id, Name: name, Arguments: args}
}

// Fail scripts an error.
func Fail(err error) Response {
	return Response{Err: err}
}

// Client replays scripted responses in order and records every request.
type Client struct {
	// Repeat replays the last response forever instead of running out.
	Repeat bool

	mu        sync.Mutex
	responses []Response
	index     int
	histories [][]conversation.Message
	tools     [][]tool.Info
}

var _ llms.Client = (*Client)(nil)

// New creates a client that replies with responses in order.
func New(responses ...Response) *Client {
	return &Client{responses: responses}
}

// Add appends responses to the script.
func (c *Client) Add(responses ...Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, responses...)
}

// Generate returns the next scripted response.
func (c *Client) Generate(ctx context.Context, messages []conversation.Message, tools []tool.Info) (conversation.Message, error) {
	c.mu.Lock()
	c.histories = append(c.histories, conversation.CloneMessages(messages))
	c.tools = append(c.tools, append([]tool.Info(nil), tools...))
	var resp Response
	switch {
	case c.index < len(c.responses):
		resp = c.responses[c.index]
		c.index++
	case c.Repeat && len(c.responses) > 0:
		resp = c.responses[len(c.responses)-1]
	default:
		c.mu.Unlock()
		return conversation.Message{}, &llms.Error{Kind: llms.ErrRequest, Provider: "fake", Err: ErrExhausted}
	}
	c.mu.Unlock()

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-ctx.Done():
			return conversation.Message{}, ctx.Err()
		}
	}
	if resp.Err != nil {
		return conversation.Message{}, resp.Err
	}
	return resp.Message.Clone(), nil
}

// CallCount returns how many times Generate was called.
func (c *Client) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.histories)
}

// History returns the messages received by the i-th call.
func (c *Client) History(i int) []conversation.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.histories[i]
}

// Tools returns the tool declarations received by the i-th call.
func (c *Client) Tools(i int) []tool.Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tools[i]
}

// Reset rewinds the script and forgets recorded calls.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = 0
	c.histories = nil
	c.tools = nil
}
