package langchain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lcllms "github.com/tmc/langchaingo/llms"

	"github.com/smallnest/toolchat/conversation"
	"github.com/smallnest/toolchat/llms"
	"github.com/smallnest/toolchat/tool"
)

// stubModel records the last request and replies with a canned response.
type stubModel struct {
	resp     *lcllms.ContentResponse
	err      error
	messages []lcllms.MessageContent
	options  lcllms.CallOptions
}

func (m *stubModel) GenerateContent(_ context.Context, messages []lcllms.MessageContent, options ...lcllms.CallOption) (*lcllms.ContentResponse, error) {
	m.messages = messages
	m.options = lcllms.CallOptions{}
	for _, opt := range options {
		opt(&m.options)
	}
	return m.resp, m.err
}

func (m *stubModel) Call(ctx context.Context, prompt string, options ...lcllms.CallOption) (string, error) {
	return lcllms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestGenerateToolCall(t *testing.T) {
	model := &stubModel{resp: &lcllms.ContentResponse{Choices: []*lcllms.ContentChoice{{
		ToolCalls: []lcllms.ToolCall{{
			ID:           "call_9",
			Type:         "function",
			FunctionCall: &lcllms.FunctionCall{Name: "wikipedia", Arguments: `{"query":"Ada Lovelace"}`},
		}},
	}}}}
	c := New(model, WithCallOptions(lcllms.WithTemperature(0.3)))

	reg, err := tool.NewRegistry(tool.NewAdd())
	require.NoError(t, err)

	history := []conversation.Message{
		conversation.SystemMessage("sys"),
		conversation.UserMessage("Who was Ada Lovelace?"),
	}
	msg, err := c.Generate(context.Background(), history, reg.Infos())
	require.NoError(t, err)

	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, conversation.ToolCall{
		ID: "call_9", Name: "wikipedia", Arguments: map[string]any{"query": "Ada Lovelace"},
	}, msg.ToolCalls[0])

	require.Len(t, model.messages, 2)
	assert.Equal(t, lcllms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, lcllms.ChatMessageTypeHuman, model.messages[1].Role)
	assert.InDelta(t, 0.3, model.options.Temperature, 1e-9)
	require.Len(t, model.options.Tools, 1)
	assert.Equal(t, "add", model.options.Tools[0].Function.Name)
}

func TestGenerateConvertsToolTraffic(t *testing.T) {
	model := &stubModel{resp: &lcllms.ContentResponse{Choices: []*lcllms.ContentChoice{{Content: "<think>sum</think>4"}}}}
	c := New(model)

	history := []conversation.Message{
		conversation.SystemMessage("sys"),
		conversation.UserMessage("What is 2+2?"),
		conversation.AssistantMessage("", conversation.ToolCall{ID: "c1", Name: "add", Arguments: map[string]any{"a": 2, "b": 2}}),
		conversation.ToolResult{ToolCallID: "c1", Name: "add", Content: "4"}.Message(),
	}
	msg, err := c.Generate(context.Background(), history, nil)
	require.NoError(t, err)
	assert.Equal(t, "4", msg.Content)
	assert.Empty(t, model.options.Tools)

	require.Len(t, model.messages, 4)
	ai := model.messages[2]
	assert.Equal(t, lcllms.ChatMessageTypeAI, ai.Role)
	require.Len(t, ai.Parts, 1)
	call, ok := ai.Parts[0].(lcllms.ToolCall)
	require.True(t, ok)
	assert.Equal(t, "c1", call.ID)
	assert.JSONEq(t, `{"a":2,"b":2}`, call.FunctionCall.Arguments)

	resp, ok := model.messages[3].Parts[0].(lcllms.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, lcllms.ToolCallResponse{ToolCallID: "c1", Name: "add", Content: "4"}, resp)
}

func TestGenerateClassifiesErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"status 401", errors.New("API returned unexpected status code: 401: invalid api key"), llms.ErrUnavailable},
		{"status 503", errors.New("API returned unexpected status code: 503"), llms.ErrUnavailable},
		{"status 429", errors.New("API returned unexpected status code: 429: too many requests"), llms.ErrRequest},
		{"status 400", errors.New("API returned unexpected status code: 400: bad request"), llms.ErrRequest},
		{"rate limit text", errors.New("rate limit reached"), llms.ErrRequest},
		{"transport", errors.New("dial tcp 10.0.0.1:443: connect: connection refused"), llms.ErrUnavailable},
		{"timeout", context.DeadlineExceeded, llms.ErrRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&stubModel{err: tt.err}, WithProvider("groq"))
			_, err := c.Generate(context.Background(), []conversation.Message{conversation.UserMessage("hi")}, nil)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New(&stubModel{err: context.Canceled})

	_, err := c.Generate(ctx, []conversation.Message{conversation.UserMessage("hi")}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, llms.ErrUnavailable)
}

func TestGenerateEmptyResponse(t *testing.T) {
	c := New(&stubModel{resp: &lcllms.ContentResponse{}})
	_, err := c.Generate(context.Background(), nil, nil)
	assert.ErrorIs(t, err, llms.ErrRequest)
}

func TestNewOpenAI(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{})
	assert.Error(t, err)

	c, err := NewOpenAI(OpenAIConfig{Token: "gsk-test", Temperature: 0.3})
	require.NoError(t, err)
	assert.Equal(t, "openai", c.provider)
}
