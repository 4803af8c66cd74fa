// Package openai implements llms.Client for OpenAI compatible chat completion
// endpoints, Groq included, on top of go-openai.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/smallnest/toolchat/conversation"
	"github.com/smallnest/toolchat/llms"
	"github.com/smallnest/toolchat/log"
	"github.com/smallnest/toolchat/tool"
)

const (
	// DefaultBaseURL is Groq's OpenAI compatible endpoint.
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	// DefaultModel is the model used when none is configured.
	DefaultModel = "qwen/qwen3-32b"
	// DefaultTemperature matches the temperature the chat app was tuned with.
	DefaultTemperature = 0.3
)

type options struct {
	token         string
	baseURL       string
	model         string
	temperature   float32
	provider      string
	httpClient    *http.Client
	keepReasoning bool
	logger        log.Logger
}

// Option configures the client.
type Option func(*options)

// WithToken sets the API key.
func WithToken(token string) Option {
	return func(o *options) { o.token = token }
}

// WithBaseURL sets the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(o *options) { o.baseURL = baseURL }
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *options) { o.temperature = float32(t) }
}

// WithProvider sets the provider name used in errors and logs.
func WithProvider(name string) Option {
	return func(o *options) { o.provider = name }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithReasoning keeps <think> blocks in answers instead of stripping them.
func WithReasoning() Option {
	return func(o *options) { o.keepReasoning = true }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Client is an llms.Client backed by go-openai.
type Client struct {
	client *goopenai.Client
	opts   options
}

var _ llms.Client = (*Client)(nil)

// New creates a client. An API key is required.
func New(opts ...Option) (*Client, error) {
	o := options{
		baseURL:     DefaultBaseURL,
		model:       DefaultModel,
		temperature: DefaultTemperature,
		provider:    "openai",
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.token == "" {
		return nil, errors.New("openai: api key not set")
	}
	o.logger = log.OrDefault(o.logger)

	cfg := goopenai.DefaultConfig(o.token)
	cfg.BaseURL = o.baseURL
	if o.httpClient != nil {
		cfg.HTTPClient = o.httpClient
	}
	return &Client{client: goopenai.NewClientWithConfig(cfg), opts: o}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.opts.model }

// Generate sends the conversation and the tool declarations to the model.
func (c *Client) Generate(ctx context.Context, messages []conversation.Message, tools []tool.Info) (conversation.Message, error) {
	req := goopenai.ChatCompletionRequest{
		Model:       c.opts.model,
		Messages:    toChatMessages(messages),
		Temperature: c.opts.temperature,
		Tools:       toTools(tools),
	}

	c.opts.logger.Debug("%s: chat completion with %d messages, %d tools", c.opts.provider, len(messages), len(tools))
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return conversation.Message{}, c.classify(err)
	}
	if len(resp.Choices) == 0 {
		return conversation.Message{}, &llms.Error{
			Kind:     llms.ErrRequest,
			Provider: c.opts.provider,
			Err:      errors.New("empty response from model"),
		}
	}
	c.opts.logger.Debug("%s: usage prompt=%d completion=%d", c.opts.provider,
		resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	msg := fromChatMessage(resp.Choices[0].Message)
	if !c.opts.keepReasoning {
		msg.Content = llms.StripReasoning(msg.Content)
	}
	return msg, nil
}

func (c *Client) classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return llms.FromStatus(c.opts.provider, apiErr.HTTPStatusCode, err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return llms.FromStatus(c.opts.provider, reqErr.HTTPStatusCode, err)
	}
	return llms.Classify(c.opts.provider, err)
}

func toChatMessages(messages []conversation.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		cm := goopenai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
		switch m.Role {
		case conversation.RoleAssistant:
			for _, call := range m.ToolCalls {
				cm.ToolCalls = append(cm.ToolCalls, goopenai.ToolCall{
					ID:   call.ID,
					Type: goopenai.ToolTypeFunction,
					Function: goopenai.FunctionCall{
						Name:      call.Name,
						Arguments: encodeArguments(call.Arguments),
					},
				})
			}
		case conversation.RoleTool:
			cm.ToolCallID = m.ToolCallID
			cm.Name = m.Name
		}
		out = append(out, cm)
	}
	return out
}

func toTools(infos []tool.Info) []goopenai.Tool {
	if len(infos) == 0 {
		return nil
	}
	out := make([]goopenai.Tool, 0, len(infos))
	for _, info := range infos {
		out = append(out, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        info.Name,
				Description: info.Description,
				Parameters:  info.Parameters,
			},
		})
	}
	return out
}

func fromChatMessage(cm goopenai.ChatCompletionMessage) conversation.Message {
	msg := conversation.Message{Role: conversation.RoleAssistant, Content: cm.Content}
	for _, tc := range cm.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, conversation.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: DecodeArguments(tc.Function.Arguments),
		})
	}
	return msg
}

func encodeArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// DecodeArguments parses the JSON arguments of a tool call. Text that is not a
// JSON object is passed through as {"input": raw}.
func DecodeArguments(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]any{"input": raw}
	}
	return args
}
