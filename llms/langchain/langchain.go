// Package langchain adapts a langchaingo model to llms.Client.
package langchain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"

	lcllms "github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"github.com/smallnest/toolchat/conversation"
	"github.com/smallnest/toolchat/llms"
	llmsopenai "github.com/smallnest/toolchat/llms/openai"
	"github.com/smallnest/toolchat/tool"
)

// Client is an llms.Client backed by a langchaingo model.
type Client struct {
	model         lcllms.Model
	provider      string
	mapper        *lcllms.ErrorMapper
	callOptions   []lcllms.CallOption
	keepReasoning bool
}

var _ llms.Client = (*Client)(nil)

// Option configures the client.
type Option func(*Client)

// WithProvider sets the provider name used in errors.
func WithProvider(name string) Option {
	return func(c *Client) { c.provider = name }
}

// WithCallOptions adds langchaingo call options to every request.
func WithCallOptions(opts ...lcllms.CallOption) Option {
	return func(c *Client) { c.callOptions = append(c.callOptions, opts...) }
}

// WithReasoning keeps <think> blocks in answers instead of stripping them.
func WithReasoning() Option {
	return func(c *Client) { c.keepReasoning = true }
}

// New wraps model.
func New(model lcllms.Model, opts ...Option) *Client {
	c := &Client{
		model:    model,
		provider: "langchain",
		mapper:   lcllms.OpenAIErrorMapper(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OpenAIConfig configures NewOpenAI.
type OpenAIConfig struct {
	Token       string
	BaseURL     string
	Model       string
	Temperature float64
	HTTPClient  *http.Client
}

// NewOpenAI builds a client over langchaingo's OpenAI provider, pointed at
// Groq unless BaseURL says otherwise.
func NewOpenAI(cfg OpenAIConfig, opts ...Option) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("langchain: api key not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = llmsopenai.DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = llmsopenai.DefaultModel
	}
	lcopts := []lcopenai.Option{
		lcopenai.WithToken(cfg.Token),
		lcopenai.WithBaseURL(cfg.BaseURL),
		lcopenai.WithModel(cfg.Model),
	}
	if cfg.HTTPClient != nil {
		lcopts = append(lcopts, lcopenai.WithHTTPClient(cfg.HTTPClient))
	}
	model, err := lcopenai.New(lcopts...)
	if err != nil {
		return nil, err
	}
	opts = append([]Option{
		WithProvider("openai"),
		WithCallOptions(lcllms.WithTemperature(cfg.Temperature)),
	}, opts...)
	return New(model, opts...), nil
}

// Generate converts the conversation to langchaingo messages and calls the model.
func (c *Client) Generate(ctx context.Context, messages []conversation.Message, tools []tool.Info) (conversation.Message, error) {
	opts := append([]lcllms.CallOption(nil), c.callOptions...)
	if len(tools) > 0 {
		opts = append(opts, lcllms.WithTools(tool.LangchainTools(tools)))
	}

	resp, err := c.model.GenerateContent(ctx, toMessageContents(messages), opts...)
	if err != nil {
		return conversation.Message{}, c.classify(ctx, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return conversation.Message{}, &llms.Error{
			Kind:     llms.ErrRequest,
			Provider: c.provider,
			Err:      errors.New("empty response from model"),
		}
	}

	choice := resp.Choices[0]
	msg := conversation.Message{Role: conversation.RoleAssistant, Content: choice.Content}
	if !c.keepReasoning {
		msg.Content = llms.StripReasoning(msg.Content)
	}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		msg.ToolCalls = append(msg.ToolCalls, conversation.ToolCall{
			ID:        tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: llmsopenai.DecodeArguments(tc.FunctionCall.Arguments),
		})
	}
	return msg, nil
}

var statusPattern = regexp.MustCompile(`status code: (\d{3})`)

// classify maps langchaingo's standardized error codes onto the two kinds a
// turn can fail with.
func (c *Client) classify(ctx context.Context, err error) error {
	if ctx.Err() == context.Canceled && errors.Is(err, context.Canceled) {
		return err
	}
	mapped := c.mapper.WrapError(err)

	status := 0
	if m := statusPattern.FindStringSubmatch(err.Error()); m != nil {
		status, _ = strconv.Atoi(m[1])
	}
	if status != 0 {
		return llms.FromStatus(c.provider, status, mapped)
	}

	switch {
	case lcllms.IsCanceledError(mapped):
		return err
	case lcllms.IsRateLimitError(mapped):
		return &llms.Error{Kind: llms.ErrRequest, Provider: c.provider, StatusCode: http.StatusTooManyRequests, Err: mapped}
	case lcllms.IsAuthenticationError(mapped), lcllms.IsProviderUnavailableError(mapped), isUnknown(mapped):
		// unknown codes are transport failures: dial errors, resets, bad gateways
		return &llms.Error{Kind: llms.ErrUnavailable, Provider: c.provider, Err: mapped}
	}
	return &llms.Error{Kind: llms.ErrRequest, Provider: c.provider, Err: mapped}
}

func isUnknown(err error) bool {
	var e *lcllms.Error
	return errors.As(err, &e) && e.Code == lcllms.ErrCodeUnknown
}

func toMessageContents(messages []conversation.Message) []lcllms.MessageContent {
	out := make([]lcllms.MessageContent, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case conversation.RoleSystem:
			out = append(out, lcllms.TextParts(lcllms.ChatMessageTypeSystem, m.Content))
		case conversation.RoleUser:
			out = append(out, lcllms.TextParts(lcllms.ChatMessageTypeHuman, m.Content))
		case conversation.RoleAssistant:
			mc := lcllms.MessageContent{Role: lcllms.ChatMessageTypeAI}
			if m.Content != "" || len(m.ToolCalls) == 0 {
				mc.Parts = append(mc.Parts, lcllms.TextContent{Text: m.Content})
			}
			for _, call := range m.ToolCalls {
				mc.Parts = append(mc.Parts, lcllms.ToolCall{
					ID:   call.ID,
					Type: "function",
					FunctionCall: &lcllms.FunctionCall{
						Name:      call.Name,
						Arguments: encodeArguments(call.Arguments),
					},
				})
			}
			out = append(out, mc)
		case conversation.RoleTool:
			out = append(out, lcllms.MessageContent{
				Role: lcllms.ChatMessageTypeTool,
				Parts: []lcllms.ContentPart{lcllms.ToolCallResponse{
					ToolCallID: m.ToolCallID,
					Name:       m.Name,
					Content:    m.Content,
				}},
			})
		}
	}
	return out
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
