package tool

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tmc/langchaingo/tools"
)

// LangchainTool exposes a langchaingo tool, which takes a single string, as a
// Tool with a one-field object schema.
type LangchainTool struct {
	tool        tools.Tool
	name        string
	description string
	argName     string
	postProcess func(string) string
}

var _ Tool = (*LangchainTool)(nil)

// LangchainOption configures a LangchainTool.
type LangchainOption func(*LangchainTool)

// WithName overrides the tool name reported to the model.
func WithName(name string) LangchainOption {
	return func(l *LangchainTool) {
		l.name = name
	}
}

// WithDescription overrides the description reported to the model.
func WithDescription(description string) LangchainOption {
	return func(l *LangchainTool) {
		l.description = description
	}
}

// WithArgName sets the name of the single string argument. Defaults to "input".
func WithArgName(arg string) LangchainOption {
	return func(l *LangchainTool) {
		l.argName = arg
	}
}

// WithPostProcess transforms the wrapped tool's output.
func WithPostProcess(fn func(string) string) LangchainOption {
	return func(l *LangchainTool) {
		l.postProcess = fn
	}
}

// FromLangchain wraps t. The default name is t.Name() lowercased with spaces
// replaced by underscores.
func FromLangchain(t tools.Tool, opts ...LangchainOption) *LangchainTool {
	l := &LangchainTool{
		tool:        t,
		name:        strings.ReplaceAll(strings.ToLower(strings.TrimSpace(t.Name())), " ", "_"),
		description: strings.Join(strings.Fields(t.Description()), " "),
		argName:     "input",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name returns the name of the tool.
func (l *LangchainTool) Name() string { return l.name }

// Description returns the description of the tool.
func (l *LangchainTool) Description() string { return l.description }

// Schema declares the single required string argument.
func (l *LangchainTool) Schema() *Schema {
	return ObjectSchema(map[string]Property{
		l.argName: {Type: "string", Description: "Input for " + l.name},
	}, l.argName)
}

// Call passes the string argument to the wrapped tool. Anything else is
// forwarded as the JSON encoding of args.
func (l *LangchainTool) Call(ctx context.Context, args map[string]any) (string, error) {
	input, ok := args[l.argName].(string)
	if !ok {
		raw, err := json.Marshal(args)
		if err != nil {
			return "", err
		}
		input = string(raw)
	}
	out, err := l.tool.Call(ctx, input)
	if err != nil {
		return "", err
	}
	if l.postProcess != nil {
		out = l.postProcess(out)
	}
	return out, nil
}
