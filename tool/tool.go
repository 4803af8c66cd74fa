package tool

import (
	"context"

	"github.com/tmc/langchaingo/llms"
)

// Tool is a named function the model can ask to run.
type Tool interface {
	// Name is the identifier the model uses to request the tool.
	Name() string
	// Description tells the model when the tool is useful.
	Description() string
	// Schema describes the arguments; nil means the tool takes none.
	Schema() *Schema
	// Call runs the tool with already validated arguments.
	Call(ctx context.Context, args map[string]any) (string, error)
}

// Info is the declaration of a tool as sent to the model.
type Info struct {
	Name        string
	Description string
	Parameters  *Schema
}

// InfoOf returns the declaration of t.
func InfoOf(t Tool) Info {
	schema := t.Schema()
	if schema == nil {
		schema = &Schema{Type: "object", Properties: map[string]Property{}}
	}
	return Info{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  schema,
	}
}

// Definition returns the declaration as a langchaingo function definition.
func (i Info) Definition() llms.FunctionDefinition {
	return llms.FunctionDefinition{
		Name:        i.Name,
		Description: i.Description,
		Parameters:  i.Parameters,
	}
}

// LangchainTools converts declarations to langchaingo tools.
func LangchainTools(infos []Info) []llms.Tool {
	out := make([]llms.Tool, 0, len(infos))
	for _, info := range infos {
		def := info.Definition()
		out = append(out, llms.Tool{Type: "function", Function: &def})
	}
	return out
}

// FuncTool adapts a plain function to the Tool interface.
type FuncTool struct {
	name        string
	description string
	schema      *Schema
	fn          func(ctx context.Context, args map[string]any) (string, error)
}

var _ Tool = (*FuncTool)(nil)

// NewFuncTool creates a tool from a function.
func NewFuncTool(name, description string, schema *Schema, fn func(ctx context.Context, args map[string]any) (string, error)) *FuncTool {
	return &FuncTool{
		name:        name,
		description: description,
		schema:      schema,
		fn:          fn,
	}
}

// Name returns the name of the tool.
func (f *FuncTool) Name() string { return f.name }

// Description returns the description of the tool.
func (f *FuncTool) Description() string { return f.description }

// Schema returns the argument schema of the tool.
func (f *FuncTool) Schema() *Schema { return f.schema }

// Call invokes the wrapped function.
func (f *FuncTool) Call(ctx context.Context, args map[string]any) (string, error) {
	return f.fn(ctx, args)
}
