package tool

import (
	"net/http"
)

// BuiltinOptions selects and configures the built-in research tools.
type BuiltinOptions struct {
	TavilyAPIKey string
	BraveAPIKey  string
	HTTPClient   *http.Client
	// IncludeAdd adds the arithmetic tool used by the command line demo.
	IncludeAdd bool
}

// Builtins returns the built-in tools in the order they are offered to the
// model: wikipedia, arxiv, then the web search backends whose key is set.
func Builtins(opts BuiltinOptions) ([]Tool, error) {
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	tools := []Tool{
		NewWikipedia(WithWikipediaHTTPClient(client)),
		NewArxiv(WithArxivHTTPClient(client)),
	}
	if opts.TavilyAPIKey != "" {
		t, err := NewTavilySearch(opts.TavilyAPIKey, WithTavilyHTTPClient(client))
		if err != nil {
			return nil, err
		}
		tools = append(tools, t)
	}
	if opts.BraveAPIKey != "" {
		b, err := NewBraveSearch(opts.BraveAPIKey, WithBraveHTTPClient(client))
		if err != nil {
			return nil, err
		}
		tools = append(tools, b)
	}
	if opts.IncludeAdd {
		tools = append(tools, NewAdd())
	}
	return tools, nil
}
