package tool

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrUnknownTool is returned when a requested tool is not registered.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidTool is returned by NewRegistry for tools that cannot be registered.
	ErrInvalidTool = errors.New("invalid tool")
)

var toolNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// Registry is the static table of tools available to the model. It is filled
// once by NewRegistry and never changes afterwards, so it can be shared by
// concurrent turns without locking. A nil *Registry is an empty registry.
type Registry struct {
	tools     map[string]Tool
	order     []string
	validator Validator
}

// NewRegistry validates and registers the tools. Names must be unique and
// schemas well formed.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		tools:     make(map[string]Tool, len(tools)),
		validator: DefaultValidator{},
	}
	for _, t := range tools {
		if t == nil {
			return nil, fmt.Errorf("%w: nil tool", ErrInvalidTool)
		}
		name := t.Name()
		if !toolNamePattern.MatchString(name) {
			return nil, fmt.Errorf("%w: bad name %q", ErrInvalidTool, name)
		}
		if _, exists := r.tools[name]; exists {
			return nil, fmt.Errorf("%w: %s registered twice", ErrInvalidTool, name)
		}
		if schema := t.Schema(); schema != nil {
			if err := schema.check(); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTool, name, err)
			}
		}
		r.tools[name] = t
		r.order = append(r.order, name)
	}
	return r, nil
}

// WithValidator returns a copy of the registry using v for argument checks.
func (r *Registry) WithValidator(v Validator) *Registry {
	clone := *r
	clone.validator = v
	return &clone
}

// Lookup finds a tool by name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.tools[name]
	return t, ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

// Infos returns the tool declarations in registration order.
func (r *Registry) Infos() []Info {
	if r == nil {
		return nil
	}
	infos := make([]Info, 0, len(r.order))
	for _, name := range r.order {
		infos = append(infos, InfoOf(r.tools[name]))
	}
	return infos
}

// Execute validates args and runs the named tool.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if args == nil {
		args = map[string]any{}
	}
	if r.validator != nil {
		if err := r.validator.Validate(args, t.Schema()); err != nil {
			return "", err
		}
	}
	return t.Call(ctx, args)
}
