package session

import (
	"context"
	"sync"

	"github.com/smallnest/toolchat/agent"
	"github.com/smallnest/toolchat/conversation"
)

// Resolver resolves one user turn against a conversation. *agent.Controller
// implements it.
type Resolver interface {
	ResolveTurn(ctx context.Context, conv *conversation.Conversation, input string, listeners ...agent.Listener) (*agent.TurnResult, error)
}

var _ Resolver = (*agent.Controller)(nil)

// Factory returns the resolver serving a model. The empty name selects the
// default model.
type Factory func(model string) (Resolver, error)

// Static serves every model with r.
func Static(r Resolver) Factory {
	return func(string) (Resolver, error) { return r, nil }
}

// Cached builds at most one resolver per model name.
func Cached(build Factory) Factory {
	var mu sync.Mutex
	built := make(map[string]Resolver)
	return func(model string) (Resolver, error) {
		mu.Lock()
		defer mu.Unlock()
		if r, ok := built[model]; ok {
			return r, nil
		}
		r, err := build(model)
		if err != nil {
			return nil, err
		}
		built[model] = r
		return r, nil
	}
}
