// Package app assembles the components of a toolchat program from its
// configuration: the model client, the tool registry, the dispatch
// controller and the session store.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/smallnest/toolchat/agent"
	"github.com/smallnest/toolchat/config"
	"github.com/smallnest/toolchat/llms"
	"github.com/smallnest/toolchat/llms/langchain"
	"github.com/smallnest/toolchat/llms/openai"
	"github.com/smallnest/toolchat/log"
	"github.com/smallnest/toolchat/session"
	"github.com/smallnest/toolchat/store"
	"github.com/smallnest/toolchat/store/file"
	"github.com/smallnest/toolchat/store/memory"
	"github.com/smallnest/toolchat/store/postgres"
	"github.com/smallnest/toolchat/store/redis"
	"github.com/smallnest/toolchat/store/sqlite"
	"github.com/smallnest/toolchat/tool"
)

// NewLogger returns a golog-backed logger at the configured level.
func NewLogger(cfg *config.Config, out io.Writer) (log.Logger, error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return log.NewLogger(out, level), nil
}

// NewClient builds the model client for model, or the default model when
// empty. Every call gets the configured timeout and retryable failures are
// retried.
func NewClient(cfg *config.Config, model string, logger log.Logger) (llms.Client, error) {
	if model == "" {
		model = cfg.Model
	}

	var base llms.Client
	switch cfg.Provider {
	case "langchain":
		c, err := langchain.NewOpenAI(langchain.OpenAIConfig{
			Token:       cfg.APIKey(),
			BaseURL:     cfg.BaseURL,
			Model:       model,
			Temperature: cfg.Temperature,
		})
		if err != nil {
			return nil, err
		}
		base = c
	case "openai", "":
		c, err := openai.New(
			openai.WithToken(cfg.APIKey()),
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithModel(model),
			openai.WithTemperature(cfg.Temperature),
			openai.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		base = c
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}

	retry := llms.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Retries + 1
	return llms.WithRetry(llms.WithTimeout(base, cfg.LLMTimeout), retry), nil
}

// NewRegistry registers the research tools whose keys are configured, plus
// the arithmetic tool when includeAdd is set.
func NewRegistry(cfg *config.Config, includeAdd bool, httpClient *http.Client) (*tool.Registry, error) {
	tools, err := tool.Builtins(tool.BuiltinOptions{
		TavilyAPIKey: cfg.TavilyAPIKey,
		BraveAPIKey:  cfg.BraveAPIKey,
		HTTPClient:   httpClient,
		IncludeAdd:   includeAdd,
	})
	if err != nil {
		return nil, err
	}
	return tool.NewRegistry(tools...)
}

// NewController builds a dispatch controller over client. The client is
// expected to enforce its own call timeout, see NewClient.
func NewController(cfg *config.Config, client llms.Client, registry *tool.Registry, logger log.Logger, opts ...agent.Option) (*agent.Controller, error) {
	opts = append([]agent.Option{
		agent.WithMaxIterations(cfg.MaxIterations),
		agent.WithToolTimeout(cfg.ToolTimeout),
		agent.WithParallelTools(cfg.ParallelTools),
		agent.WithLogger(logger),
	}, opts...)
	return agent.New(client, registry, opts...)
}

// NewFactory serves the models of the configured menu, building one
// controller per model on first use.
func NewFactory(cfg *config.Config, registry *tool.Registry, logger log.Logger) session.Factory {
	return session.Cached(func(model string) (session.Resolver, error) {
		name, ok := cfg.AllowedModel(model)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrModelNotAllowed, model)
		}
		client, err := NewClient(cfg, name, logger)
		if err != nil {
			return nil, err
		}
		ctrl, err := NewController(cfg, client, registry, logger)
		if err != nil {
			return nil, err
		}
		return ctrl, nil
	})
}

// NewStore opens the configured session store. The returned function
// releases it.
func NewStore(ctx context.Context, cfg *config.Config) (store.ConversationStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store {
	case "memory", "":
		return memory.New(), noop, nil
	case "file":
		st, err := file.New(cfg.SessionDir)
		if err != nil {
			return nil, nil, err
		}
		return st, noop, nil
	case "sqlite":
		st, err := sqlite.New(sqlite.Options{Path: cfg.StoreDSN})
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case "redis":
		st := redis.New(redis.Options{Addr: cfg.RedisAddr})
		return st, st.Close, nil
	case "postgres":
		st, err := postgres.New(ctx, postgres.Options{ConnString: cfg.StoreDSN})
		if err != nil {
			return nil, nil, err
		}
		return st, func() error { st.Close(); return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}
