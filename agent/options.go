package agent

import (
	"time"

	"github.com/smallnest/toolchat/conversation"
	"github.com/smallnest/toolchat/log"
)

const (
	// DefaultMaxIterations bounds model calls per turn when WithMaxIterations
	// is not used.
	DefaultMaxIterations = 20
	// DefaultToolTimeout bounds every tool execution.
	DefaultToolTimeout = 30 * time.Second
)

// Option configures a Controller.
type Option func(*Controller)

// WithMaxIterations sets the maximum number of model calls per turn. It must
// be positive.
func WithMaxIterations(n int) Option {
	return func(c *Controller) { c.maxIterations = n }
}

// WithToolTimeout bounds each tool execution. Zero disables the bound.
func WithToolTimeout(d time.Duration) Option {
	return func(c *Controller) { c.toolTimeout = d }
}

// WithLLMTimeout bounds each model call. A call that runs out of time fails
// the turn with llms.ErrRequest.
func WithLLMTimeout(d time.Duration) Option {
	return func(c *Controller) { c.llmTimeout = d }
}

// WithParallelTools runs up to n tool calls of one round concurrently. Their
// results are still appended in request order.
func WithParallelTools(n int) Option {
	return func(c *Controller) { c.parallel = max(n, 1) }
}

// WithTruncateLimit bounds error contents and displayed tool results, in
// characters.
func WithTruncateLimit(n int) Option {
	return func(c *Controller) { c.truncateLimit = n }
}

// WithListener adds a listener notified on every turn.
func WithListener(l Listener) Option {
	return func(c *Controller) { c.listeners = append(c.listeners, l) }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func defaultController() *Controller {
	return &Controller{
		maxIterations: DefaultMaxIterations,
		toolTimeout:   DefaultToolTimeout,
		parallel:      1,
		truncateLimit: conversation.DefaultTruncateLimit,
	}
}
