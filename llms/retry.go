package llms

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/smallnest/toolchat/conversation"
	"github.com/smallnest/toolchat/tool"
)

// RetryConfig configures retry behavior for model calls
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	Jitter          bool
	RetryableErrors func(error) bool // Determines if an error should trigger retry
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		BackoffFactor:   2.0,
		Jitter:          true,
		RetryableErrors: IsRetryable,
	}
}

type retryClient struct {
	client Client
	config *RetryConfig
}

// WithRetry wraps client so that retryable failures are repeated with
// exponential backoff. Caller cancellation stops retrying immediately.
func WithRetry(client Client, config *RetryConfig) Client {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &retryClient{client: client, config: config}
}

func (rc *retryClient) Generate(ctx context.Context, messages []conversation.Message, tools []tool.Info) (conversation.Message, error) {
	var lastErr error
	delay := rc.config.InitialDelay

	for attempt := 1; attempt <= rc.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return conversation.Message{}, err
		}

		msg, err := rc.client.Generate(ctx, messages, tools)
		if err == nil {
			return msg, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return conversation.Message{}, err
		}
		if rc.config.RetryableErrors != nil && !rc.config.RetryableErrors(err) {
			return conversation.Message{}, err
		}

		// Don't sleep after the last attempt
		if attempt < rc.config.MaxAttempts {
			wait := delay
			if rc.config.Jitter {
				// ±25%
				wait += time.Duration(float64(delay) * 0.25 * (2*rand.Float64() - 1))
			}
			select {
			case <-time.After(wait):
				delay = min(time.Duration(float64(delay)*rc.config.BackoffFactor), rc.config.MaxDelay)
			case <-ctx.Done():
				return conversation.Message{}, ctx.Err()
			}
		}
	}

	return conversation.Message{}, fmt.Errorf("max retries (%d) exceeded: %w", rc.config.MaxAttempts, lastErr)
}
