package llms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnavailable},
		{http.StatusForbidden, ErrUnavailable},
		{http.StatusInternalServerError, ErrUnavailable},
		{http.StatusServiceUnavailable, ErrUnavailable},
		{http.StatusBadRequest, ErrRequest},
		{http.StatusNotFound, ErrRequest},
		{http.StatusUnprocessableEntity, ErrRequest},
		{http.StatusTooManyRequests, ErrRequest},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, KindForStatus(tt.status))
		})
	}
}

func TestClassify(t *testing.T) {
	assert.NoError(t, Classify("x", nil))

	transport := errors.New("dial tcp: connection refused")
	err := Classify("groq", transport)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, transport)
	assert.EqualError(t, err, "groq: llm unavailable: dial tcp: connection refused")

	err = Classify("groq", fmt.Errorf("post: %w", context.DeadlineExceeded))
	assert.ErrorIs(t, err, ErrRequest)

	// caller cancellation is not a model failure
	err = Classify("groq", context.Canceled)
	assert.Equal(t, context.Canceled, err)

	already := FromStatus("groq", 429, errors.New("slow down"))
	assert.Same(t, already, Classify("other", already))
	assert.EqualError(t, already, "groq: llm request error (status 429): slow down")
}

func TestRetryable(t *testing.T) {
	assert.True(t, FromStatus("p", 429, nil).Retryable())
	assert.True(t, FromStatus("p", 502, nil).Retryable())
	assert.False(t, FromStatus("p", 401, nil).Retryable())
	assert.False(t, FromStatus("p", 400, nil).Retryable())
	assert.True(t, IsRetryable(Classify("p", errors.New("connection reset"))))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestStripReasoning(t *testing.T) {
	assert.Equal(t, "4", StripReasoning("<think>\n2+2 is 4\n</think>\n\n4"))
	assert.Equal(t, "plain answer", StripReasoning("plain answer"))
}
