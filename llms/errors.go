package llms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnavailable means the model could not be reached: transport failures,
	// rejected credentials and server-side errors.
	ErrUnavailable = errors.New("llm unavailable")
	// ErrRequest means the model was reached but refused the request: malformed
	// input, rate limiting or a timeout.
	ErrRequest = errors.New("llm request error")
)

// Error is a classified model failure.
type Error struct {
	// Kind is ErrUnavailable or ErrRequest.
	Kind       error
	Provider   string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Retryable reports whether repeating the same request may succeed.
func (e *Error) Retryable() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	case e.StatusCode == 0 && errors.Is(e.Kind, ErrUnavailable):
		return true
	}
	return false
}

// KindForStatus maps an HTTP status code to an error kind.
func KindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status >= 500:
		return ErrUnavailable
	case status >= 400:
		return ErrRequest
	}
	return ErrUnavailable
}

// FromStatus builds an Error for a failed HTTP exchange.
func FromStatus(provider string, status int, err error) *Error {
	return &Error{Kind: KindForStatus(status), Provider: provider, StatusCode: status, Err: err}
}

// Classify turns an arbitrary client error into an *Error. Errors that are
// already classified are returned unchanged, and so is caller cancellation.
// Deadline expiry is a request error; everything else is treated as a
// transport failure.
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: ErrRequest, Provider: provider, Err: err}
	}
	return &Error{Kind: ErrUnavailable, Provider: provider, Err: err}
}

// IsRetryable reports whether err is a classified, retryable model failure.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}
