package agent

import (
	"errors"
	"fmt"

	"github.com/smallnest/toolchat/tool"
)

var (
	// ErrIterationLimitExceeded is the kind of a turn that used up its model calls
	// without reaching a final answer.
	ErrIterationLimitExceeded = errors.New("iteration limit exceeded")
	// ErrCancelled is the kind of a turn stopped by its caller.
	ErrCancelled = errors.New("turn cancelled")
	// ErrInvalidInput is returned when a turn cannot start: empty input, a nil
	// or empty conversation, or unanswered tool calls.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownTool marks tool results for tools that are not registered.
	ErrUnknownTool = tool.ErrUnknownTool
	// ErrToolExecution marks tool results for tools that failed.
	ErrToolExecution = errors.New("tool execution failed")
)

// TurnError is a failure that ended a turn. Kind is one of
// ErrIterationLimitExceeded, ErrCancelled, ErrInvalidInput, llms.ErrUnavailable
// or llms.ErrRequest.
type TurnError struct {
	Kind      error
	Iteration int
	Err       error
}

func (e *TurnError) Error() string {
	msg := e.Kind.Error()
	if e.Iteration > 0 {
		msg = fmt.Sprintf("iteration %d: %s", e.Iteration, msg)
	}
	if e.Err != nil && e.Err != e.Kind {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the kind and the cause.
func (e *TurnError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
