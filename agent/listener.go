package agent

import (
	"context"
	"sync"
	"time"

	"github.com/smallnest/toolchat/log"
)

// EventType identifies what happened during a turn.
type EventType string

const (
	// EventUserMessage: the user input was appended to the conversation.
	EventUserMessage EventType = "user_message"
	// EventToolCall: the model requested a tool.
	EventToolCall EventType = "tool_call"
	// EventToolResult: a tool result was appended.
	EventToolResult EventType = "tool_result"
	// EventFinalAnswer: the model answered without requesting tools.
	EventFinalAnswer EventType = "final_answer"
	// EventTurnFailed: the turn ended in StateFailed or StateCancelled.
	EventTurnFailed EventType = "turn_failed"
)

// Event is an in-process notification about the progress of a turn.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Iteration int

	// Content is the user input, the final answer, the truncated tool
	// result or the failure reason, depending on Type.
	Content string

	// Tool events only.
	ToolCallID string
	ToolName   string
	Arguments  map[string]any
	IsError    bool

	// State is the terminal state for EventFinalAnswer and EventTurnFailed.
	State State
	Err   error
}

// Listener receives turn events. Calls are synchronous and in order.
type Listener interface {
	OnEvent(ctx context.Context, event Event)
}

// ListenerFunc is a function adapter for Listener
type ListenerFunc func(ctx context.Context, event Event)

// OnEvent implements the Listener interface
func (f ListenerFunc) OnEvent(ctx context.Context, event Event) {
	f(ctx, event)
}

func notify(ctx context.Context, logger log.Logger, listeners []Listener, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	for _, l := range listeners {
		func() {
			// Protect against panics in listeners
			defer func() {
				if r := recover(); r != nil {
					logger.Error("listener panicked on %s: %v", event.Type, r)
				}
			}()
			l.OnEvent(ctx, event)
		}()
	}
}

// StreamingListener forwards events to a channel without ever blocking the
// turn. Events that do not fit in the channel are dropped and counted.
type StreamingListener struct {
	eventChan chan<- Event
	mutex     sync.RWMutex

	droppedEvents int
	closed        bool
}

// NewStreamingListener creates a new streaming listener
func NewStreamingListener(eventChan chan<- Event) *StreamingListener {
	return &StreamingListener{eventChan: eventChan}
}

// OnEvent implements the Listener interface
func (sl *StreamingListener) OnEvent(_ context.Context, event Event) {
	sl.mutex.Lock()
	defer sl.mutex.Unlock()
	if sl.closed {
		return
	}

	select {
	case sl.eventChan <- event:
	default:
		sl.droppedEvents++
	}
}

// Close stops forwarding events. It does not close the channel.
func (sl *StreamingListener) Close() {
	sl.mutex.Lock()
	defer sl.mutex.Unlock()
	sl.closed = true
}

// DroppedEvents returns the number of events lost to a full channel.
func (sl *StreamingListener) DroppedEvents() int {
	sl.mutex.RLock()
	defer sl.mutex.RUnlock()
	return sl.droppedEvents
}
