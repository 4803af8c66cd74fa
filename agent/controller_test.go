package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/toolchat/conversation"
	"github.com/smallnest/toolchat/llms"
	"github.com/smallnest/toolchat/llms/fake"
	"github.com/smallnest/toolchat/log"
	"github.com/smallnest/toolchat/tool"
)

func newRegistry(t *testing.T, tools ...tool.Tool) *tool.Registry {
	t.Helper()
	reg, err := tool.NewRegistry(tools...)
	require.NoError(t, err)
	return reg
}

func newController(t *testing.T, client llms.Client, reg *tool.Registry, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithLogger(&log.NoOpLogger{})}, opts...)
	c, err := New(client, reg, opts...)
	require.NoError(t, err)
	return c
}

func addArgs(a, b float64) map[string]any {
	return map[string]any{"a": a, "b": b}
}

// recorder collects events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func toolMessages(msgs []conversation.Message) []conversation.Message {
	var out []conversation.Message
	for _, m := range msgs {
		if m.Role == conversation.RoleTool {
			out = append(out, m)
		}
	}
	return out
}

func TestResolveTurnAddScenario(t *testing.T) {
	client := fake.New(
		fake.Calls(fake.Call("call_1", "add", addArgs(2, 2))),
		fake.Text("4"),
	)
	c := newController(t, client, newRegistry(t, tool.NewAdd()))
	conv := conversation.New("You are a calculator.")

	result, err := c.ResolveTurn(context.Background(), conv, "What is 2+2?")
	require.NoError(t, err)

	assert.Equal(t, "4", result.Answer)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, 2, result.Iterations)
	assert.Equal(t, 1, result.ToolCalls)

	require.Len(t, result.Appended, 4)
	assert.Equal(t, conversation.UserMessage("What is 2+2?"), result.Appended[0])
	assert.Equal(t, "call_1", result.Appended[1].ToolCalls[0].ID)
	assert.Equal(t, conversation.ToolResult{ToolCallID: "call_1", Name: "add", Content: "4"}.Message(), result.Appended[2])
	assert.Equal(t, conversation.AssistantMessage("4"), result.Appended[3])
	assert.Equal(t, 5, conv.Len())

	// the second model call sees the answered tool call
	second := client.History(1)
	require.Len(t, second, 4)
	assert.Equal(t, conversation.RoleTool, second[3].Role)

	// the registry is declared to the model
	require.Len(t, client.Tools(0), 1)
	assert.Equal(t, "add", client.Tools(0)[0].Name)
}

func TestResolveTurnUnknownTool(t *testing.T) {
	client := fake.New(
		fake.Calls(fake.Call("c1", "search", map[string]any{"query": "go"})),
		fake.Text("I could not search."),
	)
	rec := &recorder{}
	c := newController(t, client, newRegistry(t, tool.NewAdd()))
	conv := conversation.New("sys")

	result, err := c.ResolveTurn(context.Background(), conv, "search go", rec)
	require.NoError(t, err)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, 2, client.CallCount(), "the turn continues after an unknown tool")

	tools := toolMessages(conv.Messages())
	require.Len(t, tools, 1)
	assert.True(t, tools[0].IsError)
	assert.Equal(t, "c1", tools[0].ToolCallID)
	assert.Equal(t, "Error: unknown tool: search", tools[0].Content)

	var resultEvent *Event
	for i := range rec.events {
		if rec.events[i].Type == EventToolResult {
			resultEvent = &rec.events[i]
		}
	}
	require.NotNil(t, resultEvent)
	assert.True(t, resultEvent.IsError)
	assert.ErrorIs(t, resultEvent.Err, ErrUnknownTool)
}

func TestResolveTurnUnnamedToolCall(t *testing.T) {
	client := fake.New(
		fake.Calls(fake.Call("c1", "", map[string]any{"a": 1.0})),
		fake.Text("ok"),
	)
	c := newController(t, client, newRegistry(t, tool.NewAdd()))
	conv := conversation.New("sys")

	result, err := c.ResolveTurn(context.Background(), conv, "hi")
	require.NoError(t, err)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, "ok", result.Answer)
	assert.Equal(t, 2, client.CallCount(), "the turn continues after a call without a name")

	msgs := conv.Messages()
	require.Len(t, msgs, 5)
	assert.Equal(t, UnnamedTool, msgs[2].ToolCalls[0].Name)

	tools := toolMessages(msgs)
	require.Len(t, tools, 1)
	assert.True(t, tools[0].IsError)
	assert.Equal(t, "c1", tools[0].ToolCallID)
	assert.Equal(t, "Error: unknown tool: "+UnnamedTool, tools[0].Content)
}

func TestResolveTurnUnknownToolIsRepeatable(t *testing.T) {
	for i := range 3 {
		client := fake.New(fake.Calls(fake.Call("c", "search", nil)), fake.Text("done"))
		c := newController(t, client, nil)
		conv := conversation.New("sys")

		_, err := c.ResolveTurn(context.Background(), conv, fmt.Sprintf("try %d", i))
		require.NoError(t, err)
		tools := toolMessages(conv.Messages())
		require.Len(t, tools, 1)
		assert.True(t, tools[0].IsError)
	}
}

func TestResolveTurnIterationLimit(t *testing.T) {
	client := fake.New(fake.Calls(fake.Call("loop", "add", addArgs(1, 1))))
	client.Repeat = true
	rec := &recorder{}
	c := newController(t, client, newRegistry(t, tool.NewAdd()), WithMaxIterations(3))
	conv := conversation.New("sys")

	result, err := c.ResolveTurn(context.Background(), conv, "loop forever", rec)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIterationLimitExceeded)
	assert.Equal(t, 3, client.CallCount(), "exactly maxIterations model calls")
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, 3, result.Iterations)

	var terr *TurnError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 3, terr.Iteration)

	// everything produced so far is kept
	assert.Equal(t, 1+1+3*2, conv.Len())
	assert.NoError(t, conversation.Validate(conv.Messages()))
	assert.Equal(t, EventTurnFailed, rec.types()[len(rec.types())-1])

	// the repeated id was replaced after the first round
	ids := map[string]bool{}
	for _, m := range toolMessages(conv.Messages()) {
		assert.False(t, ids[m.ToolCallID])
		ids[m.ToolCallID] = true
	}
	assert.Len(t, ids, 3)
}

func TestResolveTurnOrderingUnderParallelExecution(t *testing.T) {
	var mu sync.Mutex
	var finished []string
	sleeper := func(name string, d time.Duration) tool.Tool {
		return tool.NewFuncTool(name, "sleeps", nil, func(ctx context.Context, _ map[string]any) (string, error) {
			time.Sleep(d)
			mu.Lock()
			finished = append(finished, name)
			mu.Unlock()
			return "result " + name, nil
		})
	}
	reg := newRegistry(t,
		sleeper("A", 60*time.Millisecond),
		sleeper("B", 30*time.Millisecond),
		sleeper("C", 0),
	)
	client := fake.New(
		fake.Calls(fake.Call("a", "A", nil), fake.Call("b", "B", nil), fake.Call("c", "C", nil)),
		fake.Text("done"),
	)
	c := newController(t, client, reg, WithParallelTools(3))
	conv := conversation.New("sys")

	_, err := c.ResolveTurn(context.Background(), conv, "go")
	require.NoError(t, err)

	tools := toolMessages(conv.Messages())
	require.Len(t, tools, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{tools[0].ToolCallID, tools[1].ToolCallID, tools[2].ToolCallID})
	assert.Equal(t, "result A", tools[0].Content)
	assert.Equal(t, "result C", tools[2].Content)

	// C really finished first, so the order above is not an accident
	assert.Equal(t, "C", finished[0])
}

func TestResolveTurnReferentialIntegrity(t *testing.T) {
	client := fake.New(
		fake.Calls(fake.Call("r1a", "add", addArgs(1, 2)), fake.Call("r1b", "nope", nil)),
		fake.Calls(fake.Call("r2a", "add", addArgs(3, 4))),
		fake.Calls(fake.Call("r3a", "add", map[string]any{"a": "x"}), fake.Call("r3b", "add", addArgs(0, 0)), fake.Call("r3c", "add", addArgs(5, 5))),
		fake.Text("done"),
	)
	c := newController(t, client, newRegistry(t, tool.NewAdd()), WithParallelTools(2))
	conv := conversation.New("sys")

	result, err := c.ResolveTurn(context.Background(), conv, "compute")
	require.NoError(t, err)
	assert.Equal(t, StateDone, result.State)

	msgs := conv.Messages()
	require.NoError(t, conversation.Validate(msgs))

	requested := 0
	for _, m := range msgs {
		requested += len(m.ToolCalls)
	}
	assert.Equal(t, 6, requested)
	assert.Len(t, toolMessages(msgs), requested)
	assert.Equal(t, requested, result.ToolCalls)
	// user, three tool rounds, final answer
	assert.Len(t, result.Appended, 1+3+6+1)

	// every model call saw a conversation without unanswered calls
	for i := range client.CallCount() {
		seen, err := conversation.FromMessages(client.History(i))
		require.NoError(t, err)
		assert.False(t, seen.HasPending(), "call %d", i)
	}
}

func TestResolveTurnLlmUnavailable(t *testing.T) {
	client := fake.New(fake.Fail(llms.FromStatus("groq", 401, errors.New("invalid api key"))))
	rec := &recorder{}
	c := newController(t, client, newRegistry(t, tool.NewAdd()))
	conv := conversation.New("sys")

	result, err := c.ResolveTurn(context.Background(), conv, "hello", rec)
	require.Error(t, err)
	assert.ErrorIs(t, err, llms.ErrUnavailable)
	assert.Equal(t, StateFailed, result.State)

	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, conversation.RoleUser, msgs[1].Role)
	assert.Equal(t, []EventType{EventUserMessage, EventTurnFailed}, rec.types())
	assert.Contains(t, rec.events[1].Content, "invalid api key")
}

func TestResolveTurnModelErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"rate limit", llms.FromStatus("groq", 429, nil), llms.ErrRequest},
		{"server", llms.FromStatus("groq", 503, nil), llms.ErrUnavailable},
		{"unclassified", errors.New("socket closed"), llms.ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newController(t, fake.New(fake.Fail(tt.err)), nil)
			_, err := c.ResolveTurn(context.Background(), conversation.New("sys"), "hi")
			assert.ErrorIs(t, err, tt.kind)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestResolveTurnLLMTimeout(t *testing.T) {
	client := fake.New(fake.Response{Message: conversation.AssistantMessage("late"), Delay: time.Second})
	c := newController(t, client, nil, WithLLMTimeout(20*time.Millisecond))
	conv := conversation.New("sys")

	result, err := c.ResolveTurn(context.Background(), conv, "hi")
	assert.ErrorIs(t, err, llms.ErrRequest)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, 2, conv.Len())
}

func TestResolveTurnToolErrors(t *testing.T) {
	long := strings.Repeat("x", 1000)
	failing := tool.NewFuncTool("fail", "always fails", nil, func(context.Context, map[string]any) (string, error) {
		return "", errors.New(long)
	})
	panicking := tool.NewFuncTool("boom", "panics", nil, func(context.Context, map[string]any) (string, error) {
		panic("kaboom")
	})
	client := fake.New(
		fake.Calls(
			fake.Call("c1", "fail", nil),
			fake.Call("c2", "boom", nil),
			fake.Call("c3", "add", map[string]any{"a": 1.0}),
		),
		fake.Text("recovered"),
	)
	c := newController(t, client, newRegistry(t, failing, panicking, tool.NewAdd()))
	conv := conversation.New("sys")

	result, err := c.ResolveTurn(context.Background(), conv, "go")
	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Answer)

	tools := toolMessages(conv.Messages())
	require.Len(t, tools, 3)
	for _, m := range tools {
		assert.True(t, m.IsError)
	}
	assert.Equal(t, conversation.DefaultTruncateLimit, len([]rune(tools[0].Content)))
	assert.True(t, strings.HasSuffix(tools[0].Content, "..."))
	assert.Equal(t, "Error: panic: kaboom", tools[1].Content)
	assert.Equal(t, `Error: invalid argument "b": missing required field`, tools[2].Content)
}

func TestResolveTurnToolTimeout(t *testing.T) {
	stuck := tool.NewFuncTool("stuck", "never returns", nil, func(context.Context, map[string]any) (string, error) {
		time.Sleep(time.Second)
		return "too late", nil
	})
	client := fake.New(fake.Calls(fake.Call("c1", "stuck", nil)), fake.Text("gave up"))
	c := newController(t, client, newRegistry(t, stuck), WithToolTimeout(20*time.Millisecond))
	conv := conversation.New("sys")

	started := time.Now()
	result, err := c.ResolveTurn(context.Background(), conv, "go")
	require.NoError(t, err)
	assert.Less(t, time.Since(started), 500*time.Millisecond)
	assert.Equal(t, "gave up", result.Answer)

	tools := toolMessages(conv.Messages())
	require.Len(t, tools, 1)
	assert.True(t, tools[0].IsError)
	assert.Equal(t, "Error: timed out after 20ms", tools[0].Content)
}

func TestResolveTurnCancelledBeforeModelCall(t *testing.T) {
	client := fake.New(fake.Text("never"))
	c := newController(t, client, nil)
	conv := conversation.New("sys")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := c.ResolveTurn(ctx, conv, "hi")
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateCancelled, result.State)
	assert.Equal(t, 0, client.CallCount())
	assert.Equal(t, 2, conv.Len())
}

func TestResolveTurnCancelledDuringTools(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cancelling := tool.NewFuncTool("cancel", "cancels the turn", nil, func(toolCtx context.Context, _ map[string]any) (string, error) {
		cancel()
		// the tool keeps running to completion
		assert.NoError(t, toolCtx.Err())
		return "finished", nil
	})
	client := fake.New(
		fake.Calls(fake.Call("c1", "cancel", nil), fake.Call("c2", "add", addArgs(1, 1))),
		fake.Text("never"),
	)
	c := newController(t, client, newRegistry(t, cancelling, tool.NewAdd()))
	conv := conversation.New("sys")

	result, err := c.ResolveTurn(ctx, conv, "go")
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, StateCancelled, result.State)
	assert.Equal(t, 1, client.CallCount())

	// the round that was running completed, nothing after it was added
	msgs := conv.Messages()
	require.Len(t, msgs, 5)
	assert.Equal(t, "finished", msgs[3].Content)
	assert.Equal(t, "2", msgs[4].Content)
	assert.NoError(t, conversation.Validate(msgs))
}

func TestResolveTurnCancelledDuringModelCall(t *testing.T) {
	client := fake.New(fake.Response{Message: conversation.AssistantMessage("late"), Delay: time.Second})
	c := newController(t, client, nil)
	conv := conversation.New("sys")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	result, err := c.ResolveTurn(ctx, conv, "hi")
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, StateCancelled, result.State)
	assert.Equal(t, 2, conv.Len())
}

func TestResolveTurnInvalidInput(t *testing.T) {
	c := newController(t, fake.New(fake.Text("x")), nil)
	ctx := context.Background()

	_, err := c.ResolveTurn(ctx, conversation.New("sys"), "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = c.ResolveTurn(ctx, nil, "hi")
	assert.ErrorIs(t, err, ErrInvalidInput)

	pending := conversation.New("sys")
	require.NoError(t, pending.Append(conversation.UserMessage("hi")))
	require.NoError(t, pending.Append(conversation.AssistantMessage("", fake.Call("c1", "add", nil))))
	_, err = c.ResolveTurn(ctx, pending, "again")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, conversation.ErrPendingToolCalls)
	assert.Equal(t, 3, pending.Len())
}

func TestResolveTurnReplacesBadToolCallIDs(t *testing.T) {
	client := fake.New(
		fake.Calls(fake.Call("dup", "add", addArgs(1, 1)), fake.Call("dup", "add", addArgs(2, 2)), fake.Call("", "add", addArgs(3, 3))),
		fake.Text("done"),
	)
	c := newController(t, client, newRegistry(t, tool.NewAdd()))
	conv := conversation.New("sys")

	_, err := c.ResolveTurn(context.Background(), conv, "go")
	require.NoError(t, err)

	calls := conv.Messages()[2].ToolCalls
	require.Len(t, calls, 3)
	assert.Equal(t, "dup", calls[0].ID)
	assert.True(t, strings.HasPrefix(calls[1].ID, "call_"))
	assert.True(t, strings.HasPrefix(calls[2].ID, "call_"))
	assert.NotEqual(t, calls[1].ID, calls[2].ID)
}

func TestResolveTurnEvents(t *testing.T) {
	client := fake.New(
		fake.Calls(fake.Call("c1", "add", addArgs(2, 2))),
		fake.Text("4"),
	)
	rec := &recorder{}
	panicky := ListenerFunc(func(context.Context, Event) { panic("listener bug") })
	c := newController(t, client, newRegistry(t, tool.NewAdd()), WithListener(panicky))

	_, err := c.ResolveTurn(context.Background(), conversation.New("sys"), "What is 2+2?", rec)
	require.NoError(t, err)

	assert.Equal(t, []EventType{EventUserMessage, EventToolCall, EventToolResult, EventFinalAnswer}, rec.types())
	call := rec.events[1]
	assert.Equal(t, "add", call.ToolName)
	assert.Equal(t, addArgs(2, 2), call.Arguments)
	assert.Equal(t, 1, call.Iteration)
	assert.Equal(t, "4", rec.events[2].Content)
	assert.False(t, rec.events[2].IsError)
	assert.Equal(t, 2, rec.events[3].Iteration)
	assert.Equal(t, StateDone, rec.events[3].State)
	assert.False(t, rec.events[0].Timestamp.IsZero())
}

func TestResolveTurnFreeFunction(t *testing.T) {
	conv := conversation.New("sys")
	result, err := ResolveTurn(context.Background(), conv, "hi", fake.New(fake.Text("hello")), nil, 1)
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Answer)

	_, err = ResolveTurn(context.Background(), conv, "hi", fake.New(fake.Text("hello")), nil, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNew(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)

	_, err = New(fake.New(), nil, WithMaxIterations(-1))
	assert.Error(t, err)

	c, err := New(fake.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxIterations, c.maxIterations)
	assert.Equal(t, DefaultToolTimeout, c.toolTimeout)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting_model", StateAwaitingModel.String())
	assert.Equal(t, "cancelled", StateCancelled.String())
	assert.True(t, StateDone.Terminal())
	assert.False(t, StateExecutingTools.Terminal())
}
