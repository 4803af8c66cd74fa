package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/smallnest/toolchat/conversation"
	"github.com/smallnest/toolchat/llms"
	"github.com/smallnest/toolchat/log"
	"github.com/smallnest/toolchat/tool"
)

// Controller drives user turns through the model and the tool registry.
// It holds no per-turn state and can serve many conversations concurrently;
// turns on the same conversation must be serialized by the caller.
type Controller struct {
	client        llms.Client
	registry      *tool.Registry
	maxIterations int
	toolTimeout   time.Duration
	llmTimeout    time.Duration
	parallel      int
	truncateLimit int
	listeners     []Listener
	logger        log.Logger
}

// TurnResult describes how a turn ended.
type TurnResult struct {
	// Answer is the content of the final assistant message.
	Answer string
	State  State
	// Iterations is the number of model calls made.
	Iterations int
	// ToolCalls is the number of tool calls answered.
	ToolCalls int
	// Appended holds the messages this turn added, user message first.
	Appended []conversation.Message
}

// New creates a controller. A nil registry offers no tools to the model.
func New(client llms.Client, registry *tool.Registry, opts ...Option) (*Controller, error) {
	if client == nil {
		return nil, errors.New("agent: nil llm client")
	}
	c := defaultController()
	c.client = client
	c.registry = registry
	for _, opt := range opts {
		opt(c)
	}
	if c.maxIterations <= 0 {
		return nil, fmt.Errorf("agent: max iterations must be positive, got %d", c.maxIterations)
	}
	c.logger = log.OrDefault(c.logger)
	c.client = llms.WithTimeout(c.client, c.llmTimeout)
	return c, nil
}

// ResolveTurn resolves one user turn with a one-off controller.
func ResolveTurn(ctx context.Context, conv *conversation.Conversation, input string,
	client llms.Client, registry *tool.Registry, maxIterations int,
) (*TurnResult, error) {
	c, err := New(client, registry, WithMaxIterations(maxIterations))
	if err != nil {
		return nil, &TurnError{Kind: ErrInvalidInput, Err: err}
	}
	return c.ResolveTurn(ctx, conv, input)
}

// ResolveTurn appends input to conv as a user message and alternates model
// calls and tool executions until the model answers without requesting
// tools. Every tool call is answered, in request order, before the next model
// call. Unknown tools and tool failures become error-flagged tool results;
// only an exhausted iteration budget, a failed model call or cancellation end
// the turn early, as a *TurnError.
func (c *Controller) ResolveTurn(ctx context.Context, conv *conversation.Conversation, input string, listeners ...Listener) (*TurnResult, error) {
	if err := checkTurnInput(conv, input); err != nil {
		return nil, &TurnError{Kind: ErrInvalidInput, Err: err}
	}
	listeners = append(append([]Listener(nil), c.listeners...), listeners...)

	start := conv.Len()
	if err := conv.Append(conversation.UserMessage(input)); err != nil {
		return nil, &TurnError{Kind: ErrInvalidInput, Err: err}
	}
	notify(ctx, c.logger, listeners, Event{Type: EventUserMessage, Content: input})

	t := &turn{
		Controller: c,
		conv:       conv,
		listeners:  listeners,
		result:     &TurnResult{State: StateAwaitingModel},
	}
	err := t.run(ctx)
	t.result.Appended = conv.Messages()[start:]
	return t.result, err
}

func checkTurnInput(conv *conversation.Conversation, input string) error {
	switch {
	case conv == nil || conv.Len() == 0:
		return conversation.ErrEmptyConversation
	case strings.TrimSpace(input) == "":
		return errors.New("empty user input")
	case conv.HasPending():
		return conversation.ErrPendingToolCalls
	}
	return nil
}

// turn is the state of one ResolveTurn call.
type turn struct {
	*Controller
	conv      *conversation.Conversation
	listeners []Listener
	result    *TurnResult
}

func (t *turn) run(ctx context.Context) error {
	infos := t.registry.Infos()

	for iteration := 1; ; iteration++ {
		if iteration > t.maxIterations {
			return t.fail(ctx, StateFailed, &TurnError{
				Kind:      ErrIterationLimitExceeded,
				Iteration: iteration - 1,
				Err:       fmt.Errorf("no final answer after %d model calls", t.maxIterations),
			})
		}
		if err := ctx.Err(); err != nil {
			return t.fail(ctx, StateCancelled, &TurnError{Kind: ErrCancelled, Iteration: iteration - 1, Err: err})
		}

		t.result.State = StateAwaitingModel
		t.result.Iterations = iteration
		t.logger.Debug("turn iteration %d: calling model with %d messages", iteration, t.conv.Len())

		msg, err := t.client.Generate(ctx, t.conv.Messages(), infos)
		if err != nil {
			if ctx.Err() != nil {
				return t.fail(ctx, StateCancelled, &TurnError{Kind: ErrCancelled, Iteration: iteration, Err: ctx.Err()})
			}
			return t.fail(ctx, StateFailed, &TurnError{Kind: modelErrorKind(err), Iteration: iteration, Err: err})
		}

		msg.Role = conversation.RoleAssistant
		msg.ToolCallID, msg.Name, msg.IsError = "", "", false
		t.normalizeCalls(msg.ToolCalls)
		if err := t.conv.Append(msg); err != nil {
			return t.fail(ctx, StateFailed, &TurnError{
				Kind:      llms.ErrRequest,
				Iteration: iteration,
				Err:       fmt.Errorf("invalid model response: %w", err),
			})
		}

		if !msg.HasToolCalls() {
			t.result.State = StateDone
			t.result.Answer = msg.Content
			t.logger.Info("turn done after %d model calls and %d tool calls", iteration, t.result.ToolCalls)
			notify(ctx, t.logger, t.listeners, Event{
				Type:      EventFinalAnswer,
				Iteration: iteration,
				Content:   msg.Content,
				State:     StateDone,
			})
			return nil
		}

		t.result.State = StateExecutingTools
		for _, call := range msg.ToolCalls {
			notify(ctx, t.logger, t.listeners, Event{
				Type:       EventToolCall,
				Iteration:  iteration,
				ToolCallID: call.ID,
				ToolName:   call.Name,
				Arguments:  call.Clone().Arguments,
			})
		}

		outcomes := t.executeTools(ctx, msg.ToolCalls)
		for _, o := range outcomes {
			if err := t.conv.Append(o.result.Message()); err != nil {
				// unreachable: every pending call is answered exactly once
				return t.fail(ctx, StateFailed, &TurnError{Kind: ErrToolExecution, Iteration: iteration, Err: err})
			}
			t.result.ToolCalls++
			notify(ctx, t.logger, t.listeners, Event{
				Type:       EventToolResult,
				Iteration:  iteration,
				Content:    conversation.Truncate(o.result.Content, t.truncateLimit),
				ToolCallID: o.result.ToolCallID,
				ToolName:   o.result.Name,
				IsError:    o.result.IsError,
				Err:        o.err,
			})
		}
	}
}

func (t *turn) fail(ctx context.Context, state State, err *TurnError) error {
	t.result.State = state
	if state == StateCancelled {
		t.logger.Info("turn cancelled: %v", err)
	} else {
		t.logger.Error("turn failed: %v", err)
	}
	notify(ctx, t.logger, t.listeners, Event{
		Type:      EventTurnFailed,
		Iteration: err.Iteration,
		Content:   err.Error(),
		State:     state,
		Err:       err,
	})
	return err
}

func modelErrorKind(err error) error {
	if errors.Is(err, llms.ErrRequest) {
		return llms.ErrRequest
	}
	return llms.ErrUnavailable
}

// UnnamedTool replaces the name of tool calls that arrive without one. It is
// never registered, so such calls are answered as unknown tools.
const UnnamedTool = "unnamed_tool"

// normalizeCalls gives every call an id that is unique in the conversation,
// a name and non-nil arguments.
func (t *turn) normalizeCalls(calls []conversation.ToolCall) {
	seen := make(map[string]struct{}, len(calls))
	for i := range calls {
		id := calls[i].ID
		_, dup := seen[id]
		if id == "" || dup || t.conv.HasToolCallID(id) {
			calls[i].ID = "call_" + uuid.NewString()
		}
		seen[calls[i].ID] = struct{}{}
		if strings.TrimSpace(calls[i].Name) == "" {
			calls[i].Name = UnnamedTool
		}
		if calls[i].Arguments == nil {
			calls[i].Arguments = map[string]any{}
		}
	}
}

type toolOutcome struct {
	result conversation.ToolResult
	err    error
}

// executeTools runs one round of calls. Tools are detached from caller
// cancellation so that the round always completes; each is bounded by the
// tool timeout instead.
func (t *turn) executeTools(ctx context.Context, calls []conversation.ToolCall) []toolOutcome {
	toolCtx := context.WithoutCancel(ctx)
	outcomes := make([]toolOutcome, len(calls))

	if t.parallel <= 1 || len(calls) == 1 {
		for i, call := range calls {
			outcomes[i] = t.executeTool(toolCtx, call)
		}
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(t.parallel)
	for i, call := range calls {
		g.Go(func() error {
			outcomes[i] = t.executeTool(toolCtx, call)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (t *turn) executeTool(ctx context.Context, call conversation.ToolCall) toolOutcome {
	res := conversation.ToolResult{ToolCallID: call.ID, Name: call.Name}

	if _, ok := t.registry.Lookup(call.Name); !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
		t.logger.Warn("model requested unknown tool %q", call.Name)
		res.IsError = true
		res.Content = conversation.Truncate("Error: "+err.Error(), t.truncateLimit)
		return toolOutcome{result: res, err: err}
	}

	if t.toolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.toolTimeout)
		defer cancel()
	}

	type output struct {
		content string
		err     error
	}
	done := make(chan output, 1)
	started := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- output{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		content, err := t.registry.Execute(ctx, call.Name, call.Arguments)
		done <- output{content: content, err: err}
	}()

	var out output
	select {
	case out = <-done:
	case <-ctx.Done():
		out.err = fmt.Errorf("timed out after %v", t.toolTimeout)
	}
	t.logger.Debug("tool %s took %v", call.Name, time.Since(started).Round(time.Millisecond))

	if out.err != nil {
		err := fmt.Errorf("%w: %s: %w", ErrToolExecution, call.Name, out.err)
		t.logger.Warn("tool %s failed: %v", call.Name, out.err)
		res.IsError = true
		res.Content = conversation.Truncate("Error: "+out.err.Error(), t.truncateLimit)
		return toolOutcome{result: res, err: err}
	}
	res.Content = out.content
	return toolOutcome{result: res}
}
