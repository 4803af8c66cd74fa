package conversation

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrEmptyConversation is returned when a conversation has no messages.
	ErrEmptyConversation = errors.New("conversation is empty")
	// ErrNoSystemMessage is returned when a restored history does not start with a system message.
	ErrNoSystemMessage = errors.New("conversation must start with a system message")
	// ErrInvalidRole is returned for messages carrying an unknown role.
	ErrInvalidRole = errors.New("invalid message role")
	// ErrOrphanToolMessage is returned when a tool message answers no pending tool call.
	ErrOrphanToolMessage = errors.New("tool message does not answer a pending tool call")
	// ErrPendingToolCalls is returned when a non-tool message is appended while tool calls are unanswered.
	ErrPendingToolCalls = errors.New("conversation has unanswered tool calls")
	// ErrInvalidToolCall is returned for tool calls with a missing or duplicate id or a missing name.
	ErrInvalidToolCall = errors.New("invalid tool call")
)

// Conversation is an append-only message history.
//
// Every tool message answers exactly one earlier, still unanswered tool call of
// the most recent assistant message. A Conversation is not safe for concurrent
// use; it is owned by one turn at a time.
type Conversation struct {
	messages []Message
	pending  []string
	seen     map[string]struct{}
}

// New creates a conversation seeded with a system message.
func New(systemPrompt string) *Conversation {
	c := &Conversation{seen: make(map[string]struct{})}
	c.messages = append(c.messages, SystemMessage(systemPrompt))
	return c
}

// FromMessages rebuilds a conversation from a stored history, re-checking every
// invariant on the way.
func FromMessages(msgs []Message) (*Conversation, error) {
	if len(msgs) == 0 {
		return nil, ErrEmptyConversation
	}
	if msgs[0].Role != RoleSystem {
		return nil, ErrNoSystemMessage
	}
	c := New(msgs[0].Content)
	for i, m := range msgs[1:] {
		if err := c.Append(m); err != nil {
			return nil, fmt.Errorf("message %d: %w", i+1, err)
		}
	}
	return c, nil
}

// Validate reports whether msgs forms a consistent conversation.
func Validate(msgs []Message) error {
	_, err := FromMessages(msgs)
	return err
}

// Append adds m to the end of the conversation after checking it against the
// pending tool calls.
func (c *Conversation) Append(m Message) error {
	if !m.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, m.Role)
	}

	if m.Role == RoleTool {
		idx := slices.Index(c.pending, m.ToolCallID)
		if m.ToolCallID == "" || idx < 0 {
			return fmt.Errorf("%w: %q", ErrOrphanToolMessage, m.ToolCallID)
		}
		c.pending = slices.Delete(c.pending, idx, idx+1)
		c.messages = append(c.messages, m)
		return nil
	}

	if len(c.pending) > 0 {
		return fmt.Errorf("%w: %v", ErrPendingToolCalls, c.pending)
	}

	if m.Role == RoleAssistant && len(m.ToolCalls) > 0 {
		ids := make(map[string]struct{}, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			if tc.ID == "" || tc.Name == "" {
				return fmt.Errorf("%w: id=%q name=%q", ErrInvalidToolCall, tc.ID, tc.Name)
			}
			if _, dup := c.seen[tc.ID]; dup {
				return fmt.Errorf("%w: duplicate id %q", ErrInvalidToolCall, tc.ID)
			}
			if _, dup := ids[tc.ID]; dup {
				return fmt.Errorf("%w: duplicate id %q", ErrInvalidToolCall, tc.ID)
			}
			ids[tc.ID] = struct{}{}
		}
		for _, tc := range m.ToolCalls {
			c.seen[tc.ID] = struct{}{}
			c.pending = append(c.pending, tc.ID)
		}
	} else {
		m.ToolCalls = nil
	}

	c.messages = append(c.messages, m.Clone())
	return nil
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []Message {
	return CloneMessages(c.messages)
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Last returns the most recent message.
func (c *Conversation) Last() Message {
	return c.messages[len(c.messages)-1].Clone()
}

// Pending returns the ids of tool calls not yet answered, in request order.
func (c *Conversation) Pending() []string {
	return slices.Clone(c.pending)
}

// HasPending reports whether any tool call is still unanswered.
func (c *Conversation) HasPending() bool {
	return len(c.pending) > 0
}

// HasToolCallID reports whether id was already used by a tool call.
func (c *Conversation) HasToolCallID(id string) bool {
	_, ok := c.seen[id]
	return ok
}

// SystemPrompt returns the content of the initial system message.
func (c *Conversation) SystemPrompt() string {
	return c.messages[0].Content
}

// Reset replaces the history with a fresh one holding only the initial system message.
func (c *Conversation) Reset() {
	c.messages = []Message{c.messages[0]}
	c.pending = nil
	c.seen = make(map[string]struct{})
}
