package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smallnest/toolchat/agent"
	"github.com/smallnest/toolchat/conversation"
	"github.com/smallnest/toolchat/log"
	"github.com/smallnest/toolchat/store"
)

// DefaultSystemPrompt seeds new sessions.
const DefaultSystemPrompt = "You are a helpful assistant. Use the available tools to look up facts you are not sure about, then answer concisely."

const titleLimit = 50

var (
	// ErrNotFound is returned for unknown session ids.
	ErrNotFound = store.ErrNotFound
	// ErrTurnInProgress is returned when a session is already resolving a turn.
	ErrTurnInProgress = errors.New("a turn is already in progress for this session")
)

// Manager owns the chat sessions: it creates them, serializes the turns of
// each one and persists every finished turn.
type Manager struct {
	store        store.ConversationStore
	factory      Factory
	systemPrompt string
	logger       log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithSystemPrompt sets the system message of new sessions.
func WithSystemPrompt(prompt string) Option {
	return func(m *Manager) {
		m.systemPrompt = prompt
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a session manager.
func NewManager(st store.ConversationStore, factory Factory, opts ...Option) (*Manager, error) {
	if st == nil {
		return nil, errors.New("session: nil store")
	}
	if factory == nil {
		return nil, errors.New("session: nil resolver factory")
	}
	m := &Manager{
		store:        st,
		factory:      factory,
		systemPrompt: DefaultSystemPrompt,
		locks:        make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = log.OrDefault(m.logger)
	return m, nil
}

func (m *Manager) lock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// acquire takes the turn lock of a session without waiting.
func (m *Manager) acquire(id string) (func(), error) {
	l := m.lock(id)
	if !l.TryLock() {
		return nil, ErrTurnInProgress
	}
	return l.Unlock, nil
}

// load reads a session under its turn lock. Unknown ids give up their lock
// entry so that lookups of made-up ids leave nothing behind.
func (m *Manager) load(ctx context.Context, id string) (*store.Record, error) {
	rec, err := m.store.Load(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		m.mu.Lock()
		delete(m.locks, id)
		m.mu.Unlock()
	}
	return rec, err
}

// Create starts a new session holding only the system message.
func (m *Manager) Create(ctx context.Context) (*store.Record, error) {
	now := time.Now()
	rec := &store.Record{
		ID:        uuid.New().String(),
		Messages:  conversation.New(m.systemPrompt).Messages(),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
	if err := m.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	m.logger.Info("created session %s", rec.ID)
	return rec, nil
}

// Get returns the last saved state of a session.
func (m *Manager) Get(ctx context.Context, id string) (*store.Record, error) {
	return m.store.Load(ctx, id)
}

// List returns all sessions, most recently updated first.
func (m *Manager) List(ctx context.Context) ([]*store.Record, error) {
	return m.store.List(ctx)
}

// Delete removes a session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	release, err := m.acquire(id)
	if err != nil {
		return err
	}
	defer release()

	if _, err := m.load(ctx, id); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	m.mu.Lock()
	delete(m.locks, id)
	m.mu.Unlock()
	m.logger.Info("deleted session %s", id)
	return nil
}

// Clear resets a session to its system message and wipes its transcript.
func (m *Manager) Clear(ctx context.Context, id string) (*store.Record, error) {
	release, err := m.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()

	rec, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	conv, err := conversation.FromMessages(rec.Messages)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	conv.Reset()

	rec.Messages = conv.Messages()
	rec.Transcript = nil
	rec.Title = ""
	rec.UpdatedAt = time.Now()
	rec.Version++
	if err := m.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("clear session: %w", err)
	}
	return rec, nil
}

// Run resolves one turn of a session with the default model.
func (m *Manager) Run(ctx context.Context, id, input string, listeners ...agent.Listener) (*agent.TurnResult, error) {
	return m.RunModel(ctx, id, "", input, listeners...)
}

// RunModel resolves one turn of a session with the named model. The session
// is saved once the turn ends, whether it produced an answer or failed; a
// turn rejected as invalid input leaves the session untouched.
func (m *Manager) RunModel(ctx context.Context, id, model, input string, listeners ...agent.Listener) (*agent.TurnResult, error) {
	release, err := m.acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()

	rec, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	resolver, err := m.factory(model)
	if err != nil {
		return nil, err
	}
	conv, err := conversation.FromMessages(rec.Messages)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}

	rc := &recorder{}
	result, turnErr := resolver.ResolveTurn(ctx, conv, input, append([]agent.Listener{rc}, listeners...)...)
	if turnErr != nil && errors.Is(turnErr, agent.ErrInvalidInput) {
		return result, turnErr
	}

	rec.Messages = conv.Messages()
	rec.Transcript = append(rec.Transcript, rc.entries...)
	if rec.Title == "" {
		rec.Title = conversation.Truncate(input, titleLimit)
	}
	rec.UpdatedAt = time.Now()
	rec.Version++

	// the turn's context may be cancelled already, the save must still happen
	if err := m.store.Save(context.WithoutCancel(ctx), rec); err != nil {
		m.logger.Error("failed to save session %s: %v", id, err)
		if turnErr == nil {
			return result, fmt.Errorf("save session: %w", err)
		}
	}
	return result, turnErr
}
