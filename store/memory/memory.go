// Package memory provides a process-local conversation store.
package memory

import (
	"context"
	"sync"

	"github.com/smallnest/toolchat/store"
)

// Store keeps records in process memory. Records are copied on the way in
// and out so callers never share state with the store.
type Store struct {
	mu      sync.RWMutex
	records map[string]*store.Record
}

var _ store.ConversationStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{records: make(map[string]*store.Record)}
}

// Save stores a copy of record.
func (s *Store) Save(_ context.Context, record *store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record.Clone()
	return nil
}

// Load retrieves a record by id.
func (s *Store) Load(_ context.Context, id string) (*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec.Clone(), nil
}

// List returns all records, most recently updated first.
func (s *Store) List(_ context.Context) ([]*store.Record, error) {
	s.mu.RLock()
	records := make([]*store.Record, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, rec.Clone())
	}
	s.mu.RUnlock()

	store.SortByUpdated(records)
	return records, nil
}

// Delete removes a record.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}
