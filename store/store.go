package store

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/smallnest/toolchat/conversation"
)

// ErrNotFound is returned when no record exists for an id.
var ErrNotFound = errors.New("conversation not found")

// Record is the persisted form of one chat session.
type Record struct {
	ID         string                 `json:"id"`
	Title      string                 `json:"title,omitempty"`
	Messages   []conversation.Message `json:"messages"`
	Transcript []conversation.Entry   `json:"transcript"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
	Version    int                    `json:"version"`
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Messages = conversation.CloneMessages(r.Messages)
	if r.Transcript != nil {
		c.Transcript = make([]conversation.Entry, len(r.Transcript))
		for i, e := range r.Transcript {
			c.Transcript[i] = e.Clone()
		}
	}
	return &c
}

// ConversationStore persists session records.
type ConversationStore interface {
	// Save inserts or replaces the record with the same id.
	Save(ctx context.Context, record *Record) error

	// Load retrieves a record by id, returning ErrNotFound if absent.
	Load(ctx context.Context, id string) (*Record, error)

	// List returns all records, most recently updated first.
	List(ctx context.Context) ([]*Record, error)

	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error
}

// SortByUpdated orders records most recently updated first, breaking ties by id.
func SortByUpdated(records []*Record) {
	slices.SortFunc(records, func(a, b *Record) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
