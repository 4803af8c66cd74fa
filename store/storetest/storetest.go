// Package storetest checks ConversationStore implementations against the
// behavior shared by every backend.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/smallnest/toolchat/conversation"
	"github.com/smallnest/toolchat/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewRecord builds a record holding one answered tool round.
func NewRecord(id string, updated time.Time) *store.Record {
	return &store.Record{
		ID:    id,
		Title: "What is 2+2?",
		Messages: []conversation.Message{
			conversation.SystemMessage("You are a helpful assistant."),
			conversation.UserMessage("What is 2+2?"),
			conversation.AssistantMessage("", conversation.ToolCall{
				ID: "call_1", Name: "add", Arguments: map[string]any{"a": 2.0, "b": 2.0},
			}),
			conversation.ToolResult{ToolCallID: "call_1", Name: "add", Content: "4"}.Message(),
			conversation.AssistantMessage("2+2 is 4."),
		},
		Transcript: []conversation.Entry{
			{Kind: conversation.EntryUser, Content: "What is 2+2?", Timestamp: updated},
			{Kind: conversation.EntryToolCall, ToolName: "add", Arguments: map[string]any{"a": 2.0, "b": 2.0}, Timestamp: updated},
			{Kind: conversation.EntryToolResult, ToolName: "add", Content: "4", Timestamp: updated},
			{Kind: conversation.EntryAssistant, Content: "2+2 is 4.", Timestamp: updated},
		},
		CreatedAt: updated.Add(-time.Minute),
		UpdatedAt: updated,
		Version:   1,
	}
}

// Run exercises st. The store must start empty.
func Run(t *testing.T, st store.ConversationStore) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	t.Run("load missing", func(t *testing.T) {
		_, err := st.Load(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("save and load", func(t *testing.T) {
		rec := NewRecord("round-trip", now)
		require.NoError(t, st.Save(ctx, rec))

		loaded, err := st.Load(ctx, rec.ID)
		require.NoError(t, err)
		assertSameRecord(t, rec, loaded)
	})

	t.Run("save replaces", func(t *testing.T) {
		rec := NewRecord("replace", now)
		require.NoError(t, st.Save(ctx, rec))

		rec.Messages = rec.Messages[:1]
		rec.Transcript = nil
		rec.Version = 2
		require.NoError(t, st.Save(ctx, rec))

		loaded, err := st.Load(ctx, rec.ID)
		require.NoError(t, err)
		assert.Len(t, loaded.Messages, 1)
		assert.Empty(t, loaded.Transcript)
		assert.Equal(t, 2, loaded.Version)
	})

	t.Run("list newest first", func(t *testing.T) {
		require.NoError(t, st.Save(ctx, NewRecord("older", now.Add(-time.Hour))))
		require.NoError(t, st.Save(ctx, NewRecord("newer", now.Add(time.Hour))))

		records, err := st.List(ctx)
		require.NoError(t, err)
		require.Len(t, records, 4)
		assert.Equal(t, "newer", records[0].ID)
		assert.Equal(t, "older", records[len(records)-1].ID)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, st.Delete(ctx, "older"))
		_, err := st.Load(ctx, "older")
		assert.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, st.Delete(ctx, "older"))

		records, err := st.List(ctx)
		require.NoError(t, err)
		assert.Len(t, records, 3)
	})
}

func assertSameRecord(t *testing.T, want, got *store.Record) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Messages, got.Messages)
	require.Len(t, got.Transcript, len(want.Transcript))
	for i := range want.Transcript {
		assert.Equal(t, want.Transcript[i].Kind, got.Transcript[i].Kind)
		assert.Equal(t, want.Transcript[i].Content, got.Transcript[i].Content)
		assert.Equal(t, want.Transcript[i].Arguments, got.Transcript[i].Arguments)
		assert.True(t, want.Transcript[i].Timestamp.Equal(got.Transcript[i].Timestamp))
	}
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt))
	assert.Equal(t, want.Version, got.Version)
}
