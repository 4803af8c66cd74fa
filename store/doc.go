// Package store persists chat sessions.
//
// A Record holds both the model-facing message history of a session and the
// transcript shown to people. ConversationStore is implemented by several
// backends:
//
//   - memory: process-local map, the default
//   - file: one JSON document per session in a directory
//   - sqlite: database/sql with github.com/mattn/go-sqlite3
//   - redis: github.com/redis/go-redis/v9 with an index set of session ids
//   - postgres: github.com/jackc/pgx/v5 connection pool with JSONB columns
//
// Every backend returns ErrNotFound from Load for unknown ids and lists
// records most recently updated first.
//
//	st := memory.New()
//	_ = st.Save(ctx, &store.Record{ID: "s1", Messages: conv.Messages()})
//	rec, err := st.Load(ctx, "s1")
package store
