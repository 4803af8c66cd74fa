package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/smallnest/toolchat/agent"
	"github.com/smallnest/toolchat/conversation"
	"github.com/smallnest/toolchat/log"
	"github.com/smallnest/toolchat/render"
	"github.com/smallnest/toolchat/session"
	"github.com/smallnest/toolchat/store"
)

//go:embed static
var staticFiles embed.FS

// Options configures the chat server.
type Options struct {
	Title string
	// Models is the menu offered to the page; the first entry is the default
	// unless DefaultModel is set.
	Models       []string
	DefaultModel string
	// Tools are the names of the registered tools, shown on the page.
	Tools  []string
	Logger log.Logger
}

// ChatServer serves the chat page and its JSON and SSE API.
type ChatServer struct {
	sessions *session.Manager
	opts     Options
	logger   log.Logger
	mux      *http.ServeMux
}

// New creates a chat server over a session manager.
func New(sessions *session.Manager, opts Options) *ChatServer {
	if opts.Title == "" {
		opts.Title = "Multi-Tool AI Agent"
	}
	if opts.DefaultModel == "" && len(opts.Models) > 0 {
		opts.DefaultModel = opts.Models[len(opts.Models)-1]
	}
	cs := &ChatServer{
		sessions: sessions,
		opts:     opts,
		logger:   log.OrDefault(opts.Logger),
		mux:      http.NewServeMux(),
	}
	cs.routes()
	return cs
}

func (cs *ChatServer) routes() {
	static, _ := fs.Sub(staticFiles, "static")

	cs.mux.HandleFunc("GET /{$}", cs.handleIndex)
	cs.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	cs.mux.HandleFunc("GET /api/config", cs.handleConfig)
	cs.mux.HandleFunc("POST /api/sessions/new", cs.handleNewSession)
	cs.mux.HandleFunc("GET /api/sessions", cs.handleListSessions)
	cs.mux.HandleFunc("GET /api/sessions/{id}/history", cs.handleGetHistory)
	cs.mux.HandleFunc("POST /api/sessions/{id}/clear", cs.handleClearSession)
	cs.mux.HandleFunc("DELETE /api/sessions/{id}", cs.handleDeleteSession)
	cs.mux.HandleFunc("POST /api/chat", cs.handleChat)
}

// ServeHTTP implements http.Handler.
func (cs *ChatServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cs.mux.ServeHTTP(w, r)
}

// Start serves on addr until ctx is done, then shuts down gracefully.
func (cs *ChatServer) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           cs,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		cs.logger.Info("chat server starting on http://localhost%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	cs.logger.Info("shutting down chat server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusOf maps session and turn errors to HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrTurnInProgress):
		return http.StatusConflict
	case errors.Is(err, agent.ErrInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// handleIndex serves the main HTML page
func (cs *ChatServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	data, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "page not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

type toolInfo struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// handleConfig returns the chat configuration
func (cs *ChatServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	tools := make([]toolInfo, 0, len(cs.opts.Tools))
	for _, name := range cs.opts.Tools {
		tools = append(tools, toolInfo{Name: name, Label: render.ToolLabel(name)})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chatTitle":    cs.opts.Title,
		"models":       cs.opts.Models,
		"defaultModel": cs.opts.DefaultModel,
		"tools":        tools,
	})
}

// handleNewSession creates a new chat session
func (cs *ChatServer) handleNewSession(w http.ResponseWriter, r *http.Request) {
	rec, err := cs.sessions.Create(r.Context())
	if err != nil {
		cs.logger.Error("failed to create session: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": rec.ID})
}

type sessionInfo struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// handleListSessions returns all sessions, most recently updated first
func (cs *ChatServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	records, err := cs.sessions.List(r.Context())
	if err != nil {
		cs.logger.Error("failed to list sessions: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	infos := make([]sessionInfo, 0, len(records))
	for _, rec := range records {
		title := rec.Title
		if title == "" {
			title = "New chat"
		}
		infos = append(infos, sessionInfo{
			ID:           rec.ID,
			Title:        title,
			MessageCount: len(rec.Transcript),
			CreatedAt:    rec.CreatedAt,
			UpdatedAt:    rec.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, infos)
}

type historyEntry struct {
	Kind      conversation.EntryKind `json:"kind"`
	Content   string                 `json:"content"`
	HTML      string                 `json:"html,omitempty"`
	Label     string                 `json:"label,omitempty"`
	Query     string                 `json:"query,omitempty"`
	ToolName  string                 `json:"tool_name,omitempty"`
	IsError   bool                   `json:"is_error,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func toHistory(entries []conversation.Entry) []historyEntry {
	out := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		h := historyEntry{
			Kind:      e.Kind,
			Content:   e.Content,
			ToolName:  e.ToolName,
			IsError:   e.IsError,
			Timestamp: e.Timestamp,
		}
		switch e.Kind {
		case conversation.EntryAssistant:
			h.HTML = string(render.Markdown(e.Content))
		case conversation.EntryToolCall:
			h.Label = render.ToolLabel(e.ToolName)
			h.Query = render.QueryPreview(e.Arguments)
		case conversation.EntryToolResult:
			h.Label = render.ResultLabel(e.ToolName)
		}
		out = append(out, h)
	}
	return out
}

// handleGetHistory returns the visible transcript of a session
func (cs *ChatServer) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	rec, err := cs.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toHistory(rec.Transcript))
}

// handleClearSession resets a session to its system message
func (cs *ChatServer) handleClearSession(w http.ResponseWriter, r *http.Request) {
	if _, err := cs.sessions.Clear(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteSession deletes a session
func (cs *ChatServer) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := cs.sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Model     string `json:"model"`
}

// handleChat resolves one turn and streams its events
func (cs *ChatServer) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "session_id and message are required")
		return
	}
	if req.Model != "" && !slices.Contains(cs.opts.Models, req.Model) {
		writeError(w, http.StatusBadRequest, "model not allowed: "+req.Model)
		return
	}

	sse, ok := newSSEWriter(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	cs.logger.Info("chat request for session %s", req.SessionID)
	listener := &streamListener{sse: sse, logger: cs.logger}
	result, err := cs.sessions.RunModel(r.Context(), req.SessionID, req.Model, req.Message, listener)

	if err != nil && !sse.started {
		// rejected before the turn began
		writeError(w, statusOf(err), err.Error())
		return
	}
	if err != nil && !listener.failed {
		sse.send(EventError, map[string]string{"error": session.FailureText(err)})
	}

	end := endData{State: agent.StateFailed.String()}
	if result != nil {
		end = endData{State: result.State.String(), Iterations: result.Iterations, ToolCalls: result.ToolCalls}
	}
	sse.send(EventEnd, end)
}
