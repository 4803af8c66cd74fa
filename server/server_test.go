package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/toolchat/agent"
	"github.com/smallnest/toolchat/conversation"
	"github.com/smallnest/toolchat/llms"
	"github.com/smallnest/toolchat/llms/fake"
	"github.com/smallnest/toolchat/log"
	"github.com/smallnest/toolchat/session"
	"github.com/smallnest/toolchat/store/memory"
	"github.com/smallnest/toolchat/tool"
)

func newTestServer(t *testing.T, client llms.Client) (*ChatServer, *session.Manager) {
	t.Helper()
	reg, err := tool.NewRegistry(tool.NewAdd())
	require.NoError(t, err)
	ctrl, err := agent.New(client, reg, agent.WithLogger(&log.NoOpLogger{}))
	require.NoError(t, err)
	m, err := session.NewManager(memory.New(), session.Static(ctrl), session.WithLogger(&log.NoOpLogger{}))
	require.NoError(t, err)

	cs := New(m, Options{
		Title:  "Test Chat",
		Models: []string{"small", "large"},
		Tools:  reg.Names(),
		Logger: &log.NoOpLogger{},
	})
	return cs, m
}

type sseEvent struct {
	Name string
	Data string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var cur sseEvent
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.Data = strings.TrimPrefix(line, "data: ")
		case line == "":
			events = append(events, cur)
			cur = sseEvent{}
		}
	}
	return events
}

func names(events []sseEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Name)
	}
	return out
}

func postChat(cs *ChatServer, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	cs.ServeHTTP(rec, req)
	return rec
}

func TestIndexAndConfig(t *testing.T) {
	cs, _ := newTestServer(t, fake.New())

	rec := httptest.NewRecorder()
	cs.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "/api/chat")

	rec = httptest.NewRecorder()
	cs.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var cfg struct {
		ChatTitle    string     `json:"chatTitle"`
		Models       []string   `json:"models"`
		DefaultModel string     `json:"defaultModel"`
		Tools        []toolInfo `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, "Test Chat", cfg.ChatTitle)
	assert.Equal(t, "large", cfg.DefaultModel)
	require.Len(t, cfg.Tools, 1)
	assert.Equal(t, "add", cfg.Tools[0].Name)
	assert.Equal(t, "🔧 Add", cfg.Tools[0].Label)
}

func TestChatStreamsToolRound(t *testing.T) {
	client := fake.New(
		fake.Calls(fake.Call("c1", "add", map[string]any{"a": 2.0, "b": 2.0})),
		fake.Text("2+2 is **4**."),
	)
	cs, m := newTestServer(t, client)
	sess, err := m.Create(context.Background())
	require.NoError(t, err)

	rec := postChat(cs, `{"session_id":"`+sess.ID+`","message":"What is 2+2?","model":"small"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseSSE(t, rec.Body.String())
	assert.Equal(t, []string{EventStart, EventUser, EventToolCall, EventToolResult, EventFinal, EventEnd}, names(events))

	var call toolCallData
	require.NoError(t, json.Unmarshal([]byte(events[2].Data), &call))
	assert.Equal(t, "c1", call.ID)
	assert.Equal(t, "🔧 Add", call.Label)

	var result toolResultData
	require.NoError(t, json.Unmarshal([]byte(events[3].Data), &result))
	assert.Equal(t, "4", result.Content)
	assert.Equal(t, "🔧 External Tool", result.Label)
	assert.False(t, result.IsError)

	var final finalData
	require.NoError(t, json.Unmarshal([]byte(events[4].Data), &final))
	assert.Equal(t, "2+2 is **4**.", final.Content)
	assert.Contains(t, final.HTML, "<strong>4</strong>")

	var end endData
	require.NoError(t, json.Unmarshal([]byte(events[5].Data), &end))
	assert.Equal(t, endData{State: "done", Iterations: 2, ToolCalls: 1}, end)

	// the turn is visible in the history
	rec = httptest.NewRecorder()
	cs.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+sess.ID+"/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var history []historyEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 4)
	assert.Equal(t, conversation.EntryUser, history[0].Kind)
	assert.Equal(t, "🔧 Add", history[1].Label)
	assert.Equal(t, "🔧 External Tool", history[2].Label)
	assert.Contains(t, history[3].HTML, "<strong>4</strong>")
}

func TestChatStreamsFailure(t *testing.T) {
	client := fake.New(fake.Fail(errors.New("connection refused")))
	cs, m := newTestServer(t, client)
	sess, err := m.Create(context.Background())
	require.NoError(t, err)

	rec := postChat(cs, `{"session_id":"`+sess.ID+`","message":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	events := parseSSE(t, rec.Body.String())
	assert.Equal(t, []string{EventStart, EventUser, EventError, EventEnd}, names(events))
	assert.Contains(t, events[2].Data, "Error: ")

	var end endData
	require.NoError(t, json.Unmarshal([]byte(events[3].Data), &end))
	assert.Equal(t, "failed", end.State)
}

func TestChatRejectsBadRequests(t *testing.T) {
	cs, m := newTestServer(t, fake.New(fake.Text("hi")))
	sess, err := m.Create(context.Background())
	require.NoError(t, err)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed", `{`, http.StatusBadRequest},
		{"empty message", `{"session_id":"` + sess.ID + `","message":"  "}`, http.StatusBadRequest},
		{"missing session id", `{"message":"hi"}`, http.StatusBadRequest},
		{"unknown model", `{"session_id":"` + sess.ID + `","message":"hi","model":"gpt-9"}`, http.StatusBadRequest},
		{"unknown session", `{"session_id":"missing","message":"hi"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postChat(cs, tt.body)
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	cs, _ := newTestServer(t, fake.New(fake.Text("hello there")))

	rec := httptest.NewRecorder()
	cs.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions/new", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["session_id"]
	require.NotEmpty(t, id)

	rec = postChat(cs, `{"session_id":"`+id+`","message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	cs.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var infos []sessionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, id, infos[0].ID)
	assert.Equal(t, "hi", infos[0].Title)
	assert.Equal(t, 2, infos[0].MessageCount)

	rec = httptest.NewRecorder()
	cs.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/clear", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	cs.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/history", nil))
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = httptest.NewRecorder()
	cs.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+id, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	cs.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	cs.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/history", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusOf(session.ErrNotFound))
	assert.Equal(t, http.StatusConflict, statusOf(session.ErrTurnInProgress))
	assert.Equal(t, http.StatusBadRequest, statusOf(&agent.TurnError{Kind: agent.ErrInvalidInput}))
	assert.Equal(t, http.StatusInternalServerError, statusOf(errors.New("boom")))
}

func TestStartShutsDown(t *testing.T) {
	cs, _ := newTestServer(t, fake.New())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cs.Start(ctx, "127.0.0.1:0") }()
	cancel()
	assert.NoError(t, <-done)
}
