package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taurimind/server/internal/conversation"
	"github.com/taurimind/server/internal/log"
	"github.com/taurimind/server/internal/model"
	"github.com/taurimind/server/internal/notify"
	"github.com/taurimind/server/internal/store"
	"github.com/taurimind/server/internal/testutil"
	"github.com/taurimind/server/internal/user"
)

type testServer struct {
	handler  http.Handler
	notifier *testutil.RecorderNotifier
}

func newTestServer(t *testing.T, streamer *testutil.ScriptedStreamer) *testServer {
	t.Helper()

	models, err := model.NewRegistry([]model.Configured{
		{Provider: model.ProviderLocal, Name: "m1", Description: "local model"},
		{Provider: model.ProviderHosted, Name: "m2", Description: "hosted model"},
	})
	require.NoError(t, err)

	st := store.NewMemory()
	rec := &testutil.RecorderNotifier{}
	convs := conversation.NewRegistry(conversation.Deps{
		Store:    st,
		Notifier: rec,
		Streamer: streamer,
		Logger:   log.NewNop(),
	})
	users := user.NewRegistry(user.Deps{
		Store:         st,
		Conversations: convs,
		Logger:        log.NewNop(),
	})

	bus := notify.NewBus(log.NewNop())
	t.Cleanup(func() { _ = bus.Close() })

	srv := NewServer(Deps{
		Models:        models,
		Users:         users,
		Conversations: convs,
		Bus:           bus,
		Logger:        log.NewNop(),
	})
	return &testServer{handler: srv.Handler(), notifier: rec}
}

func (ts *testServer) do(t *testing.T, method, path, owner, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if owner != "" {
		req.Header.Set(UserIDHeader, owner)
	}

	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func (ts *testServer) createConversation(t *testing.T, owner, body string) conversation.Info {
	t.Helper()

	w := ts.do(t, http.MethodPost, "/api/conversations", owner, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var info conversation.Info
	require.NoError(t, json.NewDecoder(w.Body).Decode(&info))
	return info
}

// waitForMessages polls the history endpoint until it carries want
// messages, then returns the final response.
func (ts *testServer) waitForMessages(t *testing.T, owner, id string, want int) *httptest.ResponseRecorder {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		w := ts.do(t, http.MethodGet, "/api/conversations/"+id+"/messages", owner, "")
		if w.Code == http.StatusOK {
			var resp struct {
				Messages []conversation.Message `json:"messages"`
			}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			if len(resp.Messages) >= want {
				return ts.do(t, http.MethodGet, "/api/conversations/"+id+"/messages", owner, "")
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d messages", want)
	return nil
}

func TestListModels(t *testing.T) {
	ts := newTestServer(t, &testutil.ScriptedStreamer{})

	w := ts.do(t, http.MethodGet, "/api/models", "alice", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Models []model.Ref `json:"models"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Models, 2)
	assert.Equal(t, "m1", resp.Models[0].Name)
	assert.Equal(t, "m2", resp.Models[1].Name)
}

func TestCreateConversation_HTTP(t *testing.T) {
	t.Run("creates and returns info", func(t *testing.T) {
		ts := newTestServer(t, &testutil.ScriptedStreamer{})

		info := ts.createConversation(t, "alice", `{"model": "m1"}`)

		assert.Equal(t, "alice", info.OwnerID)
		assert.Equal(t, "m1", info.Model.Name)
		assert.Equal(t, conversation.DefaultTitle, info.Title)
	})

	t.Run("initial prompt titles the conversation and generates", func(t *testing.T) {
		ts := newTestServer(t, &testutil.ScriptedStreamer{Fragments: []string{"hi there"}})

		info := ts.createConversation(t, "alice", `{"model": "m1", "initialPrompt": "hello"}`)
		assert.Equal(t, "hello", info.Title)

		w := ts.waitForMessages(t, "alice", info.ID.String(), 2)
		var resp struct {
			Messages []conversation.Message `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "hello", resp.Messages[0].Content)
		assert.Equal(t, "hi there", resp.Messages[1].Content)
	})

	t.Run("unknown model is rejected", func(t *testing.T) {
		ts := newTestServer(t, &testutil.ScriptedStreamer{})

		w := ts.do(t, http.MethodPost, "/api/conversations", "alice", `{"model": "nope"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing identity is rejected", func(t *testing.T) {
		ts := newTestServer(t, &testutil.ScriptedStreamer{})

		w := ts.do(t, http.MethodPost, "/api/conversations", "", `{"model": "m1"}`)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestListConversations_HTTP(t *testing.T) {
	ts := newTestServer(t, &testutil.ScriptedStreamer{})

	first := ts.createConversation(t, "alice", `{"model": "m1"}`)
	second := ts.createConversation(t, "alice", `{"model": "m2"}`)

	w := ts.do(t, http.MethodGet, "/api/conversations", "alice", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Conversations []conversation.Info `json:"conversations"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Conversations, 2)
	assert.Equal(t, first.ID, resp.Conversations[0].ID)
	assert.Equal(t, second.ID, resp.Conversations[1].ID)

	// Another user's listing is empty.
	w = ts.do(t, http.MethodGet, "/api/conversations", "bob", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Empty(t, resp.Conversations)
}

func TestDeleteConversation_HTTP(t *testing.T) {
	ts := newTestServer(t, &testutil.ScriptedStreamer{})

	info := ts.createConversation(t, "alice", `{"model": "m1"}`)

	w := ts.do(t, http.MethodDelete, "/api/conversations/"+info.ID.String(), "alice", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	// A second delete is not found.
	w = ts.do(t, http.MethodDelete, "/api/conversations/"+info.ID.String(), "alice", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Malformed id.
	w = ts.do(t, http.MethodDelete, "/api/conversations/not-a-uuid", "alice", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetMessages_HTTP(t *testing.T) {
	ts := newTestServer(t, &testutil.ScriptedStreamer{Fragments: []string{"answer"}})

	info := ts.createConversation(t, "alice", `{"model": "m1"}`)
	path := "/api/conversations/" + info.ID.String() + "/messages"

	// Fresh conversation has no content.
	w := ts.do(t, http.MethodGet, path, "alice", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodPost, path[:len(path)-len("/messages")]+"/prompt", "alice", `{"text": "question"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = ts.waitForMessages(t, "alice", info.ID.String(), 2)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	// A matching If-None-Match yields 304 with the same tag.
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set(UserIDHeader, "alice")
	req.Header.Set("If-None-Match", etag)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Equal(t, etag, rec.Header().Get("ETag"))

	// A stale tag yields the full payload again.
	req.Header.Set("If-None-Match", "stale")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, etag, rec.Header().Get("ETag"))

	// Another user never sees the conversation.
	w = ts.do(t, http.MethodGet, path, "bob", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestPrompt_HTTP(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		ts := newTestServer(t, &testutil.ScriptedStreamer{Fragments: []string{"ok"}})
		info := ts.createConversation(t, "alice", `{"model": "m1"}`)

		w := ts.do(t, http.MethodPost, "/api/conversations/"+info.ID.String()+"/prompt", "alice", `{"text": "hi"}`)

		assert.Equal(t, http.StatusAccepted, w.Code)
		ts.waitForMessages(t, "alice", info.ID.String(), 2)
	})

	t.Run("conflict while generating", func(t *testing.T) {
		gate := make(chan struct{})
		ts := newTestServer(t, &testutil.ScriptedStreamer{Fragments: []string{"slow"}, Gate: gate})
		info := ts.createConversation(t, "alice", `{"model": "m1"}`)
		path := "/api/conversations/" + info.ID.String() + "/prompt"

		w := ts.do(t, http.MethodPost, path, "alice", `{"text": "first"}`)
		require.Equal(t, http.StatusAccepted, w.Code)

		w = ts.do(t, http.MethodPost, path, "alice", `{"text": "second"}`)
		assert.Equal(t, http.StatusConflict, w.Code)

		close(gate)
		ts.waitForMessages(t, "alice", info.ID.String(), 2)
	})

	t.Run("unknown conversation", func(t *testing.T) {
		ts := newTestServer(t, &testutil.ScriptedStreamer{})

		w := ts.do(t, http.MethodPost, "/api/conversations/00000000-0000-0000-0000-000000000001/prompt", "alice", `{"text": "hi"}`)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("empty text", func(t *testing.T) {
		ts := newTestServer(t, &testutil.ScriptedStreamer{})
		info := ts.createConversation(t, "alice", `{"model": "m1"}`)

		w := ts.do(t, http.MethodPost, "/api/conversations/"+info.ID.String()+"/prompt", "alice", `{"text": ""}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSwitchModel_HTTP(t *testing.T) {
	ts := newTestServer(t, &testutil.ScriptedStreamer{})
	info := ts.createConversation(t, "alice", `{"model": "m1"}`)
	path := "/api/conversations/" + info.ID.String() + "/model"

	w := ts.do(t, http.MethodPut, path, "alice", `{"model": "m2"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)

	notes := ts.notifier.Named(notify.EventConversationInfoUpdated)
	require.Len(t, notes, 1)
	assert.Equal(t, "m2", notes[0].Payload.(conversation.Info).Model.Name)

	// Unknown model name.
	w = ts.do(t, http.MethodPut, path, "alice", `{"model": "nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
