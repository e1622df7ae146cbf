package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahayak-app/sahayak/pkg/assist"
	"github.com/sahayak-app/sahayak/pkg/config"
	"github.com/sahayak-app/sahayak/pkg/intake"
	"github.com/sahayak-app/sahayak/pkg/providers"
	"github.com/sahayak-app/sahayak/pkg/store"
)

type stubProvider struct {
	content string
	err     error
}

func (p *stubProvider) Chat(ctx context.Context, messages []providers.Message, model string, options map[string]interface{}) (*providers.LLMResponse, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &providers.LLMResponse{Content: p.content, FinishReason: "stop"}, nil
}

func (p *stubProvider) GetDefaultModel() string { return "stub" }

func newTestServer(t *testing.T, p providers.LLMProvider) (*Server, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "sahayak.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	locks := intake.NewTurnLocks()
	intakeSvc := intake.NewService(s, s, p, intake.DefaultLexicon(), intake.Params{}, locks)
	chatSvc := assist.NewService(s, s, p, assist.Params{}, locks)

	return New(config.DefaultConfig(), s, s, intakeSvc, chatSvc), s
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{content: "ok"})
	w := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConversationLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{content: `{"mode":"ask","message":"Got it.","question":"When?"}`})

	w := doJSON(t, srv, http.MethodPost, "/v1/conversations", jsonBody{"user_id": "u1", "tag": "intake"})
	require.Equal(t, http.StatusOK, w.Code)
	var conv struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conv))
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, "New Chat", conv.Title)

	// Same user+tag reuses the conversation.
	w = doJSON(t, srv, http.MethodPost, "/v1/conversations", jsonBody{"user_id": "u1", "tag": "intake"})
	require.Equal(t, http.StatusOK, w.Code)
	var again struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &again))
	assert.Equal(t, conv.ID, again.ID)

	// Run a turn, then read the transcript.
	w = doJSON(t, srv, http.MethodPost, "/v1/conversations/"+conv.ID+"/intake", jsonBody{"user_id": "u1", "text": "my bin was not collected"})
	require.Equal(t, http.StatusOK, w.Code)
	var turn struct {
		Rendered string `json:"rendered"`
		ParsedOK bool   `json:"parsed_ok"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &turn))
	assert.True(t, turn.ParsedOK)
	assert.Equal(t, "Got it. When?", turn.Rendered)

	w = doJSON(t, srv, http.MethodGet, "/v1/conversations/"+conv.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var transcript struct {
		Messages []struct {
			Role string `json:"role"`
			Kind string `json:"kind"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &transcript))
	require.Len(t, transcript.Messages, 2)
	assert.Equal(t, "user", transcript.Messages[0].Role)
	assert.Equal(t, "assistant", transcript.Messages[1].Role)
	assert.Equal(t, "json", transcript.Messages[1].Kind)

	// Bulk clear.
	w = doJSON(t, srv, http.MethodDelete, "/v1/conversations/"+conv.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cleared struct {
		Deleted int `json:"deleted"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cleared))
	assert.Equal(t, 2, cleared.Deleted)
}

func TestIntakeTurn_ValidationAndErrors(t *testing.T) {
	srv, s := newTestServer(t, &stubProvider{err: errors.New("upstream down")})
	conv, err := s.GetOrCreateConversation(context.Background(), "u1", "intake")
	require.NoError(t, err)

	// Missing text.
	w := doJSON(t, srv, http.MethodPost, "/v1/conversations/"+conv.ID+"/intake", jsonBody{"user_id": "u1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Proxy failure maps to 502 and persists no assistant message.
	w = doJSON(t, srv, http.MethodPost, "/v1/conversations/"+conv.ID+"/intake", jsonBody{"user_id": "u1", "text": "hello"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	msgs, err := s.ListMessages(context.Background(), conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
}

func TestListMessages_UnknownConversation(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{content: "ok"})
	w := doJSON(t, srv, http.MethodGet, "/v1/conversations/conv-missing/messages", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatTurn(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{content: "Apply at the passport seva kendra."})

	w := doJSON(t, srv, http.MethodPost, "/v1/conversations", jsonBody{"user_id": "u1", "tag": "general"})
	require.Equal(t, http.StatusOK, w.Code)
	var conv struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conv))

	w = doJSON(t, srv, http.MethodPost, "/v1/conversations/"+conv.ID+"/chat", jsonBody{"user_id": "u1", "text": "how do I renew my passport"})
	require.Equal(t, http.StatusOK, w.Code)
	var turn struct {
		Content string `json:"content"`
		Title   string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &turn))
	assert.Equal(t, "Apply at the passport seva kendra.", turn.Content)
	assert.Equal(t, "Passport Application Help", turn.Title)
}

func TestMemoryEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, &stubProvider{content: "ok"})

	w := doJSON(t, srv, http.MethodPut, "/v1/memory/u1/location", jsonBody{"value": "pune", "type": "fact"})
	require.Equal(t, http.StatusOK, w.Code)
	var fact struct {
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
		Type  string          `json:"type"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fact))
	assert.Equal(t, "location", fact.Key)
	assert.Equal(t, `"pune"`, string(fact.Value))
	assert.Equal(t, "fact", fact.Type)

	// Bad classification rejected.
	w = doJSON(t, srv, http.MethodPut, "/v1/memory/u1/location", jsonBody{"value": "pune", "type": "hunch"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/v1/memory/u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Facts []struct {
			Key string `json:"key"`
		} `json:"facts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Facts, 1)
	assert.Equal(t, "location", list.Facts[0].Key)
}

type jsonBody = map[string]interface{}
