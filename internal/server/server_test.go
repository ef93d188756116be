package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotoba-dev/kotoba/internal/auth"
	"github.com/kotoba-dev/kotoba/internal/config"
	"github.com/kotoba-dev/kotoba/internal/llmclient"
	"github.com/kotoba-dev/kotoba/internal/protocol"
	"github.com/kotoba-dev/kotoba/internal/store"
)

// stubClient replays canned deltas instead of calling a provider and
// records the requests it receives.
type stubClient struct {
	deltas   []string
	err      error
	requests []llmclient.Request
}

func (c *stubClient) ProviderType() config.ProviderType { return config.ProviderAnthropic }
func (c *stubClient) Close() error                      { return nil }

func (c *stubClient) StreamChat(ctx context.Context, req llmclient.Request, onDelta func(string)) (*llmclient.Usage, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	for _, d := range c.deltas {
		onDelta(d)
	}
	return &llmclient.Usage{InputTokens: 12, OutputTokens: 34}, nil
}

func newTestServer(t *testing.T, jwtSecret string, client llmclient.Client) *Server {
	t.Helper()

	cfg, err := config.NewConfig(config.WithConfigDir(t.TempDir()))
	require.NoError(t, err)
	cfg.JWTSecret = jwtSecret
	cfg.Provider.APIKey = "test-key"
	require.NoError(t, cfg.Save())

	st, err := store.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	// Reload so the server sees the JWT secret through Snapshot.
	require.NoError(t, cfg.Reload())

	s, err := New(cfg, st, nil)
	require.NoError(t, err)
	if client != nil {
		s.newClient = func(config.Provider) (llmclient.Client, error) {
			return client, nil
		}
	}
	return s
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, "", nil)
	w := doJSON(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t, "test-secret", nil)

	w := doJSON(t, s, http.MethodGet, "/v1/info", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := auth.NewJWTManager("test-secret").GenerateToken("tester")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/info", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthDisabledWithoutSecret(t *testing.T) {
	s := newTestServer(t, "", nil)
	w := doJSON(t, s, http.MethodGet, "/v1/info", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, "", nil)

	w := doJSON(t, s, http.MethodPost, "/v1/sessions", `{"title":"practice"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created store.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "practice", created.Title)

	w = doJSON(t, s, http.MethodGet, "/v1/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.ID)

	w = doJSON(t, s, http.MethodDelete, "/v1/sessions/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, s, http.MethodDelete, "/v1/sessions/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChat_StreamsPartialAndComplete(t *testing.T) {
	record := `{"originalText": "猫", "translation": "cat", "breakdown": [{"word": "猫", "reading": "ねこ", "meaning": "cat"}]}`
	client := &stubClient{deltas: []string{record[:18], record[18:]}}
	s := newTestServer(t, "", client)

	w := doJSON(t, s, http.MethodPost, "/v1/sessions", `{}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var session store.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))

	w = doJSON(t, s, http.MethodPost, "/v1/sessions/"+session.ID+"/messages", `{"text":"猫"}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Equal(t, "false", w.Header().Get("X-Kotoba-Compacted"))
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")
	assert.Contains(t, body, "event: partial")
	assert.Contains(t, body, "event: complete")
	assert.Contains(t, body, `"translation":"cat"`)
	assert.Contains(t, body, `"input_tokens":12`)

	// Both turns are persisted.
	w = doJSON(t, s, http.MethodGet, "/v1/sessions/"+session.ID+"/messages", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user"`)
	assert.Contains(t, w.Body.String(), `"assistant"`)
}

func TestChat_ReplayedHistoryDropsRedactedImages(t *testing.T) {
	client := &stubClient{deltas: []string{`{"translation": "stop"}`}}
	s := newTestServer(t, "", client)

	w := doJSON(t, s, http.MethodPost, "/v1/sessions", `{}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var session store.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))

	// First turn carries an image. Its payload is redacted at rest.
	first := `{"blocks":[{"type":"text","text":"read this sign"},{"type":"image","media_type":"image/jpeg","data":"aW1hZ2UtYnl0ZXM="}]}`
	w = doJSON(t, s, http.MethodPost, "/v1/sessions/"+session.ID+"/messages", first)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodPost, "/v1/sessions/"+session.ID+"/messages", `{"text":"and this one?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	// The replayed history must not hand the placeholder to the provider
	// as image data.
	require.Len(t, client.requests, 2)
	replayed := client.requests[1].Messages
	for _, msg := range replayed {
		for _, b := range msg.Blocks {
			if b.Type == protocol.BlockTypeImage {
				assert.NotEqual(t, store.ImageRedactedPlaceholder, b.Data)
			}
		}
	}
	assert.Contains(t, replayed[0].FlattenText(), "[image omitted from stored history]")
}

func TestChat_ProviderSetupErrorIsPlainJSON(t *testing.T) {
	s := newTestServer(t, "", nil)
	s.newClient = func(config.Provider) (llmclient.Client, error) {
		return nil, assert.AnError
	}

	w := doJSON(t, s, http.MethodPost, "/v1/sessions", `{}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var session store.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))

	w = doJSON(t, s, http.MethodPost, "/v1/sessions/"+session.ID+"/messages", `{"text":"hi"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Empty(t, w.Header().Get("X-Kotoba-Compacted"))
}

func TestChat_UnknownSession(t *testing.T) {
	s := newTestServer(t, "", &stubClient{})
	w := doJSON(t, s, http.MethodPost, "/v1/sessions/missing/messages", `{"text":"hi"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChat_RequiresContent(t *testing.T) {
	s := newTestServer(t, "", &stubClient{})

	w := doJSON(t, s, http.MethodPost, "/v1/sessions", `{}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var session store.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))

	w = doJSON(t, s, http.MethodPost, "/v1/sessions/"+session.ID+"/messages", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChat_ProviderErrorIsStreamed(t *testing.T) {
	s := newTestServer(t, "", &stubClient{err: assert.AnError})

	w := doJSON(t, s, http.MethodPost, "/v1/sessions", `{}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var session store.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))

	w = doJSON(t, s, http.MethodPost, "/v1/sessions/"+session.ID+"/messages", `{"text":"hi"}`)
	assert.Contains(t, w.Body.String(), "event: error")
}
