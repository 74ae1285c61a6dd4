//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/printdesk/internal/agent"
	"github.com/ashureev/printdesk/internal/domain"
	"github.com/ashureev/printdesk/internal/identity"
	"github.com/ashureev/printdesk/internal/store"
)

type testEnv struct {
	handler *Handler
	router  http.Handler
	repo    *store.SQLiteStore
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "printdesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	router, err := agent.NewDefaultRouter(agent.DefaultRouterConfig{Chooser: agent.NewChooser(11)})
	require.NoError(t, err)
	svc, err := agent.NewService(router, repo)
	require.NoError(t, err)

	h := NewHandler(svc, repo, opts)
	return &testEnv{
		handler: h,
		router:  NewRouter(h, RouterConfig{AllowedOrigins: []string{"*"}, IsDevelopment: true}),
		repo:    repo,
	}
}

func (e *testEnv) do(t *testing.T, method, path, sessionID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(identity.SessionHeaderName, sessionID)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestChatGratitude(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{})
	rec := env.do(t, http.MethodPost, "/api/chat", "s-http", ChatRequest{
		Message: "thank you!",
		Intent:  &IntentPayload{Type: agent.IntentGratitude, Confidence: 0.9},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "s-http", rec.Header().Get(identity.SessionHeaderName))

	resp := decode[agent.Response](t, rec)
	assert.Equal(t, "gratitude", resp.Metadata.HandlerName)
	assert.Equal(t, 0.95, resp.Metadata.Confidence)
	assert.NotEmpty(t, resp.Content)
}

func TestChatRejectsBadRequests(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{MaxRequestBodyBytes: 128})

	tests := []struct {
		name string
		body any
		want int
	}{
		{name: "malformed json", body: "{", want: http.StatusBadRequest},
		{name: "empty message", body: ChatRequest{Message: "  ", Intent: &IntentPayload{Type: "gratitude"}}, want: http.StatusBadRequest},
		{name: "missing intent without classifier", body: ChatRequest{Message: "hello"}, want: http.StatusBadRequest},
		{name: "confidence out of range", body: ChatRequest{Message: "hi", Intent: &IntentPayload{Type: "gratitude", Confidence: 3}}, want: http.StatusBadRequest},
		{name: "too large", body: ChatRequest{Message: strings.Repeat("x", 300), Intent: &IntentPayload{Type: "gratitude"}}, want: http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/chat", "s-bad", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
		})
	}
}

func TestChatRateLimited(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(1, time.Minute)
	t.Cleanup(limiter.Close)
	env := newTestEnv(t, Options{Limiter: limiter})

	body := ChatRequest{Message: "thanks", Intent: &IntentPayload{Type: "gratitude"}}
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/chat", "s-rl", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, env.do(t, http.MethodPost, "/api/chat", "s-rl-other", body).Code,
		"a new session ID does not reset the client's budget")
}

func TestChatRateLimitIgnoresSpoofedForwardingHeaders(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(1, time.Minute)
	t.Cleanup(limiter.Close)
	env := newTestEnv(t, Options{Limiter: limiter})

	codes := make([]int, 0, 5)
	for i := range 5 {
		body, err := json.Marshal(ChatRequest{Message: "thanks", Intent: &IntentPayload{Type: "gratitude"}})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(body))
		req.RemoteAddr = "198.51.100.4:40000"
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.0.0.%d", i+1))
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.1.%d", i+1))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{
		http.StatusOK,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
	}, codes)
}

func TestRouterTrustsProxyHeadersWhenConfigured(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(1, time.Minute)
	t.Cleanup(limiter.Close)
	env := newTestEnv(t, Options{Limiter: limiter})
	router := NewRouter(env.handler, RouterConfig{AllowedOrigins: []string{"*"}, TrustProxyHeaders: true})

	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		body, err := json.Marshal(ChatRequest{Message: "thanks", Intent: &IntentPayload{Type: "gratitude"}})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(body))
		req.RemoteAddr = "192.0.2.10:443"
		req.Header.Set("X-Real-IP", ip)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "client %s behind the proxy has its own budget", ip)
	}
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{})
	const sid = "s-life"

	rec := env.do(t, http.MethodPut, "/api/session/artwork", sid, ArtworkRequest{FileName: "poster.png", Format: "png", Width: 3000, Height: 2832})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/chat", sid, ChatRequest{
		Message: "What DPI at 26.6 × 24.0 cm?",
		Intent:  &IntentPayload{Type: agent.IntentSizeToDPI},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var chat struct {
		Success  bool                   `json:"success"`
		Data     map[string]any         `json:"data"`
		Metadata agent.ResponseMetadata `json:"metadata"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&chat))
	assert.True(t, chat.Success)
	assert.EqualValues(t, 293, chat.Data["dpiAverage"])
	assert.Equal(t, "size_calculation", chat.Metadata.HandlerName)

	rec = env.do(t, http.MethodGet, "/api/session", sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[domain.ConversationState](t, rec)
	require.Len(t, state.AnswersGiven, 1)
	px, ok := state.Metadata.Artwork.Pixels()
	require.True(t, ok)
	assert.Equal(t, 3000, px.Width)

	rec = env.do(t, http.MethodDelete, "/api/session", sid, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	stored, err := env.repo.GetConversation(context.Background(), sid)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestPutArtworkRejectsInvalidPixels(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{})
	rec := env.do(t, http.MethodPut, "/api/session/artwork", "s-art", ArtworkRequest{FileName: "x.png", Width: 0, Height: 100})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListHandlersAndHealth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/api/handlers", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listing := decode[struct {
		Handlers []agent.HandlerInfo `json:"handlers"`
	}](t, rec)
	require.NotEmpty(t, listing.Handlers)
	last := listing.Handlers[len(listing.Handlers)-1]
	assert.Equal(t, "fallback", last.Name)
	assert.True(t, last.Fallback)

	rec = env.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])

	require.NoError(t, env.repo.Close())
	rec = env.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
