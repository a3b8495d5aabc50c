package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"site-assistant/internal/domain"
)

// ---------------------------------------------------------------------------
// chatURL helper
// ---------------------------------------------------------------------------

func TestChatURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://openrouter.ai/api/v1", "https://openrouter.ai/api/v1/chat/completions"},
		{"https://openrouter.ai/api/v1/", "https://openrouter.ai/api/v1/chat/completions"},
		{"http://localhost:8080", "http://localhost:8080/api/v1/chat/completions"},
		{"", "https://openrouter.ai/api/v1/chat/completions"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, chatURL(tc.base), "base=%q", tc.base)
	}
}

// ---------------------------------------------------------------------------
// NewClient / key resolution
// ---------------------------------------------------------------------------

type countingKeys struct {
	key   string
	err   error
	calls int
}

func (k *countingKeys) APIKey(context.Context) (string, error) {
	k.calls++
	return k.key, k.err
}

func TestNewClient_NilKeySource(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil")
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(StaticKey("sk-test"))
	require.NoError(t, err)
	require.Equal(t, DefaultBaseURL, c.baseURL)
	require.NotNil(t, c.httpClient)
}

func TestResolveAPIKey_FetchedOnce(t *testing.T) {
	keys := &countingKeys{key: "sk-once"}
	c, err := NewClient(keys)
	require.NoError(t, err)

	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-once", key)

	_, _ = c.resolveAPIKey(context.Background())
	_, _ = c.resolveAPIKey(context.Background())
	require.Equal(t, 1, keys.calls, "key source must only be consulted once per process lifetime")
}

func TestResolveAPIKey_EmptyKeyIsMissing(t *testing.T) {
	c, err := NewClient(&countingKeys{key: "  "})
	require.NoError(t, err)
	_, err = c.resolveAPIKey(context.Background())
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestResolveAPIKey_ErrorIsRetried(t *testing.T) {
	keys := &countingKeys{err: errors.New("ssm unavailable")}
	c, err := NewClient(keys)
	require.NoError(t, err)

	_, err = c.resolveAPIKey(context.Background())
	require.ErrorContains(t, err, "ssm unavailable")

	keys.err = nil
	keys.key = "sk-recovered"
	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-recovered", key)
	require.Equal(t, 2, keys.calls)
}

func TestStaticKey(t *testing.T) {
	key, err := StaticKey(" sk-env ").APIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-env", key)

	_, err = StaticKey("").APIKey(context.Background())
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

// ---------------------------------------------------------------------------
// Client.Chat
// ---------------------------------------------------------------------------

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(
		StaticKey("sk-test"),
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
		WithAttribution("https://example.me", "Example Site"),
	)
	require.NoError(t, err)
	return c
}

func TestClient_Chat_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/chat/completions", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.Equal(t, "https://example.me", r.Header.Get("HTTP-Referer"))
		require.Equal(t, "Example Site", r.Header.Get("X-Title"))

		reqBody, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var got chatRequest
		require.NoError(t, json.Unmarshal(reqBody, &got))
		require.Equal(t, "model-mock", got.Model)
		require.Len(t, got.Messages, 2)
		require.Equal(t, domain.RoleSystem, got.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{
			"id": "gen-123",
			"model": "model-mock",
			"choices": [{
				"index": 0,
				"message": { "role": "assistant", "content": "Hello from mock" }
			}]
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	resp, err := c.Chat(context.Background(), "model-mock", []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "be brief"},
		{Role: domain.RoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	require.Equal(t, "Hello from mock", resp)
}

func TestClient_Chat_OmitsAttributionWhenUnset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("HTTP-Referer"))
		require.Empty(t, r.Header.Get("X-Title"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(StaticKey("sk-test"), WithBaseURL(srv.URL))
	require.NoError(t, err)
	out, err := c.Chat(context.Background(), "model-mock", nil)
	require.NoError(t, err)
	require.Equal(t, "ok", out)
}

func TestClient_Chat_StatusErrors(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusTooManyRequests, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
		}))

		c := newTestClient(t, srv)
		_, err := c.Chat(context.Background(), "model-mock", nil)
		srv.Close()

		require.Error(t, err)
		require.Contains(t, err.Error(), "unexpected status")

		var statusErr *HTTPStatusError
		require.True(t, errors.As(err, &statusErr))
		require.Equal(t, status, statusErr.HTTPStatusCode())
		require.Contains(t, statusErr.Body, "nope")
	}
}

func TestClient_Chat_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`not-a-json`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Chat(context.Background(), "model-mock", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestClient_Chat_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Chat(context.Background(), "model-mock", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no choices")
}

func TestClient_Chat_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}
	_, err := c.Chat(context.Background(), "model-mock", nil)
	require.Error(t, err)
}

func TestClient_Chat_NetworkError(t *testing.T) {
	c, err := NewClient(StaticKey("sk-test"))
	require.NoError(t, err)
	c.baseURL = "http://127.0.0.1:1"
	c.httpClient = &http.Client{Timeout: 100 * time.Millisecond}

	_, err = c.Chat(context.Background(), "model-mock", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")
}

func TestClient_Chat_EmptyModel(t *testing.T) {
	c, err := NewClient(StaticKey("sk-test"))
	require.NoError(t, err)
	_, err = c.Chat(context.Background(), "", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "model")
}

func TestClient_Chat_MissingKeyDoesNotCallUpstream(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c, err := NewClient(StaticKey(""), WithBaseURL(srv.URL))
	require.NoError(t, err)
	_, err = c.Chat(context.Background(), "model-mock", nil)
	require.ErrorIs(t, err, ErrMissingAPIKey)
	require.ErrorIs(t, err, domain.ErrAPIKeyNotConfigured)
	require.False(t, called)
}

func TestClient_Chat_KeySourceErrorIsKeyError(t *testing.T) {
	c, err := NewClient(&countingKeys{err: errors.New("ssm unavailable")})
	require.NoError(t, err)
	_, err = c.Chat(context.Background(), "model-mock", nil)
	require.ErrorIs(t, err, domain.ErrAPIKeyNotConfigured)
	require.ErrorContains(t, err, "ssm unavailable")
}
