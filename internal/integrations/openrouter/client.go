package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"site-assistant/internal/domain"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "mistralai/mistral-small-3.1-24b-instruct:free"

	maxErrorBody    = 4096
	maxResponseBody = 1 << 20
)

// ErrMissingAPIKey is returned when no API key can be resolved. It matches
// domain.ErrAPIKeyNotConfigured under errors.Is.
var ErrMissingAPIKey = fmt.Errorf("openrouter: %w", domain.ErrAPIKeyNotConfigured)

// chatRequest is the minimal request shape for the chat completions endpoint.
type chatRequest struct {
	Model    string               `json:"model"`
	Messages []domain.ChatMessage `json:"messages"`
}

// chatResponse is the minimal response shape returned by the chat completions endpoint.
type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int                `json:"index"`
		Message domain.ChatMessage `json:"message"`
	} `json:"choices"`
}

// KeySource resolves the upstream API key.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// StaticKey is a KeySource backed by a fixed value, typically read from the
// environment.
type StaticKey string

func (k StaticKey) APIKey(context.Context) (string, error) {
	key := strings.TrimSpace(string(k))
	if key == "" {
		return "", ErrMissingAPIKey
	}
	return key, nil
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openrouter: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// ResponseBody returns the (truncated) upstream error body.
func (e *HTTPStatusError) ResponseBody() string {
	return e.Body
}

// Client is a focused OpenRouter client for chat completions.
type Client struct {
	baseURL    string
	httpClient *http.Client
	keys       KeySource
	referer    string
	title      string

	keyMu  sync.Mutex
	apiKey string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAttribution sets the HTTP-Referer and X-Title headers OpenRouter uses to
// attribute traffic to the calling site.
func WithAttribution(referer, title string) Option {
	return func(c *Client) {
		c.referer = strings.TrimSpace(referer)
		c.title = strings.TrimSpace(title)
	}
}

// NewClient creates a Client that resolves its API key from keys on the first
// successful call to Chat and reuses it for the lifetime of the process.
func NewClient(keys KeySource, opts ...Option) (*Client, error) {
	if keys == nil {
		return nil, errors.New("openrouter: key source must not be nil")
	}
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		keys:       keys,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// resolveAPIKey caches only a successful lookup; errors are retried on the
// next request.
func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	if c.apiKey != "" {
		return c.apiKey, nil
	}
	key, err := c.keys.APIKey(ctx)
	if err != nil {
		return "", err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrMissingAPIKey
	}
	c.apiKey = key
	return key, nil
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func chatURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/api/v1/chat/completions"
}

// Chat sends messages to the chat completions endpoint and returns the content
// of the first choice.
func (c *Client) Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error) {
	if model == "" {
		return "", errors.New("openrouter: model must not be empty")
	}

	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		if !errors.Is(err, ErrMissingAPIKey) {
			err = fmt.Errorf("%w: %w", ErrMissingAPIKey, err)
		}
		return "", err
	}

	body, err := json.Marshal(chatRequest{Model: model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("openrouter: marshal request: %w", err)
	}

	url := chatURL(c.baseURL)

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return "", fmt.Errorf("openrouter: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return "", fmt.Errorf("openrouter: request failed: %w", err)
	}

	var payload chatResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return "", fmt.Errorf("openrouter: decode response: %w", decErr)
	}
	if len(payload.Choices) == 0 {
		return "", errors.New("openrouter: no choices in response")
	}
	return payload.Choices[0].Message.Content, nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
