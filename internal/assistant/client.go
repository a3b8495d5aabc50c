package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"site-assistant/internal/domain"
)

const maxReplyBody = 1 << 20

// APIError is a non-2xx answer from the chat endpoint.
type APIError struct {
	Status  int
	Message string
	Details string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Details != "" {
		return fmt.Sprintf("API error (%d): %s: %s", e.Status, msg, e.Details)
	}
	return fmt.Sprintf("API error (%d): %s", e.Status, msg)
}

// HTTPClient talks to the chat endpoint. It is both the gate's Prober and
// its Invoker.
type HTTPClient struct {
	endpoint   Endpoint
	httpClient *http.Client
}

type ClientOption func(*HTTPClient)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(h *HTTPClient) {
		if c != nil {
			h.httpClient = c
		}
	}
}

func NewHTTPClient(ep Endpoint, opts ...ClientOption) (*HTTPClient, error) {
	if strings.TrimSpace(ep.URL) == "" {
		return nil, errors.New("assistant: endpoint url must not be empty")
	}
	c := &HTTPClient{
		endpoint:   ep,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *HTTPClient) Endpoint() Endpoint {
	return c.endpoint
}

// Probe sends OPTIONS to the endpoint. Any 2xx means ready.
func (c *HTTPClient) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodOptions, c.endpoint.URL, nil)
	if err != nil {
		return fmt.Errorf("assistant: create probe: %w", err)
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("assistant: probe: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxReplyBody))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("assistant: probe: unexpected status %d", res.StatusCode)
	}
	return nil
}

// Invoke posts the request and returns the reply content. Calls are never
// retried.
func (c *HTTPClient) Invoke(ctx context.Context, r Request) (string, error) {
	body, err := json.Marshal(domain.ChatRequest{
		Prompt:  r.Prompt,
		Context: r.Context,
		History: r.History,
	})
	if err != nil {
		return "", fmt.Errorf("assistant: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("assistant: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("assistant: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxReplyBody))
	if err != nil {
		return "", fmt.Errorf("assistant: read response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", decodeAPIError(res.StatusCode, raw)
	}

	var out domain.ChatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("assistant: decode response: %w", err)
	}
	return out.Content, nil
}

func decodeAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{Status: status}
	var body domain.ErrorResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		apiErr.Details = strings.TrimSpace(string(raw))
		return apiErr
	}
	apiErr.Message = body.Error
	apiErr.Details = body.Details
	if apiErr.Details == "" {
		apiErr.Details = body.Message
	}
	return apiErr
}
