package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"site-assistant/internal/assistant"
	"site-assistant/internal/domain"
	"site-assistant/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	maxBodyBytes      = 1 << 20

	msgPromptRequired = "Prompt is required"
	msgPromptTooLong  = "Prompt is too long"
	msgInvalidBody    = "Invalid request body"
	msgMethod         = "Method not allowed"
	msgKeyMissing     = "API key not configured"
	msgKeyHint        = "Please set the OPENROUTER_API_KEY environment variable or the SSM token parameter"
	msgUpstream       = "Error from OpenRouter API"
	msgInternal       = "Internal server error"
	msgNotFound       = "API route not found"
)

// corsHeaders go on every response, not only on preflight.
var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":      "*",
	"Access-Control-Allow-Credentials": "true",
	"Access-Control-Allow-Methods":     "GET,OPTIONS,PATCH,DELETE,POST,PUT",
	"Access-Control-Allow-Headers":     "X-CSRF-Token, X-Requested-With, Accept, Accept-Version, Content-Length, Content-MD5, Content-Type, Date, X-Api-Version",
}

type ChatUseCase interface {
	Reply(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

type Handler struct {
	uc       ChatUseCase
	streamer *assistant.Streamer
	format   assistant.Formatter
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithStreamer sets the streamer used by the SSE endpoint.
func WithStreamer(s *assistant.Streamer) Option {
	return func(h *Handler) {
		if s != nil {
			h.streamer = s
		}
	}
}

// WithFormatter converts replies before the SSE endpoint reveals them. The
// JSON endpoints always return the reply unchanged.
func WithFormatter(f assistant.Formatter) Option {
	return func(h *Handler) {
		h.format = f
	}
}

func NewHandler(uc ChatUseCase, opts ...Option) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	h := &Handler{
		uc:     uc,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.streamer == nil {
		h.streamer = assistant.NewStreamer(assistant.WithStreamLogger(h.logger))
	}
	h.logger = h.logger.With("module", "handler")
	return h, nil
}

// request and response are the transport-neutral shapes shared by the
// Lambda and net/http adapters.
type request struct {
	method  string
	path    string
	headers map[string]string
	body    []byte
}

type response struct {
	status  int
	headers map[string]string
	body    string
}

type pingResponse struct {
	Message   string `json:"message"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
}

type route int

const (
	routeNotFound route = iota
	routeChat
	routePing
	routeStream
)

func routeFor(path string) route {
	switch strings.TrimSuffix(path, "/") {
	case "", "/api", "/api/openrouter", "/api/chat":
		return routeChat
	case "/api/ping":
		return routePing
	case "/api/chat/stream":
		return routeStream
	}
	return routeNotFound
}

func (h *Handler) respond(ctx context.Context, req request) response {
	correlationID := h.correlationID(req.headers)
	logger := h.logger.With("correlationId", correlationID, "method", req.method, "path", req.path)

	var resp response
	switch routeFor(req.path) {
	case routeChat:
		resp = h.chat(ctx, req, correlationID, logger)
	case routePing:
		resp = h.ping(req)
	default:
		resp = jsonResponse(http.StatusNotFound, domain.ErrorResponse{Error: msgNotFound})
	}
	resp.headers[correlationHeader] = correlationID
	logger.Info("request handled", "status", resp.status)
	return resp
}

func (h *Handler) chat(ctx context.Context, req request, correlationID string, logger *slog.Logger) response {
	switch req.method {
	case http.MethodOptions:
		return emptyResponse(http.StatusOK)
	case http.MethodPost:
	default:
		return jsonResponse(http.StatusMethodNotAllowed, domain.ErrorResponse{Error: msgMethod})
	}

	in, errResp := decodeChatRequest(req.body)
	if errResp != nil {
		return *errResp
	}
	in.CorrelationID = correlationID

	out, err := h.uc.Reply(ctx, in)
	if err != nil {
		status, body := mapError(err)
		logger.Warn("chat request failed", "status", status, "err", err)
		return jsonResponse(status, body)
	}
	return jsonResponse(http.StatusOK, domain.ChatResponse{Content: out.Content})
}

func (h *Handler) ping(req request) response {
	if req.method == http.MethodOptions {
		return emptyResponse(http.StatusOK)
	}
	return jsonResponse(http.StatusOK, pingResponse{
		Message:   "API is working!",
		Method:    req.method,
		Path:      req.path,
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
	})
}

// decodeChatRequest parses a JSON body. An empty body is treated like a
// missing prompt.
func decodeChatRequest(body []byte) (usecase.ChatInput, *response) {
	var payload domain.ChatRequest
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			resp := jsonResponse(http.StatusBadRequest, domain.ErrorResponse{Error: msgInvalidBody})
			return usecase.ChatInput{}, &resp
		}
	}
	if strings.TrimSpace(payload.Prompt) == "" {
		resp := jsonResponse(http.StatusBadRequest, domain.ErrorResponse{Error: msgPromptRequired})
		return usecase.ChatInput{}, &resp
	}
	return usecase.ChatInput{
		Prompt:  payload.Prompt,
		Context: payload.Context,
		History: payload.History,
	}, nil
}

func mapError(err error) (int, domain.ErrorResponse) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError, domain.ErrorResponse{Error: msgInternal, Message: err.Error()}
	}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		msg := msgPromptRequired
		if ucErr.Reason == usecase.ReasonPromptTooLong {
			msg = msgPromptTooLong
		}
		return http.StatusBadRequest, domain.ErrorResponse{Error: msg}
	case usecase.ErrorConfig:
		return http.StatusInternalServerError, domain.ErrorResponse{Error: msgKeyMissing, Message: msgKeyHint}
	case usecase.ErrorUpstream:
		return ucErr.HTTPStatus(), domain.ErrorResponse{Error: msgUpstream, Details: ucErr.Details}
	default:
		msg := ucErr.Reason
		if ucErr.Err != nil {
			msg = ucErr.Err.Error()
		}
		return http.StatusInternalServerError, domain.ErrorResponse{Error: msgInternal, Message: msg}
	}
}

func (h *Handler) correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return h.newID()
}

func baseHeaders() map[string]string {
	headers := make(map[string]string, len(corsHeaders)+2)
	for k, v := range corsHeaders {
		headers[k] = v
	}
	return headers
}

func emptyResponse(status int) response {
	return response{status: status, headers: baseHeaders()}
}

func jsonResponse(status int, body any) response {
	headers := baseHeaders()
	headers["Content-Type"] = "application/json"
	raw, err := json.Marshal(body)
	if err != nil {
		raw = []byte(`{"error":"` + msgInternal + `"}`)
		status = http.StatusInternalServerError
	}
	return response{status: status, headers: headers, body: string(raw)}
}
