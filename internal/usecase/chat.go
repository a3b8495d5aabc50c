package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"site-assistant/internal/domain"
)

const (
	defaultMaxPrompt  = 4000
	defaultMaxHistory = 20
)

type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
}

// AuditRecorder stores exchange metadata. Failures never reach the caller.
type AuditRecorder interface {
	RecordExchange(ctx context.Context, ex domain.Exchange) error
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type responseBodier interface {
	ResponseBody() string
}

// Settings carries the static inputs of every exchange.
type Settings struct {
	Model           string
	OwnerName       string
	OwnerTitle      string
	MaxPromptLength int
	MaxHistoryItems int
}

type ChatService struct {
	llm      LLMClient
	audit    AuditRecorder
	settings Settings
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*ChatService)

// WithAudit records metadata about every exchange.
func WithAudit(rec AuditRecorder) Option {
	return func(s *ChatService) {
		s.audit = rec
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *ChatService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

type ChatInput struct {
	Prompt        string
	Context       string
	History       []domain.ChatMessage
	CorrelationID string
}

type ChatOutput struct {
	Content string
}

func NewChatService(llm LLMClient, settings Settings, opts ...Option) (*ChatService, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	settings.Model = strings.TrimSpace(settings.Model)
	if settings.Model == "" {
		return nil, errors.New("usecase: model must not be empty")
	}
	settings.OwnerName = strings.TrimSpace(settings.OwnerName)
	if settings.OwnerName == "" {
		return nil, errors.New("usecase: owner name must not be empty")
	}
	if settings.MaxPromptLength <= 0 {
		settings.MaxPromptLength = defaultMaxPrompt
	}
	if settings.MaxHistoryItems <= 0 {
		settings.MaxHistoryItems = defaultMaxHistory
	}
	s := &ChatService{
		llm:      llm,
		settings: settings,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("module", "usecase")
	return s, nil
}

// Reply validates the input, forwards it upstream and returns the model's reply.
func (s *ChatService) Reply(ctx context.Context, in ChatInput) (out ChatOutput, err error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, ReasonPromptRequired, nil)
	}
	if utf8.RuneCountInString(prompt) > s.settings.MaxPromptLength {
		return ChatOutput{}, newError(ErrorInvalidInput, ReasonPromptTooLong, nil)
	}

	history := selectHistory(in.History, s.settings.MaxHistoryItems)
	started := s.now()
	defer func() {
		s.record(ctx, in.CorrelationID, prompt, history, out, err, s.now().Sub(started))
	}()

	content, err := s.llm.Chat(ctx, s.settings.Model, buildPromptMessages(
		promptContext{
			ownerName:  s.settings.OwnerName,
			ownerTitle: s.settings.OwnerTitle,
			context:    in.Context,
		},
		prompt,
		history,
	))
	if err != nil {
		return ChatOutput{}, classifyUpstream(err)
	}
	return ChatOutput{Content: content}, nil
}

func classifyUpstream(err error) *Error {
	if errors.Is(err, domain.ErrAPIKeyNotConfigured) {
		return newError(ErrorConfig, ReasonAPIKeyMissing, err)
	}
	if status, ok := upstreamStatusCode(err); ok {
		e := newError(ErrorUpstream, ReasonUpstreamStatus, err)
		e.Status = status
		var bodier responseBodier
		if errors.As(err, &bodier) {
			e.Details = bodier.ResponseBody()
		}
		return e
	}
	return newError(ErrorInternal, ReasonUpstreamRequest, err)
}

func (s *ChatService) record(ctx context.Context, correlationID, prompt string, history []domain.ChatMessage, out ChatOutput, err error, latency time.Duration) {
	if s.audit == nil || correlationID == "" {
		return
	}
	ex := domain.Exchange{
		CorrelationID: correlationID,
		Model:         s.settings.Model,
		Status:        http.StatusOK,
		PromptChars:   utf8.RuneCountInString(prompt),
		ReplyChars:    utf8.RuneCountInString(out.Content),
		HistoryTurns:  len(history),
		LatencyMillis: latency.Milliseconds(),
	}
	var ucErr *Error
	if errors.As(err, &ucErr) {
		ex.Status = ucErr.HTTPStatus()
		ex.Reason = ucErr.Reason
	}
	// The request context may already be cancelled; the audit write should still land.
	if recErr := s.audit.RecordExchange(context.WithoutCancel(ctx), ex); recErr != nil {
		s.logger.Warn("failed to record exchange", "correlationId", correlationID, "err", recErr)
	}
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
