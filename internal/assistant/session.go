package assistant

import (
	"context"
	"errors"
	"html"
	"strings"

	"site-assistant/internal/domain"
)

// Submitter is satisfied by *Gate.
type Submitter interface {
	Submit(ctx context.Context, req Request) (string, error)
}

// Session ties a gate, a streamer and a transcript together the way the chat
// widget does: one Ask per user message.
type Session struct {
	gate       Submitter
	streamer   *Streamer
	context    string
	format     Formatter
	transcript *Transcript
}

type SessionOption func(*Session)

// WithFormatter converts each reply before it is revealed. The transcript
// keeps the reply as received.
func WithFormatter(f Formatter) SessionOption {
	return func(s *Session) {
		s.format = f
	}
}

func NewSession(gate Submitter, streamer *Streamer, contextText string, opts ...SessionOption) (*Session, error) {
	if gate == nil {
		return nil, errors.New("assistant: gate must not be nil")
	}
	if streamer == nil {
		return nil, errors.New("assistant: streamer must not be nil")
	}
	s := &Session{
		gate:       gate,
		streamer:   streamer,
		context:    contextText,
		transcript: &Transcript{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Session) Transcript() *Transcript {
	return s.transcript
}

// Ask sends prompt with the session history and starts revealing the reply
// into target. On failure an inline error is rendered instead and the
// transcript is left untouched.
func (s *Session) Ask(ctx context.Context, prompt string, target Target) (string, *Stream, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", nil, ErrEmptyPrompt
	}

	content, err := s.gate.Submit(ctx, Request{
		Prompt:  prompt,
		Context: s.context,
		History: s.transcript.Snapshot(),
	})
	if err != nil {
		if target != nil {
			target.Render(errorMarkup(err))
		}
		return "", nil, err
	}

	s.transcript.Append(
		domain.ChatMessage{Role: domain.RoleUser, Content: prompt},
		domain.ChatMessage{Role: domain.RoleAssistant, Content: content},
	)
	return content, s.streamer.Reveal(FormatReply(s.format, content), target), nil
}

// FormatReply applies f to content, falling back to content itself when f
// is nil or fails.
func FormatReply(f Formatter, content string) string {
	if f == nil {
		return content
	}
	out, err := f(content)
	if err != nil {
		return content
	}
	return out
}

func errorMarkup(err error) string {
	return `<span class="error">Error: ` + html.EscapeString(err.Error()) + `</span>`
}
