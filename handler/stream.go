package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/tmaxmax/go-sse"

	"site-assistant/internal/assistant"
	"site-assistant/internal/domain"
	"site-assistant/internal/usecase"
)

var errStreamClosed = errors.New("handler: event stream closed")

var (
	frameEvent = sse.Type("frame")
	doneEvent  = sse.Type("done")
	errorEvent = sse.Type("error")
)

// streamError is the data of an error event.
type streamError struct {
	Status int `json:"status"`
	domain.ErrorResponse
}

// sseTarget renders every frame of a reveal as one SSE event.
type sseTarget struct {
	sess   *sse.Session
	logger *slog.Logger

	mu  sync.Mutex
	err error
}

func (t *sseTarget) Render(markup string) {
	msg := &sse.Message{Type: frameEvent}
	msg.AppendData(markup)
	t.send(msg)
}

func (t *sseTarget) send(msg *sse.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return
	}
	if err := t.sess.Send(msg); err != nil {
		t.err = err
		t.logger.Debug("failed to send event", "err", err)
		return
	}
	if err := t.sess.Flush(); err != nil {
		t.err = err
		t.logger.Debug("failed to flush event", "err", err)
	}
}

// close makes every later send a no-op. It waits for a send in flight, so
// nothing writes to the ResponseWriter once the handler has returned.
func (t *sseTarget) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err == nil {
		t.err = errStreamClosed
	}
}

func (t *sseTarget) failed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err != nil
}

// serveStream answers a chat request as Server-Sent Events: the reply is
// revealed one character per tick, each tick a frame event carrying the
// sanitized markup, followed by a done event with the full content.
// Method and body errors are answered as plain JSON before upgrading.
func (h *Handler) serveStream(w http.ResponseWriter, r *http.Request) {
	headers := flattenHeaders(r.Header)
	correlationID := h.correlationID(headers)
	logger := h.logger.With("correlationId", correlationID, "method", r.Method, "path", r.URL.Path)

	var early *response
	switch r.Method {
	case http.MethodOptions:
		resp := emptyResponse(http.StatusOK)
		early = &resp
	case http.MethodPost:
		body, err := readBody(w, r)
		if err != nil {
			resp := jsonResponse(http.StatusBadRequest, domain.ErrorResponse{Error: msgInvalidBody})
			early = &resp
			break
		}
		in, errResp := decodeChatRequest(body)
		if errResp != nil {
			early = errResp
			break
		}
		in.CorrelationID = correlationID
		h.stream(w, r, in, correlationID, logger)
		return
	default:
		resp := jsonResponse(http.StatusMethodNotAllowed, domain.ErrorResponse{Error: msgMethod})
		early = &resp
	}
	early.headers[correlationHeader] = correlationID
	logger.Info("request handled", "status", early.status)
	writeResponse(w, *early)
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request, in usecase.ChatInput, correlationID string, logger *slog.Logger) {
	for k, v := range corsHeaders {
		w.Header().Set(k, v)
	}
	w.Header().Set(correlationHeader, correlationID)

	sess, err := sse.Upgrade(w, r)
	if err != nil {
		logger.Error("failed to upgrade to event stream", "err", err)
		writeResponse(w, jsonResponse(http.StatusInternalServerError, domain.ErrorResponse{Error: msgInternal, Message: err.Error()}))
		return
	}
	target := &sseTarget{sess: sess, logger: logger}
	defer target.close()

	out, err := h.uc.Reply(r.Context(), in)
	if err != nil {
		status, body := mapError(err)
		logger.Warn("chat stream failed", "status", status, "err", err)
		target.send(eventJSON(errorEvent, streamError{Status: status, ErrorResponse: body}))
		return
	}

	st := h.streamer.Reveal(assistant.FormatReply(h.format, out.Content), target)
	if !st.Wait(r.Context().Done()) {
		st.Stop()
		logger.Info("client went away mid-stream", "cursor", st.Cursor(), "length", st.Len())
		return
	}
	if target.failed() {
		st.Stop()
		return
	}
	target.send(eventJSON(doneEvent, domain.ChatResponse{Content: out.Content}))
	logger.Info("stream completed", "status", http.StatusOK, "frames", st.Cursor())
}

func eventJSON(typ sse.EventType, v any) *sse.Message {
	msg := &sse.Message{Type: typ}
	raw, err := json.Marshal(v)
	if err != nil {
		raw = []byte(`{}`)
	}
	msg.AppendData(string(raw))
	return msg
}
