package handler

import (
	"io"
	"net/http"

	"site-assistant/internal/domain"
)

// ServeHTTP serves the same routes as Handle over net/http, plus the SSE
// stream endpoint.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if routeFor(r.URL.Path) == routeStream {
		h.serveStream(w, r)
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		resp := jsonResponse(http.StatusBadRequest, domain.ErrorResponse{Error: msgInvalidBody})
		resp.headers[correlationHeader] = h.correlationID(flattenHeaders(r.Header))
		writeResponse(w, resp)
		return
	}

	writeResponse(w, h.respond(r.Context(), request{
		method:  r.Method,
		path:    r.URL.Path,
		headers: flattenHeaders(r.Header),
		body:    body,
	}))
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

func flattenHeaders(src http.Header) map[string]string {
	out := make(map[string]string, len(src))
	for k, v := range src {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func writeResponse(w http.ResponseWriter, resp response) {
	for k, v := range resp.headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.status)
	if resp.body != "" {
		_, _ = io.WriteString(w, resp.body)
	}
}
