package usecase

import (
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorConfig       ErrorCode = "CONFIG_ERROR"
	ErrorUpstream     ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal     ErrorCode = "INTERNAL_ERROR"
)

// Reasons attached to Error values.
const (
	ReasonPromptRequired  = "prompt_required"
	ReasonPromptTooLong   = "prompt_too_long"
	ReasonAPIKeyMissing   = "api_key_missing"
	ReasonUpstreamStatus  = "openrouter_status"
	ReasonUpstreamRequest = "openrouter_request_error"
)

type Error struct {
	Code   ErrorCode
	Reason string
	// Status and Details are set for upstream errors that carried an HTTP response.
	Status  int
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// HTTPStatus is the status the chat endpoint answers with for this error.
// Upstream statuses are passed through.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case ErrorInvalidInput:
		return http.StatusBadRequest
	case ErrorUpstream:
		if e.Status >= 400 && e.Status <= 599 {
			return e.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
