// Package domainerrors carries coded errors across the service/transport
// boundary. Handlers translate codes to HTTP statuses; services never import
// net/http.
package domainerrors

import (
	"errors"
	"net/http"

	"tlwatch/pkg/platform/sentinel"
)

type Code string

const (
	CodeBadRequest  Code = "bad_request"
	CodeNotFound    Code = "not_found"
	CodeConflict    Code = "conflict"
	CodeUnavailable Code = "service_unavailable"
	CodeInternal    Code = "internal_error"
)

// Error is a coded error. Message is safe to show to clients except for
// CodeInternal, whose message stays server-side.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether err carries code anywhere in its chain.
func HasCode(err error, code Code) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == code
}

// From classifies err. Coded errors keep their code; sentinel store errors are
// mapped; everything else is internal.
func From(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return Wrap(err, CodeNotFound, "resource not found")
	case errors.Is(err, sentinel.ErrConflict):
		return Wrap(err, CodeConflict, "conflicting request")
	case errors.Is(err, sentinel.ErrUnavailable):
		return Wrap(err, CodeUnavailable, "dependency unavailable")
	default:
		return Wrap(err, CodeInternal, "internal error")
	}
}

func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
