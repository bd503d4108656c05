package httputil

import (
	"net/http"
)

// HTTPError represents an error that can be sent to clients
type HTTPError struct {
	Status  int    // HTTP status code
	Message string // User-facing message
	Cause   error  // Optional wrapped internal error, logged but never sent
	Details any    // Optional extra context, e.g. validation errors
}

func (e *HTTPError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is see the domain error behind the response
func (e *HTTPError) Unwrap() error {
	return e.Cause
}

// Server errors are logged at error level, everything else is a client mistake
func (e *HTTPError) serverSide() bool {
	return e.Status >= http.StatusInternalServerError
}

func newError(status int, msg string) *HTTPError {
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &HTTPError{Status: status, Message: msg}
}

// asHTTPError wraps anything that is not already an HTTPError as a 500
func asHTTPError(err error) *HTTPError {
	if httpErr, ok := err.(*HTTPError); ok {
		return httpErr
	}
	e := newError(http.StatusInternalServerError, "")
	e.Cause = err
	return e
}

func BadRequest(msg string, details ...any) error {
	e := newError(http.StatusBadRequest, msg)
	switch len(details) {
	case 0:
	case 1:
		e.Details = details[0]
	default:
		e.Details = details
	}
	return e
}

func Unauthorized(msg string) error {
	return newError(http.StatusUnauthorized, msg)
}

func Forbidden(msg string) error {
	return newError(http.StatusForbidden, msg)
}

func NotFound(msg string) error {
	return newError(http.StatusNotFound, msg)
}

func Conflict(msg string) error {
	return newError(http.StatusConflict, msg)
}

// Internal hides the cause behind a generic message
func Internal(err error) error {
	e := newError(http.StatusInternalServerError, "Something went wrong")
	e.Cause = err
	return e
}
