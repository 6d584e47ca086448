package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for DocShelf API calls.
var (
	ErrBadRequest        = errors.New("docshelf: bad request")
	ErrUnauthorized      = errors.New("docshelf: unauthorized")
	ErrForbidden         = errors.New("docshelf: forbidden")
	ErrNotFound          = errors.New("docshelf: not found")
	ErrValidation        = errors.New("docshelf: validation failed")
	ErrRateLimited       = errors.New("docshelf: rate limited by server")
	ErrServer            = errors.New("docshelf: server error")
	ErrUnexpected        = errors.New("docshelf: unexpected status")
	ErrMalformedResponse = errors.New("docshelf: malformed response")
	ErrUnsupportedFile   = errors.New("docshelf: unsupported file type")
	ErrFileTooLarge      = errors.New("docshelf: file too large")
)

// Error wraps a failed call with operation context.
type Error struct {
	Op     string // Operation: "login", "search", "upload", ...
	Status int    // HTTP status, 0 when no response was received
	Detail string // Server-supplied message, if any
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "":
		return fmt.Sprintf("docshelf %s: %s", e.Op, e.Detail)
	case e.Status != 0:
		return fmt.Sprintf("docshelf %s [%d]: %v", e.Op, e.Status, e.Err)
	default:
		return fmt.Sprintf("docshelf %s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the response status, or 0 for transport failures.
func (e *Error) HTTPStatus() int {
	return e.Status
}

// DetailOf returns the server-supplied message carried by err, if any.
func DetailOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func wrapError(op string, status int, detail string, err error) error {
	return &Error{Op: op, Status: status, Detail: detail, Err: err}
}

// statusError maps a non-2xx status to a sentinel.
func statusError(status int) error {
	switch status {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnprocessableEntity:
		return ErrValidation
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		if status >= 500 {
			return ErrServer
		}
		return ErrUnexpected
	}
}

// parseDetail extracts the "detail" field of an error body. The server sends
// either a string or a list of field errors.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err != nil {
		return ""
	}
	msgs := make([]string, 0, len(items))
	for _, it := range items {
		if len(it.Loc) > 0 {
			msgs = append(msgs, fmt.Sprintf("%v: %s", it.Loc[len(it.Loc)-1], it.Msg))
		} else {
			msgs = append(msgs, it.Msg)
		}
	}
	return strings.Join(msgs, "; ")
}
