package crmapi

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrNetwork means no response was received from the server.
	ErrNetwork = errors.New("network error: unable to connect to server")
	// ErrUnauthorized means the server rejected the session token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound means the requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation means the server rejected the request payload.
	ErrValidation = errors.New("validation failed")
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status           int
	Message          string
	ValidationErrors map[string]string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "http %d", e.Status)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.ValidationErrors) > 0 {
		b.WriteString(" (")
		b.WriteString(e.JoinedValidation())
		b.WriteString(")")
	}
	return b.String()
}

// Is maps status codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrValidation:
		return len(e.ValidationErrors) > 0 ||
			e.Status == http.StatusBadRequest ||
			e.Status == http.StatusUnprocessableEntity
	}
	return false
}

// HasField reports whether the server flagged field as invalid.
func (e *APIError) HasField(field string) bool {
	_, ok := e.ValidationErrors[field]
	return ok
}

// JoinedValidation joins field messages with "; " in field order.
func (e *APIError) JoinedValidation() string {
	fields := make([]string, 0, len(e.ValidationErrors))
	for f := range e.ValidationErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, e.ValidationErrors[f])
	}
	return strings.Join(msgs, "; ")
}

// errorBody is the server's error envelope.
type errorBody struct {
	Message          string            `json:"message"`
	Error            string            `json:"error"`
	ValidationErrors map[string]string `json:"validationErrors"`
}
