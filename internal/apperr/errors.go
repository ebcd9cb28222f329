// Package apperr defines the error taxonomy exposed to API clients and the
// mapping from internal failures onto it.
package apperr

import (
	"net/http"
	"strings"
)

// Code is a stable, machine-readable error code.
type Code string

const (
	CodeUnauthorized     Code = "auth/unauthorized"
	CodeInvalidEmail     Code = "auth/invalid-email"
	CodeInvalidPassword  Code = "auth/invalid-password"
	CodeInvalidAuthInput Code = "auth/invalid-input"
	CodeInvalidInput     Code = "validation/invalid-input"
	CodeUniqueConstraint Code = "validation/unique-constraint"
	CodeNotFound         Code = "not-found"
	CodeRateLimited      Code = "rate-limited"
	CodeUnknown          Code = "unknown-error"
)

// Error is a failure that already knows how it should be presented.
type Error struct {
	Code    Code
	Message string
	Status  int
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Is matches another *Error by code so callers can compare against the
// package-level values with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func New(code Code, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

var (
	ErrUnauthorized       = New(CodeUnauthorized, http.StatusUnauthorized, "Unauthorized")
	// ErrInvalidCredentials is deliberately identical for unknown emails and
	// wrong passwords.
	ErrInvalidCredentials = New(CodeUnauthorized, http.StatusUnauthorized, "Invalid email or password")
	ErrRateLimited        = New(CodeRateLimited, http.StatusTooManyRequests, "Too many requests, try again later")
)

// NotFound builds a 404 for the named resource ("Box", "Todo", ...).
func NotFound(resource string) *Error {
	return New(CodeNotFound, http.StatusNotFound, resource+" not found")
}

// Issue is one violated constraint on one input field.
type Issue struct {
	Path    string
	Message string
}

// ValidationError enumerates every constraint an input violated.
type ValidationError struct {
	Issues []Issue
	// Credentials marks schemas of the signup/login family, whose
	// unrecognized fields map to auth/invalid-input.
	Credentials bool
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, is.Path+": "+is.Message)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Invalid is a shortcut for a single-issue ValidationError.
func Invalid(path, message string) *ValidationError {
	return &ValidationError{Issues: []Issue{{Path: path, Message: message}}}
}
