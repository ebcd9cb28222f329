package apperr

import (
	"errors"
	"net/http"
	"strings"

	"github.com/iliyamo/planbox/internal/repository"
)

const genericMessage = "Something went wrong"

// Entry is one element of the error payload.
type Entry struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// Payload is the body of every failed response.
type Payload struct {
	Errors []Entry `json:"errors"`
}

// Response is the outcome of Map: what to send and with which status.
type Response struct {
	Status  int
	Payload Payload
	// Unknown is set when err fell through to the catch-all and should be
	// logged server-side.
	Unknown bool
}

// Map normalizes any error into the client-facing taxonomy. It is pure: the
// caller decides whether to log. Resolution order is validation, unique
// constraint, missing rows, explicit application errors, then the
// catch-all, which never echoes err's text.
func Map(err error) Response {
	var verr *ValidationError
	if errors.As(err, &verr) && len(verr.Issues) > 0 {
		entries := make([]Entry, 0, len(verr.Issues))
		for _, is := range verr.Issues {
			entries = append(entries, Entry{Code: issueCode(is.Path, verr.Credentials), Message: is.Message})
		}
		return Response{Status: http.StatusBadRequest, Payload: Payload{Errors: entries}}
	}

	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return single(http.StatusBadRequest, CodeUniqueConstraint, uniqueMessage(err))
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrRelatedNotFound):
		return single(http.StatusNotFound, CodeNotFound, notFoundMessage(err))
	}

	var aerr *Error
	if errors.As(err, &aerr) {
		status := aerr.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		return single(status, aerr.Code, aerr.Message)
	}

	resp := single(http.StatusInternalServerError, CodeUnknown, genericMessage)
	resp.Unknown = true
	return resp
}

func single(status int, code Code, msg string) Response {
	return Response{Status: status, Payload: Payload{Errors: []Entry{{Code: code, Message: msg}}}}
}

func issueCode(path string, credentials bool) Code {
	last := path
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		last = path[i+1:]
	}
	switch last {
	case "email":
		return CodeInvalidEmail
	case "password", "newPassword":
		return CodeInvalidPassword
	}
	if credentials {
		return CodeInvalidAuthInput
	}
	return CodeInvalidInput
}

func uniqueMessage(err error) string {
	var re *repository.Error
	if errors.As(err, &re) && re.Entity != "" {
		switch re.Entity {
		case "user":
			return "Email already exists"
		case "box":
			return "Box name must be unique"
		}
		return capitalize(re.Entity) + " already exists"
	}
	return "Value must be unique"
}

func notFoundMessage(err error) string {
	var re *repository.Error
	if errors.As(err, &re) && re.Entity != "" {
		return capitalize(re.Entity) + " not found"
	}
	return "Not found"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
