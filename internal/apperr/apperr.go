// Package apperr is the error taxonomy shared by clients, the coordinator and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindUserInput     Kind = "user_input"
	KindNotFound      Kind = "not_found"
	KindUpstream      Kind = "upstream"
	KindConfiguration Kind = "configuration"
	KindConflict      Kind = "conflict"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error

	// Payload carries an upstream response body when it is safe to surface.
	Payload string
	// Status is the upstream HTTP status, zero when not applicable.
	Status int
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func UserInput(format string, args ...interface{}) *Error {
	return &Error{Kind: KindUserInput, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Configuration(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Upstream reports a non-success or malformed response from a remote service.
func Upstream(service string, status int, payload string, err error) *Error {
	msg := fmt.Sprintf("%s request failed", service)
	if status != 0 {
		msg = fmt.Sprintf("%s request failed with status %d", service, status)
	}
	return &Error{Kind: KindUpstream, Message: msg, Err: err, Payload: payload, Status: status}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUserInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	case KindConfiguration:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// PayloadOf returns the upstream payload attached to err, if any.
func PayloadOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Payload
	}
	return ""
}
