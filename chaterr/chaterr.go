// Package chaterr defines the closed error-kind taxonomy used across
// chatkit so callers can branch on failure class with errors.As rather than
// string-matching messages.
package chaterr

import (
	"errors"
	"fmt"
)

// Kind classifies a chatkit error.
type Kind string

const (
	KindInvalidPassword Kind = "invalid_password"
	KindForbidden       Kind = "forbidden"
	KindTokenExpired    Kind = "token_expired"
	KindNetworkBroken   Kind = "network_broken"
	KindWebsocket       Kind = "websocket"
	KindHTTP            Kind = "http"
	KindNotFound        Kind = "not_found"
	KindInvalidContent  Kind = "invalid_content"
	KindUserCancel      Kind = "user_cancel"
	KindStorage         Kind = "storage"
	KindOther           Kind = "other"
)

// Error is a chatkit error value carrying a Kind for programmatic dispatch.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a new Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs a new Error of the given kind wrapping err.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// NotFound builds a KindNotFound error naming the resource kind and id.
func NotFound(resource, id string) *Error {
	return New(KindNotFound, fmt.Sprintf("%s not found: %s", resource, id))
}

// Is reports whether err is a chatkit Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
