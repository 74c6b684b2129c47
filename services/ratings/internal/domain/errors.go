package domain

import (
	"errors"
)

// Error kinds. Every error returned by the service layer either wraps one of
// these or is an unexpected failure that surfaces as an internal error.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Error carries a machine-readable code and optional field violations.
type Error struct {
	Kind    error
	Code    string
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

func Invalid(code, msg string, fields map[string]string) error {
	return &Error{Kind: ErrValidation, Code: code, Message: msg, Fields: fields}
}

func NotFound(code, msg string) error {
	return &Error{Kind: ErrNotFound, Code: code, Message: msg}
}

func Forbidden(code, msg string) error {
	return &Error{Kind: ErrForbidden, Code: code, Message: msg}
}

func Conflict(code, msg string) error {
	return &Error{Kind: ErrConflict, Code: code, Message: msg}
}

func Unauthenticated(code, msg string) error {
	return &Error{Kind: ErrUnauthenticated, Code: code, Message: msg}
}
