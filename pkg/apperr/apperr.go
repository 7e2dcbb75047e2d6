// Package apperr holds the error kinds shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrConflict         = errors.New("conflict")
	ErrRateLimited      = errors.New("rate limited")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrDuplicate        = errors.New("duplicate submission")
	ErrLimitReached     = errors.New("limit reached")
	ErrInvalidURL       = errors.New("invalid url")
	ErrNotMusic         = errors.New("not music")
	ErrResolutionFailed = errors.New("resolution failed")
)

// Error pairs a kind with the message shown to the caller. Cause, when set,
// is logged but never shown.
type Error struct {
	Kind    error
	Message string
	Field   string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func New(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Field(field, format string, args ...interface{}) error {
	return &Error{Kind: ErrValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches cause to a kind.
func Wrap(kind, cause error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Cause: cause, Message: fmt.Sprintf(format, args...)}
}
