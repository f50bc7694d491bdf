package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ErrorKind string

const (
	KindUnauthorized      ErrorKind = "unauthorized"
	KindNotFound          ErrorKind = "not_found"
	KindNameConflict      ErrorKind = "name_conflict"
	KindStorageExceeded   ErrorKind = "storage_exceeded"
	KindInvalidInput      ErrorKind = "invalid_input"
	KindRateLimitExceeded ErrorKind = "rate_limit_exceeded"
	KindConflict          ErrorKind = "conflict"
	KindForbidden         ErrorKind = "forbidden"
	KindInternal          ErrorKind = "internal"
)

// Error is the typed failure every engine operation returns. Handlers map
// Kind to a status code and may expose Data to the client; Err is for logs.
type Error struct {
	Kind    ErrorKind
	Message string
	Data    map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func errNotFound(message string) *Error {
	return newError(KindNotFound, message, nil)
}

func errNameConflict(name string) *Error {
	return &Error{
		Kind:    KindNameConflict,
		Message: "an item with this name already exists here",
		Data:    map[string]interface{}{"name": name},
	}
}

func errInvalidInput(message string) *Error {
	return newError(KindInvalidInput, message, nil)
}

func errForbidden(message string) *Error {
	return newError(KindForbidden, message, nil)
}

func errConflict(message string, data map[string]interface{}) *Error {
	return &Error{Kind: KindConflict, Message: message, Data: data}
}

func errDuplicate(existingID uuid.UUID) *Error {
	return errConflict("file already exists in this drive", map[string]interface{}{
		"existingId": existingID.String(),
	})
}

func errStorageExceeded(used, limit, requested int64) *Error {
	return &Error{
		Kind:    KindStorageExceeded,
		Message: "storage limit exceeded",
		Data: map[string]interface{}{
			"used":      fmt.Sprintf("%d", used),
			"limit":     fmt.Sprintf("%d", limit),
			"requested": fmt.Sprintf("%d", requested),
		},
	}
}

func errInternal(message string, err error) *Error {
	return newError(KindInternal, message, err)
}

// ErrRateLimited builds the error returned when an operation class budget is
// exhausted.
func ErrRateLimited(class string, resetAt time.Time) *Error {
	return &Error{
		Kind:    KindRateLimitExceeded,
		Message: "rate limit exceeded",
		Data: map[string]interface{}{
			"class":     class,
			"resetTime": resetAt.UTC().Format(time.RFC3339),
		},
	}
}

// KindOf reports the kind of err. Untyped errors are internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// wrapInternal keeps typed errors as they are and wraps everything else.
func wrapInternal(message string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return errInternal(message, err)
}
