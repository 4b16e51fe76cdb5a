package errs

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies pipeline errors for retry and reporting decisions.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindUpstream    Kind = "upstream"
	KindParse       Kind = "parse"
	KindTimeout     Kind = "timeout"
	KindPersistence Kind = "persistence"
)

// Error is a classified error with an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports a malformed request. Never retried; surfaced to the
// caller before a job is enqueued.
func Validation(format string, a ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, a...)}
}

// Upstream reports an unavailable or misbehaving external source.
func Upstream(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Err: err}
}

// Parse reports a response that failed schema validation.
func Parse(message string, err error) *Error {
	return &Error{Kind: KindParse, Message: message, Err: err}
}

// Timeout reports a per-call deadline exceeded. Treated as retryable upstream
// failure.
func Timeout(message string, err error) *Error {
	return &Error{Kind: KindTimeout, Message: message, Err: err}
}

// Persistence reports a durable-storage write failure.
func Persistence(message string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: message, Err: err}
}

// KindOf returns the classified kind, or empty string for plain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether the operation that produced err is worth
// re-running. Upstream and timeout failures are transient; a parse failure is
// retryable at the call level because a fresh model response may validate.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch KindOf(err) {
	case KindUpstream, KindTimeout, KindParse:
		return true
	case KindValidation, KindPersistence:
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}
