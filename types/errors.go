// Package types defines the shared data model for coordcore: agents,
// capabilities, roles, tasks, teams, shared contexts and their versions,
// negotiations, and the error taxonomy every component surfaces.
package types

import (
	"errors"
	"fmt"
)

// Kind is the closed taxonomy of failure categories a component surfaces.
// It is not an error type itself — wrap it in an *Error.
type Kind string

const (
	NotFound         Kind = "not_found"
	PermissionDenied Kind = "permission_denied"
	InvalidArgument  Kind = "invalid_argument"
	InvalidState     Kind = "invalid_state"
	StaleVersion     Kind = "stale_version"
	NoAgentsAvailable Kind = "no_agents_available"
	Cancelled        Kind = "cancelled"
	Internal         Kind = "internal"
)

// Error is the uniform error value returned across coordcore. It carries a
// taxonomic Kind, a human-readable Message, an optional wrapped Cause, and
// a Retryable bit (true for StaleVersion and transient Internal failures).
type Error struct {
	Kind      Kind
	Message   string
	Cause     error
	Retryable bool
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is(err, SomeKindSentinel)-style comparisons by Kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// NewError builds an *Error of the given kind. Retryable defaults to false
// except for StaleVersion, which is always retryable.
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:      kind,
		Message:   message,
		Cause:     cause,
		Retryable: kind == StaleVersion,
	}
}

// RetryableInternal builds an Internal error marked retryable (bounded,
// transient sink/store faults per spec.md §7).
func RetryableInternal(message string, cause error) *Error {
	return &Error{Kind: Internal, Message: message, Cause: cause, Retryable: true}
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error, else "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err's Kind equals kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
