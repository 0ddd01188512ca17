// Package kberrors provides the structured error type used across the
// knowledge-base core. Every error a component returns to a caller is a
// *Error carrying a Kind from the taxonomy below, so callers can branch
// on failure category without string matching.
package kberrors

import "fmt"

// Kind classifies an error for programmatic handling.
type Kind string

const (
	InvalidArgument    Kind = "INVALID_ARGUMENT"
	NotFound           Kind = "NOT_FOUND"
	DuplicateName      Kind = "DUPLICATE_NAME"
	Unauthorized       Kind = "UNAUTHORIZED"
	RateLimited        Kind = "RATE_LIMITED"
	NotReady           Kind = "NOT_READY"
	BackendUnavailable Kind = "BACKEND_UNAVAILABLE"
	Conflict           Kind = "CONFLICT"
	Internal           Kind = "INTERNAL"
	Canceled           Kind = "CANCELED"
)

// retryableKinds are the kinds a caller may safely retry without changing
// the request.
var retryableKinds = map[Kind]bool{
	BackendUnavailable: true,
	RateLimited:        true,
}

// Error is the structured error type returned by every package in this
// module.
type Error struct {
	Kind      Kind
	Message   string
	Details   map[string]string
	Cause     error
	Retryable bool
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is enables errors.Is(err, target) to match by Kind, which lets callers
// write errors.Is(err, kberrors.New(kberrors.NotFound, "", nil)).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithDetail attaches a key-value detail and returns the error for chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New constructs an Error of the given kind. Retryable is derived from the
// kind unless overridden with WithRetryable.
func New(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:      kind,
		Message:   message,
		Cause:     cause,
		Retryable: retryableKinds[kind],
	}
}

// Wrap creates an Error of the given kind from an existing error, reusing
// its message.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return New(kind, err.Error(), err)
}

// WithRetryable overrides the kind-derived retryable default.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable reports whether err is a retryable *Error.
func IsRetryable(err error) bool {
	var e *Error
	if as(err, &e) {
		return e.Retryable
	}
	return false
}

// GetKind extracts the Kind from err, or "" if err is not a *Error.
func GetKind(err error) Kind {
	var e *Error
	if as(err, &e) {
		return e.Kind
	}
	return ""
}

// as is a tiny local alias for errors.As to avoid importing the stdlib
// package twice under two names in call sites.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
