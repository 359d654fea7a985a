// Package apperr defines the typed error taxonomy used across the
// billing engine. Every error that can reach the HTTP boundary carries
// a stable kind, an HTTP status, and a human-readable message; internal
// detail (stack traces, driver errors) never crosses the gateway.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for boundary rendering and retry policy.
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindAlreadyVoided
	KindInvalidTransition
	KindInvalidState
	KindInsufficientAdvance
	KindZeroAmount
	KindPartialImport
	KindNotConfigured
	KindCanceled
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAlreadyVoided:
		return "already_voided"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindInvalidState:
		return "invalid_state"
	case KindInsufficientAdvance:
		return "insufficient_advance"
	case KindZeroAmount:
		return "zero_amount"
	case KindPartialImport:
		return "partial_import"
	case KindNotConfigured:
		return "not_configured"
	case KindCanceled:
		return "canceled"
	default:
		return "internal"
	}
}

// HTTPStatus maps a kind to the status code rendered at the boundary.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindZeroAmount:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAlreadyVoided, KindInvalidTransition, KindInvalidState, KindInsufficientAdvance:
		return http.StatusConflict
	case KindPartialImport:
		return http.StatusMultiStatus
	case KindNotConfigured:
		return http.StatusNotFound
	case KindCanceled:
		return 499 // client closed request
	default:
		return http.StatusInternalServerError
	}
}

// Error is the single concrete error type carried across layers.
type Error struct {
	Kind    Kind
	Msg     string
	Details []string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.wrapped }

// Is makes errors.Is match on kind so callers can compare against the
// sentinel constructors without caring about the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newf(k Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) *Error {
	return newf(KindValidation, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return newf(KindNotFound, format, args...)
}

func AlreadyVoided(format string, args ...interface{}) *Error {
	return newf(KindAlreadyVoided, format, args...)
}

func InvalidTransition(format string, args ...interface{}) *Error {
	return newf(KindInvalidTransition, format, args...)
}

func InvalidState(format string, args ...interface{}) *Error {
	return newf(KindInvalidState, format, args...)
}

func InsufficientAdvance(format string, args ...interface{}) *Error {
	return newf(KindInsufficientAdvance, format, args...)
}

func ZeroAmount(format string, args ...interface{}) *Error {
	return newf(KindZeroAmount, format, args...)
}

// NotConfigured marks a read against an insurance case that does not
// exist yet. Handlers translate it to an empty success payload, never
// to a user-facing failure.
func NotConfigured(format string, args ...interface{}) *Error {
	return newf(KindNotConfigured, format, args...)
}

// PartialImport reports a batch import where some uids failed while the
// rest were committed. Details holds one entry per failed uid.
func PartialImport(msg string, failed []string) *Error {
	return &Error{Kind: KindPartialImport, Msg: msg, Details: failed}
}

// Internal wraps an unexpected error. The wrapped cause is logged but
// never rendered to clients.
func Internal(err error, format string, args ...interface{}) *Error {
	e := newf(KindInternal, format, args...)
	e.wrapped = err
	return e
}

// FromContextErr converts context cancellation into a CanceledError so
// aborted requests are distinguishable from real failures and can be
// suppressed from user-facing alerts.
func FromContextErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindCanceled, Msg: "request canceled by caller", wrapped: err}
	}
	return err
}

// KindOf extracts the kind of an error, defaulting to KindInternal for
// errors that did not originate in this taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}
