// Package schederr defines the error taxonomy shared by every component of
// the scheduling core (§7). Components return one of these kinds instead of
// ad-hoc errors so every API handler's writeError can map them to HTTP status
// codes the same way, and so workers can decide whether to retry without inspecting
// string messages.
package schederr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for retry and HTTP-mapping purposes.
type Kind int

const (
	// KindValidation is malformed input. Never retried. Maps to 400.
	KindValidation Kind = iota
	// KindNotFound is an addressed entity that does not exist. Maps to 404.
	KindNotFound
	// KindConflict is a uniqueness violation or an impossible state
	// transition (e.g. editing a past post). Maps to 409.
	KindConflict
	// KindSpacingConflict is a scheduling invariant violation (§3). Maps to 409.
	KindSpacingConflict
	// KindRateLimited is remote quota exhaustion. Maps to 429.
	KindRateLimited
	// KindTransient is a DB or platform I/O failure that may succeed on retry.
	KindTransient
	// KindTerminal is a permanent platform rejection. Maps to 422.
	KindTerminal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindSpacingConflict:
		return "spacing_conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	case KindTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Error is a classified error carrying an optional machine-readable code,
// retry hint, and (for SpacingConflict) the offending neighbor times.
type Error struct {
	Kind       Kind
	Code       string // machine-readable, e.g. "account_frozen", "daily_cap_exceeded"
	Message    string
	RetryAfter time.Duration // set for KindRateLimited
	Neighbors  []time.Time   // set for KindSpacingConflict
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates a classified Error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap creates a classified Error that wraps an underlying cause.
func Wrap(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Cause: cause}
}

// Validation builds a KindValidation error.
func Validation(format string, args ...any) *Error {
	return New(KindValidation, "validation", fmt.Sprintf(format, args...))
}

// NotFound builds a KindNotFound error for the named resource.
func NotFound(resource string) *Error {
	return New(KindNotFound, "not_found", resource+" not found")
}

// Conflict builds a KindConflict error with a machine-readable code.
func Conflict(code, format string, args ...any) *Error {
	return New(KindConflict, code, fmt.Sprintf(format, args...))
}

// SpacingConflict builds a KindSpacingConflict error carrying offenders.
func SpacingConflict(neighbors []time.Time) *Error {
	return &Error{
		Kind:      KindSpacingConflict,
		Code:      "spacing_conflict",
		Message:   "scheduling invariant violated",
		Neighbors: neighbors,
	}
}

// RateLimited builds a KindRateLimited error with a retry-after hint.
func RateLimited(retryAfter time.Duration) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Code:       "rate_limited",
		Message:    "publishing quota exhausted",
		RetryAfter: retryAfter,
	}
}

// Transient wraps a retryable infrastructure failure.
func Transient(format string, cause error) *Error {
	return Wrap(KindTransient, "transient", format, cause)
}

// Terminal builds a KindTerminal error with a machine-readable code.
func Terminal(code, format string, args ...any) *Error {
	return New(KindTerminal, code, fmt.Sprintf(format, args...))
}

// As is a convenience wrapper over errors.As for *Error.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, and ok=false
// otherwise — callers should then treat the error as an unclassified
// KindTransient-worthy failure at their own discretion.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
