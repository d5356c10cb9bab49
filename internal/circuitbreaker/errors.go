package circuitbreaker

import (
	"errors"
	"fmt"
	"time"
)

type errorKind int

const (
	kindCircuitOpen errorKind = iota
	kindCallFailed
	kindTimeout
)

// Error is the result wrapper for guarded execution. It has exactly three
// shapes: circuit-open (the breaker rejected the call before it ran),
// call-failed (the operation ran and failed, carrying the original error),
// and timeout (the operation did not complete within the call timeout).
type Error struct {
	kind     errorKind
	target   string
	duration time.Duration
	inner    error
}

// NewCircuitOpen reports that the breaker for target rejected the call.
func NewCircuitOpen(target string) *Error {
	return &Error{kind: kindCircuitOpen, target: target}
}

// NewCallFailed wraps the error returned by the operation itself.
func NewCallFailed(inner error) *Error {
	return &Error{kind: kindCallFailed, inner: inner}
}

// NewTimeout reports that the call exceeded the configured timeout.
func NewTimeout(duration time.Duration) *Error {
	return &Error{kind: kindTimeout, duration: duration}
}

func (e *Error) Error() string {
	switch e.kind {
	case kindCircuitOpen:
		return fmt.Sprintf("circuit breaker is open for target: %s", e.target)
	case kindCallFailed:
		return fmt.Sprintf("call failed: %v", e.inner)
	case kindTimeout:
		return fmt.Sprintf("call timed out after %s", e.duration)
	default:
		return "unknown circuit breaker error"
	}
}

// Unwrap exposes the operation's own error for errors.Is and errors.As.
// It returns nil unless the call actually ran and failed.
func (e *Error) Unwrap() error {
	if e.kind == kindCallFailed {
		return e.inner
	}
	return nil
}

// IsCircuitOpen reports whether the breaker rejected the call.
func (e *Error) IsCircuitOpen() bool { return e.kind == kindCircuitOpen }

// IsCallFailed reports whether the wrapped operation ran and failed.
func (e *Error) IsCallFailed() bool { return e.kind == kindCallFailed }

// IsTimeout reports whether the call exceeded its timeout.
func (e *Error) IsTimeout() bool { return e.kind == kindTimeout }

// Target returns the target name. It is only set for circuit-open errors.
func (e *Error) Target() (string, bool) {
	if e.kind == kindCircuitOpen {
		return e.target, true
	}
	return "", false
}

// Duration returns the configured timeout that was exceeded. It is only
// set for timeout errors.
func (e *Error) Duration() (time.Duration, bool) {
	if e.kind == kindTimeout {
		return e.duration, true
	}
	return 0, false
}

// Map transforms the inner error of a call-failed result. Circuit-open and
// timeout results pass through structurally unchanged.
func (e *Error) Map(f func(error) error) *Error {
	if e.kind == kindCallFailed {
		return &Error{kind: kindCallFailed, inner: f(e.inner)}
	}
	return e
}

// IsCircuitOpen reports whether err is a circuit-open rejection anywhere
// in its chain.
func IsCircuitOpen(err error) bool {
	var cbErr *Error
	return errors.As(err, &cbErr) && cbErr.IsCircuitOpen()
}

// IsCallFailed reports whether err wraps an operation failure.
func IsCallFailed(err error) bool {
	var cbErr *Error
	return errors.As(err, &cbErr) && cbErr.IsCallFailed()
}

// IsTimeout reports whether err is a guarded-call timeout.
func IsTimeout(err error) bool {
	var cbErr *Error
	return errors.As(err, &cbErr) && cbErr.IsTimeout()
}
