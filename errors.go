package flowz

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error provides rich context about processing failures. It wraps the
// underlying error with information about where and when the failure
// occurred, what data was being processed, and whether the failure was due
// to timeout or cancellation.
//
// Path records the chain of names the failure traveled through, outermost
// first. Wrappers prepend their own name as the error propagates, so
// ["retry-fetch", "fetch_user"] reads as "the fetch_user processor failed
// inside the retry-fetch wrapper".
type Error[T any] struct {
	InputData T
	Timestamp time.Time
	Err       error
	Path      []Name
	Duration  time.Duration
	Timeout   bool
	Canceled  bool
}

// Error implements the error interface, providing a detailed error message.
func (e *Error[T]) Error() string {
	location := "processing"
	if len(e.Path) > 0 {
		location = fmt.Sprintf("%v", e.Path)
	}

	if e.Timeout {
		return fmt.Sprintf("%s timed out after %v: %v", location, e.Duration, e.Err)
	}
	if e.Canceled {
		return fmt.Sprintf("%s canceled after %v: %v", location, e.Duration, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", location, e.Err)
}

// Unwrap returns the underlying error, supporting errors.Is and errors.As.
func (e *Error[T]) Unwrap() error {
	return e.Err
}

// IsTimeout returns true if the error was caused by a timeout.
func (e *Error[T]) IsTimeout() bool {
	return e.Timeout || errors.Is(e.Err, context.DeadlineExceeded)
}

// IsCanceled returns true if the error was caused by cancellation.
func (e *Error[T]) IsCanceled() bool {
	return e.Canceled || errors.Is(e.Err, context.Canceled)
}

// InvalidConfigError reports a constructor parameter that fails validation,
// such as a non-positive batch size or attempt count. It surfaces at
// construction time so misconfiguration is caught before any data flows.
type InvalidConfigError struct {
	Param string
	Value int
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s out of range: %d", e.Param, e.Value)
}

// InvalidKeyError reports a memoize key that cannot be used as a map key at
// runtime. This happens when the key type parameter is an interface and the
// dynamic value is not comparable (a slice, map, or function). It surfaces
// at call time because the offending value is only known then.
type InvalidKeyError struct {
	Key   any
	Cause error
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid cache key %v: %v", e.Key, e.Cause)
}

func (e *InvalidKeyError) Unwrap() error {
	return e.Cause
}

// RetryExhaustedError reports that every retry attempt failed. It carries
// the total attempt count and wraps the last failure observed, so callers
// can still match the underlying error with errors.Is and errors.As.
type RetryExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("all %d attempts failed: %v", e.Attempts, e.LastErr)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.LastErr
}

// InvalidStateError reports use of a Guard that is not in a usable state,
// such as running a guard that already committed or rolled back. Guards are
// single-use; create a new one per transaction.
type InvalidStateError struct {
	State GuardState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("guard is %s and cannot be reused", e.State)
}
