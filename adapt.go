package flowz

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Transform creates a Processor that applies a pure transformation function
// to data. Transform is the simplest processor - use it when your operation
// always succeeds and always modifies the data in a predictable way.
//
// The transformation function cannot fail, making Transform ideal for:
//   - Data formatting (uppercase, trimming, parsing that can't fail)
//   - Mathematical calculations that can't error
//   - Field mapping or restructuring
//   - Adding computed fields
//
// If your transformation might fail (e.g., parsing, validation), use Apply.
//
// Example:
//
//	uppercase := flowz.Transform("uppercase", func(_ context.Context, s string) string {
//	    return strings.ToUpper(s)
//	})
func Transform[T any](name Name, fn func(context.Context, T) T) Processor[T] {
	return Processor[T]{
		name: name,
		fn: func(ctx context.Context, value T) (result T, err error) {
			defer recoverFromPanic(&result, &err, name, value)
			result = fn(ctx, value)
			return result, nil
		},
	}
}

// Apply creates a Processor from a function that transforms data and may
// return an error. Apply is the workhorse processor - use it when your
// transformation might fail due to validation, parsing, external calls, or
// business rule violations.
//
// The function receives a context for timeout/cancellation support.
// Long-running operations should check ctx.Err() periodically. On error,
// processing stops immediately and the error is wrapped with debugging
// context.
//
// For pure transformations that can't fail, use Transform.
//
// Example:
//
//	parseJSON := flowz.Apply("parse_json", func(ctx context.Context, raw string) (Data, error) {
//	    var data Data
//	    if err := json.Unmarshal([]byte(raw), &data); err != nil {
//	        return Data{}, fmt.Errorf("invalid JSON: %w", err)
//	    }
//	    return data, nil
//	})
func Apply[T any](name Name, fn func(context.Context, T) (T, error)) Processor[T] {
	return Processor[T]{
		name: name,
		fn: func(ctx context.Context, value T) (result T, err error) {
			defer recoverFromPanic(&result, &err, name, value)
			start := time.Now()
			result, applyErr := fn(ctx, value)
			if applyErr != nil {
				var zero T
				return zero, &Error[T]{
					Path:      []Name{name},
					InputData: value,
					Err:       applyErr,
					Timestamp: time.Now(),
					Duration:  time.Since(start),
					Timeout:   errors.Is(applyErr, context.DeadlineExceeded),
					Canceled:  errors.Is(applyErr, context.Canceled),
				}
			}
			return result, nil
		},
	}
}

// Effect creates a Processor that performs side effects without modifying
// the data. Effect is for operations that need to happen alongside your main
// processing flow, such as logging, metrics collection, or notifications.
//
// The function receives the data for inspection but must not modify it. Any
// returned error stops processing immediately. The original data always
// passes through unchanged.
//
// Example:
//
//	audit := flowz.Effect("audit", func(ctx context.Context, order Order) error {
//	    return auditLog.Record(ctx, order.ID)
//	})
func Effect[T any](name Name, fn func(context.Context, T) error) Processor[T] {
	return Processor[T]{
		name: name,
		fn: func(ctx context.Context, value T) (result T, err error) {
			defer recoverFromPanic(&result, &err, name, value)
			start := time.Now()
			if effectErr := fn(ctx, value); effectErr != nil {
				var zero T
				return zero, &Error[T]{
					Path:      []Name{name},
					InputData: value,
					Err:       effectErr,
					Timestamp: time.Now(),
					Duration:  time.Since(start),
					Timeout:   errors.Is(effectErr, context.DeadlineExceeded),
					Canceled:  errors.Is(effectErr, context.Canceled),
				}
			}
			return value, nil
		},
	}
}

// recoverFromPanic converts a panic in a user-supplied function into an
// *Error[T] so a misbehaving processor cannot take down the caller. The
// panicking processor's name becomes the error path and the input data is
// preserved for debugging.
func recoverFromPanic[T any](result *T, err *error, name Name, input T) {
	if r := recover(); r != nil {
		var zero T
		*result = zero
		*err = &Error[T]{
			Path:      []Name{name},
			InputData: input,
			Err:       fmt.Errorf("panic: %v", r),
			Timestamp: time.Now(),
		}
	}
}
