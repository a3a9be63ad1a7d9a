package flowz

import "context"

// Chainable defines the interface for any component that can process
// values of type T. This interface enables composition of different
// processing components that operate on the same type.
//
// Chainable is the foundation of flowz - every processor and wrapper
// implements this interface. The uniform interface enables seamless
// composition while maintaining type safety through Go generics.
//
// Key design principles:
//   - Context support for timeout and cancellation
//   - Type safety through generics (no interface{})
//   - Error propagation for fail-fast behavior
//   - Immutable by convention (return modified copies)
//   - Named components for debugging and monitoring
type Chainable[T any] interface {
	Process(context.Context, T) (T, error)
	Name() Name
}

// Name is a type alias for processor and wrapper names.
// Using this type encourages storing names as constants rather than
// using inline strings throughout your code.
//
// Example:
//
//	const (
//	    FetchUserName   Name = "fetch-user"
//	    ScoreUserName   Name = "score-user"
//	)
//
//	fetchUser := flowz.Apply(FetchUserName, fetchFunc)
type Name = string

// Processor defines a named processing stage that transforms a value of type T.
// It contains a descriptive name for debugging and a private function that
// processes the value. The function receives a context for cancellation and
// timeout control.
//
// Processor is the basic building block created by the adapter functions
// Transform, Apply, and Effect. The name field appears in error messages and
// in Error[T].Path to identify exactly where failures occur.
//
// The fn field is intentionally private to ensure processors are only created
// through the provided adapter functions, maintaining consistent error
// handling and path tracking.
type Processor[T any] struct {
	fn   func(context.Context, T) (T, error)
	name Name
}

// Process implements the Chainable interface, allowing individual processors
// to be used directly or wrapped by Memoize, Retry, Backoff, and friends.
func (p Processor[T]) Process(ctx context.Context, data T) (T, error) {
	return p.fn(ctx, data)
}

// Name returns the name of the processor for debugging and error reporting.
func (p Processor[T]) Name() Name {
	return p.name
}
