package flowz

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Metric keys for Retry connector observability.
const (
	RetryAttemptsTotal  = metricz.Key("retry.attempts.total")
	RetrySuccessesTotal = metricz.Key("retry.successes.total")
	RetryExhaustedTotal = metricz.Key("retry.exhausted.total")
)

// Span names for Retry connector.
const (
	RetryProcessSpan = tracez.Key("retry.process")
)

// Span tags for Retry connector.
const (
	RetryTagConnector = tracez.Tag("retry.connector")
	RetryTagAttempts  = tracez.Tag("retry.attempts")
	RetryTagSuccess   = tracez.Tag("retry.success")

	// Hook event keys.
	RetryEventAttempt   = hookz.Key("retry.attempt")
	RetryEventExhausted = hookz.Key("retry.exhausted")
)

// RetryEvent represents a retry attempt outcome. It is emitted via hookz
// after every attempt, and once more when all attempts are exhausted.
type RetryEvent struct {
	Name        Name      // Connector name
	Attempt     int       // 1-based attempt number (0 for exhausted events)
	MaxAttempts int       // Configured attempt bound
	Success     bool      // Whether this attempt succeeded
	Error       error     // Error if the attempt failed
	Timestamp   time.Time // When the event occurred
}

// Retry attempts the processor up to maxAttempts times.
// Retry provides simple retry logic for operations that may fail
// transiently. It immediately retries on failure without delay,
// making it suitable for quick operations or when failures are
// expected to clear immediately.
//
// Each retry uses the same input data. Context cancellation is
// checked between attempts to allow for early termination.
// If all attempts fail, the last error is returned wrapped in
// *RetryExhaustedError carrying the attempt count.
//
// Use Retry for:
//   - Network calls with transient failures
//   - Database operations during brief contentions
//   - File operations with temporary locks
//   - Any operation with intermittent failures
//
// For operations needing delay between retries, use Backoff.
//
// Example:
//
//	retry, err := flowz.NewRetry("retry-db", databaseWriter, 3)
type Retry[T any] struct {
	processor   Chainable[T]
	name        Name
	maxAttempts int
	mu          sync.RWMutex

	// Observability
	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hookz.Hooks[RetryEvent]
}

// NewRetry creates a new Retry connector. maxAttempts must be at least 1;
// anything lower returns *InvalidConfigError.
func NewRetry[T any](name Name, processor Chainable[T], maxAttempts int) (*Retry[T], error) {
	if maxAttempts < 1 {
		return nil, &InvalidConfigError{Param: "maxAttempts", Value: maxAttempts}
	}

	registry := metricz.New()
	tracer := tracez.New()

	registry.Counter(RetryAttemptsTotal)
	registry.Counter(RetrySuccessesTotal)
	registry.Counter(RetryExhaustedTotal)

	return &Retry[T]{
		name:        name,
		processor:   processor,
		maxAttempts: maxAttempts,
		metrics:     registry,
		tracer:      tracer,
		hooks:       hookz.New[RetryEvent](),
	}, nil
}

// Process implements the Chainable interface.
func (r *Retry[T]) Process(ctx context.Context, data T) (result T, err error) {
	defer recoverFromPanic(&result, &err, r.name, data)

	r.mu.RLock()
	processor := r.processor
	maxAttempts := r.maxAttempts
	r.mu.RUnlock()

	ctx, span := r.tracer.StartSpan(ctx, RetryProcessSpan)
	defer span.Finish()
	span.SetTag(RetryTagConnector, string(r.name))

	var lastErr error
	var lastResult T

	for i := 0; i < maxAttempts; i++ {
		attempt := i + 1
		r.metrics.Counter(RetryAttemptsTotal).Inc()

		result, err := processor.Process(ctx, data)

		_ = r.hooks.Emit(ctx, RetryEventAttempt, RetryEvent{ //nolint:errcheck
			Name:        r.name,
			Attempt:     attempt,
			MaxAttempts: maxAttempts,
			Success:     err == nil,
			Error:       err,
			Timestamp:   time.Now(),
		})

		if err == nil {
			r.metrics.Counter(RetrySuccessesTotal).Inc()
			span.SetTag(RetryTagAttempts, strconv.Itoa(attempt))
			span.SetTag(RetryTagSuccess, "true")
			return result, nil
		}

		lastErr = err
		lastResult = result

		// Check if context is canceled between attempts.
		if ctx.Err() != nil {
			span.SetTag(RetryTagSuccess, "false")
			return data, &Error[T]{
				Err:       ctx.Err(),
				InputData: data,
				Path:      []Name{r.name},
				Timeout:   errors.Is(ctx.Err(), context.DeadlineExceeded),
				Canceled:  errors.Is(ctx.Err(), context.Canceled),
				Timestamp: time.Now(),
			}
		}
	}

	r.metrics.Counter(RetryExhaustedTotal).Inc()
	span.SetTag(RetryTagAttempts, strconv.Itoa(maxAttempts))
	span.SetTag(RetryTagSuccess, "false")

	_ = r.hooks.Emit(ctx, RetryEventExhausted, RetryEvent{ //nolint:errcheck
		Name:        r.name,
		MaxAttempts: maxAttempts,
		Error:       lastErr,
		Timestamp:   time.Now(),
	})

	return lastResult, exhausted(r.name, maxAttempts, lastErr, data)
}

// exhausted wraps the last failure of a retry loop in *RetryExhaustedError
// inside an *Error[T] carrying the wrapper's name in the path.
func exhausted[T any](name Name, attempts int, lastErr error, data T) error {
	wrapped := &RetryExhaustedError{Attempts: attempts, LastErr: lastErr}
	var pipeErr *Error[T]
	if errors.As(lastErr, &pipeErr) {
		return &Error[T]{
			Timestamp: time.Now(),
			InputData: data,
			Err:       wrapped,
			Path:      append([]Name{name}, pipeErr.Path...),
		}
	}
	return &Error[T]{
		Timestamp: time.Now(),
		InputData: data,
		Err:       wrapped,
		Path:      []Name{name},
	}
}

// SetMaxAttempts updates the maximum number of retry attempts. Values below
// 1 are ignored.
func (r *Retry[T]) SetMaxAttempts(n int) *Retry[T] {
	if n < 1 {
		return r
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxAttempts = n
	return r
}

// GetMaxAttempts returns the current maximum attempts setting.
func (r *Retry[T]) GetMaxAttempts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maxAttempts
}

// Name returns the name of this connector.
func (r *Retry[T]) Name() Name {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.name
}

// Metrics returns the metrics registry for this connector.
func (r *Retry[T]) Metrics() *metricz.Registry {
	return r.metrics
}

// Tracer returns the tracer for this connector.
func (r *Retry[T]) Tracer() *tracez.Tracer {
	return r.tracer
}

// OnAttempt registers a handler called after every attempt.
func (r *Retry[T]) OnAttempt(handler func(context.Context, RetryEvent) error) error {
	_, err := r.hooks.Hook(RetryEventAttempt, handler)
	return err
}

// OnExhausted registers a handler called when all attempts have failed.
func (r *Retry[T]) OnExhausted(handler func(context.Context, RetryEvent) error) error {
	_, err := r.hooks.Hook(RetryEventExhausted, handler)
	return err
}

// Close gracefully shuts down observability components.
func (r *Retry[T]) Close() error {
	if r.tracer != nil {
		r.tracer.Close()
	}
	r.hooks.Close()
	return nil
}
