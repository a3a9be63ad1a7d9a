package flowz

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Metric keys for Backoff connector observability.
const (
	BackoffAttemptsTotal  = metricz.Key("backoff.attempts.total")
	BackoffSuccessesTotal = metricz.Key("backoff.successes.total")
	BackoffExhaustedTotal = metricz.Key("backoff.exhausted.total")
	BackoffWaitMs         = metricz.Key("backoff.wait.ms")
)

// Span names for Backoff connector.
const (
	BackoffProcessSpan = tracez.Key("backoff.process")
)

// Span tags for Backoff connector.
const (
	BackoffTagConnector = tracez.Tag("backoff.connector")
	BackoffTagSuccess   = tracez.Tag("backoff.success")

	// Hook event keys.
	BackoffEventWaiting   = hookz.Key("backoff.waiting")
	BackoffEventExhausted = hookz.Key("backoff.exhausted")
)

// BackoffEvent represents a wait between attempts, or exhaustion of all
// attempts.
type BackoffEvent struct {
	Name        Name          // Connector name
	Attempt     int           // 1-based attempt that just failed
	MaxAttempts int           // Configured attempt bound
	Delay       time.Duration // Delay before the next attempt
	Error       error         // Error from the failed attempt
	Timestamp   time.Time     // When the event occurred
}

// Strategy produces the delay sequence between attempts. It is a factory:
// each Process call obtains a fresh backoff.BackOff so per-call delay state
// never leaks between invocations. A NextBackOff of backoff.Stop ends the
// retry loop early even when attempts remain.
type Strategy func() backoff.BackOff

// Backoff attempts the processor with a delay between attempts.
// Backoff adds spacing between retries so failed services are not
// overwhelmed and transient issues have time to resolve.
//
// The default strategy waits a constant baseDelay between attempts.
// WithExponential switches to an exponential curve starting at baseDelay,
// and WithStrategy accepts any cenkalti/backoff strategy (or a custom
// implementation) for full control of the curve.
//
// No delay is applied after the final failed attempt - the caller gets the
// exhaustion error immediately. Waits go through a clockz Clock, so tests
// can drive them with a fake clock instead of sleeping.
//
// Ideal for:
//   - API calls to rate-limited services
//   - Database operations during high load
//   - Any operation where immediate retry is counterproductive
type Backoff[T any] struct {
	processor   Chainable[T]
	clock       clockz.Clock
	strategy    Strategy
	name        Name
	baseDelay   time.Duration
	maxAttempts int
	mu          sync.RWMutex

	// Observability
	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hookz.Hooks[BackoffEvent]
}

// NewBackoff creates a new Backoff connector. maxAttempts must be at least
// 1 and baseDelay must not be negative; violations return
// *InvalidConfigError.
func NewBackoff[T any](name Name, processor Chainable[T], maxAttempts int, baseDelay time.Duration) (*Backoff[T], error) {
	if maxAttempts < 1 {
		return nil, &InvalidConfigError{Param: "maxAttempts", Value: maxAttempts}
	}
	if baseDelay < 0 {
		return nil, &InvalidConfigError{Param: "baseDelay", Value: int(baseDelay)}
	}

	registry := metricz.New()
	tracer := tracez.New()

	registry.Counter(BackoffAttemptsTotal)
	registry.Counter(BackoffSuccessesTotal)
	registry.Counter(BackoffExhaustedTotal)
	registry.Gauge(BackoffWaitMs)

	return &Backoff[T]{
		name:        name,
		processor:   processor,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		metrics:     registry,
		tracer:      tracer,
		hooks:       hookz.New[BackoffEvent](),
	}, nil
}

// Process implements the Chainable interface.
func (b *Backoff[T]) Process(ctx context.Context, data T) (result T, err error) {
	defer recoverFromPanic(&result, &err, b.name, data)

	b.mu.RLock()
	processor := b.processor
	maxAttempts := b.maxAttempts
	strategy := b.getStrategy()
	clock := b.getClock()
	b.mu.RUnlock()

	ctx, span := b.tracer.StartSpan(ctx, BackoffProcessSpan)
	defer span.Finish()
	span.SetTag(BackoffTagConnector, string(b.name))

	delays := strategy()
	var lastErr error
	var lastResult T
	attempts := 0

	for i := 0; i < maxAttempts; i++ {
		attempts = i + 1
		b.metrics.Counter(BackoffAttemptsTotal).Inc()

		result, err := processor.Process(ctx, data)
		if err == nil {
			b.metrics.Counter(BackoffSuccessesTotal).Inc()
			span.SetTag(BackoffTagSuccess, "true")
			return result, nil
		}

		lastErr = err
		lastResult = result

		// Don't wait after the last attempt.
		if i == maxAttempts-1 {
			break
		}

		delay := delays.NextBackOff()
		if delay == backoff.Stop {
			break
		}

		b.metrics.Gauge(BackoffWaitMs).Set(float64(delay.Milliseconds()))
		_ = b.hooks.Emit(ctx, BackoffEventWaiting, BackoffEvent{ //nolint:errcheck
			Name:        b.name,
			Attempt:     attempts,
			MaxAttempts: maxAttempts,
			Delay:       delay,
			Error:       err,
			Timestamp:   time.Now(),
		})

		select {
		case <-clock.After(delay):
		case <-ctx.Done():
			span.SetTag(BackoffTagSuccess, "false")
			return data, &Error[T]{
				Err:       ctx.Err(),
				InputData: data,
				Path:      []Name{b.name},
				Timeout:   errors.Is(ctx.Err(), context.DeadlineExceeded),
				Canceled:  errors.Is(ctx.Err(), context.Canceled),
				Timestamp: time.Now(),
			}
		}
	}

	b.metrics.Counter(BackoffExhaustedTotal).Inc()
	span.SetTag(BackoffTagSuccess, "false")

	_ = b.hooks.Emit(ctx, BackoffEventExhausted, BackoffEvent{ //nolint:errcheck
		Name:        b.name,
		Attempt:     attempts,
		MaxAttempts: maxAttempts,
		Error:       lastErr,
		Timestamp:   time.Now(),
	})

	return lastResult, exhausted(b.name, attempts, lastErr, data)
}

// WithStrategy replaces the delay strategy. The factory is invoked once per
// Process call.
func (b *Backoff[T]) WithStrategy(strategy Strategy) *Backoff[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.strategy = strategy
	return b
}

// WithExponential switches to an exponential delay curve starting at the
// base delay and doubling after each failure, without randomization, so
// delays are predictable: baseDelay, 2*baseDelay, 4*baseDelay, ...
func (b *Backoff[T]) WithExponential() *Backoff[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	base := b.baseDelay
	b.strategy = func() backoff.BackOff {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = base
		exp.RandomizationFactor = 0
		exp.Multiplier = 2
		exp.MaxElapsedTime = 0
		return exp
	}
	return b
}

// SetMaxAttempts updates the maximum number of retry attempts. Values below
// 1 are ignored.
func (b *Backoff[T]) SetMaxAttempts(n int) *Backoff[T] {
	if n < 1 {
		return b
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maxAttempts = n
	return b
}

// SetBaseDelay updates the base delay used by the default and exponential
// strategies. Negative values are ignored.
func (b *Backoff[T]) SetBaseDelay(d time.Duration) *Backoff[T] {
	if d < 0 {
		return b
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.baseDelay = d
	return b
}

// GetMaxAttempts returns the current maximum attempts setting.
func (b *Backoff[T]) GetMaxAttempts() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.maxAttempts
}

// GetBaseDelay returns the current base delay setting.
func (b *Backoff[T]) GetBaseDelay() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.baseDelay
}

// Name returns the name of this connector.
func (b *Backoff[T]) Name() Name {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.name
}

// Metrics returns the metrics registry for this connector.
func (b *Backoff[T]) Metrics() *metricz.Registry {
	return b.metrics
}

// Tracer returns the tracer for this connector.
func (b *Backoff[T]) Tracer() *tracez.Tracer {
	return b.tracer
}

// OnWaiting registers a handler called before each delay.
func (b *Backoff[T]) OnWaiting(handler func(context.Context, BackoffEvent) error) error {
	_, err := b.hooks.Hook(BackoffEventWaiting, handler)
	return err
}

// OnExhausted registers a handler called when all attempts have failed.
func (b *Backoff[T]) OnExhausted(handler func(context.Context, BackoffEvent) error) error {
	_, err := b.hooks.Hook(BackoffEventExhausted, handler)
	return err
}

// WithClock sets a custom clock for testing.
func (b *Backoff[T]) WithClock(clock clockz.Clock) *Backoff[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clock = clock
	return b
}

// getClock returns the clock to use. Callers must hold at least a read lock.
func (b *Backoff[T]) getClock() clockz.Clock {
	if b.clock == nil {
		return clockz.RealClock
	}
	return b.clock
}

// getStrategy returns the strategy to use. Callers must hold at least a
// read lock.
func (b *Backoff[T]) getStrategy() Strategy {
	if b.strategy != nil {
		return b.strategy
	}
	base := b.baseDelay
	return func() backoff.BackOff {
		return backoff.NewConstantBackOff(base)
	}
}

// Close gracefully shuts down observability components.
func (b *Backoff[T]) Close() error {
	if b.tracer != nil {
		b.tracer.Close()
	}
	b.hooks.Close()
	return nil
}
