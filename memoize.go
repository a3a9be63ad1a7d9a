package flowz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Metric keys for Memoize connector observability.
const (
	MemoizeProcessedTotal = metricz.Key("memoize.processed.total")
	MemoizeHitsTotal      = metricz.Key("memoize.hits.total")
	MemoizeMissesTotal    = metricz.Key("memoize.misses.total")
)

// Span names for Memoize connector.
const (
	MemoizeProcessSpan = tracez.Key("memoize.process")
)

// Span tags for Memoize connector.
const (
	MemoizeTagConnector = tracez.Tag("memoize.connector")
	MemoizeTagHit       = tracez.Tag("memoize.hit")
	MemoizeTagError     = tracez.Tag("memoize.error")

	// Hook event keys.
	MemoizeEventHit  = hookz.Key("memoize.hit")
	MemoizeEventMiss = hookz.Key("memoize.miss")
)

// MemoizeEvent represents a cache lookup outcome. It is emitted via hookz
// on every hit and every miss, allowing external systems to track cache
// effectiveness.
type MemoizeEvent struct {
	Name      Name          // Connector name
	Key       any           // Cache key for this call
	Hit       bool          // Whether the result came from cache
	Error     error         // Error if the computation failed (miss only)
	Duration  time.Duration // Computation time (miss only)
	Timestamp time.Time     // When the event occurred
}

// Store is the cache backing a Memoize connector. The default is an
// unbounded in-process map; plug a bounded implementation (see
// store/ristretto) when entries must be evicted under a replacement policy.
//
// A ttl of zero or less means the entry never expires.
type Store[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
}

// Memoize caches the results of a successful processor invocation, keyed by
// a caller-supplied key function. The first call with a given key invokes
// the processor; subsequent calls with the same key return the cached value
// without invoking it. Errors are never cached - a failed computation is
// retried on the next call with the same key.
//
// Memoize is ideal for:
//   - Expensive pure computations invoked repeatedly with the same inputs
//   - Lookups against slow backends where staleness is acceptable
//   - Deduplicating repeated work inside a single request
//
// The default store grows without bound. Callers needing bounded memory
// must supply an evicting store via WithStore, or an expiry via WithTTL.
//
// Concurrency: by default, concurrent calls that miss on the same key race
// to compute and the last write wins. The processor may therefore run more
// than once per key under contention, which is harmless for pure functions.
// WithSingleflight collapses concurrent misses for one key into a single
// computation when duplicate work is expensive.
//
// Keys must be usable as map keys. When K is an interface type holding a
// non-comparable dynamic value (a slice, map, or function), the call fails
// with *InvalidKeyError at call time; construction never fails.
//
// Example:
//
//	score := flowz.Apply("score", scoreUser)
//	cached := flowz.NewMemoize("score-cache",
//	    func(u User) string { return u.ID },
//	    score,
//	).WithTTL(time.Minute)
type Memoize[T any, K comparable] struct {
	processor    Chainable[T]
	keyFn        func(T) K
	store        Store[K, T]
	defaultStore *mapStore[K, T]
	clock        clockz.Clock
	flight       map[K]*flightCall[T]
	name         Name
	ttl          time.Duration
	singleflight bool
	mu           sync.RWMutex
	flightMu     sync.Mutex

	// Observability
	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hookz.Hooks[MemoizeEvent]
}

type flightCall[T any] struct {
	wg  sync.WaitGroup
	val T
	err error
}

// NewMemoize creates a new Memoize connector caching results of processor
// under keys produced by keyFn.
func NewMemoize[T any, K comparable](name Name, keyFn func(T) K, processor Chainable[T]) *Memoize[T, K] {
	registry := metricz.New()
	tracer := tracez.New()

	registry.Counter(MemoizeProcessedTotal)
	registry.Counter(MemoizeHitsTotal)
	registry.Counter(MemoizeMissesTotal)

	defaultStore := newMapStore[K, T](clockz.RealClock)

	return &Memoize[T, K]{
		name:         name,
		keyFn:        keyFn,
		processor:    processor,
		store:        defaultStore,
		defaultStore: defaultStore,
		flight:       make(map[K]*flightCall[T]),
		metrics:      registry,
		tracer:       tracer,
		hooks:        hookz.New[MemoizeEvent](),
	}
}

// Process implements the Chainable interface.
func (m *Memoize[T, K]) Process(ctx context.Context, data T) (result T, err error) {
	defer recoverFromPanic(&result, &err, m.name, data)

	m.mu.RLock()
	processor := m.processor
	keyFn := m.keyFn
	store := m.store
	ttl := m.ttl
	singleflight := m.singleflight
	m.mu.RUnlock()

	ctx, span := m.tracer.StartSpan(ctx, MemoizeProcessSpan)
	defer span.Finish()
	span.SetTag(MemoizeTagConnector, string(m.name))

	m.metrics.Counter(MemoizeProcessedTotal).Inc()

	key := keyFn(data)

	value, ok, lookupErr := storeLookup(store, key)
	if lookupErr != nil {
		span.SetTag(MemoizeTagError, lookupErr.Error())
		return data, &Error[T]{
			Timestamp: time.Now(),
			InputData: data,
			Err:       lookupErr,
			Path:      []Name{m.name},
		}
	}
	if ok {
		m.recordHit(ctx, span.SetTag, key)
		return value, nil
	}

	if singleflight {
		return m.processShared(ctx, span.SetTag, store, key, data, ttl)
	}
	return m.compute(ctx, span.SetTag, processor, store, key, data, ttl)
}

// processShared collapses concurrent misses on one key into a single
// computation. Followers block until the leader finishes and share its
// result.
func (m *Memoize[T, K]) processShared(ctx context.Context, setTag func(tracez.Tag, string), store Store[K, T], key K, data T, ttl time.Duration) (T, error) {
	m.flightMu.Lock()
	if c, ok := m.flight[key]; ok {
		m.flightMu.Unlock()
		c.wg.Wait()
		if c.err == nil {
			m.recordHit(ctx, setTag, key)
		}
		return c.val, c.err
	}

	// Double-check under the flight lock: a leader may have finished and
	// populated the store between our miss and acquiring the lock.
	if value, ok, _ := storeLookup(store, key); ok {
		m.flightMu.Unlock()
		m.recordHit(ctx, setTag, key)
		return value, nil
	}

	c := &flightCall[T]{}
	c.wg.Add(1)
	m.flight[key] = c
	m.flightMu.Unlock()

	m.mu.RLock()
	processor := m.processor
	m.mu.RUnlock()

	c.val, c.err = m.compute(ctx, setTag, processor, store, key, data, ttl)

	m.flightMu.Lock()
	delete(m.flight, key)
	m.flightMu.Unlock()
	c.wg.Done()

	return c.val, c.err
}

// compute runs the processor on a cache miss and stores a successful result.
func (m *Memoize[T, K]) compute(ctx context.Context, setTag func(tracez.Tag, string), processor Chainable[T], store Store[K, T], key K, data T, ttl time.Duration) (T, error) {
	m.metrics.Counter(MemoizeMissesTotal).Inc()
	setTag(MemoizeTagHit, "false")

	start := time.Now()
	result, err := processor.Process(ctx, data)
	duration := time.Since(start)

	_ = m.hooks.Emit(ctx, MemoizeEventMiss, MemoizeEvent{ //nolint:errcheck
		Name:      m.name,
		Key:       key,
		Hit:       false,
		Error:     err,
		Duration:  duration,
		Timestamp: time.Now(),
	})

	if err != nil {
		setTag(MemoizeTagError, err.Error())
		var pipeErr *Error[T]
		if errors.As(err, &pipeErr) {
			pipeErr.Path = append([]Name{m.name}, pipeErr.Path...)
			return result, pipeErr
		}
		return result, &Error[T]{
			Timestamp: time.Now(),
			InputData: data,
			Err:       err,
			Path:      []Name{m.name},
		}
	}

	if setErr := storeSet(store, key, result, ttl); setErr != nil {
		setTag(MemoizeTagError, setErr.Error())
		return result, &Error[T]{
			Timestamp: time.Now(),
			InputData: data,
			Err:       setErr,
			Path:      []Name{m.name},
		}
	}
	return result, nil
}

func (m *Memoize[T, K]) recordHit(ctx context.Context, setTag func(tracez.Tag, string), key K) {
	m.metrics.Counter(MemoizeHitsTotal).Inc()
	setTag(MemoizeTagHit, "true")
	_ = m.hooks.Emit(ctx, MemoizeEventHit, MemoizeEvent{ //nolint:errcheck
		Name:      m.name,
		Key:       key,
		Hit:       true,
		Timestamp: time.Now(),
	})
}

// storeLookup guards a store read against the runtime panic raised when a
// dynamically non-comparable key reaches a map.
func storeLookup[K comparable, V any](s Store[K, V], key K) (value V, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &InvalidKeyError{Key: key, Cause: fmt.Errorf("%v", r)}
		}
	}()
	value, ok = s.Get(key)
	return value, ok, nil
}

// storeSet guards a store write the same way storeLookup guards reads.
func storeSet[K comparable, V any](s Store[K, V], key K, value V, ttl time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &InvalidKeyError{Key: key, Cause: fmt.Errorf("%v", r)}
		}
	}()
	s.Set(key, value, ttl)
	return nil
}

// WithTTL sets an expiry for cached entries. Expired entries behave as
// misses and are recomputed on next access. Zero or negative disables
// expiry (the default).
func (m *Memoize[T, K]) WithTTL(ttl time.Duration) *Memoize[T, K] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttl = ttl
	return m
}

// WithStore replaces the default unbounded map store. Use this to plug an
// evicting store when cache memory must stay bounded.
func (m *Memoize[T, K]) WithStore(store Store[K, T]) *Memoize[T, K] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = store
	m.defaultStore = nil
	return m
}

// WithSingleflight collapses concurrent misses for the same key into one
// computation. Without it, concurrent misses race to compute and the last
// write wins.
func (m *Memoize[T, K]) WithSingleflight() *Memoize[T, K] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.singleflight = true
	return m
}

// WithClock sets a custom clock for testing TTL expiry.
func (m *Memoize[T, K]) WithClock(clock clockz.Clock) *Memoize[T, K] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
	if m.defaultStore != nil {
		m.defaultStore.setClock(clock)
	}
	return m
}

// Size returns the number of entries currently cached, or -1 when the
// store does not report its length (approximating stores like ristretto
// track admissions, not exact counts).
func (m *Memoize[T, K]) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if counted, ok := m.store.(interface{ Len() int }); ok {
		return counted.Len()
	}
	return -1
}

// Name returns the name of this connector.
func (m *Memoize[T, K]) Name() Name {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.name
}

// Metrics returns the metrics registry for this connector.
func (m *Memoize[T, K]) Metrics() *metricz.Registry {
	return m.metrics
}

// Tracer returns the tracer for this connector.
func (m *Memoize[T, K]) Tracer() *tracez.Tracer {
	return m.tracer
}

// OnHit registers a handler called whenever a lookup is served from cache.
func (m *Memoize[T, K]) OnHit(handler func(context.Context, MemoizeEvent) error) error {
	_, err := m.hooks.Hook(MemoizeEventHit, handler)
	return err
}

// OnMiss registers a handler called whenever a lookup falls through to the
// processor.
func (m *Memoize[T, K]) OnMiss(handler func(context.Context, MemoizeEvent) error) error {
	_, err := m.hooks.Hook(MemoizeEventMiss, handler)
	return err
}

// Close gracefully shuts down observability components.
func (m *Memoize[T, K]) Close() error {
	if m.tracer != nil {
		m.tracer.Close()
	}
	m.hooks.Close()
	return nil
}
