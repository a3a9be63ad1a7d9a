// Package ristretto adapts dgraph-io/ristretto as a bounded Memoize store.
// Ristretto admits and evicts entries under a TinyLFU policy, keeping the
// cache's total cost under MaxCost - use it when memoized results must not
// grow without bound.
//
// Admission is probabilistic: a Set may be dropped, which a Memoize
// connector observes as a later miss and recomputes. That is the documented
// races-to-compute behavior, not an error.
package ristretto

import (
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"
)

// Config sizes the underlying ristretto cache.
type Config struct {
	// NumCounters is the number of keys to track frequency for,
	// typically 10x the expected number of live entries.
	NumCounters int64
	// MaxCost is the total cost budget. With the default cost of 1 per
	// entry this is the maximum number of entries.
	MaxCost int64
	// BufferItems is the size of the Get buffer; 64 is a good default.
	BufferItems int64
}

// Store is a bounded flowz.Store backed by ristretto.
type Store[K comparable, V any] struct {
	c *rc.Cache
}

// New creates a bounded store from cfg.
func New[K comparable, V any](cfg Config) (*Store[K, V], error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &Store[K, V]{c: c}, nil
}

// Get implements flowz.Store.
func (s *Store[K, V]) Get(key K) (V, bool) {
	var zero V
	v, ok := s.c.Get(key)
	if !ok {
		return zero, false
	}
	value, ok := v.(V)
	if !ok {
		// self-heal: drop unexpected entry shape
		s.c.Del(key)
		return zero, false
	}
	return value, true
}

// Set implements flowz.Store. Every entry costs 1, so MaxCost bounds the
// entry count.
func (s *Store[K, V]) Set(key K, value V, ttl time.Duration) {
	if ttl > 0 {
		s.c.SetWithTTL(key, value, 1, ttl)
		return
	}
	s.c.Set(key, value, 1)
}

// Wait blocks until buffered writes have been applied. Tests use this to
// make Set visible before the next Get.
func (s *Store[K, V]) Wait() {
	s.c.Wait()
}

// Close releases the cache's resources.
func (s *Store[K, V]) Close() {
	s.c.Close()
}
