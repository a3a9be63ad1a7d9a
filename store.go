package flowz

import (
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// mapStore is the default Memoize backing: an unbounded map guarded by a
// RWMutex. Expiry is lazy - an expired entry reads as a miss and is
// overwritten when the value is recomputed.
type mapStore[K comparable, V any] struct {
	clock   clockz.Clock
	entries map[K]mapEntry[V]
	mu      sync.RWMutex
}

type mapEntry[V any] struct {
	value   V
	expires time.Time // zero means no expiry
}

func newMapStore[K comparable, V any](clock clockz.Clock) *mapStore[K, V] {
	return &mapStore[K, V]{
		clock:   clock,
		entries: make(map[K]mapEntry[V]),
	}
}

func (s *mapStore[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	clock := s.clock
	s.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !entry.expires.IsZero() && !clock.Now().Before(entry.expires) {
		return zero, false
	}
	return entry.value, true
}

func (s *mapStore[K, V]) Set(key K, value V, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := mapEntry[V]{value: value}
	if ttl > 0 {
		entry.expires = s.clock.Now().Add(ttl)
	}
	s.entries[key] = entry
}

func (s *mapStore[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *mapStore[K, V]) setClock(clock clockz.Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}
