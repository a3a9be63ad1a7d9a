package flowz

import (
	"context"

	"github.com/zoobzio/metricz"
)

// Metric keys for Filter stage observability.
const (
	FilterInputTotal  = metricz.Key("filter.input.total")
	FilterPassedTotal = metricz.Key("filter.passed.total")
)

// Filter is a lazy stream stage that yields only the elements for which the
// predicate returns true, preserving arrival order.
//
// Example:
//
//	positives := flowz.NewFilter("positive", func(n int) bool { return n > 0 })
//	out := positives.Process(ctx, source)
type Filter[T any] struct {
	predicate func(T) bool
	name      Name
	metrics   *metricz.Registry
}

// NewFilter creates a new Filter stage with the given predicate.
func NewFilter[T any](name Name, predicate func(T) bool) *Filter[T] {
	registry := metricz.New()
	registry.Counter(FilterInputTotal)
	registry.Counter(FilterPassedTotal)

	return &Filter[T]{
		name:      name,
		predicate: predicate,
		metrics:   registry,
	}
}

// Process implements the Stage interface.
func (f *Filter[T]) Process(ctx context.Context, in <-chan T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for {
			select {
			case item, ok := <-in:
				if !ok {
					return
				}
				f.metrics.Counter(FilterInputTotal).Inc()
				if !f.predicate(item) {
					continue
				}
				select {
				case out <- item:
					f.metrics.Counter(FilterPassedTotal).Inc()
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Name returns the name of this stage.
func (f *Filter[T]) Name() Name {
	return f.name
}

// Metrics returns the metrics registry for this stage.
func (f *Filter[T]) Metrics() *metricz.Registry {
	return f.metrics
}
