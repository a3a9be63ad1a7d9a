package flowz

import (
	"context"

	"github.com/zoobzio/metricz"
)

// Metric keys for Batcher stage observability.
const (
	BatcherInputTotal   = metricz.Key("batcher.input.total")
	BatcherEmittedTotal = metricz.Key("batcher.emitted.total")
	BatcherPartialTotal = metricz.Key("batcher.partial.total")
)

// Batcher is a lazy stream stage that groups consecutive elements into
// fixed-size slices in arrival order. When the input closes with leftover
// elements, a final partial batch (shorter than size) is emitted.
//
// The stage buffers at most size elements at a time; emitted slices are
// owned by the consumer.
//
// Example:
//
//	pairs, err := flowz.NewBatcher[int]("pairs", 2)
//	out := pairs.Process(ctx, flowz.Emit(ctx, 1, 2, 3, 4, 5))
//	// yields [1 2], [3 4], [5]
type Batcher[T any] struct {
	name    Name
	size    int
	metrics *metricz.Registry
}

// NewBatcher creates a new Batcher stage. size must be at least 1;
// anything lower returns *InvalidConfigError.
func NewBatcher[T any](name Name, size int) (*Batcher[T], error) {
	if size < 1 {
		return nil, &InvalidConfigError{Param: "size", Value: size}
	}

	registry := metricz.New()
	registry.Counter(BatcherInputTotal)
	registry.Counter(BatcherEmittedTotal)
	registry.Counter(BatcherPartialTotal)

	return &Batcher[T]{
		name:    name,
		size:    size,
		metrics: registry,
	}, nil
}

// Process implements the Stage interface.
func (b *Batcher[T]) Process(ctx context.Context, in <-chan T) <-chan []T {
	out := make(chan []T)
	go func() {
		defer close(out)
		batch := make([]T, 0, b.size)
		for {
			select {
			case item, ok := <-in:
				if !ok {
					if len(batch) > 0 {
						b.metrics.Counter(BatcherPartialTotal).Inc()
						select {
						case out <- batch:
							b.metrics.Counter(BatcherEmittedTotal).Inc()
						case <-ctx.Done():
						}
					}
					return
				}
				b.metrics.Counter(BatcherInputTotal).Inc()
				batch = append(batch, item)
				if len(batch) < b.size {
					continue
				}
				select {
				case out <- batch:
					b.metrics.Counter(BatcherEmittedTotal).Inc()
					batch = make([]T, 0, b.size)
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

// Size returns the configured batch size.
func (b *Batcher[T]) Size() int {
	return b.size
}

// Name returns the name of this stage.
func (b *Batcher[T]) Name() Name {
	return b.name
}

// Metrics returns the metrics registry for this stage.
func (b *Batcher[T]) Metrics() *metricz.Registry {
	return b.metrics
}
