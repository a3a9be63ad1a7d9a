package flowz

import (
	"context"

	"github.com/zoobzio/metricz"
)

// Metric keys for Mapper stage observability.
const (
	MapperProcessedTotal = metricz.Key("mapper.processed.total")
)

// Mapper is a lazy stream stage that yields transform(element) for every
// input element, in arrival order.
//
// Example:
//
//	square := flowz.NewMapper("square", func(n int) int { return n * n })
//	out := square.Process(ctx, source)
type Mapper[In, Out any] struct {
	transform func(In) Out
	name      Name
	metrics   *metricz.Registry
}

// NewMapper creates a new Mapper stage with the given transform.
func NewMapper[In, Out any](name Name, transform func(In) Out) *Mapper[In, Out] {
	registry := metricz.New()
	registry.Counter(MapperProcessedTotal)

	return &Mapper[In, Out]{
		name:      name,
		transform: transform,
		metrics:   registry,
	}
}

// Process implements the Stage interface.
func (m *Mapper[In, Out]) Process(ctx context.Context, in <-chan In) <-chan Out {
	out := make(chan Out)
	go func() {
		defer close(out)
		for {
			select {
			case item, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- m.transform(item):
					m.metrics.Counter(MapperProcessedTotal).Inc()
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
func (m *Mapper[In, Out]) Name() Name {
	return m.name
}

// Metrics returns the metrics registry for this stage.
func (m *Mapper[In, Out]) Metrics() *metricz.Registry {
	return m.metrics
}
