package flowz

import (
	"context"

	"github.com/zoobzio/metricz"
)

// Metric keys for Window stage observability.
const (
	WindowInputTotal   = metricz.Key("window.input.total")
	WindowEmittedTotal = metricz.Key("window.emitted.total")
)

// Window is a lazy stream stage that yields overlapping slices of the last
// size elements seen. The first window is emitted once size elements have
// arrived; each subsequent element slides the window forward by one. If the
// input closes before size elements ever arrive, no windows are emitted.
//
// Emitted slices are copies; the consumer owns them and later slides do not
// mutate them.
//
// Example:
//
//	trigrams, err := flowz.NewWindow[int]("trigrams", 3)
//	out := trigrams.Process(ctx, flowz.Emit(ctx, 1, 2, 3, 4))
//	// yields [1 2 3], [2 3 4]
type Window[T any] struct {
	name    Name
	size    int
	metrics *metricz.Registry
}

// NewWindow creates a new Window stage. size must be at least 1; anything
// lower returns *InvalidConfigError.
func NewWindow[T any](name Name, size int) (*Window[T], error) {
	if size < 1 {
		return nil, &InvalidConfigError{Param: "size", Value: size}
	}

	registry := metricz.New()
	registry.Counter(WindowInputTotal)
	registry.Counter(WindowEmittedTotal)

	return &Window[T]{
		name:    name,
		size:    size,
		metrics: registry,
	}, nil
}

// Process implements the Stage interface.
func (w *Window[T]) Process(ctx context.Context, in <-chan T) <-chan []T {
	out := make(chan []T)
	go func() {
		defer close(out)
		window := make([]T, 0, w.size)
		for {
			select {
			case item, ok := <-in:
				if !ok {
					return
				}
				w.metrics.Counter(WindowInputTotal).Inc()
				if len(window) == w.size {
					copy(window, window[1:])
					window[w.size-1] = item
				} else {
					window = append(window, item)
				}
				if len(window) < w.size {
					continue
				}
				snapshot := make([]T, w.size)
				copy(snapshot, window)
				select {
				case out <- snapshot:
					w.metrics.Counter(WindowEmittedTotal).Inc()
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

// Size returns the configured window size.
func (w *Window[T]) Size() int {
	return w.size
}

// Name returns the name of this stage.
func (w *Window[T]) Name() Name {
	return w.name
}

// Metrics returns the metrics registry for this stage.
func (w *Window[T]) Metrics() *metricz.Registry {
	return w.metrics
}
