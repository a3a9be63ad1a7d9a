package flowz

import "context"

// Stage is the interface for lazy stream transformations. It transforms an
// input channel of type In to an output channel of type Out. Stages are
// pull-paced: output channels are unbuffered, so no work happens until the
// consumer receives the next element.
//
// Stages must:
//   - Close the output channel when the input channel is closed
//   - Respect context cancellation (unblocks both reads and sends)
//   - Preserve arrival order
//
// Streams are single-use: once an input channel is drained, running the
// stage again over it yields nothing. Build a fresh source per pass.
//
// Stages compose by function application:
//
//	evens := flowz.NewFilter("evens", func(n int) bool { return n%2 == 0 })
//	squares := flowz.NewMapper("square", func(n int) int { return n * n })
//
//	out := squares.Process(ctx, evens.Process(ctx, flowz.Emit(ctx, 1, 2, 3, 4, 5, 6)))
//	result := flowz.Collect(ctx, out) // [4 16 36]
type Stage[In, Out any] interface {
	Process(ctx context.Context, in <-chan In) <-chan Out
	Name() Name
}

// Emit returns a channel that yields the given items in order and then
// closes. Cancel the context to release the producer if the consumer stops
// early.
func Emit[T any](ctx context.Context, items ...T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for _, item := range items {
			select {
			case out <- item:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Generate returns an infinite channel that yields seed, next(seed),
// next(next(seed)), and so on. The producer runs until the context is
// canceled, so always pair Generate with Take or a cancelable context:
//
//	fibs := flowz.Take(ctx, flowz.Generate(ctx, pair{0, 1}, step), 10)
func Generate[T any](ctx context.Context, seed T, next func(T) T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		value := seed
		for {
			select {
			case out <- value:
				value = next(value)
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Chain concatenates sources: it yields every element of the first source,
// then every element of the second, and so on, closing after the last
// source is drained.
func Chain[T any](ctx context.Context, sources ...<-chan T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for _, source := range sources {
			drained := false
			for !drained {
				select {
				case item, ok := <-source:
					if !ok {
						drained = true
						break
					}
					select {
					case out <- item:
					case <-ctx.Done():
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Take yields at most n elements from in, then closes its output without
// draining the rest. Upstream producers block on their next send until the
// context is canceled; cancel it once the consumer is done.
func Take[T any](ctx context.Context, in <-chan T, n int) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for taken := 0; taken < n; taken++ {
			select {
			case item, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- item:
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

// Collect drains in into a slice. It returns when in closes or the context
// is canceled, whichever comes first.
func Collect[T any](ctx context.Context, in <-chan T) []T {
	var items []T
	for {
		select {
		case item, ok := <-in:
			if !ok {
				return items
			}
			items = append(items, item)
		case <-ctx.Done():
			return items
		}
	}
}

// Reduce folds in into a single accumulated value, applying fn to the
// running accumulator and each element in arrival order.
func Reduce[T, A any](ctx context.Context, in <-chan T, seed A, fn func(A, T) A) A {
	acc := seed
	for {
		select {
		case item, ok := <-in:
			if !ok {
				return acc
			}
			acc = fn(acc, item)
		case <-ctx.Done():
			return acc
		}
	}
}
