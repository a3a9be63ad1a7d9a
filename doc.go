// Package flowz provides a small, type-safe toolkit of composable function
// wrappers and lazy stream stages.
//
// # Overview
//
// flowz covers four independent concerns that otherwise get reimplemented
// ad hoc in every service: caching repeated computations, retrying
// transient failures, transforming sequences lazily, and scoping
// transactional work. Each component is independently usable; an
// application wraps a target function or channel and receives a drop-in
// replacement with the same call shape.
//
// # Processors and wrappers
//
// Call-level components build on a single, uniform interface:
//
//	type Chainable[T any] interface {
//	    Process(context.Context, T) (T, error)
//	    Name() Name
//	}
//
// Adapters wrap your functions to implement Chainable:
//
//	double := flowz.Transform("double", func(_ context.Context, n int) int {
//	    return n * 2
//	})
//
//	fetch := flowz.Apply("fetch", func(ctx context.Context, id string) (User, error) {
//	    return client.Lookup(ctx, id)
//	})
//
// Wrappers then add behavior without changing the call shape:
//
//	// Cache results by key; the processor runs at most once per key.
//	cached := flowz.NewMemoize("fetch-cache",
//	    func(id string) string { return id },
//	    fetch,
//	)
//
//	// Try up to 3 times, immediately.
//	retry, err := flowz.NewRetry("fetch-retry", fetch, 3)
//
//	// Try up to 5 times, waiting between attempts.
//	backoff, err := flowz.NewBackoff("fetch-backoff", fetch, 5, time.Second)
//
// # Stream stages
//
// Stream stages transform channels lazily - no element is processed until
// the consumer pulls it, and a drained stream is done:
//
//	evens := flowz.NewFilter("evens", func(n int) bool { return n%2 == 0 })
//	square := flowz.NewMapper("square", func(n int) int { return n * n })
//
//	out := square.Process(ctx, evens.Process(ctx, flowz.Emit(ctx, 1, 2, 3, 4, 5, 6)))
//	flowz.Collect(ctx, out) // [4 16 36]
//
// Batcher groups consecutive elements into fixed-size slices (with a final
// partial group), and Window yields overlapping slices sliding by one.
// Emit, Generate, Chain, Take, Collect, and Reduce build sources and drain
// sinks.
//
// # Transaction guards
//
// Guard scopes one transaction over anything with begin/commit/rollback
// semantics, guaranteeing exactly one terminal operation per use:
//
//	err := flowz.NewGuard("order-write", tx).Run(ctx, func(ctx context.Context) error {
//	    return writeOrder(ctx, order)
//	})
//
// # Observability
//
// Components expose metricz counters, tracez spans, and hookz events, so
// cache hit rates, retry exhaustion, and rollback frequency are observable
// without wrapping anything yourself. All observability is in-process and
// optional.
//
// # Errors
//
// Processing failures are wrapped in Error[T], carrying the path of names
// the failure traveled through plus the input data that triggered it.
// Configuration mistakes fail fast at construction with InvalidConfigError;
// retry exhaustion surfaces as RetryExhaustedError with the attempt count;
// guard reuse fails with InvalidStateError.
package flowz
