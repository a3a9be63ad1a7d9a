package flowz

import (
	"context"
	"testing"
)

func BenchmarkMemoize_Hit(b *testing.B) {
	square := Apply("square", func(_ context.Context, n int) (int, error) {
		return n * n, nil
	})
	memo := NewMemoize("bench", func(n int) int { return n }, square)
	ctx := context.Background()

	// Warm the cache.
	if _, err := memo.Process(ctx, 7); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := memo.Process(ctx, 7); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRetry_FirstTrySuccess(b *testing.B) {
	ok := Apply("ok", func(_ context.Context, n int) (int, error) {
		return n, nil
	})
	retry, err := NewRetry("bench", ok, 3)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := retry.Process(ctx, i); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPipeline_FilterMap(b *testing.B) {
	evens := NewFilter("evens", func(n int) bool { return n%2 == 0 })
	square := NewMapper("square", func(n int) int { return n * n })

	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ctx := context.Background()
		out := square.Process(ctx, evens.Process(ctx, Emit(ctx, items...)))
		Collect(ctx, out)
	}
}
