package flowz

import (
	"context"
	"testing"

	store "github.com/zoobzio/flowz/store/ristretto"
)

func TestMemoize_BoundedStore(t *testing.T) {
	bounded, err := store.New[int, int](store.Config{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer bounded.Close()

	calls := 0
	square := Apply("square", func(_ context.Context, n int) (int, error) {
		calls++
		return n * n, nil
	})
	memo := NewMemoize("bounded", func(n int) int { return n }, square).
		WithStore(bounded)

	result, err := memo.Process(context.Background(), 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 36 {
		t.Errorf("expected 36, got %d", result)
	}

	// Ristretto admission is buffered; make the write visible.
	bounded.Wait()

	result, err = memo.Process(context.Background(), 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 36 {
		t.Errorf("expected 36, got %d", result)
	}
	if calls > 2 {
		t.Errorf("expected at most 2 invocations, got %d", calls)
	}

	// Bounded stores don't report exact counts.
	if memo.Size() != -1 {
		t.Errorf("expected Size -1 for a non-counting store, got %d", memo.Size())
	}
}
