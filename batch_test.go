package flowz

import (
	"context"
	"errors"
	"testing"
)

func TestNewBatcher_InvalidConfig(t *testing.T) {
	for _, size := range []int{0, -3} {
		_, err := NewBatcher[int]("bad", size)
		if err == nil {
			t.Fatalf("expected error for size=%d", size)
		}
		var cfgErr *InvalidConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected *InvalidConfigError, got %T", err)
		}
	}
}

func TestBatcher_PartialFinalGroup(t *testing.T) {
	ctx := context.Background()

	pairs, err := NewBatcher[int]("pairs", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := Collect(ctx, pairs.Process(ctx, Emit(ctx, 1, 2, 3, 4, 5)))

	want := [][]int{{1, 2}, {3, 4}, {5}}
	if len(result) != len(want) {
		t.Fatalf("expected %d batches, got %d: %v", len(want), len(result), result)
	}
	for i, batch := range want {
		if len(result[i]) != len(batch) {
			t.Fatalf("batch %d: expected %v, got %v", i, batch, result[i])
		}
		for j, v := range batch {
			if result[i][j] != v {
				t.Errorf("batch %d: expected %v, got %v", i, batch, result[i])
			}
		}
	}
}

func TestBatcher_ExactMultiple(t *testing.T) {
	ctx := context.Background()

	triples, err := NewBatcher[int]("triples", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := Collect(ctx, triples.Process(ctx, Emit(ctx, 1, 2, 3, 4, 5, 6)))

	if len(result) != 2 || len(result[0]) != 3 || len(result[1]) != 3 {
		t.Errorf("expected two full batches, got %v", result)
	}
}

func TestBatcher_EmptySource(t *testing.T) {
	ctx := context.Background()

	pairs, err := NewBatcher[int]("pairs", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := Collect(ctx, pairs.Process(ctx, Emit[int](ctx)))
	if len(result) != 0 {
		t.Errorf("expected no batches from empty source, got %v", result)
	}
}

func TestBatcher_SizeOne(t *testing.T) {
	ctx := context.Background()

	singles, err := NewBatcher[int]("singles", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := Collect(ctx, singles.Process(ctx, Emit(ctx, 1, 2)))
	if len(result) != 2 || len(result[0]) != 1 || len(result[1]) != 1 {
		t.Errorf("expected two single-element batches, got %v", result)
	}
}

func TestBatcher_Metrics(t *testing.T) {
	ctx := context.Background()

	pairs, err := NewBatcher[int]("pairs", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	Collect(ctx, pairs.Process(ctx, Emit(ctx, 1, 2, 3)))

	if emitted := pairs.Metrics().Counter(BatcherEmittedTotal).Value(); emitted != 2 {
		t.Errorf("expected 2 emitted batches, got %v", emitted)
	}
	if partial := pairs.Metrics().Counter(BatcherPartialTotal).Value(); partial != 1 {
		t.Errorf("expected 1 partial batch, got %v", partial)
	}
}
