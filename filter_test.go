package flowz

import (
	"context"
	"testing"
)

func TestFilter_PreservesOrder(t *testing.T) {
	ctx := context.Background()
	positives := NewFilter("positive", func(n int) bool { return n > 0 })

	result := Collect(ctx, positives.Process(ctx, Emit(ctx, -1, 3, 0, 7, -2, 5)))

	want := []int{3, 7, 5}
	if len(result) != len(want) {
		t.Fatalf("expected %v, got %v", want, result)
	}
	for i, v := range want {
		if result[i] != v {
			t.Errorf("expected %d at index %d, got %d", v, i, result[i])
		}
	}
}

func TestFilter_AllRejected(t *testing.T) {
	ctx := context.Background()
	none := NewFilter("none", func(_ int) bool { return false })

	result := Collect(ctx, none.Process(ctx, Emit(ctx, 1, 2, 3)))
	if len(result) != 0 {
		t.Errorf("expected no elements, got %v", result)
	}
}

func TestFilter_Metrics(t *testing.T) {
	ctx := context.Background()
	evens := NewFilter("evens", func(n int) bool { return n%2 == 0 })

	Collect(ctx, evens.Process(ctx, Emit(ctx, 1, 2, 3, 4)))

	if in := evens.Metrics().Counter(FilterInputTotal).Value(); in != 4 {
		t.Errorf("expected 4 inputs, got %v", in)
	}
	if passed := evens.Metrics().Counter(FilterPassedTotal).Value(); passed != 2 {
		t.Errorf("expected 2 passed, got %v", passed)
	}
	if evens.Name() != "evens" {
		t.Errorf("expected name 'evens', got %s", evens.Name())
	}
}
