package parallel

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestForCoversEveryIndex(t *testing.T) {
	n := 997
	var hits [997]atomic.Int32
	err := For(n, 8, func(start, end int) error {
		for i := start; i < end; i++ {
			hits[i].Add(1)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("For returned error: %v", err)
	}
	for i := range hits {
		if hits[i].Load() != 1 {
			t.Fatalf("index %d visited %d times, want 1", i, hits[i].Load())
		}
	}
}

func TestForPropagatesFirstError(t *testing.T) {
	want := errors.New("boom")
	err := For(16, 4, func(start, end int) error {
		if start == 0 {
			return want
		}
		return nil
	})
	if !errors.Is(err, want) {
		t.Fatalf("For error = %v, want %v", err, want)
	}
}

func TestReduceMaxUint64(t *testing.T) {
	n := 100
	got := ReduceMaxUint64(n, 4, func(start, end int) uint64 {
		max := uint64(0)
		for i := start; i < end; i++ {
			if uint64(i) > max {
				max = uint64(i)
			}
		}
		return max
	})
	if got != uint64(n-1) {
		t.Fatalf("ReduceMaxUint64 = %d, want %d", got, n-1)
	}
}
