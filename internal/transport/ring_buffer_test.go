package transport

import (
	"sync"
	"testing"
)

func TestEnqueueDequeueOrder(t *testing.T) {
	q, err := NewRingBuffer[int](8)
	if err != nil {
		t.Fatalf("NewRingBuffer: %v", err)
	}
	for i := 0; i < 5; i++ {
		if !q.Enqueue(i) {
			t.Fatalf("Enqueue(%d) failed", i)
		}
	}
	for i := 0; i < 5; i++ {
		v, ok := q.Dequeue()
		if !ok || v != i {
			t.Fatalf("Dequeue() = %d, %v; want %d, true", v, ok, i)
		}
	}
}

func TestEnqueueFailsWhenFull(t *testing.T) {
	q, _ := NewRingBuffer[int](2)
	if !q.Enqueue(1) || !q.Enqueue(2) {
		t.Fatalf("expected first two enqueues to succeed")
	}
	if q.Enqueue(3) {
		t.Fatalf("expected Enqueue to fail once capacity is exhausted")
	}
}

func TestCloseDrainsThenReturnsFalse(t *testing.T) {
	q, _ := NewRingBuffer[int](4)
	q.Enqueue(42)
	q.Close()

	v, ok := q.Dequeue()
	if !ok || v != 42 {
		t.Fatalf("Dequeue after Close should drain remaining value: got %d, %v", v, ok)
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatalf("Dequeue on empty closed queue should return false")
	}
}

func TestConcurrentProducersConsumers(t *testing.T) {
	q, _ := NewRingBuffer[int](64)
	const n = 2000
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for !q.Enqueue(i) {
			}
		}
	}()
	sum := 0
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			v, _ := q.Dequeue()
			sum += v
		}
	}()
	wg.Wait()
	want := n * (n - 1) / 2
	if sum != want {
		t.Fatalf("sum = %d, want %d", sum, want)
	}
}

func TestInvalidCapacity(t *testing.T) {
	if _, err := NewRingBuffer[int](3); err != ErrInvalidCapacity {
		t.Fatalf("expected ErrInvalidCapacity for non-power-of-two capacity")
	}
	if _, err := NewRingBuffer[int](1); err != ErrInvalidCapacity {
		t.Fatalf("expected ErrInvalidCapacity for capacity < 2")
	}
}
