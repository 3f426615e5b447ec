// Package transport is the message-passing substrate the distributed
// pipeline's LocalCommunicator uses to model "distributed shared-memory
// nodes" as goroutines within one process. The queue itself is adapted
// nearly verbatim from the teacher's internal/async.RingBuffer: the
// Vyukov sequence-CAS MPMC algorithm has no Merkle-tree-specific content
// to begin with, so what changes here is the surrounding contract — a
// Close/drain path for tearing down rank goroutines, which the teacher's
// unbounded mutation feed never needed.
package transport

import (
	"errors"
	"runtime"
	"sync/atomic"
)

var ErrInvalidCapacity = errors.New("transport: ring buffer capacity must be a power of two and >= 2")

type slot[T any] struct {
	sequence atomic.Uint64
	value    T
}

// RingBuffer is a lock-free MPMC bounded queue used as a rank's inbox.
type RingBuffer[T any] struct {
	capacity uint64
	mask     uint64

	_pad0  [48]byte
	head   atomic.Uint64
	_pad1  [48]byte
	tail   atomic.Uint64
	_pad2  [48]byte
	closed atomic.Bool

	slots []slot[T]
}

func NewRingBuffer[T any](capacity uint64) (*RingBuffer[T], error) {
	if capacity < 2 || (capacity&(capacity-1)) != 0 {
		return nil, ErrInvalidCapacity
	}
	slots := make([]slot[T], capacity)
	for i := uint64(0); i < capacity; i++ {
		slots[i].sequence.Store(i)
	}
	return &RingBuffer[T]{
		capacity: capacity,
		mask:     capacity - 1,
		slots:    slots,
	}, nil
}

// Enqueue returns false if the queue is full or has been closed.
func (q *RingBuffer[T]) Enqueue(value T) bool {
	if q.closed.Load() {
		return false
	}
	for {
		pos := q.tail.Load()
		slot := &q.slots[pos&q.mask]
		seq := slot.sequence.Load()
		delta := int64(seq) - int64(pos)

		if delta == 0 {
			if q.tail.CompareAndSwap(pos, pos+1) {
				slot.value = value
				slot.sequence.Store(pos + 1)
				return true
			}
			continue
		}
		if delta < 0 {
			return false
		}
		runtime.Gosched()
	}
}

// Dequeue reports false once the queue is empty and closed; otherwise it
// blocks (spinning with Gosched, matching the teacher's own busy-wait
// style) until a value is available.
func (q *RingBuffer[T]) Dequeue() (T, bool) {
	var zero T
	for {
		pos := q.head.Load()
		slot := &q.slots[pos&q.mask]
		seq := slot.sequence.Load()
		delta := int64(seq) - int64(pos+1)

		if delta == 0 {
			if q.head.CompareAndSwap(pos, pos+1) {
				value := slot.value
				slot.value = zero
				slot.sequence.Store(pos + q.capacity)
				return value, true
			}
			continue
		}
		if delta < 0 {
			if q.closed.Load() {
				return zero, false
			}
			runtime.Gosched()
			continue
		}
		runtime.Gosched()
	}
}

// TryDequeue is the non-blocking counterpart to Dequeue: it returns
// immediately with ok=false if no value is currently available.
func (q *RingBuffer[T]) TryDequeue() (T, bool) {
	var zero T
	pos := q.head.Load()
	slot := &q.slots[pos&q.mask]
	seq := slot.sequence.Load()
	delta := int64(seq) - int64(pos+1)
	if delta != 0 {
		return zero, false
	}
	if !q.head.CompareAndSwap(pos, pos+1) {
		return zero, false
	}
	value := slot.value
	slot.value = zero
	slot.sequence.Store(pos + q.capacity)
	return value, true
}

// Close marks the queue closed: pending Dequeue calls drain what remains
// and then return ok=false instead of blocking forever.
func (q *RingBuffer[T]) Close() {
	q.closed.Store(true)
}
