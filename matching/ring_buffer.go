package matching

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// RingBuffer is a bounded multi-producer single-consumer queue
// Core principles:
//  1. Counting semaphores for empty and full slots: producers block while the ring is full,
//     the consumer blocks while it is empty, and both honour context cancellation.
//  2. Producers serialize only the slot write, so a released "full" token always refers to
//     a slot that has been written.
//  3. Batch consumption: the consumer drains everything already published in one call
//     to amortise synchronization on the matching thread.
type RingBuffer[T any] struct {
	buffer []T
	mask   uint64

	mu       sync.Mutex // producers
	writeSeq uint64     // guarded by mu
	readSeq  uint64     // consumer only

	emptySlots *semaphore.Weighted
	fullSlots  *semaphore.Weighted
}

// NewRingBuffer creates a ring buffer with size slots
// size must be a power of 2 so the slot index is a mask instead of a modulo.
func NewRingBuffer[T any](size int) *RingBuffer[T] {
	if size <= 0 || size&(size-1) != 0 {
		panic("RingBuffer size must be power of 2")
	}

	rb := &RingBuffer[T]{
		buffer:     make([]T, size),
		mask:       uint64(size - 1),
		emptySlots: semaphore.NewWeighted(int64(size)),
		fullSlots:  semaphore.NewWeighted(int64(size)),
	}

	// Weighted starts with every token available; hold them all so the ring starts with no full slot.
	rb.fullSlots.TryAcquire(int64(size))
	return rb
}

// Cap returns the number of slots
func (rb *RingBuffer[T]) Cap() int {
	return len(rb.buffer)
}

// Publish appends v, blocking while the ring is full
func (rb *RingBuffer[T]) Publish(ctx context.Context, v T) error {
	if err := rb.emptySlots.Acquire(ctx, 1); err != nil {
		return err
	}

	rb.mu.Lock()
	rb.buffer[rb.writeSeq&rb.mask] = v
	rb.writeSeq++
	rb.mu.Unlock()

	rb.fullSlots.Release(1)
	return nil
}

// Consume removes the oldest element, blocking while the ring is empty
// Only one goroutine may consume.
func (rb *RingBuffer[T]) Consume(ctx context.Context) (T, error) {
	if err := rb.fullSlots.Acquire(ctx, 1); err != nil {
		var zero T
		return zero, err
	}
	return rb.take(), nil
}

// TryConsume removes the oldest element if there is one, without blocking
func (rb *RingBuffer[T]) TryConsume() (T, bool) {
	if !rb.fullSlots.TryAcquire(1) {
		var zero T
		return zero, false
	}
	return rb.take(), true
}

// ConsumeBatch fills dst with up to len(dst) elements
// Blocks for the first element only; the rest are taken while immediately available.
func (rb *RingBuffer[T]) ConsumeBatch(ctx context.Context, dst []T) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	first, err := rb.Consume(ctx)
	if err != nil {
		return 0, err
	}
	dst[0] = first

	n := 1
	for n < len(dst) {
		v, ok := rb.TryConsume()
		if !ok {
			break
		}
		dst[n] = v
		n++
	}
	return n, nil
}

// take reads the slot at readSeq once its full token is held
func (rb *RingBuffer[T]) take() T {
	var zero T
	index := rb.readSeq & rb.mask
	v := rb.buffer[index]
	rb.buffer[index] = zero // drop references held by the slot
	rb.readSeq++

	rb.emptySlots.Release(1)
	return v
}
