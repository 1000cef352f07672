package ringbuffer

import (
	"math"
	"sync/atomic"
)

// RingBuffer is a Disruptor-like ring buffer for Single Producer, Multi Consumer.
//
// Core ideas:
// - sequence is int64, starts at -1
// - producer claims next sequence with atomic.AddInt64
// - buffer index = seq & mask (capacity must be power of 2)
// - publish uses atomic.StoreInt64(published, seq) as a release barrier
// - consumers independently track their own sequences
// - gating: producer checks min consumer sequence to avoid overwriting unread slots

type RingBuffer[T any] struct {
	buf      []T
	mask     int64
	capacity int64

	// producer cursor (claimed, may be ahead of published)
	cursor int64

	// highest published sequence
	published int64

	// consumer sequences (each consumer updates its own sequence)
	consumers []*Consumer

	// wait strategy for spinning
	wait WaitStrategy
}

func NewRingBuffer[T any](capacity int64, wait WaitStrategy) *RingBuffer[T] {
	if capacity <= 0 || (capacity&(capacity-1)) != 0 {
		panic("capacity must be a power of 2 and greater than 0")
	}
	if wait == nil {
		wait = &YieldingWaitStrategy{}
	}

	r := &RingBuffer[T]{
		buf:       make([]T, capacity),
		mask:      capacity - 1,
		capacity:  capacity,
		cursor:    -1,
		published: -1,
		wait:      wait,
	}
	return r
}

// Consumer represents a consumer cursor.
// Each consumer reads all events in order (like Disruptor event processors).
type Consumer struct {
	sequence int64
}

// AddConsumer registers a consumer and returns it.
// Consumer's sequence starts at -1 (meaning "nothing consumed yet").
// Must be called before publishing starts; the consumer slice is not locked.
func (r *RingBuffer[T]) AddConsumer() *Consumer {
	c := &Consumer{sequence: -1}
	r.consumers = append(r.consumers, c)
	return c
}

// minConsumerSequence returns the minimum sequence among all consumers.
// If there are no consumers, returns the highest published sequence.
func (r *RingBuffer[T]) minConsumerSequence() int64 {
	if len(r.consumers) == 0 {
		return atomic.LoadInt64(&r.published)
	}

	m := int64(math.MaxInt64)
	for _, c := range r.consumers {
		seq := atomic.LoadInt64(&c.sequence)
		if seq < m {
			m = seq
		}
	}
	return m
}

// waitForFreeSlot blocks (spins) until the ring has space for nextSeq.
func (r *RingBuffer[T]) waitForFreeSlot(nextSeq int64) {
	// wrapPoint is the sequence at which the producer would wrap around
	wrapPoint := nextSeq - r.capacity
	for wrapPoint > r.minConsumerSequence() {
		r.wait.Wait()
	}
}

// TryPublish tries to publish without blocking.
// Returns (seq, true) on success, (_, false) when the ring is full.
// Only safe for a single producer; the cursor is rolled back on failure.
func (r *RingBuffer[T]) TryPublish(v T) (int64, bool) {
	nextSeq := atomic.LoadInt64(&r.cursor) + 1
	wrapPoint := nextSeq - r.capacity
	if wrapPoint > r.minConsumerSequence() {
		return 0, false
	}

	atomic.StoreInt64(&r.cursor, nextSeq)
	r.buf[nextSeq&r.mask] = v
	atomic.StoreInt64(&r.published, nextSeq)
	return nextSeq, true
}

// Publish claims a slot, waits for free space (gating), writes value, then publishes.
// This is the "correct" Disruptor-like publish path for SP.
func (r *RingBuffer[T]) Publish(v T) int64 {
	nextSeq := atomic.AddInt64(&r.cursor, 1)
	r.waitForFreeSlot(nextSeq)

	r.buf[nextSeq&r.mask] = v

	// publish with release semantics
	atomic.StoreInt64(&r.published, nextSeq)
	return nextSeq
}

// PublishWith allows writing into the slot via a callback to reduce copies.
func (r *RingBuffer[T]) PublishWith(write func(slot *T)) int64 {
	nextSeq := atomic.AddInt64(&r.cursor, 1)
	r.waitForFreeSlot(nextSeq)

	idx := nextSeq & r.mask
	write(&r.buf[idx])

	atomic.StoreInt64(&r.published, nextSeq)
	return nextSeq
}

// Consume blocks until the next sequence is published, then returns the event.
// Each consumer reads all events (fan-out model).
func (r *RingBuffer[T]) Consume(c *Consumer) (T, int64) {
	next := atomic.LoadInt64(&c.sequence) + 1

	for {
		available := atomic.LoadInt64(&r.published)
		if next <= available {
			break
		}
		r.wait.Wait()
	}

	v := r.buf[next&r.mask]

	// advance consumer cursor (release)
	atomic.StoreInt64(&c.sequence, next)
	return v, next
}

// TryConsume returns the next event without blocking.
// Returns (_, -1, false) when nothing new is published.
func (r *RingBuffer[T]) TryConsume(c *Consumer) (T, int64, bool) {
	next := atomic.LoadInt64(&c.sequence) + 1
	if next > atomic.LoadInt64(&r.published) {
		var zero T
		return zero, -1, false
	}

	v := r.buf[next&r.mask]
	atomic.StoreInt64(&c.sequence, next)
	return v, next, true
}
