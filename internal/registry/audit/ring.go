package audit

import "sync"

// RingBuffer keeps the most recent values in a fixed-size ring.
type RingBuffer[T any] struct {
	mu    sync.Mutex
	items []T
	size  int
	next  int
}

// NewRingBuffer constructs a ring buffer with the provided capacity.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer[T]{
		items: make([]T, capacity),
	}
}

// Add inserts a value and reports whether the oldest value was overwritten.
func (b *RingBuffer[T]) Add(value T) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	dropped := b.size == len(b.items)
	b.items[b.next] = value
	b.next = (b.next + 1) % len(b.items)
	if !dropped {
		b.size++
	}
	return dropped
}

// Len returns the number of buffered values.
func (b *RingBuffer[T]) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Cap returns the ring capacity.
func (b *RingBuffer[T]) Cap() int {
	if b == nil {
		return 0
	}
	return len(b.items)
}

// Snapshot returns the buffered values in insertion order.
func (b *RingBuffer[T]) Snapshot() []T {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size == 0 {
		return nil
	}
	out := make([]T, 0, b.size)
	if b.size < len(b.items) {
		out = append(out, b.items[:b.size]...)
		return out
	}
	out = append(out, b.items[b.next:]...)
	out = append(out, b.items[:b.next]...)
	return out
}

// Last returns up to n of the most recent values, oldest first.
func (b *RingBuffer[T]) Last(n int) []T {
	all := b.Snapshot()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}
