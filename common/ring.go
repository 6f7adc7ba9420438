package common

import "sync"

// RingBuffer is a fixed-capacity FIFO that overwrites its oldest element
// when full. Safe for concurrent use.
type RingBuffer[T any] struct {
	mu    sync.Mutex
	buf   []T
	next  int
	count int
}

func NewRingBuffer[T any](size int) *RingBuffer[T] {
	return &RingBuffer[T]{buf: make([]T, size)}
}

// Add appends a value, displacing the oldest element once at capacity.
func (rb *RingBuffer[T]) Add(value T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.buf[rb.next] = value
	rb.next = (rb.next + 1) % len(rb.buf)
	if rb.count < len(rb.buf) {
		rb.count++
	}
}

// Get returns the buffered values, oldest first.
func (rb *RingBuffer[T]) Get() []T {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.slice(rb.count)
}

// Tail returns the newest n values, oldest of them first.
func (rb *RingBuffer[T]) Tail(n int) []T {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if n > rb.count {
		n = rb.count
	}
	return rb.slice(n)
}

// slice copies out the last n elements. Callers hold mu.
func (rb *RingBuffer[T]) slice(n int) []T {
	out := make([]T, 0, n)
	for i := rb.count - n; i < rb.count; i++ {
		out = append(out, rb.buf[(rb.next+len(rb.buf)-rb.count+i)%len(rb.buf)])
	}
	return out
}

func (rb *RingBuffer[T]) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}
