// Package queue provides a thread-safe ring buffer decoupling telemetry
// producers from the detection engine.
package queue

import (
	"errors"
	"sync"
	"sync/atomic"

	"socwatch/internal/schema"
)

var (
	// ErrQueueFull is returned when attempting to push to a full queue.
	ErrQueueFull = errors.New("queue is full")
	// ErrQueueClosed is returned when attempting to use a closed queue.
	ErrQueueClosed = errors.New("queue is closed")
)

// RingBuffer is a bounded circular buffer of events. Producers push single
// events; the engine pump polls batches off with TryPopBatch. When full,
// new events are rejected rather than overwriting unprocessed ones.
type RingBuffer struct {
	mu     sync.Mutex
	buffer []*schema.Event
	size   int
	head   int
	tail   int
	count  int
	closed bool

	// Metrics (accessed atomically).
	totalPushed  uint64
	totalPopped  uint64
	totalDropped uint64
}

// NewRingBuffer creates a ring buffer with the given capacity.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 10000
	}
	return &RingBuffer{
		buffer: make([]*schema.Event, size),
		size:   size,
	}
}

// Push adds one event. Returns ErrQueueFull at capacity and ErrQueueClosed
// after Close.
func (rb *RingBuffer) Push(event *schema.Event) error {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.closed {
		return ErrQueueClosed
	}
	if rb.count == rb.size {
		atomic.AddUint64(&rb.totalDropped, 1)
		return ErrQueueFull
	}

	rb.buffer[rb.tail] = event
	rb.tail = (rb.tail + 1) % rb.size
	rb.count++
	atomic.AddUint64(&rb.totalPushed, 1)
	return nil
}

// PushBatch pushes events in order, stopping at the first failure and
// returning how many were accepted.
func (rb *RingBuffer) PushBatch(events []*schema.Event) (int, error) {
	for i, ev := range events {
		if err := rb.Push(ev); err != nil {
			return i, err
		}
	}
	return len(events), nil
}

// TryPopBatch drains up to max events without blocking. An empty queue
// yields a nil slice and no error.
func (rb *RingBuffer) TryPopBatch(max int) []*schema.Event {
	if max <= 0 {
		max = 1
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.count == 0 {
		return nil
	}

	n := rb.count
	if n > max {
		n = max
	}
	out := make([]*schema.Event, n)
	for i := 0; i < n; i++ {
		out[i] = rb.buffer[rb.head]
		rb.buffer[rb.head] = nil
		rb.head = (rb.head + 1) % rb.size
	}
	rb.count -= n
	atomic.AddUint64(&rb.totalPopped, uint64(n))

	return out
}

// Len returns the current number of queued events.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Cap returns the queue capacity.
func (rb *RingBuffer) Cap() int {
	return rb.size
}

// Close rejects further pushes. Events already queued remain poppable
// until drained.
func (rb *RingBuffer) Close() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.closed = true
}

// Metrics returns queue statistics.
func (rb *RingBuffer) Metrics() Metrics {
	return Metrics{
		Pushed:   atomic.LoadUint64(&rb.totalPushed),
		Popped:   atomic.LoadUint64(&rb.totalPopped),
		Dropped:  atomic.LoadUint64(&rb.totalDropped),
		Depth:    rb.Len(),
		Capacity: rb.size,
	}
}

// Metrics holds statistics about queue operations.
type Metrics struct {
	Pushed   uint64 `json:"pushed"`
	Popped   uint64 `json:"popped"`
	Dropped  uint64 `json:"dropped"`
	Depth    int    `json:"depth"`
	Capacity int    `json:"capacity"`
}
