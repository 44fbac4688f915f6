package events

import "sync"

// RingBuffer keeps the most recent events in emission order.
type RingBuffer struct {
	mu    sync.RWMutex
	buf   []Event
	next  int
	count int
}

func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{buf: make([]Event, size)}
}

func (rb *RingBuffer) Add(e Event) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.buf[rb.next] = e
	rb.next = (rb.next + 1) % len(rb.buf)
	if rb.count < len(rb.buf) {
		rb.count++
	}
}

// Len returns the number of buffered events.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Last returns up to n of the newest events, oldest first. n <= 0 returns
// everything buffered.
func (rb *RingBuffer) Last(n int) []Event {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n <= 0 || n > rb.count {
		n = rb.count
	}
	out := make([]Event, n)
	start := rb.next - n
	if start < 0 {
		start += len(rb.buf)
	}
	for i := range out {
		out[i] = rb.buf[(start+i)%len(rb.buf)]
	}
	return out
}

func (rb *RingBuffer) Snapshot() []Event {
	return rb.Last(0)
}

// Clear drops every buffered event.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	clear(rb.buf)
	rb.next = 0
	rb.count = 0
}
