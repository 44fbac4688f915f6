// Package scheduler provides the single logical execution context the
// runtime runs on. All propagation, timer callbacks and external requests
// execute one at a time on the scheduler; nothing runs in parallel.
package scheduler

import (
	"time"
)

// TimerID identifies a pending callback.
type TimerID uint64

// Scheduler runs callbacks on one logical thread.
type Scheduler interface {
	// Now returns the time elapsed since the scheduler started.
	Now() time.Duration
	// After registers fn to run once after d. The callback runs on the
	// scheduler thread.
	After(d time.Duration, fn func()) TimerID
	// Cancel removes a pending callback. It returns false if the callback
	// already ran or was never registered.
	Cancel(id TimerID) bool
	// Do runs fn on the scheduler thread and waits for it to finish.
	// It must not be called from a callback already running on the scheduler.
	Do(fn func())
}

// Manual is a virtual-clock scheduler. Time only moves when Advance is
// called, which makes timing behavior deterministic in tests.
type Manual struct {
	now     time.Duration
	seq     uint64
	pending map[TimerID]*manualTimer
}

type manualTimer struct {
	at  time.Duration
	seq uint64
	fn  func()
}

// NewManual returns a virtual-clock scheduler at t=0.
func NewManual() *Manual {
	return &Manual{pending: make(map[TimerID]*manualTimer)}
}

func (m *Manual) Now() time.Duration {
	return m.now
}

func (m *Manual) After(d time.Duration, fn func()) TimerID {
	if d < 0 {
		d = 0
	}
	m.seq++
	id := TimerID(m.seq)
	m.pending[id] = &manualTimer{at: m.now + d, seq: m.seq, fn: fn}
	return id
}

func (m *Manual) Cancel(id TimerID) bool {
	if _, ok := m.pending[id]; !ok {
		return false
	}
	delete(m.pending, id)
	return true
}

// Do runs fn inline; the caller is already the only thread.
func (m *Manual) Do(fn func()) {
	fn()
}

// Pending returns the number of callbacks waiting to run.
func (m *Manual) Pending() int {
	return len(m.pending)
}

// Advance moves the clock forward by d, running every callback that
// becomes due in time order. Callbacks scheduled while advancing also run
// if they fall inside the window.
func (m *Manual) Advance(d time.Duration) {
	m.AdvanceTo(m.now + d)
}

// AdvanceTo moves the clock to t, running due callbacks in time order.
func (m *Manual) AdvanceTo(t time.Duration) {
	for {
		id, next := m.earliest()
		if next == nil || next.at > t {
			break
		}
		delete(m.pending, id)
		if next.at > m.now {
			m.now = next.at
		}
		next.fn()
	}
	if t > m.now {
		m.now = t
	}
}

func (m *Manual) earliest() (TimerID, *manualTimer) {
	var (
		bestID TimerID
		best   *manualTimer
	)
	for id, tm := range m.pending {
		if best == nil || tm.at < best.at || (tm.at == best.at && tm.seq < best.seq) {
			bestID, best = id, tm
		}
	}
	return bestID, best
}
