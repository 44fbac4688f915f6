package scheduler

import (
	"context"
	"sync"
	"time"
)

// Loop is the real-time scheduler. A single goroutine started by Run owns
// all execution; timers and external calls are posted into it.
type Loop struct {
	start time.Time
	tasks chan func()
	done  chan struct{}

	mu     sync.Mutex
	seq    uint64
	timers map[TimerID]*time.Timer

	frame   time.Duration
	onFrame func()
}

// NewLoop creates a loop that calls the frame hook every frame interval.
// A zero interval disables frame ticks.
func NewLoop(frame time.Duration) *Loop {
	return &Loop{
		start:  time.Now(),
		tasks:  make(chan func(), 256),
		done:   make(chan struct{}),
		timers: make(map[TimerID]*time.Timer),
		frame:  frame,
	}
}

// OnFrame sets the per-frame hook. Call before Run.
func (l *Loop) OnFrame(fn func()) {
	l.onFrame = fn
}

// Run executes posted work until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	var tick <-chan time.Time
	if l.frame > 0 && l.onFrame != nil {
		ticker := time.NewTicker(l.frame)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			l.stopTimers()
			return ctx.Err()
		case fn := <-l.tasks:
			fn()
		case <-tick:
			l.onFrame()
		}
	}
}

func (l *Loop) Now() time.Duration {
	return time.Since(l.start)
}

func (l *Loop) After(d time.Duration, fn func()) TimerID {
	l.mu.Lock()
	l.seq++
	id := TimerID(l.seq)
	l.timers[id] = time.AfterFunc(d, func() {
		l.post(func() {
			// Cancel may have run on the loop between expiry and this task.
			l.mu.Lock()
			_, live := l.timers[id]
			delete(l.timers, id)
			l.mu.Unlock()
			if live {
				fn()
			}
		})
	})
	l.mu.Unlock()
	return id
}

func (l *Loop) Cancel(id TimerID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.timers[id]
	if !ok {
		return false
	}
	t.Stop()
	delete(l.timers, id)
	return true
}

func (l *Loop) Do(fn func()) {
	finished := make(chan struct{})
	if !l.post(func() {
		defer close(finished)
		fn()
	}) {
		return
	}
	select {
	case <-finished:
	case <-l.done:
	}
}

func (l *Loop) post(fn func()) bool {
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

func (l *Loop) stopTimers() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, t := range l.timers {
		t.Stop()
		delete(l.timers, id)
	}
}
