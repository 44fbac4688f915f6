package events

import (
	"sync"
	"sync/atomic"
)

// Subscriber receives live events. Its buffer absorbs bursts; a subscriber
// that falls further behind misses events rather than stalling Emit.
type Subscriber chan Event

const subscriberBuffer = 64

type hub struct {
	mu      sync.RWMutex
	subs    map[Subscriber]struct{}
	dropped atomic.Int64
}

var live = &hub{subs: make(map[Subscriber]struct{})}

func (h *hub) send(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		select {
		case sub <- e:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribe registers a new live subscriber.
func Subscribe() Subscriber {
	sub := make(Subscriber, subscriberBuffer)
	live.mu.Lock()
	live.subs[sub] = struct{}{}
	live.mu.Unlock()
	return sub
}

// Unsubscribe removes sub and closes it. Unknown or already closed
// subscribers are ignored.
func Unsubscribe(sub Subscriber) {
	live.mu.Lock()
	defer live.mu.Unlock()

	if _, ok := live.subs[sub]; ok {
		delete(live.subs, sub)
		close(sub)
	}
}

// CloseAllSubscribers closes every subscriber, ending their streams.
func CloseAllSubscribers() {
	live.mu.Lock()
	defer live.mu.Unlock()

	for sub := range live.subs {
		close(sub)
	}
	clear(live.subs)
}

func SubscriberCount() int {
	live.mu.RLock()
	defer live.mu.RUnlock()
	return len(live.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func Dropped() int64 {
	return live.dropped.Load()
}

// RecentEvents returns the newest n buffered events, oldest first. n <= 0
// returns everything buffered.
func RecentEvents(n int) []Event {
	return buffer.Last(n)
}
