package stream

import (
	"context"
	"sync"
	"sync/atomic"

	"propertyhub.org/internal/audit"
)

const subscriberBuffer = 16

// Feed fans out appended audit entries to live subscribers (SSE clients).
type Feed struct {
	mu      sync.RWMutex
	subs    map[int]chan audit.Entry
	next    int
	dropped atomic.Uint64
}

func New() *Feed {
	return &Feed{subs: make(map[int]chan audit.Entry)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// entries. The channel is closed when ctx ends.
func (f *Feed) Subscribe(ctx context.Context) <-chan audit.Entry {
	ch := make(chan audit.Entry, subscriberBuffer)

	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = ch
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, id)
		close(ch)
		f.mu.Unlock()
	}()

	return ch
}

// Publish hands e to every subscriber without blocking. A subscriber whose
// buffer is full misses the entry; the audit log itself is unaffected.
func (f *Feed) Publish(e audit.Entry) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ch := range f.subs {
		select {
		case ch <- e:
		default:
			f.dropped.Add(1)
		}
	}
}

// Subscribers reports the number of live subscribers.
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Dropped reports how many deliveries were skipped for slow subscribers.
func (f *Feed) Dropped() uint64 { return f.dropped.Load() }
