package usecase

import (
	"sync"
	"time"

	"github.com/secmon-lab/pilot/pkg/domain/model"
)

// eventBuffer is the per-subscriber channel depth. A consumer that falls
// behind loses the oldest events; publishing never blocks the pipeline.
const eventBuffer = 128

// Feed is the live event fan-out for a running session. Subscribers are
// decoupled consumers (terminal display, HTTP controller); none of them can
// stall a commit.
type Feed struct {
	mu     sync.Mutex
	subs   map[int]chan model.SessionEvent
	nextID int
	closed bool
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[int]chan model.SessionEvent)}
}

// Subscribe registers a consumer. The returned cancel function must be
// called when the consumer is done; the channel closes on cancel or when
// the feed shuts down.
func (f *Feed) Subscribe() (<-chan model.SessionEvent, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan model.SessionEvent, eventBuffer)
	if f.closed {
		close(ch)
		return ch, func() {}
	}

	id := f.nextID
	f.nextID++
	f.subs[id] = ch

	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub)
		}
	}
}

// Publish delivers an event to every subscriber, dropping the oldest
// buffered event for any subscriber whose buffer is full.
func (f *Feed) Publish(ev model.SessionEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}

	for _, ch := range f.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// Close shuts down the feed and closes all subscriber channels
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}
