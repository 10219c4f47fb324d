package eventbus

import (
	"sync"
	"time"
)

// Event types.
const (
	DeliveryFailed = "delivery.failed"
	JobFailed      = "job.failed"
)

// Event is an in-process signal. Subject is a recipient user ID or a job run ID.
type Event struct {
	Type    string
	Time    time.Time
	Subject string
	Detail  string
}

// Bus fans events out to subscribers. Publish never blocks; a subscriber whose
// buffer is full misses the event.
type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

func New() Bus { return &memBus{} }

type subscriber struct {
	ch     chan Event
	closed bool
}

type memBus struct {
	mu   sync.RWMutex
	subs []*subscriber
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		select {
		case s.ch <- e:
		default:
		}
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	s := &subscriber{ch: make(chan Event, buffer)}
	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	return s.ch, func() {
		// Publish holds the read lock while sending, so closing under the
		// write lock cannot race a send.
		b.mu.Lock()
		defer b.mu.Unlock()
		if s.closed {
			return
		}
		s.closed = true
		for i, x := range b.subs {
			if x == s {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				break
			}
		}
		close(s.ch)
	}
}
