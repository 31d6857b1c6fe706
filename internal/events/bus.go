package events

import (
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"parley/internal/logging"
)

// subscriberBuffer is the channel depth per subscriber. Slow subscribers
// drop events rather than block publishers.
const subscriberBuffer = 64

// Bus dispatches domain events to subscribers. Publishing is safe from any
// goroutine. Delivery order matches publish order for events published from
// a single goroutine; across independent publishers no total order is
// guaranteed beyond the bus-assigned sequence numbers.
type Bus struct {
	mu          sync.RWMutex
	subscribers []*subscription
	closed      bool

	sequence atomic.Uint64
	dropped  atomic.Uint64
}

type subscription struct {
	ch    chan Event
	kinds map[Kind]bool // empty means all kinds
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe returns a channel receiving every published event.
func (b *Bus) Subscribe() <-chan Event {
	return b.subscribe(nil)
}

// SubscribeKinds returns a channel receiving only the listed kinds.
func (b *Bus) SubscribeKinds(kinds ...Kind) <-chan Event {
	filter := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		filter[k] = true
	}
	return b.subscribe(filter)
}

func (b *Bus) subscribe(kinds map[Kind]bool) <-chan Event {
	sub := &subscription{
		ch:    make(chan Event, subscriberBuffer),
		kinds: kinds,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub.ch
	}
	b.subscribers = append(b.subscribers, sub)
	return sub.ch
}

// Unsubscribe removes a subscriber channel and closes it.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	if ch == nil {
		return
	}
	target := reflect.ValueOf(ch).Pointer()

	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subscribers {
		if reflect.ValueOf(sub.ch).Pointer() == target {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(sub.ch)
			return
		}
	}
}

// Publish delivers an event of the given kind to all matching subscribers.
// A full subscriber channel drops the event for that subscriber only.
func (b *Bus) Publish(kind Kind, payload any) {
	event := Event{
		Seq:       b.sequence.Add(1),
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	logging.Events("publish seq=%d kind=%s subscribers=%d", event.Seq, kind, len(b.subscribers))

	for _, sub := range b.subscribers {
		if len(sub.kinds) > 0 && !sub.kinds[kind] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// Close shuts down the bus and closes all subscriber channels. Publishing
// after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.ch)
	}
	b.subscribers = nil
}

// Stats returns bus counters.
func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BusStats{
		SubscriberCount: len(b.subscribers),
		TotalPublished:  b.sequence.Load(),
		TotalDropped:    b.dropped.Load(),
	}
}

// BusStats holds event bus counters.
type BusStats struct {
	SubscriberCount int
	TotalPublished  uint64
	TotalDropped    uint64
}
