// Package connection implements the request/response correlator and the
// inbound dispatch loop that sits on top of internal/transport, plus the
// notification broadcaster session consumers subscribe to.
package connection

import "sync"

// broadcastCapacity bounds how many unconsumed notifications a lagging
// subscriber can accumulate before being forced to drop the oldest one.
const broadcastCapacity = 256

// Broadcaster fans a single stream of values out to any number of
// subscribers. A subscriber that falls behind is never blocked and never
// sees retained history replayed to it: once its buffer fills, the
// oldest buffered value is dropped to make room for the newest, so a
// lagged subscriber always resumes from the most recent notification
// rather than catching up on a backlog (spec.md §5: "lagged-subscriber
// semantics: resume from newest, no retained history").
type Broadcaster[T any] struct {
	mu   sync.Mutex
	subs map[int]chan T
	next int
}

// NewBroadcaster constructs an empty Broadcaster.
func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subs: make(map[int]chan T)}
}

// Subscribe registers a new subscriber and returns its channel along with
// an unsubscribe function. The channel is never closed by Publish; it is
// closed by Unsubscribe once it is safe to do so (no concurrent sender).
func (b *Broadcaster[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan T, broadcastCapacity)
	b.subs[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
	}
	return ch, unsubscribe
}

// Publish delivers v to every current subscriber, dropping the oldest
// buffered value for any subscriber whose channel is full instead of
// blocking the publisher.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- v:
		default:
			// Lagging subscriber: drop the oldest buffered value, then
			// push the newest. If a concurrent receiver drains the one
			// slot we just freed before we can send, fall back to a
			// non-blocking send so Publish never blocks.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

// SubscriberCount reports how many subscribers are currently registered,
// mainly for tests and diagnostics.
func (b *Broadcaster[T]) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
