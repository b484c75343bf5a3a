package mesh

import (
	"context"
	"sync"
)

// eventBufferSize bounds the broadcast: once 100 unconsumed events
// accumulate, the oldest is dropped.
const eventBufferSize = 100

// EventBus is the in-process broadcast fan-out for registry mutations.
//
// # Design: shared ring buffer, per-subscriber cursor
//
// A websocket hub typically disconnects a client whose send buffer is
// full; an SSE subscriber here must never be torn down for falling
// behind — it is instead handed a lag signal and resumes from whatever is
// current. A single shared ring buffer (rather than one queue per
// subscriber) makes "lose the earliest un-consumed events" cheap: the
// producer never blocks or copies per subscriber, and a lagging reader
// simply discovers its cursor points past the oldest entry still retained.
type EventBus struct {
	mu    sync.Mutex
	buf   [eventBufferSize]Event
	total int64         // number of events published so far
	wake  chan struct{} // closed and replaced on every Publish to wake waiters
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{wake: make(chan struct{})}
}

// Publish appends e to the ring buffer and wakes any blocked subscribers.
// Never blocks: there are no per-subscriber queues to fill. Safe to call
// from any goroutine (the registry's register path and the reaper both do).
func (b *EventBus) Publish(e Event) {
	b.mu.Lock()
	b.buf[b.total%eventBufferSize] = e
	b.total++
	old := b.wake
	b.wake = make(chan struct{})
	b.mu.Unlock()
	close(old)
}

// Subscription is a fresh receiver returned by Subscribe. It sees only
// events published after the call to Subscribe.
type Subscription struct {
	bus  *EventBus
	next int64
}

// Subscribe returns a Subscription positioned at the current head of the
// bus: past events are never replayed to a new subscriber.
func (b *EventBus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &Subscription{bus: b, next: b.total}
}

// Recv blocks until the next event is available, the subscriber has fallen
// behind (lagged is true, ok is false; the subscriber has been fast-forwarded
// and should simply call Recv again), or ctx is done (ok and lagged both
// false).
func (s *Subscription) Recv(ctx context.Context) (event Event, ok bool, lagged bool) {
	for {
		s.bus.mu.Lock()
		total := s.bus.total
		wake := s.bus.wake

		oldestRetained := total - eventBufferSize
		if oldestRetained < 0 {
			oldestRetained = 0
		}

		if s.next < oldestRetained {
			// We fell more than a buffer's worth behind. Skip to the oldest
			// entry still retained and surface the gap as a lag signal —
			// the caller (the SSE handler) turns this into a keep-alive
			// comment instead of tearing down the connection.
			s.next = oldestRetained
			s.bus.mu.Unlock()
			return Event{}, false, true
		}

		if s.next < total {
			e := s.bus.buf[s.next%eventBufferSize]
			s.next++
			s.bus.mu.Unlock()
			return e, true, false
		}

		s.bus.mu.Unlock()

		select {
		case <-wake:
			continue
		case <-ctx.Done():
			return Event{}, false, false
		}
	}
}
