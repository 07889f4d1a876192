// Package bus implements the notification channel: a constructor-injected
// publish/subscribe bus that delivers annotation lifecycle events to
// whichever views are attached, without any process-global emitter.
package bus

import (
	"sync"

	"github.com/hocanet/feedcore/pkg/types"
)

// Handler receives a published event. Handlers run on the publisher's
// goroutine and must not block.
type Handler func(types.AnnotationEvent)

// Bus routes annotation events to subscribers by event kind.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[types.EventKind]map[int]*subscriber
}

type subscriber struct {
	fn   Handler
	once bool
}

// Subscription is a handle for detaching a subscriber.
type Subscription struct {
	bus  *Bus
	kind types.EventKind
	id   int
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[types.EventKind]map[int]*subscriber)}
}

// Subscribe attaches a handler for one event kind until cancelled.
func (b *Bus) Subscribe(kind types.EventKind, fn Handler) *Subscription {
	return b.subscribe(kind, fn, false)
}

// SubscribeOnce attaches a handler that detaches itself after the first
// delivery. Cancelling afterwards is still safe.
func (b *Bus) SubscribeOnce(kind types.EventKind, fn Handler) *Subscription {
	return b.subscribe(kind, fn, true)
}

func (b *Bus) subscribe(kind types.EventKind, fn Handler, once bool) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	if b.subs[kind] == nil {
		b.subs[kind] = make(map[int]*subscriber)
	}
	b.subs[kind][b.next] = &subscriber{fn: fn, once: once}
	return &Subscription{bus: b, kind: kind, id: b.next}
}

// Publish delivers the event to every subscriber of its kind. One-shot
// subscribers are removed before their handler runs, so a handler that
// re-publishes cannot be delivered to twice.
func (b *Bus) Publish(ev types.AnnotationEvent) {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.subs[ev.Kind]))
	for id, sub := range b.subs[ev.Kind] {
		handlers = append(handlers, sub.fn)
		if sub.once {
			delete(b.subs[ev.Kind], id)
		}
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// Cancel detaches the subscription. It is unconditional and idempotent:
// cancelling an already-removed (or already-fired one-shot) subscription
// is a no-op, never an error.
func (s *Subscription) Cancel() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if subs, ok := s.bus.subs[s.kind]; ok {
		delete(subs, s.id)
	}
}

// SubscriberCount reports attached subscribers for a kind.
func (b *Bus) SubscriberCount(kind types.EventKind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[kind])
}
