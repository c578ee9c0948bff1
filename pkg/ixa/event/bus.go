package event

import (
	"fmt"
	"reflect"
)

// Bus is a synchronous, typed publish/subscribe dispatcher. C is the
// context type threaded through to every handler (the simulation's
// Context facade); the bus itself has no dependency on what C actually is.
type Bus[C any] struct {
	subs     map[reflect.Type][]subscriber[C]
	queue    []queuedEvent
	draining bool
	nextID   uint64
}

type subscriber[C any] struct {
	id       uint64
	dispatch func(C, any)
}

type queuedEvent struct {
	typ reflect.Type
	val any
}

// Handle identifies a single subscription, returned by SubscribeToEvent and
// accepted by Unsubscribe.
type Handle struct {
	typ reflect.Type
	id  uint64
}

// NewBus creates an empty event bus.
func NewBus[C any]() *Bus[C] {
	return &Bus[C]{subs: make(map[reflect.Type][]subscriber[C])}
}

// SubscribeToEvent registers handler to run, in registration order relative
// to other handlers of the same event type E, whenever an E is drained.
func SubscribeToEvent[E any, C any](b *Bus[C], handler func(C, E)) Handle {
	t := reflect.TypeOf((*E)(nil)).Elem()
	b.nextID++
	id := b.nextID
	b.subs[t] = append(b.subs[t], subscriber[C]{
		id: id,
		dispatch: func(ctx C, v any) {
			handler(ctx, v.(E))
		},
	})
	return Handle{typ: t, id: id}
}

// Unsubscribe removes a previously registered handler. It is a no-op if the
// handle has already been unsubscribed.
func (b *Bus[C]) Unsubscribe(h Handle) {
	subs := b.subs[h.typ]
	for i, s := range subs {
		if s.id == h.id {
			b.subs[h.typ] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// EmitEvent enqueues evt for delivery. It does not invoke any handler
// synchronously — delivery happens the next time Drain runs, which the
// scheduler does after every plan's callback completes.
func EmitEvent[E any, C any](b *Bus[C], evt E) {
	t := reflect.TypeOf((*E)(nil)).Elem()
	b.queue = append(b.queue, queuedEvent{typ: t, val: evt})
}

// Draining reports whether the bus is currently inside Drain. Handlers may
// use this to assert they are not being invoked re-entrantly from outside
// the expected flush point.
func (b *Bus[C]) Draining() bool { return b.draining }

// Pending reports the number of events currently queued, awaiting Drain.
func (b *Bus[C]) Pending() int { return len(b.queue) }

// Drain delivers every queued event, in enqueue order, to its subscribers,
// in subscription order. Handlers may enqueue further events (via
// EmitEvent) or register new subscriptions; both are processed within the
// same Drain call, to a fixed point — Drain does not return until the queue
// is empty.
//
// Drain panics if called re-entrantly (a handler must never call Drain
// itself; the scheduler is the only caller). This mirrors the core's
// {Idle, Draining} state machine: a second concurrent drain would violate
// FIFO ordering across the two drains.
func (b *Bus[C]) Drain(ctx C) {
	if b.draining {
		panic(fmt.Errorf("event: Drain called re-entrantly"))
	}
	b.draining = true
	defer func() { b.draining = false }()

	for len(b.queue) > 0 {
		next := b.queue[0]
		b.queue = b.queue[1:]
		// Snapshot subscribers so a handler that unsubscribes itself (or
		// others) mid-dispatch doesn't corrupt this delivery's iteration.
		subs := append([]subscriber[C](nil), b.subs[next.typ]...)
		for _, s := range subs {
			s.dispatch(ctx, next.val)
		}
	}
}
