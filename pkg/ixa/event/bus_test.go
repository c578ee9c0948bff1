package event_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CDCgov/ixa-core/pkg/ixa/event"
)

type ctx struct{ log *[]string }

type Incremented struct{ By int }
type Doubled struct{ Value int }

func TestDeliveryIsFIFOPerTypeAndOrderedPerSubscription(t *testing.T) {
	b := event.NewBus[*ctx]()
	var order []string
	c := &ctx{log: &order}

	event.SubscribeToEvent(b, func(c *ctx, e Incremented) {
		*c.log = append(*c.log, "first")
	})
	event.SubscribeToEvent(b, func(c *ctx, e Incremented) {
		*c.log = append(*c.log, "second")
	})

	event.EmitEvent(b, Incremented{By: 1})
	event.EmitEvent(b, Incremented{By: 2})
	b.Drain(c)

	assert.Equal(t, []string{"first", "second", "first", "second"}, order)
	assert.Equal(t, 0, b.Pending())
}

func TestHandlerCanEnqueueFurtherEventsDrainedToFixedPoint(t *testing.T) {
	b := event.NewBus[*ctx]()
	var seen []int
	c := &ctx{log: &[]string{}}

	event.SubscribeToEvent(b, func(c *ctx, e Incremented) {
		seen = append(seen, e.By)
		if e.By < 3 {
			event.EmitEvent(b, Incremented{By: e.By + 1})
		}
	})

	event.EmitEvent(b, Incremented{By: 1})
	b.Drain(c)

	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestUnsubscribeStopsFutureDelivery(t *testing.T) {
	b := event.NewBus[*ctx]()
	c := &ctx{log: &[]string{}}
	calls := 0

	h := event.SubscribeToEvent(b, func(c *ctx, e Incremented) {
		calls++
	})

	event.EmitEvent(b, Incremented{By: 1})
	b.Drain(c)
	require.Equal(t, 1, calls)

	b.Unsubscribe(h)
	event.EmitEvent(b, Incremented{By: 1})
	b.Drain(c)
	assert.Equal(t, 1, calls)
}

func TestDistinctEventTypesAreIndependent(t *testing.T) {
	b := event.NewBus[*ctx]()
	c := &ctx{log: &[]string{}}
	var incremented, doubled int

	event.SubscribeToEvent(b, func(c *ctx, e Incremented) { incremented++ })
	event.SubscribeToEvent(b, func(c *ctx, e Doubled) { doubled++ })

	event.EmitEvent(b, Incremented{By: 1})
	b.Drain(c)

	assert.Equal(t, 1, incremented)
	assert.Equal(t, 0, doubled)
}

func TestDrainPanicsOnReentrantCall(t *testing.T) {
	b := event.NewBus[*ctx]()
	c := &ctx{log: &[]string{}}

	event.SubscribeToEvent(b, func(c *ctx, e Incremented) {
		assert.Panics(t, func() { b.Drain(c) })
	})
	event.EmitEvent(b, Incremented{By: 1})
	b.Drain(c)
}
