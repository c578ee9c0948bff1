package obs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopMetricsRecordsNothing(t *testing.T) {
	var m Metrics = NoopMetrics{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordPlanFired(ctx, "normal", time.Millisecond, errors.New("x"))
		m.RecordEntityCreated(ctx, "Person")
		m.RecordEventDispatched(ctx, "E")
		m.RecordQuery(ctx, "Person", time.Millisecond)
	})
	assert.Equal(t, Snapshot{}, m.Snapshot())
}

func TestNoopSpanManagerIsSilent(t *testing.T) {
	var sm SpanManager = NoopSpanManager{}
	ctx := context.Background()

	rctx, span := sm.StartRunSpan(ctx, "run-1")
	assert.Equal(t, ctx, rctx)
	assert.NotNil(t, span)

	_, planSpan := sm.StartPlanSpan(ctx, 0, "first")
	assert.NotNil(t, planSpan)

	assert.NotPanics(t, func() {
		sm.AddSpanEvent(ctx, "noop")
		sm.EndSpanWithError(span, nil)
	})
}
