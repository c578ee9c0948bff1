package obs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a Metrics that records nothing. Use when metrics are
// disabled to avoid OTel instrument overhead.
type NoopMetrics struct{}

var _ Metrics = NoopMetrics{}

func (NoopMetrics) RecordPlanFired(_ context.Context, _ string, _ time.Duration, _ error) {}
func (NoopMetrics) RecordEntityCreated(_ context.Context, _ string)                       {}
func (NoopMetrics) RecordEventDispatched(_ context.Context, _ string)                     {}
func (NoopMetrics) RecordQuery(_ context.Context, _ string, _ time.Duration)              {}
func (NoopMetrics) Snapshot() Snapshot                                                    { return Snapshot{} }

// NoopSpanManager is a SpanManager that does nothing. Use when tracing is
// disabled to avoid overhead.
type NoopSpanManager struct{}

var _ SpanManager = NoopSpanManager{}

var noopSpan = noop.Span{}

func (NoopSpanManager) StartRunSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

func (NoopSpanManager) StartPlanSpan(ctx context.Context, _ float64, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}

func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}

func (NoopSpanManager) NamedSpans() []NamedSpan { return nil }
