package obs

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("ixa")

// SpanManager handles trace span lifecycle for a simulation run. Use
// NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartRunSpan starts a span for the entire Execute() call.
	StartRunSpan(ctx context.Context, runID string) (context.Context, trace.Span)

	// StartPlanSpan starts a span for a single plan callback.
	StartPlanSpan(ctx context.Context, time float64, phase string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)

	// NamedSpans returns, per span label, how many spans of that label
	// have completed and their summed wall-clock duration. OTel spans
	// are write-only from the application's perspective once exported,
	// so this tally is kept locally for the profiling JSON's
	// named_spans section, mirroring Metrics.Snapshot.
	NamedSpans() []NamedSpan
}

// NamedSpan is one entry of the profiling JSON's named_spans array.
type NamedSpan struct {
	Label   string `json:"label"`
	Count   int64  `json:"count"`
	TotalNs int64  `json:"total_ns"`
}

type spanTally struct {
	mu      sync.Mutex
	counts  map[string]int64
	totalNs map[string]int64
}

func (t *spanTally) record(label string, dur time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.counts == nil {
		t.counts = make(map[string]int64)
		t.totalNs = make(map[string]int64)
	}
	t.counts[label]++
	t.totalNs[label] += dur.Nanoseconds()
}

func (t *spanTally) snapshot() []NamedSpan {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]NamedSpan, 0, len(t.counts))
	for label, count := range t.counts {
		out = append(out, NamedSpan{Label: label, Count: count, TotalNs: t.totalNs[label]})
	}
	return out
}

type spanStart struct {
	label string
	at    time.Time
}

type otelSpanManager struct {
	tally   spanTally
	pending sync.Map // trace.Span -> spanStart
}

// NewSpanManager returns a SpanManager using the global OTel tracer
// provider; configure the provider (otel.SetTracerProvider) before calling.
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

func (m *otelSpanManager) StartRunSpan(ctx context.Context, runID string) (context.Context, trace.Span) {
	rctx, span := tracer.Start(ctx, "ixa.run",
		trace.WithAttributes(attribute.String("run.id", runID)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	m.pending.Store(span, spanStart{label: "ixa.run", at: time.Now()})
	return rctx, span
}

func (m *otelSpanManager) StartPlanSpan(ctx context.Context, planTime float64, phase string) (context.Context, trace.Span) {
	rctx, span := tracer.Start(ctx, "ixa.plan",
		trace.WithAttributes(
			attribute.Float64("plan.time", planTime),
			attribute.String("plan.phase", phase),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	m.pending.Store(span, spanStart{label: "ixa.plan." + phase, at: time.Now()})
	return rctx, span
}

func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	if v, ok := m.pending.LoadAndDelete(span); ok {
		start := v.(spanStart)
		m.tally.record(start.label, time.Since(start.at))
	}
}

func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

func (m *otelSpanManager) NamedSpans() []NamedSpan { return m.tally.snapshot() }
