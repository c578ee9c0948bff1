package obs

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records the simulation-level counters and histograms a run's
// profiling JSON is built from. Use NewMetrics() for an OpenTelemetry-backed
// recorder or NoopMetrics{} when metrics are disabled.
type Metrics interface {
	RecordPlanFired(ctx context.Context, phase string, latency time.Duration, err error)
	RecordEntityCreated(ctx context.Context, entityType string)
	RecordEventDispatched(ctx context.Context, eventType string)
	RecordQuery(ctx context.Context, entityType string, duration time.Duration)

	// Snapshot returns the accumulated named counts this recorder has
	// observed, for the profiling JSON's named_counts section. OTel
	// instruments themselves are write-only from the application's
	// perspective, so the snapshot is kept alongside them locally.
	Snapshot() Snapshot
}

// Snapshot is the subset of Metrics' accumulated state serialized into the
// profiling JSON's named_counts array.
type Snapshot struct {
	PlansFired       int64
	PlanErrors       int64
	EntitiesCreated  int64
	EventsDispatched int64
	Queries          int64
}

// NamedCounts renders the snapshot as {label, count} pairs in the order
// the profiling JSON shape expects.
func (s Snapshot) NamedCounts() []NamedCount {
	return []NamedCount{
		{Label: "plans_fired", Count: s.PlansFired},
		{Label: "plan_errors", Count: s.PlanErrors},
		{Label: "entities_created", Count: s.EntitiesCreated},
		{Label: "events_dispatched", Count: s.EventsDispatched},
		{Label: "queries", Count: s.Queries},
	}
}

// NamedCount is one entry of the profiling JSON's named_counts array.
type NamedCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

type otelMetrics struct {
	plansFired       metric.Int64Counter
	planLatency      metric.Float64Histogram
	planErrors       metric.Int64Counter
	entitiesCreated  metric.Int64Counter
	eventsDispatched metric.Int64Counter
	queryDuration    metric.Float64Histogram

	counts struct {
		plansFired       atomic.Int64
		planErrors       atomic.Int64
		entitiesCreated  atomic.Int64
		eventsDispatched atomic.Int64
		queries          atomic.Int64
	}
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("ixa")

	plansFired, err := meter.Int64Counter("sim.plans.fired", metric.WithDescription("number of plans fired"))
	if err != nil {
		return nil, err
	}
	planLatency, err := meter.Float64Histogram("sim.plan.latency_ms",
		metric.WithDescription("plan callback latency"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	planErrors, err := meter.Int64Counter("sim.plans.errors", metric.WithDescription("number of plan panics"))
	if err != nil {
		return nil, err
	}
	entitiesCreated, err := meter.Int64Counter("sim.entities.created", metric.WithDescription("number of entities created"))
	if err != nil {
		return nil, err
	}
	eventsDispatched, err := meter.Int64Counter("sim.events.dispatched", metric.WithDescription("number of events emitted"))
	if err != nil {
		return nil, err
	}
	queryDuration, err := meter.Float64Histogram("sim.query.duration_ms",
		metric.WithDescription("query execution latency"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		plansFired:       plansFired,
		planLatency:      planLatency,
		planErrors:       planErrors,
		entitiesCreated:  entitiesCreated,
		eventsDispatched: eventsDispatched,
		queryDuration:    queryDuration,
	}, nil
}

// NewMetrics returns a Metrics backed by the global OTel meter provider,
// falling back to a no-op recorder if instrument registration fails. The
// OTel instruments are registered once per process and shared; each
// returned recorder keeps its own Snapshot counts, starting at zero.
func NewMetrics() Metrics {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder", slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return &otelMetrics{
		plansFired:       m.plansFired,
		planLatency:      m.planLatency,
		planErrors:       m.planErrors,
		entitiesCreated:  m.entitiesCreated,
		eventsDispatched: m.eventsDispatched,
		queryDuration:    m.queryDuration,
	}
}

func (m *otelMetrics) RecordPlanFired(ctx context.Context, phase string, latency time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("phase", phase))
	m.plansFired.Add(ctx, 1, attrs)
	m.planLatency.Record(ctx, float64(latency.Milliseconds()), attrs)
	m.counts.plansFired.Add(1)
	if err != nil {
		m.planErrors.Add(ctx, 1, attrs)
		m.counts.planErrors.Add(1)
	}
}

func (m *otelMetrics) RecordEntityCreated(ctx context.Context, entityType string) {
	m.entitiesCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("entity_type", entityType)))
	m.counts.entitiesCreated.Add(1)
}

func (m *otelMetrics) RecordEventDispatched(ctx context.Context, eventType string) {
	m.eventsDispatched.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
	m.counts.eventsDispatched.Add(1)
}

func (m *otelMetrics) RecordQuery(ctx context.Context, entityType string, duration time.Duration) {
	m.queryDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attribute.String("entity_type", entityType)))
	m.counts.queries.Add(1)
}

func (m *otelMetrics) Snapshot() Snapshot {
	return Snapshot{
		PlansFired:       m.counts.plansFired.Load(),
		PlanErrors:       m.counts.planErrors.Load(),
		EntitiesCreated:  m.counts.entitiesCreated.Load(),
		EventsDispatched: m.counts.eventsDispatched.Load(),
		Queries:          m.counts.queries.Load(),
	}
}
