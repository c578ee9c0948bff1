package ixa

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/CDCgov/ixa-core/pkg/ixa/event"
	"github.com/CDCgov/ixa-core/pkg/ixa/obs"
	"github.com/CDCgov/ixa-core/pkg/ixa/plugin"
	"github.com/CDCgov/ixa-core/pkg/ixa/report"
	"github.com/CDCgov/ixa-core/pkg/ixa/rng"
)

// ShutdownSignal records why the scheduler was asked to stop: the plan
// queue emptying on its own is not a ShutdownSignal, only an explicit
// RequestShutdown call is.
type ShutdownSignal struct {
	Reason      string
	RequestedAt float64 // virtual time RequestShutdown was called
}

// Context is the single argument passed to every plan callback and event
// handler. It embeds context.Context (for cancellation propagation into
// long-running CLI operations, such as the debugger's blocking stdin
// read), holds the scheduler, event bus, entity store, RNG streams, report
// sink, and observability hooks as fields, and owns the plugin registry
// that property columns, global properties, and extensions are kept in.
//
// Context has no destructor — Go has no RAII-drop — so Close must be
// called explicitly (typically via defer) once Execute returns, to flush
// report sinks and release the poison ledger's SQLite handle. This is a
// deliberate, documented deviation from the source framework's Rust-drop
// idiom.
type Context struct {
	context.Context

	runID    string
	logger   *slog.Logger
	registry *plugin.Registry

	scheduler *Scheduler
	bus       *event.Bus[*Context]
	entities  *EntityStore

	metrics obs.Metrics
	spans   obs.SpanManager
	poison  *obs.PoisonLedger

	reports *report.Sink
	rngs    *rng.Manager

	shutdownSignal *ShutdownSignal
	startedAt      time.Time
}

// ContextOption configures a Context at construction time.
type ContextOption func(*Context)

// WithLogger sets the base logger; Logger() returns it enriched with the
// run id.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *Context) { c.logger = logger }
}

// WithRunID overrides the auto-generated run identifier.
func WithRunID(id string) ContextOption {
	return func(c *Context) { c.runID = id }
}

// WithMetrics installs a metrics recorder; defaults to obs.NoopMetrics{}.
func WithMetrics(m obs.Metrics) ContextOption {
	return func(c *Context) { c.metrics = m }
}

// WithSpanManager installs a tracer; defaults to obs.NoopSpanManager{}.
func WithSpanManager(sm obs.SpanManager) ContextOption {
	return func(c *Context) { c.spans = sm }
}

// WithPoisonSink mirrors every poisoned plan to sink in addition to the
// in-memory ledger.
func WithPoisonSink(sink obs.PoisonSink) ContextOption {
	return func(c *Context) { c.poison = obs.NewPoisonLedger(256, sink) }
}

// WithSeed seeds every RNG stream GetRng creates from this Context.
func WithSeed(seed uint64) ContextOption {
	return func(c *Context) { c.rngs = rng.NewManager(seed) }
}

// WithReportSink installs the destination for SendReport calls; defaults
// to an in-memory sink suitable for tests.
func WithReportSink(sink *report.Sink) ContextOption {
	return func(c *Context) { c.reports = sink }
}

// NewContext creates a Context wrapping parent, with its own scheduler,
// event bus, entity store, and plugin registry.
func NewContext(parent context.Context, opts ...ContextOption) *Context {
	c := &Context{
		Context:   parent,
		runID:     uuid.New().String(),
		logger:    slog.Default(),
		registry:  plugin.NewRegistry(),
		entities:  NewEntityStore(),
		metrics:   obs.NoopMetrics{},
		spans:     obs.NoopSpanManager{},
		poison:    obs.NewPoisonLedger(256, nil),
		rngs:      rng.NewManager(0),
		startedAt: time.Now(),
	}
	c.bus = event.NewBus[*Context]()

	for _, opt := range opts {
		opt(c)
	}

	c.scheduler = NewScheduler(obs.NewScheduleLogger(obs.EnrichLogger(c.logger, c.runID)))
	if c.reports == nil {
		c.reports = report.NewMemorySink()
	}
	return c
}

// RunID returns this run's unique identifier, used to tag every log line
// and trace span.
func (c *Context) RunID() string { return c.runID }

// Logger returns the configured logger, enriched with the run id. Never
// nil.
func (c *Context) Logger() *slog.Logger { return obs.EnrichLogger(c.logger, c.runID) }

// RNG returns the deterministic random stream for id, creating it on
// first use from the seed configured via WithSeed.
func (c *Context) RNG(id string) *rng.Stream { return c.rngs.GetRng(rng.ID(id)) }

// Reports returns the sink SendReport writes rows to.
func (c *Context) Reports() *report.Sink { return c.reports }

// Registry exposes the plugin registry so extension packages can attach
// their own GetData-backed accessors without the core importing them.
func (c *Context) Registry() *plugin.Registry { return c.registry }

// Scheduler returns the scheduler driving this Context's virtual clock.
func (c *Context) Scheduler() *Scheduler { return c.scheduler }

// Entities returns the entity/property store for this run.
func (c *Context) Entities() *EntityStore { return c.entities }

// Metrics returns the configured metrics recorder; never nil.
func (c *Context) Metrics() obs.Metrics { return c.metrics }

// PoisonedPlans returns every plan callback that panicked during this
// run, oldest first.
func (c *Context) PoisonedPlans() []obs.PoisonedPlan { return c.poison.All() }

// Spans returns the configured span manager; never nil.
func (c *Context) Spans() obs.SpanManager { return c.spans }

// Profiling assembles this run's profiling report, using the scheduler's
// current virtual time as the run's final time and the elapsed wall
// clock since NewContext as its duration.
func (c *Context) Profiling() obs.ProfilingReport {
	return obs.BuildProfilingReport(
		c.runID,
		time.Since(c.startedAt),
		c.scheduler.CurrentTime(),
		len(c.PoisonedPlans()),
		c.metrics,
		c.spans,
	)
}

// RequestShutdown asks the scheduler to stop after the current plan and
// its post-step event flush complete, recording reason for later
// inspection via ShutdownReason.
func (c *Context) RequestShutdown(reason string) {
	if c.shutdownSignal == nil {
		c.shutdownSignal = &ShutdownSignal{Reason: reason, RequestedAt: c.scheduler.CurrentTime()}
	}
	c.scheduler.Shutdown(reason)
}

// ShutdownReason returns the signal recorded by RequestShutdown, or nil
// if Execute returned because the plan queue simply emptied.
func (c *Context) ShutdownReason() *ShutdownSignal { return c.shutdownSignal }

// EmitEvent enqueues evt for delivery to every subscriber of its type the
// next time the event bus drains (after the current plan's callback
// returns).
func EmitEvent[E any](c *Context, evt E) {
	event.EmitEvent(c.bus, evt)
	c.metrics.RecordEventDispatched(c, typeName[E]())
}

// SubscribeToEvent registers handler to run whenever an E is drained from
// the event bus, in registration order relative to other E subscribers.
func SubscribeToEvent[E any](c *Context, handler func(*Context, E)) event.Handle {
	return event.SubscribeToEvent(c.bus, handler)
}

// Close flushes the report sink and releases the poison ledger's backing
// store. Callers must invoke Close (typically via defer) after Execute
// returns; Go has no destructor to do this automatically.
func (c *Context) Close() error {
	reportErr := c.reports.Close()
	poisonErr := c.poison.Close()
	if reportErr != nil {
		return reportErr
	}
	return poisonErr
}
