/*
Package ixa provides a single-threaded, deterministic discrete-event
simulation kernel for agent-based epidemiological models.

# Overview

A simulation is built around a Context, which owns a virtual-time
scheduler, a typed entity/property store, a synchronous event bus, RNG
streams, a report sink, observability hooks, and a plugin registry that
holds property columns, global properties, and extension data.

	ctx := ixa.NewContext(context.Background(), ixa.WithSeed(42))
	defer ctx.Close()

	type Person struct{}
	var Age = ixa.NewRequiredProperty[Person, int]("age")

	id, err := ixa.AddEntity(ctx, ixa.PropertyList[Person]{Age.With(30)})
	if err != nil {
	    log.Fatal(err)
	}

	ctx.Scheduler().AddPlan(1.0, func(ctx *ixa.Context) {
	    ixa.SetProperty(ctx, Age, id, ixa.GetProperty(ctx, Age, id)+1)
	})

	if err := ctx.Scheduler().Execute(ctx); err != nil {
	    log.Fatal(err)
	}

# Entities and properties

Entity types and property types are ordinary Go types used only as
generic type parameters (Person above never needs a field). Properties
come in four variants: Required (must be supplied at creation),
Default (falls back to a constant), Computed (lazily initialized once
and memoized), and Derived (recomputed from other properties on every
read, never stored, its own change events synthesized when an input
changes). GetProperty and SetProperty are free functions, not methods,
since Go does not allow a method to introduce its own type parameters
beyond the receiver's.

# Querying

Query is a conjunction of Where predicates evaluated against one entity
type. QueryEntityCount, SampleEntity, and SampleEntities answer
aggregate and sampling questions; IterQuery gives a lazy, single-pass
iterator (Go 1.23 range-over-func) for full enumeration. IndexProperty
builds a fingerprint index over a property so queries that filter on it
run in time proportional to the number of matches rather than the
population size.

# Scheduling

Scheduler.AddPlan and AddPeriodicPlanWithPhase enqueue callbacks to run
at a given virtual time, ordered by (time, phase, priority,
insertion order). A callback's panic is recovered and surfaces as a
*PlanPanicError without stopping the run; RequestShutdown asks the
scheduler to stop after the current step.

# Events

EmitEvent and SubscribeToEvent work on any Go type as the event payload.
Emitted events are delivered to subscribers after the scheduler callback
that emitted them returns, not synchronously inline — this keeps a
single plan's logic from re-entering itself through its own side
effects.

# Subpackages

  - errtax: error categorization shared across the core
  - event: the generic pub/sub bus Context wraps
  - plugin: the type-indexed data registry behind property storage and extensions
  - obs: structured logging, OpenTelemetry metrics/tracing, poison-plan ledger
  - report: buffered CSV report sink
  - rng: deterministic, named random streams
  - config: scenario configuration loading
*/
package ixa
