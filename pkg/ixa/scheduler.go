package ixa

import (
	"container/heap"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/CDCgov/ixa-core/pkg/ixa/obs"
)

// Phase is a coarse tie-break class applied before Priority when two plans
// share the same Time. Plans in PhaseFirst for a given time fire before any
// PhaseNormal plan at that time, which in turn fire before PhaseLast.
type Phase int

const (
	PhaseFirst Phase = iota
	PhaseNormal
	PhaseLast
)

func (p Phase) String() string {
	switch p {
	case PhaseFirst:
		return "first"
	case PhaseNormal:
		return "normal"
	case PhaseLast:
		return "last"
	default:
		return "unknown"
	}
}

// PlanHandle identifies a single scheduled plan, returned by the Add*
// methods and accepted by CancelPlan.
type PlanHandle struct {
	id uint64
}

// plan is an entry in the scheduler's priority queue.
type plan struct {
	id        uint64
	time      float64
	phase     Phase
	priority  uint64
	seq       uint64
	callback  func(*Context)
	cancelled bool

	// period is non-zero for a periodic plan: on firing, the plan
	// re-enqueues itself at time+period instead of being discarded.
	period float64
}

// planQueue is a binary min-heap ordered by (time, phase, priority, seq),
// satisfying container/heap.Interface.
type planQueue []*plan

func (q planQueue) Len() int { return len(q) }

func (q planQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.time != b.time {
		return a.time < b.time
	}
	if a.phase != b.phase {
		return a.phase < b.phase
	}
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.seq < b.seq
}

func (q planQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *planQueue) Push(x any) { *q = append(*q, x.(*plan)) }

func (q *planQueue) Pop() any {
	old := *q
	n := len(old)
	p := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return p
}

// Scheduler drives the simulation's virtual clock: a single,
// non-decreasing float64 advanced by popping the minimum plan off a
// priority queue, running its callback to completion, and draining the
// event bus before considering the next plan. There are no suspension
// points within a callback; all interleaving happens between callbacks.
type Scheduler struct {
	queue          planQueue
	byID           map[uint64]*plan
	now            float64
	nextID         uint64
	nextPriority   uint64
	shutdown       bool
	shutdownReason string
	logger         *obs.ScheduleLogger
	advanceHook    func(now float64)
}

// NewScheduler creates an empty scheduler with its virtual clock at 0.
func NewScheduler(logger *obs.ScheduleLogger) *Scheduler {
	return &Scheduler{
		byID:   make(map[uint64]*plan),
		logger: logger,
	}
}

// CurrentTime reports the virtual time of the plan currently executing, or
// the time of the last plan to complete if called outside Execute.
func (s *Scheduler) CurrentTime() float64 { return s.now }

// Pending reports the number of plans currently in the queue, including
// cancelled ones not yet popped.
func (s *Scheduler) Pending() int { return len(s.queue) }

// ShuttingDown reports whether Shutdown has been called.
func (s *Scheduler) ShuttingDown() bool { return s.shutdown }

// ShutdownReason returns the reason passed to Shutdown, or "" if Shutdown
// has not been called.
func (s *Scheduler) ShutdownReason() string { return s.shutdownReason }

// AddPlan schedules cb to run at or after time, in PhaseNormal, with
// priority assigned from the insertion counter (so equal-time plans added
// in this phase fire in the order they were added).
func (s *Scheduler) AddPlan(time float64, cb func(*Context)) PlanHandle {
	return s.AddPlanWithPhase(time, cb, PhaseNormal)
}

// AddPlanWithPhase is AddPlan with an explicit Phase tie-break class.
func (s *Scheduler) AddPlanWithPhase(time float64, cb func(*Context), phase Phase) PlanHandle {
	s.nextPriority++
	return s.addPlan(time, phase, s.nextPriority, cb, 0)
}

// AddPeriodicPlanWithPhase schedules cb to run every period virtual-time
// units starting at current_time+period, re-enqueueing itself after each
// firing until cancelled or the scheduler shuts down.
func (s *Scheduler) AddPeriodicPlanWithPhase(period float64, cb func(*Context), phase Phase) PlanHandle {
	s.nextPriority++
	return s.addPlan(s.now+period, phase, s.nextPriority, cb, period)
}

func (s *Scheduler) addPlan(time float64, phase Phase, priority uint64, cb func(*Context), period float64) PlanHandle {
	s.nextID++
	p := &plan{
		id:       s.nextID,
		time:     time,
		phase:    phase,
		priority: priority,
		seq:      s.nextID,
		callback: cb,
		period:   period,
	}
	heap.Push(&s.queue, p)
	s.byID[p.id] = p
	return PlanHandle{id: p.id}
}

// requeuePeriodic re-enqueues a periodic plan's next occurrence, reusing
// its own id rather than minting a new one. The PlanHandle a caller holds
// from AddPeriodicPlanWithPhase always names whichever occurrence is
// currently pending, so CancelPlan stops the series at any point rather
// than only being able to cancel the first firing.
func (s *Scheduler) requeuePeriodic(p *plan) {
	s.nextPriority++
	next := &plan{
		id:       p.id,
		time:     s.now + p.period,
		phase:    p.phase,
		priority: s.nextPriority,
		seq:      s.nextPriority,
		callback: p.callback,
		period:   p.period,
	}
	heap.Push(&s.queue, next)
	s.byID[next.id] = next
}

// CancelPlan removes h's plan if it has not yet fired. Idempotent: calling
// it twice, or on an id that already fired, is a no-op.
func (s *Scheduler) CancelPlan(h PlanHandle) {
	if p, ok := s.byID[h.id]; ok {
		p.cancelled = true
		delete(s.byID, h.id)
	}
}

// Shutdown requests that Execute return after the current plan (if any)
// finishes and the post-step event flush completes.
func (s *Scheduler) Shutdown(reason string) {
	s.shutdown = true
	if s.shutdownReason == "" {
		s.shutdownReason = reason
	}
}

// OnAdvance registers fn to run every time the virtual clock moves to a
// new plan's time, before that plan's callback runs. Only one hook is
// kept; a second call replaces the first. Intended for a progress bar or
// similar observer, not model logic.
func (s *Scheduler) OnAdvance(fn func(now float64)) {
	s.advanceHook = fn
}

// Step pops and runs at most one plan: advances the clock to its time,
// invokes its callback with panic recovery, and drains the event bus to a
// fixed point. ran is false if the queue was empty or Shutdown had
// already been called, in which case err is always nil.
func (s *Scheduler) Step(ctx *Context) (ran bool, err error) {
	if s.shutdown || s.queue.Len() == 0 {
		return false, nil
	}

	p := heap.Pop(&s.queue).(*plan)
	delete(s.byID, p.id)
	if p.cancelled {
		return true, nil
	}

	s.now = p.time
	if s.advanceHook != nil {
		s.advanceHook(s.now)
	}

	if p.period > 0 && !s.shutdown {
		s.requeuePeriodic(p)
	}

	if invokeErr := s.invoke(ctx, p); invokeErr != nil {
		if s.logger != nil {
			s.logger.PlanError(s.now, invokeErr)
		}
		err = invokeErr
	}

	ctx.bus.Drain(ctx)
	return true, err
}

// Execute first drains events emitted before it was called (for example
// EntityCreated from setup code), then runs the main loop: Step
// repeatedly until the queue empties or Shutdown is called. It returns the first PlanPanicError encountered, if
// any; panicking plans do not otherwise halt the loop.
func (s *Scheduler) Execute(ctx *Context) error {
	if ctx == nil {
		return ErrNilContext
	}

	if s.logger != nil {
		s.logger.SchedulerStart()
	}

	_, runSpan := ctx.spans.StartRunSpan(ctx, ctx.runID)
	var runErr error
	defer func() { ctx.spans.EndSpanWithError(runSpan, runErr) }()

	ctx.bus.Drain(ctx)

	var firstErr error
	for {
		ran, err := s.Step(ctx)
		if !ran {
			break
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.logger != nil {
		s.logger.Shutdown(s.shutdownReason)
	}

	runErr = firstErr
	return firstErr
}

// invoke runs p's callback with panic recovery, converting a panic into a
// *PlanPanicError rather than letting it unwind past the scheduler.
func (s *Scheduler) invoke(ctx *Context, p *plan) (err error) {
	start := time.Now()
	_, span := ctx.spans.StartPlanSpan(ctx, s.now, p.phase.String())

	defer func() {
		if r := recover(); r != nil {
			err = &PlanPanicError{
				Time:  s.now,
				Value: r,
				Stack: string(debug.Stack()),
			}
			ctx.poison.Record(obs.PoisonedPlan{
				Time:       s.now,
				Value:      fmt.Sprint(r),
				Stack:      string(debug.Stack()),
				OccurredAt: time.Now(),
			})
		}
		ctx.spans.EndSpanWithError(span, err)
		ctx.metrics.RecordPlanFired(ctx, p.phase.String(), time.Since(start), err)
	}()

	if s.logger != nil {
		s.logger.PlanFire(s.now, p.phase.String())
	}
	p.callback(ctx)
	return nil
}
