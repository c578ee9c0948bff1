// Package event provides the synchronous, typed publish/subscribe bus the
// simulation core uses to deliver EntityCreated and PropertyChanged
// notifications (and any model-defined event) between scheduler steps.
//
// Unlike a general message bus, delivery here is deliberately not
// concurrent: EmitEvent only enqueues, and Drain is the single place handlers
// run, always on the caller's goroutine, always in FIFO order within an
// event type and in subscription order across handlers. This matches the
// cooperative, single-threaded execution model of the scheduler — there is
// no buffering channel, no per-subscription goroutine, and no possibility
// of a handler observing a partially-applied write.
package event
