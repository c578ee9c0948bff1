package ixa

import (
	"errors"
	"fmt"

	"github.com/CDCgov/ixa-core/pkg/ixa/errtax"
)

// Sentinel errors for scheduler and entity-store invariant violations.
// Execute returns ErrNilContext, and *EntityNotFoundError and
// *PropertyAlreadySetError unwrap to their sentinels. No function in this
// package returns ErrPropertyNotSet or ErrGlobalPropertyAlreadySet.
var (
	// ErrNilContext indicates Execute was called with a nil Context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrEntityNotFound indicates an operation referenced an entity id that
	// does not exist in the store.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrPropertyNotSet indicates a required property was read before it
	// was ever set and has no default or computed fallback.
	ErrPropertyNotSet = errors.New("property not set")

	// ErrGlobalPropertyAlreadySet names a second SetGlobalProperty call
	// for the same key. SetGlobalProperty itself reports that case as an
	// *errtax.ConfigurationError, at any point in a run.
	ErrGlobalPropertyAlreadySet = errors.New("global property already set")

	// ErrIllegalPhase indicates a mutation was attempted from a phase that
	// forbids it (e.g. adding a plan for a time in the past).
	ErrIllegalPhase = errors.New("operation not permitted in current phase")

	// ErrPropertyAlreadySet indicates InitializeProperty was called twice
	// for the same entity and property.
	ErrPropertyAlreadySet = errors.New("property already set")
)

// PlanPanicError wraps a value recovered from a panicking plan callback.
// A panic in an event handler is not recovered; it propagates out of Step
// and Execute. It carries the stack trace captured at the point of
// panic, mirroring how a node's panic is captured in the teacher runtime.
type PlanPanicError struct {
	Time  float64
	Value any
	Stack string
}

func (e *PlanPanicError) Error() string {
	return fmt.Sprintf("plan at time %g panicked: %v", e.Time, e.Value)
}

func (e *PlanPanicError) Category() errtax.Category { return errtax.CategoryModel }

// EntityNotFoundError names the entity id and the operation that failed to
// find it.
type EntityNotFoundError struct {
	EntityType string
	ID         uint64
	Op         string
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("%s: no entity %s#%d", e.Op, e.EntityType, e.ID)
}

func (e *EntityNotFoundError) Unwrap() error           { return ErrEntityNotFound }
func (e *EntityNotFoundError) Category() errtax.Category { return errtax.CategoryQuery }

// InvalidInitializationError indicates AddEntity or AddEntities was
// called with a property list that omits a required property, or sets
// the same property more than once.
type InvalidInitializationError struct {
	Entity string
	Reason string
}

func (e *InvalidInitializationError) Error() string {
	return fmt.Sprintf("invalid initialization for %s: %s", e.Entity, e.Reason)
}

func (e *InvalidInitializationError) Category() errtax.Category { return errtax.CategoryInitialization }

// PropertyAlreadySetError indicates InitializeProperty was called for an
// entity that already has a stored value for that property.
type PropertyAlreadySetError struct {
	Entity   string
	ID       uint64
	Property string
}

func (e *PropertyAlreadySetError) Error() string {
	return fmt.Sprintf("property %q already set on %s#%d", e.Property, e.Entity, e.ID)
}

func (e *PropertyAlreadySetError) Unwrap() error           { return ErrPropertyAlreadySet }
func (e *PropertyAlreadySetError) Category() errtax.Category { return errtax.CategoryModel }
