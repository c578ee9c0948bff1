package ixa

import (
	"fmt"
	"reflect"
	"sync"
)

// EntityID tags a numeric identifier with the entity type E it belongs
// to, so a person's id and a household's id cannot be mixed up at
// compile time even though both are plain integers underneath.
type EntityID[E any] struct {
	id uint64
}

// ID returns the untyped numeric identifier.
func (e EntityID[E]) ID() uint64 { return e.id }

func (e EntityID[E]) String() string {
	return fmt.Sprintf("%s#%d", entityTypeName[E](), e.id)
}

func entityType[E any]() reflect.Type {
	return reflect.TypeOf((*E)(nil)).Elem()
}

func entityTypeName[E any]() string {
	return entityType[E]().Name()
}

// EntityCreated is emitted once per entity, after every property in its
// initial list has been applied. AddEntities emits one per entity, in
// allocation order, only after every entity in the batch has been
// validated and initialized.
type EntityCreated[E any] struct {
	ID EntityID[E]
}

type entityTypeState struct {
	mu    sync.Mutex
	count uint64
}

// EntityStore allocates entity identifiers and tracks how many entities
// of each type exist. Property values live in per-property columns
// reached through the owning Context's plugin registry, not here;
// EntityStore owns identity and count only.
type EntityStore struct {
	mu    sync.Mutex
	types map[reflect.Type]*entityTypeState
}

// NewEntityStore creates an empty entity store.
func NewEntityStore() *EntityStore {
	return &EntityStore{types: make(map[reflect.Type]*entityTypeState)}
}

func (s *EntityStore) stateFor(t reflect.Type) *entityTypeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.types[t]
	if !ok {
		st = &entityTypeState{}
		s.types[t] = st
	}
	return st
}

func reserve[E any](s *EntityStore, n int) uint64 {
	st := s.stateFor(entityType[E]())
	st.mu.Lock()
	defer st.mu.Unlock()
	first := st.count
	st.count += uint64(n)
	return first
}

// EntityCount returns how many entities of type E have been created in
// ctx so far.
func EntityCount[E any](ctx *Context) int {
	t := entityType[E]()
	ctx.entities.mu.Lock()
	st, ok := ctx.entities.types[t]
	ctx.entities.mu.Unlock()
	if !ok {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return int(st.count)
}

// PropertyInitializer sets one declared property on a freshly allocated
// entity of type E. Property[E, V]'s With method returns one.
type PropertyInitializer[E any] interface {
	descriptor() *propertyMeta
	applyInitial(ctx *Context, id EntityID[E])
}

// PropertyList is the set of initial property values passed to
// AddEntity or AddEntities. Every property declared with
// NewRequiredProperty for E must appear exactly once; no property may
// appear more than once.
type PropertyList[E any] []PropertyInitializer[E]

// AddEntity allocates one new entity of type E, applies every value in
// initial, and emits EntityCreated[E]. It returns an error wrapping
// *InvalidInitializationError if a required property is missing or any
// property is set more than once.
func AddEntity[E any](ctx *Context, initial PropertyList[E]) (EntityID[E], error) {
	ids, err := AddEntities[E](ctx, []PropertyList[E]{initial})
	if err != nil {
		var zero EntityID[E]
		return zero, err
	}
	return ids[0], nil
}

// AddEntities is the bulk form of AddEntity. Every entity in values is
// validated, then every entity is allocated and initialized, and only
// then are EntityCreated events emitted — so no subscriber ever observes
// a partially populated batch, and a validation failure for entity N
// leaves no entities from the batch allocated at all.
func AddEntities[E any](ctx *Context, values []PropertyList[E]) ([]EntityID[E], error) {
	for i, initial := range values {
		if err := validateInitialization[E](ctx, initial); err != nil {
			return nil, fmt.Errorf("entity %d: %w", i, err)
		}
	}

	first := reserve[E](ctx.entities, len(values))
	ids := make([]EntityID[E], len(values))
	for i, initial := range values {
		id := EntityID[E]{id: first + uint64(i)}
		ids[i] = id
		for _, p := range initial {
			p.applyInitial(ctx, id)
		}
	}
	for _, id := range ids {
		EmitEvent(ctx, EntityCreated[E]{ID: id})
		ctx.metrics.RecordEntityCreated(ctx, entityTypeName[E]())
		if ctx.scheduler != nil && ctx.scheduler.logger != nil {
			ctx.scheduler.logger.EntityCreated(entityTypeName[E](), id.id)
		}
	}
	return ids, nil
}

func validateInitialization[E any](ctx *Context, initial PropertyList[E]) error {
	seen := make(map[*propertyMeta]bool, len(initial))
	for _, p := range initial {
		m := p.descriptor()
		if seen[m] {
			return &InvalidInitializationError{
				Entity: entityTypeName[E](),
				Reason: fmt.Sprintf("property %q set more than once", m.name),
			}
		}
		seen[m] = true
	}
	for _, m := range requiredPropertiesFor(entityType[E]()) {
		if !seen[m] {
			return &InvalidInitializationError{
				Entity: entityTypeName[E](),
				Reason: fmt.Sprintf("missing required property %q", m.name),
			}
		}
	}
	return nil
}
