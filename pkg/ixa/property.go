package ixa

import (
	"reflect"
	"sync"

	"github.com/CDCgov/ixa-core/pkg/ixa/plugin"
)

// propertyMeta is the type-erased identity of a declared property,
// shared by every Property[E, V] value for that property. Pointer
// identity is what validateInitialization and index bookkeeping compare
// against; the name exists for diagnostics and report column headers.
type propertyMeta struct {
	name       string
	entityType reflect.Type
	required   bool
}

var requiredRegistry = struct {
	mu     sync.Mutex
	byType map[reflect.Type][]*propertyMeta
}{byType: make(map[reflect.Type][]*propertyMeta)}

func registerRequired(m *propertyMeta) {
	requiredRegistry.mu.Lock()
	defer requiredRegistry.mu.Unlock()
	requiredRegistry.byType[m.entityType] = append(requiredRegistry.byType[m.entityType], m)
}

func requiredPropertiesFor(t reflect.Type) []*propertyMeta {
	requiredRegistry.mu.Lock()
	defer requiredRegistry.mu.Unlock()
	return requiredRegistry.byType[t]
}

// derivedDef captures the inputs a derived property recomputes from.
type derivedDef[E any] struct {
	inputs []propertyInput[E]
}

// propertyInput lets a derived property subscribe to another property's
// change events without knowing that property's value type at the call
// site that lists inputs.
type propertyInput[E any] interface {
	onChange(ctx *Context, fn func(ctx *Context, t derivedTrigger[E]))
}

// derivedTrigger is what a changed input hands its derived subscribers:
// the entity whose input changed, and a way to recompute the derived
// property as it would have read before the change, by temporarily
// substituting the input's previous value for the duration of during.
type derivedTrigger[E any] struct {
	id                EntityID[E]
	withPreviousInput func(during func())
}

// Property declares one column of per-entity state for entities of type
// E, holding values of type V. Construct one with NewRequiredProperty,
// NewDefaultProperty, NewComputedProperty, or NewDerivedProperty and
// store it in a package-level variable; the same *Property[E, V] value
// is passed to GetProperty, SetProperty, and IndexProperty everywhere it
// is used.
type Property[E any, V any] struct {
	meta      *propertyMeta
	columnKey *plugin.Key[propertyColumn[V]]
	wiredKey  *plugin.Key[bool]

	defaultValue *V
	compute      func(ctx *Context, id EntityID[E]) V
	derive       *derivedDef[E]
}

func newProperty[E any, V any](name string, required bool) *Property[E, V] {
	m := &propertyMeta{name: name, entityType: entityType[E](), required: required}
	if required {
		registerRequired(m)
	}
	return &Property[E, V]{
		meta:      m,
		columnKey: plugin.NewKey[propertyColumn[V]](name),
		wiredKey:  plugin.NewKey[bool](name + "#wired"),
	}
}

// NewRequiredProperty declares a property that every entity of type E
// must receive a value for at AddEntity/AddEntities time.
func NewRequiredProperty[E any, V any](name string) *Property[E, V] {
	return newProperty[E, V](name, true)
}

// NewDefaultProperty declares a property that reads back as def until
// explicitly set, without needing to appear in an entity's initial
// property list.
func NewDefaultProperty[E any, V any](name string, def V) *Property[E, V] {
	p := newProperty[E, V](name, false)
	p.defaultValue = &def
	return p
}

// NewComputedProperty declares a property whose value is computed by
// init the first time it is read for a given entity, then memoized.
// Unlike a derived property, a computed property never recomputes on
// its own; SetProperty still works to override the memoized value.
func NewComputedProperty[E any, V any](name string, init func(ctx *Context, id EntityID[E]) V) *Property[E, V] {
	p := newProperty[E, V](name, false)
	p.compute = init
	return p
}

// NewDerivedProperty declares a property computed by fn from one or
// more input properties of the same entity type. The first read for a
// Context (GetProperty or IndexProperty) subscribes to every input's
// change events; afterward, any change to an input recomputes fn, records
// the result in a shadow column, and emits PropertyChanged[E, V] itself
// when the result differs from fn applied to the input's previous value.
// Subscribing to PropertyChanged[E, V] alone does not set up that wiring.
func NewDerivedProperty[E any, V any](name string, fn func(ctx *Context, id EntityID[E]) V, inputs ...propertyInput[E]) *Property[E, V] {
	p := newProperty[E, V](name, false)
	p.compute = fn
	p.derive = &derivedDef[E]{inputs: inputs}
	return p
}

// With returns an initializer that sets this property to value on a
// newly allocated entity, for use in a PropertyList passed to AddEntity
// or AddEntities.
func (p *Property[E, V]) With(value V) PropertyInitializer[E] {
	return propertySetter[E, V]{p: p, value: value}
}

func (p *Property[E, V]) descriptor() *propertyMeta { return p.meta }

// Name returns the diagnostic and report-column name this property was
// declared with.
func (p *Property[E, V]) Name() string { return p.meta.name }

func (p *Property[E, V]) onChange(ctx *Context, fn func(ctx *Context, t derivedTrigger[E])) {
	SubscribeToEvent(ctx, func(ctx *Context, e PropertyChanged[E, V]) {
		col := columnFor(ctx, p)
		fn(ctx, derivedTrigger[E]{
			id: e.ID,
			withPreviousInput: func(during func()) {
				col.mu.Lock()
				cur, _ := col.get(e.ID.id)
				col.set(e.ID.id, e.Previous)
				col.mu.Unlock()

				during()

				col.mu.Lock()
				col.set(e.ID.id, cur)
				col.mu.Unlock()
			},
		})
	})
}

type propertySetter[E any, V any] struct {
	p     *Property[E, V]
	value V
}

func (s propertySetter[E, V]) descriptor() *propertyMeta { return s.p.meta }

func (s propertySetter[E, V]) applyInitial(ctx *Context, id EntityID[E]) {
	col := columnFor(ctx, s.p)
	col.mu.Lock()
	col.set(id.id, s.value)
	col.mu.Unlock()
	if col.index != nil {
		col.index.insert(id.id, s.value)
	}
}

// propertyColumn is the dense, per-entity storage for one property: a
// nil slot means the value has not been materialized (no initial value,
// no computation run yet), distinct from any zero value of V.
type propertyColumn[V any] struct {
	mu     sync.RWMutex
	values []*V
	index  *propertyIndex[V]
}

func (c *propertyColumn[V]) ensureLen(id uint64) {
	if id >= uint64(len(c.values)) {
		grown := make([]*V, id+1)
		copy(grown, c.values)
		c.values = grown
	}
}

func (c *propertyColumn[V]) get(id uint64) (V, bool) {
	var zero V
	if id >= uint64(len(c.values)) || c.values[id] == nil {
		return zero, false
	}
	return *c.values[id], true
}

func (c *propertyColumn[V]) set(id uint64, v V) {
	c.ensureLen(id)
	val := v
	c.values[id] = &val
}

func columnFor[E any, V any](ctx *Context, p *Property[E, V]) *propertyColumn[V] {
	return plugin.GetData(ctx.Registry(), p.columnKey, func() *propertyColumn[V] {
		return &propertyColumn[V]{}
	})
}

// PropertyChanged is emitted whenever SetProperty, or a derived
// property's recompute, changes a property's value. Previous and
// Current differ by construction; SetProperty is a no-op when the new
// value equals the old one.
type PropertyChanged[E any, V any] struct {
	ID       EntityID[E]
	Previous V
	Current  V
}

// ensureDerivedWired subscribes p to every input's change events, once
// per Context. The subscription recomputes p and diffs against a shadow
// column used only for that diff and for IndexProperty — GetProperty
// never reads the shadow, since a derived property's value is never
// stored, only ever recomputed.
func ensureDerivedWired[E any, V any](ctx *Context, p *Property[E, V]) {
	if p.derive == nil {
		return
	}
	plugin.GetData(ctx.Registry(), p.wiredKey, func() *bool {
		for _, input := range p.derive.inputs {
			input.onChange(ctx, func(ctx *Context, t derivedTrigger[E]) {
				recomputeDerived(ctx, p, t.id, t.withPreviousInput)
			})
		}
		wired := true
		return &wired
	})
}

// recomputeDerived recomputes p for id after one of its inputs changed.
// prev is derive(previous input) — computed by asking withPreviousInput
// to substitute the triggering input's old value just long enough to
// call p.compute again — not a cached prior result, so the very first
// change of an input still produces a real Previous to diff against.
func recomputeDerived[E any, V any](ctx *Context, p *Property[E, V], id EntityID[E], withPreviousInput func(func())) {
	shadow := columnFor(ctx, p)
	cur := p.compute(ctx, id)

	var prev V
	withPreviousInput(func() {
		prev = p.compute(ctx, id)
	})

	shadow.mu.Lock()
	shadow.set(id.id, cur)
	idx := shadow.index
	shadow.mu.Unlock()

	if idx != nil {
		idx.update(id.id, prev, cur, true)
	}
	if !deepEqual(prev, cur) {
		EmitEvent(ctx, PropertyChanged[E, V]{ID: id, Previous: prev, Current: cur})
	}
}

// GetProperty returns id's value for p. A Required or Default property
// returns its stored or default value. A Computed property runs its
// initializer on first read and memoizes the result. A Derived property
// is recomputed on every call and never stored — per the invariant that
// a derived value is always current with respect to its inputs, even
// between the input changing and the next subscriber-driven recompute.
func GetProperty[E any, V any](ctx *Context, p *Property[E, V], id EntityID[E]) V {
	ensureDerivedWired(ctx, p)

	if p.derive != nil {
		return p.compute(ctx, id)
	}

	col := columnFor(ctx, p)
	col.mu.RLock()
	v, ok := col.get(id.id)
	col.mu.RUnlock()
	if ok {
		return v
	}

	switch {
	case p.compute != nil:
		computed := p.compute(ctx, id)
		col.mu.Lock()
		col.set(id.id, computed)
		col.mu.Unlock()
		return computed
	case p.defaultValue != nil:
		return *p.defaultValue
	default:
		var zero V
		return zero
	}
}

// SetProperty stores value for id, emitting PropertyChanged[E, V] and
// updating any index declared for p. Previous is resolved the same way
// GetProperty resolves a read — stored value if any, else the result of
// a Computed property's initializer, else a Default property's default
// — so the first set of a never-materialized Default or Computed slot
// still reports its true previous value instead of being skipped. It is
// a no-op, and emits nothing, if value equals that resolved previous
// value (per reflect.DeepEqual, since V is not required to be
// comparable).
func SetProperty[E any, V any](ctx *Context, p *Property[E, V], id EntityID[E], value V) {
	col := columnFor(ctx, p)

	col.mu.Lock()
	stored, hadPrev := col.get(id.id)
	col.mu.Unlock()

	prev := stored
	if !hadPrev {
		prev = resolvePrevious(ctx, p, id)
	}
	if deepEqual(prev, value) {
		return
	}

	col.mu.Lock()
	col.set(id.id, value)
	idx := col.index
	col.mu.Unlock()

	if idx != nil {
		idx.update(id.id, prev, value, hadPrev)
	}

	if ctx.scheduler != nil && ctx.scheduler.logger != nil {
		ctx.scheduler.logger.PropertySet(entityTypeName[E](), id.id, p.meta.name)
	}
	EmitEvent(ctx, PropertyChanged[E, V]{ID: id, Previous: prev, Current: value})
}

// resolvePrevious answers what GetProperty would have returned for a
// property with no stored value yet: a Computed property's initializer
// (not memoized here — SetProperty is about to overwrite the slot
// anyway), a Default property's default, or the zero value for a
// Required property that has somehow never been set.
func resolvePrevious[E any, V any](ctx *Context, p *Property[E, V], id EntityID[E]) V {
	switch {
	case p.compute != nil:
		return p.compute(ctx, id)
	case p.defaultValue != nil:
		return *p.defaultValue
	default:
		var zero V
		return zero
	}
}

// InitializeProperty sets id's value for p without emitting
// PropertyChanged, for seeding a value outside of AddEntity's property
// list (for example, from a loaded population file). It fails with
// *PropertyAlreadySetError if p already has a stored value for id.
func InitializeProperty[E any, V any](ctx *Context, p *Property[E, V], id EntityID[E], value V) error {
	col := columnFor(ctx, p)

	col.mu.Lock()
	if _, ok := col.get(id.id); ok {
		col.mu.Unlock()
		return &PropertyAlreadySetError{Entity: entityTypeName[E](), ID: id.id, Property: p.meta.name}
	}
	col.set(id.id, value)
	idx := col.index
	col.mu.Unlock()

	if idx != nil {
		idx.insert(id.id, value)
	}
	return nil
}

func deepEqual[V any](a, b V) bool {
	return reflect.DeepEqual(a, b)
}
