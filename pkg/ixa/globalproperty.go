package ixa

import (
	"github.com/CDCgov/ixa-core/pkg/ixa/errtax"
	"github.com/CDCgov/ixa-core/pkg/ixa/plugin"
)

// GlobalProperty declares a single, process-lifetime configuration slot
// of type V, keyed by a nominal type G (the same pattern EntityID and
// Property use to keep distinct slots from colliding at compile time).
// Construct one with NewGlobalProperty and store it in a package-level
// variable.
type GlobalProperty[G any, V any] struct {
	name      string
	key       *plugin.Key[globalSlot[V]]
	validator func(V) error
}

type globalSlot[V any] struct {
	value V
	set   bool
}

// NewGlobalProperty declares a global property named name. If validate
// is non-nil, SetGlobalProperty rejects values that fail it before ever
// storing them.
func NewGlobalProperty[G any, V any](name string, validate func(V) error) *GlobalProperty[G, V] {
	return &GlobalProperty[G, V]{name: name, key: plugin.NewKey[globalSlot[V]](name), validator: validate}
}

func slotFor[G any, V any](ctx *Context, g *GlobalProperty[G, V]) *globalSlot[V] {
	return plugin.GetData(ctx.Registry(), g.key, func() *globalSlot[V] { return &globalSlot[V]{} })
}

// SetGlobalProperty sets g's value for the lifetime of ctx. It fails
// with *ConfigurationError if g was already set, or if g has a
// validator and value fails it.
func SetGlobalProperty[G any, V any](ctx *Context, g *GlobalProperty[G, V], value V) error {
	if g.validator != nil {
		if err := g.validator(value); err != nil {
			return &errtax.ConfigurationError{Field: g.name, Value: value, Msg: err.Error()}
		}
	}
	slot := slotFor(ctx, g)
	if slot.set {
		return &errtax.ConfigurationError{Field: g.name, Value: value, Msg: "global property already set"}
	}
	slot.value = value
	slot.set = true
	return nil
}

// GetGlobalProperty returns g's value and true, or the zero value and
// false if g has never been set in ctx.
func GetGlobalProperty[G any, V any](ctx *Context, g *GlobalProperty[G, V]) (V, bool) {
	slot := slotFor(ctx, g)
	return slot.value, slot.set
}
