// Package plugin provides the type-indexed data registry that a simulation
// Context owns. In the core it holds property columns, derived-property
// wiring flags, and global-property slots; the scheduler, event bus, entity
// store, RNG streams, and report sink are fields of the Context and are not
// stored here. A plugin is any data container reached through a Key[C]; the
// container is created lazily, at most once, on first access.
package plugin

import "sync"

// Key identifies a plugin data container of type C. Two Keys are the same
// slot if and only if they are the same pointer — names exist purely for
// diagnostics, never for lookup, so there is no risk of two unrelated
// plugins colliding on a shared name.
type Key[C any] struct {
	name string
}

// NewKey declares a new plugin slot for container type C. Call it once per
// plugin, store the result in a package-level variable, and pass that
// variable to GetData every time the plugin is accessed.
func NewKey[C any](name string) *Key[C] {
	return &Key[C]{name: name}
}

// Name returns the diagnostic name the key was declared with.
func (k *Key[C]) Name() string { return k.name }

// Registry holds at most one container per Key, across all container types.
// It is safe for concurrent use, matching the read-heavy access pattern of
// a scheduler that may be inspected by diagnostics goroutines while the
// owning goroutine runs the simulation loop.
type Registry struct {
	mu      sync.RWMutex
	entries map[any]any
	order   []any
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[any]any)}
}

// GetData returns the container for key, initializing it with init on first
// access. init is called at most once per key, even under concurrent access.
// It runs while the registry's lock is held, so it must not call GetData on
// the same registry for any key (that would deadlock), nor enqueue plans or
// publish events — initialization must be side-effect free with respect to
// the rest of the simulation. Nothing checks the last rule at run time.
func GetData[C any](r *Registry, key *Key[C], init func() *C) *C {
	r.mu.RLock()
	if v, ok := r.entries[key]; ok {
		r.mu.RUnlock()
		return v.(*C)
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.entries[key]; ok {
		return v.(*C)
	}
	container := init()
	r.entries[key] = container
	r.order = append(r.order, key)
	return container
}

// Has reports whether key's container has already been initialized.
func Has[C any](r *Registry, key *Key[C]) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[key]
	return ok
}

// Index returns the slot index assigned to key on first initialization in
// this registry (insertion order; each registry numbers its own keys), and false if key has not been
// initialized yet. The index has no semantic meaning beyond determinism for
// diagnostics; it is not an array index into any user-visible structure.
func Index(r *Registry, key any) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, k := range r.order {
		if k == key {
			return i, true
		}
	}
	return 0, false
}

// Len returns the number of plugins initialized so far.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
