// Package plugin implements the per-Context plugin/data registry: data
// containers are reached through a single generic accessor, GetData, keyed
// by a Key[C] declared once per container type. The core keeps property
// columns and global properties here; its scheduler, event bus, entity
// store, RNG streams, and report sink are Context fields instead.
//
// # Declaring a plugin
//
//	var busKey = plugin.NewKey[Bus]("eventbus")
//
//	func busFrom(r *plugin.Registry) *Bus {
//	    return plugin.GetData(r, busKey, func() *Bus {
//	        return newBus()
//	    })
//	}
//
// The init closure runs at most once per registry, the first time busFrom
// is called. Later calls return the same *Bus. The init closure runs while
// the registry's lock is held, so it cannot fetch another plugin from the
// same registry; a plugin that needs another one fetches it before calling
// GetData. The plugin package itself has no dependency on the simulation
// types it stores.
package plugin
