// Package resource provides reference-counted data cells.
//
// A data cell holds one typed value that is shared between a caller and
// the framework. Cells are never copied; ownership is shared through
// reference counting and the cell is released when the last reference
// is dropped.
//
// # Cell Lifecycle
//
//	create  - new cell with one reference owned by the creator
//	addref  - additional owner (clone of a parameter list, event fan-out)
//	unref   - owner gives up its reference
//	release - last unref, the release callback runs exactly once
//
// # Handle Table
//
// The UnifiedTable maps handles to values:
//
//	table := resource.NewTable()
//
//	// Insert a value with its destructor
//	handle := table.Create(typeID, buffer, func(v any) { ... })
//
//	// Share it
//	table.AddRef(handle)
//
//	// Drop both references, the destructor runs on the second call
//	table.Unref(handle)
//	table.Unref(handle)
//
// Handles carry a slot generation, so a handle kept after release is
// rejected instead of reaching a recycled cell.
//
// # Observers
//
// Register observers to track lifecycle events. Counting observers are how
// reference symmetry is verified in tests and exported as metrics:
//
//	table.Subscribe(resource.ObserverFunc(func(e resource.Event) {
//	    switch e.Type {
//	    case resource.EventAddRef:
//	    case resource.EventReleased:
//	    }
//	}))
//
// # Memory Management
//
// Values are Go values; the release callback is where a cell gives back
// whatever it holds besides memory (files, pooled buffers, counters).
// Values implementing Dropper get Drop() when no release callback was
// supplied. Close releases every live cell regardless of its count.
package resource
