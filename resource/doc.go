// Package resource provides the handle table behind every engine object.
//
// Objects owned by the engine (stores, traps, frames, vectors) are never
// handed to callers directly. Callers hold a Handle, an integer that is only
// meaningful together with the Table that issued it. Handle 0 is the null
// handle.
//
// # Type Tags
//
// Every handle carries a TypeID so that a handle of the wrong kind is rejected
// instead of being reinterpreted:
//
//	const TypeTrap resource.TypeID = 2
//
//	h, err := table.Insert(TypeTrap, obj)
//	value, ok := table.GetTyped(h, TypeTrap)  // ok
//	value, ok := table.GetTyped(h, TypeFrame) // !ok
//
// # Release and Borrows
//
// Remove releases a handle exactly once; removing an already released handle
// is a no-op that returns false. Values implementing Dropper are destroyed when
// their handle is released.
//
// A handle may be borrowed. Removing a borrowed handle only marks it; the value
// is released when the last borrow is returned:
//
//	table.Borrow(h)
//	table.Remove(h)       // deferred, value still readable
//	table.ReturnBorrow(h) // released now, Dropper runs
//
// # Observers
//
// Observers see every lifecycle event, which makes leak accounting simple:
//
//	table.Subscribe(resource.ObserverFunc(func(e resource.Event) {
//	    if e.Type == resource.EventDropped {
//	        released++
//	    }
//	}))
//
// # Memory Management
//
// Nothing here is garbage collected on the caller's behalf. Every Insert must
// be paired with a Remove, or the table must be closed.
package resource
