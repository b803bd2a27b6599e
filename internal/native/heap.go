// Package native is the engine's object heap.
//
// It owns every object the engine hands out (store contexts, traps, frames,
// frame vectors, byte vectors) and follows the ownership rules of the wasm C
// API: objects are addressed by typed handles, queries never transfer
// ownership unless they fill an out-vector, and every allocation is released
// by exactly one delete call. A zero handle is the null result of a failed
// allocation or of a query that has nothing to return.
package native

import (
	"github.com/wippyai/wasmtrap/resource"
)

// Type tags for heap objects.
const (
	TypeStore resource.TypeID = iota + 1
	TypeTrap
	TypeFrame
	TypeFrameVec
	TypeByteVec
)

// TypeName returns a readable name for a type tag.
func TypeName(t resource.TypeID) string {
	switch t {
	case TypeStore:
		return "store"
	case TypeTrap:
		return "trap"
	case TypeFrame:
		return "frame"
	case TypeFrameVec:
		return "frame vector"
	case TypeByteVec:
		return "byte vector"
	default:
		return "unknown"
	}
}

// Heap owns engine objects.
type Heap struct {
	table *resource.Table
}

// NewHeap creates a heap. A positive limit caps the number of live objects;
// allocations beyond it return a null handle.
func NewHeap(limit int) *Heap {
	return &Heap{table: resource.NewTableWithLimit(limit)}
}

// Live returns the number of live objects.
func (h *Heap) Live() int {
	return h.table.Len()
}

// LiveOf returns the number of live objects with the given type tag.
func (h *Heap) LiveOf(t resource.TypeID) int {
	return h.table.LenOf(t)
}

// TypeOf returns the type tag of a live handle.
func (h *Heap) TypeOf(handle resource.Handle) (resource.TypeID, bool) {
	return h.table.TypeID(handle)
}

// Subscribe registers an observer for object lifecycle events.
func (h *Heap) Subscribe(o resource.Observer) {
	h.table.Subscribe(o)
}

// Close releases every object still alive.
func (h *Heap) Close() error {
	return h.table.Close()
}

func (h *Heap) alloc(t resource.TypeID, value any) resource.Handle {
	handle, err := h.table.Insert(t, value)
	if err != nil {
		return 0
	}
	return handle
}

// StoreNew registers a store context. value is opaque to the heap.
func (h *Heap) StoreNew(value any) resource.Handle {
	return h.alloc(TypeStore, value)
}

// StoreDelete releases a store context. Traps created in the store are not
// affected.
func (h *Heap) StoreDelete(store resource.Handle) bool {
	if _, ok := h.table.GetTyped(store, TypeStore); !ok {
		return false
	}
	_, ok := h.table.Remove(store)
	return ok
}

// IsStore reports whether handle is a live store context.
func (h *Heap) IsStore(handle resource.Handle) bool {
	_, ok := h.table.GetTyped(handle, TypeStore)
	return ok
}
