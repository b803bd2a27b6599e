package resource

import (
	"reflect"
	"sync"
)

// Table manages handles with type information, destructors and observer
// support.
type Table struct {
	backend   *LocalBackend
	observers []Observer
	obsMu     sync.RWMutex
}

// NewTable creates a table without a handle limit.
func NewTable() *Table {
	return NewTableWithLimit(0)
}

// NewTableWithLimit creates a table that refuses to hold more than limit live
// handles. A limit of zero or less means unlimited.
func NewTableWithLimit(limit int) *Table {
	return &Table{
		backend: NewLocalBackend(limit),
	}
}

// Insert adds a value and returns its handle.
func (t *Table) Insert(typeID TypeID, value any) (Handle, error) {
	handle, err := t.backend.Create(typeID, value)
	if err != nil {
		return 0, err
	}

	t.notify(Event{
		Type:   EventCreated,
		Handle: handle,
		TypeID: typeID,
		Value:  value,
	})

	return handle, nil
}

// Get retrieves a value by handle.
func (t *Table) Get(handle Handle) (any, bool) {
	return t.backend.Get(handle)
}

// GetTyped retrieves a value only if it matches the expected type.
func (t *Table) GetTyped(handle Handle, typeID TypeID) (any, bool) {
	actualTypeID, ok := t.backend.TypeID(handle)
	if !ok || actualTypeID != typeID {
		return nil, false
	}
	return t.backend.Get(handle)
}

// TypeID returns the type tag of a live handle.
func (t *Table) TypeID(handle Handle) (TypeID, bool) {
	return t.backend.TypeID(handle)
}

// Remove releases a handle. It returns (value, true) when the value was
// released now; a borrowed handle is released once its last borrow returns.
func (t *Table) Remove(handle Handle) (any, bool) {
	typeID, _ := t.backend.TypeID(handle)
	value, ok := t.backend.Drop(handle)
	if !ok {
		if t.backend.DropPending(handle) {
			t.notify(Event{
				Type:   EventDropDeferred,
				Handle: handle,
				TypeID: typeID,
			})
		}
		return nil, false
	}

	t.destroy(handle, typeID, value)
	return value, true
}

// Borrow takes a reference that keeps the handle alive across Remove.
func (t *Table) Borrow(handle Handle) bool {
	if !t.backend.Borrow(handle) {
		return false
	}
	typeID, _ := t.backend.TypeID(handle)
	t.notify(Event{
		Type:   EventBorrowed,
		Handle: handle,
		TypeID: typeID,
	})
	return true
}

// ReturnBorrow gives back a reference taken with Borrow. It reports whether
// this released the handle.
func (t *Table) ReturnBorrow(handle Handle) (bool, error) {
	typeID, _ := t.backend.TypeID(handle)
	value, released, err := t.backend.ReturnBorrow(handle)
	if err != nil {
		return false, err
	}

	t.notify(Event{
		Type:   EventBorrowReturned,
		Handle: handle,
		TypeID: typeID,
	})

	if released {
		t.destroy(handle, typeID, value)
	}
	return released, nil
}

// Borrows returns the number of outstanding borrows on a handle.
func (t *Table) Borrows(handle Handle) uint32 {
	return t.backend.Borrows(handle)
}

// DropPending reports whether the handle was removed while borrowed.
func (t *Table) DropPending(handle Handle) bool {
	return t.backend.DropPending(handle)
}

func (t *Table) destroy(handle Handle, typeID TypeID, value any) {
	if d, ok := value.(Dropper); ok {
		d.Drop()
	}

	t.notify(Event{
		Type:   EventDropped,
		Handle: handle,
		TypeID: typeID,
		Value:  value,
	})
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer. Observers of an uncomparable type, such as
// ObserverFunc, are left subscribed.
func (t *Table) Unsubscribe(o Observer) {
	if o == nil || !reflect.TypeOf(o).Comparable() {
		return
	}
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	return t.backend.Len()
}

// LenOf returns the number of live handles with the given type tag.
func (t *Table) LenOf(typeID TypeID) int {
	count := 0
	t.backend.Each(func(_ Handle, id TypeID, _ any) bool {
		if id == typeID {
			count++
		}
		return true
	})
	return count
}

// Each iterates over all live handles. fn must not modify the table.
func (t *Table) Each(fn func(Handle, TypeID, any) bool) {
	t.backend.Each(fn)
}

// Close releases all values and stops accepting inserts. Destructors run after
// the table is emptied.
func (t *Table) Close() error {
	for _, value := range t.backend.Close() {
		if d, ok := value.(Dropper); ok {
			d.Drop()
		}
	}
	return nil
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
