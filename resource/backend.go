package resource

import (
	"sync"
)

// LocalBackend is an in-memory handle store with type tags, borrow tracking
// and deferred drops. It never calls Dropper; that is the Table's job.
type LocalBackend struct {
	entries  []entry
	freeList []Handle
	limit    int
	live     int
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	value       any
	typeID      TypeID
	borrowCount uint32
	valid       bool
	dropPending bool
}

// NewLocalBackend creates a new in-memory backend. A positive limit caps the
// number of live handles; Create fails with ErrLimit beyond it.
func NewLocalBackend(limit int) *LocalBackend {
	return &LocalBackend{
		entries:  make([]entry, 0, 64),
		freeList: make([]Handle, 0, 16),
		limit:    limit,
	}
}

// Create stores a value and returns a handle.
func (b *LocalBackend) Create(typeID TypeID, value any) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}
	if b.limit > 0 && b.live >= b.limit {
		return 0, ErrLimit
	}

	e := entry{
		typeID: typeID,
		value:  value,
		valid:  true,
	}
	b.live++

	if len(b.freeList) > 0 {
		handle := b.freeList[len(b.freeList)-1]
		b.freeList = b.freeList[:len(b.freeList)-1]
		b.entries[handle-1] = e
		return handle, nil
	}

	b.entries = append(b.entries, e)
	return Handle(len(b.entries)), nil
}

// lookup returns the entry for handle. Caller holds b.mu.
func (b *LocalBackend) lookup(handle Handle) *entry {
	if handle == 0 {
		return nil
	}
	idx := int(handle - 1)
	if idx >= len(b.entries) {
		return nil
	}
	e := &b.entries[idx]
	if !e.valid {
		return nil
	}
	return e
}

// Get retrieves a value by handle.
func (b *LocalBackend) Get(handle Handle) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	if e == nil {
		return nil, false
	}
	return e.value, true
}

// TypeID returns the type tag for a handle.
func (b *LocalBackend) TypeID(handle Handle) (TypeID, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	if e == nil {
		return 0, false
	}
	return e.typeID, true
}

// Drop releases a handle and returns (value, true) if the caller should run
// the destructor. A handle with outstanding borrows is only marked for drop;
// the release then happens when the last borrow is returned.
func (b *LocalBackend) Drop(handle Handle) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil || e.dropPending {
		return nil, false
	}

	if e.borrowCount > 0 {
		e.dropPending = true
		return nil, false
	}

	return b.release(handle, e), true
}

// release frees the slot. Caller holds b.mu.
func (b *LocalBackend) release(handle Handle, e *entry) any {
	value := e.value
	*e = entry{}
	b.freeList = append(b.freeList, handle)
	b.live--
	return value
}

// DropPending reports whether a drop was requested while borrows were
// outstanding.
func (b *LocalBackend) DropPending(handle Handle) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	return e != nil && e.dropPending
}

// Borrow increments the borrow count for a handle. Handles already marked for
// drop cannot be borrowed.
func (b *LocalBackend) Borrow(handle Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil || e.dropPending {
		return false
	}

	e.borrowCount++
	return true
}

// ReturnBorrow decrements the borrow count for a handle. When that completes a
// pending drop it returns (value, true, nil).
func (b *LocalBackend) ReturnBorrow(handle Handle) (any, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil {
		return nil, false, ErrInvalidHandle
	}
	if e.borrowCount == 0 {
		return nil, false, ErrNoBorrow
	}

	e.borrowCount--
	if e.borrowCount == 0 && e.dropPending {
		return b.release(handle, e), true, nil
	}
	return nil, false, nil
}

// Borrows returns the number of outstanding borrows for a handle.
func (b *LocalBackend) Borrows(handle Handle) uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	if e == nil {
		return 0
	}
	return e.borrowCount
}

// Close marks the backend closed and returns every live value so the caller
// can run destructors outside the lock.
func (b *LocalBackend) Close() []any {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var values []any
	for i := range b.entries {
		if b.entries[i].valid {
			values = append(values, b.entries[i].value)
		}
	}

	b.entries = nil
	b.freeList = nil
	b.live = 0
	return values
}

// Len returns the number of live handles.
func (b *LocalBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.live
}

// Each iterates over all live handles.
func (b *LocalBackend) Each(fn func(Handle, TypeID, any) bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i, e := range b.entries {
		if e.valid {
			if !fn(Handle(i+1), e.typeID, e.value) {
				break
			}
		}
	}
}
