package resource

import "errors"

// Handle is an opaque reference to an object in a table.
// Handle 0 is reserved and always invalid; it plays the role of a null pointer.
type Handle uint32

// TypeID tags every handle with the kind of object it refers to.
type TypeID uint32

var (
	ErrClosed        = errors.New("resource table closed")
	ErrLimit         = errors.New("resource table limit reached")
	ErrInvalidHandle = errors.New("invalid resource handle")
	ErrNoBorrow      = errors.New("no outstanding borrow")
)

// Event types for resource lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
	EventDropDeferred
	EventBorrowed
	EventBorrowReturned
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	case EventDropDeferred:
		return "drop-deferred"
	case EventBorrowed:
		return "borrowed"
	case EventBorrowReturned:
		return "borrow-returned"
	default:
		return "unknown"
	}
}

// Event represents a resource lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	TypeID TypeID
	Type   EventType
}

// Observer receives notifications about resource lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
// Function values are not comparable, so Unsubscribe ignores an
// ObserverFunc.
type ObserverFunc func(Event)

// OnResourceEvent calls f(e).
func (f ObserverFunc) OnResourceEvent(e Event) {
	f(e)
}

// Dropper is optionally implemented by values that need cleanup when their
// handle is released. Drop runs after the table lock is released, so it may
// call back into the table.
type Dropper interface {
	Drop()
}
