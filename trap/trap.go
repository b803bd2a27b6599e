package trap

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/wippyai/wasmtrap/errors"
	"github.com/wippyai/wasmtrap/internal/bytevec"
	"github.com/wippyai/wasmtrap/internal/native"
	"github.com/wippyai/wasmtrap/resource"
)

// Store is the engine session a host-created trap belongs to.
// *engine.Store implements it.
type Store interface {
	Heap() *native.Heap
	Handle() resource.Handle
}

// Trap is a runtime fault: an error value that also owns one engine object.
// It must be closed once it is no longer needed. A Trap is not safe for
// concurrent use.
type Trap struct {
	heap   *native.Heap
	handle resource.Handle
}

// New creates a trap in store carrying message.
func New(store Store, message string) (*Trap, error) {
	if store == nil {
		return nil, errors.InvalidArgument(errors.PhaseTrap, "expected a store")
	}
	heap := store.Heap()
	if heap == nil || !heap.IsStore(store.Handle()) {
		return nil, errors.InvalidArgument(errors.PhaseTrap, "expected a live store")
	}
	if !utf8.ValidString(message) {
		return nil, errors.InvalidArgument(errors.PhaseTrap, "expected a string, message is not valid UTF-8")
	}

	raw, err := bytevec.Encode(heap, message, true)
	if err != nil {
		return nil, err
	}
	defer release(heap, raw)

	handle := heap.TrapNew(store.Handle(), raw)
	if handle == 0 {
		return nil, errors.AllocationFailed(errors.PhaseTrap, "trap")
	}
	return &Trap{heap: heap, handle: handle}, nil
}

// Wrap adopts a trap created by the engine. The returned Trap takes over
// ownership of handle.
func Wrap(heap *native.Heap, handle resource.Handle) (*Trap, error) {
	if heap == nil {
		return nil, errors.InvalidArgument(errors.PhaseTrap, "nil heap")
	}
	typ, ok := heap.TypeOf(handle)
	if !ok {
		return nil, errors.New(errors.PhaseTrap, errors.KindInvalidArgument).
			Value(handle).
			Detail("handle %d is not live", handle).
			Build()
	}
	if typ != native.TypeTrap {
		return nil, errors.New(errors.PhaseTrap, errors.KindInvalidArgument).
			Value(handle).
			Detail("wrong pointer type: handle %d is a %s", handle, native.TypeName(typ)).
			Build()
	}
	return &Trap{heap: heap, handle: handle}, nil
}

func (t *Trap) check() error {
	if t == nil || t.handle == 0 || !t.heap.IsTrap(t.handle) {
		return errors.UseAfterFree(errors.PhaseTrap, "trap")
	}
	return nil
}

// Live reports whether the trap still owns its engine object.
func (t *Trap) Live() bool {
	return t.check() == nil
}

// Handle returns the engine handle owned by the trap, or 0 once released.
func (t *Trap) Handle() resource.Handle {
	if t == nil {
		return 0
	}
	return t.handle
}

// Message returns the trap message.
func (t *Trap) Message() (string, error) {
	if err := t.check(); err != nil {
		return "", err
	}

	var raw native.ByteVec
	if !t.heap.TrapMessage(t.handle, &raw) {
		return "", errors.AllocationFailed(errors.PhaseTrap, "trap message")
	}
	defer release(t.heap, &raw)

	// the engine nul-terminates trap messages
	return bytevec.DecodeTrimmed(&raw)
}

// Code returns the fault classification. Traps created with New have none.
func (t *Trap) Code() (Code, bool, error) {
	if err := t.check(); err != nil {
		return 0, false, err
	}
	code, ok := t.heap.TrapCode(t.handle)
	return Code(code), ok, nil
}

// Frames returns the backtrace captured with the trap, innermost frame first.
// The caller closes the list.
func (t *Trap) Frames() (*FrameList, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	var vec native.FrameVec
	if !t.heap.TrapTrace(t.handle, &vec) {
		return nil, errors.AllocationFailed(errors.PhaseTrap, "frame vector")
	}
	return newFrameList(t.heap, vec), nil
}

// Origin returns an owned copy of the innermost frame, or nil when the trap
// has no backtrace. The caller closes the frame.
func (t *Trap) Origin() (*Frame, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	if t.heap.TrapTraceLen(t.handle) == 0 {
		return nil, nil
	}

	handle := t.heap.TrapOrigin(t.handle)
	if handle == 0 {
		return nil, errors.AllocationFailed(errors.PhaseTrap, "frame")
	}
	return &Frame{heap: t.heap, handle: handle, kind: owned}, nil
}

// AttachTrace records the wasm frames a host-created trap unwound through.
// It has no effect when the trap already carries a backtrace. The trace is
// stored in the trap's own heap, whichever engine raised it.
func (t *Trap) AttachTrace(trace []native.FrameInfo) bool {
	if t.check() != nil || len(trace) == 0 {
		return false
	}
	return t.heap.TrapAttachTrace(t.handle, trace)
}

// String renders the message followed by the backtrace, if any:
//
//	unreachable
//	wasm backtrace:
//	  0: m!f
//	  1: m!<wasm function 1>
func (t *Trap) String() string {
	msg, err := t.Message()
	if err != nil {
		return fmt.Sprintf("<trap: %v>", err)
	}

	frames, err := t.Frames()
	if err != nil {
		return msg
	}
	defer frames.Close()

	if frames.Len() == 0 {
		return msg
	}

	var b strings.Builder
	b.WriteString(msg)
	b.WriteString("\nwasm backtrace:\n")
	for i, f := range frames.All() {
		fmt.Fprintf(&b, "  %d: %s\n", i, f)
	}
	return b.String()
}

// Error implements error.
func (t *Trap) Error() string {
	return t.String()
}

// Close releases the engine object. It is safe to call more than once and on
// a nil Trap.
func (t *Trap) Close() error {
	if t == nil || t.handle == 0 {
		return nil
	}
	handle := t.handle
	t.handle = 0

	if !t.heap.TrapDelete(handle) {
		Logger().Debug("trap was already released by the engine", zap.Uint32("handle", uint32(handle)))
	}
	return nil
}

func release(heap *native.Heap, v *native.ByteVec) {
	if err := bytevec.Release(heap, v); err != nil {
		Logger().Warn("release byte vector", zap.Error(err))
	}
}
