package native

import (
	"github.com/wippyai/wasmtrap/resource"
)

// TrapCode classifies a fault raised by the engine.
type TrapCode uint8

// FrameInfo describes one call-stack entry captured when a trap is raised.
// Empty names mean the engine had no name for the function or module.
type FrameInfo struct {
	FuncName   string
	ModuleName string
	FuncIndex  uint32
}

// TrapInfo is what the engine knows about a fault besides its message.
type TrapInfo struct {
	Trace   []FrameInfo
	Code    TrapCode
	HasCode bool
}

type trapObject struct {
	store   resource.Handle
	message []byte
	info    TrapInfo
}

// TrapNew creates a trap in store with a nul-terminated message. It returns a
// null handle when store is not a live store, msg is nil, or the heap refuses
// the allocation.
func (h *Heap) TrapNew(store resource.Handle, msg *ByteVec) resource.Handle {
	return h.TrapNewWithInfo(store, msg, TrapInfo{})
}

// TrapNewWithInfo creates a trap carrying a code and a captured trace.
func (h *Heap) TrapNewWithInfo(store resource.Handle, msg *ByteVec, info TrapInfo) resource.Handle {
	if !h.IsStore(store) || msg == nil {
		return 0
	}

	raw := msg.Bytes()
	message := make([]byte, len(raw), len(raw)+1)
	copy(message, raw)
	if len(message) == 0 || message[len(message)-1] != 0 {
		message = append(message, 0)
	}

	trace := make([]FrameInfo, len(info.Trace))
	copy(trace, info.Trace)
	info.Trace = trace

	return h.alloc(TypeTrap, &trapObject{
		store:   store,
		message: message,
		info:    info,
	})
}

func (h *Heap) trap(handle resource.Handle) *trapObject {
	v, ok := h.table.GetTyped(handle, TypeTrap)
	if !ok {
		return nil
	}
	return v.(*trapObject)
}

// IsTrap reports whether handle is a live trap.
func (h *Heap) IsTrap(handle resource.Handle) bool {
	return h.trap(handle) != nil
}

// TrapDelete releases a trap. It returns false when handle is not a live trap.
func (h *Heap) TrapDelete(handle resource.Handle) bool {
	if h.trap(handle) == nil {
		return false
	}
	_, ok := h.table.Remove(handle)
	return ok
}

// TrapMessage fills out with a newly allocated copy of the trap message,
// including its trailing nul. The caller deletes out.
func (h *Heap) TrapMessage(handle resource.Handle, out *ByteVec) bool {
	t := h.trap(handle)
	if t == nil || out == nil {
		return false
	}
	v := h.ByteVecNew(t.message)
	if v == nil {
		return false
	}
	*out = *v
	return true
}

// TrapCode returns the fault classification, if the engine assigned one.
func (h *Heap) TrapCode(handle resource.Handle) (TrapCode, bool) {
	t := h.trap(handle)
	if t == nil {
		return 0, false
	}
	return t.info.Code, t.info.HasCode
}

// TrapStore returns the store the trap was created in.
func (h *Heap) TrapStore(handle resource.Handle) resource.Handle {
	t := h.trap(handle)
	if t == nil {
		return 0
	}
	return t.store
}

// TrapTraceLen returns the number of frames captured with the trap.
func (h *Heap) TrapTraceLen(handle resource.Handle) int {
	t := h.trap(handle)
	if t == nil {
		return 0
	}
	return len(t.info.Trace)
}

// TrapAttachTrace records a trace on a trap that has none yet. It is used
// when a host-created trap unwinds through wasm frames.
func (h *Heap) TrapAttachTrace(handle resource.Handle, trace []FrameInfo) bool {
	t := h.trap(handle)
	if t == nil || len(t.info.Trace) > 0 {
		return false
	}
	t.info.Trace = append([]FrameInfo(nil), trace...)
	return true
}

// TrapTrace fills out with a new vector of frames, innermost first. The
// vector owns the frames; the caller deletes it with FrameVecDelete.
func (h *Heap) TrapTrace(handle resource.Handle, out *FrameVec) bool {
	t := h.trap(handle)
	if t == nil || out == nil {
		return false
	}

	obj := &frameVecObject{heap: h}
	owner := h.alloc(TypeFrameVec, obj)
	if owner == 0 {
		return false
	}

	frames := make([]resource.Handle, 0, len(t.info.Trace))
	for _, info := range t.info.Trace {
		f := h.newFrame(info, owner)
		if f == 0 {
			obj.frames = frames
			h.table.Remove(owner)
			return false
		}
		frames = append(frames, f)
	}
	obj.frames = frames

	*out = FrameVec{
		Data:  append([]resource.Handle(nil), frames...),
		Size:  len(frames),
		owner: owner,
	}
	return true
}

// TrapOrigin returns a new caller-owned frame for the innermost trace entry,
// or a null handle when the trace is empty.
func (h *Heap) TrapOrigin(handle resource.Handle) resource.Handle {
	t := h.trap(handle)
	if t == nil || len(t.info.Trace) == 0 {
		return 0
	}
	return h.newFrame(t.info.Trace[0], 0)
}
