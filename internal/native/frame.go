package native

import (
	"github.com/wippyai/wasmtrap/resource"
)

type frameObject struct {
	funcName   *ByteVec
	moduleName *ByteVec
	info       FrameInfo
	vec        resource.Handle
}

// newFrame allocates a frame. vec is the owning frame vector, or 0 for a
// caller-owned frame.
func (h *Heap) newFrame(info FrameInfo, vec resource.Handle) resource.Handle {
	return h.alloc(TypeFrame, &frameObject{
		funcName:   nameView(info.FuncName),
		moduleName: nameView(info.ModuleName),
		info:       info,
		vec:        vec,
	})
}

func (h *Heap) frame(handle resource.Handle) *frameObject {
	v, ok := h.table.GetTyped(handle, TypeFrame)
	if !ok {
		return nil
	}
	return v.(*frameObject)
}

// IsFrame reports whether handle is a live frame.
func (h *Heap) IsFrame(handle resource.Handle) bool {
	return h.frame(handle) != nil
}

// FrameOwned reports whether the frame is caller-owned rather than owned by a
// frame vector.
func (h *Heap) FrameOwned(handle resource.Handle) bool {
	f := h.frame(handle)
	return f != nil && f.vec == 0
}

// FrameCopy returns a new caller-owned copy of a frame.
func (h *Heap) FrameCopy(handle resource.Handle) resource.Handle {
	f := h.frame(handle)
	if f == nil {
		return 0
	}
	return h.newFrame(f.info, 0)
}

// FrameDelete releases a caller-owned frame. Frames owned by a vector are
// left alone and false is returned; they go away with the vector.
func (h *Heap) FrameDelete(handle resource.Handle) bool {
	f := h.frame(handle)
	if f == nil || f.vec != 0 {
		return false
	}
	_, ok := h.table.Remove(handle)
	return ok
}

// FrameFuncIndex returns the index of the frame's function in its module.
func (h *Heap) FrameFuncIndex(handle resource.Handle) uint32 {
	f := h.frame(handle)
	if f == nil {
		return 0
	}
	return f.info.FuncIndex
}

// FrameFuncName returns a view of the function name, or nil when the engine
// has none. The view is not nul-terminated and must not be deleted.
func (h *Heap) FrameFuncName(handle resource.Handle) *ByteVec {
	f := h.frame(handle)
	if f == nil {
		return nil
	}
	return f.funcName
}

// FrameModuleName returns a view of the module name, or nil when the engine
// has none.
func (h *Heap) FrameModuleName(handle resource.Handle) *ByteVec {
	f := h.frame(handle)
	if f == nil {
		return nil
	}
	return f.moduleName
}
