package native

import (
	"github.com/wippyai/wasmtrap/errors"
	"github.com/wippyai/wasmtrap/resource"
)

// ByteVec is a length-prefixed byte buffer. Size is the declared length and
// may be adjusted by the caller while reading, but must be restored before the
// vector is deleted.
type ByteVec struct {
	Data  []byte
	Size  int
	owner resource.Handle
}

// Owned reports whether the vector was allocated for the caller, as opposed
// to being a view into another object.
func (v *ByteVec) Owned() bool {
	return v != nil && v.owner != 0
}

// Bytes returns the first Size bytes of the buffer.
func (v *ByteVec) Bytes() []byte {
	if v == nil || v.Size <= 0 {
		return nil
	}
	if v.Size > len(v.Data) {
		return v.Data
	}
	return v.Data[:v.Size]
}

type byteVecObject struct {
	size int
}

// ByteVecNew allocates a vector holding a copy of data. It returns nil when
// the heap refuses the allocation.
func (h *Heap) ByteVecNew(data []byte) *ByteVec {
	v := h.ByteVecNewUninitialized(len(data))
	if v == nil {
		return nil
	}
	copy(v.Data, data)
	return v
}

// ByteVecNewUninitialized allocates a zeroed vector of the given size.
func (h *Heap) ByteVecNewUninitialized(size int) *ByteVec {
	if size < 0 {
		return nil
	}
	owner := h.alloc(TypeByteVec, &byteVecObject{size: size})
	if owner == 0 {
		return nil
	}
	return &ByteVec{
		Data:  make([]byte, size),
		Size:  size,
		owner: owner,
	}
}

// ByteVecDelete releases a vector allocated by the heap. The declared size
// must equal the allocated length. Deleting a nil or already deleted vector is
// a no-op.
func (h *Heap) ByteVecDelete(v *ByteVec) error {
	if v == nil || (v.owner == 0 && v.Data == nil) {
		return nil
	}
	if v.owner == 0 {
		return errors.InvalidArgument(errors.PhaseBuffer, "byte vector is a view and cannot be deleted")
	}

	obj, ok := h.table.GetTyped(v.owner, TypeByteVec)
	if !ok {
		return errors.UseAfterFree(errors.PhaseBuffer, "byte vector")
	}
	allocated := obj.(*byteVecObject).size
	if v.Size != allocated || len(v.Data) != allocated {
		return errors.SizeMismatch(errors.PhaseBuffer, v.Size, allocated)
	}

	h.table.Remove(v.owner)
	v.Data = nil
	v.Size = 0
	v.owner = 0
	return nil
}

// nameView returns a non-owning vector over s, or nil when s is empty.
func nameView(s string) *ByteVec {
	if s == "" {
		return nil
	}
	return &ByteVec{Data: []byte(s), Size: len(s)}
}

// FrameVec is an ordered list of frame handles produced by TrapTrace. The
// vector owns every frame it lists.
type FrameVec struct {
	Data  []resource.Handle
	Size  int
	owner resource.Handle
}

// Handle returns the heap handle of the vector, or 0 for an empty vector.
func (v *FrameVec) Handle() resource.Handle {
	if v == nil {
		return 0
	}
	return v.owner
}

type frameVecObject struct {
	heap   *Heap
	frames []resource.Handle
}

// Drop releases the frames owned by the vector.
func (o *frameVecObject) Drop() {
	for _, f := range o.frames {
		o.heap.table.Remove(f)
	}
	o.frames = nil
}

// FrameVecDelete releases a frame vector and all frames it owns. While the
// vector is borrowed the release is deferred until the last borrow returns.
// The caller's struct is reset either way.
func (h *Heap) FrameVecDelete(v *FrameVec) error {
	if v == nil || v.owner == 0 {
		return nil
	}
	if _, ok := h.table.GetTyped(v.owner, TypeFrameVec); !ok || h.table.DropPending(v.owner) {
		return errors.UseAfterFree(errors.PhaseFrame, "frame vector")
	}

	h.table.Remove(v.owner)
	v.Data = nil
	v.Size = 0
	v.owner = 0
	return nil
}

// FrameVecBorrow takes a reference on a frame vector so that its frames stay
// alive across FrameVecDelete.
func (h *Heap) FrameVecBorrow(vec resource.Handle) bool {
	if _, ok := h.table.GetTyped(vec, TypeFrameVec); !ok {
		return false
	}
	return h.table.Borrow(vec)
}

// FrameVecReturn gives back a reference taken with FrameVecBorrow and reports
// whether that released the vector.
func (h *Heap) FrameVecReturn(vec resource.Handle) (bool, error) {
	if _, ok := h.table.GetTyped(vec, TypeFrameVec); !ok {
		return false, errors.UseAfterFree(errors.PhaseFrame, "frame vector")
	}
	return h.table.ReturnBorrow(vec)
}

// FrameVecLive reports whether a frame vector is live and not pending
// release.
func (h *Heap) FrameVecLive(vec resource.Handle) bool {
	if _, ok := h.table.GetTyped(vec, TypeFrameVec); !ok {
		return false
	}
	return !h.table.DropPending(vec)
}
