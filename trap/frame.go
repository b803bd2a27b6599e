package trap

import (
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/wippyai/wasmtrap/errors"
	"github.com/wippyai/wasmtrap/internal/bytevec"
	"github.com/wippyai/wasmtrap/internal/native"
	"github.com/wippyai/wasmtrap/resource"
)

// ownership tells who releases a frame's engine object.
type ownership uint8

const (
	// borrowed frames point into a FrameList, which releases them
	borrowed ownership = iota
	// owned frames release their own engine object
	owned
)

// Frame is one entry of a captured call stack.
type Frame struct {
	heap     *native.Heap
	list     *FrameList
	handle   resource.Handle
	kind     ownership
	retained bool
	closed   bool
}

func (f *Frame) check() error {
	if f == nil || f.closed {
		return errors.UseAfterFree(errors.PhaseFrame, "frame")
	}
	if f.kind == borrowed && f.list.closed && !f.retained {
		return errors.New(errors.PhaseFrame, errors.KindUseAfterFree).
			Object("frame").
			Detail("frame list was closed; call Retain to keep a frame past its list").
			Build()
	}
	if !f.heap.IsFrame(f.handle) {
		return errors.UseAfterFree(errors.PhaseFrame, "frame")
	}
	return nil
}

// Owned reports whether the frame owns its engine object, as opposed to
// borrowing it from a FrameList.
func (f *Frame) Owned() bool {
	return f != nil && f.kind == owned
}

// FuncIndex returns the index of the frame's function in its module.
func (f *Frame) FuncIndex() (uint32, error) {
	if err := f.check(); err != nil {
		return 0, err
	}
	return f.heap.FrameFuncIndex(f.handle), nil
}

// FuncName returns the function name; ok is false when the engine has none.
func (f *Frame) FuncName() (name string, ok bool, err error) {
	if err := f.check(); err != nil {
		return "", false, err
	}
	return decodeName(f.heap.FrameFuncName(f.handle))
}

// ModuleName returns the name of the module defining the function; ok is
// false when the engine has none.
func (f *Frame) ModuleName() (name string, ok bool, err error) {
	if err := f.check(); err != nil {
		return "", false, err
	}
	return decodeName(f.heap.FrameModuleName(f.handle))
}

// frame names are not nul-terminated
func decodeName(v *native.ByteVec) (string, bool, error) {
	if v == nil {
		return "", false, nil
	}
	s, err := bytevec.Decode(v)
	if err != nil {
		return "", false, err
	}
	if s == "" {
		return "", false, nil
	}
	return s, true, nil
}

// String renders the frame as module!function, substituting <unknown> and
// <wasm function N> for absent names.
func (f *Frame) String() string {
	idx, err := f.FuncIndex()
	if err != nil {
		return "<released frame>"
	}
	module, ok, err := f.ModuleName()
	if err != nil || !ok {
		module = "<unknown>"
	}
	name, ok, err := f.FuncName()
	if err != nil || !ok {
		name = fmt.Sprintf("<wasm function %d>", idx)
	}
	return module + "!" + name
}

// Copy returns an owned copy of the frame. The caller closes it.
func (f *Frame) Copy() (*Frame, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	handle := f.heap.FrameCopy(f.handle)
	if handle == 0 {
		return nil, errors.AllocationFailed(errors.PhaseFrame, "frame")
	}
	return &Frame{heap: f.heap, handle: handle, kind: owned}, nil
}

// Retain keeps a borrowed frame readable after its FrameList is closed. The
// list's engine objects are then released when the last retained frame is
// closed. Retain is a no-op for owned frames.
func (f *Frame) Retain() error {
	if err := f.check(); err != nil {
		return err
	}
	if f.kind == owned || f.retained {
		return nil
	}
	if f.list.closed || !f.heap.FrameVecBorrow(f.list.handle) {
		return errors.UseAfterFree(errors.PhaseFrame, "frame list")
	}
	f.retained = true
	return nil
}

// Close releases the frame. Owned frames free their engine object; retained
// frames return their reference on the list; other borrowed frames have
// nothing to release. Close is idempotent.
func (f *Frame) Close() error {
	if f == nil || f.closed {
		return nil
	}
	f.closed = true

	switch f.kind {
	case owned:
		if !f.heap.FrameDelete(f.handle) {
			Logger().Debug("owned frame was already released", zap.Uint32("handle", uint32(f.handle)))
		}
	case borrowed:
		if !f.retained {
			return nil
		}
		f.retained = false
		released, err := f.heap.FrameVecReturn(f.list.handle)
		if err != nil {
			return err
		}
		if released {
			Logger().Debug("frame list released by last retained frame",
				zap.Uint32("handle", uint32(f.list.handle)))
		}
	}
	return nil
}

// FrameList is the backtrace snapshot produced by one Trap.Frames call. It
// owns the engine objects behind its frames.
type FrameList struct {
	heap   *native.Heap
	frames []*Frame
	vec    native.FrameVec
	handle resource.Handle
	closed bool
}

func newFrameList(heap *native.Heap, vec native.FrameVec) *FrameList {
	l := &FrameList{
		heap:   heap,
		vec:    vec,
		handle: vec.Handle(),
		frames: make([]*Frame, 0, vec.Size),
	}
	for _, h := range vec.Data[:vec.Size] {
		l.frames = append(l.frames, &Frame{heap: heap, list: l, handle: h, kind: borrowed})
	}
	return l
}

// Len returns the number of frames.
func (l *FrameList) Len() int {
	return len(l.frames)
}

// At returns the i-th frame, innermost first.
func (l *FrameList) At(i int) *Frame {
	return l.frames[i]
}

// Frames returns the frames, innermost first.
func (l *FrameList) Frames() []*Frame {
	return append([]*Frame(nil), l.frames...)
}

// All iterates over the frames with their display position.
func (l *FrameList) All() iter.Seq2[int, *Frame] {
	return func(yield func(int, *Frame) bool) {
		for i, f := range l.frames {
			if !yield(i, f) {
				return
			}
		}
	}
}

// Close releases the list. Frames that were not retained become unusable;
// retained frames keep the engine objects alive until they are closed.
func (l *FrameList) Close() error {
	if l == nil || l.closed {
		return nil
	}
	l.closed = true
	return l.heap.FrameVecDelete(&l.vec)
}
