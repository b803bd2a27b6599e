package native

import (
	"bytes"
	"errors"
	"testing"

	wterrors "github.com/wippyai/wasmtrap/errors"
	"github.com/wippyai/wasmtrap/resource"
)

func newTestStore(t *testing.T, h *Heap) resource.Handle {
	t.Helper()
	store := h.StoreNew("session")
	if store == 0 {
		t.Fatal("StoreNew returned a null handle")
	}
	return store
}

func TestByteVec_NewDelete(t *testing.T) {
	h := NewHeap(0)

	v := h.ByteVecNew([]byte("abc"))
	if v == nil {
		t.Fatal("ByteVecNew returned nil")
	}
	if !v.Owned() || v.Size != 3 || !bytes.Equal(v.Bytes(), []byte("abc")) {
		t.Fatalf("unexpected vector %+v", v)
	}
	if h.LiveOf(TypeByteVec) != 1 {
		t.Fatalf("LiveOf(TypeByteVec) = %d, want 1", h.LiveOf(TypeByteVec))
	}

	if err := h.ByteVecDelete(v); err != nil {
		t.Fatalf("ByteVecDelete failed: %v", err)
	}
	if h.Live() != 0 {
		t.Fatalf("Live() = %d after delete, want 0", h.Live())
	}
	if err := h.ByteVecDelete(v); err != nil {
		t.Fatalf("second ByteVecDelete should be a no-op, got %v", err)
	}
}

func TestByteVec_DeleteRequiresOriginalSize(t *testing.T) {
	h := NewHeap(0)
	v := h.ByteVecNew([]byte("abc\x00"))

	v.Size--
	err := h.ByteVecDelete(v)
	if !errors.Is(err, &wterrors.Error{Kind: wterrors.KindSizeMismatch}) {
		t.Fatalf("expected size mismatch, got %v", err)
	}
	if h.Live() != 1 {
		t.Fatal("rejected delete must not release the vector")
	}

	v.Size++
	if err := h.ByteVecDelete(v); err != nil {
		t.Fatalf("ByteVecDelete failed: %v", err)
	}
}

func TestByteVec_ViewCannotBeDeleted(t *testing.T) {
	h := NewHeap(0)
	view := nameView("f")

	if err := h.ByteVecDelete(view); !errors.Is(err, wterrors.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if nameView("") != nil {
		t.Fatal("empty names must map to a nil view")
	}
}

func TestByteVec_Limit(t *testing.T) {
	h := NewHeap(1)
	v := h.ByteVecNew([]byte("a"))
	if v == nil {
		t.Fatal("first allocation should succeed")
	}
	if h.ByteVecNew([]byte("b")) != nil {
		t.Fatal("allocation beyond the limit should return nil")
	}
}

func TestTrap_NewRequiresStore(t *testing.T) {
	h := NewHeap(0)
	msg := h.ByteVecNew([]byte("boom\x00"))
	defer h.ByteVecDelete(msg)

	if got := h.TrapNew(0, msg); got != 0 {
		t.Fatal("TrapNew with null store should fail")
	}
	if got := h.TrapNew(msg.owner, msg); got != 0 {
		t.Fatal("TrapNew with a non-store handle should fail")
	}

	store := newTestStore(t, h)
	if got := h.TrapNew(store, nil); got != 0 {
		t.Fatal("TrapNew with nil message should fail")
	}
	if h.LiveOf(TypeTrap) != 0 {
		t.Fatal("failed constructions must not allocate traps")
	}
}

func TestTrap_Message(t *testing.T) {
	h := NewHeap(0)
	store := newTestStore(t, h)

	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{"terminated", []byte("boom\x00"), []byte("boom\x00")},
		{"unterminated", []byte("boom"), []byte("boom\x00")},
		{"empty", []byte{}, []byte{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := h.ByteVecNew(tt.in)
			trap := h.TrapNew(store, msg)
			h.ByteVecDelete(msg)
			if trap == 0 {
				t.Fatal("TrapNew failed")
			}
			defer h.TrapDelete(trap)

			var out ByteVec
			if !h.TrapMessage(trap, &out) {
				t.Fatal("TrapMessage failed")
			}
			if !bytes.Equal(out.Bytes(), tt.want) {
				t.Errorf("message = %q, want %q", out.Bytes(), tt.want)
			}
			if err := h.ByteVecDelete(&out); err != nil {
				t.Fatalf("ByteVecDelete failed: %v", err)
			}
		})
	}
}

func TestTrap_DeleteOnce(t *testing.T) {
	h := NewHeap(0)
	store := newTestStore(t, h)
	msg := h.ByteVecNew([]byte("x\x00"))
	trap := h.TrapNew(store, msg)
	h.ByteVecDelete(msg)

	if !h.TrapDelete(trap) {
		t.Fatal("first TrapDelete should succeed")
	}
	if h.TrapDelete(trap) {
		t.Fatal("second TrapDelete should be refused")
	}
	if h.TrapDelete(store) {
		t.Fatal("TrapDelete must not release a store")
	}
}

func TestTrap_TraceAndFrames(t *testing.T) {
	h := NewHeap(0)
	store := newTestStore(t, h)
	msg := h.ByteVecNew([]byte("unreachable\x00"))
	trap := h.TrapNewWithInfo(store, msg, TrapInfo{
		Code:    3,
		HasCode: true,
		Trace: []FrameInfo{
			{FuncIndex: 3, FuncName: "f", ModuleName: "m"},
			{FuncIndex: 7},
		},
	})
	h.ByteVecDelete(msg)

	if code, ok := h.TrapCode(trap); !ok || code != 3 {
		t.Fatalf("TrapCode = %d, %v", code, ok)
	}
	if h.TrapStore(trap) != store {
		t.Fatal("TrapStore returned the wrong store")
	}

	var vec FrameVec
	if !h.TrapTrace(trap, &vec) {
		t.Fatal("TrapTrace failed")
	}
	if vec.Size != 2 {
		t.Fatalf("vec.Size = %d, want 2", vec.Size)
	}

	f0, f1 := vec.Data[0], vec.Data[1]
	if h.FrameFuncIndex(f0) != 3 || h.FrameFuncIndex(f1) != 7 {
		t.Fatal("frame indices out of order")
	}
	if name := h.FrameFuncName(f0); name == nil || string(name.Bytes()) != "f" {
		t.Fatalf("FrameFuncName = %v", name)
	}
	if name := h.FrameModuleName(f0); name == nil || string(name.Bytes()) != "m" {
		t.Fatalf("FrameModuleName = %v", name)
	}
	if h.FrameFuncName(f1) != nil || h.FrameModuleName(f1) != nil {
		t.Fatal("absent names must be nil")
	}
	if h.FrameOwned(f0) {
		t.Fatal("frames from a vector are not caller-owned")
	}
	if h.FrameDelete(f0) {
		t.Fatal("FrameDelete must refuse vector-owned frames")
	}

	if err := h.FrameVecDelete(&vec); err != nil {
		t.Fatalf("FrameVecDelete failed: %v", err)
	}
	if h.IsFrame(f0) || h.IsFrame(f1) {
		t.Fatal("frames must be released with their vector")
	}

	h.TrapDelete(trap)
	h.StoreDelete(store)
	if h.Live() != 0 {
		t.Fatalf("Live() = %d, want 0", h.Live())
	}
}

func TestFrameVec_BorrowDefersRelease(t *testing.T) {
	h := NewHeap(0)
	store := newTestStore(t, h)
	msg := h.ByteVecNew([]byte("x\x00"))
	trap := h.TrapNewWithInfo(store, msg, TrapInfo{Trace: []FrameInfo{{FuncIndex: 1, FuncName: "g"}}})
	h.ByteVecDelete(msg)

	var vec FrameVec
	h.TrapTrace(trap, &vec)
	owner, frame := vec.Handle(), vec.Data[0]

	if !h.FrameVecBorrow(owner) {
		t.Fatal("FrameVecBorrow failed")
	}
	if err := h.FrameVecDelete(&vec); err != nil {
		t.Fatalf("FrameVecDelete failed: %v", err)
	}
	if h.FrameVecLive(owner) {
		t.Fatal("vector should report pending release")
	}
	if h.FrameFuncIndex(frame) != 1 || string(h.FrameFuncName(frame).Bytes()) != "g" {
		t.Fatal("borrowed frame must stay readable")
	}

	released, err := h.FrameVecReturn(owner)
	if err != nil || !released {
		t.Fatalf("FrameVecReturn: released=%v err=%v", released, err)
	}
	if h.IsFrame(frame) {
		t.Fatal("frame should be gone after the last borrow")
	}
}

func TestTrap_OriginAndCopy(t *testing.T) {
	h := NewHeap(0)
	store := newTestStore(t, h)
	msg := h.ByteVecNew([]byte("x\x00"))
	empty := h.TrapNew(store, msg)
	trap := h.TrapNewWithInfo(store, msg, TrapInfo{Trace: []FrameInfo{{FuncIndex: 2, ModuleName: "m"}}})
	h.ByteVecDelete(msg)

	if h.TrapOrigin(empty) != 0 {
		t.Fatal("origin of a trap without trace must be null")
	}

	origin := h.TrapOrigin(trap)
	if origin == 0 || !h.FrameOwned(origin) {
		t.Fatal("origin must be a caller-owned frame")
	}
	cp := h.FrameCopy(origin)
	if cp == 0 || cp == origin || h.FrameFuncIndex(cp) != 2 {
		t.Fatal("FrameCopy returned a bad frame")
	}
	if !h.FrameDelete(origin) || !h.FrameDelete(cp) {
		t.Fatal("FrameDelete should release owned frames")
	}
	if h.FrameDelete(cp) {
		t.Fatal("FrameDelete twice must be refused")
	}
}

func TestTrap_AttachTrace(t *testing.T) {
	h := NewHeap(0)
	store := newTestStore(t, h)
	msg := h.ByteVecNew([]byte("host\x00"))
	trap := h.TrapNew(store, msg)
	h.ByteVecDelete(msg)

	if !h.TrapAttachTrace(trap, []FrameInfo{{FuncIndex: 1}}) {
		t.Fatal("TrapAttachTrace failed on an empty trace")
	}
	if h.TrapAttachTrace(trap, []FrameInfo{{FuncIndex: 9}}) {
		t.Fatal("TrapAttachTrace must not replace an existing trace")
	}

	var vec FrameVec
	h.TrapTrace(trap, &vec)
	if vec.Size != 1 || h.FrameFuncIndex(vec.Data[0]) != 1 {
		t.Fatal("unexpected trace after attach")
	}
	h.FrameVecDelete(&vec)
}

func TestTrap_TraceRollbackOnLimit(t *testing.T) {
	h := NewHeap(4)
	store := newTestStore(t, h)
	msg := h.ByteVecNew([]byte("x\x00"))
	trap := h.TrapNewWithInfo(store, msg, TrapInfo{Trace: []FrameInfo{{}, {}, {}}})
	h.ByteVecDelete(msg)

	// store + trap live; vector plus three frames does not fit in four.
	var vec FrameVec
	if h.TrapTrace(trap, &vec) {
		t.Fatal("TrapTrace should fail when the heap is full")
	}
	if h.Live() != 2 {
		t.Fatalf("Live() = %d after rollback, want 2", h.Live())
	}
}

func TestHeap_StoreDelete(t *testing.T) {
	h := NewHeap(0)
	store := newTestStore(t, h)

	if !h.IsStore(store) {
		t.Fatal("IsStore failed")
	}
	if !h.StoreDelete(store) {
		t.Fatal("StoreDelete failed")
	}
	if h.IsStore(store) || h.StoreDelete(store) {
		t.Fatal("store must be gone after delete")
	}
}

func TestTypeName(t *testing.T) {
	if TypeName(TypeTrap) != "trap" || TypeName(TypeFrameVec) != "frame vector" || TypeName(99) != "unknown" {
		t.Fatal("unexpected type names")
	}
}
