package trap

import (
	"errors"
	"strings"
	"testing"

	wterrors "github.com/wippyai/wasmtrap/errors"
	"github.com/wippyai/wasmtrap/internal/native"
	"github.com/wippyai/wasmtrap/resource"
)

type testStore struct {
	heap   *native.Heap
	handle resource.Handle
}

func (s *testStore) Heap() *native.Heap      { return s.heap }
func (s *testStore) Handle() resource.Handle { return s.handle }

func newTestStore(t *testing.T, limit int) *testStore {
	t.Helper()
	heap := native.NewHeap(limit)
	handle := heap.StoreNew(nil)
	if handle == 0 {
		t.Fatal("StoreNew failed")
	}
	return &testStore{heap: heap, handle: handle}
}

// engineTrap simulates a fault raised by the engine.
func engineTrap(t *testing.T, s *testStore, msg string, info native.TrapInfo) *Trap {
	t.Helper()
	raw := s.heap.ByteVecNew([]byte(msg + "\x00"))
	handle := s.heap.TrapNewWithInfo(s.handle, raw, info)
	if err := s.heap.ByteVecDelete(raw); err != nil {
		t.Fatalf("ByteVecDelete failed: %v", err)
	}
	tr, err := Wrap(s.heap, handle)
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}
	return tr
}

func TestNew_Message(t *testing.T) {
	s := newTestStore(t, 0)

	for _, msg := range []string{"", "boom", "héllo wörld", "line1\nline2"} {
		tr, err := New(s, msg)
		if err != nil {
			t.Fatalf("New(%q) failed: %v", msg, err)
		}
		got, err := tr.Message()
		if err != nil {
			t.Fatalf("Message failed: %v", err)
		}
		if got != msg {
			t.Errorf("Message() = %q, want %q", got, msg)
		}
		if _, ok, _ := tr.Code(); ok {
			t.Error("host-created traps have no code")
		}
		tr.Close()
	}

	if live := s.heap.Live(); live != 1 {
		t.Fatalf("Live() = %d, want only the store", live)
	}
}

func TestNew_InvalidArgument(t *testing.T) {
	s := newTestStore(t, 0)
	dead := &testStore{heap: s.heap, handle: s.heap.StoreNew(nil)}
	s.heap.StoreDelete(dead.handle)

	tests := []struct {
		store Store
		name  string
		msg   string
	}{
		{nil, "nil store", "boom"},
		{&testStore{}, "nil heap", "boom"},
		{dead, "released store", "boom"},
		{&testStore{heap: s.heap, handle: 999}, "unknown handle", "boom"},
		{s, "not text", "\xff\xfe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := s.heap.Live()
			tr, err := New(tt.store, tt.msg)
			if !errors.Is(err, wterrors.ErrInvalidArgument) {
				t.Fatalf("expected invalid argument, got %v", err)
			}
			if tr != nil {
				t.Fatal("expected nil trap")
			}
			if s.heap.Live() != before {
				t.Fatal("failed construction must not allocate")
			}
		})
	}
}

func TestNew_NonStoreHandle(t *testing.T) {
	s := newTestStore(t, 0)
	other := engineTrap(t, s, "x", native.TrapInfo{})
	defer other.Close()

	_, err := New(&testStore{heap: s.heap, handle: other.Handle()}, "boom")
	if !errors.Is(err, wterrors.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for a trap handle, got %v", err)
	}
}

func TestNew_AllocationError(t *testing.T) {
	// store + message vector fit, the trap itself does not
	s := newTestStore(t, 2)

	_, err := New(s, "boom")
	if !errors.Is(err, wterrors.ErrAllocation) {
		t.Fatalf("expected allocation error, got %v", err)
	}
	if s.heap.Live() != 1 {
		t.Fatalf("Live() = %d, message vector must be released", s.heap.Live())
	}
}

func TestWrap(t *testing.T) {
	s := newTestStore(t, 0)

	if _, err := Wrap(nil, 1); !errors.Is(err, wterrors.ErrInvalidArgument) {
		t.Fatalf("Wrap(nil heap) error = %v", err)
	}
	if _, err := Wrap(s.heap, s.handle); !errors.Is(err, wterrors.ErrInvalidArgument) {
		t.Fatalf("Wrap(store handle) error = %v", err)
	} else if !strings.Contains(err.Error(), "wrong pointer type") {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if _, err := Wrap(s.heap, 0); !errors.Is(err, wterrors.ErrInvalidArgument) {
		t.Fatalf("Wrap(null) error = %v", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	s := newTestStore(t, 0)
	tr, err := New(s, "boom")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	deleted := 0
	s.heap.Subscribe(resource.ObserverFunc(func(e resource.Event) {
		if e.Type == resource.EventDropped && e.TypeID == native.TypeTrap {
			deleted++
		}
	}))

	if err := tr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("trap released %d times, want 1", deleted)
	}

	var nilTrap *Trap
	if err := nilTrap.Close(); err != nil {
		t.Fatalf("Close on nil trap failed: %v", err)
	}
}

func TestUseAfterFree(t *testing.T) {
	s := newTestStore(t, 0)
	tr, _ := New(s, "boom")
	tr.Close()

	if tr.Live() {
		t.Fatal("closed trap reports live")
	}
	if _, err := tr.Message(); !errors.Is(err, wterrors.ErrUseAfterFree) {
		t.Errorf("Message error = %v", err)
	}
	if _, err := tr.Frames(); !errors.Is(err, wterrors.ErrUseAfterFree) {
		t.Errorf("Frames error = %v", err)
	}
	if _, err := tr.Origin(); !errors.Is(err, wterrors.ErrUseAfterFree) {
		t.Errorf("Origin error = %v", err)
	}
	if _, _, err := tr.Code(); !errors.Is(err, wterrors.ErrUseAfterFree) {
		t.Errorf("Code error = %v", err)
	}
	if !strings.Contains(tr.String(), "use_after_free") {
		t.Errorf("String() = %q", tr.String())
	}
}

func TestString_NoFrames(t *testing.T) {
	s := newTestStore(t, 0)
	tr, _ := New(s, "plain message")
	defer tr.Close()

	msg, _ := tr.Message()
	if tr.String() != msg {
		t.Fatalf("String() = %q, want %q", tr.String(), msg)
	}
	if tr.Error() != msg {
		t.Fatalf("Error() = %q, want %q", tr.Error(), msg)
	}
}

func TestString_Backtrace(t *testing.T) {
	s := newTestStore(t, 0)

	tests := []struct {
		name  string
		trace []native.FrameInfo
		want  string
	}{
		{
			name:  "absent names",
			trace: []native.FrameInfo{{FuncIndex: 0}},
			want:  "unreachable\nwasm backtrace:\n  0: <unknown>!<wasm function 0>\n",
		},
		{
			name:  "display position is not the function index",
			trace: []native.FrameInfo{{FuncIndex: 3, FuncName: "f", ModuleName: "m"}},
			want:  "unreachable\nwasm backtrace:\n  0: m!f\n",
		},
		{
			name: "mixed",
			trace: []native.FrameInfo{
				{FuncIndex: 5, FuncName: "inner", ModuleName: "m"},
				{FuncIndex: 2, ModuleName: "m"},
				{FuncIndex: 1, FuncName: "outer"},
			},
			want: "unreachable\nwasm backtrace:\n" +
				"  0: m!inner\n" +
				"  1: m!<wasm function 2>\n" +
				"  2: <unknown>!outer\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := engineTrap(t, s, "unreachable", native.TrapInfo{Trace: tt.trace})
			defer tr.Close()

			if got := tr.String(); got != tt.want {
				t.Errorf("String() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}

	if live := s.heap.Live(); live != 1 {
		t.Fatalf("Live() = %d after rendering, want 1", live)
	}
}

func TestAttachTrace(t *testing.T) {
	s := newTestStore(t, 0)
	other := newTestStore(t, 0)

	tr, _ := New(s, "boom")
	defer tr.Close()
	unrelated, _ := New(other, "unrelated")
	defer unrelated.Close()

	if tr.AttachTrace(nil) {
		t.Fatal("AttachTrace with an empty trace should do nothing")
	}
	if !tr.AttachTrace(testTrace) {
		t.Fatal("AttachTrace failed")
	}
	if tr.AttachTrace([]native.FrameInfo{{FuncIndex: 9}}) {
		t.Fatal("AttachTrace must not replace an existing backtrace")
	}

	want := "boom\nwasm backtrace:\n  0: m!f\n  1: <unknown>!<wasm function 0>\n"
	if got := tr.String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
	if got := unrelated.String(); got != "unrelated" {
		t.Fatalf("trap in another heap changed: %q", got)
	}

	tr.Close()
	if tr.AttachTrace(testTrace) {
		t.Fatal("AttachTrace on a closed trap should fail")
	}
}

func TestCode(t *testing.T) {
	s := newTestStore(t, 0)
	tr := engineTrap(t, s, "integer divide by zero", native.TrapInfo{
		Code:    native.TrapCode(IntegerDivisionByZero),
		HasCode: true,
	})
	defer tr.Close()

	code, ok, err := tr.Code()
	if err != nil || !ok {
		t.Fatalf("Code() = %v, %v, %v", code, ok, err)
	}
	if code != IntegerDivisionByZero {
		t.Fatalf("Code() = %s, want %s", code, IntegerDivisionByZero)
	}
}

func TestTrap_IsError(t *testing.T) {
	s := newTestStore(t, 0)
	tr, _ := New(s, "boom")
	defer tr.Close()

	var err error = tr
	var target *Trap
	if !errors.As(err, &target) || target != tr {
		t.Fatal("errors.As should find the trap")
	}
}
