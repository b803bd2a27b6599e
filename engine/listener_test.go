package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/wippyai/wasmtrap/internal/native"
)

func TestCallRecord_Snapshot(t *testing.T) {
	rec := &callRecord{}
	rec.push(native.FrameInfo{FuncName: "outer"})
	rec.push(native.FrameInfo{FuncName: "middle"})
	rec.push(native.FrameInfo{FuncName: "inner"})

	// unwinding calls Abort innermost first
	for range 3 {
		rec.snapshot()
		rec.pop()
	}

	if len(rec.stack) != 0 {
		t.Fatalf("stack not unwound: %v", rec.stack)
	}
	want := []string{"inner", "middle", "outer"}
	if len(rec.trace) != len(want) {
		t.Fatalf("trace = %v", rec.trace)
	}
	for i, name := range want {
		if rec.trace[i].FuncName != name {
			t.Errorf("trace[%d] = %q, want %q", i, rec.trace[i].FuncName, name)
		}
	}
}

func TestCallRecord_Context(t *testing.T) {
	if callRecordFrom(context.Background()) != nil {
		t.Fatal("expected no record")
	}
	rec := &callRecord{}
	if callRecordFrom(withCallRecord(context.Background(), rec)) != rec {
		t.Fatal("record not found in context")
	}

	rec.pop()
	if len(rec.stack) != 0 {
		t.Fatal("pop on empty stack")
	}
}

func TestFaultMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("wasm error: unreachable\nwasm stack trace:\n\tm.f()"), "unreachable"},
		{fmt.Errorf("wasm error: integer divide by zero"), "integer divide by zero"},
		{fmt.Errorf("boom (recovered by wazero)\nwasm stack trace:\n\tm.f()"), "boom"},
		{fmt.Errorf("plain"), "plain"},
		{fmt.Errorf("multi\nline (recovered by wazero)\nwasm stack trace:\n\tx"), "multi\nline"},
	}

	for _, tt := range tests {
		if got := faultMessage(tt.err); got != tt.want {
			t.Errorf("faultMessage(%q) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
