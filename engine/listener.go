package engine

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"

	"github.com/wippyai/wasmtrap/internal/native"
)

type callKey struct{}

// callRecord follows the wasm frames of one call. stack is the live shadow
// stack, outermost first; trace is the snapshot taken when the call
// started unwinding, innermost first.
type callRecord struct {
	stack   []native.FrameInfo
	trace   []native.FrameInfo
	aborted bool
}

func withCallRecord(ctx context.Context, rec *callRecord) context.Context {
	return context.WithValue(ctx, callKey{}, rec)
}

func callRecordFrom(ctx context.Context) *callRecord {
	rec, _ := ctx.Value(callKey{}).(*callRecord)
	return rec
}

func (r *callRecord) push(info native.FrameInfo) {
	r.stack = append(r.stack, info)
}

func (r *callRecord) pop() {
	if n := len(r.stack); n > 0 {
		r.stack = r.stack[:n-1]
	}
}

// snapshot captures the stack at the fault. Only the first abort counts:
// the frames above it have already been popped by then.
func (r *callRecord) snapshot() {
	if r.aborted {
		return
	}
	r.aborted = true
	r.trace = make([]native.FrameInfo, len(r.stack))
	for i, info := range r.stack {
		r.trace[len(r.stack)-1-i] = info
	}
}

// frameListenerFactory attaches a frameListener to every wasm-defined
// function. Host functions do not appear in backtraces.
type frameListenerFactory struct{}

func (frameListenerFactory) NewFunctionListener(def api.FunctionDefinition) experimental.FunctionListener {
	if def.GoFunction() != nil {
		return nil
	}
	return frameListener{}
}

type frameListener struct{}

func (frameListener) Before(ctx context.Context, mod api.Module, def api.FunctionDefinition, _ []uint64, _ experimental.StackIterator) {
	if rec := callRecordFrom(ctx); rec != nil {
		rec.push(frameInfo(mod, def))
	}
}

func (frameListener) After(ctx context.Context, _ api.Module, _ api.FunctionDefinition, _ []uint64) {
	if rec := callRecordFrom(ctx); rec != nil {
		rec.pop()
	}
}

func (frameListener) Abort(ctx context.Context, _ api.Module, _ api.FunctionDefinition, _ error) {
	if rec := callRecordFrom(ctx); rec != nil {
		rec.snapshot()
		rec.pop()
	}
}

// frameInfo names a frame after the module's name section, falling back to
// the name the instance was registered under.
func frameInfo(mod api.Module, def api.FunctionDefinition) native.FrameInfo {
	module := def.ModuleName()
	if module == "" && mod != nil {
		module = mod.Name()
	}
	return native.FrameInfo{
		FuncIndex:  def.Index(),
		FuncName:   def.Name(),
		ModuleName: module,
	}
}
