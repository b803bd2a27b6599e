// Package wasmtrap exposes WebAssembly runtime faults as Go values.
//
// When wasm code faults (unreachable, integer division by zero, a host
// function that refuses to continue) the engine produces a trap: a message
// plus the wasm frames that were active, innermost first. This module wraps
// those engine objects in safe Go types with explicit ownership.
//
// # Architecture Overview
//
//	wasmtrap/
//	├── trap/               Trap, Frame and FrameList wrappers
//	├── engine/             wazero-backed stores, modules and calls
//	├── errors/             Structured error types
//	├── resource/           Typed handle table with deferred release
//	├── internal/native/    Engine object heap (stores, traps, frames, vectors)
//	├── internal/bytevec/   String <-> byte vector conversion
//	├── internal/wasmbuild/ In-memory module builder for tests and demos
//	└── cmd/trap/           CLI and interactive trap browser
//
// # Quick Start
//
//	e, _ := engine.New(ctx)
//	defer e.Close(ctx)
//	store, _ := e.NewStore(ctx)
//	mod, _ := store.CompileModule(ctx, wasmBytes)
//	inst, _ := store.Instantiate(ctx, mod, "m")
//
//	_, err := inst.Call(ctx, "run")
//	var t *trap.Trap
//	if errors.As(err, &t) {
//		defer t.Close()
//		fmt.Print(t)
//	}
//
// prints
//
//	unreachable
//	wasm backtrace:
//	  0: m!f
//	  1: m!g
//
// # Ownership
//
// Every Trap, owned Frame and FrameList owns engine objects and must be
// closed exactly once; Close is idempotent. Frames taken from a FrameList
// are borrowed: they stop working when the list is closed unless they were
// retained with Frame.Retain.
package wasmtrap
