// Package engine runs core WebAssembly modules on wazero and turns faults
// into traps with backtraces.
//
// # Architecture
//
//	Engine   - owns the object heap shared by all stores
//	Store    - one execution session: a wazero runtime plus host functions
//	Module   - a module compiled in a store
//	Instance - an instantiated module; Func and Call invoke its exports
//
// # Traps
//
// A call that faults returns a *trap.Trap instead of a plain error. The trap
// carries the fault message (without wazero's own stack dump), a code when
// the fault is one of the standard wasm traps, and the wasm frames that were
// active, innermost first:
//
//	results, err := inst.Call(ctx, "run")
//	var t *trap.Trap
//	if errors.As(err, &t) {
//		defer t.Close()
//		fmt.Print(t)
//	}
//
// Frames are recorded by a function listener installed at compile time, so
// only modules compiled through Store.CompileModule produce backtraces.
// Host functions are not listed.
//
// Host functions may return a trap of their own, created with trap.New. The
// caller receives that same trap, with the wasm frames that called the host
// function attached. Any other host error becomes a trap whose message is
// the error text.
//
// A module exit (sys.ExitError) is never converted into a trap.
package engine
