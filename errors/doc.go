// Package errors provides structured error types for the wasmtrap library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type carries the object the operation targeted, a
// detail message and an optional cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseTrap, errors.KindInvalidArgument).
//		Object("trap").
//		Detail("handle %d has type tag %d", h, tag).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UseAfterFree(errors.PhaseFrame, "frame")
//	err := errors.AllocationFailed(errors.PhaseTrap, "trap")
//
// The package-level sentinels match on Kind regardless of Phase:
//
//	if errors.Is(err, wterrors.ErrUseAfterFree) { ... }
//
// Faults raised by the wasm engine itself are not *Error values; they are
// delivered as *trap.Trap.
package errors
