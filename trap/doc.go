// Package trap exposes engine faults and the call stacks captured with them.
//
// A Trap is both an error value and the owner of one engine object. Traps
// come from two places: the engine creates one when guest execution faults
// (returned as the error of engine.Func.Call), and host code creates one with
// New, typically to abort a call from inside a host function:
//
//	t, err := trap.New(store, "quota exceeded")
//	if err != nil {
//	    return nil, err
//	}
//	return nil, t
//
// # Backtraces
//
// Frames returns a FrameList, innermost frame first. Frames obtained from a
// list borrow from it and become unusable once the list is closed, unless
// Retain was called on them:
//
//	frames, err := t.Frames()
//	if err != nil {
//	    return err
//	}
//	defer frames.Close()
//	for i, f := range frames.All() {
//	    fmt.Printf("%d: %s\n", i, f)
//	}
//
// Origin returns an owned copy of the innermost frame, and Frame.Copy turns
// any frame into an owned one. Owned frames are closed individually.
//
// # Release
//
// Nothing here is released by the garbage collector. Close every Trap,
// FrameList and owned Frame. Close is idempotent, and every other method on
// a released object fails with errors.ErrUseAfterFree.
//
// # Thread Safety
//
// Traps, frames and frame lists are not safe for concurrent use.
package trap
