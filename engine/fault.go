package engine

import (
	stderrors "errors"
	"strings"

	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/wasmtrap/errors"
	"github.com/wippyai/wasmtrap/internal/bytevec"
	"github.com/wippyai/wasmtrap/internal/native"
	"github.com/wippyai/wasmtrap/trap"
)

// fault turns an error returned by a wasm call into a trap owned by the
// caller. Traps raised by host functions come back as the same value with
// the wasm backtrace attached.
func (s *Store) fault(err error, trace []native.FrameInfo) error {
	var exit *sys.ExitError
	if stderrors.As(err, &exit) {
		return err
	}

	var raised *trap.Trap
	if stderrors.As(err, &raised) {
		if len(trace) > 0 && !raised.AttachTrace(trace) {
			Logger().Debug("host trap keeps its existing backtrace", zap.Uint32("handle", uint32(raised.Handle())))
		}
		return raised
	}

	heap := s.Heap()

	msg := faultMessage(err)
	info := native.TrapInfo{Trace: trace}
	if code, ok := trap.ParseCode(msg); ok {
		info.Code = native.TrapCode(code)
		info.HasCode = true
	}

	raw, encErr := bytevec.Encode(heap, msg, true)
	if encErr != nil {
		return errors.Wrap(errors.PhaseRuntime, errors.KindAllocation, err, "create trap message")
	}
	handle := heap.TrapNewWithInfo(s.handle, raw, info)
	if relErr := bytevec.Release(heap, raw); relErr != nil {
		Logger().Warn("release trap message", zap.Error(relErr))
	}
	if handle == 0 {
		return errors.Wrap(errors.PhaseRuntime, errors.KindAllocation, err, "create trap")
	}

	t, wrapErr := trap.Wrap(heap, handle)
	if wrapErr != nil {
		heap.TrapDelete(handle)
		return wrapErr
	}

	Logger().Debug("call trapped",
		zap.String("message", msg),
		zap.Int("frames", len(trace)))
	return t
}

// faultMessage strips wazero's decorations from a call error.
func faultMessage(err error) string {
	msg, _, _ := strings.Cut(err.Error(), "\nwasm stack trace:")
	msg = strings.TrimSuffix(msg, " (recovered by wazero)")
	return strings.TrimPrefix(msg, "wasm error: ")
}
