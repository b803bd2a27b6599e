// Package bytevec converts between Go strings and the engine's byte vectors.
package bytevec

import (
	"unicode/utf8"

	"github.com/wippyai/wasmtrap/errors"
	"github.com/wippyai/wasmtrap/internal/native"
)

// Encode allocates a vector holding text, followed by one zero byte when
// trailingNul is set. The caller releases it with Release.
func Encode(heap *native.Heap, text string, trailingNul bool) (*native.ByteVec, error) {
	if heap == nil {
		return nil, errors.InvalidArgument(errors.PhaseBuffer, "nil heap")
	}

	size := len(text)
	if trailingNul {
		size++
	}
	v := heap.ByteVecNewUninitialized(size)
	if v == nil {
		return nil, errors.AllocationFailed(errors.PhaseBuffer, "byte vector")
	}
	copy(v.Data, text)
	return v, nil
}

// Decode interprets the first Size bytes of v as UTF-8 text.
func Decode(v *native.ByteVec) (string, error) {
	if v == nil {
		return "", errors.InvalidArgument(errors.PhaseBuffer, "nil byte vector")
	}
	b := v.Bytes()
	if !utf8.Valid(b) {
		return "", errors.InvalidUTF8(errors.PhaseBuffer, b)
	}
	return string(b), nil
}

// DecodeTrimmed decodes v without its trailing nul. Size is lowered for the
// decode and restored afterwards so the vector can still be released.
func DecodeTrimmed(v *native.ByteVec) (string, error) {
	if v == nil {
		return "", errors.InvalidArgument(errors.PhaseBuffer, "nil byte vector")
	}
	if v.Size == 0 {
		return "", nil
	}

	v.Size--
	s, err := Decode(v)
	v.Size++
	return s, err
}

// Release returns a vector to the heap.
func Release(heap *native.Heap, v *native.ByteVec) error {
	if heap == nil {
		return errors.InvalidArgument(errors.PhaseBuffer, "nil heap")
	}
	return heap.ByteVecDelete(v)
}
