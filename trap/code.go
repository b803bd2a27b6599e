package trap

import "strings"

// Code classifies a fault raised by the engine.
type Code uint8

const (
	StackOverflow Code = iota
	MemoryOutOfBounds
	HeapMisaligned
	TableOutOfBounds
	BadSignature
	IntegerOverflow
	IntegerDivisionByZero
	BadConversionToInteger
	UnreachableCodeReached
)

var codeNames = [...]string{
	StackOverflow:          "stack overflow",
	MemoryOutOfBounds:      "out of bounds memory access",
	HeapMisaligned:         "unaligned atomic",
	TableOutOfBounds:       "invalid table access",
	BadSignature:           "indirect call type mismatch",
	IntegerOverflow:        "integer overflow",
	IntegerDivisionByZero:  "integer divide by zero",
	BadConversionToInteger: "invalid conversion to integer",
	UnreachableCodeReached: "unreachable",
}

func (c Code) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return "unknown"
}

// ParseCode maps an engine fault message to its code.
func ParseCode(message string) (Code, bool) {
	message = strings.TrimSpace(strings.TrimPrefix(message, "wasm error: "))
	for i, name := range codeNames {
		if message == name {
			return Code(i), true
		}
	}
	return 0, false
}
