package wasmbuild

// Value types.
const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
	F32 ValType = 0x7d
	F64 ValType = 0x7c
)

// Opcodes used by the builder's callers. Instructions with immediates have
// helper functions below.
const (
	OpUnreachable byte = 0x00
	OpNop         byte = 0x01
	OpBlock       byte = 0x02
	OpLoop        byte = 0x03
	OpEnd         byte = 0x0b
	OpBr          byte = 0x0c
	OpBrIf        byte = 0x0d
	OpReturn      byte = 0x0f
	OpCall        byte = 0x10
	OpDrop        byte = 0x1a
	OpLocalGet    byte = 0x20
	OpLocalSet    byte = 0x21
	OpLocalTee    byte = 0x22
	OpI32Const    byte = 0x41
	OpI32Eqz      byte = 0x45
	OpI32Add      byte = 0x6a
	OpI32Sub      byte = 0x6b
	OpI32DivS     byte = 0x6d
	OpI32DivU     byte = 0x6e
	OpI32RemU     byte = 0x70

	// BlockVoid is the block type of a block without results.
	BlockVoid byte = 0x40
)

const (
	sectionCustom   byte = 0
	sectionType     byte = 1
	sectionImport   byte = 2
	sectionFunction byte = 3
	sectionExport   byte = 7
	sectionCode     byte = 10

	magic   uint32 = 0x6D736100
	version uint32 = 0x01

	funcTypeByte byte = 0x60
	kindFunc     byte = 0x00

	nameSubModule   byte = 0
	nameSubFunction byte = 1
)

// Call encodes call idx.
func Call(idx uint32) []byte {
	return appendU32([]byte{OpCall}, idx)
}

// LocalGet encodes local.get idx.
func LocalGet(idx uint32) []byte {
	return appendU32([]byte{OpLocalGet}, idx)
}

// LocalSet encodes local.set idx.
func LocalSet(idx uint32) []byte {
	return appendU32([]byte{OpLocalSet}, idx)
}

// LocalTee encodes local.tee idx.
func LocalTee(idx uint32) []byte {
	return appendU32([]byte{OpLocalTee}, idx)
}

// I32Const encodes i32.const v.
func I32Const(v int32) []byte {
	return appendS32([]byte{OpI32Const}, v)
}

// Br encodes br depth.
func Br(depth uint32) []byte {
	return appendU32([]byte{OpBr}, depth)
}

// BrIf encodes br_if depth.
func BrIf(depth uint32) []byte {
	return appendU32([]byte{OpBrIf}, depth)
}

// Code joins encoded instructions into a function body. Single opcodes may
// be passed as byte values.
func Code(parts ...any) []byte {
	var out []byte
	for _, p := range parts {
		switch v := p.(type) {
		case byte:
			out = append(out, v)
		case []byte:
			out = append(out, v...)
		default:
			panic("wasmbuild: unsupported code part")
		}
	}
	return out
}
