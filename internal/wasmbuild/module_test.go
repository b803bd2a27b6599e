package wasmbuild

import (
	"bytes"
	"testing"
)

func TestEncode_Header(t *testing.T) {
	got := New("").WithoutNames().Encode()
	want := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("empty module = % x, want % x", got, want)
	}
}

func TestEncode_Unreachable(t *testing.T) {
	m := New("").WithoutNames()
	f := m.Func("", void, nil, Code(OpUnreachable))
	m.Export("f", f)

	want := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x04, 0x01, 0x60, 0x00, 0x00, // type section
		0x03, 0x02, 0x01, 0x00, // function section
		0x07, 0x05, 0x01, 0x01, 'f', 0x00, 0x00, // export section
		0x0a, 0x05, 0x01, 0x03, 0x00, 0x00, 0x0b, // code section
	}
	if got := m.Encode(); !bytes.Equal(got, want) {
		t.Fatalf("Encode =\n% x\nwant\n% x", got, want)
	}
}

func TestEncode_NameSection(t *testing.T) {
	m := New("m")
	m.Func("", void, nil, nil)
	m.Func("f", void, nil, nil)

	got := m.Encode()
	suffix := []byte{
		0x00, 0x0f, // custom section, 15 bytes
		0x04, 'n', 'a', 'm', 'e',
		0x00, 0x02, 0x01, 'm', // module name
		0x01, 0x04, 0x01, 0x01, 0x01, 'f', // function 1 is "f"
	}
	if !bytes.HasSuffix(got, suffix) {
		t.Fatalf("Encode = % x, want suffix % x", got, suffix)
	}
}

func TestFunc_IndicesFollowImports(t *testing.T) {
	m := New("x")
	if idx := m.ImportFunc("host", "a", void); idx != 0 {
		t.Fatalf("first import index = %d", idx)
	}
	if idx := m.ImportFunc("host", "b", i32Binary); idx != 1 {
		t.Fatalf("second import index = %d", idx)
	}
	if idx := m.Func("f", void, nil, nil); idx != 2 {
		t.Fatalf("first function index = %d, want 2", idx)
	}
	if len(m.types) != 2 {
		t.Fatalf("types = %d, want deduplicated 2", len(m.types))
	}
}

func TestImportFunc_AfterFuncPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	m := New("x")
	m.Func("f", void, nil, nil)
	m.ImportFunc("host", "a", void)
}

func TestLocals_Grouped(t *testing.T) {
	w := &writer{}
	writeLocals(w, []ValType{I32, I32, I64, I32})
	want := []byte{0x03, 0x02, 0x7f, 0x01, 0x7e, 0x01, 0x7f}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("locals = % x, want % x", w.Bytes(), want)
	}
}

func TestLEB128(t *testing.T) {
	tests := []struct {
		want []byte
		got  []byte
	}{
		{[]byte{0x00}, appendU32(nil, 0)},
		{[]byte{0xe5, 0x8e, 0x26}, appendU32(nil, 624485)},
		{[]byte{0x7f}, appendS32(nil, -1)},
		{[]byte{0x3f}, appendS32(nil, 63)},
		{[]byte{0xc0, 0x00}, appendS32(nil, 64)},
		{[]byte{0x80, 0x80, 0x80, 0x80, 0x78}, appendS32(nil, -2147483648)},
	}
	for _, tt := range tests {
		if !bytes.Equal(tt.got, tt.want) {
			t.Errorf("got % x, want % x", tt.got, tt.want)
		}
	}
}

func TestSamples_Encode(t *testing.T) {
	for name, bin := range map[string][]byte{
		"unreachable": Unreachable("m"),
		"anonymous":   Anonymous(),
		"arith":       Arith("arith"),
		"host":        HostCaller("caller", "host", "fail"),
	} {
		if !bytes.HasPrefix(bin, []byte("\x00asm")) {
			t.Errorf("%s: missing magic", name)
		}
	}
}
