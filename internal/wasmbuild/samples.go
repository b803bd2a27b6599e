package wasmbuild

var (
	void      = FuncType{}
	i32Binary = FuncType{Params: []ValType{I32, I32}, Results: []ValType{I32}}
)

// Unreachable builds a module whose "run" export calls g, which calls f,
// which executes unreachable. f is function 0 and g is function 1; "f" is
// exported too.
func Unreachable(name string) []byte {
	return unreachable(New(name))
}

// Anonymous is Unreachable without a name section.
func Anonymous() []byte {
	return unreachable(New("").WithoutNames())
}

func unreachable(m *Module) []byte {
	f := m.Func("f", void, nil, Code(OpUnreachable))
	g := m.Func("g", void, nil, Call(f))
	return m.Export("run", g).Export("f", f).Encode()
}

// Arith builds a module exporting "div" (signed i32 division, function 0)
// and "gcd" (function 1).
func Arith(name string) []byte {
	m := New(name)
	div := m.Func("div", i32Binary, nil, Code(LocalGet(0), LocalGet(1), OpI32DivS))
	gcd := m.Func("gcd", i32Binary, []ValType{I32}, Code(
		OpBlock, BlockVoid,
		OpBlock, BlockVoid,
		LocalGet(0), BrIf(0),
		LocalGet(1), LocalSet(2),
		Br(1),
		OpEnd,
		OpLoop, BlockVoid,
		LocalGet(1), LocalGet(0), LocalTee(2), OpI32RemU, LocalSet(0),
		LocalGet(2), LocalSet(1),
		LocalGet(0), BrIf(0),
		OpEnd,
		OpEnd,
		LocalGet(2),
	))
	return m.Export("div", div).Export("gcd", gcd).Encode()
}

// HostCaller builds a module importing a no-argument host function and
// exporting "run", which calls outer, which calls inner, which calls the
// import. inner is function 1 and outer is function 2.
func HostCaller(name, importModule, importName string) []byte {
	m := New(name)
	host := m.ImportFunc(importModule, importName, void)
	inner := m.Func("inner", void, nil, Call(host))
	outer := m.Func("outer", void, nil, Call(inner))
	return m.Export("run", outer).Encode()
}
