// Package wasmbuild assembles small core WebAssembly modules in memory. It
// covers function types, function imports, exports, code bodies and the
// name section, which is what the engine tests, the CLI demos and examples/basic
// need to produce traps with known backtraces.
package wasmbuild

import "slices"

// ValType is a core value type.
type ValType byte

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

func (t FuncType) equal(o FuncType) bool {
	return slices.Equal(t.Params, o.Params) && slices.Equal(t.Results, o.Results)
}

type funcImport struct {
	module string
	name   string
	typ    uint32
}

type funcDef struct {
	name   string
	locals []ValType
	body   []byte
	typ    uint32
}

type export struct {
	name string
	idx  uint32
}

// Module is a module under construction. Function indices follow the binary
// format: imports first, then defined functions in the order they were added.
type Module struct {
	name    string
	types   []FuncType
	imports []funcImport
	funcs   []funcDef
	exports []export
	names   bool
}

// New starts a module. A non-empty name is written to the name section.
func New(name string) *Module {
	return &Module{name: name, names: true}
}

// WithoutNames drops the name section, leaving every function and the module
// itself anonymous.
func (m *Module) WithoutNames() *Module {
	m.names = false
	return m
}

func (m *Module) typeIndex(t FuncType) uint32 {
	for i, existing := range m.types {
		if existing.equal(t) {
			return uint32(i)
		}
	}
	m.types = append(m.types, t)
	return uint32(len(m.types) - 1)
}

// ImportFunc declares an imported function and returns its index. Imports
// must be declared before any function is defined.
func (m *Module) ImportFunc(module, name string, t FuncType) uint32 {
	if len(m.funcs) > 0 {
		panic("wasmbuild: imports must precede defined functions")
	}
	m.imports = append(m.imports, funcImport{module: module, name: name, typ: m.typeIndex(t)})
	return uint32(len(m.imports) - 1)
}

// Func defines a function and returns its index. body holds the instructions
// without the final end opcode. An empty name leaves the function out of the
// name section.
func (m *Module) Func(name string, t FuncType, locals []ValType, body []byte) uint32 {
	m.funcs = append(m.funcs, funcDef{
		name:   name,
		typ:    m.typeIndex(t),
		locals: locals,
		body:   body,
	})
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

// Export exports the function at idx under name.
func (m *Module) Export(name string, idx uint32) *Module {
	m.exports = append(m.exports, export{name: name, idx: idx})
	return m
}

// Encode returns the module in binary format.
func (m *Module) Encode() []byte {
	w := &writer{}
	w.WriteU32LE(magic)
	w.WriteU32LE(version)

	if len(m.types) > 0 {
		sec := &writer{}
		sec.WriteU32(uint32(len(m.types)))
		for _, t := range m.types {
			sec.Byte(funcTypeByte)
			writeValTypes(sec, t.Params)
			writeValTypes(sec, t.Results)
		}
		writeSection(w, sectionType, sec.Bytes())
	}

	if len(m.imports) > 0 {
		sec := &writer{}
		sec.WriteU32(uint32(len(m.imports)))
		for _, imp := range m.imports {
			sec.WriteName(imp.module)
			sec.WriteName(imp.name)
			sec.Byte(kindFunc)
			sec.WriteU32(imp.typ)
		}
		writeSection(w, sectionImport, sec.Bytes())
	}

	if len(m.funcs) > 0 {
		sec := &writer{}
		sec.WriteU32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			sec.WriteU32(f.typ)
		}
		writeSection(w, sectionFunction, sec.Bytes())
	}

	if len(m.exports) > 0 {
		sec := &writer{}
		sec.WriteU32(uint32(len(m.exports)))
		for _, exp := range m.exports {
			sec.WriteName(exp.name)
			sec.Byte(kindFunc)
			sec.WriteU32(exp.idx)
		}
		writeSection(w, sectionExport, sec.Bytes())
	}

	if len(m.funcs) > 0 {
		sec := &writer{}
		sec.WriteU32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			body := &writer{}
			writeLocals(body, f.locals)
			body.WriteBytes(f.body)
			body.Byte(OpEnd)
			sec.WriteU32(uint32(body.Len()))
			sec.WriteBytes(body.Bytes())
		}
		writeSection(w, sectionCode, sec.Bytes())
	}

	if m.names {
		if names := m.nameSection(); names != nil {
			writeSection(w, sectionCustom, names)
		}
	}

	return w.Bytes()
}

func (m *Module) nameSection() []byte {
	var named []funcDef
	var indices []uint32
	for i, f := range m.funcs {
		if f.name != "" {
			named = append(named, f)
			indices = append(indices, uint32(len(m.imports)+i))
		}
	}
	if m.name == "" && len(named) == 0 {
		return nil
	}

	sec := &writer{}
	sec.WriteName("name")

	if m.name != "" {
		sub := &writer{}
		sub.WriteName(m.name)
		sec.Byte(nameSubModule)
		sec.WriteU32(uint32(sub.Len()))
		sec.WriteBytes(sub.Bytes())
	}

	if len(named) > 0 {
		sub := &writer{}
		sub.WriteU32(uint32(len(named)))
		for i, f := range named {
			sub.WriteU32(indices[i])
			sub.WriteName(f.name)
		}
		sec.Byte(nameSubFunction)
		sec.WriteU32(uint32(sub.Len()))
		sec.WriteBytes(sub.Bytes())
	}

	return sec.Bytes()
}

func writeValTypes(w *writer, types []ValType) {
	w.WriteU32(uint32(len(types)))
	for _, t := range types {
		w.Byte(byte(t))
	}
}

// writeLocals groups runs of equal types into (count, type) entries.
func writeLocals(w *writer, locals []ValType) {
	type group struct {
		count uint32
		typ   ValType
	}
	var groups []group
	for _, t := range locals {
		if n := len(groups); n > 0 && groups[n-1].typ == t {
			groups[n-1].count++
			continue
		}
		groups = append(groups, group{count: 1, typ: t})
	}

	w.WriteU32(uint32(len(groups)))
	for _, g := range groups {
		w.WriteU32(g.count)
		w.Byte(byte(g.typ))
	}
}
