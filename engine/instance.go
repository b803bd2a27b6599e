package engine

import (
	"context"
	"slices"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasmtrap/errors"
)

// Module is a compiled module bound to the store that compiled it.
type Module struct {
	store    *Store
	compiled wazero.CompiledModule
}

// Name returns the module name from the binary's name section, if any.
func (m *Module) Name() string {
	return m.compiled.Name()
}

// Exports returns the exported function names, sorted.
func (m *Module) Exports() []string {
	defs := m.compiled.ExportedFunctions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Imports lists the imported functions as module.name pairs.
func (m *Module) Imports() [][2]string {
	var out [][2]string
	for _, def := range m.compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		out = append(out, [2]string{module, name})
	}
	return out
}

// Close releases the compiled code. Instances created from it stay usable.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

// Instance is an instantiated module.
type Instance struct {
	store  *Store
	module api.Module
	name   string
}

// Name returns the name the instance was registered under.
func (i *Instance) Name() string {
	return i.name
}

// Exports returns the exported function names, sorted.
func (i *Instance) Exports() []string {
	defs := i.module.ExportedFunctionDefinitions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Func looks up an exported function.
func (i *Instance) Func(name string) (*Func, error) {
	fn := i.module.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "export", name)
	}
	return &Func{store: i.store, fn: fn, name: name}, nil
}

// Call invokes an exported function by name.
func (i *Instance) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	fn, err := i.Func(name)
	if err != nil {
		return nil, err
	}
	return fn.Call(ctx, args...)
}

// Close closes the instance.
func (i *Instance) Close(ctx context.Context) error {
	return i.module.Close(ctx)
}

// Func is an exported wasm function.
type Func struct {
	store *Store
	fn    api.Function
	name  string
}

// Name returns the export name.
func (f *Func) Name() string {
	return f.name
}

// ParamTypes returns the parameter types.
func (f *Func) ParamTypes() []api.ValueType {
	return f.fn.Definition().ParamTypes()
}

// ResultTypes returns the result types.
func (f *Func) ResultTypes() []api.ValueType {
	return f.fn.Definition().ResultTypes()
}

// Call invokes the function. A fault inside the call is returned as a
// *trap.Trap owned by the caller, who must close it. A module exit
// (*sys.ExitError) is returned as is.
func (f *Func) Call(ctx context.Context, args ...uint64) ([]uint64, error) {
	if err := f.store.check(); err != nil {
		return nil, err
	}
	if want := len(f.fn.Definition().ParamTypes()); len(args) != want {
		return nil, errors.InvalidArgument(errors.PhaseRuntime, "%s expects %d arguments, got %d", f.name, want, len(args))
	}

	rec := &callRecord{}
	results, err := f.fn.Call(withCallRecord(ctx, rec), args...)
	if err != nil {
		return nil, f.store.fault(err, rec.trace)
	}
	return results, nil
}
