package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"go.uber.org/zap"

	"github.com/wippyai/wasmtrap/errors"
	"github.com/wippyai/wasmtrap/internal/native"
	"github.com/wippyai/wasmtrap/resource"
)

// HostFunc implements an imported function. args holds the raw parameter
// values and the returned slice must have one value per declared result.
// Returning a *trap.Trap raises that trap in the calling wasm code; any
// other error is converted into a trap carrying the error text.
type HostFunc func(ctx context.Context, store *Store, args []uint64) ([]uint64, error)

type hostModule struct {
	builder      wazero.HostModuleBuilder
	names        map[string]struct{}
	instantiated bool
}

// Store is an execution session. Modules are compiled and instantiated in a
// store, and traps raised by its calls are created in it. A Store is not
// safe for concurrent use.
type Store struct {
	engine  *Engine
	runtime wazero.Runtime
	hosts   map[string]*hostModule
	order   []string
	handle  resource.Handle
	mu      sync.Mutex
	closed  bool
}

// Heap returns the heap traps of this store are allocated on.
func (s *Store) Heap() *native.Heap {
	if s == nil || s.engine == nil {
		return nil
	}
	return s.engine.heap
}

// Handle returns the store's engine handle. It stays set after Close but no
// longer refers to a live store.
func (s *Store) Handle() resource.Handle {
	if s == nil {
		return 0
	}
	return s.handle
}

// Engine returns the engine that created the store.
func (s *Store) Engine() *Engine {
	return s.engine
}

func (s *Store) check() error {
	if s == nil || s.closed {
		return errors.UseAfterFree(errors.PhaseStore, "store")
	}
	return nil
}

// DefineFunc registers a host function under module.name. Functions of one
// module are instantiated together the first time a module is instantiated
// in the store; a host module cannot be extended after that.
func (s *Store) DefineFunc(module, name string, params, results []api.ValueType, fn HostFunc) error {
	if err := s.check(); err != nil {
		return err
	}
	if module == "" || name == "" {
		return errors.InvalidArgument(errors.PhaseHost, "host function needs a module and a name, got %q.%q", module, name)
	}
	if fn == nil {
		return errors.InvalidArgument(errors.PhaseHost, "nil host function %s.%s", module, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	hm, ok := s.hosts[module]
	if !ok {
		hm = &hostModule{
			builder: s.runtime.NewHostModuleBuilder(module),
			names:   make(map[string]struct{}),
		}
		s.hosts[module] = hm
		s.order = append(s.order, module)
	}
	if hm.instantiated {
		return errors.Registration(errors.PhaseHost, module, name,
			fmt.Errorf("host module %q is already instantiated", module))
	}
	if _, dup := hm.names[name]; dup {
		return errors.Registration(errors.PhaseHost, module, name, fmt.Errorf("duplicate function"))
	}
	hm.names[name] = struct{}{}

	hm.builder = hm.builder.NewFunctionBuilder().
		WithGoModuleFunction(s.hostFunc(fn, len(params), len(results)), params, results).
		WithName(name).
		Export(name)

	Logger().Debug("host function defined", zap.String("module", module), zap.String("name", name))
	return nil
}

func (s *Store) hostFunc(fn HostFunc, nParams, nResults int) api.GoModuleFunc {
	return func(ctx context.Context, _ api.Module, stack []uint64) {
		args := make([]uint64, nParams)
		copy(args, stack)

		results, err := fn(ctx, s, args)
		if err != nil {
			panic(err)
		}
		if len(results) != nResults {
			panic(errors.InvalidInput(errors.PhaseHost,
				fmt.Sprintf("host function returned %d results, expected %d", len(results), nResults)))
		}
		copy(stack, results)
	}
}

func (s *Store) instantiateHosts(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, module := range s.order {
		hm := s.hosts[module]
		if hm.instantiated {
			continue
		}
		if _, err := hm.builder.Instantiate(ctx); err != nil {
			return errors.Instantiation(module, err)
		}
		hm.instantiated = true
	}
	return nil
}

// CompileModule compiles a core wasm binary. Every function of the module
// reports its frames to the store's calls, which is how traps get their
// backtraces.
func (s *Store) CompileModule(ctx context.Context, bin []byte) (*Module, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if len(bin) == 0 {
		return nil, errors.InvalidArgument(errors.PhaseLoad, "empty module binary")
	}

	compiled, err := s.runtime.CompileModule(experimental.WithFunctionListenerFactory(ctx, frameListenerFactory{}), bin)
	if err != nil {
		return nil, errors.Load("compile module", err)
	}
	return &Module{store: s, compiled: compiled}, nil
}

// Instantiate instantiates a compiled module under name. Host modules
// defined so far are instantiated first. An empty name leaves the instance
// anonymous.
func (s *Store) Instantiate(ctx context.Context, mod *Module, name string) (*Instance, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if mod == nil || mod.store != s {
		return nil, errors.InvalidArgument(errors.PhaseRuntime, "module was not compiled in this store")
	}
	if err := s.instantiateHosts(ctx); err != nil {
		return nil, err
	}

	m, err := s.runtime.InstantiateModule(ctx, mod.compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, errors.Instantiation(name, err)
	}

	Logger().Debug("module instantiated", zap.String("name", name))
	return &Instance{store: s, module: m, name: name}, nil
}

// Close closes the wazero runtime and releases the store's engine handle.
// Traps created in the store remain valid.
func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true
	s.engine.forget(s)

	err := s.runtime.Close(ctx)
	if !s.engine.heap.StoreDelete(s.handle) {
		Logger().Debug("store handle already released", zap.Uint32("handle", uint32(s.handle)))
	}
	return err
}
