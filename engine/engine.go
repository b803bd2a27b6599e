package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/wasmtrap/errors"
	"github.com/wippyai/wasmtrap/internal/native"
)

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// MaxObjects caps the number of live engine objects (stores, traps,
	// frames, vectors). Allocations past the cap fail. 0 means unlimited.
	MaxObjects int

	// Compiler selects wazero's optimizing compiler instead of the
	// interpreter. Backtraces are captured through function listeners on
	// either backend.
	Compiler bool

	// CloseOnContextDone aborts running calls when their context is done.
	// The call then fails with a *sys.ExitError, not a trap.
	CloseOnContextDone bool
}

// Engine owns the object heap shared by all of its stores. Traps and frames
// are allocated on that heap, so they stay valid after the store that
// produced them is closed.
type Engine struct {
	heap       *native.Heap
	runtimeCfg wazero.RuntimeConfig
	stores     map[*Store]struct{}
	mu         sync.Mutex
	closed     bool
}

// New creates an engine with the default configuration.
func New(ctx context.Context) (*Engine, error) {
	return NewWithConfig(ctx, nil)
}

// NewWithConfig creates an engine with custom configuration.
func NewWithConfig(_ context.Context, cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.MaxObjects < 0 {
		return nil, errors.InvalidArgument(errors.PhaseStore, "MaxObjects must not be negative, got %d", cfg.MaxObjects)
	}

	runtimeCfg := wazero.NewRuntimeConfigInterpreter()
	if cfg.Compiler {
		runtimeCfg = wazero.NewRuntimeConfig()
	}
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	if cfg.CloseOnContextDone {
		runtimeCfg = runtimeCfg.WithCloseOnContextDone(true)
	}

	return &Engine{
		heap:       native.NewHeap(cfg.MaxObjects),
		runtimeCfg: runtimeCfg,
		stores:     make(map[*Store]struct{}),
	}, nil
}

// Heap returns the engine's object heap.
func (e *Engine) Heap() *native.Heap {
	return e.heap
}

// NewStore creates an execution session with its own wazero runtime.
func (e *Engine) NewStore(ctx context.Context) (*Store, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, errors.UseAfterFree(errors.PhaseStore, "engine")
	}

	s := &Store{
		engine:  e,
		runtime: wazero.NewRuntimeWithConfig(ctx, e.runtimeCfg),
		hosts:   make(map[string]*hostModule),
	}
	s.handle = e.heap.StoreNew(s)
	if s.handle == 0 {
		_ = s.runtime.Close(ctx)
		return nil, errors.AllocationFailed(errors.PhaseStore, "store")
	}
	e.stores[s] = struct{}{}

	Logger().Debug("store created", zap.Uint32("handle", uint32(s.handle)))
	return s, nil
}

func (e *Engine) forget(s *Store) {
	e.mu.Lock()
	delete(e.stores, s)
	e.mu.Unlock()
}

// Close closes every open store and releases the heap. Objects still alive
// at this point were never released by their owner; they are logged and
// freed.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	stores := make([]*Store, 0, len(e.stores))
	for s := range e.stores {
		stores = append(stores, s)
	}
	e.mu.Unlock()

	var firstErr error
	for _, s := range stores {
		if err := s.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if live := e.heap.Live(); live > 0 {
		Logger().Warn("engine closed with unreleased objects",
			zap.Int("traps", e.heap.LiveOf(native.TypeTrap)),
			zap.Int("frames", e.heap.LiveOf(native.TypeFrame)),
			zap.Int("frame_vectors", e.heap.LiveOf(native.TypeFrameVec)),
			zap.Int("byte_vectors", e.heap.LiveOf(native.TypeByteVec)))
	}
	if err := e.heap.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
