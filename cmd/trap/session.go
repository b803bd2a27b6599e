package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasmtrap/engine"
	"github.com/wippyai/wasmtrap/internal/wasmbuild"
	"github.com/wippyai/wasmtrap/trap"
)

// demos are modules the CLI can run without a file.
var demos = map[string]func() []byte{
	"unreachable": func() []byte { return wasmbuild.Unreachable("demo") },
	"anonymous":   wasmbuild.Anonymous,
	"arith":       func() []byte { return wasmbuild.Arith("arith") },
	"host":        func() []byte { return wasmbuild.HostCaller("caller", "host", "fail") },
}

func demoNames() []string {
	names := make([]string, 0, len(demos))
	for name := range demos {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func loadBinary(wasmFile, demo string) ([]byte, string, error) {
	if demo != "" {
		build, ok := demos[demo]
		if !ok {
			return nil, "", fmt.Errorf("unknown demo %q (have %s)", demo, strings.Join(demoNames(), ", "))
		}
		return build(), "demo:" + demo, nil
	}
	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return nil, "", fmt.Errorf("read file: %w", err)
	}
	return data, wasmFile, nil
}

// session is one engine, store and instance.
type session struct {
	engine *engine.Engine
	store  *engine.Store
	inst   *engine.Instance
	name   string
	funcs  []*engine.Func
}

func openSession(ctx context.Context, bin []byte, name string) (*session, error) {
	e, err := engine.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	s := &session{engine: e}

	if s.store, err = e.NewStore(ctx); err != nil {
		s.Close(ctx)
		return nil, fmt.Errorf("create store: %w", err)
	}
	if err := s.store.DefineFunc("host", "fail", nil, nil, hostFail); err != nil {
		s.Close(ctx)
		return nil, err
	}

	mod, err := s.store.CompileModule(ctx, bin)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	if name == "" {
		name = mod.Name()
	}
	if s.inst, err = s.store.Instantiate(ctx, mod, name); err != nil {
		s.Close(ctx)
		return nil, err
	}
	s.name = name
	if s.name == "" {
		s.name = "<unnamed>"
	}

	for _, export := range s.inst.Exports() {
		fn, err := s.inst.Func(export)
		if err != nil {
			s.Close(ctx)
			return nil, err
		}
		s.funcs = append(s.funcs, fn)
	}
	return s, nil
}

// hostFail raises a host-created trap in the calling wasm code.
func hostFail(_ context.Context, store *engine.Store, _ []uint64) ([]uint64, error) {
	tr, err := trap.New(store, "host.fail called")
	if err != nil {
		return nil, err
	}
	return nil, tr
}

// pick returns the named function, or a common entry point when name is
// empty.
func (s *session) pick(name string) *engine.Func {
	find := func(n string) *engine.Func {
		for _, fn := range s.funcs {
			if fn.Name() == n {
				return fn
			}
		}
		return nil
	}
	if name != "" {
		return find(name)
	}
	for _, n := range []string{"_start", "run", "main"} {
		if fn := find(n); fn != nil {
			return fn
		}
	}
	if len(s.funcs) == 1 {
		return s.funcs[0]
	}
	return nil
}

func (s *session) call(ctx context.Context, fn *engine.Func, argStr string) (string, error) {
	args, err := parseArgs(fn.ParamTypes(), argStr)
	if err != nil {
		return "", err
	}
	results, err := fn.Call(ctx, args...)
	if err != nil {
		return "", err
	}
	return formatResults(fn.ResultTypes(), results), nil
}

func (s *session) Close(ctx context.Context) {
	if s.inst != nil {
		s.inst.Close(ctx)
	}
	if s.store != nil {
		s.store.Close(ctx)
	}
	s.engine.Close(ctx)
}

func parseArgs(types []api.ValueType, argStr string) ([]uint64, error) {
	var fields []string
	if strings.TrimSpace(argStr) != "" {
		fields = strings.Split(argStr, ",")
	}
	if len(fields) != len(types) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(types), len(fields))
	}

	args := make([]uint64, len(types))
	for i, t := range types {
		v := strings.TrimSpace(fields[i])
		switch t {
		case api.ValueTypeI32:
			n, err := strconv.ParseInt(v, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			args[i] = api.EncodeI32(int32(n))
		case api.ValueTypeI64:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			args[i] = api.EncodeI64(n)
		case api.ValueTypeF32:
			f, err := strconv.ParseFloat(v, 32)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			args[i] = api.EncodeF32(float32(f))
		case api.ValueTypeF64:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			args[i] = api.EncodeF64(f)
		default:
			return nil, fmt.Errorf("argument %d: unsupported type %s", i, api.ValueTypeName(t))
		}
	}
	return args, nil
}

func formatResults(types []api.ValueType, results []uint64) string {
	if len(results) == 0 {
		return "()"
	}
	out := make([]string, len(results))
	for i, r := range results {
		switch types[i] {
		case api.ValueTypeI32:
			out[i] = strconv.FormatInt(int64(api.DecodeI32(r)), 10)
		case api.ValueTypeI64:
			out[i] = strconv.FormatInt(int64(r), 10)
		case api.ValueTypeF32:
			out[i] = strconv.FormatFloat(float64(api.DecodeF32(r)), 'g', -1, 32)
		case api.ValueTypeF64:
			out[i] = strconv.FormatFloat(api.DecodeF64(r), 'g', -1, 64)
		default:
			out[i] = fmt.Sprintf("%#x", r)
		}
	}
	return strings.Join(out, ", ")
}

func formatSignature(fn *engine.Func) string {
	params := make([]string, 0, len(fn.ParamTypes()))
	for _, t := range fn.ParamTypes() {
		params = append(params, api.ValueTypeName(t))
	}
	sig := fn.Name() + "(" + strings.Join(params, ", ") + ")"

	results := make([]string, 0, len(fn.ResultTypes()))
	for _, t := range fn.ResultTypes() {
		results = append(results, api.ValueTypeName(t))
	}
	if len(results) > 0 {
		sig += " -> " + strings.Join(results, ", ")
	}
	return sig
}
