// Package wasmfn exposes exported WebAssembly functions to schema
// expressions.
//
// Every export whose parameters are i32 or i64 and which returns a single
// i32 or i64 becomes a function taking and returning integers. Calls on a
// module are serialized.
package wasmfn

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/bindecode/errors"
	"github.com/wippyai/bindecode/eval"
	"github.com/wippyai/bindecode/schema"
)

// Config holds configuration for module loading
type Config struct {
	// MemoryLimitPages caps guest memory in 64KB pages. 0 keeps the
	// runtime default.
	MemoryLimitPages uint32
}

// Module is an instantiated WebAssembly module.
type Module struct {
	ctx      context.Context
	runtime  wazero.Runtime
	instance api.Module
	funcs    map[string]eval.Function
	mu       sync.Mutex
}

// Load compiles and instantiates wasmBytes. ctx is used for every later
// function call.
func Load(ctx context.Context, wasmBytes []byte, cfg *Config) (*Module, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		rt.Close(ctx)
		return nil, errors.Wrap(errors.PhasePlugin, errors.KindInvalidSchema, err, "compile wasm module")
	}
	instance, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		rt.Close(ctx)
		return nil, errors.Wrap(errors.PhasePlugin, errors.KindInvalidSchema, err, "instantiate wasm module")
	}

	m := &Module{ctx: ctx, runtime: rt, instance: instance, funcs: make(map[string]eval.Function)}
	defs := compiled.ExportedFunctions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		def := defs[name]
		if !supported(def) {
			Logger().Debug("skipping export", zap.String("name", name))
			continue
		}
		m.funcs[name] = m.function(name, def)
	}
	Logger().Debug("wasm module loaded", zap.Strings("functions", m.Names()))
	return m, nil
}

func supported(def api.FunctionDefinition) bool {
	if len(def.ResultTypes()) != 1 {
		return false
	}
	for _, vt := range def.ParamTypes() {
		if !integer(vt) {
			return false
		}
	}
	return integer(def.ResultTypes()[0])
}

func integer(vt api.ValueType) bool {
	return vt == api.ValueTypeI32 || vt == api.ValueTypeI64
}

func (m *Module) function(name string, def api.FunctionDefinition) eval.Function {
	params := def.ParamTypes()
	result := def.ResultTypes()[0]
	return func(args ...any) (any, error) {
		if len(args) != len(params) {
			return nil, fmt.Errorf("%s takes %d arguments, got %d", name, len(params), len(args))
		}
		stack := make([]uint64, len(args))
		for i, arg := range args {
			n, ok := eval.ToInt(arg)
			if !ok {
				return nil, fmt.Errorf("%s: argument %d: expected integer, got %T", name, i, arg)
			}
			if params[i] == api.ValueTypeI32 {
				stack[i] = api.EncodeI32(int32(n))
			} else {
				stack[i] = api.EncodeI64(n)
			}
		}

		m.mu.Lock()
		res, err := m.instance.ExportedFunction(name).Call(m.ctx, stack...)
		m.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if result == api.ValueTypeI32 {
			return int64(api.DecodeI32(res[0])), nil
		}
		return int64(res[0]), nil
	}
}

// Names returns the exposed function names.
func (m *Module) Names() []string {
	names := make([]string, 0, len(m.funcs))
	for name := range m.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Functions returns the exposed functions.
func (m *Module) Functions() map[string]eval.Function {
	return m.funcs
}

// Plugin returns a plugin registering the functions in a schema module.
func (m *Module) Plugin() schema.Plugin {
	return func(sm *schema.Module) error {
		return sm.RegisterFunctions(m.funcs)
	}
}

// Close releases the runtime.
func (m *Module) Close(ctx context.Context) error {
	return m.runtime.Close(ctx)
}
