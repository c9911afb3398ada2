package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
)

// StartFunction is the export that enters a guest program.
const StartFunction = "_start"

var (
	ErrNoMemory     = errors.New("module does not export a memory")
	ErrNoEntryPoint = errors.New("module does not export " + StartFunction)
)

// WazeroEngine owns a wazero runtime with the kern host module.
type WazeroEngine struct {
	runtime      wazero.Runtime
	kernInitMu   sync.Mutex
	kernInitDone atomic.Bool
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// CloseOnContextDone stops running guests when their context is cancelled.
	CloseOnContextDone bool
}

// NewWazeroEngine creates a new wazero-based engine
func NewWazeroEngine(ctx context.Context) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, nil)
}

// NewWazeroEngineWithConfig creates a new engine with custom configuration
func NewWazeroEngineWithConfig(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()

	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.CloseOnContextDone {
			runtimeCfg = runtimeCfg.WithCloseOnContextDone(true)
		}
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	return &WazeroEngine{runtime: runtime}, nil
}

// Runtime returns the underlying wazero runtime.
func (e *WazeroEngine) Runtime() wazero.Runtime {
	return e.runtime
}

// Close releases the runtime and every module instantiated in it.
func (e *WazeroEngine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// InitKernel instantiates the kern host module for this engine's runtime.
// Safe for concurrent calls from multiple modules sharing the same engine.
func (e *WazeroEngine) InitKernel(ctx context.Context) error {
	if e.kernInitDone.Load() {
		return nil
	}

	e.kernInitMu.Lock()
	defer e.kernInitMu.Unlock()

	if e.kernInitDone.Load() {
		return nil
	}

	if e.runtime.Module(KernelModule) != nil {
		e.kernInitDone.Store(true)
		return nil
	}

	if _, err := InstantiateKernel(ctx, e.runtime); err != nil {
		return fmt.Errorf("instantiate %s: %w", KernelModule, err)
	}
	e.kernInitDone.Store(true)
	return nil
}

// Compile compiles a core module.
func (e *WazeroEngine) Compile(ctx context.Context, wasmBytes []byte) (*WazeroModule, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("compile module: %w", err)
	}
	return &WazeroModule{engine: e, compiled: compiled}, nil
}

// WazeroModule is a compiled guest program.
type WazeroModule struct {
	engine   *WazeroEngine
	compiled wazero.CompiledModule
}

// Imports returns the "module.name" pairs the program imports.
func (m *WazeroModule) Imports() []string {
	defs := m.compiled.ImportedFunctions()
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		mod, name, _ := d.Import()
		out = append(out, mod+"."+name)
	}
	return out
}

// Close releases the compiled code.
func (m *WazeroModule) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

// Instantiate creates an instance without running its start functions.
// The module must export a memory, which serves as its address space.
func (m *WazeroModule) Instantiate(ctx context.Context) (*WazeroInstance, error) {
	if err := m.engine.InitKernel(ctx); err != nil {
		return nil, err
	}

	cfg := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions()

	mod, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, cfg)
	if err != nil {
		return nil, fmt.Errorf("instantiate module: %w", err)
	}

	mem := mod.Memory()
	if mem == nil {
		_ = mod.Close(ctx)
		return nil, ErrNoMemory
	}

	return &WazeroInstance{
		module: mod,
		memory: &WazeroMemory{mem: mem},
	}, nil
}

// WazeroInstance is an instantiated guest program.
type WazeroInstance struct {
	module api.Module
	memory *WazeroMemory
}

// Memory returns the instance's linear memory.
func (i *WazeroInstance) Memory() *WazeroMemory {
	return i.memory
}

// Module returns the underlying wazero module.
func (i *WazeroInstance) Module() api.Module {
	return i.module
}

// Start calls the entry point and returns the program's exit code.
// A program that returns from its entry point exits with 0. A trap is
// returned as an error.
func (i *WazeroInstance) Start(ctx context.Context) (uint32, error) {
	fn := i.module.ExportedFunction(StartFunction)
	if fn == nil {
		return 0, ErrNoEntryPoint
	}

	_, err := fn.Call(ctx)
	if err != nil {
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 0, err
	}
	return 0, nil
}

// Close closes the instance.
func (i *WazeroInstance) Close(ctx context.Context) error {
	return i.module.Close(ctx)
}

// WazeroMemory adapts a wazero memory to the kernel's Memory interface.
type WazeroMemory struct {
	mem api.Memory
}

// NewWazeroMemory wraps mem.
func NewWazeroMemory(mem api.Memory) *WazeroMemory {
	return &WazeroMemory{mem: mem}
}

func (m *WazeroMemory) Read(offset uint32, length uint32) ([]byte, error) {
	if m.mem == nil {
		return nil, ErrNoMemory
	}
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("read out of bounds: offset=%d, length=%d", offset, length)
	}
	return data, nil
}

func (m *WazeroMemory) Write(offset uint32, data []byte) error {
	if m.mem == nil {
		return ErrNoMemory
	}
	ok := m.mem.Write(offset, data)
	if !ok {
		return fmt.Errorf("write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

func (m *WazeroMemory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}
