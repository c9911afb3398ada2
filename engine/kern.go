package engine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"

	"github.com/wippyai/wasm-kernel/syscalls"
)

// KernelModule is the import module name of the system call interface.
const KernelModule = "kern"

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

type kernFunc struct {
	call    syscalls.Number
	params  []api.ValueType
	results []api.ValueType
}

var kernFuncs = []kernFunc{
	{syscalls.SysOpen, []api.ValueType{i32, i32, i32}, []api.ValueType{i32}},
	{syscalls.SysClose, []api.ValueType{i32}, []api.ValueType{i32}},
	{syscalls.SysRead, []api.ValueType{i32, i32, i32}, []api.ValueType{i32}},
	{syscalls.SysWrite, []api.ValueType{i32, i32, i32}, []api.ValueType{i32}},
	{syscalls.SysLseek, []api.ValueType{i32, i64, i32}, []api.ValueType{i64}},
	{syscalls.SysDup2, []api.ValueType{i32, i32}, []api.ValueType{i32}},
}

// InstantiateKernel instantiates the "kern" host module in r.
func InstantiateKernel(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	builder := r.NewHostModuleBuilder(KernelModule)

	for _, f := range kernFuncs {
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(syscallFunc(f.call, f.results[0]), f.params, f.results).
			WithParameterNames(paramNames(f.call)...).
			Export(f.call.String())
	}

	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(exitFunc), []api.ValueType{i32}, nil).
		WithParameterNames("code").
		Export(syscalls.SysExit.String())

	return builder.Instantiate(ctx)
}

func syscallFunc(call syscalls.Number, result api.ValueType) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		c := syscalls.Caller{Mem: &WazeroMemory{mem: mod.Memory()}}
		r := c.Invoke(ctx, call, stack...)
		if result == api.ValueTypeI64 {
			stack[0] = api.EncodeI64(r)
		} else {
			stack[0] = api.EncodeI32(int32(r))
		}
		debugf("kern.%s -> %d", call, r)
	}
}

func exitFunc(ctx context.Context, mod api.Module, stack []uint64) {
	code := api.DecodeI32(stack[0])
	syscalls.Caller{}.Exit(ctx, code)

	// Nothing may run in the guest after _exit.
	_ = mod.CloseWithExitCode(ctx, uint32(code))
	panic(sys.NewExitError(uint32(code)))
}

func paramNames(call syscalls.Number) []string {
	switch call {
	case syscalls.SysOpen:
		return []string{"path", "flags", "mode"}
	case syscalls.SysClose:
		return []string{"fd"}
	case syscalls.SysRead, syscalls.SysWrite:
		return []string{"fd", "buf", "len"}
	case syscalls.SysLseek:
		return []string{"fd", "pos", "whence"}
	case syscalls.SysDup2:
		return []string{"oldfd", "newfd"}
	default:
		return nil
	}
}
