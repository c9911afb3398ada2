package runtime

import (
	"context"
	stderrors "errors"
	"path"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/wasm-kernel/engine"
	"github.com/wippyai/wasm-kernel/errors"
	"github.com/wippyai/wasm-kernel/proc"
	"github.com/wippyai/wasm-kernel/uio"
	"github.com/wippyai/wasm-kernel/vfs"
	"github.com/wippyai/wasm-kernel/wasm"
)

// ExitStatus is the outcome of a program run.
type ExitStatus struct {
	Name string
	PID  int32
	Code int32
}

type Runtime struct {
	engine *engine.WazeroEngine
	fs     *vfs.VFS
	logger *zap.Logger
	opts   options
}

// New creates a runtime that loads programs from fs and opens every path a
// guest names on it.
func New(ctx context.Context, fs *vfs.VFS, opts ...Option) (*Runtime, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	eng, err := engine.NewWazeroEngineWithConfig(ctx, &engine.Config{
		MemoryLimitPages: o.memoryLimitPages,
	})
	if err != nil {
		return nil, errors.Load("create engine", err)
	}
	if err := eng.InitKernel(ctx); err != nil {
		_ = eng.Close(ctx)
		return nil, errors.Load("init kernel", err)
	}

	for name, dev := range o.devices {
		fs.Mount(name, dev)
	}

	l := o.logger
	if l == nil {
		l = Logger()
	}

	return &Runtime{engine: eng, fs: fs, logger: l, opts: o}, nil
}

// VFS returns the file system programs run against.
func (r *Runtime) VFS() *vfs.VFS {
	return r.fs
}

// Close releases all runtime resources.
// All running programs must have returned before calling this.
func (r *Runtime) Close(ctx context.Context) error {
	return r.engine.Close(ctx)
}

// Exec runs the program at path in a new process and waits for it to exit.
// A program that returns from its entry point exits with 0.
func (r *Runtime) Exec(ctx context.Context, p string) (ExitStatus, error) {
	image, err := r.load(p)
	if err != nil {
		return ExitStatus{}, err
	}
	if err := wasm.CheckHeader(image); err != nil {
		return ExitStatus{}, errors.NotExecutable(p, err)
	}

	mod, err := r.engine.Compile(ctx, image)
	if err != nil {
		return ExitStatus{}, errors.NotExecutable(p, err)
	}
	defer mod.Close(ctx)

	process := proc.New(path.Base(p), r.fs, proc.Options{
		Logger:      r.logger,
		MaxFiles:    r.opts.maxFiles,
		BindStdin:   r.opts.bindStdin,
		StrictStdio: r.opts.strictStdio,
	})
	defer func() {
		if err := process.Teardown(); err != nil {
			process.Logger().Warn("process teardown", zap.Error(err))
		}
	}()
	status := ExitStatus{Name: process.Name(), PID: process.PID()}

	inst, err := mod.Instantiate(ctx)
	if err != nil {
		if stderrors.Is(err, engine.ErrNoMemory) {
			return status, errors.NotExecutable(p, err)
		}
		return status, errors.Load("instantiate "+p, err)
	}
	defer inst.Close(ctx)

	if err := process.InitStdio(); err != nil {
		return status, err
	}

	process.Logger().Debug("enter process", zap.String("path", p))
	code, err := inst.Start(proc.NewContext(ctx, process))
	if err != nil {
		if stderrors.Is(err, engine.ErrNoEntryPoint) {
			return status, errors.NotExecutable(p, err)
		}
		return status, errors.Load("run "+p, err)
	}

	status.Code = int32(code)
	if exitCode, ok := process.ExitStatus(); ok {
		status.Code = exitCode
	}
	process.Logger().Debug("process exited", zap.Int32("code", status.Code))
	return status, nil
}

// ExecAll runs each program concurrently in its own process. Statuses are
// returned in the order of paths. The first error is returned after every
// program has finished.
func (r *Runtime) ExecAll(ctx context.Context, paths ...string) ([]ExitStatus, error) {
	statuses := make([]ExitStatus, len(paths))
	var g errgroup.Group
	for i, p := range paths {
		g.Go(func() error {
			status, err := r.Exec(ctx, p)
			statuses[i] = status
			return err
		})
	}
	return statuses, g.Wait()
}

// load reads a whole program image through a read-only vnode.
func (r *Runtime) load(p string) ([]byte, error) {
	vn, err := r.fs.Open(p, vfs.O_RDONLY, 0)
	if err != nil {
		return nil, errors.Load("open "+p, err)
	}
	defer vn.Close()

	st, err := vn.Stat()
	if err != nil {
		return nil, errors.Load("stat "+p, err)
	}

	size := st.Size
	if size <= 0 {
		size = 4096
	}
	image := make([]byte, 0, size)
	chunk := make([]byte, 32*1024)
	for {
		u := uio.New(chunk, int64(len(image)), uio.Read)
		if err := vn.Read(u); err != nil {
			return nil, errors.Load("read "+p, err)
		}
		if u.Done() == 0 {
			return image, nil
		}
		image = append(image, chunk[:u.Done()]...)
	}
}
