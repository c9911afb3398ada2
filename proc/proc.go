// Package proc models kernel processes: a PID, a descriptor table and the
// file system the process opens files on.
package proc

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-kernel/resource"
	"github.com/wippyai/wasm-kernel/vfs"
)

var nextPID atomic.Int32

// Options configures a new process.
type Options struct {
	// Logger overrides the package logger. Pid and name fields are added.
	Logger *zap.Logger

	// MaxFiles is the descriptor table capacity. Zero selects the default.
	MaxFiles int

	// BindStdin binds descriptor 0 to the console at bootstrap.
	BindStdin bool

	// StrictStdio makes a bootstrap failure abort process start.
	StrictStdio bool
}

// Process is one running program.
type Process struct {
	files  *resource.Table
	fs     *vfs.VFS
	logger *zap.Logger
	name   string
	opts   Options

	teardownOnce sync.Once
	teardownErr  error

	exitMu   sync.Mutex
	exitCode int32
	exited   bool

	pid int32
}

// New creates a process with an empty descriptor table.
func New(name string, fs *vfs.VFS, opts Options) *Process {
	pid := nextPID.Add(1)

	base := opts.Logger
	if base == nil {
		base = Logger()
	}

	p := &Process{
		files:  resource.NewTable(opts.MaxFiles),
		fs:     fs,
		name:   name,
		opts:   opts,
		pid:    pid,
		logger: base.With(zap.Int32("pid", pid), zap.String("name", name)),
	}
	p.files.Subscribe(&releaseLogger{p: p})
	return p
}

// PID returns the process identifier.
func (p *Process) PID() int32 { return p.pid }

// Name returns the program name.
func (p *Process) Name() string { return p.name }

// Files returns the descriptor table.
func (p *Process) Files() *resource.Table { return p.files }

// VFS returns the file system the process opens paths on.
func (p *Process) VFS() *vfs.VFS { return p.fs }

// Logger returns the process logger.
func (p *Process) Logger() *zap.Logger { return p.logger }

// Exit records the exit status. Only the first call takes effect.
func (p *Process) Exit(code int32) {
	p.exitMu.Lock()
	defer p.exitMu.Unlock()
	if p.exited {
		return
	}
	p.exited = true
	p.exitCode = code
	p.logger.Debug("process exit", zap.Int32("code", code))
}

// ExitStatus returns the recorded exit code and whether Exit was called.
func (p *Process) ExitStatus() (int32, bool) {
	p.exitMu.Lock()
	defer p.exitMu.Unlock()
	return p.exitCode, p.exited
}

// Teardown closes the descriptor table, releasing every open file.
// It runs once; later calls return the first result.
func (p *Process) Teardown() error {
	p.teardownOnce.Do(func() {
		open := p.files.Len()
		p.teardownErr = p.files.Close()
		p.logger.Debug("process teardown", zap.Int("open_descriptors", open))
	})
	return p.teardownErr
}

type releaseLogger struct {
	p *Process
}

func (r *releaseLogger) OnDescriptorEvent(e resource.Event) {
	if e.Type == resource.EventReleased && e.Err != nil {
		r.p.logger.Warn("close backing resource",
			zap.String("path", e.Handle.Path()),
			zap.Error(e.Err))
	}
}

type contextKey struct{}

// NewContext returns a context carrying p.
func NewContext(ctx context.Context, p *Process) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the process carried by ctx.
func FromContext(ctx context.Context) (*Process, bool) {
	p, ok := ctx.Value(contextKey{}).(*Process)
	return p, ok && p != nil
}
