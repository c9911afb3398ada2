// Package syscalls implements the file system calls: open, close, read,
// write, lseek and dup2, plus _exit.
//
// Every handler validates its arguments against the calling process's
// descriptor table and address space before doing any I/O. Failures are
// structured errors whose Errno is what a guest sees, negated.
package syscalls

import (
	"context"
	stderrors "errors"
	"math"

	"go.uber.org/zap"

	wasmkernel "github.com/wippyai/wasm-kernel"
	"github.com/wippyai/wasm-kernel/errors"
	"github.com/wippyai/wasm-kernel/proc"
	"github.com/wippyai/wasm-kernel/resource"
	"github.com/wippyai/wasm-kernel/uio"
)

// PathMax is the size of the buffer a path is copied into, terminator included.
const PathMax = 1024

// Caller issues system calls for one process. Mem is the address space that
// pointer arguments refer to. A nil Proc is taken from the call context.
type Caller struct {
	Proc *proc.Process
	Mem  wasmkernel.Memory
}

// Open opens the NUL-terminated path at pathPtr and binds it to the lowest
// free descriptor.
func (c Caller) Open(ctx context.Context, pathPtr uint32, flags int32, mode uint32) (int32, error) {
	p, err := c.process(ctx, errors.OpOpen)
	if err != nil {
		return -1, err
	}

	path, err := uio.CopyInStr(c.Mem, pathPtr, PathMax)
	if err != nil {
		return -1, c.fail(p, SysOpen, withOp(err, errors.OpOpen), zap.Uint32("path_ptr", pathPtr))
	}

	vn, err := p.VFS().Open(path, int(flags), mode)
	if err != nil {
		return -1, c.fail(p, SysOpen, withPath(withOp(err, errors.OpOpen), path), zap.String("path", path))
	}

	h := resource.NewHandle(vn, path, int(flags))
	fd, err := p.Files().Allocate(h)
	if err != nil {
		if cerr := h.Discard(); cerr != nil {
			p.Logger().Warn("close backing resource", zap.String("path", path), zap.Error(cerr))
		}
		return -1, c.fail(p, SysOpen, tableError(errors.OpOpen, -1, err, p.Files().Cap()), zap.String("path", path))
	}

	p.Logger().Debug("syscall",
		zap.Stringer("call", SysOpen),
		zap.String("path", path),
		zap.Int32("flags", flags),
		zap.Int("fd", fd))
	return int32(fd), nil
}

// Close unbinds fd. The backing resource is released when no other
// descriptor refers to it. Release failures are logged, not returned.
func (c Caller) Close(ctx context.Context, fd int32) error {
	p, err := c.process(ctx, errors.OpClose)
	if err != nil {
		return err
	}

	if _, err := p.Files().Remove(int(fd)); err != nil {
		return c.fail(p, SysClose, errors.BadDescriptor(errors.OpClose, fd), zap.Int32("fd", fd))
	}

	p.Logger().Debug("syscall", zap.Stringer("call", SysClose), zap.Int32("fd", fd))
	return nil
}

// Read transfers up to n bytes from fd into the buffer at buf.
func (c Caller) Read(ctx context.Context, fd int32, buf, n uint32) (uint32, error) {
	return c.transfer(ctx, SysRead, fd, buf, n)
}

// Write transfers n bytes from the buffer at buf to fd.
func (c Caller) Write(ctx context.Context, fd int32, buf, n uint32) (uint32, error) {
	return c.transfer(ctx, SysWrite, fd, buf, n)
}

func (c Caller) transfer(ctx context.Context, call Number, fd int32, buf, n uint32) (uint32, error) {
	op := errors.OpRead
	if call == SysWrite {
		op = errors.OpWrite
	}

	p, err := c.process(ctx, op)
	if err != nil {
		return 0, err
	}

	h, err := p.Files().Get(int(fd))
	if err != nil {
		return 0, c.fail(p, call, errors.BadDescriptor(op, fd), zap.Int32("fd", fd))
	}
	defer h.Return()

	if call == SysRead && !h.CanRead() {
		return 0, c.fail(p, call, errors.AccessMode(op, fd, "descriptor is write-only"), zap.Int32("fd", fd))
	}
	if call == SysWrite && !h.CanWrite() {
		return 0, c.fail(p, call, errors.AccessMode(op, fd, "descriptor is read-only"), zap.Int32("fd", fd))
	}
	if call == SysWrite && buf == 0 && n > 0 {
		return 0, c.fail(p, call, errors.Fault(op, buf, n), zap.Int32("fd", fd))
	}
	if n > math.MaxInt32 {
		return 0, c.fail(p, call, errors.InvalidArgument(op, "length %d out of range", n), zap.Int32("fd", fd))
	}
	if n == 0 {
		return 0, nil
	}

	view, err := uio.UserBuffer(c.Mem, op, buf, n)
	if err != nil {
		return 0, c.fail(p, call, withFd(err, fd), zap.Int32("fd", fd))
	}

	var done int
	if call == SysRead {
		done, err = h.Read(view)
	} else {
		done, err = h.Write(view)
	}
	if err != nil {
		return 0, c.fail(p, call, errors.IO(op, fd, err), zap.Int32("fd", fd))
	}

	p.Logger().Debug("syscall",
		zap.Stringer("call", call),
		zap.Int32("fd", fd),
		zap.Uint32("len", n),
		zap.Int("result", done))
	return uint32(done), nil
}

// Lseek repositions the cursor of fd and returns the new offset.
func (c Caller) Lseek(ctx context.Context, fd int32, pos int64, whence int32) (int64, error) {
	p, err := c.process(ctx, errors.OpLseek)
	if err != nil {
		return -1, err
	}

	h, err := p.Files().Get(int(fd))
	if err != nil {
		return -1, c.fail(p, SysLseek, errors.BadDescriptor(errors.OpLseek, fd), zap.Int32("fd", fd))
	}
	defer h.Return()

	offset, err := h.Seek(pos, int(whence))
	if err != nil {
		return -1, c.fail(p, SysLseek, seekError(fd, pos, whence, err), zap.Int32("fd", fd))
	}

	p.Logger().Debug("syscall",
		zap.Stringer("call", SysLseek),
		zap.Int32("fd", fd),
		zap.Int64("pos", pos),
		zap.Int32("whence", whence),
		zap.Int64("result", offset))
	return offset, nil
}

// Dup2 makes newfd refer to the same open file as oldfd and returns newfd.
// Whatever newfd referred to before is closed first.
func (c Caller) Dup2(ctx context.Context, oldfd, newfd int32) (int32, error) {
	p, err := c.process(ctx, errors.OpDup2)
	if err != nil {
		return -1, err
	}

	if _, err := p.Files().Dup(int(oldfd), int(newfd)); err != nil {
		e := errors.New(errors.OpDup2, errors.KindBadDescriptor).
			Fd(oldfd).
			Value(newfd).
			Detail("duplicate onto %d", newfd).
			Build()
		return -1, c.fail(p, SysDup2, e, zap.Int32("oldfd", oldfd), zap.Int32("newfd", newfd))
	}

	p.Logger().Debug("syscall",
		zap.Stringer("call", SysDup2),
		zap.Int32("oldfd", oldfd),
		zap.Int32("newfd", newfd))
	return newfd, nil
}

// Exit records the exit status of the process. Stopping the program is up
// to the caller.
func (c Caller) Exit(ctx context.Context, code int32) {
	p, err := c.process(ctx, errors.OpExit)
	if err != nil {
		return
	}
	p.Exit(code)
}

func (c Caller) process(ctx context.Context, op errors.Op) (*proc.Process, error) {
	if c.Proc != nil {
		return c.Proc, nil
	}
	if p, ok := proc.FromContext(ctx); ok {
		return p, nil
	}
	return nil, errors.New(op, errors.KindInvalidArgument).Detail("no process in context").Build()
}

func (c Caller) fail(p *proc.Process, call Number, err error, fields ...zap.Field) error {
	if ce := p.Logger().Check(zap.DebugLevel, "syscall failed"); ce != nil {
		ce.Write(append(fields,
			zap.Stringer("call", call),
			zap.Stringer("errno", errors.ErrnoOf(err)),
			zap.Error(err))...)
	}
	return err
}

func tableError(op errors.Op, fd int32, err error, capacity int) error {
	if stderrors.Is(err, resource.ErrTooManyFiles) {
		return errors.TooManyFiles(op, capacity)
	}
	return errors.BadDescriptor(op, fd)
}

func seekError(fd int32, pos int64, whence int32, err error) error {
	switch {
	case stderrors.Is(err, resource.ErrNotSeekable):
		return errors.NotSeekable(errors.OpLseek, fd)
	case stderrors.Is(err, resource.ErrInvalidWhence):
		return errors.New(errors.OpLseek, errors.KindInvalidArgument).Fd(fd).Value(whence).Detail("unknown whence %d", whence).Build()
	case stderrors.Is(err, resource.ErrNegativeOffset):
		return errors.New(errors.OpLseek, errors.KindInvalidArgument).Fd(fd).Value(pos).Detail("resulting offset is negative").Build()
	case stderrors.Is(err, resource.ErrOffsetOverflow):
		return errors.New(errors.OpLseek, errors.KindInvalidArgument).Fd(fd).Value(pos).Detail("resulting offset overflows").Build()
	default:
		return errors.IO(errors.OpLseek, fd, err)
	}
}

// withOp returns err re-labelled with op when it is a structured error.
func withOp(err error, op errors.Op) error {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		return errors.Wrap(op, errors.KindIO, err, "")
	}
	out := *e
	out.Op = op
	return &out
}

func withPath(err error, path string) error {
	var e *errors.Error
	if stderrors.As(err, &e) && e.Path == "" {
		out := *e
		out.Path = path
		return &out
	}
	return err
}

func withFd(err error, fd int32) error {
	var e *errors.Error
	if !stderrors.As(err, &e) {
		return err
	}
	return errors.New(e.Op, e.Kind).Fd(fd).Value(e.Value).Detail("%s", e.Detail).Cause(e.Cause).Build()
}
