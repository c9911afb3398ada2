package syscalls

import (
	"context"

	"github.com/wippyai/wasm-kernel/errors"
)

// Result encodes a handler outcome the way guests receive it: the value on
// success, the negated errno on failure.
func Result(v int64, err error) int64 {
	if err != nil {
		return -int64(errors.ErrnoOf(err))
	}
	return v
}

// Invoke runs system call n with raw register-style arguments and returns the
// encoded result. Arguments are read in the order of the guest ABI; missing
// ones are zero. Invoking _exit records the status and returns 0.
func (c Caller) Invoke(ctx context.Context, n Number, args ...uint64) int64 {
	arg := func(i int) uint64 {
		if i < len(args) {
			return args[i]
		}
		return 0
	}

	switch n {
	case SysOpen:
		fd, err := c.Open(ctx, uint32(arg(0)), int32(arg(1)), uint32(arg(2)))
		return Result(int64(fd), err)
	case SysClose:
		return Result(0, c.Close(ctx, int32(arg(0))))
	case SysRead:
		got, err := c.Read(ctx, int32(arg(0)), uint32(arg(1)), uint32(arg(2)))
		return Result(int64(got), err)
	case SysWrite:
		got, err := c.Write(ctx, int32(arg(0)), uint32(arg(1)), uint32(arg(2)))
		return Result(int64(got), err)
	case SysLseek:
		off, err := c.Lseek(ctx, int32(arg(0)), int64(arg(1)), int32(arg(2)))
		return Result(off, err)
	case SysDup2:
		fd, err := c.Dup2(ctx, int32(arg(0)), int32(arg(1)))
		return Result(int64(fd), err)
	case SysExit:
		c.Exit(ctx, int32(arg(0)))
		return 0
	default:
		return -int64(errors.ENOSYS)
	}
}
