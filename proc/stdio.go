package proc

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-kernel/errors"
	"github.com/wippyai/wasm-kernel/resource"
	"github.com/wippyai/wasm-kernel/vfs"
)

// Standard descriptors.
const (
	Stdin  = 0
	Stdout = 1
	Stderr = 2
)

const consolePath = vfs.DeviceConsole + ":"

// InitStdio binds the standard descriptors to the console before the program
// runs. Descriptors 1 and 2 get separate write-only opens, so they do not
// share a cursor. Descriptor 0 is bound read-only only with BindStdin.
//
// A descriptor that cannot be bound is left empty and the failure is logged,
// unless StrictStdio is set, in which case the first failure is returned.
func (p *Process) InitStdio() error {
	type stream struct {
		fd    int
		flags int
	}
	streams := []stream{{Stdout, vfs.O_WRONLY}, {Stderr, vfs.O_WRONLY}}
	if p.opts.BindStdin {
		streams = append([]stream{{Stdin, vfs.O_RDONLY}}, streams...)
	}

	for _, s := range streams {
		if err := p.bindConsole(s.fd, s.flags); err != nil {
			if p.opts.StrictStdio {
				return err
			}
			p.logger.Warn("standard stream unavailable", zap.Int("fd", s.fd), zap.Error(err))
		}
	}
	return nil
}

func (p *Process) bindConsole(fd, flags int) error {
	vn, err := p.fs.Open(consolePath, flags, 0)
	if err != nil {
		return errors.New(errors.OpBootstrap, errors.KindOf(err)).
			Fd(int32(fd)).
			Path(consolePath).
			Cause(err).
			Build()
	}

	h := resource.NewHandle(vn, consolePath, flags)
	if err := p.files.Install(fd, h); err != nil {
		_ = h.Discard()
		return errors.New(errors.OpBootstrap, errors.KindBadDescriptor).Fd(int32(fd)).Cause(err).Build()
	}
	return nil
}
