package vfs

import (
	"io"
	"io/fs"
	"sync"

	"golang.org/x/term"

	"github.com/wippyai/wasm-kernel/errors"
	"github.com/wippyai/wasm-kernel/uio"
)

// Device is a named character device reachable as "name:".
type Device interface {
	Open(flags int) (Vnode, error)
}

type fder interface {
	Fd() uintptr
}

// Console is the system console: a reader for input and a writer for output.
type Console struct {
	in       io.Reader
	out      io.Writer
	terminal bool
	mu       sync.Mutex
}

// NewConsole creates a console reading from in and writing to out.
// Either side may be nil, in which case opening that direction fails.
func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{in: in, out: out}
	if f, ok := out.(fder); ok {
		c.terminal = term.IsTerminal(int(f.Fd()))
	}
	return c
}

// Open returns a console vnode for the requested access mode.
func (c *Console) Open(flags int) (Vnode, error) {
	mode := flags & O_ACCMODE
	if (mode == O_RDONLY || mode == O_RDWR) && c.in == nil {
		return nil, errors.New(errors.OpOpen, errors.KindNotFound).Path("con:").Detail("console has no input").Build()
	}
	if (mode == O_WRONLY || mode == O_RDWR) && c.out == nil {
		return nil, errors.New(errors.OpOpen, errors.KindNotFound).Path("con:").Detail("console has no output").Build()
	}
	return &consoleVnode{con: c}, nil
}

type consoleVnode struct {
	con *Console
}

func (v *consoleVnode) Read(u *uio.Uio) error {
	if u.Resid == 0 {
		return nil
	}
	n, err := v.con.in.Read(u.Remaining())
	u.Advance(n)
	if err != nil && err != io.EOF {
		return errors.New(errors.OpRead, errors.KindIO).Path("con:").Cause(err).Build()
	}
	return nil
}

func (v *consoleVnode) Write(u *uio.Uio) error {
	if u.Resid == 0 {
		return nil
	}
	v.con.mu.Lock()
	defer v.con.mu.Unlock()

	n, err := v.con.out.Write(u.Remaining())
	u.Advance(n)
	if err != nil {
		return errors.New(errors.OpWrite, errors.KindIO).Path("con:").Cause(err).Build()
	}
	return nil
}

func (v *consoleVnode) Stat() (Stat, error) {
	return Stat{
		Name:     "con:",
		Mode:     fs.ModeDevice | fs.ModeCharDevice | 0o620,
		Terminal: v.con.terminal,
	}, nil
}

func (v *consoleVnode) IsSeekable() bool { return false }
func (v *consoleVnode) Close() error     { return nil }

// Null discards writes and reads as empty.
type Null struct{}

func (Null) Open(int) (Vnode, error) {
	return nullVnode{}, nil
}

type nullVnode struct{}

func (nullVnode) Read(*uio.Uio) error { return nil }

func (nullVnode) Write(u *uio.Uio) error {
	u.Advance(u.Resid)
	return nil
}

func (nullVnode) Stat() (Stat, error) {
	return Stat{Name: "null:", Mode: fs.ModeDevice | fs.ModeCharDevice | 0o666}, nil
}

func (nullVnode) IsSeekable() bool { return false }
func (nullVnode) Close() error     { return nil }
