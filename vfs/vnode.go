package vfs

import (
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/go-git/go-billy/v5"

	"github.com/wippyai/wasm-kernel/errors"
	"github.com/wippyai/wasm-kernel/uio"
)

// Vnode is an opened backing resource. Transfers are positioned by the
// offset carried in the Uio; a Vnode keeps no cursor of its own.
type Vnode interface {
	Read(u *uio.Uio) error
	Write(u *uio.Uio) error
	Stat() (Stat, error)
	IsSeekable() bool
	Close() error
}

// Stat describes a vnode.
type Stat struct {
	Name     string
	Size     int64
	Mode     fs.FileMode
	Terminal bool
}

// IsDevice reports whether the vnode is a character device.
func (s Stat) IsDevice() bool {
	return s.Mode&fs.ModeCharDevice != 0
}

// fileVnode is a regular file on a billy filesystem.
type fileVnode struct {
	fs   billy.Basic
	file billy.File
	name string
	mu   sync.Mutex // serializes seek+write on the shared billy file
}

func newFileVnode(bfs billy.Basic, f billy.File, name string) *fileVnode {
	return &fileVnode{fs: bfs, file: f, name: name}
}

func (v *fileVnode) Read(u *uio.Uio) error {
	if u.Rw != uio.Read {
		return errors.InvalidArgument(errors.OpRead, "transfer direction is %s", u.Rw)
	}
	if u.Resid == 0 {
		return nil
	}
	n, err := v.file.ReadAt(u.Remaining(), u.Offset)
	u.Advance(n)
	if err != nil && err != io.EOF {
		return MapError(errors.OpRead, v.name, err)
	}
	return nil
}

func (v *fileVnode) Write(u *uio.Uio) error {
	if u.Rw != uio.Write {
		return errors.InvalidArgument(errors.OpWrite, "transfer direction is %s", u.Rw)
	}
	if u.Resid == 0 {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, err := v.file.Seek(u.Offset, io.SeekStart); err != nil {
		return MapError(errors.OpWrite, v.name, err)
	}
	n, err := v.file.Write(u.Remaining())
	u.Advance(n)
	if err != nil {
		return MapError(errors.OpWrite, v.name, err)
	}
	return nil
}

func (v *fileVnode) Stat() (Stat, error) {
	var info os.FileInfo
	var err error
	// os files and memfs files can stat themselves; fall back to a lookup by name
	if st, ok := v.file.(interface{ Stat() (os.FileInfo, error) }); ok {
		info, err = st.Stat()
	} else {
		info, err = v.fs.Stat(v.name)
	}
	if err != nil {
		return Stat{}, MapError(errors.OpLseek, v.name, err)
	}
	return Stat{
		Name: v.name,
		Size: info.Size(),
		Mode: info.Mode(),
	}, nil
}

func (v *fileVnode) IsSeekable() bool {
	return true
}

func (v *fileVnode) Close() error {
	if err := v.file.Close(); err != nil {
		return MapError(errors.OpClose, v.name, err)
	}
	return nil
}
