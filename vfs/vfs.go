// Package vfs provides the backing resources that descriptors refer to.
//
// Regular files live on a go-billy filesystem, in memory or rooted in a host
// directory. Character devices are mounted by name and opened as "name:",
// for example "con:" for the console.
package vfs

import (
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/wippyai/wasm-kernel/errors"
)

// Open flags as seen by guest programs.
const (
	O_RDONLY  = 0
	O_WRONLY  = 1
	O_RDWR    = 2
	O_ACCMODE = 3
	O_CREAT   = 4
	O_EXCL    = 8
	O_TRUNC   = 16
	O_APPEND  = 32

	oValid = O_ACCMODE | O_CREAT | O_EXCL | O_TRUNC | O_APPEND
)

// Seek reference points.
const (
	SEEK_SET = 0
	SEEK_CUR = 1
	SEEK_END = 2
)

// Console and null device names.
const (
	DeviceConsole = "con"
	DeviceNull    = "null"
)

// VFS resolves paths to vnodes.
type VFS struct {
	fs      billy.Filesystem
	devices map[string]Device
	mu      sync.RWMutex
}

// New creates a VFS over the given filesystem with the null device mounted.
func New(bfs billy.Filesystem) *VFS {
	return &VFS{
		fs:      bfs,
		devices: map[string]Device{DeviceNull: Null{}},
	}
}

// NewMemory creates a VFS over an empty in-memory filesystem.
func NewMemory() *VFS {
	return New(memfs.New())
}

// NewOS creates a VFS rooted at a host directory. Paths cannot escape root.
func NewOS(root string) *VFS {
	return New(osfs.New(root, osfs.WithBoundOS()))
}

// Filesystem returns the underlying billy filesystem.
func (v *VFS) Filesystem() billy.Filesystem {
	return v.fs
}

// Mount makes dev reachable as "name:". A previous device of that name is replaced.
func (v *VFS) Mount(name string, dev Device) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.devices[name] = dev
}

// Unmount removes a device.
func (v *VFS) Unmount(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.devices, name)
}

// ValidFlags checks open flags. An access mode of 3 and unknown bits are invalid.
func ValidFlags(flags int) error {
	if flags&^oValid != 0 {
		return errors.New(errors.OpOpen, errors.KindInvalidArgument).Value(flags).Detail("unknown flags 0x%x", flags&^oValid).Build()
	}
	if flags&O_ACCMODE == O_ACCMODE {
		return errors.New(errors.OpOpen, errors.KindInvalidArgument).Value(flags).Detail("invalid access mode").Build()
	}
	return nil
}

// Open resolves p and opens it with the given flags. Mode supplies the
// permission bits of a newly created file.
func (v *VFS) Open(p string, flags int, mode uint32) (Vnode, error) {
	if err := ValidFlags(flags); err != nil {
		return nil, err
	}
	if p == "" {
		return nil, errors.New(errors.OpOpen, errors.KindNotFound).Detail("empty path").Build()
	}

	if name, ok := deviceName(p); ok {
		v.mu.RLock()
		dev, found := v.devices[name]
		v.mu.RUnlock()
		if !found {
			return nil, errors.New(errors.OpOpen, errors.KindNotFound).Path(p).Detail("no such device").Build()
		}
		return dev.Open(flags)
	}

	name := path.Clean("/" + p)[1:]
	if name == "" {
		return nil, errors.New(errors.OpOpen, errors.KindIsDirectory).Path(p).Build()
	}

	if info, err := v.fs.Stat(name); err == nil && info.IsDir() {
		return nil, errors.New(errors.OpOpen, errors.KindIsDirectory).Path(p).Build()
	}

	perm := fs.FileMode(mode) & fs.ModePerm
	if perm == 0 {
		perm = 0o666
	}
	f, err := v.fs.OpenFile(name, osFlags(flags), perm)
	if err != nil {
		return nil, MapError(errors.OpOpen, p, err)
	}
	return newFileVnode(v.fs, f, name), nil
}

// deviceName reports whether p names a device ("con:"), returning the name.
func deviceName(p string) (string, bool) {
	i := strings.IndexByte(p, ':')
	if i <= 0 || i != len(p)-1 || strings.ContainsRune(p[:i], '/') {
		return "", false
	}
	return p[:i], true
}

// osFlags translates guest open flags. O_APPEND is not passed down:
// appending is positioned per write by the open-file handle.
func osFlags(flags int) int {
	var f int
	switch flags & O_ACCMODE {
	case O_RDONLY:
		f = os.O_RDONLY
	case O_WRONLY:
		f = os.O_WRONLY
	case O_RDWR:
		f = os.O_RDWR
	}
	if flags&O_CREAT != 0 {
		f |= os.O_CREATE
	}
	if flags&O_EXCL != 0 {
		f |= os.O_EXCL
	}
	if flags&O_TRUNC != 0 {
		f |= os.O_TRUNC
	}
	return f
}
