package vfs

import (
	"bytes"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-kernel/errors"
	"github.com/wippyai/wasm-kernel/uio"
)

func readAll(t *testing.T, vn Vnode, offset int64, n int) string {
	t.Helper()
	buf := make([]byte, n)
	u := uio.New(buf, offset, uio.Read)
	require.NoError(t, vn.Read(u))
	return string(buf[:u.Done()])
}

func writeAt(t *testing.T, vn Vnode, offset int64, data string) *uio.Uio {
	t.Helper()
	u := uio.New([]byte(data), offset, uio.Write)
	require.NoError(t, vn.Write(u))
	return u
}

func TestOpen_Flags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		flags int
		setup func(v *VFS)
		errno errors.Errno
	}{
		{name: "missing without create", flags: O_RDONLY, errno: errors.ENOENT},
		{name: "create", flags: O_WRONLY | O_CREAT},
		{
			name:  "exclusive on existing",
			flags: O_WRONLY | O_CREAT | O_EXCL,
			setup: func(v *VFS) { _ = util.WriteFile(v.Filesystem(), "f", []byte("x"), 0o644) },
			errno: errors.EEXIST,
		},
		{name: "bad access mode", flags: O_ACCMODE, errno: errors.EINVAL},
		{name: "unknown bits", flags: O_RDONLY | 0x400, errno: errors.EINVAL},
		{
			name:  "directory",
			flags: O_RDONLY,
			setup: func(v *VFS) { _ = v.Filesystem().MkdirAll("f", 0o755) },
			errno: errors.EISDIR,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := NewMemory()
			if tt.setup != nil {
				tt.setup(v)
			}

			vn, err := v.Open("f", tt.flags, 0o644)
			if tt.errno != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.errno, errors.ErrnoOf(err))
				assert.Nil(t, vn)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, vn.Close())
		})
	}
}

func TestFile_ReadWrite(t *testing.T) {
	t.Parallel()
	v := NewMemory()

	vn, err := v.Open("dir/a.txt", O_RDWR|O_CREAT, 0o644)
	require.NoError(t, err)
	defer vn.Close()

	u := writeAt(t, vn, 0, "hello world")
	assert.Equal(t, 0, u.Resid)
	assert.Equal(t, int64(11), u.Offset)

	assert.Equal(t, "hello", readAll(t, vn, 0, 5))
	assert.Equal(t, "world", readAll(t, vn, 6, 16))
	assert.Equal(t, "", readAll(t, vn, 11, 4), "read at end of file is empty")
	assert.Equal(t, "", readAll(t, vn, 100, 4), "read past end of file is empty")

	writeAt(t, vn, 6, "there")
	assert.Equal(t, "hello there", readAll(t, vn, 0, 32))

	st, err := vn.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(11), st.Size)
	assert.False(t, st.IsDevice())
	assert.True(t, vn.IsSeekable())
}

func TestFile_WritePastEndFillsZeros(t *testing.T) {
	t.Parallel()
	v := NewMemory()

	vn, err := v.Open("sparse", O_RDWR|O_CREAT, 0)
	require.NoError(t, err)
	defer vn.Close()

	writeAt(t, vn, 4, "x")
	assert.Equal(t, "\x00\x00\x00\x00x", readAll(t, vn, 0, 8))
}

func TestFile_Truncate(t *testing.T) {
	t.Parallel()
	v := NewMemory()
	require.NoError(t, util.WriteFile(v.Filesystem(), "t", []byte("content"), 0o644))

	vn, err := v.Open("t", O_WRONLY|O_TRUNC, 0)
	require.NoError(t, err)
	st, err := vn.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.Size)
	require.NoError(t, vn.Close())
}

func TestFile_DirectionMismatch(t *testing.T) {
	t.Parallel()
	v := NewMemory()
	vn, err := v.Open("d", O_RDWR|O_CREAT, 0)
	require.NoError(t, err)
	defer vn.Close()

	err = vn.Read(uio.New(make([]byte, 1), 0, uio.Write))
	assert.Equal(t, errors.EINVAL, errors.ErrnoOf(err))
	err = vn.Write(uio.New(make([]byte, 1), 0, uio.Read))
	assert.Equal(t, errors.EINVAL, errors.ErrnoOf(err))
}

func TestNewOS(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "host.txt"), []byte("from host"), 0o644))

	v := NewOS(dir)
	vn, err := v.Open("host.txt", O_RDONLY, 0)
	require.NoError(t, err)
	assert.Equal(t, "from host", readAll(t, vn, 0, 64))

	st, err := vn.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(9), st.Size)
	require.NoError(t, vn.Close())

	vn, err = v.Open("new.txt", O_WRONLY|O_CREAT, 0o600)
	require.NoError(t, err)
	writeAt(t, vn, 0, "out")
	require.NoError(t, vn.Close())

	data, err := os.ReadFile(filepath.Join(dir, "new.txt"))
	require.NoError(t, err)
	assert.Equal(t, "out", string(data))
}

func TestConsole(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	v := NewMemory()
	v.Mount(DeviceConsole, NewConsole(strings.NewReader("typed"), &out))

	w, err := v.Open("con:", O_WRONLY, 0)
	require.NoError(t, err)
	assert.False(t, w.IsSeekable())
	writeAt(t, w, 0, "hello")
	writeAt(t, w, 0, ", world")
	assert.Equal(t, "hello, world", out.String())

	st, err := w.Stat()
	require.NoError(t, err)
	assert.True(t, st.IsDevice())
	assert.False(t, st.Terminal)

	r, err := v.Open("con:", O_RDONLY, 0)
	require.NoError(t, err)
	assert.Equal(t, "typed", readAll(t, r, 0, 16))
	assert.Equal(t, "", readAll(t, r, 0, 16))
}

func TestConsole_MissingSide(t *testing.T) {
	t.Parallel()
	con := NewConsole(nil, io.Discard)

	_, err := con.Open(O_RDONLY)
	assert.Equal(t, errors.ENOENT, errors.ErrnoOf(err))
	_, err = con.Open(O_WRONLY)
	assert.NoError(t, err)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, stderrors.New("broken pipe") }

func TestConsole_WriteError(t *testing.T) {
	t.Parallel()
	vn, err := NewConsole(nil, failingWriter{}).Open(O_WRONLY)
	require.NoError(t, err)

	u := uio.New([]byte("x"), 0, uio.Write)
	err = vn.Write(u)
	assert.Equal(t, errors.EIO, errors.ErrnoOf(err))
	assert.Equal(t, 1, u.Resid)
}

func TestDevices(t *testing.T) {
	t.Parallel()
	v := NewMemory()

	_, err := v.Open("con:", O_WRONLY, 0)
	assert.Equal(t, errors.ENOENT, errors.ErrnoOf(err), "console is not mounted by default")

	vn, err := v.Open("null:", O_RDWR, 0)
	require.NoError(t, err)
	u := writeAt(t, vn, 0, "discarded")
	assert.Equal(t, 0, u.Resid)
	assert.Equal(t, "", readAll(t, vn, 0, 8))

	v.Unmount(DeviceNull)
	_, err = v.Open("null:", O_RDWR, 0)
	assert.Error(t, err)
}

func TestDeviceName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		name string
		ok   bool
	}{
		{"con:", "con", true},
		{"null:", "null", true},
		{":", "", false},
		{"a/b:", "", false},
		{"con:x", "", false},
		{"plain", "", false},
	}
	for _, tt := range tests {
		name, ok := deviceName(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.name, name, tt.in)
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, MapError(errors.OpOpen, "x", nil))

	structured := errors.BadDescriptor(errors.OpRead, 1)
	assert.Same(t, structured, MapError(errors.OpOpen, "x", structured))

	tests := []struct {
		err   error
		errno errors.Errno
	}{
		{os.ErrNotExist, errors.ENOENT},
		{os.ErrPermission, errors.EACCES},
		{os.ErrExist, errors.EEXIST},
		{&os.PathError{Op: "open", Path: "x", Err: os.ErrNotExist}, errors.ENOENT},
		{stderrors.New("opaque"), errors.EIO},
	}
	for _, tt := range tests {
		got := MapError(errors.OpOpen, "x", tt.err)
		assert.Equal(t, tt.errno, errors.ErrnoOf(got), tt.err.Error())
		assert.ErrorIs(t, got, tt.err)
	}
}
