package resource

import (
	"math"
	"sync"

	"github.com/wippyai/wasm-kernel/uio"
	"github.com/wippyai/wasm-kernel/vfs"
)

// Handle is an open-file record: one connection to a vnode with its own
// cursor. Descriptors that were duplicated from one another share a Handle.
type Handle struct {
	vnode vfs.Vnode
	owner *Table
	path  string
	flags int

	mu     sync.Mutex // cursor and transfer
	offset int64

	refMu     sync.Mutex
	refcount  int
	borrows   int
	destroyed bool
}

// NewHandle wraps an opened vnode. The handle starts unbound; binding it to
// a descriptor slot with Table.Allocate or Table.Install gives it a reference.
func NewHandle(vn vfs.Vnode, path string, flags int) *Handle {
	return &Handle{
		vnode: vn,
		path:  path,
		flags: flags,
	}
}

// Path returns the path the handle was opened with.
func (h *Handle) Path() string { return h.path }

// Flags returns the open flags.
func (h *Handle) Flags() int { return h.flags }

// Vnode returns the backing resource.
func (h *Handle) Vnode() vfs.Vnode { return h.vnode }

// CanRead reports whether the access mode permits reading.
func (h *Handle) CanRead() bool {
	return h.flags&vfs.O_ACCMODE != vfs.O_WRONLY
}

// CanWrite reports whether the access mode permits writing.
func (h *Handle) CanWrite() bool {
	return h.flags&vfs.O_ACCMODE != vfs.O_RDONLY
}

// Mode returns the access mode as "r", "w" or "rw".
func (h *Handle) Mode() string {
	switch h.flags & vfs.O_ACCMODE {
	case vfs.O_WRONLY:
		return "w"
	case vfs.O_RDWR:
		return "rw"
	default:
		return "r"
	}
}

// Offset returns the current cursor.
func (h *Handle) Offset() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.offset
}

// Refcount returns the number of descriptor slots bound to the handle.
func (h *Handle) Refcount() int {
	h.refMu.Lock()
	defer h.refMu.Unlock()
	return h.refcount
}

// Released reports whether the vnode has been closed.
func (h *Handle) Released() bool {
	h.refMu.Lock()
	defer h.refMu.Unlock()
	return h.destroyed
}

// Read transfers up to len(buf) bytes starting at the cursor and advances the
// cursor by the count moved. On error the cursor is left unchanged.
func (h *Handle) Read(buf []byte) (int, error) {
	if !h.CanRead() {
		return 0, ErrAccessMode
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	u := uio.New(buf, h.offset, uio.Read)
	if err := h.vnode.Read(u); err != nil {
		return 0, err
	}
	h.offset = u.Offset
	return u.Done(), nil
}

// Write transfers buf starting at the cursor and advances the cursor by the
// count moved. With O_APPEND the transfer starts at the current end of the
// vnode. On error the cursor is left unchanged.
func (h *Handle) Write(buf []byte) (int, error) {
	if !h.CanWrite() {
		return 0, ErrAccessMode
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	offset := h.offset
	if h.flags&vfs.O_APPEND != 0 && h.vnode.IsSeekable() {
		st, err := h.vnode.Stat()
		if err != nil {
			return 0, err
		}
		offset = st.Size
	}

	u := uio.New(buf, offset, uio.Write)
	if err := h.vnode.Write(u); err != nil {
		return 0, err
	}
	h.offset = u.Offset
	return u.Done(), nil
}

// Seek repositions the cursor relative to whence and returns the new offset.
func (h *Handle) Seek(pos int64, whence int) (int64, error) {
	if !h.vnode.IsSeekable() {
		return 0, ErrNotSeekable
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var base int64
	switch whence {
	case vfs.SEEK_SET:
	case vfs.SEEK_CUR:
		base = h.offset
	case vfs.SEEK_END:
		st, err := h.vnode.Stat()
		if err != nil {
			return 0, err
		}
		base = st.Size
	default:
		return 0, ErrInvalidWhence
	}

	if pos > 0 && base > math.MaxInt64-pos {
		return 0, ErrOffsetOverflow
	}
	offset := base + pos
	if offset < 0 {
		return 0, ErrNegativeOffset
	}
	h.offset = offset
	return offset, nil
}

// Return ends a borrow taken by Table.Get. The vnode is closed here if every
// descriptor bound to the handle was closed while it was borrowed.
func (h *Handle) Return() {
	h.refMu.Lock()
	if h.borrows == 0 {
		h.refMu.Unlock()
		return
	}
	h.borrows--
	dead := h.dyingLocked()
	h.refMu.Unlock()

	if dead {
		err := h.vnode.Close()
		if h.owner != nil {
			h.owner.notify(Event{Type: EventReleased, Fd: -1, Handle: h, Err: err})
		}
	}
}

// Discard closes the vnode of a handle that was never bound to a descriptor.
func (h *Handle) Discard() error {
	h.refMu.Lock()
	if h.refcount > 0 || h.destroyed {
		h.refMu.Unlock()
		return nil
	}
	h.destroyed = true
	h.refMu.Unlock()
	return h.vnode.Close()
}

func (h *Handle) ref() {
	h.refMu.Lock()
	h.refcount++
	h.refMu.Unlock()
}

func (h *Handle) borrow() {
	h.refMu.Lock()
	h.borrows++
	h.refMu.Unlock()
}

// unref drops one slot reference and reports whether the caller must close the vnode.
func (h *Handle) unref() bool {
	h.refMu.Lock()
	defer h.refMu.Unlock()
	if h.refcount > 0 {
		h.refcount--
	}
	return h.dyingLocked()
}

func (h *Handle) dyingLocked() bool {
	if h.refcount == 0 && h.borrows == 0 && !h.destroyed {
		h.destroyed = true
		return true
	}
	return false
}
