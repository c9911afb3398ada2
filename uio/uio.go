// Package uio describes data transfers between a caller's address space and
// a backing resource.
//
// A Uio names one contiguous segment of caller memory, the resource offset the
// transfer starts at, and how many bytes remain. Vnodes consume it and advance
// it as they move bytes.
package uio

import (
	"bytes"

	wasmkernel "github.com/wippyai/wasm-kernel"
	"github.com/wippyai/wasm-kernel/errors"
)

// Rw is the direction of a transfer
type Rw uint8

const (
	// Read moves bytes from the resource into the caller's buffer
	Read Rw = iota
	// Write moves bytes from the caller's buffer into the resource
	Write
)

func (rw Rw) String() string {
	if rw == Write {
		return "write"
	}
	return "read"
}

// Uio is a single-segment transfer descriptor.
type Uio struct {
	Buf    []byte
	Offset int64
	Resid  int
	Rw     Rw
}

// New returns a transfer over buf starting at the given resource offset.
func New(buf []byte, offset int64, rw Rw) *Uio {
	return &Uio{
		Buf:    buf,
		Offset: offset,
		Resid:  len(buf),
		Rw:     rw,
	}
}

// Done returns the number of bytes transferred so far.
func (u *Uio) Done() int {
	return len(u.Buf) - u.Resid
}

// Remaining returns the part of the buffer not yet transferred.
func (u *Uio) Remaining() []byte {
	return u.Buf[u.Done():]
}

// Advance records n bytes as transferred.
func (u *Uio) Advance(n int) {
	if n > u.Resid {
		n = u.Resid
	}
	if n < 0 {
		n = 0
	}
	u.Resid -= n
	u.Offset += int64(n)
}

// Move transfers between kernel memory and the caller's buffer in the
// direction of the Uio. For Read, data is copied out to the caller; for
// Write, the caller's bytes are copied into data. It returns the count moved.
func (u *Uio) Move(data []byte) int {
	var n int
	if u.Rw == Read {
		n = copy(u.Remaining(), data)
	} else {
		n = copy(data, u.Remaining())
	}
	u.Advance(n)
	return n
}

// UserBuffer returns a view of length bytes of mem at ptr.
// A range outside mem is a fault.
func UserBuffer(mem wasmkernel.Memory, op errors.Op, ptr, length uint32) ([]byte, error) {
	if uint64(ptr)+uint64(length) > uint64(mem.Size()) {
		return nil, errors.Fault(op, ptr, length)
	}
	buf, err := mem.Read(ptr, length)
	if err != nil {
		return nil, errors.New(op, errors.KindFault).
			Value(ptr).
			Detail("bad address 0x%x (length %d)", ptr, length).
			Cause(err).
			Build()
	}
	return buf, nil
}

// CopyInStr copies a NUL-terminated string from mem at ptr. At most maxLen
// bytes are examined, including the terminator. A string that runs off the
// end of memory is a fault; one with no terminator within maxLen is too long.
func CopyInStr(mem wasmkernel.Memory, ptr uint32, maxLen int) (string, error) {
	if maxLen <= 0 {
		return "", errors.NameTooLong(errors.OpCopyin, maxLen)
	}
	size := mem.Size()
	if ptr >= size {
		return "", errors.Fault(errors.OpCopyin, ptr, 1)
	}

	avail := size - ptr
	limit := uint32(maxLen)
	truncated := false
	if avail < limit {
		limit = avail
		truncated = true
	}

	view, err := UserBuffer(mem, errors.OpCopyin, ptr, limit)
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(view, 0); i >= 0 {
		return string(view[:i]), nil
	}
	if truncated {
		return "", errors.Fault(errors.OpCopyin, ptr, limit+1)
	}
	return "", errors.NameTooLong(errors.OpCopyin, maxLen)
}
