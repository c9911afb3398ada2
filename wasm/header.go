package wasm

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrTruncated  = errors.New("truncated module header")
	ErrBadMagic   = errors.New("bad magic number")
	ErrBadVersion = errors.New("unsupported binary version")
)

// CheckHeader verifies the magic number and version of a binary module.
func CheckHeader(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrTruncated, len(data))
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != Magic {
		return fmt.Errorf("%w: 0x%08x", ErrBadMagic, magic)
	}
	if version := binary.LittleEndian.Uint32(data[4:8]); version != Version {
		return fmt.Errorf("%w: %d", ErrBadVersion, version)
	}
	return nil
}
