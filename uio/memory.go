package uio

import "fmt"

// FlatMemory is a fixed-size byte region usable as a caller address space.
// Hosts that issue system calls without a guest instance use it as scratch
// memory.
type FlatMemory struct {
	data []byte
}

// NewFlatMemory allocates size bytes of zeroed memory.
func NewFlatMemory(size uint32) *FlatMemory {
	return &FlatMemory{data: make([]byte, size)}
}

func (m *FlatMemory) Read(offset uint32, length uint32) ([]byte, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(m.data)) {
		return nil, fmt.Errorf("read out of bounds: offset=%d, length=%d", offset, length)
	}
	return m.data[offset:end:end], nil
}

func (m *FlatMemory) Write(offset uint32, data []byte) error {
	end := uint64(offset) + uint64(len(data))
	if end > uint64(len(m.data)) {
		return fmt.Errorf("write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	copy(m.data[offset:], data)
	return nil
}

// WriteString stores s followed by a NUL at offset.
func (m *FlatMemory) WriteString(offset uint32, s string) error {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return m.Write(offset, buf)
}

func (m *FlatMemory) Size() uint32 {
	return uint32(len(m.data))
}

// Bytes returns the whole region.
func (m *FlatMemory) Bytes() []byte {
	return m.data
}
