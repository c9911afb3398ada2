package wasmkernel

// Memory is a caller address space: the linear memory of a guest instance,
// or any flat byte region standing in for one.
//
// Read returns a view of the region, so writes into the returned slice
// are visible to the owner of the memory.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	Size() uint32
}
