package wasm

// WebAssembly binary format magic number and version.
const (
	// Magic is the WebAssembly binary magic number ("\0asm" in little-endian).
	Magic uint32 = 0x6D736100

	// Version is the supported WebAssembly binary format version.
	Version uint32 = 0x01
)

// HeaderSize is the length of the magic number plus version.
const HeaderSize = 8

// Section IDs define the binary identifiers for each module section.
// Sections must appear in increasing order by ID.
const (
	SectionType     byte = 1
	SectionImport   byte = 2
	SectionFunction byte = 3
	SectionMemory   byte = 5
	SectionExport   byte = 7
	SectionCode     byte = 10
	SectionData     byte = 11
)

// Import/Export descriptor kinds.
const (
	KindFunc   byte = 0
	KindMemory byte = 2
)

// Value type encodings.
const (
	ValI32 ValType = 0x7F
	ValI64 ValType = 0x7E
)

// FuncTypeByte prefixes every function type in the type section.
const FuncTypeByte byte = 0x60

// LimitsHasMax marks limits that carry a maximum.
const LimitsHasMax byte = 0x01

// BlockTypeVoid is the empty block type.
const BlockTypeVoid byte = 0x40

// Opcodes used by guest programs.
const (
	OpUnreachable byte = 0x00
	OpBlock       byte = 0x02
	OpLoop        byte = 0x03
	OpIf          byte = 0x04
	OpElse        byte = 0x05
	OpEnd         byte = 0x0B
	OpBr          byte = 0x0C
	OpBrIf        byte = 0x0D
	OpReturn      byte = 0x0F
	OpCall        byte = 0x10
	OpDrop        byte = 0x1A

	OpLocalGet byte = 0x20
	OpLocalSet byte = 0x21
	OpLocalTee byte = 0x22

	OpI32Load  byte = 0x28
	OpI32Store byte = 0x36

	OpI32Const byte = 0x41
	OpI64Const byte = 0x42

	OpI32Eqz byte = 0x45
	OpI32Eq  byte = 0x46
	OpI32Ne  byte = 0x47
	OpI32LtS byte = 0x48
	OpI32GtS byte = 0x4A

	OpI32Add byte = 0x6A
	OpI32Sub byte = 0x6B

	OpI32WrapI64 byte = 0xA7
)
