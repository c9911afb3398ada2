package wasm

// MemoryExport is the name under which a program exports its memory.
const MemoryExport = "memory"

// Program assembles a single-memory module with an entry point. Data
// placed with Data is loaded at instantiation.
type Program struct {
	m     Module
	entry string
}

// NewProgram starts a program with a memory of the given page count.
func NewProgram(pages uint32) *Program {
	p := &Program{entry: "_start"}
	p.m.Memories = []MemoryType{{Limits: Limits{Min: pages}}}
	p.m.Exports = append(p.m.Exports, Export{Name: MemoryExport, Kind: KindMemory, Idx: 0})
	return p
}

// WithoutMemory drops the memory and its export.
func (p *Program) WithoutMemory() *Program {
	p.m.Memories = nil
	exports := p.m.Exports[:0]
	for _, e := range p.m.Exports {
		if e.Kind != KindMemory {
			exports = append(exports, e)
		}
	}
	p.m.Exports = exports
	return p
}

// Entry renames the exported entry point.
func (p *Program) Entry(name string) *Program {
	p.entry = name
	return p
}

// Import adds a function import and returns its index. All imports must
// be added before Main.
func (p *Program) Import(module, name string, params []ValType, results []ValType) uint32 {
	return p.m.AddImport(module, name, FuncType{Params: params, Results: results})
}

// Data places a segment at offset.
func (p *Program) Data(offset uint32, data []byte) *Program {
	p.m.Data = append(p.m.Data, DataSegment{Offset: offset, Init: data})
	return p
}

// Main defines the entry point from code and exports it.
func (p *Program) Main(code *Code, locals ...LocalEntry) *Program {
	idx := p.m.AddFunc(FuncType{}, code.Body(locals...))
	p.m.Exports = append(p.m.Exports, Export{Name: p.entry, Kind: KindFunc, Idx: idx})
	return p
}

// Module returns the assembled module.
func (p *Program) Module() *Module {
	return &p.m
}

// Encode encodes the program.
func (p *Program) Encode() []byte {
	return p.m.Encode()
}
