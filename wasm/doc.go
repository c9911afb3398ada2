// Package wasm encodes the small WebAssembly modules that run as kernel
// guests.
//
// It covers the sections a guest needs (types, function imports, one
// memory, exports, code and active data) and an instruction builder for
// the handful of opcodes guest programs use. CheckHeader validates the
// magic number and version of a binary before it is compiled.
//
// # Building a program
//
//	p := wasm.NewProgram(1)
//	write := p.Import("kern", "write",
//	    []wasm.ValType{wasm.ValI32, wasm.ValI32, wasm.ValI32},
//	    []wasm.ValType{wasm.ValI32})
//	p.Data(0x100, []byte("hello\n"))
//	p.Main(wasm.NewCode().
//	    I32Const(1).I32Const(0x100).I32Const(6).Call(write).Drop())
//	bin := p.Encode()
//
// The program exports its memory as "memory" and its entry point as
// "_start".
package wasm
