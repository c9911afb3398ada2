package wasm

import (
	"github.com/wippyai/wasm-kernel/wasm/internal/binary"
)

// Code builds an instruction stream. Methods append one instruction and
// return the receiver so calls chain.
type Code struct {
	w *binary.Writer
}

// NewCode returns an empty instruction stream.
func NewCode() *Code {
	return &Code{w: binary.NewWriter()}
}

// Op appends an instruction without immediates.
func (c *Code) Op(op byte) *Code {
	c.w.Byte(op)
	return c
}

func (c *Code) I32Const(v int32) *Code {
	c.w.Byte(OpI32Const)
	c.w.WriteS32(v)
	return c
}

func (c *Code) I64Const(v int64) *Code {
	c.w.Byte(OpI64Const)
	c.w.WriteS64(v)
	return c
}

func (c *Code) Call(funcIdx uint32) *Code {
	c.w.Byte(OpCall)
	c.w.WriteU32(funcIdx)
	return c
}

func (c *Code) Drop() *Code { return c.Op(OpDrop) }

func (c *Code) LocalGet(idx uint32) *Code { return c.index(OpLocalGet, idx) }
func (c *Code) LocalSet(idx uint32) *Code { return c.index(OpLocalSet, idx) }
func (c *Code) LocalTee(idx uint32) *Code { return c.index(OpLocalTee, idx) }

// I32Load loads a naturally aligned i32 from the address on the stack plus offset.
func (c *Code) I32Load(offset uint32) *Code { return c.memarg(OpI32Load, offset) }

// I32Store stores a naturally aligned i32.
func (c *Code) I32Store(offset uint32) *Code { return c.memarg(OpI32Store, offset) }

// Block, Loop and If open a structured block with no result.
func (c *Code) Block() *Code { return c.block(OpBlock) }
func (c *Code) Loop() *Code  { return c.block(OpLoop) }
func (c *Code) If() *Code    { return c.block(OpIf) }
func (c *Code) Else() *Code  { return c.Op(OpElse) }
func (c *Code) End() *Code   { return c.Op(OpEnd) }

func (c *Code) Br(depth uint32) *Code   { return c.index(OpBr, depth) }
func (c *Code) BrIf(depth uint32) *Code { return c.index(OpBrIf, depth) }

// Bytes returns the stream so far.
func (c *Code) Bytes() []byte {
	return c.w.Bytes()
}

// Body terminates the stream and returns it as a function body.
func (c *Code) Body(locals ...LocalEntry) FuncBody {
	c.End()
	return FuncBody{Locals: locals, Code: c.w.Bytes()}
}

func (c *Code) index(op byte, idx uint32) *Code {
	c.w.Byte(op)
	c.w.WriteU32(idx)
	return c
}

func (c *Code) memarg(op byte, offset uint32) *Code {
	c.w.Byte(op)
	c.w.WriteU32(2)
	c.w.WriteU32(offset)
	return c
}

func (c *Code) block(op byte) *Code {
	c.w.Byte(op)
	c.w.Byte(BlockTypeVoid)
	return c
}
