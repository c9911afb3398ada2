// Package engine runs guest programs on wazero.
//
// Guests are core WebAssembly modules. They make system calls by importing
// functions from the host module "kern":
//
//	(import "kern" "open"  (func (param i32 i32 i32) (result i32)))
//	(import "kern" "close" (func (param i32) (result i32)))
//	(import "kern" "read"  (func (param i32 i32 i32) (result i32)))
//	(import "kern" "write" (func (param i32 i32 i32) (result i32)))
//	(import "kern" "lseek" (func (param i32 i64 i32) (result i64)))
//	(import "kern" "dup2"  (func (param i32 i32) (result i32)))
//	(import "kern" "_exit" (func (param i32)))
//
// A call returns its result, or a negated errno on failure. The calling
// process is taken from the context passed to the guest export, see
// proc.NewContext, and pointer arguments refer to the guest's own linear
// memory.
//
// # Architecture
//
//	WazeroEngine   - owns the wazero runtime and the kern host module
//	WazeroModule   - a compiled guest program
//	WazeroInstance - an instantiated program with its memory and entry point
//
// Instances are created without running start functions, so the host can
// prepare the process (standard streams) before entering the program with
// WazeroInstance.Start.
package engine
