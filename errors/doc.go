// Package errors provides structured error types for the kernel.
//
// Errors are categorized by Op (the system call or kernel step that failed)
// and Kind (error category). Every Kind maps to an Errno, which is what a
// guest program sees, negated, as the result of a failed call.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.OpOpen, errors.KindNotFound).
//		Path("data/a.txt").
//		Cause(fs.ErrNotExist).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.BadDescriptor(errors.OpRead, fd)
//	err := errors.Fault(errors.OpWrite, ptr, n)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
