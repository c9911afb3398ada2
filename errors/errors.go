package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Op names the kernel operation in which the error occurred
type Op string

const (
	OpOpen      Op = "open"      // open(2)
	OpClose     Op = "close"     // close(2)
	OpRead      Op = "read"      // read(2)
	OpWrite     Op = "write"     // write(2)
	OpLseek     Op = "lseek"     // lseek(2)
	OpDup2      Op = "dup2"      // dup2(2)
	OpExit      Op = "_exit"     // _exit(2)
	OpCopyin    Op = "copyin"    // user memory access
	OpBootstrap Op = "bootstrap" // standard stream setup
	OpLoad      Op = "load"      // program image loading
	OpConfig    Op = "config"    // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindBadDescriptor   Kind = "bad_descriptor"
	KindAccessMode      Kind = "access_mode"
	KindInvalidArgument Kind = "invalid_argument"
	KindNotSeekable     Kind = "not_seekable"
	KindTooManyFiles    Kind = "too_many_files"
	KindOutOfMemory     Kind = "out_of_memory"
	KindFault           Kind = "fault"
	KindNameTooLong     Kind = "name_too_long"
	KindIO              Kind = "io"
	KindNotFound        Kind = "not_found"
	KindPermission      Kind = "permission"
	KindExists          Kind = "exists"
	KindIsDirectory     Kind = "is_directory"
	KindNotDirectory    Kind = "not_directory"
	KindReadOnly        Kind = "read_only"
	KindNoSpace         Kind = "no_space"
	KindNotExecutable   Kind = "not_executable"
)

// Error is the structured error type used throughout the kernel
type Error struct {
	Value  any
	Cause  error
	Op     Op
	Kind   Kind
	Path   string
	Detail string
	Fd     int32
	hasFd  bool
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Op))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.hasFd {
		fmt.Fprintf(&b, " fd %d", e.Fd)
	}

	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(fmt.Sprintf("%q", e.Path))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// An empty Op in the target matches any operation.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return (t.Op == "" || e.Op == t.Op) && e.Kind == t.Kind
	}
	return false
}

// HasFd reports whether the error refers to a descriptor
func (e *Error) HasFd() bool {
	return e.hasFd
}

// Errno returns the errno reported to guests for this error
func (e *Error) Errno() Errno {
	if errno, ok := kindErrno[e.Kind]; ok {
		return errno
	}
	return EIO
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(op Op, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Op:   op,
			Kind: kind,
		},
	}
}

// Fd sets the descriptor the operation was applied to
func (b *Builder) Fd(fd int32) *Builder {
	b.err.Fd = fd
	b.err.hasFd = true
	return b
}

// Path sets the path the operation was applied to
func (b *Builder) Path(path string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// BadDescriptor creates an invalid descriptor error
func BadDescriptor(op Op, fd int32) *Error {
	return New(op, KindBadDescriptor).Fd(fd).Value(fd).Build()
}

// AccessMode creates an error for a transfer direction the handle does not permit
func AccessMode(op Op, fd int32, detail string) *Error {
	return New(op, KindAccessMode).Fd(fd).Detail("%s", detail).Build()
}

// InvalidArgument creates an invalid argument error
func InvalidArgument(op Op, detail string, args ...any) *Error {
	return New(op, KindInvalidArgument).Detail(detail, args...).Build()
}

// NotSeekable creates an error for seeking on a stream device
func NotSeekable(op Op, fd int32) *Error {
	return New(op, KindNotSeekable).Fd(fd).Detail("device is not seekable").Build()
}

// TooManyFiles creates a descriptor exhaustion error
func TooManyFiles(op Op, capacity int) *Error {
	return &Error{
		Op:     op,
		Kind:   KindTooManyFiles,
		Detail: fmt.Sprintf("all %d descriptors in use", capacity),
		Value:  capacity,
	}
}

// OutOfMemory creates an allocation failure error
func OutOfMemory(op Op, what string) *Error {
	return &Error{
		Op:     op,
		Kind:   KindOutOfMemory,
		Detail: fmt.Sprintf("allocate %s", what),
	}
}

// Fault creates an error for a caller pointer outside its address space
func Fault(op Op, ptr, length uint32) *Error {
	return &Error{
		Op:     op,
		Kind:   KindFault,
		Detail: fmt.Sprintf("bad address 0x%x (length %d)", ptr, length),
		Value:  ptr,
	}
}

// NameTooLong creates an error for a path that does not fit the copy-in buffer
func NameTooLong(op Op, maxLen int) *Error {
	return &Error{
		Op:     op,
		Kind:   KindNameTooLong,
		Detail: fmt.Sprintf("path exceeds %d bytes", maxLen),
		Value:  maxLen,
	}
}

// IO creates an opaque I/O failure on a descriptor
func IO(op Op, fd int32, cause error) *Error {
	return New(op, KindIO).Fd(fd).Cause(cause).Build()
}

// NotExecutable creates an error for an image that cannot be run
func NotExecutable(detail string, cause error) *Error {
	return &Error{
		Op:     OpLoad,
		Kind:   KindNotExecutable,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(op Op, kind Kind, cause error, detail string) *Error {
	return &Error{
		Op:     op,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Load creates a program loading error
func Load(detail string, cause error) *Error {
	kind := KindIO
	var e *Error
	if errors.As(cause, &e) {
		kind = e.Kind
	}
	return &Error{
		Op:     OpLoad,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// KindOf returns the kind of the first structured error in err's chain,
// or KindIO when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindIO
}
