package errors

import (
	"errors"
	"strconv"
)

// Errno is a kernel error number. Guests see it negated.
type Errno int32

const (
	ENOENT       Errno = 2
	EIO          Errno = 5
	ENOEXEC      Errno = 8
	EBADF        Errno = 9
	ENOMEM       Errno = 12
	EACCES       Errno = 13
	EFAULT       Errno = 14
	EEXIST       Errno = 17
	ENOTDIR      Errno = 20
	EISDIR       Errno = 21
	EINVAL       Errno = 22
	EMFILE       Errno = 24
	ENOSPC       Errno = 28
	ESPIPE       Errno = 29
	EROFS        Errno = 30
	ENAMETOOLONG Errno = 36
	ENOSYS       Errno = 38
)

var errnoNames = map[Errno]string{
	ENOENT:       "ENOENT",
	EIO:          "EIO",
	ENOEXEC:      "ENOEXEC",
	EBADF:        "EBADF",
	ENOMEM:       "ENOMEM",
	EACCES:       "EACCES",
	EFAULT:       "EFAULT",
	EEXIST:       "EEXIST",
	ENOTDIR:      "ENOTDIR",
	EISDIR:       "EISDIR",
	EINVAL:       "EINVAL",
	EMFILE:       "EMFILE",
	ENOSPC:       "ENOSPC",
	ESPIPE:       "ESPIPE",
	EROFS:        "EROFS",
	ENAMETOOLONG: "ENAMETOOLONG",
	ENOSYS:       "ENOSYS",
}

func (e Errno) String() string {
	if name, ok := errnoNames[e]; ok {
		return name
	}
	return "errno(" + strconv.Itoa(int(e)) + ")"
}

// Error implements the error interface so an Errno can be returned directly
func (e Errno) Error() string {
	return e.String()
}

var kindErrno = map[Kind]Errno{
	KindBadDescriptor:   EBADF,
	KindAccessMode:      EBADF,
	KindInvalidArgument: EINVAL,
	KindNotSeekable:     ESPIPE,
	KindTooManyFiles:    EMFILE,
	KindOutOfMemory:     ENOMEM,
	KindFault:           EFAULT,
	KindNameTooLong:     ENAMETOOLONG,
	KindIO:              EIO,
	KindNotFound:        ENOENT,
	KindPermission:      EACCES,
	KindExists:          EEXIST,
	KindIsDirectory:     EISDIR,
	KindNotDirectory:    ENOTDIR,
	KindReadOnly:        EROFS,
	KindNoSpace:         ENOSPC,
	KindNotExecutable:   ENOEXEC,
}

// ErrnoOf maps err to the errno reported to guests.
// A nil error maps to 0 and anything unstructured maps to EIO.
func ErrnoOf(err error) Errno {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Errno()
	}
	var errno Errno
	if errors.As(err, &errno) {
		return errno
	}
	return EIO
}
