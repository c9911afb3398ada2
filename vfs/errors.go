package vfs

import (
	stderrors "errors"
	"os"
	"syscall"

	"github.com/go-git/go-billy/v5"

	"github.com/wippyai/wasm-kernel/errors"
)

// MapError converts a filesystem error into a structured kernel error.
// Errors that are already structured pass through unchanged.
func MapError(op errors.Op, path string, err error) error {
	if err == nil {
		return nil
	}
	var kerr *errors.Error
	if stderrors.As(err, &kerr) {
		return err
	}
	return errors.New(op, mapKind(err)).Path(path).Cause(err).Build()
}

func mapKind(err error) errors.Kind {
	switch {
	case os.IsNotExist(err):
		return errors.KindNotFound
	case os.IsPermission(err):
		return errors.KindPermission
	case os.IsExist(err):
		return errors.KindExists
	case stderrors.Is(err, billy.ErrReadOnly):
		return errors.KindReadOnly
	}

	var errno syscall.Errno
	if stderrors.As(err, &errno) {
		return mapErrno(errno)
	}
	return errors.KindIO
}

func mapErrno(errno syscall.Errno) errors.Kind {
	switch errno {
	case syscall.EACCES, syscall.EPERM:
		return errors.KindPermission
	case syscall.ENOENT:
		return errors.KindNotFound
	case syscall.EEXIST:
		return errors.KindExists
	case syscall.ENOTDIR:
		return errors.KindNotDirectory
	case syscall.EISDIR:
		return errors.KindIsDirectory
	case syscall.ENAMETOOLONG:
		return errors.KindNameTooLong
	case syscall.ENOSPC:
		return errors.KindNoSpace
	case syscall.EROFS:
		return errors.KindReadOnly
	case syscall.EMFILE, syscall.ENFILE:
		return errors.KindTooManyFiles
	case syscall.ENOMEM:
		return errors.KindOutOfMemory
	case syscall.EINVAL:
		return errors.KindInvalidArgument
	default:
		return errors.KindIO
	}
}
