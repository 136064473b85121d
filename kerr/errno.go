// Package kerr defines the kernel-internal error taxonomy used at the
// VFS/syscall boundary. Kernel code passes Errno around as a plain typed
// int (matching biscuit's Err_t convention: "if err != 0"); Errno also
// implements the standard error interface for the few call sites (tests,
// boot logging) that want to print it.
package kerr

import "golang.org/x/sys/unix"

// Errno is a negative errno value, or 0 for success.
type Errno int

// Error satisfies the standard error interface.
func (e Errno) Error() string {
	if e == 0 {
		return "success"
	}
	if s, ok := names[e]; ok {
		return s
	}
	return unix.Errno(-e).Error()
}

// Ok reports whether e represents success.
func (e Errno) Ok() bool { return e == 0 }

// The kernel's error taxonomy, mapped onto the real Linux errno space
// via golang.org/x/sys/unix so syscalls return ABI-correct negative
// values.
var (
	ENone           Errno = 0
	ENotFound       Errno = Errno(-int(unix.ENOENT))
	EAlreadyExists  Errno = Errno(-int(unix.EEXIST))
	EInvalidArg     Errno = Errno(-int(unix.EINVAL))
	ENameTooLong    Errno = Errno(-int(unix.ENAMETOOLONG))
	ETooManySymlink Errno = Errno(-int(unix.ELOOP))
	ENotDirectory   Errno = Errno(-int(unix.ENOTDIR))
	EIsDirectory    Errno = Errno(-int(unix.EISDIR))
	EDirNotEmpty    Errno = Errno(-int(unix.ENOTEMPTY))
	ENotSupported   Errno = Errno(-int(unix.ENOSYS))
	ETooManyLinks   Errno = Errno(-int(unix.EMLINK))
	EPermission     Errno = Errno(-int(unix.EACCES))
	EReadOnlyFs     Errno = Errno(-int(unix.EROFS))
	ETooManyOpen    Errno = Errno(-int(unix.EMFILE))
	ENoSpace        Errno = Errno(-int(unix.ENOSPC))
	ENoDevice       Errno = Errno(-int(unix.ENODEV))
	EIo             Errno = Errno(-int(unix.EIO))
	EBadFd          Errno = Errno(-int(unix.EBADF))
	EBrokenPipe     Errno = Errno(-int(unix.EPIPE))
	EWouldBlock     Errno = Errno(-int(unix.EAGAIN))
	ENotConnected   Errno = Errno(-int(unix.ENOTCONN))
	EInterrupted    Errno = Errno(-int(unix.EINTR))
	ENoMemory       Errno = Errno(-int(unix.ENOMEM))
	EFault          Errno = Errno(-int(unix.EFAULT))
)

var names = map[Errno]string{
	ENone:           "success",
	ENotFound:       "not found",
	EAlreadyExists:  "already exists",
	EInvalidArg:     "invalid argument",
	ENameTooLong:    "name too long",
	ETooManySymlink: "too many symlinks",
	ENotDirectory:   "not a directory",
	EIsDirectory:    "is a directory",
	EDirNotEmpty:    "directory not empty",
	ENotSupported:   "not supported",
	ETooManyLinks:   "too many links",
	EPermission:     "permission denied",
	EReadOnlyFs:     "read-only filesystem",
	ETooManyOpen:    "too many open files",
	ENoSpace:        "no space left",
	ENoDevice:       "no such device",
	EIo:             "I/O error",
	EBadFd:          "bad file descriptor",
	EBrokenPipe:     "broken pipe",
	EWouldBlock:     "would block",
	ENotConnected:   "not connected",
	EInterrupted:    "interrupted",
	ENoMemory:       "out of memory",
	EFault:          "bad address",
}
