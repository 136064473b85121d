package vfs

import "github.com/nyx-os/nyx/kerr"

// SeekWhence mirrors lseek(2)'s whence argument.
type SeekWhence int

const (
	SeekSet SeekWhence = iota
	SeekCur
	SeekEnd
)

// OpenFlags mirrors the open(2)/fcntl(2) flag bits nyx recognizes.
type OpenFlags uint32

const (
	ORdOnly OpenFlags = 0
	OWrOnly OpenFlags = 1 << 0
	ORdWr   OpenFlags = 1 << 1
	OCreat  OpenFlags = 1 << 2
	OExcl   OpenFlags = 1 << 3
	OTrunc  OpenFlags = 1 << 4
	OAppend OpenFlags = 1 << 5
	ONonblock OpenFlags = 1 << 6
	OCloexec OpenFlags = 1 << 7
	ODirectory OpenFlags = 1 << 8
)

// File is the session-layer interface: stateful (tracks an offset),
// shared by every fd pointing at the same open instance (e.g. after
// dup). Distinct from Inode, which is the stateless storage layer.
//
// Most methods beyond the required core are optional in spirit (not
// every File backing supports ioctl, pipes, or async ownership); nyx
// expresses "optional" as returning kerr.ENotSupported from the default
// embedding, BaseFile, rather than as Go interface method absence.
type File interface {
	Readable() bool
	Writable() bool
	Read(buf []byte) (int, kerr.Errno)
	Write(buf []byte) (int, kerr.Errno)
	Metadata() (Metadata, kerr.Errno)

	Lseek(offset int64, whence SeekWhence) (int64, kerr.Errno)
	Offset() int64
	Flags() OpenFlags
	SetStatusFlags(flags OpenFlags) kerr.Errno

	Dentry() (*Dentry, kerr.Errno)
	Inode() (Inode, kerr.Errno)

	GetPipeSize() (int, kerr.Errno)
	SetPipeSize(size int) kerr.Errno
	GetOwner() (int32, kerr.Errno)
	SetOwner(pid int32) kerr.Errno

	ReadAt(offset int64, buf []byte) (int, kerr.Errno)
	WriteAt(offset int64, buf []byte) (int, kerr.Errno)
	Ioctl(request uint32, arg uintptr) (int64, kerr.Errno)
	RecvFrom(buf []byte) (int, []byte, kerr.Errno)
}

// BaseFile implements every optional File method as ENotSupported so
// concrete files (regular, pipe, chardev, ...) can embed it and
// override only what they actually support.
type BaseFile struct{}

func (BaseFile) Lseek(int64, SeekWhence) (int64, kerr.Errno)   { return 0, kerr.ENotSupported }
func (BaseFile) Offset() int64                                 { return 0 }
func (BaseFile) Flags() OpenFlags                               { return 0 }
func (BaseFile) SetStatusFlags(OpenFlags) kerr.Errno            { return kerr.ENotSupported }
func (BaseFile) Dentry() (*Dentry, kerr.Errno)                  { return nil, kerr.ENotSupported }
func (BaseFile) Inode() (Inode, kerr.Errno)                     { return nil, kerr.ENotSupported }
func (BaseFile) GetPipeSize() (int, kerr.Errno)                 { return 0, kerr.ENotSupported }
func (BaseFile) SetPipeSize(int) kerr.Errno                     { return kerr.ENotSupported }
func (BaseFile) GetOwner() (int32, kerr.Errno)                  { return 0, kerr.ENotSupported }
func (BaseFile) SetOwner(int32) kerr.Errno                      { return kerr.ENotSupported }
func (BaseFile) ReadAt(int64, []byte) (int, kerr.Errno)         { return 0, kerr.ENotSupported }
func (BaseFile) WriteAt(int64, []byte) (int, kerr.Errno)        { return 0, kerr.ENotSupported }
func (BaseFile) Ioctl(uint32, uintptr) (int64, kerr.Errno)      { return 0, kerr.ENotSupported }
func (BaseFile) RecvFrom([]byte) (int, []byte, kerr.Errno)      { return 0, nil, kerr.ENotSupported }
