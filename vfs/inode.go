// Package vfs implements the filesystem-independent layer: the
// Inode/File/FileSystem contracts, the dentry cache, stacked mounts,
// path resolution, and the per-task file descriptor table.
package vfs

import (
	"time"

	"github.com/nyx-os/nyx/kerr"
)

// InodeType classifies what an inode represents.
type InodeType int

const (
	TypeFile InodeType = iota
	TypeDirectory
	TypeSymlink
	TypeCharDevice
	TypeBlockDevice
	TypeFifo
	TypeSocket
)

// FileMode packs POSIX type and permission bits (st_mode).
type FileMode uint32

const (
	ModeTypeMask FileMode = 0o170000
	ModeFile     FileMode = 0o100000
	ModeDir      FileMode = 0o040000
	ModeSymlink  FileMode = 0o120000
	ModeChar     FileMode = 0o020000
	ModeBlock    FileMode = 0o060000
	ModeFifo     FileMode = 0o010000
	ModeSocket   FileMode = 0o140000

	ModeUserRead  FileMode = 0o400
	ModeUserWrite FileMode = 0o200
	ModeUserExec  FileMode = 0o100
)

func (m FileMode) CanRead() bool  { return m&ModeUserRead != 0 }
func (m FileMode) CanWrite() bool { return m&ModeUserWrite != 0 }
func (m FileMode) CanExec() bool  { return m&ModeUserExec != 0 }

// DirEntry is one entry returned by Inode.Readdir.
type DirEntry struct {
	Name     string
	InodeNo  uint64
	InodeType InodeType
}

// Metadata is the stat(2)-equivalent snapshot of an inode.
type Metadata struct {
	InodeNo   uint64
	InodeType InodeType
	Mode      FileMode
	UID, GID  uint32
	Size      int64
	Atime, Mtime, Ctime time.Time
	Nlinks uint32
	Blocks int64 // 512-byte units
	Rdev   uint64
}

// Inode is the filesystem-independent storage interface: stateless,
// explicit-offset random access shared by every open File session on
// it.
type Inode interface {
	Metadata() (Metadata, kerr.Errno)
	ReadAt(offset int64, buf []byte) (int, kerr.Errno)
	WriteAt(offset int64, buf []byte) (int, kerr.Errno)

	Lookup(name string) (Inode, kerr.Errno)
	Create(name string, mode FileMode) (Inode, kerr.Errno)
	Mkdir(name string, mode FileMode) (Inode, kerr.Errno)
	Symlink(name, target string) (Inode, kerr.Errno)
	Link(name string, target Inode) kerr.Errno
	Unlink(name string) kerr.Errno
	Rmdir(name string) kerr.Errno
	Rename(oldName string, newParent Inode, newName string) kerr.Errno
	Readdir() ([]DirEntry, kerr.Errno)

	Truncate(size int64) kerr.Errno
	Sync() kerr.Errno
	SetTimes(atime, mtime *time.Time) kerr.Errno
	Readlink() (string, kerr.Errno)
	Mknod(name string, mode FileMode, dev uint64) (Inode, kerr.Errno)
	Chown(uid, gid uint32) kerr.Errno
	Chmod(mode FileMode) kerr.Errno

	// Cacheable reports whether the VFS dentry cache may keep a strong
	// reference to this inode's dentry. Synthetic/generated inodes
	// (procfs, sysfs) typically return false so every lookup re-runs
	// their generator.
	Cacheable() bool
}
