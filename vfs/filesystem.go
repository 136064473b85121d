package vfs

import "github.com/nyx-os/nyx/kerr"

// StatFs is the statfs(2)-equivalent snapshot of a mounted filesystem.
type StatFs struct {
	BlockSize      int64
	TotalBlocks    int64
	FreeBlocks     int64
	AvailBlocks    int64
	TotalInodes    int64
	FreeInodes     int64
	FSID           uint64
	MaxFilenameLen int
}

// FileSystem connects a concrete filesystem implementation (tmpfs,
// procfs, sysfs, the ext4fs adapter) to the VFS core.
type FileSystem interface {
	FSType() string
	RootInode() Inode
	Sync() kerr.Errno
	StatFS() (StatFs, kerr.Errno)
	// Umount is called when the filesystem is unmounted; the default
	// behavior concrete types should fall back to is Sync.
	Umount() kerr.Errno
}
