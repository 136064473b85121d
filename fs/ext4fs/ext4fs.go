// Package ext4fs is a thin lock-and-delegate adapter shaped after
// biscuit's Ufs_t: the adapter owns a coarse lock and a disk handle. No
// on-disk ext4 format is parsed or written; every VFS operation is
// answered by an in-memory tmpfs tree, and Sync flushes the Device.
package ext4fs

import (
	"sync"

	"github.com/nyx-os/nyx/fs/tmpfs"
	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/vfs"
)

// Device is the block-addressed storage ext4fs reads and writes in
// BlockSize units; a real ext4 driver library satisfies this in place
// of the in-memory staging used when none is wired in.
type Device interface {
	ReadBlock(blockNo int64, buf []byte) kerr.Errno
	WriteBlock(blockNo int64, buf []byte) kerr.Errno
	BlockSize() int
	BlockCount() int64
	Flush() kerr.Errno
}

// FS adapts a Device to vfs.FileSystem. No ext4 parser ships in the
// retrieval pack (see DESIGN.md), so the in-memory tree that actually
// answers Lookup/Readdir/etc is a tmpfs.FS; FS's job is the part any
// real ext4 library would still need from the caller: a single lock
// serializing mount-wide operations and a Sync that reaches the
// Device, exactly as biscuit's Ufs_t wraps fs.Fs_t + ahci_disk_t.
type FS struct {
	mu     sync.Mutex
	dev    Device
	staged *tmpfs.FS
}

// New adapts dev; the backing store behind RootInode is a tmpfs tree
// until a real ext4 decoder is wired in to replace it.
func New(dev Device) *FS {
	return &FS{dev: dev, staged: tmpfs.New(0)}
}

func (f *FS) FSType() string { return "ext4" }

func (f *FS) RootInode() vfs.Inode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.staged.RootInode()
}

func (f *FS) Sync() kerr.Errno {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.staged.Sync(); err != kerr.ENone {
		return err
	}
	return f.dev.Flush()
}

func (f *FS) Umount() kerr.Errno { return f.Sync() }

func (f *FS) StatFS() (vfs.StatFs, kerr.Errno) {
	f.mu.Lock()
	defer f.mu.Unlock()
	blockSize := int64(f.dev.BlockSize())
	total := f.dev.BlockCount()
	return vfs.StatFs{
		BlockSize:      blockSize,
		TotalBlocks:    total,
		FreeBlocks:     total,
		AvailBlocks:    total,
		MaxFilenameLen: 255,
	}, kerr.ENone
}

var _ vfs.FileSystem = (*FS)(nil)
