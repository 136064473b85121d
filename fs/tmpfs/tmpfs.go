// Package tmpfs implements an in-memory FileSystem: every inode's data
// and metadata live only in process memory, never touching a disk.
package tmpfs

import (
	"sync"

	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/vfs"
)

// stats is the shared, filesystem-wide bookkeeping every inode
// consults to enforce an optional byte budget (maxBytes) and hand out
// inode numbers. File data is held in byte slices, not page frames, so
// no page count is kept.
type stats struct {
	mu          sync.Mutex
	usedBytes   int64
	maxBytes    int64 // 0 = unlimited
	nextInodeNo uint64
}

func (s *stats) allocInodeNo() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.nextInodeNo
	s.nextInodeNo++
	return n
}

func (s *stats) reserve(delta int64) kerr.Errno {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxBytes != 0 && s.usedBytes+delta > s.maxBytes {
		return kerr.ENoSpace
	}
	s.usedBytes += delta
	return kerr.ENone
}

// FS is the tmpfs FileSystem implementation.
type FS struct {
	root  *Inode
	stats *stats
}

// New constructs a tmpfs instance. maxSizeMB==0 means unlimited.
func New(maxSizeMB int64) *FS {
	st := &stats{maxBytes: maxSizeMB * 1024 * 1024, nextInodeNo: 1}
	root := newInode(st.allocInodeNo(), vfs.TypeDirectory, vfs.ModeUserRead|vfs.ModeUserWrite|vfs.ModeUserExec, nil, st)
	root.self = root
	return &FS{root: root, stats: st}
}

func (f *FS) FSType() string        { return "tmpfs" }
func (f *FS) RootInode() vfs.Inode  { return f.root }
func (f *FS) Sync() kerr.Errno      { return kerr.ENone } // fully in memory, nothing to flush
func (f *FS) Umount() kerr.Errno    { return f.Sync() }

func (f *FS) StatFS() (vfs.StatFs, kerr.Errno) {
	f.stats.mu.Lock()
	defer f.stats.mu.Unlock()
	const blockSize = 4096
	total := f.stats.maxBytes / blockSize
	if f.stats.maxBytes == 0 {
		total = 1 << 40 / blockSize
	}
	used := f.stats.usedBytes / blockSize
	free := total - used
	if free < 0 {
		free = 0
	}
	return vfs.StatFs{
		BlockSize:      blockSize,
		TotalBlocks:    total,
		FreeBlocks:     free,
		AvailBlocks:    free,
		MaxFilenameLen: 255,
	}, kerr.ENone
}

// UsedBytes reports how many bytes are currently charged against the
// optional size budget.
func (f *FS) UsedBytes() int64 {
	f.stats.mu.Lock()
	defer f.stats.mu.Unlock()
	return f.stats.usedBytes
}
