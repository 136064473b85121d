package procfs

import (
	"strconv"

	"github.com/nyx-os/nyx/archops"
	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/vfs"
)

const pidInodeStride = 32

func pidDirInodeNo(tid int) uint64 { return 1_000_000_000 + uint64(tid)*pidInodeStride }

// FS is the procfs FileSystem implementation: a static tree of
// system-wide generators plus lazily constructed /proc/[tid] entries.
type FS struct {
	root *Inode
}

// New builds a procfs instance. It queries archops.FSHostOps() only
// when files are actually read, not at construction time, so procfs
// can be mounted before the host provider finishes registering.
func New() *FS {
	root := newDirInode(vfs.ModeUserRead | vfs.ModeUserExec)

	root.addChild("meminfo", newDynamicFile(0, meminfoGenerator, 0o444))
	root.addChild("cpuinfo", newDynamicFile(0, cpuinfoGenerator, 0o444))
	root.addChild("uptime", newDynamicFile(0, uptimeGenerator, 0o444))
	root.addChild("mounts", newDynamicFile(0, mountsGenerator, 0o444))

	root.pidLookup = func(name string) (*Inode, bool) {
		tid, err := strconv.Atoi(name)
		if err != nil || tid < 0 {
			return nil, false
		}
		if _, ok := archops.FSHostOps().TaskCmdline(tid); !ok {
			return nil, false
		}
		return newPidDir(tid), true
	}
	root.pidReaddir = func() []vfs.DirEntry {
		var entries []vfs.DirEntry
		for _, tid := range archops.FSHostOps().TaskIDs() {
			entries = append(entries, vfs.DirEntry{
				Name:      strconv.Itoa(tid),
				InodeNo:   pidDirInodeNo(tid),
				InodeType: vfs.TypeDirectory,
			})
		}
		return entries
	}

	return &FS{root: root}
}

func newPidDir(tid int) *Inode {
	dir := &Inode{
		no:       pidDirInodeNo(tid),
		typ:      vfs.TypeDirectory,
		mode:     vfs.ModeUserRead | vfs.ModeUserExec,
		children: make(map[string]*Inode),
		// /proc/[tid] is rebuilt from live task state on every lookup,
		// never cached: the tid may have exited between two path walks.
		cacheable: false,
	}
	dir.addChild("cmdline", newDynamicFile(pidDirInodeNo(tid)+1, cmdlineGenerator(tid), 0o444))
	dir.addChild("status", newDynamicFile(pidDirInodeNo(tid)+2, statusGenerator(tid), 0o444))
	dir.addChild("stat", newDynamicFile(pidDirInodeNo(tid)+3, statGenerator(tid), 0o444))
	dir.addChild("exe", newDynamicSymlink(pidDirInodeNo(tid)+4, func() string { return "/" }))
	return dir
}

func (f *FS) FSType() string       { return "proc" }
func (f *FS) RootInode() vfs.Inode { return f.root }
func (f *FS) Sync() kerr.Errno     { return kerr.ENone }
func (f *FS) Umount() kerr.Errno   { return f.Sync() }

func (f *FS) StatFS() (vfs.StatFs, kerr.Errno) {
	return vfs.StatFs{BlockSize: 4096, MaxFilenameLen: 255}, kerr.ENone
}

var _ vfs.FileSystem = (*FS)(nil)
