// Package procfs implements /proc: a read-only, content-on-read tree
// of kernel and per-task statistics, backed by archops.FSHost rather
// than touching task/mem internals directly.
package procfs

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/vfs"
)

// Generator produces a file's content freshly on every read, so
// entries like /proc/uptime never go stale between opens.
type Generator func() []byte

// SymlinkGenerator produces a symlink target freshly on every read
// (used by /proc/[pid]/exe, whose target can move between reads).
type SymlinkGenerator func() string

var nextInodeNo atomic.Uint64

func allocInodeNo() uint64 { return nextInodeNo.Add(1) }

// Inode is procfs's single Inode implementation; its behavior is
// selected by which of static/generator/children/symlink is set.
type Inode struct {
	mu sync.Mutex

	no   uint64
	typ  vfs.InodeType
	mode vfs.FileMode

	static     []byte
	generator  Generator
	symlink    string
	symlinkGen SymlinkGenerator

	children     map[string]*Inode
	pidLookup    func(name string) (*Inode, bool) // root-only: lazy /proc/<pid>
	pidReaddir   func() []vfs.DirEntry            // root-only: live pid listing

	cacheable bool
}

func newDirInode(mode vfs.FileMode) *Inode {
	return &Inode{
		no:        allocInodeNo(),
		typ:       vfs.TypeDirectory,
		mode:      mode,
		children:  make(map[string]*Inode),
		cacheable: true,
	}
}

func newStaticFile(no uint64, content []byte, mode vfs.FileMode) *Inode {
	if no == 0 {
		no = allocInodeNo()
	}
	return &Inode{no: no, typ: vfs.TypeFile, mode: mode, static: content, cacheable: true}
}

func newDynamicFile(no uint64, gen Generator, mode vfs.FileMode) *Inode {
	if no == 0 {
		no = allocInodeNo()
	}
	return &Inode{no: no, typ: vfs.TypeFile, mode: mode, generator: gen, cacheable: true}
}

func newDynamicSymlink(no uint64, gen SymlinkGenerator) *Inode {
	if no == 0 {
		no = allocInodeNo()
	}
	return &Inode{no: no, typ: vfs.TypeSymlink, mode: 0o777, symlinkGen: gen, cacheable: true}
}

func (n *Inode) addChild(name string, child *Inode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.children[name] = child
}

func (n *Inode) content() []byte {
	if n.generator != nil {
		return n.generator()
	}
	return n.static
}

func (n *Inode) Metadata() (vfs.Metadata, kerr.Errno) {
	n.mu.Lock()
	defer n.mu.Unlock()
	size := int64(0)
	switch n.typ {
	case vfs.TypeFile:
		size = int64(len(n.content()))
	case vfs.TypeSymlink:
		if n.symlinkGen != nil {
			size = int64(len(n.symlinkGen()))
		} else {
			size = int64(len(n.symlink))
		}
	}
	nlinks := uint32(1)
	if n.typ == vfs.TypeDirectory {
		nlinks = 2
	}
	return vfs.Metadata{
		InodeNo:   n.no,
		InodeType: n.typ,
		Mode:      n.mode,
		Size:      size,
		Nlinks:    nlinks,
	}, kerr.ENone
}

func (n *Inode) ReadAt(offset int64, buf []byte) (int, kerr.Errno) {
	if n.typ != vfs.TypeFile {
		return 0, kerr.EIsDirectory
	}
	data := n.content()
	if offset < 0 {
		return 0, kerr.EInvalidArg
	}
	if offset >= int64(len(data)) {
		return 0, kerr.ENone
	}
	return copy(buf, data[offset:]), kerr.ENone
}

func (n *Inode) WriteAt(int64, []byte) (int, kerr.Errno) { return 0, kerr.EPermission }

func (n *Inode) Lookup(name string) (vfs.Inode, kerr.Errno) {
	n.mu.Lock()
	child, ok := n.children[name]
	lookupFn := n.pidLookup
	n.mu.Unlock()
	if ok {
		return child, kerr.ENone
	}
	if lookupFn != nil {
		if dyn, ok := lookupFn(name); ok {
			return dyn, kerr.ENone
		}
	}
	return nil, kerr.ENotFound
}

func (n *Inode) Create(string, vfs.FileMode) (vfs.Inode, kerr.Errno)   { return nil, kerr.EPermission }
func (n *Inode) Mkdir(string, vfs.FileMode) (vfs.Inode, kerr.Errno)    { return nil, kerr.EPermission }
func (n *Inode) Symlink(string, string) (vfs.Inode, kerr.Errno)        { return nil, kerr.EPermission }
func (n *Inode) Link(string, vfs.Inode) kerr.Errno                     { return kerr.EPermission }
func (n *Inode) Unlink(string) kerr.Errno                              { return kerr.EPermission }
func (n *Inode) Rmdir(string) kerr.Errno                               { return kerr.EPermission }
func (n *Inode) Rename(string, vfs.Inode, string) kerr.Errno           { return kerr.EPermission }
func (n *Inode) Mknod(string, vfs.FileMode, uint64) (vfs.Inode, kerr.Errno) {
	return nil, kerr.ENotSupported
}
func (n *Inode) Truncate(int64) kerr.Errno                  { return kerr.EPermission }
func (n *Inode) Sync() kerr.Errno                           { return kerr.ENone }
func (n *Inode) SetTimes(*time.Time, *time.Time) kerr.Errno { return kerr.EPermission }
func (n *Inode) Chown(uint32, uint32) kerr.Errno            { return kerr.ENotSupported }
func (n *Inode) Chmod(vfs.FileMode) kerr.Errno              { return kerr.ENotSupported }
func (n *Inode) Cacheable() bool                            { return n.cacheable }

func (n *Inode) Readlink() (string, kerr.Errno) {
	if n.typ != vfs.TypeSymlink {
		return "", kerr.EInvalidArg
	}
	if n.symlinkGen != nil {
		return n.symlinkGen(), kerr.ENone
	}
	return n.symlink, kerr.ENone
}

func (n *Inode) Readdir() ([]vfs.DirEntry, kerr.Errno) {
	if n.typ != vfs.TypeDirectory {
		return nil, kerr.ENotDirectory
	}
	n.mu.Lock()
	entries := []vfs.DirEntry{
		{Name: ".", InodeNo: n.no, InodeType: vfs.TypeDirectory},
		{Name: "..", InodeNo: n.no, InodeType: vfs.TypeDirectory},
	}
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		child := n.children[name]
		entries = append(entries, vfs.DirEntry{Name: name, InodeNo: child.no, InodeType: child.typ})
	}
	readdirFn := n.pidReaddir
	n.mu.Unlock()

	if readdirFn != nil {
		seen := make(map[string]bool, len(names))
		for _, name := range names {
			seen[name] = true
		}
		for _, e := range readdirFn() {
			if !seen[e.Name] {
				entries = append(entries, e)
			}
		}
	}
	return entries, kerr.ENone
}

var _ vfs.Inode = (*Inode)(nil)
