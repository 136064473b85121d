package tmpfs

import (
	"sort"
	"sync"
	"time"

	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/vfs"
)

// Inode is tmpfs's single Inode implementation, covering regular
// files, directories and symlinks; data lives in a plain growable byte
// slice rather than page-tracked frames, since tmpfs here is a
// process-memory simulation rather than a true physical-page consumer
// (MemorySpace's frame allocator is reserved for actual address-space
// mappings).
type Inode struct {
	mu sync.Mutex

	no       uint64
	typ      vfs.InodeType
	mode     vfs.FileMode
	uid, gid uint32
	data     []byte
	target   string // symlink target
	rdev     uint64

	atime, mtime, ctime time.Time
	nlinks               uint32

	parent   *Inode
	self     *Inode
	children map[string]*Inode

	stats *stats
}

func newInode(no uint64, typ vfs.InodeType, mode vfs.FileMode, parent *Inode, st *stats) *Inode {
	now := timeNow()
	nlinks := uint32(1)
	var children map[string]*Inode
	if typ == vfs.TypeDirectory {
		nlinks = 2
		children = make(map[string]*Inode)
	}
	modeBits := mode &^ vfs.ModeTypeMask
	switch typ {
	case vfs.TypeDirectory:
		modeBits |= vfs.ModeDir
	case vfs.TypeFile:
		modeBits |= vfs.ModeFile
	case vfs.TypeSymlink:
		modeBits |= vfs.ModeSymlink
	case vfs.TypeCharDevice:
		modeBits |= vfs.ModeChar
	case vfs.TypeBlockDevice:
		modeBits |= vfs.ModeBlock
	case vfs.TypeFifo:
		modeBits |= vfs.ModeFifo
	case vfs.TypeSocket:
		modeBits |= vfs.ModeSocket
	}
	return &Inode{
		no: no, typ: typ, mode: modeBits, parent: parent, children: children,
		atime: now, mtime: now, ctime: now, nlinks: nlinks, stats: st,
	}
}

// timeNow is a seam so tests can avoid depending on wall-clock
// behavior if ever needed; production always uses time.Now.
var timeNow = time.Now

func (n *Inode) Metadata() (vfs.Metadata, kerr.Errno) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return vfs.Metadata{
		InodeNo: n.no, InodeType: n.typ, Mode: n.mode, UID: n.uid, GID: n.gid,
		Size: int64(len(n.data)), Atime: n.atime, Mtime: n.mtime, Ctime: n.ctime,
		Nlinks: n.nlinks, Blocks: (int64(len(n.data)) + 511) / 512, Rdev: n.rdev,
	}, kerr.ENone
}

func (n *Inode) ReadAt(offset int64, buf []byte) (int, kerr.Errno) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if offset < 0 {
		return 0, kerr.EInvalidArg
	}
	if offset >= int64(len(n.data)) {
		return 0, kerr.ENone
	}
	c := copy(buf, n.data[offset:])
	n.atime = timeNow()
	return c, kerr.ENone
}

func (n *Inode) WriteAt(offset int64, buf []byte) (int, kerr.Errno) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if offset < 0 {
		return 0, kerr.EInvalidArg
	}
	need := offset + int64(len(buf))
	if need > int64(len(n.data)) {
		if err := n.stats.reserve(need - int64(len(n.data))); err != kerr.ENone {
			return 0, err
		}
		grown := make([]byte, need)
		copy(grown, n.data)
		n.data = grown
	}
	c := copy(n.data[offset:], buf)
	now := timeNow()
	n.mtime, n.ctime = now, now
	return c, kerr.ENone
}

func (n *Inode) childLocked(name string) (*Inode, kerr.Errno) {
	if n.children == nil {
		return nil, kerr.ENotDirectory
	}
	c, ok := n.children[name]
	if !ok {
		return nil, kerr.ENotFound
	}
	return c, kerr.ENone
}

func (n *Inode) Lookup(name string) (vfs.Inode, kerr.Errno) {
	n.mu.Lock()
	defer n.mu.Unlock()
	c, err := n.childLocked(name)
	if err != kerr.ENone {
		return nil, err
	}
	return c, kerr.ENone
}

func (n *Inode) create(name string, typ vfs.InodeType, mode vfs.FileMode) (*Inode, kerr.Errno) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.children == nil {
		return nil, kerr.ENotDirectory
	}
	if _, ok := n.children[name]; ok {
		return nil, kerr.EAlreadyExists
	}
	child := newInode(n.stats.allocInodeNo(), typ, mode, n.self, n.stats)
	child.self = child
	n.children[name] = child
	n.mtime = timeNow()
	return child, kerr.ENone
}

func (n *Inode) Create(name string, mode vfs.FileMode) (vfs.Inode, kerr.Errno) {
	c, err := n.create(name, vfs.TypeFile, mode)
	if err != kerr.ENone {
		return nil, err
	}
	return c, kerr.ENone
}

func (n *Inode) Mkdir(name string, mode vfs.FileMode) (vfs.Inode, kerr.Errno) {
	c, err := n.create(name, vfs.TypeDirectory, mode)
	if err != kerr.ENone {
		return nil, err
	}
	return c, kerr.ENone
}

func (n *Inode) Symlink(name, target string) (vfs.Inode, kerr.Errno) {
	c, err := n.create(name, vfs.TypeSymlink, vfs.ModeUserRead|vfs.ModeUserWrite)
	if err != kerr.ENone {
		return nil, err
	}
	c.target = target
	return c, kerr.ENone
}

func (n *Inode) Link(name string, target vfs.Inode) kerr.Errno {
	ti, ok := target.(*Inode)
	if !ok {
		return kerr.EInvalidArg
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.children == nil {
		return kerr.ENotDirectory
	}
	if _, ok := n.children[name]; ok {
		return kerr.EAlreadyExists
	}
	n.children[name] = ti
	ti.mu.Lock()
	ti.nlinks++
	ti.mu.Unlock()
	return kerr.ENone
}

func (n *Inode) Unlink(name string) kerr.Errno {
	n.mu.Lock()
	defer n.mu.Unlock()
	child, err := n.childLocked(name)
	if err != kerr.ENone {
		return err
	}
	if child.typ == vfs.TypeDirectory {
		return kerr.EIsDirectory
	}
	delete(n.children, name)
	child.mu.Lock()
	child.nlinks--
	child.mu.Unlock()
	return kerr.ENone
}

func (n *Inode) Rmdir(name string) kerr.Errno {
	n.mu.Lock()
	defer n.mu.Unlock()
	child, err := n.childLocked(name)
	if err != kerr.ENone {
		return err
	}
	if child.typ != vfs.TypeDirectory {
		return kerr.ENotDirectory
	}
	if len(child.children) != 0 {
		return kerr.EDirNotEmpty
	}
	delete(n.children, name)
	return kerr.ENone
}

func (n *Inode) Rename(oldName string, newParent vfs.Inode, newName string) kerr.Errno {
	np, ok := newParent.(*Inode)
	if !ok {
		return kerr.EInvalidArg
	}
	if n == np {
		n.mu.Lock()
		defer n.mu.Unlock()
		child, err := n.childLocked(oldName)
		if err != kerr.ENone {
			return err
		}
		if _, exists := n.children[newName]; exists {
			delete(n.children, newName)
		}
		delete(n.children, oldName)
		n.children[newName] = child
		return kerr.ENone
	}

	n.mu.Lock()
	child, err := n.childLocked(oldName)
	if err != kerr.ENone {
		n.mu.Unlock()
		return err
	}
	delete(n.children, oldName)
	n.mu.Unlock()

	np.mu.Lock()
	if np.children == nil {
		np.mu.Unlock()
		return kerr.ENotDirectory
	}
	np.children[newName] = child
	np.mu.Unlock()

	child.mu.Lock()
	child.parent = np
	child.mu.Unlock()
	return kerr.ENone
}

func (n *Inode) Readdir() ([]vfs.DirEntry, kerr.Errno) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.children == nil {
		return nil, kerr.ENotDirectory
	}
	out := []vfs.DirEntry{
		{Name: ".", InodeNo: n.no, InodeType: vfs.TypeDirectory},
	}
	if n.parent != nil {
		out = append(out, vfs.DirEntry{Name: "..", InodeNo: n.parent.no, InodeType: vfs.TypeDirectory})
	} else {
		out = append(out, vfs.DirEntry{Name: "..", InodeNo: n.no, InodeType: vfs.TypeDirectory})
	}
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := n.children[name]
		out = append(out, vfs.DirEntry{Name: name, InodeNo: c.no, InodeType: c.typ})
	}
	return out, kerr.ENone
}

func (n *Inode) Truncate(size int64) kerr.Errno {
	n.mu.Lock()
	defer n.mu.Unlock()
	if size < 0 {
		return kerr.EInvalidArg
	}
	if size < int64(len(n.data)) {
		n.stats.reserve(size - int64(len(n.data)))
		n.data = n.data[:size]
	} else if size > int64(len(n.data)) {
		if err := n.stats.reserve(size - int64(len(n.data))); err != kerr.ENone {
			return err
		}
		grown := make([]byte, size)
		copy(grown, n.data)
		n.data = grown
	}
	n.mtime = timeNow()
	return kerr.ENone
}

func (n *Inode) Sync() kerr.Errno { return kerr.ENone }

func (n *Inode) SetTimes(atime, mtime *time.Time) kerr.Errno {
	n.mu.Lock()
	defer n.mu.Unlock()
	if atime != nil {
		n.atime = *atime
	}
	if mtime != nil {
		n.mtime = *mtime
	}
	return kerr.ENone
}

func (n *Inode) Readlink() (string, kerr.Errno) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.typ != vfs.TypeSymlink {
		return "", kerr.EInvalidArg
	}
	return n.target, kerr.ENone
}

func (n *Inode) Mknod(name string, mode vfs.FileMode, dev uint64) (vfs.Inode, kerr.Errno) {
	typ := vfs.TypeCharDevice
	if mode&vfs.ModeTypeMask == vfs.ModeBlock {
		typ = vfs.TypeBlockDevice
	}
	c, err := n.create(name, typ, mode)
	if err != kerr.ENone {
		return nil, err
	}
	c.mu.Lock()
	c.rdev = dev
	c.mu.Unlock()
	return c, kerr.ENone
}

func (n *Inode) Chown(uid, gid uint32) kerr.Errno {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.uid, n.gid = uid, gid
	return kerr.ENone
}

func (n *Inode) Chmod(mode vfs.FileMode) kerr.Errno {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mode = (n.mode & vfs.ModeTypeMask) | (mode &^ vfs.ModeTypeMask)
	return kerr.ENone
}

// Cacheable is true: tmpfs inodes are ordinary, stable nodes, so the
// VFS dentry cache may hold strong references to them.
func (n *Inode) Cacheable() bool { return true }
