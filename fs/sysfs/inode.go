// Package sysfs implements /sys: a read-only export of the devices
// registered with the kernel, organized the Linux way (/sys/devices/
// platform/<name> holds the real attribute directories, /sys/class/
// <category>/<name> is a symlink back into it).
package sysfs

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/vfs"
)

// Attr is a single attribute file; Show is called fresh on every read.
type Attr struct {
	Mode vfs.FileMode
	Show func() string
}

var nextInodeNo atomic.Uint64

func allocInodeNo() uint64 { return nextInodeNo.Add(1) }

// Inode is sysfs's single Inode implementation: a directory of named
// children, an attribute backed by a Show callback, or a symlink.
type Inode struct {
	mu sync.Mutex

	no   uint64
	typ  vfs.InodeType
	mode vfs.FileMode

	attr    *Attr
	target  string
	children map[string]*Inode
}

func newDir(mode vfs.FileMode) *Inode {
	return &Inode{no: allocInodeNo(), typ: vfs.TypeDirectory, mode: mode, children: make(map[string]*Inode)}
}

func newAttr(a Attr) *Inode {
	return &Inode{no: allocInodeNo(), typ: vfs.TypeFile, mode: a.Mode, attr: &a}
}

func newSymlink(target string) *Inode {
	return &Inode{no: allocInodeNo(), typ: vfs.TypeSymlink, mode: 0o777, target: target}
}

func (n *Inode) addChild(name string, child *Inode) *Inode {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.children[name] = child
	return child
}

func (n *Inode) child(name string) (*Inode, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	c, ok := n.children[name]
	return c, ok
}

func (n *Inode) Metadata() (vfs.Metadata, kerr.Errno) {
	n.mu.Lock()
	defer n.mu.Unlock()
	size := int64(0)
	switch n.typ {
	case vfs.TypeFile:
		size = int64(len(n.attr.Show()))
	case vfs.TypeSymlink:
		size = int64(len(n.target))
	}
	nlinks := uint32(1)
	if n.typ == vfs.TypeDirectory {
		nlinks = 2
	}
	return vfs.Metadata{InodeNo: n.no, InodeType: n.typ, Mode: n.mode, Size: size, Nlinks: nlinks}, kerr.ENone
}

func (n *Inode) ReadAt(offset int64, buf []byte) (int, kerr.Errno) {
	if n.typ != vfs.TypeFile {
		return 0, kerr.EIsDirectory
	}
	data := []byte(n.attr.Show())
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
	if c, ok := n.child(name); ok {
		return c, kerr.ENone
	}
	return nil, kerr.ENotFound
}

func (n *Inode) Create(string, vfs.FileMode) (vfs.Inode, kerr.Errno) { return nil, kerr.EPermission }
func (n *Inode) Mkdir(string, vfs.FileMode) (vfs.Inode, kerr.Errno)  { return nil, kerr.EPermission }
func (n *Inode) Symlink(string, string) (vfs.Inode, kerr.Errno)      { return nil, kerr.EPermission }
func (n *Inode) Link(string, vfs.Inode) kerr.Errno                   { return kerr.EPermission }
func (n *Inode) Unlink(string) kerr.Errno                            { return kerr.EPermission }
func (n *Inode) Rmdir(string) kerr.Errno                             { return kerr.EPermission }
func (n *Inode) Rename(string, vfs.Inode, string) kerr.Errno         { return kerr.EPermission }
func (n *Inode) Mknod(string, vfs.FileMode, uint64) (vfs.Inode, kerr.Errno) {
	return nil, kerr.ENotSupported
}
func (n *Inode) Truncate(int64) kerr.Errno                  { return kerr.EPermission }
func (n *Inode) Sync() kerr.Errno                           { return kerr.ENone }
func (n *Inode) SetTimes(*time.Time, *time.Time) kerr.Errno { return kerr.EPermission }
func (n *Inode) Chown(uint32, uint32) kerr.Errno            { return kerr.ENotSupported }
func (n *Inode) Chmod(vfs.FileMode) kerr.Errno              { return kerr.ENotSupported }
func (n *Inode) Cacheable() bool                            { return true }

func (n *Inode) Readlink() (string, kerr.Errno) {
	if n.typ != vfs.TypeSymlink {
		return "", kerr.EInvalidArg
	}
	return n.target, kerr.ENone
}

func (n *Inode) Readdir() ([]vfs.DirEntry, kerr.Errno) {
	if n.typ != vfs.TypeDirectory {
		return nil, kerr.ENotDirectory
	}
	n.mu.Lock()
	defer n.mu.Unlock()
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
		c := n.children[name]
		entries = append(entries, vfs.DirEntry{Name: name, InodeNo: c.no, InodeType: c.typ})
	}
	return entries, kerr.ENone
}

var _ vfs.Inode = (*Inode)(nil)
