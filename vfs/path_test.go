package vfs

import (
	"testing"
	"time"

	"github.com/nyx-os/nyx/kerr"
)

// memInode is a minimal in-memory Inode double used only to exercise
// path walking; it is not a real filesystem.
type memInode struct {
	typ      InodeType
	children map[string]*memInode
	target   string // symlink target
	cacheable bool
}

func newDirInode() *memInode {
	return &memInode{typ: TypeDirectory, children: make(map[string]*memInode), cacheable: true}
}

func newSymlink(target string) *memInode {
	return &memInode{typ: TypeSymlink, target: target, cacheable: true}
}

func (m *memInode) Metadata() (Metadata, kerr.Errno) {
	return Metadata{InodeType: m.typ}, kerr.ENone
}
func (m *memInode) ReadAt(int64, []byte) (int, kerr.Errno)  { return 0, kerr.ENotSupported }
func (m *memInode) WriteAt(int64, []byte) (int, kerr.Errno) { return 0, kerr.ENotSupported }
func (m *memInode) Lookup(name string) (Inode, kerr.Errno) {
	c, ok := m.children[name]
	if !ok {
		return nil, kerr.ENotFound
	}
	return c, kerr.ENone
}
func (m *memInode) Create(name string, mode FileMode) (Inode, kerr.Errno) {
	c := &memInode{typ: TypeFile, cacheable: true}
	m.children[name] = c
	return c, kerr.ENone
}
func (m *memInode) Mkdir(name string, mode FileMode) (Inode, kerr.Errno) {
	c := newDirInode()
	m.children[name] = c
	return c, kerr.ENone
}
func (m *memInode) Symlink(name, target string) (Inode, kerr.Errno) {
	c := newSymlink(target)
	m.children[name] = c
	return c, kerr.ENone
}
func (m *memInode) Link(name string, target Inode) kerr.Errno { return kerr.ENotSupported }
func (m *memInode) Unlink(name string) kerr.Errno {
	delete(m.children, name)
	return kerr.ENone
}
func (m *memInode) Rmdir(name string) kerr.Errno { return m.Unlink(name) }
func (m *memInode) Rename(oldName string, newParent Inode, newName string) kerr.Errno {
	return kerr.ENotSupported
}
func (m *memInode) Readdir() ([]DirEntry, kerr.Errno) { return nil, kerr.ENone }
func (m *memInode) Truncate(int64) kerr.Errno         { return kerr.ENotSupported }
func (m *memInode) Sync() kerr.Errno                  { return kerr.ENone }
func (m *memInode) SetTimes(*time.Time, *time.Time) kerr.Errno { return kerr.ENone }
func (m *memInode) Readlink() (string, kerr.Errno) {
	if m.typ != TypeSymlink {
		return "", kerr.EInvalidArg
	}
	return m.target, kerr.ENone
}
func (m *memInode) Mknod(name string, mode FileMode, dev uint64) (Inode, kerr.Errno) {
	return nil, kerr.ENotSupported
}
func (m *memInode) Chown(uint32, uint32) kerr.Errno { return kerr.ENone }
func (m *memInode) Chmod(FileMode) kerr.Errno       { return kerr.ENone }
func (m *memInode) Cacheable() bool                 { return m.cacheable }

func newTestWalker() (*Walker, *Dentry) {
	root := newDirInode()
	sub := newDirInode()
	root.children["etc"] = sub
	sub.children["passwd"] = &memInode{typ: TypeFile, cacheable: true}
	root.children["link-to-etc"] = newSymlink("/etc")

	rootDentry := NewDentry("", root)
	cache := NewCache()
	cache.Insert(rootDentry)
	mounts := NewMountTable()
	w := NewWalker(cache, mounts, func() *Dentry { return rootDentry }, func() *Dentry { return rootDentry })
	return w, rootDentry
}

func TestWalkerResolvesAbsolutePath(t *testing.T) {
	w, _ := newTestWalker()
	d, err := w.Lookup("/etc/passwd")
	if err != kerr.ENone {
		t.Fatalf("lookup failed: %v", err)
	}
	if d.Name != "passwd" {
		t.Fatalf("expected passwd dentry, got %q", d.Name)
	}
}

func TestWalkerFollowsSymlink(t *testing.T) {
	w, _ := newTestWalker()
	d, err := w.Lookup("/link-to-etc/passwd")
	if err != kerr.ENone {
		t.Fatalf("lookup through symlink failed: %v", err)
	}
	if d.Name != "passwd" {
		t.Fatalf("expected passwd via symlink, got %q", d.Name)
	}
}

func TestWalkerNoFollowStopsAtSymlink(t *testing.T) {
	w, _ := newTestWalker()
	d, err := w.LookupNoFollow("/link-to-etc")
	if err != kerr.ENone {
		t.Fatalf("lookup failed: %v", err)
	}
	meta, _ := d.Inode.Metadata()
	if meta.InodeType != TypeSymlink {
		t.Fatalf("expected to stop at the symlink itself, got type %v", meta.InodeType)
	}
}

func TestWalkerParentOfRootIsRoot(t *testing.T) {
	w, root := newTestWalker()
	d, err := w.Lookup("/..")
	if err != kerr.ENone {
		t.Fatalf("lookup failed: %v", err)
	}
	if d != root {
		t.Fatal("expected root's parent to resolve to root itself")
	}
}

func TestWalkerParentOfMountRootCrossesIntoParentMount(t *testing.T) {
	outerRoot := newDirInode()
	outerRoot.children["mnt"] = newDirInode()

	rootDentry := NewDentry("", outerRoot)
	cache := NewCache()
	cache.Insert(rootDentry)
	mounts := NewMountTable()
	w := NewWalker(cache, mounts, func() *Dentry { return rootDentry }, func() *Dentry { return rootDentry })

	innerRoot := newDirInode()
	innerRoot.children["file"] = &memInode{typ: TypeFile, cacheable: true}
	innerRootDentry := NewDentry("", innerRoot)
	mounts.Mount("/mnt", nil, innerRootDentry)

	// Resolving into the mountpoint must land on the mounted fs's root,
	// not the covered directory inode.
	inMount, err := w.Lookup("/mnt")
	if err != kerr.ENone || inMount != innerRootDentry {
		t.Fatalf("expected /mnt to resolve into the mounted fs root, got %v err=%v", inMount, err)
	}

	// ".." from the mounted root must cross back into the covered
	// dentry's own parent (the outer root), not stop dead as it would
	// at the true global root.
	back, err := w.Lookup("/mnt/..")
	if err != kerr.ENone || back != rootDentry {
		t.Fatalf("expected /mnt/.. from mount root to reach outer root, got %v err=%v", back, err)
	}

	// ".." from inside the mounted fs, one level up from its own root,
	// must stay inside that fs rather than also crossing out.
	viaFile, err := w.Lookup("/mnt/file/..")
	if err != kerr.ENone || viaFile != innerRootDentry {
		t.Fatalf("expected /mnt/file/.. to stay inside the mounted fs at its root, got %v err=%v", viaFile, err)
	}
}

func TestWalkerTooManySymlinksDetected(t *testing.T) {
	root := newDirInode()
	// build a chain of MaxSymlinkDepth+2 symlinks, each pointing to the next
	prev := "/final"
	root.children["final"] = &memInode{typ: TypeFile, cacheable: true}
	for i := 0; i < MaxSymlinkDepth+2; i++ {
		name := "link"
		if i > 0 {
			name = "link" + string(rune('0'+i))
		}
		root.children[name] = newSymlink(prev)
		prev = "/" + name
	}
	rootDentry := NewDentry("", root)
	cache := NewCache()
	cache.Insert(rootDentry)
	mounts := NewMountTable()
	w := NewWalker(cache, mounts, func() *Dentry { return rootDentry }, func() *Dentry { return rootDentry })

	_, err := w.Lookup(prev)
	if err != kerr.ETooManySymlink {
		t.Fatalf("expected ETooManySymlink, got %v", err)
	}
}

func TestSplitPathRejectsTrailingSlash(t *testing.T) {
	if _, _, err := SplitPath("/foo/"); err != kerr.EInvalidArg {
		t.Fatalf("expected EInvalidArg for trailing slash, got %v", err)
	}
}

func TestSplitPathOrdinary(t *testing.T) {
	dir, name, err := SplitPath("/etc/passwd")
	if err != kerr.ENone || dir != "/etc" || name != "passwd" {
		t.Fatalf("unexpected split: dir=%q name=%q err=%v", dir, name, err)
	}
}

func TestSplitPathRelativeNoSlash(t *testing.T) {
	dir, name, err := SplitPath("foo")
	if err != kerr.ENone || dir != "." || name != "foo" {
		t.Fatalf("unexpected split: dir=%q name=%q err=%v", dir, name, err)
	}
}
