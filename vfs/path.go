package vfs

import (
	"strings"

	"github.com/nyx-os/nyx/kerr"
)

// MaxSymlinkDepth bounds how many symlinks a single path resolution
// will follow before giving up with ELoop.
const MaxSymlinkDepth = 8

// componentKind classifies one slash-separated path token.
type componentKind int

const (
	compRoot componentKind = iota
	compCurrent
	compParent
	compNormal
)

type component struct {
	kind componentKind
	name string
}

// parsePath splits path into components; a leading "/" produces a
// leading compRoot component. Empty components from repeated slashes
// are dropped.
func parsePath(path string) []component {
	var out []component
	if strings.HasPrefix(path, "/") {
		out = append(out, component{kind: compRoot})
	}
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		switch part {
		case ".":
			out = append(out, component{kind: compCurrent})
		case "..":
			out = append(out, component{kind: compParent})
		default:
			out = append(out, component{kind: compNormal, name: part})
		}
	}
	return out
}

// Walker resolves path strings to Dentry nodes against a root, a
// mutable current-directory hook, the dentry cache, and the mount
// table. It has no state of its own beyond these collaborators, so one
// Walker can serve every task.
type Walker struct {
	cache  *Cache
	mounts *MountTable
	root   func() *Dentry
	cwd    func() *Dentry

	// lookupInode is not set by NewWalker and not read by the walk:
	// resolveComponent calls the parent Inode's Lookup directly.
	lookupInode func(parent Inode, name string) (Inode, kerr.Errno)
}

// NewWalker constructs a path walker over the given root/cwd
// providers, dentry cache and mount table.
func NewWalker(cache *Cache, mounts *MountTable, root, cwd func() *Dentry) *Walker {
	return &Walker{cache: cache, mounts: mounts, root: root, cwd: cwd}
}

// Lookup resolves path, following a trailing symlink if present.
func (w *Walker) Lookup(path string) (*Dentry, kerr.Errno) {
	return w.lookup(path, true)
}

// LookupNoFollow resolves path without following a trailing symlink
// (used by lstat, unlink, rename's source, readlink itself).
func (w *Walker) LookupNoFollow(path string) (*Dentry, kerr.Errno) {
	return w.lookup(path, false)
}

func (w *Walker) lookup(path string, followLast bool) (*Dentry, kerr.Errno) {
	comps := parsePath(path)
	var start *Dentry
	if len(comps) > 0 && comps[0].kind == compRoot {
		start = w.root()
	} else {
		start = w.cwd()
	}
	if start == nil {
		return nil, kerr.ENotFound
	}
	return w.walk(start, comps, followLast)
}

// LookupFrom resolves path against base instead of root/cwd (used by
// openat-family syscalls with a directory fd).
func (w *Walker) LookupFrom(base *Dentry, path string) (*Dentry, kerr.Errno) {
	comps := parsePath(path)
	filtered := comps[:0:0]
	for _, c := range comps {
		if c.kind != compRoot {
			filtered = append(filtered, c)
		}
	}
	return w.walk(base, filtered, true)
}

func (w *Walker) walk(start *Dentry, comps []component, followLast bool) (*Dentry, kerr.Errno) {
	cur := start
	i := 0
	symlinkDepth := 0

	for i < len(comps) {
		c := comps[i]
		isLast := i+1 == len(comps)

		next, err := w.resolveComponent(cur, c)
		if err != kerr.ENone {
			return nil, err
		}
		cur = next

		meta, merr := cur.Inode.Metadata()
		if merr != kerr.ENone {
			return nil, merr
		}
		if meta.InodeType == TypeSymlink && (followLast || !isLast) {
			if symlinkDepth >= MaxSymlinkDepth {
				return nil, kerr.ETooManySymlink
			}
			symlinkDepth++

			target, rerr := cur.Inode.Readlink()
			if rerr != kerr.ENone {
				return nil, rerr
			}

			if strings.HasPrefix(target, "/") {
				cur = w.root()
			} else if p := cur.Parent(); p != nil {
				cur = p
			} else {
				cur = w.root()
			}

			targetComps := parsePath(target)
			remaining := append([]component{}, comps[i+1:]...)
			comps = append(targetComps, remaining...)
			i = 0
			continue
		}

		i++
	}
	return cur, kerr.ENone
}

func (w *Walker) resolveComponent(base *Dentry, c component) (*Dentry, kerr.Errno) {
	switch c.kind {
	case compRoot:
		return w.checkMount(w.root())
	case compCurrent:
		return base, kerr.ENone
	case compParent:
		// ".." at a mount's root crosses back into the parent mount
		// at the dentry it covers, rather than stopping dead the way
		// it does at the true global root.
		if covered, ok := base.MountedOver(); ok {
			if p := covered.Parent(); p != nil {
				return w.checkMount(p)
			}
			return base, kerr.ENone
		}
		if p := base.Parent(); p != nil {
			return w.checkMount(p)
		}
		return base, kerr.ENone // root's parent is itself
	default:
		if child, ok := base.LookupChild(c.name); ok {
			return w.checkMount(child)
		}
		childInode, err := base.Inode.Lookup(c.name)
		if err != kerr.ENone {
			return nil, err
		}
		child := NewDentry(c.name, childInode)
		if childInode.Cacheable() {
			base.AddChild(child)
			w.cache.Insert(child)
		} else {
			child.SetParent(base)
		}
		return w.checkMount(child)
	}
}

func (w *Walker) checkMount(d *Dentry) (*Dentry, kerr.Errno) {
	if mounted, ok := d.GetMount(); ok {
		return mounted, kerr.ENone
	}
	full := d.FullPath()
	if m, ok := w.mounts.FindMount(full); ok && m.Path == full {
		d.SetMount(m.Root)
		m.Root.SetMountedOver(d)
		return m.Root, kerr.ENone
	}
	return d, kerr.ENone
}

// SplitPath splits path at its last slash into (dir, filename); "."
// and ".." components are not normalized. A trailing slash on anything
// but "/" itself is rejected, same as mkdir/unlink require an explicit
// filename component.
func SplitPath(path string) (dir, name string, err kerr.Errno) {
	if strings.HasSuffix(path, "/") && len(path) > 1 {
		return "", "", kerr.EInvalidArg
	}
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ".", path, kerr.ENone
	}
	if idx == 0 {
		dir = "/"
	} else {
		dir = path[:idx]
	}
	name = path[idx+1:]
	if name == "" {
		return "", "", kerr.EInvalidArg
	}
	return dir, name, kerr.ENone
}
