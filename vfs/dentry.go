package vfs

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Dentry caches the (name, inode) binding for one path component,
// linked into a tree mirroring the directory hierarchy. Parent links
// are weak (a pointer, never reference-counted away from the tree) so
// a subtree can be evicted from its parent without pinning the whole
// path back to root; child links are strong, kept alive by the cache
// and by any held Dentry. A dentry that is itself a mount point also
// holds the mounted filesystem's root, checked first on descent.
type Dentry struct {
	mu sync.RWMutex

	Name  string
	Inode Inode

	parent   *Dentry
	children map[string]*Dentry

	mountedRoot *Dentry // non-nil if something is mounted here
	mountedOver *Dentry // non-nil if this dentry IS a mount's root: the dentry it covers
}

// NewDentry constructs a detached dentry for name/inode; callers attach
// it to the tree via AddChild.
func NewDentry(name string, inode Inode) *Dentry {
	return &Dentry{Name: name, Inode: inode, children: make(map[string]*Dentry)}
}

// Parent returns the dentry's parent, or nil at the root.
func (d *Dentry) Parent() *Dentry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.parent
}

// SetParent installs parent's back-link without touching parent's own
// child map (used for uncacheable inodes, which are linked one way
// only so repeated lookups can still find their way up via Parent()
// without the cache pinning them from below).
func (d *Dentry) SetParent(parent *Dentry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.parent = parent
}

// AddChild links child under d, cacheable entries only; see Cache.Insert
// for the decision of whether to call this versus SetParent alone.
func (d *Dentry) AddChild(child *Dentry) {
	d.mu.Lock()
	child.mu.Lock()
	d.children[child.Name] = child
	child.parent = d
	child.mu.Unlock()
	d.mu.Unlock()
}

// LookupChild returns a cached child by name, if present.
func (d *Dentry) LookupChild(name string) (*Dentry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.children[name]
	return c, ok
}

// GetMount returns the dentry mounted at d, if any.
func (d *Dentry) GetMount() (*Dentry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.mountedRoot == nil {
		return nil, false
	}
	return d.mountedRoot, true
}

// SetMount records that root is mounted at d.
func (d *Dentry) SetMount(root *Dentry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mountedRoot = root
}

// ClearMount removes d's mount, if any.
func (d *Dentry) ClearMount() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mountedRoot = nil
}

// SetMountedOver records that d is the root dentry of a filesystem
// mounted over covered: ".." resolved at d must cross back into
// covered's own parent rather than treat d as a second root.
func (d *Dentry) SetMountedOver(covered *Dentry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mountedOver = covered
}

// MountedOver returns the dentry d's filesystem is mounted over, if d
// is a mount root.
func (d *Dentry) MountedOver() (*Dentry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.mountedOver == nil {
		return nil, false
	}
	return d.mountedOver, true
}

// FullPath reconstructs d's absolute path by walking parent links to
// the root.
func (d *Dentry) FullPath() string {
	var parts []string
	cur := d
	for cur != nil && cur.Parent() != nil {
		parts = append([]string{cur.Name}, parts...)
		cur = cur.Parent()
	}
	if len(parts) == 0 {
		return "/"
	}
	out := ""
	for _, p := range parts {
		out += "/" + p
	}
	return out
}

// Cache is the global dentry cache: a keyed map from full path to
// dentry plus a singleflight group so concurrent lookups racing to
// resolve the same uncached path collapse into one inode.Lookup call,
// rather than each walker hitting the backing filesystem independently.
type Cache struct {
	mu      sync.RWMutex
	byPath  map[string]*Dentry
	group   singleflight.Group
}

// NewCache returns an empty dentry cache.
func NewCache() *Cache {
	return &Cache{byPath: make(map[string]*Dentry)}
}

// Insert adds d to the cache keyed by its current full path, provided
// its inode is cacheable. Uncacheable inodes (most procfs/sysfs
// generated nodes) are looked up fresh every time and never stored
// here, though they still get a parent back-link via SetParent so path
// walking upward continues to work.
func (c *Cache) Insert(d *Dentry) {
	if !d.Inode.Cacheable() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byPath[d.FullPath()] = d
}

// Get returns the cached dentry at path, if any.
func (c *Cache) Get(path string) (*Dentry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.byPath[path]
	return d, ok
}

// Remove evicts path from the cache (used by rename/unlink/rmdir).
func (c *Cache) Remove(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byPath, path)
}

// ResolveOnce collapses concurrent cache misses for the same key: only
// one caller's miss function actually runs; the rest block on its
// result. Callers pass the full path being resolved as key.
func (c *Cache) ResolveOnce(key string, miss func() (*Dentry, error)) (*Dentry, error) {
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return miss()
	})
	if err != nil {
		return nil, err
	}
	return v.(*Dentry), nil
}
