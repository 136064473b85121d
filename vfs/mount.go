package vfs

import (
	"sort"
	"strings"
	"sync"

	"github.com/nyx-os/nyx/kerr"
)

// Mount records one filesystem mounted at a path.
type Mount struct {
	Path string
	FS   FileSystem
	Root *Dentry
}

// MountTable is the stacked table of active mounts, keyed by mount
// path. "Stacked" means mounting over an already-mounted path shadows
// the earlier mount rather than replacing it — umount reveals the one
// beneath, mirroring Linux mount namespaces' simplest (non-namespaced)
// behavior.
type MountTable struct {
	mu    sync.RWMutex
	stack map[string][]*Mount
}

// NewMountTable returns an empty mount table.
func NewMountTable() *MountTable {
	return &MountTable{stack: make(map[string][]*Mount)}
}

// Mount pushes a new mount of fs at path, on top of anything already
// mounted there.
func (t *MountTable) Mount(path string, fs FileSystem, root *Dentry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stack[path] = append(t.stack[path], &Mount{Path: path, FS: fs, Root: root})
}

// FindMount returns the active (topmost) mount whose path is the
// longest prefix-match of the given full path, or false if nothing is
// mounted along it.
func (t *MountTable) FindMount(fullPath string) (*Mount, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var best *Mount
	bestLen := -1
	for p, stack := range t.stack {
		if len(stack) == 0 {
			continue
		}
		if p == fullPath || strings.HasPrefix(fullPath, p+"/") || p == "/" {
			if len(p) > bestLen {
				best = stack[len(stack)-1]
				bestLen = len(p)
			}
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// Umount pops the topmost mount at path, syncing and calling its
// FileSystem.Umount, and reveals whatever was mounted there before (if
// anything). Returns kerr.ENotFound if nothing is mounted at path.
func (t *MountTable) Umount(path string) kerr.Errno {
	t.mu.Lock()
	stack, ok := t.stack[path]
	if !ok || len(stack) == 0 {
		t.mu.Unlock()
		return kerr.ENotFound
	}
	top := stack[len(stack)-1]
	stack = stack[:len(stack)-1]
	if len(stack) == 0 {
		delete(t.stack, path)
	} else {
		t.stack[path] = stack
	}
	t.mu.Unlock()

	return top.FS.Umount()
}

// ListMounts returns every active mount, sorted by path for stable
// output (e.g. /proc/mounts generation).
func (t *MountTable) ListMounts() []*Mount {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []*Mount
	for _, stack := range t.stack {
		if len(stack) > 0 {
			out = append(out, stack[len(stack)-1])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
