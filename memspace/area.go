// Package memspace implements the per-address-space memory manager:
// mapping areas, copy-on-fork, mmap/mprotect/munmap splitting,
// file-backed page-in/write-back, and cross-page user I/O helpers. It
// is the generalization of biscuit's Vm_t/Vmregion_t
// (biscuit/src/vm/as.go) into an arch-neutral MemorySpace.
package memspace

import (
	"github.com/nyx-os/nyx/mem"
	"github.com/nyx-os/nyx/pagetable"
)

// AreaType classifies a mapping area's role.
type AreaType int

const (
	KernelText AreaType = iota
	KernelRodata
	KernelData
	KernelBss
	KernelStack
	KernelHeap
	KernelMmio
	UserText
	UserRodata
	UserData
	UserBss
	UserStack
	UserHeap
	UserMmap
)

// MapType selects how an area's VPNs are backed.
type MapType int

const (
	// Direct maps VA to PA by a fixed mask (no owned frames).
	Direct MapType = iota
	// Framed owns frames individually, tracked in Frames.
	Framed
	// Reserved installs no PTE; a PROT_NONE placeholder, e.g. for
	// guard pages or a permission-stripped mprotect middle region.
	Reserved
	// Shared installs PTEs pointing at frames owned and tracked
	// elsewhere (an ipc shared-memory segment), rather than frames
	// the area allocates and owns itself. RemoveArea never drops
	// these frames; the segment's own refcount does.
	Shared
)

// FileBacking describes an mmap'd region's backing file.
type FileBacking struct {
	File   FileRef
	Offset int64
	Len    int64
	Prot   pagetable.Flags
	Shared bool // MAP_SHARED vs MAP_PRIVATE
}

// FileRef is the minimal contract MemorySpace needs from a backing file
// to page data in and write dirty pages back out; vfs.File satisfies it.
type FileRef interface {
	ReadAt(offset int64, buf []byte) (int, error)
	WriteAt(offset int64, buf []byte) (int, error)
}

// MappingArea is one VMA: a contiguous VPN range with a single
// permission and a single mapping strategy.
type MappingArea struct {
	Range      mem.PageNumRange[mem.VPN]
	AreaType   AreaType
	MapType    MapType
	Permission pagetable.Flags

	// Frames holds, for Framed areas only, the owned frame per
	// populated VPN. A VPN is present here iff its PTE is installed.
	Frames map[mem.VPN]*mem.FrameTracker

	FileBacking *FileBacking

	// SharedPPNs holds, for Shared areas only, the externally-owned
	// PPN each VPN maps to.
	SharedPPNs map[mem.VPN]mem.PPN

	// dirty tracks, per VPN, whether the page has been written since
	// the last sync_file. Modeled here rather than read back out of a
	// real PTE dirty bit, since SoftTable does not track hardware-set
	// dirty bits.
	dirty map[mem.VPN]bool
}

// NewMappingArea constructs an area with no frames populated yet.
func NewMappingArea(r mem.PageNumRange[mem.VPN], at AreaType, mt MapType, perm pagetable.Flags) *MappingArea {
	a := &MappingArea{Range: r, AreaType: at, MapType: mt, Permission: perm}
	if mt == Framed {
		a.Frames = make(map[mem.VPN]*mem.FrameTracker)
		a.dirty = make(map[mem.VPN]bool)
	}
	return a
}

// NewSharedMappingArea constructs a Shared area over VPNs already
// paired with externally-owned PPNs (ppns must have exactly r.Len()
// entries walking r in order).
func NewSharedMappingArea(r mem.PageNumRange[mem.VPN], at AreaType, perm pagetable.Flags, ppns map[mem.VPN]mem.PPN) *MappingArea {
	return &MappingArea{Range: r, AreaType: at, MapType: Shared, Permission: perm, SharedPPNs: ppns}
}

// MappedPages returns the number of VPNs with a populated PTE (Framed
// areas only; Direct/Reserved areas report the full range length or 0
// respectively, since Reserved areas have no PTE).
func (a *MappingArea) MappedPages() int {
	switch a.MapType {
	case Framed:
		return len(a.Frames)
	case Direct, Shared:
		return a.Range.Len()
	default: // Reserved
		return 0
	}
}

// cloneMeta returns a metadata-only duplicate (no frames): used for kernel
// areas on fork, where the caller re-maps into the new page table rather
// than copying content.
func (a *MappingArea) cloneMeta() *MappingArea {
	na := NewMappingArea(a.Range, a.AreaType, a.MapType, a.Permission)
	na.FileBacking = a.FileBacking
	return na
}
