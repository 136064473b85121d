package memspace

import (
	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/pagetable"
)

// CloneForFork builds a child MemorySpace: kernel areas are cloned as
// metadata-only and re-mapped (no frame copy — the top-half kernel
// mapping is shared across every user space); user Framed areas are
// eagerly byte-copied into freshly allocated frames and remapped in the
// child's page table. There is no copy-on-write.
func (m *MemorySpace) CloneForFork(childTable pagetable.Table, childBatch func() *pagetable.TLBBatch) (*MemorySpace, kerr.Errno) {
	child := New(childTable, m.frames, childBatch)
	if m.HeapStart != nil {
		hs := *m.HeapStart
		child.HeapStart = &hs
	}
	for _, a := range m.Areas {
		isKernel := a.AreaType <= KernelMmio
		if isKernel {
			na := a.cloneMeta()
			if err := child.InsertArea(na); err != kerr.ENone {
				return nil, err
			}
			continue
		}
		na := NewMappingArea(a.Range, a.AreaType, a.MapType, a.Permission)
		na.FileBacking = a.FileBacking
		if a.MapType != Framed {
			if err := child.InsertArea(na); err != kerr.ENone {
				return nil, err
			}
			continue
		}
		// Eager copy: allocate + install first with empty Frames so
		// InsertArea doesn't try to allocate on its own; do this by
		// hand rather than via InsertArea since we must byte-copy
		// content.
		var copyErr kerr.Errno
		child.withBatch(func(b *pagetable.TLBBatch) {
			for vpn, srcFt := range a.Frames {
				ft, ok := m.frames.AllocFrame()
				if !ok {
					copyErr = kerr.ENoMemory
					return
				}
				copy(m.frames.Dmap(ft.PPN()), m.frames.Dmap(srcFt.PPN()))
				if err := childTable.MapWithBatch(b, vpn, ft.PPN(), pagetable.Size4K, a.Permission); err != pagetable.ErrNone {
					ft.Drop()
					copyErr = kerr.ENoMemory
					return
				}
				na.Frames[vpn] = ft
			}
		})
		if copyErr != kerr.ENone {
			for _, ft := range na.Frames {
				ft.Drop()
			}
			return nil, copyErr
		}
		child.Areas = append(child.Areas, na)
		child.sortAreas()
	}
	return child, kerr.ENone
}
