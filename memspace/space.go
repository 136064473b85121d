package memspace

import (
	"sort"

	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/mem"
	"github.com/nyx-os/nyx/pagetable"
)

// MemorySpace is (page_table, []MappingArea, optional heap_start).
// Areas never overlap; HeapStart, once set, is monotone and contained
// in the single UserHeap area.
type MemorySpace struct {
	Table     pagetable.Table
	Areas     []*MappingArea
	HeapStart *mem.VPN

	frames *mem.FrameAllocator
	batch  func() *pagetable.TLBBatch
}

// New constructs an empty address space over the given page table,
// frame allocator, and TLB-batch factory.
func New(table pagetable.Table, frames *mem.FrameAllocator, batch func() *pagetable.TLBBatch) *MemorySpace {
	return &MemorySpace{Table: table, frames: frames, batch: batch}
}

func (m *MemorySpace) withBatch(fn func(*pagetable.TLBBatch)) {
	pagetable.NewTLBBatchContextWrapper(m.batch).Execute(fn)
}

// FindOverlappingAreas returns indices, in area-vector order, of every
// area overlapping r.
func (m *MemorySpace) FindOverlappingAreas(r mem.PageNumRange[mem.VPN]) []int {
	var idxs []int
	for i, a := range m.Areas {
		if a.Range.Overlaps(r) {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

// FindFreeArea performs a first-fit scan for sizePages contiguous free
// VPNs starting at start and ending before end. On overlap it jumps to
// the max end of the overlapping area.
func (m *MemorySpace) FindFreeArea(start, end mem.VPN, sizePages int) (mem.VPN, bool) {
	cur := start
	for {
		if cur+mem.VPN(sizePages) > end {
			return 0, false
		}
		candidate := mem.PageNumRange[mem.VPN]{Start: cur, End: cur + mem.VPN(sizePages)}
		overlapped := false
		maxEnd := cur
		for _, a := range m.Areas {
			if a.Range.Overlaps(candidate) {
				overlapped = true
				if a.Range.End > maxEnd {
					maxEnd = a.Range.End
				}
			}
		}
		if !overlapped {
			return cur, true
		}
		cur = maxEnd
	}
}

// InsertArea inserts a, populating PTEs unless it is Reserved. It
// rejects the insertion if a overlaps any existing area.
func (m *MemorySpace) InsertArea(a *MappingArea) kerr.Errno {
	if len(m.FindOverlappingAreas(a.Range)) != 0 {
		return kerr.EAlreadyExists
	}
	if a.MapType == Reserved {
		m.Areas = append(m.Areas, a)
		m.sortAreas()
		return kerr.ENone
	}
	installed := make([]mem.VPN, 0, a.Range.Len())
	var failErr kerr.Errno
	m.withBatch(func(b *pagetable.TLBBatch) {
		a.Range.Iter(func(vpn mem.VPN) bool {
			switch a.MapType {
			case Direct:
				ppn := mem.PPN(vpn)
				if err := m.Table.MapWithBatch(b, vpn, ppn, pagetable.Size4K, a.Permission); err != pagetable.ErrNone {
					failErr = kerr.ENoMemory
					return false
				}
			case Framed:
				ft, ok := m.frames.AllocFrame()
				if !ok {
					failErr = kerr.ENoMemory
					return false
				}
				if err := m.Table.MapWithBatch(b, vpn, ft.PPN(), pagetable.Size4K, a.Permission); err != pagetable.ErrNone {
					ft.Drop()
					failErr = kerr.ENoMemory
					return false
				}
				a.Frames[vpn] = ft
			case Shared:
				ppn, ok := a.SharedPPNs[vpn]
				if !ok {
					failErr = kerr.EInvalidArg
					return false
				}
				if err := m.Table.MapWithBatch(b, vpn, ppn, pagetable.Size4K, a.Permission); err != pagetable.ErrNone {
					failErr = kerr.ENoMemory
					return false
				}
			}
			installed = append(installed, vpn)
			return true
		})
	})
	if failErr != kerr.ENone {
		// undo partial installation: area insertion failure removes
		// freshly-created PTEs.
		m.withBatch(func(b *pagetable.TLBBatch) {
			for _, vpn := range installed {
				m.Table.UnmapWithBatch(b, vpn)
			}
		})
		for _, vpn := range installed {
			if ft, ok := a.Frames[vpn]; ok {
				ft.Drop()
				delete(a.Frames, vpn)
			}
		}
		return failErr
	}
	m.Areas = append(m.Areas, a)
	m.sortAreas()
	return kerr.ENone
}

// RemoveArea tears down PTEs and releases frames for area at index i.
// Shared areas never drop frames here: those frames are owned by the
// ipc segment that handed them to Attach, not by this MemorySpace.
func (m *MemorySpace) RemoveArea(i int) {
	a := m.Areas[i]
	if a.MapType != Reserved {
		m.withBatch(func(b *pagetable.TLBBatch) {
			a.Range.Iter(func(vpn mem.VPN) bool {
				m.Table.UnmapWithBatch(b, vpn)
				return true
			})
		})
		for _, ft := range a.Frames {
			ft.Drop()
		}
	}
	m.Areas = append(m.Areas[:i], m.Areas[i+1:]...)
}

func (m *MemorySpace) sortAreas() {
	sort.Slice(m.Areas, func(i, j int) bool { return m.Areas[i].Range.Start < m.Areas[j].Range.Start })
}

// AreaContaining returns the area owning va's page, if any.
func (m *MemorySpace) AreaContaining(vpn mem.VPN) (*MappingArea, int, bool) {
	for i, a := range m.Areas {
		if a.Range.Contains(vpn) {
			return a, i, true
		}
	}
	return nil, 0, false
}
