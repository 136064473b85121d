package memspace

import (
	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/mem"
	"github.com/nyx-os/nyx/pagetable"
)

const pageSize = mem.PageSize

// ExtendHeap grows or shrinks the sole UserHeap area, creating one if
// absent (bounded by HeapStart). Returns EInvalidArg if newEnd < heapStart.
func (m *MemorySpace) ExtendHeap(newEnd mem.VPN) kerr.Errno {
	if m.HeapStart == nil {
		hs := newEnd
		m.HeapStart = &hs
	}
	if newEnd < *m.HeapStart {
		return kerr.EInvalidArg
	}
	// locate existing heap area, if any.
	for _, a := range m.Areas {
		if a.AreaType == UserHeap {
			if newEnd == a.Range.End {
				return kerr.ENone
			}
			if newEnd > a.Range.End {
				grow := NewMappingArea(mem.PageNumRange[mem.VPN]{Start: a.Range.End, End: newEnd}, UserHeap, Framed, a.Permission)
				if err := m.InsertArea(grow); err != kerr.ENone {
					return err
				}
				// fold the freshly mapped tail into a so one heap area remains.
				for vpn, ft := range grow.Frames {
					a.Frames[vpn] = ft
				}
				a.Range.End = newEnd
				for j, x := range m.Areas {
					if x == grow {
						m.Areas = append(m.Areas[:j], m.Areas[j+1:]...)
						break
					}
				}
				return kerr.ENone
			}
			// shrink: remove the tail range [newEnd, a.Range.End).
			shrinkRange := mem.PageNumRange[mem.VPN]{Start: newEnd, End: a.Range.End}
			m.withBatch(func(b *pagetable.TLBBatch) {
				shrinkRange.Iter(func(vpn mem.VPN) bool {
					m.Table.UnmapWithBatch(b, vpn)
					if ft, ok := a.Frames[vpn]; ok {
						ft.Drop()
						delete(a.Frames, vpn)
					}
					return true
				})
			})
			a.Range.End = newEnd
			return kerr.ENone
		}
	}
	// No heap area yet: create [HeapStart, newEnd).
	na := NewMappingArea(mem.PageNumRange[mem.VPN]{Start: *m.HeapStart, End: newEnd}, UserHeap, Framed, pagetable.Read|pagetable.Write|pagetable.User|pagetable.Valid)
	return m.InsertArea(na)
}

// mergeAdjacent merges the area at index i with a directly-following
// identical-permission Framed area, if the caller grew i's range to
// touch it. Kept minimal: MemorySpace areas are sorted by start, so only
// the immediate neighbor can ever be touching.
func (m *MemorySpace) mergeAdjacent(i int) {
	if i+1 >= len(m.Areas) {
		return
	}
	a, b := m.Areas[i], m.Areas[i+1]
	if a.Range.End != b.Range.Start || a.MapType != b.MapType || a.Permission != b.Permission || a.AreaType != b.AreaType {
		return
	}
	a.Range.End = b.Range.End
	for vpn, ft := range b.Frames {
		a.Frames[vpn] = ft
	}
	m.Areas = append(m.Areas[:i+1], m.Areas[i+2:]...)
}

// Destroy tears the address space down completely: every area is
// unmapped and its owned frames dropped. Used when a task execs into a
// fresh space (the old one is discarded) or exits.
func (m *MemorySpace) Destroy() {
	for len(m.Areas) > 0 {
		m.RemoveArea(len(m.Areas) - 1)
	}
}

// PartialChangePermission is mprotect-style: splits the target range's
// owning area(s) into left/middle/right sub-areas. If newPerm has no
// access bits, the middle becomes Reserved (PTEs unmapped); otherwise
// flags are updated in place under one TLB batch. Frames are
// redistributed to the sub-areas by VPN.
func (m *MemorySpace) PartialChangePermission(r mem.PageNumRange[mem.VPN], newPerm pagetable.Flags) kerr.Errno {
	idxs := m.FindOverlappingAreas(r)
	if len(idxs) == 0 {
		return kerr.EInvalidArg
	}
	noAccess := newPerm&(pagetable.Read|pagetable.Write|pagetable.Execute) == 0

	// Process from the highest index down so earlier indices remain
	// valid as we splice the slice.
	for k := len(idxs) - 1; k >= 0; k-- {
		i := idxs[k]
		a := m.Areas[i]
		mid := intersect(a.Range, r)
		left, right := splitRanges(a.Range, mid)

		var subs []*MappingArea
		if !left.Empty() {
			subs = append(subs, carve(a, left))
		}
		midType := a.MapType
		midPerm := newPerm
		if noAccess {
			midType = Reserved
		}
		midArea := carveWithTypePerm(a, mid, midType, midPerm)
		subs = append(subs, midArea)
		if !right.Empty() {
			subs = append(subs, carve(a, right))
		}

		// Tear down the original PTEs over mid, then reinstall/update.
		m.withBatch(func(b *pagetable.TLBBatch) {
			if midType == Reserved {
				mid.Iter(func(vpn mem.VPN) bool {
					m.Table.UnmapWithBatch(b, vpn)
					if ft, ok := a.Frames[vpn]; ok {
						ft.Drop()
						delete(a.Frames, vpn)
					}
					return true
				})
				midArea.Frames = nil
			} else {
				mid.Iter(func(vpn mem.VPN) bool {
					m.Table.UpdateFlagsWithBatch(b, vpn, midPerm)
					return true
				})
				midArea.Permission = midPerm
			}
		})

		m.Areas = append(m.Areas[:i], append(subs, m.Areas[i+1:]...)...)
	}
	m.sortAreas()
	return kerr.ENone
}

// PartialUnmap splits and removes the middle of r from its owning
// area(s), unmapping PTEs under one TLB batch. It returns the kept left
// remnant (if any) and kept right remnant (if any); both are already
// installed, so no reinsertion by the caller is required, but returning
// them lets callers inspect what survived the split.
func (m *MemorySpace) PartialUnmap(r mem.PageNumRange[mem.VPN]) (*MappingArea, *MappingArea) {
	idxs := m.FindOverlappingAreas(r)
	var keepLeft, keepRight *MappingArea
	for k := len(idxs) - 1; k >= 0; k-- {
		i := idxs[k]
		a := m.Areas[i]
		mid := intersect(a.Range, r)
		left, right := splitRanges(a.Range, mid)

		var subs []*MappingArea
		if !left.Empty() {
			l := carve(a, left)
			subs = append(subs, l)
			keepLeft = l
		}
		if !right.Empty() {
			rr := carve(a, right)
			subs = append(subs, rr)
			keepRight = rr
		}

		m.withBatch(func(b *pagetable.TLBBatch) {
			mid.Iter(func(vpn mem.VPN) bool {
				m.Table.UnmapWithBatch(b, vpn)
				if ft, ok := a.Frames[vpn]; ok {
					ft.Drop()
				}
				return true
			})
		})

		m.Areas = append(m.Areas[:i], append(subs, m.Areas[i+1:]...)...)
	}
	m.sortAreas()
	return keepLeft, keepRight
}

func intersect(a, r mem.PageNumRange[mem.VPN]) mem.PageNumRange[mem.VPN] {
	s, e := a.Start, a.End
	if r.Start > s {
		s = r.Start
	}
	if r.End < e {
		e = r.End
	}
	if e < s {
		e = s
	}
	return mem.PageNumRange[mem.VPN]{Start: s, End: e}
}

func splitRanges(full, mid mem.PageNumRange[mem.VPN]) (left, right mem.PageNumRange[mem.VPN]) {
	left = mem.PageNumRange[mem.VPN]{Start: full.Start, End: mid.Start}
	right = mem.PageNumRange[mem.VPN]{Start: mid.End, End: full.End}
	return
}

// carve creates a sub-area of a over r, redistributing a's frames that
// fall in r to the new area and keeping a's type/perm/map-type.
func carve(a *MappingArea, r mem.PageNumRange[mem.VPN]) *MappingArea {
	return carveWithTypePerm(a, r, a.MapType, a.Permission)
}

func carveWithTypePerm(a *MappingArea, r mem.PageNumRange[mem.VPN], mt MapType, perm pagetable.Flags) *MappingArea {
	na := NewMappingArea(r, a.AreaType, mt, perm)
	na.FileBacking = a.FileBacking
	if a.Frames != nil && na.Frames != nil {
		r.Iter(func(vpn mem.VPN) bool {
			if ft, ok := a.Frames[vpn]; ok {
				na.Frames[vpn] = ft
				delete(a.Frames, vpn)
			}
			return true
		})
	}
	return na
}
