package memspace

import (
	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/mem"
)

// CopyData walks area page by page, translating via the page table, and
// copies bytes into it starting offsetWithinFirstPage into the first
// page. It never writes to Reserved or Direct areas.
func (m *MemorySpace) CopyData(a *MappingArea, data []byte, offsetWithinFirstPage int) kerr.Errno {
	if a.MapType != Framed {
		return kerr.EInvalidArg
	}
	remaining := data
	vpn := a.Range.Start
	off := offsetWithinFirstPage
	for len(remaining) > 0 {
		if !a.Range.Contains(vpn) {
			return kerr.EInvalidArg
		}
		ft, ok := a.Frames[vpn]
		if !ok {
			return kerr.EFault
		}
		page := m.frames.Dmap(ft.PPN())
		n := copy(page[off:], remaining)
		remaining = remaining[n:]
		off = 0
		vpn++
	}
	return kerr.ENone
}

// ReadBytesAt reads len(buf) bytes starting at the byte address
// represented by (vpn, pageOffset), translating page by page through the
// direct map. A zero-length buf is a no-op.
func (m *MemorySpace) ReadBytesAt(vpn mem.VPN, pageOffset int, buf []byte) kerr.Errno {
	return m.xferBytesAt(vpn, pageOffset, buf, false)
}

// WriteBytesAt is the write counterpart of ReadBytesAt.
func (m *MemorySpace) WriteBytesAt(vpn mem.VPN, pageOffset int, bytes []byte) kerr.Errno {
	return m.xferBytesAt(vpn, pageOffset, bytes, true)
}

func (m *MemorySpace) xferBytesAt(vpn mem.VPN, pageOffset int, buf []byte, write bool) kerr.Errno {
	if len(buf) == 0 {
		return kerr.ENone
	}
	remaining := buf
	off := pageOffset
	for len(remaining) > 0 {
		a, _, ok := m.AreaContaining(vpn)
		if !ok || a.MapType != Framed {
			return kerr.EFault
		}
		ft, ok := a.Frames[vpn]
		if !ok {
			return kerr.EFault
		}
		page := m.frames.Dmap(ft.PPN())
		n := len(page) - off
		if n > len(remaining) {
			n = len(remaining)
		}
		if write {
			copy(page[off:off+n], remaining[:n])
			if a.dirty != nil {
				a.dirty[vpn] = true
			}
		} else {
			copy(remaining[:n], page[off:off+n])
		}
		remaining = remaining[n:]
		off = 0
		vpn++
	}
	return kerr.ENone
}

// LoadFromFile reads page-aligned chunks from area's backing file into
// each allocated frame, zero-filling tails beyond the mapped length.
func (m *MemorySpace) LoadFromFile(a *MappingArea) kerr.Errno {
	fb := a.FileBacking
	if fb == nil {
		return kerr.EInvalidArg
	}
	i := 0
	a.Range.Iter(func(vpn mem.VPN) bool {
		ft, ok := a.Frames[vpn]
		if !ok {
			i++
			return true
		}
		page := m.frames.Dmap(ft.PPN())
		pageFileOff := fb.Offset + int64(i)*pageSize
		remainingLen := fb.Len - int64(i)*pageSize
		if remainingLen <= 0 {
			i++
			return true
		}
		toRead := int64(pageSize)
		if remainingLen < toRead {
			toRead = remainingLen
		}
		n, err := fb.File.ReadAt(pageFileOff, page[:toRead])
		if err != nil && n == 0 {
			i++
			return true
		}
		for j := n; j < pageSize; j++ {
			page[j] = 0
		}
		i++
		return true
	})
	return kerr.ENone
}

// SyncFile iterates every populated frame in area; for MAP_SHARED
// backings it writes dirty pages back to the file at the correct offset
// and clears that page's flag in the area's own dirty map (see
// area.go). No PTE dirty bit is read or cleared and no TLB batch is
// opened.
func (m *MemorySpace) SyncFile(a *MappingArea) kerr.Errno {
	fb := a.FileBacking
	if fb == nil || !fb.Shared {
		return kerr.ENone
	}
	i := 0
	var firstErr kerr.Errno
	a.Range.Iter(func(vpn mem.VPN) bool {
		idx := i
		i++
		ft, ok := a.Frames[vpn]
		if !ok || !a.dirty[vpn] {
			return true
		}
		page := m.frames.Dmap(ft.PPN())
		pageFileOff := fb.Offset + int64(idx)*pageSize
		remainingLen := fb.Len - int64(idx)*pageSize
		if remainingLen <= 0 {
			return true
		}
		toWrite := int64(pageSize)
		if remainingLen < toWrite {
			toWrite = remainingLen
		}
		if _, err := fb.File.WriteAt(pageFileOff, page[:toWrite]); err != nil {
			firstErr = kerr.EIo
			return true
		}
		a.dirty[vpn] = false
		return true
	})
	return firstErr
}
