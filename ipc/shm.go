// Package ipc implements anonymous, POSIX-shm-like shared memory
// segments: a set of physical frames owned independently of any single
// MemorySpace, attachable into several spaces at once. It generalizes
// the original's SharedMemory/SharedMemoryTable (a Vec<FrameTracker>
// mapped into "the current task's" address space) into an explicit
// Attach/Detach pair that names the target MemorySpace, since nyx has
// no implicit current-task global to reach through.
package ipc

import (
	"sync"
	"sync/atomic"

	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/mem"
	"github.com/nyx-os/nyx/memspace"
	"github.com/nyx-os/nyx/pagetable"
)

// Segment is a shared-memory segment: a fixed number of physical frames
// owned independently of any MemorySpace that maps them. The frames are
// released only once every attacher has Detached and Destroy is called;
// RemoveArea on an attached MemorySpace never drops them on its own.
type Segment struct {
	mu     sync.Mutex
	frames []*mem.FrameTracker
	refs   atomic.Int32
	freed  bool
}

// NewSegment allocates pages physical frames for a new segment.
func NewSegment(frames *mem.FrameAllocator, pages int) (*Segment, kerr.Errno) {
	if pages <= 0 {
		return nil, kerr.EInvalidArg
	}
	fts, ok := frames.AllocFrames(pages)
	if !ok {
		return nil, kerr.ENoMemory
	}
	return &Segment{frames: fts}, kerr.ENone
}

// Len returns the segment size in bytes.
func (s *Segment) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames) * mem.PageSize
}

func (s *Segment) pageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// Attach maps the segment's frames into ms starting at vpn with the
// given permission. Every VPN in [vpn, vpn+pages) must be free in ms.
func (s *Segment) Attach(ms *memspace.MemorySpace, vpn mem.VPN, perm pagetable.Flags) kerr.Errno {
	s.mu.Lock()
	if s.freed {
		s.mu.Unlock()
		return kerr.EInvalidArg
	}
	ppns := make(map[mem.VPN]mem.PPN, len(s.frames))
	for i, ft := range s.frames {
		ppns[vpn+mem.VPN(i)] = ft.PPN()
	}
	n := len(s.frames)
	s.mu.Unlock()

	r := mem.PageNumRange[mem.VPN]{Start: vpn, End: vpn + mem.VPN(n)}
	area := memspace.NewSharedMappingArea(r, memspace.UserMmap, perm, ppns)
	if err := ms.InsertArea(area); err != kerr.ENone {
		return err
	}
	s.refs.Add(1)
	return kerr.ENone
}

// AttachAnywhere first-fits the segment into a free range of ms between
// start and end, mirroring the original's map_to_user(addr=0): the
// caller asks to be mapped "somewhere" rather than naming a VA.
func (s *Segment) AttachAnywhere(ms *memspace.MemorySpace, start, end mem.VPN, perm pagetable.Flags) (mem.VPN, kerr.Errno) {
	vpn, ok := ms.FindFreeArea(start, end, s.pageCount())
	if !ok {
		return 0, kerr.ENoMemory
	}
	if err := s.Attach(ms, vpn, perm); err != kerr.ENone {
		return 0, err
	}
	return vpn, kerr.ENone
}

// Detach removes the Shared area covering vpn from ms without dropping
// the segment's frames, and releases one attach reference.
func (s *Segment) Detach(ms *memspace.MemorySpace, vpn mem.VPN) kerr.Errno {
	area, i, ok := ms.AreaContaining(vpn)
	if !ok || area.MapType != memspace.Shared || area.Range.Start != vpn {
		return kerr.ENotFound
	}
	ms.RemoveArea(i)
	s.refs.Add(-1)
	return kerr.ENone
}

// RefCount returns the number of MemorySpaces currently attached.
func (s *Segment) RefCount() int32 { return s.refs.Load() }

// Destroy releases the segment's frames. Calling it while any
// MemorySpace still has the segment attached is a bug: it would leave
// PTEs pointing at freed frames, so Destroy panics rather than
// silently corrupting another address space.
func (s *Segment) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.freed {
		panic("ipc: double Destroy of shared memory segment")
	}
	if s.refs.Load() != 0 {
		panic("ipc: Destroy of shared memory segment with live attachments")
	}
	s.freed = true
	for _, ft := range s.frames {
		ft.Drop()
	}
}

// Table is a registry of shared-memory segments keyed by an opaque id
// the caller hands out (e.g. a shmget-style key), mirroring the
// original's SharedMemoryTable: create/remove bookkeeping only. Remove
// does not detach the segment from any space still attached to it —
// every attacher must Detach before Destroy will succeed.
type Table struct {
	mu       sync.Mutex
	frames   *mem.FrameAllocator
	segments map[int]*Segment
	nextID   int
}

// NewTable constructs an empty segment table backed by frames.
func NewTable(frames *mem.FrameAllocator) *Table {
	return &Table{frames: frames, segments: make(map[int]*Segment)}
}

// Create allocates a new pages-page segment and registers it under a
// freshly assigned id.
func (t *Table) Create(pages int) (int, *Segment, kerr.Errno) {
	seg, err := NewSegment(t.frames, pages)
	if err != kerr.ENone {
		return 0, nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := t.nextID
	t.segments[id] = seg
	return id, seg, kerr.ENone
}

// Lookup returns the segment registered under id, if any.
func (t *Table) Lookup(id int) (*Segment, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	seg, ok := t.segments[id]
	return seg, ok
}

// Remove drops id's table entry.
func (t *Table) Remove(id int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.segments[id]; !ok {
		return false
	}
	delete(t.segments, id)
	return true
}

// Len returns the number of currently registered segments.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.segments)
}
