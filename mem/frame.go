package mem

import "sync"

// PageSize is the base page size in bytes. Arch ops may report a
// different value via archops.MMConfig; the allocator itself is
// page-size agnostic and is configured by Init.
const PageSize = 4096

// FrameAllocator owns the physical page space described by [Start, End)
// and serves single, contiguous, and aligned allocations with RAII
// ownership. It also holds the byte-addressable backing
// store that stands in for the direct map (biscuit/src/mem/dmap.go's
// Dmaplen): nyx runs as a hosted Go process rather than on bare metal, so
// "physical memory" is a flat byte slice instead of an unsafe pointer
// window, but the contract (one []byte per page, content zeroed on
// allocation) is identical.
type FrameAllocator struct {
	mu        sync.Mutex
	start     PPN
	end       PPN
	bitmap    []uint64 // 1 = allocated
	allocated int
	hint      int // search hint, offset from start
	backing   []byte
}

// NewFrameAllocator sizes the bitmap for [start, end) and zeroes it.
func NewFrameAllocator(start, end PPN) *FrameAllocator {
	n := int(end - start)
	if n < 0 {
		n = 0
	}
	words := (n + 63) / 64
	return &FrameAllocator{
		start:   start,
		end:     end,
		bitmap:  make([]uint64, words),
		backing: make([]byte, n*PageSize),
	}
}

// Dmap returns the byte-addressable page backing ppn, analogous to the
// teacher's direct-map window (biscuit/src/mem/dmap.go Dmaplen).
func (a *FrameAllocator) Dmap(ppn PPN) []byte {
	idx := int(ppn - a.start)
	off := idx * PageSize
	return a.backing[off : off+PageSize]
}

func (a *FrameAllocator) size() int { return int(a.end - a.start) }

func (a *FrameAllocator) bitSet(i int) bool {
	return a.bitmap[i/64]&(1<<uint(i%64)) != 0
}

func (a *FrameAllocator) setBit(i int) {
	a.bitmap[i/64] |= 1 << uint(i%64)
}

func (a *FrameAllocator) clearBit(i int) {
	a.bitmap[i/64] &^= 1 << uint(i%64)
}

func (a *FrameAllocator) zeroPage(ppn PPN) {
	buf := a.Dmap(ppn)
	for i := range buf {
		buf[i] = 0
	}
}

// AllocFrame scans from the hint, wraps around once, and returns the
// first free index found (the lowest at or after the hint, else the
// lowest before it) as a FrameTracker. The page is zeroed on construction.
func (a *FrameAllocator) AllocFrame() (*FrameTracker, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	idx, ok := a.findFreeLocked(a.hint)
	if !ok {
		return nil, false
	}
	a.setBit(idx)
	a.allocated++
	a.hint = idx + 1
	ppn := a.start + PPN(idx)
	a.zeroPage(ppn)
	return &FrameTracker{alloc: a, ppn: ppn}, true
}

func (a *FrameAllocator) findFreeLocked(from int) (int, bool) {
	n := a.size()
	if n == 0 {
		return 0, false
	}
	for i := from; i < n; i++ {
		if !a.bitSet(i) {
			return i, true
		}
	}
	for i := 0; i < from && i < n; i++ {
		if !a.bitSet(i) {
			return i, true
		}
	}
	return 0, false
}

// AllocFrames allocates n non-contiguous frames. On failure, it releases
// every frame it had taken so far (atomic-failure semantics): the caller
// sees either a full slice of n trackers or none at all.
func (a *FrameAllocator) AllocFrames(n int) ([]*FrameTracker, bool) {
	out := make([]*FrameTracker, 0, n)
	for i := 0; i < n; i++ {
		ft, ok := a.AllocFrame()
		if !ok {
			for _, t := range out {
				t.Drop()
			}
			return nil, false
		}
		out = append(out, ft)
	}
	return out, true
}

// AllocContigFrames finds a run of n clear bits and marks all of them
// allocated atomically (all-or-nothing).
func (a *FrameAllocator) AllocContigFrames(n int) (*FrameRangeTracker, bool) {
	return a.allocContigAligned(n, 1)
}

// AllocContigFramesAligned is like AllocContigFrames but only considers
// runs starting at offsets that are a multiple of alignPages, which must
// be a power of two.
//
// Frames skipped while searching for an aligned run are left CLEAR
// (allocatable), not marked allocated-to-nobody. A later,
// differently-aligned search may still use them.
func (a *FrameAllocator) AllocContigFramesAligned(n, alignPages int) (*FrameRangeTracker, bool) {
	if alignPages <= 0 || alignPages&(alignPages-1) != 0 {
		panic("mem: alignPages must be a power of two")
	}
	return a.allocContigAligned(n, alignPages)
}

func (a *FrameAllocator) allocContigAligned(n, align int) (*FrameRangeTracker, bool) {
	if n <= 0 {
		panic("mem: n must be positive")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	sz := a.size()
	for start := 0; start+n <= sz; start += align {
		if a.runFreeLocked(start, n) {
			for i := start; i < start+n; i++ {
				a.setBit(i)
			}
			a.allocated += n
			ppn := a.start + PPN(start)
			for p := ppn; p < ppn+PPN(n); p++ {
				a.zeroPage(p)
			}
			return &FrameRangeTracker{alloc: a, start: ppn, end: ppn + PPN(n)}, true
		}
	}
	return nil, false
}

// runFreeLocked reports whether [start, start+n) is entirely clear,
// fast-pathing fully-free 64-bit words.
func (a *FrameAllocator) runFreeLocked(start, n int) bool {
	end := start + n
	i := start
	for i < end {
		wi := i / 64
		bitOff := i % 64
		if bitOff == 0 && i+64 <= end {
			if a.bitmap[wi] == 0 {
				i += 64
				continue
			}
			if a.bitmap[wi] == ^uint64(0) {
				return false
			}
		}
		if a.bitSet(i) {
			return false
		}
		i++
	}
	return true
}

// Stats returns the configured size and the number of currently
// allocated frames.
func (a *FrameAllocator) Stats() (total, allocated int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.size(), a.allocated
}

func (a *FrameAllocator) freeLocked(ppn PPN) {
	idx := int(ppn - a.start)
	if idx < 0 || idx >= a.size() {
		panic("mem: free of out-of-range frame")
	}
	if !a.bitSet(idx) {
		panic("mem: double free of frame")
	}
	a.clearBit(idx)
	a.allocated--
}

