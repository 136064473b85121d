package mem

import "sync/atomic"

// FrameTracker is exclusive ownership of one physical page. It can only be
// constructed by a FrameAllocator; Drop releases exactly that PPN. Go has
// no destructors and no finalizer is set, so a tracker that is never
// dropped keeps its frame allocated: callers MUST call Drop explicitly
// at the point a Rust RAII original would run an implicit drop. Drop is
// safe to defer but not idempotent: a second call panics.
type FrameTracker struct {
	alloc   *FrameAllocator
	ppn     PPN
	dropped atomic.Bool
}

// PPN returns the physical page number this tracker owns.
func (t *FrameTracker) PPN() PPN { return t.ppn }

// Drop releases the owned frame. It is a debug-asserted bug to call Drop
// twice; the second call panics rather than silently double-freeing.
func (t *FrameTracker) Drop() {
	if !t.dropped.CompareAndSwap(false, true) {
		panic("mem: double drop of FrameTracker")
	}
	t.alloc.mu.Lock()
	defer t.alloc.mu.Unlock()
	t.alloc.freeLocked(t.ppn)
}

// FrameRangeTracker is exclusive ownership of a contiguous [Start, End)
// PPN range, with the same invariants as FrameTracker.
type FrameRangeTracker struct {
	alloc   *FrameAllocator
	start   PPN
	end     PPN
	dropped atomic.Bool
}

// Range returns the owned page range.
func (t *FrameRangeTracker) Range() PageNumRange[PPN] {
	return PageNumRange[PPN]{Start: t.start, End: t.end}
}

// Len returns the number of pages owned.
func (t *FrameRangeTracker) Len() int { return int(t.end - t.start) }

// Drop releases every frame in the owned range.
func (t *FrameRangeTracker) Drop() {
	if !t.dropped.CompareAndSwap(false, true) {
		panic("mem: double drop of FrameRangeTracker")
	}
	t.alloc.mu.Lock()
	defer t.alloc.mu.Unlock()
	for p := t.start; p < t.end; p++ {
		t.alloc.freeLocked(p)
	}
}
