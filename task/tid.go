package task

import "sync/atomic"

// TIDAllocator hands out monotonically increasing TIDs. tid=1 is
// hard-coded for init and is never issued by this allocator; the
// allocator starts at 2, matching kthreadd's expected tid (grounded on
// original_source/os/src/kernel/task/tid_allocator.rs).
type TIDAllocator struct {
	next atomic.Int64
}

// NewTIDAllocator returns an allocator whose first Alloc() call returns 2.
func NewTIDAllocator() *TIDAllocator {
	a := &TIDAllocator{}
	a.next.Store(2)
	return a
}

// Alloc returns the next TID.
func (a *TIDAllocator) Alloc() int {
	return int(a.next.Add(1) - 1)
}
