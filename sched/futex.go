package sched

import (
	"sync"

	"github.com/nyx-os/nyx/mem"
	"github.com/nyx-os/nyx/task"
)

// FutexTable maps a futex's backing physical address to the wait queue
// of tasks blocked on it. Keying by physical address rather than the
// calling task's virtual address lets two processes sharing a mapping
// (MAP_SHARED) wake each other, following the same futex model as
// original_source/os/src/kernel/task/futex.rs.
type FutexTable struct {
	mu     sync.Mutex
	queues map[mem.PPN]*WaitQueue
}

// NewFutexTable returns an empty futex table.
func NewFutexTable() *FutexTable {
	return &FutexTable{queues: make(map[mem.PPN]*WaitQueue)}
}

func (f *FutexTable) queueFor(ppn mem.PPN) *WaitQueue {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queues[ppn]
	if !ok {
		q = NewWaitQueue()
		f.queues[ppn] = q
	}
	return q
}

// reclaim drops a queue's table entry once it has no sleepers left, so
// the map doesn't grow without bound across the kernel's lifetime.
func (f *FutexTable) reclaim(ppn mem.PPN, q *WaitQueue) {
	if q.Len() != 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.queues[ppn]; ok && cur == q && q.Len() == 0 {
		delete(f.queues, ppn)
	}
}

// Wait blocks t on the futex word backed by ppn, provided *word still
// equals expected at the moment of the call (the classic futex(2)
// FUTEX_WAIT race-closing check: the caller samples the word, computes
// expected, and this call re-checks it while holding the table lock so a
// concurrent FUTEX_WAKE between the caller's load and this call cannot
// be missed). Returns false without sleeping if the value already
// differs.
func (f *FutexTable) Wait(ppn mem.PPN, word *uint32, expected uint32, t *task.Task, interruptible bool) (woke bool, reason WakeReason) {
	f.mu.Lock()
	if *word != expected {
		f.mu.Unlock()
		return false, WokeNormally
	}
	q, ok := f.queues[ppn]
	if !ok {
		q = NewWaitQueue()
		f.queues[ppn] = q
	}
	f.mu.Unlock()

	reason = q.SleepWithBlock(t, interruptible)
	f.reclaim(ppn, q)
	return true, reason
}

// WakeOne wakes a single task blocked on ppn's futex, returning the
// woken task or nil if none were waiting.
func (f *FutexTable) WakeOne(ppn mem.PPN) *task.Task {
	f.mu.Lock()
	q, ok := f.queues[ppn]
	f.mu.Unlock()
	if !ok {
		return nil
	}
	t := q.WakeOne(WokeNormally)
	f.reclaim(ppn, q)
	return t
}

// WakeAll wakes every task blocked on ppn's futex.
func (f *FutexTable) WakeAll(ppn mem.PPN) []*task.Task {
	f.mu.Lock()
	q, ok := f.queues[ppn]
	f.mu.Unlock()
	if !ok {
		return nil
	}
	woken := q.WakeAll(WokeNormally)
	f.reclaim(ppn, q)
	return woken
}

// WakeN wakes up to n tasks blocked on ppn's futex (FUTEX_WAKE with a
// bounded count), returning however many were actually woken.
func (f *FutexTable) WakeN(ppn mem.PPN, n int) []*task.Task {
	f.mu.Lock()
	q, ok := f.queues[ppn]
	f.mu.Unlock()
	if !ok || n <= 0 {
		return nil
	}
	out := make([]*task.Task, 0, n)
	for i := 0; i < n; i++ {
		t := q.WakeOne(WokeNormally)
		if t == nil {
			break
		}
		out = append(out, t)
	}
	f.reclaim(ppn, q)
	return out
}
