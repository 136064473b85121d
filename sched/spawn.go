package sched

import (
	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/pagetable"
	"github.com/nyx-os/nyx/task"
)

// ForkChild forks parent through mgr (address-space clone, fd/fs/signal
// substructure clones, fresh TID) and places the result on a CPU per
// pick_cpu, exactly as SpawnChild does for an already-built task. The
// parent resumes immediately; the child becomes runnable once its chosen
// CPU services its runqueue.
func (s *Scheduler) ForkChild(mgr *task.Manager, parent *task.Task, childTable pagetable.Table, childBatch func() *pagetable.TLBBatch, kstack []byte) (*task.Task, kerr.Errno) {
	child, err := mgr.Fork(parent, childTable, childBatch, kstack)
	if err != kerr.ENone {
		return nil, err
	}
	s.SpawnChild(child)
	return child, kerr.ENone
}

// SpawnKthread builds a kernel-only task through mgr and enqueues it,
// used both for kthreadd itself (ppid 0, spawned directly by boot) and
// for every worker kthreadd spawns thereafter (ppid kthreadd's TID).
func (s *Scheduler) SpawnKthread(mgr *task.Manager, name string, ppid int, entry, arg uintptr, kstack []byte) *task.Task {
	t := mgr.KthreadSpawn(name, ppid, entry, arg, kstack)
	s.SpawnChild(t)
	return t
}
