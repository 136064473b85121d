package sched

import (
	"testing"

	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/mem"
	"github.com/nyx-os/nyx/memspace"
	"github.com/nyx-os/nyx/pagetable"
	"github.com/nyx-os/nyx/task"
)

func TestSpawnKthreadEnqueuesOnAPickedCPU(t *testing.T) {
	s := NewScheduler(2, nil)
	mgr := task.NewManager()

	kt := s.SpawnKthread(mgr, "kthreadd", 0, 0xf000, 0, make([]byte, 4096))
	if kt.OnCPU() < 0 {
		t.Fatal("expected SpawnKthread to bind the task to a CPU")
	}
	if s.RunQueueFor(kt.OnCPU()).Len() != 1 {
		t.Fatal("expected the new kthread enqueued on its chosen CPU")
	}
	if _, ok := mgr.Lookup(kt.TID); !ok {
		t.Fatal("expected the kthread registered with the manager")
	}
}

func TestForkChildEnqueuesOnAPickedCPU(t *testing.T) {
	s := NewScheduler(2, nil)
	mgr := task.NewManager()

	parent := task.New(1, 1, 0, 1)
	fa := mem.NewFrameAllocator(0, 4096)
	tbl := pagetable.NewSoftTable(nil)
	parent.Space = memspace.New(tbl, fa, tbl.NewBatch)

	childTable := pagetable.NewSoftTable(nil)
	child, err := s.ForkChild(mgr, parent, childTable, childTable.NewBatch, make([]byte, 4096))
	if err != kerr.ENone {
		t.Fatalf("fork failed: %v", err)
	}
	if child.OnCPU() < 0 {
		t.Fatal("expected ForkChild to bind the child to a CPU")
	}
	if s.RunQueueFor(child.OnCPU()).Len() != 1 {
		t.Fatal("expected the forked child enqueued on its chosen CPU")
	}
}
