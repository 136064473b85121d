package task

import (
	"sync"
	"testing"

	"github.com/nyx-os/nyx/archops"
	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/mem"
	"github.com/nyx-os/nyx/memspace"
	"github.com/nyx-os/nyx/pagetable"
)

type fakeMM struct{}

func (fakeMM) VaddrToPaddr(va uintptr) uintptr  { return va }
func (fakeMM) PaddrToVaddr(pa uintptr) uintptr  { return pa }
func (fakeMM) SigreturnTrampolineBytes() []byte { return []byte{0xde, 0xad, 0xbe, 0xef} }
func (fakeMM) NumCPUs() int                     { return 1 }
func (fakeMM) SendTLBFlushIPIAll()              {}
func (fakeMM) CreateTLBBatchContext() any       { return nil }

type fakeMMConfig struct{}

func (fakeMMConfig) PageSize() int                   { return 4096 }
func (fakeMMConfig) MemoryEnd() uintptr               { return 0 }
func (fakeMMConfig) UserStackSize() int               { return 4 * 4096 }
func (fakeMMConfig) UserStackTop() uintptr            { return 10 * 4096 }
func (fakeMMConfig) MaxUserHeapSize() int             { return 0 }
func (fakeMMConfig) UserSigreturnTrampoline() uintptr { return 0 }

var registerArchOnce sync.Once

func registerTestArch() {
	registerArchOnce.Do(func() {
		archops.RegisterMM(fakeMM{})
		archops.RegisterMMConfig(fakeMMConfig{})
	})
}

func newTestSpace(t *testing.T) *memspace.MemorySpace {
	t.Helper()
	fa := mem.NewFrameAllocator(0, 4096)
	tbl := pagetable.NewSoftTable(nil)
	return memspace.New(tbl, fa, tbl.NewBatch)
}

func TestForkClonesAddressSpaceAndSubstructures(t *testing.T) {
	registerTestArch()
	parent := New(1, 1, 0, 1)
	parent.Space = newTestSpace(t)
	parent.TrapFrame = &TrapFrame{PC: 0x1000, SP: 0x2000}
	parent.Fds = &fakeFdTable{}
	parent.Fs = &FsStruct{Cwd: "/home", Root: "/"}
	parent.Signals = NewSignalState()
	parent.UTS = &UTSNamespace{Sysname: "nyx"}
	parent.Limits = NewRlimits()

	mgr := NewManager()
	childTable := pagetable.NewSoftTable(nil)
	child, err := mgr.Fork(parent, childTable, childTable.NewBatch, make([]byte, 4096))
	if err != kerr.ENone {
		t.Fatalf("fork failed: %v", err)
	}
	if child.TID == parent.TID {
		t.Fatal("expected a fresh TID for the child")
	}
	if child.PPID != parent.PID {
		t.Fatalf("expected child PPID %d, got %d", parent.PID, child.PPID)
	}
	if child.Space == parent.Space {
		t.Fatal("expected an independent address space for the child")
	}
	if child.TrapFrame == parent.TrapFrame {
		t.Fatal("expected an independent trap frame for the child")
	}
	if child.TrapFrame.PC != parent.TrapFrame.PC {
		t.Fatal("expected the child's trap frame to start as a copy of the parent's")
	}
	if got, ok := mgr.Lookup(child.TID); !ok || got != child {
		t.Fatal("expected Fork to register the child with the manager")
	}
}

func TestForkRejectsKernelThread(t *testing.T) {
	mgr := NewManager()
	kthread := New(2, 2, 0, 0)
	if _, err := mgr.Fork(kthread, pagetable.NewSoftTable(nil), nil, nil); err != kerr.EInvalidArg {
		t.Fatalf("expected EInvalidArg forking a task with no address space, got %v", err)
	}
}

func TestKthreadSpawnHasNoAddressSpace(t *testing.T) {
	mgr := NewManager()
	kt := mgr.KthreadSpawn("kworker/0", 1, 0xdead0, 42, make([]byte, 4096))
	if kt.Space != nil {
		t.Fatal("expected a kernel thread to have no address space")
	}
	if kt.TrapFrame.PC != 0xdead0 || kt.TrapFrame.Regs[0] != 42 {
		t.Fatalf("expected trap frame PC/Regs[0] set from entry/arg, got PC=%#x arg=%d", kt.TrapFrame.PC, kt.TrapFrame.Regs[0])
	}
	if _, ok := mgr.Lookup(kt.TID); !ok {
		t.Fatal("expected KthreadSpawn to register the task")
	}
}

func TestExecReplacesSpaceAndBuildsStack(t *testing.T) {
	registerTestArch()
	tsk := New(3, 3, 0, 3)
	tsk.Space = newTestSpace(t)
	tsk.Fds = &fakeFdTable{}
	tsk.Signals = NewSignalState()
	tsk.Signals.Handlers[1] = 0x500

	newSpace := newTestSpace(t)
	err := tsk.Exec(newSpace, 0x40000, []string{"/sbin/init"}, []string{"HOME=/"})
	if err != kerr.ENone {
		t.Fatalf("exec failed: %v", err)
	}
	if tsk.Space != newSpace {
		t.Fatal("expected exec to install the new address space")
	}
	if tsk.TrapFrame.PC != 0x40000 {
		t.Fatalf("expected trap frame PC at entry, got %#x", tsk.TrapFrame.PC)
	}
	if tsk.TrapFrame.SP == 0 {
		t.Fatal("expected a non-zero stack pointer assembled for the new image")
	}
	if tsk.TrapFrame.SP%16 != 0 {
		t.Fatalf("expected a 16-byte aligned entry SP, got %#x", tsk.TrapFrame.SP)
	}
	if len(tsk.Signals.Handlers) != 0 {
		t.Fatal("expected exec to reset signal handlers")
	}
	if len(newSpace.Areas) != 1 {
		t.Fatalf("expected exactly one area (the stack) installed, got %d", len(newSpace.Areas))
	}
}
