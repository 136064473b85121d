package task

import "testing"

type fakeFdTable struct {
	released bool
}

func (f *fakeFdTable) CloseOnExec()          {}
func (f *fakeFdTable) Clone() FdTableRef      { return &fakeFdTable{} }
func (f *fakeFdTable) Release()              { f.released = true }

func TestExitReleasesFdTable(t *testing.T) {
	tsk := New(1, 1, 0, 1)
	fds := &fakeFdTable{}
	tsk.Fds = fds

	tsk.Exit(7)

	if !fds.released {
		t.Fatal("expected Exit to release the fd table")
	}
	if tsk.State() != Zombie {
		t.Fatalf("expected Zombie state, got %v", tsk.State())
	}
	if tsk.ExitCode() != 7 {
		t.Fatalf("expected exit code 7, got %d", tsk.ExitCode())
	}
}

func TestExitToleratesNilFdTable(t *testing.T) {
	tsk := New(2, 2, 0, 2)
	tsk.Exit(0)
	if tsk.State() != Zombie {
		t.Fatalf("expected Zombie state, got %v", tsk.State())
	}
}
