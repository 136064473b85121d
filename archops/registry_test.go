package archops

import "testing"

type testSync struct{}

func (testSync) ReadAndDisableInterrupts() bool  { return true }
func (testSync) RestoreInterrupts(bool)          {}
func (testSync) SSTATUSSIE() uint64              { return 1 << 1 }
func (testSync) CPUID() int                      { return 0 }
func (testSync) MaxCPUCount() int                 { return 4 }

func resetSyncCellForTest() {
	syncCell = cell[Sync]{}
}

func TestRegisterAndFetch(t *testing.T) {
	resetSyncCellForTest()
	RegisterSync(testSync{})
	if SyncOps().MaxCPUCount() != 4 {
		t.Fatal("expected registered provider to be returned")
	}
}

func TestDoubleRegisterPanics(t *testing.T) {
	resetSyncCellForTest()
	RegisterSync(testSync{})
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double registration")
		}
	}()
	RegisterSync(testSync{})
}

func TestUnregisteredPanics(t *testing.T) {
	resetSyncCellForTest()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when unregistered")
		}
	}()
	SyncOps()
}

func TestLogOpsNoopWhenUnregistered(t *testing.T) {
	logCell = cell[Log]{}
	l := LogOps()
	if l.CPUID() != 0 {
		t.Fatal("expected noop log provider")
	}
}
