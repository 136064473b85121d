package vfs

import (
	"testing"

	"github.com/nyx-os/nyx/kerr"
)

type fakeFile struct {
	BaseFile
	id int
}

func (f *fakeFile) Readable() bool                   { return true }
func (f *fakeFile) Writable() bool                   { return true }
func (f *fakeFile) Read(buf []byte) (int, kerr.Errno) { return 0, kerr.ENone }
func (f *fakeFile) Write(buf []byte) (int, kerr.Errno) { return len(buf), kerr.ENone }
func (f *fakeFile) Metadata() (Metadata, kerr.Errno)   { return Metadata{}, kerr.ENone }

func TestAllocUsesLowestFreeFd(t *testing.T) {
	tbl := NewFDTable(16)
	a, _ := tbl.Alloc(&fakeFile{id: 1})
	b, _ := tbl.Alloc(&fakeFile{id: 2})
	if a != 0 || b != 1 {
		t.Fatalf("expected fds 0,1 got %d,%d", a, b)
	}
	tbl.Close(0)
	c, _ := tbl.Alloc(&fakeFile{id: 3})
	if c != 0 {
		t.Fatalf("expected reused fd 0, got %d", c)
	}
}

func TestDup2SameFdIsNoopSuccess(t *testing.T) {
	tbl := NewFDTable(16)
	fd, _ := tbl.Alloc(&fakeFile{id: 1})
	got, err := tbl.Dup2(fd, fd)
	if err != kerr.ENone || got != fd {
		t.Fatalf("expected dup2(fd,fd)==fd with no error, got %d err=%v", got, err)
	}
}

func TestDup3SameFdIsInvalid(t *testing.T) {
	tbl := NewFDTable(16)
	fd, _ := tbl.Alloc(&fakeFile{id: 1})
	_, err := tbl.Dup3(fd, fd, 0)
	if err != kerr.EInvalidArg {
		t.Fatalf("expected EInvalidArg for dup3(fd,fd,_), got %v", err)
	}
}

func TestDup3ClosesTargetFirst(t *testing.T) {
	tbl := NewFDTable(16)
	a, _ := tbl.Alloc(&fakeFile{id: 1})
	b, _ := tbl.Alloc(&fakeFile{id: 2})
	newFd, err := tbl.Dup3(a, b, 0)
	if err != kerr.ENone || newFd != b {
		t.Fatalf("expected dup3 to install at b, got %d err=%v", newFd, err)
	}
	f, _ := tbl.Get(b)
	if f.(*fakeFile).id != 1 {
		t.Fatalf("expected b to now hold file 1, got %d", f.(*fakeFile).id)
	}
}

func TestDupFromRespectsMinFd(t *testing.T) {
	tbl := NewFDTable(16)
	a, _ := tbl.Alloc(&fakeFile{id: 1})
	got, err := tbl.DupFrom(a, 5, 0)
	if err != kerr.ENone || got != 5 {
		t.Fatalf("expected fd 5, got %d err=%v", got, err)
	}
}

func TestCloseOnExecClearsFlaggedFds(t *testing.T) {
	tbl := NewFDTable(16)
	fd, _ := tbl.AllocWithFlags(&fakeFile{id: 1}, FdCloexec)
	other, _ := tbl.Alloc(&fakeFile{id: 2})
	tbl.CloseOnExec()
	if _, err := tbl.Get(fd); err != kerr.EBadFd {
		t.Fatal("expected cloexec fd closed")
	}
	if _, err := tbl.Get(other); err != kerr.ENone {
		t.Fatal("expected non-cloexec fd to survive")
	}
}

func TestCloneTableSharesFilesIndependentSlots(t *testing.T) {
	tbl := NewFDTable(16)
	fd, _ := tbl.Alloc(&fakeFile{id: 1})
	clone := tbl.CloneTable()
	clone.Close(fd)
	if _, err := tbl.Get(fd); err != kerr.ENone {
		t.Fatal("expected original table unaffected by clone's close")
	}
}

func TestTakeAllDrainsTable(t *testing.T) {
	tbl := NewFDTable(16)
	tbl.Alloc(&fakeFile{id: 1})
	tbl.Alloc(&fakeFile{id: 2})
	taken := tbl.TakeAll()
	if len(taken) != 2 {
		t.Fatalf("expected 2 taken, got %d", len(taken))
	}
	if _, err := tbl.Get(0); err != kerr.EBadFd {
		t.Fatal("expected table empty after TakeAll")
	}
}

type fakeCloserFile struct {
	fakeFile
	closed bool
}

func (f *fakeCloserFile) Close() { f.closed = true }

func TestReleaseDrainsAndClosesFiles(t *testing.T) {
	tbl := NewFDTable(16)
	cf := &fakeCloserFile{fakeFile: fakeFile{id: 1}}
	tbl.Alloc(cf)
	tbl.Alloc(&fakeFile{id: 2})

	tbl.Release()

	if !cf.closed {
		t.Fatal("expected Release to Close a File implementing closer")
	}
	if _, err := tbl.Get(0); err != kerr.EBadFd {
		t.Fatal("expected table empty after Release")
	}
}
