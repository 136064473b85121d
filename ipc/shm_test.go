package ipc

import (
	"testing"

	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/mem"
	"github.com/nyx-os/nyx/memspace"
	"github.com/nyx-os/nyx/pagetable"
)

func newTestSpace(t *testing.T) (*memspace.MemorySpace, *mem.FrameAllocator) {
	t.Helper()
	fa := mem.NewFrameAllocator(0, 4096)
	tbl := pagetable.NewSoftTable(nil)
	return memspace.New(tbl, fa, tbl.NewBatch), fa
}

func TestAttachMapsSameFramesInTwoSpaces(t *testing.T) {
	fa := mem.NewFrameAllocator(0, 4096)
	seg, err := NewSegment(fa, 2)
	if err != kerr.ENone {
		t.Fatalf("NewSegment: %v", err)
	}

	tbl1 := pagetable.NewSoftTable(nil)
	sp1 := memspace.New(tbl1, fa, tbl1.NewBatch)
	tbl2 := pagetable.NewSoftTable(nil)
	sp2 := memspace.New(tbl2, fa, tbl2.NewBatch)

	perm := pagetable.Read | pagetable.Write | pagetable.User | pagetable.Valid
	if err := seg.Attach(sp1, 10, perm); err != kerr.ENone {
		t.Fatalf("attach sp1: %v", err)
	}
	if err := seg.Attach(sp2, 500, perm); err != kerr.ENone {
		t.Fatalf("attach sp2: %v", err)
	}
	if seg.RefCount() != 2 {
		t.Fatalf("expected refcount 2, got %d", seg.RefCount())
	}

	r1, ok := sp1.Table.Translate(10)
	if !ok {
		t.Fatal("expected sp1 VPN 10 mapped")
	}
	r2, ok := sp2.Table.Translate(500)
	if !ok {
		t.Fatal("expected sp2 VPN 500 mapped")
	}
	if r1.PPN != r2.PPN {
		t.Fatalf("expected both spaces to map the same frame, got %d vs %d", r1.PPN, r2.PPN)
	}
}

func TestDetachDoesNotFreeFrames(t *testing.T) {
	sp, fa := newTestSpace(t)
	seg, err := NewSegment(fa, 1)
	if err != kerr.ENone {
		t.Fatalf("NewSegment: %v", err)
	}
	perm := pagetable.Read | pagetable.Write | pagetable.Valid
	if err := seg.Attach(sp, 0, perm); err != kerr.ENone {
		t.Fatalf("attach: %v", err)
	}
	if err := seg.Detach(sp, 0); err != kerr.ENone {
		t.Fatalf("detach: %v", err)
	}
	if seg.RefCount() != 0 {
		t.Fatalf("expected refcount 0 after detach, got %d", seg.RefCount())
	}
	if _, ok := sp.Table.Translate(0); ok {
		t.Fatal("expected VPN 0 unmapped after detach")
	}
	// frames must still be alive: Destroy must succeed without panicking.
	seg.Destroy()
}

func TestDestroyPanicsWithLiveAttachment(t *testing.T) {
	sp, fa := newTestSpace(t)
	seg, _ := NewSegment(fa, 1)
	seg.Attach(sp, 0, pagetable.Read|pagetable.Valid)

	defer func() {
		if recover() == nil {
			t.Fatal("expected Destroy to panic with a live attachment")
		}
	}()
	seg.Destroy()
}

func TestAttachAnywhereFirstFits(t *testing.T) {
	sp, fa := newTestSpace(t)
	blocker := memspace.NewMappingArea(mem.PageNumRange[mem.VPN]{Start: 0, End: 4}, memspace.UserData, memspace.Framed, pagetable.Read|pagetable.Valid)
	if err := sp.InsertArea(blocker); err != kerr.ENone {
		t.Fatalf("insert blocker: %v", err)
	}
	seg, _ := NewSegment(fa, 2)
	vpn, err := seg.AttachAnywhere(sp, 0, 100, pagetable.Read|pagetable.Write|pagetable.Valid)
	if err != kerr.ENone {
		t.Fatalf("attach anywhere: %v", err)
	}
	if vpn != 4 {
		t.Fatalf("expected first-fit at VPN 4, got %d", vpn)
	}
}

func TestTableCreateLookupRemove(t *testing.T) {
	fa := mem.NewFrameAllocator(0, 4096)
	tbl := NewTable(fa)
	id, seg, err := tbl.Create(3)
	if err != kerr.ENone {
		t.Fatalf("create: %v", err)
	}
	if got, ok := tbl.Lookup(id); !ok || got != seg {
		t.Fatal("expected lookup to return the created segment")
	}
	if tbl.Len() != 1 {
		t.Fatalf("expected 1 registered segment, got %d", tbl.Len())
	}
	if !tbl.Remove(id) {
		t.Fatal("expected remove to succeed")
	}
	if _, ok := tbl.Lookup(id); ok {
		t.Fatal("expected lookup to fail after remove")
	}
	seg.Destroy()
}
