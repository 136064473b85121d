package memspace

import (
	"testing"

	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/mem"
	"github.com/nyx-os/nyx/pagetable"
)

func newTestSpace(t *testing.T) (*MemorySpace, *mem.FrameAllocator) {
	t.Helper()
	fa := mem.NewFrameAllocator(0, 4096)
	tbl := pagetable.NewSoftTable(nil)
	sp := New(tbl, fa, tbl.NewBatch)
	return sp, fa
}

func TestInsertAreaRejectsOverlap(t *testing.T) {
	sp, _ := newTestSpace(t)
	a := NewMappingArea(mem.PageNumRange[mem.VPN]{Start: 0, End: 4}, UserData, Framed, pagetable.Read|pagetable.Write|pagetable.Valid)
	if err := sp.InsertArea(a); err != kerr.ENone {
		t.Fatalf("first insert failed: %v", err)
	}
	b := NewMappingArea(mem.PageNumRange[mem.VPN]{Start: 2, End: 6}, UserData, Framed, pagetable.Read|pagetable.Valid)
	if err := sp.InsertArea(b); err != kerr.EAlreadyExists {
		t.Fatalf("expected overlap rejection, got %v", err)
	}
}

func TestAreasDisjointInvariant(t *testing.T) {
	sp, _ := newTestSpace(t)
	ranges := [][2]mem.VPN{{0, 2}, {5, 8}, {10, 11}}
	for _, r := range ranges {
		a := NewMappingArea(mem.PageNumRange[mem.VPN]{Start: r[0], End: r[1]}, UserData, Framed, pagetable.Read|pagetable.Write|pagetable.Valid)
		if err := sp.InsertArea(a); err != kerr.ENone {
			t.Fatalf("insert failed: %v", err)
		}
	}
	for i := 0; i < len(sp.Areas); i++ {
		for j := i + 1; j < len(sp.Areas); j++ {
			if sp.Areas[i].Range.Overlaps(sp.Areas[j].Range) {
				t.Fatalf("areas %d and %d overlap", i, j)
			}
		}
	}
}

func TestFindFreeAreaFirstFitJump(t *testing.T) {
	sp, _ := newTestSpace(t)
	a := NewMappingArea(mem.PageNumRange[mem.VPN]{Start: 2, End: 6}, UserData, Framed, pagetable.Read|pagetable.Valid)
	sp.InsertArea(a)
	start, ok := sp.FindFreeArea(0, 100, 3)
	if !ok {
		t.Fatal("expected a free area to be found")
	}
	if start != 6 {
		t.Fatalf("expected first-fit to jump past the overlapping area to 6, got %d", start)
	}
}

func TestMprotectSplitting(t *testing.T) {
	// A 4-page writable area [V, V+4); call
	// partial_change_permission([V+1, V+2), PROT_NONE).
	sp, _ := newTestSpace(t)
	const V mem.VPN = 100
	a := NewMappingArea(mem.PageNumRange[mem.VPN]{Start: V, End: V + 4}, UserData, Framed, pagetable.Read|pagetable.Write|pagetable.Valid)
	if err := sp.InsertArea(a); err != kerr.ENone {
		t.Fatalf("insert failed: %v", err)
	}

	if err := sp.PartialChangePermission(mem.PageNumRange[mem.VPN]{Start: V + 1, End: V + 2}, 0); err != kerr.ENone {
		t.Fatalf("partial_change_permission failed: %v", err)
	}

	if len(sp.Areas) != 3 {
		t.Fatalf("expected 3 areas after split, got %d", len(sp.Areas))
	}
	left, mid, right := sp.Areas[0], sp.Areas[1], sp.Areas[2]
	if left.Range != (mem.PageNumRange[mem.VPN]{Start: V, End: V + 1}) {
		t.Fatalf("unexpected left range: %v", left.Range)
	}
	if mid.Range != (mem.PageNumRange[mem.VPN]{Start: V + 1, End: V + 2}) {
		t.Fatalf("unexpected mid range: %v", mid.Range)
	}
	if mid.MapType != Reserved {
		t.Fatalf("expected mid area to become Reserved, got %v", mid.MapType)
	}
	if right.Range != (mem.PageNumRange[mem.VPN]{Start: V + 2, End: V + 4}) {
		t.Fatalf("unexpected right range: %v", right.Range)
	}
	if _, ok := sp.Table.Translate(V + 1); ok {
		t.Fatal("expected translating V+1 to return nothing after reservation")
	}
	if _, ok := sp.Table.Translate(V); !ok {
		t.Fatal("expected left area to remain mapped")
	}
	if _, ok := sp.Table.Translate(V + 3); !ok {
		t.Fatal("expected right area to remain mapped")
	}
}

func TestPartialUnmap(t *testing.T) {
	sp, _ := newTestSpace(t)
	const V mem.VPN = 0
	a := NewMappingArea(mem.PageNumRange[mem.VPN]{Start: V, End: V + 4}, UserData, Framed, pagetable.Read|pagetable.Write|pagetable.Valid)
	sp.InsertArea(a)
	left, right := sp.PartialUnmap(mem.PageNumRange[mem.VPN]{Start: V + 1, End: V + 3})
	if left == nil || right == nil {
		t.Fatal("expected both remnants to exist")
	}
	if len(sp.Areas) != 2 {
		t.Fatalf("expected 2 remaining areas, got %d", len(sp.Areas))
	}
	if _, ok := sp.Table.Translate(V + 1); ok {
		t.Fatal("expected middle range to be unmapped")
	}
}

func TestExtendHeapCreatesAndGrows(t *testing.T) {
	sp, _ := newTestSpace(t)
	if err := sp.ExtendHeap(1000); err != kerr.ENone {
		t.Fatalf("create heap failed: %v", err)
	}
	if *sp.HeapStart != 1000 {
		t.Fatalf("expected heap start 1000, got %d", *sp.HeapStart)
	}
	if err := sp.ExtendHeap(1004); err != kerr.ENone {
		t.Fatalf("grow heap failed: %v", err)
	}
	var heap *MappingArea
	for _, a := range sp.Areas {
		if a.AreaType == UserHeap {
			heap = a
		}
	}
	if heap == nil || heap.Range.End != 1004 {
		t.Fatalf("expected heap end 1004, got %+v", heap)
	}
	if err := sp.ExtendHeap(500); err != kerr.EInvalidArg {
		t.Fatalf("expected EInvalidArg shrinking below heap start, got %v", err)
	}
}

func TestCopyDataRoundTrip(t *testing.T) {
	sp, _ := newTestSpace(t)
	a := NewMappingArea(mem.PageNumRange[mem.VPN]{Start: 0, End: 1}, UserData, Framed, pagetable.Read|pagetable.Write|pagetable.Valid)
	sp.InsertArea(a)
	data := []byte("HELLO")
	if err := sp.CopyData(a, data, 0); err != kerr.ENone {
		t.Fatalf("copy_data failed: %v", err)
	}
	buf := make([]byte, 3)
	if err := sp.ReadBytesAt(0, 1, buf); err != kerr.ENone {
		t.Fatalf("read failed: %v", err)
	}
	if string(buf) != "ELL" {
		t.Fatalf("expected ELL, got %q", buf)
	}
}

func TestCloneForForkCopiesContentSeparately(t *testing.T) {
	sp, _ := newTestSpace(t)
	a := NewMappingArea(mem.PageNumRange[mem.VPN]{Start: 0, End: 1}, UserData, Framed, pagetable.Read|pagetable.Write|pagetable.Valid)
	sp.InsertArea(a)
	sp.CopyData(a, []byte("parent"), 0)

	childTbl := pagetable.NewSoftTable(nil)
	child, err := sp.CloneForFork(childTbl, childTbl.NewBatch)
	if err != kerr.ENone {
		t.Fatalf("clone failed: %v", err)
	}

	childArea, _, _ := child.AreaContaining(0)
	buf := make([]byte, 6)
	child.ReadBytesAt(0, 0, buf)
	if string(buf) != "parent" {
		t.Fatalf("expected child to see copied content, got %q", buf)
	}

	// mutate the child; parent must be unaffected (no COW sharing).
	child.WriteBytesAt(0, 0, []byte("child!"))
	parentBuf := make([]byte, 6)
	sp.ReadBytesAt(0, 0, parentBuf)
	if string(parentBuf) != "parent" {
		t.Fatalf("expected parent unaffected by child write, got %q", parentBuf)
	}
	if childArea.Frames[0] == a.Frames[0] {
		t.Fatal("expected child to own a distinct frame")
	}
}

func TestMappedPagesInvariant(t *testing.T) {
	sp, _ := newTestSpace(t)
	a := NewMappingArea(mem.PageNumRange[mem.VPN]{Start: 0, End: 4}, UserData, Framed, pagetable.Read|pagetable.Write|pagetable.Valid)
	sp.InsertArea(a)
	if a.MappedPages() != 4 {
		t.Fatalf("expected 4 mapped pages, got %d", a.MappedPages())
	}
	for vpn := range a.Frames {
		if !a.Range.Contains(vpn) {
			t.Fatalf("frame key %d outside range %v", vpn, a.Range)
		}
	}
}
