package mem

import "testing"

func TestPageNumRangeEmpty(t *testing.T) {
	r := PageNumRange[VPN]{Start: 5, End: 5}
	if !r.Empty() {
		t.Fatal("expected empty range")
	}
	n := 0
	r.Iter(func(VPN) bool { n++; return true })
	if n != 0 {
		t.Fatalf("expected zero iterations, got %d", n)
	}
}

func TestPageNumRangeOverlaps(t *testing.T) {
	a := PageNumRange[VPN]{Start: 0, End: 4}
	b := PageNumRange[VPN]{Start: 3, End: 6}
	c := PageNumRange[VPN]{Start: 4, End: 6}
	if !a.Overlaps(b) {
		t.Fatal("expected a, b to overlap")
	}
	if a.Overlaps(c) {
		t.Fatal("expected a, c to be disjoint (semi-open range)")
	}
}

func TestPageNumRangeIterOrder(t *testing.T) {
	r := PageNumRange[VPN]{Start: 2, End: 5}
	var got []VPN
	r.Iter(func(v VPN) bool { got = append(got, v); return true })
	want := []VPN{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}
