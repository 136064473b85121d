package kdebug

import "testing"

func TestBuildHeapProfileOneLocationPerName(t *testing.T) {
	samples := []Sample{
		{Name: "task:init", ValueKB: 128},
		{Name: "task:sh", ValueKB: 64},
		{Name: "task:init", ValueKB: 32},
	}
	p := BuildHeapProfile(samples)
	if len(p.Sample) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(p.Sample))
	}
	if len(p.Function) != 2 {
		t.Fatalf("expected 2 distinct functions (one per name), got %d", len(p.Function))
	}
	if len(p.Location) != 2 {
		t.Fatalf("expected 2 distinct locations, got %d", len(p.Location))
	}
}

func TestDemanglePassesThroughPlainNames(t *testing.T) {
	if got := Demangle("task:init"); got != "task:init" {
		t.Fatalf("expected plain name unchanged, got %q", got)
	}
}

func TestRenderProducesNonEmptyBytes(t *testing.T) {
	p := BuildHeapProfile([]Sample{{Name: "x", ValueKB: 1}})
	data, err := Render(p)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty rendered profile")
	}
}
