package boot

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestRunPhase2ProbesIntcBeforeOthers(t *testing.T) {
	var mu sync.Mutex
	var order []string

	reg := NewRegistry()
	reg.Register("sifive,plic-1.0.0", func(_ context.Context, n *Node) error {
		mu.Lock()
		order = append(order, n.Name)
		mu.Unlock()
		return nil
	})
	reg.Register("virtio,mmio", func(_ context.Context, n *Node) error {
		mu.Lock()
		order = append(order, n.Name)
		mu.Unlock()
		return nil
	})

	root, err := Parse(buildTestBlob())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := RunPhase2(context.Background(), root, reg); err != nil {
		t.Fatalf("RunPhase2: %v", err)
	}

	if len(order) != 2 {
		t.Fatalf("expected 2 probes, got %v", order)
	}
	if order[0] != "plic@c000000" {
		t.Fatalf("expected interrupt controller probed first, got order %v", order)
	}
}

func TestRunPhase2PropagatesProbeError(t *testing.T) {
	boom := errors.New("boom")
	reg := NewRegistry()
	reg.Register("virtio,mmio", func(context.Context, *Node) error { return boom })

	root, err := Parse(buildTestBlob())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := RunPhase2(context.Background(), root, reg); err == nil {
		t.Fatal("expected RunPhase2 to surface the probe error")
	}
}

func TestBootParsesAndProbes(t *testing.T) {
	var probed bool
	reg := NewRegistry()
	reg.Register("virtio,mmio", func(context.Context, *Node) error {
		probed = true
		return nil
	})

	result, err := Boot(context.Background(), buildTestBlob(), reg)
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if result.Cmdline != "oscomp.test_timeout=5000 quiet" {
		t.Fatalf("unexpected cmdline: %q", result.Cmdline)
	}
	if result.Args["oscomp.test_timeout"] != "5000" {
		t.Fatalf("expected parsed bootarg, got %+v", result.Args)
	}
	if !probed {
		t.Fatal("expected virtio,mmio device to be probed")
	}
}
