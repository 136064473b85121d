package boot

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ProbeFunc initializes one device-tree node whose compatible string
// matched a Registry entry, the Go equivalent of the original's
// fn(&FdtNode) DEVICE_TREE_REGISTRY entries.
type ProbeFunc func(ctx context.Context, n *Node) error

// Registry maps a node's "compatible" string to the probe function
// that initializes it, mirroring DEVICE_TREE_REGISTRY. Drivers
// register themselves at package-init time, same as the original's
// driver_init() calls.
type Registry struct {
	mu           sync.Mutex
	byCompatible map[string]ProbeFunc
}

// NewRegistry constructs an empty driver registry.
func NewRegistry() *Registry {
	return &Registry{byCompatible: make(map[string]ProbeFunc)}
}

// Register installs fn as the probe for compatible. Re-registering an
// already-registered compatible string overwrites the previous entry.
func (r *Registry) Register(compatible string, fn ProbeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byCompatible[compatible] = fn
}

func (r *Registry) lookup(compatible string) (ProbeFunc, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn, ok := r.byCompatible[compatible]
	return fn, ok
}

// RunPhase2 walks every node in root against reg, in the original's
// two-pass order: interrupt-controller nodes are probed to completion
// first (sequentially — later device probes depend on the controller
// being ready to register IRQs), then every remaining device node is
// probed concurrently under an errgroup; the first probe error
// cancels the group's context and RunPhase2 returns that error.
func RunPhase2(ctx context.Context, root *Node, reg *Registry) error {
	intc, others := partitionDevices(root)

	for _, n := range intc {
		if err := probeNode(ctx, n, reg); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, n := range others {
		n := n
		g.Go(func() error {
			return probeNode(gctx, n, reg)
		})
	}
	return g.Wait()
}

func probeNode(ctx context.Context, n *Node, reg *Registry) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	for _, c := range n.Compatible() {
		if fn, ok := reg.lookup(c); ok {
			if err := fn(ctx, n); err != nil {
				return fmt.Errorf("boot: probing %q (compatible %q): %w", n.Name, c, err)
			}
		}
	}
	return nil
}

// partitionDevices splits root's descendants (root itself excluded)
// into interrupt-controller nodes and every other node that declares a
// "compatible" string.
func partitionDevices(root *Node) (intc, others []*Node) {
	for _, n := range root.Children {
		for _, d := range allNodes(n) {
			if len(d.Compatible()) == 0 {
				continue
			}
			if _, ok := d.Property("interrupt-controller"); ok {
				intc = append(intc, d)
			} else {
				others = append(others, d)
			}
		}
	}
	return intc, others
}
