package pagetable

import "github.com/nyx-os/nyx/mem"

// TLBBatch collects VPN invalidations within one logical operation so
// that a multi-page mapping-area mutation issues a single local flush
// (and a single arch-specific IPI, if any) instead of one shootdown per
// page.
type TLBBatch struct {
	flush func([]mem.VPN)
	vpns  []mem.VPN
	done  bool
}

// NewTLBBatch creates a batch that will call flush with the accumulated
// VPNs when Execute's inner function returns.
func NewTLBBatch(flush func([]mem.VPN)) *TLBBatch {
	return &TLBBatch{flush: flush}
}

// Record appends vpn to the pending invalidation set.
func (b *TLBBatch) Record(vpn mem.VPN) {
	b.vpns = append(b.vpns, vpn)
}

// flushNow issues the coalesced flush exactly once.
func (b *TLBBatch) flushNow() {
	if b.done {
		return
	}
	b.done = true
	if b.flush != nil && len(b.vpns) > 0 {
		b.flush(b.vpns)
	}
}

// TLBBatchContextWrapper gives operations a single scope in which to
// coalesce invalidations; its Execute's deferred cleanup performs the
// flush, following a "with(|batch| { ... })" coalescing pattern.
type TLBBatchContextWrapper struct {
	newBatch func() *TLBBatch
}

// NewTLBBatchContextWrapper builds a wrapper around a batch factory
// (normally archops.MM.CreateTLBBatchContext wired through a per-arch
// flush function).
func NewTLBBatchContextWrapper(newBatch func() *TLBBatch) *TLBBatchContextWrapper {
	return &TLBBatchContextWrapper{newBatch: newBatch}
}

// Execute runs fn with a fresh batch, flushing exactly once when fn
// returns (whether or not fn panics).
func (w *TLBBatchContextWrapper) Execute(fn func(*TLBBatch)) {
	b := w.newBatch()
	defer b.flushNow()
	fn(b)
}
