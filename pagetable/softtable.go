package pagetable

import (
	"sync"

	"github.com/nyx-os/nyx/mem"
)

// entry is one page table entry held by SoftTable.
type entry struct {
	ppn   mem.PPN
	size  PageSize
	flags Flags
}

// SoftTable is a generic, map-backed Table implementation. Concrete
// arch ports (RISC-V Sv39, LoongArch64) walk real hardware page-table
// pages; SoftTable models the identical (ppn, size, flags) contract in a
// host-testable way and also serves as the kernel table for CPUs booted
// under archs that provide no-op shootdown.
type SoftTable struct {
	mu      sync.Mutex
	entries map[mem.VPN]entry
	flush   func([]mem.VPN)
}

// NewSoftTable constructs an empty table. flush is invoked by batches
// created via NewBatch; it may be nil for a no-op
// shootdown arch.
func NewSoftTable(flush func([]mem.VPN)) *SoftTable {
	return &SoftTable{entries: make(map[mem.VPN]entry), flush: flush}
}

func (t *SoftTable) Activate() {}

func (t *SoftTable) Translate(vpn mem.VPN) (TranslateResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[vpn]
	if !ok {
		return TranslateResult{}, false
	}
	return TranslateResult{PPN: e.ppn, Size: e.size, Flags: e.flags}, true
}

func (t *SoftTable) Walk(vpn mem.VPN) (TranslateResult, bool) { return t.Translate(vpn) }

func (t *SoftTable) Map(vpn mem.VPN, ppn mem.PPN, size PageSize, flags Flags) Error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[vpn]; exists {
		return ErrAlreadyMapped
	}
	t.entries[vpn] = entry{ppn: ppn, size: size, flags: flags}
	return ErrNone
}

func (t *SoftTable) Unmap(vpn mem.VPN) Error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[vpn]; !exists {
		return ErrNotMapped
	}
	delete(t.entries, vpn)
	return ErrNone
}

func (t *SoftTable) UpdateFlags(vpn mem.VPN, flags Flags) Error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, exists := t.entries[vpn]
	if !exists {
		return ErrNotMapped
	}
	e.flags = flags
	t.entries[vpn] = e
	return ErrNone
}

func (t *SoftTable) MapWithBatch(b *TLBBatch, vpn mem.VPN, ppn mem.PPN, size PageSize, flags Flags) Error {
	err := t.Map(vpn, ppn, size, flags)
	if err == ErrNone && b != nil {
		b.Record(vpn)
	}
	return err
}

func (t *SoftTable) UnmapWithBatch(b *TLBBatch, vpn mem.VPN) Error {
	err := t.Unmap(vpn)
	if err == ErrNone && b != nil {
		b.Record(vpn)
	}
	return err
}

func (t *SoftTable) UpdateFlagsWithBatch(b *TLBBatch, vpn mem.VPN, flags Flags) Error {
	err := t.UpdateFlags(vpn, flags)
	if err == ErrNone && b != nil {
		b.Record(vpn)
	}
	return err
}

// NewBatch returns a TLBBatch wired to this table's flush function.
func (t *SoftTable) NewBatch() *TLBBatch {
	return NewTLBBatch(t.flush)
}

var _ Table = (*SoftTable)(nil)
