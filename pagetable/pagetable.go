// Package pagetable defines the architecture-neutral page table contract.
// Per-arch implementations (RISC-V Sv39, LoongArch64's
// direct-mapped-plus-TLB-refill scheme) live behind this interface; the
// generic cores in memspace only ever see a Table.
package pagetable

import "github.com/nyx-os/nyx/mem"

// PageSize enumerates the page sizes a Table may report for a mapping.
type PageSize int

const (
	Size4K PageSize = 1 << (iota * 9) // 4 KiB
	Size2M                            // 2 MiB, optional per-arch
	Size1G                            // 1 GiB, optional per-arch
)

// Flags is the architecture-neutral "universal PTE flags" bitset.
type Flags uint32

const (
	Read Flags = 1 << iota
	Write
	Execute
	User
	Valid
	Dirty
)

// Has reports whether all bits in want are set in f.
func (f Flags) Has(want Flags) bool { return f&want == want }

// TranslateResult is what Table.Translate/Walk returns for a mapped VPN.
type TranslateResult struct {
	PPN   mem.PPN
	Size  PageSize
	Flags Flags
}

// Error taxonomy for page table operations.
type Error int

const (
	ErrNone Error = iota
	ErrNotMapped
	ErrAlreadyMapped
	ErrInvalidAddress
	ErrInvalidFlags
	ErrFrameAllocFailed
	ErrUnsupportedMapType
	ErrShrinkBelowStart
	ErrOutOfMemory
)

func (e Error) Error() string {
	switch e {
	case ErrNone:
		return "none"
	case ErrNotMapped:
		return "not mapped"
	case ErrAlreadyMapped:
		return "already mapped"
	case ErrInvalidAddress:
		return "invalid address"
	case ErrInvalidFlags:
		return "invalid flags"
	case ErrFrameAllocFailed:
		return "frame allocation failed"
	case ErrUnsupportedMapType:
		return "unsupported map type"
	case ErrShrinkBelowStart:
		return "shrink below start"
	case ErrOutOfMemory:
		return "out of memory"
	default:
		return "unknown pagetable error"
	}
}

// Table is the per-arch page table contract.
type Table interface {
	// Activate loads this table as the active translation (e.g. writes
	// satp/PGDL).
	Activate()
	// Translate walks the table for va and reports the mapping, if any.
	Translate(vpn mem.VPN) (TranslateResult, bool)
	// Map installs a mapping for vpn. Single-page operation; operations
	// touching multiple pages must go through the *WithBatch variants.
	Map(vpn mem.VPN, ppn mem.PPN, size PageSize, flags Flags) Error
	// Unmap removes the mapping for vpn.
	Unmap(vpn mem.VPN) Error
	// UpdateFlags rewrites the flags of an existing mapping without
	// touching its PPN.
	UpdateFlags(vpn mem.VPN, flags Flags) Error
	// Walk is a synonym for Translate (both read-only walks of the table).
	Walk(vpn mem.VPN) (TranslateResult, bool)

	// MapWithBatch, UnmapWithBatch, UpdateFlagsWithBatch behave like
	// their non-batch counterparts but record the invalidated VPN into
	// the given batch instead of issuing an immediate local flush.
	MapWithBatch(b *TLBBatch, vpn mem.VPN, ppn mem.PPN, size PageSize, flags Flags) Error
	UnmapWithBatch(b *TLBBatch, vpn mem.VPN) Error
	UpdateFlagsWithBatch(b *TLBBatch, vpn mem.VPN, flags Flags) Error
}
