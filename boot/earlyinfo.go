package boot

import (
	"encoding/binary"
	"strings"
)

// MemoryRegion is one [Start, Start+Size) DRAM span from a "memory"
// node's reg property.
type MemoryRegion struct {
	Start uint64
	Size  uint64
}

// EarlyInfo is what phase 1 extracts directly from the FDT blob,
// before mm.Init runs: CPU count, boot clock frequency, and DRAM
// layout. Mirrors the original's EarlyDtInfo, without the fixed
// 8-region cap — nyx has no no-alloc constraint at this point, since
// Go's parser allocates regardless of boot phase.
type EarlyInfo struct {
	NumCPUs       int
	ClockFreqHz   uint64
	MemoryRegions []MemoryRegion
}

// defaultClockFreqHz is used when no cpu node carries a frequency
// property, matching the original's EarlyDtInfo::empty() default.
const defaultClockFreqHz = 12_500_000

// ParsePhase1 extracts EarlyInfo from a raw FDT blob without touching
// anything outside this package — no heap allocator dependency beyond
// what Parse itself needs, unlike the original's literal no-alloc
// constraint, since nyx's phase 1 caller controls when allocation
// becomes available independently of this parse step.
func ParsePhase1(blob []byte) (*EarlyInfo, error) {
	root, err := Parse(blob)
	if err != nil {
		return nil, err
	}
	return earlyInfoFromTree(root), nil
}

func earlyInfoFromTree(root *Node) *EarlyInfo {
	info := &EarlyInfo{NumCPUs: 1, ClockFreqHz: defaultClockFreqHz}

	var cpuNodes []*Node
	if cpus := findChild(root, "cpus"); cpus != nil {
		for _, c := range cpus.Children {
			if strings.HasPrefix(c.Name, "cpu@") {
				cpuNodes = append(cpuNodes, c)
			}
		}
	}
	if len(cpuNodes) > 0 {
		info.NumCPUs = len(cpuNodes)
		if v, ok := firstProperty(cpuNodes[0], "timebase-frequency", "clock-frequency"); ok {
			if freq, ok := decodeCells(v); ok {
				info.ClockFreqHz = freq
			}
		}
	}

	for _, n := range allNodes(root) {
		if !isMemoryNode(n) {
			continue
		}
		reg, ok := n.Property("reg")
		if !ok {
			continue
		}
		// Assumes #address-cells = #size-cells = 2 (64-bit platforms),
		// the only case riscv64/loongarch64 boot blobs in this pack use.
		for i := 0; i+16 <= len(reg); i += 16 {
			start := binary.BigEndian.Uint64(reg[i : i+8])
			size := binary.BigEndian.Uint64(reg[i+8 : i+16])
			if size > 0 {
				info.MemoryRegions = append(info.MemoryRegions, MemoryRegion{Start: start, Size: size})
			}
		}
	}
	return info
}

func isMemoryNode(n *Node) bool {
	if strings.HasPrefix(n.Name, "memory@") {
		return true
	}
	dt, ok := n.Property("device_type")
	return ok && string(trimNUL(dt)) == "memory"
}

// DRAMInfo merges every memory region into a single [start, start+size)
// span, as the original's dram_info()/early_dram_info() do.
func (e *EarlyInfo) DRAMInfo() (start, size uint64, ok bool) {
	if len(e.MemoryRegions) == 0 {
		return 0, 0, false
	}
	lo := e.MemoryRegions[0].Start
	hi := e.MemoryRegions[0].Start + e.MemoryRegions[0].Size
	for _, r := range e.MemoryRegions[1:] {
		if r.Start < lo {
			lo = r.Start
		}
		if end := r.Start + r.Size; end > hi {
			hi = end
		}
	}
	if lo >= hi {
		return 0, 0, false
	}
	return lo, hi - lo, true
}
