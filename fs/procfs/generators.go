package procfs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nyx-os/nyx/archops"
)

func meminfoGenerator() []byte {
	ops := archops.FSHostOps()
	pageSize := ops.PageSize()
	total, free := ops.FrameStats()
	totalKB := total * pageSize / 1024
	freeKB := free * pageSize / 1024

	var b strings.Builder
	fmt.Fprintf(&b, "MemTotal:       %8d kB\n", totalKB)
	fmt.Fprintf(&b, "MemFree:        %8d kB\n", freeKB)
	fmt.Fprintf(&b, "MemAvailable:   %8d kB\n", freeKB)
	for _, name := range []string{"Buffers", "Cached", "SwapCached", "Active", "Inactive",
		"Active(anon)", "Inactive(anon)", "Active(file)", "Inactive(file)", "Unevictable",
		"Mlocked", "SwapTotal", "SwapFree", "Dirty", "Writeback", "AnonPages", "Mapped", "Shmem"} {
		fmt.Fprintf(&b, "%-15s %8d kB\n", name+":", 0)
	}
	return []byte(b.String())
}

func cpuinfoGenerator() []byte {
	return []byte(archops.FSHostOps().CPUInfo())
}

func uptimeGenerator() []byte {
	ns := archops.FSHostOps().UptimeNanos()
	secs := ns / 1e9
	frac := (ns % 1e9) / 1e7
	return []byte(fmt.Sprintf("%d.%02d 0.00\n", secs, frac))
}

func mountsGenerator() []byte {
	var b strings.Builder
	for _, m := range archops.FSHostOps().MountSnapshot() {
		device := m.Device
		if device == "" {
			device = "none"
		}
		flags := m.Flags
		if flags == "" {
			flags = "rw,relatime"
		}
		fmt.Fprintf(&b, "%s %s %s %s 0 0\n", device, m.Path, m.FSType, flags)
	}
	return []byte(b.String())
}

// cmdlineGenerator renders /proc/[tid]/cmdline: the host-reported
// command line string followed by a single NUL, or empty content if the
// host reports no command line for tid.
func cmdlineGenerator(tid int) Generator {
	return func() []byte {
		cmdline, ok := archops.FSHostOps().TaskCmdline(tid)
		if !ok {
			return nil
		}
		return []byte(cmdline + "\x00")
	}
}

// statusGenerator renders a reduced /proc/[tid]/status: only the
// fields derivable from archops.FSHost (name, rss/vss) are populated;
// task-state and parentage fields nyx doesn't expose here are omitted
// rather than faked.
func statusGenerator(tid int) Generator {
	return func() []byte {
		name, ok := archops.FSHostOps().TaskCmdline(tid)
		if !ok {
			return nil
		}
		rssPages, vssPages, _ := archops.FSHostOps().TaskMemInfo(tid)
		pageKB := archops.FSHostOps().PageSize() / 1024
		var b strings.Builder
		fmt.Fprintf(&b, "Name:\t%s\n", firstWord(name))
		fmt.Fprintf(&b, "Pid:\t%d\n", tid)
		fmt.Fprintf(&b, "VmSize:\t%8d kB\n", vssPages*pageKB)
		fmt.Fprintf(&b, "VmRSS:\t%8d kB\n", rssPages*pageKB)
		return []byte(b.String())
	}
}

// statGenerator renders the same information statusGenerator does in
// the single-line space-separated /proc/[tid]/stat shape; fields nyx
// can't supply (ppid, pgid, times, ...) are zero-filled and the state
// field is always "R", as the format is fixed-width and consumers index
// by field position.
func statGenerator(tid int) Generator {
	return func() []byte {
		name, ok := archops.FSHostOps().TaskCmdline(tid)
		if !ok {
			return nil
		}
		fields := make([]string, 0, 50)
		fields = append(fields, strconv.Itoa(tid), "("+firstWord(name)+")", "R")
		for i := 0; i < 47; i++ {
			fields = append(fields, "0")
		}
		return []byte(strings.Join(fields, " ") + "\n")
	}
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}
