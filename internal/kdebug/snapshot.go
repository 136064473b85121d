package kdebug

import "github.com/nyx-os/nyx/archops"

// TaskSnapshot is one task's JSON-exported footprint, the same fields
// procfs's per-task status/stat generators print as text.
type TaskSnapshot struct {
	PID    int    `json:"pid"`
	Name   string `json:"name"`
	RSSKB  int64  `json:"rss_kb"`
	VSSKB  int64  `json:"vss_kb"`
}

// Snapshot is a single-shot JSON rendering of the same archops.FSHost
// data procfs's generators print one file at a time, so a host tool can
// fetch the whole picture in one read instead of walking the tree.
type Snapshot struct {
	UptimeNanos int64          `json:"uptime_ns"`
	CPUInfo     string         `json:"cpu_info"`
	MemTotalKB  int64          `json:"mem_total_kb"`
	MemFreeKB   int64          `json:"mem_free_kb"`
	Tasks       []TaskSnapshot `json:"tasks"`
}

// BuildSnapshot reads host once and assembles the full Snapshot.
func BuildSnapshot(host archops.FSHost) Snapshot {
	pageKB := int64(host.PageSize()) / 1024
	if pageKB == 0 {
		pageKB = 1
	}
	total, free := host.FrameStats()

	snap := Snapshot{
		UptimeNanos: host.UptimeNanos(),
		CPUInfo:     host.CPUInfo(),
		MemTotalKB:  int64(total) * pageKB,
		MemFreeKB:   int64(free) * pageKB,
	}
	for _, tid := range host.TaskIDs() {
		name, ok := host.TaskCmdline(tid)
		if !ok {
			continue
		}
		rss, vss, ok := host.TaskMemInfo(tid)
		if !ok {
			continue
		}
		snap.Tasks = append(snap.Tasks, TaskSnapshot{
			PID:   tid,
			Name:  name,
			RSSKB: int64(rss) * pageKB,
			VSSKB: int64(vss) * pageKB,
		})
	}
	return snap
}
