package sysfs

import (
	"strings"
	"testing"
	"time"

	"github.com/nyx-os/nyx/archops"
	"github.com/nyx-os/nyx/kerr"
)

type fakeFSHost struct{}

func (fakeFSHost) PageSize() int                           { return 4096 }
func (fakeFSHost) Ext4BlockSize() int                       { return 4096 }
func (fakeFSHost) VirtioSectorSize() int                    { return 512 }
func (fakeFSHost) Now() time.Time                           { return time.Unix(0, 0) }
func (fakeFSHost) TaskIDs() []int                           { return []int{1} }
func (fakeFSHost) TaskCmdline(tid int) (string, bool)       { return "init", true }
func (fakeFSHost) TaskMemInfo(tid int) (int, int, bool)     { return 10, 20, true }
func (fakeFSHost) UptimeNanos() int64                       { return 0 }
func (fakeFSHost) FrameStats() (int, int)                   { return 100, 50 }
func (fakeFSHost) CPUInfo() string                          { return "nyx-cpu" }
func (fakeFSHost) MountSnapshot() []archops.MountEntry       { return nil }

func init() {
	archops.RegisterFSHost(fakeFSHost{})
}

type fakeRegistry struct{}

func (fakeRegistry) BlockDevices() []BlockDeviceInfo {
	return []BlockDeviceInfo{{Name: "vda", Major: 254, Minor: 0, BlockSize: 512, TotalBlocks: 2048}}
}

func (fakeRegistry) TTYDevices() []TTYDeviceInfo {
	return []TTYDeviceInfo{{Name: "ttyS0", Major: 4, Minor: 64}}
}

func (fakeRegistry) RTCDevices() []RTCDeviceInfo {
	return []RTCDeviceInfo{{Name: "rtc0", Now: func() (int, int, int, int, int, int) {
		return 2026, 7, 30, 12, 0, 0
	}}}
}

func (fakeRegistry) InputDevices() []InputDeviceInfo {
	return []InputDeviceInfo{{Name: "input0"}}
}

func init() {
	RegisterDeviceRegistry(fakeRegistry{})
}

func readAll(n *Inode) string {
	buf := make([]byte, 4096)
	count, err := n.ReadAt(0, buf)
	if err != kerr.ENone {
		return ""
	}
	return string(buf[:count])
}

func lookupPath(t *testing.T, fs *FS, parts ...string) *Inode {
	t.Helper()
	cur := fs.RootInode()
	for _, p := range parts {
		next, err := cur.Lookup(p)
		if err != kerr.ENone {
			t.Fatalf("lookup %q in path %v: %v", p, parts, err)
		}
		cur = next
	}
	return cur.(*Inode)
}

func TestBlockDeviceClassSymlink(t *testing.T) {
	fs := New()
	link := lookupPath(t, fs, "class", "block", "vda")
	target, err := link.Readlink()
	if err != kerr.ENone {
		t.Fatal(err)
	}
	if target != "../../devices/platform/vda" {
		t.Fatalf("unexpected symlink target %q", target)
	}
}

func TestBlockDeviceSizeAttribute(t *testing.T) {
	fs := New()
	size := lookupPath(t, fs, "devices", "platform", "vda", "size")
	out := readAll(size)
	if strings.TrimSpace(out) != "2048" {
		t.Fatalf("expected 2048 sectors, got %q", out)
	}
}

func TestRTCDateAttribute(t *testing.T) {
	fs := New()
	date := lookupPath(t, fs, "devices", "platform", "rtc0", "date")
	if readAll(date) != "2026-07-30\n" {
		t.Fatalf("unexpected date: %q", readAll(date))
	}
}

func TestTTYDevAttribute(t *testing.T) {
	fs := New()
	dev := lookupPath(t, fs, "devices", "platform", "ttyS0", "dev")
	if readAll(dev) != "4:64\n" {
		t.Fatalf("unexpected dev: %q", readAll(dev))
	}
}

func TestHeapProfileRendersTaskSamples(t *testing.T) {
	fs := New()
	heap := lookupPath(t, fs, "kernel", "debug", "pprof", "heap")
	if readAll(heap) == "" {
		t.Fatal("expected non-empty heap profile")
	}
}

func TestGoroutineProfileNonEmpty(t *testing.T) {
	fs := New()
	g := lookupPath(t, fs, "kernel", "debug", "pprof", "goroutine")
	if readAll(g) == "" {
		t.Fatal("expected non-empty goroutine profile")
	}
}

func TestSnapshotJSONContainsTask(t *testing.T) {
	fs := New()
	snap := lookupPath(t, fs, "kernel", "debug", "snapshot.json")
	out := readAll(snap)
	if !strings.Contains(out, `"name":"init"`) {
		t.Fatalf("expected snapshot to mention task init, got %q", out)
	}
}
