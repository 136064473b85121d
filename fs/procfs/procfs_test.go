package procfs

import (
	"strings"
	"testing"
	"time"

	"github.com/nyx-os/nyx/archops"
	"github.com/nyx-os/nyx/kerr"
)

type fakeFSHost struct{}

func (fakeFSHost) PageSize() int         { return 4096 }
func (fakeFSHost) Ext4BlockSize() int    { return 4096 }
func (fakeFSHost) VirtioSectorSize() int { return 512 }
func (fakeFSHost) Now() time.Time        { return time.Unix(0, 0) }
func (fakeFSHost) TaskIDs() []int        { return []int{1, 2} }

func (fakeFSHost) TaskCmdline(tid int) (string, bool) {
	switch tid {
	case 1:
		return "init", true
	case 2:
		return "sh -c true", true
	}
	return "", false
}

func (fakeFSHost) TaskMemInfo(tid int) (int, int, bool) {
	if tid == 1 {
		return 10, 20, true
	}
	return 0, 0, false
}

func (fakeFSHost) UptimeNanos() int64        { return 1_500_000_000 }
func (fakeFSHost) FrameStats() (int, int)    { return 1000, 400 }
func (fakeFSHost) CPUInfo() string           { return "processor\t: 0\n" }
func (fakeFSHost) MountSnapshot() []archops.MountEntry {
	return []archops.MountEntry{{Device: "tmpfs", Path: "/tmp", FSType: "tmpfs"}}
}

func init() {
	archops.RegisterFSHost(fakeFSHost{})
}

func readAll(n *Inode) []byte {
	buf := make([]byte, 4096)
	count, err := n.ReadAt(0, buf)
	if err != kerr.ENone {
		return nil
	}
	return buf[:count]
}

func TestRootListsStaticAndPidEntries(t *testing.T) {
	fs := New()
	entries, err := fs.RootInode().Readdir()
	if err != kerr.ENone {
		t.Fatalf("readdir: %v", err)
	}
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	for _, want := range []string{"meminfo", "cpuinfo", "uptime", "mounts", "1", "2"} {
		if !names[want] {
			t.Fatalf("expected %q in /proc root, got %+v", want, names)
		}
	}
}

func TestMeminfoReflectsFrameStats(t *testing.T) {
	fs := New()
	child, err := fs.RootInode().Lookup("meminfo")
	if err != kerr.ENone {
		t.Fatal(err)
	}
	out := string(readAll(child.(*Inode)))
	if !strings.Contains(out, "MemTotal:") {
		t.Fatalf("missing MemTotal: %q", out)
	}
}

func TestPidLookupAndCmdline(t *testing.T) {
	fs := New()
	pidDir, err := fs.RootInode().Lookup("1")
	if err != kerr.ENone {
		t.Fatalf("lookup 1: %v", err)
	}
	cmdline, err := pidDir.Lookup("cmdline")
	if err != kerr.ENone {
		t.Fatal(err)
	}
	out := string(readAll(cmdline.(*Inode)))
	if out != "init\x00" {
		t.Fatalf("expected %q, got %q", "init\x00", out)
	}
}

func TestUnknownPidNotFound(t *testing.T) {
	fs := New()
	if _, err := fs.RootInode().Lookup("999"); err != kerr.ENotFound {
		t.Fatalf("expected ENotFound, got %v", err)
	}
}

func TestExeSymlinkGenerator(t *testing.T) {
	fs := New()
	pidDir, _ := fs.RootInode().Lookup("1")
	exe, err := pidDir.Lookup("exe")
	if err != kerr.ENone {
		t.Fatal(err)
	}
	target, err := exe.(*Inode).Readlink()
	if err != kerr.ENone {
		t.Fatal(err)
	}
	if target != "/" {
		t.Fatalf("expected %q, got %q", "/", target)
	}
}
