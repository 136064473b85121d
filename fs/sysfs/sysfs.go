package sysfs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"runtime/pprof"

	"github.com/nyx-os/nyx/archops"
	"github.com/nyx-os/nyx/internal/kdebug"
	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/vfs"
)

const dirMode = vfs.ModeUserRead | vfs.ModeUserExec
const attrMode = vfs.FileMode(0o444)

// FS is the sysfs FileSystem implementation. Unlike procfs, its tree
// shape is fixed at construction: device attach/detach after boot
// would need an explicit rebuild, which nyx's device model (static,
// discovered once at boot) never requires.
type FS struct {
	root *Inode
}

// New builds the sysfs tree from whatever DeviceRegistry was
// registered via RegisterDeviceRegistry.
func New() *FS {
	root := newDir(dirMode)
	devices := root.addChild("devices", newDir(dirMode))
	platform := devices.addChild("platform", newDir(dirMode))
	class := root.addChild("class", newDir(dirMode))
	classBlock := class.addChild("block", newDir(dirMode))
	classTTY := class.addChild("tty", newDir(dirMode))
	classRTC := class.addChild("rtc", newDir(dirMode))
	classInput := class.addChild("input", newDir(dirMode))

	reg := currentRegistry()

	for _, dev := range reg.BlockDevices() {
		dir := buildBlockDeviceDir(dev)
		platform.addChild(dev.Name, dir)
		classBlock.addChild(dev.Name, newSymlink("../../devices/platform/"+dev.Name))
	}
	for _, dev := range reg.TTYDevices() {
		dir := buildTTYDeviceDir(dev)
		platform.addChild(dev.Name, dir)
		classTTY.addChild(dev.Name, newSymlink("../../devices/platform/"+dev.Name))
	}
	for _, dev := range reg.RTCDevices() {
		dir := buildRTCDeviceDir(dev)
		platform.addChild(dev.Name, dir)
		classRTC.addChild(dev.Name, newSymlink("../../devices/platform/"+dev.Name))
	}
	for _, dev := range reg.InputDevices() {
		dir := buildInputDeviceDir(dev)
		platform.addChild(dev.Name, dir)
		classInput.addChild(dev.Name, newSymlink("../../devices/platform/"+dev.Name))
	}

	kernel := root.addChild("kernel", newDir(dirMode))
	debugDir := kernel.addChild("debug", newDir(dirMode))
	pprofDir := debugDir.addChild("pprof", newDir(dirMode))
	pprofDir.addChild("heap", newAttr(Attr{Mode: attrMode, Show: heapProfileShow}))
	pprofDir.addChild("goroutine", newAttr(Attr{Mode: attrMode, Show: goroutineProfileShow}))
	debugDir.addChild("snapshot.json", newAttr(Attr{Mode: attrMode, Show: snapshotShow}))

	return &FS{root: root}
}

// snapshotShow renders the whole archops.FSHost picture as one JSON
// document, the format nyx-ctl reads to avoid walking procfs file by
// file from the host side.
func snapshotShow() string {
	data, err := json.Marshal(kdebug.BuildSnapshot(archops.FSHostOps()))
	if err != nil {
		return ""
	}
	return string(data)
}

// heapProfileShow renders every live task's resident memory as a pprof
// heap profile, one Location per task, sourced from the same
// archops.FSHost data procfs's meminfo/status generators print as text.
func heapProfileShow() string {
	host := archops.FSHostOps()
	pageKB := int64(host.PageSize()) / 1024
	if pageKB == 0 {
		pageKB = 1
	}
	var samples []kdebug.Sample
	for _, tid := range host.TaskIDs() {
		rssPages, _, ok := host.TaskMemInfo(tid)
		if !ok {
			continue
		}
		name, _ := host.TaskCmdline(tid)
		if name == "" {
			name = fmt.Sprintf("task-%d", tid)
		}
		samples = append(samples, kdebug.Sample{Name: name, ValueKB: int64(rssPages) * pageKB})
	}
	data, err := kdebug.Render(kdebug.BuildHeapProfile(samples))
	if err != nil {
		return ""
	}
	return string(data)
}

// goroutineProfileShow dumps the real runtime goroutine profile: nyx's
// tasks and worker loops run as actual goroutines, so this is the
// kernel's genuine concurrency state, not a synthesized sample set.
func goroutineProfileShow() string {
	var buf bytes.Buffer
	if err := pprof.Lookup("goroutine").WriteTo(&buf, 0); err != nil {
		return ""
	}
	return buf.String()
}

func buildBlockDeviceDir(dev BlockDeviceInfo) *Inode {
	dir := newDir(dirMode)
	dir.addChild("dev", newAttr(Attr{Mode: attrMode, Show: func() string {
		return fmt.Sprintf("%d:%d\n", dev.Major, dev.Minor)
	}}))
	dir.addChild("uevent", newAttr(Attr{Mode: 0o644, Show: func() string {
		return fmt.Sprintf("MAJOR=%d\nMINOR=%d\nDEVNAME=%s\nDEVTYPE=disk\n", dev.Major, dev.Minor, dev.Name)
	}}))
	dir.addChild("size", newAttr(Attr{Mode: attrMode, Show: func() string {
		return fmt.Sprintf("%d\n", dev.BlockSize*dev.TotalBlocks/512)
	}}))
	dir.addChild("ro", newAttr(Attr{Mode: attrMode, Show: func() string { return "0\n" }}))
	dir.addChild("removable", newAttr(Attr{Mode: attrMode, Show: func() string { return "0\n" }}))
	dir.addChild("stat", newAttr(Attr{Mode: attrMode, Show: func() string {
		return "       0        0        0        0        0        0        0        0        0        0        0\n"
	}}))

	queue := dir.addChild("queue", newDir(dirMode))
	queue.addChild("logical_block_size", newAttr(Attr{Mode: attrMode, Show: func() string {
		return fmt.Sprintf("%d\n", dev.BlockSize)
	}}))
	queue.addChild("physical_block_size", newAttr(Attr{Mode: attrMode, Show: func() string {
		return fmt.Sprintf("%d\n", dev.BlockSize)
	}}))
	queue.addChild("hw_sector_size", newAttr(Attr{Mode: attrMode, Show: func() string { return "512\n" }}))
	queue.addChild("max_sectors_kb", newAttr(Attr{Mode: 0o644, Show: func() string { return "1280\n" }}))
	queue.addChild("rotational", newAttr(Attr{Mode: 0o644, Show: func() string { return "1\n" }}))
	return dir
}

func buildTTYDeviceDir(dev TTYDeviceInfo) *Inode {
	dir := newDir(dirMode)
	dir.addChild("dev", newAttr(Attr{Mode: attrMode, Show: func() string {
		return fmt.Sprintf("%d:%d\n", dev.Major, dev.Minor)
	}}))
	dir.addChild("uevent", newAttr(Attr{Mode: 0o644, Show: func() string {
		return fmt.Sprintf("MAJOR=%d\nMINOR=%d\nDEVNAME=%s\n", dev.Major, dev.Minor, dev.Name)
	}}))
	return dir
}

func buildRTCDeviceDir(dev RTCDeviceInfo) *Inode {
	dir := newDir(dirMode)
	dir.addChild("uevent", newAttr(Attr{Mode: 0o644, Show: func() string {
		return fmt.Sprintf("RTC_NAME=%s\n", dev.Name)
	}}))
	dir.addChild("name", newAttr(Attr{Mode: attrMode, Show: func() string { return dev.Name + "\n" }}))
	dir.addChild("date", newAttr(Attr{Mode: attrMode, Show: func() string {
		y, m, d, _, _, _ := dev.Now()
		return fmt.Sprintf("%04d-%02d-%02d\n", y, m, d)
	}}))
	dir.addChild("time", newAttr(Attr{Mode: attrMode, Show: func() string {
		_, _, _, h, mi, s := dev.Now()
		return fmt.Sprintf("%02d:%02d:%02d\n", h, mi, s)
	}}))
	return dir
}

func buildInputDeviceDir(dev InputDeviceInfo) *Inode {
	dir := newDir(dirMode)
	dir.addChild("uevent", newAttr(Attr{Mode: 0o644, Show: func() string {
		return fmt.Sprintf("NAME=%s\n", dev.Name)
	}}))
	dir.addChild("name", newAttr(Attr{Mode: attrMode, Show: func() string { return dev.Name + "\n" }}))
	return dir
}

func (f *FS) FSType() string       { return "sysfs" }
func (f *FS) RootInode() vfs.Inode { return f.root }
func (f *FS) Sync() kerr.Errno     { return kerr.ENone }
func (f *FS) Umount() kerr.Errno   { return f.Sync() }

func (f *FS) StatFS() (vfs.StatFs, kerr.Errno) {
	return vfs.StatFs{BlockSize: 4096, MaxFilenameLen: 255}, kerr.ENone
}

var _ vfs.FileSystem = (*FS)(nil)
