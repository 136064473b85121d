package boot

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nyx-os/nyx/archops"
	"github.com/nyx-os/nyx/fs/tmpfs"
	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/klog"
	"github.com/nyx-os/nyx/mem"
	"github.com/nyx-os/nyx/memspace"
	"github.com/nyx-os/nyx/pagetable"
	"github.com/nyx-os/nyx/sched"
	"github.com/nyx-os/nyx/task"
	"github.com/nyx-os/nyx/vfs"
)

// initEntry/shellEntry are the program counters init and the
// competition-mode test runner resume at. No ELF decoder ships in the
// retrieval pack (see the ext4fs.FS doc for the same gap), so
// Boot cannot load a real binary image; it hands Exec a placeholder
// entry and relies on whatever arch-specific loader a real boot wires
// in later to replace these with an actual parsed entry point.
const (
	initEntry  = 0x1000
	shellEntry = 0x1000
)

// kstackSize is the size of a task's kernel stack; arbitrary but fixed,
// mirroring the original's per-proc kernel stack allocation.
const kstackSize = 16 * 1024

// timeoutExitCode is the exit status recorded for a competition test
// script killed for exceeding its wall-clock budget, following the
// timeout(1) convention (128 + SIGKILL).
const timeoutExitCode = 137

// Kernel is the fully composed set of live subsystems Boot hands back:
// the task registry, the scheduler, the frame allocator backing every
// address space, and the mounted VFS. Callers needing to drive the
// system further (a syscall dispatcher, a shell) work from this.
type Kernel struct {
	Tasks  *task.Manager
	Sched  *sched.Scheduler
	Frames *mem.FrameAllocator

	VFSCache   *vfs.Cache
	Mounts     *vfs.MountTable
	Walker     *vfs.Walker
	rootFS     vfs.FileSystem
	rootDentry *vfs.Dentry

	Init     *task.Task
	Idle     []*task.Task
	Kthreadd *task.Task

	Competition bool
	TestTimeout time.Duration

	runsMu sync.Mutex
	Runs   []TestRun
}

// TestRun records the outcome of one competition-mode test script.
type TestRun struct {
	Script    string
	Task      *task.Task
	TimedOut  bool
	ExitCode  int
}

// Boot runs the kernel's full device-tree bring-up from a raw FDT
// blob (phase 1, then phase 2 driver probing) and then composes the
// rest of the kernel on top of it: frame allocator, tid=1 init, one
// idle task per reported CPU, kthreadd, the mounted root filesystem,
// and finally either an exec into /sbin/init or, in competition mode,
// a timed loop over every *_testcode.sh script under /tests.
func Boot(ctx context.Context, blob []byte, reg *Registry) (*Result, error) {
	early, err := ParsePhase1(blob)
	if err != nil {
		return nil, err
	}

	root, err := Parse(blob)
	if err != nil {
		return nil, err
	}

	klog.Infof("boot: %d CPU(s), clock %d Hz", early.NumCPUs, early.ClockFreqHz)
	for _, r := range early.MemoryRegions {
		klog.Infof("boot: memory region start=%#x size=%#x", r.Start, r.Size)
	}

	cmdline := ""
	if chosen := findChild(root, "chosen"); chosen != nil {
		if v, ok := chosen.Property("bootargs"); ok {
			cmdline = string(trimNUL(v))
		}
	}
	if cmdline != "" {
		klog.Infof("boot: cmdline %q", cmdline)
	}
	args := ParseBootArgs(cmdline)

	result := &Result{Early: early, Cmdline: cmdline, Args: args}
	if err := RunPhase2(ctx, root, reg); err != nil {
		return result, err
	}

	k, err := composeKernel(early, args)
	if err != nil {
		return result, err
	}
	result.Kernel = k

	if k.Competition {
		k.runCompetition(ctx)
	} else {
		k.execInit()
	}

	return result, nil
}

// composeKernel builds every in-memory subsystem Boot is responsible
// for, short of actually running anything: the physical frame space,
// tid=1 init, the idle tasks, kthreadd, and the mounted root.
func composeKernel(early *EarlyInfo, args map[string]string) (*Kernel, error) {
	k := &Kernel{
		Tasks:    task.NewManager(),
		VFSCache: vfs.NewCache(),
		Mounts:   vfs.NewMountTable(),
	}

	start, size, ok := early.DRAMInfo()
	if !ok {
		start, size = 0, 64*1024*1024
	}
	pageSize := uint64(mem.PageSize)
	k.Frames = mem.NewFrameAllocator(mem.PPN(start/pageSize), mem.PPN((start+size)/pageSize))

	numCPUs := early.NumCPUs
	if numCPUs < 1 {
		numCPUs = 1
	}
	k.Sched = sched.NewScheduler(numCPUs, nil)

	k.Init = task.New(1, 1, 0, 1)
	k.Init.Name = "init"
	k.Init.Fs = &task.FsStruct{Cwd: "/", Root: "/"}
	k.Init.Signals = task.NewSignalState()
	k.Init.UTS = &task.UTSNamespace{Sysname: "nyx", Release: "0.1", Machine: "riscv64"}
	k.Init.Limits = task.NewRlimits()
	k.Init.Space = newKernelSpace(k.Frames)
	k.Tasks.Register(k.Init)

	for cpu := 0; cpu < numCPUs; cpu++ {
		idle := k.Tasks.KthreadSpawn("idle/"+strconv.Itoa(cpu), 0, 0, 0, make([]byte, kstackSize))
		idle.SetOnCPU(cpu)
		k.Idle = append(k.Idle, idle)
	}
	klog.Infof("boot: spawned init (tid=1) and %d idle task(s)", len(k.Idle))

	k.Kthreadd = k.Sched.SpawnKthread(k.Tasks, "kthreadd", 0, 0, 0, make([]byte, kstackSize))
	klog.Infof("boot: spawned kthreadd (tid=%d)", k.Kthreadd.TID)

	if err := k.mountRoot(args); err != nil {
		return k, err
	}

	if timeout, ok := competitionTimeout(args); ok {
		k.Competition = true
		k.TestTimeout = timeout
	}

	return k, nil
}

// newKernelSpace builds the page table and address space init's (and
// every forked descendant's, by CloneForFork) kernel mappings live in.
// SoftTable stands in for a real arch page table, exactly as
// memspace's own tests use it, since no riscv64/loongarch64 table
// implementation ships in this pack.
func newKernelSpace(frames *mem.FrameAllocator) *memspace.MemorySpace {
	tbl := pagetable.NewSoftTable(nil)
	return memspace.New(tbl, frames, tbl.NewBatch)
}

// competitionTimeout reports the per-test wall-clock budget from the
// oscomp.test_timeout/oscomp.timeout bootarg (whole seconds; 0 or an
// unparsable value disables the budget), and whether either key was
// present at all.
func competitionTimeout(args map[string]string) (time.Duration, bool) {
	raw, ok := args["oscomp.test_timeout"]
	if !ok {
		raw, ok = args["oscomp.timeout"]
	}
	if !ok {
		return 0, false
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return 0, true
	}
	return time.Duration(secs) * time.Second, true
}

// mountRoot mounts the kernel's root filesystem. No concrete Device
// (virtio block or otherwise) is ever supplied by anything in this
// tree — the one real Device implementation, cmd/nyx-mkfs's
// fileDevice, lives in a separate host-tool binary — so the root is
// always the in-memory tmpfs tree ext4fs.FS itself stages writes
// through today. In competition mode a second tmpfs is mounted at
// /tests standing in for the probed test disk.
func (k *Kernel) mountRoot(args map[string]string) error {
	rootFS := tmpfs.New(0)
	rootDentry := vfs.NewDentry("", rootFS.RootInode())
	k.VFSCache.Insert(rootDentry)
	k.Mounts.Mount("/", rootFS, rootDentry)
	k.rootFS = rootFS
	k.rootDentry = rootDentry
	k.Walker = vfs.NewWalker(k.VFSCache, k.Mounts, func() *vfs.Dentry { return rootDentry }, func() *vfs.Dentry { return rootDentry })

	if _, ok := competitionTimeout(args); ok {
		testFS := tmpfs.New(0)
		testDentry := vfs.NewDentry("tests", testFS.RootInode())
		k.Mounts.Mount("/tests", testFS, testDentry)
		klog.Infof("boot: competition mode, mounted test disk at /tests")
	}
	return nil
}

// execInit replaces init's address space with a freshly built one and
// execs /sbin/init, argv exactly ["/sbin/init"], per normal-mode boot.
// If no arch has registered MM config yet (archops.MMConfigRegistered
// reports false — the case for every boot in this tree today, since no
// riscv64/loongarch64 arch backend ships in the retrieval pack), init
// is left constructed but not exec'd rather than panicking on the
// unregistered archops cell.
func (k *Kernel) execInit() {
	if !archops.MMConfigRegistered() {
		klog.Warnf("boot: no arch MM config registered, leaving init unexec'd")
		return
	}
	space := newKernelSpace(k.Frames)
	if err := k.Init.Exec(space, initEntry, []string{"/sbin/init"}, []string{"HOME=/", "TERM=linux"}); err != kerr.ENone {
		klog.Errf("boot: exec /sbin/init failed: %v", err)
		return
	}
	k.Sched.SpawnChild(k.Init)
	klog.Infof("boot: exec'd /sbin/init")
}

// runCompetition discovers every *_testcode.sh script under /tests
// (directly or one level deep, per the competition harness's own
// layout), forks+execs each in turn via the shell, and dispatches one
// background waiter per script that enforces TestTimeout with a
// no-wait wait4 loop: a wait queue the real reaper wakes on the
// child's actual exit, raced against a timer-wheel deadline that force
// -exits the child if it fires first. Boot itself never blocks on
// these waiters — composing the kernel and handing it back to the
// caller does not wait for init's test run to finish, exactly as a
// real start_kernel hands off to the scheduler instead of supervising
// it. Results land in k.Runs, guarded by k.runsMu, as each waiter
// completes.
func (k *Kernel) runCompetition(ctx context.Context) {
	scripts := k.findTestScripts()
	klog.Infof("boot: competition mode, %d test script(s) found under /tests", len(scripts))
	if len(scripts) == 0 {
		return
	}

	wheel := sched.NewTimerWheel()
	go driveTimerWheel(ctx, wheel)

	for _, script := range scripts {
		select {
		case <-ctx.Done():
			return
		default:
		}
		k.dispatchTest(wheel, script)
	}
}

// driveTimerWheel ticks wheel periodically until ctx is done, standing
// in for the timer-interrupt handler that would drive it on real
// hardware; nyx runs hosted, so a ticker goroutine plays that role.
func driveTimerWheel(ctx context.Context, wheel *sched.TimerWheel) {
	ticker := time.NewTicker(timerWheelTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			wheel.Tick(now)
		}
	}
}

// timerWheelTick is the driver goroutine's poll interval; small enough
// that a test_timeout deadline fires promptly without busy-spinning.
const timerWheelTick = 10 * time.Millisecond

// dispatchTest forks+execs one script and starts its waiter on a
// separate goroutine; nyx is a hosted Go process, so "starting a
// waiter" is spawning a goroutine rather than arming a real interrupt,
// matching WaitQueue.SleepWithBlock's own hosted-suspension note.
func (k *Kernel) dispatchTest(wheel *sched.TimerWheel, script string) {
	if !archops.MMConfigRegistered() {
		klog.Warnf("boot: no arch MM config registered, skipping %s", script)
		k.recordRun(TestRun{Script: script, ExitCode: -1})
		return
	}
	space := newKernelSpace(k.Frames)
	childTable := pagetable.NewSoftTable(nil)
	child, err := k.Sched.ForkChild(k.Tasks, k.Init, childTable, childTable.NewBatch, make([]byte, kstackSize))
	if err != kerr.ENone {
		klog.Errf("boot: fork for %s failed: %v", script, err)
		k.recordRun(TestRun{Script: script, ExitCode: -1})
		return
	}
	if err := child.Exec(space, shellEntry, []string{"/bin/sh", script}, nil); err != kerr.ENone {
		klog.Errf("boot: exec for %s failed: %v", script, err)
		k.recordRun(TestRun{Script: script, Task: child, ExitCode: -1})
		return
	}

	// wq has no other waker wired up yet: nothing in this tree reaps a
	// task's real completion and calls wq.WakeOne/WakeAll for it (there
	// is no instruction-level executor here, only the task/sched
	// bookkeeping), so in practice every dispatched test currently
	// resolves via the timer-wheel deadline below rather than an early
	// wake. The queue is still real infrastructure: a future reaper
	// (wired into Task.Exit or a wait4 syscall handler) only needs to
	// call wq.WakeOne(sched.WokeNormally) to finish a run early.
	wq := sched.NewWaitQueue()
	deadline, hasDeadline := timeoutDeadline(k.TestTimeout)

	go func() {
		var reason sched.WakeReason
		if hasDeadline {
			reason = wheel.SleepUntil(wq, child, true, deadline)
		} else {
			reason = wq.SleepWithBlock(child, true)
		}

		run := TestRun{Script: script, Task: child}
		if reason == sched.WokeTimeout {
			child.Exit(timeoutExitCode)
			run.TimedOut = true
			run.ExitCode = timeoutExitCode
		} else {
			run.ExitCode = child.ExitCode()
		}
		k.Tasks.Remove(child.TID)
		k.recordRun(run)
		klog.Infof("boot: %s exited code=%d timedOut=%v", run.Script, run.ExitCode, run.TimedOut)
	}()
}

func (k *Kernel) recordRun(run TestRun) {
	k.runsMu.Lock()
	defer k.runsMu.Unlock()
	k.Runs = append(k.Runs, run)
}

// RunsSnapshot returns a copy of the competition runs recorded so far;
// safe to call while dispatchTest's background waiters are still
// landing results.
func (k *Kernel) RunsSnapshot() []TestRun {
	k.runsMu.Lock()
	defer k.runsMu.Unlock()
	out := make([]TestRun, len(k.Runs))
	copy(out, k.Runs)
	return out
}

// timeoutDeadline reports the wall-clock instant a dispatched test
// script must be killed by, and whether one applies at all (a
// test_timeout of 0 means "disables", per the bootarg's documented
// meaning).
func timeoutDeadline(d time.Duration) (time.Time, bool) {
	if d <= 0 {
		return time.Time{}, false
	}
	return bootClock().Add(d), true
}

// bootClock is a seam over time.Now so a test can swap in a fixed
// clock rather than racing a real wall-clock deadline.
var bootClock = time.Now

// findTestScripts walks /tests (directly, then one level into each
// subdirectory) for entries named *_testcode.sh, matching the
// competition harness's own "flat or one level deep" layout.
func (k *Kernel) findTestScripts() []string {
	m, ok := k.Mounts.FindMount("/tests")
	if !ok {
		return nil
	}
	root := m.FS.RootInode()
	var out []string
	entries, err := root.Readdir()
	if err != kerr.ENone {
		return nil
	}
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		if e.InodeType == vfs.TypeDirectory {
			child, err := root.Lookup(e.Name)
			if err != kerr.ENone {
				continue
			}
			sub, err := child.Readdir()
			if err != kerr.ENone {
				continue
			}
			for _, se := range sub {
				if se.Name == "." || se.Name == ".." {
					continue
				}
				if isTestScript(se.Name) {
					out = append(out, "/tests/"+e.Name+"/"+se.Name)
				}
			}
			continue
		}
		if isTestScript(e.Name) {
			out = append(out, "/tests/"+e.Name)
		}
	}
	return out
}

func isTestScript(name string) bool {
	return strings.HasSuffix(name, "_testcode.sh")
}
