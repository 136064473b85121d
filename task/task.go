// Package task models the Task control block and its fork/kthread/init
// lifecycle. A Task's substructures are independently owned so fork can
// decide, per substructure, whether to share the handle or clone the
// contents — a generalization of biscuit's per-task info/accounting
// split (biscuit/src/tinfo, biscuit/src/accnt) into an explicit
// shared-or-owned model per field.
package task

import (
	"sync"
	"sync/atomic"

	"github.com/nyx-os/nyx/memspace"
)

// State is one of the five lifecycle states a task can be in.
type State int

const (
	Running State = iota
	Interruptible
	Uninterruptible
	Stopped
	Zombie
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Interruptible:
		return "interruptible"
	case Uninterruptible:
		return "uninterruptible"
	case Stopped:
		return "stopped"
	case Zombie:
		return "zombie"
	default:
		return "unknown"
	}
}

// Context holds the callee-saved register block swapped on context
// switch. Fields are arch-opaque by design: generic code never
// interprets them, only swaps them.
type Context struct {
	SP   uintptr
	Regs [12]uintptr
}

// TrapFrame is the exclusive, RAII-owned per-task trap frame.
type TrapFrame struct {
	PC, SP uintptr
	Regs   [31]uintptr
}

// FsStruct is the shared filesystem view (cwd, root), clonable or
// shareable per clone(2) flags.
type FsStruct struct {
	mu   sync.Mutex
	Cwd  string
	Root string
}

// Clone returns a content copy (fork without CLONE_FS).
func (f *FsStruct) Clone() *FsStruct {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &FsStruct{Cwd: f.Cwd, Root: f.Root}
}

// UTSNamespace holds the uname(2) fields.
type UTSNamespace struct {
	Sysname, Nodename, Release, Version, Machine string
}

// Clone returns a content copy.
func (u *UTSNamespace) Clone() *UTSNamespace {
	c := *u
	return &c
}

// Rlimits holds resource limits (RLIMIT_*), keyed by resource number.
type Rlimits struct {
	mu     sync.Mutex
	limits map[int]uint64
}

// NewRlimits returns an empty limit set.
func NewRlimits() *Rlimits { return &Rlimits{limits: make(map[int]uint64)} }

// Clone returns a content copy.
func (r *Rlimits) Clone() *Rlimits {
	r.mu.Lock()
	defer r.mu.Unlock()
	nr := NewRlimits()
	for k, v := range r.limits {
		nr.limits[k] = v
	}
	return nr
}

// Set stores limit for resource.
func (r *Rlimits) Set(resource int, limit uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limits[resource] = limit
}

// Get returns the limit for resource and whether one was set.
func (r *Rlimits) Get(resource int) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.limits[resource]
	return v, ok
}

// SignalState is the per-task signal bookkeeping; full delivery logic
// lives in package signal to avoid an import cycle (signal needs to see
// tasks; tasks only need to carry the state). Lock/Unlock are exported
// so package signal can guard its own multi-field updates against this
// same mutex rather than duplicating one.
type SignalState struct {
	mu       sync.Mutex
	Pending  uint64
	Blocked  uint64
	Handlers map[int]uintptr // signum -> handler address; 0 = SIG_DFL, ^uintptr(0) = SIG_IGN
}

// Lock acquires the state's mutex.
func (s *SignalState) Lock() { s.mu.Lock() }

// Unlock releases the state's mutex.
func (s *SignalState) Unlock() { s.mu.Unlock() }

// NewSignalState returns an empty signal state.
func NewSignalState() *SignalState {
	return &SignalState{Handlers: make(map[int]uintptr)}
}

// Clone returns a fresh signal state inheriting the blocked mask and
// handler table but with no pending signals (fork semantics).
func (s *SignalState) Clone() *SignalState {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns := NewSignalState()
	ns.Blocked = s.Blocked
	for k, v := range s.Handlers {
		ns.Handlers[k] = v
	}
	return ns
}

// Task is the kernel's process/thread control block.
type Task struct {
	TID  int
	PID  int
	PPID int
	PGID int
	Name string

	mu       sync.Mutex
	state    State
	exitCode int

	KernelStack []byte
	TrapFrame   *TrapFrame
	SavedCtx    Context

	Space *memspace.MemorySpace // nil for kernel threads

	Fds     FdTableRef
	Fs      *FsStruct
	Signals *SignalState
	UTS     *UTSNamespace
	Limits  *Rlimits

	onCPU atomic.Int64 // -1 if not scheduled anywhere
}

// FdTableRef is the minimal contract Task needs from a process's file
// descriptor table; vfs.FDTable satisfies it. Declared here (rather than
// importing package vfs) to avoid a task<->vfs import cycle, since vfs's
// procfs generators need to enumerate tasks.
type FdTableRef interface {
	CloseOnExec()
	Clone() FdTableRef
	// Release drains and closes every open descriptor; called once on
	// process teardown so the table doesn't merely get dropped with
	// its Files still open.
	Release()
}

// New constructs a Task in the Running state with no CPU binding yet.
func New(tid, pid, ppid, pgid int) *Task {
	t := &Task{TID: tid, PID: pid, PPID: ppid, PGID: pgid, state: Running}
	t.onCPU.Store(-1)
	return t
}

// State returns the task's current state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetState transitions the task to s.
func (t *Task) SetState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

// ExitCode returns the exit code recorded by Exit; only meaningful once
// State() == Zombie.
func (t *Task) ExitCode() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exitCode
}

// Exit transitions the task to Zombie, drains its fd table, and drops
// its memory space. The exit code is kept on the dead task handle until
// the parent reaps it (see SPEC_FULL.md's decisions on open questions for the reaping model).
func (t *Task) Exit(code int) {
	t.mu.Lock()
	t.state = Zombie
	t.exitCode = code
	t.mu.Unlock()
	if t.Fds != nil {
		t.Fds.Release()
	}
	if t.Space != nil {
		t.Space.Destroy()
		t.Space = nil
	}
}

// OnCPU returns the CPU id owning this task's runqueue slot, or -1 if
// none.
func (t *Task) OnCPU() int { return int(t.onCPU.Load()) }

// SetOnCPU records which CPU's runqueue owns this task.
func (t *Task) SetOnCPU(cpu int) { t.onCPU.Store(int64(cpu)) }
