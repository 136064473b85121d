package task

import (
	"sync"

	"github.com/nyx-os/nyx/archops"
	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/mem"
	"github.com/nyx-os/nyx/memspace"
	"github.com/nyx-os/nyx/pagetable"
)

// Manager is the global TID registry: every live task, fresh TID
// allocation, and the lookups wait4/kill/procfs need by TID. tid=1 is
// reserved for init and is registered directly by the caller that
// constructs it (NewManager's allocator never issues it).
type Manager struct {
	mu    sync.RWMutex
	tasks map[int]*Task
	tids  *TIDAllocator
}

// NewManager returns an empty task registry.
func NewManager() *Manager {
	return &Manager{tasks: make(map[int]*Task), tids: NewTIDAllocator()}
}

// Register adds t to the registry, keyed by its TID.
func (m *Manager) Register(t *Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.TID] = t
}

// Lookup returns the task with the given TID, if any.
func (m *Manager) Lookup(tid int) (*Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[tid]
	return t, ok
}

// Remove drops tid from the registry (called once its parent reaps it).
func (m *Manager) Remove(tid int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, tid)
}

// All returns every registered task, in no particular order.
func (m *Manager) All() []*Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	return out
}

// Children returns every registered task whose PPID is parent.
func (m *Manager) Children(parent int) []*Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Task
	for _, t := range m.tasks {
		if t.PPID == parent {
			out = append(out, t)
		}
	}
	return out
}

func (m *Manager) allocTID() int { return m.tids.Alloc() }

// Fork builds a child of parent: a COW-less eager copy of parent's user
// address space (memspace.CloneForFork), an independent trap frame
// copied from parent's, and per-clone() flag semantics on the shared
// substructures (fd table, fs view, signal state, uts, rlimits all get
// their own Clone()). childTable and childBatch are the freshly
// allocated page table and TLB-batch factory the caller built for the
// child; kstack is the child's kernel stack.
//
// The caller is responsible for zeroing the child's syscall return-value
// register in its TrapFrame per the arch calling convention — Fork only
// duplicates the parent's frame verbatim, since the register holding a
// syscall's return value is arch-specific.
func (m *Manager) Fork(parent *Task, childTable pagetable.Table, childBatch func() *pagetable.TLBBatch, kstack []byte) (*Task, kerr.Errno) {
	if parent.Space == nil {
		return nil, kerr.EInvalidArg
	}
	childSpace, err := parent.Space.CloneForFork(childTable, childBatch)
	if err != kerr.ENone {
		return nil, err
	}

	tid := m.allocTID()
	child := New(tid, tid, parent.PID, parent.PGID)
	child.Name = parent.Name
	child.Space = childSpace
	child.KernelStack = kstack

	if parent.TrapFrame != nil {
		tf := *parent.TrapFrame
		child.TrapFrame = &tf
	}
	if parent.Fds != nil {
		child.Fds = parent.Fds.Clone()
	}
	if parent.Fs != nil {
		child.Fs = parent.Fs.Clone()
	}
	if parent.Signals != nil {
		child.Signals = parent.Signals.Clone()
	}
	if parent.UTS != nil {
		child.UTS = parent.UTS.Clone()
	}
	if parent.Limits != nil {
		child.Limits = parent.Limits.Clone()
	}

	m.Register(child)
	return child, kerr.ENone
}

// KthreadSpawn constructs a kernel-only task: no user address space, no
// fd table, a trap frame that resumes at entry with arg in the arch's
// first argument register slot (Regs[0]). Used for kthreadd itself and
// every kernel worker it spawns, and for each CPU's idle task.
func (m *Manager) KthreadSpawn(name string, ppid int, entry uintptr, arg uintptr, kstack []byte) *Task {
	tid := m.allocTID()
	t := New(tid, tid, ppid, ppid)
	t.Name = name
	t.KernelStack = kstack
	t.TrapFrame = &TrapFrame{PC: entry}
	t.TrapFrame.Regs[0] = arg
	t.Fs = &FsStruct{Cwd: "/", Root: "/"}
	t.Signals = NewSignalState()
	t.UTS = &UTSNamespace{}
	t.Limits = NewRlimits()
	m.Register(t)
	return t
}

// execAuxEntry is one AT_* auxv pair (type, value).
type execAuxEntry struct {
	typ, val uintptr
}

const (
	atNull     = 0
	atPhdr     = 3
	atPhent    = 4
	atPhnum    = 5
	atPagesz   = 6
	atBase     = 7
	atEntry    = 9
	atUID      = 11
	atEUID     = 12
	atGID      = 13
	atEGID     = 14
	atSecure   = 23
	atRandom   = 25
	atSysinfo  = 32 // unused, reserved for a future vDSO mapping
	atSigretAT = 0x1000000
)

// Exec replaces t's address space with newSpace, which the caller has
// already populated with the program's text/rodata/data/bss segments
// (ELF loading is the loader's job, not task's). It assembles a fresh
// user stack below the arch's UserStackTop holding argv, envp, an auxv
// vector, and the two-word AT_NULL terminator, then points the trap
// frame at entry with the stack pointer left at the bottom of that
// block, matching the System V argv/envp/auxv layout a libc _start
// expects. The previous address space is torn down once the new one is
// fully wired in.
func (t *Task) Exec(newSpace *memspace.MemorySpace, entry uintptr, argv, envp []string) kerr.Errno {
	mmcfg := archops.MMConfigOps()
	sp, err := buildUserStack(newSpace, mmcfg, argv, envp)
	if err != kerr.ENone {
		return err
	}

	old := t.Space
	t.Space = newSpace
	t.TrapFrame = &TrapFrame{PC: entry, SP: sp}
	if t.Fds != nil {
		t.Fds.CloseOnExec()
	}
	if t.Signals != nil {
		t.Signals.Lock()
		t.Signals.Handlers = make(map[int]uintptr)
		t.Signals.Unlock()
	}
	if old != nil {
		old.Destroy()
	}
	return kerr.ENone
}

// buildUserStack maps a UserStack area immediately below UserStackTop
// and writes argv/envp/auxv into it in the same bottom-up order a real
// exec would: strings first (highest addresses), then the argv/envp/auxv
// pointer vectors, so the returned stack pointer can be handed straight
// to _start.
func buildUserStack(space *memspace.MemorySpace, cfg archops.MMConfig, argv, envp []string) (uintptr, kerr.Errno) {
	pageSize := cfg.PageSize()
	stackPages := cfg.UserStackSize() / pageSize
	if stackPages < 1 {
		stackPages = 1
	}
	top := mem.VPN(cfg.UserStackTop() / uintptr(pageSize))
	r := mem.PageNumRange[mem.VPN]{Start: top - mem.VPN(stackPages), End: top}

	area := memspace.NewMappingArea(r, memspace.UserStack, memspace.Framed,
		pagetable.Read|pagetable.Write|pagetable.User|pagetable.Valid)
	if err := space.InsertArea(area); err != kerr.ENone {
		return 0, err
	}

	// Work from the top of the stack region downward; cur tracks the
	// byte offset from the area's base VPN.
	base := uintptr(r.Start) * uintptr(pageSize)
	cur := uintptr(stackPages) * uintptr(pageSize)

	writeString := func(s string) uintptr {
		data := append([]byte(s), 0)
		cur -= uintptr(len(data))
		writeAt(space, base, cur, data)
		return base + cur
	}

	argvPtrs := make([]uintptr, len(argv))
	for i := len(argv) - 1; i >= 0; i-- {
		argvPtrs[i] = writeString(argv[i])
	}
	envpPtrs := make([]uintptr, len(envp))
	for i := len(envp) - 1; i >= 0; i-- {
		envpPtrs[i] = writeString(envp[i])
	}

	// A fixed 16-byte random seed for AT_RANDOM; not cryptographically
	// sourced since nothing downstream of this auxv entry depends on its
	// unpredictability within this kernel's threat model.
	cur -= 16
	cur &^= 0xf
	randomAddr := base + cur
	writeAt(space, base, cur, make([]byte, 16))

	sigret := archops.MMOps().SigreturnTrampolineBytes()
	cur -= uintptr(len(sigret))
	cur &^= 0xf
	sigretAddr := base + cur
	writeAt(space, base, cur, sigret)

	aux := []execAuxEntry{
		{atPagesz, uintptr(pageSize)},
		{atRandom, randomAddr},
		{atSigretAT, sigretAddr},
		{atSecure, 0},
		{atNull, 0},
	}

	// Lay out argc, argv[], NULL, envp[], NULL, auxv pairs as one flat
	// word array in the exact order _start expects at its initial SP,
	// then place that block so its first word lands 16-byte aligned —
	// the ABI's entry-point stack alignment requirement.
	var words []uintptr
	words = append(words, uintptr(len(argvPtrs)))
	words = append(words, argvPtrs...)
	words = append(words, 0)
	words = append(words, envpPtrs...)
	words = append(words, 0)
	for _, e := range aux {
		words = append(words, e.typ, e.val)
	}

	cur &^= 0xf // 16-align the top of the block before sizing it
	totalBytes := uintptr(len(words)) * 8
	if (cur-totalBytes)%16 != 0 {
		cur -= 8 // pad so the block's start stays 16-aligned
	}
	start := cur - totalBytes
	for i, w := range words {
		writeWord(space, base, start+uintptr(i*8), w)
	}

	return base + start, kerr.ENone
}

func writeAt(space *memspace.MemorySpace, base, offset uintptr, data []byte) {
	pageSize := mem.PageSize
	vpn := mem.VPN(base/uintptr(pageSize)) + mem.VPN(offset/uintptr(pageSize))
	space.WriteBytesAt(vpn, int(offset%uintptr(pageSize)), data)
}

func writeWord(space *memspace.MemorySpace, base, offset uintptr, v uintptr) {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	writeAt(space, base, offset, buf[:])
}
