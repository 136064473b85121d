package task

import "sync/atomic"

// CPU holds per-CPU scheduler state: the task whose trap frame is live,
// the idle task chosen when the runqueue is empty, and the last-active
// memory space identity used to skip redundant TLB reloads on a
// kernel-thread context switch. No locking is needed beyond preempt
// disable.
type CPU struct {
	ID int

	current *atomic.Pointer[Task]
	idle    *atomic.Pointer[Task]

	// lastSpace identifies the last address space activated on this
	// CPU, so a kernel-thread context switch that keeps the same space
	// can skip reactivating the page table. Identity only: CPU never
	// dereferences it.
	lastSpace atomic.Pointer[struct{}]

	preemptCount atomic.Int32
}

// NewCPU constructs per-CPU state for the given CPU id.
func NewCPU(id int) *CPU {
	return &CPU{
		ID:      id,
		current: &atomic.Pointer[Task]{},
		idle:    &atomic.Pointer[Task]{},
	}
}

// LastSpace returns the identity token of the last-activated address
// space, or nil if none has been recorded yet.
func (c *CPU) LastSpace() *struct{} { return c.lastSpace.Load() }

// SetLastSpace records the identity token of the address space just
// activated on this CPU.
func (c *CPU) SetLastSpace(token *struct{}) { c.lastSpace.Store(token) }

// Current returns the task whose trap frame is live on this CPU, or nil.
func (c *CPU) Current() *Task { return c.current.Load() }

// SetCurrent installs t as the live task (called by the context-switch
// path).
func (c *CPU) SetCurrent(t *Task) {
	c.current.Store(t)
	if t != nil {
		t.SetOnCPU(c.ID)
	}
}

// Idle returns the idle task for this CPU.
func (c *CPU) Idle() *Task { return c.idle.Load() }

// SetIdle installs the idle task, chosen once at boot.
func (c *CPU) SetIdle(t *Task) { c.idle.Store(t) }

// PreemptGuard is an RAII-style guard: while held (count > 0), the
// scheduler must neither migrate the current task to another CPU nor
// context-switch current_task away. Go has no destructors, so callers
// must call Release explicitly — typically via `defer`.
type PreemptGuard struct {
	cpu *CPU
}

// Acquire increments the per-CPU preempt-disable counter and returns a
// guard whose Release decrements it.
func (c *CPU) Acquire() *PreemptGuard {
	c.preemptCount.Add(1)
	return &PreemptGuard{cpu: c}
}

// Release decrements the counter. Calling Release more than once per
// Acquire is a bug and panics, mirroring biscuit's debug-assert style
// (e.g. biscuit/src/vm/as.go's Lockassert_pmap).
func (g *PreemptGuard) Release() {
	if g.cpu.preemptCount.Add(-1) < 0 {
		panic("task: PreemptGuard released more times than acquired")
	}
}

// PreemptDisabled reports whether this CPU currently holds at least one
// preempt guard.
func (c *CPU) PreemptDisabled() bool {
	return c.preemptCount.Load() > 0
}
