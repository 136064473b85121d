// Package sched implements the per-CPU scheduler and wait queues:
// cooperative suspend points, IPI-driven remote wake, sleeping/wakeup,
// and fork's pick_cpu placement. Locking follows a fixed hierarchy
// (task manager > wait queue > scheduler > task instance > task
// internal fields) — Scheduler and WaitQueue each carry their own
// mutex and never call into each other while holding it.
package sched

import (
	"sync"

	"github.com/nyx-os/nyx/task"
)

// RunQueue is the FIFO of runnable tasks owned by one CPU.
type RunQueue struct {
	mu    sync.Mutex
	tasks []*task.Task
}

// NewRunQueue returns an empty runqueue.
func NewRunQueue() *RunQueue { return &RunQueue{} }

// Enqueue places t at the tail of the runqueue.
func (q *RunQueue) Enqueue(t *task.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t)
}

// Dequeue removes and returns the head of the runqueue, or nil if empty.
func (q *RunQueue) Dequeue() *task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return nil
	}
	t := q.tasks[0]
	q.tasks = q.tasks[1:]
	return t
}

// Len reports the number of runnable tasks queued.
func (q *RunQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// IPISender abstracts sending a reschedule IPI to a remote CPU
// (arch-specific; wired through archops.MM.SendTLBFlushIPIAll's sibling
// for reschedule in a real boot, a plain function here so Scheduler
// stays arch-agnostic and unit-testable).
type IPISender func(cpu int)

// Scheduler owns one RunQueue per CPU and implements pick_cpu,
// wake-with-migration, and fork placement.
type Scheduler struct {
	mu        sync.Mutex
	runqueues []*RunQueue
	nextPick  int
	sendIPI   IPISender
}

// NewScheduler constructs a scheduler over numCPUs runqueues.
func NewScheduler(numCPUs int, ipi IPISender) *Scheduler {
	s := &Scheduler{sendIPI: ipi}
	for i := 0; i < numCPUs; i++ {
		s.runqueues = append(s.runqueues, NewRunQueue())
	}
	return s
}

// PickCPU chooses a CPU round-robin over online CPUs. A forked child is
// enqueued on the chosen CPU before the parent returns from fork.
func (s *Scheduler) PickCPU() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cpu := s.nextPick
	s.nextPick = (s.nextPick + 1) % len(s.runqueues)
	return cpu
}

// EnqueueOn places t on cpu's runqueue and records the binding.
func (s *Scheduler) EnqueueOn(cpu int, t *task.Task) {
	t.SetOnCPU(cpu)
	s.runqueues[cpu].Enqueue(t)
}

// SpawnChild places a freshly forked child per pick_cpu and returns the
// chosen CPU.
func (s *Scheduler) SpawnChild(t *task.Task) int {
	cpu := s.PickCPU()
	s.EnqueueOn(cpu, t)
	return cpu
}

// Wake flips a sleeping task's state to Running and inserts it at the
// tail of its owning CPU's runqueue. If that CPU differs from
// currentCPU, a reschedule IPI is sent.
func (s *Scheduler) Wake(currentCPU int, t *task.Task) {
	t.SetState(task.Running)
	cpu := t.OnCPU()
	if cpu < 0 {
		cpu = s.PickCPU()
	}
	s.runqueues[cpu].Enqueue(t)
	if cpu != currentCPU && s.sendIPI != nil {
		s.sendIPI(cpu)
	}
}

// RunQueueFor returns the runqueue owned by cpu.
func (s *Scheduler) RunQueueFor(cpu int) *RunQueue { return s.runqueues[cpu] }

// Yield moves the current task to the tail of its own CPU's runqueue and
// returns the next task to run (or nil if none, meaning the idle task
// should run). This is the scheduler's explicit cooperative suspend
// point.
func (s *Scheduler) Yield(cpu int, current *task.Task) *task.Task {
	if current != nil {
		s.runqueues[cpu].Enqueue(current)
	}
	return s.runqueues[cpu].Dequeue()
}
