package sched

import (
	"sync"

	"github.com/nyx-os/nyx/task"
)

// WakeReason records why a sleeper was woken, so the blocking syscall
// that called SleepWithBlock can decide between returning data, -EINTR,
// or restarting the syscall.
type WakeReason int

const (
	WokeNormally WakeReason = iota
	WokeTimeout
	WokeSignal
)

// WaitQueue is a FIFO of tasks sleeping on a common condition. Ordering
// guarantee: the task last to enter is the last woken by WakeAll;
// WakeOne wakes the queue's head.
type WaitQueue struct {
	mu      sync.Mutex
	waiters []*waiter
}

type waiter struct {
	t    *task.Task
	done chan WakeReason
	woken bool
}

// NewWaitQueue returns an empty wait queue.
func NewWaitQueue() *WaitQueue { return &WaitQueue{} }

// SleepWithBlock enqueues t on the wait queue, transitions it to the
// given interruptible/uninterruptible state, and parks the calling
// goroutine until some goroutine calls one of WakeOne/WakeAll/
// CancelForSignal for this waiter. nyx runs as a hosted Go process
// rather than a bare-metal scheduler driving its own stacks, so the
// suspension is a channel receive here instead of a hand-rolled
// context switch; the observable state transitions (Running ->
// Interruptible/Uninterruptible -> Running) are the same either way.
func (q *WaitQueue) SleepWithBlock(t *task.Task, interruptible bool) WakeReason {
	if interruptible {
		t.SetState(task.Interruptible)
	} else {
		t.SetState(task.Uninterruptible)
	}
	w := &waiter{t: t, done: make(chan WakeReason, 1)}
	q.mu.Lock()
	q.waiters = append(q.waiters, w)
	q.mu.Unlock()

	reason := <-w.done
	t.SetState(task.Running)
	return reason
}

// WakeOne wakes the queue's head, if any, returning it (or nil).
func (q *WaitQueue) WakeOne(reason WakeReason) *task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, w := range q.waiters {
		if w.woken {
			continue
		}
		w.woken = true
		q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
		w.done <- reason
		return w.t
	}
	return nil
}

// WakeAll wakes every waiter in FIFO order (the last to enter is the
// last woken).
func (q *WaitQueue) WakeAll(reason WakeReason) []*task.Task {
	q.mu.Lock()
	ws := q.waiters
	q.waiters = nil
	q.mu.Unlock()

	out := make([]*task.Task, 0, len(ws))
	for _, w := range ws {
		w.woken = true
		w.done <- reason
		out = append(out, w.t)
	}
	return out
}

// Len reports the number of tasks currently sleeping on this queue.
func (q *WaitQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiters)
}

// CancelForSignal wakes t specifically because a pending, unblocked
// signal arrived while it slept Interruptible. It is a no-op if t is
// not currently queued; callers are expected to only invoke this for
// tasks sleeping Interruptible, never Uninterruptible.
func (q *WaitQueue) CancelForSignal(t *task.Task) bool {
	return q.CancelForSignalWithReason(t, WokeSignal)
}

// CancelForSignalWithReason is CancelForSignal generalized to any
// WakeReason; the timer wheel uses it to report WokeTimeout for a
// sleeper whose deadline elapsed.
func (q *WaitQueue) CancelForSignalWithReason(t *task.Task, reason WakeReason) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, w := range q.waiters {
		if w.t == t && !w.woken {
			w.woken = true
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			w.done <- reason
			return true
		}
	}
	return false
}
