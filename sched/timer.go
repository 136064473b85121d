package sched

import (
	"container/heap"
	"sync"
	"time"

	"github.com/nyx-os/nyx/task"
)

// TimerWheel orders pending deadlines (sleep(2)/nanosleep, wait_until,
// and futex/condvar timeouts) so a single driver goroutine can fire
// them in deadline order without per-sleeper polling.
type TimerWheel struct {
	mu   sync.Mutex
	heap deadlineHeap
	seq  uint64
}

type deadline struct {
	at    time.Time
	seq   uint64 // tie-breaker so equal deadlines fire FIFO
	fire  func()
	index int
}

type deadlineHeap []*deadline

func (h deadlineHeap) Len() int { return len(h) }
func (h deadlineHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}
func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *deadlineHeap) Push(x any) {
	d := x.(*deadline)
	d.index = len(*h)
	*h = append(*h, d)
}
func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	d := old[n-1]
	old[n-1] = nil
	d.index = -1
	*h = old[:n-1]
	return d
}

// NewTimerWheel returns an empty wheel.
func NewTimerWheel() *TimerWheel { return &TimerWheel{} }

// timerHandle lets a caller cancel a scheduled deadline before it fires
// (used when a sleeper is woken for some other reason, e.g. a signal,
// before its timeout elapses).
type timerHandle struct {
	w *TimerWheel
	d *deadline
}

// Cancel removes the deadline if it has not already fired. Safe to call
// more than once.
func (h *timerHandle) Cancel() {
	h.w.mu.Lock()
	defer h.w.mu.Unlock()
	if h.d.index >= 0 && h.d.index < len(h.w.heap) && h.w.heap[h.d.index] == h.d {
		heap.Remove(&h.w.heap, h.d.index)
	}
}

// schedule arranges for fire to be invoked once the wheel's driver
// processes a tick at or after at.
func (w *TimerWheel) schedule(at time.Time, fire func()) *timerHandle {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	d := &deadline{at: at, seq: w.seq, fire: fire}
	heap.Push(&w.heap, d)
	return &timerHandle{w: w, d: d}
}

// Tick fires every deadline at or before now and removes it from the
// wheel. Callers drive a TimerWheel by calling Tick periodically (or
// driven by a single timer goroutine sleeping until NextDeadline).
func (w *TimerWheel) Tick(now time.Time) {
	for {
		w.mu.Lock()
		if len(w.heap) == 0 || w.heap[0].at.After(now) {
			w.mu.Unlock()
			return
		}
		d := heap.Pop(&w.heap).(*deadline)
		w.mu.Unlock()
		d.fire()
	}
}

// NextDeadline returns the earliest pending deadline and true, or the
// zero time and false if the wheel is empty.
func (w *TimerWheel) NextDeadline() (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.heap) == 0 {
		return time.Time{}, false
	}
	return w.heap[0].at, true
}

// SleepUntil blocks t on q until deadline or until some other waker
// (WakeOne/WakeAll/CancelForSignal) fires first, whichever comes first.
// It reports WokeTimeout if the deadline elapsed, or the reason passed
// to whichever wake call fired instead.
func (w *TimerWheel) SleepUntil(q *WaitQueue, t *task.Task, interruptible bool, deadline time.Time) WakeReason {
	handle := w.schedule(deadline, func() { q.CancelForSignalWithReason(t, WokeTimeout) })
	reason := q.SleepWithBlock(t, interruptible)
	handle.Cancel()
	return reason
}
