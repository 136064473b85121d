package signal

import (
	"encoding/binary"

	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/mem"
	"github.com/nyx-os/nyx/memspace"
	"github.com/nyx-os/nyx/task"
)

// Table wraps a task's SignalState with the operations rt_sigaction,
// rt_sigprocmask, kill, and the delivery check run on every trap return.
type Table struct {
	t *task.Task
}

// For returns a Table bound to t.
func For(t *task.Task) Table { return Table{t: t} }

// ignoreSentinel marks SIG_IGN in the handler table, which otherwise
// stores either a real handler address or nothing (SIG_DFL == 0).
const ignoreSentinel = ^uintptr(0)

// Raise sets n's bit in t's pending mask (the kill(2)/tgkill(2) path).
// A signal already pending is not queued twice: nyx, like Linux for
// standard (non-realtime) signals, coalesces repeats.
func (tb Table) Raise(n Num) {
	s := tb.t.Signals
	s.Lock()
	defer s.Unlock()
	s.Pending = SetBit(s.Pending, n)
}

// SigAction installs act for signal n and returns the previous action.
// Only Disposition and Handler round-trip through the task's handler
// table; act.Mask and act.Flags are discarded, since nyx's SignalState
// only tracks one blocked mask per task (no per-handler extra-block
// set), so delivery never applies them.
func (tb Table) SigAction(n Num, act Action) Action {
	s := tb.t.Signals
	s.Lock()
	defer s.Unlock()
	old := actionFor(s, n)
	switch act.Disposition {
	case DispHandler:
		s.Handlers[int(n)] = act.Handler
	case DispIgnore:
		s.Handlers[int(n)] = ignoreSentinel
	default:
		delete(s.Handlers, int(n))
	}
	return old
}

func actionFor(s *task.SignalState, n Num) Action {
	raw, ok := s.Handlers[int(n)]
	if !ok {
		return Action{Disposition: DispDefault}
	}
	if raw == ignoreSentinel {
		return Action{Disposition: DispIgnore}
	}
	return Action{Disposition: DispHandler, Handler: raw}
}

// MaskHow selects one of rt_sigprocmask's three modes.
type MaskHow int

const (
	Block MaskHow = iota
	Unblock
	SetMask
)

// SigProcMask implements rt_sigprocmask against t's blocked mask,
// returning the mask as it was before the call. hasSet=false is the
// "query only" form (set==nil at the syscall boundary).
func (tb Table) SigProcMask(how MaskHow, set uint64, hasSet bool) uint64 {
	s := tb.t.Signals
	s.Lock()
	defer s.Unlock()
	old := s.Blocked
	if !hasSet {
		return old
	}
	switch how {
	case Block:
		s.Blocked |= set
	case Unblock:
		s.Blocked &^= set
	case SetMask:
		s.Blocked = set
	}
	return old
}

// PendingDeliverable returns the lowest-numbered signal currently
// deliverable for t (pending, not blocked, or unblockable), or 0.
func (tb Table) PendingDeliverable() Num {
	s := tb.t.Signals
	s.Lock()
	defer s.Unlock()
	return Deliverable(s.Pending, s.Blocked)
}

// HasUnblockedPending reports whether t has at least one deliverable
// signal.
func (tb Table) HasUnblockedPending() bool {
	return tb.PendingDeliverable() != 0
}

// Frame is the machine-independent signal frame content: the trap frame
// and mask to restore on sigreturn. Register-layout specifics belong to
// arch-specific trap-return code; this struct stays arch-neutral.
type Frame struct {
	SavedTrapFrame task.TrapFrame
	SavedMask      uint64
	Signal         Num
	HandlerPC      uintptr
}

// sigreturnMagic identifies a constructed frame on the stack so a
// corrupted or forged sigreturn call can be detected.
const sigreturnMagic = 0x5349475f52455421

// BuildFrame consumes the lowest deliverable pending signal, captures
// the task's current trap frame and blocked mask into a Frame, reserves
// room for it below userSP (16-byte aligned), blocks the signal itself
// while the handler runs, and returns the frame plus the new stack
// pointer the trap-return path should install as SP before redirecting
// PC to act.Handler. Only a magic marker word is written to the user
// stack, at the new SP; the trap frame and mask are returned in the
// Frame, not stored in user memory.
func (tb Table) BuildFrame(space *memspace.MemorySpace, userSP uintptr, current task.TrapFrame) (Frame, uintptr, kerr.Errno) {
	s := tb.t.Signals
	s.Lock()
	n := Deliverable(s.Pending, s.Blocked)
	if n == 0 {
		s.Unlock()
		return Frame{}, 0, kerr.EInvalidArg
	}
	s.Pending = ClearBit(s.Pending, n)
	act := actionFor(s, n)
	savedMask := s.Blocked
	s.Blocked = SetBit(s.Blocked, n)
	s.Unlock()

	f := Frame{SavedTrapFrame: current, SavedMask: savedMask, Signal: n, HandlerPC: act.Handler}

	frameSize := uintptr(binary.Size(task.TrapFrame{})) + 16
	sp := (userSP - frameSize) &^ 0xf // 16-byte align, growing down

	if err := writeFrame(space, sp, f); err != kerr.ENone {
		return Frame{}, 0, err
	}
	return f, sp, kerr.ENone
}

func writeFrame(space *memspace.MemorySpace, sp uintptr, f Frame) kerr.Errno {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, sigreturnMagic)
	vpn := mem.VPN(sp / mem.PageSize)
	off := int(sp % mem.PageSize)
	return space.WriteBytesAt(vpn, off, buf)
}

// Restore reads back a previously written Frame's magic at sp and
// restores the blocked mask captured at delivery time, implementing
// the rt_sigreturn half of signal delivery. The original trap frame
// itself is restored by arch-specific trap-return code.
func (tb Table) Restore(space *memspace.MemorySpace, sp uintptr, savedMask uint64) kerr.Errno {
	buf := make([]byte, 8)
	vpn := mem.VPN(sp / mem.PageSize)
	off := int(sp % mem.PageSize)
	if err := space.ReadBytesAt(vpn, off, buf); err != kerr.ENone {
		return err
	}
	if binary.LittleEndian.Uint64(buf) != sigreturnMagic {
		return kerr.EFault
	}
	s := tb.t.Signals
	s.Lock()
	s.Blocked = savedMask
	s.Unlock()
	return kerr.ENone
}
