package signal

import (
	"testing"

	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/mem"
	"github.com/nyx-os/nyx/memspace"
	"github.com/nyx-os/nyx/pagetable"
	"github.com/nyx-os/nyx/task"
	"golang.org/x/sys/unix"
)

func TestDefaultActionKillTerminates(t *testing.T) {
	if DefaultActionFor(Num(unix.SIGKILL)) != ActTerminate {
		t.Fatal("expected SIGKILL default action to terminate")
	}
	if DefaultActionFor(Num(unix.SIGSTOP)) != ActStop {
		t.Fatal("expected SIGSTOP default action to stop")
	}
	if DefaultActionFor(Num(unix.SIGCHLD)) != ActIgnore {
		t.Fatal("expected SIGCHLD default action to be ignored")
	}
}

func TestDeliverablePrefersLowestNumber(t *testing.T) {
	pending := bit(5) | bit(2) | bit(9)
	if got := Deliverable(pending, 0); got != 2 {
		t.Fatalf("expected lowest pending signal 2, got %d", got)
	}
}

func TestDeliverableRespectsBlockedMask(t *testing.T) {
	pending := bit(2) | bit(5)
	blocked := bit(2)
	if got := Deliverable(pending, blocked); got != 5 {
		t.Fatalf("expected 2 to be skipped as blocked, got %d", got)
	}
}

func TestDeliverableSigkillAlwaysWins(t *testing.T) {
	pending := bit(Num(unix.SIGKILL))
	blocked := bit(Num(unix.SIGKILL))
	if got := Deliverable(pending, blocked); got != Num(unix.SIGKILL) {
		t.Fatalf("expected SIGKILL to be deliverable despite blocked bit, got %d", got)
	}
}

func TestSigActionRoundTrips(t *testing.T) {
	tk := task.New(2, 2, 1, 2)
	tk.Signals = task.NewSignalState()
	tb := For(tk)

	old := tb.SigAction(Num(unix.SIGUSR1), Action{Disposition: DispHandler, Handler: 0x4000})
	if old.Disposition != DispDefault {
		t.Fatalf("expected previous disposition default, got %v", old.Disposition)
	}
	got := actionFor(tk.Signals, Num(unix.SIGUSR1))
	if got.Disposition != DispHandler || got.Handler != 0x4000 {
		t.Fatalf("unexpected round-tripped action: %+v", got)
	}

	tb.SigAction(Num(unix.SIGUSR1), Action{Disposition: DispIgnore})
	got = actionFor(tk.Signals, Num(unix.SIGUSR1))
	if got.Disposition != DispIgnore {
		t.Fatalf("expected ignore disposition, got %v", got)
	}
}

func TestSigProcMaskModes(t *testing.T) {
	tk := task.New(2, 2, 1, 2)
	tk.Signals = task.NewSignalState()
	tb := For(tk)

	tb.SigProcMask(Block, bit(3)|bit(4), true)
	old := tb.SigProcMask(Unblock, bit(3), true)
	if old != bit(3)|bit(4) {
		t.Fatalf("expected old mask to include both bits, got %x", old)
	}
	cur := tb.SigProcMask(SetMask, 0, false)
	if cur != bit(4) {
		t.Fatalf("expected only bit 4 left blocked, got %x", cur)
	}
}

func TestRaiseMakesSignalDeliverable(t *testing.T) {
	tk := task.New(2, 2, 1, 2)
	tk.Signals = task.NewSignalState()
	tb := For(tk)

	if tb.HasUnblockedPending() {
		t.Fatal("expected no pending signal initially")
	}
	tb.Raise(Num(unix.SIGTERM))
	if !tb.HasUnblockedPending() {
		t.Fatal("expected SIGTERM to be deliverable after Raise")
	}
	if got := tb.PendingDeliverable(); got != Num(unix.SIGTERM) {
		t.Fatalf("expected SIGTERM deliverable, got %d", got)
	}
}

func TestBuildFrameAndRestoreRoundTrip(t *testing.T) {
	fa := mem.NewFrameAllocator(0, 64)
	tbl := pagetable.NewSoftTable(nil)
	space := memspace.New(tbl, fa, tbl.NewBatch)

	area := memspace.NewMappingArea(mem.PageNumRange[mem.VPN]{Start: 0, End: 4}, memspace.UserStack, memspace.Framed, pagetable.Read|pagetable.Write|pagetable.Valid)
	for vpn := mem.VPN(0); vpn < 4; vpn++ {
		ft, ok := fa.AllocFrame()
		if !ok {
			t.Fatal("out of frames in test setup")
		}
		area.Frames[vpn] = ft
	}
	if err := space.InsertArea(area); err != kerr.ENone {
		t.Fatalf("InsertArea failed: %v", err)
	}

	tk := task.New(2, 2, 1, 2)
	tk.Signals = task.NewSignalState()
	tb := For(tk)
	tb.SigAction(Num(unix.SIGUSR1), Action{Disposition: DispHandler, Handler: 0x1000})
	tb.Raise(Num(unix.SIGUSR1))
	tb.SigProcMask(Block, bit(7), true)

	userSP := uintptr(3*mem.PageSize + 100)
	frame, newSP, err := tb.BuildFrame(space, userSP, task.TrapFrame{PC: 0x500})
	if err != kerr.ENone {
		t.Fatalf("BuildFrame failed: %v", err)
	}
	if frame.Signal != Num(unix.SIGUSR1) {
		t.Fatalf("expected SIGUSR1 frame, got %d", frame.Signal)
	}
	if frame.HandlerPC != 0x1000 {
		t.Fatalf("expected handler pc 0x1000, got %x", frame.HandlerPC)
	}
	if newSP%16 != 0 {
		t.Fatalf("expected 16-byte aligned sp, got %x", newSP)
	}
	if tb.HasUnblockedPending() {
		t.Fatal("expected SIGUSR1 consumed from pending")
	}
	if !HasBit(tk.Signals.Blocked, Num(unix.SIGUSR1)) {
		t.Fatal("expected signal self-blocked while handler runs")
	}

	if err := tb.Restore(space, newSP, frame.SavedMask); err != kerr.ENone {
		t.Fatalf("Restore failed: %v", err)
	}
	if tk.Signals.Blocked != bit(7) {
		t.Fatalf("expected blocked mask restored to pre-delivery value, got %x", tk.Signals.Blocked)
	}
}

func TestRestoreRejectsForgedFrame(t *testing.T) {
	fa := mem.NewFrameAllocator(0, 8)
	tbl := pagetable.NewSoftTable(nil)
	space := memspace.New(tbl, fa, tbl.NewBatch)
	area := memspace.NewMappingArea(mem.PageNumRange[mem.VPN]{Start: 0, End: 2}, memspace.UserStack, memspace.Framed, pagetable.Read|pagetable.Write|pagetable.Valid)
	for vpn := mem.VPN(0); vpn < 2; vpn++ {
		ft, _ := fa.AllocFrame()
		area.Frames[vpn] = ft
	}
	space.InsertArea(area)

	tk := task.New(2, 2, 1, 2)
	tk.Signals = task.NewSignalState()
	tb := For(tk)

	if err := tb.Restore(space, 0, 0); err != kerr.EFault {
		t.Fatalf("expected EFault on unwritten frame, got %v", err)
	}
}
