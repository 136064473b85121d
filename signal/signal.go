// Package signal implements pending/blocked masks, the handler table,
// default-action dispatch, and signal-frame construction for delivery on
// the trap-return path.
package signal

import "golang.org/x/sys/unix"

// Num is a signal number, 1..64 (bit position in the 64-bit masks).
type Num int

// Disposition is the action associated with a signal number.
type Disposition int

const (
	// DispDefault runs the signal's built-in default action.
	DispDefault Disposition = iota
	// DispIgnore drops the signal silently.
	DispIgnore
	// DispHandler invokes a user-installed handler.
	DispHandler
)

// DefaultAction is one of the five built-in outcomes a SIG_DFL signal
// can have.
type DefaultAction int

const (
	ActTerminate DefaultAction = iota
	ActCore
	ActStop
	ActContinue
	ActIgnore
)

// defaultActions maps well-known POSIX signal numbers to their built-in
// action, mirroring Linux's table (see `man 7 signal`).
var defaultActions = map[Num]DefaultAction{
	Num(unix.SIGHUP):    ActTerminate,
	Num(unix.SIGINT):    ActTerminate,
	Num(unix.SIGQUIT):   ActCore,
	Num(unix.SIGILL):    ActCore,
	Num(unix.SIGTRAP):   ActCore,
	Num(unix.SIGABRT):   ActCore,
	Num(unix.SIGBUS):    ActCore,
	Num(unix.SIGFPE):    ActCore,
	Num(unix.SIGKILL):   ActTerminate,
	Num(unix.SIGUSR1):   ActTerminate,
	Num(unix.SIGSEGV):   ActCore,
	Num(unix.SIGUSR2):   ActTerminate,
	Num(unix.SIGPIPE):   ActTerminate,
	Num(unix.SIGALRM):   ActTerminate,
	Num(unix.SIGTERM):   ActTerminate,
	Num(unix.SIGCHLD):   ActIgnore,
	Num(unix.SIGCONT):   ActContinue,
	Num(unix.SIGSTOP):   ActStop,
	Num(unix.SIGTSTP):   ActStop,
	Num(unix.SIGTTIN):   ActStop,
	Num(unix.SIGTTOU):   ActStop,
	Num(unix.SIGURG):    ActIgnore,
	Num(unix.SIGXCPU):   ActCore,
	Num(unix.SIGXFSZ):   ActCore,
	Num(unix.SIGVTALRM): ActTerminate,
	Num(unix.SIGPROF):   ActTerminate,
	Num(unix.SIGWINCH):  ActIgnore,
	Num(unix.SIGIO):     ActTerminate,
	Num(unix.SIGSYS):    ActCore,
}

// DefaultActionFor returns the built-in action for n, or ActTerminate if
// n is unrecognized (the Linux default for unlisted signals).
func DefaultActionFor(n Num) DefaultAction {
	if a, ok := defaultActions[n]; ok {
		return a
	}
	return ActTerminate
}

// HandlerFlags mirrors the subset of sigaction(2) flags nyx implements.
type HandlerFlags int

const (
	FlagRestart HandlerFlags = 1 << iota
	FlagNoDefer
	FlagOnStack
)

// Action describes one installed signal handler.
type Action struct {
	Disposition Disposition
	Handler     uintptr // user-space entry point when Disposition == DispHandler
	Mask        uint64  // additional signals blocked while the handler runs
	Flags       HandlerFlags
}

func bit(n Num) uint64 {
	if n < 1 || n > 64 {
		return 0
	}
	return 1 << uint(n-1)
}

// Mask mutation helpers kept as free functions (not methods) since the
// bits they manipulate live on task.SignalState, outside this package.

// SetBit sets n's bit in mask and returns the result.
func SetBit(mask uint64, n Num) uint64 { return mask | bit(n) }

// ClearBit clears n's bit in mask and returns the result.
func ClearBit(mask uint64, n Num) uint64 { return mask &^ bit(n) }

// HasBit reports whether n's bit is set in mask.
func HasBit(mask uint64, n Num) bool { return mask&bit(n) != 0 }

// Deliverable returns the lowest-numbered signal present in pending and
// absent from blocked, or 0 if none is deliverable. SIGKILL and SIGSTOP
// are always deliverable regardless of blocked, matching POSIX (they
// cannot be blocked or caught).
func Deliverable(pending, blocked uint64) Num {
	unblockable := bit(Num(unix.SIGKILL)) | bit(Num(unix.SIGSTOP))
	candidates := pending & (^blocked | unblockable)
	if candidates == 0 {
		return 0
	}
	for n := Num(1); n <= 64; n++ {
		if candidates&bit(n) != 0 {
			return n
		}
	}
	return 0
}
