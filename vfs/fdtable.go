package vfs

import (
	"sync"

	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/task"
)

// FdFlags is the per-descriptor flag set (distinct from the open
// file's OpenFlags, which is shared across every fd pointing at the
// same open File after dup).
type FdFlags uint32

const FdCloexec FdFlags = 1 << 0

// FDTable is a process's file descriptor table: parallel slices of
// open Files and their FD_CLOEXEC-style flags, indexed by fd number.
type FDTable struct {
	mu     sync.Mutex
	files  []File
	flags  []FdFlags
	maxFds int
}

// DefaultMaxFds is used when callers don't need a custom rlimit.
const DefaultMaxFds = 1024

// NewFDTable returns an empty table bounded by maxFds.
func NewFDTable(maxFds int) *FDTable {
	if maxFds <= 0 {
		maxFds = DefaultMaxFds
	}
	return &FDTable{maxFds: maxFds}
}

// Alloc installs file at the lowest free fd.
func (t *FDTable) Alloc(file File) (int, kerr.Errno) {
	return t.AllocWithFlags(file, 0)
}

// AllocWithFlags is Alloc with an explicit initial FdFlags value.
func (t *FDTable) AllocWithFlags(file File, flags FdFlags) (int, kerr.Errno) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for fd, slot := range t.files {
		if slot == nil {
			t.files[fd] = file
			t.flags[fd] = flags
			return fd, kerr.ENone
		}
	}
	fd := len(t.files)
	if fd >= t.maxFds {
		return 0, kerr.ETooManyOpen
	}
	t.files = append(t.files, file)
	t.flags = append(t.flags, flags)
	return fd, kerr.ENone
}

// InstallAt installs file at exactly fd (growing the table as needed),
// regardless of what was there before.
func (t *FDTable) InstallAt(fd int, file File) kerr.Errno {
	return t.InstallAtWithFlags(fd, file, 0)
}

// InstallAtWithFlags is InstallAt with an explicit FdFlags value.
func (t *FDTable) InstallAtWithFlags(fd int, file File, flags FdFlags) kerr.Errno {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < 0 || fd >= t.maxFds {
		return kerr.EInvalidArg
	}
	for len(t.files) <= fd {
		t.files = append(t.files, nil)
		t.flags = append(t.flags, 0)
	}
	t.files[fd] = file
	t.flags[fd] = flags
	return kerr.ENone
}

// Get returns the File installed at fd.
func (t *FDTable) Get(fd int) (File, kerr.Errno) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < 0 || fd >= len(t.files) || t.files[fd] == nil {
		return nil, kerr.EBadFd
	}
	return t.files[fd], kerr.ENone
}

// Close clears fd.
func (t *FDTable) Close(fd int) kerr.Errno {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < 0 || fd >= len(t.files) || t.files[fd] == nil {
		return kerr.EBadFd
	}
	t.files[fd] = nil
	t.flags[fd] = 0
	return kerr.ENone
}

// Dup duplicates oldFd at the lowest free fd (dup(2)).
func (t *FDTable) Dup(oldFd int) (int, kerr.Errno) {
	f, err := t.Get(oldFd)
	if err != kerr.ENone {
		return 0, err
	}
	return t.Alloc(f)
}

// DupFrom duplicates oldFd at the lowest free fd >= minFd (F_DUPFD /
// F_DUPFD_CLOEXEC semantics).
func (t *FDTable) DupFrom(oldFd, minFd int, flags FdFlags) (int, kerr.Errno) {
	f, err := t.Get(oldFd)
	if err != kerr.ENone {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for len(t.files) < minFd {
		t.files = append(t.files, nil)
		t.flags = append(t.flags, 0)
	}
	for fd := minFd; fd < len(t.files); fd++ {
		if t.files[fd] == nil {
			t.files[fd] = f
			t.flags[fd] = flags
			return fd, kerr.ENone
		}
	}
	fd := len(t.files)
	if fd >= t.maxFds {
		return 0, kerr.ETooManyOpen
	}
	t.files = append(t.files, f)
	t.flags = append(t.flags, flags)
	return fd, kerr.ENone
}

// Dup2 duplicates oldFd onto newFd. dup2(fd, fd) is a no-op success
// that just validates fd is open (Linux quirk: unlike dup3, dup2
// tolerates old==new).
func (t *FDTable) Dup2(oldFd, newFd int) (int, kerr.Errno) {
	if oldFd == newFd {
		if _, err := t.Get(oldFd); err != kerr.ENone {
			return 0, err
		}
		return newFd, kerr.ENone
	}
	return t.Dup3(oldFd, newFd, 0)
}

// Dup3 duplicates oldFd onto newFd, closing whatever was at newFd
// first. oldFd == newFd is rejected (matching Linux's dup3, which
// never permits it, unlike dup2).
func (t *FDTable) Dup3(oldFd, newFd int, flags OpenFlags) (int, kerr.Errno) {
	if oldFd == newFd {
		return 0, kerr.EInvalidArg
	}
	f, err := t.Get(oldFd)
	if err != kerr.ENone {
		return 0, err
	}
	t.Close(newFd)
	fdFlags := FdFlags(0)
	if flags&OCloexec != 0 {
		fdFlags = FdCloexec
	}
	if err := t.InstallAtWithFlags(newFd, f, fdFlags); err != kerr.ENone {
		return 0, err
	}
	return newFd, kerr.ENone
}

// CloseOnExec closes every fd whose FdCloexec flag is set, for execve.
func (t *FDTable) CloseOnExec() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for fd, fl := range t.flags {
		if fl&FdCloexec != 0 {
			t.files[fd] = nil
			t.flags[fd] = 0
		}
	}
}

// CloneTable returns an independent copy of the table sharing the same
// open Files (fork semantics: offsets stay shared via the File itself).
func (t *FDTable) CloneTable() *FDTable {
	t.mu.Lock()
	defer t.mu.Unlock()
	nt := &FDTable{maxFds: t.maxFds}
	nt.files = append(nt.files, t.files...)
	nt.flags = append(nt.flags, t.flags...)
	return nt
}

// Clone satisfies task.FdTableRef so Task can carry an FDTable without
// task importing package vfs.
func (t *FDTable) Clone() task.FdTableRef { return t.CloneTable() }

var _ task.FdTableRef = (*FDTable)(nil)

// GetFdFlags returns fd's FdFlags (F_GETFD).
func (t *FDTable) GetFdFlags(fd int) (FdFlags, kerr.Errno) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < 0 || fd >= len(t.files) || t.files[fd] == nil {
		return 0, kerr.EBadFd
	}
	return t.flags[fd], kerr.ENone
}

// SetFdFlags sets fd's FdFlags (F_SETFD).
func (t *FDTable) SetFdFlags(fd int, flags FdFlags) kerr.Errno {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < 0 || fd >= len(t.files) || t.files[fd] == nil {
		return kerr.EBadFd
	}
	t.flags[fd] = flags
	return kerr.ENone
}

// TakeAll removes and returns every currently-open (fd, File) pair,
// clearing the table (used when a task exits).
func (t *FDTable) TakeAll() []struct {
	Fd   int
	File File
} {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []struct {
		Fd   int
		File File
	}
	for fd, f := range t.files {
		if f != nil {
			out = append(out, struct {
				Fd   int
				File File
			}{fd, f})
			t.files[fd] = nil
		}
	}
	for i := range t.flags {
		t.flags[i] = 0
	}
	return out
}

// closer is satisfied by File implementations that hold an underlying
// resource needing release on last close (pipes, in particular);
// most Files don't need it and are left untouched.
type closer interface {
	Close()
}

// Release drains every open fd via TakeAll and closes each File that
// supports it, satisfying task.FdTableRef so a task's fd table is torn
// down on process exit rather than merely dropped.
func (t *FDTable) Release() {
	for _, entry := range t.TakeAll() {
		if c, ok := entry.File.(closer); ok {
			c.Close()
		}
	}
}
