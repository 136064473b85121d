// Package klog is the kernel's internal log subsystem: a bounded ring
// buffer of timestamped entries plus an immediate ANSI console echo
// for messages at or above a separate threshold. Buffering and console
// thresholds are independent so a quiet console can still retain
// Debug-level history for later inspection via /proc or /sys.
package klog

import (
	"fmt"
	"sync/atomic"
)

// ContextProvider supplies the per-call context (CPU, task, timestamp)
// a log entry is stamped with. Kernel code registers one implementation
// at boot; tests construct a Core directly with nothing registered.
type ContextProvider interface {
	CPUID() int
	TaskID() int
	Timestamp() uint64
}

// Output receives the immediate console echo of entries at or above
// the console threshold.
type Output interface {
	WriteString(string)
}

var (
	contextProvider atomic.Pointer[ContextProvider]
	logOutput       atomic.Pointer[Output]
)

// RegisterContextProvider installs the source of CPU/task/timestamp
// context for the global logger.
func RegisterContextProvider(p ContextProvider) { contextProvider.Store(&p) }

// RegisterOutput installs the console sink for the global logger.
func RegisterOutput(o Output) { logOutput.Store(&o) }

// Core is a self-contained log buffer with its own level thresholds;
// it can be instantiated freely for testing or used as a package-level
// singleton (Global).
type Core struct {
	buf           *ring
	globalLevel   atomic.Uint32
	consoleLevel  atomic.Uint32
}

// NewCore builds a Core with the given buffering and console thresholds.
func NewCore(globalLevel, consoleLevel Level) *Core {
	c := &Core{buf: newRing(DefaultCapacity)}
	c.globalLevel.Store(uint32(clampLevel(globalLevel)))
	c.consoleLevel.Store(uint32(clampLevel(consoleLevel)))
	return c
}

// Global is the package-wide logger used by the pr_* helpers.
var Global = NewCore(DefaultLogLevel, DefaultConsoleLevel)

func (c *Core) levelEnabled(l Level) bool {
	return uint32(l) <= c.globalLevel.Load()
}

func (c *Core) consoleEnabled(l Level) bool {
	return uint32(l) <= c.consoleLevel.Load()
}

// Log records msg at the given level, subject to the global filter,
// and echoes it to the console if it clears the console threshold.
func (c *Core) Log(level Level, msg string) {
	if !c.levelEnabled(level) {
		return
	}
	cpu, task, ts := 0, 0, uint64(0)
	if p := contextProvider.Load(); p != nil {
		cpu, task, ts = (*p).CPUID(), (*p).TaskID(), (*p).Timestamp()
	}
	e := newEntry(level, cpu, task, ts, msg)
	c.buf.write(e)
	if c.consoleEnabled(level) {
		if o := logOutput.Load(); o != nil {
			(*o).WriteString(Format(e) + "\n")
		}
	}
}

// Logf is Log with fmt.Sprintf-style formatting.
func (c *Core) Logf(level Level, format string, args ...any) {
	c.Log(level, fmt.Sprintf(format, args...))
}

// Read pops the oldest unread entry, if any.
func (c *Core) Read() (Entry, bool) { return c.buf.read() }

// Peek returns the entry at absolute index without consuming it.
func (c *Core) Peek(index uint64) (Entry, bool) { return c.buf.peek(index) }

// ReaderIndex is the absolute index of the next entry Read will return.
func (c *Core) ReaderIndex() uint64 { return c.buf.readerIndex() }

// WriterIndex is the absolute index the next Log call will assign.
func (c *Core) WriterIndex() uint64 { return c.buf.writerIndex() }

// Len is the count of unread entries.
func (c *Core) Len() int { return c.buf.len() }

// UnreadBytes is the total formatted length of unread entries.
func (c *Core) UnreadBytes() int { return c.buf.unreadBytes() }

// DroppedCount is how many entries were overwritten before being read.
func (c *Core) DroppedCount() uint64 { return c.buf.droppedCount() }

// SetGlobalLevel changes the buffering threshold.
func (c *Core) SetGlobalLevel(l Level) { c.globalLevel.Store(uint32(clampLevel(l))) }

// GlobalLevel returns the current buffering threshold.
func (c *Core) GlobalLevel() Level { return Level(c.globalLevel.Load()) }

// SetConsoleLevel changes the immediate-echo threshold.
func (c *Core) SetConsoleLevel(l Level) { c.consoleLevel.Store(uint32(clampLevel(l))) }

// ConsoleLevel returns the current immediate-echo threshold.
func (c *Core) ConsoleLevel() Level { return Level(c.consoleLevel.Load()) }

func Emergf(format string, args ...any)  { Global.Logf(Emergency, format, args...) }
func Alertf(format string, args ...any)  { Global.Logf(Alert, format, args...) }
func Critf(format string, args ...any)   { Global.Logf(Critical, format, args...) }
func Errf(format string, args ...any)    { Global.Logf(Error, format, args...) }
func Warnf(format string, args ...any)   { Global.Logf(Warning, format, args...) }
func Noticef(format string, args ...any) { Global.Logf(Notice, format, args...) }
func Infof(format string, args ...any)   { Global.Logf(Info, format, args...) }
func Debugf(format string, args ...any)  { Global.Logf(Debug, format, args...) }
