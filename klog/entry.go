package klog

import "fmt"

// MaxMessageLength bounds a single log line; longer messages are
// truncated before being stored.
const MaxMessageLength = 256

// Entry is one stored log record.
type Entry struct {
	Level     Level
	CPU       int
	Task      int
	Timestamp uint64
	Message   string
}

func newEntry(level Level, cpu, task int, ts uint64, msg string) Entry {
	if len(msg) > MaxMessageLength {
		msg = msg[:MaxMessageLength]
	}
	return Entry{Level: level, CPU: cpu, Task: task, Timestamp: ts, Message: msg}
}

// Format renders e the same way for console echo and for syslog export,
// so byte-counting stays consistent with what actually gets printed.
func Format(e Entry) string {
	return fmt.Sprintf("%s%s [%12d] [CPU%d/T%3d] %s%s",
		e.Level.colorCode(), e.Level, e.Timestamp, e.CPU, e.Task, e.Message, resetCode)
}
