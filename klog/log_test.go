package klog

import (
	"strings"
	"testing"
)

func TestWriteAndRead(t *testing.T) {
	c := NewCore(Debug, Warning)
	c.Log(Info, "test message")

	if c.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", c.Len())
	}
	e, ok := c.Read()
	if !ok {
		t.Fatal("expected an entry")
	}
	if e.Message != "test message" || e.Level != Info {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if c.Len() != 0 {
		t.Fatalf("expected 0 entries after read, got %d", c.Len())
	}
}

func TestFIFOOrder(t *testing.T) {
	c := NewCore(Debug, Warning)
	for i := 0; i < 5; i++ {
		c.Logf(Debug, "message %d", i)
	}
	if c.Len() != 5 {
		t.Fatalf("expected 5 entries, got %d", c.Len())
	}
	for i := 0; i < 5; i++ {
		e, ok := c.Read()
		if !ok {
			t.Fatalf("expected entry %d", i)
		}
		want := "message " + string(rune('0'+i))
		if e.Message != want {
			t.Fatalf("expected %q, got %q", want, e.Message)
		}
	}
}

func TestEmptyBufferRead(t *testing.T) {
	c := NewCore(Debug, Warning)
	if _, ok := c.Read(); ok {
		t.Fatal("expected no entry on empty buffer")
	}
}

func TestGlobalLevelFiltering(t *testing.T) {
	c := NewCore(Warning, Warning)
	c.Log(Emergency, "emergency")
	c.Log(Error, "error")
	c.Log(Warning, "warning")
	c.Log(Info, "info")
	c.Log(Debug, "debug")

	if c.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", c.Len())
	}
	for _, want := range []string{"emergency", "error", "warning"} {
		e, _ := c.Read()
		if e.Message != want {
			t.Fatalf("expected %q, got %q", want, e.Message)
		}
	}
}

func TestLevelBoundary(t *testing.T) {
	c := NewCore(Info, Warning)
	c.Log(Info, "boundary")
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", c.Len())
	}
	c.Log(Debug, "filtered")
	if c.Len() != 1 {
		t.Fatalf("expected debug to be filtered, len=%d", c.Len())
	}
}

func TestDynamicLevelChange(t *testing.T) {
	c := NewCore(Info, Warning)
	c.Log(Debug, "debug1")
	c.Log(Info, "info1")
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry before level change, got %d", c.Len())
	}
	c.SetGlobalLevel(Debug)
	c.Log(Debug, "debug2")
	c.Log(Info, "info2")
	if c.Len() != 3 {
		t.Fatalf("expected 3 entries after level change, got %d", c.Len())
	}
}

func TestMessageTruncation(t *testing.T) {
	c := NewCore(Debug, Warning)
	c.Log(Info, strings.Repeat("a", 300))
	e, _ := c.Read()
	if len(e.Message) > MaxMessageLength {
		t.Fatalf("expected truncation to %d bytes, got %d", MaxMessageLength, len(e.Message))
	}
}

func TestBufferOverflowDropsOldest(t *testing.T) {
	c := NewCore(Debug, Warning)
	const total = 100
	for i := 0; i < total; i++ {
		c.Logf(Info, "log %d", i)
	}
	if int(c.DroppedCount())+c.Len() != total {
		t.Fatalf("dropped(%d)+buffered(%d) should equal %d", c.DroppedCount(), c.Len(), total)
	}
	if c.DroppedCount() == 0 {
		t.Fatal("expected some entries dropped")
	}
}

func TestWriteAfterOverflowStillWorks(t *testing.T) {
	c := NewCore(Debug, Warning)
	for i := 0; i < 100; i++ {
		c.Logf(Info, "overflow %d", i)
	}
	if c.DroppedCount() == 0 {
		t.Fatal("expected overflow before continuing")
	}
	for {
		if _, ok := c.Read(); !ok {
			break
		}
	}
	c.Log(Info, "after overflow")
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry after drain, got %d", c.Len())
	}
	e, _ := c.Read()
	if e.Message != "after overflow" {
		t.Fatalf("expected %q, got %q", "after overflow", e.Message)
	}
}

func TestPeekDoesNotAdvanceReader(t *testing.T) {
	c := NewCore(Debug, Emergency)
	c.Log(Info, "Test message")

	start := c.ReaderIndex()
	end := c.WriterIndex()
	if end != start+1 {
		t.Fatalf("expected writer index %d, got %d", start+1, end)
	}
	if _, ok := c.Peek(start); !ok {
		t.Fatal("expected peek to find entry")
	}
	if c.ReaderIndex() != start {
		t.Fatal("peek must not advance the reader")
	}
}

func TestPeekOutOfRange(t *testing.T) {
	c := NewCore(Debug, Emergency)
	c.Log(Info, "Test")
	start := c.ReaderIndex()
	end := c.WriterIndex()

	if _, ok := c.Peek(start); !ok {
		t.Fatal("expected in-range peek to succeed")
	}
	if _, ok := c.Peek(end); ok {
		t.Fatal("expected peek at writer index to miss")
	}
	if start > 0 {
		if _, ok := c.Peek(start - 1); ok {
			t.Fatal("expected peek before reader index to miss")
		}
	}
}

func TestUnreadBytesTracksReadsAndWrites(t *testing.T) {
	c := NewCore(Debug, Emergency)
	if c.UnreadBytes() != 0 {
		t.Fatalf("expected 0 unread bytes initially, got %d", c.UnreadBytes())
	}
	c.Log(Info, "Test message")
	afterWrite := c.UnreadBytes()
	if afterWrite <= 0 {
		t.Fatal("expected unread bytes after a write")
	}
	c.Read()
	if c.UnreadBytes() != 0 {
		t.Fatalf("expected 0 unread bytes after reading everything, got %d", c.UnreadBytes())
	}
}

func TestUnreadBytesAccuracy(t *testing.T) {
	c := NewCore(Debug, Emergency)
	c.Log(Info, "Hello")
	reported := c.UnreadBytes()
	e, _ := c.Read()
	actual := len(Format(e))
	if reported != actual {
		t.Fatalf("expected unread bytes %d to equal formatted length %d", reported, actual)
	}
}
