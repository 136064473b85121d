// Package devfile implements the File-layer device backings that sit
// below /dev and anonymous pipes: a streaming pipe buffer, line-buffered
// TTY stdio, major/minor-dispatched char devices, and sector-addressed
// block devices.
package devfile

import (
	"sync"

	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/vfs"
)

const (
	pipeDefaultCapacity = 4096
	pipeMinCapacity     = 4096
	pipeMaxCapacity     = 1 << 20
)

// pipeBuffer is the ring shared by a pipe's read and write ends.
type pipeBuffer struct {
	mu            sync.Mutex
	data          []byte
	capacity      int
	readEndCount  int
	writeEndCount int
}

func newPipeBuffer() *pipeBuffer {
	return &pipeBuffer{capacity: pipeDefaultCapacity, readEndCount: 1, writeEndCount: 1}
}

func (b *pipeBuffer) setCapacity(n int) kerr.Errno {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n < pipeMinCapacity || n > pipeMaxCapacity || n < len(b.data) {
		return kerr.EInvalidArg
	}
	b.capacity = n
	return kerr.ENone
}

func (b *pipeBuffer) read(buf []byte) (int, kerr.Errno) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.data) == 0 {
		if b.writeEndCount == 0 {
			return 0, kerr.ENone // EOF
		}
		return 0, kerr.EWouldBlock
	}
	n := copy(buf, b.data)
	b.data = b.data[n:]
	return n, kerr.ENone
}

func (b *pipeBuffer) write(buf []byte) (int, kerr.Errno) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readEndCount == 0 {
		return 0, kerr.EBrokenPipe
	}
	available := b.capacity - len(b.data)
	if available == 0 {
		return 0, kerr.EWouldBlock
	}
	n := len(buf)
	if n > available {
		n = available
	}
	b.data = append(b.data, buf[:n]...)
	return n, kerr.ENone
}

type pipeEnd int

const (
	pipeRead pipeEnd = iota
	pipeWrite
)

// Pipe is one end of an anonymous pipe; the read and write ends share
// a pipeBuffer. Unlike a regular file it has no offset and does not
// support Lseek.
type Pipe struct {
	vfs.BaseFile
	buf     *pipeBuffer
	end     pipeEnd
	mu      sync.Mutex
	flags   vfs.OpenFlags
	owner   int32
}

// NewPipePair returns the [read end, write end] of a fresh pipe.
func NewPipePair() (*Pipe, *Pipe) {
	b := newPipeBuffer()
	return &Pipe{buf: b, end: pipeRead}, &Pipe{buf: b, end: pipeWrite}
}

func (p *Pipe) Readable() bool {
	if p.end != pipeRead {
		return false
	}
	p.buf.mu.Lock()
	defer p.buf.mu.Unlock()
	return len(p.buf.data) > 0 || p.buf.writeEndCount == 0
}

func (p *Pipe) Writable() bool {
	if p.end != pipeWrite {
		return false
	}
	p.buf.mu.Lock()
	defer p.buf.mu.Unlock()
	return p.buf.readEndCount > 0 && len(p.buf.data) < p.buf.capacity
}

func (p *Pipe) Read(buf []byte) (int, kerr.Errno) {
	if p.end != pipeRead {
		return 0, kerr.EInvalidArg
	}
	return p.buf.read(buf)
}

func (p *Pipe) Write(buf []byte) (int, kerr.Errno) {
	if p.end != pipeWrite {
		return 0, kerr.EInvalidArg
	}
	return p.buf.write(buf)
}

func (p *Pipe) Metadata() (vfs.Metadata, kerr.Errno) {
	return vfs.Metadata{
		InodeType: vfs.TypeFifo,
		Mode:      vfs.ModeFifo | vfs.ModeUserRead | vfs.ModeUserWrite,
		Nlinks:    1,
	}, kerr.ENone
}

func (p *Pipe) Flags() vfs.OpenFlags {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flags
}

func (p *Pipe) SetStatusFlags(f vfs.OpenFlags) kerr.Errno {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flags = f
	return kerr.ENone
}

func (p *Pipe) GetPipeSize() (int, kerr.Errno) {
	p.buf.mu.Lock()
	defer p.buf.mu.Unlock()
	return p.buf.capacity, kerr.ENone
}

func (p *Pipe) SetPipeSize(n int) kerr.Errno { return p.buf.setCapacity(n) }

func (p *Pipe) GetOwner() (int32, kerr.Errno) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.owner, kerr.ENone
}

func (p *Pipe) SetOwner(pid int32) kerr.Errno {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.owner = pid
	return kerr.ENone
}

// Close releases this end, marking it closed so the peer observes EOF
// or a broken pipe on its next operation.
func (p *Pipe) Close() {
	p.buf.mu.Lock()
	defer p.buf.mu.Unlock()
	switch p.end {
	case pipeRead:
		p.buf.readEndCount--
	case pipeWrite:
		p.buf.writeEndCount--
	}
}

var _ vfs.File = (*Pipe)(nil)
