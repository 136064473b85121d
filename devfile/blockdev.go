package devfile

import (
	"sync"

	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/vfs"
)

const sectorSize = 512

// BlockBackend is the raw byte-addressed storage a BlockDevice exposes;
// ramdisk or a real driver both satisfy it.
type BlockBackend interface {
	ReadAt(offset int64, buf []byte) (int, kerr.Errno)
	WriteAt(offset int64, buf []byte) (int, kerr.Errno)
	Size() int64
}

// RamDisk is a BlockBackend over a flat in-memory byte slice.
type RamDisk struct {
	mu   sync.Mutex
	data []byte
}

func NewRamDisk(sizeBytes int64) *RamDisk { return &RamDisk{data: make([]byte, sizeBytes)} }

func (d *RamDisk) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.data))
}

func (d *RamDisk) ReadAt(offset int64, buf []byte) (int, kerr.Errno) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if offset < 0 || offset > int64(len(d.data)) {
		return 0, kerr.EInvalidArg
	}
	n := copy(buf, d.data[offset:])
	return n, kerr.ENone
}

func (d *RamDisk) WriteAt(offset int64, buf []byte) (int, kerr.Errno) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if offset < 0 || offset > int64(len(d.data)) {
		return 0, kerr.EInvalidArg
	}
	n := copy(d.data[offset:], buf)
	return n, kerr.ENone
}

// BlockDevice is a File session over a BlockBackend, tracking its own
// seek offset. Reads and writes pass the byte offset and length
// straight to the backend; access that is not sector-aligned is not
// rejected.
type BlockDevice struct {
	vfs.BaseFile
	mu      sync.Mutex
	backend BlockBackend
	offset  int64
	major   uint32
	minor   uint32
}

func NewBlockDevice(backend BlockBackend, major, minor uint32) *BlockDevice {
	return &BlockDevice{backend: backend, major: major, minor: minor}
}

func (b *BlockDevice) Readable() bool { return true }
func (b *BlockDevice) Writable() bool { return true }

func (b *BlockDevice) Read(buf []byte) (int, kerr.Errno) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.backend.ReadAt(b.offset, buf)
	if err == kerr.ENone {
		b.offset += int64(n)
	}
	return n, err
}

func (b *BlockDevice) Write(buf []byte) (int, kerr.Errno) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.backend.WriteAt(b.offset, buf)
	if err == kerr.ENone {
		b.offset += int64(n)
	}
	return n, err
}

func (b *BlockDevice) ReadAt(offset int64, buf []byte) (int, kerr.Errno) {
	return b.backend.ReadAt(offset, buf)
}

func (b *BlockDevice) WriteAt(offset int64, buf []byte) (int, kerr.Errno) {
	return b.backend.WriteAt(offset, buf)
}

func (b *BlockDevice) Lseek(offset int64, whence vfs.SeekWhence) (int64, kerr.Errno) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var base int64
	switch whence {
	case vfs.SeekSet:
		base = 0
	case vfs.SeekCur:
		base = b.offset
	case vfs.SeekEnd:
		base = b.backend.Size()
	default:
		return 0, kerr.EInvalidArg
	}
	newOffset := base + offset
	if newOffset < 0 {
		return 0, kerr.EInvalidArg
	}
	b.offset = newOffset
	return newOffset, kerr.ENone
}

func (b *BlockDevice) Offset() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.offset
}

func (b *BlockDevice) Metadata() (vfs.Metadata, kerr.Errno) {
	return vfs.Metadata{
		InodeType: vfs.TypeBlockDevice,
		Mode:      vfs.ModeBlock | vfs.ModeUserRead | vfs.ModeUserWrite,
		Rdev:      vfs.MakeDev(b.major, b.minor),
		Size:      b.backend.Size(),
		Blocks:    b.backend.Size() / sectorSize,
		Nlinks:    1,
	}, kerr.ENone
}

var _ vfs.File = (*BlockDevice)(nil)
