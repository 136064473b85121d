package devfile

import (
	"crypto/rand"
	"sync"

	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/vfs"
)

// Minor numbers under CharMajorMem/CharMajorTTY/CharMajorConsole/
// CharMajorMisc, matching their conventional Linux assignments.
const (
	MinorNull    = 3
	MinorZero    = 5
	MinorRandom  = 8
	MinorURandom = 9

	MinorTTY0   = 0
	MinorTTYS0  = 64
	MinorConsole = 1
)

// NullDevice is /dev/null: discards writes, reads return EOF.
type NullDevice struct{ vfs.BaseFile }

func (NullDevice) Readable() bool                       { return true }
func (NullDevice) Writable() bool                       { return true }
func (NullDevice) Read([]byte) (int, kerr.Errno)         { return 0, kerr.ENone }
func (NullDevice) Write(buf []byte) (int, kerr.Errno)    { return len(buf), kerr.ENone }
func (NullDevice) Metadata() (vfs.Metadata, kerr.Errno) {
	return vfs.Metadata{
		InodeType: vfs.TypeCharDevice,
		Mode:      vfs.ModeChar | vfs.ModeUserRead | vfs.ModeUserWrite,
		Rdev:      vfs.MakeDev(vfs.CharMajorMem, MinorNull),
		Nlinks:    1,
	}, kerr.ENone
}

// ZeroDevice is /dev/zero: reads return an endless stream of zero bytes.
type ZeroDevice struct{ vfs.BaseFile }

func (ZeroDevice) Readable() bool { return true }
func (ZeroDevice) Writable() bool { return true }

func (ZeroDevice) Read(buf []byte) (int, kerr.Errno) {
	for i := range buf {
		buf[i] = 0
	}
	return len(buf), kerr.ENone
}

func (ZeroDevice) Write(buf []byte) (int, kerr.Errno) { return len(buf), kerr.ENone }

func (ZeroDevice) Metadata() (vfs.Metadata, kerr.Errno) {
	return vfs.Metadata{
		InodeType: vfs.TypeCharDevice,
		Mode:      vfs.ModeChar | vfs.ModeUserRead | vfs.ModeUserWrite,
		Rdev:      vfs.MakeDev(vfs.CharMajorMem, MinorZero),
		Nlinks:    1,
	}, kerr.ENone
}

// RandomDevice backs both /dev/random and /dev/urandom; nyx has no
// entropy-starvation model to distinguish them, so both draw from the
// same CSPRNG and never block.
type RandomDevice struct {
	vfs.BaseFile
	minor uint32
}

func NewRandomDevice() *RandomDevice  { return &RandomDevice{minor: MinorRandom} }
func NewURandomDevice() *RandomDevice { return &RandomDevice{minor: MinorURandom} }

func (d *RandomDevice) Readable() bool { return true }
func (d *RandomDevice) Writable() bool { return true }

func (d *RandomDevice) Read(buf []byte) (int, kerr.Errno) {
	n, err := rand.Read(buf)
	if err != nil {
		return 0, kerr.EIo
	}
	return n, kerr.ENone
}

// Write discards entropy contributions; nyx's CSPRNG doesn't mix in
// caller-supplied bytes.
func (d *RandomDevice) Write(buf []byte) (int, kerr.Errno) { return len(buf), kerr.ENone }

func (d *RandomDevice) Metadata() (vfs.Metadata, kerr.Errno) {
	return vfs.Metadata{
		InodeType: vfs.TypeCharDevice,
		Mode:      vfs.ModeChar | vfs.ModeUserRead | vfs.ModeUserWrite,
		Rdev:      vfs.MakeDev(vfs.CharMajorMem, d.minor),
		Nlinks:    1,
	}, kerr.ENone
}

// RTCDevice is /dev/misc/rtc: a read-only clock snapshot, expressed as
// a ReadAt-able fixed-size register image rather than a stream.
type RTCDevice struct {
	vfs.BaseFile
	mu  sync.Mutex
	now func() uint64 // seconds since epoch
}

func NewRTCDevice(now func() uint64) *RTCDevice { return &RTCDevice{now: now} }

func (d *RTCDevice) Readable() bool { return true }
func (d *RTCDevice) Writable() bool { return false }

func (d *RTCDevice) Read(buf []byte) (int, kerr.Errno) { return d.ReadAt(0, buf) }

func (d *RTCDevice) ReadAt(offset int64, buf []byte) (int, kerr.Errno) {
	if offset != 0 {
		return 0, kerr.ENone
	}
	d.mu.Lock()
	secs := d.now()
	d.mu.Unlock()
	var tmp [8]byte
	for i := 0; i < 8; i++ {
		tmp[i] = byte(secs >> (8 * i))
	}
	n := copy(buf, tmp[:])
	return n, kerr.ENone
}

func (d *RTCDevice) Write([]byte) (int, kerr.Errno) { return 0, kerr.EPermission }

func (d *RTCDevice) Metadata() (vfs.Metadata, kerr.Errno) {
	return vfs.Metadata{
		InodeType: vfs.TypeCharDevice,
		Mode:      vfs.ModeChar | vfs.ModeUserRead,
		Rdev:      vfs.MakeDev(vfs.CharMajorMisc, vfs.MiscMinorRTC),
		Nlinks:    1,
	}, kerr.ENone
}

// TTYDevice is a controlling-terminal node (/dev/tty, /dev/ttyS0): a
// thin named wrapper over the same console state stdio reads and writes.
type TTYDevice struct {
	vfs.BaseFile
	console *Console
	minor   uint32
}

func NewTTYDevice(c *Console) *TTYDevice    { return &TTYDevice{console: c, minor: MinorTTY0} }
func NewTTYS0Device(c *Console) *TTYDevice  { return &TTYDevice{console: c, minor: MinorTTYS0} }
func NewConsoleDevice(c *Console) *TTYDevice {
	return &TTYDevice{console: c, minor: MinorConsole}
}

func (t *TTYDevice) Readable() bool { return true }
func (t *TTYDevice) Writable() bool { return true }

func (t *TTYDevice) Read(buf []byte) (int, kerr.Errno) {
	s := Stdin{console: t.console}
	return s.Read(buf)
}

func (t *TTYDevice) Write(buf []byte) (int, kerr.Errno) {
	if isValidUTF8(buf) {
		t.console.output.WriteString(string(buf))
	} else {
		for _, b := range buf {
			t.console.output.PutChar(b)
		}
	}
	return len(buf), kerr.ENone
}

func (t *TTYDevice) Metadata() (vfs.Metadata, kerr.Errno) {
	major := vfs.CharMajorTTY
	if t.minor == MinorConsole {
		major = vfs.CharMajorConsole
	}
	return vfs.Metadata{
		InodeType: vfs.TypeCharDevice,
		Mode:      vfs.ModeChar | vfs.ModeUserRead | vfs.ModeUserWrite,
		Rdev:      vfs.MakeDev(uint32(major), t.minor),
		Nlinks:    1,
	}, kerr.ENone
}

func (t *TTYDevice) Ioctl(request uint32, arg uintptr) (int64, kerr.Errno) {
	return 0, kerr.ENotSupported
}

func (t *TTYDevice) GetTermios() Termios  { return t.console.getTermios() }
func (t *TTYDevice) SetTermios(v Termios) { t.console.setTermios(v) }
func (t *TTYDevice) GetWinSize() WinSize  { return t.console.getWinSize() }
func (t *TTYDevice) SetWinSize(v WinSize) { t.console.setWinSize(v) }

var (
	_ vfs.File = NullDevice{}
	_ vfs.File = ZeroDevice{}
	_ vfs.File = (*RandomDevice)(nil)
	_ vfs.File = (*RTCDevice)(nil)
	_ vfs.File = (*TTYDevice)(nil)
)
