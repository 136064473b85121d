package devfile

import (
	"sync"

	"github.com/nyx-os/nyx/kerr"
	"github.com/nyx-os/nyx/vfs"
)

// Termios flag bits this package understands, named after their Linux
// values so ioctl callers can pass real constants.
const (
	IGNCR  uint32 = 0x0080
	ICRNL  uint32 = 0x0100
	INLCR  uint32 = 0x0040
	ICANON uint32 = 0x0002
	ECHO   uint32 = 0x0008
)

// Termios is the subset of struct termios stdio's line discipline acts on.
type Termios struct {
	Iflag uint32
	Oflag uint32
	Cflag uint32
	Lflag uint32
}

// DefaultTermios matches a freshly allocated TTY in canonical, echoing
// mode with CR/LF translation on input.
var DefaultTermios = Termios{Iflag: ICRNL, Lflag: ICANON | ECHO}

// WinSize is struct winsize.
type WinSize struct {
	Row, Col, XPixel, YPixel uint16
}

// Console is the line-discipline state shared by every stdio File, and
// the seam to whatever actually renders the terminal.
type Console struct {
	mu      sync.Mutex
	termios Termios
	winsize WinSize
	input   ConsoleInput
	output  ConsoleOutput
}

// ConsoleInput supplies raw bytes one at a time; GetChar's second
// return is false when no byte is currently available.
type ConsoleInput interface {
	GetChar() (byte, bool)
}

// ConsoleOutput renders bytes written to stdout/stderr.
type ConsoleOutput interface {
	PutChar(byte)
	WriteString(string)
}

// NewConsole builds console state bound to the given I/O backends.
func NewConsole(input ConsoleInput, output ConsoleOutput) *Console {
	return &Console{
		termios: DefaultTermios,
		winsize: WinSize{Row: 24, Col: 80},
		input:   input,
		output:  output,
	}
}

func (c *Console) getTermios() Termios {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.termios
}

func (c *Console) setTermios(t Termios) { c.mu.Lock(); c.termios = t; c.mu.Unlock() }

func (c *Console) getWinSize() WinSize {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.winsize
}

func (c *Console) setWinSize(w WinSize) { c.mu.Lock(); c.winsize = w; c.mu.Unlock() }

// Stdin is the console's read end: canonical-mode line buffering with
// optional echo and CR/LF translation.
type Stdin struct {
	vfs.BaseFile
	console *Console
}

func NewStdin(c *Console) *Stdin { return &Stdin{console: c} }

func (s *Stdin) Readable() bool { return true }
func (s *Stdin) Writable() bool { return false }

func (s *Stdin) Read(buf []byte) (int, kerr.Errno) {
	term := s.console.getTermios()
	canonical := term.Lflag&ICANON != 0
	echo := term.Lflag&ECHO != 0

	count := 0
	for count < len(buf) {
		ch, ok := s.console.input.GetChar()
		if !ok {
			break
		}
		if term.Iflag&IGNCR != 0 && ch == '\r' {
			continue
		}
		if term.Iflag&ICRNL != 0 && ch == '\r' {
			ch = '\n'
		} else if term.Iflag&INLCR != 0 && ch == '\n' {
			ch = '\r'
		}
		if echo {
			s.console.output.PutChar(ch)
		}
		buf[count] = ch
		count++
		if !canonical || ch == '\n' {
			break
		}
	}
	return count, kerr.ENone
}

func (s *Stdin) Write([]byte) (int, kerr.Errno) { return 0, kerr.EPermission }

func (s *Stdin) Metadata() (vfs.Metadata, kerr.Errno) {
	return vfs.Metadata{InodeType: vfs.TypeCharDevice, Mode: vfs.ModeChar | vfs.ModeUserRead, Nlinks: 1}, kerr.ENone
}

func (s *Stdin) Ioctl(request uint32, arg uintptr) (int64, kerr.Errno) {
	return 0, kerr.ENotSupported
}

// GetTermios/SetTermios/GetWinSize/SetWinSize expose TCGETS/TCSETS/
// TIOCGWINSZ/TIOCSWINSZ; the syscall layer marshals these to and from
// user memory rather than Ioctl touching raw pointers directly.
func (s *Stdin) GetTermios() Termios       { return s.console.getTermios() }
func (s *Stdin) SetTermios(t Termios)      { s.console.setTermios(t) }
func (s *Stdin) GetWinSize() WinSize       { return s.console.getWinSize() }
func (s *Stdin) SetWinSize(w WinSize)      { s.console.setWinSize(w) }

// stdout and stderr behave identically: unbuffered console writes.
type consoleWriter struct {
	vfs.BaseFile
	console *Console
	inodeNo uint64
}

func NewStdout(c *Console) *consoleWriter { return &consoleWriter{console: c, inodeNo: 1} }
func NewStderr(c *Console) *consoleWriter { return &consoleWriter{console: c, inodeNo: 2} }

func (w *consoleWriter) Readable() bool { return false }
func (w *consoleWriter) Writable() bool { return true }

func (w *consoleWriter) Read([]byte) (int, kerr.Errno) { return 0, kerr.EPermission }

func (w *consoleWriter) Write(buf []byte) (int, kerr.Errno) {
	if isValidUTF8(buf) {
		w.console.output.WriteString(string(buf))
	} else {
		for _, b := range buf {
			w.console.output.PutChar(b)
		}
	}
	return len(buf), kerr.ENone
}

func (w *consoleWriter) Metadata() (vfs.Metadata, kerr.Errno) {
	return vfs.Metadata{InodeNo: w.inodeNo, InodeType: vfs.TypeCharDevice, Mode: vfs.ModeChar | vfs.ModeUserWrite, Nlinks: 1}, kerr.ENone
}

func (w *consoleWriter) Ioctl(request uint32, arg uintptr) (int64, kerr.Errno) {
	return 0, kerr.ENotSupported
}

func (w *consoleWriter) GetTermios() Termios  { return w.console.getTermios() }
func (w *consoleWriter) SetTermios(t Termios) { w.console.setTermios(t) }
func (w *consoleWriter) GetWinSize() WinSize  { return w.console.getWinSize() }
func (w *consoleWriter) SetWinSize(s WinSize) { w.console.setWinSize(s) }

func isValidUTF8(b []byte) bool {
	i := 0
	for i < len(b) {
		c := b[i]
		switch {
		case c < 0x80:
			i++
		case c&0xE0 == 0xC0:
			if i+1 >= len(b) || b[i+1]&0xC0 != 0x80 {
				return false
			}
			i += 2
		case c&0xF0 == 0xE0:
			if i+2 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 {
				return false
			}
			i += 3
		case c&0xF8 == 0xF0:
			if i+3 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 || b[i+3]&0xC0 != 0x80 {
				return false
			}
			i += 4
		default:
			return false
		}
	}
	return true
}

var (
	_ vfs.File = (*Stdin)(nil)
	_ vfs.File = (*consoleWriter)(nil)
)
