package main

import (
	"os"

	"github.com/nyx-os/nyx/kerr"
)

// fileDevice adapts a host file to ext4fs.Device, translating the
// standard library's error into the kernel's kerr.Errno the way every
// other backend in this tree reports failure.
type fileDevice struct {
	f         *os.File
	blockSize int
	blocks    int64
}

// createFileDevice truncates or extends path to blocks*blockSize bytes
// and returns a Device over it.
func createFileDevice(path string, blocks int64, blockSize int) (*fileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(blocks * int64(blockSize)); err != nil {
		f.Close()
		return nil, err
	}
	return &fileDevice{f: f, blockSize: blockSize, blocks: blocks}, nil
}

func (d *fileDevice) ReadBlock(blockNo int64, buf []byte) kerr.Errno {
	if blockNo < 0 || blockNo >= d.blocks {
		return kerr.EInvalidArg
	}
	if _, err := d.f.ReadAt(buf, blockNo*int64(d.blockSize)); err != nil {
		return errToErrno(err)
	}
	return kerr.ENone
}

func (d *fileDevice) WriteBlock(blockNo int64, buf []byte) kerr.Errno {
	if blockNo < 0 || blockNo >= d.blocks {
		return kerr.EInvalidArg
	}
	if _, err := d.f.WriteAt(buf, blockNo*int64(d.blockSize)); err != nil {
		return errToErrno(err)
	}
	return kerr.ENone
}

func (d *fileDevice) BlockSize() int    { return d.blockSize }
func (d *fileDevice) BlockCount() int64 { return d.blocks }

func (d *fileDevice) Flush() kerr.Errno {
	if err := d.f.Sync(); err != nil {
		return errToErrno(err)
	}
	return kerr.ENone
}

func (d *fileDevice) Close() error { return d.f.Close() }

// errToErrno maps a host I/O error to the closest kerr.Errno; none of
// the callers here distinguish finer than "the host file op failed".
func errToErrno(err error) kerr.Errno {
	if err == nil {
		return kerr.ENone
	}
	if os.IsNotExist(err) {
		return kerr.ENotFound
	}
	return kerr.EIo
}
