package sim

import (
	"errors"
	"io"
)

// Storage backs the simulated platters. *os.File satisfies it, which lets a
// disk image stand in for a drive.
type Storage interface {
	io.ReaderAt
	io.WriterAt
}

// Memory is an in-memory Storage.
type Memory []byte

// NewMemory returns a zeroed store of the given number of 512-byte sectors.
func NewMemory(sectors int) Memory {
	return make(Memory, sectors*512)
}

// ReadAt implements io.ReaderAt.
func (m Memory) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	if off >= int64(len(m)) {
		return 0, io.EOF
	}
	n := copy(p, m[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt. Writes past the end fail; the store does
// not grow.
func (m Memory) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(m)) {
		return 0, errors.New("write past end of store")
	}
	return copy(m[off:], p), nil
}

// Size returns the store size in bytes.
func (m Memory) Size() int64 {
	return int64(len(m))
}
