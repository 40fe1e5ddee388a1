package nvstore

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrShortIO is returned when a device transfers fewer bytes than asked.
	ErrShortIO = errors.New("nvstore: short read or write")
	// ErrOutOfRange is returned for accesses beyond the end of a device.
	ErrOutOfRange = errors.New("nvstore: access out of range")
)

// Device is a byte addressable non-volatile memory.
type Device interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Size() int64
	Close() error
}

func checkRange(d Device, n int, off int64) error {
	if off < 0 || off+int64(n) > d.Size() {
		return fmt.Errorf("%w: %d bytes at offset %d, device size %d", ErrOutOfRange, n, off, d.Size())
	}
	return nil
}

// MemDevice is an in-memory device. It starts erased (all 0xFF) and counts
// write calls, which makes it useful for tests and dry runs.
type MemDevice struct {
	mu     sync.Mutex
	data   []byte
	writes int
}

// NewMemDevice returns an erased device of size bytes.
func NewMemDevice(size int) *MemDevice {
	d := &MemDevice{data: make([]byte, size)}
	for i := range d.data {
		d.data[i] = 0xFF
	}
	return d
}

func (d *MemDevice) Size() int64 { return int64(len(d.data)) }

func (d *MemDevice) ReadAt(p []byte, off int64) (int, error) {
	if err := checkRange(d, len(p), off); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return copy(p, d.data[off:]), nil
}

func (d *MemDevice) WriteAt(p []byte, off int64) (int, error) {
	if err := checkRange(d, len(p), off); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes++
	return copy(d.data[off:], p), nil
}

// Writes returns the number of WriteAt calls so far.
func (d *MemDevice) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

// Bytes returns a copy of the device contents.
func (d *MemDevice) Bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.data...)
}

func (d *MemDevice) Close() error { return nil }
