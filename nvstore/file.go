package nvstore

import (
	"bytes"
	"fmt"
	"os"
)

// FileDevice keeps a device image in a regular file. Every write is synced
// before it returns.
type FileDevice struct {
	f    *os.File
	size int64
}

// OpenFile opens or creates the image at path. A missing or short file is
// extended to size with 0xFF so it reads like an erased EEPROM.
func OpenFile(path string, size int64) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("nvstore: open %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("nvstore: stat %s: %w", path, err)
	}
	if cur := st.Size(); cur < size {
		fill := bytes.Repeat([]byte{0xFF}, int(size-cur))
		if _, err := f.WriteAt(fill, cur); err != nil {
			f.Close()
			return nil, fmt.Errorf("nvstore: erase %s: %w", path, err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, fmt.Errorf("nvstore: sync %s: %w", path, err)
		}
	}
	return &FileDevice{f: f, size: size}, nil
}

func (d *FileDevice) Size() int64 { return d.size }

func (d *FileDevice) ReadAt(p []byte, off int64) (int, error) {
	if err := checkRange(d, len(p), off); err != nil {
		return 0, err
	}
	n, err := d.f.ReadAt(p, off)
	if err != nil {
		return n, fmt.Errorf("nvstore: read %s: %w", d.f.Name(), err)
	}
	return n, nil
}

func (d *FileDevice) WriteAt(p []byte, off int64) (int, error) {
	if err := checkRange(d, len(p), off); err != nil {
		return 0, err
	}
	n, err := d.f.WriteAt(p, off)
	if err != nil {
		return n, fmt.Errorf("nvstore: write %s: %w", d.f.Name(), err)
	}
	if err := d.f.Sync(); err != nil {
		return n, fmt.Errorf("nvstore: sync %s: %w", d.f.Name(), err)
	}
	return n, nil
}

func (d *FileDevice) Close() error { return d.f.Close() }
