package nvstore

import (
	"bytes"
	"fmt"

	"github.com/notnil/haldex/haldex"
)

const (
	sentinelOffset = 0
	imageOffset    = 4

	sentinelErased = 0xFF
	sentinelValid  = 0x00
)

// MinSize is the smallest device a Store accepts.
const MinSize = imageOffset + haldex.ConfigurationSize

// Store loads and persists the interceptor configuration. It remembers the
// last image written or read so FlushIfChanged only touches the device when
// the configuration actually changed. A Store is not safe for concurrent use.
type Store struct {
	dev  Device
	last []byte
}

// NewStore returns a store on dev.
func NewStore(dev Device) (*Store, error) {
	if dev.Size() < MinSize {
		return nil, fmt.Errorf("%w: device has %d bytes, need %d", ErrOutOfRange, dev.Size(), MinSize)
	}
	return &Store{dev: dev}, nil
}

// Load reads the stored configuration. An erased device is initialised with
// a zero configuration, which is returned.
func (s *Store) Load() (haldex.Configuration, error) {
	var cfg haldex.Configuration
	sentinel := make([]byte, 1)
	if err := s.readFull(sentinel, sentinelOffset); err != nil {
		return cfg, err
	}
	if sentinel[0] == sentinelErased {
		img, _ := cfg.MarshalBinary()
		if err := s.writeFull([]byte{sentinelValid}, sentinelOffset); err != nil {
			return cfg, err
		}
		if err := s.writeFull(img, imageOffset); err != nil {
			return cfg, err
		}
		s.last = img
		return cfg, nil
	}

	img := make([]byte, haldex.ConfigurationSize)
	if err := s.readFull(img, imageOffset); err != nil {
		return cfg, err
	}
	if err := cfg.UnmarshalBinary(img); err != nil {
		return cfg, err
	}
	s.last = img
	return cfg, nil
}

// FlushIfChanged writes cfg if its image differs from the last one persisted
// and reports whether it wrote. After a failed write the next call retries.
func (s *Store) FlushIfChanged(cfg haldex.Configuration) (bool, error) {
	img, err := cfg.MarshalBinary()
	if err != nil {
		return false, err
	}
	if s.last != nil && bytes.Equal(img, s.last) {
		return false, nil
	}
	if err := s.writeFull(img, imageOffset); err != nil {
		return false, err
	}
	s.last = img
	return true, nil
}

func (s *Store) readFull(p []byte, off int64) error {
	n, err := s.dev.ReadAt(p, off)
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("%w: read %d of %d bytes at %d", ErrShortIO, n, len(p), off)
	}
	return nil
}

func (s *Store) writeFull(p []byte, off int64) error {
	n, err := s.dev.WriteAt(p, off)
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("%w: wrote %d of %d bytes at %d", ErrShortIO, n, len(p), off)
	}
	return nil
}
