package nvstore

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// DefaultEEPROMAddr is the 7-bit address of a 24Cxx with A0..A2 tied low.
	DefaultEEPROMAddr = 0x50

	defaultPageSize   = 8
	defaultWriteCycle = 5 * time.Millisecond
	eepromClock       = 400 * physic.KiloHertz
)

// EEPROM is a 24Cxx series serial EEPROM on an I2C bus. Parts up to 256
// bytes take a one byte memory address, larger parts two bytes.
type EEPROM struct {
	dev      *i2c.Dev
	bus      i2c.BusCloser
	size     int64
	pageSize int

	// WriteCycle is the time the part needs to commit one page.
	WriteCycle time.Duration
}

// NewEEPROM wraps an already opened bus. pageSize <= 0 selects 8 bytes.
func NewEEPROM(bus i2c.Bus, addr uint16, size int64, pageSize int) *EEPROM {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	e := &EEPROM{
		dev:        &i2c.Dev{Addr: addr, Bus: bus},
		size:       size,
		pageSize:   pageSize,
		WriteCycle: defaultWriteCycle,
	}
	if bc, ok := bus.(i2c.BusCloser); ok {
		e.bus = bc
	}
	return e
}

// OpenEEPROM initialises the periph host drivers and opens busName, for
// example "/dev/i2c-1" or "1".
func OpenEEPROM(busName string, addr uint16, size int64, pageSize int) (*EEPROM, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("nvstore: initialise periph host: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("nvstore: open i2c bus %s: %w", busName, err)
	}
	_ = bus.SetSpeed(eepromClock)
	return NewEEPROM(bus, addr, size, pageSize), nil
}

func (e *EEPROM) Size() int64 { return e.size }

func (e *EEPROM) address(off int64) []byte {
	if e.size <= 256 {
		return []byte{byte(off)}
	}
	return []byte{byte(off >> 8), byte(off)}
}

// ReadAt performs a random read starting at off.
func (e *EEPROM) ReadAt(p []byte, off int64) (int, error) {
	if err := checkRange(e, len(p), off); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := e.dev.Tx(e.address(off), p); err != nil {
		return 0, fmt.Errorf("nvstore: eeprom read at %d: %w", off, err)
	}
	return len(p), nil
}

// WriteAt splits p at page boundaries and waits one write cycle after each
// page.
func (e *EEPROM) WriteAt(p []byte, off int64) (int, error) {
	if err := checkRange(e, len(p), off); err != nil {
		return 0, err
	}
	written := 0
	for written < len(p) {
		at := off + int64(written)
		room := e.pageSize - int(at%int64(e.pageSize))
		chunk := len(p) - written
		if chunk > room {
			chunk = room
		}
		msg := append(e.address(at), p[written:written+chunk]...)
		if err := e.dev.Tx(msg, nil); err != nil {
			return written, fmt.Errorf("nvstore: eeprom write at %d: %w", at, err)
		}
		written += chunk
		time.Sleep(e.WriteCycle)
	}
	return written, nil
}

func (e *EEPROM) Close() error {
	if e.bus == nil {
		return nil
	}
	return e.bus.Close()
}
