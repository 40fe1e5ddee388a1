package nvstore

import "fmt"

// Storage drivers accepted by Open.
const (
	DriverFile   = "file"
	DriverEEPROM = "eeprom"
	DriverMemory = "memory"
)

// Options selects and configures a device for Open.
type Options struct {
	Driver   string
	Path     string
	Size     int64
	I2CBus   string
	I2CAddr  uint16
	PageSize int
}

// Open opens the device described by opts.
func Open(opts Options) (Device, error) {
	if opts.Size < MinSize {
		return nil, fmt.Errorf("%w: size %d below %d", ErrOutOfRange, opts.Size, MinSize)
	}
	switch opts.Driver {
	case DriverFile:
		d, err := OpenFile(opts.Path, opts.Size)
		if err != nil {
			return nil, err
		}
		return d, nil
	case DriverEEPROM:
		addr := opts.I2CAddr
		if addr == 0 {
			addr = DefaultEEPROMAddr
		}
		d, err := OpenEEPROM(opts.I2CBus, addr, opts.Size, opts.PageSize)
		if err != nil {
			return nil, err
		}
		return d, nil
	case DriverMemory:
		return NewMemDevice(int(opts.Size)), nil
	default:
		return nil, fmt.Errorf("nvstore: unknown driver %q", opts.Driver)
	}
}
