// Package config loads the haldexd TOML configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/notnil/haldex/canbus"
	"github.com/notnil/haldex/internal/logging"
	"github.com/notnil/haldex/nvstore"
)

// Bus configures one CAN interface.
type Bus struct {
	Driver string
	Device string
	// Baud is the serial speed of SLCAN adapters.
	Baud int
}

// Options converts b into driver options for canbus.Open.
func (b Bus) Options() canbus.OpenOptions {
	return canbus.OpenOptions{SLCAN: canbus.SLCANOptions{Baud: b.Baud}}
}

// Storage configures the configuration store device.
type Storage struct {
	Driver   string
	Path     string
	Size     int64
	I2CBus   string
	I2CAddr  uint16
	PageSize int
}

// Options converts s into nvstore options.
func (s Storage) Options() nvstore.Options {
	return nvstore.Options{
		Driver:   s.Driver,
		Path:     s.Path,
		Size:     s.Size,
		I2CBus:   s.I2CBus,
		I2CAddr:  s.I2CAddr,
		PageSize: s.PageSize,
	}
}

// Config is the daemon configuration.
type Config struct {
	LogLevel       string
	LogFormat      string
	FlushInterval  time.Duration
	TxTimeout      time.Duration
	StatusInterval time.Duration
	TraceFrames    bool

	Coupling Bus
	Vehicle  Bus
	Storage  Storage
}

// DefaultConfig returns the configuration used for keys a file leaves out.
func DefaultConfig() Config {
	return Config{
		LogLevel:      "info",
		LogFormat:     "console",
		FlushInterval: time.Second,
		TxTimeout:     5 * time.Millisecond,
		Coupling:      Bus{Driver: canbus.DriverSocketCAN, Device: "can0", Baud: 115200},
		Vehicle:       Bus{Driver: canbus.DriverSocketCAN, Device: "can1", Baud: 115200},
		Storage: Storage{
			Driver:   nvstore.DriverFile,
			Path:     "/var/lib/haldex/config.bin",
			Size:     64,
			I2CBus:   "/dev/i2c-1",
			I2CAddr:  nvstore.DefaultEEPROMAddr,
			PageSize: 8,
		},
	}
}

type fileBus struct {
	Driver string `toml:"driver"`
	Device string `toml:"device"`
	Baud   int    `toml:"baud"`
}

type fileStorage struct {
	Driver   string `toml:"driver"`
	Path     string `toml:"path"`
	Size     int64  `toml:"size"`
	I2CBus   string `toml:"i2c_bus"`
	I2CAddr  int64  `toml:"i2c_addr"`
	PageSize int    `toml:"page_size"`
}

type fileConfig struct {
	LogLevel       string      `toml:"log_level"`
	LogFormat      string      `toml:"log_format"`
	FlushInterval  string      `toml:"flush_interval"`
	TxTimeout      string      `toml:"tx_timeout"`
	StatusInterval string      `toml:"status_interval"`
	TraceFrames    bool        `toml:"trace_frames"`
	Coupling       fileBus     `toml:"coupling"`
	Vehicle        fileBus     `toml:"vehicle"`
	Storage        fileStorage `toml:"storage"`
}

// Load reads path and overlays it on DefaultConfig. The result is validated.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return build(raw, meta)
}

// Parse is Load for in-memory TOML.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return build(raw, meta)
}

func build(raw fileConfig, meta toml.MetaData) (Config, error) {
	cfg := DefaultConfig()

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("log_format") {
		cfg.LogFormat = strings.TrimSpace(raw.LogFormat)
	}
	for _, d := range []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"flush_interval", raw.FlushInterval, &cfg.FlushInterval},
		{"tx_timeout", raw.TxTimeout, &cfg.TxTimeout},
		{"status_interval", raw.StatusInterval, &cfg.StatusInterval},
	} {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}
	if meta.IsDefined("trace_frames") {
		cfg.TraceFrames = raw.TraceFrames
	}

	overlayBus(meta, "coupling", raw.Coupling, &cfg.Coupling)
	overlayBus(meta, "vehicle", raw.Vehicle, &cfg.Vehicle)

	st := raw.Storage
	if meta.IsDefined("storage", "driver") {
		cfg.Storage.Driver = strings.TrimSpace(st.Driver)
	}
	if meta.IsDefined("storage", "path") {
		cfg.Storage.Path = strings.TrimSpace(st.Path)
	}
	if meta.IsDefined("storage", "size") {
		cfg.Storage.Size = st.Size
	}
	if meta.IsDefined("storage", "i2c_bus") {
		cfg.Storage.I2CBus = strings.TrimSpace(st.I2CBus)
	}
	if meta.IsDefined("storage", "i2c_addr") {
		if st.I2CAddr < 0x08 || st.I2CAddr > 0x77 {
			return Config{}, fmt.Errorf("storage.i2c_addr: 0x%X is not a 7-bit device address", st.I2CAddr)
		}
		cfg.Storage.I2CAddr = uint16(st.I2CAddr)
	}
	if meta.IsDefined("storage", "page_size") {
		cfg.Storage.PageSize = st.PageSize
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overlayBus(meta toml.MetaData, key string, raw fileBus, dst *Bus) {
	if meta.IsDefined(key, "driver") {
		dst.Driver = strings.ToLower(strings.TrimSpace(raw.Driver))
	}
	if meta.IsDefined(key, "device") {
		dst.Device = strings.TrimSpace(raw.Device)
	}
	if meta.IsDefined(key, "baud") {
		dst.Baud = raw.Baud
	}
}

// Validate checks every field and reports all problems found.
func (c Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format: %q is not console or json", c.LogFormat))
	}
	if c.FlushInterval <= 0 {
		errs = append(errs, fmt.Errorf("flush_interval: must be positive, got %s", c.FlushInterval))
	}
	if c.TxTimeout <= 0 {
		errs = append(errs, fmt.Errorf("tx_timeout: must be positive, got %s", c.TxTimeout))
	}
	if c.StatusInterval < 0 {
		errs = append(errs, fmt.Errorf("status_interval: must not be negative, got %s", c.StatusInterval))
	}
	errs = append(errs, c.Coupling.validate("coupling")...)
	errs = append(errs, c.Vehicle.validate("vehicle")...)
	if c.Coupling.Driver == c.Vehicle.Driver && c.Coupling.Device == c.Vehicle.Device {
		errs = append(errs, errors.New("coupling and vehicle: must be different interfaces"))
	}
	errs = append(errs, c.Storage.validate()...)
	return errors.Join(errs...)
}

func (b Bus) validate(key string) []error {
	var errs []error
	switch b.Driver {
	case canbus.DriverSocketCAN, canbus.DriverBrutella, canbus.DriverLoopback:
	case canbus.DriverSLCAN:
		if b.Baud <= 0 {
			errs = append(errs, fmt.Errorf("%s.baud: must be positive, got %d", key, b.Baud))
		}
	default:
		errs = append(errs, fmt.Errorf("%s.driver: unknown driver %q", key, b.Driver))
	}
	if b.Device == "" {
		errs = append(errs, fmt.Errorf("%s.device: must be set", key))
	}
	return errs
}

func (s Storage) validate() []error {
	var errs []error
	switch s.Driver {
	case nvstore.DriverFile:
		if s.Path == "" {
			errs = append(errs, errors.New("storage.path: must be set for the file driver"))
		}
	case nvstore.DriverEEPROM:
		if s.I2CBus == "" {
			errs = append(errs, errors.New("storage.i2c_bus: must be set for the eeprom driver"))
		}
		if s.PageSize <= 0 {
			errs = append(errs, fmt.Errorf("storage.page_size: must be positive, got %d", s.PageSize))
		}
	case nvstore.DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", s.Driver))
	}
	if s.Size < nvstore.MinSize {
		errs = append(errs, fmt.Errorf("storage.size: need at least %d bytes, got %d", nvstore.MinSize, s.Size))
	}
	return errs
}
