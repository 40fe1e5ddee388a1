package canbus

import (
	"fmt"
	"strings"
	"sync"
)

// Driver names accepted by Open.
const (
	DriverSocketCAN = "socketcan"
	DriverBrutella  = "brutella"
	DriverSLCAN     = "slcan"
	DriverLoopback  = "loopback"
)

// OpenOptions carries driver specific settings for Open.
type OpenOptions struct {
	// SLCAN settings, used by DriverSLCAN only.
	SLCAN SLCANOptions
}

var (
	loopbackMu    sync.Mutex
	loopbackBuses = map[string]*LoopbackBus{}
)

// Loopback returns the process wide loopback bus registered under name,
// creating it on first use. Endpoints opened by Open with DriverLoopback and
// the same device name share it.
func Loopback(name string) *LoopbackBus {
	loopbackMu.Lock()
	defer loopbackMu.Unlock()
	b, ok := loopbackBuses[name]
	if !ok {
		b = NewLoopbackBus()
		loopbackBuses[name] = b
	}
	return b
}

// Open connects to device using the named driver.
func Open(driver, device string, opts OpenOptions) (Bus, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSocketCAN, "":
		return DialSocketCAN(device)
	case DriverBrutella:
		return DialBrutella(device)
	case DriverSLCAN:
		return DialSLCAN(device, opts.SLCAN)
	case DriverLoopback:
		return Loopback(device).Open(), nil
	default:
		return nil, fmt.Errorf("canbus: unknown driver %q", driver)
	}
}
