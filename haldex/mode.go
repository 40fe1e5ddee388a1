package haldex

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode selects how the interceptor steers the coupling unit.
type Mode uint8

const (
	// Stock relays frames unmodified.
	Stock Mode = iota
	// Forward keeps the coupling open by hiding pedal information.
	Forward
	// FiftyFifty requests full lock while the pedal is above the threshold.
	FiftyFifty
	// Custom interpolates the lock target from the lockpoint curve.
	Custom
)

func (m Mode) String() string {
	switch m {
	case Stock:
		return "stock"
	case Forward:
		return "fwd"
	case FiftyFifty:
		return "5050"
	case Custom:
		return "custom"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// Rewrites reports whether frames are rewritten in this mode.
func (m Mode) Rewrites() bool {
	return m == FiftyFifty || m == Custom
}

// ParseMode accepts a mode name or its numeric wire value.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stock":
		return Stock, nil
	case "fwd", "forward":
		return Forward, nil
	case "5050", "fiftyfifty", "50/50":
		return FiftyFifty, nil
	case "custom":
		return Custom, nil
	}
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
	if err != nil || n > uint64(Custom) {
		return 0, fmt.Errorf("haldex: unknown mode %q", s)
	}
	return Mode(n), nil
}
