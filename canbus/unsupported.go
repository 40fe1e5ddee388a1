//go:build !linux

package canbus

import "errors"

var errLinuxOnly = errors.New("canbus: driver requires linux")

// DialSocketCAN is only available on Linux.
func DialSocketCAN(iface string) (Bus, error) { return nil, errLinuxOnly }

// DialBrutella is only available on Linux.
func DialBrutella(iface string) (Bus, error) { return nil, errLinuxOnly }
