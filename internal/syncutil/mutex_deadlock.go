//go:build deadlock

// Package syncutil provides the mutex used to guard interceptor state.
// This file is compiled when building with -tags=deadlock.
package syncutil

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

func init() {
	// A frame is routed in microseconds; anything held this long is stuck.
	deadlock.Opts.DeadlockTimeout = 2 * time.Second
}

// Mutex wraps deadlock.Mutex for deadlock detection.
type Mutex struct {
	deadlock.Mutex
}
