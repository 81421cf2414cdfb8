//go:build deadlock

package syncutil

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

func init() {
	// A service tick holds the network lock for microseconds; anything
	// near a second is a stuck callback.
	deadlock.Opts.DeadlockTimeout = 2 * time.Second
}

// Mutex reports lock waits longer than DeadlockTimeout.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex is the read/write variant of Mutex.
type RWMutex struct {
	deadlock.RWMutex
}
