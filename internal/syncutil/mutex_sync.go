//go:build !deadlock

package syncutil

import "sync"

// Mutex is a sync.Mutex in regular builds.
//
//nolint:gocritic // embedded so Lock and Unlock are promoted
type Mutex struct{ sync.Mutex }

// RWMutex is a sync.RWMutex in regular builds.
//
//nolint:gocritic // embedded so the read and write locks are promoted
type RWMutex struct{ sync.RWMutex }
