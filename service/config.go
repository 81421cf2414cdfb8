// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package service

import (
	"fmt"
	"time"

	"github.com/ZaparooProject/go-xbee"
)

// RecoveryConfig controls how a lost transport is reopened.
type RecoveryConfig struct {
	// MaxAttempts is the number of reopen attempts before the runner
	// stops with the last error. Default: 3
	MaxAttempts int

	// Backoff is the delay between reopen attempts. Default: 500ms
	Backoff time.Duration
}

// DefaultRecoveryConfig returns the default reconnection settings.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		MaxAttempts: 3,
		Backoff:     500 * time.Millisecond,
	}
}

// Config holds Runner settings.
type Config struct {
	// TickInterval is how often Network.Service runs.
	TickInterval time.Duration

	// MaxElapsed caps the time passed to a single Service call. A larger
	// gap between ticks means the host slept or the clock jumped, and
	// aging transactions by the full gap would time out every one of them.
	MaxElapsed time.Duration

	// ReadBufferSize is the chunk size of transport reads.
	ReadBufferSize int

	// Recovery configures reopening the transport after a fatal error.
	Recovery RecoveryConfig
}

// DefaultConfig returns the default runner configuration.
func DefaultConfig() *Config {
	return &Config{
		TickInterval:   10 * time.Millisecond,
		MaxElapsed:     time.Second,
		ReadBufferSize: 256,
		Recovery:       DefaultRecoveryConfig(),
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.TickInterval <= 0:
		return fmt.Errorf("%w: tick interval %v must be positive", xbee.ErrInvalidConfig, c.TickInterval)
	case c.MaxElapsed < c.TickInterval:
		return fmt.Errorf("%w: max elapsed %v below tick interval %v", xbee.ErrInvalidConfig, c.MaxElapsed, c.TickInterval)
	case c.ReadBufferSize < 1:
		return fmt.Errorf("%w: read buffer size %d must be positive", xbee.ErrInvalidConfig, c.ReadBufferSize)
	default:
		return nil
	}
}

// DetectSleep reports whether elapsed is too long to be a normal tick.
func (c *Config) DetectSleep(elapsed time.Duration) bool {
	return elapsed > c.MaxElapsed
}
