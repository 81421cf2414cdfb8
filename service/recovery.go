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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-xbee"
	"github.com/ZaparooProject/go-xbee/internal/syncutil"
)

// ErrNoReopen is returned by a Recoverer without a reopen function.
var ErrNoReopen = errors.New("no reopen function")

// ReopenFunc opens a fresh transport to the radio, typically by calling
// the same constructor that opened the first one.
type ReopenFunc func(ctx context.Context) (xbee.Transport, error)

// Recoverer reopens a transport with a fixed backoff between attempts.
type Recoverer struct {
	reopen      ReopenFunc
	backoff     time.Duration
	maxAttempts int
	attempts    int
	mu          syncutil.Mutex
}

// NewRecoverer creates a Recoverer. Non-positive settings fall back to
// DefaultRecoveryConfig.
func NewRecoverer(reopen ReopenFunc, cfg RecoveryConfig) *Recoverer {
	def := DefaultRecoveryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}
	return &Recoverer{
		reopen:      reopen,
		backoff:     cfg.Backoff,
		maxAttempts: cfg.MaxAttempts,
	}
}

// Reconnect calls the reopen function until it succeeds, attempts run out
// or ctx ends.
func (rc *Recoverer) Reconnect(ctx context.Context) (xbee.Transport, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.reopen == nil {
		return nil, ErrNoReopen
	}

	var lastErr error
	for attempt := range rc.maxAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("reconnect cancelled: %w", ctx.Err())
			case <-time.After(rc.backoff):
			}
		}

		rc.attempts++
		t, err := rc.reopen(ctx)
		if err == nil {
			xbee.Debugf("service: transport reopened on attempt %d", attempt+1)
			return t, nil
		}
		lastErr = err
		xbee.Debugf("service: reopen attempt %d/%d failed: %v", attempt+1, rc.maxAttempts, err)
	}
	return nil, fmt.Errorf("reconnect failed after %d attempts: %w", rc.maxAttempts, lastErr)
}

// Attempts returns the total number of reopen calls made.
func (rc *Recoverer) Attempts() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.attempts
}
