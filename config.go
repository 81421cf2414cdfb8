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

package xbee

import (
	"fmt"
	"time"

	"github.com/ZaparooProject/go-xbee/internal/frame"
)

// Config holds the tunables of a Network. Use DefaultConfig and override
// fields as needed; zero values are not filled in.
type Config struct {
	// RxBufferSize is the backing size of the receive ring buffer. One
	// slot is kept free, so it holds RxBufferSize-1 bytes.
	RxBufferSize int

	// MaxTransactions is the number of transaction slots allocated up
	// front. The pool grows past it when exhausted.
	MaxTransactions int

	// TransactionTimeout is how long a sent transaction waits for a reply
	// before it times out.
	TransactionTimeout time.Duration

	// TransactionRetries is how many times a timed out transaction is
	// resent before it fails.
	TransactionRetries int

	// MaxFrameCount is the highest frame id assigned before wrapping to 1.
	MaxFrameCount int

	// MaxPayloadBytes is the RF data budget of one transmit request.
	MaxPayloadBytes int

	// FramesPerTick caps how many frames Service decodes per call. Zero or
	// less drains the receive buffer.
	FramesPerTick int

	// APIMode selects escaped or unescaped framing.
	APIMode APIMode

	// DiscoveryTimeout ends a node discovery that never sees its empty
	// terminating reply.
	DiscoveryTimeout time.Duration

	// RetryOnTimeout resends timed out transactions while retries remain.
	// Off by default: the caller decides whether to call Retry.
	RetryOnTimeout bool

	// AbortChainOnTimeout fails the links after a timed out transaction
	// with a chain error. Otherwise the chain halts and its remaining links
	// keep their slots until Chain.Abort.
	AbortChainOnTimeout bool

	// Debug enables console debug output.
	Debug bool
}

// DefaultConfig returns the default network configuration
func DefaultConfig() *Config {
	return &Config{
		RxBufferSize:       2048,
		MaxTransactions:    50,
		TransactionTimeout: 300 * time.Millisecond,
		TransactionRetries: 2,
		MaxFrameCount:      255,
		MaxPayloadBytes:    73,
		FramesPerTick:      1,
		APIMode:            ModeAPI,
		DiscoveryTimeout:   13 * time.Second,
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.MaxTransactions < 1:
		return fmt.Errorf("%w: max transactions %d must be positive", ErrInvalidConfig, c.MaxTransactions)
	case c.TransactionTimeout <= 0:
		return fmt.Errorf("%w: transaction timeout %v must be positive", ErrInvalidConfig, c.TransactionTimeout)
	case c.TransactionRetries < 0:
		return fmt.Errorf("%w: transaction retries %d must not be negative", ErrInvalidConfig, c.TransactionRetries)
	case c.MaxFrameCount < 1 || c.MaxFrameCount > 255:
		return fmt.Errorf("%w: max frame count %d must be within 1..255", ErrInvalidConfig, c.MaxFrameCount)
	case c.MaxPayloadBytes < 1:
		return fmt.Errorf("%w: max payload bytes %d must be positive", ErrInvalidConfig, c.MaxPayloadBytes)
	case c.APIMode != ModeAPI && c.APIMode != ModeEscaped:
		return fmt.Errorf("%w: %v", ErrNotAPIMode, c.APIMode)
	case c.DiscoveryTimeout <= 0:
		return fmt.Errorf("%w: discovery timeout %v must be positive", ErrInvalidConfig, c.DiscoveryTimeout)
	}

	// The ring keeps one slot free, so it holds RxBufferSize-1 bytes.
	need := frame.MaxEncodedLength(frame.MaxInboundLength(c.MaxPayloadBytes), c.APIMode.Escaped())
	if c.RxBufferSize-1 < need {
		return fmt.Errorf("%w: rx buffer size %d cannot hold a %d byte %v frame",
			ErrInvalidConfig, c.RxBufferSize, need, c.APIMode)
	}
	return nil
}
