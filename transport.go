// go-xbee
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-xbee.
//
// go-xbee is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-xbee is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-xbee; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package xbee

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// Sink receives encoded frames from the network. The slice is reused after
// Send returns, so implementations must copy what they keep.
type Sink interface {
	Send(frame []byte) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(frame []byte) error

// Send implements Sink.
func (f SinkFunc) Send(frame []byte) error {
	return f(frame)
}

// Transport is a byte link to a radio.
type Transport interface {
	Sink

	// Read copies received bytes into p. A read timeout returns 0, nil.
	Read(p []byte) (int, error)

	// Close closes the transport connection
	Close() error

	// SetTimeout sets the read timeout for the transport
	SetTimeout(timeout time.Duration) error

	// IsConnected returns true if the transport is connected
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// TransportType identifies the physical link.
type TransportType string

const (
	// TransportUART represents UART/serial transport.
	TransportUART TransportType = "uart"
	// TransportSPI represents SPI bus transport.
	TransportSPI TransportType = "spi"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// TransportWithRetry retries transient send failures with backoff.
type TransportWithRetry struct {
	transport Transport
	config    *RetryConfig
}

// NewTransportWithRetry wraps transport. A nil config uses DefaultRetryConfig.
func NewTransportWithRetry(transport Transport, config *RetryConfig) *TransportWithRetry {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &TransportWithRetry{
		transport: transport,
		config:    config,
	}
}

// Send implements Sink.
func (t *TransportWithRetry) Send(frame []byte) error {
	return RetryWithConfig(context.Background(), t.config, func() error {
		err := t.transport.Send(frame)
		if err == nil {
			return nil
		}
		if IsFatal(err) {
			return NewTransportError("send", string(t.transport.Type()), err, ErrorTypePermanent)
		}
		return NewTransportError("send", string(t.transport.Type()), err, ErrorTypeTransient)
	})
}

// Read reads from the wrapped transport.
func (t *TransportWithRetry) Read(p []byte) (int, error) {
	return t.transport.Read(p) //nolint:wrapcheck // passthrough
}

// Close closes the wrapped transport.
func (t *TransportWithRetry) Close() error {
	return t.transport.Close() //nolint:wrapcheck // passthrough
}

// SetTimeout sets the read timeout of the wrapped transport.
func (t *TransportWithRetry) SetTimeout(timeout time.Duration) error {
	return t.transport.SetTimeout(timeout) //nolint:wrapcheck // passthrough
}

// IsConnected reports whether the wrapped transport is connected.
func (t *TransportWithRetry) IsConnected() bool {
	return t.transport.IsConnected()
}

// Type returns the wrapped transport type.
func (t *TransportWithRetry) Type() TransportType {
	return t.transport.Type()
}

// MockTransport records sent frames and serves scripted input.
type MockTransport struct {
	sendErr   error
	sent      [][]byte
	rx        bytes.Buffer
	timeout   time.Duration
	mu        sync.Mutex
	connected bool
}

// NewMockTransport creates a connected mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		connected: true,
		timeout:   time.Second,
	}
}

// Send records a copy of frame.
func (m *MockTransport) Send(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrTransportClosed
	}
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, bytes.Clone(frame))
	return nil
}

// Read drains injected bytes.
func (m *MockTransport) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return 0, ErrTransportClosed
	}
	if m.rx.Len() == 0 {
		return 0, nil
	}
	return m.rx.Read(p) //nolint:wrapcheck // bytes.Buffer only fails when empty
}

// Close marks the transport disconnected.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

// SetTimeout records the timeout.
func (m *MockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	m.timeout = timeout
	m.mu.Unlock()
	return nil
}

// IsConnected reports whether Close has been called.
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Type returns TransportMock.
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// Inject queues bytes for Read, as if the radio had sent them.
func (m *MockTransport) Inject(data []byte) {
	m.mu.Lock()
	_, _ = m.rx.Write(data)
	m.mu.Unlock()
}

// SetSendError makes Send fail with err until cleared with nil.
func (m *MockTransport) SetSendError(err error) {
	m.mu.Lock()
	m.sendErr = err
	m.mu.Unlock()
}

// Sent returns copies of every frame sent so far.
func (m *MockTransport) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	for i, f := range m.sent {
		out[i] = bytes.Clone(f)
	}
	return out
}

// SendCount returns how many frames were sent.
func (m *MockTransport) SendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// Reset forgets sent frames.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.sent = nil
	m.mu.Unlock()
}

// Timeout returns the last timeout set.
func (m *MockTransport) Timeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeout
}
