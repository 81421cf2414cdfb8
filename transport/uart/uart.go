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

// Package uart links a radio over a serial port.
package uart

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-xbee"
	"go.bug.st/serial"
)

// DefaultBaudRate is the factory rate of XBee radios.
const DefaultBaudRate = 9600

// Config configures a serial link.
type Config struct {
	// OpenRetry controls how opening the port is retried. Nil uses
	// xbee.ConnectRetryConfig; a zero value opens once.
	OpenRetry   *xbee.RetryConfig
	BaudRate    int
	ReadTimeout time.Duration
	TraceSize   int // wire trace entries kept for error reports
}

// DefaultConfig returns the factory serial settings.
func DefaultConfig() *Config {
	return &Config{
		BaudRate:    DefaultBaudRate,
		ReadTimeout: defaultReadTimeout(),
		TraceSize:   32,
	}
}

// openPort is replaced in tests.
var openPort = serial.Open

// Transport implements xbee.Transport over a serial port.
type Transport struct {
	port     serial.Port
	trace    *xbee.TraceBuffer
	portName string
	writeMu  sync.Mutex
	closed   atomic.Bool
}

// defaultReadTimeout is longer on Windows, whose serial drivers are slow
// to hand over partial reads.
func defaultReadTimeout() time.Duration {
	if runtime.GOOS == "windows" {
		return 100 * time.Millisecond
	}
	return 50 * time.Millisecond
}

// New opens portName with the factory settings.
func New(portName string) (*Transport, error) {
	return NewWithConfig(portName, DefaultConfig())
}

// NewWithConfig opens portName. Opening is retried because USB adapters
// often refuse the first open right after enumeration.
func NewWithConfig(portName string, cfg *Config) (*Transport, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	retry := cfg.OpenRetry
	if retry == nil {
		retry = xbee.ConnectRetryConfig()
	}

	var port serial.Port
	err := xbee.RetryWithConfig(context.Background(), retry, func() error {
		p, err := openPort(portName, mode)
		if err != nil {
			return classifyOpenError(portName, err)
		}
		port = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}
	// Drop whatever the radio sent before we were listening.
	if err := port.ResetInputBuffer(); err != nil {
		xbee.Debugf("uart %s: reset input buffer: %v", portName, err)
	}

	return newTransport(port, portName, cfg.TraceSize), nil
}

func newTransport(port serial.Port, portName string, traceSize int) *Transport {
	return &Transport{
		port:     port,
		portName: portName,
		trace:    xbee.NewTraceBuffer(string(xbee.TransportUART), portName, traceSize),
	}
}

// classifyOpenError marks missing or unusable ports as permanent so the
// open is not retried.
func classifyOpenError(portName string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return xbee.NewTransportError("open", portName,
			fmt.Errorf("%w: %w", xbee.ErrDeviceNotFound, err), xbee.ErrorTypePermanent)
	}
	var perr *serial.PortError
	if errors.As(err, &perr) {
		//nolint:exhaustive // remaining codes are worth retrying
		switch perr.Code() {
		case serial.PortNotFound, serial.InvalidSerialPort:
			return xbee.NewTransportError("open", portName,
				fmt.Errorf("%w: %w", xbee.ErrDeviceNotFound, err), xbee.ErrorTypePermanent)
		case serial.PermissionDenied:
			return xbee.NewTransportError("open", portName, err, xbee.ErrorTypePermanent)
		}
	}
	return xbee.NewTransportError("open", portName, err, xbee.ErrorTypeTransient)
}

// Send writes one encoded frame and waits for it to leave the port.
func (t *Transport) Send(frame []byte) error {
	if t.closed.Load() {
		return xbee.ErrTransportClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.trace.RecordTX(frame, "")
	written := 0
	for written < len(frame) {
		n, err := t.port.Write(frame[written:])
		if err != nil {
			return t.trace.WrapError(t.ioError("write", err))
		}
		if n == 0 {
			return t.trace.WrapError(xbee.NewTransportError("write", t.portName,
				xbee.ErrTransportWrite, xbee.ErrorTypeTransient))
		}
		written += n
	}

	if err := t.drainWithRetry(); err != nil {
		return t.trace.WrapError(err)
	}
	return nil
}

// Read returns bytes received from the radio. A read timeout returns 0, nil.
func (t *Transport) Read(p []byte) (int, error) {
	if t.closed.Load() {
		return 0, xbee.ErrTransportClosed
	}

	n, err := t.port.Read(p)
	if n > 0 {
		t.trace.RecordRX(p[:n], "")
	}
	if err != nil {
		if t.closed.Load() {
			return n, xbee.ErrTransportClosed
		}
		return n, t.trace.WrapError(t.ioError("read", err))
	}
	return n, nil
}

// ioError classifies a port failure. A closed or vanished port is
// permanent, anything else may clear up.
func (t *Transport) ioError(op string, err error) error {
	var perr *serial.PortError
	if errors.As(err, &perr) && perr.Code() == serial.PortClosed {
		return xbee.NewTransportError(op, t.portName,
			fmt.Errorf("%w: %w", xbee.ErrTransportClosed, err), xbee.ErrorTypePermanent)
	}
	if xbee.IsFatal(err) {
		return xbee.NewTransportError(op, t.portName, err, xbee.ErrorTypePermanent)
	}
	sentinel := xbee.ErrTransportWrite
	if op == "read" {
		sentinel = xbee.ErrTransportRead
	}
	return xbee.NewTransportError(op, t.portName, fmt.Errorf("%w: %w", sentinel, err), xbee.ErrorTypeTransient)
}

// isInterruptedSystemCall checks if an error is caused by an interrupted system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}

// drainWithRetry waits for the output buffer to empty, retrying drains
// interrupted by signals.
func (t *Transport) drainWithRetry() error {
	const maxRetries = 3
	baseDelay := 2 * time.Millisecond

	for attempt := range maxRetries {
		err := t.port.Drain()
		if err == nil {
			return nil
		}
		if !isInterruptedSystemCall(err) || attempt == maxRetries-1 {
			return t.ioError("drain", err)
		}
		time.Sleep(baseDelay << attempt)
	}
	return nil
}

// SetTimeout sets the read timeout for the transport
func (t *Transport) SetTimeout(timeout time.Duration) error {
	if err := t.port.SetReadTimeout(timeout); err != nil {
		return fmt.Errorf("UART set timeout failed: %w", err)
	}
	return nil
}

// Close closes the port. Closing twice is a no-op.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	return nil
}

// IsConnected returns true until Close is called.
func (t *Transport) IsConnected() bool {
	return !t.closed.Load()
}

// Type returns the transport type
func (*Transport) Type() xbee.TransportType {
	return xbee.TransportUART
}

// PortName returns the device path the transport was opened on.
func (t *Transport) PortName() string {
	return t.portName
}

// Trace returns the recent wire history.
func (t *Transport) Trace() *xbee.TraceBuffer {
	return t.trace
}

// Ensure Transport implements xbee.Transport
var _ xbee.Transport = (*Transport)(nil)
