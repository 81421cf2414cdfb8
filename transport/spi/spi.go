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

// Package spi links a radio over an SPI bus.
//
// The radio is the bus slave and SPI is full duplex, so every transfer the
// host clocks also shifts radio output in on MISO. Bytes clocked while the
// radio has nothing to say are idle fill; the transport drops fill between
// frames and hands everything else to Read.
package spi

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-xbee"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	// Default SPI settings
	defaultFreq     = 1 * physic.MegaHertz
	mode            = spi.Mode0
	defaultPollSize = 32

	idleFill       = 0xFF
	frameDelimiter = 0x7E
)

// Config configures an SPI link.
type Config struct {
	// AttentionPin names the GPIO wired to the radio's nATTN output. When
	// set, Read only clocks the bus while the radio asserts it.
	AttentionPin string
	Frequency    physic.Frequency
	PollSize     int // fill bytes clocked per idle Read
	TraceSize    int
}

// DefaultConfig returns 1 MHz polling without an attention line.
func DefaultConfig() *Config {
	return &Config{
		Frequency: defaultFreq,
		PollSize:  defaultPollSize,
		TraceSize: 32,
	}
}

// attention is the part of gpio.PinIn the transport reads.
type attention interface {
	Read() gpio.Level
}

// Transport implements xbee.Transport over SPI.
type Transport struct {
	port     spi.PortCloser
	conn     spi.Conn
	attn     attention
	trace    *xbee.TraceBuffer
	rx       bytes.Buffer
	portName string
	fill     []byte
	framer   framer
	mu       sync.Mutex
	closed   atomic.Bool
}

// New opens portName with DefaultConfig.
func New(portName string) (*Transport, error) {
	return NewWithConfig(portName, DefaultConfig())
}

// NewWithConfig opens portName.
func NewWithConfig(portName string, cfg *Config) (*Transport, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	var attn gpio.PinIO
	if cfg.AttentionPin != "" {
		attn = gpioreg.ByName(cfg.AttentionPin)
		if attn == nil {
			return nil, fmt.Errorf("%w: no GPIO named %s", xbee.ErrDeviceNotFound, cfg.AttentionPin)
		}
		if err := attn.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("failed to configure attention pin %s: %w", cfg.AttentionPin, err)
		}
	}

	port, err := spireg.Open(portName)
	if err != nil {
		return nil, xbee.NewTransportError("open", portName,
			fmt.Errorf("%w: %w", xbee.ErrDeviceNotFound, err), xbee.ErrorTypePermanent)
	}

	conn, err := port.Connect(cfg.Frequency, mode, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to connect SPI: %w", err)
	}

	t := newTransport(port, conn, portName, cfg)
	if attn != nil {
		t.attn = attn
	}
	return t, nil
}

func newTransport(port spi.PortCloser, conn spi.Conn, portName string, cfg *Config) *Transport {
	pollSize := cfg.PollSize
	if pollSize <= 0 {
		pollSize = defaultPollSize
	}
	return &Transport{
		port:     port,
		conn:     conn,
		portName: portName,
		fill:     bytes.Repeat([]byte{idleFill}, pollSize),
		trace:    xbee.NewTraceBuffer(string(xbee.TransportSPI), portName, cfg.TraceSize),
	}
}

// Send clocks one frame out and keeps whatever came back on MISO.
func (t *Transport) Send(frame []byte) error {
	if t.closed.Load() {
		return xbee.ErrTransportClosed
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.trace.RecordTX(frame, "")
	miso := make([]byte, len(frame))
	if err := t.conn.Tx(frame, miso); err != nil {
		return t.trace.WrapError(xbee.NewTransportError("write", t.portName,
			fmt.Errorf("%w: %w", xbee.ErrTransportWrite, err), xbee.ErrorTypeTransient))
	}
	t.keep(miso)
	return nil
}

// Read returns radio output. With nothing buffered it clocks one burst of
// idle fill to collect more, unless the attention line says the radio is
// quiet.
func (t *Transport) Read(p []byte) (int, error) {
	if t.closed.Load() {
		return 0, xbee.ErrTransportClosed
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rx.Len() == 0 {
		if err := t.poll(); err != nil {
			return 0, err
		}
	}
	if t.rx.Len() == 0 {
		return 0, nil
	}
	return t.rx.Read(p) //nolint:wrapcheck // bytes.Buffer only fails when empty
}

func (t *Transport) poll() error {
	// nATTN is active low.
	if t.attn != nil && t.attn.Read() == gpio.High {
		return nil
	}
	miso := make([]byte, len(t.fill))
	if err := t.conn.Tx(t.fill, miso); err != nil {
		return t.trace.WrapError(xbee.NewTransportError("read", t.portName,
			fmt.Errorf("%w: %w", xbee.ErrTransportRead, err), xbee.ErrorTypeTransient))
	}
	t.keep(miso)
	return nil
}

func (t *Transport) keep(miso []byte) {
	start := t.rx.Len()
	t.rx.Write(t.framer.filter(nil, miso))
	if got := t.rx.Bytes()[start:]; len(got) > 0 {
		t.trace.RecordRX(got, "")
	}
}

// framer tracks frame boundaries in unescaped MISO data so fill bytes
// between frames can be dropped. Fill inside a frame is payload and kept.
type framer struct {
	need   int // frame bytes still to come, including checksum
	header int // length bytes still to come
	length int
}

func (f *framer) filter(dst, src []byte) []byte {
	for _, b := range src {
		switch {
		case f.header > 0:
			f.length = f.length<<8 | int(b)
			f.header--
			if f.header == 0 {
				f.need = f.length + 1
			}
		case f.need > 0:
			f.need--
		case b == frameDelimiter:
			f.header = 2
			f.length = 0
		default:
			continue
		}
		dst = append(dst, b)
	}
	return dst
}

// SetTimeout is a no-op: SPI reads return after one burst.
func (*Transport) SetTimeout(time.Duration) error {
	return nil
}

// Close closes the transport connection
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("SPI close failed: %w", err)
	}
	return nil
}

// IsConnected returns true until Close is called.
func (t *Transport) IsConnected() bool {
	return !t.closed.Load()
}

// Type returns the transport type
func (*Transport) Type() xbee.TransportType {
	return xbee.TransportSPI
}

// Trace returns the recent wire history.
func (t *Transport) Trace() *xbee.TraceBuffer {
	return t.trace
}

var _ xbee.Transport = (*Transport)(nil)
