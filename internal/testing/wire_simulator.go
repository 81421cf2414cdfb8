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

// Package testing provides test utilities including a wire-level XBee
// radio simulator.
//
// VirtualRadio decodes API frames written by the host with the same codec
// the library uses and answers them the way a DigiMesh radio would: AT
// responses, transmit status, remote AT responses and node discovery
// replies. Faults are injected by dropping requests or failing commands.
package testing

import (
	"bytes"
	"encoding/binary"
	"maps"
	"slices"

	"github.com/ZaparooProject/go-xbee/internal/frame"
	"github.com/ZaparooProject/go-xbee/internal/syncutil"
)

// AT status codes returned by the simulator
const (
	statusOK             = 0x00
	statusInvalidCommand = 0x02
	statusTxFailure      = 0x04
)

// Default identity of the simulated radio
const (
	DefaultAddress    uint64 = 0x0013A20040A1B2C3
	DefaultNodeID            = "LOCAL"
	DefaultNetworkID  uint16 = 0x7FFF
	DefaultMaxPayload uint16 = 73
)

// Request is one frame the host sent to the radio.
type Request struct {
	Payload []byte
	Command string
	Dest    uint64
	APIID   byte
	FrameID byte
}

// VirtualRadio simulates an XBee radio at the wire protocol level. It
// implements io.ReadWriter for transport tests and Send for use as a
// network sink.
type VirtualRadio struct {
	params    map[string][]byte
	queued    map[string][]byte
	remotes   map[uint64]map[string][]byte
	failures  map[string]byte
	delivered map[uint64][]byte
	decoder   *frame.Decoder
	neighbors []Neighbor
	requests  []Request
	rx        frame.BufferSource
	tx        bytes.Buffer
	mu        syncutil.Mutex
	drop      int
	delivery  byte
	escaped   bool
}

// NewVirtualRadio creates a radio in unescaped API mode with default
// settings and no neighbours.
func NewVirtualRadio() *VirtualRadio {
	v := &VirtualRadio{
		queued:    make(map[string][]byte),
		remotes:   make(map[uint64]map[string][]byte),
		failures:  make(map[string]byte),
		delivered: make(map[uint64][]byte),
		decoder:   frame.NewDecoder(false),
	}
	v.params = defaultParams()
	return v
}

func defaultParams() map[string][]byte {
	return map[string][]byte{
		"ID": binary.BigEndian.AppendUint16(nil, DefaultNetworkID),
		"HP": {0x00},
		"CE": {0x00},
		"NI": []byte(DefaultNodeID),
		"SH": binary.BigEndian.AppendUint32(nil, uint32(DefaultAddress>>32)),
		"SL": binary.BigEndian.AppendUint32(nil, uint32(DefaultAddress&0xFFFFFFFF)),
		"AP": {0x01},
		"NP": binary.BigEndian.AppendUint16(nil, DefaultMaxPayload),
	}
}

// Send accepts one encoded frame from the host.
func (v *VirtualRadio) Send(data []byte) error {
	_, err := v.Write(data)
	return err
}

// Write implements io.Writer - receives data from the host.
func (v *VirtualRadio) Write(data []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	_, _ = v.rx.Write(data)
	for {
		apiID, payload, status, _ := v.decoder.Decode(&v.rx)
		if status == frame.StatusIncomplete {
			return len(data), nil
		}
		if status == frame.StatusComplete {
			v.handle(apiID, bytes.Clone(payload))
		}
	}
}

// Read implements io.Reader - returns radio output to the host.
func (v *VirtualRadio) Read(buf []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.tx.Len() == 0 {
		return 0, nil
	}
	return v.tx.Read(buf) //nolint:wrapcheck // bytes.Buffer only fails when empty
}

// Drain returns and clears everything the radio has output.
func (v *VirtualRadio) Drain() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := bytes.Clone(v.tx.Bytes())
	v.tx.Reset()
	return out
}

// Pending returns the number of output bytes not yet read.
func (v *VirtualRadio) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tx.Len()
}

func (v *VirtualRadio) handle(apiID byte, payload []byte) {
	req := Request{APIID: apiID, Payload: payload}
	if len(payload) > 0 {
		req.FrameID = payload[0]
	}
	switch apiID {
	case frame.APIATCommand, frame.APIATQueueCommand:
		if len(payload) >= 3 {
			req.Command = string(payload[1:3])
		}
	case frame.APIRemoteATCommand:
		if len(payload) >= 14 {
			req.Dest = binary.BigEndian.Uint64(payload[1:9])
			req.Command = string(payload[12:14])
		}
	case frame.APITransmitRequest:
		if len(payload) >= 9 {
			req.Dest = binary.BigEndian.Uint64(payload[1:9])
		}
	default:
	}
	v.requests = append(v.requests, req)

	if v.drop > 0 {
		v.drop--
		return
	}

	switch apiID {
	case frame.APIATCommand:
		if req.Command != "" {
			v.localAT(req.FrameID, req.Command, payload[3:], false)
		}
	case frame.APIATQueueCommand:
		if req.Command != "" {
			v.localAT(req.FrameID, req.Command, payload[3:], true)
		}
	case frame.APIRemoteATCommand:
		if req.Command != "" {
			v.remoteAT(req.FrameID, req.Dest, req.Command, payload[14:])
		}
	case frame.APITransmitRequest:
		if len(payload) >= 13 {
			v.delivered[req.Dest] = append(v.delivered[req.Dest], payload[13:]...)
			v.tx.Write(BuildTransmitStatus(req.FrameID, v.delivery, v.escaped))
		}
	default:
	}
}

func (v *VirtualRadio) localAT(fid byte, cmd string, param []byte, queue bool) {
	if status, ok := v.failures[cmd]; ok {
		v.tx.Write(BuildATResponse(fid, cmd, status, nil, v.escaped))
		return
	}

	switch cmd {
	case "ND":
		for _, n := range v.neighbors {
			v.tx.Write(BuildATResponse(fid, cmd, statusOK, BuildDiscoveryValue(n), v.escaped))
		}
		v.tx.Write(BuildATResponse(fid, cmd, statusOK, nil, v.escaped))
		return
	case "AC":
		v.apply()
		v.tx.Write(BuildATResponse(fid, cmd, statusOK, nil, v.escaped))
		return
	case "WR":
		v.tx.Write(BuildATResponse(fid, cmd, statusOK, nil, v.escaped))
		return
	default:
	}

	if len(param) == 0 {
		value, ok := v.params[cmd]
		if !ok {
			v.tx.Write(BuildATResponse(fid, cmd, statusInvalidCommand, nil, v.escaped))
			return
		}
		v.tx.Write(BuildATResponse(fid, cmd, statusOK, value, v.escaped))
		return
	}

	if queue {
		v.queued[cmd] = bytes.Clone(param)
		v.tx.Write(BuildATResponse(fid, cmd, statusOK, nil, v.escaped))
		return
	}
	v.params[cmd] = bytes.Clone(param)
	v.tx.Write(BuildATResponse(fid, cmd, statusOK, nil, v.escaped))
	if cmd == "AP" {
		// The acknowledgement goes out in the old mode.
		v.setMode(param[0])
	}
}

func (v *VirtualRadio) apply() {
	for cmd, param := range v.queued {
		v.params[cmd] = param
		if cmd == "AP" && len(param) > 0 {
			v.setMode(param[0])
		}
	}
	clear(v.queued)
}

func (v *VirtualRadio) setMode(ap byte) {
	v.escaped = ap == 2
	v.decoder.Escaped = v.escaped
}

func (v *VirtualRadio) remoteAT(fid byte, dest uint64, cmd string, param []byte) {
	params, ok := v.remotes[dest]
	if !ok {
		v.tx.Write(BuildRemoteATResponse(fid, dest, cmd, statusTxFailure, nil, v.escaped))
		return
	}
	if status, failed := v.failures[cmd]; failed {
		v.tx.Write(BuildRemoteATResponse(fid, dest, cmd, status, nil, v.escaped))
		return
	}
	if cmd == "AC" || cmd == "WR" {
		v.tx.Write(BuildRemoteATResponse(fid, dest, cmd, statusOK, nil, v.escaped))
		return
	}
	if len(param) > 0 {
		params[cmd] = bytes.Clone(param)
		v.tx.Write(BuildRemoteATResponse(fid, dest, cmd, statusOK, nil, v.escaped))
		return
	}
	value, ok := params[cmd]
	if !ok {
		v.tx.Write(BuildRemoteATResponse(fid, dest, cmd, statusInvalidCommand, nil, v.escaped))
		return
	}
	v.tx.Write(BuildRemoteATResponse(fid, dest, cmd, statusOK, value, v.escaped))
}

// SetParameter sets a local AT setting.
func (v *VirtualRadio) SetParameter(cmd string, value []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.params[cmd] = bytes.Clone(value)
}

// Parameter returns a local AT setting.
func (v *VirtualRadio) Parameter(cmd string) []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return bytes.Clone(v.params[cmd])
}

// RemoteParameter returns a setting of a neighbour.
func (v *VirtualRadio) RemoteParameter(addr uint64, cmd string) []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return bytes.Clone(v.remotes[addr][cmd])
}

// AddNeighbor adds a radio that answers discovery and remote AT commands.
func (v *VirtualRadio) AddNeighbor(n Neighbor) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.neighbors = append(v.neighbors, n)
	v.remotes[n.Address] = map[string][]byte{
		"NI": []byte(n.NodeID),
		"ID": slices.Clone(v.params["ID"]),
		"SH": binary.BigEndian.AppendUint32(nil, uint32(n.Address>>32)),
		"SL": binary.BigEndian.AppendUint32(nil, uint32(n.Address)),
	}
}

// DropNext swallows the next n requests without replying.
func (v *VirtualRadio) DropNext(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.drop = n
}

// FailCommand makes every request for cmd fail with status.
func (v *VirtualRadio) FailCommand(cmd string, status byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failures[cmd] = status
}

// SetDeliveryStatus sets the delivery status of transmit replies.
func (v *VirtualRadio) SetDeliveryStatus(status byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.delivery = status
}

// SetEscaped switches the radio between AP=1 and AP=2 framing.
func (v *VirtualRadio) SetEscaped(escaped bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if escaped {
		v.params["AP"] = []byte{0x02}
		v.setMode(2)
	} else {
		v.params["AP"] = []byte{0x01}
		v.setMode(1)
	}
}

// Escaped reports whether the radio frames in escaped mode.
func (v *VirtualRadio) Escaped() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.escaped
}

// Requests returns every frame received so far.
func (v *VirtualRadio) Requests() []Request {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.requests)
}

// Delivered returns the RF data transmitted to dest, concatenated.
func (v *VirtualRadio) Delivered(dest uint64) []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return bytes.Clone(v.delivered[dest])
}

// InjectModemStatus emits a modem status frame.
func (v *VirtualRadio) InjectModemStatus(status byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tx.Write(BuildModemStatus(status, v.escaped))
}

// InjectReceive emits an inbound packet from src.
func (v *VirtualRadio) InjectReceive(src uint64, data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tx.Write(BuildReceivePacket(src, data, v.escaped))
}

// InjectRaw emits arbitrary bytes, for noise and malformed frames.
func (v *VirtualRadio) InjectRaw(data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tx.Write(data)
}

// Reset restores default settings and clears buffers and logs.
func (v *VirtualRadio) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.params = defaultParams()
	clear(v.queued)
	clear(v.failures)
	clear(v.delivered)
	v.remotes = make(map[uint64]map[string][]byte)
	v.neighbors = nil
	v.requests = nil
	v.rx.Reset()
	v.tx.Reset()
	v.drop = 0
	v.delivery = 0
	v.setMode(1)
}

// Snapshot returns a copy of every local setting.
func (v *VirtualRadio) Snapshot() map[string][]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return maps.Clone(v.params)
}
