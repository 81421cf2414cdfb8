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

package testing

import (
	"encoding/binary"

	"github.com/ZaparooProject/go-xbee/internal/frame"
)

// BuildATResponse creates a local AT command response frame
func BuildATResponse(fid byte, cmd string, status byte, value []byte, escaped bool) []byte {
	payload := make([]byte, 0, 4+len(value))
	payload = append(payload, fid, cmd[0], cmd[1], status)
	payload = append(payload, value...)
	return frame.Encode(frame.APIATResponse, payload, escaped)
}

// BuildRemoteATResponse creates a remote AT command response frame
func BuildRemoteATResponse(fid byte, src uint64, cmd string, status byte, value []byte, escaped bool) []byte {
	payload := make([]byte, 0, 14+len(value))
	payload = append(payload, fid)
	payload = binary.BigEndian.AppendUint64(payload, src)
	payload = append(payload, 0xFF, 0xFE, cmd[0], cmd[1], status)
	payload = append(payload, value...)
	return frame.Encode(frame.APIRemoteATResponse, payload, escaped)
}

// BuildTransmitStatus creates a transmit status frame with the given
// delivery status
func BuildTransmitStatus(fid, delivery byte, escaped bool) []byte {
	payload := []byte{fid, 0xFF, 0xFE, 0x00, delivery, 0x00}
	return frame.Encode(frame.APITransmitStatus, payload, escaped)
}

// BuildReceivePacket creates an inbound RF data frame
func BuildReceivePacket(src uint64, data []byte, escaped bool) []byte {
	payload := make([]byte, 0, 11+len(data))
	payload = binary.BigEndian.AppendUint64(payload, src)
	payload = append(payload, 0xFF, 0xFE, 0x01)
	payload = append(payload, data...)
	return frame.Encode(frame.APIReceivePacket, payload, escaped)
}

// BuildModemStatus creates a modem status frame
func BuildModemStatus(status byte, escaped bool) []byte {
	return frame.Encode(frame.APIModemStatus, []byte{status}, escaped)
}

// Neighbor is a simulated radio answering node discovery.
type Neighbor struct {
	NodeID         string
	Address        uint64
	NetworkAddress uint16
	DeviceType     byte
}

// BuildDiscoveryValue creates the value of an ND reply for n: MY, SH, SL,
// NI with terminator, parent, device type, status, profile, manufacturer.
func BuildDiscoveryValue(n Neighbor) []byte {
	value := make([]byte, 0, 19+len(n.NodeID))
	value = binary.BigEndian.AppendUint16(value, n.NetworkAddress)
	value = binary.BigEndian.AppendUint64(value, n.Address)
	value = append(value, n.NodeID...)
	value = append(value, 0x00, 0xFF, 0xFE, n.DeviceType, 0x00, 0xC1, 0x05, 0x10, 0x1E)
	return value
}
