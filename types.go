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
	"strconv"

	"github.com/ZaparooProject/go-xbee/internal/frame"
)

// Address is a 64-bit radio serial number (SH:SL).
type Address uint64

const (
	// LocalAddress addresses the radio attached to the serial port.
	LocalAddress Address = 0
	// BroadcastAddress reaches every radio in the network.
	BroadcastAddress Address = 0x000000000000FFFF
)

// unknownNetworkAddress is sent in the 16-bit destination field when the
// radio should resolve the route itself.
const unknownNetworkAddress uint16 = 0xFFFE

// IsLocal reports whether a targets the attached radio.
func (a Address) IsLocal() bool {
	return a == LocalAddress
}

// IsBroadcast reports whether a is the broadcast address.
func (a Address) IsBroadcast() bool {
	return a == BroadcastAddress
}

// High returns the SH half of the address.
func (a Address) High() uint32 {
	return uint32(a >> 32) //nolint:gosec // intentional truncation to upper half
}

// Low returns the SL half of the address.
func (a Address) Low() uint32 {
	return uint32(a) //nolint:gosec // intentional truncation to lower half
}

func (a Address) String() string {
	return fmt.Sprintf("%016X", uint64(a))
}

// MakeAddress joins SH and SL into an Address.
func MakeAddress(high, low uint32) Address {
	return Address(uint64(high)<<32 | uint64(low))
}

// ParseAddress parses a hex address, with or without a 0x prefix.
func ParseAddress(s string) (Address, error) {
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: address %q: %w", ErrInvalidParameter, s, err)
	}
	return Address(v), nil
}

// APIMode is the radio's AP setting.
type APIMode uint8

const (
	// ModeTransparent passes serial data straight through. Unsupported.
	ModeTransparent APIMode = 0
	// ModeAPI frames without escaping.
	ModeAPI APIMode = 1
	// ModeEscaped frames with byte stuffing of control characters.
	ModeEscaped APIMode = 2
)

// Escaped reports whether frames are byte-stuffed in this mode.
func (m APIMode) Escaped() bool {
	return m == ModeEscaped
}

func (m APIMode) String() string {
	switch m {
	case ModeTransparent:
		return "transparent"
	case ModeAPI:
		return "api"
	case ModeEscaped:
		return "escaped"
	default:
		return fmt.Sprintf("APIMode(%d)", uint8(m))
	}
}

// ParseAPIMode accepts the names produced by String and the numeric AP values.
func ParseAPIMode(s string) (APIMode, error) {
	switch s {
	case "api", "1":
		return ModeAPI, nil
	case "escaped", "2":
		return ModeEscaped, nil
	case "transparent", "0":
		return ModeTransparent, nil
	default:
		return 0, fmt.Errorf("%w: api mode %q", ErrInvalidConfig, s)
	}
}

// Command is a two-character AT command mnemonic.
type Command [2]byte

// Cmd builds a Command from a two-letter string. Extra characters are
// ignored and missing ones are left zero.
func Cmd(s string) Command {
	var c Command
	copy(c[:], s)
	return c
}

func (c Command) String() string {
	return string(c[:])
}

// APIID identifies the type of an API frame.
type APIID byte

// Frame types exchanged with the radio.
const (
	APIATCommand           APIID = frame.APIATCommand
	APIATQueueCommand      APIID = frame.APIATQueueCommand
	APITransmitRequest     APIID = frame.APITransmitRequest
	APIRemoteATCommand     APIID = frame.APIRemoteATCommand
	APIATResponse          APIID = frame.APIATResponse
	APIModemStatus         APIID = frame.APIModemStatus
	APITransmitStatus      APIID = frame.APITransmitStatus
	APIReceivePacket       APIID = frame.APIReceivePacket
	APIExplicitRxIndicator APIID = frame.APIExplicitRxIndicator
	APIRemoteATResponse    APIID = frame.APIRemoteATResponse
)

// HasFrameID reports whether frames of this type carry a frame id.
func (id APIID) HasFrameID() bool {
	return frame.HasFrameID(byte(id))
}

func (id APIID) String() string {
	switch id {
	case APIATCommand:
		return "AT command"
	case APIATQueueCommand:
		return "AT command queue"
	case APITransmitRequest:
		return "transmit request"
	case APIRemoteATCommand:
		return "remote AT command"
	case APIATResponse:
		return "AT response"
	case APIModemStatus:
		return "modem status"
	case APITransmitStatus:
		return "transmit status"
	case APIReceivePacket:
		return "receive packet"
	case APIExplicitRxIndicator:
		return "explicit rx indicator"
	case APIRemoteATResponse:
		return "remote AT response"
	default:
		return fmt.Sprintf("API 0x%02X", byte(id))
	}
}
