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

import "fmt"

// ModemStatus is the event code carried by a modem status frame.
type ModemStatus byte

// Modem status events reported by DigiMesh radios
const (
	StatusHardwareReset      ModemStatus = 0x00
	StatusWatchdogReset      ModemStatus = 0x01
	StatusJoinedNetwork      ModemStatus = 0x02
	StatusDisassociated      ModemStatus = 0x03
	StatusCoordinatorStarted ModemStatus = 0x06
	StatusSecurityKeyUpdated ModemStatus = 0x07
	StatusNetworkWoke        ModemStatus = 0x0B
	StatusNetworkSlept       ModemStatus = 0x0C
	StatusVoltageExceeded    ModemStatus = 0x0D
	StatusConfigChanged      ModemStatus = 0x11
	// StatusUnknown is reported until the radio sends its first status.
	StatusUnknown ModemStatus = 0xFF
)

func (s ModemStatus) String() string {
	switch s {
	case StatusHardwareReset:
		return "hardware reset"
	case StatusWatchdogReset:
		return "watchdog timer reset"
	case StatusJoinedNetwork:
		return "joined network"
	case StatusDisassociated:
		return "disassociated"
	case StatusCoordinatorStarted:
		return "coordinator started"
	case StatusSecurityKeyUpdated:
		return "network security key updated"
	case StatusNetworkWoke:
		return "network woke up"
	case StatusNetworkSlept:
		return "network went to sleep"
	case StatusVoltageExceeded:
		return "voltage supply limit exceeded"
	case StatusConfigChanged:
		return "configuration changed while join in progress"
	case StatusUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("modem status 0x%02X", byte(s))
	}
}

// CommandStatus is the status byte of a local or remote AT response.
type CommandStatus byte

// AT command status values
const (
	CommandOK               CommandStatus = 0x00
	CommandError            CommandStatus = 0x01
	CommandInvalid          CommandStatus = 0x02
	CommandInvalidParameter CommandStatus = 0x03
	CommandTxFailure        CommandStatus = 0x04
)

func (s CommandStatus) String() string {
	switch s {
	case CommandOK:
		return "OK"
	case CommandError:
		return "error"
	case CommandInvalid:
		return "invalid command"
	case CommandInvalidParameter:
		return "invalid parameter"
	case CommandTxFailure:
		return "remote transmission failed"
	default:
		return fmt.Sprintf("command status 0x%02X", byte(s))
	}
}

// DeliveryStatus is the delivery byte of a transmit status frame.
type DeliveryStatus byte

// Transmit delivery status values
const (
	DeliverySuccess            DeliveryStatus = 0x00
	DeliveryMACAckFailure      DeliveryStatus = 0x01
	DeliveryCCAFailure         DeliveryStatus = 0x02
	DeliveryInvalidEndpoint    DeliveryStatus = 0x15
	DeliveryNetworkAckFailure  DeliveryStatus = 0x21
	DeliveryNotJoined          DeliveryStatus = 0x22
	DeliverySelfAddressed      DeliveryStatus = 0x23
	DeliveryAddressNotFound    DeliveryStatus = 0x24
	DeliveryRouteNotFound      DeliveryStatus = 0x25
	DeliveryBroadcastRelayFail DeliveryStatus = 0x26
	DeliveryInvalidBindIndex   DeliveryStatus = 0x2B
	DeliveryResourceError      DeliveryStatus = 0x2C
	DeliveryInternalResource   DeliveryStatus = 0x31
	DeliveryInternalError      DeliveryStatus = 0x32
	DeliveryPayloadTooLarge    DeliveryStatus = 0x74
	DeliveryIndirectRequested  DeliveryStatus = 0x75
)

func (s DeliveryStatus) String() string {
	switch s {
	case DeliverySuccess:
		return "success"
	case DeliveryMACAckFailure:
		return "MAC ACK failure"
	case DeliveryCCAFailure:
		return "CCA failure"
	case DeliveryInvalidEndpoint:
		return "invalid destination endpoint"
	case DeliveryNetworkAckFailure:
		return "network ACK failure"
	case DeliveryNotJoined:
		return "not joined to network"
	case DeliverySelfAddressed:
		return "self-addressed"
	case DeliveryAddressNotFound:
		return "address not found"
	case DeliveryRouteNotFound:
		return "route not found"
	case DeliveryBroadcastRelayFail:
		return "broadcast source failed to hear a neighbor relay"
	case DeliveryInvalidBindIndex:
		return "invalid binding table index"
	case DeliveryResourceError:
		return "resource error"
	case DeliveryInternalResource:
		return "internal resource error"
	case DeliveryInternalError:
		return "internal error"
	case DeliveryPayloadTooLarge:
		return "data payload too large"
	case DeliveryIndirectRequested:
		return "indirect message requested"
	default:
		return fmt.Sprintf("delivery status 0x%02X", byte(s))
	}
}

// Transient reports whether a failed delivery is worth resending as is.
func (s DeliveryStatus) Transient() bool {
	switch s {
	case DeliveryMACAckFailure, DeliveryCCAFailure, DeliveryNetworkAckFailure,
		DeliveryRouteNotFound, DeliveryBroadcastRelayFail, DeliveryResourceError,
		DeliveryInternalResource:
		return true
	default:
		return false
	}
}
