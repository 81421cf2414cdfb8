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

package frame

// Frame markers and control bytes
const (
	StartDelimiter = 0x7E // Start of every API frame
	Escape         = 0x7D // Escape marker in escaped API mode
	XON            = 0x11 // Software flow control resume
	XOFF           = 0x13 // Software flow control pause
	EscapeMask     = 0x20 // XORed with an escaped byte
)

// API frame identifiers
const (
	APIATCommand           = 0x08 // Local AT command, applied immediately
	APIATQueueCommand      = 0x09 // Local AT command, queued until AC
	APITransmitRequest     = 0x10 // RF data transmission
	APIRemoteATCommand     = 0x17 // AT command executed on a remote radio
	APIATResponse          = 0x88 // Reply to a local AT command
	APIModemStatus         = 0x8A // Unsolicited radio status
	APITransmitStatus      = 0x8B // Delivery report for a transmit request
	APIReceivePacket       = 0x90 // Inbound RF data
	APIExplicitRxIndicator = 0x91 // Inbound RF data with explicit addressing
	APIRemoteATResponse    = 0x97 // Reply to a remote AT command
)

// Frame size limits
const (
	// HeaderLength is the start delimiter plus the two length bytes.
	HeaderLength = 3
	// MinFrameLength is header, API id and checksum with an empty payload.
	MinFrameLength = 5
	// MaxDataLength bounds the length field (API id plus payload) accepted
	// by the decoder. Radios never emit frames close to this size, so a
	// larger value marks a corrupt length.
	MaxDataLength = 1024
)

// Inbound frame overheads, counted in the length field.
const (
	// RxOverhead covers an explicit Rx indicator's API id, 64 and 16-bit
	// source, endpoints, cluster, profile and options.
	RxOverhead = 18
	// ATResponseOverhead covers a remote AT response's API id, frame id,
	// 64 and 16-bit source, command and status.
	ATResponseOverhead = 15
	// MaxATValueLength bounds an AT response value. ND replies are the
	// longest the radio sends.
	MaxATValueLength = 64
)

// MaxInboundLength is the largest length field a radio sends when RF
// payloads are at most maxPayload bytes.
func MaxInboundLength(maxPayload int) int {
	return max(RxOverhead+maxPayload, ATResponseOverhead+MaxATValueLength)
}

// MaxEncodedLength is the worst-case wire size of a frame whose length
// field is length: every byte after the start delimiter doubles when
// escaped.
func MaxEncodedLength(length int, escaped bool) int {
	n := HeaderLength + length + 1
	if escaped {
		n = 1 + 2*(n-1)
	}
	return n
}

// HasFrameID reports whether frames with the given API id carry a frame id
// as their first payload byte.
func HasFrameID(apiID byte) bool {
	switch apiID {
	case APIATCommand, APIATQueueCommand, APITransmitRequest, APIRemoteATCommand,
		APIATResponse, APITransmitStatus, APIRemoteATResponse:
		return true
	default:
		return false
	}
}
