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
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ZaparooProject/go-xbee/internal/frame"
)

// Payload offsets of the fields the network inspects. Offsets are relative
// to the payload, which starts after the API id byte.
const (
	atCommandOffset        = 1 // AT and queued AT: fid, cmd, params
	atParamOffset          = 3
	remoteATCommandOffset  = 12 // remote AT: fid, addr64, addr16, options, cmd, params
	remoteATParamOffset    = 14
	atResponseStatusOffset = 3 // AT response: fid, cmd, status, data
	atResponseDataOffset   = 4
	remoteSourceOffset     = 1 // remote AT response: fid, addr64, addr16, cmd, status, data
	remoteCommandOffset    = 11
	remoteStatusOffset     = 13
	remoteDataOffset       = 14
	txDestinationOffset    = 1 // transmit request: fid, addr64, addr16, radius, options, data
	txDataOffset           = 13
	deliveryStatusOffset   = 4 // transmit status: fid, addr16, retries, delivery, discovery
	rxSourceOffset         = 0 // receive packet: addr64, addr16, options, data
	rxDataOffset           = 11
	explicitDataOffset     = 17 // explicit rx: addr64, addr16, endpoints, cluster, profile, options, data
)

// Field is one positional value appended to a frame payload.
type Field struct {
	b []byte
}

// U8 is a single byte field.
func U8(v uint8) Field { return Field{b: []byte{v}} }

// U16 is a big-endian 16-bit field.
func U16(v uint16) Field { return Field{b: binary.BigEndian.AppendUint16(nil, v)} }

// U32 is a big-endian 32-bit field.
func U32(v uint32) Field { return Field{b: binary.BigEndian.AppendUint32(nil, v)} }

// U64 is a big-endian 64-bit field.
func U64(v uint64) Field { return Field{b: binary.BigEndian.AppendUint64(nil, v)} }

// Text is the raw bytes of s, without terminator.
func Text(s string) Field { return Field{b: []byte(s)} }

// Bytes is a raw byte field.
func Bytes(b []byte) Field { return Field{b: b} }

// Frame is a decoded or under-construction API frame: an API id and the
// payload that follows it. The zero value is an empty frame with API id 0.
type Frame struct {
	payload []byte
	apiID   APIID
}

// NewFrame builds a frame from positional fields.
func NewFrame(apiID APIID, fields ...Field) Frame {
	f := Frame{apiID: apiID}
	f.Add(fields...)
	return f
}

// Reset empties the payload and sets a new API id, keeping the buffer.
func (f *Frame) Reset(apiID APIID) {
	f.apiID = apiID
	f.payload = f.payload[:0]
}

// APIID returns the frame type.
func (f Frame) APIID() APIID {
	return f.apiID
}

// Payload returns the bytes after the API id. The slice aliases the frame.
func (f Frame) Payload() []byte {
	return f.payload
}

// Len returns the payload length.
func (f Frame) Len() int {
	return len(f.payload)
}

// Clone returns a frame that shares no memory with f.
func (f Frame) Clone() Frame {
	return Frame{apiID: f.apiID, payload: bytes.Clone(f.payload)}
}

func (f *Frame) set(apiID APIID, payload []byte) {
	f.apiID = apiID
	f.payload = append(f.payload[:0], payload...)
}

// Add appends fields in order.
func (f *Frame) Add(fields ...Field) *Frame {
	for _, field := range fields {
		f.payload = append(f.payload, field.b...)
	}
	return f
}

// AddUint8 appends a byte.
func (f *Frame) AddUint8(v uint8) *Frame {
	f.payload = append(f.payload, v)
	return f
}

// AddUint16 appends a big-endian 16-bit value.
func (f *Frame) AddUint16(v uint16) *Frame {
	f.payload = binary.BigEndian.AppendUint16(f.payload, v)
	return f
}

// AddUint32 appends a big-endian 32-bit value.
func (f *Frame) AddUint32(v uint32) *Frame {
	f.payload = binary.BigEndian.AppendUint32(f.payload, v)
	return f
}

// AddUint64 appends a big-endian 64-bit value.
func (f *Frame) AddUint64(v uint64) *Frame {
	f.payload = binary.BigEndian.AppendUint64(f.payload, v)
	return f
}

// AddCommand appends an AT mnemonic.
func (f *Frame) AddCommand(c Command) *Frame {
	f.payload = append(f.payload, c[0], c[1])
	return f
}

// AddString appends the bytes of s without a terminator.
func (f *Frame) AddString(s string) *Frame {
	f.payload = append(f.payload, s...)
	return f
}

// AddData appends raw bytes.
func (f *Frame) AddData(data []byte) *Frame {
	f.payload = append(f.payload, data...)
	return f
}

// Uint8 reads the byte at off.
func (f Frame) Uint8(off int) (uint8, bool) {
	if off < 0 || off >= len(f.payload) {
		return 0, false
	}
	return f.payload[off], true
}

// Uint16 reads a big-endian 16-bit value at off.
func (f Frame) Uint16(off int) (uint16, bool) {
	if off < 0 || off+2 > len(f.payload) {
		return 0, false
	}
	return binary.BigEndian.Uint16(f.payload[off:]), true
}

// Uint32 reads a big-endian 32-bit value at off.
func (f Frame) Uint32(off int) (uint32, bool) {
	if off < 0 || off+4 > len(f.payload) {
		return 0, false
	}
	return binary.BigEndian.Uint32(f.payload[off:]), true
}

// Uint64 reads a big-endian 64-bit value at off.
func (f Frame) Uint64(off int) (uint64, bool) {
	if off < 0 || off+8 > len(f.payload) {
		return 0, false
	}
	return binary.BigEndian.Uint64(f.payload[off:]), true
}

// Chars reads n bytes at off as a string.
func (f Frame) Chars(off, n int) (string, bool) {
	if off < 0 || n < 0 || off+n > len(f.payload) {
		return "", false
	}
	return string(f.payload[off : off+n]), true
}

// CString reads a NUL-terminated string at off and returns the offset just
// past the terminator. A missing terminator reads to the end of the payload.
func (f Frame) CString(off int) (s string, next int, ok bool) {
	if off < 0 || off > len(f.payload) {
		return "", off, false
	}
	rest := f.payload[off:]
	if i := bytes.IndexByte(rest, 0); i >= 0 {
		return string(rest[:i]), off + i + 1, true
	}
	return string(rest), len(f.payload), true
}

// Data returns the payload from off to the end, aliasing the frame. An
// offset at the end yields an empty slice.
func (f Frame) Data(off int) ([]byte, bool) {
	if off < 0 || off > len(f.payload) {
		return nil, false
	}
	return f.payload[off:], true
}

// FrameID returns the frame id of frame types that carry one.
func (f Frame) FrameID() (byte, bool) {
	if !f.apiID.HasFrameID() || len(f.payload) == 0 {
		return 0, false
	}
	return f.payload[0], true
}

func (f *Frame) setFrameID(id byte) bool {
	if !f.apiID.HasFrameID() || len(f.payload) == 0 {
		return false
	}
	f.payload[0] = id
	return true
}

// Command returns the AT mnemonic of AT requests and responses.
func (f Frame) Command() (Command, bool) {
	var off int
	switch f.apiID {
	case APIATCommand, APIATQueueCommand, APIATResponse:
		off = atCommandOffset
	case APIRemoteATCommand:
		off = remoteATCommandOffset
	case APIRemoteATResponse:
		off = remoteCommandOffset
	default:
		return Command{}, false
	}
	if off+2 > len(f.payload) {
		return Command{}, false
	}
	return Command{f.payload[off], f.payload[off+1]}, true
}

// Parameter returns the parameter bytes of an AT request. Empty means the
// request reads the setting.
func (f Frame) Parameter() ([]byte, bool) {
	switch f.apiID {
	case APIATCommand, APIATQueueCommand:
		return f.Data(atParamOffset)
	case APIRemoteATCommand:
		return f.Data(remoteATParamOffset)
	default:
		return nil, false
	}
}

// Status returns the status byte of a reply: the command status of AT
// responses or the delivery status of a transmit status.
func (f Frame) Status() (byte, bool) {
	switch f.apiID {
	case APIATResponse:
		return f.Uint8(atResponseStatusOffset)
	case APIRemoteATResponse:
		return f.Uint8(remoteStatusOffset)
	case APITransmitStatus:
		return f.Uint8(deliveryStatusOffset)
	default:
		return 0, false
	}
}

// Value returns the data carried by a reply or inbound packet: the
// parameter value of AT responses or the RF data of received packets.
func (f Frame) Value() ([]byte, bool) {
	switch f.apiID {
	case APIATResponse:
		return f.Data(atResponseDataOffset)
	case APIRemoteATResponse:
		return f.Data(remoteDataOffset)
	case APIReceivePacket:
		return f.Data(rxDataOffset)
	case APIExplicitRxIndicator:
		return f.Data(explicitDataOffset)
	case APITransmitRequest:
		return f.Data(txDataOffset)
	default:
		return nil, false
	}
}

// Source returns the 64-bit address of the radio that sent a remote AT
// response or an inbound packet.
func (f Frame) Source() (Address, bool) {
	var v uint64
	var ok bool
	switch f.apiID {
	case APIRemoteATResponse:
		v, ok = f.Uint64(remoteSourceOffset)
	case APIReceivePacket, APIExplicitRxIndicator:
		v, ok = f.Uint64(rxSourceOffset)
	default:
		return 0, false
	}
	return Address(v), ok
}

// Destination returns the 64-bit target of a transmit or remote AT request.
func (f Frame) Destination() (Address, bool) {
	switch f.apiID {
	case APITransmitRequest, APIRemoteATCommand:
		v, ok := f.Uint64(txDestinationOffset)
		return Address(v), ok
	default:
		return 0, false
	}
}

// Err converts a failing reply status into a TransactionError. Replies
// without a status field, and successful ones, return nil.
func (f Frame) Err() error {
	status, ok := f.Status()
	if !ok || status == 0 {
		return nil
	}
	fid, _ := f.FrameID()
	cmd, _ := f.Command()
	err := ErrCommandFailed
	if f.apiID == APITransmitStatus {
		err = ErrDeliveryFailed
	}
	return &TransactionError{
		Kind:    KindStatus,
		Err:     err,
		APIID:   f.apiID,
		Command: cmd,
		FrameID: fid,
		Status:  status,
	}
}

// Encode returns the wire form of the frame.
func (f Frame) Encode(escaped bool) []byte {
	return frame.Encode(byte(f.apiID), f.payload, escaped)
}

// AppendEncoded appends the wire form of the frame to dst.
func (f Frame) AppendEncoded(dst []byte, escaped bool) []byte {
	return frame.AppendEncoded(dst, byte(f.apiID), f.payload, escaped)
}

func (f Frame) String() string {
	if cmd, ok := f.Command(); ok {
		return fmt.Sprintf("%s %s [% X]", f.apiID, cmd, f.payload)
	}
	return fmt.Sprintf("%s [% X]", f.apiID, f.payload)
}
