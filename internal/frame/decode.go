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

import "errors"

// Decoding errors. They accompany StatusInvalid and never stall the source:
// the offending bytes are discarded before Decode returns.
var (
	ErrInvalidLength    = errors.New("invalid frame length")
	ErrChecksumMismatch = errors.New("frame checksum mismatch")
	ErrTruncatedFrame   = errors.New("frame truncated by start delimiter")
	ErrFrameTooLarge    = errors.New("frame larger than receive buffer")
)

// Source is a readable window of received bytes. Peek indexes from the
// oldest unread byte; Discard consumes bytes from the front.
type Source interface {
	Len() int
	Peek(i int) byte
	Discard(n int)
}

// bounded is implemented by sources that hold a fixed number of bytes. A
// frame that cannot fit such a source is dropped instead of waited for.
type bounded interface {
	Cap() int
}

// Status is the outcome of a single Decode call.
type Status int

const (
	// StatusIncomplete means more bytes are needed; nothing of the pending
	// frame was consumed.
	StatusIncomplete Status = iota
	// StatusComplete means a frame with a valid checksum was consumed.
	StatusComplete
	// StatusInvalid means a malformed frame was dropped.
	StatusInvalid
)

// String returns the status name
func (s Status) String() string {
	switch s {
	case StatusIncomplete:
		return "incomplete"
	case StatusComplete:
		return "complete"
	case StatusInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Decoder incrementally extracts API frames from a Source.
//
// Resynchronization policy: bytes before a start delimiter are discarded.
// When a frame has an impossible length or a bad checksum only its start
// delimiter is dropped, so the next Decode scans forward to the following
// delimiter. A length is impossible when it exceeds MaxDataLength or, for a
// bounded source, when the frame could never fit in it. A bounded source
// that is full while its frame is still incomplete is treated the same way. In escaped mode a bare start delimiter inside a frame cuts the
// frame short and decoding restarts at that delimiter.
//
// The payload returned by Decode aliases an internal buffer that is reused
// by the next call.
type Decoder struct {
	buf     []byte
	Escaped bool
}

// NewDecoder creates a decoder for plain or escaped API mode.
func NewDecoder(escaped bool) *Decoder {
	return &Decoder{Escaped: escaped, buf: make([]byte, 0, 128)}
}

type cursor struct {
	src     Source
	pos     int
	n       int
	escaped bool
}

// next returns the next unescaped byte. more is false when the source ran
// out; delim is true when a bare start delimiter was hit in escaped mode.
func (c *cursor) next() (b byte, more, delim bool) {
	if c.pos >= c.n {
		return 0, false, false
	}
	b = c.src.Peek(c.pos)
	if !c.escaped {
		c.pos++
		return b, true, false
	}
	if b == StartDelimiter {
		return 0, true, true
	}
	if b != Escape {
		c.pos++
		return b, true, false
	}
	if c.pos+1 >= c.n {
		return 0, false, false
	}
	b = c.src.Peek(c.pos + 1)
	if b == StartDelimiter {
		c.pos++
		return 0, true, true
	}
	c.pos += 2
	return b ^ EscapeMask, true, false
}

// Decode attempts to extract one frame from src. On StatusComplete apiID and
// payload describe the frame. On StatusInvalid err says why it was dropped.
func (d *Decoder) Decode(src Source) (apiID byte, payload []byte, status Status, err error) {
	d.syncToDelimiter(src)

	c := cursor{src: src, pos: 1, n: src.Len(), escaped: d.Escaped}
	if c.n == 0 {
		return 0, nil, StatusIncomplete, nil
	}

	var hdr [2]byte
	for i := range hdr {
		b, more, delim := c.next()
		if delim {
			src.Discard(c.pos)
			return 0, nil, StatusInvalid, ErrTruncatedFrame
		}
		if !more {
			return 0, nil, StatusIncomplete, nil
		}
		hdr[i] = b
	}

	length := int(hdr[0])<<8 | int(hdr[1])
	if length == 0 || length > MaxDataLength {
		src.Discard(1)
		return 0, nil, StatusInvalid, ErrInvalidLength
	}
	limit, isBounded := sourceCap(src)
	if isBounded && HeaderLength+length+1 > limit {
		src.Discard(1)
		return 0, nil, StatusInvalid, ErrFrameTooLarge
	}

	d.buf = d.buf[:0]
	for len(d.buf) <= length {
		b, more, delim := c.next()
		if delim {
			src.Discard(c.pos)
			return 0, nil, StatusInvalid, ErrTruncatedFrame
		}
		if !more {
			if isBounded && c.n >= limit {
				// Escaping made the frame larger than the source.
				src.Discard(1)
				return 0, nil, StatusInvalid, ErrFrameTooLarge
			}
			return 0, nil, StatusIncomplete, nil
		}
		d.buf = append(d.buf, b)
	}

	data, chk := d.buf[:length], d.buf[length]
	if !VerifyChecksum(data, chk) {
		src.Discard(1)
		return 0, nil, StatusInvalid, ErrChecksumMismatch
	}

	src.Discard(c.pos)
	return data[0], data[1:], StatusComplete, nil
}

func sourceCap(src Source) (int, bool) {
	if b, ok := src.(bounded); ok {
		return b.Cap(), true
	}
	return 0, false
}

// syncToDelimiter drops any bytes ahead of the first start delimiter.
func (*Decoder) syncToDelimiter(src Source) {
	n := src.Len()
	skip := 0
	for skip < n && src.Peek(skip) != StartDelimiter {
		skip++
	}
	if skip > 0 {
		src.Discard(skip)
	}
}
