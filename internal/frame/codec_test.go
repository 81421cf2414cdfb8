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

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceSource is a Source over a plain byte slice
type sliceSource struct {
	data []byte
}

func (s *sliceSource) Len() int        { return len(s.data) }
func (s *sliceSource) Peek(i int) byte { return s.data[i] }
func (s *sliceSource) Discard(n int)   { s.data = s.data[n:] }

func TestEncode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload []byte
		want    []byte
		apiID   byte
		escaped bool
	}{
		{
			name:    "plain AT command",
			apiID:   APIATCommand,
			payload: []byte{0x01, 'N', 'H'},
			want:    []byte{0x7E, 0x00, 0x04, 0x08, 0x01, 0x4E, 0x48, 0x60},
		},
		{
			name:    "escaped AT command without reserved bytes",
			apiID:   APIATCommand,
			payload: []byte{0x01, 'N', 'H'},
			escaped: true,
			want:    []byte{0x7E, 0x00, 0x04, 0x08, 0x01, 0x4E, 0x48, 0x60},
		},
		{
			name:    "escaped payload reserved bytes",
			apiID:   APITransmitRequest,
			payload: []byte{0x01, 0x7E, 0x11, 0x13, 0x7D},
			escaped: true,
			want: []byte{
				0x7E, 0x00, 0x06, 0x10, 0x01,
				0x7D, 0x5E, 0x7D, 0x31, 0x7D, 0x33, 0x7D, 0x5D, 0xCF,
			},
		},
		{
			name:    "plain payload reserved bytes untouched",
			apiID:   APITransmitRequest,
			payload: []byte{0x01, 0x7E, 0x11, 0x13, 0x7D},
			want:    []byte{0x7E, 0x00, 0x06, 0x10, 0x01, 0x7E, 0x11, 0x13, 0x7D, 0xCF},
		},
		{
			name:    "escaped length byte",
			apiID:   APIATCommand,
			payload: append([]byte{0x01}, make([]byte, 15)...),
			escaped: true,
			want: append(append([]byte{0x7E, 0x00, 0x7D, 0x31, 0x08, 0x01}, make([]byte, 15)...),
				0xF6),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Encode(tt.apiID, tt.payload, tt.escaped)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, EncodedLength(tt.apiID, tt.payload, tt.escaped))
		})
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	t.Parallel()

	payloads := [][]byte{
		{0x01, 'I', 'D'},
		{0x01, 'I', 'D', 0x7F, 0xFF},
		{0x01, 0x7E, 0x7D, 0x11, 0x13, 0x00, 0xFF},
		bytes.Repeat([]byte{0x7E}, 40),
		append([]byte{0x01}, make([]byte, 15)...),
		{},
	}

	for _, escaped := range []bool{false, true} {
		for _, payload := range payloads {
			src := &sliceSource{data: Encode(APITransmitRequest, payload, escaped)}
			dec := NewDecoder(escaped)

			apiID, got, status, err := dec.Decode(src)
			require.NoError(t, err)
			require.Equal(t, StatusComplete, status, "escaped=%v payload=% X", escaped, payload)
			assert.Equal(t, byte(APITransmitRequest), apiID)
			assert.Equal(t, payload, append([]byte{}, got...))
			assert.Zero(t, src.Len(), "frame bytes should be consumed")
		}
	}
}

func TestDecode_Incomplete(t *testing.T) {
	t.Parallel()

	wire := Encode(APIATResponse, []byte{0x01, 'N', 'I', 0x00, 'r', 'o', 'u', 't', 'e', 'r'}, false)
	for cut := 1; cut < len(wire); cut++ {
		src := &sliceSource{data: append([]byte{}, wire[:cut]...)}
		_, _, status, err := NewDecoder(false).Decode(src)
		require.NoError(t, err)
		assert.Equal(t, StatusIncomplete, status, "cut=%d", cut)
		assert.Equal(t, cut, src.Len(), "incomplete frames must not be consumed")
	}
}

func TestDecode_EscapeSplitAcrossReads(t *testing.T) {
	t.Parallel()

	wire := Encode(APITransmitRequest, []byte{0x01, 0x7E}, true)
	escAt := bytes.IndexByte(wire[1:], Escape) + 1
	src := &sliceSource{data: append([]byte{}, wire[:escAt+1]...)}
	dec := NewDecoder(true)

	_, _, status, err := dec.Decode(src)
	require.NoError(t, err)
	assert.Equal(t, StatusIncomplete, status)

	src.data = append(src.data, wire[escAt+1:]...)
	_, payload, status, err := dec.Decode(src)
	require.NoError(t, err)
	require.Equal(t, StatusComplete, status)
	assert.Equal(t, []byte{0x01, 0x7E}, payload)
}

func TestDecode_SkipsGarbage(t *testing.T) {
	t.Parallel()

	wire := Encode(APIModemStatus, []byte{0x06}, false)
	src := &sliceSource{data: append([]byte{0x00, 0xFF, 0x13, 0x42}, wire...)}

	apiID, payload, status, err := NewDecoder(false).Decode(src)
	require.NoError(t, err)
	require.Equal(t, StatusComplete, status)
	assert.Equal(t, byte(APIModemStatus), apiID)
	assert.Equal(t, []byte{0x06}, payload)
}

func TestDecode_InvalidResynchronizes(t *testing.T) {
	t.Parallel()

	good := Encode(APIModemStatus, []byte{0x00}, false)

	tests := []struct {
		wantErr error
		name    string
		bad     []byte
		escaped bool
	}{
		{
			name:    "checksum mismatch",
			bad:     []byte{0x7E, 0x00, 0x02, 0x8A, 0x06, 0x00},
			wantErr: ErrChecksumMismatch,
		},
		{
			name:    "zero length",
			bad:     []byte{0x7E, 0x00, 0x00, 0xFF},
			wantErr: ErrInvalidLength,
		},
		{
			name:    "oversized length",
			bad:     []byte{0x7E, 0xFF, 0xFF, 0x10},
			wantErr: ErrInvalidLength,
		},
		{
			name:    "truncated by delimiter",
			bad:     []byte{0x7E, 0x00, 0x08, 0x10, 0x01},
			escaped: true,
			wantErr: ErrTruncatedFrame,
		},
		{
			name:    "escape followed by delimiter",
			bad:     []byte{0x7E, 0x00, 0x08, 0x10, 0x7D},
			escaped: true,
			wantErr: ErrTruncatedFrame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := &sliceSource{data: append(append([]byte{}, tt.bad...), good...)}
			dec := NewDecoder(tt.escaped)

			var sawInvalid bool
			for range 8 {
				apiID, payload, status, err := dec.Decode(src)
				switch status {
				case StatusInvalid:
					assert.ErrorIs(t, err, tt.wantErr)
					sawInvalid = true
					continue
				case StatusComplete:
					assert.True(t, sawInvalid, "bad frame should be reported first")
					assert.Equal(t, byte(APIModemStatus), apiID)
					assert.Equal(t, []byte{0x00}, payload)
					assert.Zero(t, src.Len())
					return
				case StatusIncomplete:
					t.Fatalf("decoder stalled with %d bytes buffered", src.Len())
				}
			}
			t.Fatal("decoder never recovered")
		})
	}
}

// cappedSource is a sliceSource that claims a fixed capacity, like a ring.
type cappedSource struct {
	sliceSource
	capacity int
}

func (s *cappedSource) Cap() int { return s.capacity }

func TestDecode_BoundedSource(t *testing.T) {
	t.Parallel()

	good := Encode(APIModemStatus, []byte{0x00}, false)

	t.Run("length beyond capacity", func(t *testing.T) {
		t.Parallel()
		src := &cappedSource{capacity: 16}
		src.data = append([]byte{0x7E, 0x00, 0x20, 0x01, 0x02}, good...)
		dec := NewDecoder(false)

		_, _, status, err := dec.Decode(src)
		require.Equal(t, StatusInvalid, status)
		require.ErrorIs(t, err, ErrFrameTooLarge)

		apiID, _, status, err := dec.Decode(src)
		require.NoError(t, err)
		require.Equal(t, StatusComplete, status)
		assert.Equal(t, byte(APIModemStatus), apiID)
	})

	t.Run("escaped frame fills source", func(t *testing.T) {
		t.Parallel()
		// Length 4 fits unescaped, but five escaped bytes do not.
		src := &cappedSource{capacity: 12}
		src.data = []byte{0x7E, 0x00, 0x04, 0x7D, 0x5E, 0x7D, 0x5E, 0x7D, 0x5E, 0x7D, 0x5E, 0x7D}
		dec := NewDecoder(true)

		_, _, status, err := dec.Decode(src)
		require.Equal(t, StatusInvalid, status)
		require.ErrorIs(t, err, ErrFrameTooLarge)
		assert.Equal(t, 11, src.Len())

		_, _, status, err = dec.Decode(src)
		require.NoError(t, err)
		assert.Equal(t, StatusIncomplete, status)
		assert.Zero(t, src.Len(), "bytes after the dropped delimiter are resynced away")
	})

	t.Run("partial frame that fits waits", func(t *testing.T) {
		t.Parallel()
		src := &cappedSource{capacity: 16}
		src.data = append([]byte{}, good[:len(good)-1]...)

		_, _, status, err := NewDecoder(false).Decode(src)
		require.NoError(t, err)
		assert.Equal(t, StatusIncomplete, status)
		assert.Equal(t, len(good)-1, src.Len())
	})
}

func TestMaxEncodedLength(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 95, MaxEncodedLength(MaxInboundLength(73), false))
	assert.Equal(t, 189, MaxEncodedLength(MaxInboundLength(73), true))
	assert.Equal(t, ATResponseOverhead+MaxATValueLength, MaxInboundLength(1))

	payload := bytes.Repeat([]byte{Escape}, 40)
	assert.LessOrEqual(t, EncodedLength(APIReceivePacket, payload, true),
		MaxEncodedLength(len(payload)+1, true))
}

func TestFitEscaped(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		data   []byte
		budget int
		want   int
	}{
		{name: "all fit", data: []byte{1, 2, 3}, budget: 5, want: 3},
		{name: "plain cut", data: []byte{1, 2, 3, 4}, budget: 2, want: 2},
		{name: "escape costs two", data: []byte{0x7E, 0x11, 0x01}, budget: 3, want: 1},
		{name: "escape does not split", data: []byte{0x01, 0x7D}, budget: 2, want: 1},
		{name: "zero budget", data: []byte{0x01}, budget: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FitEscaped(tt.data, tt.budget))
		})
	}
}

func TestCountEscapes(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 4, CountEscapes([]byte{0x7E, 0x7D, 0x11, 0x13, 0x12, 0x00}))
	assert.Zero(t, CountEscapes(nil))
}

func TestHasFrameID(t *testing.T) {
	t.Parallel()
	assert.True(t, HasFrameID(APIATCommand))
	assert.True(t, HasFrameID(APITransmitStatus))
	assert.False(t, HasFrameID(APIReceivePacket))
	assert.False(t, HasFrameID(APIModemStatus))
}
