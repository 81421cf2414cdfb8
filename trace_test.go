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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceBuffer_EvictsOldest(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer("uart", "/dev/ttyUSB0", 3)
	for i := range 5 {
		tb.RecordTX([]byte{byte(i)}, "")
	}
	entries := tb.Entries()
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, []byte{byte(i + 2)}, e.Data)
		assert.Equal(t, TraceTX, e.Direction)
	}
	assert.Equal(t, 3, tb.Len())

	tb.Clear()
	assert.Zero(t, tb.Len())
	assert.Empty(t, tb.Entries())
}

func TestTraceBuffer_CopiesData(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer("uart", "COM3", 0)
	data := []byte{0x7E, 0x00}
	tb.RecordRX(data, "partial")
	data[0] = 0

	entries := tb.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, []byte{0x7E, 0x00}, entries[0].Data)
	assert.Equal(t, TraceRX, entries[0].Direction)
	assert.Contains(t, entries[0].String(), "RX: 7E 00 (partial)")
}

func TestTraceBuffer_WrapError(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer("uart", "/dev/ttyUSB0", 4)
	assert.NoError(t, tb.WrapError(nil))

	tb.RecordTX([]byte{0x7E, 0x00, 0x04}, "")
	tb.RecordRX(nil, "read timeout")
	err := fmt.Errorf("service: %w", tb.WrapError(ErrTransportRead))

	require.ErrorIs(t, err, ErrTransportRead)
	assert.True(t, HasTrace(err))
	te := GetTrace(err)
	require.NotNil(t, te)
	assert.Equal(t, "transport read failed", te.Error())
	assert.Equal(t, "[uart:/dev/ttyUSB0] Wire trace (2 entries):\n"+
		"  > 7E 00 04\n"+
		"  < (empty) (read timeout)\n", te.FormatTrace())

	assert.False(t, HasTrace(ErrTransportRead))
	assert.Nil(t, GetTrace(nil))
	empty := &TraceableError{Err: ErrTransportRead, Transport: "spi", Port: "0"}
	assert.Equal(t, "[spi:0] (no trace data)", empty.FormatTrace())
}

func TestFormatHexTruncates(t *testing.T) {
	t.Parallel()

	long := bytes.Repeat([]byte{0xAB}, maxTraceHexBytes+8)
	out := formatHex(long)
	assert.Contains(t, out, "... (40 bytes total)")
	assert.Equal(t, "01 02", formatHex([]byte{1, 2}))
}
