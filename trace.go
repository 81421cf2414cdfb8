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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZaparooProject/go-xbee/internal/syncutil"
)

// TraceDirection indicates the direction of wire data
type TraceDirection string

const (
	// TraceTX indicates data sent to the radio
	TraceTX TraceDirection = "TX"
	// TraceRX indicates data received from the radio
	TraceRX TraceDirection = "RX"
)

// defaultTraceEntries is used when NewTraceBuffer gets no capacity.
const defaultTraceEntries = 32

// maxTraceHexBytes is how many bytes of an entry are printed.
const maxTraceHexBytes = 32

// TraceEntry is one chunk of wire traffic.
type TraceEntry struct {
	Timestamp time.Time
	Direction TraceDirection
	Note      string
	Data      []byte
}

func (e TraceEntry) String() string {
	if e.Note != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", e.Timestamp.Format("15:04:05.000"), e.Direction, formatHex(e.Data), e.Note)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Timestamp.Format("15:04:05.000"), e.Direction, formatHex(e.Data))
}

// TraceableError carries the wire traffic that preceded a transport
// failure. Extract it with errors.As or GetTrace:
//
//	if te := xbee.GetTrace(err); te != nil {
//	    log.Printf("wire trace:\n%s", te.FormatTrace())
//	}
type TraceableError struct {
	Err       error
	Transport string
	Port      string
	Trace     []TraceEntry
}

func (e *TraceableError) Error() string {
	return e.Err.Error()
}

func (e *TraceableError) Unwrap() error {
	return e.Err
}

// FormatTrace renders the trace one entry per line, oldest first.
func (e *TraceableError) FormatTrace() string {
	if len(e.Trace) == 0 {
		return fmt.Sprintf("[%s:%s] (no trace data)", e.Transport, e.Port)
	}

	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "[%s:%s] Wire trace (%d entries):\n", e.Transport, e.Port, len(e.Trace))
	for _, entry := range e.Trace {
		arrow := ">"
		if entry.Direction == TraceRX {
			arrow = "<"
		}
		if entry.Note != "" {
			_, _ = fmt.Fprintf(&sb, "  %s %s (%s)\n", arrow, formatHex(entry.Data), entry.Note)
		} else {
			_, _ = fmt.Fprintf(&sb, "  %s %s\n", arrow, formatHex(entry.Data))
		}
	}
	return sb.String()
}

func formatHex(data []byte) string {
	switch {
	case len(data) == 0:
		return "(empty)"
	case len(data) > maxTraceHexBytes:
		return fmt.Sprintf("% X ... (%d bytes total)", data[:maxTraceHexBytes], len(data))
	default:
		return fmt.Sprintf("% X", data)
	}
}

// TraceBuffer keeps the most recent wire traffic of one transport in a
// fixed-size ring. It is safe for a writer and a reader goroutine.
type TraceBuffer struct {
	transport string
	port      string
	entries   []TraceEntry
	next      int
	full      bool
	mu        syncutil.Mutex
}

// NewTraceBuffer creates a trace buffer holding up to size entries.
func NewTraceBuffer(transport, port string, size int) *TraceBuffer {
	if size <= 0 {
		size = defaultTraceEntries
	}
	return &TraceBuffer{
		transport: transport,
		port:      port,
		entries:   make([]TraceEntry, size),
	}
}

// RecordTX records bytes written to the radio.
func (tb *TraceBuffer) RecordTX(data []byte, note string) {
	tb.record(TraceTX, data, note)
}

// RecordRX records bytes read from the radio.
func (tb *TraceBuffer) RecordRX(data []byte, note string) {
	tb.record(TraceRX, data, note)
}

func (tb *TraceBuffer) record(dir TraceDirection, data []byte, note string) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.entries[tb.next] = TraceEntry{
		Timestamp: time.Now(),
		Direction: dir,
		Note:      note,
		Data:      bytes.Clone(data),
	}
	tb.next++
	if tb.next == len(tb.entries) {
		tb.next = 0
		tb.full = true
	}
}

// Entries returns a copy of the buffered entries, oldest first.
func (tb *TraceBuffer) Entries() []TraceEntry {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if !tb.full {
		return append([]TraceEntry(nil), tb.entries[:tb.next]...)
	}
	out := make([]TraceEntry, 0, len(tb.entries))
	out = append(out, tb.entries[tb.next:]...)
	return append(out, tb.entries[:tb.next]...)
}

// Len returns the number of buffered entries.
func (tb *TraceBuffer) Len() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if tb.full {
		return len(tb.entries)
	}
	return tb.next
}

// WrapError attaches the buffered trace to err. A nil err stays nil.
func (tb *TraceBuffer) WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &TraceableError{
		Err:       err,
		Transport: tb.transport,
		Port:      tb.port,
		Trace:     tb.Entries(),
	}
}

// Clear drops every entry.
func (tb *TraceBuffer) Clear() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	clear(tb.entries)
	tb.next = 0
	tb.full = false
}

// HasTrace reports whether err carries a wire trace.
func HasTrace(err error) bool {
	return GetTrace(err) != nil
}

// GetTrace extracts the wire trace from err, or nil.
func GetTrace(err error) *TraceableError {
	var te *TraceableError
	if errors.As(err, &te) {
		return te
	}
	return nil
}
