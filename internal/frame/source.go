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

// BufferSource is a Source backed by a growable slice, for readers that
// receive bytes in chunks outside a ring buffer.
type BufferSource struct {
	buf []byte
}

// Write appends p. It never fails.
func (b *BufferSource) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Len returns the number of unconsumed bytes.
func (b *BufferSource) Len() int {
	return len(b.buf)
}

// Peek returns the byte at offset i.
func (b *BufferSource) Peek(i int) byte {
	return b.buf[i]
}

// Discard consumes the first n bytes.
func (b *BufferSource) Discard(n int) {
	n = min(n, len(b.buf))
	b.buf = b.buf[:copy(b.buf, b.buf[n:])]
}

// Reset drops everything buffered.
func (b *BufferSource) Reset() {
	b.buf = b.buf[:0]
}
