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

import "sync/atomic"

// RingBuffer is a single-producer single-consumer byte queue. The producer
// (a serial read loop or interrupt-style callback) writes while the
// consumer (the network service tick) peeks and discards, without locks.
// head == tail means empty, so one slot always stays unused.
type RingBuffer struct {
	buf  []byte
	head atomic.Uint32 // next byte to consume, owned by the consumer
	tail atomic.Uint32 // next slot to fill, owned by the producer
}

// NewRingBuffer allocates a buffer holding up to size-1 bytes.
func NewRingBuffer(size int) *RingBuffer {
	if size < 2 {
		size = 2
	}
	return &RingBuffer{buf: make([]byte, size)}
}

// Cap returns the number of bytes the buffer can hold.
func (r *RingBuffer) Cap() int {
	return len(r.buf) - 1
}

// Len returns the number of buffered bytes.
func (r *RingBuffer) Len() int {
	head := int(r.head.Load())
	tail := int(r.tail.Load())
	if tail >= head {
		return tail - head
	}
	return len(r.buf) - head + tail
}

// Free returns how many more bytes fit.
func (r *RingBuffer) Free() int {
	return r.Cap() - r.Len()
}

// WriteByte appends one byte, failing with ErrBufferFull when full.
func (r *RingBuffer) WriteByte(b byte) error {
	tail := r.tail.Load()
	next := r.advance(tail, 1)
	if next == r.head.Load() {
		return ErrBufferFull
	}
	r.buf[tail] = b
	r.tail.Store(next)
	return nil
}

// Write appends as much of p as fits. A short write returns ErrBufferFull;
// the bytes that did not fit are dropped by the caller.
func (r *RingBuffer) Write(p []byte) (int, error) {
	tail := r.tail.Load()
	head := r.head.Load()
	n := 0
	for _, b := range p {
		next := r.advance(tail, 1)
		if next == head {
			break
		}
		r.buf[tail] = b
		tail = next
		n++
	}
	r.tail.Store(tail)
	if n < len(p) {
		return n, ErrBufferFull
	}
	return n, nil
}

// Peek returns the byte i positions after the head without consuming it.
// i must be less than Len.
func (r *RingBuffer) Peek(i int) byte {
	return r.buf[(int(r.head.Load())+i)%len(r.buf)]
}

// Discard consumes n bytes, or everything buffered if n exceeds Len.
func (r *RingBuffer) Discard(n int) {
	if l := r.Len(); n > l {
		n = l
	}
	if n <= 0 {
		return
	}
	r.head.Store(r.advance(r.head.Load(), n))
}

// Pop consumes one byte.
func (r *RingBuffer) Pop() (byte, bool) {
	head := r.head.Load()
	if head == r.tail.Load() {
		return 0, false
	}
	b := r.buf[head]
	r.head.Store(r.advance(head, 1))
	return b, true
}

func (r *RingBuffer) advance(idx uint32, n int) uint32 {
	return uint32((int(idx) + n) % len(r.buf)) //nolint:gosec // bounded by buffer length
}
