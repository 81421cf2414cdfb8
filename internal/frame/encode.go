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

// EncodedLength returns the number of wire bytes Encode produces.
func EncodedLength(apiID byte, payload []byte, escaped bool) int {
	n := MinFrameLength + len(payload)
	if !escaped {
		return n
	}
	length := len(payload) + 1
	covered := []byte{byte(length >> 8), byte(length), apiID, checksumOf(apiID, payload)}
	return n + CountEscapes(covered) + CountEscapes(payload)
}

// Encode serializes an API frame: start delimiter, big-endian length of
// API id plus payload, API id, payload and checksum. With escaped set,
// every reserved byte after the start delimiter is byte-stuffed.
func Encode(apiID byte, payload []byte, escaped bool) []byte {
	return AppendEncoded(make([]byte, 0, EncodedLength(apiID, payload, escaped)), apiID, payload, escaped)
}

// AppendEncoded appends the encoded frame to dst and returns the result.
func AppendEncoded(dst []byte, apiID byte, payload []byte, escaped bool) []byte {
	length := len(payload) + 1

	dst = append(dst, StartDelimiter)
	dst = appendByte(dst, byte(length>>8), escaped)
	dst = appendByte(dst, byte(length), escaped)
	dst = appendByte(dst, apiID, escaped)
	for _, b := range payload {
		dst = appendByte(dst, b, escaped)
	}
	return appendByte(dst, checksumOf(apiID, payload), escaped)
}

func checksumOf(apiID byte, payload []byte) byte {
	sum := apiID
	for _, b := range payload {
		sum += b
	}
	return 0xFF - sum
}
