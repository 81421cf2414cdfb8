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

// NeedsEscape reports whether b is a reserved control byte that must be
// byte-stuffed in escaped API mode.
func NeedsEscape(b byte) bool {
	switch b {
	case StartDelimiter, Escape, XON, XOFF:
		return true
	default:
		return false
	}
}

// CountEscapes returns how many bytes of data need escaping.
func CountEscapes(data []byte) int {
	n := 0
	for _, b := range data {
		if NeedsEscape(b) {
			n++
		}
	}
	return n
}

// appendByte appends b to dst, escaping it when required.
func appendByte(dst []byte, b byte, escaped bool) []byte {
	if escaped && NeedsEscape(b) {
		return append(dst, Escape, b^EscapeMask)
	}
	return append(dst, b)
}

// FitEscaped returns how many leading bytes of data fit into budget wire
// bytes once escaped. Escaped bytes cost two wire bytes.
func FitEscaped(data []byte, budget int) int {
	used := 0
	for i, b := range data {
		cost := 1
		if NeedsEscape(b) {
			cost = 2
		}
		if used+cost > budget {
			return i
		}
		used += cost
	}
	return len(data)
}
