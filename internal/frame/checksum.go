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

// CalculateChecksum computes the API frame checksum over the API id and
// payload bytes: 0xFF minus the low byte of their sum.
func CalculateChecksum(data []byte) byte {
	sum := byte(0)
	for _, b := range data {
		sum += b
	}
	return 0xFF - sum
}

// VerifyChecksum reports whether chk is the valid checksum for data.
// Adding the checksum to the sum of the covered bytes must give 0xFF.
func VerifyChecksum(data []byte, chk byte) bool {
	sum := chk
	for _, b := range data {
		sum += b
	}
	return sum == 0xFF
}
