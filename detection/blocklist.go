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

package detection

import (
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// DefaultBlocklist returns USB adapters that must not be opened while
// looking for radios. Entries are VID:PID in hex, compared without regard
// to case.
func DefaultBlocklist() []string {
	return []string{
		"2341:0043", // Arduino Uno: resets when the port opens
		"2341:0001", // Arduino Uno (older firmware)
		"1366:0105", // SEGGER J-Link CDC: debug console, not a radio
	}
}

// IsBlocked reports whether vidpid is on the blocklist.
func IsBlocked(vidpid string, blocklist []string) bool {
	vidpid = strings.TrimSpace(vidpid)
	if vidpid == "" {
		return false
	}
	return slices.ContainsFunc(blocklist, func(blocked string) bool {
		return strings.EqualFold(vidpid, strings.TrimSpace(blocked))
	})
}

// NormalizeVIDPID joins a USB vendor and product id into the upper-case
// "VVVV:PPPP" form used by blocklists. It returns "" unless both ids are
// hex numbers that fit 16 bits.
func NormalizeVIDPID(vid, pid string) string {
	v, err := strconv.ParseUint(strings.TrimSpace(vid), 16, 16)
	if err != nil {
		return ""
	}
	p, err := strconv.ParseUint(strings.TrimSpace(pid), 16, 16)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%04X:%04X", v, p)
}

// IsPathIgnored reports whether devicePath matches an ignore entry,
// either exactly or after cleaning and case folding.
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" {
		return false
	}
	device := normalizedPath(devicePath)
	return slices.ContainsFunc(ignorePaths, func(ignore string) bool {
		return ignore != "" && (ignore == devicePath || normalizedPath(ignore) == device)
	})
}

// normalizedPath folds case so Windows COM names compare equal.
func normalizedPath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}
