// go-xbee
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-xbee.
//
// go-xbee is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-xbee is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-xbee; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package detection

import (
	"maps"
	"time"

	"github.com/ZaparooProject/go-xbee/internal/syncutil"
)

type cacheEntry struct {
	stored  time.Time
	devices []DeviceInfo
}

// detectionCache keeps the last result of each transport's detector.
type detectionCache struct {
	entries map[string]cacheEntry
	mu      syncutil.RWMutex
}

var cache = &detectionCache{entries: make(map[string]cacheEntry)}

// cloneDevices copies devices including their metadata, which probing
// annotates in place.
func cloneDevices(devices []DeviceInfo) []DeviceInfo {
	out := make([]DeviceInfo, len(devices))
	for i, d := range devices {
		d.Metadata = maps.Clone(d.Metadata)
		out[i] = d
	}
	return out
}

// getCached returns a copy of transport's devices if they are younger
// than ttl.
func getCached(transport string, ttl time.Duration) ([]DeviceInfo, bool) {
	var (
		devices []DeviceInfo
		ok      bool
	)
	cache.mu.Read(func() {
		entry, exists := cache.entries[transport]
		if !exists || time.Since(entry.stored) > ttl {
			return
		}
		devices, ok = cloneDevices(entry.devices), true
	})
	return devices, ok
}

func setCached(transport string, devices []DeviceInfo) {
	entry := cacheEntry{devices: cloneDevices(devices), stored: time.Now()}
	cache.mu.Write(func() { cache.entries[transport] = entry })
}

func clearCache() {
	cache.mu.Write(func() { clear(cache.entries) })
}

func clearCacheForTransport(transport string) {
	cache.mu.Write(func() { delete(cache.entries, transport) })
}
