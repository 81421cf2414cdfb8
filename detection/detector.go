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

// Package detection finds radios attached to the host. Transport packages
// register a Detector from init; DetectAll runs them together and merges
// what they report.
package detection

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ZaparooProject/go-xbee/internal/syncutil"
)

// Mode sets how far a detector may go to confirm a candidate.
type Mode int

const (
	// Passive only inspects port descriptors and never opens a port.
	Passive Mode = iota
	// Safe opens each candidate and asks for its API mode.
	Safe
	// Full also reads the radio's address and node identifier.
	Full
)

func (m Mode) String() string {
	switch m {
	case Passive:
		return "passive"
	case Safe:
		return "safe"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Confidence grades how sure a detector is that a radio sits at a path.
type Confidence int

const (
	// Low means the port could host a radio.
	Low Confidence = iota
	// Medium means its USB descriptors match a known radio adapter.
	Medium
	// High means a radio answered in API mode.
	High
)

func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// DeviceInfo describes one detected radio.
type DeviceInfo struct {
	// Metadata holds detector specific facts such as "vidpid", or
	// "node_id" and "address" after a Full probe.
	Metadata   map[string]string
	Transport  string // "uart" or "spi"
	Path       string // e.g. "/dev/ttyUSB0" or "SPI0.0"
	Name       string
	Confidence Confidence
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s device at %s (confidence: %s)", d.Transport, d.Path, d.Confidence)
}

// Options tunes a detection run.
type Options struct {
	// Blocklist holds VID:PID pairs that are never radios.
	Blocklist []string
	// IgnorePaths holds ports to skip, e.g. a GPS on /dev/ttyUSB0.
	IgnorePaths []string
	// Transports limits the run to these detectors. Empty means all.
	Transports []string
	CacheTTL   time.Duration
	// Timeout bounds the whole run. Zero leaves it to ctx.
	Timeout     time.Duration
	Mode        Mode
	EnableCache bool
}

// DefaultOptions probes in Safe mode and caches results for 30 seconds.
func DefaultOptions() Options {
	return Options{
		Mode:        Safe,
		Timeout:     5 * time.Second,
		Blocklist:   DefaultBlocklist(),
		EnableCache: true,
		CacheTTL:    30 * time.Second,
	}
}

// Detector searches one transport for radios.
type Detector interface {
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
	Transport() string
}

// Detection errors
var (
	ErrNoDevicesFound   = errors.New("no XBee devices found")
	ErrDetectionTimeout = errors.New("detection timeout")
	ErrNoDetectors      = errors.New("no detectors available for specified transports")
)

type detectorSet struct {
	list []Detector
	mu   syncutil.RWMutex
}

var registry detectorSet

// RegisterDetector makes d part of every DetectAll run that does not
// exclude its transport.
func RegisterDetector(d Detector) {
	registry.mu.Write(func() { registry.list = append(registry.list, d) })
}

// matching returns the registered detectors for transports, or all of
// them when transports is empty.
func (s *detectorSet) matching(transports []string) []Detector {
	var out []Detector
	s.mu.Read(func() {
		for _, d := range s.list {
			if len(transports) == 0 || slices.Contains(transports, d.Transport()) {
				out = append(out, d)
			}
		}
	})
	return out
}

type detectionResult struct {
	err     error
	devices []DeviceInfo
}

// DetectAll runs the selected detectors concurrently. Devices come back
// most confident first. An error is returned only when nothing was found:
// ErrNoDevicesFound if every detector came up empty, otherwise the
// detectors' errors joined.
func DetectAll(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	detectors := registry.matching(opts.Transports)
	if len(detectors) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoDetectors, opts.Transports)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	results := make(chan detectionResult, len(detectors))
	for _, d := range detectors {
		go func() { results <- detectOne(ctx, d, opts) }()
	}

	var (
		devices []DeviceInfo
		errs    []error
	)
	for range detectors {
		select {
		case res := <-results:
			if res.err != nil {
				errs = append(errs, res.err)
				continue
			}
			devices = append(devices, res.devices...)
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrDetectionTimeout, ctx.Err())
		}
	}

	switch {
	case len(devices) > 0:
		sortDevices(devices)
		return devices, nil
	case len(errs) > 0:
		return nil, errors.Join(errs...)
	default:
		return nil, ErrNoDevicesFound
	}
}

func detectOne(ctx context.Context, d Detector, opts *Options) detectionResult {
	transport := d.Transport()
	if opts.EnableCache {
		// Detect applied the filters when the entry was stored, but opts
		// may carry different ones now.
		if cached, ok := getCached(transport, opts.CacheTTL); ok {
			return detectionResult{devices: filterDevices(cached, opts)}
		}
	}

	devices, err := d.Detect(ctx, opts)
	if err != nil && !errors.Is(err, ErrNoDevicesFound) {
		return detectionResult{err: fmt.Errorf("%s: %w", transport, err)}
	}

	if opts.EnableCache {
		if len(devices) == 0 {
			// An unplugged radio must not linger until the TTL runs out.
			clearCacheForTransport(transport)
		} else {
			setCached(transport, devices)
		}
	}
	return detectionResult{devices: devices}
}

// filterDevices drops ignored paths and blocklisted adapters.
func filterDevices(devices []DeviceInfo, opts *Options) []DeviceInfo {
	if len(opts.IgnorePaths) == 0 && len(opts.Blocklist) == 0 {
		return devices
	}
	return slices.DeleteFunc(slices.Clone(devices), func(d DeviceInfo) bool {
		if IsPathIgnored(d.Path, opts.IgnorePaths) {
			return true
		}
		vidpid, ok := d.Metadata["vidpid"]
		return ok && IsBlocked(vidpid, opts.Blocklist)
	})
}

// sortDevices orders by confidence, highest first, then by path.
func sortDevices(devices []DeviceInfo) {
	slices.SortStableFunc(devices, func(a, b DeviceInfo) int {
		if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})
}

// ClearDetectionCache forgets every cached result.
func ClearDetectionCache() {
	clearCache()
}

// ClearDetectionCacheForTransport forgets the cached result of one
// transport's detector.
func ClearDetectionCacheForTransport(transport string) {
	clearCacheForTransport(transport)
}
