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

// Package uart finds radios on serial ports. Importing it registers the
// detector with the detection package.
package uart

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/ZaparooProject/go-xbee"
	"github.com/ZaparooProject/go-xbee/detection"
	"github.com/ZaparooProject/go-xbee/transport/uart"
	"go.bug.st/serial/enumerator"
)

// maxConcurrentProbes bounds how many ports are held open at once.
const maxConcurrentProbes = 4

// knownAdapters are USB bridges found on XBee carrier boards.
var knownAdapters = []string{
	"0403:6015", // FTDI FT231X (Digi XBIB, SparkFun XBee Explorer)
	"0403:6001", // FTDI FT232R
	"10C4:EA60", // Silicon Labs CP210x (XBee 3 USB adapters)
	"1A86:7523", // QinHeng CH340
}

var (
	productKeywords = []string{"xbee", "digi", "zigbee", "digimesh"}
	// Serial device names a radio header is commonly wired to.
	portPatterns = []string{"usbserial", "usbmodem", "ttyusb", "ttyacm", "ttyama", "serial0"}
)

// Hooks replaced in tests.
var (
	listPorts     = enumerator.GetDetailedPortsList
	probeDeviceFn = probeDevice
)

type detector struct{}

// New returns the serial port detector.
func New() detection.Detector {
	return detector{}
}

func init() {
	detection.RegisterDetector(New())
}

func (detector) Transport() string {
	return "uart"
}

// Detect lists serial ports, drops the ones opts excludes and, unless the
// mode is Passive, keeps only ports where a radio answers.
func (detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var candidates []candidate
	for _, p := range ports {
		if c := newCandidate(p); !c.excluded(opts) {
			candidates = append(candidates, c)
		}
	}

	devices := examine(ctx, candidates, opts.Mode)
	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

// candidate is a serial port that might host a radio.
type candidate struct {
	path    string
	product string
	serial  string
	vidpid  string // normalized, empty for non-USB ports
}

func newCandidate(p *enumerator.PortDetails) candidate {
	c := candidate{path: p.Name, product: p.Product, serial: p.SerialNumber}
	if p.IsUSB {
		c.vidpid = detection.NormalizeVIDPID(p.VID, p.PID)
	}
	return c
}

// knownAdapter reports whether the USB bridge or product string belongs to
// a radio carrier board.
func (c candidate) knownAdapter() bool {
	if c.vidpid != "" && slices.Contains(knownAdapters, c.vidpid) {
		return true
	}
	product := strings.ToLower(c.product)
	return slices.ContainsFunc(productKeywords, func(k string) bool {
		return strings.Contains(product, k)
	})
}

func (c candidate) excluded(opts *detection.Options) bool {
	if c.vidpid != "" && detection.IsBlocked(c.vidpid, opts.Blocklist) {
		return true
	}
	if detection.IsPathIgnored(c.path, opts.IgnorePaths) {
		return true
	}
	if c.vidpid != "" || c.knownAdapter() {
		return false
	}
	path := strings.ToLower(c.path)
	return !slices.ContainsFunc(portPatterns, func(p string) bool {
		return strings.Contains(path, p)
	})
}

func (c candidate) device() detection.DeviceInfo {
	d := detection.DeviceInfo{
		Transport:  "uart",
		Path:       c.path,
		Name:       c.path,
		Confidence: detection.Low,
		Metadata:   make(map[string]string),
	}
	if c.knownAdapter() {
		d.Confidence = detection.Medium
	}
	if c.product != "" {
		d.Name = c.product
		d.Metadata["product"] = c.product
	}
	if c.vidpid != "" {
		d.Metadata["vidpid"] = c.vidpid
	}
	if c.serial != "" {
		d.Metadata["serial"] = c.serial
	}
	return d
}

// examine inspects candidates concurrently and returns the devices found
// in candidate order.
func examine(ctx context.Context, candidates []candidate, mode detection.Mode) []detection.DeviceInfo {
	found := make([]*detection.DeviceInfo, len(candidates))
	sem := make(chan struct{}, maxConcurrentProbes)
	var wg sync.WaitGroup

loop:
	for i, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break loop
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if d, ok := inspect(ctx, c, mode); ok {
				found[i] = &d
			}
		}()
	}
	wg.Wait()

	var devices []detection.DeviceInfo
	for _, d := range found {
		if d != nil {
			devices = append(devices, *d)
		}
	}
	return devices
}

// inspect decides whether c holds a radio. Passive mode trusts descriptors
// alone and keeps only known adapters; other modes require an answer.
func inspect(ctx context.Context, c candidate, mode detection.Mode) (detection.DeviceInfo, bool) {
	device := c.device()
	if mode == detection.Passive {
		return device, device.Confidence > detection.Low
	}

	id, err := probeDeviceFn(ctx, c.path, mode)
	if err != nil {
		xbee.Debugf("uart detect %s: %v", c.path, err)
		return detection.DeviceInfo{}, false
	}
	id.Annotate(&device, mode)
	return device, true
}

// probeDevice opens path once and asks the radio to identify itself.
// Detection never retries an open: a port that refuses is skipped.
func probeDevice(ctx context.Context, path string, mode detection.Mode) (detection.Identity, error) {
	cfg := uart.DefaultConfig()
	cfg.OpenRetry = &xbee.RetryConfig{}
	transport, err := uart.NewWithConfig(path, cfg)
	if err != nil {
		return detection.Identity{}, fmt.Errorf("open: %w", err)
	}
	return detection.Probe(ctx, transport, mode) //nolint:wrapcheck // already prefixed
}
