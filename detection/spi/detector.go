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

// Package spi finds radios on SPI buses. Importing it registers the
// detector with the detection package.
package spi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZaparooProject/go-xbee/detection"
	"github.com/ZaparooProject/go-xbee/transport/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Config describes one SPI candidate.
type Config struct {
	// Additional metadata
	Metadata map[string]string `json:"metadata,omitempty"`
	// periph bus name or device path (e.g., "SPI0.0", "/dev/spidev0.0")
	Device string `json:"device"`
	// Human-readable name
	Name string `json:"name,omitempty"`
	// GPIO wired to the radio's nATTN line
	AttentionPin string `json:"attn_pin,omitempty"`
}

// detector implements the Detector interface for SPI devices
type detector struct{}

// New creates a new SPI detector
func New() detection.Detector {
	return &detector{}
}

// init registers the detector on package import
func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "spi"
}

// Detect lists configured and registered SPI buses. A bus cannot tell
// whether a radio is attached, so Passive mode reports every candidate
// with low confidence and the other modes keep only buses that answer.
func (*detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	configs := gatherConfigs()
	if len(configs) == 0 {
		return nil, detection.ErrNoDevicesFound
	}

	var devices []detection.DeviceInfo
	for _, config := range configs {
		select {
		case <-ctx.Done():
			return devices, detection.ErrDetectionTimeout
		default:
		}

		if detection.IsPathIgnored(config.Device, opts.IgnorePaths) {
			continue
		}

		device := createDeviceInfo(config)
		if opts.Mode != detection.Passive {
			id, err := probeDeviceFn(ctx, config, opts.Mode)
			if err != nil {
				continue
			}
			id.Annotate(&device, opts.Mode)
		}
		devices = append(devices, device)
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

// gatherConfigs collects SPI candidates from all sources
func gatherConfigs() []Config {
	var configs []Config
	configs = append(configs, loadConfigFile()...)
	if envConfig := loadEnvConfig(); envConfig != nil {
		configs = append(configs, *envConfig)
	}
	configs = append(configs, registeredBuses()...)
	return deduplicateConfigs(configs)
}

// createDeviceInfo creates a DeviceInfo from a Config
func createDeviceInfo(config Config) detection.DeviceInfo {
	device := detection.DeviceInfo{
		Transport:  "spi",
		Path:       config.Device,
		Name:       config.Name,
		Confidence: detection.Low,
		Metadata:   make(map[string]string),
	}
	for k, v := range config.Metadata {
		device.Metadata[k] = v
	}
	if config.AttentionPin != "" {
		device.Metadata["attn_pin"] = config.AttentionPin
	}
	if device.Name == "" {
		device.Name = "SPI device at " + config.Device
	}
	return device
}

// configPaths are searched in order; the first readable file wins.
var configPaths = func() []string {
	return []string{
		"xbee-spi.json",
		filepath.Join(os.Getenv("HOME"), ".config", "xbee", "spi.json"),
		"/etc/xbee/spi.json",
	}
}

// loadConfigFile loads SPI candidates from a JSON file holding either one
// Config or a list of them.
func loadConfigFile() []Config {
	for _, path := range configPaths() {
		data, err := os.ReadFile(path) // #nosec G304 -- fixed search paths
		if err != nil {
			continue
		}

		var configs []Config
		if err := json.Unmarshal(data, &configs); err == nil {
			return configs
		}
		var config Config
		if err := json.Unmarshal(data, &config); err == nil && config.Device != "" {
			return []Config{config}
		}
	}
	return nil
}

// loadEnvConfig reads XBEE_SPI_DEVICE and XBEE_SPI_ATTN_PIN.
func loadEnvConfig() *Config {
	device := os.Getenv("XBEE_SPI_DEVICE")
	if device == "" {
		return nil
	}
	return &Config{
		Device:       device,
		Name:         "SPI device from environment",
		AttentionPin: os.Getenv("XBEE_SPI_ATTN_PIN"),
	}
}

// listBuses returns the names of SPI buses the host drivers registered.
// It is replaced in tests.
var listBuses = func() ([]string, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	refs := spireg.All()
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Name)
	}
	return names, nil
}

func registeredBuses() []Config {
	names, err := listBuses()
	if err != nil {
		return nil
	}
	configs := make([]Config, 0, len(names))
	for _, name := range names {
		configs = append(configs, Config{Device: name})
	}
	return configs
}

// deduplicateConfigs drops repeated devices, keeping the first.
func deduplicateConfigs(configs []Config) []Config {
	seen := make(map[string]bool)
	var unique []Config
	for _, config := range configs {
		if !seen[config.Device] {
			seen[config.Device] = true
			unique = append(unique, config)
		}
	}
	return unique
}

// probeDeviceFn is replaced in tests.
var probeDeviceFn = probeDevice

func probeDevice(ctx context.Context, config Config, mode detection.Mode) (detection.Identity, error) {
	cfg := spi.DefaultConfig()
	cfg.AttentionPin = config.AttentionPin
	transport, err := spi.NewWithConfig(config.Device, cfg)
	if err != nil {
		return detection.Identity{}, fmt.Errorf("open: %w", err)
	}
	return detection.Probe(ctx, transport, mode) //nolint:wrapcheck // already prefixed
}
