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

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ZaparooProject/go-xbee"
	"github.com/ZaparooProject/go-xbee/service"
	"github.com/ZaparooProject/go-xbee/transport/uart"
)

type networkConfig struct {
	NodeID     string `toml:"node_id"`
	NetworkID  uint16 `toml:"network_id"`
	PreambleID uint8  `toml:"preamble_id"`
}

type fileConfig struct {
	Device             string        `toml:"device"`
	AttentionPin       string        `toml:"attn_pin"`
	MetricsAddr        string        `toml:"metrics_addr"`
	APIMode            string        `toml:"api_mode"`
	TickInterval       string        `toml:"tick_interval"`
	TransactionTimeout string        `toml:"transaction_timeout"`
	DiscoveryTimeout   string        `toml:"discovery_timeout"`
	Network            networkConfig `toml:"network"`
	BaudRate           int           `toml:"baud_rate"`
	Retries            int           `toml:"retries"`
	Debug              bool          `toml:"debug"`
}

// config is everything the CLI needs after merging defaults, the TOML
// file and flags.
type config struct {
	net          *xbee.Config
	svc          *service.Config
	device       string
	attentionPin string
	metricsAddr  string
	nodeID       string
	timeout      time.Duration
	baudRate     int
	networkID    uint16
	preambleID   uint8
	hasNetwork   bool
	debug        bool
}

func defaultConfig() *config {
	return &config{
		net:      xbee.DefaultConfig(),
		svc:      service.DefaultConfig(),
		baudRate: uart.DefaultBaudRate,
		timeout:  15 * time.Second,
	}
}

func loadConfig(path string) (*config, error) {
	cfg := defaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("load xbeectl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("load xbeectl config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("device") {
		cfg.device = strings.TrimSpace(raw.Device)
	}
	if meta.IsDefined("attn_pin") {
		cfg.attentionPin = strings.TrimSpace(raw.AttentionPin)
	}
	if meta.IsDefined("metrics_addr") {
		cfg.metricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("baud_rate") {
		cfg.baudRate = raw.BaudRate
	}
	if meta.IsDefined("debug") {
		cfg.debug = raw.Debug
	}
	if meta.IsDefined("retries") {
		// Naming a retry count opts in to resending on timeout.
		cfg.net.TransactionRetries = raw.Retries
		cfg.net.RetryOnTimeout = raw.Retries > 0
	}

	if meta.IsDefined("api_mode") {
		mode, err := xbee.ParseAPIMode(strings.TrimSpace(raw.APIMode))
		if err != nil {
			return nil, fmt.Errorf("parse api_mode: %w", err)
		}
		cfg.net.APIMode = mode
	}

	durations := []struct {
		dst *time.Duration
		key string
		raw string
	}{
		{key: "tick_interval", raw: raw.TickInterval, dst: &cfg.svc.TickInterval},
		{key: "transaction_timeout", raw: raw.TransactionTimeout, dst: &cfg.net.TransactionTimeout},
		{key: "discovery_timeout", raw: raw.DiscoveryTimeout, dst: &cfg.net.DiscoveryTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("network") {
		cfg.hasNetwork = true
		cfg.networkID = raw.Network.NetworkID
		cfg.preambleID = raw.Network.PreambleID
		cfg.nodeID = strings.TrimSpace(raw.Network.NodeID)
	}

	return cfg, cfg.validate()
}

func (c *config) validate() error {
	if c.baudRate <= 0 {
		return fmt.Errorf("%w: baud rate %d", xbee.ErrInvalidConfig, c.baudRate)
	}
	if c.timeout <= 0 {
		return fmt.Errorf("%w: command timeout %v must be positive", xbee.ErrInvalidConfig, c.timeout)
	}
	if err := c.net.Validate(); err != nil {
		return err //nolint:wrapcheck // already descriptive
	}
	if err := c.svc.Validate(); err != nil {
		return err //nolint:wrapcheck // already descriptive
	}
	return nil
}
