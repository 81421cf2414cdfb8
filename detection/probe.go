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
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-xbee"
	"github.com/ZaparooProject/go-xbee/service"
)

// ProbeTimeout bounds one probe.
const ProbeTimeout = 2 * time.Second

// Identity is what a probe learned about a radio.
type Identity struct {
	NodeID  string
	Address xbee.Address
	APIMode xbee.APIMode
}

// Probe talks to the radio behind transport and closes the transport when
// done. Safe mode reads AP; Full mode runs the identify sequence. Passive
// mode never probes and returns an error.
func Probe(ctx context.Context, transport xbee.Transport, mode Mode) (Identity, error) {
	if mode == Passive {
		_ = transport.Close()
		return Identity{}, fmt.Errorf("%w: passive mode does not probe", xbee.ErrInvalidParameter)
	}

	cfg := service.DefaultConfig()
	cfg.TickInterval = 5 * time.Millisecond
	r, err := service.New(transport, cfg)
	if err != nil {
		_ = transport.Close()
		return Identity{}, fmt.Errorf("probe: %w", err)
	}
	// The runner outlives ctx so a timed-out probe reports the deadline
	// rather than a stopped runner.
	if err := r.Start(context.WithoutCancel(ctx)); err != nil {
		_ = r.Stop()
		return Identity{}, fmt.Errorf("probe: %w", err)
	}
	defer func() { _ = r.Stop() }()

	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	build := func(n *xbee.Network) *xbee.Chain { return n.Local().ReadParameter(xbee.CmdAPIMode) }
	if mode == Full {
		build = func(n *xbee.Network) *xbee.Chain { return n.Local().Identify() }
	}
	if _, err := r.Exec(ctx, build); err != nil {
		return Identity{}, fmt.Errorf("probe: %w", err)
	}

	var id Identity
	r.Do(func(n *xbee.Network) {
		id = Identity{
			NodeID:  n.NodeIdentifier(),
			Address: n.LocalAddress(),
			APIMode: n.APIMode(),
		}
	})
	return id, nil
}

// Annotate records a probe result on device.
func (id Identity) Annotate(device *DeviceInfo, mode Mode) {
	device.Confidence = High
	if device.Metadata == nil {
		device.Metadata = make(map[string]string)
	}
	device.Metadata["api_mode"] = id.APIMode.String()
	if mode == Full {
		device.Metadata["address"] = id.Address.String()
		device.Metadata["node_id"] = id.NodeID
	}
}
