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

package xbee

import (
	"testing"
	"time"

	testutil "github.com/ZaparooProject/go-xbee/internal/testing"
	"github.com/stretchr/testify/require"
)

const (
	tick     = time.Millisecond
	maxTicks = 200
)

// received is one OnDataReceived call.
type received struct {
	data   []byte
	source Address
}

// recorder collects observer callbacks.
type recorder struct {
	discoveries [][]Peer
	statuses    []ModemStatus
	data        []received
}

func (r *recorder) observer() Observer {
	return ObserverFuncs{
		DiscoveryComplete: func(_ *Network, peers []Peer) {
			r.discoveries = append(r.discoveries, append([]Peer(nil), peers...))
		},
		StatusChanged: func(_ *Network, status ModemStatus) {
			r.statuses = append(r.statuses, status)
		},
		DataReceived: func(_ *Network, source Address, data []byte) {
			r.data = append(r.data, received{source: source, data: append([]byte(nil), data...)})
		},
	}
}

// harness wires a Network to a VirtualRadio. Every tick services the
// network and feeds the radio's output back in.
type harness struct {
	t     *testing.T
	net   *Network
	radio *testutil.VirtualRadio
	rec   *recorder
}

func newHarness(t *testing.T, modify ...func(*Config)) *harness {
	t.Helper()

	cfg := DefaultConfig()
	for _, m := range modify {
		m(cfg)
	}
	radio := testutil.NewVirtualRadio()
	if cfg.APIMode.Escaped() {
		radio.SetEscaped(true)
	}
	rec := &recorder{}
	n, err := NewNetwork(radio, WithConfig(cfg), WithObserver(rec.observer()))
	require.NoError(t, err)
	return &harness{t: t, net: n, radio: radio, rec: rec}
}

func (h *harness) tick(elapsed time.Duration) {
	h.t.Helper()
	h.net.Service(elapsed)
	_, err := h.net.Ingest(h.radio.Drain())
	require.NoError(h.t, err)
}

// await ticks until c delivers its outcome.
func (h *harness) await(c *Chain) Result {
	h.t.Helper()
	for range maxTicks {
		select {
		case res := <-c.Done():
			return res
		default:
		}
		h.tick(tick)
	}
	h.t.Fatalf("chain to %v did not finish in %d ticks", c.Destination(), maxTicks)
	return Result{}
}

// settle ticks until nothing is in flight and every byte was decoded.
func (h *harness) settle() {
	h.t.Helper()
	for range maxTicks {
		h.tick(tick)
		if h.net.ActiveTransactions() == 0 && h.net.Buffered() == 0 && h.radio.Pending() == 0 {
			return
		}
	}
	h.t.Fatalf("network did not settle in %d ticks", maxTicks)
}

// commands lists the AT mnemonics the radio received, in order.
func (h *harness) commands() []string {
	var out []string
	for _, r := range h.radio.Requests() {
		if r.Command != "" {
			out = append(out, r.Command)
		}
	}
	return out
}
