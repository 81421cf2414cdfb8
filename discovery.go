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
	"fmt"
	"slices"
	"time"
)

// DeviceType is the role a peer reports in its discovery reply.
type DeviceType uint8

// Device roles in ND replies
const (
	DeviceCoordinator DeviceType = 0
	DeviceRouter      DeviceType = 1
	DeviceEndDevice   DeviceType = 2
)

func (d DeviceType) String() string {
	switch d {
	case DeviceCoordinator:
		return "coordinator"
	case DeviceRouter:
		return "router"
	case DeviceEndDevice:
		return "end device"
	default:
		return fmt.Sprintf("DeviceType(%d)", uint8(d))
	}
}

// Peer is a radio found by node discovery.
type Peer struct {
	NodeID         string
	Address        Address
	NetworkAddress uint16
	ParentAddress  uint16
	ProfileID      uint16
	ManufacturerID uint16
	DeviceType     DeviceType
	Status         uint8
}

func (p Peer) String() string {
	if p.NodeID == "" {
		return p.Address.String()
	}
	return fmt.Sprintf("%s (%s)", p.NodeID, p.Address)
}

// ndMinLength covers MY, SH and SL, the fields every ND reply carries.
const ndMinLength = 10

// parsePeer decodes the value of an ND reply: MY, SH, SL, NI terminated by
// NUL, then parent, device type, status, profile and manufacturer. Fields
// after NI are optional.
func parsePeer(value []byte) (Peer, error) {
	if len(value) < ndMinLength {
		return Peer{}, fmt.Errorf("%w: discovery reply of %d bytes", ErrInvalidResponse, len(value))
	}
	f := Frame{payload: value}
	var p Peer
	p.NetworkAddress, _ = f.Uint16(0)
	high, _ := f.Uint32(2)
	low, _ := f.Uint32(6)
	p.Address = MakeAddress(high, low)

	ni, off, _ := f.CString(ndMinLength)
	p.NodeID = ni
	p.ParentAddress, _ = f.Uint16(off)
	dt, _ := f.Uint8(off + 2)
	p.DeviceType = DeviceType(dt)
	p.Status, _ = f.Uint8(off + 3)
	p.ProfileID, _ = f.Uint16(off + 4)
	p.ManufacturerID, _ = f.Uint16(off + 6)
	return p, nil
}

// DiscoverAsync sends ND to the attached radio. Peers are collected as
// replies arrive and observers hear OnDiscoveryComplete once the radio
// reports the end of discovery or DiscoveryTimeout passes. The chain stays
// in flight until then: it completes on the empty terminating reply and
// times out when the window closes first.
func (n *Network) DiscoverAsync() *Chain {
	return n.BeginTransaction(LocalAddress).NetworkDiscover().Pend()
}

// Discovering reports whether a discovery window is open.
func (n *Network) Discovering() bool {
	return n.discovering
}

// Peers returns a copy of every peer discovered so far.
func (n *Network) Peers() []Peer {
	return slices.Clone(n.peers)
}

// FindPeer looks a peer up by address.
func (n *Network) FindPeer(addr Address) (Peer, bool) {
	i := slices.IndexFunc(n.peers, func(p Peer) bool { return p.Address == addr })
	if i < 0 {
		return Peer{}, false
	}
	return n.peers[i], true
}

// FindPeerByName looks a peer up by node identifier.
func (n *Network) FindPeerByName(ni string) (Peer, bool) {
	i := slices.IndexFunc(n.peers, func(p Peer) bool { return p.NodeID == ni })
	if i < 0 {
		return Peer{}, false
	}
	return n.peers[i], true
}

// ClearPeers forgets every discovered peer.
func (n *Network) ClearPeers() {
	n.peers = n.peers[:0]
}

func (n *Network) beginDiscovery(t *Transaction) {
	if prev := n.pool.get(n.discovery); n.discovering && prev != nil && prev != t && prev.state == StateSent {
		debugf("%v superseded", prev)
		n.finish(prev, StateTimeout, prev.timeoutError())
	}
	n.discovering = true
	n.discoveryIn = n.cfg.DiscoveryTimeout
	n.discovery = n.pool.ref(t)
	debugf("discovery started, window %v", n.cfg.DiscoveryTimeout)
}

// recordDiscovery handles one ND reply. A reply without a value marks the
// end of discovery. It reports whether more replies are expected.
func (n *Network) recordDiscovery(f *Frame) bool {
	if f.Err() != nil {
		debugf("discovery reply failed: %v", f.Err())
		return false
	}
	value, _ := f.Value()
	if len(value) == 0 {
		n.endDiscovery()
		return false
	}
	p, err := parsePeer(value)
	if err != nil {
		debugf("%v", err)
		return n.discovering
	}
	if i := slices.IndexFunc(n.peers, func(q Peer) bool { return q.Address == p.Address }); i >= 0 {
		n.peers[i] = p
	} else {
		n.peers = append(n.peers, p)
	}
	debugf("discovered %v", p)
	return n.discovering
}

func (n *Network) ageDiscovery(elapsed time.Duration) {
	if !n.discovering {
		return
	}
	if elapsed < n.discoveryIn {
		n.discoveryIn -= elapsed
		return
	}
	debugf("discovery window closed")
	if t := n.pool.get(n.discovery); t != nil && t.state == StateSent {
		n.finish(t, StateTimeout, t.timeoutError())
	}
	n.endDiscovery()
}

func (n *Network) endDiscovery() {
	if !n.discovering {
		return
	}
	n.discovering = false
	n.notifyDiscovery(n.Peers())
}
