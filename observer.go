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

// Observer receives network events. Callbacks run on the goroutine calling
// Service; slices passed to them are only valid during the call.
type Observer interface {
	OnDiscoveryComplete(n *Network, peers []Peer)
	OnStatusChanged(n *Network, status ModemStatus)
	OnDataReceived(n *Network, source Address, data []byte)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	DiscoveryComplete func(n *Network, peers []Peer)
	StatusChanged     func(n *Network, status ModemStatus)
	DataReceived      func(n *Network, source Address, data []byte)
}

// OnDiscoveryComplete implements Observer.
func (o ObserverFuncs) OnDiscoveryComplete(n *Network, peers []Peer) {
	if o.DiscoveryComplete != nil {
		o.DiscoveryComplete(n, peers)
	}
}

// OnStatusChanged implements Observer.
func (o ObserverFuncs) OnStatusChanged(n *Network, status ModemStatus) {
	if o.StatusChanged != nil {
		o.StatusChanged(n, status)
	}
}

// OnDataReceived implements Observer.
func (o ObserverFuncs) OnDataReceived(n *Network, source Address, data []byte) {
	if o.DataReceived != nil {
		o.DataReceived(n, source, data)
	}
}

func (n *Network) notifyDiscovery(peers []Peer) {
	for _, o := range n.observers {
		o.OnDiscoveryComplete(n, peers)
	}
}

func (n *Network) notifyStatus(status ModemStatus) {
	for _, o := range n.observers {
		o.OnStatusChanged(n, status)
	}
}

func (n *Network) notifyData(source Address, data []byte) {
	for _, o := range n.observers {
		o.OnDataReceived(n, source, data)
	}
}
