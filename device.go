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

package xbee

import (
	"context"
	"fmt"
)

// Device is one radio reachable through a Network: the attached radio or
// a remote one addressed over the air. Every method builds a committed
// chain; the work happens as the network is serviced.
//
// Thread Safety: Device is NOT thread-safe. Like the Network it belongs
// to, it must be used from the goroutine that calls Service, or through
// service.Runner.Do.
type Device interface {
	// Address returns the 64-bit address the device is reached at.
	Address() Address
	// Network returns the network the device belongs to.
	Network() *Network
	// Begin starts an uncommitted chain to the device.
	Begin() *Chain
	// ReadParameter queries one AT setting.
	ReadParameter(cmd Command) *Chain
	// WriteParameter sets one AT setting.
	WriteParameter(cmd Command, value ...Field) *Chain
}

// LocalDevice is the radio attached to the serial port.
type LocalDevice struct {
	net *Network
}

// Local returns the attached radio.
func (n *Network) Local() *LocalDevice {
	return &LocalDevice{net: n}
}

// Address returns LocalAddress. Use Network.LocalAddress for the serial
// number once SerialNumber has been read.
func (*LocalDevice) Address() Address {
	return LocalAddress
}

// Network returns the network the device belongs to.
func (d *LocalDevice) Network() *Network {
	return d.net
}

// Begin starts an uncommitted chain to the radio.
func (d *LocalDevice) Begin() *Chain {
	return d.net.BeginTransaction(LocalAddress)
}

// ReadParameter queries one AT setting.
func (d *LocalDevice) ReadParameter(cmd Command) *Chain {
	return d.Begin().ReadParameter(cmd).Pend()
}

// WriteParameter sets one AT setting.
func (d *LocalDevice) WriteParameter(cmd Command, value ...Field) *Chain {
	return d.Begin().WriteParameter(cmd, value...).Pend()
}

// Identify reads the settings the network caches: serial number, node
// identifier, network and preamble ids, API mode and payload budget.
func (d *LocalDevice) Identify() *Chain {
	return d.Begin().
		SerialNumber().
		NodeIdentifier().
		NetworkID().
		PreambleID().
		APIMode().
		MaxPayload().
		Pend()
}

// Configure writes network membership settings in one queued batch and
// stores them.
func (d *LocalDevice) Configure(networkID uint16, preambleID uint8, ni string) *Chain {
	return d.Begin().
		BeginCommandQueue().
		SetNetworkID(networkID).
		SetPreambleID(preambleID).
		SetNodeIdentifier(ni).
		EndCommandQueue().
		WriteSettings().
		Pend()
}

// Discover runs node discovery.
func (d *LocalDevice) Discover() *Chain {
	return d.net.DiscoverAsync()
}

// RemoteDevice is a radio addressed over the air.
type RemoteDevice struct {
	net  *Network
	addr Address
}

// Remote returns the radio at addr.
func (n *Network) Remote(addr Address) *RemoteDevice {
	return &RemoteDevice{net: n, addr: addr}
}

// RemoteByName returns the discovered peer with the given node identifier.
func (n *Network) RemoteByName(ni string) (*RemoteDevice, error) {
	p, ok := n.FindPeerByName(ni)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPeerNotDiscovered, ni)
	}
	return n.Remote(p.Address), nil
}

// Address returns the device's 64-bit address.
func (d *RemoteDevice) Address() Address {
	return d.addr
}

// Network returns the network the device belongs to.
func (d *RemoteDevice) Network() *Network {
	return d.net
}

// Peer returns what discovery learned about the device.
func (d *RemoteDevice) Peer() (Peer, bool) {
	return d.net.FindPeer(d.addr)
}

// Begin starts an uncommitted chain to the device.
func (d *RemoteDevice) Begin() *Chain {
	return d.net.BeginTransaction(d.addr)
}

// ReadParameter queries one AT setting over the air.
func (d *RemoteDevice) ReadParameter(cmd Command) *Chain {
	return d.Begin().ReadParameter(cmd).Pend()
}

// WriteParameter sets one AT setting over the air.
func (d *RemoteDevice) WriteParameter(cmd Command, value ...Field) *Chain {
	return d.Begin().WriteParameter(cmd, value...).Pend()
}

// Send transmits data to the device.
func (d *RemoteDevice) Send(data []byte) *Chain {
	return d.Begin().Transmit(data)
}

// Wait blocks until the chain finishes or ctx is done. Something else
// must keep servicing the network meanwhile, typically a service.Runner.
func Wait(ctx context.Context, c *Chain) (Result, error) {
	select {
	case res := <-c.Done():
		return res, res.Err
	case <-ctx.Done():
		return Result{}, fmt.Errorf("waiting for %v chain: %w", c.Destination(), ctx.Err())
	}
}
