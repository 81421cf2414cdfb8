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

import "fmt"

// AT commands used by the network
var (
	CmdNetworkID         = Cmd("ID")
	CmdPreambleID        = Cmd("HP")
	CmdCoordinatorEnable = Cmd("CE")
	CmdNodeIdentifier    = Cmd("NI")
	CmdSerialHigh        = Cmd("SH")
	CmdSerialLow         = Cmd("SL")
	CmdNodeDiscover      = Cmd("ND")
	CmdAPIMode           = Cmd("AP")
	CmdMaxPayload        = Cmd("NP")
	CmdApplyChanges      = Cmd("AC")
	CmdWrite             = Cmd("WR")
)

// Frame constants of outgoing requests
const (
	transmitRadius     = 0x00 // maximum hops
	transmitOptions    = 0xC0 // DigiMesh delivery
	remoteApplyChanges = 0x02 // remote AT option: apply immediately
	maxNodeIDLength    = 20
)

// Transmit sends data to the chain's destination, split into as many
// transmit requests as the payload budget requires. The fragments are
// chained in order and committed, so Pend is not needed afterwards.
func (c *Chain) Transmit(data []byte) *Chain {
	for {
		t := c.nextTransaction()
		t.frame.Reset(APITransmitRequest)
		t.frame.AddUint8(0).
			AddUint64(uint64(c.dest)).
			AddUint16(unknownNetworkAddress).
			AddUint8(transmitRadius).
			AddUint8(transmitOptions)
		t.state = StateFramed

		chunk := c.net.fragmentLength(data)
		if chunk == 0 && len(data) > 0 {
			c.fail(t, ErrNoCapacity)
			return c.Pend()
		}
		t.frame.AddData(data[:chunk])
		data = data[chunk:]
		if len(data) == 0 {
			return c.Pend()
		}
		debugf("fragmenting transmit to %v: %d bytes left", c.dest, len(data))
	}
}

// command frames an AT request in the next link. Local requests are
// queued while a command queue is open; remote ones apply immediately
// unless queued.
func (c *Chain) command(cmd Command, param ...Field) *Transaction {
	t := c.nextTransaction()
	switch {
	case !c.dest.IsLocal():
		options := byte(remoteApplyChanges)
		if c.queue {
			options = 0
		}
		t.frame.Reset(APIRemoteATCommand)
		t.frame.AddUint8(0).
			AddUint64(uint64(c.dest)).
			AddUint16(unknownNetworkAddress).
			AddUint8(options)
	case c.queue:
		t.frame.Reset(APIATQueueCommand)
		t.frame.AddUint8(0)
	default:
		t.frame.Reset(APIATCommand)
		t.frame.AddUint8(0)
	}
	t.frame.AddCommand(cmd).Add(param...)
	t.state = StateFramed
	return t
}

// ReadParameter queries an AT setting. The value is in the result frame.
func (c *Chain) ReadParameter(cmd Command) *Chain {
	c.command(cmd)
	return c
}

// WriteParameter sets an AT setting to the given fields.
func (c *Chain) WriteParameter(cmd Command, value ...Field) *Chain {
	c.command(cmd, value...)
	return c
}

// NetworkID reads the ID setting.
func (c *Chain) NetworkID() *Chain {
	return c.ReadParameter(CmdNetworkID)
}

// SetNetworkID writes the ID setting.
func (c *Chain) SetNetworkID(id uint16) *Chain {
	return c.WriteParameter(CmdNetworkID, U16(id))
}

// PreambleID reads the HP setting.
func (c *Chain) PreambleID() *Chain {
	return c.ReadParameter(CmdPreambleID)
}

// SetPreambleID writes the HP setting.
func (c *Chain) SetPreambleID(id uint8) *Chain {
	return c.WriteParameter(CmdPreambleID, U8(id))
}

// CoordinatorEnable reads the CE setting.
func (c *Chain) CoordinatorEnable() *Chain {
	return c.ReadParameter(CmdCoordinatorEnable)
}

// SetCoordinatorEnable writes the CE setting.
func (c *Chain) SetCoordinatorEnable(enabled bool) *Chain {
	var v uint8
	if enabled {
		v = 1
	}
	return c.WriteParameter(CmdCoordinatorEnable, U8(v))
}

// NodeIdentifier reads the NI setting.
func (c *Chain) NodeIdentifier() *Chain {
	return c.ReadParameter(CmdNodeIdentifier)
}

// SetNodeIdentifier writes the NI setting, at most 20 printable characters.
func (c *Chain) SetNodeIdentifier(ni string) *Chain {
	t := c.command(CmdNodeIdentifier, Text(ni))
	if err := validateNodeID(ni); err != nil {
		c.fail(t, err)
	}
	return c
}

// SerialNumber reads SH then SL, leaving two links in the chain.
func (c *Chain) SerialNumber() *Chain {
	return c.ReadParameter(CmdSerialHigh).ReadParameter(CmdSerialLow)
}

// APIMode reads the AP setting.
func (c *Chain) APIMode() *Chain {
	return c.ReadParameter(CmdAPIMode)
}

// SetAPIMode writes the AP setting. A local write switches the network's
// framing once the radio acknowledges it.
func (c *Chain) SetAPIMode(mode APIMode) *Chain {
	t := c.command(CmdAPIMode, U8(uint8(mode)))
	if mode != ModeAPI && mode != ModeEscaped {
		c.fail(t, fmt.Errorf("%w: %v", ErrNotAPIMode, mode))
	}
	return c
}

// MaxPayload reads the NP value.
func (c *Chain) MaxPayload() *Chain {
	return c.ReadParameter(CmdMaxPayload)
}

// NetworkDiscover asks the radio to find its neighbours. Replies arrive
// for several seconds, so the link never times out; discovered peers are
// reported through observers.
func (c *Chain) NetworkDiscover() *Chain {
	t := c.command(CmdNodeDiscover)
	t.SetTimeoutEnabled(false)
	return c
}

// ApplyChanges applies queued setting changes.
func (c *Chain) ApplyChanges() *Chain {
	return c.ReadParameter(CmdApplyChanges)
}

// WriteSettings stores the current settings in non-volatile memory.
func (c *Chain) WriteSettings() *Chain {
	return c.ReadParameter(CmdWrite)
}

// BeginCommandQueue makes subsequent setting changes wait for
// EndCommandQueue instead of applying one by one.
func (c *Chain) BeginCommandQueue() *Chain {
	c.queue = true
	return c
}

// EndCommandQueue closes the queue and applies the queued changes.
func (c *Chain) EndCommandQueue() *Chain {
	c.queue = false
	return c.ApplyChanges()
}

func validateNodeID(ni string) error {
	if len(ni) > maxNodeIDLength {
		return fmt.Errorf("%w: node identifier %q longer than %d characters",
			ErrInvalidParameter, ni, maxNodeIDLength)
	}
	for i := range len(ni) {
		if ni[i] < 0x20 || ni[i] > 0x7E {
			return fmt.Errorf("%w: node identifier %q has non-printable byte 0x%02X",
				ErrInvalidParameter, ni, ni[i])
		}
	}
	return nil
}
