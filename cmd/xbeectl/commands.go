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
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/ZaparooProject/go-xbee"
	"github.com/ZaparooProject/go-xbee/detection"
	"github.com/ZaparooProject/go-xbee/service"
)

var (
	errNoCommand = errors.New("no command given")
	errUsage     = errors.New("bad arguments")
)

const commandHelp = `  detect                     list radios found by auto-detection
  info                       show the local radio's identity
  discover                   run node discovery and list peers
  get CMD [TARGET]           read an AT parameter
  set CMD HEX [TARGET]       write an AT parameter
  send TARGET TEXT...        transmit text to a peer or "broadcast"
  listen                     print received data until interrupted
  configure                  apply the [network] section of the config file

TARGET is a node identifier or a 64-bit hex address. It defaults to the
local radio.
`

// app runs one command against a started runner.
type app struct {
	runner  *service.Runner
	out     io.Writer
	cfg     *config
	timeout time.Duration
}

func (a *app) run(ctx context.Context, args []string) error {
	name, rest := args[0], args[1:]
	switch name {
	case "info":
		return a.info(ctx)
	case "discover":
		return a.discover(ctx)
	case "get":
		return a.get(ctx, rest)
	case "set":
		return a.set(ctx, rest)
	case "send":
		return a.send(ctx, rest)
	case "listen":
		return a.listen(ctx)
	case "configure":
		return a.configure(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}
}

func (a *app) exec(ctx context.Context, build func(n *xbee.Network) *xbee.Chain) (xbee.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	res, err := a.runner.Exec(ctx, build)
	if err != nil {
		return res, err //nolint:wrapcheck // callers add the command name
	}
	return res, nil
}

func (a *app) info(ctx context.Context) error {
	if _, err := a.exec(ctx, func(n *xbee.Network) *xbee.Chain { return n.Local().Identify() }); err != nil {
		return fmt.Errorf("identify: %w", err)
	}
	a.runner.Do(func(n *xbee.Network) {
		_, _ = fmt.Fprintf(a.out, "Node ID:     %s\n", n.NodeIdentifier())
		_, _ = fmt.Fprintf(a.out, "Address:     %s\n", n.LocalAddress())
		_, _ = fmt.Fprintf(a.out, "Network ID:  %04X\n", n.NetworkID())
		_, _ = fmt.Fprintf(a.out, "Preamble ID: %d\n", n.PreambleID())
		_, _ = fmt.Fprintf(a.out, "API mode:    %s\n", n.APIMode())
		_, _ = fmt.Fprintf(a.out, "Max payload: %d\n", n.MaxPayloadBytes())
	})
	return nil
}

func (a *app) discover(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.net.DiscoveryTimeout+a.timeout)
	defer cancel()
	// A closed window without the terminating reply still leaves peers.
	if _, err := a.runner.Exec(ctx, (*xbee.Network).DiscoverAsync); err != nil && !xbee.IsTimeout(err) {
		return fmt.Errorf("discover: %w", err)
	}

	var peers []xbee.Peer
	a.runner.Do(func(n *xbee.Network) { peers = n.Peers() })
	if len(peers) == 0 {
		_, _ = fmt.Fprintln(a.out, "No peers found.")
		return nil
	}
	for _, p := range peers {
		_, _ = fmt.Fprintf(a.out, "%-20s %s  %04X  %s\n", p.NodeID, p.Address, p.NetworkAddress, p.DeviceType)
	}
	return nil
}

func (a *app) get(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: get CMD [TARGET]", errUsage)
	}
	cmd, err := parseCommand(args[0])
	if err != nil {
		return err
	}
	dev, err := a.resolve(ctx, optional(args, 1))
	if err != nil {
		return err
	}

	res, err := a.exec(ctx, func(n *xbee.Network) *xbee.Chain { return dev(n).ReadParameter(cmd) })
	if err != nil {
		return fmt.Errorf("get %s: %w", cmd, err)
	}
	_, _ = fmt.Fprintf(a.out, "%s = %s\n", cmd, formatValue(res.Value()))
	return nil
}

func (a *app) set(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("%w: set CMD HEX [TARGET]", errUsage)
	}
	cmd, err := parseCommand(args[0])
	if err != nil {
		return err
	}
	value, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(args[1]), "0x"))
	if err != nil {
		return fmt.Errorf("%w: value %q is not hex", errUsage, args[1])
	}
	dev, err := a.resolve(ctx, optional(args, 2))
	if err != nil {
		return err
	}

	_, err = a.exec(ctx, func(n *xbee.Network) *xbee.Chain {
		return dev(n).WriteParameter(cmd, xbee.Bytes(value))
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", cmd, err)
	}
	_, _ = fmt.Fprintf(a.out, "%s set to %s\n", cmd, formatValue(value))
	return nil
}

func (a *app) send(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: send TARGET TEXT...", errUsage)
	}
	data := []byte(strings.Join(args[1:], " "))

	var build func(n *xbee.Network) *xbee.Chain
	if strings.EqualFold(args[0], "broadcast") {
		build = func(n *xbee.Network) *xbee.Chain { return n.BeginBroadcastTransaction().Transmit(data) }
	} else {
		addr, err := a.lookup(ctx, args[0])
		if err != nil {
			return err
		}
		if addr.IsLocal() {
			return fmt.Errorf("%w: cannot transmit to the local radio", errUsage)
		}
		build = func(n *xbee.Network) *xbee.Chain { return n.Remote(addr).Send(data) }
	}

	if _, err := a.exec(ctx, build); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	_, _ = fmt.Fprintf(a.out, "Sent %d bytes to %s\n", len(data), args[0])
	return nil
}

func (a *app) listen(ctx context.Context) error {
	a.runner.Do(func(n *xbee.Network) {
		n.Subscribe(xbee.ObserverFuncs{
			DataReceived: func(_ *xbee.Network, source xbee.Address, data []byte) {
				_, _ = fmt.Fprintf(a.out, "%s: %q\n", source, data)
			},
			StatusChanged: func(_ *xbee.Network, status xbee.ModemStatus) {
				_, _ = fmt.Fprintf(a.out, "modem status: %s\n", status)
			},
		})
	})
	_, _ = fmt.Fprintln(a.out, "Listening. Press Ctrl+C to stop...")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-a.runner.Done():
		return a.runner.Err() //nolint:wrapcheck // runner errors are already wrapped
	}
}

func (a *app) configure(ctx context.Context) error {
	if !a.cfg.hasNetwork {
		return fmt.Errorf("%w: configure needs a [network] section in the config file", errUsage)
	}
	_, err := a.exec(ctx, func(n *xbee.Network) *xbee.Chain {
		return n.Local().Configure(a.cfg.networkID, a.cfg.preambleID, a.cfg.nodeID)
	})
	if err != nil {
		return fmt.Errorf("configure: %w", err)
	}
	_, _ = fmt.Fprintf(a.out, "Joined network %04X (preamble %d) as %q\n",
		a.cfg.networkID, a.cfg.preambleID, a.cfg.nodeID)
	return nil
}

// resolve turns target into a device selector. An empty target is the
// local radio.
func (a *app) resolve(ctx context.Context, target string) (func(n *xbee.Network) xbee.Device, error) {
	if target == "" {
		return func(n *xbee.Network) xbee.Device { return n.Local() }, nil
	}
	addr, err := a.lookup(ctx, target)
	if err != nil {
		return nil, err
	}
	return func(n *xbee.Network) xbee.Device {
		if addr.IsLocal() {
			return n.Local()
		}
		return n.Remote(addr)
	}, nil
}

// lookup maps a node identifier or hex address to an address. Unknown
// names trigger one discovery round.
func (a *app) lookup(ctx context.Context, target string) (xbee.Address, error) {
	if looksLikeAddress(target) {
		return xbee.ParseAddress(target) //nolint:wrapcheck // already descriptive
	}

	find := func() (xbee.Address, bool) {
		var (
			p  xbee.Peer
			ok bool
		)
		a.runner.Do(func(n *xbee.Network) { p, ok = n.FindPeerByName(target) })
		return p.Address, ok
	}
	if addr, ok := find(); ok {
		return addr, nil
	}

	xbee.Debugf("xbeectl: %q unknown, discovering", target)
	dctx, cancel := context.WithTimeout(ctx, a.cfg.net.DiscoveryTimeout+a.timeout)
	defer cancel()
	if _, err := a.runner.Exec(dctx, (*xbee.Network).DiscoverAsync); err != nil && !xbee.IsTimeout(err) {
		return 0, fmt.Errorf("discover %q: %w", target, err)
	}
	if addr, ok := find(); ok {
		return addr, nil
	}
	return 0, fmt.Errorf("%w: %q", xbee.ErrPeerNotDiscovered, target)
}

func looksLikeAddress(s string) bool {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return true
	}
	if len(s) != 16 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func parseCommand(s string) (xbee.Command, error) {
	if len(s) != 2 {
		return xbee.Command{}, fmt.Errorf("%w: AT command %q must be two characters", errUsage, s)
	}
	return xbee.Cmd(strings.ToUpper(s)), nil
}

func optional(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// formatValue prints a parameter as hex, followed by its text when every
// byte is printable.
func formatValue(v []byte) string {
	if len(v) == 0 {
		return "(empty)"
	}
	s := strings.ToUpper(hex.EncodeToString(v))
	for _, b := range v {
		if b > unicode.MaxASCII || !unicode.IsPrint(rune(b)) {
			return s
		}
	}
	return fmt.Sprintf("%s (%q)", s, v)
}

func runDetect(ctx context.Context, out io.Writer) error {
	opts := detection.DefaultOptions()
	devices, err := detection.DetectAll(ctx, &opts)
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}
	for _, d := range devices {
		_, _ = fmt.Fprintln(out, d)
		for _, k := range slices.Sorted(maps.Keys(d.Metadata)) {
			_, _ = fmt.Fprintf(out, "  %s: %s\n", k, d.Metadata[k])
		}
	}
	return nil
}
