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
	"time"

	"github.com/ZaparooProject/go-xbee/internal/frame"
)

// Option configures a Network at construction.
type Option func(*Network) error

// WithConfig replaces the default configuration.
func WithConfig(cfg *Config) Option {
	return func(n *Network) error {
		if cfg == nil {
			return fmt.Errorf("%w: nil config", ErrInvalidConfig)
		}
		n.cfg = *cfg
		return nil
	}
}

// WithObserver subscribes o before the first tick.
func WithObserver(o Observer) Option {
	return func(n *Network) error {
		n.Subscribe(o)
		return nil
	}
}

// radioParams caches settings learned from local AT responses.
type radioParams struct {
	nodeID      string
	addrHigh    uint32
	addrLow     uint32
	maxPayload  int
	networkID   uint16
	preambleID  uint8
	apiMode     APIMode
	coordinator bool
}

// Network drives one radio. It owns the transaction pool, the receive
// buffer and the frame decoder, and makes progress only when Service is
// called. Service and every Chain operation must run on one goroutine;
// Ingest may run concurrently from a single producer.
type Network struct {
	sink        Sink
	pool        *pool
	rx          *RingBuffer
	decoder     *frame.Decoder
	observers   []Observer
	peers       []Peer
	txBuf       []byte
	rxFrame     Frame
	params      radioParams
	cfg         Config
	discovery   slotRef
	discoveryIn time.Duration
	rollover    uint64
	frameCount  int
	status      ModemStatus
	discovering bool
}

// NewNetwork creates a network that writes frames to sink.
func NewNetwork(sink Sink, opts ...Option) (*Network, error) {
	if sink == nil {
		return nil, fmt.Errorf("%w: nil sink", ErrTransportNotReady)
	}
	n := &Network{
		sink:   sink,
		cfg:    *DefaultConfig(),
		status: StatusUnknown,
	}
	for _, opt := range opts {
		if err := opt(n); err != nil {
			return nil, err
		}
	}
	if err := n.cfg.Validate(); err != nil {
		return nil, err
	}
	if n.cfg.Debug {
		SetDebugEnabled(true)
	}

	n.rx = NewRingBuffer(n.cfg.RxBufferSize)
	n.pool = newPool(n.cfg.MaxTransactions)
	n.decoder = frame.NewDecoder(n.cfg.APIMode.Escaped())
	n.params.apiMode = n.cfg.APIMode
	n.params.maxPayload = n.cfg.MaxPayloadBytes
	n.txBuf = make([]byte, 0, frame.EncodedLength(frame.APITransmitRequest,
		make([]byte, txDataOffset+n.cfg.MaxPayloadBytes), false))
	return n, nil
}

// Config returns a copy of the active configuration.
func (n *Network) Config() Config {
	return n.cfg
}

// Subscribe adds an observer of network events.
func (n *Network) Subscribe(o Observer) {
	if o != nil {
		n.observers = append(n.observers, o)
	}
}

// Ingest queues bytes read from the radio. Bytes that do not fit are
// dropped and ErrBufferFull is returned.
func (n *Network) Ingest(data []byte) (int, error) {
	written, err := n.rx.Write(data)
	if err != nil {
		debugf("rx buffer full, dropped %d of %d bytes", len(data)-written, len(data))
	}
	return written, err
}

// Write implements io.Writer over Ingest so a serial port can be copied
// straight into the network.
func (n *Network) Write(p []byte) (int, error) {
	return n.Ingest(p)
}

// Buffered returns the number of received bytes not yet decoded.
func (n *Network) Buffered() int {
	return n.rx.Len()
}

// Service runs one tick: it ages sent transactions by elapsed, sends every
// pending transaction, then decodes up to FramesPerTick frames.
func (n *Network) Service(elapsed time.Duration) {
	n.expire(elapsed)
	n.sendPending()
	n.receive()
	n.ageDiscovery(elapsed)
}

func (n *Network) expire(elapsed time.Duration) {
	for i := 0; i < len(n.pool.slots); i++ {
		t := n.pool.slots[i]
		if t.state != StateSent || !t.HasTimeoutExpired(elapsed) {
			continue
		}
		if n.cfg.RetryOnTimeout && t.Retry() {
			debugf("%v timed out, resending (%d retries left)", t, t.retries)
			continue
		}
		debugf("%v timed out", t)
		n.finish(t, StateTimeout, t.timeoutError())
	}
}

func (n *Network) sendPending() {
	for i := 0; i < len(n.pool.slots); i++ {
		if t := n.pool.slots[i]; t.state == StatePending {
			n.send(t)
		}
	}
}

func (n *Network) send(t *Transaction) {
	id := n.nextFrameID()
	t.frame.setFrameID(id)
	t.sent(id)
	if cmd, ok := t.frame.Command(); ok && cmd == CmdNodeDiscover {
		n.beginDiscovery(t)
	}

	n.txBuf = t.frame.AppendEncoded(n.txBuf[:0], n.params.apiMode.Escaped())
	logWire("TX", n.txBuf)
	if err := n.sink.Send(n.txBuf); err != nil {
		if IsFatal(err) {
			n.finish(t, StateError, NewTransportError("send", "", err, ErrorTypePermanent))
			return
		}
		// Left as sent so the timeout resends it.
		debugf("send %v: %v", t, err)
	}
}

func (n *Network) receive() {
	for handled := 0; n.cfg.FramesPerTick <= 0 || handled < n.cfg.FramesPerTick; {
		apiID, payload, status, err := n.decoder.Decode(n.rx)
		switch status {
		case frame.StatusIncomplete:
			return
		case frame.StatusInvalid:
			debugf("discarding invalid frame: %v", err)
		case frame.StatusComplete:
			n.rxFrame.set(APIID(apiID), payload)
			n.dispatch(&n.rxFrame)
			handled++
		}
	}
}

func (n *Network) dispatch(f *Frame) {
	if session.active() {
		logWire("RX", f.Encode(n.params.apiMode.Escaped()))
	}

	switch f.APIID() {
	case APIReceivePacket, APIExplicitRxIndicator:
		src, _ := f.Source()
		data, ok := f.Value()
		if !ok {
			debugf("short %v", f)
			return
		}
		n.notifyData(src, data)
		return
	case APIModemStatus:
		if s, ok := f.Uint8(0); ok {
			n.status = ModemStatus(s)
			debugf("modem status: %v", n.status)
			n.notifyStatus(n.status)
		}
		return
	default:
	}

	if id, ok := f.FrameID(); ok && id != 0 {
		if t := n.findSent(id); t != nil {
			n.complete(t, f)
			return
		}
	}
	n.unsolicited(f)
}

func (n *Network) findSent(id byte) *Transaction {
	for _, t := range n.pool.slots {
		if t.state == StateSent && t.targetID == id {
			return t
		}
	}
	return nil
}

func (n *Network) complete(t *Transaction, reply *Frame) {
	n.learn(&t.frame, reply)
	if cmd, ok := reply.Command(); ok && cmd == CmdNodeDiscover {
		if n.recordDiscovery(reply) {
			// More replies carry this frame id; the link stays sent.
			return
		}
	}

	t.frame.set(reply.APIID(), reply.Payload())
	if err := reply.Err(); err != nil {
		debugf("%v failed: %v", t, err)
		n.finish(t, StateError, err)
		return
	}
	n.finish(t, StateComplete, nil)
}

func (n *Network) unsolicited(f *Frame) {
	if cmd, ok := f.Command(); ok && cmd == CmdNodeDiscover &&
		(f.APIID() == APIATResponse || f.APIID() == APIRemoteATResponse) {
		n.recordDiscovery(f)
		return
	}
	debugf("dropping unsolicited %v", f)
}

// finish runs the completion callback, releases the slot and hands the
// result to the rest of the chain, in that order.
func (n *Network) finish(t *Transaction, state State, err error) {
	if t.state == StateFree {
		return
	}
	t.state = state
	t.err = err
	res := t.result()
	if t.onComplete != nil {
		t.onComplete(res)
	}

	c, pos := t.chain, t.pos
	n.pool.release(t)
	if c != nil {
		c.resolved(pos, res)
	}
}

func (n *Network) acquire(dest Address) *Transaction {
	t := n.pool.acquire()
	t.initialize(dest, n.cfg.TransactionTimeout, n.cfg.TransactionRetries)
	return t
}

// nextFrameID advances the frame counter, skipping ids still awaiting a
// reply. If every id is outstanding the next one is reused anyway.
func (n *Network) nextFrameID() byte {
	for range n.cfg.MaxFrameCount {
		id := n.advanceFrameCount()
		if n.findSent(id) == nil {
			return id
		}
	}
	return n.advanceFrameCount()
}

func (n *Network) advanceFrameCount() byte {
	if n.frameCount >= n.cfg.MaxFrameCount {
		n.frameCount = 1
		n.rollover++
	} else {
		n.frameCount++
	}
	return byte(n.frameCount) //nolint:gosec // MaxFrameCount is validated to fit a byte
}

// TotalTransactions returns how many frame ids have been handed out.
func (n *Network) TotalTransactions() uint64 {
	return n.rollover*uint64(n.cfg.MaxFrameCount) + uint64(n.frameCount) //nolint:gosec // frameCount is never negative
}

// ActiveTransactions counts transaction slots in use.
func (n *Network) ActiveTransactions() int {
	return n.pool.inUse()
}

// Status returns the last modem status reported by the radio.
func (n *Network) Status() ModemStatus {
	return n.status
}

// learn updates the cached radio settings from a successful local AT
// response. Writes carry no value in the reply, so the request parameter
// is used instead.
func (n *Network) learn(req, reply *Frame) {
	if reply.APIID() != APIATResponse || reply.Err() != nil {
		return
	}
	cmd, ok := reply.Command()
	if !ok {
		return
	}
	value, _ := reply.Value()
	if len(value) == 0 {
		if reqCmd, ok := req.Command(); ok && reqCmd == cmd && req.APIID() != APIRemoteATCommand {
			value, _ = req.Parameter()
		}
	}
	if len(value) == 0 {
		return
	}

	switch cmd {
	case CmdNetworkID:
		n.params.networkID = uint16(beUint(value)) //nolint:gosec // ID is two bytes
	case CmdPreambleID:
		n.params.preambleID = uint8(beUint(value)) //nolint:gosec // HP is one byte
	case CmdCoordinatorEnable:
		n.params.coordinator = beUint(value) != 0
	case CmdSerialHigh:
		n.params.addrHigh = uint32(beUint(value)) //nolint:gosec // SH is four bytes
	case CmdSerialLow:
		n.params.addrLow = uint32(beUint(value)) //nolint:gosec // SL is four bytes
	case CmdNodeIdentifier:
		n.params.nodeID = trimNodeID(value)
	case CmdMaxPayload:
		if v := int(beUint(value)); v > 0 { //nolint:gosec // NP is two bytes
			n.params.maxPayload = v
		}
	case CmdAPIMode:
		mode := APIMode(beUint(value)) //nolint:gosec // AP is one byte
		if mode != ModeAPI && mode != ModeEscaped {
			debugf("ignoring unsupported api mode %v", mode)
			return
		}
		n.params.apiMode = mode
		n.decoder.Escaped = mode.Escaped()
	default:
	}
}

// NetworkID returns the cached ID setting.
func (n *Network) NetworkID() uint16 {
	return n.params.networkID
}

// PreambleID returns the cached HP setting.
func (n *Network) PreambleID() uint8 {
	return n.params.preambleID
}

// Coordinator returns the cached CE setting.
func (n *Network) Coordinator() bool {
	return n.params.coordinator
}

// LocalAddress returns the attached radio's serial number, zero until SH
// and SL have been read.
func (n *Network) LocalAddress() Address {
	return MakeAddress(n.params.addrHigh, n.params.addrLow)
}

// NodeIdentifier returns the cached NI setting.
func (n *Network) NodeIdentifier() string {
	return n.params.nodeID
}

// APIMode returns the framing mode in use.
func (n *Network) APIMode() APIMode {
	return n.params.apiMode
}

// MaxPayloadBytes returns the per-frame RF data budget, as configured or
// as reported by NP.
func (n *Network) MaxPayloadBytes() int {
	return n.params.maxPayload
}

// fragmentLength returns how many leading bytes of data fit one transmit
// request. Escaped mode reserves room for the escaped frame header.
func (n *Network) fragmentLength(data []byte) int {
	budget := n.params.maxPayload
	if !n.params.apiMode.Escaped() {
		return min(len(data), budget)
	}
	return frame.FitEscaped(data, budget-escapedHeaderAllowance)
}

// escapedHeaderAllowance covers a worst case escaped length and checksum.
const escapedHeaderAllowance = 3

func beUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

func trimNodeID(b []byte) string {
	for len(b) > 0 && (b[len(b)-1] == 0 || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return string(b)
}
