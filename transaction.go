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
)

// State is the lifecycle stage of a transaction slot.
type State uint8

const (
	// StateFree means the slot is in the pool.
	StateFree State = iota
	// StateInitialized means the slot is reserved with no frame yet.
	StateInitialized
	// StateFramed means a request frame is built but not committed.
	StateFramed
	// StatePending means the request is queued for the next send phase.
	StatePending
	// StateSent means the request is on the wire and awaits a reply.
	StateSent
	// StateComplete means a successful reply arrived.
	StateComplete
	// StateError means the transaction failed.
	StateError
	// StateTimeout means no reply arrived in time.
	StateTimeout
	// StateChained means the request waits for its predecessor.
	StateChained
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "FREE"
	case StateInitialized:
		return "INITIALIZED"
	case StateFramed:
		return "FRAMED"
	case StatePending:
		return "PENDING"
	case StateSent:
		return "SENT"
	case StateComplete:
		return "COMPLETE"
	case StateError:
		return "ERROR"
	case StateTimeout:
		return "TIMEOUT"
	case StateChained:
		return "CHAINED"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Terminal reports whether the state ends a transaction.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateError || s == StateTimeout
}

// Result is what a finished transaction reports to its callback.
type Result struct {
	Err         error
	Frame       Frame
	Destination Address
	State       State
	FrameID     byte
}

// OK reports whether the transaction completed successfully.
func (r Result) OK() bool {
	return r.State == StateComplete && r.Err == nil
}

// Value is shorthand for r.Frame.Value.
func (r Result) Value() []byte {
	v, _ := r.Frame.Value()
	return v
}

// Transaction is one request/reply exchange. Transactions live in the
// network's slot pool and are reused once finished, so callers must not
// hold on to one after its callback ran.
type Transaction struct {
	onComplete func(Result)
	chain      *Chain
	err        error
	frame      Frame
	dest       Address
	timeout    time.Duration
	remaining  time.Duration
	gen        uint32
	slot       int
	pos        int
	retries    int
	targetID   byte
	state      State
	timed      bool
}

// State returns the current lifecycle state.
func (t *Transaction) State() State {
	return t.state
}

// Err returns the failure recorded for the transaction, if any.
func (t *Transaction) Err() error {
	return t.err
}

// Frame returns the request frame, or the reply once one has arrived.
func (t *Transaction) Frame() Frame {
	return t.frame
}

// Destination returns the address the transaction targets.
func (t *Transaction) Destination() Address {
	return t.dest
}

// FrameID returns the frame id assigned at send time, zero before.
func (t *Transaction) FrameID() byte {
	return t.targetID
}

// Retries returns how many resends are left.
func (t *Transaction) Retries() int {
	return t.retries
}

// Remaining returns the time left before the transaction times out.
func (t *Transaction) Remaining() time.Duration {
	return t.remaining
}

// SetTimeoutEnabled controls whether the transaction ages while sent.
// Node discovery disables it since replies trickle in for seconds.
func (t *Transaction) SetTimeoutEnabled(enabled bool) {
	t.timed = enabled
}

// TimeoutEnabled reports whether the transaction can time out.
func (t *Transaction) TimeoutEnabled() bool {
	return t.timed
}

// OnComplete registers the continuation run when the transaction finishes.
func (t *Transaction) OnComplete(fn func(Result)) {
	t.onComplete = fn
}

// HasTimeoutExpired ages the transaction by elapsed. It returns true and
// moves to StateTimeout once the remaining time is used up. Transactions
// with timeouts disabled never expire.
func (t *Transaction) HasTimeoutExpired(elapsed time.Duration) bool {
	if !t.timed {
		return false
	}
	if elapsed < t.remaining {
		t.remaining -= elapsed
		return false
	}
	t.remaining = 0
	t.state = StateTimeout
	return true
}

// Retry spends one retry and returns the transaction to PENDING with a
// fresh timeout. It reports false, changing nothing, once retries are
// exhausted.
func (t *Transaction) Retry() bool {
	if t.retries <= 0 {
		return false
	}
	t.retries--
	t.remaining = t.timeout
	t.state = StatePending
	return true
}

func (t *Transaction) initialize(dest Address, timeout time.Duration, retries int) {
	t.state = StateInitialized
	t.dest = dest
	t.timeout = timeout
	t.remaining = timeout
	t.retries = retries
	t.timed = true
	t.targetID = 0
	t.err = nil
	t.onComplete = nil
	t.chain = nil
	t.pos = 0
	t.frame.Reset(0)
}

// sent stamps the frame id and restarts the countdown.
func (t *Transaction) sent(id byte) {
	t.targetID = id
	t.remaining = t.timeout
	t.state = StateSent
}

func (t *Transaction) result() Result {
	return Result{
		Err:         t.err,
		Frame:       t.frame.Clone(),
		Destination: t.dest,
		State:       t.state,
		FrameID:     t.targetID,
	}
}

// timeoutError describes a transaction that ran out of retries.
func (t *Transaction) timeoutError() error {
	cmd, _ := t.frame.Command()
	return &TransactionError{
		Kind:    KindTimeout,
		Err:     ErrTimeout,
		APIID:   t.frame.APIID(),
		Command: cmd,
		FrameID: t.targetID,
	}
}

func (t *Transaction) String() string {
	return fmt.Sprintf("tx[%d] %s %s to %s", t.slot, t.state, t.frame.APIID(), t.dest)
}
