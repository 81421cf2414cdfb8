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
	"errors"
	"fmt"
)

// Chain is an ordered sequence of transactions to one destination. Each
// link is sent only after the one before it completes; a failed link fails
// every link after it without sending them.
//
// Builder methods append a link and return the chain so calls can be
// strung together:
//
//	net.BeginTransaction(xbee.LocalAddress).
//		SetNetworkID(0x2015).
//		ApplyChanges().
//		Pend().
//		OnComplete(func(r xbee.Result) { ... })
type Chain struct {
	net       *Network
	done      chan Result
	failure   *Result
	links     []slotRef
	dest      Address
	next      int
	queue     bool
	delivered bool
}

// BeginTransaction starts a chain to dest with one reserved slot.
func (n *Network) BeginTransaction(dest Address) *Chain {
	c := &Chain{
		net:  n,
		dest: dest,
		done: make(chan Result, 1),
	}
	c.add(n.acquire(dest))
	return c
}

// BeginBroadcastTransaction starts a chain to every radio in the network.
func (n *Network) BeginBroadcastTransaction() *Chain {
	return n.BeginTransaction(BroadcastAddress)
}

// Destination returns the address every link targets.
func (c *Chain) Destination() Address {
	return c.dest
}

// Len returns the number of links ever added to the chain.
func (c *Chain) Len() int {
	return len(c.links)
}

// Link returns the i-th transaction, or nil once it has finished.
func (c *Chain) Link(i int) *Transaction {
	if i < 0 || i >= len(c.links) {
		return nil
	}
	return c.net.pool.get(c.links[i])
}

// Tail returns the last transaction, or nil once it has finished.
func (c *Chain) Tail() *Transaction {
	return c.Link(len(c.links) - 1)
}

// Done returns a channel that receives the chain's outcome once every link
// has finished or a timeout halts the chain: the first failure, or the last
// link's result. Links added after delivery start a new outcome on a new
// channel.
func (c *Chain) Done() <-chan Result {
	return c.done
}

// OnComplete sets the continuation of the last link.
func (c *Chain) OnComplete(fn func(Result)) *Chain {
	if t := c.Tail(); t != nil {
		t.OnComplete(fn)
	}
	return c
}

// Pend commits the links built since the last Pend. The earliest of them
// is queued for sending if nothing precedes it; the rest wait their turn.
func (c *Chain) Pend() *Chain {
	last := len(c.links) - 1
	if t := c.Link(last); t == nil || t.state != StateFramed {
		return c
	}
	first := last
	for first-1 >= c.next {
		prev := c.Link(first - 1)
		if prev == nil || prev.state != StateFramed {
			break
		}
		first--
	}
	for i := first; i <= last; i++ {
		c.Link(i).state = StateChained
	}
	if first == c.next {
		c.activate(c.Link(first))
	}
	return c
}

func (c *Chain) add(t *Transaction) {
	if c.delivered {
		c.done = make(chan Result, 1)
		c.delivered = false
		c.failure = nil
	}
	t.chain = c
	t.pos = len(c.links)
	c.links = append(c.links, c.net.pool.ref(t))
}

// nextTransaction returns the reserved slot if it is still unused, else a
// fresh link. The caller frames it.
func (c *Chain) nextTransaction() *Transaction {
	if t := c.Tail(); t != nil && t.state == StateInitialized {
		return t
	}
	t := c.net.acquire(c.dest)
	c.add(t)
	return t
}

// activate queues a committed link whose predecessors have all finished.
func (c *Chain) activate(t *Transaction) {
	if t.err != nil {
		c.net.finish(t, StateError, t.err)
		return
	}
	t.state = StatePending
}

// resolved advances the chain past the link at pos.
func (c *Chain) resolved(pos int, res Result) {
	c.next = pos + 1
	if res.State != StateComplete && c.failure == nil {
		c.failure = &res
	}

	if c.next >= len(c.links) {
		c.deliver(res)
		return
	}

	succ := c.Link(c.next)
	if succ == nil {
		return
	}
	if res.State == StateTimeout && !c.net.cfg.AbortChainOnTimeout {
		debugf("chain to %v halted at link %d", c.dest, pos)
		c.deliver(res)
		return
	}
	if res.State != StateComplete {
		c.net.finish(succ, StateError, chainError(res, succ))
		return
	}
	if succ.state == StateChained {
		succ.state = StateFramed
		c.activate(succ)
	}
}

// Abort fails the links that have not been sent, starting with the next
// one in line. A chain halted by a timeout holds its remaining slots until
// it is aborted. It reports false when the next link is queued or in
// flight.
func (c *Chain) Abort() bool {
	t := c.Link(c.next)
	if t == nil {
		return false
	}
	if t.state == StatePending || t.state == StateSent {
		return false
	}
	prev := Result{State: StateError, Err: ErrChainAborted}
	if c.failure != nil {
		prev = *c.failure
	}
	c.net.finish(t, StateError, chainError(prev, t))
	return true
}

func (c *Chain) deliver(last Result) {
	if c.delivered {
		return
	}
	out := last
	if c.failure != nil {
		out = *c.failure
	}
	c.delivered = true
	select {
	case c.done <- out:
	default:
	}
}

// fail records a build error on t. The link fails when its turn comes.
func (c *Chain) fail(t *Transaction, err error) {
	cmd, _ := t.frame.Command()
	t.err = &TransactionError{
		Kind:    KindBuild,
		Err:     err,
		APIID:   t.frame.APIID(),
		Command: cmd,
	}
	t.state = StateFramed
}

// chainError builds the error inherited by succ when the link before it
// failed. The root cause stays reachable through errors.Is.
func chainError(prev Result, succ *Transaction) error {
	cause := prev.Err
	var te *TransactionError
	switch {
	case errors.As(cause, &te) && te.Kind == KindChain:
		cause = te.Err
	case errors.Is(cause, ErrChainAborted):
	default:
		cause = fmt.Errorf("%w: %w", ErrChainAborted, cause)
	}
	cmd, _ := succ.frame.Command()
	return &TransactionError{
		Kind:    KindChain,
		Err:     cause,
		APIID:   succ.frame.APIID(),
		Command: cmd,
	}
}
