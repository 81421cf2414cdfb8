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

// Package service drives an xbee.Network from background goroutines: one
// feeds transport reads into the receive buffer, the other calls
// Network.Service on a ticker. Chain builders run through Do or Exec so
// they never race the tick loop.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-xbee"
	"github.com/ZaparooProject/go-xbee/internal/syncutil"
)

// Runner errors
var (
	ErrAlreadyStarted = errors.New("runner already started")
	ErrStopped        = errors.New("runner stopped")
)

// Metrics counts runner activity.
type Metrics struct {
	Ticks           int64         // Service calls
	ClampedTicks    int64         // ticks whose elapsed time was capped
	BytesRead       int64         // bytes ingested from the transport
	ReadErrors      int64         // failed transport reads
	Reconnects      int64         // successful transport reopens
	LastTickLatency time.Duration // duration of the last Service call
}

// Runner owns a Network and the transport it talks through.
//
// Observers registered on the network run on the tick goroutine while the
// runner's lock is held, so they must not call Do or Exec.
type Runner struct {
	transport  xbee.Transport
	net        *xbee.Network
	recoverer  *Recoverer
	cfg        *Config
	cancel     context.CancelFunc
	done       chan struct{}
	err        error
	wg         sync.WaitGroup
	mu         syncutil.Mutex
	linkMu     syncutil.RWMutex
	errMu      syncutil.Mutex
	state      atomic.Int32
	ticks      atomic.Int64
	clamped    atomic.Int64
	bytesRead  atomic.Int64
	readErrors atomic.Int64
	reconnects atomic.Int64
	tickNanos  atomic.Int64
}

// New creates a runner over transport. The network is built with opts and
// sends through the runner, so a reopened transport is picked up without
// rebuilding it.
func New(transport xbee.Transport, cfg *Config, opts ...xbee.Option) (*Runner, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", xbee.ErrTransportNotReady)
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		transport: transport,
		cfg:       cfg,
		done:      make(chan struct{}),
	}
	n, err := xbee.NewNetwork(r, opts...)
	if err != nil {
		return nil, fmt.Errorf("create network: %w", err)
	}
	r.net = n
	return r, nil
}

// SetReopen enables recovery from fatal transport errors. Call it before
// Start.
func (r *Runner) SetReopen(fn ReopenFunc) {
	r.recoverer = NewRecoverer(fn, r.cfg.Recovery)
}

// Send implements xbee.Sink over the current transport.
func (r *Runner) Send(frame []byte) error {
	return r.current().Send(frame) //nolint:wrapcheck // the network wraps send errors
}

// Transport returns the transport in use.
func (r *Runner) Transport() xbee.Transport {
	return r.current()
}

func (r *Runner) current() xbee.Transport {
	r.linkMu.RLock()
	defer r.linkMu.RUnlock()
	return r.transport
}

// Start launches the read and tick loops. They run until ctx ends, Stop is
// called or the transport fails beyond recovery.
func (r *Runner) Start(ctx context.Context) error {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyStarted
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(2)
	go r.readLoop(ctx)
	go r.tickLoop(ctx)
	go func() {
		r.wg.Wait()
		r.state.Store(int32(StateStopped))
		close(r.done)
	}()
	return nil
}

// Stop ends both loops, waits for them and closes the transport.
func (r *Runner) Stop() error {
	if r.state.CompareAndSwap(int32(StateIdle), int32(StateStopped)) {
		close(r.done)
		return r.closeTransport()
	}
	r.cancel()
	<-r.done
	if err := r.closeTransport(); err != nil {
		return err
	}
	return r.Err()
}

func (r *Runner) closeTransport() error {
	if err := r.current().Close(); err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}

// Done is closed once the runner has stopped.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the runner stops and returns the error that stopped
// it, if any.
func (r *Runner) Wait() error {
	<-r.done
	return r.Err()
}

// Err returns the error that stopped the runner.
func (r *Runner) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

// State returns the runner's lifecycle stage.
func (r *Runner) State() State {
	return State(r.state.Load())
}

// Do runs fn with exclusive access to the network.
func (r *Runner) Do(fn func(n *xbee.Network)) {
	r.mu.Do(func() { fn(r.net) })
}

// Exec builds a chain under the runner's lock and waits for its outcome.
// A chain halted by a timeout is aborted before Exec returns.
func (r *Runner) Exec(ctx context.Context, build func(n *xbee.Network) *xbee.Chain) (xbee.Result, error) {
	var c *xbee.Chain
	r.Do(func(n *xbee.Network) { c = build(n) })
	if c == nil {
		return xbee.Result{}, fmt.Errorf("%w: builder returned no chain", xbee.ErrInvalidParameter)
	}

	select {
	case res := <-c.Done():
		if res.State == xbee.StateTimeout {
			// A timeout halts the chain; give its remaining slots back.
			r.Do(func(*xbee.Network) { c.Abort() })
		}
		return res, res.Err
	case <-ctx.Done():
		return xbee.Result{}, fmt.Errorf("waiting for %v chain: %w", c.Destination(), ctx.Err())
	case <-r.done:
		if err := r.Err(); err != nil {
			return xbee.Result{}, fmt.Errorf("%w: %w", ErrStopped, err)
		}
		return xbee.Result{}, ErrStopped
	}
}

// Metrics returns a snapshot of the runner counters.
func (r *Runner) Metrics() Metrics {
	return Metrics{
		Ticks:           r.ticks.Load(),
		ClampedTicks:    r.clamped.Load(),
		BytesRead:       r.bytesRead.Load(),
		ReadErrors:      r.readErrors.Load(),
		Reconnects:      r.reconnects.Load(),
		LastTickLatency: time.Duration(r.tickNanos.Load()),
	}
}

func (r *Runner) tickLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.tick(now.Sub(last))
			last = now
		}
	}
}

func (r *Runner) tick(elapsed time.Duration) {
	if r.cfg.DetectSleep(elapsed) {
		xbee.Debugf("service: %v between ticks, clamping to %v", elapsed, r.cfg.MaxElapsed)
		r.clamped.Add(1)
		elapsed = r.cfg.MaxElapsed
	}

	start := time.Now()
	r.mu.Do(func() { r.net.Service(elapsed) })
	r.tickNanos.Store(int64(time.Since(start)))
	r.ticks.Add(1)
}

func (r *Runner) readLoop(ctx context.Context) {
	defer r.wg.Done()
	buf := make([]byte, r.cfg.ReadBufferSize)

	for ctx.Err() == nil {
		n, err := r.current().Read(buf)
		if n > 0 {
			r.bytesRead.Add(int64(n))
			if _, ierr := r.net.Ingest(buf[:n]); ierr != nil {
				xbee.Debugf("service: %v", ierr)
			}
		}

		switch {
		case err != nil && xbee.IsFatal(err):
			r.readErrors.Add(1)
			if rerr := r.recover(ctx, err); rerr != nil {
				r.fail(rerr)
				return
			}
		case err != nil:
			r.readErrors.Add(1)
			xbee.Debugf("service: read: %v", err)
			if !sleepContext(ctx, r.cfg.TickInterval) {
				return
			}
		case n == 0:
			if !sleepContext(ctx, r.cfg.TickInterval) {
				return
			}
		}
	}
}

// recover swaps in a reopened transport after cause.
func (r *Runner) recover(ctx context.Context, cause error) error {
	if r.recoverer == nil {
		return fmt.Errorf("read: %w", cause)
	}
	xbee.Debugf("service: transport lost: %v", cause)
	r.state.Store(int32(StateRecovering))
	_ = r.current().Close()

	t, err := r.recoverer.Reconnect(ctx)
	if err != nil {
		return fmt.Errorf("read: %w (recovery: %w)", cause, err)
	}

	r.linkMu.Lock()
	r.transport = t
	r.linkMu.Unlock()
	r.reconnects.Add(1)
	r.state.Store(int32(StateRunning))
	return nil
}

func (r *Runner) fail(err error) {
	r.errMu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.errMu.Unlock()
	r.cancel()
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
