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
	"io"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "transport timeout", err: ErrTransportTimeout, want: true},
		{name: "transport read", err: ErrTransportRead, want: true},
		{name: "transport write", err: ErrTransportWrite, want: true},
		{name: "buffer full", err: ErrBufferFull, want: true},
		{name: "checksum mismatch", err: ErrChecksumMismatch, want: true},
		{name: "wrapped transport timeout", err: fmt.Errorf("send: %w", ErrTransportTimeout), want: true},
		{name: "invalid parameter", err: ErrInvalidParameter, want: false},
		{name: "transport closed", err: ErrTransportClosed, want: false},
		{
			name: "transient transport error",
			err:  NewTransportError("send", "/dev/ttyUSB0", errors.New("busy"), ErrorTypeTransient),
			want: true,
		},
		{
			name: "permanent transport error",
			err:  NewTransportError("open", "/dev/ttyUSB0", ErrDeviceNotFound, ErrorTypePermanent),
			want: false,
		},
		{
			name: "transaction timeout",
			err:  &TransactionError{Kind: KindTimeout, Err: ErrTimeout},
			want: true,
		},
		{
			name: "transient delivery failure",
			err:  &TransactionError{Kind: KindStatus, Err: ErrDeliveryFailed, Status: byte(DeliveryCCAFailure)},
			want: true,
		},
		{
			name: "payload too large",
			err:  &TransactionError{Kind: KindStatus, Err: ErrDeliveryFailed, Status: byte(DeliveryPayloadTooLarge)},
			want: false,
		},
		{
			name: "command failed",
			err:  &TransactionError{Kind: KindStatus, Err: ErrCommandFailed, Status: byte(CommandError)},
			want: false,
		},
		{
			name: "chain aborted",
			err:  &TransactionError{Kind: KindChain, Err: ErrChainAborted},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "transport closed", err: ErrTransportClosed, want: true},
		{name: "device not found", err: ErrDeviceNotFound, want: true},
		{name: "not api mode", err: ErrNotAPIMode, want: true},
		{name: "eof", err: io.EOF, want: true},
		{name: "closed pipe", err: fmt.Errorf("write: %w", io.ErrClosedPipe), want: true},
		{name: "EIO", err: fmt.Errorf("read: %w", syscall.EIO), want: true},
		{name: "ENODEV", err: syscall.ENODEV, want: true},
		{name: "EAGAIN", err: syscall.EAGAIN, want: false},
		{name: "transport timeout", err: ErrTransportTimeout, want: false},
		{
			name: "permanent transport error",
			err:  NewTransportError("write", "", errors.New("gone"), ErrorTypePermanent),
			want: true,
		},
		{
			name: "transient transport error",
			err:  NewTransportError("write", "", io.EOF, ErrorTypeTransient),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestTransportError(t *testing.T) {
	t.Parallel()

	err := NewTransportError("send", "/dev/ttyUSB0", ErrTransportWrite, ErrorTypeTimeout)
	assert.Equal(t, "send /dev/ttyUSB0: transport write failed", err.Error())
	assert.True(t, err.Retryable)
	require.ErrorIs(t, err, ErrTransportWrite)

	noPort := NewTransportError("read", "", ErrTransportRead, ErrorTypePermanent)
	assert.Equal(t, "read: transport read failed", noPort.Error())
	assert.False(t, noPort.Retryable)
}

func TestTransactionError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err    *TransactionError
		target error
		name   string
		want   string
	}{
		{
			name: "command status",
			err: &TransactionError{
				Kind: KindStatus, Err: ErrCommandFailed, APIID: APIATResponse,
				Command: CmdNetworkID, FrameID: 3, Status: byte(CommandInvalidParameter),
			},
			target: ErrCommandFailed,
			want:   "AT response ID (frame 3): command failed: invalid parameter (0x03)",
		},
		{
			name: "delivery status",
			err: &TransactionError{
				Kind: KindStatus, Err: ErrDeliveryFailed, APIID: APITransmitStatus,
				FrameID: 9, Status: byte(DeliveryAddressNotFound),
			},
			target: ErrDeliveryFailed,
			want:   "transmit status (frame 9): delivery failed: address not found (0x24)",
		},
		{
			name:   "timeout",
			err:    &TransactionError{Kind: KindTimeout, Err: ErrTimeout, APIID: APIATCommand, Command: CmdNodeIdentifier},
			target: ErrTimeout,
			want:   "AT command NI: transaction timed out",
		},
		{
			name:   "build",
			err:    &TransactionError{Kind: KindBuild, Err: ErrNoCapacity, APIID: APITransmitRequest},
			target: ErrNoCapacity,
			want:   "transmit request: payload budget too small for any data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.err.Error())
			assert.ErrorIs(t, tt.err, tt.target)
		})
	}
}

func TestIsTimeoutAndChainAborted(t *testing.T) {
	t.Parallel()

	timeout := &TransactionError{Kind: KindTimeout, Err: ErrTimeout}
	assert.True(t, IsTimeout(timeout))
	assert.False(t, IsChainAborted(timeout))

	chained := &TransactionError{Kind: KindChain, Err: fmt.Errorf("%w: %w", ErrChainAborted, timeout)}
	assert.True(t, IsChainAborted(chained))
	assert.True(t, IsTimeout(chained), "cause stays reachable")
}

func TestErrorKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "none", KindNone.String())
	assert.Equal(t, "status", KindStatus.String())
	assert.Equal(t, "timeout", KindTimeout.String())
	assert.Equal(t, "chain", KindChain.String())
	assert.Equal(t, "build", KindBuild.String())
	assert.Equal(t, "ErrorKind(9)", ErrorKind(9).String())
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	status := &TransactionError{Kind: KindStatus, Err: ErrCommandFailed}
	assert.Equal(t, KindStatus, KindOf(fmt.Errorf("read NI: %w", status)))
	assert.True(t, IsStatus(status))
	assert.Equal(t, KindChain, KindOf(&TransactionError{Kind: KindChain, Err: ErrChainAborted}))
	assert.Equal(t, KindNone, KindOf(ErrTransportRead))
	assert.Equal(t, KindNone, KindOf(nil))
	assert.False(t, IsStatus(ErrTimeout))
}
