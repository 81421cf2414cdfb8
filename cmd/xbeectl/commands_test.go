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
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZaparooProject/go-xbee"
	testutil "github.com/ZaparooProject/go-xbee/internal/testing"
	"github.com/ZaparooProject/go-xbee/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sensorAddr  uint64 = 0x0013A20041000001
	gatewayAddr uint64 = 0x0013A20041000002
)

// radioTransport adapts a VirtualRadio to xbee.Transport.
type radioTransport struct {
	*testutil.VirtualRadio
	closed atomic.Bool
}

func (t *radioTransport) Read(p []byte) (int, error) {
	if t.closed.Load() {
		return 0, xbee.ErrTransportClosed
	}
	return t.VirtualRadio.Read(p) //nolint:wrapcheck // test double
}

func (t *radioTransport) Close() error {
	t.closed.Store(true)
	return nil
}

func (*radioTransport) SetTimeout(time.Duration) error { return nil }

func (t *radioTransport) IsConnected() bool { return !t.closed.Load() }

func (*radioTransport) Type() xbee.TransportType { return xbee.TransportMock }

// syncBuffer is written from the tick goroutine by observers.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p) //nolint:wrapcheck // bytes.Buffer never fails
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestApp(t *testing.T) (*app, *testutil.VirtualRadio, *syncBuffer) {
	t.Helper()

	radio := testutil.NewVirtualRadio()
	radio.AddNeighbor(testutil.Neighbor{NodeID: "SENSOR", Address: sensorAddr, NetworkAddress: 0x1A2B})
	radio.AddNeighbor(testutil.Neighbor{NodeID: "GATEWAY", Address: gatewayAddr, NetworkAddress: 0x0001})

	cfg := defaultConfig()
	cfg.svc.TickInterval = time.Millisecond

	r, err := service.New(&radioTransport{VirtualRadio: radio}, cfg.svc, xbee.WithConfig(cfg.net))
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(func() { _ = r.Stop() })

	out := &syncBuffer{}
	return &app{runner: r, out: out, cfg: cfg, timeout: 2 * time.Second}, radio, out
}

func TestApp_Info(t *testing.T) {
	t.Parallel()

	a, _, out := newTestApp(t)
	require.NoError(t, a.run(context.Background(), []string{"info"}))

	got := out.String()
	assert.Contains(t, got, "Node ID:     LOCAL")
	assert.Contains(t, got, "Address:     0013A20040A1B2C3")
	assert.Contains(t, got, "Network ID:  7FFF")
	assert.Contains(t, got, "API mode:    api")
	assert.Contains(t, got, "Max payload: 73")
}

func TestApp_Discover(t *testing.T) {
	t.Parallel()

	a, _, out := newTestApp(t)
	require.NoError(t, a.run(context.Background(), []string{"discover"}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "SENSOR")
	assert.Contains(t, lines[0], "0013A20041000001")
	assert.Contains(t, lines[0], "1A2B")
	assert.Contains(t, lines[1], "GATEWAY")
}

func TestApp_GetSet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
		args []string
	}{
		{name: "local text", args: []string{"get", "ni"}, want: `NI = 4C4F43414C ("LOCAL")`},
		{name: "local number", args: []string{"get", "ID"}, want: "ID = 7FFF"},
		{name: "remote by name", args: []string{"get", "NI", "SENSOR"}, want: `NI = 53454E534F52 ("SENSOR")`},
		{name: "remote by address", args: []string{"get", "NI", "0x0013A20041000002"}, want: `("GATEWAY")`},
		{name: "set local", args: []string{"set", "ID", "0x1234"}, want: "ID set to 1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a, _, out := newTestApp(t)
			require.NoError(t, a.run(context.Background(), tt.args))
			assert.Contains(t, out.String(), tt.want)
		})
	}
}

func TestApp_SetWritesRadio(t *testing.T) {
	t.Parallel()

	a, radio, _ := newTestApp(t)
	require.NoError(t, a.run(context.Background(), []string{"set", "ID", "1234"}))
	assert.Equal(t, []byte{0x12, 0x34}, radio.Parameter("ID"))

	require.NoError(t, a.run(context.Background(), []string{"set", "NI", "4E4F4445", "SENSOR"}))
	assert.Equal(t, []byte("NODE"), radio.RemoteParameter(sensorAddr, "NI"))
}

func TestApp_Send(t *testing.T) {
	t.Parallel()

	a, radio, out := newTestApp(t)
	require.NoError(t, a.run(context.Background(), []string{"send", "GATEWAY", "hello", "world"}))
	assert.Equal(t, []byte("hello world"), radio.Delivered(gatewayAddr))
	assert.Contains(t, out.String(), "Sent 11 bytes to GATEWAY")

	require.NoError(t, a.run(context.Background(), []string{"send", "broadcast", "ping"}))
	assert.Equal(t, []byte("ping"), radio.Delivered(uint64(xbee.BroadcastAddress)))
}

func TestApp_Configure(t *testing.T) {
	t.Parallel()

	a, radio, out := newTestApp(t)
	a.cfg.hasNetwork = true
	a.cfg.networkID = 0x2001
	a.cfg.preambleID = 3
	a.cfg.nodeID = "BENCH"

	require.NoError(t, a.run(context.Background(), []string{"configure"}))
	assert.Equal(t, []byte{0x20, 0x01}, radio.Parameter("ID"))
	assert.Equal(t, []byte("BENCH"), radio.Parameter("NI"))
	assert.Contains(t, out.String(), `Joined network 2001 (preamble 3) as "BENCH"`)
}

func TestApp_Listen(t *testing.T) {
	t.Parallel()

	a, radio, out := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.run(ctx, []string{"listen"}) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Listening")
	}, time.Second, time.Millisecond)

	radio.InjectReceive(sensorAddr, []byte("temp=21"))
	radio.InjectModemStatus(byte(xbee.StatusJoinedNetwork))
	require.Eventually(t, func() bool {
		got := out.String()
		return strings.Contains(got, `0013A20041000001: "temp=21"`) && strings.Contains(got, "modem status:")
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("listen did not return after cancel")
	}
}

func TestApp_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr error
		setup   func(radio *testutil.VirtualRadio)
		name    string
		args    []string
	}{
		{name: "unknown command", args: []string{"reboot"}, wantErr: errUsage},
		{name: "get without command", args: []string{"get"}, wantErr: errUsage},
		{name: "long at command", args: []string{"get", "NID"}, wantErr: errUsage},
		{name: "value not hex", args: []string{"set", "ID", "zz"}, wantErr: errUsage},
		{name: "send without text", args: []string{"send", "SENSOR"}, wantErr: errUsage},
		{name: "send to local", args: []string{"send", "0x0", "hi"}, wantErr: errUsage},
		{name: "configure without network", args: []string{"configure"}, wantErr: errUsage},
		{name: "unknown peer", args: []string{"get", "NI", "ROUTER9"}, wantErr: xbee.ErrPeerNotDiscovered},
		{
			name:    "radio rejects",
			args:    []string{"get", "ID"},
			wantErr: xbee.ErrCommandFailed,
			setup:   func(radio *testutil.VirtualRadio) { radio.FailCommand("ID", 0x03) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a, radio, _ := newTestApp(t)
			if tt.setup != nil {
				tt.setup(radio)
			}
			require.ErrorIs(t, a.run(context.Background(), tt.args), tt.wantErr)
		})
	}
}

func TestFormatValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		want  string
		value []byte
	}{
		{name: "empty", value: nil, want: "(empty)"},
		{name: "binary", value: []byte{0x7F, 0xFF}, want: "7FFF"},
		{name: "text", value: []byte("ab"), want: `6162 ("ab")`},
		{name: "control byte", value: []byte{'a', 0x00}, want: "6100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, formatValue(tt.value))
		})
	}
}

func TestLooksLikeAddress(t *testing.T) {
	t.Parallel()

	assert.True(t, looksLikeAddress("0x1"))
	assert.True(t, looksLikeAddress("0013A20041000001"))
	assert.False(t, looksLikeAddress("SENSOR"))
	assert.False(t, looksLikeAddress("0013A2004100000G"))
}

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	a, _, _ := newTestApp(t)
	require.NoError(t, a.run(context.Background(), []string{"discover"}))

	rec := httptest.NewRecorder()
	metricsHandler(a.runner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `xbee_service_peers{transport="mock"} 2`)
	assert.Contains(t, body, "xbee_service_ticks_total")
}
