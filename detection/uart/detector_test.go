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

//nolint:paralleltest // tests replace package-level hooks
package uart

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/ZaparooProject/go-xbee"
	"github.com/ZaparooProject/go-xbee/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
)

func stubProbe(t *testing.T, fn func(context.Context, string, detection.Mode) (detection.Identity, error)) {
	t.Helper()
	orig := probeDeviceFn
	probeDeviceFn = fn
	t.Cleanup(func() { probeDeviceFn = orig })
}

func stubPorts(t *testing.T, ports []*enumerator.PortDetails, err error) {
	t.Helper()
	orig := listPorts
	listPorts = func() ([]*enumerator.PortDetails, error) { return ports, err }
	t.Cleanup(func() { listPorts = orig })
}

var errNoAnswer = errors.New("no answer")

func TestNewCandidate(t *testing.T) {
	c := newCandidate(&enumerator.PortDetails{
		Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6015",
		SerialNumber: "DN0123", Product: "FT231X USB UART",
	})
	assert.Equal(t, candidate{
		path: "/dev/ttyUSB0", product: "FT231X USB UART", serial: "DN0123", vidpid: "0403:6015",
	}, c)

	c = newCandidate(&enumerator.PortDetails{Name: "/dev/ttyS0", VID: "0403", PID: "6015"})
	assert.Empty(t, c.vidpid, "VID/PID only count for USB ports")
}

func TestCandidate_Device(t *testing.T) {
	tests := []struct {
		name       string
		wantName   string
		wantMeta   map[string]string
		c          candidate
		confidence detection.Confidence
	}{
		{
			name:       "known bridge",
			c:          candidate{path: "/dev/ttyUSB0", vidpid: "10C4:EA60", serial: "A1"},
			wantName:   "/dev/ttyUSB0",
			confidence: detection.Medium,
			wantMeta:   map[string]string{"vidpid": "10C4:EA60", "serial": "A1"},
		},
		{
			name:       "product keyword",
			c:          candidate{path: "COM5", product: "Digi XBee Grove"},
			wantName:   "Digi XBee Grove",
			confidence: detection.Medium,
			wantMeta:   map[string]string{"product": "Digi XBee Grove"},
		},
		{
			name:       "generic usb serial",
			c:          candidate{path: "/dev/ttyACM0", vidpid: "1209:0001"},
			wantName:   "/dev/ttyACM0",
			confidence: detection.Low,
			wantMeta:   map[string]string{"vidpid": "1209:0001"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.c.device()
			assert.Equal(t, "uart", d.Transport)
			assert.Equal(t, tt.c.path, d.Path)
			assert.Equal(t, tt.wantName, d.Name)
			assert.Equal(t, tt.confidence, d.Confidence)
			assert.Equal(t, tt.wantMeta, d.Metadata)
		})
	}
}

func TestCandidate_Excluded(t *testing.T) {
	opts := &detection.Options{
		Blocklist:   detection.DefaultBlocklist(),
		IgnorePaths: []string{"/dev/ttyUSB1"},
	}

	tests := []struct {
		c        candidate
		excluded bool
	}{
		{candidate{path: "/dev/ttyUSB0", vidpid: "0403:6015"}, false},
		{candidate{path: "/dev/ttyACM0", vidpid: "2341:0043"}, true},
		{candidate{path: "/dev/ttyUSB1", vidpid: "10C4:EA60"}, true},
		{candidate{path: "/dev/ttyS0"}, true},
		{candidate{path: "/dev/serial0"}, false},
		{candidate{path: "/dev/ttyS3", product: "XBee carrier"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.c.path, func(t *testing.T) {
			assert.Equal(t, tt.excluded, tt.c.excluded(opts))
		})
	}
}

func TestInspect_FailedProbeDiscardsLikelyDevice(t *testing.T) {
	// A CH340 is a likely adapter, but plenty of boards that are not
	// radios use it too.
	stubProbe(t, func(context.Context, string, detection.Mode) (detection.Identity, error) {
		return detection.Identity{}, errNoAnswer
	})

	_, ok := inspect(context.Background(), candidate{path: "/dev/ttyUSB0", vidpid: "1A86:7523"}, detection.Safe)
	assert.False(t, ok)
}

func TestInspect_SuccessfulProbe(t *testing.T) {
	tests := []struct {
		name     string
		wantMeta map[string]string
		mode     detection.Mode
	}{
		{
			name:     "safe",
			mode:     detection.Safe,
			wantMeta: map[string]string{"vidpid": "0403:6015", "api_mode": "api"},
		},
		{
			name: "full",
			mode: detection.Full,
			wantMeta: map[string]string{
				"vidpid":   "0403:6015",
				"api_mode": "api",
				"address":  "0013A20012345678",
				"node_id":  "GATEWAY",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubProbe(t, func(_ context.Context, path string, mode detection.Mode) (detection.Identity, error) {
				assert.Equal(t, "/dev/ttyUSB0", path)
				assert.Equal(t, tt.mode, mode)
				return detection.Identity{NodeID: "GATEWAY", Address: 0x0013A20012345678, APIMode: xbee.ModeAPI}, nil
			})

			device, ok := inspect(context.Background(), candidate{path: "/dev/ttyUSB0", vidpid: "0403:6015"}, tt.mode)
			require.True(t, ok)
			assert.Equal(t, detection.High, device.Confidence)
			assert.Equal(t, tt.wantMeta, device.Metadata)
		})
	}
}

func TestInspect_PassiveNeverProbes(t *testing.T) {
	stubProbe(t, func(context.Context, string, detection.Mode) (detection.Identity, error) {
		t.Error("passive detection probed a port")
		return detection.Identity{}, nil
	})

	device, ok := inspect(context.Background(),
		candidate{path: "/dev/ttyUSB0", product: "XBee Grove Dev Board"}, detection.Passive)
	require.True(t, ok)
	assert.Equal(t, detection.Medium, device.Confidence)
	assert.Equal(t, "XBee Grove Dev Board", device.Name)

	_, ok = inspect(context.Background(),
		candidate{path: "/dev/ttyUSB1", vidpid: "AAAA:BBBB"}, detection.Passive)
	assert.False(t, ok)
}

func TestExamine_BoundsConcurrencyAndKeepsOrder(t *testing.T) {
	var inFlight, peak atomic.Int32
	release := make(chan struct{})
	stubProbe(t, func(_ context.Context, path string, _ detection.Mode) (detection.Identity, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		inFlight.Add(-1)
		if path == "/dev/ttyUSB3" {
			return detection.Identity{}, errNoAnswer
		}
		return detection.Identity{APIMode: xbee.ModeAPI}, nil
	})

	candidates := make([]candidate, 0, 8)
	for _, p := range []string{"0", "1", "2", "3", "4", "5", "6", "7"} {
		candidates = append(candidates, candidate{path: "/dev/ttyUSB" + p, vidpid: "0403:6015"})
	}

	done := make(chan []detection.DeviceInfo)
	go func() { done <- examine(context.Background(), candidates, detection.Safe) }()
	close(release)
	devices := <-done

	assert.LessOrEqual(t, peak.Load(), int32(maxConcurrentProbes))
	paths := make([]string, 0, len(devices))
	for _, d := range devices {
		paths = append(paths, d.Path)
	}
	assert.Equal(t, []string{
		"/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyUSB2",
		"/dev/ttyUSB4", "/dev/ttyUSB5", "/dev/ttyUSB6", "/dev/ttyUSB7",
	}, paths)
}

func TestExamine_CanceledContext(t *testing.T) {
	stubProbe(t, func(context.Context, string, detection.Mode) (detection.Identity, error) {
		t.Error("probe ran after cancellation")
		return detection.Identity{}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, examine(ctx, []candidate{{path: "/dev/ttyUSB0"}}, detection.Safe))
}

func TestDetect(t *testing.T) {
	stubPorts(t, []*enumerator.PortDetails{
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6015"},
		{Name: "/dev/ttyUSB1", IsUSB: true, VID: "10c4", PID: "ea60"},
		{Name: "/dev/ttyS0"},
	}, nil)
	stubProbe(t, func(_ context.Context, path string, _ detection.Mode) (detection.Identity, error) {
		if path == "/dev/ttyUSB1" {
			return detection.Identity{}, errNoAnswer
		}
		return detection.Identity{APIMode: xbee.ModeEscaped}, nil
	})

	opts := detection.DefaultOptions()
	devices, err := New().Detect(context.Background(), &opts)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "/dev/ttyUSB0", devices[0].Path)
	assert.Equal(t, "uart", devices[0].Transport)
	assert.Equal(t, "escaped", devices[0].Metadata["api_mode"])

	stubProbe(t, func(context.Context, string, detection.Mode) (detection.Identity, error) {
		return detection.Identity{}, errNoAnswer
	})
	_, err = New().Detect(context.Background(), &opts)
	require.ErrorIs(t, err, detection.ErrNoDevicesFound)
}

func TestDetect_EnumerationErrors(t *testing.T) {
	failure := errors.New("no sysfs")
	stubPorts(t, nil, failure)
	_, err := New().Detect(context.Background(), &detection.Options{Mode: detection.Passive})
	require.ErrorIs(t, err, failure)

	stubPorts(t, nil, nil)
	_, err = New().Detect(context.Background(), &detection.Options{Mode: detection.Passive})
	require.ErrorIs(t, err, detection.ErrNoDevicesFound)
}
