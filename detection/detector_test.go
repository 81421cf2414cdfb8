//nolint:paralleltest // Tests swap the package-level detector registry and cache
package detection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useDetectors replaces the registry and empties the cache for one test.
func useDetectors(t *testing.T, ds ...Detector) {
	t.Helper()
	var orig []Detector
	registry.mu.Write(func() { orig, registry.list = registry.list, ds })
	clearCache()
	t.Cleanup(func() {
		registry.mu.Write(func() { registry.list = orig })
		clearCache()
	})
}

// staticDetector returns a fixed result and counts calls.
type staticDetector struct {
	err       error
	transport string
	devices   []DeviceInfo
	calls     int
}

func (s *staticDetector) Detect(context.Context, *Options) ([]DeviceInfo, error) {
	s.calls++
	return s.devices, s.err
}

func (s *staticDetector) Transport() string { return s.transport }

// stuckDetector never answers until the test ends.
type stuckDetector struct{ release chan struct{} }

func (s *stuckDetector) Detect(context.Context, *Options) ([]DeviceInfo, error) {
	<-s.release
	return nil, ErrNoDevicesFound
}

func (*stuckDetector) Transport() string { return "uart" }

func TestModeString(t *testing.T) {
	assert.Equal(t, "passive", Passive.String())
	assert.Equal(t, "safe", Safe.String())
	assert.Equal(t, "full", Full.String())
	assert.Equal(t, "Mode(7)", Mode(7).String())
}

func TestDeviceInfo_String(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		device DeviceInfo
	}{
		{
			name:   "low",
			device: DeviceInfo{Transport: "uart", Path: "/dev/ttyS0", Confidence: Low},
			want:   "uart device at /dev/ttyS0 (confidence: low)",
		},
		{
			name:   "medium",
			device: DeviceInfo{Transport: "uart", Path: "/dev/ttyUSB0", Confidence: Medium},
			want:   "uart device at /dev/ttyUSB0 (confidence: medium)",
		},
		{
			name:   "high",
			device: DeviceInfo{Transport: "spi", Path: "SPI0.0", Confidence: High},
			want:   "spi device at SPI0.0 (confidence: high)",
		},
		{
			name:   "out of range",
			device: DeviceInfo{Transport: "uart", Path: "COM4", Confidence: Confidence(9)},
			want:   "uart device at COM4 (confidence: unknown)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.device.String())
		})
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.Equal(t, Safe, opts.Mode)
	assert.Equal(t, 5*time.Second, opts.Timeout)
	assert.True(t, opts.EnableCache)
	assert.Equal(t, 30*time.Second, opts.CacheTTL)
	assert.Equal(t, DefaultBlocklist(), opts.Blocklist)
}

func TestIsBlocked(t *testing.T) {
	blocklist := []string{"1234:5678", "ABCD:EF01"}

	tests := []struct {
		name    string
		vidpid  string
		blocked bool
	}{
		{"exact", "1234:5678", true},
		{"upper", "ABCD:EF01", true},
		{"case folded", "abcd:ef01", true},
		{"absent", "0403:6015", false},
		{"empty", "", false},
		{"vid only", "1234:", false},
		{"padded", "  1234:5678  ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.blocked, IsBlocked(tt.vidpid, blocklist))
		})
	}
}

func TestNormalizeVIDPID(t *testing.T) {
	tests := []struct {
		name string
		vid  string
		pid  string
		want string
	}{
		{"FTDI", "0403", "6015", "0403:6015"},
		{"lowercase", "10c4", "ea60", "10C4:EA60"},
		{"short ids are padded", "403", "1", "0403:0001"},
		{"whitespace", " 1a86 ", "7523", "1A86:7523"},
		{"missing pid", "0403", "", ""},
		{"not hex", "04G3", "6015", ""},
		{"too wide", "10403", "6015", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeVIDPID(tt.vid, tt.pid))
		})
	}
}

func TestRegistry_Matching(t *testing.T) {
	useDetectors(t,
		&staticDetector{transport: "uart"},
		&staticDetector{transport: "mock"},
		&staticDetector{transport: "spi"},
	)

	tests := []struct {
		name       string
		transports []string
		want       int
	}{
		{"nil selects all", nil, 3},
		{"empty selects all", []string{}, 3},
		{"one", []string{"uart"}, 1},
		{"two", []string{"uart", "spi"}, 2},
		{"unknown", []string{"i2c"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, registry.matching(tt.transports), tt.want)
		})
	}
}

func TestRegisterDetector(t *testing.T) {
	useDetectors(t)
	RegisterDetector(&staticDetector{transport: "spi"})

	got := registry.matching([]string{"spi"})
	require.Len(t, got, 1)
	assert.Equal(t, "spi", got[0].Transport())
}

func TestDetectAll_NoDetectors(t *testing.T) {
	useDetectors(t)

	opts := DefaultOptions()
	opts.Transports = []string{"i2c"}
	_, err := DetectAll(context.Background(), &opts)
	require.ErrorIs(t, err, ErrNoDetectors)
	assert.Contains(t, err.Error(), "i2c")
}

func TestDetectAll_Timeout(t *testing.T) {
	stuck := &stuckDetector{release: make(chan struct{})}
	t.Cleanup(func() { close(stuck.release) })
	useDetectors(t, stuck)

	opts := DefaultOptions()
	opts.Timeout = 10 * time.Millisecond
	opts.EnableCache = false

	_, err := DetectAll(context.Background(), &opts)
	require.ErrorIs(t, err, ErrDetectionTimeout)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDetectAll_MergesAndCaches(t *testing.T) {
	uartDet := &staticDetector{transport: "uart", devices: []DeviceInfo{
		{
			Transport: "uart", Path: "/dev/ttyUSB0", Confidence: High,
			Metadata: map[string]string{"vidpid": "0403:6015"},
		},
	}}
	spiDet := &staticDetector{transport: "spi", err: ErrNoDevicesFound}
	useDetectors(t, uartDet, spiDet)

	opts := DefaultOptions()
	devices, err := DetectAll(context.Background(), &opts)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "/dev/ttyUSB0", devices[0].Path)

	devices, err = DetectAll(context.Background(), &opts)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, 1, uartDet.calls, "second run is served from cache")
	assert.Equal(t, 2, spiDet.calls, "empty results are not cached")

	opts.Blocklist = []string{"0403:6015"}
	_, err = DetectAll(context.Background(), &opts)
	require.ErrorIs(t, err, ErrNoDevicesFound, "cached results are filtered too")
}

func TestDetectAll_EmptyRunClearsCache(t *testing.T) {
	det := &staticDetector{transport: "uart", err: ErrNoDevicesFound}
	useDetectors(t, det)
	setCached("uart", []DeviceInfo{{Transport: "uart", Path: "/dev/ttyUSB0"}})

	opts := DefaultOptions()
	opts.CacheTTL = time.Nanosecond
	time.Sleep(time.Millisecond)

	_, err := DetectAll(context.Background(), &opts)
	require.ErrorIs(t, err, ErrNoDevicesFound)
	_, found := getCached("uart", time.Hour)
	assert.False(t, found)
}

func TestDetectAll_SortsByConfidence(t *testing.T) {
	useDetectors(t,
		&staticDetector{transport: "uart", devices: []DeviceInfo{
			{Transport: "uart", Path: "/dev/ttyUSB1", Confidence: Medium},
			{Transport: "uart", Path: "/dev/ttyS0", Confidence: Low},
			{Transport: "uart", Path: "/dev/ttyUSB0", Confidence: Medium},
		}},
		&staticDetector{transport: "spi", devices: []DeviceInfo{
			{Transport: "spi", Path: "SPI0.0", Confidence: High},
		}},
	)

	opts := DefaultOptions()
	opts.EnableCache = false
	devices, err := DetectAll(context.Background(), &opts)
	require.NoError(t, err)

	paths := make([]string, 0, len(devices))
	for _, d := range devices {
		paths = append(paths, d.Path)
	}
	assert.Equal(t, []string{"SPI0.0", "/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyS0"}, paths)
}

func TestDetectAll_Errors(t *testing.T) {
	enumFailed := errors.New("enumeration failed")
	busFailed := errors.New("bus init failed")

	t.Run("all detectors fail", func(t *testing.T) {
		useDetectors(t,
			&staticDetector{transport: "uart", err: enumFailed},
			&staticDetector{transport: "spi", err: busFailed},
		)
		opts := DefaultOptions()
		opts.EnableCache = false

		_, err := DetectAll(context.Background(), &opts)
		require.ErrorIs(t, err, enumFailed)
		require.ErrorIs(t, err, busFailed)
		assert.Contains(t, err.Error(), "uart: enumeration failed")
	})

	t.Run("devices win over errors", func(t *testing.T) {
		useDetectors(t,
			&staticDetector{transport: "uart", err: enumFailed},
			&staticDetector{transport: "spi", devices: []DeviceInfo{{Transport: "spi", Path: "SPI0.0"}}},
		)
		opts := DefaultOptions()
		opts.EnableCache = false

		devices, err := DetectAll(context.Background(), &opts)
		require.NoError(t, err)
		assert.Len(t, devices, 1)
	})
}

func TestClearDetectionCache(t *testing.T) {
	useDetectors(t)
	setCached("uart", []DeviceInfo{{Transport: "uart"}})
	setCached("spi", []DeviceInfo{{Transport: "spi"}})

	ClearDetectionCacheForTransport("uart")
	_, found := getCached("uart", time.Minute)
	assert.False(t, found)
	_, found = getCached("spi", time.Minute)
	assert.True(t, found)

	ClearDetectionCache()
	_, found = getCached("spi", time.Minute)
	assert.False(t, found)
}
