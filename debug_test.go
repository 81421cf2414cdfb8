//nolint:paralleltest // Tests modify package-level debug state, cannot run in parallel
package xbee

import (
	"bytes"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSessionLog swaps the session log for a buffer until the test ends.
func captureSessionLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	origEnabled := debugEnabled.Load()
	var buf bytes.Buffer
	var origWriter io.Writer
	session.mu.Do(func() { origWriter, session.w = session.w, &buf })
	t.Cleanup(func() {
		debugEnabled.Store(origEnabled)
		session.mu.Do(func() { session.w = origWriter })
	})
	debugEnabled.Store(false)
	return &buf
}

func TestDebugLogging_SessionLog(t *testing.T) {
	tests := []struct {
		log      func()
		name     string
		contains []string
		lines    int
	}{
		{
			name:     "debugf formats",
			log:      func() { debugf("frame 0x%02X state %s", 0x8B, StateSent) },
			contains: []string{"DEBUG: frame 0x8B state SENT"},
			lines:    1,
		},
		{
			name:     "debugln concatenates",
			log:      func() { debugln("tx", 3, true) },
			contains: []string{"DEBUG: tx3 true"},
			lines:    1,
		},
		{
			name: "multiple messages keep order",
			log: func() {
				Debugf("message 1")
				Debugf("message 2")
			},
			contains: []string{"message 1", "message 2"},
			lines:    2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureSessionLog(t)
			tt.log()

			content := buf.String()
			for _, want := range tt.contains {
				assert.Contains(t, content, want)
			}
			assert.Len(t, strings.Split(strings.TrimSpace(content), "\n"), tt.lines)

			matched, err := regexp.MatchString(`\d{2}:\d{2}:\d{2}\.\d{3} DEBUG:`, content)
			require.NoError(t, err)
			assert.True(t, matched, "missing timestamp: %s", content)
		})
	}
}

func TestDebugLogging_NilSessionWriter(t *testing.T) {
	_ = captureSessionLog(t)
	session.mu.Do(func() { session.w = nil })

	assert.NotPanics(t, func() {
		Debugf("dropped %d", 1)
		Debugln("dropped")
	})
}

func TestSetDebugEnabled(t *testing.T) {
	_ = captureSessionLog(t)

	SetDebugEnabled(true)
	assert.True(t, DebugEnabled())

	SetDebugEnabled(false)
	assert.False(t, DebugEnabled())
}

func TestDebugLogging_Console(t *testing.T) {
	buf := captureSessionLog(t)
	var console bytes.Buffer
	orig := debugOutput
	debugOutput = &console
	t.Cleanup(func() { debugOutput = orig })

	Debugf("quiet %d", 1)
	assert.Zero(t, console.Len())

	SetDebugEnabled(true)
	Debugln("loud", 2)
	assert.Equal(t, "DEBUG: loud2\n", console.String())
	assert.Contains(t, buf.String(), "DEBUG: quiet 1")
	assert.Contains(t, buf.String(), "DEBUG: loud2")
}
