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
	"io"
	"os"
	"sync/atomic"
)

// debugOutput receives console debug lines while debug output is enabled.
var debugOutput io.Writer = os.Stdout

var debugEnabled atomic.Bool

func init() {
	debugEnabled.Store(os.Getenv("XBEE_DEBUG") != "" || os.Getenv("DEBUG") != "")
}

// Debugf logs a formatted debug message. It always reaches an open session
// log and is echoed to stdout only while debug output is enabled.
func Debugf(format string, args ...any) {
	emitDebug(fmt.Sprintf(format, args...))
}

// Debugln is Debugf for operands formatted as by fmt.Sprint.
func Debugln(args ...any) {
	emitDebug(fmt.Sprint(args...))
}

// SetDebugEnabled turns console debug output on or off. XBEE_DEBUG or
// DEBUG in the environment turns it on at startup.
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}

// DebugEnabled reports whether console debug output is on.
func DebugEnabled() bool {
	return debugEnabled.Load()
}

func emitDebug(msg string) {
	session.writeLine("DEBUG: " + msg)
	if debugEnabled.Load() {
		_, _ = fmt.Fprintf(debugOutput, "DEBUG: %s\n", msg)
	}
}

func debugf(format string, args ...any) {
	Debugf(format, args...)
}

func debugln(args ...any) {
	Debugln(args...)
}
