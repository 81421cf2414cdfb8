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
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/ZaparooProject/go-xbee/internal/syncutil"
)

const sessionStamp = "15:04:05.000"

// sessionLog is the optional per-process log file. The runner writes to
// it from both of its goroutines.
type sessionLog struct {
	w    io.Writer
	file *os.File
	path string
	mu   syncutil.Mutex
}

var session sessionLog

func (s *sessionLog) active() bool {
	var ok bool
	s.mu.Do(func() { ok = s.w != nil })
	return ok
}

func (s *sessionLog) writeLine(line string) {
	s.mu.Do(func() {
		if s.w == nil {
			return
		}
		_, _ = fmt.Fprintf(s.w, "%s %s\n", time.Now().Format(sessionStamp), line)
	})
}

// detach clears the log and returns the file that backed it, if any.
func (s *sessionLog) detach() (*os.File, io.Writer) {
	var (
		file *os.File
		w    io.Writer
	)
	s.mu.Do(func() {
		file, w = s.file, s.w
		s.file, s.w, s.path = nil, nil, ""
	})
	return file, w
}

// InitSessionLog opens a new session log in dir (the current directory
// when dir is empty) and returns its path. A log that is already open is
// closed first.
func InitSessionLog(dir string) (string, error) {
	if err := CloseSessionLog(); err != nil {
		return "", err
	}

	name := filepath.Join(dir, "xbee_"+time.Now().Format("20060102_150405")+".log")
	file, err := os.Create(name) //nolint:gosec // name is built from dir and a timestamp
	if err != nil {
		return "", fmt.Errorf("failed to create session log: %w", err)
	}
	writeSessionHeader(file)

	session.mu.Do(func() {
		session.file, session.w, session.path = file, file, name
	})
	return name, nil
}

// CloseSessionLog ends the session log. It is a no-op when none is open.
func CloseSessionLog() error {
	file, w := session.detach()
	if w == nil {
		return nil
	}
	_, _ = fmt.Fprintf(w, "\n%s === Session ended ===\n", time.Now().Format(sessionStamp))
	if file == nil {
		return nil
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close session log: %w", err)
	}
	return nil
}

// SessionLogPath returns the open session log's path, or "".
func SessionLogPath() string {
	var path string
	session.mu.Do(func() { path = session.path })
	return path
}

// logWire records a raw frame in the session log. Wire dumps never reach
// the console.
func logWire(direction string, wire []byte) {
	if !session.active() {
		return
	}
	session.writeLine(fmt.Sprintf("%s: % X", direction, wire))
}

func writeSessionHeader(w io.Writer) {
	_, _ = fmt.Fprintln(w, "=== XBee Debug Session Log ===")
	_, _ = fmt.Fprintf(w, "Started: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "PID: %d\n", os.Getpid())
	_, _ = fmt.Fprintf(w, "OS: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(w, "Go Version: %s\n", runtime.Version())
	_, _ = fmt.Fprintf(w, "Command Line: %s\n", strings.Join(os.Args, " "))
	_, _ = fmt.Fprint(w, "================================\n\n")
}
