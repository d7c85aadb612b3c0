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

package wakebeacon

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// SessionInfo describes the node a session log is recorded for. It is
// stamped into the log header so a log can be matched to its node later.
type SessionInfo struct {
	// Filter is the configuration the node was started with, if known.
	Filter *FilterConfig
	// Node labels the log, e.g. the radio device path.
	Node string
	// Dir is where the log is created. Empty means the current directory.
	Dir string
	// Mode is the command mode: listen, replay or simulate.
	Mode string
	// Replay is the freshness policy in effect.
	Replay ReplayPolicy
	// Relay reports whether the node relays accepted beacons.
	Relay bool
}

var (
	sessionLogFile   *os.File
	sessionLogPath   string
	sessionLogWriter io.Writer
	sessionStarted   time.Time
)

// InitSessionLog creates a session log named after the start time and
// stamps it with info. It returns the log path for display.
func InitSessionLog(info SessionInfo) (string, error) {
	now := time.Now()
	path := filepath.Join(info.Dir, fmt.Sprintf("wakebeacon_%s.log", now.Format("20060102_150405")))

	logFile, err := os.Create(path) //nolint:gosec // name is built here, dir comes from the operator
	if err != nil {
		return "", fmt.Errorf("failed to create session log: %w", err)
	}
	writeSessionHeader(logFile, info, now)

	logMu.Lock()
	sessionLogFile = logFile
	sessionLogPath = path
	sessionLogWriter = logFile
	sessionStarted = now
	logMu.Unlock()

	return path, nil
}

// CloseSessionLog writes the session footer and closes the log. It is a
// no-op when no log is open.
func CloseSessionLog() error {
	logMu.Lock()
	defer logMu.Unlock()
	if sessionLogFile == nil {
		return nil
	}

	elapsed := time.Since(sessionStarted).Round(time.Millisecond)
	_, _ = fmt.Fprintf(sessionLogWriter, "\n%s === Session ended after %s ===\n",
		time.Now().Format("15:04:05.000"), elapsed)

	err := sessionLogFile.Close()
	sessionLogFile = nil
	sessionLogPath = ""
	sessionLogWriter = nil
	if err != nil {
		return fmt.Errorf("failed to close session log: %w", err)
	}
	return nil
}

// GetSessionLogPath returns the open session log path, or "".
func GetSessionLogPath() string {
	logMu.Lock()
	defer logMu.Unlock()
	return sessionLogPath
}

func writeSessionHeader(w io.Writer, info SessionInfo, started time.Time) {
	var b strings.Builder
	b.WriteString("=== Wake Beacon Session Log ===\n")
	fmt.Fprintf(&b, "Started: %s\n", started.Format(time.RFC3339))
	if info.Mode != "" {
		fmt.Fprintf(&b, "Mode: %s\n", info.Mode)
	}
	if info.Node != "" {
		fmt.Fprintf(&b, "Node: %s\n", info.Node)
	}
	if info.Filter != nil {
		fmt.Fprintf(&b, "Filter: %s\n", *info.Filter)
		fmt.Fprintf(&b, "Replay policy: %s\n", info.Replay)
		fmt.Fprintf(&b, "Relay: %t\n", info.Relay)
	}
	fmt.Fprintf(&b, "Host: pid %d, %s/%s, %s\n", os.Getpid(), runtime.GOOS, runtime.GOARCH, runtime.Version())
	fmt.Fprintf(&b, "Command Line: %s\n", strings.Join(os.Args, " "))
	b.WriteString("===============================\n\n")
	_, _ = io.WriteString(w, b.String())
}
