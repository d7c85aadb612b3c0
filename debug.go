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
	"sync"
	"time"
)

var (
	// logMu serialises writes from the receive loop and the host.
	logMu         sync.Mutex
	consoleWriter io.Writer = os.Stdout
)

// debugEnabled controls whether debug output reaches the console.
var debugEnabled = false

func init() {
	if os.Getenv("WAKEBEACON_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled = true
	}
}

// Debugf logs a formatted debug line. The line always goes to the session
// log (if one is open) and to the console only when debug mode is enabled.
func Debugf(format string, args ...any) {
	if sessionLogWriter == nil && !debugEnabled {
		return
	}
	writeDebug(fmt.Sprintf(format, args...))
}

// Debugln is Debugf with fmt.Sprint formatting.
func Debugln(args ...any) {
	if sessionLogWriter == nil && !debugEnabled {
		return
	}
	writeDebug(fmt.Sprint(args...))
}

func writeDebug(message string) {
	logMu.Lock()
	defer logMu.Unlock()

	if sessionLogWriter != nil {
		timestamp := time.Now().Format("15:04:05.000")
		_, _ = fmt.Fprintf(sessionLogWriter, "%s DEBUG: %s\n", timestamp, message)
	}
	if debugEnabled {
		_, _ = fmt.Fprintf(consoleWriter, "DEBUG: %s\n", message)
	}
}

// SetDebugEnabled switches console debug output on or off.
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}
