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

package listener

import (
	"errors"
	"time"

	"github.com/ZaparooProject/go-wakebeacon"
)

// State is the lifecycle state of a Listener
type State int

const (
	// StateIdle means Run is not executing.
	StateIdle State = iota
	// StateListening means Run is receiving frames.
	StateListening
	// StateRecovering means Run is trying to bring the radio back.
	StateRecovering
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateRecovering:
		return "recovering"
	default:
		return "unknown"
	}
}

// ErrListenerClosed is returned by operations on a closed listener.
var ErrListenerClosed = errors.New("listener closed")

// ErrRecoveryExhausted is returned by Run when the radio keeps failing after
// Recovery.MaxRecoveryAttempts back-to-back recoveries.
var ErrRecoveryExhausted = errors.New("radio recovery attempts exhausted")

// ErrAlreadyRunning is returned when Run is called while another Run is active.
var ErrAlreadyRunning = errors.New("listener already running")

// Stats counts what the listener has seen since it was created.
type Stats struct {
	LastWake      time.Time
	Dropped       map[wakebeacon.DropReason]uint64
	LastPayload   wakebeacon.WakePayload
	Received      uint64
	Woken         uint64
	Relayed       uint64
	RelayFailures uint64
	Originated    uint64
	Disabled      uint64
	FCSErrors     uint64
	Recoveries    uint64
}

// DroppedTotal sums drops over all reasons.
func (s Stats) DroppedTotal() uint64 {
	var n uint64
	for _, c := range s.Dropped {
		n += c
	}
	return n
}

func (s Stats) clone() Stats {
	out := s
	out.Dropped = make(map[wakebeacon.DropReason]uint64, len(s.Dropped))
	for k, v := range s.Dropped {
		out.Dropped[k] = v
	}
	return out
}
