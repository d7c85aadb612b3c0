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

import "fmt"

// ReplayPolicy selects how the freshness counter of accepted frames is tracked.
type ReplayPolicy int

const (
	// ReplayTrackCounter stores the counter of every accepted frame, so a
	// frame is only accepted when its counter is strictly greater than the
	// last accepted one. Accepting 0xFF stores the sentinel, which lets the
	// counter wrap around. It also means a frame carrying 0xFF is never
	// stale: replays of it, including a neighbour's echo, wake the node and
	// are relayed again while their TTL lasts. Originators should wrap from
	// 0xFE straight to 0x00 to avoid it.
	ReplayTrackCounter ReplayPolicy = iota

	// ReplayFirstFrameOnly never stores accepted counters. The last accepted
	// value stays at the sentinel, so every counter passes. This matches
	// nodes already deployed with the original firmware and offers no replay
	// protection.
	ReplayFirstFrameOnly
)

// String returns the policy name used in configuration files.
func (p ReplayPolicy) String() string {
	switch p {
	case ReplayTrackCounter:
		return "track"
	case ReplayFirstFrameOnly:
		return "first_frame_only"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseReplayPolicy parses a policy name as produced by String.
func ParseReplayPolicy(s string) (ReplayPolicy, error) {
	switch s {
	case "", "track":
		return ReplayTrackCounter, nil
	case "first_frame_only":
		return ReplayFirstFrameOnly, nil
	default:
		return 0, fmt.Errorf("%w: unknown replay policy %q", ErrInvalidParameter, s)
	}
}

// ReplayGuard rejects wake frames whose freshness counter is not newer than
// the last accepted one. The zero value is not ready; use NewReplayGuard.
type ReplayGuard struct {
	policy       ReplayPolicy
	lastAccepted uint8
}

// NewReplayGuard returns a guard in the "nothing accepted yet" state.
func NewReplayGuard(policy ReplayPolicy) *ReplayGuard {
	return &ReplayGuard{policy: policy, lastAccepted: sequenceSentinel}
}

// Accept reports whether counter passes the freshness check. It does not
// record anything; call Commit once the frame is accepted.
func (g *ReplayGuard) Accept(counter uint8) bool {
	return counter > g.lastAccepted || g.lastAccepted == sequenceSentinel
}

// Commit records counter as accepted, subject to the policy.
func (g *ReplayGuard) Commit(counter uint8) {
	if g.policy == ReplayTrackCounter {
		if counter == sequenceSentinel {
			Debugln("replay guard: counter 0xFF accepted, replays of it will not be rejected")
		}
		g.lastAccepted = counter
	}
}

// LastAccepted returns the last accepted counter, or 0xFF if none.
func (g *ReplayGuard) LastAccepted() uint8 {
	return g.lastAccepted
}

// Policy returns the guard's policy.
func (g *ReplayGuard) Policy() ReplayPolicy {
	return g.policy
}

// Reset returns the guard to the "nothing accepted yet" state.
func (g *ReplayGuard) Reset() {
	g.lastAccepted = sequenceSentinel
}
