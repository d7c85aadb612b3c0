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

// Package wakebeacon recognises 802.15.4 wake beacons on a low-power mesh node.
//
// A wake beacon is a 12-byte broadcast data frame: a fixed 9-byte MAC
// header followed by a freshness counter, a status byte and a hop budget.
// A [Filter] checks received frames against its configuration and a replay
// guard, wakes the node through its [EventSink] and asks the host to relay
// the beacon one hop further while the hop budget lasts.
//
// Basic usage:
//
//	f, err := wakebeacon.New(wakebeacon.WithEventSink(&wakebeacon.Callbacks{
//		OnWoken: func(p wakebeacon.WakePayload) error {
//			// wake the application
//			return nil
//		},
//		OnTransmitRequested: func(frame []byte) error {
//			return radio.Transmit(ctx, frame)
//		},
//	}))
//	if err != nil {
//		return err
//	}
//	f.Enable(wakebeacon.FilterConfig{PANID: 0x1234, Channel: 11})
//	err = f.Decode(rxFrame)
//
// The [listener] sub-package wires a Filter to a [Radio] and runs the
// receive loop.
package wakebeacon
