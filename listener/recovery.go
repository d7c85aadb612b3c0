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
	"context"
	"time"

	"github.com/ZaparooProject/go-wakebeacon"
	"github.com/ZaparooProject/go-wakebeacon/internal/syncutil"
)

// RadioRecoverer brings a radio back after repeated receive errors
type RadioRecoverer interface {
	// AttemptRecovery tries to recover the radio connection.
	// Returns nil if recovery was successful, error otherwise.
	AttemptRecovery(ctx context.Context) error

	// Radio returns the current radio (may change after reconnection)
	Radio() wakebeacon.Radio
}

// ReopenFunc is a function that attempts to reopen the radio
type ReopenFunc func() (wakebeacon.Radio, error)

// DefaultRecoverer implements a tiered recovery strategy:
// 1. Re-tune the radio to its channel, which fails fast on a dead port
// 2. Full reconnection via user-provided reopen function
type DefaultRecoverer struct {
	radio       wakebeacon.Radio
	reopenFunc  ReopenFunc
	backoff     time.Duration
	maxAttempts int
	mu          syncutil.Mutex
	channel     uint8
}

// NewDefaultRecoverer creates a recoverer with tiered recovery strategy.
// If reopenFunc is nil, only re-tuning will be attempted.
func NewDefaultRecoverer(
	radio wakebeacon.Radio,
	channel uint8,
	reopenFunc ReopenFunc,
	backoff time.Duration,
	maxAttempts int,
) *DefaultRecoverer {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &DefaultRecoverer{
		radio:       radio,
		channel:     channel,
		reopenFunc:  reopenFunc,
		backoff:     backoff,
		maxAttempts: maxAttempts,
	}
}

// SetChannel updates the channel restored on recovery.
func (r *DefaultRecoverer) SetChannel(channel uint8) {
	r.mu.Lock()
	r.channel = channel
	r.mu.Unlock()
}

// AttemptRecovery implements tiered recovery
func (r *DefaultRecoverer) AttemptRecovery(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error

	for attempt := range r.maxAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.backoff):
			}
		}

		err := r.radio.SetChannel(r.channel)
		if err == nil {
			return nil
		}
		lastErr = err
		wakebeacon.Debugf("recovery attempt %d: re-tune failed: %v", attempt+1, err)

		if r.reopenFunc != nil {
			_ = r.radio.Close()
			newRadio, reopenErr := r.reopenFunc()
			if reopenErr == nil {
				if err := newRadio.SetChannel(r.channel); err != nil {
					_ = newRadio.Close()
					lastErr = err
					continue
				}
				r.radio = newRadio
				return nil
			}
			lastErr = reopenErr
		}
	}

	return lastErr
}

// Radio returns the current radio.
// This may return a different radio after a successful reconnection.
func (r *DefaultRecoverer) Radio() wakebeacon.Radio {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.radio
}
