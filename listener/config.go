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
	"time"

	"github.com/ZaparooProject/go-wakebeacon"
)

// RecoveryConfig configures automatic recovery after the radio stops
// answering, for example when a USB dongle is unplugged and replugged.
type RecoveryConfig struct {
	// Enabled enables recovery attempts. When disabled the first hard
	// receive error ends Run.
	Enabled bool

	// MaxConsecutiveErrors is the number of back-to-back non-timeout receive
	// errors tolerated before recovery starts. Default: 3
	MaxConsecutiveErrors int

	// MaxRecoveryAttempts is the number of back-to-back recoveries allowed
	// before the radio delivers data again. One more failure after that ends
	// Run with ErrRecoveryExhausted. Default: 3
	MaxRecoveryAttempts int

	// RecoveryBackoff is the delay between back-to-back recoveries
	RecoveryBackoff time.Duration
}

// DefaultRecoveryConfig returns sensible defaults for radio recovery
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		Enabled:              true,
		MaxConsecutiveErrors: 3,
		MaxRecoveryAttempts:  3,
		RecoveryBackoff:      500 * time.Millisecond,
	}
}

// Config holds listener configuration options
type Config struct {
	// Transmit is the retry policy for relays and originated beacons.
	Transmit *wakebeacon.RetryConfig
	// ReceiveTimeout bounds each Receive call so the loop can notice
	// cancellation on an idle channel.
	ReceiveTimeout time.Duration
	// Recovery configures radio recovery after repeated receive errors
	Recovery RecoveryConfig
}

// DefaultConfig returns the default listener configuration
func DefaultConfig() *Config {
	return &Config{
		ReceiveTimeout: 250 * time.Millisecond,
		Transmit:       wakebeacon.DefaultRetryConfig(),
		Recovery:       DefaultRecoveryConfig(),
	}
}
