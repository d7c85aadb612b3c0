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

package config

import (
	"fmt"

	"github.com/ZaparooProject/go-wakebeacon"
)

// Transport names accepted in radio.transport.
const (
	TransportAuto = "auto"
	TransportUART = "uart"
	TransportSPI  = "spi"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ---- filter ----
	if err := wakebeacon.ValidateChannel(cfg.Filter.Channel); err != nil {
		return fmt.Errorf("filter.channel: %w", err)
	}
	if cfg.Filter.PANID == wakebeacon.UnsetPANID {
		return fmt.Errorf("filter.pan_id: 0x%04X is reserved for a disabled filter", cfg.Filter.PANID)
	}
	if _, err := wakebeacon.ParseReplayPolicy(cfg.Filter.ReplayPolicy); err != nil {
		return fmt.Errorf("filter.replay_policy: %w", err)
	}

	// ---- radio ----
	switch cfg.Radio.Transport {
	case "", TransportAuto, TransportUART:
	case TransportSPI:
		if cfg.Radio.Device == "" {
			return fmt.Errorf("radio.device is required for the spi transport")
		}
	default:
		return fmt.Errorf("radio.transport %q: must be one of %s, %s, %s",
			cfg.Radio.Transport, TransportAuto, TransportUART, TransportSPI)
	}
	if cfg.Radio.BaudRate < 0 {
		return fmt.Errorf("radio.baud_rate must not be negative")
	}
	if cfg.Radio.SPIHz < 0 {
		return fmt.Errorf("radio.spi_hz must not be negative")
	}

	// ---- listener ----
	if cfg.Listener.ReceiveTimeoutMs < 0 {
		return fmt.Errorf("listener.receive_timeout_ms must not be negative")
	}
	if cfg.Listener.TransmitAttempts < 0 {
		return fmt.Errorf("listener.transmit_attempts must not be negative")
	}
	if cfg.Listener.TransmitBackoffMs < 0 {
		return fmt.Errorf("listener.transmit_backoff_ms must not be negative")
	}

	return nil
}
