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
	"time"

	"github.com/ZaparooProject/go-wakebeacon"
	"github.com/ZaparooProject/go-wakebeacon/listener"
	"github.com/ZaparooProject/go-wakebeacon/transport/uart"
)

// Normalize fills defaults for omitted settings.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Filter.Relay == nil {
		relay := true
		cfg.Filter.Relay = &relay
	}
	if cfg.Filter.ReplayPolicy == "" {
		cfg.Filter.ReplayPolicy = wakebeacon.ReplayTrackCounter.String()
	}

	if cfg.Radio.Transport == "" {
		cfg.Radio.Transport = TransportAuto
	}
	if cfg.Radio.BaudRate == 0 {
		cfg.Radio.BaudRate = uart.DefaultBaudRate
	}

	defaults := listener.DefaultConfig()
	if cfg.Listener.ReceiveTimeoutMs == 0 {
		cfg.Listener.ReceiveTimeoutMs = int(defaults.ReceiveTimeout / time.Millisecond)
	}
	if cfg.Listener.TransmitAttempts == 0 {
		cfg.Listener.TransmitAttempts = defaults.Transmit.MaxAttempts
	}
	if cfg.Listener.TransmitBackoffMs == 0 {
		cfg.Listener.TransmitBackoffMs = int(defaults.Transmit.InitialBackoff / time.Millisecond)
	}

	if cfg.Beacon.TTL == nil {
		ttl := wakebeacon.DefaultTTL
		cfg.Beacon.TTL = &ttl
	}
}

// FilterSettings returns the configuration passed to Filter.Enable.
func (c *Config) FilterSettings() wakebeacon.FilterConfig {
	return wakebeacon.FilterConfig{
		PANID:        c.Filter.PANID,
		Channel:      c.Filter.Channel,
		BorderRouter: c.Filter.BorderRouter,
	}
}

// FilterOptions returns the options used to construct the filter.
func (c *Config) FilterOptions() ([]wakebeacon.Option, error) {
	policy, err := wakebeacon.ParseReplayPolicy(c.Filter.ReplayPolicy)
	if err != nil {
		return nil, err
	}
	relay := c.Filter.Relay == nil || *c.Filter.Relay
	return []wakebeacon.Option{
		wakebeacon.WithReplayPolicy(policy),
		wakebeacon.WithRelay(relay),
	}, nil
}

// ListenerSettings returns the listener configuration.
func (c *Config) ListenerSettings() *listener.Config {
	lc := listener.DefaultConfig()
	if c.Listener.ReceiveTimeoutMs > 0 {
		lc.ReceiveTimeout = time.Duration(c.Listener.ReceiveTimeoutMs) * time.Millisecond
	}
	if c.Listener.TransmitAttempts > 0 {
		lc.Transmit.MaxAttempts = c.Listener.TransmitAttempts
	}
	if c.Listener.TransmitBackoffMs > 0 {
		lc.Transmit.InitialBackoff = time.Duration(c.Listener.TransmitBackoffMs) * time.Millisecond
		if lc.Transmit.MaxBackoff < lc.Transmit.InitialBackoff {
			lc.Transmit.MaxBackoff = lc.Transmit.InitialBackoff
		}
	}
	return lc
}

// BeaconPayload returns the counter and TTL for originated beacons.
func (c *Config) BeaconPayload() (counter, ttl uint8) {
	ttl = wakebeacon.DefaultTTL
	if c.Beacon.TTL != nil {
		ttl = *c.Beacon.TTL
	}
	return c.Beacon.Counter, ttl
}
