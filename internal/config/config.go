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

// Package config loads the YAML configuration of the wakebeacon command.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration file.
type Config struct {
	Filter   FilterConfig   `yaml:"filter"`
	Radio    RadioConfig    `yaml:"radio"`
	Capture  CaptureConfig  `yaml:"capture"`
	Listener ListenerConfig `yaml:"listener"`
	Beacon   BeaconConfig   `yaml:"beacon"`
}

// ---- FILTER ----

type FilterConfig struct {
	// Relay is optional; nil means relaying is enabled.
	Relay        *bool  `yaml:"relay"`
	ReplayPolicy string `yaml:"replay_policy"`
	PANID        uint16 `yaml:"pan_id"`
	Channel      uint8  `yaml:"channel"`
	BorderRouter bool   `yaml:"border_router"`
}

// ---- RADIO ----

type RadioConfig struct {
	// Transport is "uart", "spi" or "auto" (detect a USB dongle).
	Transport string `yaml:"transport"`
	Device    string `yaml:"device"`
	BaudRate  int    `yaml:"baud_rate"`
	SPIHz     int64  `yaml:"spi_hz"`
}

// ---- LISTENER ----

type ListenerConfig struct {
	ReceiveTimeoutMs  int `yaml:"receive_timeout_ms"`
	TransmitAttempts  int `yaml:"transmit_attempts"`
	TransmitBackoffMs int `yaml:"transmit_backoff_ms"`
}

// ---- CAPTURE ----

type CaptureConfig struct {
	Path string `yaml:"path"`
}

// ---- BEACON ----

// BeaconConfig holds the payload of beacons sent with -send.
type BeaconConfig struct {
	// TTL is optional; nil means the default hop budget.
	TTL     *uint8 `yaml:"ttl"`
	Counter uint8  `yaml:"counter"`
}

// Load reads, validates and normalizes the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes, validates and normalizes YAML configuration. Unknown keys
// are rejected so typos do not silently fall back to defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	Normalize(cfg)
	return cfg, nil
}

// Marshal encodes cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return out, nil
}
