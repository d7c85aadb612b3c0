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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-wakebeacon"
)

const sampleConfig = `
filter:
  pan_id: 0x1234
  channel: 11
  border_router: true
  replay_policy: first_frame_only
  relay: false
radio:
  transport: uart
  device: /dev/ttyACM0
listener:
  receive_timeout_ms: 100
  transmit_attempts: 5
  transmit_backoff_ms: 80
capture:
  path: /tmp/wake.pcap
beacon:
  counter: 7
  ttl: 2
`

func TestParse_FullFile(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, uint16(0x1234), cfg.Filter.PANID)
	assert.Equal(t, uint8(11), cfg.Filter.Channel)
	assert.True(t, cfg.Filter.BorderRouter)
	require.NotNil(t, cfg.Filter.Relay)
	assert.False(t, *cfg.Filter.Relay)
	assert.Equal(t, TransportUART, cfg.Radio.Transport)
	assert.Equal(t, "/dev/ttyACM0", cfg.Radio.Device)
	assert.Equal(t, 115200, cfg.Radio.BaudRate)
	assert.Equal(t, "/tmp/wake.pcap", cfg.Capture.Path)

	counter, ttl := cfg.BeaconPayload()
	assert.Equal(t, uint8(7), counter)
	assert.Equal(t, uint8(2), ttl)

	assert.Equal(t, wakebeacon.FilterConfig{PANID: 0x1234, Channel: 11, BorderRouter: true}, cfg.FilterSettings())

	lc := cfg.ListenerSettings()
	assert.Equal(t, 100*time.Millisecond, lc.ReceiveTimeout)
	assert.Equal(t, 5, lc.Transmit.MaxAttempts)
	assert.Equal(t, 80*time.Millisecond, lc.Transmit.InitialBackoff)
	assert.GreaterOrEqual(t, lc.Transmit.MaxBackoff, lc.Transmit.InitialBackoff)
}

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte("filter:\n  pan_id: 0x0042\n"))
	require.NoError(t, err)

	assert.Equal(t, TransportAuto, cfg.Radio.Transport)
	assert.Equal(t, 115200, cfg.Radio.BaudRate)
	assert.Equal(t, "track", cfg.Filter.ReplayPolicy)
	require.NotNil(t, cfg.Filter.Relay)
	assert.True(t, *cfg.Filter.Relay)
	assert.Equal(t, 250, cfg.Listener.ReceiveTimeoutMs)
	assert.Equal(t, wakebeacon.DefaultTransmitAttempts, cfg.Listener.TransmitAttempts)
	assert.Equal(t, 5, cfg.Listener.TransmitBackoffMs)

	_, ttl := cfg.BeaconPayload()
	assert.Equal(t, wakebeacon.DefaultTTL, ttl)
}

func TestParse_EmptyDocument(t *testing.T) {
	t.Parallel()

	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), cfg.Filter.PANID)
	assert.Equal(t, TransportAuto, cfg.Radio.Transport)
}

func TestParse_ExplicitZeroTTL(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte("beacon:\n  ttl: 0\n"))
	require.NoError(t, err)

	_, ttl := cfg.BeaconPayload()
	assert.Equal(t, uint8(0), ttl, "an explicit zero TTL must not be replaced by the default")
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("filter:\n  panid: 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panid")
}

func TestFilterOptions(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	opts, err := cfg.FilterOptions()
	require.NoError(t, err)

	f, err := wakebeacon.New(opts...)
	require.NoError(t, err)
	f.Enable(cfg.FilterSettings())

	frame := f.CreateFrame(wakebeacon.BroadcastAddress, wakebeacon.BroadcastAddress, 0x1234,
		wakebeacon.WakePayload{Counter: 1, TTL: 3})

	var relayed int
	f2, err := wakebeacon.New(append(opts, wakebeacon.WithEventSink(wakebeacon.EventSinkFunc(
		func(ev wakebeacon.Event) error {
			if ev.Kind == wakebeacon.EventTransmitRequested {
				relayed++
			}
			return nil
		})))...)
	require.NoError(t, err)
	f2.Enable(cfg.FilterSettings())

	require.NoError(t, f2.Decode(frame))
	require.NoError(t, f2.Decode(frame), "first_frame_only accepts a replayed counter")
	assert.Zero(t, relayed, "relay disabled in config")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mutate  func(c *Config)
		name    string
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "channel too high", mutate: func(c *Config) { c.Filter.Channel = 27 }, wantErr: "filter.channel"},
		{name: "unset pan", mutate: func(c *Config) { c.Filter.PANID = 0xFFFF }, wantErr: "filter.pan_id"},
		{name: "bad policy", mutate: func(c *Config) { c.Filter.ReplayPolicy = "never" }, wantErr: "filter.replay_policy"},
		{name: "bad transport", mutate: func(c *Config) { c.Radio.Transport = "i2c" }, wantErr: "radio.transport"},
		{name: "spi without device", mutate: func(c *Config) { c.Radio.Transport = TransportSPI }, wantErr: "radio.device"},
		{name: "negative baud", mutate: func(c *Config) { c.Radio.BaudRate = -1 }, wantErr: "radio.baud_rate"},
		{name: "negative timeout", mutate: func(c *Config) { c.Listener.ReceiveTimeoutMs = -1 }, wantErr: "receive_timeout_ms"},
		{name: "negative attempts", mutate: func(c *Config) { c.Listener.TransmitAttempts = -1 }, wantErr: "transmit_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &Config{Filter: FilterConfig{PANID: 0x1234, Channel: 11}}
			tt.mutate(cfg)
			before := *cfg

			err := Validate(cfg)
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
			assert.Equal(t, before, *cfg, "Validate must not mutate")
		})
	}
}

func TestValidate_Nil(t *testing.T) {
	t.Parallel()
	require.Error(t, Validate(nil))
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "wakebeacon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), cfg.Filter.PANID)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestMarshal_RoundTrip(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	out, err := Marshal(cfg)
	require.NoError(t, err)

	again, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}
