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

package radiotest

import (
	"io"
	"math/rand/v2"
	"time"
)

// Port is the serial port surface shared by VirtualDongle and JitteryPort.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// JitterConfig configures the behavior of JitteryPort.
type JitterConfig struct {
	MaxLatencyMs     int
	FragmentMinBytes int
	Seed             uint64
}

// DefaultJitterConfig returns a configuration that splits reads without
// slowing tests down much.
func DefaultJitterConfig() JitterConfig {
	return JitterConfig{
		MaxLatencyMs:     2,
		FragmentMinBytes: 1,
	}
}

// JitteryPort wraps a Port to simulate USB-UART bridges (FTDI, CH340) that
// deliver data late and in fragments. Bytes are never lost.
type JitteryPort struct {
	Port
	rng     *rand.Rand
	pending []byte
	config  JitterConfig
}

// NewJitteryPort wraps backend with jitter simulation.
func NewJitteryPort(backend Port, config JitterConfig) *JitteryPort {
	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	if config.FragmentMinBytes < 1 {
		config.FragmentMinBytes = 1
	}
	return &JitteryPort{
		Port:   backend,
		config: config,
		rng:    rand.New(rand.NewPCG(seed, seed^0xDEADBEEF)), //nolint:gosec // test code, not crypto
	}
}

// Read returns a random-sized prefix of what the backend has.
func (j *JitteryPort) Read(buf []byte) (int, error) {
	if j.config.MaxLatencyMs > 0 {
		if delay := time.Duration(j.rng.IntN(j.config.MaxLatencyMs+1)) * time.Millisecond; delay > 0 {
			time.Sleep(delay)
		}
	}

	if len(j.pending) == 0 {
		tmp := make([]byte, len(buf))
		n, err := j.Port.Read(tmp)
		if err != nil || n == 0 {
			return n, err //nolint:wrapcheck // pass-through wrapper
		}
		j.pending = tmp[:n]
	}

	n := len(j.pending)
	if n > j.config.FragmentMinBytes {
		n = j.config.FragmentMinBytes + j.rng.IntN(n-j.config.FragmentMinBytes+1)
	}
	n = copy(buf, j.pending[:n])
	j.pending = j.pending[n:]
	return n, nil
}
