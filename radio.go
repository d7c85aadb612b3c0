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

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Radio is the MAC/PHY collaborator beneath the filter. Implementations own
// the frame check sequence: Transmit appends it, Receive verifies and strips it.
type Radio interface {
	// Transmit sends a length-prefixed frame as produced by EncodeTxFrame.
	Transmit(ctx context.Context, txFrame []byte) error

	// Receive blocks until a frame arrives or ctx is done. It returns the
	// MPDU without FCS. An idle channel yields an error matching ErrRadioTimeout.
	Receive(ctx context.Context) ([]byte, error)

	// SetChannel tunes the radio to an 802.15.4 channel.
	SetChannel(channel uint8) error

	// Close closes the radio connection
	Close() error

	// Type returns the radio transport type
	Type() RadioType
}

// RadioType represents the type of radio transport
type RadioType string

const (
	// RadioUART represents a USB/serial 802.15.4 dongle.
	RadioUART RadioType = "uart"
	// RadioSPI represents an SPI-attached radio co-processor.
	RadioSPI RadioType = "spi"
	// RadioSimulated represents an in-memory radio medium.
	RadioSimulated RadioType = "sim"
	// RadioMock represents a mock radio for testing
	RadioMock RadioType = "mock"
)

// MaxChannel is the highest 802.15.4 channel number (2.4 GHz band ends at 26).
const MaxChannel = 26

// ValidateChannel checks an 802.15.4 channel number.
func ValidateChannel(channel uint8) error {
	if channel > MaxChannel {
		return fmt.Errorf("%w: %d (valid range: 0-%d)", ErrInvalidChannel, channel, MaxChannel)
	}
	return nil
}

// TxFrameError reports a transmit buffer rejected by ParseTxFrame as a
// permanent radio error for port.
func TxFrameError(op, port string, err error) *RadioError {
	if errors.Is(err, ErrFrameTooLarge) {
		return NewFrameTooLargeError(op, port)
	}
	return NewRadioError(op, port, err, ErrorTypePermanent)
}

// MockRadio provides a mock implementation of Radio for testing
type MockRadio struct {
	txErr     error
	rxErr     error
	rxQueue   chan []byte
	txLog     [][]byte
	delay     time.Duration
	mu        sync.RWMutex
	channel   uint8
	connected bool
}

// NewMockRadio creates a new mock radio
func NewMockRadio() *MockRadio {
	return &MockRadio{
		rxQueue:   make(chan []byte, 64),
		connected: true,
	}
}

// Transmit implements Radio
func (m *MockRadio) Transmit(ctx context.Context, txFrame []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m.mu.RLock()
	connected := m.connected
	delay := m.delay
	m.mu.RUnlock()

	if !connected {
		return ErrRadioClosed
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if _, err := ParseTxFrame(txFrame); err != nil {
		return TxFrameError("Transmit", "mock", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.txErr != nil {
		return m.txErr
	}
	frame := make([]byte, len(txFrame))
	copy(frame, txFrame)
	m.txLog = append(m.txLog, frame)
	return nil
}

// Receive implements Radio
func (m *MockRadio) Receive(ctx context.Context) ([]byte, error) {
	m.mu.RLock()
	connected := m.connected
	rxErr := m.rxErr
	m.mu.RUnlock()

	if !connected {
		return nil, ErrRadioClosed
	}
	if rxErr != nil {
		return nil, rxErr
	}

	select {
	case frame := <-m.rxQueue:
		return frame, nil
	case <-ctx.Done():
		return nil, NewTimeoutError("Receive", "mock")
	}
}

// SetChannel implements Radio
func (m *MockRadio) SetChannel(channel uint8) error {
	if err := ValidateChannel(channel); err != nil {
		return err
	}
	m.mu.Lock()
	m.channel = channel
	m.mu.Unlock()
	return nil
}

// Close implements Radio
func (m *MockRadio) Close() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

// Type implements Radio
func (*MockRadio) Type() RadioType {
	return RadioMock
}

// Test helper methods

// InjectRx queues a frame (without FCS) for the next Receive call.
func (m *MockRadio) InjectRx(frame []byte) {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	m.rxQueue <- cp
}

// TxLog returns copies of all transmitted frames in order.
func (m *MockRadio) TxLog() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]byte, len(m.txLog))
	for i, f := range m.txLog {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// Channel returns the last channel set.
func (m *MockRadio) Channel() uint8 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.channel
}

// SetTxError makes every Transmit return err. Pass nil to clear.
func (m *MockRadio) SetTxError(err error) {
	m.mu.Lock()
	m.txErr = err
	m.mu.Unlock()
}

// SetRxError makes every Receive return err. Pass nil to clear.
func (m *MockRadio) SetRxError(err error) {
	m.mu.Lock()
	m.rxErr = err
	m.mu.Unlock()
}

// SetDelay configures a delay to simulate transmit air time
func (m *MockRadio) SetDelay(delay time.Duration) {
	m.mu.Lock()
	m.delay = delay
	m.mu.Unlock()
}

// Reset clears the transmit log and error injection and reconnects.
func (m *MockRadio) Reset() {
	m.mu.Lock()
	m.txLog = nil
	m.txErr = nil
	m.rxErr = nil
	m.connected = true
	m.mu.Unlock()
}
