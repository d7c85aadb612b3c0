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

// Package spi drives an SPI-attached 802.15.4 radio co-processor as a
// wakebeacon.Radio.
//
// Every transaction starts with an opcode byte:
//
//	0x01 WRITE_FRAME  host sends LEN, MPDU; the co-processor appends the FCS
//	0x02 READ_STATUS  co-processor returns STATUS, RXLEN
//	0x03 READ_FRAME   co-processor returns RXLEN bytes of PSDU, FCS included
//	0x04 SET_CHANNEL  host sends the channel number
//
// STATUS bit 0 reports a finished transmit, bit 1 a transmit that failed
// clear channel assessment and bit 2 a received frame waiting. Transmit bits
// clear when read; the receive bit clears when the frame is read.
package spi

import (
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-wakebeacon"
	"github.com/ZaparooProject/go-wakebeacon/internal/fcs"
	"github.com/ZaparooProject/go-wakebeacon/internal/syncutil"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	opWriteFrame = 0x01
	opReadStatus = 0x02
	opReadFrame  = 0x03
	opSetChannel = 0x04

	statusTxDone   = 1 << 0
	statusTxFailed = 1 << 1
	statusRxReady  = 1 << 2

	// DefaultFrequency is the SPI clock used when none is configured.
	DefaultFrequency = 4 * physic.MegaHertz
	mode             = spi.Mode0

	defaultPollInterval = 2 * time.Millisecond
	txTimeout           = 100 * time.Millisecond
)

// conn is the part of spi.Conn the radio uses.
type conn interface {
	Tx(w, r []byte) error
}

// Radio implements wakebeacon.Radio over SPI.
type Radio struct {
	port         spi.PortCloser
	conn         conn
	portName     string
	pollInterval time.Duration
	mu           syncutil.Mutex
	closed       bool
}

// New opens portName (for example "/dev/spidev0.0" or "SPI0.0") at freq.
// A zero freq selects DefaultFrequency.
func New(portName string, freq physic.Frequency) (*Radio, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %s: %w", portName, err)
	}

	if freq == 0 {
		freq = DefaultFrequency
	}
	c, err := port.Connect(freq, mode, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to connect SPI: %w", err)
	}

	r := newRadio(c, portName)
	r.port = port
	return r, nil
}

func newRadio(c conn, portName string) *Radio {
	return &Radio{
		conn:         c,
		portName:     portName,
		pollInterval: defaultPollInterval,
	}
}

// Transmit implements wakebeacon.Radio. The bus is held until the
// co-processor reports the outcome so receive polling cannot consume it.
func (r *Radio) Transmit(ctx context.Context, txFrame []byte) error {
	mpdu, err := wakebeacon.ParseTxFrame(txFrame)
	if err != nil {
		return wakebeacon.TxFrameError("Transmit", r.portName, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.closedError("Transmit")
	}

	w := make([]byte, 0, 2+len(mpdu))
	w = append(w, opWriteFrame, byte(len(mpdu)+wakebeacon.FCSLength))
	w = append(w, mpdu...)
	if err := r.conn.Tx(w, nil); err != nil {
		return wakebeacon.NewRadioError("Transmit", r.portName,
			fmt.Errorf("%w: %w", wakebeacon.ErrRadioWrite, err), wakebeacon.ErrorTypeTransient)
	}

	deadline := time.Now().Add(txTimeout)
	for {
		status, _, err := r.readStatusLocked()
		if err != nil {
			return err
		}
		switch {
		case status&statusTxFailed != 0:
			return wakebeacon.NewRadioError("Transmit", r.portName, wakebeacon.ErrRadioNotReady,
				wakebeacon.ErrorTypeTransient)
		case status&statusTxDone != 0:
			return nil
		}
		if time.Now().After(deadline) {
			return wakebeacon.NewTimeoutError("Transmit", r.portName)
		}
		if err := sleepCtx(ctx, r.pollInterval); err != nil {
			return wakebeacon.NewTimeoutError("Transmit", r.portName)
		}
	}
}

// Receive implements wakebeacon.Radio by polling the status register.
func (r *Radio) Receive(ctx context.Context) ([]byte, error) {
	for {
		frame, ready, err := r.tryReceive()
		if err != nil || ready {
			return frame, err
		}
		if err := sleepCtx(ctx, r.pollInterval); err != nil {
			return nil, wakebeacon.NewTimeoutError("Receive", r.portName)
		}
	}
}

func (r *Radio) tryReceive() (frame []byte, ready bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, true, r.closedError("Receive")
	}

	status, rxLen, err := r.readStatusLocked()
	if err != nil {
		return nil, true, err
	}
	if status&statusRxReady == 0 || rxLen == 0 {
		return nil, false, nil
	}

	w := make([]byte, 1+int(rxLen))
	w[0] = opReadFrame
	rd := make([]byte, len(w))
	if err := r.conn.Tx(w, rd); err != nil {
		return nil, true, wakebeacon.NewRadioError("Receive", r.portName,
			fmt.Errorf("%w: %w", wakebeacon.ErrRadioRead, err), wakebeacon.ErrorTypeTransient)
	}
	mpdu, err := fcs.Strip(rd[1:])
	if err != nil {
		return nil, true, wakebeacon.NewFCSMismatchError("Receive", r.portName)
	}
	return mpdu, true, nil
}

// SetChannel implements wakebeacon.Radio
func (r *Radio) SetChannel(channel uint8) error {
	if err := wakebeacon.ValidateChannel(channel); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.closedError("SetChannel")
	}
	if err := r.conn.Tx([]byte{opSetChannel, channel}, nil); err != nil {
		return wakebeacon.NewRadioError("SetChannel", r.portName,
			fmt.Errorf("%w: %w", wakebeacon.ErrRadioWrite, err), wakebeacon.ErrorTypeTransient)
	}
	return nil
}

// Close implements wakebeacon.Radio
func (r *Radio) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.port != nil {
		if err := r.port.Close(); err != nil {
			return fmt.Errorf("SPI close failed: %w", err)
		}
	}
	return nil
}

// Type implements wakebeacon.Radio
func (*Radio) Type() wakebeacon.RadioType {
	return wakebeacon.RadioSPI
}

func (r *Radio) readStatusLocked() (status, rxLen byte, err error) {
	rd := make([]byte, 3)
	if err := r.conn.Tx([]byte{opReadStatus, 0x00, 0x00}, rd); err != nil {
		return 0, 0, wakebeacon.NewRadioError("ReadStatus", r.portName,
			fmt.Errorf("%w: %w", wakebeacon.ErrRadioRead, err), wakebeacon.ErrorTypeTransient)
	}
	return rd[1], rd[2], nil
}

func (r *Radio) closedError(op string) error {
	return wakebeacon.NewRadioError(op, r.portName, wakebeacon.ErrRadioClosed, wakebeacon.ErrorTypePermanent)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
