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

// Package uart drives a USB/serial 802.15.4 dongle as a wakebeacon.Radio.
package uart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/ZaparooProject/go-wakebeacon"
	"github.com/ZaparooProject/go-wakebeacon/internal/fcs"
	"github.com/ZaparooProject/go-wakebeacon/internal/syncutil"
	"go.bug.st/serial"
)

// DefaultBaudRate is the baud rate of the reference dongle firmware.
const DefaultBaudRate = 115200

const (
	replyTimeout = 100 * time.Millisecond
	rxQueueSize  = 32
)

// port is the subset of serial.Port the radio uses.
type port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

type rxResult struct {
	err   error
	frame []byte
}

// Radio implements wakebeacon.Radio over a serial dongle.
type Radio struct {
	port     port
	rx       chan rxResult
	replies  chan message
	done     chan struct{}
	readErr  error
	portName string
	writeMu  syncutil.Mutex
	errMu    syncutil.Mutex
	wg       sync.WaitGroup
	doneOnce sync.Once
	closed   sync.Once
}

// Option configures the serial port.
type Option func(*serial.Mode)

// WithBaudRate overrides DefaultBaudRate.
func WithBaudRate(baud int) Option {
	return func(m *serial.Mode) {
		if baud > 0 {
			m.BaudRate = baud
		}
	}
}

// readPollInterval returns the serial read timeout. Windows drivers need a
// longer one to return partial reads reliably.
func readPollInterval() time.Duration {
	if runtime.GOOS == "windows" {
		return 100 * time.Millisecond
	}
	return 50 * time.Millisecond
}

// New opens the dongle on portName.
func New(portName string, opts ...Option) (*Radio, error) {
	mode := &serial.Mode{
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	for _, opt := range opts {
		opt(mode)
	}

	p, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", portName, err)
	}
	if err := p.SetReadTimeout(readPollInterval()); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}
	if err := p.ResetInputBuffer(); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to flush UART input: %w", err)
	}
	return newRadio(p, portName), nil
}

func newRadio(p port, portName string) *Radio {
	r := &Radio{
		port:     p,
		portName: portName,
		rx:       make(chan rxResult, rxQueueSize),
		replies:  make(chan message, 4),
		done:     make(chan struct{}),
	}
	r.wg.Add(1)
	go r.readLoop()
	return r
}

// Transmit implements wakebeacon.Radio
func (r *Radio) Transmit(ctx context.Context, txFrame []byte) error {
	mpdu, err := wakebeacon.ParseTxFrame(txFrame)
	if err != nil {
		return wakebeacon.TxFrameError("Transmit", r.portName, err)
	}
	return r.command(ctx, "Transmit", cmdTransmit, encodeData(mpdu))
}

// Receive implements wakebeacon.Radio
func (r *Radio) Receive(ctx context.Context) ([]byte, error) {
	select {
	case res := <-r.rx:
		return res.frame, res.err
	case <-ctx.Done():
		return nil, wakebeacon.NewTimeoutError("Receive", r.portName)
	case <-r.done:
		return nil, r.terminalError("Receive")
	}
}

// SetChannel implements wakebeacon.Radio
func (r *Radio) SetChannel(channel uint8) error {
	if err := wakebeacon.ValidateChannel(channel); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
	defer cancel()
	return r.command(ctx, "SetChannel", cmdSetChannel, encodeControl(cmdSetChannel, channel))
}

// Close stops the reader and closes the port
func (r *Radio) Close() error {
	var err error
	r.closed.Do(func() {
		r.setReadErr(wakebeacon.ErrRadioClosed)
		r.stop()
		err = r.port.Close()
		r.wg.Wait()
	})
	if err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	return nil
}

// Type implements wakebeacon.Radio
func (*Radio) Type() wakebeacon.RadioType {
	return wakebeacon.RadioUART
}

// PortName returns the serial port the dongle is attached to.
func (r *Radio) PortName() string {
	return r.portName
}

// command writes one host frame and waits for the matching status reply.
func (r *Radio) command(ctx context.Context, op string, cmd byte, frame []byte) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	select {
	case <-r.done:
		return r.terminalError(op)
	default:
	}

	if _, err := r.port.Write(frame); err != nil {
		return wakebeacon.NewRadioError(op, r.portName,
			fmt.Errorf("%w: %w", wakebeacon.ErrRadioWrite, err), classify(err))
	}

	timer := time.NewTimer(replyTimeout)
	defer timer.Stop()
	for {
		select {
		case msg := <-r.replies:
			if msg.cmd != cmd|replyFlag {
				wakebeacon.Debugf("UART: discarding stale reply 0x%02X", msg.cmd)
				continue
			}
			return statusError(op, r.portName, msg.status)
		case <-timer.C:
			return wakebeacon.NewTimeoutError(op, r.portName)
		case <-ctx.Done():
			return wakebeacon.NewTimeoutError(op, r.portName)
		case <-r.done:
			return r.terminalError(op)
		}
	}
}

func statusError(op, portName string, status byte) error {
	switch status {
	case statusOK:
		return nil
	case statusBusy:
		return wakebeacon.NewRadioError(op, portName, wakebeacon.ErrRadioNotReady, wakebeacon.ErrorTypeTransient)
	case statusRejected:
		return wakebeacon.NewRadioError(op, portName, wakebeacon.ErrInvalidParameter, wakebeacon.ErrorTypePermanent)
	default:
		return wakebeacon.NewRadioError(op, portName,
			fmt.Errorf("unknown dongle status 0x%02X", status), wakebeacon.ErrorTypeTransient)
	}
}

func (r *Radio) readLoop() {
	defer r.wg.Done()

	var dec decoder
	buf := make([]byte, 256)
	for {
		n, err := r.port.Read(buf)
		if err != nil {
			select {
			case <-r.done:
				return
			default:
			}
			if isInterruptedSystemCall(err) {
				continue
			}
			r.fail(err)
			return
		}
		if n == 0 {
			select {
			case <-r.done:
				return
			default:
				continue
			}
		}
		for _, msg := range dec.feed(buf[:n]) {
			r.deliver(msg)
		}
	}
}

func (r *Radio) deliver(msg message) {
	if msg.kind == startControl {
		select {
		case r.replies <- msg:
		default:
			wakebeacon.Debugf("UART: reply queue full, dropping 0x%02X", msg.cmd)
		}
		return
	}

	var res rxResult
	mpdu, err := fcs.Strip(msg.psdu)
	if err != nil {
		res.err = wakebeacon.NewFCSMismatchError("Receive", r.portName)
	} else {
		res.frame = mpdu
	}
	select {
	case r.rx <- res:
	default:
		wakebeacon.Debugln("UART: receive queue full, dropping frame")
	}
}

// fail records a fatal read error and stops the radio.
func (r *Radio) fail(err error) {
	wakebeacon.Debugf("UART: read failed on %s: %v", r.portName, err)
	r.setReadErr(wakebeacon.NewRadioError("Receive", r.portName,
		fmt.Errorf("%w: %w", wakebeacon.ErrRadioRead, err), classify(err)))
	r.stop()
}

func (r *Radio) stop() {
	r.doneOnce.Do(func() { close(r.done) })
}

func (r *Radio) setReadErr(err error) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	if r.readErr == nil {
		r.readErr = err
	}
}

func (r *Radio) terminalError(op string) error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	if r.readErr == nil || errors.Is(r.readErr, wakebeacon.ErrRadioClosed) {
		return wakebeacon.NewRadioError(op, r.portName, wakebeacon.ErrRadioClosed, wakebeacon.ErrorTypePermanent)
	}
	return r.readErr
}

// classify marks unplugged-device errors permanent so the listener goes
// straight to recovery.
func classify(err error) wakebeacon.ErrorType {
	if wakebeacon.IsFatal(err) {
		return wakebeacon.ErrorTypePermanent
	}
	return wakebeacon.ErrorTypeTransient
}

// isInterruptedSystemCall checks if an error is caused by an interrupted system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}
