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
	"bytes"
	"context"
	"io"
	"time"

	"github.com/ZaparooProject/go-wakebeacon"
	"github.com/ZaparooProject/go-wakebeacon/internal/syncutil"
)

// Dongle serial protocol as implemented by the reference firmware.
const (
	dongleData      = 0x7E
	dongleControl   = 0x7C
	dongleTransmit  = 0x00
	dongleChannel   = 0x01
	dongleReply     = 0x80
	dongleOK        = 0x00
	dongleBusy      = 0x01
	dongleRejected  = 0x02
	defaultReadWait = 50 * time.Millisecond
)

// VirtualDongle simulates a serial 802.15.4 dongle attached to a Node. It
// implements the port methods the UART radio needs: io.ReadWriteCloser,
// SetReadTimeout and ResetInputBuffer.
//
// Writes are parsed as host frames and answered with status frames.
// Frames the node hears are streamed to Read with their FCS.
type VirtualDongle struct {
	node     *Node
	closed   chan struct{}
	out      bytes.Buffer
	in       bytes.Buffer
	writeLog [][]byte
	readWait time.Duration
	busy     int
	mu       syncutil.Mutex
	isClosed bool
}

// NewVirtualDongle creates a dongle in front of node.
func NewVirtualDongle(node *Node) *VirtualDongle {
	return &VirtualDongle{
		node:     node,
		closed:   make(chan struct{}),
		readWait: defaultReadWait,
	}
}

// Node returns the radio node behind the dongle.
func (d *VirtualDongle) Node() *Node {
	return d.node
}

// Write parses host frames. Partial frames are buffered until complete.
func (d *VirtualDongle) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.isClosed {
		return 0, io.ErrClosedPipe
	}
	d.writeLog = append(d.writeLog, append([]byte(nil), p...))
	d.in.Write(p)
	d.processInputLocked()
	return len(p), nil
}

// Read returns pending replies, then received frames. It waits up to the
// read timeout and returns 0, nil when nothing arrives, like a serial port.
func (d *VirtualDongle) Read(p []byte) (int, error) {
	d.mu.Lock()
	if d.isClosed {
		d.mu.Unlock()
		return 0, io.EOF
	}
	if d.out.Len() > 0 {
		n, _ := d.out.Read(p)
		d.mu.Unlock()
		return n, nil
	}
	wait := d.readWait
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	go func() {
		select {
		case <-d.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	psdu, err := d.node.ReceivePSDU(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.isClosed {
		return 0, io.EOF
	}
	if err == nil {
		d.out.WriteByte(dongleData)
		d.out.WriteByte(byte(len(psdu)))
		d.out.Write(psdu)
	}
	if d.out.Len() == 0 {
		return 0, nil
	}
	n, _ := d.out.Read(p)
	return n, nil
}

// Close closes the dongle. Pending reads return io.EOF.
func (d *VirtualDongle) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.isClosed {
		d.isClosed = true
		close(d.closed)
	}
	return nil
}

// SetReadTimeout sets how long Read waits for a frame.
func (d *VirtualDongle) SetReadTimeout(t time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readWait = t
	return nil
}

// ResetInputBuffer discards replies not yet read.
func (d *VirtualDongle) ResetInputBuffer() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.out.Reset()
	return nil
}

// SetBusy makes the next count transmits fail clear channel assessment.
func (d *VirtualDongle) SetBusy(count int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.busy = count
}

// InjectRaw queues bytes for Read as if the dongle had sent them.
func (d *VirtualDongle) InjectRaw(b []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.out.Write(b)
}

// Writes returns every buffer written by the host.
func (d *VirtualDongle) Writes() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.writeLog))
	for i, w := range d.writeLog {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

func (d *VirtualDongle) processInputLocked() {
	for d.in.Len() > 0 {
		buf := d.in.Bytes()
		switch buf[0] {
		case dongleControl:
			if len(buf) < 3 {
				return
			}
			cmd, arg := buf[1], buf[2]
			d.in.Next(3)
			d.reply(cmd, d.control(cmd, arg))
		case dongleData:
			if len(buf) < 2 {
				return
			}
			n := int(buf[1]) - wakebeacon.FCSLength
			if n < 0 {
				d.in.Next(2)
				d.reply(dongleTransmit, dongleRejected)
				continue
			}
			if len(buf) < 2+n {
				return
			}
			mpdu := append([]byte(nil), buf[2:2+n]...)
			d.in.Next(2 + n)
			d.reply(dongleTransmit, d.transmit(mpdu))
		default:
			d.in.Next(1)
		}
	}
}

func (d *VirtualDongle) control(cmd, arg byte) byte {
	if cmd != dongleChannel {
		return dongleRejected
	}
	if err := d.node.SetChannel(arg); err != nil {
		return dongleRejected
	}
	return dongleOK
}

func (d *VirtualDongle) transmit(mpdu []byte) byte {
	if d.busy > 0 {
		d.busy--
		return dongleBusy
	}
	tx, err := wakebeacon.WrapTxFrame(mpdu)
	if err != nil {
		return dongleRejected
	}
	if err := d.node.Transmit(context.Background(), tx); err != nil {
		return dongleRejected
	}
	return dongleOK
}

func (d *VirtualDongle) reply(cmd, status byte) {
	d.out.Write([]byte{dongleControl, cmd | dongleReply, status})
}
