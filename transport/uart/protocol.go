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

package uart

import "github.com/ZaparooProject/go-wakebeacon"

// Dongle serial protocol.
//
// Data frames travel in both directions as 0x7E, LEN, PSDU. LEN counts the
// PSDU including its FCS. The host sends LEN-2 MPDU bytes and the dongle
// appends the FCS; the dongle delivers received PSDUs with the FCS intact.
//
// Control frames are always three bytes: 0x7C, CMD, ARG. The dongle answers
// every host command, data frames included, with 0x7C, CMD|0x80, STATUS.
const (
	startData    = 0x7E
	startControl = 0x7C

	cmdTransmit   = 0x00
	cmdSetChannel = 0x01
	replyFlag     = 0x80

	statusOK        = 0x00
	statusBusy      = 0x01
	statusRejected  = 0x02
	controlFrameLen = 3
)

// message is one frame read from the dongle.
type message struct {
	psdu   []byte
	kind   byte
	cmd    byte
	status byte
}

// decoder reassembles dongle frames from an arbitrarily fragmented byte
// stream. Bytes that cannot start a frame are skipped.
type decoder struct {
	buf []byte
}

func (d *decoder) feed(p []byte) []message {
	d.buf = append(d.buf, p...)
	var msgs []message
	for {
		d.skipToStart()
		if len(d.buf) < 2 {
			return msgs
		}
		switch d.buf[0] {
		case startControl:
			if len(d.buf) < controlFrameLen {
				return msgs
			}
			msgs = append(msgs, message{kind: startControl, cmd: d.buf[1], status: d.buf[2]})
			d.buf = d.buf[controlFrameLen:]
		case startData:
			n := int(d.buf[1])
			if n < wakebeacon.FCSLength || n > wakebeacon.MaxFrameLength {
				// Not a real length byte; resync on the next start marker.
				d.buf = d.buf[1:]
				continue
			}
			if len(d.buf) < 2+n {
				return msgs
			}
			psdu := make([]byte, n)
			copy(psdu, d.buf[2:2+n])
			msgs = append(msgs, message{kind: startData, psdu: psdu})
			d.buf = d.buf[2+n:]
		}
	}
}

func (d *decoder) skipToStart() {
	i := 0
	for i < len(d.buf) && d.buf[i] != startData && d.buf[i] != startControl {
		i++
	}
	if i > 0 {
		wakebeacon.Debugf("UART: skipped %d stray bytes", i)
	}
	d.buf = d.buf[i:]
}

// encodeData builds a host data frame for mpdu.
func encodeData(mpdu []byte) []byte {
	out := make([]byte, 0, 2+len(mpdu))
	out = append(out, startData, byte(len(mpdu)+wakebeacon.FCSLength))
	return append(out, mpdu...)
}

// encodeControl builds a host control frame.
func encodeControl(cmd, arg byte) []byte {
	return []byte{startControl, cmd, arg}
}
