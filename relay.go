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

import "fmt"

// TxLengthPrefix is the value of the length byte in front of every transmit
// buffer: header, payload and the FCS the radio appends.
const TxLengthPrefix = HeaderLength + PayloadLength + FCSLength

// TxFrameLength is the size of a transmit buffer: length byte plus frame.
const TxFrameLength = 1 + FrameLength

// EncodeTxFrame encodes hdr and p behind the one-byte length prefix the
// radio expects.
func EncodeTxFrame(hdr LinkHeader, p WakePayload) []byte {
	buf := make([]byte, 1, TxFrameLength)
	buf[0] = TxLengthPrefix
	return AppendFrame(buf, hdr, p)
}

// WrapTxFrame prefixes an encoded frame, such as one returned by
// [Filter.CreateFrame], with its transmit length byte.
func WrapTxFrame(frame []byte) ([]byte, error) {
	if len(frame)+FCSLength > MaxFrameLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(frame))
	}
	buf := make([]byte, 0, 1+len(frame))
	buf = append(buf, byte(len(frame)+FCSLength))
	return append(buf, frame...), nil
}

// ParseTxFrame validates the length prefix of a transmit buffer and returns
// the frame behind it, without FCS space.
func ParseTxFrame(buf []byte) ([]byte, error) {
	if len(buf) < 1 {
		return nil, fmt.Errorf("%w: empty transmit buffer", ErrBadLengthPrefix)
	}
	psduLen := int(buf[0])
	if psduLen > MaxFrameLength {
		return nil, fmt.Errorf("%w: %w: length %d", ErrBadLengthPrefix, ErrFrameTooLarge, psduLen)
	}
	if psduLen < FCSLength {
		return nil, fmt.Errorf("%w: length %d out of range", ErrBadLengthPrefix, psduLen)
	}
	frameLen := psduLen - FCSLength
	if len(buf)-1 < frameLen {
		return nil, fmt.Errorf("%w: length %d but only %d bytes follow", ErrBadLengthPrefix, psduLen, len(buf)-1)
	}
	return buf[1 : 1+frameLen], nil
}

// relayPlan is the outcome of the relay decision for one accepted frame.
type relayPlan struct {
	frame   []byte
	payload WakePayload
	relay   bool
}

// planRelay decides whether an accepted payload is re-broadcast. A frame is
// relayed only while it still has hop budget; the relayed copy carries one
// hop less and is addressed broadcast-to-broadcast on the local PAN.
func planRelay(p WakePayload, panID uint16, seq uint8) relayPlan {
	if p.TTL == 0 {
		return relayPlan{payload: p}
	}
	out := p
	out.TTL--
	hdr := LinkHeader{
		FrameControl: FrameControlWake,
		Sequence:     seq,
		PANID:        panID,
		Destination:  BroadcastAddress,
		Source:       BroadcastAddress,
	}
	return relayPlan{
		frame:   EncodeTxFrame(hdr, out),
		payload: out,
		relay:   true,
	}
}
