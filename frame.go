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
	"encoding/binary"
	"fmt"
)

// Wake frame layout. All multi-byte fields are little-endian, as on the air.
//
//	+----+----+-----+-----+-----+-----+-----+-----+-----+-----+-----+-----+
//	| 0  | 1  |  2  |  3  |  4  |  5  |  6  |  7  |  8  |  9  | 10  | 11  |
//	+----+----+-----+-----+-----+-----+-----+-----+-----+-----+-----+-----+
//	|  FC     | SEQ |   PAN     |   DST     |   SRC     | CNT | STS | TTL |
//	+---------+-----+-----------+-----------+-----------+-----+-----+-----+
//	|<------------------ header (9) ------------------->|<- payload (3) ->|
const (
	HeaderLength  = 9
	PayloadLength = 3
	FrameLength   = HeaderLength + PayloadLength

	// FCSLength is the space reserved for the frame check sequence the radio
	// appends on transmit. It is never computed by the filter.
	FCSLength = 2

	// MaxFrameLength is the largest 802.15.4 PSDU.
	MaxFrameLength = 128

	offFrameControl = 0
	offSequence     = 2
	offPANID        = 3
	offDestination  = 5
	offSource       = 7
	offCounter      = HeaderLength
	offStatus       = HeaderLength + 1
	offTTL          = HeaderLength + 2
)

// Wire constants.
const (
	// FrameControlWake selects a data frame, no security, no frame pending,
	// no ack request, PAN ID compression, 2003 frame version and short
	// addressing on both ends. It is matched as an opaque value.
	FrameControlWake uint16 = 0x9841

	// BroadcastAddress is the all-ones short address.
	BroadcastAddress uint16 = 0xFFFF

	// UnsetPANID is the PAN identifier of a filter that has never been
	// enabled or has been disabled.
	UnsetPANID uint16 = 0xFFFF

	// DefaultTTL is the hop budget given to freshly originated beacons.
	DefaultTTL uint8 = 3

	// StatusBorderRouter is set in [WakePayload.Status] when the beacon
	// originated at a border router. The remaining bits are reserved.
	StatusBorderRouter uint8 = 1 << 0

	// sequenceSentinel is the all-ones value meaning "nothing seen yet".
	sequenceSentinel uint8 = 0xFF
)

// LinkHeader is the fixed 9-byte 802.15.4 MAC header of a wake frame.
type LinkHeader struct {
	FrameControl uint16
	Sequence     uint8
	PANID        uint16
	Destination  uint16
	Source       uint16
}

// WakePayload is the 3-byte application payload of a wake frame.
type WakePayload struct {
	// Counter is the freshness counter checked against replays.
	Counter uint8
	// Status carries [StatusBorderRouter] in bit 0.
	Status uint8
	// TTL is the remaining hop budget.
	TTL uint8
}

// BorderRouterOrigin reports whether the beacon was originated by a border router.
func (p WakePayload) BorderRouterOrigin() bool {
	return p.Status&StatusBorderRouter != 0
}

// String returns a compact representation for logs.
func (p WakePayload) String() string {
	return fmt.Sprintf("counter=%d status=0x%02X ttl=%d", p.Counter, p.Status, p.TTL)
}

// String returns a compact representation for logs.
func (h LinkHeader) String() string {
	return fmt.Sprintf("fc=0x%04X seq=%d pan=0x%04X dst=0x%04X src=0x%04X",
		h.FrameControl, h.Sequence, h.PANID, h.Destination, h.Source)
}

// EncodeFrame writes hdr and p into dst at the fixed wire offsets and returns
// the number of bytes written. dst may be longer than [FrameLength]; the
// trailing bytes are left untouched so the radio can place its FCS there.
func EncodeFrame(dst []byte, hdr LinkHeader, p WakePayload) (int, error) {
	if len(dst) < FrameLength {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, FrameLength, len(dst))
	}
	binary.LittleEndian.PutUint16(dst[offFrameControl:], hdr.FrameControl)
	dst[offSequence] = hdr.Sequence
	binary.LittleEndian.PutUint16(dst[offPANID:], hdr.PANID)
	binary.LittleEndian.PutUint16(dst[offDestination:], hdr.Destination)
	binary.LittleEndian.PutUint16(dst[offSource:], hdr.Source)
	dst[offCounter] = p.Counter
	dst[offStatus] = p.Status
	dst[offTTL] = p.TTL
	return FrameLength, nil
}

// AppendFrame appends the encoded frame to dst and returns the extended slice.
func AppendFrame(dst []byte, hdr LinkHeader, p WakePayload) []byte {
	var buf [FrameLength]byte
	// buf is always large enough.
	_, _ = EncodeFrame(buf[:], hdr, p)
	return append(dst, buf[:]...)
}

// DecodeFrame reads a wake frame from buf. Bytes past [FrameLength] are
// ignored. A buffer shorter than [FrameLength] yields [ErrShortBuffer].
func DecodeFrame(buf []byte) (LinkHeader, WakePayload, error) {
	if len(buf) < FrameLength {
		return LinkHeader{}, WakePayload{},
			fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, FrameLength, len(buf))
	}
	hdr := LinkHeader{
		FrameControl: binary.LittleEndian.Uint16(buf[offFrameControl:]),
		Sequence:     buf[offSequence],
		PANID:        binary.LittleEndian.Uint16(buf[offPANID:]),
		Destination:  binary.LittleEndian.Uint16(buf[offDestination:]),
		Source:       binary.LittleEndian.Uint16(buf[offSource:]),
	}
	p := WakePayload{
		Counter: buf[offCounter],
		Status:  buf[offStatus],
		TTL:     buf[offTTL],
	}
	return hdr, p, nil
}
