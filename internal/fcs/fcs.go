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

// Package fcs computes the 802.15.4 frame check sequence.
//
// The FCS is CRC-16/KERMIT (ITU-T polynomial, reflected, zero init) sent
// least significant byte first after the MPDU.
package fcs

import (
	"encoding/binary"
	"errors"

	"github.com/sigurn/crc16"
)

// Length is the size of the FCS trailer in bytes.
const Length = 2

var table = crc16.MakeTable(crc16.CRC16_KERMIT)

var (
	// ErrMismatch is returned when a received FCS does not match the frame.
	ErrMismatch = errors.New("fcs mismatch")
	// ErrTooShort is returned when a PSDU cannot hold an FCS.
	ErrTooShort = errors.New("psdu too short for fcs")
)

// Checksum returns the FCS of mpdu.
func Checksum(mpdu []byte) uint16 {
	return crc16.Checksum(mpdu, table)
}

// Append appends the FCS of mpdu to dst and returns the extended slice.
// dst and mpdu may be the same slice.
func Append(dst, mpdu []byte) []byte {
	return binary.LittleEndian.AppendUint16(dst, Checksum(mpdu))
}

// Seal returns a new PSDU holding mpdu followed by its FCS.
func Seal(mpdu []byte) []byte {
	out := make([]byte, len(mpdu), len(mpdu)+Length)
	copy(out, mpdu)
	return Append(out, mpdu)
}

// Verify reports whether the trailing two bytes of psdu are its FCS.
func Verify(psdu []byte) bool {
	if len(psdu) < Length {
		return false
	}
	n := len(psdu) - Length
	return binary.LittleEndian.Uint16(psdu[n:]) == Checksum(psdu[:n])
}

// Strip verifies psdu and returns the MPDU without its FCS. The returned
// slice aliases psdu.
func Strip(psdu []byte) ([]byte, error) {
	if len(psdu) < Length {
		return nil, ErrTooShort
	}
	if !Verify(psdu) {
		return nil, ErrMismatch
	}
	return psdu[:len(psdu)-Length], nil
}
