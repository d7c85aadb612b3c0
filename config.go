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

// EnablePayloadLength is the size of a marshalled FilterConfig.
const EnablePayloadLength = 4

// FilterConfig is the configuration applied by [Filter.Enable].
type FilterConfig struct {
	// PANID is the PAN identifier wake frames must carry.
	PANID uint16
	// Channel is the monitored radio channel. The filter only records it;
	// tuning the radio is up to the host.
	Channel uint8
	// BorderRouter marks the local node as the network's border router.
	BorderRouter bool
}

// DefaultFilterConfig returns the configuration of a disabled filter
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{PANID: UnsetPANID}
}

// String returns a compact representation for logs.
func (c FilterConfig) String() string {
	return fmt.Sprintf("pan=0x%04X channel=%d border_router=%t", c.PANID, c.Channel, c.BorderRouter)
}

// MarshalBinary encodes the configuration as the 4-byte enable payload:
// PAN ID (little-endian), channel, border-router flag.
func (c FilterConfig) MarshalBinary() ([]byte, error) {
	buf := make([]byte, EnablePayloadLength)
	binary.LittleEndian.PutUint16(buf[0:2], c.PANID)
	buf[2] = c.Channel
	if c.BorderRouter {
		buf[3] = 1
	}
	return buf, nil
}

// UnmarshalBinary decodes an enable payload produced by MarshalBinary.
func (c *FilterConfig) UnmarshalBinary(data []byte) error {
	if len(data) < EnablePayloadLength {
		return fmt.Errorf("%w: enable payload needs %d bytes, have %d",
			ErrShortBuffer, EnablePayloadLength, len(data))
	}
	c.PANID = binary.LittleEndian.Uint16(data[0:2])
	c.Channel = data[2]
	c.BorderRouter = data[3] != 0
	return nil
}
