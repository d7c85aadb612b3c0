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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeTxFrame(t *testing.T) {
	t.Parallel()

	hdr := LinkHeader{FrameControl: FrameControlWake, Sequence: 1, PANID: 0x1234,
		Destination: BroadcastAddress, Source: BroadcastAddress}
	buf := EncodeTxFrame(hdr, WakePayload{Counter: 2, TTL: 1})

	require.Len(t, buf, TxFrameLength)
	assert.Equal(t, byte(14), buf[0], "prefix covers header, payload and FCS")

	frame, err := ParseTxFrame(buf)
	require.NoError(t, err)
	assert.Len(t, frame, FrameLength)
}

func TestWrapTxFrame(t *testing.T) {
	t.Parallel()

	frame := broadcastWake(0, 1, 3)
	buf, err := WrapTxFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, append([]byte{TxLengthPrefix}, frame...), buf)

	frame[0] = 0
	assert.Equal(t, byte(0x41), buf[1], "wrapped buffer does not alias the frame")

	_, err = WrapTxFrame(make([]byte, MaxFrameLength-FCSLength+1))
	require.ErrorIs(t, err, ErrFrameTooLarge)

	buf, err = WrapTxFrame(make([]byte, MaxFrameLength-FCSLength))
	require.NoError(t, err)
	assert.Equal(t, byte(MaxFrameLength), buf[0])
}

func TestParseTxFrame_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		buf  []byte
	}{
		{name: "empty", buf: nil},
		{name: "prefix below fcs", buf: []byte{1}},
		{name: "prefix too large", buf: append([]byte{MaxFrameLength + 1}, make([]byte, 200)...)},
		{name: "truncated", buf: []byte{TxLengthPrefix, 0x41, 0x98}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseTxFrame(tt.buf)
			require.ErrorIs(t, err, ErrBadLengthPrefix)
		})
	}
}

func TestParseTxFrame_OversizedIsFrameTooLarge(t *testing.T) {
	t.Parallel()

	_, err := ParseTxFrame(append([]byte{MaxFrameLength + 1}, make([]byte, 200)...))
	require.ErrorIs(t, err, ErrFrameTooLarge)

	_, err = ParseTxFrame([]byte{1})
	require.NotErrorIs(t, err, ErrFrameTooLarge)
}

func TestPlanRelay(t *testing.T) {
	t.Parallel()

	plan := planRelay(WakePayload{Counter: 4, Status: StatusBorderRouter, TTL: 1}, 0xABCD, 9)
	require.True(t, plan.relay)
	assert.Equal(t, WakePayload{Counter: 4, Status: StatusBorderRouter, TTL: 0}, plan.payload)

	hdr, p, err := DecodeFrame(plan.frame[1:])
	require.NoError(t, err)
	assert.Equal(t, LinkHeader{
		FrameControl: FrameControlWake,
		Sequence:     9,
		PANID:        0xABCD,
		Destination:  BroadcastAddress,
		Source:       BroadcastAddress,
	}, hdr)
	assert.Equal(t, plan.payload, p)

	plan = planRelay(WakePayload{TTL: 0}, 0xABCD, 9)
	assert.False(t, plan.relay)
	assert.Nil(t, plan.frame)
}
