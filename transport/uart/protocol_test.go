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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoderControlFrames(t *testing.T) {
	t.Parallel()

	var d decoder
	msgs := d.feed([]byte{startControl, cmdSetChannel | replyFlag, statusOK})
	require.Len(t, msgs, 1)
	assert.Equal(t, byte(startControl), msgs[0].kind)
	assert.Equal(t, byte(cmdSetChannel|replyFlag), msgs[0].cmd)
	assert.Equal(t, byte(statusOK), msgs[0].status)
}

func TestDecoderFragmentedData(t *testing.T) {
	t.Parallel()

	stream := []byte{startData, 0x04, 0xAA, 0xBB, 0xCC, 0xDD, startControl, 0x80, 0x00}
	var d decoder
	var msgs []message
	for _, b := range stream {
		msgs = append(msgs, d.feed([]byte{b})...)
	}
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0xDD}, msgs[0].psdu)
	assert.Equal(t, byte(startControl), msgs[1].kind)
}

func TestDecoderResync(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		stream []byte
		want   [][]byte
	}{
		{
			name:   "leading garbage",
			stream: []byte{0x00, 0x11, 0x22, startData, 0x02, 0x01, 0x02},
			want:   [][]byte{{0x01, 0x02}},
		},
		{
			name:   "impossible length",
			stream: []byte{startData, 0xFF, startData, 0x03, 0x01, 0x02, 0x03},
			want:   [][]byte{{0x01, 0x02, 0x03}},
		},
		{
			name:   "length below fcs",
			stream: []byte{startData, 0x01, startData, 0x02, 0x09, 0x08},
			want:   [][]byte{{0x09, 0x08}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var d decoder
			msgs := d.feed(tt.stream)
			require.Len(t, msgs, len(tt.want))
			for i, w := range tt.want {
				assert.Equal(t, w, msgs[i].psdu)
			}
		})
	}
}

func TestDecoderWaitsForCompleteFrame(t *testing.T) {
	t.Parallel()

	var d decoder
	assert.Empty(t, d.feed([]byte{startData, 0x05, 0x01}))
	assert.Empty(t, d.feed([]byte{0x02, 0x03}))
	msgs := d.feed([]byte{0x04, 0x05})
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x05}, msgs[0].psdu)
}

func TestEncode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []byte{startData, 0x05, 0x01, 0x02, 0x03}, encodeData([]byte{0x01, 0x02, 0x03}))
	assert.Equal(t, []byte{startControl, cmdSetChannel, 15}, encodeControl(cmdSetChannel, 15))
}
