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
	"context"
	"testing"
	"time"

	"github.com/ZaparooProject/go-wakebeacon"
	"github.com/ZaparooProject/go-wakebeacon/internal/fcs"
	"github.com/ZaparooProject/go-wakebeacon/internal/radiotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame(counter, ttl uint8) []byte {
	return wakebeacon.AppendFrame(nil, wakebeacon.LinkHeader{
		FrameControl: wakebeacon.FrameControlWake,
		Sequence:     7,
		PANID:        0x1234,
		Destination:  wakebeacon.BroadcastAddress,
		Source:       wakebeacon.BroadcastAddress,
	}, wakebeacon.WakePayload{Counter: counter, TTL: ttl})
}

// newDonglePair returns a UART radio on a virtual dongle and a plain node
// that hears it.
func newDonglePair(t *testing.T, jitter bool) (*Radio, *radiotest.VirtualDongle, *radiotest.Node) {
	t.Helper()
	medium := radiotest.NewMedium()
	local := medium.NewNode("dongle")
	peer := medium.NewNode("peer")
	medium.Link(local, peer)

	dongle := radiotest.NewVirtualDongle(local)
	require.NoError(t, dongle.SetReadTimeout(5*time.Millisecond))
	var p port = dongle
	if jitter {
		cfg := radiotest.DefaultJitterConfig()
		cfg.Seed = 42
		p = radiotest.NewJitteryPort(dongle, cfg)
	}
	r := newRadio(p, "virtual")
	t.Cleanup(func() { _ = r.Close() })
	return r, dongle, peer
}

func TestRadioTransmit(t *testing.T) {
	t.Parallel()
	r, dongle, peer := newDonglePair(t, false)

	frame := testFrame(5, 2)
	tx, err := wakebeacon.WrapTxFrame(frame)
	require.NoError(t, err)
	require.NoError(t, r.Transmit(context.Background(), tx))

	writes := dongle.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, encodeData(frame), writes[0])

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := peer.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, frame, got)
}

func TestRadioTransmitRejectsBadPrefix(t *testing.T) {
	t.Parallel()
	r, dongle, _ := newDonglePair(t, false)

	err := r.Transmit(context.Background(), []byte{0x01, 0x00})
	require.ErrorIs(t, err, wakebeacon.ErrBadLengthPrefix)
	assert.False(t, wakebeacon.IsRetryable(err))
	assert.Empty(t, dongle.Writes())
}

func TestRadioTransmitRejectsOversizedFrame(t *testing.T) {
	t.Parallel()
	r, dongle, _ := newDonglePair(t, false)

	err := r.Transmit(context.Background(), append([]byte{200}, make([]byte, 200)...))
	require.ErrorIs(t, err, wakebeacon.ErrFrameTooLarge)
	assert.False(t, wakebeacon.IsRetryable(err))
	assert.Empty(t, dongle.Writes())
}

func TestRadioTransmitBusyIsRetryable(t *testing.T) {
	t.Parallel()
	r, dongle, _ := newDonglePair(t, false)
	dongle.SetBusy(1)

	tx, err := wakebeacon.WrapTxFrame(testFrame(1, 1))
	require.NoError(t, err)

	err = r.Transmit(context.Background(), tx)
	require.ErrorIs(t, err, wakebeacon.ErrRadioNotReady)
	assert.True(t, wakebeacon.IsRetryable(err))

	err = wakebeacon.RetryWithConfig(context.Background(), nil, func() error {
		return r.Transmit(context.Background(), tx)
	})
	require.NoError(t, err)
}

func TestRadioReceive(t *testing.T) {
	t.Parallel()

	for _, jitter := range []bool{false, true} {
		name := "direct"
		if jitter {
			name = "jittery"
		}
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			r, _, peer := newDonglePair(t, jitter)

			for counter := uint8(1); counter <= 3; counter++ {
				tx, err := wakebeacon.WrapTxFrame(testFrame(counter, 3))
				require.NoError(t, err)
				require.NoError(t, peer.Transmit(context.Background(), tx))
			}

			for counter := uint8(1); counter <= 3; counter++ {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				got, err := r.Receive(ctx)
				cancel()
				require.NoError(t, err)
				assert.Equal(t, testFrame(counter, 3), got)
			}
		})
	}
}

func TestRadioReceiveFCSMismatch(t *testing.T) {
	t.Parallel()
	r, dongle, _ := newDonglePair(t, false)

	psdu := fcs.Seal(testFrame(9, 1))
	psdu[len(psdu)-1] ^= 0xFF
	raw := append([]byte{startData, byte(len(psdu))}, psdu...)
	dongle.InjectRaw(raw)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := r.Receive(ctx)
	require.ErrorIs(t, err, wakebeacon.ErrFCSMismatch)
	assert.True(t, wakebeacon.IsRetryable(err))
}

func TestRadioReceiveTimeout(t *testing.T) {
	t.Parallel()
	r, _, _ := newDonglePair(t, false)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Receive(ctx)
	require.Error(t, err)
	assert.True(t, wakebeacon.IsTimeout(err))
}

func TestRadioSetChannel(t *testing.T) {
	t.Parallel()
	r, dongle, _ := newDonglePair(t, false)

	require.NoError(t, r.SetChannel(15))
	assert.Equal(t, uint8(15), dongle.Node().Channel())

	err := r.SetChannel(27)
	require.ErrorIs(t, err, wakebeacon.ErrInvalidChannel)
	assert.Equal(t, uint8(15), dongle.Node().Channel())
}

func TestRadioClose(t *testing.T) {
	t.Parallel()
	r, _, _ := newDonglePair(t, false)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err := r.Receive(context.Background())
	require.ErrorIs(t, err, wakebeacon.ErrRadioClosed)

	tx, err := wakebeacon.WrapTxFrame(testFrame(1, 0))
	require.NoError(t, err)
	err = r.Transmit(context.Background(), tx)
	require.ErrorIs(t, err, wakebeacon.ErrRadioClosed)
	assert.Equal(t, wakebeacon.RadioUART, r.Type())
	assert.Equal(t, "virtual", r.PortName())
}
