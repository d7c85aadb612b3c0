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

package listener

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-wakebeacon"
	"github.com/ZaparooProject/go-wakebeacon/internal/fcs"
	"github.com/ZaparooProject/go-wakebeacon/internal/radiotest"
)

func fastConfig() *Config {
	cfg := DefaultConfig()
	cfg.ReceiveTimeout = 20 * time.Millisecond
	cfg.Recovery.RecoveryBackoff = time.Millisecond
	return cfg
}

func TestDefaultRecoverer_RetuneSucceeds(t *testing.T) {
	t.Parallel()

	radio := wakebeacon.NewMockRadio()
	r := NewDefaultRecoverer(radio, 15, nil, time.Millisecond, 2)

	require.NoError(t, r.AttemptRecovery(context.Background()))
	assert.Equal(t, uint8(15), radio.Channel())
	assert.Same(t, radio, r.Radio())
}

func TestDefaultRecoverer_Reopen(t *testing.T) {
	t.Parallel()

	medium := radiotest.NewMedium()
	old := medium.NewNode("old")
	require.NoError(t, old.Close())

	var fresh *radiotest.Node
	r := NewDefaultRecoverer(old, 11, func() (wakebeacon.Radio, error) {
		fresh = medium.NewNode("fresh")
		return fresh, nil
	}, time.Millisecond, 3)
	r.SetChannel(20)

	require.NoError(t, r.AttemptRecovery(context.Background()))
	require.NotNil(t, fresh)
	assert.Same(t, fresh, r.Radio())
	assert.Equal(t, uint8(20), fresh.Channel(), "reopened radio is tuned to the tracked channel")
}

func TestDefaultRecoverer_GivesUp(t *testing.T) {
	t.Parallel()

	medium := radiotest.NewMedium()
	old := medium.NewNode("old")
	require.NoError(t, old.Close())

	reopenErr := errors.New("no such device")
	attempts := 0
	r := NewDefaultRecoverer(old, 11, func() (wakebeacon.Radio, error) {
		attempts++
		return nil, reopenErr
	}, time.Millisecond, 3)

	err := r.AttemptRecovery(context.Background())
	require.ErrorIs(t, err, reopenErr)
	assert.Equal(t, 3, attempts)
	assert.Same(t, old, r.Radio())
}

func TestDefaultRecoverer_ContextCancelled(t *testing.T) {
	t.Parallel()

	medium := radiotest.NewMedium()
	old := medium.NewNode("old")
	require.NoError(t, old.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewDefaultRecoverer(old, 11, nil, time.Hour, 3)
	require.ErrorIs(t, r.AttemptRecovery(ctx), context.Canceled)
}

func TestNewDefaultRecoverer_Defaults(t *testing.T) {
	t.Parallel()

	r := NewDefaultRecoverer(wakebeacon.NewMockRadio(), 11, nil, 0, 0)
	assert.Equal(t, 3, r.maxAttempts)
	assert.Equal(t, 500*time.Millisecond, r.backoff)
}

func TestRun_RecoversAfterUnplug(t *testing.T) {
	t.Parallel()

	medium := radiotest.NewMedium()
	old := medium.NewNode("old")

	l, err := New(old, fastConfig())
	require.NoError(t, err)

	var mu sync.Mutex
	var fresh *radiotest.Node
	l.SetRecoverer(NewDefaultRecoverer(old, 11, func() (wakebeacon.Radio, error) {
		mu.Lock()
		defer mu.Unlock()
		fresh = medium.NewNode("fresh")
		return fresh, nil
	}, time.Millisecond, 3))
	require.NoError(t, l.Enable(wakebeacon.FilterConfig{PANID: 0x1234, Channel: 25}))

	woken := make(chan wakebeacon.WakePayload, 1)
	l.SetOnWake(func(p wakebeacon.WakePayload) error {
		woken <- p
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.NoError(t, old.Close())
	require.Eventually(t, func() bool { return l.Stats().Recoveries == 1 }, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	require.NotNil(t, fresh)
	assert.Equal(t, uint8(25), fresh.Channel())
	mu.Unlock()
	assert.NotSame(t, old, l.Radio())

	medium.Inject(25, fcs.Seal([]byte{0x41, 0x98, 0, 0x34, 0x12, 0xFF, 0xFF, 0xFF, 0xFF, 1, 0, 0}))
	select {
	case p := <-woken:
		assert.Equal(t, uint8(1), p.Counter)
	case <-time.After(2 * time.Second):
		t.Fatal("no wake after recovery")
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestRun_FatalWithoutRecoverer(t *testing.T) {
	t.Parallel()

	medium := radiotest.NewMedium()
	node := medium.NewNode("n")
	l, err := New(node, fastConfig())
	require.NoError(t, err)
	require.NoError(t, node.Close())

	err = l.Run(context.Background())
	require.ErrorIs(t, err, wakebeacon.ErrRadioClosed)
}

func TestRun_RecoveryDisabled(t *testing.T) {
	t.Parallel()

	radio := wakebeacon.NewMockRadio()
	cfg := fastConfig()
	cfg.Recovery.Enabled = false
	l, err := New(radio, cfg)
	require.NoError(t, err)
	l.SetRecoverer(NewDefaultRecoverer(radio, 11, nil, time.Millisecond, 1))

	radio.SetRxError(wakebeacon.ErrRadioRead)
	err = l.Run(context.Background())
	require.ErrorIs(t, err, wakebeacon.ErrRadioRead)
	assert.Zero(t, l.Stats().Recoveries)
}

// clearingRecoverer clears the mock's receive error on recovery.
type clearingRecoverer struct {
	radio *wakebeacon.MockRadio
	calls int
	mu    sync.Mutex
}

func (c *clearingRecoverer) AttemptRecovery(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.radio.SetRxError(nil)
	return nil
}

func (c *clearingRecoverer) Radio() wakebeacon.Radio {
	return c.radio
}

func TestRun_TransientErrorsToleratedUntilThreshold(t *testing.T) {
	t.Parallel()

	radio := wakebeacon.NewMockRadio()
	l, err := New(radio, fastConfig())
	require.NoError(t, err)
	rec := &clearingRecoverer{radio: radio}
	l.SetRecoverer(rec)

	radio.SetRxError(wakebeacon.ErrRadioRead)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.Eventually(t, func() bool { return l.Stats().Recoveries == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.calls, "recovery starts only after MaxConsecutiveErrors")
}

func TestRun_RecoveryFailureEndsRun(t *testing.T) {
	t.Parallel()

	medium := radiotest.NewMedium()
	node := medium.NewNode("n")
	l, err := New(node, fastConfig())
	require.NoError(t, err)

	reopenErr := errors.New("gone for good")
	l.SetRecoverer(NewDefaultRecoverer(node, 11, func() (wakebeacon.Radio, error) {
		return nil, reopenErr
	}, time.Millisecond, 2))
	require.NoError(t, node.Close())

	err = l.Run(context.Background())
	require.ErrorIs(t, err, reopenErr)
	require.ErrorIs(t, err, wakebeacon.ErrRadioClosed)
	assert.Equal(t, StateIdle, l.State())
}

func TestRun_RecoveryBudgetSpentOnPermanentErrors(t *testing.T) {
	t.Parallel()

	radio := wakebeacon.NewMockRadio()
	cfg := fastConfig()
	cfg.Recovery.MaxRecoveryAttempts = 2
	cfg.Recovery.RecoveryBackoff = 20 * time.Millisecond
	l, err := New(radio, cfg)
	require.NoError(t, err)
	// Re-tuning a mock always works, so every recovery "succeeds".
	l.SetRecoverer(NewDefaultRecoverer(radio, 11, nil, time.Millisecond, 1))
	radio.SetRxError(wakebeacon.NewRadioError("Receive", "mock", wakebeacon.ErrRadioRead,
		wakebeacon.ErrorTypePermanent))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	err = l.Run(ctx)

	require.ErrorIs(t, err, ErrRecoveryExhausted)
	require.ErrorIs(t, err, wakebeacon.ErrRadioRead)
	assert.Equal(t, uint64(2), l.Stats().Recoveries)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond, "back-to-back recoveries wait")
	assert.Equal(t, StateIdle, l.State())
}

func TestRun_ReceivedFrameConfirmsRecovery(t *testing.T) {
	t.Parallel()

	radio := wakebeacon.NewMockRadio()
	cfg := fastConfig()
	cfg.Recovery.MaxRecoveryAttempts = 1
	l, err := New(radio, cfg)
	require.NoError(t, err)
	l.SetRecoverer(&clearingRecoverer{radio: radio})
	require.NoError(t, l.Enable(wakebeacon.FilterConfig{PANID: 0x1234, Channel: 11}))

	unplugged := wakebeacon.NewRadioError("Receive", "mock", wakebeacon.ErrRadioRead,
		wakebeacon.ErrorTypePermanent)
	radio.SetRxError(unplugged)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.Eventually(t, func() bool { return l.Stats().Recoveries == 1 }, 2*time.Second, 5*time.Millisecond)
	radio.InjectRx([]byte{0x41, 0x98, 0, 0x34, 0x12, 0xFF, 0xFF, 0xFF, 0xFF, 1, 0, 0})
	require.Eventually(t, func() bool { return l.Stats().Woken == 1 }, 2*time.Second, 5*time.Millisecond)

	radio.SetRxError(unplugged)
	require.Eventually(t, func() bool { return l.Stats().Recoveries == 2 }, 2*time.Second, 5*time.Millisecond)

	select {
	case err := <-done:
		t.Fatalf("Run ended after a confirmed recovery: %v", err)
	default:
	}
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
