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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbacks_Dispatch(t *testing.T) {
	t.Parallel()

	var got []string
	cb := &Callbacks{
		OnEnabled: func(cfg FilterConfig) error {
			got = append(got, "enabled "+cfg.String())
			return nil
		},
		OnDisabled: func() error {
			got = append(got, "disabled")
			return nil
		},
		OnWoken: func(p WakePayload) error {
			got = append(got, "woken "+p.String())
			return nil
		},
		OnTransmitRequested: func(frame []byte) error {
			got = append(got, "tx")
			return errors.New("radio busy")
		},
	}

	require.NoError(t, cb.HandleEvent(Event{Kind: EventEnabled, Config: FilterConfig{PANID: 1}}))
	require.NoError(t, cb.HandleEvent(Event{Kind: EventWoken, Payload: WakePayload{TTL: 2}}))
	require.Error(t, cb.HandleEvent(Event{Kind: EventTransmitRequested}))
	require.NoError(t, cb.HandleEvent(Event{Kind: EventDisabled}))

	assert.Equal(t, []string{
		"enabled pan=0x0001 channel=0 border_router=false",
		"woken counter=0 status=0x00 ttl=2",
		"tx",
		"disabled",
	}, got)
}

func TestCallbacks_NilFuncsSkipped(t *testing.T) {
	t.Parallel()

	cb := &Callbacks{}
	for _, k := range []EventKind{EventEnabled, EventDisabled, EventWoken, EventTransmitRequested} {
		require.NoError(t, cb.HandleEvent(Event{Kind: k}))
	}
}

func TestMultiSink(t *testing.T) {
	t.Parallel()

	first := errors.New("first")
	var calls int
	count := EventSinkFunc(func(Event) error {
		calls++
		return nil
	})
	fail := EventSinkFunc(func(Event) error {
		calls++
		return first
	})
	failLater := EventSinkFunc(func(Event) error {
		calls++
		return errors.New("second")
	})

	err := MultiSink{count, nil, fail, failLater}.HandleEvent(Event{Kind: EventWoken})
	require.ErrorIs(t, err, first)
	assert.Equal(t, 3, calls)
}

func TestEventKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "enabled", EventEnabled.String())
	assert.Equal(t, "disabled", EventDisabled.String())
	assert.Equal(t, "woken", EventWoken.String())
	assert.Equal(t, "transmit-requested", EventTransmitRequested.String())
	assert.Equal(t, "event(42)", EventKind(42).String())
}

func TestNopSink(t *testing.T) {
	t.Parallel()
	require.NoError(t, NopSink{}.HandleEvent(Event{Kind: EventWoken}))
}
