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

func TestReplayGuard_TrackCounter(t *testing.T) {
	t.Parallel()

	g := NewReplayGuard(ReplayTrackCounter)
	assert.Equal(t, uint8(0xFF), g.LastAccepted())

	steps := []struct {
		counter uint8
		accept  bool
	}{
		{counter: 0, accept: true},
		{counter: 0, accept: false},
		{counter: 1, accept: true},
		{counter: 200, accept: true},
		{counter: 199, accept: false},
		{counter: 255, accept: true},
		{counter: 0, accept: true},
	}
	for i, s := range steps {
		got := g.Accept(s.counter)
		require.Equal(t, s.accept, got, "step %d counter %d", i, s.counter)
		if got {
			g.Commit(s.counter)
		}
	}
	assert.Equal(t, uint8(0), g.LastAccepted())
}

func TestReplayGuard_FirstFrameOnly(t *testing.T) {
	t.Parallel()

	g := NewReplayGuard(ReplayFirstFrameOnly)
	for _, c := range []uint8{3, 3, 2, 0, 255} {
		require.True(t, g.Accept(c))
		g.Commit(c)
	}
	assert.Equal(t, uint8(0xFF), g.LastAccepted())
	assert.Equal(t, ReplayFirstFrameOnly, g.Policy())
}

func TestReplayGuard_Reset(t *testing.T) {
	t.Parallel()

	g := NewReplayGuard(ReplayTrackCounter)
	g.Commit(100)
	assert.False(t, g.Accept(50))

	g.Reset()
	assert.True(t, g.Accept(50))
}

func TestReplayPolicy_ParseAndString(t *testing.T) {
	t.Parallel()

	for _, p := range []ReplayPolicy{ReplayTrackCounter, ReplayFirstFrameOnly} {
		got, err := ParseReplayPolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	got, err := ParseReplayPolicy("")
	require.NoError(t, err)
	assert.Equal(t, ReplayTrackCounter, got)

	_, err = ParseReplayPolicy("strict")
	require.ErrorIs(t, err, ErrInvalidParameter)
	assert.Equal(t, "policy(7)", ReplayPolicy(7).String())
}
