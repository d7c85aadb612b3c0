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

	"github.com/ZaparooProject/go-wakebeacon/internal/syncutil"
)

// Option configures a Filter
type Option func(*Filter) error

// WithEventSink sets the sink that receives filter events.
// A nil sink restores the no-op default.
func WithEventSink(sink EventSink) Option {
	return func(f *Filter) error {
		if sink == nil {
			sink = NopSink{}
		}
		f.sink = sink
		return nil
	}
}

// WithChainedEventSink adds sink after the sink configured so far, so both
// receive every event in order.
func WithChainedEventSink(sink EventSink) Option {
	return func(f *Filter) error {
		if sink == nil {
			return nil
		}
		if _, ok := f.sink.(NopSink); ok {
			f.sink = sink
			return nil
		}
		f.sink = MultiSink{f.sink, sink}
		return nil
	}
}

// WithReplayPolicy selects how freshness counters are tracked.
func WithReplayPolicy(policy ReplayPolicy) Option {
	return func(f *Filter) error {
		if policy != ReplayTrackCounter && policy != ReplayFirstFrameOnly {
			return errors.New("invalid replay policy")
		}
		f.replay = NewReplayGuard(policy)
		return nil
	}
}

// WithRelay enables or disables re-broadcasting of accepted frames.
// Relay is enabled by default.
func WithRelay(enabled bool) Option {
	return func(f *Filter) error {
		f.relayEnabled = enabled
		return nil
	}
}

// Filter recognises wake frames for one node. It holds the state of a
// single filter instance; independent instances do not share anything.
//
// Thread Safety: all methods are safe to call from multiple goroutines, but
// the filter is designed to be driven from a single receive context. Events
// are delivered on the calling goroutine after the internal lock is released.
type Filter struct {
	sink         EventSink
	replay       *ReplayGuard
	config       FilterConfig
	mu           syncutil.Mutex
	enabled      bool
	relayEnabled bool
	// seq is shared by the transmit path and the receive tracker: it holds
	// the last sequence number sent or observed.
	seq uint8
}

// New creates a disabled filter.
func New(opts ...Option) (*Filter, error) {
	f := &Filter{
		sink:         NopSink{},
		replay:       NewReplayGuard(ReplayTrackCounter),
		config:       DefaultFilterConfig(),
		relayEnabled: true,
		seq:          sequenceSentinel,
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Enable applies cfg and starts accepting wake frames. Calling Enable on an
// enabled filter overwrites the previous configuration.
func (f *Filter) Enable(cfg FilterConfig) {
	f.mu.Lock()
	f.config = cfg
	f.enabled = true
	f.mu.Unlock()

	Debugf("wake filter enabled: %s", cfg)
	f.emit(Event{Kind: EventEnabled, Config: cfg})
}

// Disable stops accepting wake frames and resets the configuration.
func (f *Filter) Disable() {
	f.mu.Lock()
	f.enabled = false
	f.config.BorderRouter = false
	f.config.PANID = UnsetPANID
	f.mu.Unlock()

	Debugln("wake filter disabled")
	f.emit(Event{Kind: EventDisabled})
}

// Enabled reports whether the filter is enabled.
func (f *Filter) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

// Config returns a copy of the current configuration.
func (f *Filter) Config() FilterConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config
}

// LastSequence returns the last link-layer sequence number sent or observed
// on a structurally valid wake frame. 0xFF means none yet.
func (f *Filter) LastSequence() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq
}

// LastAcceptedCounter returns the last accepted freshness counter, or 0xFF.
func (f *Filter) LastAcceptedCounter() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.replay.LastAccepted()
}

// ResetReplayState forgets the last accepted freshness counter.
func (f *Filter) ResetReplayState() {
	f.mu.Lock()
	f.replay.Reset()
	f.mu.Unlock()
}

// CreateFrame encodes a wake frame with the next transmit sequence number
// and returns it as a new buffer of FrameLength bytes.
func (f *Filter) CreateFrame(src, dst, panID uint16, p WakePayload) []byte {
	f.mu.Lock()
	seq := f.nextSequenceLocked()
	f.mu.Unlock()

	hdr := LinkHeader{
		FrameControl: FrameControlWake,
		Sequence:     seq,
		PANID:        panID,
		Destination:  dst,
		Source:       src,
	}
	return AppendFrame(make([]byte, 0, FrameLength), hdr, p)
}

// Decode runs a received frame through the filter. It returns nil when the
// frame was accepted, ErrFilterDisabled when the filter is off, and a
// *DropError (matching ErrFrameDropped) when any check fails.
//
// On acceptance the filter raises EventTransmitRequested when the frame
// still has hop budget, then EventWoken with the payload as received.
func (f *Filter) Decode(buf []byte) error {
	events, err := f.decode(buf)
	for _, ev := range events {
		f.emit(ev)
	}
	return err
}

// DecodeFrame is Decode reduced to its Result.
func (f *Filter) DecodeFrame(buf []byte) Result {
	return ResultOf(f.Decode(buf))
}

func (f *Filter) decode(buf []byte) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.enabled {
		return nil, ErrFilterDisabled
	}

	hdr, p, err := DecodeFrame(buf)
	if err != nil {
		Debugf("wake frame dropped: %v", err)
		return nil, &DropError{Reason: DropShortFrame, Err: err}
	}

	if err := f.checkHeaderLocked(hdr); err != nil {
		Debugf("wake frame dropped: %v [%s]", err, hdr)
		return nil, err
	}

	// The link sequence tracker follows every structurally valid frame,
	// whether or not it turns out to be fresh.
	f.seq = hdr.Sequence

	if !f.replay.Accept(p.Counter) {
		err := &DropError{
			Reason: DropStaleCounter,
			Got:    uint16(p.Counter),
			Want:   uint16(f.replay.LastAccepted()),
		}
		Debugf("wake frame dropped: %v", err)
		return nil, err
	}
	f.replay.Commit(p.Counter)

	events := make([]Event, 0, 2)
	if f.relayEnabled {
		plan := planRelay(p, f.config.PANID, f.seq+1)
		if plan.relay {
			f.seq++
			Debugf("relaying wake frame: %s", plan.payload)
			events = append(events, Event{Kind: EventTransmitRequested, Frame: plan.frame})
		}
	}
	Debugf("wake frame accepted: %s", p)
	events = append(events, Event{Kind: EventWoken, Payload: p})
	return events, nil
}

func (f *Filter) checkHeaderLocked(hdr LinkHeader) error {
	switch {
	case hdr.FrameControl != FrameControlWake:
		return &DropError{Reason: DropFrameControl, Got: hdr.FrameControl, Want: FrameControlWake}
	case hdr.PANID != f.config.PANID:
		return &DropError{Reason: DropPANID, Got: hdr.PANID, Want: f.config.PANID}
	case hdr.Source != BroadcastAddress:
		return &DropError{Reason: DropSource, Got: hdr.Source, Want: BroadcastAddress}
	case hdr.Destination != BroadcastAddress:
		return &DropError{Reason: DropDestination, Got: hdr.Destination, Want: BroadcastAddress}
	}
	return nil
}

func (f *Filter) nextSequenceLocked() uint8 {
	f.seq++
	return f.seq
}

func (f *Filter) emit(ev Event) {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()

	if err := sink.HandleEvent(ev); err != nil {
		Debugf("event handler for %s failed: %v", ev.Kind, err)
	}
}
