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

// Package listener runs the receive loop of a wake beacon node: it feeds
// frames from a Radio through a Filter, transmits the relays the filter asks
// for and reports wake-ups to the application.
package listener

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-wakebeacon"
	"github.com/ZaparooProject/go-wakebeacon/internal/syncutil"
)

// CaptureWriter records frames received or transmitted by the listener.
// Frames are passed without FCS.
type CaptureWriter interface {
	WriteFrame(ts time.Time, mpdu []byte) error
}

// channelTracker is implemented by recoverers that re-tune the radio.
type channelTracker interface {
	SetChannel(channel uint8)
}

// eventQueue collects filter events during a filter call so they can be
// handled once the filter lock is released.
type eventQueue struct {
	events []wakebeacon.Event
}

func (q *eventQueue) HandleEvent(ev wakebeacon.Event) error {
	q.events = append(q.events, ev)
	return nil
}

func (q *eventQueue) drain() []wakebeacon.Event {
	events := q.events
	q.events = nil
	return events
}

// Listener drives one Filter from one Radio.
type Listener struct {
	OnWake    func(p wakebeacon.WakePayload) error
	OnRelay   func(txFrame []byte)
	OnDrop    func(frame []byte, err error)
	config    *Config
	radio     wakebeacon.Radio
	filter    *wakebeacon.Filter
	queue     *eventQueue
	recoverer RadioRecoverer
	capture   CaptureWriter
	stats     Stats
	state     State
	filterMu  syncutil.Mutex
	stateMu   syncutil.RWMutex
	running   atomic.Bool
	closed    atomic.Bool
}

// New creates a listener on radio. The filter is created here so the
// listener can receive its events; opts configure it. A sink passed with
// wakebeacon.WithEventSink keeps receiving every event, ahead of the
// listener. It runs while the listener holds its filter lock, so it must
// not call back into the Listener.
func New(radio wakebeacon.Radio, config *Config, opts ...wakebeacon.Option) (*Listener, error) {
	if radio == nil {
		return nil, fmt.Errorf("%w: nil radio", wakebeacon.ErrInvalidParameter)
	}
	if config == nil {
		config = DefaultConfig()
	}
	queue := &eventQueue{}
	filterOpts := make([]wakebeacon.Option, 0, len(opts)+1)
	filterOpts = append(filterOpts, opts...)
	filterOpts = append(filterOpts, wakebeacon.WithChainedEventSink(queue))
	filter, err := wakebeacon.New(filterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create filter: %w", err)
	}
	return &Listener{
		config: config,
		radio:  radio,
		filter: filter,
		queue:  queue,
		stats:  Stats{Dropped: make(map[wakebeacon.DropReason]uint64)},
	}, nil
}

// SetOnWake sets the callback for accepted wake beacons.
func (l *Listener) SetOnWake(callback func(wakebeacon.WakePayload) error) {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	l.OnWake = callback
}

// SetOnRelay sets the callback for relays that were transmitted.
func (l *Listener) SetOnRelay(callback func(txFrame []byte)) {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	l.OnRelay = callback
}

// SetOnDrop sets the callback for frames the filter rejected.
func (l *Listener) SetOnDrop(callback func(frame []byte, err error)) {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	l.OnDrop = callback
}

// SetCapture sets the capture writer. Pass nil to stop capturing.
func (l *Listener) SetCapture(capture CaptureWriter) {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	l.capture = capture
}

// SetRecoverer sets the radio recoverer used after repeated receive errors.
func (l *Listener) SetRecoverer(recoverer RadioRecoverer) {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	l.recoverer = recoverer
}

// Filter returns the underlying filter
func (l *Listener) Filter() *wakebeacon.Filter {
	return l.filter
}

// Radio returns the current radio (may change after recovery)
func (l *Listener) Radio() wakebeacon.Radio {
	l.stateMu.RLock()
	defer l.stateMu.RUnlock()
	return l.radio
}

// State returns the current lifecycle state
func (l *Listener) State() State {
	l.stateMu.RLock()
	defer l.stateMu.RUnlock()
	return l.state
}

// Stats returns a snapshot of the listener counters.
func (l *Listener) Stats() Stats {
	l.stateMu.RLock()
	defer l.stateMu.RUnlock()
	return l.stats.clone()
}

// Enable tunes the radio to cfg.Channel and then enables the filter.
func (l *Listener) Enable(cfg wakebeacon.FilterConfig) error {
	if l.closed.Load() {
		return ErrListenerClosed
	}
	if err := wakebeacon.ValidateChannel(cfg.Channel); err != nil {
		return err
	}
	if err := l.Radio().SetChannel(cfg.Channel); err != nil {
		return fmt.Errorf("failed to tune radio to channel %d: %w", cfg.Channel, err)
	}

	l.stateMu.RLock()
	if tracker, ok := l.recoverer.(channelTracker); ok {
		tracker.SetChannel(cfg.Channel)
	}
	l.stateMu.RUnlock()

	l.filterMu.Lock()
	l.filter.Enable(cfg)
	events := l.queue.drain()
	l.filterMu.Unlock()

	logLifecycle(events)
	return nil
}

// Disable disables the filter. The radio keeps receiving; frames are
// counted as Disabled until the next Enable.
func (l *Listener) Disable() {
	l.filterMu.Lock()
	l.filter.Disable()
	events := l.queue.drain()
	l.filterMu.Unlock()

	logLifecycle(events)
}

// Originate transmits a new wake beacon on the enabled PAN. The status
// byte carries the border router bit from the filter configuration.
func (l *Listener) Originate(ctx context.Context, counter, ttl uint8) (wakebeacon.WakePayload, error) {
	if l.closed.Load() {
		return wakebeacon.WakePayload{}, ErrListenerClosed
	}

	l.filterMu.Lock()
	if !l.filter.Enabled() {
		l.filterMu.Unlock()
		return wakebeacon.WakePayload{}, fmt.Errorf("cannot originate: %w", wakebeacon.ErrFilterDisabled)
	}
	cfg := l.filter.Config()
	p := wakebeacon.WakePayload{Counter: counter, TTL: ttl}
	if cfg.BorderRouter {
		p.Status |= wakebeacon.StatusBorderRouter
	}
	frame := l.filter.CreateFrame(wakebeacon.BroadcastAddress, wakebeacon.BroadcastAddress, cfg.PANID, p)
	l.filterMu.Unlock()

	txFrame, err := wakebeacon.WrapTxFrame(frame)
	if err != nil {
		return p, err
	}
	if err := l.transmit(ctx, txFrame); err != nil {
		return p, fmt.Errorf("failed to transmit wake beacon: %w", err)
	}

	l.recordCapture(time.Now(), frame)
	l.stateMu.Lock()
	l.stats.Originated++
	l.stateMu.Unlock()
	wakebeacon.Debugf("originated wake beacon: %s", p)
	return p, nil
}

// HandleFrame runs one received frame (without FCS) through the filter and
// acts on the result. Run calls it for every frame; it is exported for hosts
// that own their receive path, such as capture replay.
func (l *Listener) HandleFrame(ctx context.Context, frame []byte) error {
	l.recordCapture(time.Now(), frame)

	l.filterMu.Lock()
	err := l.filter.Decode(frame)
	events := l.queue.drain()
	l.filterMu.Unlock()

	l.stateMu.Lock()
	l.stats.Received++
	l.stateMu.Unlock()

	if err != nil {
		l.recordDrop(frame, err)
		return nil
	}
	return l.dispatch(ctx, events)
}

// Run receives frames until ctx is done, a wake callback fails or the
// radio cannot be recovered.
func (l *Listener) Run(ctx context.Context) error {
	if l.closed.Load() {
		return ErrListenerClosed
	}
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)

	l.setState(StateListening)
	defer l.setState(StateIdle)

	consecutiveErrors := 0
	// unconfirmed counts recoveries since the radio last delivered data.
	unconfirmed := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if l.closed.Load() {
			return ErrListenerClosed
		}

		frame, err := l.receiveOnce(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if isIdle(err) {
				continue
			}
			if errors.Is(err, wakebeacon.ErrFCSMismatch) {
				l.stateMu.Lock()
				l.stats.FCSErrors++
				l.stateMu.Unlock()
				unconfirmed = 0
				continue
			}
			consecutiveErrors++
			recovered, fatal := l.handleReceiveError(ctx, err, consecutiveErrors, unconfirmed)
			if fatal != nil {
				return fatal
			}
			if recovered {
				consecutiveErrors = 0
				unconfirmed++
			}
			continue
		}

		consecutiveErrors = 0
		unconfirmed = 0
		if err := l.HandleFrame(ctx, frame); err != nil {
			return err
		}
	}
}

// Close stops Run at its next iteration. The radio is left open for its owner.
func (l *Listener) Close() error {
	l.closed.Store(true)
	return nil
}

func (l *Listener) receiveOnce(ctx context.Context) ([]byte, error) {
	rxCtx, cancel := context.WithTimeout(ctx, l.config.ReceiveTimeout)
	defer cancel()
	frame, err := l.Radio().Receive(rxCtx)
	if err != nil {
		return nil, fmt.Errorf("receive failed: %w", err)
	}
	return frame, nil
}

func isIdle(err error) bool {
	return wakebeacon.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded)
}

// handleReceiveError decides whether a receive error is tolerated, triggers
// recovery or ends the loop. A recovery only counts as confirmed once the
// radio delivers data again; until then back-to-back recoveries are spaced
// by RecoveryBackoff and limited to MaxRecoveryAttempts.
func (l *Listener) handleReceiveError(
	ctx context.Context,
	err error,
	consecutive, unconfirmed int,
) (recovered bool, fatal error) {
	rc := l.config.Recovery
	if wakebeacon.IsRetryable(err) && consecutive < rc.MaxConsecutiveErrors {
		wakebeacon.Debugf("receive error %d/%d: %v", consecutive, rc.MaxConsecutiveErrors, err)
		return false, nil
	}

	l.stateMu.RLock()
	recoverer := l.recoverer
	l.stateMu.RUnlock()
	if !rc.Enabled || recoverer == nil {
		return false, err
	}

	if unconfirmed >= max(rc.MaxRecoveryAttempts, 1) {
		return false, fmt.Errorf("radio recovery failed: %w", errors.Join(err, ErrRecoveryExhausted))
	}

	l.setState(StateRecovering)
	if unconfirmed > 0 {
		wakebeacon.Debugf("radio still failing after %d recoveries, backing off", unconfirmed)
		if sleepErr := sleepCtx(ctx, rc.RecoveryBackoff); sleepErr != nil {
			return false, sleepErr
		}
	}
	wakebeacon.Debugf("radio unresponsive, attempting recovery: %v", err)
	if recErr := recoverer.AttemptRecovery(ctx); recErr != nil {
		return false, fmt.Errorf("radio recovery failed: %w", errors.Join(err, recErr))
	}

	l.stateMu.Lock()
	l.radio = recoverer.Radio()
	l.stats.Recoveries++
	l.state = StateListening
	l.stateMu.Unlock()
	return true, nil
}

func (l *Listener) dispatch(ctx context.Context, events []wakebeacon.Event) error {
	for _, ev := range events {
		switch ev.Kind {
		case wakebeacon.EventTransmitRequested:
			l.relay(ctx, ev.Frame)
		case wakebeacon.EventWoken:
			if err := l.wake(ev.Payload); err != nil {
				return err
			}
		case wakebeacon.EventEnabled, wakebeacon.EventDisabled:
			logLifecycle([]wakebeacon.Event{ev})
		}
	}
	return nil
}

func (l *Listener) relay(ctx context.Context, txFrame []byte) {
	if err := l.transmit(ctx, txFrame); err != nil {
		wakebeacon.Debugf("relay transmit failed: %v", err)
		l.stateMu.Lock()
		l.stats.RelayFailures++
		l.stateMu.Unlock()
		return
	}
	if frame, err := wakebeacon.ParseTxFrame(txFrame); err == nil {
		l.recordCapture(time.Now(), frame)
	}

	l.stateMu.Lock()
	l.stats.Relayed++
	cb := l.OnRelay
	l.stateMu.Unlock()
	if cb != nil {
		cb(txFrame)
	}
}

func (l *Listener) wake(p wakebeacon.WakePayload) error {
	l.stateMu.Lock()
	l.stats.Woken++
	l.stats.LastWake = time.Now()
	l.stats.LastPayload = p
	cb := l.OnWake
	l.stateMu.Unlock()

	if cb == nil {
		return nil
	}
	return safeCallCallback(cb, p, "OnWake")
}

func (l *Listener) transmit(ctx context.Context, txFrame []byte) error {
	return wakebeacon.RetryWithConfig(ctx, l.config.Transmit, func() error {
		return l.Radio().Transmit(ctx, txFrame)
	})
}

func (l *Listener) recordDrop(frame []byte, err error) {
	l.stateMu.Lock()
	if errors.Is(err, wakebeacon.ErrFilterDisabled) {
		l.stats.Disabled++
	} else if reason, ok := wakebeacon.DropReasonOf(err); ok {
		l.stats.Dropped[reason]++
	}
	cb := l.OnDrop
	l.stateMu.Unlock()

	if cb != nil {
		cb(append([]byte(nil), frame...), err)
	}
}

func (l *Listener) recordCapture(ts time.Time, frame []byte) {
	l.stateMu.RLock()
	capture := l.capture
	l.stateMu.RUnlock()
	if capture == nil {
		return
	}
	if err := capture.WriteFrame(ts, frame); err != nil {
		wakebeacon.Debugf("capture write failed: %v", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (l *Listener) setState(s State) {
	l.stateMu.Lock()
	l.state = s
	l.stateMu.Unlock()
}

// safeCallCallback executes a callback with panic recovery
func safeCallCallback(
	callback func(wakebeacon.WakePayload) error,
	p wakebeacon.WakePayload,
	callbackName string,
) error {
	var callbackErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				callbackErr = fmt.Errorf("%s callback panicked: %v", callbackName, r)
			}
		}()
		callbackErr = callback(p)
	}()
	if callbackErr != nil {
		return fmt.Errorf("%s callback failed: %w", callbackName, callbackErr)
	}
	return nil
}

func logLifecycle(events []wakebeacon.Event) {
	for _, ev := range events {
		switch ev.Kind {
		case wakebeacon.EventEnabled:
			wakebeacon.Debugf("listener: filter enabled (%s)", ev.Config)
		case wakebeacon.EventDisabled:
			wakebeacon.Debugln("listener: filter disabled")
		case wakebeacon.EventWoken, wakebeacon.EventTransmitRequested:
		}
	}
}
