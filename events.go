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

import "fmt"

// EventKind identifies a filter notification.
type EventKind int

const (
	// EventEnabled is raised by Enable and carries the applied configuration.
	EventEnabled EventKind = iota
	// EventDisabled is raised by Disable and carries nothing.
	EventDisabled
	// EventWoken is raised for every accepted wake frame and carries its payload.
	EventWoken
	// EventTransmitRequested is raised when an accepted frame must be relayed
	// and carries the length-prefixed frame to transmit.
	EventTransmitRequested
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case EventEnabled:
		return "enabled"
	case EventDisabled:
		return "disabled"
	case EventWoken:
		return "woken"
	case EventTransmitRequested:
		return "transmit-requested"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a notification raised by a Filter. Only the fields relevant to
// Kind are set. Every event owns its data: Frame is a fresh slice the
// handler may keep.
type Event struct {
	// Frame is the length-prefixed relay frame of EventTransmitRequested.
	Frame []byte
	// Config is the configuration applied by EventEnabled.
	Config FilterConfig
	// Payload is the received payload of EventWoken.
	Payload WakePayload
	Kind    EventKind
}

// EventSink receives filter notifications. HandleEvent runs synchronously
// inside the Enable, Disable or Decode call that raised the event, after the
// filter has released its lock.
type EventSink interface {
	HandleEvent(ev Event) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ev Event) error

// HandleEvent calls f(ev).
func (f EventSinkFunc) HandleEvent(ev Event) error {
	return f(ev)
}

// NopSink discards every event. It is the default sink.
type NopSink struct{}

// HandleEvent implements EventSink.
func (NopSink) HandleEvent(Event) error { return nil }

// Callbacks is an EventSink dispatching each kind to its own function.
// Nil functions are skipped.
type Callbacks struct {
	OnEnabled           func(cfg FilterConfig) error
	OnDisabled          func() error
	OnWoken             func(p WakePayload) error
	OnTransmitRequested func(frame []byte) error
}

// HandleEvent implements EventSink.
func (c *Callbacks) HandleEvent(ev Event) error {
	switch ev.Kind {
	case EventEnabled:
		if c.OnEnabled != nil {
			return c.OnEnabled(ev.Config)
		}
	case EventDisabled:
		if c.OnDisabled != nil {
			return c.OnDisabled()
		}
	case EventWoken:
		if c.OnWoken != nil {
			return c.OnWoken(ev.Payload)
		}
	case EventTransmitRequested:
		if c.OnTransmitRequested != nil {
			return c.OnTransmitRequested(ev.Frame)
		}
	}
	return nil
}

// MultiSink fans every event out to each sink in order. The first error is
// returned after all sinks have run.
type MultiSink []EventSink

// HandleEvent implements EventSink.
func (m MultiSink) HandleEvent(ev Event) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.HandleEvent(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
