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

// Package radiotest provides an in-memory 802.15.4 broadcast medium and
// device simulators for tests.
//
// A [Medium] connects any number of [Node] radios. Links are explicit and
// bidirectional, so multi-hop topologies such as a chain A-B-C can be built
// where A and C cannot hear each other. Nodes only hear frames sent on
// their current channel. The medium appends the FCS on transmit the way
// real radio hardware does, and nodes verify and strip it on receive.
package radiotest

import (
	"context"
	"errors"

	"github.com/ZaparooProject/go-wakebeacon"
	"github.com/ZaparooProject/go-wakebeacon/internal/fcs"
	"github.com/ZaparooProject/go-wakebeacon/internal/syncutil"
)

const rxQueueSize = 64

// Transmission is one frame put on the air.
type Transmission struct {
	From    string
	PSDU    []byte
	Channel uint8
}

// Medium is a shared broadcast channel between simulated nodes.
type Medium struct {
	links map[*Node]map[*Node]struct{}
	log   []Transmission
	nodes []*Node
	mu    syncutil.Mutex
}

// NewMedium creates an empty medium.
func NewMedium() *Medium {
	return &Medium{links: make(map[*Node]map[*Node]struct{})}
}

// NewNode attaches a new radio to the medium, tuned to channel 11.
func (m *Medium) NewNode(name string) *Node {
	n := &Node{
		medium:  m,
		name:    name,
		rx:      make(chan []byte, rxQueueSize),
		done:    make(chan struct{}),
		channel: 11,
	}
	m.mu.Lock()
	m.nodes = append(m.nodes, n)
	m.links[n] = make(map[*Node]struct{})
	m.mu.Unlock()
	return n
}

// Link lets a and b hear each other.
func (m *Medium) Link(a, b *Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[a][b] = struct{}{}
	m.links[b][a] = struct{}{}
}

// Chain links the nodes in order: each node hears only its neighbours.
func (m *Medium) Chain(nodes ...*Node) {
	for i := 1; i < len(nodes); i++ {
		m.Link(nodes[i-1], nodes[i])
	}
}

// Mesh links every pair of nodes.
func (m *Medium) Mesh(nodes ...*Node) {
	for i := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			m.Link(nodes[i], nodes[j])
		}
	}
}

// Transmissions returns every frame put on the air, in order.
func (m *Medium) Transmissions() []Transmission {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transmission, len(m.log))
	for i, t := range m.log {
		t.PSDU = append([]byte(nil), t.PSDU...)
		out[i] = t
	}
	return out
}

// Inject puts psdu on the air from outside the medium. Every node tuned to
// channel hears it, whatever the links.
func (m *Medium) Inject(channel uint8, psdu []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, Transmission{From: "inject", Channel: channel, PSDU: append([]byte(nil), psdu...)})
	for _, n := range m.nodes {
		n.deliver(channel, psdu)
	}
}

func (m *Medium) broadcast(from *Node, channel uint8, psdu []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, Transmission{From: from.name, Channel: channel, PSDU: append([]byte(nil), psdu...)})
	for n := range m.links[from] {
		n.deliver(channel, psdu)
	}
}

// Node is a simulated radio attached to a Medium. It implements
// wakebeacon.Radio.
type Node struct {
	medium    *Medium
	rx        chan []byte
	done      chan struct{}
	txErrs    []error
	name      string
	mu        syncutil.Mutex
	channel   uint8
	closed    bool
	corruptRx int
}

// Name returns the node name.
func (n *Node) Name() string {
	return n.name
}

// Transmit implements wakebeacon.Radio
func (n *Node) Transmit(ctx context.Context, txFrame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mpdu, err := wakebeacon.ParseTxFrame(txFrame)
	if err != nil {
		return wakebeacon.NewRadioError("Transmit", n.name, err, wakebeacon.ErrorTypePermanent)
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return wakebeacon.NewRadioError("Transmit", n.name, wakebeacon.ErrRadioClosed, wakebeacon.ErrorTypePermanent)
	}
	if len(n.txErrs) > 0 {
		err := n.txErrs[0]
		n.txErrs = n.txErrs[1:]
		n.mu.Unlock()
		return err
	}
	channel := n.channel
	n.mu.Unlock()

	n.medium.broadcast(n, channel, fcs.Seal(mpdu))
	return nil
}

// ReceivePSDU returns the next frame heard, FCS included.
func (n *Node) ReceivePSDU(ctx context.Context) ([]byte, error) {
	select {
	case psdu := <-n.rx:
		return psdu, nil
	case <-n.done:
		return nil, wakebeacon.NewRadioError("Receive", n.name, wakebeacon.ErrRadioClosed, wakebeacon.ErrorTypePermanent)
	case <-ctx.Done():
		return nil, wakebeacon.NewTimeoutError("Receive", n.name)
	}
}

// Receive implements wakebeacon.Radio
func (n *Node) Receive(ctx context.Context) ([]byte, error) {
	psdu, err := n.ReceivePSDU(ctx)
	if err != nil {
		return nil, err
	}
	mpdu, err := fcs.Strip(psdu)
	if err != nil {
		return nil, wakebeacon.NewFCSMismatchError("Receive", n.name)
	}
	return mpdu, nil
}

// SetChannel implements wakebeacon.Radio
func (n *Node) SetChannel(channel uint8) error {
	if err := wakebeacon.ValidateChannel(channel); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return wakebeacon.NewRadioError("SetChannel", n.name, wakebeacon.ErrRadioClosed, wakebeacon.ErrorTypePermanent)
	}
	n.channel = channel
	return nil
}

// Channel returns the current channel.
func (n *Node) Channel() uint8 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.channel
}

// Close implements wakebeacon.Radio
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.closed {
		n.closed = true
		close(n.done)
	}
	return nil
}

// Type implements wakebeacon.Radio
func (*Node) Type() wakebeacon.RadioType {
	return wakebeacon.RadioSimulated
}

// FailTransmit makes the next Transmit calls return errs, one per call.
func (n *Node) FailTransmit(errs ...error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.txErrs = append(n.txErrs, errs...)
}

// CorruptNextRx flips a bit in the next count frames this node hears, so
// their FCS no longer matches.
func (n *Node) CorruptNextRx(count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.corruptRx += count
}

// Pending returns the number of frames waiting to be received.
func (n *Node) Pending() int {
	return len(n.rx)
}

func (n *Node) deliver(channel uint8, psdu []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed || n.channel != channel {
		return
	}
	frame := append([]byte(nil), psdu...)
	if n.corruptRx > 0 && len(frame) > 0 {
		n.corruptRx--
		frame[0] ^= 0x01
	}
	select {
	case n.rx <- frame:
	default:
		// receive buffer overflow; the frame is lost as on real hardware
	}
}

// ErrInjected is a convenient transient error for FailTransmit.
var ErrInjected = wakebeacon.NewRadioError("Transmit", "radiotest", errors.New("injected failure"),
	wakebeacon.ErrorTypeTransient)
