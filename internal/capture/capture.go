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

// Package capture records wake frames to pcap files readable by Wireshark
// and reads them back for offline replay.
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ZaparooProject/go-wakebeacon/internal/fcs"
	"github.com/ZaparooProject/go-wakebeacon/internal/syncutil"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// LinkTypeIEEE802154WithFCS is LINKTYPE_IEEE802_15_4_WITHFCS: raw 802.15.4
// frames followed by their two-byte FCS.
const LinkTypeIEEE802154WithFCS layers.LinkType = 195

// snapLen covers the largest 802.15.4 PSDU.
const snapLen = 128

// ErrLinkType is returned when reading a capture of another link type.
var ErrLinkType = errors.New("capture is not an IEEE 802.15.4 capture with FCS")

// Writer appends frames to a pcap stream. It is safe for concurrent use.
type Writer struct {
	pcap   *pcapgo.Writer
	closer io.Closer
	mu     syncutil.Mutex
}

// NewWriter writes the pcap file header to w and returns a Writer.
func NewWriter(w io.Writer) (*Writer, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, LinkTypeIEEE802154WithFCS); err != nil {
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}
	return &Writer{pcap: pw}, nil
}

// Create creates (or truncates) a pcap file at path.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("failed to create capture file: %w", err)
	}
	w, err := NewWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// WriteFrame records mpdu with a freshly computed FCS, as it was on the air.
func (w *Writer) WriteFrame(ts time.Time, mpdu []byte) error {
	psdu := fcs.Seal(mpdu)
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(psdu),
		Length:        len(psdu),
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.pcap.WritePacket(ci, psdu); err != nil {
		return fmt.Errorf("failed to write capture packet: %w", err)
	}
	return nil
}

// Close closes the underlying file if the Writer opened it.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closer == nil {
		return nil
	}
	err := w.closer.Close()
	w.closer = nil
	return err
}

// Packet is one frame read from a capture.
type Packet struct {
	Timestamp time.Time
	// Frame is the MPDU without FCS.
	Frame []byte
	// FCSValid reports whether the recorded FCS matched the frame.
	FCSValid bool
}

// ReadAll reads every packet from a pcap stream written by Writer or any
// tool using LINKTYPE_IEEE802_15_4_WITHFCS.
func ReadAll(r io.Reader) ([]Packet, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read pcap header: %w", err)
	}
	if pr.LinkType() != LinkTypeIEEE802154WithFCS {
		return nil, fmt.Errorf("%w: link type %d", ErrLinkType, pr.LinkType())
	}

	var packets []Packet
	for {
		data, ci, err := pr.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return packets, nil
		}
		if err != nil {
			return packets, fmt.Errorf("failed to read capture packet %d: %w", len(packets)+1, err)
		}
		p := Packet{Timestamp: ci.Timestamp}
		if mpdu, err := fcs.Strip(data); err == nil {
			p.Frame = append([]byte(nil), mpdu...)
			p.FCSValid = true
		} else if len(data) >= fcs.Length {
			p.Frame = append([]byte(nil), data[:len(data)-fcs.Length]...)
		}
		packets = append(packets, p)
	}
}

// Open reads every packet from the capture file at path.
func Open(path string) ([]Packet, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadAll(f)
}
