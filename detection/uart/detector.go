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

// Package uart detects USB/serial 802.15.4 dongles. Importing it registers
// the detector with the detection package.
package uart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ZaparooProject/go-wakebeacon"
	"github.com/ZaparooProject/go-wakebeacon/detection"
	"github.com/ZaparooProject/go-wakebeacon/transport/uart"
	"go.bug.st/serial/enumerator"
)

// probeChannel is the channel the probe tunes to. Dongles start there after
// reset, so a successful probe leaves them as found.
const probeChannel = 11

// knownDongles maps VID:PID to the boards that ship 802.15.4 firmware.
var knownDongles = map[string]string{
	"0451:16A8": "TI CC2531 USB dongle",
	"1915:521F": "Nordic nRF52840 Dongle",
	"1915:CAFE": "Nordic nRF52840 802.15.4 firmware",
	"1CF1:0030": "dresden elektronik ConBee II",
	"10C4:EA60": "Silicon Labs CP210x (Sonoff ZBDongle-P)",
	"1A86:55D4": "WCH CH9102 (Sonoff ZBDongle-E)",
}

var dongleKeywords = []string{"802.15.4", "zigbee", "thread", "cc2531", "cc2652", "nrf52840", "conbee"}

// Seams for tests.
var (
	listPortsFn   = enumerator.GetDetailedPortsList
	probeDeviceFn = probeDevice
)

type detector struct{}

// New creates a new UART detector
func New() detection.Detector {
	return &detector{}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return string(wakebeacon.RadioUART)
}

// Detect searches for dongles on serial ports
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	ports, err := enumeratePorts()
	if err != nil {
		return nil, err
	}

	var devices []detection.DeviceInfo
	for i := range ports {
		select {
		case <-ctx.Done():
			return devices, nil
		default:
		}
		if d.skip(&ports[i], opts) {
			continue
		}
		if device, ok := d.processPort(ctx, &ports[i], opts); ok {
			devices = append(devices, device)
		}
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

// serialPort is the subset of enumerator.PortDetails the detector uses.
type serialPort struct {
	Path         string
	VIDPID       string
	Product      string
	SerialNumber string
	IsUSB        bool
}

func enumeratePorts() ([]serialPort, error) {
	details, err := listPortsFn()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	ports := make([]serialPort, 0, len(details))
	for _, pd := range details {
		if pd == nil {
			continue
		}
		p := serialPort{
			Path:         pd.Name,
			Product:      pd.Product,
			SerialNumber: pd.SerialNumber,
			IsUSB:        pd.IsUSB,
		}
		if pd.IsUSB {
			p.VIDPID = detection.NormalizeVIDPID(pd.VID + ":" + pd.PID)
		}
		ports = append(ports, p)
	}
	if len(ports) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return ports, nil
}

func (*detector) skip(port *serialPort, opts *detection.Options) bool {
	if port.VIDPID != "" && detection.IsBlocked(port.VIDPID, opts.Blocklist) {
		return true
	}
	return detection.IsPathIgnored(port.Path, opts.IgnorePaths)
}

// processPort handles a single port's detection logic
func (d *detector) processPort(ctx context.Context, port *serialPort,
	opts *detection.Options,
) (detection.DeviceInfo, bool) {
	likely := isLikelyDongle(port)

	switch opts.Mode {
	case detection.Passive:
		if !likely {
			return detection.DeviceInfo{}, false
		}
		return d.createDeviceInfo(port, detection.Medium), true

	case detection.Safe, detection.Full:
		probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if probeDeviceFn(probeCtx, port.Path) {
			return d.createDeviceInfo(port, detection.High), true
		}
		// A dongle that does not answer may be running other firmware.
		if opts.Mode == detection.Full {
			confidence := detection.Low
			if likely {
				confidence = detection.Medium
			}
			return d.createDeviceInfo(port, confidence), true
		}
		return detection.DeviceInfo{}, false

	default:
		return detection.DeviceInfo{}, false
	}
}

func (*detector) createDeviceInfo(port *serialPort, confidence detection.Confidence) detection.DeviceInfo {
	device := detection.DeviceInfo{
		Transport:  string(wakebeacon.RadioUART),
		Path:       port.Path,
		Name:       port.Product,
		Confidence: confidence,
		Metadata:   make(map[string]string),
	}
	if name, ok := knownDongles[port.VIDPID]; ok {
		device.Name = name
	}
	if port.VIDPID != "" {
		device.Metadata["vidpid"] = port.VIDPID
	}
	if port.Product != "" {
		device.Metadata["product"] = port.Product
	}
	if port.SerialNumber != "" {
		device.Metadata["serial"] = port.SerialNumber
	}
	return device
}

// isLikelyDongle checks the USB descriptor against known 802.15.4 boards.
func isLikelyDongle(port *serialPort) bool {
	if _, ok := knownDongles[port.VIDPID]; ok {
		return true
	}
	lowerProduct := strings.ToLower(port.Product)
	for _, keyword := range dongleKeywords {
		if strings.Contains(lowerProduct, keyword) {
			return true
		}
	}
	return false
}

// probeDevice opens the port once and asks the dongle to tune to
// probeChannel. Only a well-formed status reply counts. Failed probes are
// not retried so unrelated devices see a single write at most.
func probeDevice(ctx context.Context, path string) bool {
	radio, err := uart.New(path)
	if err != nil {
		return false
	}
	defer func() { _ = radio.Close() }()

	done := make(chan error, 1)
	go func() { done <- radio.SetChannel(probeChannel) }()
	select {
	case err := <-done:
		return err == nil
	case <-ctx.Done():
		return false
	}
}
