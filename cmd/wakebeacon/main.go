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

// Command wakebeacon runs a wake beacon node on an 802.15.4 radio: it
// listens for wake beacons, relays them and optionally originates one.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/ZaparooProject/go-wakebeacon"
	"github.com/ZaparooProject/go-wakebeacon/detection"
	_ "github.com/ZaparooProject/go-wakebeacon/detection/uart"
	"github.com/ZaparooProject/go-wakebeacon/internal/capture"
	"github.com/ZaparooProject/go-wakebeacon/internal/config"
	"github.com/ZaparooProject/go-wakebeacon/listener"
	"github.com/ZaparooProject/go-wakebeacon/transport/spi"
	"github.com/ZaparooProject/go-wakebeacon/transport/uart"
)

type options struct {
	configPath  string
	devicePath  string
	transport   string
	pan         string
	capturePath string
	replayPath  string
	reportPath  string
	channel     int
	counter     int
	ttl         int
	simulate    int
	beacons     int
	send        bool
	once        bool
	borderRtr   bool
	debug       bool
	sessionLog  bool
}

// Package-level flag variables
var (
	flagConfigPath  string
	flagDevicePath  string
	flagTransport   string
	flagPAN         string
	flagCapturePath string
	flagReplayPath  string
	flagReportPath  string
	flagChannel     int
	flagCounter     int
	flagTTL         int
	flagSimulate    int
	flagBeacons     int
	flagSend        bool
	flagOnce        bool
	flagBorderRtr   bool
	flagDebug       bool
	flagSessionLog  bool
)

func init() {
	flag.StringVar(&flagConfigPath, "config", "", "YAML configuration file")
	flag.StringVar(&flagDevicePath, "device", "", "Radio device path (auto-detect if empty)")
	flag.StringVar(&flagTransport, "transport", "", "Radio transport: auto, uart or spi")
	flag.StringVar(&flagPAN, "pan", "", "PAN identifier, e.g. 0x1234")
	flag.IntVar(&flagChannel, "channel", -1, "802.15.4 channel (0-26)")
	flag.BoolVar(&flagBorderRtr, "border-router", false, "Mark this node as the border router")
	flag.BoolVar(&flagSend, "send", false, "Originate a wake beacon after enabling the filter")
	flag.BoolVar(&flagOnce, "once", false, "Exit after sending instead of listening")
	flag.IntVar(&flagCounter, "counter", -1, "Freshness counter of the originated beacon")
	flag.IntVar(&flagTTL, "ttl", -1, "Hop budget of the originated beacon")
	flag.StringVar(&flagCapturePath, "capture", "", "Write received and transmitted frames to a pcap file")
	flag.StringVar(&flagReplayPath, "replay", "", "Run the frames of a pcap file through the filter and exit")
	flag.IntVar(&flagSimulate, "simulate", 0, "Simulate a chain of N nodes in memory and exit")
	flag.IntVar(&flagBeacons, "beacons", 3, "Number of beacons originated in simulation mode")
	flag.StringVar(&flagReportPath, "report", "", "Write the simulation report as JSON to this file")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
	flag.BoolVar(&flagSessionLog, "session-log", false, "Write a debug session log in the current directory")
}

func parseOptions() *options {
	opts := &options{
		configPath:  flagConfigPath,
		devicePath:  flagDevicePath,
		transport:   flagTransport,
		pan:         flagPAN,
		capturePath: flagCapturePath,
		replayPath:  flagReplayPath,
		reportPath:  flagReportPath,
		channel:     flagChannel,
		counter:     flagCounter,
		ttl:         flagTTL,
		simulate:    flagSimulate,
		beacons:     flagBeacons,
		send:        flagSend,
		once:        flagOnce,
		borderRtr:   flagBorderRtr,
		debug:       flagDebug,
		sessionLog:  flagSessionLog,
	}

	if opts.debug {
		wakebeacon.SetDebugEnabled(true)
	}
	return opts
}

// loadConfig reads the configuration file, if any, and applies flag
// overrides on top of it.
func loadConfig(opts *options) (*config.Config, error) {
	cfg := &config.Config{}
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := applyOverrides(cfg, opts); err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	config.Normalize(cfg)
	return cfg, nil
}

func applyOverrides(cfg *config.Config, opts *options) error {
	if opts.pan != "" {
		pan, err := strconv.ParseUint(opts.pan, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid -pan %q: %w", opts.pan, err)
		}
		cfg.Filter.PANID = uint16(pan)
	}
	if opts.channel >= 0 {
		if opts.channel > wakebeacon.MaxChannel {
			return fmt.Errorf("invalid -channel %d", opts.channel)
		}
		cfg.Filter.Channel = uint8(opts.channel)
	}
	if opts.borderRtr {
		cfg.Filter.BorderRouter = true
	}
	if opts.devicePath != "" {
		cfg.Radio.Device = opts.devicePath
	}
	if opts.transport != "" {
		cfg.Radio.Transport = opts.transport
	}
	if opts.capturePath != "" {
		cfg.Capture.Path = opts.capturePath
	}
	if opts.counter >= 0 {
		if opts.counter > 0xFF {
			return fmt.Errorf("invalid -counter %d", opts.counter)
		}
		cfg.Beacon.Counter = uint8(opts.counter)
	}
	if opts.ttl >= 0 {
		if opts.ttl > 0xFF {
			return fmt.Errorf("invalid -ttl %d", opts.ttl)
		}
		ttl := uint8(opts.ttl)
		cfg.Beacon.TTL = &ttl
	}
	return nil
}

// openRadio opens the configured radio and returns a function that reopens
// it for recovery.
func openRadio(ctx context.Context, cfg *config.Config) (wakebeacon.Radio, listener.ReopenFunc, error) {
	transport, path := cfg.Radio.Transport, cfg.Radio.Device

	if path == "" && transport != config.TransportSPI {
		_, _ = fmt.Println("Auto-detecting 802.15.4 radios...")
		detectOpts := detection.DefaultOptions()
		device, err := detection.DetectFirst(ctx, &detectOpts)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to detect a radio: %w", err)
		}
		_, _ = fmt.Printf("Using %s\n", device)
		transport, path = device.Transport, device.Path
	}

	open := func() (wakebeacon.Radio, error) {
		switch transport {
		case config.TransportSPI:
			freq := spi.DefaultFrequency
			if cfg.Radio.SPIHz > 0 {
				freq = physic.Frequency(cfg.Radio.SPIHz) * physic.Hertz
			}
			radio, err := spi.New(path, freq)
			if err != nil {
				return nil, fmt.Errorf("failed to create SPI radio: %w", err)
			}
			return radio, nil
		default:
			radio, err := uart.New(path, uart.WithBaudRate(cfg.Radio.BaudRate))
			if err != nil {
				return nil, fmt.Errorf("failed to create UART radio: %w", err)
			}
			return radio, nil
		}
	}

	radio, err := open()
	if err != nil {
		return nil, nil, err
	}
	return radio, open, nil
}

// newListener builds a listener on radio from cfg and wires the console
// callbacks.
func newListener(radio wakebeacon.Radio, cfg *config.Config) (*listener.Listener, error) {
	filterOpts, err := cfg.FilterOptions()
	if err != nil {
		return nil, err
	}
	l, err := listener.New(radio, cfg.ListenerSettings(), filterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}

	l.SetOnWake(func(p wakebeacon.WakePayload) error {
		origin := "node"
		if p.BorderRouterOrigin() {
			origin = "border router"
		}
		_, _ = fmt.Printf("%s WAKE counter=%d ttl=%d origin=%s\n",
			time.Now().Format("15:04:05.000"), p.Counter, p.TTL, origin)
		return nil
	})
	l.SetOnRelay(func(txFrame []byte) {
		if frame, err := wakebeacon.ParseTxFrame(txFrame); err == nil {
			if hdr, p, err := wakebeacon.DecodeFrame(frame); err == nil {
				_, _ = fmt.Printf("%s RELAY seq=%d ttl=%d\n", time.Now().Format("15:04:05.000"), hdr.Sequence, p.TTL)
			}
		}
	})
	l.SetOnDrop(func(_ []byte, err error) {
		wakebeacon.Debugf("dropped: %v", err)
	})
	return l, nil
}

// closeListenerRadio closes the radio the listener currently holds, which
// differs from the one opened at startup after a reopen.
func closeListenerRadio(l *listener.Listener) error {
	return l.Radio().Close()
}

func runListen(ctx context.Context, cfg *config.Config, opts *options) error {
	radio, reopen, err := openRadio(ctx, cfg)
	if err != nil {
		return err
	}

	l, err := newListener(radio, cfg)
	if err != nil {
		_ = radio.Close()
		return err
	}
	defer func() {
		if err := closeListenerRadio(l); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close radio: %v\n", err)
		}
	}()
	rc := cfg.ListenerSettings().Recovery
	l.SetRecoverer(listener.NewDefaultRecoverer(radio, cfg.Filter.Channel, reopen,
		rc.RecoveryBackoff, rc.MaxRecoveryAttempts))

	if cfg.Capture.Path != "" {
		w, err := capture.Create(cfg.Capture.Path)
		if err != nil {
			return err
		}
		defer func() {
			if err := w.Close(); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "Failed to close capture: %v\n", err)
			}
		}()
		l.SetCapture(w)
	}

	if err := l.Enable(cfg.FilterSettings()); err != nil {
		return err
	}
	_, _ = fmt.Printf("Wake filter enabled: %s\n", l.Filter().Config())

	if opts.send {
		counter, ttl := cfg.BeaconPayload()
		p, err := l.Originate(ctx, counter, ttl)
		if err != nil {
			return err
		}
		_, _ = fmt.Printf("Sent wake beacon: %s\n", p)
		if opts.once {
			return nil
		}
	}

	_, _ = fmt.Println("Listening for wake beacons. Press Ctrl+C to stop...")
	err = l.Run(ctx)
	printStats(l.Stats())
	return err
}

func printStats(s listener.Stats) {
	_, _ = fmt.Printf("Received %d, woken %d, relayed %d (%d failed), dropped %d, disabled %d, FCS errors %d\n",
		s.Received, s.Woken, s.Relayed, s.RelayFailures, s.DroppedTotal(), s.Disabled, s.FCSErrors)
}

// sessionInfo describes a loaded node configuration for the session log.
func sessionInfo(cfg *config.Config, mode string) wakebeacon.SessionInfo {
	filter := cfg.FilterSettings()
	// loadConfig has validated the policy name.
	policy, _ := wakebeacon.ParseReplayPolicy(cfg.Filter.ReplayPolicy)
	return wakebeacon.SessionInfo{
		Mode:   mode,
		Node:   cfg.Radio.Device,
		Filter: &filter,
		Replay: policy,
		Relay:  cfg.Filter.Relay == nil || *cfg.Filter.Relay,
	}
}

// openSessionLog starts the session log when requested and returns the
// function that ends it.
func openSessionLog(opts *options, info wakebeacon.SessionInfo) (func(), error) {
	if !opts.sessionLog {
		return func() {}, nil
	}
	path, err := wakebeacon.InitSessionLog(info)
	if err != nil {
		return nil, err
	}
	_, _ = fmt.Printf("Session log: %s\n", path)
	return func() { _ = wakebeacon.CloseSessionLog() }, nil
}

func run(ctx context.Context, opts *options) error {
	if opts.simulate > 0 {
		closeLog, err := openSessionLog(opts, wakebeacon.SessionInfo{Mode: "simulate"})
		if err != nil {
			return err
		}
		defer closeLog()
		return runSimulation(ctx, opts)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	mode := "listen"
	if opts.replayPath != "" {
		mode = "replay"
	}
	closeLog, err := openSessionLog(opts, sessionInfo(cfg, mode))
	if err != nil {
		return err
	}
	defer closeLog()

	if opts.replayPath != "" {
		return runReplay(ctx, cfg, opts.replayPath)
	}
	return runListen(ctx, cfg, opts)
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	opts := parseOptions()

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
