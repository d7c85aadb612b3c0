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

package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ZaparooProject/go-wakebeacon"
	"github.com/ZaparooProject/go-wakebeacon/internal/radiotest"
	"github.com/ZaparooProject/go-wakebeacon/listener"
)

const (
	simPAN     = 0x1234
	simChannel = 11
	// simSettle is how long the medium must stay quiet before a beacon is
	// considered fully propagated.
	simSettle = 50 * time.Millisecond
)

// SimulationReport is the JSON summary of a simulation run.
type SimulationReport struct {
	Started       time.Time       `json:"started"`
	Nodes         []NodeReport    `json:"nodes"`
	Transmissions []AirFrameEntry `json:"transmissions"`
	Duration      time.Duration   `json:"duration_ns"`
	Beacons       int             `json:"beacons"`
	TTL           uint8           `json:"ttl"`
	Success       bool            `json:"success"`
}

// NodeReport holds the counters of one simulated node.
type NodeReport struct {
	Name         string `json:"name"`
	Hops         int    `json:"hops"`
	Woken        uint64 `json:"woken"`
	Relayed      uint64 `json:"relayed"`
	Dropped      uint64 `json:"dropped"`
	ExpectedWake bool   `json:"expected_wake"`
}

// AirFrameEntry is one frame put on the simulated air.
type AirFrameEntry struct {
	From    string `json:"from"`
	DataHex string `json:"data_hex"`
}

type simNode struct {
	node     *radiotest.Node
	listener *listener.Listener
	hops     int
}

func printSimulationBanner(nodes, beacons int, ttl uint8) {
	_, _ = fmt.Println("================================================================================")
	_, _ = fmt.Println("                       Wake Beacon Mesh Simulation Mode")
	_, _ = fmt.Println("================================================================================")
	_, _ = fmt.Printf("Chain of %d nodes, %d beacons, TTL %d\n", nodes, beacons, ttl)
}

func runSimulation(ctx context.Context, opts *options) error {
	ttl := wakebeacon.DefaultTTL
	if opts.ttl >= 0 && opts.ttl <= 0xFF {
		ttl = uint8(opts.ttl)
	}
	printSimulationBanner(opts.simulate, opts.beacons, ttl)

	report, err := simulateChain(ctx, opts.simulate, opts.beacons, ttl)
	if err != nil {
		return err
	}
	printSimulationSummary(report)

	if opts.reportPath != "" {
		if err := writeReport(opts.reportPath, report); err != nil {
			return err
		}
		_, _ = fmt.Printf("Report written to %s\n", opts.reportPath)
	}
	if !report.Success {
		return errors.New("simulation did not wake the expected nodes")
	}
	return nil
}

// simulateChain builds a chain of n nodes, originates beacons from the
// first one and reports which nodes woke up. Node i is i hops from the
// origin, so it must wake exactly when i <= ttl+1.
func simulateChain(ctx context.Context, n, beacons int, ttl uint8) (*SimulationReport, error) {
	if n < 2 {
		return nil, fmt.Errorf("simulation needs at least 2 nodes, got %d", n)
	}
	if beacons < 1 || beacons > 0xFE {
		return nil, fmt.Errorf("beacon count %d out of range", beacons)
	}

	medium := radiotest.NewMedium()
	nodes := make([]*simNode, n)
	radios := make([]*radiotest.Node, n)
	for i := range nodes {
		radios[i] = medium.NewNode(fmt.Sprintf("node%d", i))
	}
	medium.Chain(radios...)

	cfg := listener.DefaultConfig()
	cfg.ReceiveTimeout = 20 * time.Millisecond

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i, radio := range radios {
		l, err := listener.New(radio, cfg)
		if err != nil {
			return nil, err
		}
		filterCfg := wakebeacon.FilterConfig{PANID: simPAN, Channel: simChannel, BorderRouter: i == 0}
		if err := l.Enable(filterCfg); err != nil {
			return nil, err
		}
		nodes[i] = &simNode{node: radio, listener: l, hops: i}
		if i == 0 {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				wakebeacon.Debugf("%s stopped: %v", radio.Name(), err)
			}
		}()
	}

	report := &SimulationReport{Started: time.Now(), Beacons: beacons, TTL: ttl}
	for counter := range beacons {
		if _, err := nodes[0].listener.Originate(runCtx, uint8(counter), ttl); err != nil {
			cancel()
			wg.Wait()
			return nil, fmt.Errorf("failed to originate beacon %d: %w", counter, err)
		}
		if err := waitQuiet(runCtx, medium); err != nil {
			cancel()
			wg.Wait()
			return nil, err
		}
	}
	cancel()
	wg.Wait()

	report.Duration = time.Since(report.Started)
	report.Success = true
	for _, sn := range nodes[1:] {
		stats := sn.listener.Stats()
		expected := sn.hops <= int(ttl)+1
		nr := NodeReport{
			Name:         sn.node.Name(),
			Hops:         sn.hops,
			Woken:        stats.Woken,
			Relayed:      stats.Relayed,
			Dropped:      stats.DroppedTotal(),
			ExpectedWake: expected,
		}
		if (expected && stats.Woken != uint64(beacons)) || (!expected && stats.Woken != 0) {
			report.Success = false
		}
		report.Nodes = append(report.Nodes, nr)
	}
	for _, tx := range medium.Transmissions() {
		report.Transmissions = append(report.Transmissions, AirFrameEntry{
			From:    tx.From,
			DataHex: hex.EncodeToString(tx.PSDU),
		})
	}
	return report, nil
}

// waitQuiet returns once no new frame has been put on the air for simSettle.
func waitQuiet(ctx context.Context, medium *radiotest.Medium) error {
	last := len(medium.Transmissions())
	for {
		timer := time.NewTimer(simSettle)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		now := len(medium.Transmissions())
		if now == last {
			return nil
		}
		last = now
	}
}

func printSimulationSummary(report *SimulationReport) {
	_, _ = fmt.Println("--------------------------------------------------------------------------------")
	for _, nr := range report.Nodes {
		status := "OK"
		if nr.ExpectedWake != (nr.Woken > 0) {
			status = "FAIL"
		}
		_, _ = fmt.Printf("  %-8s hops=%d woken=%d relayed=%d dropped=%d [%s]\n",
			nr.Name, nr.Hops, nr.Woken, nr.Relayed, nr.Dropped, status)
	}
	_, _ = fmt.Println("--------------------------------------------------------------------------------")
	_, _ = fmt.Printf("%d frames on air in %s\n", len(report.Transmissions), report.Duration.Round(time.Millisecond))
}

func writeReport(path string, report *SimulationReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
