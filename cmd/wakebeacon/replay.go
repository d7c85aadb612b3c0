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
	"fmt"

	"github.com/ZaparooProject/go-wakebeacon"
	"github.com/ZaparooProject/go-wakebeacon/internal/capture"
	"github.com/ZaparooProject/go-wakebeacon/internal/config"
	"github.com/ZaparooProject/go-wakebeacon/listener"
)

// replayResult summarises a capture replay.
type replayResult struct {
	stats   listener.Stats
	packets int
	badFCS  int
	relays  int
}

// runReplay feeds every frame of a pcap capture through a filter configured
// from cfg. Relays go to a mock radio and are only counted.
func runReplay(ctx context.Context, cfg *config.Config, path string) error {
	packets, err := capture.Open(path)
	if err != nil {
		return err
	}
	res, err := replayPackets(ctx, cfg, packets)
	if err != nil {
		return err
	}
	_, _ = fmt.Printf("Replayed %d frames from %s (%d with bad FCS skipped), %d relays requested\n",
		res.packets, path, res.badFCS, res.relays)
	printStats(res.stats)
	return nil
}

func replayPackets(ctx context.Context, cfg *config.Config, packets []capture.Packet) (*replayResult, error) {
	radio := wakebeacon.NewMockRadio()
	l, err := newListener(radio, cfg)
	if err != nil {
		return nil, err
	}
	if err := l.Enable(cfg.FilterSettings()); err != nil {
		return nil, err
	}

	res := &replayResult{packets: len(packets)}
	for _, pkt := range packets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !pkt.FCSValid {
			res.badFCS++
			continue
		}
		if err := l.HandleFrame(ctx, pkt.Frame); err != nil {
			return nil, err
		}
	}
	res.relays = len(radio.TxLog())
	res.stats = l.Stats()
	return res, nil
}
