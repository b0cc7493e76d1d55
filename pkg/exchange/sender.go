// Copyright 2023-2024 daviszhen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package exchange

import (
	"context"

	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/common"
)

// Sender is the exchange-sink side of a fragment (spec §3's "Exchange
// Sender"): it fans one operator's output across NumChannels
// destinations per a Partitioner, batching rows into each Channel's
// accumulator and flushing on the configured byte threshold.
type Sender struct {
	Channels    []*Channel
	Partitioner *Partitioner
	SlotIds     []int

	outTypes []common.LType
}

// NewSender builds a sender over channels, fanning rows out per part.
func NewSender(channels []*Channel, part *Partitioner, slotIds []int, outTypes []common.LType) *Sender {
	return &Sender{
		Channels:    channels,
		Partitioner: part,
		SlotIds:     slotIds,
		outTypes:    outTypes,
	}
}

// Push routes c's rows to their destination channels and flushes any
// channel that has crossed its byte threshold. Push never blocks on
// RPC latency: it returns execerr-free as soon as accumulation and any
// already-ready flushes have been issued.
func (s *Sender) Push(ctx context.Context, c *chunk.Chunk) error {
	if c.Card() == 0 {
		return nil
	}
	if s.Partitioner.Mode == Unpartitioned {
		// Broadcast: every channel accumulates the same rows. A true
		// reference-counted fan-out would share one backing chunk
		// across channels; each Channel.Accumulate instead copies into
		// its own accumulator, since channels flush independently and
		// at different times and so cannot safely share one buffer.
		for _, dst := range s.Channels {
			dst.Accumulate(c, s.SlotIds)
			if dst.ShouldFlush() && !dst.Busy() {
				if err := dst.Flush(ctx); err != nil {
					return err
				}
			}
		}
		return nil
	}

	groups := s.Partitioner.Dispatch(c)
	for ch, rows := range groups {
		if len(rows) == 0 {
			continue
		}
		dst := s.Channels[ch]
		slice := Slice(c, s.outTypes, rows)
		dst.Accumulate(slice, s.SlotIds)
		if dst.ShouldFlush() && !dst.Busy() {
			if err := dst.Flush(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// OutputReady reports whether every channel can currently accept more
// rows (spec §4.5's OutputBlocked condition for a sender-tailed
// pipeline): false as soon as any channel both has a full accumulator
// and an outstanding RPC, since Push cannot safely grow that channel's
// buffer further without risking unbounded memory.
func (s *Sender) OutputReady() bool {
	for _, ch := range s.Channels {
		if ch.ShouldFlush() && ch.Busy() {
			return false
		}
	}
	return true
}

// Close runs phase one of the two-phase close (spec §4.6) on every
// channel: flush any remainder and enqueue EOS, without waiting.
func (s *Sender) Close(ctx context.Context) error {
	for _, ch := range s.Channels {
		if err := ch.Close(ctx); err != nil {
			return err
		}
	}
	return nil
}

// CloseWait runs phase two: block until every channel's final RPC has
// landed.
func (s *Sender) CloseWait(ctx context.Context) error {
	var firstErr error
	for _, ch := range s.Channels {
		if err := ch.CloseWait(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
