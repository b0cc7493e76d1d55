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
	"sync"

	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/common"
	"github.com/flowshard/worker/pkg/util"
)

// Channel is one destination of an exchange sender (spec §3's
// "Exchange Channel"): an address, an accumulating buffer of rows not
// yet flushed, and the single in-flight-RPC gate a sender must respect
// before it can push more rows onto the wire (spec invariant 8:
// backpressure safety — a channel never issues a second transmit_chunk
// while one is outstanding).
type Channel struct {
	FinstID  string
	NodeID   int32
	SenderID int32
	BeNumber int32

	cfg        util.ExchangeConfig
	slotIds    []int
	metaSent   bool
	client     TransmitChunkHandler
	compressor string

	mu        sync.Mutex
	cond      *sync.Cond
	pending   *chunk.Chunk
	pendBytes int64
	sequence  int64
	eosSent   bool
	closed    bool
	inFlight  bool
	firstErr  error

	// outstanding is non-nil whenever a transmit_chunk call is in
	// flight; CloseWait blocks on it to drain the channel before
	// reporting done.
	outstanding chan struct{}
}

// NewChannel builds a sender-side channel to one destination.
func NewChannel(finstID string, nodeID, senderID, beNumber int32, client TransmitChunkHandler, cfg util.ExchangeConfig) *Channel {
	ch := &Channel{
		FinstID:    finstID,
		NodeID:     nodeID,
		SenderID:   senderID,
		BeNumber:   beNumber,
		cfg:        cfg,
		client:     client,
		compressor: cfg.CompressionCodec,
	}
	ch.cond = sync.NewCond(&ch.mu)
	return ch
}

// Accumulate appends c's rows onto the channel's pending buffer; Push
// calls this with the per-channel slice a Partitioner computed, not
// the sender's whole input chunk.
func (ch *Channel) Accumulate(c *chunk.Chunk, slotIds []int) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	types := columnTypes(c)
	if ch.pending == nil {
		ch.pending = &chunk.Chunk{}
		ch.pending.Init(types, util.DefaultVectorSize)
		ch.slotIds = slotIds
	}
	rows := make([]int, c.Card())
	for i := range rows {
		rows[i] = i
	}
	if ch.pending.Card()+len(rows) > ch.pending.Cap() {
		_ = ch.flushLocked(context.Background())
		if ch.pending == nil {
			ch.pending = &chunk.Chunk{}
			ch.pending.Init(types, util.DefaultVectorSize)
		}
	}
	if len(rows) > 0 {
		ch.pending.AppendSelectiveIndice(c, rows, 0, len(rows))
	}
	ch.pendBytes += estimateBytes(c)
}

func columnTypes(c *chunk.Chunk) []common.LType {
	types := make([]common.LType, len(c.Data))
	for i, v := range c.Data {
		types[i] = v.Typ()
	}
	return types
}

// ShouldFlush reports whether the accumulator has crossed the
// configured byte threshold (spec §4.1).
func (ch *Channel) ShouldFlush() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.pendBytes >= ch.cfg.ByteThreshold
}

// Busy reports whether a transmit_chunk RPC is currently outstanding
// (spec invariant 8): the sender must not accumulate past this channel
// while it is true, to bound memory, and must not issue another RPC
// until it clears.
func (ch *Channel) Busy() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.inFlight
}

// Flush sends the pending buffer now regardless of the byte threshold
// (used when the upstream operator has no more rows to contribute this
// round, or at EOS).
func (ch *Channel) Flush(ctx context.Context) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.flushLocked(ctx)
}

func (ch *Channel) flushLocked(ctx context.Context) error {
	if ch.closed || ch.inFlight {
		return nil
	}
	if ch.pending == nil || ch.pending.Card() == 0 {
		return nil
	}
	payload, err := ch.buildPayload()
	if err != nil {
		return err
	}
	ch.pending = nil
	ch.pendBytes = 0
	return ch.sendLocked(ctx, []*ChunkPayload{payload}, false)
}

func (ch *Channel) buildPayload() (*ChunkPayload, error) {
	s := &util.BufferSerialize{}
	var err error
	if !ch.metaSent {
		err = ch.pending.SerializeWithMeta(ch.slotIds, s)
	} else {
		err = ch.pending.Serialize(s)
	}
	if err != nil {
		return nil, err
	}
	raw := s.Buf
	data, ctyp := Compress(raw, ch.compressor, ch.cfg.CompressionRatioMin)
	p := &ChunkPayload{
		HasMeta:          !ch.metaSent,
		CompressionType:  ctyp,
		UncompressedSize: int64(len(raw)),
		DataSize:         int64(len(data)),
		Data:             data,
	}
	ch.metaSent = true
	return p, nil
}

// sendLocked issues the transmit_chunk RPC; caller holds ch.mu.
// Invariant 7 (exchange ordering): Sequence increases by exactly one
// per call and is never reused, even across retries, since this
// implementation does not retry within sendLocked.
func (ch *Channel) sendLocked(ctx context.Context, chunks []*ChunkPayload, eos bool) error {
	ch.inFlight = true
	seq := ch.sequence
	ch.sequence++
	if eos {
		ch.eosSent = true
	}
	done := make(chan error, 1)
	go func() {
		_, err := ch.client.TransmitChunk(ctx, &TransmitChunkParams{
			FinstID:  ch.FinstID,
			NodeID:   ch.NodeID,
			SenderID: ch.SenderID,
			BeNumber: ch.BeNumber,
			Sequence: seq,
			Eos:      eos,
			Chunks:   chunks,
		})
		done <- err
	}()
	// This unlocks the caller's critical section by running the wait
	// in a goroutine whose only job is to clear inFlight; the method
	// itself returns immediately so the sender never blocks on RPC
	// latency inside its own critical section (spec §4.5: a channel's
	// blocked state is polled via Busy, never awaited under lock).
	go func() {
		err := <-done
		ch.mu.Lock()
		ch.inFlight = false
		if err != nil && ch.firstErr == nil {
			ch.firstErr = err
		}
		if eos {
			close(ch.drained())
		}
		ch.cond.Broadcast()
		ch.mu.Unlock()
	}()
	return nil
}

func (ch *Channel) drained() chan struct{} {
	if ch.outstanding == nil {
		ch.outstanding = make(chan struct{})
	}
	return ch.outstanding
}

// Close enqueues an end-of-stream marker without waiting for it to
// land (spec §4.6's two-phase close, phase one). It does wait for any
// already-outstanding transmit_chunk to clear first: invariant 8 (at
// most one outstanding RPC per channel) holds across Close too, so the
// EOS send cannot simply jump the queue in front of a flush already in
// flight.
func (ch *Channel) Close(ctx context.Context) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return nil
	}
	for ch.inFlight {
		ch.cond.Wait()
	}
	ch.closed = true
	var chunks []*ChunkPayload
	if ch.pending != nil && ch.pending.Card() > 0 {
		p, err := ch.buildPayload()
		if err != nil {
			return err
		}
		chunks = []*ChunkPayload{p}
		ch.pending = nil
	}
	return ch.sendLocked(ctx, chunks, true)
}

// CloseWait blocks until the channel's final RPC (the EOS marker, or
// whichever transmit it was batched onto) has actually completed
// (spec §4.6's two-phase close, phase two).
func (ch *Channel) CloseWait(ctx context.Context) error {
	ch.mu.Lock()
	drained := ch.drained()
	sent := ch.eosSent
	ch.mu.Unlock()
	if !sent {
		return nil
	}
	select {
	case <-drained:
	case <-ctx.Done():
		return ctx.Err()
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.firstErr
}

func estimateBytes(c *chunk.Chunk) int64 {
	total := int64(0)
	for _, v := range c.Data {
		total += int64(v.Typ().GetInternalType().Size()) * int64(c.Card())
	}
	return total
}
