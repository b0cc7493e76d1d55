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
	"fmt"
	"sync"

	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/util"
)

// Inbox is one sender's view into a Receiver: the decoded chunks it
// has delivered so far, in arrival order, plus whether it has closed.
type Inbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*chunk.Chunk
	eos    bool
	lastSeq int64
	seen    bool
	schema  *chunk.ChunkMeta
}

func newInbox() *Inbox {
	in := &Inbox{lastSeq: -1}
	in.cond = sync.NewCond(&in.mu)
	return in
}

// Pop removes and returns the oldest buffered chunk, or (nil, false)
// if the inbox is currently empty.
func (in *Inbox) Pop() (*chunk.Chunk, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.queue) == 0 {
		return nil, false
	}
	c := in.queue[0]
	in.queue = in.queue[1:]
	return c, true
}

// Ready reports whether Pop would return a chunk right now, or the
// inbox has reached EOS (spec §4.5: InputReady must also fire once
// the source can never produce again, so a driver doesn't spin
// forever waiting on input that will never arrive).
func (in *Inbox) Ready() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.queue) > 0 || in.eos
}

func (in *Inbox) EOS() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.eos && len(in.queue) == 0
}

// Receiver is the exchange-receiver side of a fragment (spec §3):
// one Inbox per upstream sender, keyed by SenderID, feeding a driver's
// InputReady/pull loop without ever busy-polling a remote peer.
type Receiver struct {
	mu     sync.Mutex
	inboxes map[int32]*Inbox
}

// NewReceiver builds an empty receiver; inboxes are created lazily as
// senders first deliver to them.
func NewReceiver() *Receiver {
	return &Receiver{inboxes: make(map[int32]*Inbox)}
}

func (r *Receiver) inbox(senderID int32) *Inbox {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.inboxes[senderID]
	if !ok {
		in = newInbox()
		r.inboxes[senderID] = in
	}
	return in
}

// Inbox returns senderID's inbox, creating it if this is the first
// message seen from that sender.
func (r *Receiver) Inbox(senderID int32) *Inbox {
	return r.inbox(senderID)
}

// TransmitChunk implements TransmitChunkHandler (spec §6's
// transmit_chunk RPC): decodes each chunk payload in order, enforces
// invariant 7 (strictly increasing per-channel sequence numbers
// starting at 0), and appends to the sender's inbox.
func (r *Receiver) TransmitChunk(ctx context.Context, params *TransmitChunkParams) (*TransmitChunkResult, error) {
	in := r.inbox(params.SenderID)

	in.mu.Lock()
	if in.seen && params.Sequence != in.lastSeq+1 {
		in.mu.Unlock()
		return nil, fmt.Errorf("exchange: out-of-order sequence from sender %d: got %d, want %d",
			params.SenderID, params.Sequence, in.lastSeq+1)
	}
	if !in.seen && params.Sequence != 0 {
		in.mu.Unlock()
		return nil, fmt.Errorf("exchange: sender %d's first transmit_chunk carried sequence %d, want 0",
			params.SenderID, params.Sequence)
	}
	in.seen = true
	in.lastSeq = params.Sequence
	in.mu.Unlock()

	for _, cp := range params.Chunks {
		c, err := decodeChunkPayload(in, cp)
		if err != nil {
			return nil, err
		}
		in.mu.Lock()
		in.queue = append(in.queue, c)
		in.mu.Unlock()
	}

	if params.Eos {
		in.mu.Lock()
		in.eos = true
		in.mu.Unlock()
	}

	return &TransmitChunkResult{}, nil
}

func decodeChunkPayload(in *Inbox, cp *ChunkPayload) (*chunk.Chunk, error) {
	raw, err := Decompress(cp.Data, cp.CompressionType, int(cp.UncompressedSize))
	if err != nil {
		return nil, err
	}
	d := util.NewBufferDeserialize(raw)
	if cp.HasMeta {
		c, meta, err := chunk.DeserializeWithMeta(d)
		if err != nil {
			return nil, err
		}
		in.mu.Lock()
		in.schema = meta
		in.mu.Unlock()
		return c, nil
	}
	in.mu.Lock()
	meta := in.schema
	in.mu.Unlock()
	if meta == nil {
		return nil, fmt.Errorf("exchange: chunk without schema header and no prior schema on this channel")
	}
	c := &chunk.Chunk{}
	c.Init(meta.Types, util.DefaultVectorSize)
	if err := c.Deserialize(d); err != nil {
		return nil, err
	}
	return c, nil
}
