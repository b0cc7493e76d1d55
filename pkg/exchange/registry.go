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
)

// Registry is the process-wide TransmitChunkHandler a worker node
// registers on its single *grpc.Server: one Receiver is addressable
// per fragment instance, keyed by FinstID, and the RPC layer has no
// other way to reach a fragment's inboxes (spec §6: transmit_chunk
// carries finst_id precisely so one node can multiplex every
// concurrently-running fragment over one channel/port).
type Registry struct {
	mu        sync.Mutex
	receivers map[string]*Receiver
}

func NewRegistry() *Registry {
	return &Registry{receivers: make(map[string]*Receiver)}
}

// Receiver returns finstID's receiver, creating it if this is the
// first caller (either the fragment executor registering ahead of
// any inbound RPC, or an RPC racing ahead of local Prepare).
func (g *Registry) Receiver(finstID string) *Receiver {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.receivers[finstID]
	if !ok {
		r = NewReceiver()
		g.receivers[finstID] = r
	}
	return r
}

// Forget drops finstID's receiver once its fragment has finished, so
// a long-lived worker doesn't accumulate one entry per query forever.
func (g *Registry) Forget(finstID string) {
	g.mu.Lock()
	delete(g.receivers, finstID)
	g.mu.Unlock()
}

// TransmitChunk implements TransmitChunkHandler by dispatching to the
// named fragment instance's own Receiver.
func (g *Registry) TransmitChunk(ctx context.Context, params *TransmitChunkParams) (*TransmitChunkResult, error) {
	return g.Receiver(params.FinstID).TransmitChunk(ctx, params)
}

var _ TransmitChunkHandler = (*Registry)(nil)
