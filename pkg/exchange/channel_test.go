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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowshard/worker/pkg/util"
)

// recordingHandler plays the role of a receiver's gRPC endpoint
// in-process, so channel/sender behavior can be tested without an
// actual network listener.
type recordingHandler struct {
	mu    sync.Mutex
	calls []*TransmitChunkParams
	delay time.Duration
}

func (h *recordingHandler) TransmitChunk(ctx context.Context, params *TransmitChunkParams) (*TransmitChunkResult, error) {
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	h.mu.Lock()
	h.calls = append(h.calls, params)
	h.mu.Unlock()
	return &TransmitChunkResult{}, nil
}

func (h *recordingHandler) snapshot() []*TransmitChunkParams {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*TransmitChunkParams, len(h.calls))
	copy(out, h.calls)
	return out
}

func waitNotBusy(t *testing.T, ch *Channel) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for ch.Busy() {
		if time.Now().After(deadline) {
			t.Fatal("channel stayed busy past deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func Test_Channel_SequenceIncreasesMonotonically(t *testing.T) {
	h := &recordingHandler{}
	cfg := util.DefaultConfig().Exchange
	cfg.CompressionCodec = "none"
	ch := NewChannel("finst-1", 1, 2, 0, h, cfg)

	c := makeIntChunk([]int32{1, 2, 3})
	ch.Accumulate(c, []int{0})
	require.NoError(t, ch.Flush(context.Background()))
	waitNotBusy(t, ch)

	c2 := makeIntChunk([]int32{4, 5})
	ch.Accumulate(c2, []int{0})
	require.NoError(t, ch.Flush(context.Background()))
	waitNotBusy(t, ch)

	require.NoError(t, ch.Close(context.Background()))
	require.NoError(t, ch.CloseWait(context.Background()))

	calls := h.snapshot()
	require.Len(t, calls, 3)
	for i, p := range calls {
		require.Equal(t, int64(i), p.Sequence)
	}
	require.True(t, calls[2].Eos)
}

func Test_Channel_BusyWhileRPCOutstanding(t *testing.T) {
	h := &recordingHandler{delay: 50 * time.Millisecond}
	cfg := util.DefaultConfig().Exchange
	ch := NewChannel("finst-1", 1, 2, 0, h, cfg)

	c := makeIntChunk([]int32{1, 2, 3})
	ch.Accumulate(c, []int{0})
	require.NoError(t, ch.Flush(context.Background()))

	require.True(t, ch.Busy())
	time.Sleep(100 * time.Millisecond)
	require.False(t, ch.Busy())
}

func Test_Channel_FirstChunkCarriesMetaOnly(t *testing.T) {
	h := &recordingHandler{}
	cfg := util.DefaultConfig().Exchange
	cfg.CompressionCodec = "none"
	ch := NewChannel("finst-1", 1, 2, 0, h, cfg)

	ch.Accumulate(makeIntChunk([]int32{1}), []int{0})
	require.NoError(t, ch.Flush(context.Background()))
	waitNotBusy(t, ch)
	ch.Accumulate(makeIntChunk([]int32{2}), []int{0})
	require.NoError(t, ch.Flush(context.Background()))
	waitNotBusy(t, ch)

	calls := h.snapshot()
	require.Len(t, calls, 2)
	require.True(t, calls[0].Chunks[0].HasMeta)
	require.False(t, calls[1].Chunks[0].HasMeta)
}
