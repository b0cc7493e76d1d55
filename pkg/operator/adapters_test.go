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

package operator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowshard/worker/pkg/common"
	"github.com/flowshard/worker/pkg/exchange"
	"github.com/flowshard/worker/pkg/util"
)

type fakeTransmitHandler struct {
	mu    sync.Mutex
	calls []*exchange.TransmitChunkParams
}

func (h *fakeTransmitHandler) TransmitChunk(ctx context.Context, params *exchange.TransmitChunkParams) (*exchange.TransmitChunkResult, error) {
	h.mu.Lock()
	h.calls = append(h.calls, params)
	h.mu.Unlock()
	return &exchange.TransmitChunkResult{}, nil
}

func (h *fakeTransmitHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func Test_ExchangeSink_PushAndCloseDrainToChannel(t *testing.T) {
	h := &fakeTransmitHandler{}
	cfg := util.DefaultConfig().Exchange
	cfg.CompressionCodec = "none"
	ch := exchange.NewChannel("finst-1", 1, 0, 0, h, cfg)
	part := exchange.NewPartitioner(exchange.Unpartitioned, nil, 1, 0)
	outTypes := []common.LType{common.IntegerType(), common.IntegerType()}
	sender := exchange.NewSender([]*exchange.Channel{ch}, part, []int{0, 1}, outTypes)

	sink := NewExchangeSink(context.Background(), sender)
	require.NoError(t, sink.Prepare())

	c := intChunk([]int32{1, 2, 3}, []int32{1, 2, 3})
	res, err := sink.Push(c)
	require.NoError(t, err)
	require.Equal(t, SinkNeedMoreInput, res)

	require.NoError(t, sink.SetFinishing())
	require.True(t, sink.IsFinished())
	require.NoError(t, sink.Close())

	require.GreaterOrEqual(t, h.count(), 1)
	require.True(t, h.calls[len(h.calls)-1].Eos)
}

