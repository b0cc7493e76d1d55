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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/common"
	"github.com/flowshard/worker/pkg/util"
)

func makeIntChunk(vals []int32) *chunk.Chunk {
	c := &chunk.Chunk{}
	c.Init([]common.LType{common.IntegerType()}, util.DefaultVectorSize)
	data := chunk.GetSliceInPhyFormatFlat[int32](c.Data[0])
	copy(data, vals)
	c.SetCard(len(vals))
	return c
}

func Test_Partitioner_HashConservesAllRows(t *testing.T) {
	c := makeIntChunk([]int32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	p := NewPartitioner(Hash, []int{0}, 3, 0)
	groups := p.Dispatch(c)

	total := 0
	seen := make(map[int]bool)
	for _, rows := range groups {
		for _, r := range rows {
			require.False(t, seen[r], "row %d assigned to more than one channel", r)
			seen[r] = true
			total++
		}
	}
	require.Equal(t, c.Card(), total)
}

func Test_Partitioner_HashIsDeterministic(t *testing.T) {
	c := makeIntChunk([]int32{1, 2, 3, 4, 5})
	p1 := NewPartitioner(Hash, []int{0}, 4, 0)
	p2 := NewPartitioner(Hash, []int{0}, 4, 0)
	require.Equal(t, p1.Dispatch(c), p2.Dispatch(c))
}

func Test_Partitioner_BucketShuffleMatchesStorageBuckets(t *testing.T) {
	c := makeIntChunk([]int32{11, 22, 33, 44, 55, 66, 77, 88})
	// BucketCount intentionally larger than NumChannels, mirroring a
	// storage layer with more buckets than this fragment has channels.
	p := NewPartitioner(BucketShuffle, []int{0}, 2, 8)
	groups := p.Dispatch(c)
	total := 0
	for _, rows := range groups {
		total += len(rows)
	}
	require.Equal(t, c.Card(), total)

	// Determinism across repeated calls on the same input (invariant 6).
	p2 := NewPartitioner(BucketShuffle, []int{0}, 2, 8)
	require.Equal(t, groups, p2.Dispatch(c))
}

func Test_Partitioner_RangeModeRoutesByBound(t *testing.T) {
	p := NewPartitioner(Range, []int{0}, 2, 0)
	p.SetBounds([]RangeBound{
		{Lower: 0, Bucket: 0},
		{Lower: 1 << 40, Bucket: 1},
	})
	c := makeIntChunk([]int32{1, 2, 3})
	groups := p.Dispatch(c)
	total := 0
	for _, rows := range groups {
		total += len(rows)
	}
	require.Equal(t, c.Card(), total)
	// a CRC32 hash is below 1<<40, so every row falls under the
	// Lower: 0 bound and lands in bucket 0, channel 0.
	require.Equal(t, []int{0, 1, 2}, groups[0])
}

func Test_Partitioner_UnpartitionedBroadcastsToEveryChannel(t *testing.T) {
	c := makeIntChunk([]int32{1, 2, 3})
	p := NewPartitioner(Unpartitioned, nil, 3, 0)
	groups := p.Dispatch(c)
	require.Len(t, groups, 3)
	for ch := 0; ch < 3; ch++ {
		require.Equal(t, c.Card(), len(groups[ch]))
	}
}

func Test_Partitioner_RandomRoundRobins(t *testing.T) {
	c := makeIntChunk([]int32{1, 2, 3, 4})
	p := NewPartitioner(Random, nil, 2, 0)
	groups := p.Dispatch(c)
	require.Equal(t, []int{0, 2}, groups[0])
	require.Equal(t, []int{1, 3}, groups[1])
}
