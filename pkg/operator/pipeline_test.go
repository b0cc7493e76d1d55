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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowshard/worker/pkg/aggregate"
	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/common"
	"github.com/flowshard/worker/pkg/join"
	"github.com/flowshard/worker/pkg/util"
)

func intChunk(groups []int32, vals []int32) *chunk.Chunk {
	c := &chunk.Chunk{}
	c.Init([]common.LType{common.IntegerType(), common.IntegerType()}, util.DefaultVectorSize)
	gData := chunk.GetSliceInPhyFormatFlat[int32](c.Data[0])
	vData := chunk.GetSliceInPhyFormatFlat[int32](c.Data[1])
	copy(gData, groups)
	copy(vData, vals)
	c.SetCard(len(groups))
	return c
}

func Test_Pipeline_SourceOnly_NoOperators_PassesChunksThrough(t *testing.T) {
	c1 := intChunk([]int32{1, 2}, []int32{10, 20})
	c2 := intChunk([]int32{3}, []int32{30})
	src := NewSliceSource([]*chunk.Chunk{c1, c2})

	intPair := []common.LType{common.IntegerType(), common.IntegerType()}
	p := NewPipeline(src, nil, nil, intPair, intPair)
	require.NoError(t, p.Prepare())

	out := &chunk.Chunk{}
	res, err := p.Next(out)
	require.NoError(t, err)
	require.Equal(t, SrcHaveMoreOutput, res)
	require.Equal(t, 2, out.Card())

	out2 := &chunk.Chunk{}
	res2, err := p.Next(out2)
	require.NoError(t, err)
	require.Equal(t, SrcFinished, res2)
	require.Equal(t, 1, out2.Card())
}

func Test_Pipeline_DriveIntoHashAggrSink(t *testing.T) {
	groupTypes := []common.LType{common.IntegerType()}
	exprs := []aggregate.Expr{{Name: "sum", Col: 0, ArgType: common.IntegerType(), RetType: common.DoubleType()}}
	aggr, err := aggregate.NewHashAggr(groupTypes, exprs, util.DefaultConfig().Aggregation)
	require.NoError(t, err)

	c1 := intChunk([]int32{1, 1, 2}, []int32{10, 20, 30})
	c2 := intChunk([]int32{2, 3}, []int32{40, 50})
	src := NewSliceSource([]*chunk.Chunk{c1, c2})
	sink := &HashAggrSink{Aggr: aggr, GroupCols: []int{0}, ArgCols: []int{1}}

	intPair := []common.LType{common.IntegerType(), common.IntegerType()}
	p := NewPipeline(src, nil, sink, intPair, intPair)
	require.NoError(t, p.Prepare())
	require.NoError(t, p.Drive())

	require.Equal(t, 3, aggr.GroupCount())
	rows := aggr.Finalize()
	require.Len(t, rows, 3)
}

func Test_Pipeline_HashJoinProbeOperator(t *testing.T) {
	table := join.NewHashJoinTable([]common.LType{common.IntegerType()})
	buildKey := intChunk([]int32{1, 2}, []int32{100, 200})
	table.Build([]*chunk.Vector{buildKey.Data[0]}, []*chunk.Vector{buildKey.Data[1]}, 2)

	probeOp := &HashJoinProbeOperator{
		Table:     table,
		Type:      join.Inner,
		KeyCols:   []int{0},
		ProbeCols: []int{0, 1},
		OutTypes:  []common.LType{common.IntegerType(), common.IntegerType(), common.IntegerType()},
	}
	src := NewSliceSource([]*chunk.Chunk{intChunk([]int32{2, 9}, []int32{222, 999})})
	intPair := []common.LType{common.IntegerType(), common.IntegerType()}
	p := NewPipeline(src, []Operator{probeOp}, nil, intPair, probeOp.OutTypes)
	require.NoError(t, p.Prepare())

	out := &chunk.Chunk{}
	_, err := p.Next(out)
	require.NoError(t, err)
	require.Equal(t, 1, out.Card())
	require.EqualValues(t, 200, out.Data[2].GetValue(0).I64)
}
