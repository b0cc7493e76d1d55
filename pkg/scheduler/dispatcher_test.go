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

package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowshard/worker/pkg/aggregate"
	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/common"
	"github.com/flowshard/worker/pkg/operator"
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

func Test_Dispatcher_DrivesHashAggrSinkToCompletion(t *testing.T) {
	groupTypes := []common.LType{common.IntegerType()}
	exprs := []aggregate.Expr{{Name: "sum", Col: 0, ArgType: common.IntegerType(), RetType: common.DoubleType()}}
	aggr, err := aggregate.NewHashAggr(groupTypes, exprs, util.DefaultConfig().Aggregation)
	require.NoError(t, err)

	c1 := intChunk([]int32{1, 1, 2}, []int32{10, 20, 30})
	c2 := intChunk([]int32{2, 3}, []int32{40, 50})
	src := operator.NewSliceSource([]*chunk.Chunk{c1, c2})
	sink := &operator.HashAggrSink{Aggr: aggr, GroupCols: []int{0}, ArgCols: []int{1}}

	intPair := []common.LType{common.IntegerType(), common.IntegerType()}
	p := operator.NewPipeline(src, nil, sink, intPair, intPair)
	require.NoError(t, p.Prepare())

	cancel := NewCancelToken()
	dr := NewDriver(p, cancel)

	d := NewDispatcher(2, 1)
	d.Submit(dr)
	require.NoError(t, d.Wait())

	require.Equal(t, Finished, dr.State())
	require.Equal(t, 3, aggr.GroupCount())
}

func Test_Dispatcher_ManyDriversConcurrently(t *testing.T) {
	d := NewDispatcher(4, 2)
	for i := 0; i < 20; i++ {
		groupTypes := []common.LType{common.IntegerType()}
		exprs := []aggregate.Expr{{Name: "sum", Col: 0, ArgType: common.IntegerType(), RetType: common.DoubleType()}}
		aggr, err := aggregate.NewHashAggr(groupTypes, exprs, util.DefaultConfig().Aggregation)
		require.NoError(t, err)
		c1 := intChunk([]int32{1, 2}, []int32{1, 2})
		src := operator.NewSliceSource([]*chunk.Chunk{c1})
		sink := &operator.HashAggrSink{Aggr: aggr, GroupCols: []int{0}, ArgCols: []int{1}}
		intPair := []common.LType{common.IntegerType(), common.IntegerType()}
		p := operator.NewPipeline(src, nil, sink, intPair, intPair)
		require.NoError(t, p.Prepare())
		d.Submit(NewDriver(p, nil))
	}
	require.NoError(t, d.Wait())
}

func Test_Dispatcher_PropagatesFirstError(t *testing.T) {
	src := &failingSource{}
	p := operator.NewPipeline(src, nil, nil, nil, nil)
	require.NoError(t, p.Prepare())

	d := NewDispatcher(1, 4)
	d.Submit(NewDriver(p, nil))
	err := d.Wait()
	require.Error(t, err)
	require.True(t, d.Cancel().Cancelled())
}

type failingSource struct{}

func (s *failingSource) Prepare() error { return nil }
func (s *failingSource) GetData(result *chunk.Chunk) (operator.SourceResult, error) {
	return operator.SrcFinished, errors.New("boom")
}
func (s *failingSource) Close() error { return nil }

func Test_Driver_InputBlockedYieldsAndWakes(t *testing.T) {
	src := &gatedSource{}
	p := operator.NewPipeline(src, nil, nil,
		[]common.LType{common.IntegerType()}, []common.LType{common.IntegerType()})
	require.NoError(t, p.Prepare())

	dr := NewDriver(p, nil)
	dr.InputReady = func() bool { return src.ready }

	state, reason, err := dr.Process(4)
	require.NoError(t, err)
	require.Equal(t, InputBlocked, state)
	require.Equal(t, YieldInputEmpty, reason)

	woke := make(chan State, 1)
	go func() {
		<-dr.wakeCh
		dr.consumeWake()
		s, _, _ := dr.Process(4)
		woke <- s
	}()

	src.ready = true
	src.done = true
	dr.Wake()

	select {
	case s := <-woke:
		require.Equal(t, Finished, s)
	case <-time.After(time.Second):
		t.Fatal("driver never resumed after Wake")
	}
}

type gatedSource struct {
	ready bool
	done  bool
}

func (s *gatedSource) Prepare() error { return nil }
func (s *gatedSource) GetData(result *chunk.Chunk) (operator.SourceResult, error) {
	if !s.done {
		return operator.SrcHaveMoreOutput, nil
	}
	return operator.SrcFinished, nil
}
func (s *gatedSource) Close() error { return nil }
