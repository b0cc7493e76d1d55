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

package fragment

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/common"
	"github.com/flowshard/worker/pkg/join"
	"github.com/flowshard/worker/pkg/operator"
	"github.com/flowshard/worker/pkg/util"
)

// morselSource emits exactly one chunk of m.Count int32 rows (valued
// m.Offset..m.Offset+m.Count-1) then finishes, the minimal stand-in for
// a real table scan bounded to one morsel.
type morselSource struct {
	m    operator.Morsel
	done bool
}

func (s *morselSource) Prepare() error { return nil }

func (s *morselSource) GetData(result *chunk.Chunk) (operator.SourceResult, error) {
	if s.done {
		return operator.SrcFinished, nil
	}
	s.done = true
	data := chunk.GetSliceInPhyFormatFlat[int32](result.Data[0])
	for i := int64(0); i < s.m.Count; i++ {
		data[i] = int32(s.m.Offset + i)
	}
	result.SetCard(int(s.m.Count))
	return operator.SrcFinished, nil
}

func (s *morselSource) Close() error { return nil }

func intTypes() []common.LType { return []common.LType{common.IntegerType()} }

func Test_Executor_LeafPipelineOneDriverPerMorsel(t *testing.T) {
	var built int32
	sink := NewResultSink(intTypes(), []string{"v"})

	pd := &PipelineDescriptor{
		ID:            0,
		IsLeaf:        true,
		ScanTotalRows: 10,
		MorselSize:    3,
		NewLeafSource: func(m operator.Morsel) operator.Source {
			atomic.AddInt32(&built, 1)
			return &morselSource{m: m}
		},
		SrcTypes: intTypes(),
		OutTypes: intTypes(),
		NewSink:  func(instance int) operator.Sink { return sink },
	}
	desc := &FragmentDescriptor{
		FragmentID:   "f1",
		QueryID:      "q1",
		Pipelines:    []*PipelineDescriptor{pd},
		RootPipeline: 0,
	}

	exec := NewExecutor(util.SchedulerConfig{WorkerCount: 2, TimeSliceMs: 4}, nil)
	require.NoError(t, exec.Prepare(desc))
	require.NoError(t, exec.Wait())

	require.Equal(t, int32(4), atomic.LoadInt32(&built)) // ceil(10/3) morsels
	total := 0
	for _, c := range sink.Drain() {
		total += c.Card()
	}
	require.Equal(t, 10, total)
}

func Test_Executor_NonLeafPipelineDriverInstanceCount(t *testing.T) {
	var mu sync.Mutex
	var instances []int

	pd := &PipelineDescriptor{
		ID:                  0,
		IsLeaf:              false,
		DriverInstanceCount: 3,
		NewSource: func(instance int) operator.Source {
			mu.Lock()
			instances = append(instances, instance)
			mu.Unlock()
			return operator.NewSliceSource(nil)
		},
		SrcTypes: intTypes(),
		OutTypes: intTypes(),
	}
	desc := &FragmentDescriptor{
		FragmentID:   "f2",
		QueryID:      "q1",
		Pipelines:    []*PipelineDescriptor{pd},
		RootPipeline: 0,
	}

	exec := NewExecutor(util.SchedulerConfig{WorkerCount: 2, TimeSliceMs: 4}, nil)
	require.NoError(t, exec.Prepare(desc))
	require.NoError(t, exec.Wait())

	require.Len(t, instances, 3)
}

func Test_Executor_NonLeafPipelineFallsBackToConfiguredDefault(t *testing.T) {
	var built int32
	pd := &PipelineDescriptor{
		ID:     0,
		IsLeaf: false,
		NewSource: func(instance int) operator.Source {
			atomic.AddInt32(&built, 1)
			return operator.NewSliceSource(nil)
		},
		SrcTypes: intTypes(),
		OutTypes: intTypes(),
	}
	desc := &FragmentDescriptor{
		FragmentID:   "f3",
		QueryID:      "q1",
		Pipelines:    []*PipelineDescriptor{pd},
		RootPipeline: 0,
	}

	exec := NewExecutor(util.SchedulerConfig{WorkerCount: 2, TimeSliceMs: 4, DriverPerPipe: 5}, nil)
	require.NoError(t, exec.Prepare(desc))
	require.NoError(t, exec.Wait())

	require.Equal(t, int32(5), atomic.LoadInt32(&built))
}

func Test_Executor_RuntimeFilterSkipsInadmissibleMorsels(t *testing.T) {
	var built int32
	rf := &join.RuntimeFilter{Column: 0, Values: map[int64]struct{}{0: {}}}
	binding := &RuntimeFilterBinding{
		Filter: rf,
		RangeAdmits: func(f *join.RuntimeFilter, m operator.Morsel) bool {
			// Only the first morsel (offset 0) could contain the
			// admitted value; every later morsel is skipped outright.
			return m.Offset == 0
		},
	}

	pd := &PipelineDescriptor{
		ID:            0,
		IsLeaf:        true,
		ScanTotalRows: 10,
		MorselSize:    3,
		RuntimeFilter: binding,
		NewLeafSource: func(m operator.Morsel) operator.Source {
			atomic.AddInt32(&built, 1)
			return &morselSource{m: m}
		},
		SrcTypes: intTypes(),
		OutTypes: intTypes(),
	}
	desc := &FragmentDescriptor{
		FragmentID:   "f4",
		QueryID:      "q1",
		Pipelines:    []*PipelineDescriptor{pd},
		RootPipeline: 0,
	}

	exec := NewExecutor(util.SchedulerConfig{WorkerCount: 2, TimeSliceMs: 4}, nil)
	require.NoError(t, exec.Prepare(desc))
	require.NoError(t, exec.Wait())

	require.Equal(t, int32(1), atomic.LoadInt32(&built))
}

func Test_Executor_InvalidRootPipelineIndexRejected(t *testing.T) {
	exec := NewExecutor(util.SchedulerConfig{WorkerCount: 1, TimeSliceMs: 4}, nil)
	desc := &FragmentDescriptor{FragmentID: "f5", Pipelines: nil, RootPipeline: 0}
	err := exec.Prepare(desc)
	require.Error(t, err)
}
