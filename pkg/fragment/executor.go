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
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/flowshard/worker/pkg/execerr"
	"github.com/flowshard/worker/pkg/operator"
	"github.com/flowshard/worker/pkg/scheduler"
	"github.com/flowshard/worker/pkg/util"
)

// Executor builds and runs one FragmentDescriptor's worth of drivers
// against a shared pkg/scheduler.Dispatcher (spec §4.7's Prepare/
// Submit). Its closest teacher analogue is pkg/plan/run.go's
// Runner/genPhyPlan assembly, generalized from one recursive
// single-goroutine Execute call into many cooperatively scheduled
// Drivers.
type Executor struct {
	cfg  util.SchedulerConfig
	mem  *util.MemTracker
	disp *scheduler.Dispatcher
}

// NewExecutor builds an Executor with its own Dispatcher, sized from
// cfg (0 workers means runtime.GOMAXPROCS(0), matching the teacher's
// own "0 means default" convention in util.DefaultConfig).
func NewExecutor(cfg util.SchedulerConfig, mem *util.MemTracker) *Executor {
	workers := cfg.WorkerCount
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	sliceRows := cfg.TimeSliceMs
	if sliceRows <= 0 {
		sliceRows = 8
	}
	return &Executor{
		cfg:  cfg,
		mem:  mem,
		disp: scheduler.NewDispatcher(workers, sliceRows),
	}
}

// Prepare builds every Driver named by desc and submits it to the
// executor's Dispatcher: one driver per morsel for each leaf pipeline,
// driver_instance_count drivers for each non-leaf pipeline, with the
// RootPipeline's NewSink attached as that pipeline's terminal operator
// (spec §4.7). All drivers share one CancelToken (the Dispatcher's
// own), satisfying §5's "per-fragment cancel flag".
func (e *Executor) Prepare(desc *FragmentDescriptor) error {
	if desc.RootPipeline < 0 || desc.RootPipeline >= len(desc.Pipelines) {
		return execerr.Wrapf(execerr.InvalidArgument,
			"fragment %s: root pipeline index %d out of range (%d pipelines)",
			desc.FragmentID, desc.RootPipeline, len(desc.Pipelines))
	}

	util.Debug("fragment prepare",
		zap.String("fragment", desc.FragmentID),
		zap.String("query", desc.QueryID),
		zap.Int("pipelines", len(desc.Pipelines)))

	for i, pd := range desc.Pipelines {
		isRoot := i == desc.RootPipeline
		var drivers []*scheduler.Driver
		var err error
		if pd.IsLeaf {
			drivers, err = e.buildLeafDrivers(desc, pd, isRoot)
		} else {
			drivers, err = e.buildReplicaDrivers(desc, pd, isRoot)
		}
		if err != nil {
			return err
		}
		for _, dr := range drivers {
			e.disp.Submit(dr)
		}
	}
	return nil
}

// buildLeafDrivers splits pd's scan range into morsels and creates one
// driver per morsel, skipping any morsel pd.RuntimeFilter rules out.
func (e *Executor) buildLeafDrivers(desc *FragmentDescriptor, pd *PipelineDescriptor, isRoot bool) ([]*scheduler.Driver, error) {
	if pd.NewLeafSource == nil {
		return nil, execerr.Wrapf(execerr.InvalidArgument,
			"fragment %s: leaf pipeline %d has no NewLeafSource", desc.FragmentID, pd.ID)
	}
	q := operator.NewMorselQueue(pd.ScanTotalRows, pd.MorselSize)

	var drivers []*scheduler.Driver
	instance := 0
	for {
		m, ok := q.Next()
		if !ok {
			break
		}
		if !pd.RuntimeFilter.admits(m) {
			util.Debug("morsel skipped by runtime filter",
				zap.String("fragment", desc.FragmentID), zap.Int("pipeline", pd.ID),
				zap.Int64("offset", m.Offset), zap.Int64("count", m.Count))
			continue
		}
		src := pd.NewLeafSource(m)
		dr, err := e.buildDriver(desc, pd, src, instance, isRoot)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, dr)
		instance++
	}
	return drivers, nil
}

// buildReplicaDrivers creates driver_instance_count independent
// replica chains for a non-leaf pipeline (spec §4.7).
func (e *Executor) buildReplicaDrivers(desc *FragmentDescriptor, pd *PipelineDescriptor, isRoot bool) ([]*scheduler.Driver, error) {
	if pd.NewSource == nil {
		return nil, execerr.Wrapf(execerr.InvalidArgument,
			"fragment %s: non-leaf pipeline %d has no NewSource", desc.FragmentID, pd.ID)
	}
	count := pd.driverInstanceCount(e.cfg.DriverPerPipe)
	drivers := make([]*scheduler.Driver, 0, count)
	for instance := 0; instance < count; instance++ {
		src := pd.NewSource(instance)
		dr, err := e.buildDriver(desc, pd, src, instance, isRoot)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, dr)
	}
	return drivers, nil
}

func (e *Executor) buildDriver(desc *FragmentDescriptor, pd *PipelineDescriptor, src operator.Source, instance int, isRoot bool) (*scheduler.Driver, error) {
	var ops []operator.Operator
	if pd.NewOps != nil {
		ops = pd.NewOps(instance)
	}
	var sink operator.Sink
	if isRoot && pd.NewSink != nil {
		sink = pd.NewSink(instance)
	}
	p := operator.NewPipeline(src, ops, sink, pd.SrcTypes, pd.OutTypes)
	if err := p.Prepare(); err != nil {
		return nil, fmt.Errorf("fragment %s: pipeline %d instance %d prepare: %w", desc.FragmentID, pd.ID, instance, err)
	}
	dr := scheduler.NewDriver(p, e.disp.Cancel())
	if pd.NewInputReady != nil {
		dr.InputReady = pd.NewInputReady(instance)
	}
	if pd.NewOutputReady != nil {
		dr.OutputReady = pd.NewOutputReady(instance)
	}
	return dr, nil
}

// Cancel cancels every driver of this fragment, the operation a query
// deadline timer or a sibling fragment's failure invokes (spec §5's
// "per-fragment cancel flag + per-query deadline").
func (e *Executor) Cancel(cause error) {
	e.disp.Cancel().Cancel(cause)
}

// Wait blocks until every submitted driver of this fragment has
// finished, returning the first error observed (spec §7's propagation
// policy).
func (e *Executor) Wait() error {
	return e.disp.Wait()
}
