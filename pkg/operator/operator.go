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

// Package operator defines the push/pull operator contract every
// pipeline stage implements, and assembles plan-shaped operator trees
// into pkg/scheduler-drivable Pipelines. Grounded on the teacher's
// pkg/plan/run.go (OperatorExec's Init/Execute/Close,
// OperatorResult/SourceResult/SinkResult), generalized from the
// teacher's single pull-only tree (Runner.Execute recursing into
// execChild) into the three-role push/pull split spec.md §4.4 names:
// a Source only ever produces, a Sink only ever consumes, and a
// transform Operator does both, so a pipeline can be driven a chunk
// at a time without the whole tree re-entering on every call.
package operator

import "github.com/flowshard/worker/pkg/chunk"

// SourceResult mirrors the teacher's SourceResult (run.go): a source
// either has more output to pull, or is finished.
type SourceResult int

const (
	SrcHaveMoreOutput SourceResult = iota
	SrcFinished
)

// SinkResult mirrors the teacher's SinkResult: a sink either needs
// more input, or has accepted all input it will.
type SinkResult int

const (
	SinkNeedMoreInput SinkResult = iota
	SinkFinished
)

// Result mirrors the teacher's OperatorResult for a transform
// operator sitting between a source and a sink.
type Result int

const (
	NeedMoreInput Result = iota
	HaveMoreOutput
	Finished
)

// Source is the pull side of a pipeline: a table scan, an exchange
// receiver, or (once a blocking boundary closes) a completed Sink
// replayed as the next pipeline's source (e.g. a HashAggr's finalized
// groups, or a HashJoinTable's build side once probing begins).
type Source interface {
	Prepare() error
	// GetData pulls one chunk of output into result, sized to
	// result's existing capacity. SrcFinished means no more chunks
	// will follow; the same call may still have filled result with the
	// final rows.
	GetData(result *chunk.Chunk) (SourceResult, error)
	Close() error
}

// Sink is the push side of a pipeline: a HashAggr build, a
// HashJoinTable build, a sort's run-former, an exchange sender.
type Sink interface {
	Prepare() error
	// Push folds one input chunk into the sink's state.
	Push(input *chunk.Chunk) (SinkResult, error)
	// SetFinishing is called once the pipeline's source is
	// exhausted; a parallel sink (e.g. a join build fed by several
	// morsels) uses this to know no further Push calls are coming on
	// this Driver, combining per-driver partial state exactly once.
	SetFinishing() error
	IsFinished() bool
	Close() error
}

// Operator is a non-blocking transform stage: a filter, a project, a
// hash join probe, a window function. It is NOT a Source or Sink; it
// only transforms one input chunk's worth of data already pulled from
// upstream, mirroring the teacher's OperatorExec.Execute signature but
// split from the pull-from-child responsibility, which Pipeline now
// owns.
type Operator interface {
	Prepare() error
	// Execute transforms input into result. NeedMoreInput means
	// result was not filled and the caller should pull another input
	// chunk before calling again (e.g. a filter that dropped every
	// row); HaveMoreOutput means result is full but input still has
	// buffered rows this operator hasn't emitted yet (e.g. a
	// one-to-many join probe) and the caller must call Execute again
	// with the same input before advancing; Finished means this
	// operator will never produce output again for any input (rare
	// outside LIMIT-style early termination).
	Execute(input, result *chunk.Chunk) (Result, error)
	Close() error
}
