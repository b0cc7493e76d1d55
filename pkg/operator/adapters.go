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

	"github.com/flowshard/worker/pkg/aggregate"
	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/common"
	"github.com/flowshard/worker/pkg/exchange"
	"github.com/flowshard/worker/pkg/join"
	"github.com/flowshard/worker/pkg/util"
)

// SliceSource replays a fixed list of pre-materialized chunks, the
// Source role an exchange receiver or a finished blocking operator
// (HashAggr/HashJoinTable) plays for the pipeline downstream of it,
// mirroring how the teacher's own HJS_SCAN_HT stage turns a finished
// JoinHashTable build back into a Scan source.
type SliceSource struct {
	chunks []*chunk.Chunk
	pos    int
}

func NewSliceSource(chunks []*chunk.Chunk) *SliceSource {
	return &SliceSource{chunks: chunks}
}

func (s *SliceSource) Prepare() error { return nil }

func (s *SliceSource) GetData(result *chunk.Chunk) (SourceResult, error) {
	if s.pos >= len(s.chunks) {
		return SrcFinished, nil
	}
	result.Reference(s.chunks[s.pos])
	s.pos++
	if s.pos >= len(s.chunks) {
		return SrcFinished, nil
	}
	return SrcHaveMoreOutput, nil
}

func (s *SliceSource) Close() error { return nil }

// rowsToChunk materializes [][]*chunk.Value rows (the shape
// pkg/aggregate.Finalize and pkg/join.ProbeResult produce) into a
// chunk.Chunk of the given column types, via Vector.SetValue the way
// pkg/hashkey/pkg/aggregate's tests build fixtures, since these rows
// come from two different sources (probe side, build side) that
// can't share one Flatten/AppendSelective pass.
func rowsToChunk(rows [][]*chunk.Value, types []common.LType) *chunk.Chunk {
	c := &chunk.Chunk{}
	c.Init(types, util.DefaultVectorSize)
	for i, row := range rows {
		for col, v := range row {
			if v == nil {
				v = &chunk.Value{Typ: types[col], IsNull: true}
			}
			c.Data[col].SetValue(i, v)
		}
	}
	c.SetCard(len(rows))
	return c
}

// HashAggrSink pushes chunks into a pkg/aggregate.HashAggr, reading
// groupCols/argCols indices out of each input chunk, the Sink role
// the teacher's aggrExec (run.go) plays inline rather than as a
// separable stage.
type HashAggrSink struct {
	Aggr      *aggregate.HashAggr
	GroupCols []int
	ArgCols   []int // parallel to Aggr's exprs; -1 entries are skipped (count(*))
}

func (s *HashAggrSink) Prepare() error { return nil }

func (s *HashAggrSink) Push(input *chunk.Chunk) (SinkResult, error) {
	groupVecs := make([]*chunk.Vector, len(s.GroupCols))
	for i, c := range s.GroupCols {
		groupVecs[i] = input.Data[c]
	}
	argVecs := make([]*chunk.Vector, len(s.ArgCols))
	for i, c := range s.ArgCols {
		if c < 0 {
			continue
		}
		argVecs[i] = input.Data[c]
	}
	s.Aggr.Build(groupVecs, argVecs, input.Card())
	return SinkNeedMoreInput, nil
}

func (s *HashAggrSink) SetFinishing() error { return nil }
func (s *HashAggrSink) IsFinished() bool    { return true }
func (s *HashAggrSink) Close() error        { return nil }

// AggrResultSource turns a finished HashAggr's groups into a Source
// for the downstream pipeline, one chunk per call up to
// util.DefaultVectorSize rows. Each row holds only the aggregate
// results, in exprs order, so outTypes lists the exprs' RetTypes; the
// group-key columns are not part of the output, and groupCols is not
// read.
func AggrResultSource(aggr *aggregate.HashAggr, groupCols []int, outTypes []common.LType) Source {
	rows := aggr.Finalize()
	chunks := chunkBatches(rows, outTypes)
	return NewSliceSource(chunks)
}

func chunkBatches(rows [][]*chunk.Value, types []common.LType) []*chunk.Chunk {
	var out []*chunk.Chunk
	for len(rows) > 0 {
		n := util.DefaultVectorSize
		if n > len(rows) {
			n = len(rows)
		}
		out = append(out, rowsToChunk(rows[:n], types))
		rows = rows[n:]
	}
	return out
}

// HashJoinBuildSink pushes build-side chunks into a
// pkg/join.HashJoinTable, the Sink role the teacher's HashJoin.Build
// plays inline in joinExec rather than as a separable stage.
type HashJoinBuildSink struct {
	Table     *join.HashJoinTable
	KeyCols   []int
	BuildCols []int
}

func (s *HashJoinBuildSink) Prepare() error { return nil }

func (s *HashJoinBuildSink) Push(input *chunk.Chunk) (SinkResult, error) {
	keyVecs := make([]*chunk.Vector, len(s.KeyCols))
	for i, c := range s.KeyCols {
		keyVecs[i] = input.Data[c]
	}
	buildVecs := make([]*chunk.Vector, len(s.BuildCols))
	for i, c := range s.BuildCols {
		buildVecs[i] = input.Data[c]
	}
	s.Table.Build(keyVecs, buildVecs, input.Card())
	return SinkNeedMoreInput, nil
}

func (s *HashJoinBuildSink) SetFinishing() error { return nil }
func (s *HashJoinBuildSink) IsFinished() bool    { return true }
func (s *HashJoinBuildSink) Close() error        { return nil }

// HashJoinProbeOperator is the transform-operator side of a hash
// join: for each probe-side input chunk it resolves matches against
// an already-built HashJoinTable and emits result rows, the Operator
// role the teacher's Scan.Next dispatch plays inline in joinExec.
type HashJoinProbeOperator struct {
	Table     *join.HashJoinTable
	Type      join.Type
	KeyCols   []int
	ProbeCols []int
	Pred      join.NonEquiPredicate
	OutTypes  []common.LType // probe columns then build columns, positionally
}

func (o *HashJoinProbeOperator) Prepare() error { return nil }

func (o *HashJoinProbeOperator) Execute(input, result *chunk.Chunk) (Result, error) {
	keyVecs := make([]*chunk.Vector, len(o.KeyCols))
	for i, c := range o.KeyCols {
		keyVecs[i] = input.Data[c]
	}
	probeVecs := make([]*chunk.Vector, len(o.ProbeCols))
	for i, c := range o.ProbeCols {
		probeVecs[i] = input.Data[c]
	}
	results := o.Table.Probe(o.Type, keyVecs, probeVecs, input.Card(), o.Pred)
	rows := make([][]*chunk.Value, len(results))
	for i, r := range results {
		row := make([]*chunk.Value, len(o.OutTypes))
		copy(row, r.Probe)
		copy(row[len(o.ProbeCols):], r.Build)
		rows[i] = row
	}
	*result = *rowsToChunk(rows, o.OutTypes)
	return NeedMoreInput, nil
}

func (o *HashJoinProbeOperator) Close() error { return nil }

// ExchangeSink adapts a pkg/exchange.Sender into the Sink role (spec
// §4.7: "attach the output sink as the last operator of the root
// pipeline ... translating ... data-stream sinks into their operator
// forms"). The teacher has no analogue: its Runner.Run writes straight
// to a wire.DataWriter, never to a remote peer, so this is new code
// following the same single-purpose adapter shape as HashAggrSink and
// HashJoinBuildSink above.
type ExchangeSink struct {
	Ctx    context.Context
	Sender *exchange.Sender

	finishing bool
}

func NewExchangeSink(ctx context.Context, sender *exchange.Sender) *ExchangeSink {
	return &ExchangeSink{Ctx: ctx, Sender: sender}
}

func (s *ExchangeSink) Prepare() error { return nil }

func (s *ExchangeSink) Push(input *chunk.Chunk) (SinkResult, error) {
	if err := s.Sender.Push(s.Ctx, input); err != nil {
		return SinkFinished, err
	}
	return SinkNeedMoreInput, nil
}

// SetFinishing runs the two-phase close's first phase (spec §4.6):
// flush any remainder and enqueue EOS on every channel, without
// blocking on the RPCs landing.
func (s *ExchangeSink) SetFinishing() error {
	s.finishing = true
	return s.Sender.Close(s.Ctx)
}

func (s *ExchangeSink) IsFinished() bool { return s.finishing }

// Close runs phase two: block until every channel's EOS RPC has
// actually completed.
func (s *ExchangeSink) Close() error {
	return s.Sender.CloseWait(s.Ctx)
}
