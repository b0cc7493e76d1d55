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
	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/common"
	"github.com/flowshard/worker/pkg/util"
)

// Pipeline is a Source, a chain of transform Operators, and an
// optional terminal Sink — one pkg/scheduler Driver's worth of work
// (SPEC_FULL.md §4.4/§4.5). A nil Sink means this pipeline's output
// chunks are the fragment's own output (or feed an exchange sender
// upstream of pkg/exchange), rather than a blocking operator's build
// side; assembling the Sink in that position is what turns the
// teacher's single recursive Runner.Execute tree into the
// pipeline-broken shape a blocking operator (hash aggregate build,
// hash join build, sort) requires: one pipeline ending at the
// blocking operator's Sink, a second pipeline starting at that same
// operator acting as a Source once it has consumed all its input.
type Pipeline struct {
	Source Source
	Ops    []Operator
	Sink   Sink

	srcTypes []common.LType
	outTypes []common.LType
	// pending holds a partially-drained operator chain's input: when
	// an Operator returns HaveMoreOutput, the same input chunk must
	// be re-fed to it (and any operators after it) before pulling a
	// new one from Source, mirroring the teacher's execChild loop
	// which otherwise would silently drop a one-to-many transform's
	// remaining output rows.
	pending *chunk.Chunk
	srcDone bool
}

// NewPipeline assembles a Pipeline. srcTypes is Source's own output
// schema (what GetData fills in); outTypes is the schema after the
// last Operator (equal to srcTypes when ops is empty) — the schema
// Next/Drive's result chunk carries, and the Sink's expected input
// schema when sink is non-nil.
func NewPipeline(source Source, ops []Operator, sink Sink, srcTypes, outTypes []common.LType) *Pipeline {
	return &Pipeline{Source: source, Ops: ops, Sink: sink, srcTypes: srcTypes, outTypes: outTypes}
}

// Prepare initializes Source, every Operator, and Sink (if present),
// the pipeline-wide counterpart of the teacher's Runner.Init walking
// its child tree.
func (p *Pipeline) Prepare() error {
	if err := p.Source.Prepare(); err != nil {
		return err
	}
	for _, op := range p.Ops {
		if err := op.Prepare(); err != nil {
			return err
		}
	}
	if p.Sink != nil {
		return p.Sink.Prepare()
	}
	return nil
}

// Next pulls and transforms chunks until either result gains rows or
// Source and every pending operator chain are exhausted. It returns
// SrcFinished once nothing more will follow, together with the final
// rows when the last call still produced some.
// This is the pull side a Driver uses for a sink-less pipeline, or
// that a sink-bearing pipeline's internal Drive loop uses to feed the
// Sink.
func (p *Pipeline) Next(result *chunk.Chunk) (SourceResult, error) {
	result.Init(p.outTypes, util.DefaultVectorSize)
	for {
		if p.pending != nil {
			res, err := p.runOps(p.pending, result)
			if err != nil {
				return SrcFinished, err
			}
			switch res {
			case HaveMoreOutput:
				if result.Card() > 0 {
					return SrcHaveMoreOutput, nil
				}
				continue
			case NeedMoreInput:
				p.pending = nil
			case Finished:
				p.pending = nil
				p.srcDone = true
			}
			if result.Card() > 0 {
				if p.srcDone && p.pending == nil {
					return SrcFinished, nil
				}
				return SrcHaveMoreOutput, nil
			}
		}
		if p.srcDone {
			return SrcFinished, nil
		}

		in := &chunk.Chunk{}
		in.Init(p.srcTypes, util.DefaultVectorSize)
		srcRes, err := p.Source.GetData(in)
		if err != nil {
			return SrcFinished, err
		}
		if srcRes == SrcFinished && in.Card() == 0 {
			p.srcDone = true
			return SrcFinished, nil
		}
		if in.Card() == 0 {
			continue
		}
		p.pending = in
		if srcRes == SrcFinished {
			p.srcDone = true
		}
	}
}

func chunkTypes(c *chunk.Chunk) []common.LType {
	types := make([]common.LType, c.ColumnCount())
	for i, vec := range c.Data {
		types[i] = vec.Typ()
	}
	return types
}

// runOps drives input through every Operator in sequence. Operators
// before the last one are expected to return NeedMoreInput or
// Finished only (a chain of filters/projects never buffers partial
// output); only the final operator's result is surfaced, mirroring
// how the teacher's single Execute call per operator type never
// itself recurses through a sibling chain.
func (p *Pipeline) runOps(input, result *chunk.Chunk) (Result, error) {
	if len(p.Ops) == 0 {
		result.Reference(input)
		return NeedMoreInput, nil
	}
	cur := input
	for i, op := range p.Ops {
		out := result
		if i < len(p.Ops)-1 {
			out = &chunk.Chunk{}
			out.Init(chunkTypes(cur), util.DefaultVectorSize)
		}
		res, err := op.Execute(cur, out)
		if err != nil {
			return Finished, err
		}
		if i == len(p.Ops)-1 {
			return res, nil
		}
		// a mid-chain operator producing partial output per call (res
		// == HaveMoreOutput) is not modeled: no supplemented operator
		// needs it, since only the terminal operator's buffering
		// (e.g. a one-to-many join probe) is surfaced to the caller.
		cur = out
	}
	return NeedMoreInput, nil
}

// Drive fully executes a sink-bearing pipeline: pull/transform via
// Next, push every produced chunk into Sink, call SetFinishing once
// Source is exhausted, the single-pipeline equivalent of the
// teacher's Runner.Run loop but terminating into a Sink instead of a
// wire.DataWriter. Used directly by tests and by a non-cooperative
// caller; pkg/scheduler drives the same pipeline one Step at a time
// instead, so a Driver can yield between chunks.
func (p *Pipeline) Drive() error {
	if p.Sink == nil {
		return nil
	}
	for {
		res, err := p.Step()
		if err != nil {
			return err
		}
		if res == SrcFinished {
			break
		}
	}
	return nil
}

// Step advances a sink-bearing pipeline by exactly one produced chunk:
// pull/transform via Next, push the result into Sink, and call
// SetFinishing once Source is exhausted. This is the unit of work
// pkg/scheduler's Driver.Process repeats up to its time slice, so a
// Driver never blocks inside a single Step call for longer than
// producing one chunk takes.
func (p *Pipeline) Step() (SourceResult, error) {
	out := &chunk.Chunk{}
	res, err := p.Next(out)
	if err != nil {
		return SrcFinished, err
	}
	if out.Card() > 0 {
		if _, err := p.Sink.Push(out); err != nil {
			return SrcFinished, err
		}
	}
	if res == SrcFinished {
		if err := p.Sink.SetFinishing(); err != nil {
			return SrcFinished, err
		}
	}
	return res, nil
}

// Close releases Source, every Operator, and Sink.
func (p *Pipeline) Close() error {
	var firstErr error
	if err := p.Source.Close(); err != nil {
		firstErr = err
	}
	for _, op := range p.Ops {
		if err := op.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.Sink != nil {
		if err := p.Sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
