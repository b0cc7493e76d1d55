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
	"github.com/flowshard/worker/pkg/common"
	"github.com/flowshard/worker/pkg/operator"
)

// FragmentDescriptor is this package's entire ingress (spec.md §6):
// the pipelines (each with its own scan extent and, on the root
// pipeline, the sink factory), the root pipeline index, a destination
// list, query options and query globals. It carries no descriptor
// tables and no per-exchange sender counts. Non-goals (§5) keep the caller — a
// planner or coordinator — out of this module's scope, so the plan
// tree already arrives pre-compiled into pipelines expressed as
// operator factories rather than a tree this package must walk and
// translate; FragmentDescriptor is opaque data in.
type FragmentDescriptor struct {
	FragmentID string
	QueryID    string

	Pipelines []*PipelineDescriptor
	// RootPipeline indexes Pipelines: Prepare attaches the sink that
	// index's NewSink builds as the last operator of that pipeline
	// (spec §4.7).
	RootPipeline int

	Destinations []Destination
	Options      QueryOptions
	Globals      QueryGlobals
}

// Destination is one row of spec §6's "destination list": a peer
// node/backend an exchange sender on this fragment may fan rows out
// to.
type Destination struct {
	NodeID   int32
	BeNumber int32
	Address  string
}

// QueryOptions is spec §6's "query options": static per-query tuning
// the caller resolved ahead of time (this package never reads
// pkg/util.Config directly — the caller already folded config into
// these fields and PipelineDescriptor's ScanTotalRows/MorselSize).
type QueryOptions struct {
	ChunkSize       int
	DeadlineSeconds int64
}

// QueryGlobals is spec §6's "query globals": values constant across
// every fragment of one query (time zone, query id re-stated for
// logging, etc.) rather than per-fragment tuning.
type QueryGlobals struct {
	QueryID  string
	TimeZone string
}

// PipelineDescriptor describes one pkg/operator.Pipeline before
// construction. Exactly one of the leaf fields (ScanTotalRows/
// MorselSize/NewLeafSource) or the non-leaf field (NewSource) is set,
// selected by IsLeaf, mirroring spec §4.7's Prepare paragraph: "per
// leaf pipeline, create one driver per morsel; per non-leaf pipeline,
// create driver_instance_count drivers".
type PipelineDescriptor struct {
	ID     int
	IsLeaf bool

	// --- leaf pipelines: morsel-driven parallelism ---

	// ScanTotalRows/MorselSize describe the scan range this leaf
	// pulls from (spec §6's "per-node scan ranges"); the executor
	// splits [0, ScanTotalRows) into morsels of at most MorselSize
	// rows and creates one driver per resulting morsel.
	ScanTotalRows int64
	MorselSize    int64
	// NewLeafSource builds this driver's Source scoped to exactly one
	// claimed morsel — called once per morsel, never shared across
	// drivers, since a Source pulling rows is not safe for concurrent
	// use by two drivers.
	NewLeafSource func(m operator.Morsel) operator.Source

	// RuntimeFilter, when set, lets the executor skip building a
	// morsel's Source entirely when the filter cannot admit any row
	// from that morsel's range (SPEC_FULL.md §4's runtime IN-predicate
	// push-down).
	RuntimeFilter *RuntimeFilterBinding

	// --- non-leaf pipelines: fixed replica count ---

	// DriverInstanceCount is how many independent replica chains this
	// pipeline runs (spec §4.7); 0 means the caller wants the
	// scheduler's configured default (util.SchedulerConfig.DriverPerPipe).
	DriverInstanceCount int
	// NewSource builds replica instance's Source (e.g. one slice of a
	// shared exchange.Receiver's inboxes, or a finished blocking
	// operator's output replayed per replica).
	NewSource func(instance int) operator.Source

	// --- shared by both kinds ---

	// NewOps builds this pipeline's transform chain for the given
	// driver instance (leaf: morsel index order; non-leaf: replica
	// index). Most operators are stateless enough to share one chain,
	// but a per-instance factory lets a stateful operator (e.g. a
	// window function's partition buffer) get its own copy.
	NewOps func(instance int) []operator.Operator

	SrcTypes []common.LType
	OutTypes []common.LType

	// NewSink is non-nil only on FragmentDescriptor.RootPipeline; it is
	// called once per driver instance of the root pipeline (an
	// exchange-backed sink fans out independently per instance, since
	// pkg/exchange.Sender is not safe for concurrent Push calls from
	// multiple drivers).
	NewSink func(instance int) operator.Sink

	// NewInputReady/NewOutputReady, when set, build the polled
	// backpressure hooks pkg/scheduler.Driver needs for a non-nil
	// exchange-backed Source/Sink (spec §4.5): a Source fed by
	// pkg/exchange.Receiver reports InputReady via its Inbox.Ready, and
	// a Sink backed by pkg/exchange.Sender reports OutputReady via
	// Sender.OutputReady. A pipeline with a purely local scan Source
	// and/or a local Sink leaves these nil, since pulling/pushing
	// locally never blocks on a remote peer.
	NewInputReady  func(instance int) func() bool
	NewOutputReady func(instance int) func() bool
}

// driverInstanceCount resolves the non-leaf replica count, falling
// back to def when the descriptor left it unset.
func (p *PipelineDescriptor) driverInstanceCount(def int) int {
	if p.DriverInstanceCount > 0 {
		return p.DriverInstanceCount
	}
	if def > 0 {
		return def
	}
	return 1
}
