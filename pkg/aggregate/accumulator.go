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

// Package aggregate implements the grouped and windowed aggregate
// functions the execution core supports, grounded on the teacher's
// generic aggregate-state shape (pkg/plan/aggr_funcs.go: State[T],
// StateOp, AggrOp, the UnaryAggregate bundle builder) but storing
// state as a plain Go value behind an Accumulator interface instead
// of an unsafe.Pointer into a TupleDataLayout row: pkg/hashkey already
// owns the group-key row; the value this package adds per group is
// just one Accumulator per aggregate expression, resized along with
// the key set rather than laid out in the same row.
package aggregate

import (
	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/common"
)

// Accumulator is the per-group running state of one aggregate
// expression. Update folds in one row, Merge folds in another
// accumulator of the same kind (the partial-aggregation combine step,
// pkg/plan/aggregate.go's RadixPartitionedHashTable Combine), and
// Finalize produces the output value once the group is complete.
type Accumulator interface {
	Update(vec *chunk.Vector, row int)
	Merge(other Accumulator)
	Finalize() *chunk.Value
}

// NewAccumulator constructs a fresh, zero-valued Accumulator for one
// group. argTyp is the aggregate's input column type (Decimal carries
// width/scale that sum/avg states must track).
type NewAccumulator func(argTyp, retTyp common.LType) Accumulator
