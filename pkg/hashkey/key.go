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

package hashkey

import (
	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/common"
	"github.com/flowshard/worker/pkg/util"
)

// KeySet is the contract all five adaptors satisfy: fold a batch of
// key columns into the set, row by row, either inserting new rows
// (BuildSet) or only probing for membership (Probe). Both return a
// parallel notFound mask so the caller (hash aggregate partial stage,
// hash join probe) can route rows that didn't match without a second
// pass over the columns.
type KeySet interface {
	// BuildSet folds count rows of keyColumns into the set, returning
	// group/slot indices per row and a notFound mask that is true for
	// rows whose key was absent and just got inserted, and false for
	// rows whose key was already present (including a repeat of a key
	// first seen earlier in the same call).
	BuildSet(keyColumns []*chunk.Vector, count int) (slots []int, notFound []bool)

	// Probe looks up count rows without inserting, setting
	// notFound[i] true for rows absent from the set. Used by
	// pkg/join's probe, which must not grow the build side.
	Probe(keyColumns []*chunk.Vector, count int) (slots []int, notFound []bool)

	// Len returns the number of distinct keys currently in the set.
	Len() int
}

// hashColumns computes the per-row memoized hash of keyColumns[0..n),
// the same combine-one-column-at-a-time convention
// JoinHashTable.hash uses (pkg/plan/hash_join.go): HashTypeSwitch
// seeds from column 0, CombineHashTypeSwitch folds in the rest.
func hashColumns(keyColumns []*chunk.Vector, count int) []uint64 {
	hashes := chunk.NewFlatVector(common.HashType(), count)
	sel := chunk.IncrSelectVectorInPhyFormatFlat()
	chunk.HashTypeSwitch(keyColumns[0], hashes, sel, count, false)
	for i := 1; i < len(keyColumns); i++ {
		chunk.CombineHashTypeSwitch(hashes, keyColumns[i], sel, count, false)
	}
	return append([]uint64(nil), chunk.GetSliceInPhyFormatFlat[uint64](hashes)[:count]...)
}

// rowIsNull reports whether row idx of vec is null; vec must already
// be flattened by the caller.
func rowIsNull(vec *chunk.Vector, idx int) bool {
	return !chunk.GetMaskInPhyFormatFlat(vec).RowIsValid(uint64(idx))
}

func assertSameCardinality(keyColumns []*chunk.Vector, count int) {
	util.AssertFunc(len(keyColumns) > 0)
	_ = count
}
