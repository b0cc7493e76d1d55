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

package aggregate

import (
	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/common"
	"github.com/flowshard/worker/pkg/hashkey"
	"github.com/flowshard/worker/pkg/util"
)

// Expr is one aggregate expression in a HashAggr's projection list:
// which column to read and which function to apply to it, the
// narrowed-down counterpart of the teacher's AggrObject
// (pkg/plan/aggregate.go).
type Expr struct {
	Name    string
	Col     int // index into the input chunk's columns; -1 for count(*)
	ArgType common.LType
	RetType common.LType
}

// HashAggr is the grouped-aggregate operator: build side accumulates
// one accumulator set per distinct group key, sink-side Combine folds
// partial results from parallel build workers, Finalize emits one row
// per group. Grounded on pkg/plan/aggregate.go's HashAggr/
// GroupedAggrHashTable/RadixPartitionedHashTable, generalized to use
// pkg/hashkey's adaptors for the group key instead of the teacher's
// inline TupleDataLayout bucket table, and to this package's
// Accumulator instead of the teacher's unsafe.Pointer-addressed
// aggregate states.
type HashAggr struct {
	groupTypes []common.LType
	exprs      []Expr
	keySet     hashkey.KeySet
	groups     [][]Accumulator
	groupKeys  [][]*chunk.Value
	newAccum   []NewAccumulator

	cfg util.AggregationConfig

	// Two-phase distinct mode (SPEC_FULL.md §4, spec's Open Question
	// "distinct-aggregation pass-through switch"): the first
	// cfg.DistinctSampleChunks chunks always go through full grouping;
	// after that, if the observed hit ratio (rows that matched an
	// existing group / rows seen) is below
	// cfg.DistinctHitRatioThreshold, the aggregate concludes the
	// column is close to already-distinct and switches to pass-through
	// mode: every row becomes its own group without a set lookup,
	// which is what the probe-only Probe() path on a set nobody ever
	// inserts into effectively costs anyway, made explicit here so the
	// hot path skips the hashing entirely.
	chunksSeen  int
	rowsSeen    int64
	rowsMatched int64
	passThrough bool
}

// NewHashAggr builds a HashAggr over groupTypes key columns and the
// given aggregate expressions, each resolved via Resolve.
func NewHashAggr(groupTypes []common.LType, exprs []Expr, cfg util.AggregationConfig) (*HashAggr, error) {
	ha := &HashAggr{groupTypes: groupTypes, exprs: exprs, cfg: cfg}
	ha.newAccum = make([]NewAccumulator, len(exprs))
	for i, e := range exprs {
		ctor, err := Resolve(e.Name, e.ArgType, e.RetType)
		if err != nil {
			return nil, err
		}
		ha.newAccum[i] = ctor
	}
	ha.keySet = newKeySetFor(groupTypes, 1024)
	return ha, nil
}

// newKeySetFor picks a pkg/hashkey adaptor by group column shape: a
// single fixed-width numeric column gets OneNullableNumberKey, a
// single VARCHAR gets OneNullableStringKey, anything else (including
// any multi-column grouping) gets SerializedCompositeKey. The
// non-nullable OneNumberKey/OneStringKey forms are never chosen here,
// whatever the column's nullability.
func newKeySetFor(groupTypes []common.LType, cnt int) hashkey.KeySet {
	if len(groupTypes) == 1 {
		t := groupTypes[0]
		switch t.GetInternalType() {
		case common.VARCHAR:
			return hashkey.NewOneNullableStringKey(cnt)
		case common.DECIMAL, common.INTERVAL, common.INT128:
			// composite path: these types aren't bit-castable to a
			// single uint64 the way OneNumberKey assumes.
		default:
			return hashkey.NewOneNullableNumberKey(t, cnt)
		}
	}
	return hashkey.NewSerializedCompositeKey(cnt)
}

// Build folds one input chunk's rows into the aggregate: groupCols are
// the key columns (len(groupTypes) of them), argCols line up
// positionally with HashAggr.exprs (a -1 Expr.Col means count(*) and
// has no corresponding argCols entry read).
func (ha *HashAggr) Build(groupCols []*chunk.Vector, argCols []*chunk.Vector, count int) {
	util.AssertFunc(len(groupCols) == len(ha.groupTypes))

	var slots []int
	var notFound []bool
	if ha.passThrough {
		slots = make([]int, count)
		notFound = make([]bool, count)
		base := len(ha.groups)
		for i := 0; i < count; i++ {
			slots[i] = base + i
			notFound[i] = true
		}
	} else {
		slots, notFound = ha.keySet.BuildSet(groupCols, count)
		ha.observe(count, notFound)
	}

	for i := 0; i < count; i++ {
		slot := slots[i]
		for len(ha.groups) <= slot {
			ha.groups = append(ha.groups, ha.newGroup())
			ha.groupKeys = append(ha.groupKeys, nil)
		}
		if ha.groupKeys[slot] == nil {
			key := make([]*chunk.Value, len(groupCols))
			for c, col := range groupCols {
				key[c] = col.GetValue(i)
			}
			ha.groupKeys[slot] = key
		}
		for a, accum := range ha.groups[slot] {
			if ha.exprs[a].Col < 0 {
				accum.Update(nil, i) // count(*): Update only counts rows for countAccum.star
				continue
			}
			accum.Update(argCols[a], i)
		}
	}
}

func (ha *HashAggr) newGroup() []Accumulator {
	accs := make([]Accumulator, len(ha.exprs))
	for i, e := range ha.exprs {
		accs[i] = ha.newAccum[i](e.ArgType, e.RetType)
	}
	return accs
}

// observe updates the distinct-pass-through sampling counters and
// flips passThrough once the configured sample window closes below
// threshold (SPEC_FULL.md §4).
func (ha *HashAggr) observe(count int, notFound []bool) {
	ha.chunksSeen++
	ha.rowsSeen += int64(count)
	for _, nf := range notFound {
		if !nf {
			ha.rowsMatched++
		}
	}
	if ha.chunksSeen < ha.cfg.DistinctSampleChunks {
		return
	}
	if ha.rowsSeen == 0 {
		return
	}
	hitRatio := float64(ha.rowsMatched) / float64(ha.rowsSeen)
	if hitRatio < ha.cfg.DistinctHitRatioThreshold {
		ha.passThrough = true
	}
}

// valueVectors materializes a one-row Vector per key, so a stored
// group key (captured once as []*chunk.Value in Build) can be pushed
// back through a KeySet's BuildSet, which only accepts columnar
// input.
func valueVectors(vals []*chunk.Value) []*chunk.Vector {
	vecs := make([]*chunk.Vector, len(vals))
	for i, v := range vals {
		vec := chunk.NewFlatVector(v.Typ, 1)
		vec.SetValue(0, v)
		vecs[i] = vec
	}
	return vecs
}

// Combine merges other's groups into ha by group key, the
// partial-aggregation combine step (RadixPartitionedHashTable.Combine
// in the teacher). Both HashAggr instances must share group key
// column shape; group-key equality is re-resolved through ha's own
// key set (group slot numbers are local to each instance, so slot
// identity can't be compared directly) by replaying each of other's
// stored group keys through ha.keySet.BuildSet.
func (ha *HashAggr) Combine(other *HashAggr) {
	for slot, accs := range other.groups {
		cols := valueVectors(other.groupKeys[slot])
		slots, _ := ha.keySet.BuildSet(cols, 1)
		dst := slots[0]
		for len(ha.groups) <= dst {
			ha.groups = append(ha.groups, ha.newGroup())
			ha.groupKeys = append(ha.groupKeys, other.groupKeys[slot])
		}
		if ha.groupKeys[dst] == nil {
			ha.groupKeys[dst] = other.groupKeys[slot]
		}
		for i, acc := range accs {
			ha.groups[dst][i].Merge(acc)
		}
	}
}

// Finalize returns one []*chunk.Value row per group, columns in
// exprs order.
func (ha *HashAggr) Finalize() [][]*chunk.Value {
	rows := make([][]*chunk.Value, len(ha.groups))
	for g, accs := range ha.groups {
		row := make([]*chunk.Value, len(accs))
		for i, acc := range accs {
			row[i] = acc.Finalize()
		}
		rows[g] = row
	}
	return rows
}

// GroupCount returns the number of distinct groups seen so far.
func (ha *HashAggr) GroupCount() int { return len(ha.groups) }
