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

// Package join implements the hash join operator's build and probe
// phases. Grounded on the teacher's pkg/plan/hash_join.go
// (HashJoin/JoinHashTable/Scan and its eight Next*Join methods), but
// reworked onto pkg/hashkey's adaptors for the key instead of the
// teacher's inline cgo-backed TupleDataCollection bucket table, and
// storing build-side rows as plain []*chunk.Value slices the way
// pkg/aggregate's HashAggr stores group keys, rather than an
// unsafe.Pointer chain.
package join

import (
	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/common"
	"github.com/flowshard/worker/pkg/hashkey"
)

// Type is the join kind, mirroring the teacher's LOT_JoinType values
// relevant to a physical hash join plus the four semi/anti variants
// spec.md §4.3 names that the teacher's LOT_JoinTypeSEMI/ANTI only
// cover from the probe side.
type Type int

const (
	Inner Type = iota
	LeftOuter
	RightOuter
	FullOuter
	LeftSemi
	LeftAnti
	RightSemi
	RightAnti
)

// NonEquiPredicate filters a candidate (probe row, build row) match
// found via the equi-join hash lookup. A non-nil predicate disables
// the build-side single-match short circuits semi/anti joins would
// otherwise use, since more than one build row sharing an equi-key
// slot may now disagree on the non-equi condition.
type NonEquiPredicate func(probeRow, buildRow []*chunk.Value) bool

// HashJoinTable is the build side: one pkg/hashkey KeySet keyed on
// the equi-join columns, fanning out to every build row that shares a
// key (unlike pkg/aggregate's HashAggr, a join key is not unique: the
// bucket holds every matching row index, mirroring the teacher's
// JoinHashTable chaining build rows off one hash bucket via
// pointerOffset chains).
type HashJoinTable struct {
	keyTypes  []common.LType
	buildRows [][]*chunk.Value
	keySet    hashkey.KeySet
	buckets   map[int][]int // key-set slot -> build row indices
	matched   []bool        // per build row, set true once probed (right outer/semi/anti bookkeeping)
}

func NewHashJoinTable(keyTypes []common.LType) *HashJoinTable {
	return &HashJoinTable{
		keyTypes: keyTypes,
		keySet:   newKeySetFor(keyTypes, 1024),
		buckets:  make(map[int][]int),
	}
}

// newKeySetFor mirrors pkg/aggregate's helper of the same name: a
// single fixed-width numeric equi-key gets OneNumberKey, a single
// VARCHAR gets OneStringKey, anything else (multi-column, or a
// non-bit-castable single column) gets SerializedCompositeKey. A join
// key column is never null-significant the way a group-by key is
// (SQL equi-join predicates do not match NULL = NULL), so the
// non-nullable adaptors are used directly; Build and probeMatches
// themselves skip rows whose key holds a NULL (BuildSet/Probe still see
// those rows, and their slots are ignored).
func newKeySetFor(keyTypes []common.LType, cnt int) hashkey.KeySet {
	if len(keyTypes) == 1 {
		t := keyTypes[0]
		switch t.GetInternalType() {
		case common.VARCHAR:
			return hashkey.NewOneStringKey(cnt)
		case common.DECIMAL, common.INTERVAL, common.INT128:
		default:
			return hashkey.NewOneNumberKey(t, cnt)
		}
	}
	return hashkey.NewSerializedCompositeKey(cnt)
}

// Build inserts count build-side rows keyed by keyCols. Rows whose
// key contains a NULL never match any probe row and are skipped,
// mirroring SQL's equi-join NULL semantics.
func (ht *HashJoinTable) Build(keyCols []*chunk.Vector, buildCols []*chunk.Vector, count int) {
	slots, _ := ht.keySet.BuildSet(keyCols, count)
	for i := 0; i < count; i++ {
		if rowKeyHasNull(keyCols, i) {
			continue
		}
		row := make([]*chunk.Value, len(buildCols))
		for c, col := range buildCols {
			row[c] = col.GetValue(i)
		}
		rowIdx := len(ht.buildRows)
		ht.buildRows = append(ht.buildRows, row)
		ht.matched = append(ht.matched, false)
		ht.buckets[slots[i]] = append(ht.buckets[slots[i]], rowIdx)
	}
}

func rowKeyHasNull(cols []*chunk.Vector, row int) bool {
	for _, c := range cols {
		if c.GetValue(row).IsNull {
			return true
		}
	}
	return false
}

// Count returns the number of build-side rows stored.
func (ht *HashJoinTable) Count() int { return len(ht.buildRows) }

// pair is one matched (probe row, build row) association, found by
// the equi-join lookup and surviving any NonEquiPredicate.
type pair struct {
	probeRow int
	buildRow int
}

// probeMatches resolves every probe row's candidate build rows (via
// the equi-key slot) and applies pred if non-nil, marking
// ht.matched for later right-side outer/semi/anti passes. This is the
// shared first step of every Next*Join below, the same way the
// teacher's Scan.ScanKeyMatches is shared by NextSemiJoin/
// NextAntiJoin/NextMarkJoin.
func (ht *HashJoinTable) probeMatches(keyCols []*chunk.Vector, probeRows [][]*chunk.Value, count int, pred NonEquiPredicate) ([]pair, []bool) {
	slots, notFound := ht.keySet.Probe(keyCols, count)
	probeMatched := make([]bool, count)
	var pairs []pair
	for i := 0; i < count; i++ {
		if notFound[i] || rowKeyHasNull(keyCols, i) {
			continue
		}
		for _, buildIdx := range ht.buckets[slots[i]] {
			if pred != nil && !pred(probeRows[i], ht.buildRows[buildIdx]) {
				continue
			}
			pairs = append(pairs, pair{probeRow: i, buildRow: buildIdx})
			probeMatched[i] = true
			ht.matched[buildIdx] = true
		}
	}
	return pairs, probeMatched
}

// ProbeResult is one output row: the probe-side input row (nil for
// unmatched build rows surfaced by a right/full outer join) paired
// with the matched build-side row (nil for unmatched probe rows, or
// for semi/anti joins which never surface build columns).
type ProbeResult struct {
	Probe []*chunk.Value
	Build []*chunk.Value
}

// rowsToValues reads count rows of cols into [][]*chunk.Value,
// positionally, the same shape HashJoinTable.Build captures build
// rows in.
func rowsToValues(cols []*chunk.Vector, count int) [][]*chunk.Value {
	rows := make([][]*chunk.Value, count)
	for i := 0; i < count; i++ {
		row := make([]*chunk.Value, len(cols))
		for c, col := range cols {
			row[c] = col.GetValue(i)
		}
		rows[i] = row
	}
	return rows
}

// Probe runs one probe-side chunk of keyCols/probeCols through every
// join Type's semantics, mirroring the teacher's Scan.Next dispatch
// over LOT_JoinType but returning fully materialized result rows
// instead of a columnar chunk slice (pkg/operator's
// HashJoinProbeOperator marshals these back into a chunk.Chunk).
func (ht *HashJoinTable) Probe(typ Type, keyCols, probeCols []*chunk.Vector, count int, pred NonEquiPredicate) []ProbeResult {
	probeRows := rowsToValues(probeCols, count)
	pairs, probeMatched := ht.probeMatches(keyCols, probeRows, count, pred)

	switch typ {
	case Inner:
		return pairsToResults(pairs, probeRows, ht.buildRows)
	case LeftOuter:
		out := pairsToResults(pairs, probeRows, ht.buildRows)
		for i := 0; i < count; i++ {
			if !probeMatched[i] {
				out = append(out, ProbeResult{Probe: probeRows[i]})
			}
		}
		return out
	case LeftSemi:
		var out []ProbeResult
		for i := 0; i < count; i++ {
			if probeMatched[i] {
				out = append(out, ProbeResult{Probe: probeRows[i]})
			}
		}
		return out
	case LeftAnti:
		var out []ProbeResult
		for i := 0; i < count; i++ {
			if !probeMatched[i] {
				out = append(out, ProbeResult{Probe: probeRows[i]})
			}
		}
		return out
	case FullOuter:
		out := pairsToResults(pairs, probeRows, ht.buildRows)
		for i := 0; i < count; i++ {
			if !probeMatched[i] {
				out = append(out, ProbeResult{Probe: probeRows[i]})
			}
		}
		return out
	case RightOuter, RightSemi, RightAnti:
		// The matched pairs surface here; the build side's
		// never-matched rows these types also need are only knowable
		// once every probe chunk has been processed, so those are
		// returned by Finish below, which the caller invokes once per
		// fragment after the last Probe call.
		return pairsToResults(pairs, probeRows, ht.buildRows)
	default:
		return pairsToResults(pairs, probeRows, ht.buildRows)
	}
}

func pairsToResults(pairs []pair, probeRows, buildRows [][]*chunk.Value) []ProbeResult {
	out := make([]ProbeResult, len(pairs))
	for i, p := range pairs {
		out[i] = ProbeResult{Probe: probeRows[p.probeRow], Build: buildRows[p.buildRow]}
	}
	return out
}

// Finish surfaces build-side rows never matched by any probe chunk,
// the tail pass right-outer/full-outer/right-semi/right-anti joins
// need once probing is complete (mirroring how the teacher's
// HJS_SCAN_HT stage follows HJS_PROBE). For RightSemi/RightAnti it
// returns matched/unmatched build rows with no probe-side column;
// for RightOuter/FullOuter it returns unmatched build rows paired
// with a nil probe side.
func (ht *HashJoinTable) Finish(typ Type) []ProbeResult {
	var out []ProbeResult
	switch typ {
	case RightOuter, FullOuter:
		for i, row := range ht.buildRows {
			if !ht.matched[i] {
				out = append(out, ProbeResult{Build: row})
			}
		}
	case RightSemi:
		for i, row := range ht.buildRows {
			if ht.matched[i] {
				out = append(out, ProbeResult{Build: row})
			}
		}
	case RightAnti:
		for i, row := range ht.buildRows {
			if !ht.matched[i] {
				out = append(out, ProbeResult{Build: row})
			}
		}
	}
	return out
}
