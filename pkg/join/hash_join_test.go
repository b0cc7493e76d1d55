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

package join

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/common"
)

func intVec(vals []int32, nulls map[int]bool) *chunk.Vector {
	v := chunk.NewFlatVector(common.IntegerType(), len(vals))
	data := chunk.GetSliceInPhyFormatFlat[int32](v)
	copy(data, vals)
	for i := range vals {
		if nulls[i] {
			chunk.SetNullInPhyFormatFlat(v, uint64(i), true)
		}
	}
	return v
}

func buildTable(t *testing.T, buildKeys, buildVals []int32) *HashJoinTable {
	ht := NewHashJoinTable([]common.LType{common.IntegerType()})
	keyCol := intVec(buildKeys, nil)
	valCol := intVec(buildVals, nil)
	ht.Build([]*chunk.Vector{keyCol}, []*chunk.Vector{valCol}, len(buildKeys))
	require.Equal(t, len(buildKeys), ht.Count())
	return ht
}

func Test_HashJoinTable_InnerJoin(t *testing.T) {
	ht := buildTable(t, []int32{1, 2, 2, 3}, []int32{10, 20, 21, 30})

	probeKey := intVec([]int32{2, 4, 1}, nil)
	probeVal := intVec([]int32{200, 400, 100}, nil)
	res := ht.Probe(Inner, []*chunk.Vector{probeKey}, []*chunk.Vector{probeVal}, 3, nil)

	// probe row 0 (key=2) matches two build rows (20, 21); probe row
	// 1 (key=4) matches nothing; probe row 2 (key=1) matches one.
	require.Len(t, res, 3)
	matched := map[int64]int{}
	for _, r := range res {
		matched[r.Build[0].I64]++
	}
	require.Equal(t, 1, matched[20])
	require.Equal(t, 1, matched[21])
	require.Equal(t, 1, matched[10])
}

func Test_HashJoinTable_LeftOuterJoin_UnmatchedProbeRowSurfacesNullBuild(t *testing.T) {
	ht := buildTable(t, []int32{1}, []int32{100})

	probeKey := intVec([]int32{1, 2}, nil)
	probeVal := intVec([]int32{10, 20}, nil)
	res := ht.Probe(LeftOuter, []*chunk.Vector{probeKey}, []*chunk.Vector{probeVal}, 2, nil)

	require.Len(t, res, 2)
	var sawUnmatched bool
	for _, r := range res {
		if r.Build == nil {
			sawUnmatched = true
			require.EqualValues(t, 20, r.Probe[0].I64)
		}
	}
	require.True(t, sawUnmatched)
}

func Test_HashJoinTable_LeftSemiAndAnti(t *testing.T) {
	ht := buildTable(t, []int32{1, 3}, []int32{10, 30})

	probeKey := intVec([]int32{1, 2, 3}, nil)
	probeVal := intVec([]int32{100, 200, 300}, nil)

	semi := ht.Probe(LeftSemi, []*chunk.Vector{probeKey}, []*chunk.Vector{probeVal}, 3, nil)
	require.Len(t, semi, 2)
	for _, r := range semi {
		require.Nil(t, r.Build)
	}

	anti := ht.Probe(LeftAnti, []*chunk.Vector{probeKey}, []*chunk.Vector{probeVal}, 3, nil)
	require.Len(t, anti, 1)
	require.EqualValues(t, 200, anti[0].Probe[0].I64)
}

func Test_HashJoinTable_RightOuter_FinishSurfacesUnmatchedBuildRows(t *testing.T) {
	ht := buildTable(t, []int32{1, 2, 3}, []int32{10, 20, 30})

	probeKey := intVec([]int32{2}, nil)
	probeVal := intVec([]int32{200}, nil)
	matched := ht.Probe(RightOuter, []*chunk.Vector{probeKey}, []*chunk.Vector{probeVal}, 1, nil)
	require.Len(t, matched, 1)

	unmatched := ht.Finish(RightOuter)
	require.Len(t, unmatched, 2)
	for _, r := range unmatched {
		require.Nil(t, r.Probe)
		require.NotEqualValues(t, 20, r.Build[0].I64)
	}
}

func Test_HashJoinTable_NonEquiPredicateFiltersMatches(t *testing.T) {
	ht := buildTable(t, []int32{1, 1}, []int32{10, 20})

	probeKey := intVec([]int32{1}, nil)
	probeVal := intVec([]int32{15}, nil)
	pred := func(probeRow, buildRow []*chunk.Value) bool {
		return buildRow[0].I64 > probeRow[0].I64
	}
	res := ht.Probe(Inner, []*chunk.Vector{probeKey}, []*chunk.Vector{probeVal}, 1, pred)
	require.Len(t, res, 1)
	require.EqualValues(t, 20, res[0].Build[0].I64)
}

func Test_HashJoinTable_BuildSideNullKeyNeverMatches(t *testing.T) {
	ht := NewHashJoinTable([]common.LType{common.IntegerType()})
	keyCol := intVec([]int32{1, 0}, map[int]bool{1: true})
	valCol := intVec([]int32{10, 99}, nil)
	ht.Build([]*chunk.Vector{keyCol}, []*chunk.Vector{valCol}, 2)
	require.Equal(t, 1, ht.Count()) // the null-key row was skipped
}

func Test_RuntimeFilter_AdmitsBuildSideValuesOnly(t *testing.T) {
	ht := buildTable(t, []int32{1, 2, 3}, []int32{10, 20, 30})
	rf, ok := ht.BuildRuntimeFilter(0, false, false)
	require.True(t, ok)

	require.True(t, rf.Admits([]*chunk.Value{{Typ: common.IntegerType(), I64: 20}}))
	require.False(t, rf.Admits([]*chunk.Value{{Typ: common.IntegerType(), I64: 99}}))
}

func Test_RuntimeFilter_DisabledForNullSafeOrRemoteExchange(t *testing.T) {
	ht := buildTable(t, []int32{1, 2}, []int32{10, 20})
	_, ok := ht.BuildRuntimeFilter(0, true, false)
	require.False(t, ok)
	_, ok = ht.BuildRuntimeFilter(0, false, true)
	require.False(t, ok)
}
