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
	"fmt"

	"github.com/flowshard/worker/pkg/common"
)

// Signature keys a registered aggregate by name plus the physical
// shape of its argument and result, the same axis the teacher's
// per-function FunctionSet.Bind resolves on (function_aggr.go's
// BindDecimalSum/BindDecimalAvg/BindDecimalMinMax re-specialize a
// function once the caller's concrete decimal width/scale is known).
type Signature struct {
	Name    string
	ArgType common.PhyType
	RetType common.PhyType
}

// entry is the registered bundle: just the constructor. The result
// type is not stored here; it is the Signature's RetType key, and the
// constructor receives the caller's full LType (decimal width/scale
// included) when it is invoked.
type entry struct {
	newAccum NewAccumulator
}

var registry = map[Signature]entry{}

func register(name string, argTyp, retTyp common.PhyType, ctor NewAccumulator) {
	registry[Signature{Name: name, ArgType: argTyp, RetType: retTyp}] = entry{newAccum: ctor}
}

func init() {
	for _, pt := range []common.PhyType{common.INT32, common.INT64, common.DOUBLE, common.DECIMAL} {
		register("sum", pt, common.DECIMAL, newSumAccum)
		register("sum", pt, common.DOUBLE, newSumAccum)
		register("min", pt, pt, newMinAccum)
		register("max", pt, pt, newMaxAccum)
	}
	register("avg", common.INT32, common.DOUBLE, newAvgAccum)
	register("avg", common.DOUBLE, common.DOUBLE, newAvgAccum)
	register("avg", common.DECIMAL, common.DECIMAL, newAvgAccum)

	register("min", common.VARCHAR, common.VARCHAR, newMinAccum)
	register("max", common.VARCHAR, common.VARCHAR, newMaxAccum)
	register("min", common.DATE, common.DATE, newMinAccum)
	register("max", common.DATE, common.DATE, newMaxAccum)

	register("count", common.INT32, common.INT64, newCountAccum(false))
	register("count_star", common.INT32, common.INT64, newCountAccum(true))

	register("approx_count_distinct", common.VARCHAR, common.INT64, newHLLAccum)
	register("approx_count_distinct", common.INT64, common.INT64, newHLLAccum)
	register("group_concat", common.VARCHAR, common.VARCHAR, newGroupConcatAccum)

	for _, pt := range []common.PhyType{common.INT32, common.INT64, common.DOUBLE} {
		register("variance", pt, common.DOUBLE, newVarianceAccum(false, false))
		register("variance_pop", pt, common.DOUBLE, newVarianceAccum(false, false))
		register("var_pop", pt, common.DOUBLE, newVarianceAccum(false, false))
		register("variance_samp", pt, common.DOUBLE, newVarianceAccum(true, false))
		register("var_samp", pt, common.DOUBLE, newVarianceAccum(true, false))
		register("std", pt, common.DOUBLE, newVarianceAccum(false, true))
		register("stddev", pt, common.DOUBLE, newVarianceAccum(false, true))
		register("stddev_pop", pt, common.DOUBLE, newVarianceAccum(false, true))
		register("stddev_samp", pt, common.DOUBLE, newVarianceAccum(true, true))
		register("percentile_approx", pt, common.DOUBLE, newPercentileApproxAccum)
	}

	register("bitmap_union", common.INT64, common.VARCHAR, newBitmapUnionAccum)
	register("bitmap_union_count", common.INT64, common.INT64, newBitmapUnionCountAccum)
	register("bitmap_intersect", common.INT64, common.VARCHAR, newBitmapIntersectAccum)
	register("bitmap_intersect_count", common.INT64, common.INT64, newBitmapIntersectCountAccum)
}

// Resolve looks up the constructor for name over argTyp, the way
// GetAvgAggr/GetSumAggr switch on (inputPhyTyp, retPhyTyp) pairs. An
// exact (name, argTyp, retTyp) signature is tried first; failing
// that, any constructor registered for (name, argTyp) is returned,
// and which one is not defined when several are registered. Only the
// constructor is returned: the result type an accumulator produces is
// the retTyp the caller later passes to it (sum, for example, keeps a
// decimal state exactly when that retTyp is DECIMAL).
func Resolve(name string, argTyp, retTyp common.LType) (NewAccumulator, error) {
	pt := argTyp.GetInternalType()
	want := retTyp.GetInternalType()
	if e, ok := registry[Signature{Name: name, ArgType: pt, RetType: want}]; ok {
		return e.newAccum, nil
	}
	// fall back to the one registered signature for (name, argTyp)
	for sig, e := range registry {
		if sig.Name == name && sig.ArgType == pt {
			return e.newAccum, nil
		}
	}
	return nil, fmt.Errorf("aggregate: no function %q for arg type %v", name, pt)
}
