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
	"math"

	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/common"
)

// sumAccum mirrors the teacher's SumStateOp: isset + running value,
// widened to float64/decimal the way GetSumAggr widens INT32->Hugeint
// (pkg/plan/aggr_funcs.go) to avoid overflow; this package widens to
// float64 for non-decimal numerics and to common.Decimal for decimal
// input, rather than Hugeint, since there is no fixed-width int128
// column type exposed through chunk.Value.
type sumAccum struct {
	retTyp  common.LType
	isDec   bool
	isset   bool
	value   float64
	decimal common.Decimal
}

func newSumAccum(_, retTyp common.LType) Accumulator {
	a := &sumAccum{retTyp: retTyp}
	if retTyp.GetInternalType() == common.DECIMAL {
		a.isDec = true
	}
	return a
}

func (a *sumAccum) Update(vec *chunk.Vector, row int) {
	v := vec.GetValue(row)
	if v.IsNull {
		return
	}
	wasSet := a.isset
	a.isset = true
	if a.isDec {
		d := decimalOf(v)
		if !wasSet {
			a.decimal = d
		} else {
			a.decimal.Add(&a.decimal, &d)
		}
		return
	}
	a.value += numericOf(v)
}

func (a *sumAccum) Merge(other Accumulator) {
	o := other.(*sumAccum)
	if !o.isset {
		return
	}
	a.isset = true
	if a.isDec {
		a.decimal.Add(&a.decimal, &o.decimal)
		return
	}
	a.value += o.value
}

func (a *sumAccum) Finalize() *chunk.Value {
	if !a.isset {
		return &chunk.Value{Typ: a.retTyp, IsNull: true}
	}
	if a.isDec {
		return &chunk.Value{Typ: a.retTyp, Str: a.decimal.String()}
	}
	return &chunk.Value{Typ: a.retTyp, F64: a.value, I64: int64(a.value)}
}

// avgAccum mirrors AvgStateOp: a running sum plus a running count
// (pkg/plan/aggr_funcs.go's AvgOp divides the two at finalize).
type avgAccum struct {
	retTyp common.LType
	isset  bool
	sum    float64
	count  uint64
}

func newAvgAccum(_, retTyp common.LType) Accumulator {
	return &avgAccum{retTyp: retTyp}
}

func (a *avgAccum) Update(vec *chunk.Vector, row int) {
	v := vec.GetValue(row)
	if v.IsNull {
		return
	}
	a.isset = true
	a.sum += numericOf(v)
	a.count++
}

func (a *avgAccum) Merge(other Accumulator) {
	o := other.(*avgAccum)
	if !o.isset {
		return
	}
	a.isset = true
	a.sum += o.sum
	a.count += o.count
}

func (a *avgAccum) Finalize() *chunk.Value {
	if !a.isset || a.count == 0 {
		return &chunk.Value{Typ: a.retTyp, IsNull: true}
	}
	return &chunk.Value{Typ: a.retTyp, F64: a.sum / float64(a.count)}
}

// countAccum: count(*) counts every row including nulls; count(col)
// counts only non-null rows. star selects the former, grounded on
// GetCountAggr's two call sites (pkg/plan/function_aggr.go).
type countAccum struct {
	retTyp common.LType
	star   bool
	count  int64
}

func newCountAccum(star bool) NewAccumulator {
	return func(_, retTyp common.LType) Accumulator {
		return &countAccum{retTyp: retTyp, star: star}
	}
}

func (a *countAccum) Update(vec *chunk.Vector, row int) {
	if a.star {
		a.count++
		return
	}
	if !vec.GetValue(row).IsNull {
		a.count++
	}
}

func (a *countAccum) Merge(other Accumulator) { a.count += other.(*countAccum).count }
func (a *countAccum) Finalize() *chunk.Value  { return &chunk.Value{Typ: a.retTyp, I64: a.count} }

// minMaxAccum mirrors MinStateOp/MaxStateOp: isset + running value,
// compared via chunk.Value's field of the matching physical type
// rather than a generic TypeOp[T].Less/Greater, since chunk.Value
// already normalizes every physical type's bits into I64/F64/Str/Bool.
type minMaxAccum struct {
	retTyp  common.LType
	wantMax bool
	isset   bool
	value   *chunk.Value
}

func newMinAccum(_, retTyp common.LType) Accumulator {
	return &minMaxAccum{retTyp: retTyp}
}

func newMaxAccum(_, retTyp common.LType) Accumulator {
	return &minMaxAccum{retTyp: retTyp, wantMax: true}
}

func compareValues(a, b *chunk.Value) int {
	switch {
	case a.Typ.GetInternalType() == common.VARCHAR:
		if a.Str < b.Str {
			return -1
		} else if a.Str > b.Str {
			return 1
		}
		return 0
	case a.Typ.GetInternalType() == common.DOUBLE || a.Typ.GetInternalType() == common.FLOAT:
		switch {
		case a.F64 < b.F64:
			return -1
		case a.F64 > b.F64:
			return 1
		default:
			return 0
		}
	default:
		switch {
		case a.I64 < b.I64:
			return -1
		case a.I64 > b.I64:
			return 1
		default:
			return 0
		}
	}
}

func (a *minMaxAccum) Update(vec *chunk.Vector, row int) {
	v := vec.GetValue(row)
	if v.IsNull {
		return
	}
	if !a.isset {
		a.isset = true
		a.value = v
		return
	}
	cmp := compareValues(v, a.value)
	if (a.wantMax && cmp > 0) || (!a.wantMax && cmp < 0) {
		a.value = v
	}
}

func (a *minMaxAccum) Merge(other Accumulator) {
	o := other.(*minMaxAccum)
	if !o.isset {
		return
	}
	if !a.isset {
		a.isset = true
		a.value = o.value
		return
	}
	cmp := compareValues(o.value, a.value)
	if (a.wantMax && cmp > 0) || (!a.wantMax && cmp < 0) {
		a.value = o.value
	}
}

func (a *minMaxAccum) Finalize() *chunk.Value {
	if !a.isset {
		return &chunk.Value{Typ: a.retTyp, IsNull: true}
	}
	return a.value
}

// varianceAccum mirrors DevFromAveAggregateState (aggregate_factory.cpp's
// MakeVarianceAggregateFunction<PT, is_sample> /
// MakeStddevAggregateFunction<PT, is_sample>): a running sum and
// sum-of-squares plus count, merged by plain addition across partials
// rather than Welford's algorithm, since the original state is exactly
// that triple. sample switches the variance denominator from n to
// n-1 (variance_samp/stddev_samp vs variance_pop/stddev_pop); stddev
// takes the square root of the variance at Finalize.
type varianceAccum struct {
	retTyp common.LType
	sample bool
	stddev bool
	isset  bool
	count  int64
	sum    float64
	sumSq  float64
}

func newVarianceAccum(sample, stddev bool) NewAccumulator {
	return func(_, retTyp common.LType) Accumulator {
		return &varianceAccum{retTyp: retTyp, sample: sample, stddev: stddev}
	}
}

func (a *varianceAccum) Update(vec *chunk.Vector, row int) {
	v := vec.GetValue(row)
	if v.IsNull {
		return
	}
	a.isset = true
	x := numericOf(v)
	a.count++
	a.sum += x
	a.sumSq += x * x
}

func (a *varianceAccum) Merge(other Accumulator) {
	o := other.(*varianceAccum)
	if !o.isset {
		return
	}
	a.isset = true
	a.count += o.count
	a.sum += o.sum
	a.sumSq += o.sumSq
}

func (a *varianceAccum) Finalize() *chunk.Value {
	denom := float64(a.count)
	if a.sample {
		denom = float64(a.count - 1)
	}
	if !a.isset || a.count == 0 || denom <= 0 {
		return &chunk.Value{Typ: a.retTyp, IsNull: true}
	}
	mean := a.sum / float64(a.count)
	variance := (a.sumSq - float64(a.count)*mean*mean) / denom
	if variance < 0 {
		variance = 0
	}
	if a.stddev {
		return &chunk.Value{Typ: a.retTyp, F64: math.Sqrt(variance)}
	}
	return &chunk.Value{Typ: a.retTyp, F64: variance}
}

func numericOf(v *chunk.Value) float64 {
	if v.Typ.GetInternalType() == common.DOUBLE || v.Typ.GetInternalType() == common.FLOAT {
		return v.F64
	}
	return float64(v.I64)
}

func decimalOf(v *chunk.Value) common.Decimal {
	d, err := common.ParseDecimal(v.String())
	if err != nil {
		return common.Decimal{}
	}
	return d
}
