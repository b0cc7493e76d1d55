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
	"encoding/binary"
	"strings"

	"github.com/axiomhq/hyperloglog"
	metro "github.com/dgryski/go-metro"

	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/common"
)

// hllAccum is approx_count_distinct: a HyperLogLog sketch
// (axiomhq/hyperloglog, a pack dependency with no teacher analogue —
// the teacher has no approximate-cardinality aggregate) fed a
// MetroHash64 (seed 0) of each row's bytes: a VARCHAR's string bytes,
// otherwise the Value's I64 as 8 little-endian bytes. Integer rows are
// read through the same Value.I64 the bitmap aggregates
// (bitmap_agg.go) read; pkg/hashkey's adaptors hash with their own seed
// and representation, which this does not share.
type hllAccum struct {
	retTyp common.LType
	sk     *hyperloglog.Sketch
}

func newHLLAccum(_, retTyp common.LType) Accumulator {
	return &hllAccum{retTyp: retTyp, sk: hyperloglog.New()}
}

func rowKeyBytes(v *chunk.Value) []byte {
	if v.Typ.GetInternalType() == common.VARCHAR {
		return []byte(v.Str)
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v.I64))
	return buf[:]
}

func (a *hllAccum) Update(vec *chunk.Vector, row int) {
	v := vec.GetValue(row)
	if v.IsNull {
		return
	}
	h := metro.Hash64(rowKeyBytes(v), 0)
	a.sk.InsertHash(h)
}

func (a *hllAccum) Merge(other Accumulator) {
	o := other.(*hllAccum)
	_ = a.sk.Merge(o.sk)
}

func (a *hllAccum) Finalize() *chunk.Value {
	return &chunk.Value{Typ: a.retTyp, I64: int64(a.sk.Estimate())}
}

// the exact bitmap aggregates (bitmap_union/bitmap_intersect/
// bitmap_union_count/bitmap_intersect_count) that used to live here as
// a single map[int64]struct{} distinct-counter now live in
// bitmap_agg.go as four operations over a real bitmap object, grounded
// on aggregate_factory.cpp's add_object_mapping<TYPE_OBJECT,...>
// registrations.

// groupConcatAccum implements group_concat/string_agg: concatenate
// every non-null row's string representation with a separator. No
// teacher analogue; grounded on the same Value.String() normalization
// every other accumulator in this package uses to read a row.
type groupConcatAccum struct {
	retTyp common.LType
	sep    string
	buf    strings.Builder
	n      int
}

func newGroupConcatAccum(_, retTyp common.LType) Accumulator {
	return &groupConcatAccum{retTyp: retTyp, sep: ","}
}

func (a *groupConcatAccum) Update(vec *chunk.Vector, row int) {
	v := vec.GetValue(row)
	if v.IsNull {
		return
	}
	if a.n > 0 {
		a.buf.WriteString(a.sep)
	}
	a.buf.WriteString(v.String())
	a.n++
}

func (a *groupConcatAccum) Merge(other Accumulator) {
	o := other.(*groupConcatAccum)
	if o.n == 0 {
		return
	}
	if a.n > 0 {
		a.buf.WriteString(a.sep)
	}
	a.buf.WriteString(o.buf.String())
	a.n += o.n
}

func (a *groupConcatAccum) Finalize() *chunk.Value {
	if a.n == 0 {
		return &chunk.Value{Typ: a.retTyp, IsNull: true}
	}
	return &chunk.Value{Typ: a.retTyp, Str: a.buf.String()}
}
