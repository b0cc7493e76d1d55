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
	"math"

	"github.com/kamstrup/intmap"

	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/common"
)

// OneNumberKey adapts a single non-nullable fixed-width numeric column
// (INT8/16/32/64, UINT8/16/32/64, FLOAT, DOUBLE, DATE) into a group
// key, backed by an open-addressing uint64->slot map instead of the
// teacher's cgo pointer-chained bucket array
// (JoinHashTable._hashMap, pkg/plan/hash_join.go): one equality column,
// no null check, no arena (the key IS its own bits, bitcast to
// uint64/int64).
type OneNumberKey struct {
	typ  common.LType
	bits *intmap.Map[uint64, int]
}

// NewOneNumberKey creates an empty set sized for an expected cnt
// distinct keys.
func NewOneNumberKey(typ common.LType, cnt int) *OneNumberKey {
	return &OneNumberKey{typ: typ, bits: intmap.New[uint64, int](cnt)}
}

func (k *OneNumberKey) Len() int { return k.bits.Len() }

// numberBits reads the bit pattern of row idx of vec, which must
// already be flattened by the caller.
func numberBits(vec *chunk.Vector, idx int) uint64 {
	switch vec.Typ().GetInternalType() {
	case common.INT8:
		return uint64(uint8(chunk.GetSliceInPhyFormatFlat[int8](vec)[idx]))
	case common.INT16:
		return uint64(uint16(chunk.GetSliceInPhyFormatFlat[int16](vec)[idx]))
	case common.INT32:
		return uint64(uint32(chunk.GetSliceInPhyFormatFlat[int32](vec)[idx]))
	case common.INT64:
		return uint64(chunk.GetSliceInPhyFormatFlat[int64](vec)[idx])
	case common.UINT8:
		return uint64(chunk.GetSliceInPhyFormatFlat[uint8](vec)[idx])
	case common.UINT16:
		return uint64(chunk.GetSliceInPhyFormatFlat[uint16](vec)[idx])
	case common.UINT32:
		return uint64(chunk.GetSliceInPhyFormatFlat[uint32](vec)[idx])
	case common.UINT64:
		return chunk.GetSliceInPhyFormatFlat[uint64](vec)[idx]
	case common.FLOAT:
		return uint64(math.Float32bits(chunk.GetSliceInPhyFormatFlat[float32](vec)[idx]))
	case common.DOUBLE:
		return math.Float64bits(chunk.GetSliceInPhyFormatFlat[float64](vec)[idx])
	case common.DATE:
		d := chunk.GetSliceInPhyFormatFlat[common.Date](vec)[idx]
		return uint64(d.Year)<<40 | uint64(uint32(d.Month))<<20 | uint64(uint32(d.Day))
	default:
		panic("usp")
	}
}

func (k *OneNumberKey) buildOrProbe(keyColumns []*chunk.Vector, count int, insert bool) ([]int, []bool) {
	assertSameCardinality(keyColumns, count)
	vec := keyColumns[0]
	vec.Flatten(count)
	slots := make([]int, count)
	notFound := make([]bool, count)
	for i := 0; i < count; i++ {
		bits := numberBits(vec, i)
		if slot, ok := k.bits.Get(bits); ok {
			slots[i] = slot
			continue
		}
		notFound[i] = true
		if insert {
			slot := k.bits.Len()
			k.bits.Put(bits, slot)
			slots[i] = slot
		}
	}
	return slots, notFound
}

func (k *OneNumberKey) BuildSet(keyColumns []*chunk.Vector, count int) ([]int, []bool) {
	return k.buildOrProbe(keyColumns, count, true)
}

func (k *OneNumberKey) Probe(keyColumns []*chunk.Vector, count int) ([]int, []bool) {
	return k.buildOrProbe(keyColumns, count, false)
}

// OneNullableNumberKey is OneNumberKey plus an explicit null group: a
// null key is its own group (SQL group-by semantics treat all NULLs
// as equal to each other), tracked outside the intmap since 0 bits is
// a valid non-null value and cannot double as a null sentinel.
type OneNullableNumberKey struct {
	inner    *OneNumberKey
	nullSlot int
	sawNull  bool
}

func NewOneNullableNumberKey(typ common.LType, cnt int) *OneNullableNumberKey {
	return &OneNullableNumberKey{inner: NewOneNumberKey(typ, cnt), nullSlot: -1}
}

func (k *OneNullableNumberKey) Len() int {
	n := k.inner.Len()
	if k.sawNull {
		n++
	}
	return n
}

func (k *OneNullableNumberKey) buildOrProbe(keyColumns []*chunk.Vector, count int, insert bool) ([]int, []bool) {
	vec := keyColumns[0]
	vec.Flatten(count)
	slots := make([]int, count)
	notFound := make([]bool, count)
	for i := 0; i < count; i++ {
		if rowIsNull(vec, i) {
			if !k.sawNull {
				notFound[i] = true
				if insert {
					k.sawNull = true
					k.nullSlot = k.inner.Len()
				}
			}
			slots[i] = k.nullSlot
			continue
		}
		bits := numberBits(vec, i)
		if slot, ok := k.inner.bits.Get(bits); ok {
			slots[i] = slot
			continue
		}
		notFound[i] = true
		if insert {
			slot := k.Len()
			k.inner.bits.Put(bits, slot)
			slots[i] = slot
		}
	}
	return slots, notFound
}

func (k *OneNullableNumberKey) BuildSet(keyColumns []*chunk.Vector, count int) ([]int, []bool) {
	return k.buildOrProbe(keyColumns, count, true)
}

func (k *OneNullableNumberKey) Probe(keyColumns []*chunk.Vector, count int) ([]int, []bool) {
	return k.buildOrProbe(keyColumns, count, false)
}
