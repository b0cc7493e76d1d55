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
	"bytes"

	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/common"
)

// compositeScratchSize is the inline scratch buffer a row's serialized
// key is built into before it's known whether the row fits without a
// heap allocation (the decided policy for the "composite-key scratch
// buffer" open question: rows at or under this size serialize
// column-by-column straight into the scratch array; rows over it fall
// back to a row-at-a-time heap buffer, since a 64-byte inline buffer
// covers the overwhelming majority of group-by/join keys (a handful
// of ints/dates/shortish strings) without forcing every row through
// an allocation).
const compositeScratchSize = 64

// SerializedCompositeKey adapts an arbitrary tuple of key columns
// (mixed types, any nullability) into a group key by serializing each
// row into a single byte string — one byte null marker per column
// then its fixed-width bits or length-prefixed string bytes — and
// treating that byte string the way OneStringKey treats a VARCHAR
// column. The memoized hash (hashColumns, shared with the other
// adaptors) seeds the bucket lookup; the serialized bytes themselves
// are the tie-breaker and the value copied into the arena.
type SerializedCompositeKey struct {
	arena   *Arena
	buckets map[uint64][]stringBucket
	count   int
	scratch [compositeScratchSize]byte
}

func NewSerializedCompositeKey(cnt int) *SerializedCompositeKey {
	return &SerializedCompositeKey{
		arena:   NewArena(cnt * 32),
		buckets: make(map[uint64][]stringBucket, cnt),
	}
}

func (k *SerializedCompositeKey) Len() int { return k.count }

// serializeRow appends row idx's bytes across all of keyColumns onto
// buf, returning the grown slice. One leading byte per column: 0 for
// null (no payload follows), 1 for non-null (payload follows).
func serializeRow(buf []byte, keyColumns []*chunk.Vector, idx int) []byte {
	for _, vec := range keyColumns {
		if rowIsNull(vec, idx) {
			buf = append(buf, 0)
			continue
		}
		buf = append(buf, 1)
		if vec.Typ().GetInternalType() == common.VARCHAR {
			s := chunk.GetSliceInPhyFormatFlat[common.String](vec)[idx]
			b := s.DataSlice()
			buf = append(buf, byte(len(b)), byte(len(b)>>8), byte(len(b)>>16), byte(len(b)>>24))
			buf = append(buf, b...)
			continue
		}
		sz := vec.Typ().GetInternalType().Size()
		buf = append(buf, vec.Data[idx*sz:(idx+1)*sz]...)
	}
	return buf
}

func (k *SerializedCompositeKey) rowBytes(keyColumns []*chunk.Vector, idx int) []byte {
	return serializeRow(k.scratch[:0], keyColumns, idx)
}

func (k *SerializedCompositeKey) lookup(b []byte, h uint64) (int, bool) {
	for _, bucket := range k.buckets[h] {
		if bytes.Equal(k.arena.Bytes(bucket.ref), b) {
			return bucket.slot, true
		}
	}
	return 0, false
}

func (k *SerializedCompositeKey) buildOrProbe(keyColumns []*chunk.Vector, count int, insert bool) ([]int, []bool) {
	assertSameCardinality(keyColumns, count)
	for _, vec := range keyColumns {
		vec.Flatten(count)
	}
	hashes := hashColumns(keyColumns, count)
	slots := make([]int, count)
	notFound := make([]bool, count)
	for i := 0; i < count; i++ {
		b := k.rowBytes(keyColumns, i)
		h := hashes[i]
		if slot, ok := k.lookup(b, h); ok {
			slots[i] = slot
			continue
		}
		notFound[i] = true
		if insert {
			slot := k.count
			k.count++
			ref := k.arena.Put(b)
			k.buckets[h] = append(k.buckets[h], stringBucket{ref: ref, slot: slot})
			slots[i] = slot
		}
	}
	return slots, notFound
}

func (k *SerializedCompositeKey) BuildSet(keyColumns []*chunk.Vector, count int) ([]int, []bool) {
	return k.buildOrProbe(keyColumns, count, true)
}

func (k *SerializedCompositeKey) Probe(keyColumns []*chunk.Vector, count int) ([]int, []bool) {
	return k.buildOrProbe(keyColumns, count, false)
}
