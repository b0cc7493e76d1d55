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

	metro "github.com/dgryski/go-metro"

	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/common"
)

const stringKeySeed = 0x5bd1e995

// stringBucket is one hash bucket: every key whose metrohash collided
// into this slot, each carrying the arena Ref it was copied into so a
// later probe can byte-compare instead of trusting the hash alone.
type stringBucket struct {
	ref  Ref
	slot int
}

// OneStringKey adapts a single non-nullable VARCHAR column into a
// group key: MetroHash64 (dgryski/go-metro) keys a Go map of per-hash
// bucket lists, collisions resolved by a byte-for-byte compare against
// the arena copy — the same hash-then-verify shape
// JoinHashTable.ScanKeyMatches uses against its row arena
// (pkg/plan/hash_join.go), minus the pointer chasing.
type OneStringKey struct {
	arena   *Arena
	buckets map[uint64][]stringBucket
	count   int
}

func NewOneStringKey(cnt int) *OneStringKey {
	return &OneStringKey{arena: NewArena(cnt * 16), buckets: make(map[uint64][]stringBucket, cnt)}
}

func (k *OneStringKey) Len() int { return k.count }

func (k *OneStringKey) lookup(b []byte, h uint64) (int, bool) {
	for _, bucket := range k.buckets[h] {
		if bytes.Equal(k.arena.Bytes(bucket.ref), b) {
			return bucket.slot, true
		}
	}
	return 0, false
}

func (k *OneStringKey) buildOrProbe(keyColumns []*chunk.Vector, count int, insert bool) ([]int, []bool) {
	vec := keyColumns[0]
	vec.Flatten(count)
	strs := chunk.GetSliceInPhyFormatFlat[common.String](vec)
	slots := make([]int, count)
	notFound := make([]bool, count)
	for i := 0; i < count; i++ {
		b := strs[i].DataSlice()
		h := metro.Hash64(b, stringKeySeed)
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

func (k *OneStringKey) BuildSet(keyColumns []*chunk.Vector, count int) ([]int, []bool) {
	return k.buildOrProbe(keyColumns, count, true)
}

func (k *OneStringKey) Probe(keyColumns []*chunk.Vector, count int) ([]int, []bool) {
	return k.buildOrProbe(keyColumns, count, false)
}

// OneNullableStringKey is OneStringKey plus a dedicated null group,
// the same policy as OneNullableNumberKey: every null row joins one
// shared group rather than hashing an absent value.
type OneNullableStringKey struct {
	inner    *OneStringKey
	nullSlot int
	sawNull  bool
}

func NewOneNullableStringKey(cnt int) *OneNullableStringKey {
	return &OneNullableStringKey{inner: NewOneStringKey(cnt), nullSlot: -1}
}

func (k *OneNullableStringKey) Len() int {
	n := k.inner.Len()
	if k.sawNull {
		n++
	}
	return n
}

func (k *OneNullableStringKey) buildOrProbe(keyColumns []*chunk.Vector, count int, insert bool) ([]int, []bool) {
	vec := keyColumns[0]
	vec.Flatten(count)
	strs := chunk.GetSliceInPhyFormatFlat[common.String](vec)
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
		b := strs[i].DataSlice()
		h := metro.Hash64(b, stringKeySeed)
		if slot, ok := k.inner.lookup(b, h); ok {
			slots[i] = slot
			continue
		}
		notFound[i] = true
		if insert {
			slot := k.Len()
			k.inner.count++
			ref := k.inner.arena.Put(b)
			k.inner.buckets[h] = append(k.inner.buckets[h], stringBucket{ref: ref, slot: slot})
			slots[i] = slot
		}
	}
	return slots, notFound
}

func (k *OneNullableStringKey) BuildSet(keyColumns []*chunk.Vector, count int) ([]int, []bool) {
	return k.buildOrProbe(keyColumns, count, true)
}

func (k *OneNullableStringKey) Probe(keyColumns []*chunk.Vector, count int) ([]int, []bool) {
	return k.buildOrProbe(keyColumns, count, false)
}
