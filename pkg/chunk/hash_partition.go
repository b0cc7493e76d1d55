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

package chunk

import (
	"hash/crc32"
	"hash/fnv"

	"github.com/flowshard/worker/pkg/common"
)

// rowBytes returns the byte representation of row idx of a flattened
// vector, or (nil, false) if the row is null. Fixed-width columns are
// read directly out of the backing buffer; VARCHAR reads the string's
// backing bytes.
func rowBytes(vec *Vector, idx int) ([]byte, bool) {
	mask := GetMaskInPhyFormatFlat(vec)
	if !mask.RowIsValid(uint64(idx)) {
		return nil, false
	}
	pTyp := vec.Typ().GetInternalType()
	if pTyp == common.VARCHAR {
		s := GetSliceInPhyFormatFlat[common.String](vec)[idx]
		return s.DataSlice(), true
	}
	sz := pTyp.Size()
	return vec.Data[idx*sz : (idx+1)*sz], true
}

// FnvHash computes FNV-1a over each row of vec (spec §6: "FNV-1a for
// general partitioning"), combining into out[i] via the same
// hash-combine convention exchange partitioning uses across multiple
// partition-expression columns: out[i] = CombineHash(out[i],
// FNV(rowBytes)), so a zeroed out[i] simply takes the row's FNV hash.
func (vec *Vector) FnvHash(out []uint64, count int) {
	vec.Flatten(count)
	for i := 0; i < count; i++ {
		h := fnv.New64a()
		b, valid := rowBytes(vec, i)
		if !valid {
			out[i] = CombineHash(out[i], NULL_HASH)
			continue
		}
		_, _ = h.Write(b)
		out[i] = CombineHash(out[i], h.Sum64())
	}
}

// Crc32Hash computes CRC32 (zlib/IEEE polynomial) over each row of vec
// (spec §6: "CRC32 (zlib polynomial) for bucket-shuffle to match
// storage distribution").
func (vec *Vector) Crc32Hash(out []uint64, count int) {
	vec.Flatten(count)
	for i := 0; i < count; i++ {
		b, valid := rowBytes(vec, i)
		if !valid {
			out[i] = CombineHash(out[i], NULL_HASH)
			continue
		}
		sum := crc32.ChecksumIEEE(b)
		out[i] = CombineHash(out[i], uint64(sum))
	}
}

// CombineHash folds two hash values together (used to accumulate a
// multi-column partition-expression hash one column at a time).
func CombineHash(a, b uint64) uint64 {
	if a == 0 {
		return b
	}
	return CombineHashScalar(a, b)
}
