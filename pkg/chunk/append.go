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
	"github.com/flowshard/worker/pkg/common"
	"github.com/flowshard/worker/pkg/util"
)

// AppendSelective appends the rows src[idx[from:from+size]] onto the
// end of c, growing c's card by size. It is the row-dispatch primitive
// the exchange sender's partitioning modes (§4.6) use to split a
// shared chunk across channels without sorting: the caller builds a
// permutation (idx) once via a prefix-sum over channel counts, then
// calls AppendSelective per channel with a slice of that permutation.
//
// Invariant (spec §3): the appended region of every column in c
// equals src[idx[from:from+size]] exactly, for both data and nulls.
func (c *Chunk) AppendSelective(src *Chunk, idx *SelectVector, from, size int) {
	util.AssertFunc(src.ColumnCount() == c.ColumnCount())
	dstOffset := c.Card()
	util.AssertFunc(dstOffset+size <= c.Cap())
	for i := 0; i < c.ColumnCount(); i++ {
		Copy(src.Data[i], c.Data[i], idx, from+size, from, dstOffset)
	}
	c.SetCard(dstOffset + size)
}

// AppendSelectiveIndice is AppendSelective but takes a raw row-index
// slice instead of a pre-built SelectVector, the shape produced
// directly by a prefix-sum permutation.
func (c *Chunk) AppendSelectiveIndice(src *Chunk, indice []int, from, size int) {
	c.AppendSelective(src, NewSelectVector3(indice), from, size)
}

// Grow reinitializes c to hold newCap rows of the same column types,
// discarding any existing contents. Used when the exchange sender's
// accumulator chunk must be resized to the configured chunk size.
func (c *Chunk) Grow(types []common.LType, newCap int) {
	c.Init(types, newCap)
}

// Types returns the logical column types of c, in slot order.
func (c *Chunk) Types() []common.LType {
	typs := make([]common.LType, c.ColumnCount())
	for i, v := range c.Data {
		typs[i] = v.Typ()
	}
	return typs
}
