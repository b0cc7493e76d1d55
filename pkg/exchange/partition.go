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

package exchange

import (
	"github.com/tidwall/btree"

	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/common"
)

// Mode is one of spec §4.6's five partitioning modes.
type Mode int

const (
	Unpartitioned Mode = iota
	Random
	Hash
	BucketShuffle
	Range
)

func (m Mode) String() string {
	switch m {
	case Unpartitioned:
		return "Unpartitioned"
	case Random:
		return "Random"
	case Hash:
		return "Hash"
	case BucketShuffle:
		return "BucketShuffle"
	case Range:
		return "Range"
	default:
		return "Unknown"
	}
}

// RangeBound is one entry of a RANGE mode partition map: rows whose
// combined hash falls in [Lower, next entry's Lower) belong to Bucket.
// BucketShuffle's storage distribution supplies these at plan time;
// exchange never computes them itself.
type RangeBound struct {
	Lower  uint64
	Bucket int
}

// Partitioner assigns each row of a chunk to an output channel index
// in [0, NumChannels), per spec §4.6's row-dispatch algorithm:
// evaluate the partition columns, combine their per-row hashes, map
// the combined hash (or, for Random, a plain counter) to a channel,
// then collect each channel's row indices in row order so each
// channel's rows can be appended in one AppendSelective call.
type Partitioner struct {
	Mode         Mode
	PartitionCol []int
	NumChannels  int

	// BucketCount is the number of storage buckets BucketShuffle
	// hashes against before folding down to NumChannels; it must equal
	// the table's storage bucket count for BucketShuffle to land rows
	// on the same node the storage layer would (spec invariant 6).
	// Range mode does not read it: its bucket comes from Bounds.
	BucketCount int

	// Bounds is consulted only in Range mode: sorted ascending by
	// Lower, covering [0, BucketCount) together with bucketForHash.
	Bounds []RangeBound

	rangeTree *btree.BTreeG[RangeBound]
	counter   int
}

func rangeBoundLess(a, b RangeBound) bool { return a.Lower < b.Lower }

// NewPartitioner builds a Partitioner. For Range mode, bounds must be
// sorted ascending by Lower and call SetBounds before first use.
func NewPartitioner(mode Mode, partitionCol []int, numChannels, bucketCount int) *Partitioner {
	return &Partitioner{
		Mode:         mode,
		PartitionCol: partitionCol,
		NumChannels:  numChannels,
		BucketCount:  bucketCount,
	}
}

// SetBounds installs the RANGE-mode partition map, grounded directly on
// the teacher's own range-scan idiom over tidwall/btree in
// pkg/storage/index.go's Index.SearchLess/SearchGreater (Descend/Ascend
// seeded at a pivot key, first match taken and the walk stopped).
func (p *Partitioner) SetBounds(bounds []RangeBound) {
	p.Bounds = append([]RangeBound(nil), bounds...)
	tree := btree.NewBTreeG[RangeBound](rangeBoundLess)
	for _, b := range bounds {
		tree.Set(b)
	}
	p.rangeTree = tree
}

// bucketForHash finds the bucket owning hash: the bound with the
// largest Lower that is <= hash, via Descend seeded at {Lower: hash} —
// the same pivoted-descend-and-stop shape Index.SearchLess uses to
// find the greatest key not exceeding a query key.
func (p *Partitioner) bucketForHash(hash uint64) int {
	if p.rangeTree == nil {
		return 0
	}
	bucket := 0
	p.rangeTree.Descend(RangeBound{Lower: hash}, func(item RangeBound) bool {
		bucket = item.Bucket
		return false
	})
	return bucket
}

// rowHashes computes the combined per-row hash of a chunk's partition
// columns, using FNV-1a for Hash mode and CRC32 for BucketShuffle/Range
// (spec §6).
func (p *Partitioner) rowHashes(c *chunk.Chunk) []uint64 {
	n := c.Card()
	hashes := make([]uint64, n)
	for _, col := range p.PartitionCol {
		vec := c.Data[col]
		switch p.Mode {
		case Hash:
			vec.FnvHash(hashes, n)
		case BucketShuffle, Range:
			vec.Crc32Hash(hashes, n)
		}
	}
	return hashes
}

// Dispatch computes, for every row of c, which of NumChannels output
// channels it belongs to, then groups the row indices per channel by
// appending each row's index to its channel's list, so every list is
// in ascending row order. The caller uses the returned per-channel
// index lists with Chunk.AppendSelective to build each channel's
// outgoing chunk.
func (p *Partitioner) Dispatch(c *chunk.Chunk) map[int][]int {
	n := c.Card()
	groups := make(map[int][]int)
	if n == 0 {
		return groups
	}

	switch p.Mode {
	case Unpartitioned:
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		for ch := 0; ch < p.NumChannels; ch++ {
			groups[ch] = all
		}
		return groups

	case Random:
		for i := 0; i < n; i++ {
			ch := p.counter % p.NumChannels
			p.counter++
			groups[ch] = append(groups[ch], i)
		}
		return groups

	case Hash:
		hashes := p.rowHashes(c)
		for i := 0; i < n; i++ {
			ch := int(hashes[i] % uint64(p.NumChannels))
			groups[ch] = append(groups[ch], i)
		}
		return groups

	case BucketShuffle:
		hashes := p.rowHashes(c)
		for i := 0; i < n; i++ {
			bucket := int(hashes[i] % uint64(p.BucketCount))
			ch := bucket % p.NumChannels
			groups[ch] = append(groups[ch], i)
		}
		return groups

	case Range:
		hashes := p.rowHashes(c)
		for i := 0; i < n; i++ {
			bucket := p.bucketForHash(hashes[i])
			ch := bucket % p.NumChannels
			groups[ch] = append(groups[ch], i)
		}
		return groups
	}
	return groups
}

// Slice builds channel ch's outgoing chunk from the rows Dispatch
// assigned it.
func Slice(src *chunk.Chunk, types []common.LType, rows []int) *chunk.Chunk {
	out := &chunk.Chunk{}
	out.Init(types, len(rows))
	if len(rows) > 0 {
		out.AppendSelectiveIndice(src, rows, 0, len(rows))
	}
	out.SetCard(len(rows))
	return out
}
