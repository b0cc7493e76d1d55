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

// Package hashkey implements the five key-adaptor shapes a build side
// (hash join or hash aggregate) uses to turn one or more key columns
// into a single hashable/comparable token, plus the arena that owns
// the bytes behind variable-length keys for the lifetime of the set.
package hashkey

// Arena is an append-only byte pool backing variable-length keys
// (strings, serialized composite keys) for as long as the owning set
// lives. It plays the role the teacher's TupleDataCollection row arena
// plays for JoinHashTable (pkg/plan/hash_join.go), minus the cgo
// pointer-chasing: when the current block is full, Put starts a fresh
// block and keeps the old ones, so bytes already stored never move, and
// callers address their data by a Ref (block, offset, length) that
// stays valid because the arena only ever appends.
type Arena struct {
	bufs [][]byte
	cur  int
}

// Ref is a stable handle into an Arena: which backing buffer, and the
// byte range within it.
type Ref struct {
	buf    int
	offset int
	length int
}

const arenaBlockSize = 64 << 10

// NewArena creates an empty arena with a first block large enough for
// at least one key of hint bytes.
func NewArena(hint int) *Arena {
	blockSize := arenaBlockSize
	if hint > blockSize {
		blockSize = hint
	}
	return &Arena{bufs: [][]byte{make([]byte, 0, blockSize)}}
}

// Put copies data into the arena and returns a stable Ref to it.
func (a *Arena) Put(data []byte) Ref {
	buf := a.bufs[a.cur]
	if cap(buf)-len(buf) < len(data) {
		blockSize := arenaBlockSize
		if len(data) > blockSize {
			blockSize = len(data)
		}
		buf = make([]byte, 0, blockSize)
		a.bufs = append(a.bufs, buf)
		a.cur = len(a.bufs) - 1
	}
	ref := Ref{buf: a.cur, offset: len(buf), length: len(data)}
	buf = append(buf, data...)
	a.bufs[a.cur] = buf
	return ref
}

// Bytes resolves a Ref back to the bytes Put copied in.
func (a *Arena) Bytes(r Ref) []byte {
	return a.bufs[r.buf][r.offset : r.offset+r.length]
}

// Reset discards every block but the first, which is truncated to
// empty. No adaptor in this package calls it.
func (a *Arena) Reset() {
	a.bufs = a.bufs[:1]
	a.bufs[0] = a.bufs[0][:0]
	a.cur = 0
}
