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

// ChunkMeta is the one-time schema header a channel emits before the
// first chunk it sends to a given recipient (spec §4.1/§6): slot ids,
// per-slot type tag, per-slot nullability, per-slot constness. Every
// later chunk on that channel omits it.
type ChunkMeta struct {
	SlotIds    []int
	Types      []common.LType
	Nullable   []bool
	IsConst    []bool
}

// BuildMeta derives the schema header implied by c's current columns.
func (c *Chunk) BuildMeta(slotIds []int) *ChunkMeta {
	meta := &ChunkMeta{
		SlotIds:  append([]int(nil), slotIds...),
		Types:    make([]common.LType, c.ColumnCount()),
		Nullable: make([]bool, c.ColumnCount()),
		IsConst:  make([]bool, c.ColumnCount()),
	}
	for i, v := range c.Data {
		meta.Types[i] = v.Typ()
		meta.Nullable[i] = v.PhyFormat() != PF_CONST && !v.Mask.AllValid()
		meta.IsConst[i] = v.PhyFormat() == PF_CONST
	}
	return meta
}

func (m *ChunkMeta) serialize(serial util.Serialize) error {
	if err := util.Write[int](len(m.SlotIds), serial); err != nil {
		return err
	}
	for i := range m.SlotIds {
		if err := util.Write[int](m.SlotIds[i], serial); err != nil {
			return err
		}
		if err := m.Types[i].Serialize(serial); err != nil {
			return err
		}
		if err := util.Write[bool](m.Nullable[i], serial); err != nil {
			return err
		}
		if err := util.Write[bool](m.IsConst[i], serial); err != nil {
			return err
		}
	}
	return nil
}

func deserializeMeta(deserial util.Deserialize) (*ChunkMeta, error) {
	var n int
	if err := util.Read[int](&n, deserial); err != nil {
		return nil, err
	}
	m := &ChunkMeta{
		SlotIds:  make([]int, n),
		Types:    make([]common.LType, n),
		Nullable: make([]bool, n),
		IsConst:  make([]bool, n),
	}
	for i := 0; i < n; i++ {
		if err := util.Read[int](&m.SlotIds[i], deserial); err != nil {
			return nil, err
		}
		typ, err := common.DeserializeLType(deserial)
		if err != nil {
			return nil, err
		}
		m.Types[i] = typ
		if err := util.Read[bool](&m.Nullable[i], deserial); err != nil {
			return nil, err
		}
		if err := util.Read[bool](&m.IsConst[i], deserial); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// SerializeWithMeta writes the schema header followed by the row
// payload (spec §4.1 mode (a): "writes a one-time schema header ...
// plus payload").
func (c *Chunk) SerializeWithMeta(slotIds []int, serial util.Serialize) error {
	meta := c.BuildMeta(slotIds)
	if err := meta.serialize(serial); err != nil {
		return err
	}
	return c.Serialize(serial)
}

// Serialize writes only the row payload: the row count (an int) once,
// then for each column in slot order a const flag (bool) and the
// vector's own encoding of one row (const column) or Card() rows
// (otherwise). A vector's encoding is a has-nulls flag, the null
// bitmap when that flag is set, then the data: the raw buffer for
// fixed-width types, and for VARCHAR each row as a uint32 length plus
// its bytes. No offsets array is written, and a const column carries
// no row count of its own; the chunk-level count applies.
func (c *Chunk) Serialize(serial util.Serialize) error {
	if err := util.Write[int](c.Card(), serial); err != nil {
		return err
	}
	for _, v := range c.Data {
		if v.PhyFormat() == PF_CONST {
			if err := util.Write[bool](true, serial); err != nil {
				return err
			}
			if err := v.Serialize(1, serial); err != nil {
				return err
			}
			continue
		}
		if err := util.Write[bool](false, serial); err != nil {
			return err
		}
		if err := v.Serialize(c.Card(), serial); err != nil {
			return err
		}
	}
	return nil
}

// DeserializeWithMeta reads a schema header then the chunk it governs,
// initializing c to the header's column types.
func DeserializeWithMeta(deserial util.Deserialize) (*Chunk, *ChunkMeta, error) {
	meta, err := deserializeMeta(deserial)
	if err != nil {
		return nil, nil, err
	}
	c := &Chunk{}
	c.Init(meta.Types, util.DefaultVectorSize)
	if err = c.Deserialize(deserial); err != nil {
		return nil, nil, err
	}
	return c, meta, nil
}

// Deserialize reads a chunk whose column types are already known (c
// must already be Init'd with them), the counterpart of Serialize.
func (c *Chunk) Deserialize(deserial util.Deserialize) error {
	var card int
	if err := util.Read[int](&card, deserial); err != nil {
		return err
	}
	for _, v := range c.Data {
		var isConst bool
		if err := util.Read[bool](&isConst, deserial); err != nil {
			return err
		}
		if isConst {
			v.SetPhyFormat(PF_CONST)
			if err := v.Deserialize(1, deserial); err != nil {
				return err
			}
			continue
		}
		v.SetPhyFormat(PF_FLAT)
		if err := v.Deserialize(card, deserial); err != nil {
			return err
		}
	}
	c.SetCard(card)
	return nil
}
