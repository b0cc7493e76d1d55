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
	"fmt"

	"github.com/flowshard/worker/pkg/util"
)

// ChunkPayload is one chunk's wire form within a TransmitChunkParams
// request (spec §6): the first chunk sent on a channel carries
// HasMeta=true with Data produced by chunk.Chunk.SerializeWithMeta;
// every later chunk on that channel carries HasMeta=false with Data
// from chunk.Chunk.Serialize alone, since the receiver already knows
// the schema.
type ChunkPayload struct {
	HasMeta          bool
	CompressionType  CompressionType
	UncompressedSize int64
	DataSize         int64
	Data             []byte
}

// TransmitChunkParams is the request message for the transmit_chunk
// RPC (spec §6), carrying one channel's batched chunks.
type TransmitChunkParams struct {
	FinstID  string
	NodeID   int32
	SenderID int32
	BeNumber int32
	Sequence int64
	Eos      bool
	Chunks   []*ChunkPayload
}

// TransmitChunkResult is the response message; Status is empty on
// success or the remote's error message on failure.
type TransmitChunkResult struct {
	Status string
}

func writeBytes(b []byte, s util.Serialize) error {
	if err := util.Write[int](len(b), s); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	return s.WriteData(b, len(b))
}

func readBytes(d util.Deserialize) ([]byte, error) {
	var n int
	if err := util.Read[int](&n, d); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if err := d.ReadData(buf, n); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *ChunkPayload) marshal(s util.Serialize) error {
	if err := util.Write[bool](p.HasMeta, s); err != nil {
		return err
	}
	if err := util.Write[int32](int32(p.CompressionType), s); err != nil {
		return err
	}
	if err := util.Write[int64](p.UncompressedSize, s); err != nil {
		return err
	}
	if err := util.Write[int64](p.DataSize, s); err != nil {
		return err
	}
	return writeBytes(p.Data, s)
}

func (p *ChunkPayload) unmarshal(d util.Deserialize) error {
	if err := util.Read[bool](&p.HasMeta, d); err != nil {
		return err
	}
	var ct int32
	if err := util.Read[int32](&ct, d); err != nil {
		return err
	}
	p.CompressionType = CompressionType(ct)
	if err := util.Read[int64](&p.UncompressedSize, d); err != nil {
		return err
	}
	if err := util.Read[int64](&p.DataSize, d); err != nil {
		return err
	}
	data, err := readBytes(d)
	if err != nil {
		return err
	}
	p.Data = data
	return nil
}

// MarshalBinary implements the chunkCodec wire format for
// TransmitChunkParams.
func (p *TransmitChunkParams) MarshalBinary() ([]byte, error) {
	s := &util.BufferSerialize{}
	if err := util.WriteString(p.FinstID, s); err != nil {
		return nil, err
	}
	if err := util.Write[int32](p.NodeID, s); err != nil {
		return nil, err
	}
	if err := util.Write[int32](p.SenderID, s); err != nil {
		return nil, err
	}
	if err := util.Write[int32](p.BeNumber, s); err != nil {
		return nil, err
	}
	if err := util.Write[int64](p.Sequence, s); err != nil {
		return nil, err
	}
	if err := util.Write[bool](p.Eos, s); err != nil {
		return nil, err
	}
	if err := util.Write[int](len(p.Chunks), s); err != nil {
		return nil, err
	}
	for _, c := range p.Chunks {
		if err := c.marshal(s); err != nil {
			return nil, err
		}
	}
	return s.Buf, nil
}

// UnmarshalBinary is MarshalBinary's inverse.
func (p *TransmitChunkParams) UnmarshalBinary(data []byte) error {
	d := util.NewBufferDeserialize(data)
	finstID, err := util.ReadString(d)
	if err != nil {
		return err
	}
	p.FinstID = finstID
	if err := util.Read[int32](&p.NodeID, d); err != nil {
		return err
	}
	if err := util.Read[int32](&p.SenderID, d); err != nil {
		return err
	}
	if err := util.Read[int32](&p.BeNumber, d); err != nil {
		return err
	}
	if err := util.Read[int64](&p.Sequence, d); err != nil {
		return err
	}
	if err := util.Read[bool](&p.Eos, d); err != nil {
		return err
	}
	var n int
	if err := util.Read[int](&n, d); err != nil {
		return err
	}
	p.Chunks = make([]*ChunkPayload, n)
	for i := 0; i < n; i++ {
		cp := &ChunkPayload{}
		if err := cp.unmarshal(d); err != nil {
			return err
		}
		p.Chunks[i] = cp
	}
	return nil
}

// MarshalBinary implements the chunkCodec wire format for
// TransmitChunkResult.
func (r *TransmitChunkResult) MarshalBinary() ([]byte, error) {
	s := &util.BufferSerialize{}
	if err := util.WriteString(r.Status, s); err != nil {
		return nil, err
	}
	return s.Buf, nil
}

// UnmarshalBinary is MarshalBinary's inverse.
func (r *TransmitChunkResult) UnmarshalBinary(data []byte) error {
	d := util.NewBufferDeserialize(data)
	status, err := util.ReadString(d)
	if err != nil {
		return err
	}
	r.Status = status
	return nil
}

// wireMessage is implemented by every message chunkCodec transports.
type wireMessage interface {
	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
}

var _ wireMessage = (*TransmitChunkParams)(nil)
var _ wireMessage = (*TransmitChunkResult)(nil)

func notAWireMessage(v any) error {
	return fmt.Errorf("exchange: %T does not implement wireMessage", v)
}
