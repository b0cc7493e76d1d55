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

import "google.golang.org/grpc/encoding"

// codecName is negotiated via grpc.CallContentSubtype on the client
// side; the server resolves it the same way without any
// grpc.ForceCodec wiring, since content-subtype negotiation is a
// first-class grpc-go extension point (see
// google.golang.org/grpc/encoding.RegisterCodec). There is no .proto
// schema here: TransmitChunkParams/TransmitChunkResult marshal
// themselves directly on top of the chunk wire format already used to
// serialize Chunk payloads to disk, so one encoder handles both the
// RPC envelope and the columnar data it carries.
const codecName = "chunkwire"

type chunkCodec struct{}

func (chunkCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, notAWireMessage(v)
	}
	return m.MarshalBinary()
}

func (chunkCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wireMessage)
	if !ok {
		return notAWireMessage(v)
	}
	return m.UnmarshalBinary(data)
}

func (chunkCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(chunkCodec{})
}
