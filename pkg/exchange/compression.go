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

	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"
)

// CompressionType tags a ChunkPayload's data field (spec §6: "type
// recorded in the chunk").
type CompressionType int32

const (
	CompressionNone CompressionType = iota
	CompressionLZ4
	CompressionSnappy
)

// Compress applies codec to payload and returns the compressed bytes
// only if the uncompressed/compressed ratio exceeds ratioMin (spec
// §4.1's rejection rule, S6's literal scenario: 100/95 = 1.05 < 1.10
// ⇒ transmit uncompressed). The caller always has the uncompressed
// bytes on hand regardless of the outcome, so this never needs to
// decompress to fail safe.
func Compress(payload []byte, codec string, ratioMin float64) (data []byte, typ CompressionType) {
	if len(payload) == 0 {
		return payload, CompressionNone
	}
	var compressed []byte
	var ctyp CompressionType
	switch codec {
	case "lz4":
		compressed, ctyp = compressLZ4(payload)
	case "snappy":
		compressed = snappy.Encode(nil, payload)
		ctyp = CompressionSnappy
	default:
		return payload, CompressionNone
	}
	if compressed == nil {
		return payload, CompressionNone
	}
	ratio := float64(len(payload)) / float64(len(compressed))
	if ratio <= ratioMin {
		return payload, CompressionNone
	}
	return compressed, ctyp
}

// Decompress reverses Compress; uncompressedSize sizes the
// destination buffer for the LZ4 block format, which (unlike snappy)
// does not self-describe its decompressed length.
func Decompress(data []byte, typ CompressionType, uncompressedSize int) ([]byte, error) {
	switch typ {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		return decompressLZ4(data, uncompressedSize)
	case CompressionSnappy:
		return snappy.Decode(nil, data)
	default:
		return nil, fmt.Errorf("unknown compression type %d", typ)
	}
}

func compressLZ4(src []byte) ([]byte, CompressionType) {
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	var c lz4.Compressor
	n, err := c.CompressBlock(src, dst)
	if err != nil || n == 0 {
		return nil, CompressionNone
	}
	return dst[:n], CompressionLZ4
}

func decompressLZ4(src []byte, uncompressedSize int) ([]byte, error) {
	dst := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}
