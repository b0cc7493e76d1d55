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

package util

import "io"

// BufferSerialize is an in-memory Serialize sink, the counterpart of
// FileSerialize for data that never touches disk: chunk payloads
// headed for an RPC attachment (§6).
type BufferSerialize struct {
	Buf []byte
}

var _ Serialize = (*BufferSerialize)(nil)

func (b *BufferSerialize) WriteData(buffer []byte, length int) error {
	b.Buf = append(b.Buf, buffer[:length]...)
	return nil
}

func (b *BufferSerialize) Close() error { return nil }

// BufferDeserialize is an in-memory Deserialize source reading out of
// a byte slice received as an RPC attachment.
type BufferDeserialize struct {
	Buf []byte
	pos int
}

var _ Deserialize = (*BufferDeserialize)(nil)

func NewBufferDeserialize(buf []byte) *BufferDeserialize {
	return &BufferDeserialize{Buf: buf}
}

func (b *BufferDeserialize) ReadData(buffer []byte, length int) error {
	if b.pos+length > len(b.Buf) {
		return io.ErrUnexpectedEOF
	}
	copy(buffer[:length], b.Buf[b.pos:b.pos+length])
	b.pos += length
	return nil
}

func (b *BufferDeserialize) Close() error { return nil }
