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

package fragment

import (
	"sync"

	wire "github.com/jeroenrinzema/psql-wire"
	"github.com/lib/pq/oid"

	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/common"
	"github.com/flowshard/worker/pkg/operator"
)

// ResultSink is the local-output translation of spec §4.7's "result
// sinks" (as opposed to the exchange-backed "data-stream sinks"
// operator.ExchangeSink handles): it buffers a fragment's final output
// chunks for the caller to drain, and exposes their schema the same
// shape the teacher's Runner.Columns does, reusing psql-wire's
// wire.Columns purely as a column-descriptor value type (no protocol
// serving is wired up here, out of scope per this module's Non-goals).
type ResultSink struct {
	types []common.LType
	names []string

	mu        sync.Mutex
	chunks    []*chunk.Chunk
	finishing bool
}

// NewResultSink builds a result sink over outTypes, named per names
// (names may be nil; missing entries are left blank the way the
// teacher's own Columns() leaves Name unset, per its FIXME).
func NewResultSink(outTypes []common.LType, names []string) *ResultSink {
	return &ResultSink{types: outTypes, names: names}
}

func (s *ResultSink) Prepare() error { return nil }

func (s *ResultSink) Push(input *chunk.Chunk) (operator.SinkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &chunk.Chunk{}
	c.Reference(input)
	s.chunks = append(s.chunks, c)
	return operator.SinkNeedMoreInput, nil
}

func (s *ResultSink) SetFinishing() error {
	s.mu.Lock()
	s.finishing = true
	s.mu.Unlock()
	return nil
}

func (s *ResultSink) IsFinished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishing
}

func (s *ResultSink) Close() error { return nil }

// Drain removes and returns every chunk buffered so far.
func (s *ResultSink) Drain() []*chunk.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.chunks
	s.chunks = nil
	return out
}

// Columns mirrors the teacher's Runner.Columns() (pkg/compute/executor.go,
// pkg/plan/run.go): one wire.Column per output type, Oid resolved from
// the logical type the way oidFor below does, Width taken straight
// from LType.Width.
func (s *ResultSink) Columns() wire.Columns {
	cols := make(wire.Columns, 0, len(s.types))
	for i, t := range s.types {
		name := ""
		if i < len(s.names) {
			name = s.names[i]
		}
		cols = append(cols, wire.Column{
			Name:  name,
			Oid:   oidFor(t),
			Width: int16(t.Width),
		})
	}
	return cols
}

// oidFor maps a logical type to its nearest postgres wire OID, filling
// in the mapping the teacher's own Columns() left as a "FIXME:
// oid.T_varchar" catch-all.
func oidFor(t common.LType) oid.Oid {
	switch t.Id {
	case common.LTID_BOOLEAN:
		return oid.T_bool
	case common.LTID_TINYINT, common.LTID_SMALLINT, common.LTID_UTINYINT, common.LTID_USMALLINT:
		return oid.T_int2
	case common.LTID_INTEGER, common.LTID_UINTEGER:
		return oid.T_int4
	case common.LTID_BIGINT, common.LTID_UBIGINT, common.LTID_HUGEINT:
		return oid.T_int8
	case common.LTID_FLOAT:
		return oid.T_float4
	case common.LTID_DOUBLE:
		return oid.T_float8
	case common.LTID_DECIMAL:
		return oid.T_numeric
	case common.LTID_DATE:
		return oid.T_date
	default:
		return oid.T_varchar
	}
}
