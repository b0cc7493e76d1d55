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

package join

import "github.com/flowshard/worker/pkg/chunk"

// RuntimeFilter is the IN-predicate runtime filter pushed down from a
// hash join's build side back to the probe-side scan (SPEC_FULL.md
// §4, "Runtime filter push-down IN-predicate"). The teacher has no
// analogue for this; it is threaded from pkg/join back to
// pkg/fragment's scan morsel generator, which is expected to skip any
// morsel whose min/max or distinct-value summary cannot possibly
// satisfy the filter.
type RuntimeFilter struct {
	Column int
	Values map[int64]struct{}

	// NullSafe marks a null-safe equality join (<=> rather than =),
	// for which a NULL build key is a valid match and an IN-predicate
	// filter computed only from non-null build keys would wrongly
	// exclude probe-side NULLs; the filter must be disabled in that
	// case.
	NullSafe bool

	// RemoteExchangeProbe marks a probe child fed across an exchange
	// channel (pkg/exchange) rather than a local scan: pushing a
	// filter down there would require it to cross the wire ahead of
	// the probe-side rows it is meant to filter, which this module's
	// exchange protocol does not support, so it is disabled.
	RemoteExchangeProbe bool
}

// maxRuntimeFilterRows is the build-side row-count ceiling under
// which a runtime filter is worth building at all (SPEC_FULL.md §4's
// "1024-row threshold").
const maxRuntimeFilterRows = 1024

// BuildRuntimeFilter computes an IN-predicate filter over one
// fixed-width integer build-side column, or reports that none should
// be pushed down. column indexes ht.buildRows' positional layout, the
// same column space HashJoinTable.Build received in buildCols.
func (ht *HashJoinTable) BuildRuntimeFilter(column int, nullSafe, remoteExchangeProbe bool) (*RuntimeFilter, bool) {
	if nullSafe || remoteExchangeProbe {
		return nil, false
	}
	if len(ht.buildRows) == 0 || len(ht.buildRows) > maxRuntimeFilterRows {
		return nil, false
	}
	values := make(map[int64]struct{}, len(ht.buildRows))
	for _, row := range ht.buildRows {
		v := row[column]
		if v.IsNull {
			continue
		}
		values[v.I64] = struct{}{}
	}
	return &RuntimeFilter{Column: column, Values: values, NullSafe: nullSafe, RemoteExchangeProbe: remoteExchangeProbe}, true
}

// Admits reports whether row could possibly satisfy the filter; a
// scan morsel generator calls this per row (or per block summary) to
// skip input that can never join.
func (rf *RuntimeFilter) Admits(row []*chunk.Value) bool {
	v := row[rf.Column]
	if v.IsNull {
		return rf.NullSafe
	}
	_, ok := rf.Values[v.I64]
	return ok
}
