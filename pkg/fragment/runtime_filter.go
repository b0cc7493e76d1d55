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
	"github.com/flowshard/worker/pkg/join"
	"github.com/flowshard/worker/pkg/operator"
)

// RuntimeFilterBinding threads a hash join build side's IN-predicate
// filter (pkg/join.RuntimeFilter) back to a leaf pipeline's morsel
// generator (SPEC_FULL.md §4: "Runtime filter push-down IN-predicate
// ... threaded from pkg/join back to the scan morsel generator in
// pkg/fragment"). This package has no access to a storage layer's
// block/partition summaries (out of scope, §5's Non-goals), so
// RangeAdmits is supplied by the caller: it reports whether morsel m
// could possibly contain a row the filter admits, given whatever
// summary the caller's scan range already carries (e.g. a partition's
// known min/max).
type RuntimeFilterBinding struct {
	Filter      *join.RuntimeFilter
	RangeAdmits func(f *join.RuntimeFilter, m operator.Morsel) bool
}

// admits reports whether m is worth building a Source for at all.
func (b *RuntimeFilterBinding) admits(m operator.Morsel) bool {
	if b == nil || b.Filter == nil || b.RangeAdmits == nil {
		return true
	}
	return b.RangeAdmits(b.Filter, m)
}
