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

package aggregate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/common"
)

func row(part int64, order int64, val int64) []*chunk.Value {
	return []*chunk.Value{
		{Typ: common.IntegerType(), I64: part},
		{Typ: common.IntegerType(), I64: order},
		{Typ: common.IntegerType(), I64: val},
	}
}

func Test_WindowOperator_RowNumberAndRank(t *testing.T) {
	exprs := []WindowExpr{
		{Name: "row_number", RetType: common.IntegerType()},
		{Name: "rank", RetType: common.IntegerType()},
		{Name: "dense_rank", RetType: common.IntegerType()},
	}
	w := NewWindowOperator([]int{0}, []int{1}, exprs)

	rows := [][]*chunk.Value{
		row(1, 10, 100),
		row(1, 10, 200),
		row(1, 20, 300),
	}
	var out [][]*chunk.Value
	for _, r := range rows {
		if flushed := w.Push(r); flushed != nil {
			out = append(out, flushed...)
		}
	}
	out = append(out, w.Finish()...)
	require.Len(t, out, 3)

	require.EqualValues(t, 1, out[0][3].I64) // row_number
	require.EqualValues(t, 2, out[1][3].I64)
	require.EqualValues(t, 3, out[2][3].I64)

	require.EqualValues(t, 1, out[0][4].I64) // rank: ties share 1
	require.EqualValues(t, 1, out[1][4].I64)
	require.EqualValues(t, 3, out[2][4].I64) // next distinct order jumps to 3

	require.EqualValues(t, 1, out[0][5].I64) // dense_rank: no gaps
	require.EqualValues(t, 1, out[1][5].I64)
	require.EqualValues(t, 2, out[2][5].I64)
}

func Test_WindowOperator_LeadLagFirstLast(t *testing.T) {
	exprs := []WindowExpr{
		{Name: "lead", Col: 2, Offset: 1, RetType: common.IntegerType()},
		{Name: "lag", Col: 2, Offset: 1, RetType: common.IntegerType()},
		{Name: "first_value", Col: 2, RetType: common.IntegerType()},
		{Name: "last_value", Col: 2, RetType: common.IntegerType()},
	}
	w := NewWindowOperator([]int{0}, []int{1}, exprs)

	rows := [][]*chunk.Value{
		row(1, 10, 100),
		row(1, 20, 200),
		row(1, 30, 300),
	}
	var out [][]*chunk.Value
	for _, r := range rows {
		out = append(out, w.Push(r)...)
	}
	out = append(out, w.Finish()...)
	require.Len(t, out, 3)

	require.EqualValues(t, 200, out[0][3].I64) // lead(1) of row0
	require.EqualValues(t, 300, out[1][3].I64)
	require.True(t, out[2][3].IsNull) // lead past end

	require.True(t, out[0][4].IsNull) // lag before start
	require.EqualValues(t, 100, out[1][4].I64)
	require.EqualValues(t, 200, out[2][4].I64)

	for i := 0; i < 3; i++ {
		require.EqualValues(t, 100, out[i][5].I64) // first_value
		require.EqualValues(t, 300, out[i][6].I64) // last_value
	}
}

func Test_WindowOperator_PartitionBoundaryFlushesPrior(t *testing.T) {
	exprs := []WindowExpr{{Name: "row_number", RetType: common.IntegerType()}}
	w := NewWindowOperator([]int{0}, []int{1}, exprs)

	flushed := w.Push(row(1, 10, 1))
	require.Nil(t, flushed)
	flushed = w.Push(row(1, 20, 2))
	require.Nil(t, flushed)

	// new partition key triggers a flush of partition 1's two rows
	flushed = w.Push(row(2, 10, 3))
	require.Len(t, flushed, 2)
	require.EqualValues(t, 1, flushed[0][3].I64)
	require.EqualValues(t, 2, flushed[1][3].I64)

	rest := w.Finish()
	require.Len(t, rest, 1)
	require.EqualValues(t, 1, rest[0][3].I64)
}
