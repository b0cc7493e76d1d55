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
	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/common"
)

// WindowExpr is one window function call: which columns it reads and
// which of the fixed set of window functions to apply. There is no
// teacher analogue (pkg/plan has no window operator); grounded on
// spec.md §4.3's function taxonomy, generalized the way this package's
// Expr/Resolve split group aggregates.
type WindowExpr struct {
	Name    string // row_number, rank, dense_rank, lead, lag, first_value, last_value
	Col     int    // argument column, -1 for row_number/rank/dense_rank
	RetType common.LType
	Offset  int64        // lead/lag distance, default 1
	Default *chunk.Value // lead/lag out-of-partition fallback, default NULL
}

// WindowOperator is a streaming transform operator, not a blocking
// one: callers are expected to feed it rows already grouped by
// partitionCols and ordered by orderCols (a prior sort operator's
// job, out of this package's scope), and it buffers only the rows of
// the partition currently in flight, flushing a completed partition's
// worth of computed window values as soon as a partition-key change is
// observed. This mirrors how the teacher's own operators (e.g.
// pkg/plan/run.go's OperatorExec) are pull/push per-chunk rather than
// materializing the whole input.
type WindowOperator struct {
	partitionCols []int
	orderCols     []int
	exprs         []WindowExpr

	buf [][]*chunk.Value
}

func NewWindowOperator(partitionCols, orderCols []int, exprs []WindowExpr) *WindowOperator {
	return &WindowOperator{partitionCols: partitionCols, orderCols: orderCols, exprs: exprs}
}

// Push feeds one input row (already ordered within its partition). It
// returns a finished partition's computed output rows whenever the
// incoming row starts a new partition; the caller must call Finish
// once input is exhausted to flush the last partition.
func (w *WindowOperator) Push(row []*chunk.Value) [][]*chunk.Value {
	if len(w.buf) > 0 && !rowsEqualOnCols(w.buf[0], row, w.partitionCols) {
		out := w.computePartition(w.buf)
		w.buf = w.buf[:0]
		w.buf = append(w.buf, row)
		return out
	}
	w.buf = append(w.buf, row)
	return nil
}

// Finish flushes the partition still buffered, if any.
func (w *WindowOperator) Finish() [][]*chunk.Value {
	if len(w.buf) == 0 {
		return nil
	}
	out := w.computePartition(w.buf)
	w.buf = nil
	return out
}

func rowsEqualOnCols(a, b []*chunk.Value, cols []int) bool {
	for _, c := range cols {
		if compareValues(a[c], b[c]) != 0 {
			return false
		}
	}
	return true
}

// computePartition appends one output column per w.exprs to every row
// of a buffered partition and returns the widened rows.
func (w *WindowOperator) computePartition(rows [][]*chunk.Value) [][]*chunk.Value {
	out := make([][]*chunk.Value, len(rows))
	for i, row := range rows {
		widened := make([]*chunk.Value, len(row)+len(w.exprs))
		copy(widened, row)
		out[i] = widened
	}
	for e, expr := range w.exprs {
		col := len(rows[0]) + e
		switch expr.Name {
		case "row_number":
			for i := range rows {
				out[i][col] = &chunk.Value{Typ: expr.RetType, I64: int64(i + 1)}
			}
		case "rank":
			rank := 1
			for i := range rows {
				if i > 0 && !rowsEqualOnCols(rows[i-1], rows[i], w.orderCols) {
					rank = i + 1
				}
				out[i][col] = &chunk.Value{Typ: expr.RetType, I64: int64(rank)}
			}
		case "dense_rank":
			rank := 1
			for i := range rows {
				if i > 0 && !rowsEqualOnCols(rows[i-1], rows[i], w.orderCols) {
					rank++
				}
				out[i][col] = &chunk.Value{Typ: expr.RetType, I64: int64(rank)}
			}
		case "lead", "lag":
			off := expr.Offset
			if off == 0 {
				off = 1
			}
			if expr.Name == "lag" {
				off = -off
			}
			for i := range rows {
				j := i + int(off)
				if j < 0 || j >= len(rows) {
					out[i][col] = windowDefault(expr)
					continue
				}
				out[i][col] = rows[j][expr.Col]
			}
		case "first_value":
			for i := range rows {
				out[i][col] = rows[0][expr.Col]
			}
		case "last_value":
			last := rows[len(rows)-1][expr.Col]
			for i := range rows {
				out[i][col] = last
			}
		default:
			for i := range rows {
				out[i][col] = &chunk.Value{Typ: expr.RetType, IsNull: true}
			}
		}
	}
	return out
}

func windowDefault(expr WindowExpr) *chunk.Value {
	if expr.Default != nil {
		return expr.Default
	}
	return &chunk.Value{Typ: expr.RetType, IsNull: true}
}
