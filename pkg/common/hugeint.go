package common

import (
	"fmt"
)

// Hugeint is the 128-bit integer physical storage layout for the
// HUGEINT column type (Upper/Lower split across chunk.Value's
// I64/I64_1 fields). Arithmetic over it is out of scope: the
// aggregates that would otherwise widen into a 128-bit accumulator
// (sum/avg) widen into float64 or common.Decimal instead (see
// pkg/aggregate/numeric.go), so this type only needs to round-trip
// through columns and print for debugging.
type Hugeint struct {
	Lower uint64
	Upper int64
}

func (h Hugeint) String() string {
	return fmt.Sprintf("[%d %d]", h.Upper, h.Lower)
}
