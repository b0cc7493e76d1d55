package hashkey

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/flowshard/worker/pkg/chunk"
	"github.com/flowshard/worker/pkg/common"
)

func pointerOf(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(unsafe.SliceData(b))
}

func intVec(vals []int32, nulls map[int]bool) *chunk.Vector {
	v := chunk.NewFlatVector(common.IntegerType(), len(vals))
	data := chunk.GetSliceInPhyFormatFlat[int32](v)
	copy(data, vals)
	for i := range vals {
		if nulls[i] {
			chunk.SetNullInPhyFormatFlat(v, uint64(i), true)
		}
	}
	return v
}

func strVec(vals []string, nulls map[int]bool) *chunk.Vector {
	v := chunk.NewFlatVector(common.VarcharType(), len(vals))
	data := chunk.GetSliceInPhyFormatFlat[common.String](v)
	for i, s := range vals {
		b := []byte(s)
		data[i] = common.String{Data: pointerOf(b), Len: len(b)}
		if nulls[i] {
			chunk.SetNullInPhyFormatFlat(v, uint64(i), true)
		}
	}
	return v
}

// Invariant (spec §8): building a set with the same keys twice yields
// the same number of distinct groups (idempotence of the set, not of
// individual BuildSet calls across batches).
func Test_OneNumberKey_GroupsDeduplicate(t *testing.T) {
	k := NewOneNumberKey(common.IntegerType(), 8)
	vec := intVec([]int32{1, 2, 1, 3, 2, 1}, nil)
	slots, notFound := k.BuildSet([]*chunk.Vector{vec}, 6)
	require.Equal(t, 3, k.Len())
	require.Equal(t, []bool{true, true, false, true, false, false}, notFound)
	require.Equal(t, slots[0], slots[2])
	require.Equal(t, slots[2], slots[5])
	require.Equal(t, slots[1], slots[4])
	require.NotEqual(t, slots[0], slots[1])
	require.NotEqual(t, slots[0], slots[3])
}

func Test_OneNullableNumberKey_NullsShareOneGroup(t *testing.T) {
	k := NewOneNullableNumberKey(common.IntegerType(), 8)
	vec := intVec([]int32{1, 0, 0, 2}, map[int]bool{1: true, 2: true})
	slots, notFound := k.BuildSet([]*chunk.Vector{vec}, 4)
	require.Equal(t, 3, k.Len()) // {1}, {null}, {2}
	require.True(t, notFound[0])
	require.True(t, notFound[1])
	require.False(t, notFound[2])
	require.Equal(t, slots[1], slots[2])
}

func Test_OneStringKey_Probe_DoesNotInsert(t *testing.T) {
	k := NewOneStringKey(8)
	built := strVec([]string{"a", "b", "a"}, nil)
	k.BuildSet([]*chunk.Vector{built}, 3)
	require.Equal(t, 2, k.Len())

	probe := strVec([]string{"a", "c"}, nil)
	_, notFound := k.Probe([]*chunk.Vector{probe}, 2)
	require.False(t, notFound[0])
	require.True(t, notFound[1])
	require.Equal(t, 2, k.Len()) // probe never grows the set
}

func Test_SerializedCompositeKey_MixedColumns(t *testing.T) {
	k := NewSerializedCompositeKey(8)
	a := intVec([]int32{1, 1, 2}, nil)
	b := strVec([]string{"x", "y", "x"}, nil)
	slots, notFound := k.BuildSet([]*chunk.Vector{a, b}, 3)
	require.Equal(t, 3, k.Len()) // (1,x) (1,y) (2,x) all distinct
	require.True(t, notFound[0])
	require.True(t, notFound[1])
	require.True(t, notFound[2])
	require.NotEqual(t, slots[0], slots[1])
	require.NotEqual(t, slots[0], slots[2])
}
