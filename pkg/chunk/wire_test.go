package chunk

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowshard/worker/pkg/common"
	"github.com/flowshard/worker/pkg/util"
)

func makeIntChunk(vals []int32, nulls map[int]bool) *Chunk {
	c := &Chunk{}
	c.Init([]common.LType{common.IntegerType(), common.VarcharType()}, util.DefaultVectorSize)
	data := GetSliceInPhyFormatFlat[int32](c.Data[0])
	strData := GetSliceInPhyFormatFlat[common.String](c.Data[1])
	for i, v := range vals {
		data[i] = v
		strData[i] = common.String{}
		if nulls[i] {
			SetNullInPhyFormatFlat(c.Data[0], uint64(i), true)
			SetNullInPhyFormatFlat(c.Data[1], uint64(i), true)
		}
	}
	c.SetCard(len(vals))
	return c
}

// Invariant 1 (spec §8): deserialize(serialize(C)) == C byte-for-byte,
// across column types, with meta on first and without thereafter.
func Test_ChunkRoundTrip_WithMeta(t *testing.T) {
	c := makeIntChunk([]int32{1, 2, 3}, map[int]bool{1: true})

	buf := &util.BufferSerialize{}
	require.NoError(t, c.SerializeWithMeta([]int{0, 1}, buf))

	got, meta, err := DeserializeWithMeta(util.NewBufferDeserialize(buf.Buf))
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, meta.SlotIds)
	require.Equal(t, c.Card(), got.Card())

	gotData := GetSliceInPhyFormatFlat[int32](got.Data[0])
	wantData := GetSliceInPhyFormatFlat[int32](c.Data[0])
	for i := 0; i < c.Card(); i++ {
		wantValid := GetMaskInPhyFormatFlat(c.Data[0]).RowIsValid(uint64(i))
		gotValid := GetMaskInPhyFormatFlat(got.Data[0]).RowIsValid(uint64(i))
		require.Equal(t, wantValid, gotValid)
		if wantValid {
			require.Equal(t, wantData[i], gotData[i])
		}
	}
}

func Test_ChunkRoundTrip_WithoutMeta(t *testing.T) {
	c := makeIntChunk([]int32{10, 20, 30, 40}, nil)

	buf := &util.BufferSerialize{}
	require.NoError(t, c.Serialize(buf))

	got := &Chunk{}
	got.Init(c.Types(), util.DefaultVectorSize)
	require.NoError(t, got.Deserialize(util.NewBufferDeserialize(buf.Buf)))
	require.Equal(t, c.Card(), got.Card())

	gotData := GetSliceInPhyFormatFlat[int32](got.Data[0])
	for i, v := range []int32{10, 20, 30, 40} {
		require.Equal(t, v, gotData[i])
	}
}

func Test_Chunk_AppendSelective(t *testing.T) {
	src := makeIntChunk([]int32{1, 2, 3, 4, 5}, nil)
	dst := &Chunk{}
	dst.Init(src.Types(), util.DefaultVectorSize)

	idx := NewSelectVector3([]int{4, 2, 0, 1, 3})
	dst.AppendSelective(src, idx, 1, 3) // rows at idx[1..4) = {2,0,1}

	require.Equal(t, 3, dst.Card())
	dstData := GetSliceInPhyFormatFlat[int32](dst.Data[0])
	require.Equal(t, int32(3), dstData[0]) // src[2]
	require.Equal(t, int32(1), dstData[1]) // src[0]
	require.Equal(t, int32(2), dstData[2]) // src[1]
}
