package vectorutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSerializeDeserialize_RoundTrip1536(t *testing.T) {
	v := make([]float32, 1536)
	for i := range v {
		v[i] = float32(math.Sin(float64(i)))
	}
	blob := Serialize(v)
	out, err := Deserialize(blob)
	require.NoError(t, err)
	require.Len(t, out, 1536)
	for i := range v {
		require.InDelta(t, v[i], out[i], 1e-6)
	}
}

func TestDeserialize_InvalidLength(t *testing.T) {
	_, err := Deserialize([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestCosineSimilarity_ZeroNorm(t *testing.T) {
	require.Equal(t, 0.0, CosineSimilarity([]float32{0, 0, 0}, []float32{1, 2, 3}))
	require.Equal(t, 0.0, CosineSimilarity([]float32{1, 2, 3}, []float32{0, 0, 0}))
}

func TestCosineSimilarity_IdenticalVectors(t *testing.T) {
	v := []float32{1, 2, 3}
	require.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-9)
}

func TestSearchMemory_TopKDescending(t *testing.T) {
	query := []float32{1, 0}
	candidates := []Candidate{
		{Key: "same", Blob: Serialize([]float32{1, 0})},
		{Key: "orthogonal", Blob: Serialize([]float32{0, 1})},
		{Key: "opposite", Blob: Serialize([]float32{-1, 0})},
		{Key: "empty", Blob: nil},
	}
	out, err := SearchMemory(query, candidates, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "same", out[0].Key)
	require.InDelta(t, 1.0, out[0].Similarity, 1e-9)
	for _, s := range out {
		require.GreaterOrEqual(t, s.Similarity, 0.0)
		require.LessOrEqual(t, s.Similarity, 1.0)
	}
}
