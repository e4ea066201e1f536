// Package vectorutil implements the pure-arithmetic vector service: blob
// (de)serialization of embeddings and brute-force cosine-similarity ranking.
// There is no vector database here — candidates are scanned in full, which
// is the point of keeping everything inside one embedded store.
package vectorutil

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// Serialize packs a float32 vector as little-endian bytes.
func Serialize(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// Deserialize unpacks a little-endian float32 blob. Returns an error if the
// byte length isn't a multiple of 4.
func Deserialize(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vectorutil: blob length %d is not a multiple of 4", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}

// CosineSimilarity returns the cosine similarity of a and b, or 0 when
// either vector's norm is zero or their lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		af, bf := float64(a[i]), float64(b[i])
		dot += af * bf
		normA += af * af
		normB += bf * bf
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Candidate is one item offered to SearchMemory: an opaque key plus its
// (possibly absent) embedding blob.
type Candidate struct {
	Key  string
	Blob []byte
}

// Scored pairs a candidate key with its similarity to the query.
type Scored struct {
	Key        string
	Similarity float64
}

// SearchMemory computes cosine similarity between query and every candidate
// with a non-empty blob, sorts descending, and returns the top k.
func SearchMemory(query []float32, candidates []Candidate, k int) ([]Scored, error) {
	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Blob) == 0 {
			continue
		}
		v, err := Deserialize(c.Blob)
		if err != nil {
			return nil, fmt.Errorf("vectorutil: candidate %s: %w", c.Key, err)
		}
		sim := CosineSimilarity(query, v)
		scored = append(scored, Scored{Key: c.Key, Similarity: clamp01(sim)})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].Key < scored[j].Key
	})
	if k >= 0 && k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

// Normalize scales v to unit length; returns v unchanged if its norm is zero.
func Normalize(v []float32) []float32 {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return v
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
