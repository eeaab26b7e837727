package embedding

import "math"

// CosineSimilarity computes the cosine similarity between two vectors.
//
// Returns a value between -1 and 1, where 1 means identical direction,
// 0 means orthogonal, and -1 means opposite. Vectors of mismatched or
// zero length score 0.
//
// Formula: cos(θ) = (A · B) / (||A|| × ||B||)
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}

	if magA == 0.0 || magB == 0.0 {
		return 0.0
	}

	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// Normalize scales v to unit length, returning a new vector.
// A zero vector is returned unchanged.
func Normalize(v Vector) Vector {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	mag := math.Sqrt(sum)
	if mag == 0.0 {
		return v
	}

	out := make(Vector, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) / mag)
	}
	return out
}
