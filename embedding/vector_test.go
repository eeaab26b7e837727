package embedding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b Vector
		want float64
	}{
		{"identical", Vector{1, 2, 3}, Vector{1, 2, 3}, 1.0},
		{"opposite", Vector{1, 0}, Vector{-1, 0}, -1.0},
		{"orthogonal", Vector{1, 0}, Vector{0, 1}, 0.0},
		{"scaled copies still identical", Vector{1, 2}, Vector{2, 4}, 1.0},
		{"mismatched lengths", Vector{1, 2}, Vector{1, 2, 3}, 0.0},
		{"empty", Vector{}, Vector{}, 0.0},
		{"zero vector", Vector{0, 0}, Vector{1, 1}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestNormalize(t *testing.T) {
	out := Normalize(Vector{3, 4})
	assert.InDelta(t, 0.6, out[0], 1e-6)
	assert.InDelta(t, 0.8, out[1], 1e-6)

	var sum float64
	for _, v := range out {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
}

func TestNormalizeZeroVector(t *testing.T) {
	zero := Vector{0, 0, 0}
	assert.Equal(t, zero, Normalize(zero))
}

func TestNormalizeIdempotent(t *testing.T) {
	once := Normalize(Vector{1, 2, 3, 4})
	twice := Normalize(once)
	for i := range once {
		assert.InDelta(t, once[i], twice[i], 1e-6)
	}
}
