package similarity

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch indicates vectors of unequal length were compared.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Cosine returns dot(a,b) / (‖a‖·‖b‖), in [-1, 1].
//
// Vectors of different lengths return ErrDimensionMismatch. A zero-norm
// vector has similarity 0 with everything.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, magA, magB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}
	if magA == 0 || magB == 0 {
		return 0, nil
	}

	sim := dot / math.Sqrt(magA*magB)
	// Rounding can push parallel vectors just past the unit bound.
	return math.Max(-1, math.Min(1, sim)), nil
}

// Centroid returns the element-wise mean of vectors, skipping empty ones.
// It returns nil when no vector is non-empty.
func Centroid(vectors [][]float32) ([]float32, error) {
	var sum []float64
	var n int
	for _, v := range vectors {
		if len(v) == 0 {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(v))
		} else if len(v) != len(sum) {
			return nil, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(v), len(sum))
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
		n++
	}
	if n == 0 {
		return nil, nil
	}

	out := make([]float32, len(sum))
	for i, s := range sum {
		out[i] = float32(s / float64(n))
	}
	return out, nil
}
