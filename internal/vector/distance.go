package vector

import "github.com/viant/vec/search"

// EuclideanDistance returns the L2 distance between a and b. Both must have the same length.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) == 0 {
		return 0
	}
	return float64(search.Float32s(a).EuclideanDistance(b))
}
