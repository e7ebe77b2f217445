// Package vector provides similarity scoring between embedding vectors.
package vector

// Dot returns the dot product of two equal-length vectors. For unit vectors
// this equals cosine similarity. Returns 0 when either vector is empty or the
// lengths differ, so callers never have to guard a score call.
func Dot(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}

	return sum
}
