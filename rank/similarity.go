package rank

import "math"

// CosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 when either vector has zero norm, so callers never divide by
// zero on empty or degenerate embeddings. Vectors of unequal length are
// multiplied over their shared prefix.
func CosineSimilarity(a, b []float32) float64 {
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}

	var dot float64
	for i := 0; i < minLen; i++ {
		dot += float64(a[i]) * float64(b[i])
	}

	var normA, normB float64
	for _, v := range a {
		normA += float64(v) * float64(v)
	}
	for _, v := range b {
		normB += float64(v) * float64(v)
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
