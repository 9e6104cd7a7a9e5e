package rank

import (
	"math"

	"github.com/poiesic/passage/core"
)

// DefaultLambda balances relevance and diversity equally.
const DefaultLambda = 0.5

// Embedded pairs a candidate with the embedding vector used for
// diversity comparisons. Keeping the pairing explicit means Diversify
// can never receive mismatched candidate and embedding slices.
type Embedded struct {
	Candidate core.Candidate
	Vector    []float32
}

// Diversify selects up to k candidates from the pool using Maximal
// Marginal Relevance. Each round picks the remaining candidate
// maximizing
//
//	lambda * sim(query, c) - (1-lambda) * max sim(c, s) over selected s
//
// where sim is cosine similarity and the penalty term is 0 while
// nothing has been selected. Exact ties keep the earliest remaining
// candidate, so the output is deterministic over the input ordering.
// lambda = 1 reduces to ranking by query similarity alone; lambda = 0
// selects purely for anti-redundancy after the first pick.
//
// Selected candidates are cloned and annotated with their 1-based
// selection order and their query similarity.
func Diversify(queryVec []float32, pool []Embedded, lambda float64, k int) []core.Candidate {
	if len(pool) == 0 || k <= 0 {
		return []core.Candidate{}
	}
	if k > len(pool) {
		k = len(pool)
	}

	// Query similarities are fixed per candidate, compute them once
	querySims := make([]float64, len(pool))
	for i := range pool {
		querySims[i] = CosineSimilarity(queryVec, pool[i].Vector)
	}

	selected := make([]int, 0, k)
	remaining := make([]int, len(pool))
	for i := range remaining {
		remaining[i] = i
	}

	for len(selected) < k {
		bestPos := -1
		bestScore := math.Inf(-1)

		for pos, idx := range remaining {
			relevance := querySims[idx]

			maxToSelected := 0.0
			if len(selected) > 0 {
				maxToSelected = math.Inf(-1)
				for _, sel := range selected {
					if sim := CosineSimilarity(pool[idx].Vector, pool[sel].Vector); sim > maxToSelected {
						maxToSelected = sim
					}
				}
			}

			score := lambda*relevance - (1-lambda)*maxToSelected
			if score > bestScore {
				bestScore = score
				bestPos = pos
			}
		}

		idx := remaining[bestPos]
		selected = append(selected, idx)
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	results := make([]core.Candidate, 0, len(selected))
	for rank, idx := range selected {
		cand := pool[idx].Candidate.Clone()
		order := rank + 1
		sim := querySims[idx]
		cand.DiversificationRank = &order
		cand.Similarity = &sim
		results = append(results, cand)
	}

	return results
}
