package rank

import (
	"sort"

	"github.com/poiesic/passage/core"
)

// Default fusion parameters.
const (
	// DefaultAlpha weights dense and sparse contributions equally.
	DefaultAlpha = 0.5
	// DefaultRRFK is the standard reciprocal rank fusion constant.
	DefaultRRFK = 60
)

// fusedEntry accumulates the fusion state for one candidate id.
type fusedEntry struct {
	cand     core.Candidate
	score    float64
	bestRank int
}

// Fuse merges a dense and a sparse ranked list using Reciprocal Rank
// Fusion. Each appearance of a candidate contributes weight/(k+rank)
// where rank is its 1-based position in that list; the dense list is
// weighted alpha and the sparse list 1-alpha. A candidate missing from
// one list simply receives no contribution from it.
//
// Duplicates are merged by id: the first-seen copy is retained, missing
// score annotations are filled in from later copies, and the richer
// metadata map wins. Output is ordered by fused score descending, ties
// broken by the best rank held in either input list, then by id. When
// k <= 0 the default constant 60 is used.
func Fuse(dense, sparse []core.Candidate, alpha float64, k int) []core.Candidate {
	if k <= 0 {
		k = DefaultRRFK
	}

	entries := make(map[string]*fusedEntry, len(dense)+len(sparse))
	order := make([]string, 0, len(dense)+len(sparse))

	accumulate := func(list []core.Candidate, weight float64) {
		for i, cand := range list {
			rank := i + 1
			contribution := weight / float64(k+rank)

			entry, ok := entries[cand.Id]
			if !ok {
				entries[cand.Id] = &fusedEntry{
					cand:     cand.Clone(),
					score:    contribution,
					bestRank: rank,
				}
				order = append(order, cand.Id)
				continue
			}

			entry.score += contribution
			if rank < entry.bestRank {
				entry.bestRank = rank
			}
			mergeCandidate(&entry.cand, cand)
		}
	}

	accumulate(dense, alpha)
	accumulate(sparse, 1-alpha)

	fused := make([]core.Candidate, 0, len(order))
	for _, id := range order {
		entry := entries[id]
		score := entry.score
		entry.cand.FusionScore = &score
		fused = append(fused, entry.cand)
	}

	sort.Slice(fused, func(i, j int) bool {
		ei, ej := entries[fused[i].Id], entries[fused[j].Id]
		if ei.score != ej.score {
			return ei.score > ej.score
		}
		if ei.bestRank != ej.bestRank {
			return ei.bestRank < ej.bestRank
		}
		return fused[i].Id < fused[j].Id
	})

	return fused
}

// mergeCandidate folds a duplicate appearance of the same id into the
// retained copy. Score annotations absent on the retained copy are
// filled in, and metadata is replaced when the duplicate carries
// strictly more keys.
func mergeCandidate(dst *core.Candidate, other core.Candidate) {
	if dst.LexicalScore == nil && other.LexicalScore != nil {
		v := *other.LexicalScore
		dst.LexicalScore = &v
	}
	if dst.Similarity == nil && other.Similarity != nil {
		v := *other.Similarity
		dst.Similarity = &v
	}
	if dst.Content == "" && other.Content != "" {
		dst.Content = other.Content
	}
	if len(other.Metadata) > len(dst.Metadata) {
		dst.Metadata = core.CloneMetadata(other.Metadata)
	}
}
