package passage

import (
	"context"
	"fmt"

	"github.com/poiesic/passage/ai"
	"github.com/poiesic/passage/core"
	"github.com/poiesic/passage/retrieve"
	"github.com/poiesic/passage/storage"
)

// denseRetriever answers dense retrieval queries from the engine's
// vector store: embed the query, scan for the nearest stored vectors,
// then hydrate the matching passages into candidates.
type denseRetriever struct {
	embedder ai.Embedder
	vectors  storage.VectorRepository
	passages storage.PassageRepository
}

var _ retrieve.DenseRetriever = (*denseRetriever)(nil)

func (d *denseRetriever) RetrieveDense(ctx context.Context, query string, topK int) ([]core.Candidate, error) {
	queryVec, err := d.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// -1 keeps matches with negative cosine; the retriever applies its
	// own similarity floor after fusion.
	matches, err := d.vectors.FindSimilar(ctx, queryVec, -1, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	ids := make([]string, len(matches))
	for i, match := range matches {
		ids[i] = match.PassageId
	}
	stored, err := d.passages.GetPassages(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("loading matched passages: %w", err)
	}

	byID := make(map[string]*core.Passage, len(stored))
	for _, p := range stored {
		byID[p.Id] = p
	}

	// Preserve match order; skip matches whose passage was deleted
	// between the scan and the load.
	candidates := make([]core.Candidate, 0, len(matches))
	for _, match := range matches {
		p, ok := byID[match.PassageId]
		if !ok {
			continue
		}
		candidate := p.Candidate()
		score := float64(match.Score)
		candidate.Similarity = &score
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}
