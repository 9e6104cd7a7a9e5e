package reindex

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/passage/ai"
	"github.com/poiesic/passage/core"
	"github.com/poiesic/passage/storage"
)

// BatchProcessor handles embedding generation for batches of passages.
type BatchProcessor struct {
	vectors        storage.VectorRepository
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of retry attempts for embedding API calls
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(vectors storage.VectorRepository, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		vectors:        vectors,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process generates embeddings for a batch of passages and rewrites
// their stored vectors. Vectors are normalized after embedding to
// ensure compatibility with cosine similarity.
func (bp *BatchProcessor) Process(ctx context.Context, passages []*core.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	// Extract text content
	texts := make([]string, len(passages))
	for i, passage := range passages {
		texts[i] = passage.Content
	}

	// Generate embeddings with retry
	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)

	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(passages) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(passages), len(embeddings))
	}

	// Normalize vectors and build the replacement records
	records := make([]*storage.VectorRecord, len(passages))
	for i := range passages {
		records[i] = &storage.VectorRecord{
			PassageId: passages[i].Id,
			Vector:    NormalizeVector(embeddings[i]),
		}
	}

	// Rewrite the stored vectors
	if err := bp.vectors.PutVectors(ctx, records...); err != nil {
		return fmt.Errorf("failed to update vectors: %w", err)
	}

	return nil
}
