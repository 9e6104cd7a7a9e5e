package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces free-form text completions from a prompt.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// GenerateText sends the prompt to a text-generation model and
	// returns the raw response text.
	// Returns an error if the generation call fails.
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// PairScorer scores (query, text) pairs jointly with a cross-encoder
// model. Joint scoring is typically more accurate than comparing
// independent embeddings, at the cost of a model call per candidate pool.
// Implementations must be thread-safe for concurrent use.
type PairScorer interface {
	// ScorePair returns a relevance score for a single pair.
	// The score range is model-defined and only meaningful for ranking.
	ScorePair(ctx context.Context, query, text string) (float64, error)

	// ScorePairs scores the same query against multiple texts.
	// The returned slice contains scores in the same order as the input
	// texts. Returns an error if the scoring call fails.
	ScorePairs(ctx context.Context, query string, texts []string) ([]float64, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and Generator instances,
// ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Generator returns the text generation service.
	// The returned Generator is safe for concurrent use.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
