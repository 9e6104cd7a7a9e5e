package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/passage/ai"
	"github.com/poiesic/passage/core"
	"github.com/poiesic/passage/lexical"
	"github.com/poiesic/passage/rank"
)

// DenseRetriever is the contract for the dense retrieval collaborator.
// An implementation embeds the query and returns the topK most similar
// passages, each carrying a Similarity score in a model-defined range.
// An empty store yields an empty slice and a nil error; only genuine
// failures return one.
type DenseRetriever interface {
	RetrieveDense(ctx context.Context, query string, topK int) ([]core.Candidate, error)
}

// Retriever runs the hybrid retrieval pipeline over a dense retriever
// and the optional collaborators attached at construction.
type Retriever struct {
	dense    DenseRetriever
	index    *lexical.Index
	rescorer *rank.Rescorer
	embedder ai.Embedder
	degrade  bool
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithLexicalIndex attaches a lexical index whose results are fused
// with the dense list. Without one, retrieval is dense-only.
func WithLexicalIndex(index *lexical.Index) Option {
	return func(r *Retriever) error {
		r.index = index
		return nil
	}
}

// WithRescorer sets the rescorer used when a call selects rescoring.
// Without one, rescoring calls pass the leading candidates through
// unchanged.
func WithRescorer(rescorer *rank.Rescorer) Option {
	return func(r *Retriever) error {
		r.rescorer = rescorer
		return nil
	}
}

// WithEmbedder sets the embedder used to embed the query and candidate
// pool when a call selects diversification.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(r *Retriever) error {
		r.embedder = embedder
		return nil
	}
}

// WithDegradeOnDenseFailure makes Retrieve fall back to lexical-only
// results when the dense retriever fails, instead of returning the
// wrapped failure. The fallback needs a built lexical index; without
// one the failure is returned regardless.
func WithDegradeOnDenseFailure() Option {
	return func(r *Retriever) error {
		r.degrade = true
		return nil
	}
}

// NewRetriever creates a new retriever.
func NewRetriever(dense DenseRetriever, opts ...Option) (*Retriever, error) {
	if dense == nil {
		return nil, ErrDenseRetrieverRequired
	}

	r := &Retriever{
		dense:  dense,
		logger: slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Retrieve runs the pipeline for the query and returns up to topK
// candidates ranked by relevance. Per-call options tune the stages;
// see Options for the defaults.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts ...QueryOption) ([]core.Candidate, error) {
	return r.RetrieveWithMonitor(ctx, query, nil, opts...)
}

// RetrieveWithMonitor runs the pipeline for the query with monitoring.
// The monitor receives callbacks after each stage that ran.
func (r *Retriever) RetrieveWithMonitor(ctx context.Context, query string, monitor Monitor, opts ...QueryOption) ([]core.Candidate, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	options := DefaultOptions()
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return nil, err
		}
	}

	monitor.Start(query)

	// A blank query never touches a collaborator
	if strings.TrimSpace(query) == "" {
		results := []core.Candidate{}
		monitor.Finish(results)
		return results, nil
	}

	// Post-stages re-order a wider pool, so fetch more than topK when
	// one is selected
	fetchWidth := options.TopK
	if options.Mode != ModeNone {
		fetchWidth = 3 * options.TopK
	}

	lexicalReady := r.index != nil && r.index.DocCount() > 0

	// 1. Dense retrieval
	dense, err := r.dense.RetrieveDense(ctx, query, fetchWidth)
	denseFailed := false
	if err != nil {
		wrapped := fmt.Errorf("%w: %w", ErrDenseRetrieval, err)
		if !r.degrade || !lexicalReady {
			r.logger.Error("dense retrieval failed", "query", query, "err", err)
			return nil, wrapped
		}
		r.logger.Warn("dense retrieval failed, degrading to lexical-only results", "err", err)
		monitor.DenseRetrievalDegraded(wrapped)
		denseFailed = true
	} else {
		monitor.AfterDenseRetrieval(dense)
	}

	// 2. Lexical search against the last built corpus snapshot
	var sparse []core.Candidate
	if lexicalReady {
		sparse, err = r.index.SearchParams(query, fetchWidth, options.Lexical)
		if err != nil {
			r.logger.Error("lexical search failed", "err", err)
			return nil, err
		}
		monitor.AfterLexicalSearch(sparse)
	}

	// 3. Merge the ranked lists
	var pool []core.Candidate
	switch {
	case denseFailed:
		pool = sparse
	case lexicalReady:
		pool = rank.Fuse(dense, sparse, options.Alpha, options.RRFK)
		monitor.AfterFusion(pool)
	default:
		pool = dense
	}

	// 4. Metadata filters narrow the pool before any post-stage sees it
	if options.hasFilters() {
		pool = filterByMetadata(pool, options)
	}

	// 5. Post-stage
	switch options.Mode {
	case ModeRescore:
		pool, err = r.rescorePool(ctx, query, pool, options.TopK)
		if err != nil {
			return nil, err
		}
		monitor.AfterRescoring(pool)
	case ModeDiversify:
		pool, err = r.diversifyPool(ctx, query, pool, options)
		if err != nil {
			return nil, err
		}
		monitor.AfterDiversification(pool)
	}

	// 6. Score floor, then cap at topK
	if options.MinSimilarity > 0 {
		pool = filterByMinSimilarity(pool, options.MinSimilarity)
	}
	results := truncate(pool, options.TopK)
	monitor.Finish(results)

	return results, nil
}

// rescorePool applies the configured rescorer. Without one the leading
// candidates pass through unchanged, mirroring the rescorer's own
// no-model path.
func (r *Retriever) rescorePool(ctx context.Context, query string, pool []core.Candidate, topK int) ([]core.Candidate, error) {
	if r.rescorer == nil {
		r.logger.Debug("rescoring requested without a rescorer, passing candidates through")
		return truncate(pool, topK), nil
	}
	return r.rescorer.Rescore(ctx, query, pool, topK)
}

// diversifyPool embeds the query and pool and applies diversification.
// Embedding failures degrade to the first topK candidates in their
// current order rather than failing the call; the only returned error
// is context cancellation.
func (r *Retriever) diversifyPool(ctx context.Context, query string, pool []core.Candidate, options Options) ([]core.Candidate, error) {
	if len(pool) == 0 {
		return pool, nil
	}
	if r.embedder == nil {
		r.logger.Warn("diversification requested without an embedder, returning candidates in ranked order")
		return truncate(pool, options.TopK), nil
	}

	queryVec, embedded, err := r.embedPool(ctx, query, pool)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Warn("diversification degraded", "err", err)
		return truncate(pool, options.TopK), nil
	}

	return rank.Diversify(queryVec, embedded, options.Lambda, options.TopK), nil
}

// embedPool pairs every pool candidate with its embedding for the
// diversity comparisons.
func (r *Retriever) embedPool(ctx context.Context, query string, pool []core.Candidate) ([]float32, []rank.Embedded, error) {
	queryVec, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: query: %w", ErrEmbedding, err)
	}

	texts := make([]string, len(pool))
	for i, cand := range pool {
		texts[i] = cand.Content
	}
	vectors, err := r.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: candidate pool: %w", ErrEmbedding, err)
	}
	if len(vectors) != len(pool) {
		return nil, nil, fmt.Errorf("%w: got %d vectors for %d candidates", ErrEmbedding, len(vectors), len(pool))
	}

	embedded := make([]rank.Embedded, len(pool))
	for i := range pool {
		embedded[i] = rank.Embedded{Candidate: pool[i], Vector: vectors[i]}
	}
	return queryVec, embedded, nil
}
