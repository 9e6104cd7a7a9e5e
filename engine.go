// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package passage is a hybrid retrieval and ranking engine over short
// text passages. The Engine facade wires the persistent passage store,
// the AI provider, the lexical index and the retrieval pipeline into
// one handle; the underlying packages (lexical, rank, retrieve, ingest,
// reindex, storage) remain usable on their own.
package passage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/poiesic/passage/ai"
	"github.com/poiesic/passage/ai/openai"
	"github.com/poiesic/passage/core"
	"github.com/poiesic/passage/ingest"
	"github.com/poiesic/passage/lexical"
	"github.com/poiesic/passage/rank"
	"github.com/poiesic/passage/reindex"
	"github.com/poiesic/passage/retrieve"
	"github.com/poiesic/passage/storage"
	"github.com/poiesic/passage/storage/badger"
)

// Engine owns the storage backend, the AI collaborators, the lexical
// index and the retrieval pipeline.
type Engine struct {
	backend   *badger.Backend
	passages  storage.PassageRepository
	vectors   storage.VectorRepository
	provider  ai.AIProvider
	index     *lexical.Index
	retriever *retrieve.Retriever
	rescorer  *rank.Rescorer
	chunking  ingest.ChunkConfig
	logger    *slog.Logger

	pipelineOnce sync.Once
	pipeline     *ingest.Pipeline
	pipelineErr  error
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	aiConfig *ai.Config
	provider ai.AIProvider
	scorer   ai.PairScorer
	chunking ingest.ChunkConfig
	degrade  bool
}

// WithAIConfig sets the configuration for the OpenAI-compatible
// provider. Ignored when WithProvider supplies a provider directly.
func WithAIConfig(config *ai.Config) EngineOption {
	return func(o *engineOptions) {
		o.aiConfig = config
	}
}

// WithProvider supplies the AI provider directly instead of building
// one from an ai.Config. The engine takes ownership and closes it.
func WithProvider(provider ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithPairScorer attaches a cross-encoder scorer. Rescoring calls use
// it instead of the generation fallback.
func WithPairScorer(scorer ai.PairScorer) EngineOption {
	return func(o *engineOptions) {
		o.scorer = scorer
	}
}

// WithChunkConfig overrides the chunk sizes used by Ingest.
func WithChunkConfig(config ingest.ChunkConfig) EngineOption {
	return func(o *engineOptions) {
		o.chunking = config
	}
}

// WithDegradeOnDenseFailure makes Retrieve fall back to lexical-only
// results when dense retrieval fails, instead of returning the error.
func WithDegradeOnDenseFailure() EngineOption {
	return func(o *engineOptions) {
		o.degrade = true
	}
}

// Open opens an engine over a database directory, creating it if needed.
func Open(filePath string, opts ...EngineOption) (*Engine, error) {
	return newEngine(filePath, false, opts...)
}

// OpenInMemory opens an engine over an in-memory store. Nothing is
// persisted; intended for tests and experiments.
func OpenInMemory(opts ...EngineOption) (*Engine, error) {
	return newEngine("", true, opts...)
}

func newEngine(filePath string, inMemory bool, opts ...EngineOption) (*Engine, error) {
	options := &engineOptions{
		aiConfig: ai.DefaultConfig(),
		chunking: ingest.DefaultChunkConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	// Open backend
	backend, err := badger.OpenBackend(filePath, inMemory)
	if err != nil {
		return nil, err
	}

	passages := badger.NewPassageRepository(backend)
	vectors := badger.NewVectorRepository(backend)

	// Create AI provider with configured settings
	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	index, err := lexical.New()
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	rescorer, err := rank.NewRescorer(options.scorer, provider.Generator())
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	dense := &denseRetriever{
		embedder: provider.Embedder(),
		vectors:  vectors,
		passages: passages,
	}

	retrieverOpts := []retrieve.Option{
		retrieve.WithLexicalIndex(index),
		retrieve.WithRescorer(rescorer),
		retrieve.WithEmbedder(provider.Embedder()),
	}
	if options.degrade {
		retrieverOpts = append(retrieverOpts, retrieve.WithDegradeOnDenseFailure())
	}
	retriever, err := retrieve.NewRetriever(dense, retrieverOpts...)
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	return &Engine{
		backend:   backend,
		passages:  passages,
		vectors:   vectors,
		provider:  provider,
		index:     index,
		retriever: retriever,
		rescorer:  rescorer,
		chunking:  options.chunking,
		logger:    slog.Default().With("component", "engine"),
	}, nil
}

// Close releases the AI provider, repositories and storage backend.
func (e *Engine) Close() error {
	if e.pipeline != nil {
		e.pipeline.Wait()
		e.pipeline.Release()
	}

	// Close AI provider first
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}

	// Close repositories
	if err := e.vectors.Close(); err != nil {
		e.logger.Error("error closing vector repository", "err", err)
		return err
	}
	if err := e.passages.Close(); err != nil {
		e.logger.Error("error closing passage repository", "err", err)
		return err
	}

	// Close backend
	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Retrieve runs the hybrid retrieval pipeline for the query.
// Per-call options select the result width, the post-stage and the
// stage tunables; see the retrieve package for the defaults.
func (e *Engine) Retrieve(ctx context.Context, query string, opts ...retrieve.QueryOption) ([]core.Candidate, error) {
	return e.retriever.Retrieve(ctx, query, opts...)
}

// RetrieveWithMonitor runs the pipeline with per-stage callbacks.
func (e *Engine) RetrieveWithMonitor(ctx context.Context, query string, monitor retrieve.Monitor, opts ...retrieve.QueryOption) ([]core.Candidate, error) {
	return e.retriever.RetrieveWithMonitor(ctx, query, monitor, opts...)
}

// Ingest chunks, embeds and stores the documents, then rebuilds the
// lexical index over the full corpus. It blocks until all documents
// have been processed.
func (e *Engine) Ingest(ctx context.Context, docs ...ingest.Document) error {
	pipeline, err := e.ingestPipeline()
	if err != nil {
		return err
	}

	for _, doc := range docs {
		if err := pipeline.Ingest(ctx, doc); err != nil {
			return err
		}
	}
	pipeline.Wait()

	return e.ReindexLexical(ctx)
}

// NewIngestPipeline creates an ingestion pipeline over the engine's
// store and embedder. Callers that want asynchronous ingestion or
// custom pool sizes use this instead of Ingest; rebuilding the lexical
// index afterward is then their responsibility.
func (e *Engine) NewIngestPipeline(opts ...ingest.Option) (*ingest.Pipeline, error) {
	base := []ingest.Option{ingest.WithChunkConfig(e.chunking)}
	return ingest.NewPipeline(e.passages, e.provider.Embedder(), append(base, opts...)...)
}

// ingestPipeline lazily builds the shared pipeline behind Ingest.
func (e *Engine) ingestPipeline() (*ingest.Pipeline, error) {
	e.pipelineOnce.Do(func() {
		e.pipeline, e.pipelineErr = e.NewIngestPipeline()
	})
	return e.pipeline, e.pipelineErr
}

// IndexCorpus builds the lexical index over the given corpus snapshot,
// replacing any previous index. Callers that keep passages outside the
// engine's store use this to search an arbitrary snapshot.
func (e *Engine) IndexCorpus(corpus []core.Document) {
	e.index.Build(corpus)
}

// ReindexLexical rebuilds the lexical index from the stored passages,
// so lexical and dense retrieval answer over the same corpus.
func (e *Engine) ReindexLexical(ctx context.Context) error {
	var corpus []core.Document
	err := e.passages.ForEachPassage(ctx, func(passage *core.Passage) error {
		corpus = append(corpus, passage.Document())
		return nil
	})
	if err != nil {
		return fmt.Errorf("loading corpus for lexical index: %w", err)
	}

	e.index.Build(corpus)
	e.logger.Debug("lexical index rebuilt", "documents", len(corpus))
	return nil
}

// Reembed regenerates the stored vectors with the current embedding
// model and rebuilds the lexical index. Progress is written to the
// given writer.
func (e *Engine) Reembed(ctx context.Context, config *reindex.Config, progress io.Writer) error {
	reembedder := reindex.NewReembedder(e.passages, e.vectors, e.provider.Embedder(), config, progress)
	if err := reembedder.Run(ctx); err != nil {
		return err
	}
	return e.ReindexLexical(ctx)
}

// DeleteDocument removes every passage belonging to the document and
// rebuilds the lexical index. Returns the number of passages removed.
func (e *Engine) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	stored, err := e.passages.GetPassagesByDocument(ctx, documentID)
	if err != nil {
		return 0, err
	}
	if len(stored) == 0 {
		return 0, nil
	}

	ids := make([]string, len(stored))
	for i, passage := range stored {
		ids[i] = passage.Id
	}
	if err := e.passages.DeletePassages(ctx, ids...); err != nil {
		return 0, err
	}

	if err := e.ReindexLexical(ctx); err != nil {
		return len(ids), err
	}
	return len(ids), nil
}

// ListCollections returns the distinct collection names across all
// stored passages, sorted. Collections are stored as a comma-separated
// metadata value.
func (e *Engine) ListCollections(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	err := e.passages.ForEachPassage(ctx, func(passage *core.Passage) error {
		raw, _ := passage.Metadata[core.MetaCollections].(string)
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				seen[part] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Stats reports the size of the stored corpus and the current lexical
// index.
func (e *Engine) Stats(ctx context.Context) (EngineStats, error) {
	count, err := e.passages.CountPassages(ctx)
	if err != nil {
		return EngineStats{}, err
	}
	return EngineStats{
		Passages:     count,
		IndexedDocs:  e.index.DocCount(),
		IndexedTerms: e.index.TermCount(),
		RescoreMode:  e.rescorer.Mode(),
	}, nil
}

// EngineStats summarizes the engine's corpus and configuration state.
type EngineStats struct {
	Passages     int
	IndexedDocs  int
	IndexedTerms int
	RescoreMode  rank.ScorerMode
}

// PassageRepository exposes the underlying passage store.
func (e *Engine) PassageRepository() storage.PassageRepository {
	return e.passages
}

// VectorRepository exposes the underlying vector store.
func (e *Engine) VectorRepository() storage.VectorRepository {
	return e.vectors
}

// LexicalIndex exposes the engine's lexical index handle.
func (e *Engine) LexicalIndex() *lexical.Index {
	return e.index
}
