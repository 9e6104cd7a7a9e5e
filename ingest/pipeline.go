package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/passage/ai"
	"github.com/poiesic/passage/core"
	"github.com/poiesic/passage/storage"
)

// Document is one source document submitted for ingestion.
type Document struct {
	ID       string         // Stable document identifier
	Text     string         // Full document text
	Metadata map[string]any // Base metadata copied onto every passage
}

// Pipeline orchestrates the ingestion of source documents.
// Chunking and embedding+storage run on separate worker pools.
type Pipeline struct {
	passages  storage.PassageRepository
	embedder  ai.Embedder
	chunker   *Chunker
	chunkPool *ants.Pool
	storePool *ants.Pool
	monitor   Monitor
	wg        sync.WaitGroup
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pools
		if p.chunkPool != nil {
			p.chunkPool.Release()
		}
		if p.storePool != nil {
			p.storePool.Release()
		}

		// Create new pools
		chunkPool, err := ants.NewPool(size)
		if err != nil {
			return err
		}

		storePool, err := ants.NewPool(size)
		if err != nil {
			chunkPool.Release()
			return err
		}

		p.chunkPool = chunkPool
		p.storePool = storePool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithMonitor sets a monitor for async processing hooks.
// Default is a no-op monitor.
func WithMonitor(monitor Monitor) Option {
	return func(p *Pipeline) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		p.monitor = monitor
		return nil
	}
}

// WithChunkConfig overrides the default chunk sizes.
func WithChunkConfig(config ChunkConfig) Option {
	return func(p *Pipeline) error {
		chunker, err := NewChunker(config)
		if err != nil {
			return err
		}
		p.chunker = chunker
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(passages storage.PassageRepository, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if passages == nil {
		return nil, ErrPassageRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	chunkPool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	storePool, err := ants.NewPool(poolSize)
	if err != nil {
		chunkPool.Release()
		return nil, err
	}

	chunker, err := NewChunker(DefaultChunkConfig())
	if err != nil {
		chunkPool.Release()
		storePool.Release()
		return nil, err
	}

	p := &Pipeline{
		passages:  passages,
		embedder:  embedder,
		chunker:   chunker,
		chunkPool: chunkPool,
		storePool: storePool,
		monitor:   &noopMonitor{},
		logger:    slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Ingest queues a document for chunking, embedding, and storage.
// It returns once the work is queued; failures during processing are
// reported to the monitor and logged, not returned. Use Wait to block
// until all queued documents have been processed.
func (p *Pipeline) Ingest(ctx context.Context, doc Document) error {
	if doc.ID == "" || doc.Text == "" {
		return ErrEmptyDocument
	}
	if err := core.ValidateMetadata(doc.Metadata); err != nil {
		return err
	}

	p.wg.Add(1)
	err := p.chunkPool.Submit(func() {
		p.chunkDocument(doc)
	})
	if err != nil {
		p.wg.Done()
		return err
	}
	return nil
}

// chunkDocument runs on the chunk pool and hands its output to the
// store pool.
func (p *Pipeline) chunkDocument(doc Document) {
	defer p.wg.Done()

	passages := p.chunker.Chunk(doc.ID, doc.Text, doc.Metadata)
	p.monitor.ChunksCreated(doc.ID, len(passages))
	if len(passages) == 0 {
		p.logger.Warn("document produced no passages", "document", doc.ID)
		return
	}
	p.logger.Debug("document chunked", "document", doc.ID, "passages", len(passages))

	p.wg.Add(1)
	err := p.storePool.Submit(func() {
		defer p.wg.Done()
		if err := p.storePassages(context.Background(), doc.ID, passages); err != nil {
			p.logger.Error("error storing passages", "document", doc.ID, "err", err)
			p.monitor.Error(doc.ID, err)
			return
		}
		p.monitor.PassagesStored(doc.ID, len(passages))
	})
	if err != nil {
		p.wg.Done()
		p.logger.Error("error submitting store work", "document", doc.ID, "err", err)
		p.monitor.Error(doc.ID, err)
	}
}

// storePassages embeds the batch and persists passages with their
// vectors attached.
func (p *Pipeline) storePassages(ctx context.Context, documentID string, passages []*core.Passage) error {
	texts := make([]string, len(passages))
	for i, passage := range passages {
		texts[i] = passage.Content
	}

	embeddings, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding passages: %w", err)
	}
	if len(embeddings) != len(passages) {
		return fmt.Errorf("embedding result mismatch. expected %d, received %d", len(passages), len(embeddings))
	}

	for i := range embeddings {
		passages[i].Vector = embeddings[i]
	}

	if _, err := p.passages.AddPassages(ctx, passages...); err != nil {
		return fmt.Errorf("storing passages for document %s: %w", documentID, err)
	}
	return nil
}

// Wait blocks until all queued documents have been processed.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.chunkPool != nil {
		p.chunkPool.Release()
	}
	if p.storePool != nil {
		p.storePool.Release()
	}
}
