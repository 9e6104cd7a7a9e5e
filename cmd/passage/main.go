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


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/passage"
	"github.com/poiesic/passage/ai"
	"github.com/poiesic/passage/ai/rerank"
	"github.com/poiesic/passage/config"
	"github.com/poiesic/passage/core"
	"github.com/poiesic/passage/ingest"
	"github.com/poiesic/passage/reindex"
	"github.com/poiesic/passage/retrieve"
)

func main() {
	app := &cli.App{
		Name:  "passage",
		Usage: "Hybrid retrieval over text passages",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "ai-host",
				Usage: "OpenAI-compatible service host URL",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name",
			},
			&cli.StringFlag{
				Name:  "generator-model",
				Usage: "Generator model name for rescoring fallback",
			},
			&cli.StringFlag{
				Name:  "rerank-url",
				Usage: "Cross-encoder rerank service URL",
			},
			&cli.StringFlag{
				Name:  "rerank-model",
				Usage: "Cross-encoder rerank model name",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "index",
				Usage:     "Chunk, embed and store documents",
				ArgsUsage: "FILE [FILE...]",
				Action:    indexCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "doc-type",
						Usage: "Document type recorded on every passage",
					},
					&cli.StringSliceFlag{
						Name:  "collection",
						Usage: "Collection name recorded on every passage (repeatable)",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Run a hybrid retrieval query",
				ArgsUsage: "QUERY...",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of results to return",
					},
					&cli.BoolFlag{
						Name:  "rescore",
						Usage: "Rerank the fused pool before returning results",
					},
					&cli.BoolFlag{
						Name:  "diversify",
						Usage: "Diversify the fused pool before returning results",
					},
					&cli.Float64Flag{
						Name:  "min-similarity",
						Usage: "Drop results whose best score falls below this threshold",
					},
					&cli.StringFlag{
						Name:  "doc-type",
						Usage: "Restrict results to a document type",
					},
					&cli.StringSliceFlag{
						Name:  "collection",
						Usage: "Restrict results to collections (repeatable)",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show corpus and index statistics",
				Action: statusCommand,
			},
			{
				Name:   "reindex",
				Usage:  "Regenerate stored embeddings with the current model",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of passages to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N passages",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete all passages belonging to a document",
				ArgsUsage: "DOC_ID",
				Action:    deleteCommand,
			},
			{
				Name:   "collections",
				Usage:  "List collection names present in the corpus",
				Action: collectionsCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig builds the effective configuration: defaults, then the
// YAML file, then environment variables, then command-line flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if v := c.String("db"); v != "" {
		cfg.Storage.Path = v
	}
	if v := c.String("ai-host"); v != "" {
		cfg.AI.Host = v
	}
	if v := c.String("embedding-model"); v != "" {
		cfg.AI.EmbeddingModel = v
	}
	if v := c.String("generator-model"); v != "" {
		cfg.AI.GeneratorModel = v
	}
	if v := c.String("rerank-url"); v != "" {
		cfg.Rerank.URL = v
	}
	if v := c.String("rerank-model"); v != "" {
		cfg.Rerank.Model = v
	}
	return cfg, nil
}

// openEngine opens the engine described by the configuration.
func openEngine(cfg *config.Config) (*passage.Engine, error) {
	aiConfig := ai.NewConfig(
		ai.WithHost(cfg.AI.Host),
		ai.WithEmbeddingModel(cfg.AI.EmbeddingModel),
		ai.WithGeneratorModel(cfg.AI.GeneratorModel),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	opts := []passage.EngineOption{
		passage.WithAIConfig(aiConfig),
		passage.WithChunkConfig(cfg.ChunkConfig()),
	}
	if cfg.Retrieval.DegradeOnDenseFailure {
		opts = append(opts, passage.WithDegradeOnDenseFailure())
	}
	if cfg.Rerank.URL != "" {
		scorer, err := rerank.NewClient(cfg.Rerank.URL, cfg.Rerank.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create rerank client: %w", err)
		}
		opts = append(opts, passage.WithPairScorer(scorer))
	}

	return passage.Open(cfg.Storage.Path, opts...)
}

func indexCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file argument is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	engine, err := openEngine(cfg)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	defer engine.Close()

	base := make(map[string]any)
	if v := c.String("doc-type"); v != "" {
		base[core.MetaDocType] = v
	}
	if names := c.StringSlice("collection"); len(names) > 0 {
		base[core.MetaCollections] = strings.Join(names, ",")
	}

	ctx := context.Background()
	docs := make([]ingest.Document, 0, c.NArg())
	for _, path := range c.Args().Slice() {
		text, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		metadata := core.CloneMetadata(base)
		if metadata == nil {
			metadata = make(map[string]any, 1)
		}
		metadata[core.MetaSourceFile] = path

		docs = append(docs, ingest.Document{
			ID:       strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			Text:     string(text),
			Metadata: metadata,
		})
	}

	if err := engine.Ingest(ctx, docs...); err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	stats, err := engine.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Indexed %d documents, corpus now holds %d passages\n", len(docs), stats.Passages)
	return nil
}

func searchCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("a query is required")
	}
	query := strings.Join(c.Args().Slice(), " ")

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	engine, err := openEngine(cfg)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	defer engine.Close()

	ctx := context.Background()
	if err := engine.ReindexLexical(ctx); err != nil {
		return err
	}

	opts := cfg.QueryOptions()
	if v := c.Int("top-k"); v > 0 {
		opts = append(opts, retrieve.WithTopK(v))
	}
	if c.Bool("rescore") {
		opts = append(opts, retrieve.WithRescoring())
	}
	if c.Bool("diversify") {
		opts = append(opts, retrieve.WithDiversification())
	}
	if v := c.Float64("min-similarity"); v > 0 {
		opts = append(opts, retrieve.WithMinSimilarity(v))
	}
	if v := c.String("doc-type"); v != "" {
		opts = append(opts, retrieve.WithDocTypes(v))
	}
	if names := c.StringSlice("collection"); len(names) > 0 {
		opts = append(opts, retrieve.WithCollections(names...))
	}

	results, err := engine.Retrieve(ctx, query, opts...)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	fmt.Printf("Found %d hits\n", len(results))
	for i, hit := range results {
		fmt.Printf("%d: '%s' (%s)[%s]\n", i, hit.Content, hit.Id, formatScores(hit))
	}
	return nil
}

// formatScores renders whichever score signals the pipeline produced
// for the candidate.
func formatScores(c core.Candidate) string {
	var parts []string
	if c.FusionScore != nil {
		parts = append(parts, fmt.Sprintf("fusion=%0.4f", *c.FusionScore))
	}
	if c.Rescore != nil {
		parts = append(parts, fmt.Sprintf("rescore=%0.3f", *c.Rescore))
	}
	if c.DiversificationRank != nil {
		parts = append(parts, fmt.Sprintf("rank=%d", *c.DiversificationRank))
	}
	if c.Similarity != nil {
		parts = append(parts, fmt.Sprintf("sim=%0.3f", *c.Similarity))
	}
	if c.LexicalScore != nil {
		parts = append(parts, fmt.Sprintf("bm25=%0.3f", *c.LexicalScore))
	}
	return strings.Join(parts, " ")
}

func statusCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	engine, err := openEngine(cfg)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	defer engine.Close()

	ctx := context.Background()
	if err := engine.ReindexLexical(ctx); err != nil {
		return err
	}

	stats, err := engine.Stats(ctx)
	if err != nil {
		return err
	}
	collections, err := engine.ListCollections(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Database: %s\n", cfg.Storage.Path)
	fmt.Printf("Passages: %d\n", stats.Passages)
	fmt.Printf("Indexed terms: %d\n", stats.IndexedTerms)
	fmt.Printf("Rescore mode: %s\n", stats.RescoreMode)
	fmt.Printf("Collections: %s\n", strings.Join(collections, ", "))
	return nil
}

func reindexCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	engine, err := openEngine(cfg)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	defer engine.Close()

	reindexConfig := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if reindexConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reindexConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reindexConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	fmt.Fprintf(os.Stderr, "Database: %s\n", cfg.Storage.Path)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", cfg.AI.Host)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(os.Stderr)

	if err := engine.Reembed(context.Background(), reindexConfig, os.Stderr); err != nil {
		return fmt.Errorf("reindexing failed: %w", err)
	}
	return nil
}

func deleteCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one document ID argument is required")
	}
	documentID := c.Args().First()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	engine, err := openEngine(cfg)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	defer engine.Close()

	removed, err := engine.DeleteDocument(context.Background(), documentID)
	if err != nil {
		return fmt.Errorf("deletion failed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Removed %d passages for document %s\n", removed, documentID)
	return nil
}

func collectionsCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	engine, err := openEngine(cfg)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	defer engine.Close()

	collections, err := engine.ListCollections(context.Background())
	if err != nil {
		return err
	}
	for _, name := range collections {
		fmt.Println(name)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
