// Package config loads configuration for the passage binaries from
// YAML files with environment-variable overrides (PASSAGE_* prefix).
// Library consumers configure components directly through their
// functional options; this package exists for the CLI surface.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/poiesic/passage/ingest"
	"github.com/poiesic/passage/lexical"
	"github.com/poiesic/passage/rank"
	"github.com/poiesic/passage/retrieve"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	AI        AIConfig        `yaml:"ai"`
	Storage   StorageConfig   `yaml:"storage"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AIConfig holds the OpenAI-compatible service endpoints and models.
type AIConfig struct {
	Host           string `yaml:"host"`
	EmbeddingModel string `yaml:"embeddingModel"`
	GeneratorModel string `yaml:"generatorModel"`
}

// StorageConfig holds the database location.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// RetrievalConfig holds the per-stage retrieval tunables.
type RetrievalConfig struct {
	TopK                  int     `yaml:"topK"`
	Alpha                 float64 `yaml:"alpha"`
	RRFK                  int     `yaml:"rrfK"`
	K1                    float64 `yaml:"k1"`
	B                     float64 `yaml:"b"`
	Lambda                float64 `yaml:"lambda"`
	MinSimilarity         float64 `yaml:"minSimilarity"`
	DegradeOnDenseFailure bool    `yaml:"degradeOnDenseFailure"`
}

// ChunkingConfig holds the document chunk sizes, in characters.
type ChunkingConfig struct {
	TargetSize int `yaml:"targetSize"`
	Overlap    int `yaml:"overlap"`
	MinSize    int `yaml:"minSize"`
}

// RerankConfig holds the optional cross-encoder rerank service.
// An empty URL leaves rescoring on the generation fallback.
type RerankConfig struct {
	URL   string `yaml:"url"`
	Model string `yaml:"model"`
}

// LoggingConfig controls the structured logging level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads a YAML config file (if provided) and applies
// environment-variable overrides. It returns a Config populated with
// defaults for any missing values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns a Config with defaults for local development.
// Stage tunables mirror the library defaults.
func Default() *Config {
	chunking := ingest.DefaultChunkConfig()
	return &Config{
		AI: AIConfig{
			Host:           "http://localhost:11434/v1",
			EmbeddingModel: "nomic-embed-text",
			GeneratorModel: "mistral:7b",
		},
		Storage: StorageConfig{
			Path: "./passage_db",
		},
		Retrieval: RetrievalConfig{
			TopK:                  retrieve.DefaultTopK,
			Alpha:                 rank.DefaultAlpha,
			RRFK:                  rank.DefaultRRFK,
			K1:                    lexical.DefaultK1,
			B:                     lexical.DefaultB,
			Lambda:                rank.DefaultLambda,
			MinSimilarity:         0,
			DegradeOnDenseFailure: true,
		},
		Chunking: ChunkingConfig{
			TargetSize: chunking.TargetSize,
			Overlap:    chunking.Overlap,
			MinSize:    chunking.MinSize,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// applyEnvOverrides reads PASSAGE_* environment variables and overrides
// the corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PASSAGE_AI_HOST"); v != "" {
		cfg.AI.Host = v
	}
	if v := os.Getenv("PASSAGE_EMBEDDING_MODEL"); v != "" {
		cfg.AI.EmbeddingModel = v
	}
	if v := os.Getenv("PASSAGE_GENERATOR_MODEL"); v != "" {
		cfg.AI.GeneratorModel = v
	}
	if v := os.Getenv("PASSAGE_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("PASSAGE_TOP_K"); v != "" {
		if topK, err := strconv.Atoi(v); err == nil {
			cfg.Retrieval.TopK = topK
		}
	}
	if v := os.Getenv("PASSAGE_ALPHA"); v != "" {
		if alpha, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Retrieval.Alpha = alpha
		}
	}
	if v := os.Getenv("PASSAGE_MIN_SIMILARITY"); v != "" {
		if threshold, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Retrieval.MinSimilarity = threshold
		}
	}
	if v := os.Getenv("PASSAGE_RERANK_URL"); v != "" {
		cfg.Rerank.URL = v
	}
	if v := os.Getenv("PASSAGE_RERANK_MODEL"); v != "" {
		cfg.Rerank.Model = v
	}
	if v := os.Getenv("PASSAGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// QueryOptions converts the retrieval tunables into per-call options
// for the retriever.
func (c *Config) QueryOptions() []retrieve.QueryOption {
	opts := []retrieve.QueryOption{
		retrieve.WithTopK(c.Retrieval.TopK),
		retrieve.WithAlpha(c.Retrieval.Alpha),
		retrieve.WithRRFK(c.Retrieval.RRFK),
		retrieve.WithLambda(c.Retrieval.Lambda),
		retrieve.WithLexicalParams(lexical.Params{K1: c.Retrieval.K1, B: c.Retrieval.B}),
	}
	if c.Retrieval.MinSimilarity > 0 {
		opts = append(opts, retrieve.WithMinSimilarity(c.Retrieval.MinSimilarity))
	}
	return opts
}

// ChunkConfig converts the chunking section into the ingest package's
// configuration type.
func (c *Config) ChunkConfig() ingest.ChunkConfig {
	return ingest.ChunkConfig{
		TargetSize: c.Chunking.TargetSize,
		Overlap:    c.Chunking.Overlap,
		MinSize:    c.Chunking.MinSize,
	}
}
