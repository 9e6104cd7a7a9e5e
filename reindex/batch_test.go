package reindex

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/poiesic/passage/ai/mock"
	"github.com/poiesic/passage/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchProcessor_Process(t *testing.T) {
	repo, vectors := setupTestRepositories(t)
	addTestPassages(t, repo, 3)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		embeddings := make([][]float32, len(texts))
		for i := range texts {
			embeddings[i] = []float32{3.0, 4.0} // Magnitude 5, easy to verify normalization
		}
		return embeddings, nil
	}

	processor := NewBatchProcessor(vectors, embedder, 3, 10*time.Millisecond)

	ctx := context.Background()
	var batch []*core.Passage
	require.NoError(t, repo.ForEachPassage(ctx, func(p *core.Passage) error {
		batch = append(batch, p)
		return nil
	}))
	require.Len(t, batch, 3)

	require.NoError(t, processor.Process(ctx, batch))

	// Every stored vector is the normalized embedding
	for _, passage := range batch {
		vector, err := vectors.GetVector(ctx, passage.Id)
		require.NoError(t, err)
		require.Len(t, vector, 2)
		assert.InDelta(t, 0.6, vector[0], 1e-6)
		assert.InDelta(t, 0.8, vector[1], 1e-6)

		var magnitude float64
		for _, v := range vector {
			magnitude += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(magnitude), 1e-6)
	}
}

func TestBatchProcessor_EmptyBatch(t *testing.T) {
	_, vectors := setupTestRepositories(t)
	embedder := mock.NewMockEmbedder()
	processor := NewBatchProcessor(vectors, embedder, 3, 10*time.Millisecond)

	require.NoError(t, processor.Process(context.Background(), nil))
	assert.Zero(t, embedder.CallCount(), "no embedding call for an empty batch")
}

func TestBatchProcessor_RetriesThenSucceeds(t *testing.T) {
	repo, vectors := setupTestRepositories(t)
	addTestPassages(t, repo, 1)

	attempts := 0
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("transient failure")
		}
		return [][]float32{{1.0, 0.0}}, nil
	}

	processor := NewBatchProcessor(vectors, embedder, 5, time.Millisecond)

	ctx := context.Background()
	var batch []*core.Passage
	require.NoError(t, repo.ForEachPassage(ctx, func(p *core.Passage) error {
		batch = append(batch, p)
		return nil
	}))

	require.NoError(t, processor.Process(ctx, batch))
	assert.Equal(t, 3, attempts)
}

func TestBatchProcessor_ExhaustedRetries(t *testing.T) {
	repo, vectors := setupTestRepositories(t)
	addTestPassages(t, repo, 1)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("service down")
	}

	processor := NewBatchProcessor(vectors, embedder, 2, time.Millisecond)

	ctx := context.Background()
	var batch []*core.Passage
	require.NoError(t, repo.ForEachPassage(ctx, func(p *core.Passage) error {
		batch = append(batch, p)
		return nil
	}))

	err := processor.Process(ctx, batch)
	require.Error(t, err)
	assert.ErrorContains(t, err, "after 2 attempts")
}

func TestBatchProcessor_CountMismatch(t *testing.T) {
	repo, vectors := setupTestRepositories(t)
	addTestPassages(t, repo, 2)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1.0}}, nil // One vector for two passages
	}

	processor := NewBatchProcessor(vectors, embedder, 1, time.Millisecond)

	ctx := context.Background()
	var batch []*core.Passage
	require.NoError(t, repo.ForEachPassage(ctx, func(p *core.Passage) error {
		batch = append(batch, p)
		return nil
	}))

	err := processor.Process(ctx, batch)
	require.Error(t, err)
	assert.ErrorContains(t, err, "mismatch")
}
