package rank

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/passage/ai/mock"
	"github.com/poiesic/passage/core"
)

func rescoreCandidates(ids ...string) []core.Candidate {
	candidates := make([]core.Candidate, 0, len(ids))
	for _, id := range ids {
		candidates = append(candidates, core.Candidate{Id: id, Content: "passage " + id})
	}
	return candidates
}

func TestNewRescorer_ModeSelection(t *testing.T) {
	t.Run("neither collaborator", func(t *testing.T) {
		rescorer, err := NewRescorer(nil, nil)
		require.NoError(t, err)
		assert.Equal(t, ScorerUnavailable, rescorer.Mode())
	})

	t.Run("cross-encoder only", func(t *testing.T) {
		rescorer, err := NewRescorer(mock.NewMockPairScorer(), nil)
		require.NoError(t, err)
		assert.Equal(t, ScorerCrossEncoder, rescorer.Mode())
	})

	t.Run("generator only", func(t *testing.T) {
		rescorer, err := NewRescorer(nil, mock.NewMockGenerator())
		require.NoError(t, err)
		assert.Equal(t, ScorerGenerationFallback, rescorer.Mode())
	})

	t.Run("cross-encoder takes precedence", func(t *testing.T) {
		rescorer, err := NewRescorer(mock.NewMockPairScorer(), mock.NewMockGenerator())
		require.NoError(t, err)
		assert.Equal(t, ScorerCrossEncoder, rescorer.Mode())
	})

	t.Run("nil logger option rejected", func(t *testing.T) {
		_, err := NewRescorer(nil, nil, WithLogger(nil))
		assert.Error(t, err)
	})
}

func TestRescore_CrossEncoder(t *testing.T) {
	scorer := mock.NewMockPairScorer()
	scorer.ScorePairsFunc = func(ctx context.Context, query string, texts []string) ([]float64, error) {
		assert.Equal(t, "test query", query)
		require.Len(t, texts, 3)
		return []float64{0.2, 0.9, 0.5}, nil
	}

	rescorer, err := NewRescorer(scorer, nil)
	require.NoError(t, err)

	results, err := rescorer.Rescore(context.Background(), "test query", rescoreCandidates("a", "b", "c"), 3)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "b", results[0].Id)
	assert.Equal(t, "c", results[1].Id)
	assert.Equal(t, "a", results[2].Id)

	// Raw model scores are annotated as-is
	assert.Equal(t, 0.9, *results[0].Rescore)
	assert.Equal(t, 0.5, *results[1].Rescore)
	assert.Equal(t, 0.2, *results[2].Rescore)
}

func TestRescore_CrossEncoderTruncatesToTopK(t *testing.T) {
	scorer := mock.NewMockPairScorer()
	scorer.ScorePairsFunc = func(ctx context.Context, query string, texts []string) ([]float64, error) {
		return []float64{0.1, 0.4, 0.3, 0.2}, nil
	}

	rescorer, err := NewRescorer(scorer, nil)
	require.NoError(t, err)

	results, err := rescorer.Rescore(context.Background(), "q", rescoreCandidates("a", "b", "c", "d"), 2)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].Id)
	assert.Equal(t, "c", results[1].Id)
}

func TestRescore_CrossEncoderFailureDegrades(t *testing.T) {
	scorer := mock.NewMockPairScorer()
	scorer.ScorePairsFunc = func(ctx context.Context, query string, texts []string) ([]float64, error) {
		return nil, errors.New("scoring service down")
	}

	rescorer, err := NewRescorer(scorer, nil)
	require.NoError(t, err)

	results, err := rescorer.Rescore(context.Background(), "q", rescoreCandidates("a", "b", "c"), 2)
	require.NoError(t, err)

	// Degrades to the first topK candidates, unscored
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Id)
	assert.Equal(t, "b", results[1].Id)
	assert.Nil(t, results[0].Rescore)
	assert.Nil(t, results[1].Rescore)
}

func TestRescore_CrossEncoderScoreCountMismatchDegrades(t *testing.T) {
	scorer := mock.NewMockPairScorer()
	scorer.ScorePairsFunc = func(ctx context.Context, query string, texts []string) ([]float64, error) {
		return []float64{0.5}, nil
	}

	rescorer, err := NewRescorer(scorer, nil)
	require.NoError(t, err)

	results, err := rescorer.Rescore(context.Background(), "q", rescoreCandidates("a", "b"), 2)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Nil(t, results[0].Rescore)
}

func TestRescore_GenerationFallback(t *testing.T) {
	generator := mock.NewMockGenerator()
	generator.GenerateTextFunc = func(ctx context.Context, prompt string) (string, error) {
		assert.Contains(t, prompt, "Rate the relevance of this passage")
		assert.Contains(t, prompt, "Query: test query")

		switch {
		case strings.Contains(prompt, "passage a"):
			return "3", nil
		case strings.Contains(prompt, "passage b"):
			return "8", nil
		default:
			return "5", nil
		}
	}

	rescorer, err := NewRescorer(nil, generator)
	require.NoError(t, err)

	results, err := rescorer.Rescore(context.Background(), "test query", rescoreCandidates("a", "b", "c"), 3)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "b", results[0].Id)
	assert.Equal(t, "c", results[1].Id)
	assert.Equal(t, "a", results[2].Id)

	// Ratings are normalized from the 0-10 scale to [0, 1]
	assert.Equal(t, 0.8, *results[0].Rescore)
	assert.Equal(t, 0.5, *results[1].Rescore)
	assert.Equal(t, 0.3, *results[2].Rescore)
}

func TestRescore_FallbackParsesFirstInteger(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     float64
	}{
		{"bare number", "7", 0.7},
		{"number in prose", "I would rate this passage 7 out of 10", 0.7},
		{"fraction notation", "Rating: 9/10.", 0.9},
		{"no digits", "highly relevant passage!", 0.5},
		{"empty response", "", 0.5},
		{"above scale clamps", "15", 1.0},
		{"huge digit run clamps", "99999999999999999999999999", 1.0},
		{"zero", "0", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator := mock.NewMockGenerator()
			generator.GenerateTextFunc = func(ctx context.Context, prompt string) (string, error) {
				return tt.response, nil
			}

			rescorer, err := NewRescorer(nil, generator)
			require.NoError(t, err)

			results, err := rescorer.Rescore(context.Background(), "q", rescoreCandidates("a"), 1)
			require.NoError(t, err)
			require.Len(t, results, 1)
			require.NotNil(t, results[0].Rescore)
			assert.Equal(t, tt.want, *results[0].Rescore)
		})
	}
}

func TestRescore_FallbackCallErrorRatesNeutral(t *testing.T) {
	generator := mock.NewMockGenerator()
	generator.GenerateTextFunc = func(ctx context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "passage b") {
			return "", errors.New("model overloaded")
		}
		return "9", nil
	}

	rescorer, err := NewRescorer(nil, generator)
	require.NoError(t, err)

	results, err := rescorer.Rescore(context.Background(), "q", rescoreCandidates("a", "b"), 2)
	require.NoError(t, err)

	// The failed candidate gets the neutral score, the rest are unaffected
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Id)
	assert.Equal(t, 0.9, *results[0].Rescore)
	assert.Equal(t, "b", results[1].Id)
	assert.Equal(t, 0.5, *results[1].Rescore)
}

func TestRescore_FallbackTruncatesPromptContent(t *testing.T) {
	longContent := strings.Repeat("x", 600)

	var gotPrompt string
	generator := mock.NewMockGenerator()
	generator.GenerateTextFunc = func(ctx context.Context, prompt string) (string, error) {
		gotPrompt = prompt
		return "5", nil
	}

	rescorer, err := NewRescorer(nil, generator)
	require.NoError(t, err)

	candidates := []core.Candidate{{Id: "long", Content: longContent}}
	_, err = rescorer.Rescore(context.Background(), "q", candidates, 1)
	require.NoError(t, err)

	assert.Contains(t, gotPrompt, strings.Repeat("x", 500))
	assert.NotContains(t, gotPrompt, strings.Repeat("x", 501))
}

func TestRescore_PassThrough(t *testing.T) {
	rescorer, err := NewRescorer(nil, nil)
	require.NoError(t, err)

	results, err := rescorer.Rescore(context.Background(), "q", rescoreCandidates("a", "b", "c"), 2)
	require.NoError(t, err)

	// Identity: first topK in input order, no rescore annotation
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Id)
	assert.Equal(t, "b", results[1].Id)
	assert.Nil(t, results[0].Rescore)
	assert.Nil(t, results[1].Rescore)
}

func TestRescore_EmptyCandidates(t *testing.T) {
	scorer := mock.NewMockPairScorer()
	rescorer, err := NewRescorer(scorer, nil)
	require.NoError(t, err)

	results, err := rescorer.Rescore(context.Background(), "q", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, scorer.CallCount())
}

func TestRescore_ContextCancellation(t *testing.T) {
	t.Run("generation fallback stops", func(t *testing.T) {
		generator := mock.NewMockGenerator()

		rescorer, err := NewRescorer(nil, generator)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = rescorer.Rescore(ctx, "q", rescoreCandidates("a", "b"), 2)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, generator.CallCount())
	})

	t.Run("cross-encoder cancellation propagates", func(t *testing.T) {
		scorer := mock.NewMockPairScorer()
		scorer.ScorePairsFunc = func(ctx context.Context, query string, texts []string) ([]float64, error) {
			return nil, ctx.Err()
		}

		rescorer, err := NewRescorer(scorer, nil)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = rescorer.Rescore(ctx, "q", rescoreCandidates("a"), 1)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRescore_DoesNotMutateInputs(t *testing.T) {
	scorer := mock.NewMockPairScorer()
	scorer.ScorePairsFunc = func(ctx context.Context, query string, texts []string) ([]float64, error) {
		return []float64{0.9}, nil
	}

	rescorer, err := NewRescorer(scorer, nil)
	require.NoError(t, err)

	input := rescoreCandidates("a")
	results, err := rescorer.Rescore(context.Background(), "q", input, 1)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.NotNil(t, results[0].Rescore)
	assert.Nil(t, input[0].Rescore)
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     int
	}{
		{"single digit", "7", 7},
		{"leading whitespace", "  4", 4},
		{"first of several numbers", "8 or maybe 9", 8},
		{"embedded in prose", "The score is 6.", 6},
		{"no digits neutral", "very relevant", 5},
		{"empty neutral", "", 5},
		{"clamped high", "42", 10},
		{"zero stays zero", "0/10", 0},
		{"overflowing digits clamp", "12345678901234567890123", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseRating(tt.response))
		})
	}
}
