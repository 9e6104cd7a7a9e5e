package mock

import (
	"context"
	"hash/fnv"
)

// MockPairScorer is a test double for ai.PairScorer.
// It allows custom behavior injection via function fields.
type MockPairScorer struct {
	// ScorePairFunc is called by ScorePair if set.
	// If nil, uses default deterministic behavior.
	ScorePairFunc func(ctx context.Context, query, text string) (float64, error)

	// ScorePairsFunc is called by ScorePairs if set.
	// If nil, uses default deterministic behavior.
	ScorePairsFunc func(ctx context.Context, query string, texts []string) ([]float64, error)

	callCount int
}

// NewMockPairScorer creates a mock pair scorer with default deterministic behavior.
// Note: Returns concrete type to allow test assertions on call counts.
func NewMockPairScorer() *MockPairScorer {
	return &MockPairScorer{}
}

// ScorePair returns a deterministic score based on the query and text hashes.
func (m *MockPairScorer) ScorePair(ctx context.Context, query, text string) (float64, error) {
	m.callCount++

	if m.ScorePairFunc != nil {
		return m.ScorePairFunc(ctx, query, text)
	}

	return deterministicPairScore(query, text), nil
}

// ScorePairs returns deterministic scores for each text against the query.
func (m *MockPairScorer) ScorePairs(ctx context.Context, query string, texts []string) ([]float64, error) {
	m.callCount++

	if m.ScorePairsFunc != nil {
		return m.ScorePairsFunc(ctx, query, texts)
	}

	scores := make([]float64, len(texts))
	for i, text := range texts {
		scores[i] = deterministicPairScore(query, text)
	}
	return scores, nil
}

// CallCount returns the number of times any method was called.
func (m *MockPairScorer) CallCount() int {
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockPairScorer) Reset() {
	m.callCount = 0
	m.ScorePairFunc = nil
	m.ScorePairsFunc = nil
}

// deterministicPairScore derives a stable score in [0, 1) from the pair.
// The same query and text always produce the same score.
func deterministicPairScore(query, text string) float64 {
	h := fnv.New32a()
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return float64(h.Sum32()%1000) / 1000.0
}
