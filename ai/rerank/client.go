package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/poiesic/passage/ai"
)

// DefaultTimeout bounds a single scoring request when no custom
// http.Client is supplied.
const DefaultTimeout = 30 * time.Second

// scoreRequest is the request payload for the rerank endpoint.
type scoreRequest struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
	Model      string   `json:"model,omitempty"`
	TopK       int      `json:"top_k,omitempty"`
}

// scoreResult is a single result in the rerank response.
type scoreResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// scoreResponse is the response from the rerank endpoint.
type scoreResponse struct {
	Results []scoreResult `json:"results"`
	Model   string        `json:"model"`
}

// Client implements ai.PairScorer via HTTP calls to a cross-encoder
// scoring service exposing a /v1/rerank endpoint.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client) error

// WithHTTPClient replaces the default HTTP client. Useful for tests
// and for callers that manage their own transport settings.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) error {
		if c == nil {
			return fmt.Errorf("http client cannot be nil")
		}
		cl.client = c
		return nil
	}
}

// WithTimeout sets the request timeout on the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(cl *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive")
		}
		cl.client.Timeout = d
		return nil
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(cl *Client) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		cl.logger = logger.With("component", "rerank-client")
		return nil
	}
}

// NewClient creates a cross-encoder scoring client.
// baseURL is the scoring service URL (e.g. http://localhost:8001) and
// model is the cross-encoder model name (e.g. bge-reranker-v2-m3).
//
// Returns ai.PairScorer interface to enforce abstraction.
func NewClient(baseURL, model string, opts ...ClientOption) (ai.PairScorer, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("rerank client: baseURL is required")
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: DefaultTimeout},
		logger:  slog.Default().With("component", "rerank-client"),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// ScorePair scores a single query/text pair.
func (c *Client) ScorePair(ctx context.Context, query, text string) (float64, error) {
	scores, err := c.ScorePairs(ctx, query, []string{text})
	if err != nil {
		return 0, err
	}
	return scores[0], nil
}

// ScorePairs scores every text against the query in one request.
// The returned slice is index-aligned with texts.
func (c *Client) ScorePairs(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return []float64{}, nil
	}

	c.logger.Debug("scoring candidate pairs",
		"query_length", len(query),
		"candidate_count", len(texts),
		"model", c.model)

	reqBody := scoreRequest{
		Query:      query,
		Candidates: texts,
		Model:      c.model,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal request: %w", ai.ErrPairScoring, err)
	}

	url := fmt.Sprintf("%s/v1/rerank", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", ai.ErrPairScoring, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("rerank request failed", "err", err)
		return nil, fmt.Errorf("%w: %w", ai.ErrPairScoring, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Error("rerank endpoint returned error status",
			"status_code", resp.StatusCode,
			"body_length", len(body))
		return nil, fmt.Errorf("%w: endpoint returned %d: %s", ai.ErrPairScoring, resp.StatusCode, string(body))
	}

	var scoreResp scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&scoreResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %w", ai.ErrPairScoring, err)
	}

	if len(scoreResp.Results) != len(texts) {
		return nil, fmt.Errorf("%w: got %d results for %d candidates", ai.ErrPairScoring, len(scoreResp.Results), len(texts))
	}

	// Map results back by index; the service may return them in score order
	scores := make([]float64, len(texts))
	for _, r := range scoreResp.Results {
		if r.Index < 0 || r.Index >= len(texts) {
			return nil, fmt.Errorf("%w: invalid result index %d for %d candidates", ai.ErrPairScoring, r.Index, len(texts))
		}
		scores[r.Index] = r.Score
	}

	c.logger.Debug("scored candidate pairs", "result_count", len(scores))

	return scores, nil
}

// ModelName returns the model identifier for logging and diagnostics.
func (c *Client) ModelName() string {
	return c.model
}
