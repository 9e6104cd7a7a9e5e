package rank

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/poiesic/passage/ai"
	"github.com/poiesic/passage/core"
)

// ScorerMode identifies which rescoring path a Rescorer uses.
// The path is selected once at construction, never per call.
type ScorerMode int

const (
	// ScorerUnavailable means no scoring model is configured and
	// Rescore is an identity pass-through.
	ScorerUnavailable ScorerMode = iota
	// ScorerCrossEncoder scores query/passage pairs with a dedicated
	// cross-encoder model.
	ScorerCrossEncoder
	// ScorerGenerationFallback derives ratings from a text-generation
	// model, one prompt per candidate.
	ScorerGenerationFallback
)

// String returns a human-readable mode name for logging.
func (m ScorerMode) String() string {
	switch m {
	case ScorerCrossEncoder:
		return "cross-encoder"
	case ScorerGenerationFallback:
		return "generation-fallback"
	default:
		return "unavailable"
	}
}

const (
	// neutralRating substitutes for unparseable ratings and failed
	// generation calls.
	neutralRating = 5
	// maxRating is the top of the generation rating scale.
	maxRating = 10
	// promptContentLimit caps passage content length in rating prompts.
	promptContentLimit = 500
)

// firstInteger extracts the leading run of digits anywhere in a reply.
var firstInteger = regexp.MustCompile(`\d+`)

const ratingPrompt = `Rate the relevance of this passage to the query on a scale of 0-10.
Only respond with a single number.

Query: %s

Passage: %s

Relevance score (0-10):`

// Rescorer re-orders candidate pools by pairwise relevance to a query.
type Rescorer struct {
	mode      ScorerMode
	scorer    ai.PairScorer
	generator ai.Generator
	logger    *slog.Logger
}

// RescorerOption configures a Rescorer.
type RescorerOption func(*Rescorer) error

// WithLogger sets a custom logger for the rescorer.
func WithLogger(logger *slog.Logger) RescorerOption {
	return func(r *Rescorer) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		r.logger = logger.With("component", "rescorer")
		return nil
	}
}

// NewRescorer builds a rescorer from whichever collaborators are
// available. A cross-encoder takes precedence over the generation
// fallback; with neither configured, Rescore passes candidates through
// unchanged. Both collaborators may be nil.
func NewRescorer(scorer ai.PairScorer, generator ai.Generator, opts ...RescorerOption) (*Rescorer, error) {
	r := &Rescorer{
		scorer:    scorer,
		generator: generator,
		logger:    slog.Default().With("component", "rescorer"),
	}

	switch {
	case scorer != nil:
		r.mode = ScorerCrossEncoder
	case generator != nil:
		r.mode = ScorerGenerationFallback
	default:
		r.mode = ScorerUnavailable
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	r.logger.Debug("rescorer configured", "mode", r.mode)

	return r, nil
}

// Mode reports which scoring path is active.
func (r *Rescorer) Mode() ScorerMode {
	return r.mode
}

// Rescore returns at most topK candidates ordered by pairwise relevance
// to the query, each annotated with a rescore value. In pass-through
// mode the first topK candidates come back unchanged with Rescore left
// unset. Scoring failures degrade rather than abort: a failed
// cross-encoder batch returns candidates unscored, and a failed
// generation call rates that one candidate neutral. The only returned
// error is context cancellation.
func (r *Rescorer) Rescore(ctx context.Context, query string, candidates []core.Candidate, topK int) ([]core.Candidate, error) {
	if len(candidates) == 0 {
		return []core.Candidate{}, nil
	}
	if topK < 0 {
		topK = 0
	}

	switch r.mode {
	case ScorerCrossEncoder:
		return r.rescoreWithCrossEncoder(ctx, query, candidates, topK)
	case ScorerGenerationFallback:
		return r.rescoreWithGeneration(ctx, query, candidates, topK)
	default:
		return takeFirst(candidates, topK), nil
	}
}

// rescoreWithCrossEncoder scores all pairs in one batch call.
func (r *Rescorer) rescoreWithCrossEncoder(ctx context.Context, query string, candidates []core.Candidate, topK int) ([]core.Candidate, error) {
	texts := make([]string, len(candidates))
	for i, cand := range candidates {
		texts[i] = cand.Content
	}

	scores, err := r.scorer.ScorePairs(ctx, query, texts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Warn("cross-encoder scoring failed, returning candidates unscored", "err", err)
		return takeFirst(candidates, topK), nil
	}
	if len(scores) != len(candidates) {
		r.logger.Warn("cross-encoder returned unexpected score count",
			"want", len(candidates), "got", len(scores))
		return takeFirst(candidates, topK), nil
	}

	return rankByScore(candidates, scores, topK), nil
}

// rescoreWithGeneration rates each candidate with a 0-10 prompt,
// normalized to [0, 1]. Individual call failures never abort the loop.
func (r *Rescorer) rescoreWithGeneration(ctx context.Context, query string, candidates []core.Candidate, topK int) ([]core.Candidate, error) {
	scores := make([]float64, len(candidates))
	for i, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rating := r.rateCandidate(ctx, query, cand.Content)
		scores[i] = float64(rating) / float64(maxRating)
	}

	return rankByScore(candidates, scores, topK), nil
}

// rateCandidate asks the generation model for a relevance rating.
// Call failures yield the neutral rating.
func (r *Rescorer) rateCandidate(ctx context.Context, query, content string) int {
	prompt := fmt.Sprintf(ratingPrompt, query, truncateRunes(content, promptContentLimit))

	response, err := r.generator.GenerateText(ctx, prompt)
	if err != nil {
		r.logger.Warn("rating generation failed, using neutral score", "err", err)
		return neutralRating
	}

	return parseRating(response)
}

// parseRating extracts the first integer found in a model reply and
// clamps it to the rating scale. Replies containing no digits rate
// neutral, and digit runs too large for int clamp to the maximum.
func parseRating(response string) int {
	match := firstInteger.FindString(response)
	if match == "" {
		return neutralRating
	}

	rating, err := strconv.Atoi(match)
	if err != nil {
		return maxRating
	}

	if rating > maxRating {
		return maxRating
	}
	if rating < 0 {
		return 0
	}
	return rating
}

// rankByScore clones candidates, sorts them by score descending with
// input order preserved on ties, truncates to topK, and annotates the
// Rescore field.
func rankByScore(candidates []core.Candidate, scores []float64, topK int) []core.Candidate {
	type scoredCandidate struct {
		cand  core.Candidate
		score float64
	}

	scored := make([]scoredCandidate, len(candidates))
	for i, cand := range candidates {
		scored[i] = scoredCandidate{cand: cand.Clone(), score: scores[i]}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if topK < len(scored) {
		scored = scored[:topK]
	}

	results := make([]core.Candidate, len(scored))
	for i := range scored {
		score := scored[i].score
		scored[i].cand.Rescore = &score
		results[i] = scored[i].cand
	}
	return results
}

// takeFirst clones the first topK candidates without reordering.
func takeFirst(candidates []core.Candidate, topK int) []core.Candidate {
	if topK > len(candidates) {
		topK = len(candidates)
	}

	results := make([]core.Candidate, 0, topK)
	for _, cand := range candidates[:topK] {
		results = append(results, cand.Clone())
	}
	return results
}

// truncateRunes caps s at n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
