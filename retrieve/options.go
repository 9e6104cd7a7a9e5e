package retrieve

import (
	"fmt"

	"github.com/poiesic/passage/core"
	"github.com/poiesic/passage/lexical"
	"github.com/poiesic/passage/rank"
)

// DefaultTopK is the result width used when a call does not override it.
const DefaultTopK = 5

// Mode selects the post-stage applied to the merged candidate pool.
// Rescoring and diversification are chosen per call, never composed.
type Mode int

const (
	// ModeNone applies no post-stage; the fused order stands.
	ModeNone Mode = iota
	// ModeRescore re-orders the pool by pairwise relevance to the query.
	ModeRescore
	// ModeDiversify re-selects the pool for relevance and novelty.
	ModeDiversify
)

// String returns a human-readable mode name for logging.
func (m Mode) String() string {
	switch m {
	case ModeRescore:
		return "rescore"
	case ModeDiversify:
		return "diversify"
	default:
		return "none"
	}
}

// Options holds the per-call tunables for one retrieve operation.
// Zero values are not meaningful on their own; start from
// DefaultOptions or let Retrieve apply QueryOptions over the defaults.
type Options struct {
	TopK          int            // Result width
	Alpha         float64        // Dense weight in fusion (1-alpha for lexical)
	RRFK          int            // Reciprocal rank fusion constant
	Lambda        float64        // Diversification relevance/novelty trade-off
	Lexical       lexical.Params // BM25 parameters for the lexical search
	MinSimilarity float64        // Post-stage score floor, active when > 0
	Filters       map[string]any // Metadata equality filters
	DocTypes      []string       // Accepted doc_type metadata values
	Collections   []string       // Accepted collection names
	Mode          Mode           // Post-stage selection
}

// DefaultOptions returns the tunables applied when a call passes no
// options: topK 5, balanced fusion and diversification weights, the
// standard RRF constant and BM25 parameters, no filters, no post-stage.
func DefaultOptions() Options {
	return Options{
		TopK:    DefaultTopK,
		Alpha:   rank.DefaultAlpha,
		RRFK:    rank.DefaultRRFK,
		Lambda:  rank.DefaultLambda,
		Lexical: lexical.DefaultParams(),
	}
}

// Validate checks that every tunable is in its meaningful range.
func (o Options) Validate() error {
	if o.TopK <= 0 {
		return fmt.Errorf("%w: top k must be positive, got %d", ErrInvalidOption, o.TopK)
	}
	if o.Alpha < 0 || o.Alpha > 1 {
		return fmt.Errorf("%w: alpha must be in [0,1], got %v", ErrInvalidOption, o.Alpha)
	}
	if o.RRFK <= 0 {
		return fmt.Errorf("%w: rrf k must be positive, got %d", ErrInvalidOption, o.RRFK)
	}
	if o.Lambda < 0 || o.Lambda > 1 {
		return fmt.Errorf("%w: lambda must be in [0,1], got %v", ErrInvalidOption, o.Lambda)
	}
	if err := o.Lexical.Validate(); err != nil {
		return err
	}
	if err := core.ValidateMetadata(o.Filters); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOption, err)
	}
	if o.Mode < ModeNone || o.Mode > ModeDiversify {
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidOption, o.Mode)
	}
	return nil
}

// hasFilters reports whether any candidate filter is configured.
func (o Options) hasFilters() bool {
	return len(o.Filters) > 0 || len(o.DocTypes) > 0 || len(o.Collections) > 0
}

// QueryOption adjusts the Options for a single retrieve call.
type QueryOption func(*Options) error

// WithTopK sets the number of results to return.
func WithTopK(topK int) QueryOption {
	return func(o *Options) error {
		if topK <= 0 {
			return fmt.Errorf("%w: top k must be positive, got %d", ErrInvalidOption, topK)
		}
		o.TopK = topK
		return nil
	}
}

// WithAlpha sets the fusion weight of the dense list. The lexical list
// is weighted 1-alpha.
func WithAlpha(alpha float64) QueryOption {
	return func(o *Options) error {
		if alpha < 0 || alpha > 1 {
			return fmt.Errorf("%w: alpha must be in [0,1], got %v", ErrInvalidOption, alpha)
		}
		o.Alpha = alpha
		return nil
	}
}

// WithRRFK sets the reciprocal rank fusion constant.
func WithRRFK(k int) QueryOption {
	return func(o *Options) error {
		if k <= 0 {
			return fmt.Errorf("%w: rrf k must be positive, got %d", ErrInvalidOption, k)
		}
		o.RRFK = k
		return nil
	}
}

// WithLambda sets the diversification trade-off. 1 ranks purely by
// query similarity, 0 selects purely against redundancy.
func WithLambda(lambda float64) QueryOption {
	return func(o *Options) error {
		if lambda < 0 || lambda > 1 {
			return fmt.Errorf("%w: lambda must be in [0,1], got %v", ErrInvalidOption, lambda)
		}
		o.Lambda = lambda
		return nil
	}
}

// WithLexicalParams overrides the BM25 parameters for this call.
func WithLexicalParams(params lexical.Params) QueryOption {
	return func(o *Options) error {
		if err := params.Validate(); err != nil {
			return err
		}
		o.Lexical = params
		return nil
	}
}

// WithMinSimilarity drops results whose best score signal falls below
// the threshold. A rescored candidate is judged by its rescore, anything
// else by its dense similarity; candidates carrying neither signal are
// dropped while the filter is active. Thresholds <= 0 disable the filter.
func WithMinSimilarity(threshold float64) QueryOption {
	return func(o *Options) error {
		o.MinSimilarity = threshold
		return nil
	}
}

// WithFilter keeps only candidates whose metadata holds value under key.
// Values must be primitive (string/number/boolean); integer widths are
// normalized before comparison, so a filter on 2 matches a stored
// int64(2). Candidates without the key are dropped, which includes
// candidates found only by the lexical index since it carries no
// metadata.
func WithFilter(key string, value any) QueryOption {
	return func(o *Options) error {
		if key == "" {
			return fmt.Errorf("%w: filter key must not be empty", ErrInvalidOption)
		}
		if err := core.ValidateMetadata(map[string]any{key: value}); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidOption, err)
		}
		if o.Filters == nil {
			o.Filters = make(map[string]any)
		}
		o.Filters[key] = value
		return nil
	}
}

// WithDocTypes keeps only candidates whose doc_type metadata matches
// one of the given values.
func WithDocTypes(docTypes ...string) QueryOption {
	return func(o *Options) error {
		o.DocTypes = append(o.DocTypes, docTypes...)
		return nil
	}
}

// WithCollections keeps only candidates assigned to at least one of the
// given collections. Collections are stored as a comma-separated
// metadata value and matched by exact element.
func WithCollections(names ...string) QueryOption {
	return func(o *Options) error {
		o.Collections = append(o.Collections, names...)
		return nil
	}
}

// WithRescoring re-orders the merged pool by pairwise relevance before
// truncation. Cannot be combined with WithDiversification.
func WithRescoring() QueryOption {
	return func(o *Options) error {
		if o.Mode == ModeDiversify {
			return fmt.Errorf("%w: rescoring and diversification cannot be combined", ErrInvalidOption)
		}
		o.Mode = ModeRescore
		return nil
	}
}

// WithDiversification re-selects the merged pool balancing relevance
// against redundancy before truncation. Cannot be combined with
// WithRescoring.
func WithDiversification() QueryOption {
	return func(o *Options) error {
		if o.Mode == ModeRescore {
			return fmt.Errorf("%w: rescoring and diversification cannot be combined", ErrInvalidOption)
		}
		o.Mode = ModeDiversify
		return nil
	}
}

// WithOptions replaces the whole option set for this call. Later
// options still apply on top of it.
func WithOptions(options Options) QueryOption {
	return func(o *Options) error {
		if err := options.Validate(); err != nil {
			return err
		}
		*o = options
		return nil
	}
}
