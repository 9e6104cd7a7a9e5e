package lexical

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/poiesic/passage/core"
)

// Default BM25 parameters.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// Params are the BM25 tuning parameters applied to a search call.
type Params struct {
	K1 float64 // Term frequency saturation (1.2-2.0 typical)
	B  float64 // Document length normalization (0-1)
}

// DefaultParams returns the standard BM25 parameters.
func DefaultParams() Params {
	return Params{K1: DefaultK1, B: DefaultB}
}

// Validate checks that the parameters are in their meaningful ranges.
func (p Params) Validate() error {
	if p.K1 < 0 {
		return fmt.Errorf("%w: k1 must be >= 0, got %v", ErrInvalidParams, p.K1)
	}
	if p.B < 0 || p.B > 1 {
		return fmt.Errorf("%w: b must be in [0,1], got %v", ErrInvalidParams, p.B)
	}
	return nil
}

// Index is an in-memory BM25 index over a corpus snapshot.
// Build replaces the whole index; Search scores queries against the
// last completed build. Safe for concurrent use.
type Index struct {
	mu     sync.RWMutex
	snap   *snapshot
	params Params
	logger *slog.Logger
}

// snapshot is one fully built, immutable view of the corpus. Build
// installs a fresh snapshot under the write lock, so a search only ever
// observes a completed index.
type snapshot struct {
	docs     []indexedDoc
	postings map[string][]posting
	idf      map[string]float64
	avgLen   float64
}

type indexedDoc struct {
	id      string
	content string
	length  int
}

// posting records one document containing a term. Postings are appended
// in corpus order, which keeps scoring and tie-breaking deterministic.
type posting struct {
	doc  int
	freq int
}

// Option configures an Index.
type Option func(*Index) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Index) error {
		if logger == nil {
			logger = slog.Default()
		}
		ix.logger = logger
		return nil
	}
}

// WithParams sets the default BM25 parameters used by Search.
func WithParams(params Params) Option {
	return func(ix *Index) error {
		if err := params.Validate(); err != nil {
			return err
		}
		ix.params = params
		return nil
	}
}

// New creates an empty index. Build must complete before Search.
func New(opts ...Option) (*Index, error) {
	ix := &Index{
		params: DefaultParams(),
		logger: slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(ix); err != nil {
			return nil, err
		}
	}

	return ix, nil
}

// Build indexes a corpus snapshot, replacing any previous index.
// It tokenizes every document, computes per-document term frequencies,
// per-term document frequencies and the corpus average document length.
// Build holds the write lock for its duration, so it never runs
// concurrently with a search or another build.
func (ix *Index) Build(corpus []core.Document) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.snap = buildSnapshot(corpus)
	ix.logger.Debug("lexical index built",
		"documents", len(ix.snap.docs),
		"terms", len(ix.snap.postings),
		"avgDocLength", ix.snap.avgLen)
}

// Search scores the query against the indexed corpus using the index's
// default parameters. See SearchParams.
func (ix *Index) Search(query string, topK int) ([]core.Candidate, error) {
	return ix.SearchParams(query, topK, ix.params)
}

// SearchParams scores the query against the indexed corpus with BM25.
// Only documents sharing at least one term with the query are scored;
// everything else is excluded rather than ranked at zero. Results are
// ordered by score descending with ties broken by corpus order, and
// truncated to topK. Each result carries its LexicalScore.
//
// Returns ErrEmptyCorpus if no Build has completed yet.
func (ix *Index) SearchParams(query string, topK int, params Params) ([]core.Candidate, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.snap == nil {
		return nil, ErrEmptyCorpus
	}
	snap := ix.snap

	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return []core.Candidate{}, nil
	}

	// Accumulate per-document scores term by term. Query tokens are
	// iterated in query order and postings in corpus order, so the
	// floating-point sums are reproducible.
	scores := make(map[int]float64)
	for _, term := range tokens {
		postings, ok := snap.postings[term]
		if !ok {
			continue
		}
		idf := snap.idf[term]
		for _, p := range postings {
			doc := snap.docs[p.doc]
			tf := float64(p.freq)
			numerator := tf * (params.K1 + 1)
			denominator := tf + params.K1*(1-params.B+params.B*(float64(doc.length)/snap.avgLen))
			scores[p.doc] += idf * (numerator / denominator)
		}
	}

	ranked := make([]int, 0, len(scores))
	for doc := range scores {
		ranked = append(ranked, doc)
	}
	sort.Slice(ranked, func(i, j int) bool {
		si, sj := scores[ranked[i]], scores[ranked[j]]
		if si != sj {
			return si > sj
		}
		return ranked[i] < ranked[j]
	})

	if topK < 0 {
		topK = 0
	}
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	results := make([]core.Candidate, 0, len(ranked))
	for _, docIdx := range ranked {
		doc := snap.docs[docIdx]
		score := scores[docIdx]
		results = append(results, core.Candidate{
			Id:           doc.id,
			Content:      doc.content,
			LexicalScore: &score,
		})
	}

	return results, nil
}

// DocCount returns the number of documents in the current index, or 0
// before the first build.
func (ix *Index) DocCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.snap == nil {
		return 0
	}
	return len(ix.snap.docs)
}

// TermCount returns the number of distinct terms in the current index,
// or 0 before the first build.
func (ix *Index) TermCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.snap == nil {
		return 0
	}
	return len(ix.snap.postings)
}

func buildSnapshot(corpus []core.Document) *snapshot {
	snap := &snapshot{
		docs:     make([]indexedDoc, 0, len(corpus)),
		postings: make(map[string][]posting),
		idf:      make(map[string]float64),
	}

	totalLength := 0
	for i, doc := range corpus {
		tokens := Tokenize(doc.Content)
		totalLength += len(tokens)

		freqs := make(map[string]int, len(tokens))
		order := make([]string, 0, len(tokens))
		for _, tok := range tokens {
			if _, seen := freqs[tok]; !seen {
				order = append(order, tok)
			}
			freqs[tok]++
		}
		for _, term := range order {
			snap.postings[term] = append(snap.postings[term], posting{doc: i, freq: freqs[term]})
		}

		snap.docs = append(snap.docs, indexedDoc{
			id:      doc.Id,
			content: doc.Content,
			length:  len(tokens),
		})
	}

	if len(snap.docs) > 0 {
		snap.avgLen = float64(totalLength) / float64(len(snap.docs))
	}

	// IDF formula: ln((N - df + 0.5) / (df + 0.5) + 1)
	n := float64(len(snap.docs))
	for term, postings := range snap.postings {
		df := float64(len(postings))
		snap.idf[term] = math.Log((n-df+0.5)/(df+0.5) + 1)
	}

	return snap
}
