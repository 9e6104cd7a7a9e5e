package retrieve

import (
	"slices"
	"strings"

	"github.com/poiesic/passage/core"
)

// filterByMetadata keeps the candidates matching every configured
// filter. Filtering happens after fusion so dense- and lexical-origin
// candidates pass through one code path.
func filterByMetadata(candidates []core.Candidate, options Options) []core.Candidate {
	filtered := make([]core.Candidate, 0, len(candidates))
	for _, cand := range candidates {
		if matchesFilters(cand, options) {
			filtered = append(filtered, cand)
		}
	}
	return filtered
}

func matchesFilters(cand core.Candidate, options Options) bool {
	for key, want := range options.Filters {
		got, ok := cand.Metadata[key]
		if !ok || !metadataEquals(got, want) {
			return false
		}
	}

	if len(options.DocTypes) > 0 {
		docType, _ := cand.Metadata[core.MetaDocType].(string)
		if !slices.Contains(options.DocTypes, docType) {
			return false
		}
	}

	if len(options.Collections) > 0 {
		raw, _ := cand.Metadata[core.MetaCollections].(string)
		if !containsAnyCollection(raw, options.Collections) {
			return false
		}
	}

	return true
}

// metadataEquals compares a stored metadata value with a filter value.
// Stored integers decode as int64, so integer widths are normalized on
// both sides before comparison. Other primitives compare directly.
func metadataEquals(got, want any) bool {
	g, gInt := normalizeInt(got)
	w, wInt := normalizeInt(want)
	if gInt || wInt {
		return gInt && wInt && g == w
	}
	return got == want
}

func normalizeInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

// containsAnyCollection reports whether any wanted collection appears
// in the stored comma-separated collections value.
func containsAnyCollection(raw string, wanted []string) bool {
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if slices.Contains(wanted, part) {
			return true
		}
	}
	return false
}

// filterByMinSimilarity keeps candidates whose best score signal meets
// the threshold. A rescored candidate is judged by its rescore,
// anything else by its dense similarity; candidates carrying neither
// are dropped.
func filterByMinSimilarity(candidates []core.Candidate, threshold float64) []core.Candidate {
	filtered := make([]core.Candidate, 0, len(candidates))
	for _, cand := range candidates {
		signal := cand.Rescore
		if signal == nil {
			signal = cand.Similarity
		}
		if signal != nil && *signal >= threshold {
			filtered = append(filtered, cand)
		}
	}
	return filtered
}

// truncate caps the list at topK without reordering.
func truncate(candidates []core.Candidate, topK int) []core.Candidate {
	if topK < 0 {
		topK = 0
	}
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}
