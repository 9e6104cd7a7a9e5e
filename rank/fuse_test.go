package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/passage/core"
)

func fuseCandidate(id string) core.Candidate {
	return core.Candidate{Id: id, Content: "content for " + id}
}

func floatPtr(v float64) *float64 {
	return &v
}

func TestFuse_MergesByID(t *testing.T) {
	dense := []core.Candidate{fuseCandidate("a"), fuseCandidate("b")}
	sparse := []core.Candidate{fuseCandidate("a"), fuseCandidate("c")}

	fused := Fuse(dense, sparse, 0.5, 60)

	require.Len(t, fused, 3)
	assert.Equal(t, "a", fused[0].Id)

	// Item "a" is rank 1 in both lists, so it accumulates both contributions
	want := 0.5/float64(61) + 0.5/float64(61)
	require.NotNil(t, fused[0].FusionScore)
	assert.Equal(t, want, *fused[0].FusionScore)
}

func TestFuse_OmissionIsNotPenalty(t *testing.T) {
	// An item present only in the dense list scores exactly its dense
	// contribution, with nothing subtracted for its absence elsewhere
	alpha := 0.7
	dense := []core.Candidate{fuseCandidate("only-dense")}
	sparse := []core.Candidate{fuseCandidate("only-sparse")}

	fused := Fuse(dense, sparse, alpha, 60)

	require.Len(t, fused, 2)

	byID := make(map[string]core.Candidate)
	for _, cand := range fused {
		byID[cand.Id] = cand
	}

	wantDense := alpha / float64(61)
	wantSparse := (1 - alpha) / float64(61)
	assert.Equal(t, wantDense, *byID["only-dense"].FusionScore)
	assert.Equal(t, wantSparse, *byID["only-sparse"].FusionScore)
}

func TestFuse_TopRankedInBothHasMaxScore(t *testing.T) {
	dense := []core.Candidate{fuseCandidate("x"), fuseCandidate("y"), fuseCandidate("z")}
	sparse := []core.Candidate{fuseCandidate("x"), fuseCandidate("z"), fuseCandidate("y")}

	fused := Fuse(dense, sparse, 0.5, 60)

	require.NotEmpty(t, fused)
	assert.Equal(t, "x", fused[0].Id)

	// Rank 1 in both lists is the maximum achievable fused score
	for _, cand := range fused[1:] {
		assert.Less(t, *cand.FusionScore, *fused[0].FusionScore)
	}
}

func TestFuse_SizeBoundedByUnion(t *testing.T) {
	dense := []core.Candidate{fuseCandidate("a"), fuseCandidate("b"), fuseCandidate("c")}
	sparse := []core.Candidate{fuseCandidate("b"), fuseCandidate("c"), fuseCandidate("d")}

	fused := Fuse(dense, sparse, 0.5, 60)

	// Union of ids is {a, b, c, d}
	assert.Len(t, fused, 4)

	seen := make(map[string]bool)
	for _, cand := range fused {
		assert.False(t, seen[cand.Id], "duplicate id %s in fused output", cand.Id)
		seen[cand.Id] = true
	}
}

func TestFuse_OrdersByScoreDescending(t *testing.T) {
	dense := []core.Candidate{fuseCandidate("a"), fuseCandidate("b"), fuseCandidate("c")}
	sparse := []core.Candidate{fuseCandidate("a"), fuseCandidate("b"), fuseCandidate("c")}

	fused := Fuse(dense, sparse, 0.5, 60)

	require.Len(t, fused, 3)
	assert.Equal(t, "a", fused[0].Id)
	assert.Equal(t, "b", fused[1].Id)
	assert.Equal(t, "c", fused[2].Id)

	for i := 1; i < len(fused); i++ {
		assert.GreaterOrEqual(t, *fused[i-1].FusionScore, *fused[i].FusionScore)
	}
}

func TestFuse_TieBrokenByBestRankThenID(t *testing.T) {
	// "b" and "c" both appear once at rank 2, so their scores tie and
	// their best ranks tie; the id decides
	dense := []core.Candidate{fuseCandidate("a"), fuseCandidate("c")}
	sparse := []core.Candidate{fuseCandidate("a"), fuseCandidate("b")}

	fused := Fuse(dense, sparse, 0.5, 60)

	require.Len(t, fused, 3)
	assert.Equal(t, "a", fused[0].Id)
	assert.Equal(t, "b", fused[1].Id)
	assert.Equal(t, "c", fused[2].Id)

	// With asymmetric weights the scores differ and rank order flips
	fused = Fuse(dense, sparse, 0.8, 60)
	require.Len(t, fused, 3)
	assert.Equal(t, "c", fused[1].Id)
	assert.Equal(t, "b", fused[2].Id)
}

func TestFuse_PrefersRicherMetadata(t *testing.T) {
	denseCand := fuseCandidate("a")
	denseCand.Metadata = map[string]any{"source": "vector"}

	sparseCand := fuseCandidate("a")
	sparseCand.Metadata = map[string]any{"source": "lexical", "page": 3}

	fused := Fuse([]core.Candidate{denseCand}, []core.Candidate{sparseCand}, 0.5, 60)

	require.Len(t, fused, 1)
	assert.Equal(t, "lexical", fused[0].Metadata["source"])
	assert.Equal(t, 3, fused[0].Metadata["page"])

	// First-seen metadata is kept when it is at least as rich
	fused = Fuse([]core.Candidate{sparseCand}, []core.Candidate{denseCand}, 0.5, 60)
	require.Len(t, fused, 1)
	assert.Equal(t, "lexical", fused[0].Metadata["source"])
}

func TestFuse_MergesScoreAnnotations(t *testing.T) {
	denseCand := fuseCandidate("a")
	denseCand.Similarity = floatPtr(0.92)

	sparseCand := fuseCandidate("a")
	sparseCand.LexicalScore = floatPtr(2.5)

	fused := Fuse([]core.Candidate{denseCand}, []core.Candidate{sparseCand}, 0.5, 60)

	require.Len(t, fused, 1)
	require.NotNil(t, fused[0].Similarity)
	require.NotNil(t, fused[0].LexicalScore)
	assert.Equal(t, 0.92, *fused[0].Similarity)
	assert.Equal(t, 2.5, *fused[0].LexicalScore)
	assert.NotNil(t, fused[0].FusionScore)
}

func TestFuse_DefaultConstantWhenNonPositive(t *testing.T) {
	dense := []core.Candidate{fuseCandidate("a")}

	fused := Fuse(dense, nil, 0.5, 0)

	require.Len(t, fused, 1)
	assert.Equal(t, 0.5/float64(DefaultRRFK+1), *fused[0].FusionScore)
}

func TestFuse_EmptyInputs(t *testing.T) {
	t.Run("both empty", func(t *testing.T) {
		fused := Fuse(nil, nil, 0.5, 60)
		assert.Empty(t, fused)
	})

	t.Run("sparse only", func(t *testing.T) {
		sparse := []core.Candidate{fuseCandidate("a"), fuseCandidate("b")}
		fused := Fuse(nil, sparse, 0.5, 60)

		require.Len(t, fused, 2)
		assert.Equal(t, "a", fused[0].Id)
		assert.Equal(t, 0.5/float64(61), *fused[0].FusionScore)
	})
}

func TestFuse_DoesNotMutateInputs(t *testing.T) {
	denseCand := fuseCandidate("a")
	denseCand.Metadata = map[string]any{"key": "value"}
	dense := []core.Candidate{denseCand}

	sparseCand := fuseCandidate("a")
	sparseCand.Metadata = map[string]any{"key": "other", "extra": true}
	sparse := []core.Candidate{sparseCand}

	fused := Fuse(dense, sparse, 0.5, 60)
	require.Len(t, fused, 1)

	assert.Nil(t, dense[0].FusionScore)
	assert.Nil(t, sparse[0].FusionScore)
	assert.Equal(t, "value", dense[0].Metadata["key"])

	// Mutating the output must not leak back into the inputs
	fused[0].Metadata["key"] = "changed"
	assert.Equal(t, "other", sparse[0].Metadata["key"])
}
