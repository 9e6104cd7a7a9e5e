package ingest

import (
	"strings"
	"testing"

	"github.com/poiesic/passage/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkConfigValidate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, DefaultChunkConfig().Validate())
	})

	t.Run("rejects non-positive target size", func(t *testing.T) {
		cfg := DefaultChunkConfig()
		cfg.TargetSize = 0
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidChunkConfig)
	})

	t.Run("rejects overlap at or above target size", func(t *testing.T) {
		cfg := DefaultChunkConfig()
		cfg.Overlap = cfg.TargetSize
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidChunkConfig)
	})

	t.Run("rejects min size above target size", func(t *testing.T) {
		cfg := DefaultChunkConfig()
		cfg.MinSize = cfg.TargetSize + 1
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidChunkConfig)
	})
}

func TestChunkerEmptyText(t *testing.T) {
	chunker, err := NewChunker(DefaultChunkConfig())
	require.NoError(t, err)

	assert.Empty(t, chunker.Chunk("doc1", "", nil))
	assert.Empty(t, chunker.Chunk("doc1", "   \n\n  ", nil))
}

func TestChunkerDropsShortText(t *testing.T) {
	chunker, err := NewChunker(ChunkConfig{TargetSize: 100, Overlap: 0, MinSize: 50})
	require.NoError(t, err)

	passages := chunker.Chunk("doc1", "too short", nil)
	assert.Empty(t, passages)
}

func TestChunkerSingleChunk(t *testing.T) {
	chunker, err := NewChunker(ChunkConfig{TargetSize: 1000, Overlap: 100, MinSize: 10})
	require.NoError(t, err)

	text := "First paragraph here.\n\nSecond paragraph here."
	passages := chunker.Chunk("doc1", text, map[string]any{core.MetaDocType: "text"})

	require.Len(t, passages, 1)
	assert.Equal(t, "First paragraph here.\n\nSecond paragraph here.", passages[0].Content)
	assert.Equal(t, "doc1", passages[0].Metadata[core.MetaDocumentID])
	assert.Equal(t, int64(0), passages[0].Metadata[core.MetaChunkIndex])
	assert.Equal(t, "text", passages[0].Metadata[core.MetaDocType])
	assert.Empty(t, passages[0].Id, "repository derives content IDs")
}

func TestChunkerSplitsAtTargetSize(t *testing.T) {
	chunker, err := NewChunker(ChunkConfig{TargetSize: 120, Overlap: 0, MinSize: 10})
	require.NoError(t, err)

	// Four 50-char paragraphs force a split after every second paragraph
	paragraphs := make([]string, 4)
	for i := range paragraphs {
		paragraphs[i] = strings.Repeat(string(rune('a'+i)), 50)
	}
	text := strings.Join(paragraphs, "\n\n")

	passages := chunker.Chunk("doc1", text, nil)
	require.Len(t, passages, 2)
	for i, passage := range passages {
		assert.Equal(t, int64(i), passage.Metadata[core.MetaChunkIndex])
		assert.LessOrEqual(t, len(passage.Content), 120)
	}
}

func TestChunkerOverlapCarriesContext(t *testing.T) {
	chunker, err := NewChunker(ChunkConfig{TargetSize: 120, Overlap: 60, MinSize: 10})
	require.NoError(t, err)

	para1 := strings.Repeat("a", 50)
	para2 := strings.Repeat("b", 50)
	para3 := strings.Repeat("c", 50)
	text := para1 + "\n\n" + para2 + "\n\n" + para3

	passages := chunker.Chunk("doc1", text, nil)
	require.Len(t, passages, 2)

	// The second chunk starts with the tail of the first
	assert.Contains(t, passages[0].Content, para2)
	assert.True(t, strings.HasPrefix(passages[1].Content, para2),
		"second chunk should open with the overlapped paragraph, got %q", passages[1].Content[:20])
	assert.Contains(t, passages[1].Content, para3)
}

func TestChunkerMetadataIsolation(t *testing.T) {
	chunker, err := NewChunker(ChunkConfig{TargetSize: 60, Overlap: 0, MinSize: 5})
	require.NoError(t, err)

	base := map[string]any{"source_file": "a.txt"}
	text := strings.Repeat("x", 40) + "\n\n" + strings.Repeat("y", 40)

	passages := chunker.Chunk("doc1", text, base)
	require.Len(t, passages, 2)

	// Chunk metadata maps are independent of the base and of each other
	passages[0].Metadata["source_file"] = "changed"
	assert.Equal(t, "a.txt", base["source_file"])
	assert.Equal(t, "a.txt", passages[1].Metadata["source_file"])
}
