package storage

import (
	"testing"
	"time"

	"github.com/poiesic/passage/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalPassage(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name    string
		passage *core.Passage
	}{
		{
			name: "minimal passage",
			passage: &core.Passage{
				Id:         core.IDFromContent("minimal"),
				Content:    "A short passage.",
				InsertedAt: now,
				UpdatedAt:  now,
			},
		},
		{
			name: "passage with metadata",
			passage: &core.Passage{
				Id:      core.IDFromContent("with metadata"),
				Content: "Neural networks learn hierarchical representations.",
				Metadata: map[string]any{
					"document_id": "ml-handbook",
					"doc_type":    "markdown",
					"page":        float64(12),
					"reviewed":    true,
				},
				InsertedAt: now,
				UpdatedAt:  now,
			},
		},
		{
			name: "empty content",
			passage: &core.Passage{
				Id:         core.IDFromContent("empty"),
				Content:    "",
				InsertedAt: now,
				UpdatedAt:  now,
			},
		},
		{
			name: "unicode content",
			passage: &core.Passage{
				Id:         core.IDFromContent("unicode"),
				Content:    "Hello 世界 🌍 émojis",
				InsertedAt: now,
				UpdatedAt:  now,
			},
		},
		{
			name: "long content",
			passage: &core.Passage{
				Id:         core.IDFromContent("long"),
				Content:    string(make([]byte, 4096)),
				InsertedAt: now,
				UpdatedAt:  now,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Marshal
			data := MarshalPassage(tt.passage)
			require.NotNil(t, data)
			require.NotEmpty(t, data)

			// Unmarshal
			decoded, err := UnmarshalPassage(data)
			require.NoError(t, err)
			require.NotNil(t, decoded)

			// Verify fields
			assert.Equal(t, tt.passage.Id, decoded.Id)
			assert.Equal(t, tt.passage.Content, decoded.Content)
			assert.True(t, tt.passage.InsertedAt.Equal(decoded.InsertedAt))
			assert.True(t, tt.passage.UpdatedAt.Equal(decoded.UpdatedAt))
			// Use Empty to handle nil vs empty map
			if len(tt.passage.Metadata) == 0 {
				assert.Empty(t, decoded.Metadata)
			} else {
				assert.Equal(t, tt.passage.Metadata, decoded.Metadata)
			}
		})
	}
}

func TestMarshalPassage_VectorNotStored(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	passage := &core.Passage{
		Id:         core.IDFromContent("vector holder"),
		Content:    "Content travels, the vector does not.",
		Vector:     []float32{0.1, 0.2, 0.3},
		InsertedAt: now,
		UpdatedAt:  now,
	}

	decoded, err := UnmarshalPassage(MarshalPassage(passage))
	require.NoError(t, err)

	assert.Empty(t, decoded.Vector)
	assert.Equal(t, passage.Content, decoded.Content)
}

func TestMarshalPassage_IntMetadataDecodesAsInt64(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	passage := &core.Passage{
		Id:      core.IDFromContent("ints"),
		Content: "Chunk three of the source document.",
		Metadata: map[string]any{
			"chunk_index": 3,
			"line_count":  int64(120),
		},
		InsertedAt: now,
		UpdatedAt:  now,
	}

	decoded, err := UnmarshalPassage(MarshalPassage(passage))
	require.NoError(t, err)

	assert.Equal(t, int64(3), decoded.Metadata["chunk_index"])
	assert.Equal(t, int64(120), decoded.Metadata["line_count"])
}

func TestMarshalPassage_UnsupportedMetadataDropped(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	passage := &core.Passage{
		Id:      core.IDFromContent("mixed"),
		Content: "Some values survive, some do not.",
		Metadata: map[string]any{
			"document_id": "doc-1",
			"tags":        []string{"not", "storable"},
		},
		InsertedAt: now,
		UpdatedAt:  now,
	}

	decoded, err := UnmarshalPassage(MarshalPassage(passage))
	require.NoError(t, err)

	assert.Equal(t, "doc-1", decoded.Metadata["document_id"])
	assert.NotContains(t, decoded.Metadata, "tags")
}

func TestMarshalPassage_DeterministicEncoding(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	first := &core.Passage{
		Id:         core.IDFromContent("deterministic"),
		Content:    "Same fields, same bytes.",
		Metadata:   map[string]any{},
		InsertedAt: now,
		UpdatedAt:  now,
	}
	first.Metadata["document_id"] = "doc-9"
	first.Metadata["chunk_index"] = 4
	first.Metadata["doc_type"] = "text"

	second := &core.Passage{
		Id:         core.IDFromContent("deterministic"),
		Content:    "Same fields, same bytes.",
		Metadata:   map[string]any{},
		InsertedAt: now,
		UpdatedAt:  now,
	}
	second.Metadata["doc_type"] = "text"
	second.Metadata["chunk_index"] = 4
	second.Metadata["document_id"] = "doc-9"

	assert.Equal(t, MarshalPassage(first), MarshalPassage(second))
}

func TestUnmarshalPassage_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"invalid data", []byte{0xFF, 0xFF, 0xFF}},
		{"partial data", []byte{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalPassage(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestMarshalUnmarshalVectorRecord(t *testing.T) {
	tests := []struct {
		name   string
		record *VectorRecord
	}{
		{
			name: "small vector",
			record: &VectorRecord{
				PassageId: core.IDFromContent("small"),
				Vector:    []float32{0.1, 0.2, 0.3, 0.4, 0.5},
			},
		},
		{
			name: "empty vector",
			record: &VectorRecord{
				PassageId: core.IDFromContent("empty"),
			},
		},
		{
			name: "negative components",
			record: &VectorRecord{
				PassageId: core.IDFromContent("negative"),
				Vector:    []float32{-0.5, 0.0, 0.5, -1.0},
			},
		},
		{
			name: "embedding sized vector",
			record: &VectorRecord{
				PassageId: core.IDFromContent("embedding"),
				Vector:    make([]float32, 768),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Marshal
			data := MarshalVectorRecord(tt.record)
			require.NotNil(t, data)
			require.NotEmpty(t, data)

			// Unmarshal
			decoded, err := UnmarshalVectorRecord(data)
			require.NoError(t, err)
			require.NotNil(t, decoded)

			assert.Equal(t, tt.record.PassageId, decoded.PassageId)
			// Handle nil vs empty slice
			if len(tt.record.Vector) == 0 {
				assert.Empty(t, decoded.Vector)
			} else {
				assert.Equal(t, tt.record.Vector, decoded.Vector)
			}
		})
	}
}

func TestUnmarshalVectorRecord_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"invalid data", []byte{0xFF, 0xFF, 0xFF}},
		{"partial data", []byte{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalVectorRecord(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestRoundTripConsistency(t *testing.T) {
	t.Run("multiple marshal-unmarshal cycles", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Microsecond)
		original := &core.Passage{
			Id:      core.IDFromContent("cycle"),
			Content: "Testing consistency",
			Metadata: map[string]any{
				"document_id": "doc-cycle",
				"chunk_index": int64(7),
				"score":       0.25,
			},
			InsertedAt: now,
			UpdatedAt:  now,
		}

		// Perform 3 marshal-unmarshal cycles
		current := original
		for i := 0; i < 3; i++ {
			data := MarshalPassage(current)
			decoded, err := UnmarshalPassage(data)
			require.NoError(t, err)
			current = decoded
		}

		// Verify final result matches original
		assert.Equal(t, original.Id, current.Id)
		assert.Equal(t, original.Content, current.Content)
		assert.Equal(t, original.Metadata, current.Metadata)
		assert.True(t, original.InsertedAt.Equal(current.InsertedAt))
		assert.True(t, original.UpdatedAt.Equal(current.UpdatedAt))
	})
}
