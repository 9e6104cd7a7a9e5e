// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/poiesic/passage/core"
)

// ChunkConfig controls how document text is split into passages.
// Sizes are in characters.
type ChunkConfig struct {
	// TargetSize is the size a chunk grows toward before a new chunk starts.
	TargetSize int

	// Overlap is how much trailing text is carried into the next chunk.
	Overlap int

	// MinSize is the smallest chunk worth keeping. Shorter chunks are
	// dropped rather than stored as noise.
	MinSize int
}

// DefaultChunkConfig returns chunk sizes tuned for retrieval over
// prose: roughly 512 tokens per chunk with a quarter of overlap.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		TargetSize: 2048,
		Overlap:    512,
		MinSize:    400,
	}
}

// Validate checks that the sizes are consistent.
func (c ChunkConfig) Validate() error {
	if c.TargetSize <= 0 {
		return fmt.Errorf("%w: target size must be positive, got %d", ErrInvalidChunkConfig, c.TargetSize)
	}
	if c.Overlap < 0 || c.Overlap >= c.TargetSize {
		return fmt.Errorf("%w: overlap must be in [0, target size), got %d", ErrInvalidChunkConfig, c.Overlap)
	}
	if c.MinSize < 0 || c.MinSize > c.TargetSize {
		return fmt.Errorf("%w: min size must be in [0, target size], got %d", ErrInvalidChunkConfig, c.MinSize)
	}
	return nil
}

// paragraphBreak splits text on blank lines.
var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Chunker splits document text into overlapping passages by grouping
// whole paragraphs toward the target size.
type Chunker struct {
	config ChunkConfig
}

// NewChunker creates a chunker with the given configuration.
func NewChunker(config ChunkConfig) (*Chunker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{config: config}, nil
}

// Chunk splits text into passages. Every passage carries a copy of the
// base metadata plus its document id and 0-based chunk index. Passage
// IDs are left empty for the repository to derive from content.
// Whitespace-only text yields no passages, as does text whose every
// chunk falls below the minimum size.
func (c *Chunker) Chunk(documentID, text string, metadata map[string]any) []*core.Passage {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	paragraphs := splitParagraphs(text)

	var passages []*core.Passage
	var current []string
	currentSize := 0

	flush := func() {
		joined := strings.Join(current, "\n\n")
		if len(joined) >= c.config.MinSize {
			passages = append(passages, c.newPassage(documentID, joined, len(passages), metadata))
		}
	}

	for _, para := range paragraphs {
		if currentSize+len(para) > c.config.TargetSize && len(current) > 0 {
			flush()

			// Seed the next chunk with trailing context
			overlap := c.overlapTail(current)
			current = current[:0]
			currentSize = 0
			if overlap != "" {
				current = append(current, overlap)
				currentSize = len(overlap)
			}
		}
		current = append(current, para)
		currentSize += len(para)
	}

	if len(current) > 0 {
		flush()
	}

	return passages
}

// overlapTail collects trailing paragraphs of the finished chunk, up to
// the configured overlap. When even the last paragraph is too large, a
// suffix of it is taken so consecutive chunks still share context.
func (c *Chunker) overlapTail(chunk []string) string {
	if c.config.Overlap == 0 {
		return ""
	}

	taken := 0
	var tail []string
	for i := len(chunk) - 1; i >= 0; i-- {
		para := chunk[i]
		if taken+len(para) > c.config.Overlap {
			if taken < c.config.Overlap/2 {
				remaining := c.config.Overlap - taken
				tail = append([]string{para[len(para)-remaining:]}, tail...)
			}
			break
		}
		tail = append([]string{para}, tail...)
		taken += len(para)
	}
	return strings.Join(tail, "\n\n")
}

func (c *Chunker) newPassage(documentID, content string, index int, base map[string]any) *core.Passage {
	metadata := core.CloneMetadata(base)
	if metadata == nil {
		metadata = make(map[string]any, 2)
	}
	metadata[core.MetaDocumentID] = documentID
	metadata[core.MetaChunkIndex] = int64(index)

	return &core.Passage{
		Content:  content,
		Metadata: metadata,
	}
}

// splitParagraphs splits text on blank lines, trimming each paragraph
// and dropping empty ones.
func splitParagraphs(text string) []string {
	parts := paragraphBreak.Split(text, -1)
	paragraphs := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			paragraphs = append(paragraphs, part)
		}
	}
	return paragraphs
}
