package core

import (
	"encoding/hex"
	"maps"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// IDFromContent generates a deterministic passage identifier from text
// content using BLAKE2b hashing. Identical content produces the same
// identifier, so re-ingesting a document never duplicates passages.
func IDFromContent(text string) string {
	h, _ := blake2b.New(16, nil) // 16 bytes = 128 bits
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Well-known metadata keys attached by the ingestion pipeline.
// Ranking stages never require these; they pass through untouched for
// callers that filter or display them.
const (
	MetaDocumentID  = "document_id"
	MetaDocType     = "doc_type"
	MetaSourceFile  = "source_file"
	MetaChunkIndex  = "chunk_index"
	MetaCollections = "collections"
	MetaCreatedAt   = "created_at"
	MetaPage        = "page"
)

// Passage is a stored unit of text with its embedding vector.
// Passages are the persistent form of the corpus; retrieval stages
// operate on Candidate views of them.
type Passage struct {
	Id         string
	Content    string
	Metadata   map[string]any // Primitive values only (string/number/boolean)
	Vector     []float32      // Embedding vector (populated by processors)
	InsertedAt time.Time      // When the passage was inserted into the database
	UpdatedAt  time.Time      // When the passage was last updated
}

// Document is an (id, content) pair consumed by lexical index builds.
type Document struct {
	Id      string
	Content string
}

// Candidate is one retrieved passage flowing through the ranking
// pipeline. Score fields are pointers so "never scored by this stage"
// stays distinguishable from a zero score; stages return new Candidate
// values instead of mutating their input.
type Candidate struct {
	Id       string
	Content  string
	Metadata map[string]any

	LexicalScore        *float64 // BM25 score from the lexical index
	Similarity          *float64 // Vector similarity from dense retrieval
	FusionScore         *float64 // Reciprocal rank fusion total
	DiversificationRank *int     // 1-based selection order from diversification
	Rescore             *float64 // Reranker score, normalized to [0,1] on the fallback path
}

// Document returns the (id, content) view of the passage used for
// lexical index builds.
func (p *Passage) Document() Document {
	return Document{Id: p.Id, Content: p.Content}
}

// Candidate returns a retrieval candidate for the passage. Metadata is
// copied so pipeline stages never touch the stored map.
func (p *Passage) Candidate() Candidate {
	return Candidate{
		Id:       p.Id,
		Content:  p.Content,
		Metadata: CloneMetadata(p.Metadata),
	}
}

// Clone returns an independent copy of the candidate. Used by stages
// that annotate candidates they do not own.
func (c Candidate) Clone() Candidate {
	out := c
	out.Metadata = CloneMetadata(c.Metadata)
	out.LexicalScore = cloneFloat(c.LexicalScore)
	out.Similarity = cloneFloat(c.Similarity)
	out.FusionScore = cloneFloat(c.FusionScore)
	out.DiversificationRank = cloneInt(c.DiversificationRank)
	out.Rescore = cloneFloat(c.Rescore)
	return out
}

// CloneMetadata copies a metadata map. Values are primitives, so a
// shallow copy is a full copy.
func CloneMetadata(m map[string]any) map[string]any {
	return maps.Clone(m)
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// VectorMatch is a passage match from vector similarity search.
type VectorMatch struct {
	PassageId string
	Score     float32
}
