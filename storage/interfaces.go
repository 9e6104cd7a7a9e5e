package storage

import (
	"context"

	"github.com/poiesic/passage/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// The context passed to fn may contain transaction state.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// PassageRepository provides operations for managing passage records.
type PassageRepository interface {
	Repository
	// AddPassages adds one or more passages to storage.
	// For passages with an empty Id, derives a content-based ID.
	// Sets InsertedAt and UpdatedAt timestamps and maintains the
	// document index for passages carrying a document_id metadata value.
	// A populated Vector field is stored as a vector record.
	// Adding a passage whose ID already exists overwrites the stored record.
	// Returns the passages with IDs and timestamps populated.
	AddPassages(ctx context.Context, passages ...*core.Passage) ([]*core.Passage, error)

	// UpdatePassages updates existing passages.
	// Updates the UpdatedAt timestamp automatically and rewrites the
	// stored vector when the Vector field is populated.
	// Returns ErrNotFound if any passage doesn't exist.
	UpdatePassages(ctx context.Context, passages ...*core.Passage) ([]*core.Passage, error)

	// DeletePassages removes passages by their IDs.
	// Also removes document index entries and any stored vectors.
	// Returns ErrNotFound if any passage doesn't exist.
	DeletePassages(ctx context.Context, ids ...string) error

	// GetPassage retrieves a single passage by ID.
	// Returns ErrNotFound if the passage doesn't exist.
	GetPassage(ctx context.Context, id string) (*core.Passage, error)

	// GetPassages retrieves multiple passages by their IDs.
	// Returns only the passages that exist (no error for missing passages).
	GetPassages(ctx context.Context, ids ...string) ([]*core.Passage, error)

	// GetPassagesByDocument retrieves all passages belonging to a source
	// document, matched against the document_id metadata value.
	GetPassagesByDocument(ctx context.Context, documentID string) ([]*core.Passage, error)

	// ForEachPassage iterates over all stored passages in key order.
	// Iteration stops on the first error returned by fn.
	ForEachPassage(ctx context.Context, fn func(passage *core.Passage) error) error

	// CountPassages returns the number of stored passages.
	CountPassages(ctx context.Context) (int, error)
}

// VectorRecord is the stored form of a passage embedding. Vectors live
// in their own keyspace so the similarity scan never deserializes
// passage content or metadata.
type VectorRecord struct {
	PassageId string
	Vector    []float32
}

// VectorRepository provides operations for managing embedding vectors.
type VectorRepository interface {
	Repository
	// PutVectors stores embedding vectors keyed by passage ID.
	// Storing a vector for an ID that already has one overwrites it.
	PutVectors(ctx context.Context, records ...*VectorRecord) error

	// GetVector retrieves the embedding vector for a passage ID.
	// Returns ErrNotFound if no vector is stored for the ID.
	GetVector(ctx context.Context, passageID string) ([]float32, error)

	// DeleteVectors removes stored vectors by passage ID.
	// Returns ErrNotFound if any vector doesn't exist.
	DeleteVectors(ctx context.Context, passageIDs ...string) error

	// ForEachVector iterates over all stored vectors in key order.
	// Iteration stops on the first error returned by fn.
	ForEachVector(ctx context.Context, fn func(record *VectorRecord) error) error

	// FindSimilar finds passages whose vectors are similar to the given vector.
	// Returns matches with cosine similarity >= minSimilarity, up to limit
	// results. Results are ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.VectorMatch, error)
}
