package ingest

import "errors"

var (
	// ErrPassageRepositoryRequired is returned when a passage repository is not provided.
	ErrPassageRepositoryRequired = errors.New("passage repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrEmptyDocument is returned when a document has no id or no text.
	ErrEmptyDocument = errors.New("document id and text required")

	// ErrInvalidChunkConfig is returned when chunking parameters are out of range.
	ErrInvalidChunkConfig = errors.New("invalid chunk configuration")
)
