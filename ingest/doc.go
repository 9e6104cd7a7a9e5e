// Package ingest turns source documents into stored, embedded passages.
//
// The Chunker splits document text into overlapping passages by grouping
// paragraphs toward a target size. The Pipeline runs chunking and
// embedding+storage on separate worker pools, so ingestion returns as
// soon as the work is queued:
//   - Chunk stage: split the document, attach chunk metadata
//   - Store stage: embed the passage batch and persist it with vectors
//
// Errors during async processing are reported to the Monitor and logged
// but do not fail the Ingest call. Call Wait to block until all queued
// documents have been processed.
package ingest
