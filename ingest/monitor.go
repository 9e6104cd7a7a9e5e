package ingest

// Monitor provides hooks to observe asynchronous ingestion.
// Implement this interface to track progress and failures of documents
// after Ingest has returned.
type Monitor interface {
	// ChunksCreated fires after a document has been split.
	ChunksCreated(documentID string, count int)

	// PassagesStored fires after a document's passages have been
	// embedded and persisted.
	PassagesStored(documentID string, count int)

	// Error fires when processing a document fails. The document's
	// passages from the failed stage onward are not stored.
	Error(documentID string, err error)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) ChunksCreated(_ string, _ int)  {}
func (n *noopMonitor) PassagesStored(_ string, _ int) {}
func (n *noopMonitor) Error(_ string, _ error)        {}
