package retrieve

import "github.com/poiesic/passage/core"

// Monitor provides hooks to observe the retrieval pipeline.
// Implement this interface to track the output of each stage during a
// retrieve call. Callbacks fire only for stages that ran, so a monitor
// also observes which path a query took and how long each stage held it.
type Monitor interface {
	Start(query string)
	AfterDenseRetrieval(candidates []core.Candidate)
	DenseRetrievalDegraded(err error)
	AfterLexicalSearch(candidates []core.Candidate)
	AfterFusion(candidates []core.Candidate)
	AfterRescoring(candidates []core.Candidate)
	AfterDiversification(candidates []core.Candidate)
	Finish(results []core.Candidate)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                          {}
func (n *noopMonitor) AfterDenseRetrieval(_ []core.Candidate)  {}
func (n *noopMonitor) DenseRetrievalDegraded(_ error)          {}
func (n *noopMonitor) AfterLexicalSearch(_ []core.Candidate)   {}
func (n *noopMonitor) AfterFusion(_ []core.Candidate)          {}
func (n *noopMonitor) AfterRescoring(_ []core.Candidate)       {}
func (n *noopMonitor) AfterDiversification(_ []core.Candidate) {}
func (n *noopMonitor) Finish(_ []core.Candidate)               {}
