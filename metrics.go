package paging

// Metrics receives counters from a list as it loads, trims, and grows.
// Implementations must be safe for concurrent use; methods are called from
// the list's notify executor.
type Metrics interface {
	RecordLoad(kind string)
	RecordItemsTrimmed(n int)
	RecordTilesRequested(n int)
	RecordListSize(n int)
}

type noopMetrics struct{}

func (noopMetrics) RecordLoad(string)        {}
func (noopMetrics) RecordItemsTrimmed(int)   {}
func (noopMetrics) RecordTilesRequested(int) {}
func (noopMetrics) RecordListSize(int)       {}
