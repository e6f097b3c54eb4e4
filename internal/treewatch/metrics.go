package treewatch

import "time"

// Metrics is the operational-counter hook surface the registry, the event
// pump, and housekeeping report through. internal/metrics implements this
// with Prometheus collectors; Manager defaults to a no-op implementation
// when none is supplied.
type Metrics interface {
	SetWatchIndexSize(n int)
	IncDroppedEvents(rootPath string)
	ObserveSweepDuration(kind string, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) SetWatchIndexSize(int)                      {}
func (noopMetrics) IncDroppedEvents(string)                    {}
func (noopMetrics) ObserveSweepDuration(string, time.Duration) {}
