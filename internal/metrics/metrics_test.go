package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/watchtree/watchtreed/internal/metrics"
	"github.com/watchtree/watchtreed/internal/treewatch"
)

// TestCollectors_ImplementsTreewatchMetrics is a compile-time check that
// Collectors satisfies the interface the registry depends on.
func TestCollectors_ImplementsTreewatchMetrics(t *testing.T) {
	var _ treewatch.Metrics = (*metrics.Collectors)(nil)
}

func newTestCollectors() *metrics.Collectors {
	return metrics.NewWith(prometheus.NewRegistry())
}

// These are smoke tests: each uses its own private registry so repeated
// registration across test functions doesn't collide, and mainly confirm
// the calls don't panic on unexpected label cardinality.
func TestCollectors_SetWatchIndexSize(t *testing.T) {
	c := newTestCollectors()
	c.SetWatchIndexSize(7)
}

func TestCollectors_IncDroppedEvents(t *testing.T) {
	c := newTestCollectors()
	c.IncDroppedEvents("/var/watched")
}

func TestCollectors_ObserveSweepDuration(t *testing.T) {
	c := newTestCollectors()
	c.ObserveSweepDuration("memclean", 5*time.Millisecond)
}

func TestCollectors_SetQueueDepth(t *testing.T) {
	c := newTestCollectors()
	c.SetQueueDepth("/var/watched", 3)
}
