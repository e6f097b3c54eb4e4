// Package metrics provides the Prometheus collectors for watchtreed: the
// watch index size, dropped-event counts, housekeeping sweep durations, and
// per-root queue depth. It implements treewatch.Metrics structurally so the
// core package never imports prometheus directly.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors is the Prometheus-backed implementation of treewatch.Metrics.
type Collectors struct {
	watchIndexSize prometheus.Gauge
	droppedEvents  *prometheus.CounterVec
	sweepDuration  *prometheus.HistogramVec
	queueDepth     *prometheus.GaugeVec
}

// New registers the collector set against prometheus.DefaultRegisterer and
// returns it. Callers construct exactly one Collectors per process;
// registering a second would panic on the duplicate collector names. Use
// NewWith to register against a private registry instead, mainly for tests.
func New() *Collectors {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the collector set against reg and returns it.
func NewWith(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		watchIndexSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "watchtreed",
			Name:      "watch_index_size",
			Help:      "Number of directories currently tracked in the watch index.",
		}),
		droppedEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "watchtreed",
			Name:      "dropped_events_total",
			Help:      "Events dropped because a root's queue was full, by root path.",
		}, []string{"root"}),
		sweepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "watchtreed",
			Name:      "housekeeping_sweep_duration_seconds",
			Help:      "Duration of a housekeeping sweep, by kind (memclean, rewatch_sweep).",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		queueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "watchtreed",
			Name:      "root_queue_depth",
			Help:      "Current number of buffered events for a root.",
		}, []string{"root"}),
	}
}

// SetWatchIndexSize implements treewatch.Metrics.
func (c *Collectors) SetWatchIndexSize(n int) { c.watchIndexSize.Set(float64(n)) }

// IncDroppedEvents implements treewatch.Metrics.
func (c *Collectors) IncDroppedEvents(root string) { c.droppedEvents.WithLabelValues(root).Inc() }

// ObserveSweepDuration implements treewatch.Metrics.
func (c *Collectors) ObserveSweepDuration(kind string, d time.Duration) {
	c.sweepDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// SetQueueDepth records the current queue depth for root. This is not part
// of treewatch.Metrics (the registry doesn't track depth on every change);
// instead cmd/watchtreed polls Manager.GetQueueSize per root on a ticker
// and calls this directly.
func (c *Collectors) SetQueueDepth(root string, depth int) {
	c.queueDepth.WithLabelValues(root).Set(float64(depth))
}
