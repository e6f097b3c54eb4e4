package treewatch

import (
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// housekeeping runs the two cooperating maintenance jobs (spec §4.6):
// memclean prunes index entries whose directories vanished without a
// kernel event ever reaching the pump, and the rewatch-sweep re-walks
// every active root to catch directories the index is missing.
type housekeeping struct {
	index     *Index
	registry  *Registry
	kw        kernelRemover
	installer *installer
	pool      *workerPool
	logger    *slog.Logger
	metrics   Metrics

	tick              int
	memcleanEvery     int
	rewatchSweepEvery int

	sweeping atomic.Bool
	cleaning atomic.Bool
}

// kernelRemover is the slice of the kernel-watch adapter housekeeping
// needs; naming it narrowly keeps memclean's contract obvious at a glance.
type kernelRemover interface {
	Remove(wd int32) error
}

func newHousekeeping(index *Index, registry *Registry, kw kernelRemover, installer *installer, pool *workerPool, logger *slog.Logger, metrics Metrics, memcleanEvery, rewatchSweepEvery int) *housekeeping {
	if memcleanEvery <= 0 {
		memcleanEvery = 1
	}
	if rewatchSweepEvery <= 0 {
		rewatchSweepEvery = 1
	}
	return &housekeeping{
		index:             index,
		registry:          registry,
		kw:                kw,
		installer:         installer,
		pool:              pool,
		logger:            logger,
		metrics:           metrics,
		memcleanEvery:     memcleanEvery,
		rewatchSweepEvery: rewatchSweepEvery,
	}
}

// Tick advances the tick counter and dispatches whichever jobs are due on
// this tick. It is invoked by the external periodic signal (spec §4.6).
func (h *housekeeping) Tick() {
	h.tick++
	if h.tick%h.memcleanEvery == 0 {
		h.pool.submit(h.memclean)
	}
	if h.tick%h.rewatchSweepEvery == 0 {
		h.pool.submit(h.rewatchSweep)
	}
	h.metrics.SetWatchIndexSize(h.index.Len())
}

// memclean snapshots the path keys under the index lock, releases it, then
// for each path still starting with "/" checks whether the directory
// still exists on disk; vanished directories are removed from both index
// mappings and have their kernel watch released.
func (h *housekeeping) memclean() {
	if !h.cleaning.CompareAndSwap(false, true) {
		return
	}
	defer h.cleaning.Store(false)

	start := time.Now()
	paths := h.index.Snapshot()

	var repaired int
	for _, path := range paths {
		if !strings.HasPrefix(path, "/") {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			continue
		}

		w, ok := h.index.LookupByPath(path)
		if !ok {
			continue
		}
		if err := h.kw.Remove(w.Wd); err != nil {
			h.logger.Debug("housekeeping: remove_watch failed during memclean", slog.String("path", path), slog.Any("err", err))
		}
		h.index.RemoveByPath(path)
		repaired++
	}

	h.logger.Info("housekeeping: memclean complete", slog.Int("removed", repaired), slog.Int("scanned", len(paths)))
	h.metrics.ObserveSweepDuration("memclean", time.Since(start))
}

// rewatchSweep snapshots the root list, then runs the tree installer in
// cleanup mode for each root. A single in-progress guard prevents
// overlapping sweeps.
func (h *housekeeping) rewatchSweep() {
	if !h.sweeping.CompareAndSwap(false, true) {
		return
	}
	defer h.sweeping.Store(false)

	start := time.Now()
	roots := h.registry.snapshotRoots()
	for _, root := range roots {
		h.installer.Install(root.Path, root, true)
	}
	h.metrics.ObserveSweepDuration("rewatch_sweep", time.Since(start))
}
