package treewatch

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/watchtree/watchtreed/internal/treewatch/kqueue"
)

// Manager is the top-level wiring of the watch-tree manager: the registry,
// the watch index, the tree installer's worker pool, the event pump, and
// housekeeping, all built from a single kernel-watch adapter. It is the
// package's one exported entry point; callers build one with New and a
// handful of Options, the way the teacher's agent.Agent is assembled with
// functional options.
type Manager struct {
	kw       kqueue.Watcher
	index    *Index
	registry *Registry
	install  *installer
	pump     *pump
	house    *housekeeping
	pool     *workerPool
	logger   *slog.Logger

	startedAt time.Time
}

// Option configures a Manager at construction time.
type Option func(*options)

type options struct {
	logger            *slog.Logger
	metrics           Metrics
	poolSize          int
	defaultMaxEvents  int
	statePath         string
	memcleanEvery     int
	rewatchSweepEvery int
}

// WithLogger sets the structured logger every component threads through.
// Defaults to a discarding logger if omitted.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics wires a Metrics implementation (internal/metrics's
// Prometheus collectors, typically). Defaults to a no-op.
func WithMetrics(m Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithWorkerPoolSize sets the number of goroutines backing the bounded
// worker pool that tree-installer dispatch, root teardown, and
// housekeeping sweeps all submit to.
func WithWorkerPoolSize(n int) Option {
	return func(o *options) { o.poolSize = n }
}

// WithDefaultMaxEvents sets the max_events used when a watch request omits
// it (passes 0).
func WithDefaultMaxEvents(n int) Option {
	return func(o *options) { o.defaultMaxEvents = n }
}

// WithStatePath sets the persisted-root-set file path. An empty path
// disables persistence entirely.
func WithStatePath(p string) Option {
	return func(o *options) { o.statePath = p }
}

// WithHousekeepingCadence sets how many ticks elapse between memclean and
// rewatch-sweep runs respectively.
func WithHousekeepingCadence(memcleanEvery, rewatchSweepEvery int) Option {
	return func(o *options) {
		o.memcleanEvery = memcleanEvery
		o.rewatchSweepEvery = rewatchSweepEvery
	}
}

// New builds a Manager around kw, which must already be open (see
// kqueue.New). Construction never touches the filesystem; call Start to
// restore persisted roots and begin pumping events.
func New(kw kqueue.Watcher, opts ...Option) *Manager {
	o := &options{
		logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:           noopMetrics{},
		poolSize:          4,
		defaultMaxEvents:  4096,
		memcleanEvery:     1,
		rewatchSweepEvery: 6,
	}
	for _, opt := range opts {
		opt(o)
	}

	index := NewIndex()
	pool := newWorkerPool(o.poolSize, o.logger)
	registry := newRegistry(index, kw, pool, o.logger, o.metrics, o.statePath, o.defaultMaxEvents)
	install := newInstaller(kw, index, registry, pool, o.logger)
	registry.installer = install

	p := newPump(kw, index, registry, install, pool, o.logger, o.metrics)
	h := newHousekeeping(index, registry, kw, install, pool, o.logger, o.metrics, o.memcleanEvery, o.rewatchSweepEvery)

	return &Manager{
		kw:       kw,
		index:    index,
		registry: registry,
		install:  install,
		pump:     p,
		house:    h,
		pool:     pool,
		logger:   o.logger,
	}
}

// Start restores any persisted roots and begins pumping kernel events on a
// new goroutine. It returns once persisted roots have been submitted for
// (re)watching; it does not wait for their tree walks to finish.
func (m *Manager) Start() error {
	m.startedAt = time.Now()

	if m.registry.statePath != "" {
		roots, err := loadState(m.registry.statePath, m.logger)
		if err != nil {
			return fmt.Errorf("treewatch: load persisted state: %w", err)
		}
		for _, root := range roots {
			if err := m.registry.Watch(root.Path, root.Mask, root.MaxEvents, true); err != nil {
				m.logger.Warn("treewatch: failed to restore persisted root", slog.String("path", root.Path), slog.Any("err", err))
			}
		}
	}

	go m.pump.Run()
	return nil
}

// Stop persists the current root set and stops the event pump. Per spec
// §5, background workers (installers, teardowns, sweeps) are not joined:
// they touch only structures about to be released.
func (m *Manager) Stop() error {
	m.registry.persistNow()
	m.pump.Stop()
	return nil
}

// Tick drives housekeeping: memclean and rewatch-sweep cadence, plus a
// persistence write (spec §4.6 bullet i).
func (m *Manager) Tick() {
	m.registry.persistNow()
	m.house.Tick()
}

// Watch, Unwatch, Pause, Unpause, GetQueueSize, GetEvents, and GetRoots are
// the registry operations the request-handler surface calls into.
func (m *Manager) Watch(path string, mask uint32, maxEvents int, rewatch bool) error {
	return m.registry.Watch(path, mask, maxEvents, rewatch)
}

func (m *Manager) Unwatch(path string) error { return m.registry.Unwatch(path) }
func (m *Manager) Pause(path string) error   { return m.registry.Pause(path) }
func (m *Manager) Unpause(path string) error { return m.registry.Unpause(path) }

func (m *Manager) GetQueueSize(path string) (int, error) { return m.registry.GetQueueSize(path) }
func (m *Manager) GetEvents(path string, count int) ([]Event, error) {
	return m.registry.GetEvents(path, count)
}
func (m *Manager) GetRoots() []string { return m.registry.GetRoots() }

// Status reports the watch-index size and process uptime, per spec §4.8.
type Status struct {
	Watches int
	Uptime  time.Duration
}

func (m *Manager) Status() Status {
	return Status{
		Watches: m.index.Len(),
		Uptime:  time.Since(m.startedAt),
	}
}
