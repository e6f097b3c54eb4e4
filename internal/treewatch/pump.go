package treewatch

import (
	"log/slog"
	"strings"
	"time"

	"github.com/watchtree/watchtreed/internal/treewatch/kqueue"
)

// guardInterval is the settle delay before the tree installer descends
// into a freshly created or moved-in directory (spec §4.5).
const guardInterval = time.Millisecond

// pump is the single consumer of the kernel-watch adapter's event stream.
// It classifies raw events, maintains the watch index as directories come
// and go, and enqueues user-visible events onto the owning root's queue.
type pump struct {
	kw        kqueue.Watcher
	index     *Index
	registry  *Registry
	installer *installer
	pool      *workerPool
	logger    *slog.Logger
	metrics   Metrics

	done chan struct{}
}

func newPump(kw kqueue.Watcher, index *Index, registry *Registry, installer *installer, pool *workerPool, logger *slog.Logger, metrics Metrics) *pump {
	return &pump{
		kw:        kw,
		index:     index,
		registry:  registry,
		installer: installer,
		pool:      pool,
		logger:    logger,
		metrics:   metrics,
		done:      make(chan struct{}),
	}
}

// Run drains the kernel-watch adapter's event channel until it closes or
// Stop is called. It is meant to run on its own goroutine — the "exactly
// one thread runs the event pump" of spec §5.
func (p *pump) Run() {
	for {
		select {
		case evt, ok := <-p.kw.Events():
			if !ok {
				return
			}
			p.handle(evt)
		case err, ok := <-p.kw.Errors():
			if !ok {
				continue
			}
			p.logger.Error("event pump: kernel-watch adapter error", slog.Any("err", err))
		case <-p.done:
			return
		}
	}
}

func (p *pump) Stop() { close(p.done) }

func (p *pump) handle(e kqueue.RawEvent) {
	// Filtering.
	switch {
	case e.Is(kqueue.IN_Q_OVERFLOW):
		p.logger.Error("event pump: kernel event queue overflowed, consider raising the inotify watch/queue limit")
		return
	case e.Is(kqueue.IN_CLOSE_NOWRITE) && e.IsDir:
		return
	case e.Is(kqueue.IN_IGNORED):
		return
	case strings.HasSuffix(e.Name, transientDirName):
		return
	case e.Name == "":
		return
	}

	// Classification.
	w, ok := p.index.LookupByWd(e.Wd)
	if !ok {
		p.logger.Debug("event pump: no index entry for wd (expected under rapid create/delete races)", slog.Int("wd", int(e.Wd)))
		return
	}
	parentPath := w.Path

	root, ok := p.registry.ActiveRootFor(parentPath)
	if !ok {
		return
	}

	childPath := joinChild(parentPath, e.Name)

	// Topology maintenance.
	if e.IsDir {
		switch {
		case e.Is(kqueue.IN_CREATE), e.Is(kqueue.IN_MOVED_TO):
			p.dispatchInstallAfterSettle(childPath, root)
		case e.Is(kqueue.IN_DELETE), e.Is(kqueue.IN_MOVED_FROM):
			p.unwatchSubtree(childPath)
			if e.Is(kqueue.IN_MOVED_FROM) {
				for _, orphan := range p.index.KeysWithPrefix(childPath) {
					p.unwatchSubtree(orphan)
				}
			}
		}
	}

	// Enqueue.
	if e.Mask&root.Mask != 0 {
		evt := Event{Wd: e.Wd, Mask: e.Mask, Cookie: e.Cookie, Name: e.Name, Path: parentPath, IsDir: e.IsDir}
		if dropped := root.enqueue(evt); dropped {
			p.logger.Warn("event pump: queue full, dropping event", slog.String("root", root.Path), slog.String("name", e.Name))
			p.metrics.IncDroppedEvents(root.Path)
		}
	}
}

// dispatchInstallAfterSettle submits the guard-interval sleep and the
// subsequent tree-install as one background task, so the single pump
// goroutine itself never blocks (spec design note: "the dispatch itself
// is non-blocking").
func (p *pump) dispatchInstallAfterSettle(path string, root *Root) {
	p.pool.submit(func() {
		time.Sleep(guardInterval)
		p.installer.Install(path, root, false)
	})
}

// unwatchSubtree removes a single index entry (and its kernel watch) for
// path, if present. Used on DELETE/MOVED_FROM of a directory.
func (p *pump) unwatchSubtree(path string) {
	w, ok := p.index.LookupByPath(path)
	if !ok {
		return
	}
	if err := p.kw.Remove(w.Wd); err != nil {
		p.logger.Warn("event pump: remove_watch failed", slog.String("path", path), slog.Any("err", err))
	}
	p.index.RemoveByPath(path)
}
