package treewatch

import (
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/watchtree/watchtreed/internal/treewatch/kqueue"
)

// Registry is the root registry (spec §4.3): path -> Root. One mutex
// guards the map plus mutations of Root.Pause and Root.Destroy. Locks are
// acquired registry -> index, never the reverse.
type Registry struct {
	mu    sync.Mutex
	roots map[string]*Root

	index            *Index
	kw               kqueue.Watcher
	pool             *workerPool
	installer        *installer
	logger           *slog.Logger
	metrics          Metrics
	defaultMaxEvents int

	statePath string
}

func newRegistry(index *Index, kw kqueue.Watcher, pool *workerPool, logger *slog.Logger, metrics Metrics, statePath string, defaultMaxEvents int) *Registry {
	return &Registry{
		roots:            make(map[string]*Root),
		index:            index,
		kw:               kw,
		pool:             pool,
		logger:           logger,
		metrics:          metrics,
		defaultMaxEvents: defaultMaxEvents,
		statePath:        statePath,
	}
}

// isPrefixRoot reports whether root is a directory prefix of candidate, "/"
// being a prefix of everything per spec §3.
func isPrefixRoot(root, candidate string) bool {
	if root == candidate {
		return false
	}
	if root == "/" {
		return true
	}
	return strings.HasPrefix(candidate, root+"/")
}

// Watch creates a new Root. mask == 0 and maxEvents <= 0 fall back to
// defaults (spec §6: "0 => default").
func (r *Registry) Watch(path string, mask uint32, maxEvents int, rewatch bool) error {
	path = normalizeRootPath(path)
	if !strings.HasPrefix(path, "/") {
		return newErr(ErrNotAbsolutePath, path)
	}
	if mask == 0 {
		mask = kqueue.DefaultMask
	}
	if maxEvents <= 0 {
		maxEvents = r.defaultMaxEvents
	}

	if _, err := os.Stat(path); err != nil {
		return newErr(ErrDoesNotExist, path)
	}

	r.mu.Lock()
	if existing, ok := r.roots[path]; ok {
		r.mu.Unlock()
		if existing.Destroy {
			return newErr(ErrBeingDestroyed, path)
		}
		return newErr(ErrAlreadyWatched, path)
	}
	for p := range r.roots {
		if isPrefixRoot(p, path) {
			r.mu.Unlock()
			return newErr(ErrChildOfRoot, path)
		}
		if isPrefixRoot(path, p) {
			r.mu.Unlock()
			return newErr(ErrParentOfRoot, path)
		}
	}

	root := &Root{Path: path, Mask: mask, MaxEvents: maxEvents, Rewatch: rewatch}
	r.roots[path] = root
	r.mu.Unlock()

	r.persistNow()
	r.installer.Dispatch(path, root, false)
	return nil
}

// Unwatch begins two-phase teardown of an existing Root: the destroy flag
// is set synchronously here, and the actual kernel/index cleanup runs
// asynchronously on the worker pool.
func (r *Registry) Unwatch(path string) error {
	path = normalizeRootPath(path)

	r.mu.Lock()
	root, ok := r.roots[path]
	if !ok {
		r.mu.Unlock()
		return newErr(ErrNotWatched, path)
	}
	if root.Destroy {
		r.mu.Unlock()
		return newErr(ErrBeingDestroyed, path)
	}
	root.Destroy = true
	r.mu.Unlock()

	r.persistNow()
	r.pool.submit(func() { r.teardown(root) })
	return nil
}

func (r *Registry) teardown(root *Root) {
	paths := r.index.KeysWithPrefix(root.Path)
	if _, ok := r.index.LookupByPath(root.Path); ok {
		paths = append(paths, root.Path)
	}

	for _, p := range paths {
		w, ok := r.index.LookupByPath(p)
		if !ok {
			continue
		}
		if err := r.kw.Remove(w.Wd); err != nil {
			r.logger.Warn("registry: remove_watch failed during teardown", slog.String("path", p), slog.Any("err", err))
		}
		r.index.RemoveByPath(p)
	}

	root.clearQueue()

	r.mu.Lock()
	delete(r.roots, root.Path)
	r.mu.Unlock()

	r.persistNow()
	r.logger.Info("registry: root unwatched", slog.String("path", root.Path))
}

// Pause sets a Root's pause flag, suppressing enqueue while leaving its
// watches installed.
func (r *Registry) Pause(path string) error { return r.setPause(path, true) }

// Unpause clears a Root's pause flag.
func (r *Registry) Unpause(path string) error { return r.setPause(path, false) }

func (r *Registry) setPause(path string, pause bool) error {
	path = normalizeRootPath(path)
	r.mu.Lock()
	defer r.mu.Unlock()
	root, ok := r.roots[path]
	if !ok {
		return newErr(ErrNotWatched, path)
	}
	root.Pause = pause
	return nil
}

// GetQueueSize returns 0 once destroy has been set, per spec §4.3.
func (r *Registry) GetQueueSize(path string) (int, error) {
	path = normalizeRootPath(path)
	r.mu.Lock()
	root, ok := r.roots[path]
	destroying := ok && root.Destroy
	r.mu.Unlock()
	if !ok {
		return 0, newErr(ErrNotWatched, path)
	}
	if destroying {
		return 0, nil
	}
	return root.queueLen(), nil
}

// GetEvents drains up to count events (0 => all) from path's queue.
func (r *Registry) GetEvents(path string, count int) ([]Event, error) {
	path = normalizeRootPath(path)
	r.mu.Lock()
	root, ok := r.roots[path]
	r.mu.Unlock()
	if !ok {
		return nil, newErr(ErrNotWatched, path)
	}
	return root.dequeue(count), nil
}

// GetRoots returns a snapshot of every currently registered root path.
func (r *Registry) GetRoots() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.roots))
	for p := range r.roots {
		out = append(out, p)
	}
	return out
}

// ActiveRootFor returns the Root owning path (the unique root whose path
// is a prefix of it), or ok == false if no root owns it, or the owning
// root is paused or being destroyed — the single combined check the event
// pump's classification step performs under the registry lock.
func (r *Registry) ActiveRootFor(path string) (*Root, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	root := r.findOwnerLocked(path)
	if root == nil || root.Destroy || root.Pause {
		return nil, false
	}
	return root, true
}

func (r *Registry) findOwnerLocked(path string) *Root {
	for p, root := range r.roots {
		if p == path || isPrefixRoot(p, path) {
			return root
		}
	}
	return nil
}

// destroying reports whether root's destroy flag is currently set.
func (r *Registry) destroying(root *Root) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return root.Destroy
}

// snapshotRewatchRoots returns the persisted-state rows for every root
// whose Rewatch flag is set.
func (r *Registry) snapshotRewatchRoots() []persistedRoot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]persistedRoot, 0, len(r.roots))
	for _, root := range r.roots {
		if !root.Rewatch || root.Destroy {
			continue
		}
		out = append(out, persistedRoot{Path: root.Path, Mask: root.Mask, MaxEvents: root.MaxEvents})
	}
	return out
}

// snapshotRoots returns every live root, for housekeeping's rewatch-sweep.
func (r *Registry) snapshotRoots() []*Root {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Root, 0, len(r.roots))
	for _, root := range r.roots {
		if root.Destroy {
			continue
		}
		out = append(out, root)
	}
	return out
}

func (r *Registry) persistNow() {
	if r.statePath == "" {
		return
	}
	if err := saveState(r.statePath, r.snapshotRewatchRoots()); err != nil {
		r.logger.Warn("registry: failed to persist root set", slog.Any("err", err))
	}
}
