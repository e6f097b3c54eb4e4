package treewatch

import (
	"strings"
	"sync"
)

// Index is the bidirectional wd <-> path watch index (spec §4.2). A single
// mutex guards both mappings; callers must not perform blocking I/O or
// kernel syscalls while holding it — release it around those operations
// and re-validate invariants on re-entry.
type Index struct {
	mu     sync.Mutex
	byWd   map[int32]*Watch
	byPath map[string]*Watch
}

// NewIndex returns an empty Index ready for use.
func NewIndex() *Index {
	return &Index{
		byWd:   make(map[int32]*Watch),
		byPath: make(map[string]*Watch),
	}
}

// Insert replaces any prior entry with the same wd or the same path; both
// directions are updated atomically under the index mutex.
func (ix *Index) Insert(wd int32, path string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if old, ok := ix.byWd[wd]; ok {
		delete(ix.byPath, old.Path)
	}
	if old, ok := ix.byPath[path]; ok {
		delete(ix.byWd, old.Wd)
	}

	w := &Watch{Wd: wd, Path: path}
	ix.byWd[wd] = w
	ix.byPath[path] = w
}

// LookupByWd returns the Watch registered under wd, if any.
func (ix *Index) LookupByWd(wd int32) (Watch, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	w, ok := ix.byWd[wd]
	if !ok {
		return Watch{}, false
	}
	return *w, true
}

// LookupByPath returns the Watch registered under path, if any.
func (ix *Index) LookupByPath(path string) (Watch, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	w, ok := ix.byPath[path]
	if !ok {
		return Watch{}, false
	}
	return *w, true
}

// RemoveByWd removes the entry for wd and its path mirror, returning the
// removed Watch.
func (ix *Index) RemoveByWd(wd int32) (Watch, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	w, ok := ix.byWd[wd]
	if !ok {
		return Watch{}, false
	}
	delete(ix.byWd, wd)
	delete(ix.byPath, w.Path)
	return *w, true
}

// RemoveByPath removes the entry for path and its wd mirror, returning the
// removed Watch.
func (ix *Index) RemoveByPath(path string) (Watch, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	w, ok := ix.byPath[path]
	if !ok {
		return Watch{}, false
	}
	delete(ix.byWd, w.Wd)
	delete(ix.byPath, path)
	return *w, true
}

// KeysWithPrefix returns all paths whose string begins with prefix + "/",
// used for sub-tree teardown on unwatch and on MOVED_FROM of a directory.
func (ix *Index) KeysWithPrefix(prefix string) []string {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	p := prefix + "/"
	var out []string
	for path := range ix.byPath {
		if strings.HasPrefix(path, p) {
			out = append(out, path)
		}
	}
	return out
}

// Snapshot returns every path currently indexed, for memclean to walk
// outside the index lock.
func (ix *Index) Snapshot() []string {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	out := make([]string, 0, len(ix.byPath))
	for path := range ix.byPath {
		out = append(out, path)
	}
	return out
}

// Len returns the number of watches currently indexed — the "total
// directory watches" figure the status handler reports.
func (ix *Index) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.byWd)
}
