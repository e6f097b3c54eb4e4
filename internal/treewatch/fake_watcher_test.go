package treewatch_test

import (
	"sync"

	"github.com/watchtree/watchtreed/internal/treewatch/kqueue"
)

// fakeWatcher is an in-memory stand-in for the kernel-watch adapter: Add
// is idempotent per path exactly like inotify_add_watch, and tests inject
// synthetic RawEvents directly onto the Events channel instead of relying
// on real kernel timing.
type fakeWatcher struct {
	mu      sync.Mutex
	nextWd  int32
	byPath  map[string]int32
	removed map[int32]bool

	events chan kqueue.RawEvent
	errors chan error
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{
		byPath:  make(map[string]int32),
		removed: make(map[int32]bool),
		events:  make(chan kqueue.RawEvent, 4096),
		errors:  make(chan error, 16),
	}
}

func (f *fakeWatcher) Add(path string, mask uint32) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if wd, ok := f.byPath[path]; ok {
		return wd, nil
	}
	f.nextWd++
	wd := f.nextWd
	f.byPath[path] = wd
	return wd, nil
}

func (f *fakeWatcher) Remove(wd int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed[wd] = true
	return nil
}

func (f *fakeWatcher) Events() <-chan kqueue.RawEvent { return f.events }
func (f *fakeWatcher) Errors() <-chan error           { return f.errors }
func (f *fakeWatcher) Close() error {
	close(f.events)
	close(f.errors)
	return nil
}

func (f *fakeWatcher) inject(e kqueue.RawEvent) { f.events <- e }

func (f *fakeWatcher) wdFor(path string) (int32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wd, ok := f.byPath[path]
	return wd, ok
}

func (f *fakeWatcher) wasRemoved(wd int32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removed[wd]
}
