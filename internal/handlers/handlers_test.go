package handlers_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/watchtree/watchtreed/internal/handlers"
	"github.com/watchtree/watchtreed/internal/treewatch"
	"github.com/watchtree/watchtreed/internal/treewatch/kqueue"
)

// fakeWatcher is a minimal in-memory stand-in for kqueue.Watcher, enough to
// drive a real treewatch.Manager deterministically without a Linux kernel.
type fakeWatcher struct {
	mu      sync.Mutex
	nextWd  int32
	byPath  map[string]int32
	removed map[int32]bool
	events  chan kqueue.RawEvent
	errs    chan error
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{
		byPath:  make(map[string]int32),
		removed: make(map[int32]bool),
		events:  make(chan kqueue.RawEvent, 64),
		errs:    make(chan error, 1),
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
func (f *fakeWatcher) Errors() <-chan error           { return f.errs }
func (f *fakeWatcher) Close() error                   { return nil }

func (f *fakeWatcher) wdFor(path string) (int32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wd, ok := f.byPath[path]
	return wd, ok
}

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %s", timeout)
	}
}

func newTestHandlers(t *testing.T) (*handlers.Handlers, *fakeWatcher) {
	t.Helper()
	kw := newFakeWatcher()
	m := treewatch.New(kw, treewatch.WithLogger(testLogger()), treewatch.WithDefaultMaxEvents(64))
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { m.Stop() })
	return handlers.New(m, testLogger()), kw
}

func TestHandlers_Ping(t *testing.T) {
	h, _ := newTestHandlers(t)
	if got := h.Ping(); got != "pong" {
		t.Fatalf("Ping() = %q, want %q", got, "pong")
	}
}

func TestHandlers_WatchThenStatus(t *testing.T) {
	h, _ := newTestHandlers(t)
	root := t.TempDir()

	if err := h.Watch(root, 0, 64, false); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return h.Status().Watches == 1 })
}

func TestHandlers_WatchRelativePath_NotAbsolutePath(t *testing.T) {
	h, _ := newTestHandlers(t)
	err := h.Watch("relative/path", 0, 64, false)
	if err == nil {
		t.Fatal("expected error for relative path")
	}
	if err.Code != handlers.CodeNotAbsolutePath {
		t.Fatalf("Code = %v, want %v", err.Code, handlers.CodeNotAbsolutePath)
	}
}

func TestHandlers_WatchOverlap_ChildOfRoot(t *testing.T) {
	h, _ := newTestHandlers(t)
	root := t.TempDir()
	child := filepath.Join(root, "child")
	if err := os.MkdirAll(child, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := h.Watch(root, 0, 64, false); err != nil {
		t.Fatalf("Watch(root): %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return h.Status().Watches >= 1 })

	err := h.Watch(child, 0, 64, false)
	if err == nil {
		t.Fatal("expected error watching a child of an existing root")
	}
	if err.Code != handlers.CodeChildOfRoot {
		t.Fatalf("Code = %v, want %v", err.Code, handlers.CodeChildOfRoot)
	}
}

func TestHandlers_UnwatchUnknownPath_NotWatched(t *testing.T) {
	h, _ := newTestHandlers(t)
	err := h.Unwatch(t.TempDir())
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Code != handlers.CodeNotWatched {
		t.Fatalf("Code = %v, want %v", err.Code, handlers.CodeNotWatched)
	}
}

func TestHandlers_GetEventsNegativeCount_InvalidEventCount(t *testing.T) {
	h, _ := newTestHandlers(t)
	root := t.TempDir()
	if err := h.Watch(root, 0, 64, false); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return h.Status().Watches >= 1 })

	_, err := h.GetEvents(root, -1)
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Code != handlers.CodeInvalidEventCount {
		t.Fatalf("Code = %v, want %v", err.Code, handlers.CodeInvalidEventCount)
	}
}

func TestHandlers_GetRoots(t *testing.T) {
	h, _ := newTestHandlers(t)
	root := t.TempDir()
	if err := h.Watch(root, 0, 64, false); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return len(h.GetRoots()) == 1 })
	if got := h.GetRoots(); len(got) != 1 || got[0] != root {
		t.Fatalf("GetRoots() = %v, want [%s]", got, root)
	}
}

func TestHandlers_Dispatch_Watch(t *testing.T) {
	h, _ := newTestHandlers(t)
	root := t.TempDir()

	_, err := h.Dispatch(handlers.CallWatch, map[string]any{
		"path":       root,
		"max_events": float64(64),
	})
	if err != nil {
		t.Fatalf("Dispatch(watch): %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return h.Status().Watches >= 1 })
}

func TestHandlers_Dispatch_MissingPath_JsonKeyMissing(t *testing.T) {
	h, _ := newTestHandlers(t)
	_, err := h.Dispatch(handlers.CallWatch, map[string]any{})
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Code != handlers.CodeJsonKeyMissing {
		t.Fatalf("Code = %v, want %v", err.Code, handlers.CodeJsonKeyMissing)
	}
}

func TestHandlers_Dispatch_UnknownCall_BadCall(t *testing.T) {
	h, _ := newTestHandlers(t)
	_, err := h.Dispatch("nonsense", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Code != handlers.CodeBadCall {
		t.Fatalf("Code = %v, want %v", err.Code, handlers.CodeBadCall)
	}
}

func TestHandlers_Dispatch_Ping(t *testing.T) {
	h, _ := newTestHandlers(t)
	got, err := h.Dispatch(handlers.CallPing, nil)
	if err != nil {
		t.Fatalf("Dispatch(ping): %v", err)
	}
	if got != "pong" {
		t.Fatalf("Dispatch(ping) = %v, want pong", got)
	}
}
