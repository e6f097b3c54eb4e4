//go:build linux

package kqueue_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/watchtree/watchtreed/internal/treewatch/kqueue"
)

func waitEvent(t *testing.T, ch <-chan kqueue.RawEvent, timeout time.Duration) (kqueue.RawEvent, bool) {
	t.Helper()
	select {
	case evt, ok := <-ch:
		return evt, ok
	case <-time.After(timeout):
		return kqueue.RawEvent{}, false
	}
}

func TestInotifyWatcher_AddAndCreateEvent(t *testing.T) {
	dir := t.TempDir()

	w, err := kqueue.New()
	if err != nil {
		t.Fatalf("kqueue.New: %v", err)
	}
	defer w.Close()

	wd, err := w.Add(dir, kqueue.DefaultMask)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if wd == 0 {
		t.Fatal("Add returned zero wd")
	}

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	var sawCreate bool
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		evt, ok := waitEvent(t, w.Events(), 500*time.Millisecond)
		if !ok {
			continue
		}
		if evt.Wd == wd && evt.Name == "a.txt" && evt.Is(kqueue.IN_CREATE) {
			sawCreate = true
			break
		}
	}
	if !sawCreate {
		t.Fatal("did not observe IN_CREATE for a.txt")
	}
}

func TestInotifyWatcher_SecondRemoveFails(t *testing.T) {
	dir := t.TempDir()

	w, err := kqueue.New()
	if err != nil {
		t.Fatalf("kqueue.New: %v", err)
	}
	defer w.Close()

	wd, err := w.Add(dir, kqueue.DefaultMask)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := w.Remove(wd); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	// An IN_IGNORED event may still arrive as a side effect of Remove; the
	// adapter does not filter it (filtering is the event pump's job), so
	// just confirm Remove itself did not error and a second Remove fails.
	if err := w.Remove(wd); err == nil {
		t.Error("second Remove of the same wd unexpectedly succeeded")
	}
}

func TestInotifyWatcher_AddNonexistentPath(t *testing.T) {
	w, err := kqueue.New()
	if err != nil {
		t.Fatalf("kqueue.New: %v", err)
	}
	defer w.Close()

	_, err = w.Add("/nonexistent/does/not/exist", kqueue.DefaultMask)
	if err == nil {
		t.Fatal("expected error adding watch on nonexistent path")
	}
	addErr, ok := err.(*kqueue.AddError)
	if !ok {
		t.Fatalf("error type = %T, want *kqueue.AddError", err)
	}
	if addErr.Kind != kqueue.AddErrorNotFound {
		t.Errorf("Kind = %v, want AddErrorNotFound", addErr.Kind)
	}
}
