package treewatch_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/watchtree/watchtreed/internal/treewatch"
)

func newCadenceTestManager(t *testing.T) (*treewatch.Manager, *fakeWatcher) {
	t.Helper()
	kw := newFakeWatcher()
	m := treewatch.New(kw,
		treewatch.WithLogger(testLogger()),
		treewatch.WithDefaultMaxEvents(100),
		treewatch.WithHousekeepingCadence(1, 1),
	)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { m.Stop() })
	return m, kw
}

func TestHousekeeping_MemcleanRemovesVanishedDirectories(t *testing.T) {
	m, _ := newCadenceTestManager(t)
	root := t.TempDir()
	childPath := filepath.Join(root, "child")
	if err := os.MkdirAll(childPath, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := m.Watch(root, 0, 100, false); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return m.Status().Watches == 2 })

	// Remove the directory without a corresponding kernel event reaching
	// the pump — the scenario memclean exists to repair.
	if err := os.RemoveAll(childPath); err != nil {
		t.Fatalf("remove: %v", err)
	}

	m.Tick()

	waitFor(t, 2*time.Second, func() bool { return m.Status().Watches == 1 })
}

func TestHousekeeping_RewatchSweepRepairsMissingWatches(t *testing.T) {
	m, kw := newCadenceTestManager(t)
	root := t.TempDir()

	if err := m.Watch(root, 0, 100, false); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return m.Status().Watches == 1 })

	// A directory appears without ever producing a kernel event the pump
	// observes (simulating a missed CREATE); only the rewatch sweep can
	// pick it up.
	newDir := filepath.Join(root, "missed")
	if err := os.MkdirAll(newDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	m.Tick()

	waitFor(t, 2*time.Second, func() bool {
		_, ok := kw.wdFor(newDir)
		return ok
	})
}
