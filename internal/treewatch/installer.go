package treewatch

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/watchtree/watchtreed/internal/treewatch/kqueue"
)

// transientDirName is a tool-generated, high-churn directory that is
// always deleted shortly after creation; the installer refuses to descend
// into it rather than race its own teardown.
const transientDirName = ".~tmp~"

// installer is the recursive tree walker (spec §4.4). It runs on the
// worker pool, detached from the event pump, and may run concurrently for
// different sub-trees — a just-created subdirectory fires an event whose
// handler dispatches an installer while others are still in progress.
type installer struct {
	kw       kqueue.Watcher
	index    *Index
	registry *Registry
	pool     *workerPool
	logger   *slog.Logger
}

func newInstaller(kw kqueue.Watcher, index *Index, registry *Registry, pool *workerPool, logger *slog.Logger) *installer {
	return &installer{kw: kw, index: index, registry: registry, pool: pool, logger: logger}
}

// Dispatch submits a tree-install task to the worker pool without blocking
// the caller.
func (in *installer) Dispatch(startPath string, root *Root, cleanup bool) {
	in.pool.submit(func() { in.Install(startPath, root, cleanup) })
}

// Install walks startPath recursively, installing kernel watches on every
// directory found. When cleanup is true ("rewatch sweep" mode) it skips
// directories already present in the index, counts the orphans it
// repairs, and logs a single summary line at the end.
func (in *installer) Install(startPath string, root *Root, cleanup bool) {
	var repaired int
	in.installRec(startPath, root, cleanup, &repaired)
	if cleanup {
		in.logger.Info("tree installer: rewatch sweep repaired orphaned watches",
			slog.String("root", root.Path), slog.Int("repaired", repaired))
	}
}

func (in *installer) installRec(path string, root *Root, cleanup bool, repaired *int) {
	if in.registry.destroying(root) {
		return
	}
	if filepath.Base(path) == transientDirName {
		return
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		in.logger.Warn("tree installer: opendir failed", slog.String("path", path), slog.Any("err", err))
		return
	}

	alreadyIndexed := false
	if cleanup {
		if _, ok := in.index.LookupByPath(path); ok {
			alreadyIndexed = true
		}
	}

	if !alreadyIndexed {
		wd, err := in.kw.Add(path, root.Mask|kqueue.IN_DONT_FOLLOW)
		if err != nil {
			in.logAddErr(path, err)
			return
		}
		if _, exists := in.index.LookupByWd(wd); exists {
			// Already watched — possible race under rapid creation (another
			// installer beat us to it, or this is a steady-state re-dispatch).
			return
		}
		in.index.Insert(wd, path)
		if cleanup {
			*repaired++
		}
	}

	for _, entry := range entries {
		if in.registry.destroying(root) {
			return
		}

		name := entry.Name()
		if name == "." || name == ".." {
			continue
		}

		isDir, isSymlink := classifyEntry(path, entry)
		if isSymlink || !isDir {
			continue
		}

		in.installRec(joinChild(path, name), root, cleanup, repaired)
	}
}

func (in *installer) logAddErr(path string, err error) {
	var addErr *kqueue.AddError
	if errors.As(err, &addErr) {
		switch addErr.Kind {
		case kqueue.AddErrorNotFound:
			in.logger.Debug("tree installer: add_watch: path vanished between walk and add", slog.String("path", path))
		case kqueue.AddErrorPermissionDenied:
			in.logger.Warn("tree installer: add_watch: permission denied", slog.String("path", path))
		case kqueue.AddErrorResourceExhausted:
			in.logger.Warn("tree installer: add_watch: kernel watch limit reached", slog.String("path", path))
		default:
			in.logger.Warn("tree installer: add_watch failed", slog.String("path", path), slog.Any("err", err))
		}
		return
	}
	in.logger.Warn("tree installer: add_watch failed", slog.String("path", path), slog.Any("err", err))
}

// classifyEntry decides whether a directory entry should be recursed into.
// When the filesystem reports an unknown entry type it falls back to
// lstat and accepts only S_ISDIR && !S_ISLNK.
func classifyEntry(dirPath string, entry os.DirEntry) (isDir, isSymlink bool) {
	t := entry.Type()
	if t&fs.ModeSymlink != 0 {
		return false, true
	}
	if t.IsDir() {
		return true, false
	}
	if t&fs.ModeIrregular != 0 {
		info, err := os.Lstat(filepath.Join(dirPath, entry.Name()))
		if err != nil {
			return false, false
		}
		m := info.Mode()
		return m.IsDir() && m&fs.ModeSymlink == 0, m&fs.ModeSymlink != 0
	}
	return false, false
}
