//go:build !linux

package kqueue

import "errors"

// ErrUnsupported is returned by New on platforms without a recursive
// kernel-notification primitive wired up. Recursive directory-tree
// watching, the whole point of this service, is Linux-only here; the
// teacher's own watcher package splits the same way by GOOS
// (file_watcher_linux.go vs. file_watcher_darwin.go).
var ErrUnsupported = errors.New("kqueue: no kernel-watch adapter for this platform")

// New always fails on non-Linux platforms. Init failure is fatal to the
// caller by design (spec §6, "Exit codes").
func New() (Watcher, error) {
	return nil, ErrUnsupported
}
