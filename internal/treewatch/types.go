// Package treewatch is the watch-tree manager: it installs and maintains
// recursive kernel filesystem watches across an evolving directory tree,
// keeps a bidirectional index between watch handles and absolute paths,
// turns raw kernel notifications into per-root event queues, and runs the
// periodic housekeeping that keeps the watch index honest.
package treewatch

import (
	"sync"

	"github.com/watchtree/watchtreed/internal/treewatch/kqueue"
)

// Watch is one kernel-level watch on a single directory.
type Watch struct {
	Wd   int32
	Path string
}

// Root is a user-declared directory placed under recursive watch. The
// registry is its exclusive owner. The event pump and the tree installer
// hold *Root pointers and read Path and Mask without the registry lock
// (neither changes after Watch creates the Root); Pause and Destroy are
// read and written only under the registry lock, and the queue under
// queueMu.
type Root struct {
	Path      string
	Mask      uint32
	MaxEvents int
	Pause     bool
	Destroy   bool
	Rewatch   bool

	queueMu sync.Mutex
	queue   []Event
}

// Event is a client-visible record synthesized from a raw kernel
// notification plus the absolute directory that contained the affected
// entry.
type Event struct {
	Wd     int32
	Mask   uint32
	Cookie uint32
	Name   string
	Path   string
	IsDir  bool
}

// IsCreate, IsMovedFrom, etc. are convenience predicates over the raw
// bitset: the kernel allows multiple flags to combine in a single event
// (e.g. IS_DIR|CREATE), so Event deliberately keeps Mask as a bitset rather
// than modeling a closed variant enum.
func (e Event) IsCreate() bool     { return e.Mask&kqueue.IN_CREATE != 0 }
func (e Event) IsDelete() bool     { return e.Mask&kqueue.IN_DELETE != 0 }
func (e Event) IsMovedFrom() bool  { return e.Mask&kqueue.IN_MOVED_FROM != 0 }
func (e Event) IsMovedTo() bool    { return e.Mask&kqueue.IN_MOVED_TO != 0 }
func (e Event) IsMoveSelf() bool   { return e.Mask&kqueue.IN_MOVE_SELF != 0 }
func (e Event) IsAttrib() bool     { return e.Mask&kqueue.IN_ATTRIB != 0 }
func (e Event) IsCloseWrite() bool { return e.Mask&kqueue.IN_CLOSE_WRITE != 0 }
func (e Event) IsDirEntry() bool   { return e.IsDir }
