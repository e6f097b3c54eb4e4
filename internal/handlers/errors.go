// Package handlers is the request-handler surface of the watch-tree
// manager (spec §4.8): it validates inputs, calls into treewatch.Manager,
// and translates whatever comes back into the stable wire vocabulary a
// transport adapter encodes as JSON. Handlers never touch the watch index
// or queues directly — only the Manager does.
package handlers

import "fmt"

// Code is the stable integer error vocabulary surfaced to clients (spec
// §7). Every treewatch.ErrKind value is translated (see Handlers.translate)
// onto one of NotWatched, AlreadyWatched, ParentOfRoot, ChildOfRoot,
// DoesNotExist, NotAbsolutePath or BeingDestroyed; the remaining codes are
// protocol/transport-level or handler-level failures that this package's
// callers (the line-delimited JSON socket, out of core scope) and the
// handlers themselves produce directly using the same enum.
type Code int

const (
	CodeInvalidJson Code = iota + 1
	CodeJsonParse
	CodeJsonKeyMissing
	CodeZeroByteMessage
	CodeSocketReconnect
	CodeWatchFailed
	CodeUnwatchFailed
	CodeInvalidEventCount
	CodeNotWatched
	CodeAlreadyWatched
	CodeParentOfRoot
	CodeChildOfRoot
	CodeDoesNotExist
	CodeQueueFull
	CodeNotAbsolutePath
	CodeThreadCreateFailed
	CodeMemoryAllocation
	CodeBeingDestroyed
	CodeBadCall
)

var codeNames = map[Code]string{
	CodeInvalidJson:        "InvalidJson",
	CodeJsonParse:          "JsonParse",
	CodeJsonKeyMissing:     "JsonKeyMissing",
	CodeZeroByteMessage:    "ZeroByteMessage",
	CodeSocketReconnect:    "SocketReconnect",
	CodeWatchFailed:        "WatchFailed",
	CodeUnwatchFailed:      "UnwatchFailed",
	CodeInvalidEventCount:  "InvalidEventCount",
	CodeNotWatched:         "NotWatched",
	CodeAlreadyWatched:     "AlreadyWatched",
	CodeParentOfRoot:       "ParentOfRoot",
	CodeChildOfRoot:        "ChildOfRoot",
	CodeDoesNotExist:       "DoesNotExist",
	CodeQueueFull:          "QueueFull",
	CodeNotAbsolutePath:    "NotAbsolutePath",
	CodeThreadCreateFailed: "ThreadCreateFailed",
	CodeMemoryAllocation:   "MemoryAllocation",
	CodeBeingDestroyed:     "BeingDestroyed",
	CodeBadCall:            "BadCall",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Error is the typed, client-facing error every handler returns instead of
// a bare Go error, matching the teacher's writeJSONError convention of a
// single place that maps an internal failure to a stable wire shape.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
