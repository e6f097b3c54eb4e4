package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/watchtree/watchtreed/internal/treewatch"
)

// Handlers adapts treewatch.Manager's Go API to the stable, transport-
// agnostic request surface described in the wire protocol: each method
// takes already-decoded parameters and returns a typed *Error instead of a
// bare error, so a caller (a line-delimited JSON socket, an HTTP handler,
// a test) never has to know about treewatch's internal error types.
type Handlers struct {
	manager *treewatch.Manager
	logger  *slog.Logger
}

// New builds a Handlers bound to the given Manager.
func New(manager *treewatch.Manager, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{manager: manager, logger: logger}
}

// EventPayload is the client-visible rendering of a treewatch.Event. Cookie
// is only present (non-nil) for rename pairs (spec §5: "IN_MOVED_FROM and
// IN_MOVED_TO share a cookie").
type EventPayload struct {
	Name   string  `json:"name"`
	Path   string  `json:"path"`
	Mask   uint32  `json:"mask"`
	IsDir  bool    `json:"is_dir"`
	Cookie *uint32 `json:"cookie,omitempty"`
}

// StatusPayload is the client-visible rendering of treewatch.Status.
type StatusPayload struct {
	Watches int    `json:"watches"`
	Uptime  string `json:"uptime"`
}

// Ping answers a liveness probe without touching the registry.
func (h *Handlers) Ping() string { return "pong" }

// Status reports the current watch count and process uptime.
func (h *Handlers) Status() StatusPayload {
	s := h.manager.Status()
	return StatusPayload{Watches: s.Watches, Uptime: formatUptime(s.Uptime)}
}

// Watch registers path as a new watch root (spec §4.1).
func (h *Handlers) Watch(path string, mask uint32, maxEvents int, rewatch bool) *Error {
	if err := h.manager.Watch(path, mask, maxEvents, rewatch); err != nil {
		return h.translate(err, CodeWatchFailed)
	}
	return nil
}

// Unwatch tears down a previously registered root (spec §4.2).
func (h *Handlers) Unwatch(path string) *Error {
	if err := h.manager.Unwatch(path); err != nil {
		return h.translate(err, CodeUnwatchFailed)
	}
	return nil
}

// Pause suspends event collection for a root without releasing kernel
// watches (spec §4.3).
func (h *Handlers) Pause(path string) *Error {
	if err := h.manager.Pause(path); err != nil {
		return h.translate(err, CodeBadCall)
	}
	return nil
}

// Unpause resumes event collection for a previously paused root.
func (h *Handlers) Unpause(path string) *Error {
	if err := h.manager.Unpause(path); err != nil {
		return h.translate(err, CodeBadCall)
	}
	return nil
}

// GetQueueSize reports how many events are currently buffered for path.
func (h *Handlers) GetQueueSize(path string) (int, *Error) {
	n, err := h.manager.GetQueueSize(path)
	if err != nil {
		return 0, h.translate(err, CodeBadCall)
	}
	return n, nil
}

// GetEvents drains up to count queued events for path (0 means "all"),
// rejecting a negative count before it ever reaches the registry.
func (h *Handlers) GetEvents(path string, count int) ([]EventPayload, *Error) {
	if count < 0 {
		return nil, newError(CodeInvalidEventCount, "count must be >= 0, got %d", count)
	}
	events, err := h.manager.GetEvents(path, count)
	if err != nil {
		return nil, h.translate(err, CodeBadCall)
	}
	out := make([]EventPayload, len(events))
	for i, e := range events {
		out[i] = toPayload(e)
	}
	return out, nil
}

// GetRoots lists every currently watched root path.
func (h *Handlers) GetRoots() []string { return h.manager.GetRoots() }

func toPayload(e treewatch.Event) EventPayload {
	p := EventPayload{Name: e.Name, Path: e.Path, Mask: e.Mask, IsDir: e.IsDir}
	if e.Cookie != 0 {
		c := e.Cookie
		p.Cookie = &c
	}
	return p
}

// translate maps a treewatch registry error onto the stable wire code
// table (spec §7). fallback is used for errors translate doesn't recognize
// as a *treewatch.RegistryError, which should only happen for genuinely
// unexpected failures.
func (h *Handlers) translate(err error, fallback Code) *Error {
	var rerr *treewatch.RegistryError
	if errors.As(err, &rerr) {
		switch rerr.Kind {
		case treewatch.ErrNotAbsolutePath:
			return newError(CodeNotAbsolutePath, "%s: path is not absolute", rerr.Path)
		case treewatch.ErrDoesNotExist:
			return newError(CodeDoesNotExist, "%s: does not exist", rerr.Path)
		case treewatch.ErrAlreadyWatched:
			return newError(CodeAlreadyWatched, "%s: already watched", rerr.Path)
		case treewatch.ErrParentOfRoot:
			return newError(CodeParentOfRoot, "%s: is a parent of an existing root", rerr.Path)
		case treewatch.ErrChildOfRoot:
			return newError(CodeChildOfRoot, "%s: is a child of an existing root", rerr.Path)
		case treewatch.ErrBeingDestroyed:
			return newError(CodeBeingDestroyed, "%s: root is being destroyed", rerr.Path)
		case treewatch.ErrNotWatched:
			return newError(CodeNotWatched, "%s: not watched", rerr.Path)
		}
	}
	h.logger.Warn("unmapped registry error", "err", err)
	return newError(fallback, "%v", err)
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	return fmt.Sprintf("%dd/%dh/%dm/%ds", days, hours, minutes, seconds)
}
