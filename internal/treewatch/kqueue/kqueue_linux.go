//go:build linux

package kqueue

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// unixEventSize is the fixed portion of a struct inotify_event, matching
// fsnotify's backend_inotify.go sizing of its read buffer.
const unixEventSize = unix.SizeofInotifyEvent

// inotifyWatcher is the Linux kernel-watch adapter. It owns the inotify
// file descriptor and a background goroutine that parses raw kernel events
// into RawEvent values.
type inotifyWatcher struct {
	fd int

	mu     sync.Mutex
	closed bool

	events chan RawEvent
	errors chan error
	done   chan struct{}
}

// New opens a new inotify instance. Init failure is the one fatal error in
// this adapter; every caller (cmd/watchtreed) should treat it as such.
func New() (Watcher, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("kqueue: inotify_init1: %w", err)
	}

	w := &inotifyWatcher{
		fd:     fd,
		events: make(chan RawEvent, 4096),
		errors: make(chan error, 16),
		done:   make(chan struct{}),
	}
	go w.readEvents()
	return w, nil
}

func (w *inotifyWatcher) Events() <-chan RawEvent { return w.events }
func (w *inotifyWatcher) Errors() <-chan error    { return w.errors }

func (w *inotifyWatcher) Add(path string, mask uint32) (int32, error) {
	wd, err := unix.InotifyAddWatch(w.fd, path, mask)
	if err != nil {
		return 0, classifyAddError(path, err)
	}
	return int32(wd), nil
}

func classifyAddError(path string, err error) error {
	kind := AddErrorUnknown
	switch {
	case errors.Is(err, unix.ENOENT):
		kind = AddErrorNotFound
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		kind = AddErrorPermissionDenied
	case errors.Is(err, unix.ENOSPC):
		kind = AddErrorResourceExhausted
	}
	return &AddError{Kind: kind, Path: path, Err: err}
}

func (w *inotifyWatcher) Remove(wd int32) error {
	if _, err := unix.InotifyRmWatch(w.fd, uint32(wd)); err != nil {
		return fmt.Errorf("kqueue: inotify_rm_watch(%d): %w", wd, err)
	}
	return nil
}

func (w *inotifyWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	return unix.Close(w.fd)
}

// readEvents is the background read loop, modeled on fsnotify's
// backend_inotify.go readEvents: poll the fd for readability, read a batch
// into a fixed buffer, and walk it parsing fixed-size inotify_event headers
// followed by a variable-length, NUL-padded name.
func (w *inotifyWatcher) readEvents() {
	defer close(w.events)
	defer close(w.errors)

	var buf [unix.SizeofInotifyEvent*4096 + 16*1024]byte

	for {
		pfd := []unix.PollFd{{Fd: int32(w.fd), Events: unix.POLLIN}}
		_, err := unix.Poll(pfd, 200)
		select {
		case <-w.done:
			return
		default:
		}
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			w.errors <- fmt.Errorf("kqueue: poll: %w", err)
			return
		}
		if pfd[0].Revents&unix.POLLIN == 0 {
			continue
		}

		n, err := unix.Read(w.fd, buf[:])
		if err != nil {
			if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
				continue
			}
			w.errors <- fmt.Errorf("kqueue: read: %w", err)
			return
		}
		if n < unixEventSize {
			continue
		}

		var offset int
		for offset+unixEventSize <= n {
			raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))

			var name string
			nameStart := offset + unixEventSize
			if raw.Len > 0 {
				nameEnd := nameStart + int(raw.Len)
				nameBytes := buf[nameStart:nameEnd]
				if i := indexByte(nameBytes, 0); i >= 0 {
					nameBytes = nameBytes[:i]
				}
				name = string(nameBytes)
			}

			w.events <- RawEvent{
				Wd:     raw.Wd,
				Mask:   raw.Mask,
				Cookie: raw.Cookie,
				Name:   name,
				IsDir:  raw.Mask&IN_ISDIR != 0,
			}

			offset += unixEventSize + int(raw.Len)
		}
	}
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
