package main

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/watchtree/watchtreed/internal/handlers"
	"github.com/watchtree/watchtreed/internal/treewatch"
	"github.com/watchtree/watchtreed/internal/treewatch/kqueue"
)

type fakeWatcher struct {
	events chan kqueue.RawEvent
	errs   chan error
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{events: make(chan kqueue.RawEvent, 8), errs: make(chan error, 1)}
}

func (f *fakeWatcher) Add(path string, mask uint32) (int32, error) { return 1, nil }
func (f *fakeWatcher) Remove(wd int32) error                       { return nil }
func (f *fakeWatcher) Events() <-chan kqueue.RawEvent              { return f.events }
func (f *fakeWatcher) Errors() <-chan error                        { return f.errs }
func (f *fakeWatcher) Close() error                                { return nil }

func newTestSocket(t *testing.T) (*controlSocket, string) {
	t.Helper()
	m := treewatch.New(newFakeWatcher())
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { m.Stop() })

	h := handlers.New(m, nil)
	sockPath := filepath.Join(t.TempDir(), "watchtreed.sock")
	srv, err := newControlSocket(sockPath, h, discardLogger())
	if err != nil {
		t.Fatalf("newControlSocket: %v", err)
	}
	go srv.serve()
	t.Cleanup(func() { srv.close() })
	return srv, sockPath
}

func TestControlSocket_PingRoundTrip(t *testing.T) {
	_, sockPath := newTestSocket(t)

	conn, err := net.DialTimeout("unix", sockPath, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(`{"call":"ping","params":{}}` + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var resp response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		t.Fatalf("unmarshal: %v, line=%q", err, line)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if resp.Result != "pong" {
		t.Fatalf("Result = %v, want pong", resp.Result)
	}
}

func TestControlSocket_InvalidJson(t *testing.T) {
	_, sockPath := newTestSocket(t)

	conn, err := net.DialTimeout("unix", sockPath, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("not json\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && err != io.EOF {
		t.Fatalf("read: %v", err)
	}

	var resp response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		t.Fatalf("unmarshal: %v, line=%q", err, line)
	}
	if resp.Error == nil || resp.Error.Code != handlers.CodeInvalidJson {
		t.Fatalf("Error = %+v, want code %v", resp.Error, handlers.CodeInvalidJson)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
