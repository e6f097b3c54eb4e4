package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/watchtree/watchtreed/internal/handlers"
)

// request is the decoded shape of a single control-socket line. The wire
// protocol itself (how bytes become lines, how lines become JSON) is an
// external-collaborator concern kept out of internal/handlers; only this
// command package touches net.Conn and encoding/json.
type request struct {
	Call   string         `json:"call"`
	Params map[string]any `json:"params"`
}

type response struct {
	ID     string          `json:"id"`
	Result any             `json:"result,omitempty"`
	Error  *handlers.Error `json:"error,omitempty"`
}

// controlSocket accepts line-delimited JSON requests on a Unix domain
// socket and dispatches each to Handlers.
type controlSocket struct {
	listener net.Listener
	handlers *handlers.Handlers
	logger   *slog.Logger

	wg sync.WaitGroup
}

func newControlSocket(path string, h *handlers.Handlers, logger *slog.Logger) (*controlSocket, error) {
	// A stale socket file from an unclean shutdown would otherwise make
	// net.Listen fail with "address already in use".
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	return &controlSocket{listener: ln, handlers: h, logger: logger}, nil
}

func (s *controlSocket) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("control socket accept error", slog.Any("error", err))
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *controlSocket) handleConn(conn net.Conn) {
	defer conn.Close()

	connID := uuid.NewString()
	logger := s.logger.With(slog.String("conn_id", connID))

	scanner := bufio.NewScanner(conn)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			s.writeError(enc, "", handlers.CodeZeroByteMessage, "empty message")
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeError(enc, "", handlers.CodeInvalidJson, err.Error())
			continue
		}

		reqID := uuid.NewString()
		logger.Debug("dispatching call", slog.String("call", req.Call), slog.String("request_id", reqID))

		result, herr := s.handlers.Dispatch(req.Call, req.Params)
		if herr != nil {
			logger.Warn("call failed", slog.String("call", req.Call), slog.String("request_id", reqID), slog.Any("error", herr))
			if err := enc.Encode(response{ID: reqID, Error: herr}); err != nil {
				logger.Warn("write response error", slog.Any("error", err))
				return
			}
			continue
		}

		if err := enc.Encode(response{ID: reqID, Result: result}); err != nil {
			logger.Warn("write response error", slog.Any("error", err))
			return
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Warn("connection read error", slog.Any("error", err))
	}
}

func (s *controlSocket) writeError(enc *json.Encoder, id string, code handlers.Code, msg string) {
	_ = enc.Encode(response{ID: id, Error: &handlers.Error{Code: code, Message: msg}})
}

func (s *controlSocket) close() error {
	err := s.listener.Close()
	s.wg.Wait()
	return err
}
