package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/net2share/meshtun/internal/engine"
	"github.com/net2share/meshtun/internal/tunnel"
)

// Source is what the server reports on. *tunnel.Tunnel implements it.
type Source interface {
	State() tunnel.State
	Address() string
	Subnet() string
	Peers() []engine.PeerStatus
	Summary() tunnel.Summary
	Stats() tunnel.StatsSnapshot
}

var _ Source = (*tunnel.Tunnel)(nil)

// Server listens on a Unix socket and answers status queries.
type Server struct {
	socketPath string
	src        Source
	version    string
	logger     *slog.Logger
	listener   net.Listener
	wg         sync.WaitGroup
	ShutdownCh chan struct{}

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
}

// NewServer creates a new IPC server.
func NewServer(socketPath, version string, src Source, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		socketPath: socketPath,
		src:        src,
		version:    version,
		logger:     logger.With("component", "ipc"),
		ShutdownCh: make(chan struct{}, 1),
		conns:      make(map[net.Conn]struct{}),
	}
}

// Start removes any stale socket and begins accepting connections.
func (s *Server) Start() error {
	if _, err := os.Stat(s.socketPath); err == nil {
		os.Remove(s.socketPath)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}

	os.Chmod(s.socketPath, 0600)

	s.listener = ln

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()

	return nil
}

// Stop closes the listener and open connections, waits for in-flight
// requests, and removes the socket.
func (s *Server) Stop() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	os.Remove(s.socketPath)
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return // listener closed
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			continue
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
				conn.Close()
			}()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	for {
		msg, err := ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("read request failed", "err", err)
			}
			return
		}

		data, ok := s.Dispatch(string(msg))
		if err := WriteFrame(conn, encodeResponse(data, ok)); err != nil {
			s.logger.Debug("write response failed", "err", err)
			return
		}
	}
}

// Dispatch answers one command. ok is false when there is no response,
// which is the answer to every unknown command.
func (s *Server) Dispatch(cmd string) (data []byte, ok bool) {
	switch cmd {
	case CmdAddress:
		return []byte(s.src.Address()), true

	case CmdSubnet:
		return []byte(s.src.Subnet()), true

	case CmdPeers:
		peers := s.src.Peers()
		tunnel.SortPeers(peers)
		return s.marshal(peers)

	case CmdSummary:
		sum := s.src.Summary()
		tunnel.SortPeers(sum.Peers)
		return s.marshal(sum)

	case CmdStatus:
		return s.marshal(StatusResult{State: s.src.State().String(), Stats: s.src.Stats()})

	case CmdPing:
		return s.marshal(PingResult{Version: s.version, PID: os.Getpid()})

	case CmdShutdown:
		select {
		case s.ShutdownCh <- struct{}{}:
		default:
		}
		return []byte("ok"), true

	default:
		return nil, false
	}
}

func (s *Server) marshal(v any) ([]byte, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("failed to encode response", "err", err)
		return nil, false
	}
	return data, true
}
