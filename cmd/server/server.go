package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nickyhof/PagerDB"
	"github.com/nickyhof/PagerDB/core"
	"github.com/nickyhof/PagerDB/db"
	"github.com/nickyhof/PagerDB/internal/logging"
	"github.com/nickyhof/PagerDB/internal/protocol"
)

// Server exposes the PagerDB engine over TCP and, optionally, WebSocket.
// Every connection is a session with its own engine; the instance, and with
// it the catalog cache, is shared.
type Server struct {
	listener   net.Listener
	tlsConfig  *tls.Config
	httpServer *http.Server
	wsListener net.Listener

	instance        *PagerDB.Instance
	identity        core.Identity
	authConfig      *AuthConfig
	defaultDatabase string
	websocket       WebSocketConfig
	local           db.LocalAccess

	sessions atomic.Int64
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// session is the state of one client connection.
type session struct {
	id     string
	remote string
	ctx    context.Context
	cancel context.CancelFunc
	state  ConnectionState
	engine *db.Engine
}

// NewServer creates a server whose sessions use identity for snapshots.
func NewServer(instance *PagerDB.Instance, identity core.Identity) *Server {
	return &Server{
		instance:  instance,
		identity:  identity,
		websocket: DefaultWebSocketConfig(),
		local:     db.LocalAccess{Disabled: true},
		done:      make(chan struct{}),
	}
}

// NewServerWithAuth creates a server that refuses commands until a session
// authenticates with AUTH JWT.
func NewServerWithAuth(instance *PagerDB.Instance, authConfig *AuthConfig) *Server {
	server := NewServer(instance, core.Identity{})
	server.authConfig = authConfig
	return server
}

// SetDefaultDatabase makes every new session open source on connect.
func (s *Server) SetDefaultDatabase(source string) {
	s.defaultDatabase = source
}

// SetLocalAccess controls which local paths clients may .open and .export.
// New servers refuse local paths; the default database is exempt.
func (s *Server) SetLocalAccess(access db.LocalAccess) {
	s.local = access
}

func (s *Server) authRequired() bool {
	return s.authConfig != nil && s.authConfig.Enabled
}

// Start begins listening for connections on the specified address.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	logging.ServerStartup("sql", "tcp", listener.Addr().String(), "auth", s.authRequired())

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// StartTLS is Start with TLS using the given certificate and key files.
func (s *Server) StartTLS(addr, certFile, keyFile string) error {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	s.tlsConfig = &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	listener, err := tls.Listen("tcp", addr, s.tlsConfig)
	if err != nil {
		return fmt.Errorf("failed to start TLS server: %w", err)
	}
	s.listener = listener

	logging.ServerStartup("sql", "tls", listener.Addr().String(), "auth", s.authRequired())

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// TLSEnabled reports whether the TCP listener uses TLS.
func (s *Server) TLSEnabled() bool {
	return s.tlsConfig != nil
}

// Stop closes the listeners and waits for open sessions to finish.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.listener != nil {
			s.listener.Close()
		}
		if s.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.httpServer.Shutdown(ctx)
		}
	})
	s.wg.Wait()
	return nil
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Sessions returns the number of open sessions.
func (s *Server) Sessions() int {
	return int(s.sessions.Load())
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.Warn("accept error", "error", err)
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// newSession assigns a session id and an engine, opening the default
// database when one is configured.
func (s *Server) newSession(remote string) *session {
	id := uuid.New().String()
	ctx, cancel := context.WithCancel(logging.WithSessionID(context.Background(), id))
	sess := &session{
		id:     id,
		remote: remote,
		ctx:    ctx,
		cancel: cancel,
		engine: s.instance.Engine(s.identity),
	}

	s.sessions.Add(1)
	logging.InfoContext(sess.ctx, "session opened", "remote", remote, "sessions", s.Sessions())

	if s.defaultDatabase != "" {
		if _, err := sess.engine.Open(sess.ctx, s.defaultDatabase); err != nil {
			logging.WarnContext(sess.ctx, "failed to open default database", "source", s.defaultDatabase, "error", err)
		}
	}
	sess.engine.Local = s.local
	return sess
}

func (s *Server) closeSession(sess *session) {
	sess.cancel()
	s.sessions.Add(-1)
	logging.InfoContext(sess.ctx, "session closed", "remote", sess.remote, "sessions", s.Sessions())
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	sess := s.newSession(conn.RemoteAddr().String())
	defer s.closeSession(sess)

	// unblock the read below on shutdown
	go func() {
		select {
		case <-s.done:
			conn.SetReadDeadline(time.Now())
		case <-sess.ctx.Done():
		}
	}()

	reader := bufio.NewReader(conn)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF && !isClosed(s.done) {
				logging.WarnContext(sess.ctx, "read error", "error", err)
			}
			return
		}

		response, quit := s.handleLine(sess, line)
		if quit {
			return
		}
		if response == nil {
			continue
		}

		data, err := protocol.EncodeResponse(*response)
		if err != nil {
			logging.ErrorContext(sess.ctx, "failed to encode response", "error", err)
			continue
		}

		if _, err := conn.Write(data); err != nil {
			logging.WarnContext(sess.ctx, "write error", "error", err)
			return
		}
	}
}

func isClosed(done chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}

// handleLine runs one client line. A nil response means nothing is sent;
// quit ends the session.
func (s *Server) handleLine(sess *session, line string) (response *protocol.Response, quit bool) {
	query, err := protocol.ParseLine(line)
	if err != nil {
		resp := protocol.ErrorResponse(fmt.Errorf("invalid request: %w", err))
		return &resp, false
	}
	if query == "" {
		return nil, false
	}

	switch strings.ToLower(query) {
	case "quit", "exit":
		return nil, true
	}

	if isAuthCommand(query) {
		resp := s.handleAuth(sess, query)
		return &resp, false
	}

	if s.authRequired() {
		if !sess.state.IsAuthenticated() {
			resp := protocol.ErrorResponse(ErrAuthRequired)
			return &resp, false
		}
		if sess.state.Expired(time.Now()) {
			sess.state.authenticated = false
			resp := protocol.ErrorResponse(ErrAuthExpired)
			return &resp, false
		}
	}

	resp := s.executeQuery(sess, query)
	return &resp, false
}

func (s *Server) executeQuery(sess *session, query string) protocol.Response {
	result, err := sess.engine.ExecuteContext(sess.ctx, query)
	if err != nil {
		return protocol.ErrorResponse(err)
	}
	return protocol.FromResult(result)
}
