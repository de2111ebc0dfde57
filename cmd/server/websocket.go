package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nickyhof/PagerDB/internal/logging"
	"github.com/nickyhof/PagerDB/internal/protocol"
)

const (
	webSocketPath      = "/ws"
	defaultIdleTimeout = 60 * time.Second
	writeWait          = 10 * time.Second
	sendQueueSize      = 16
)

// WebSocketConfig limits what browsers may connect and how much they send.
type WebSocketConfig struct {
	// AllowedOrigins lists accepted Origin headers besides the server's own
	// host. "*" accepts any origin. Requests without an Origin header, such
	// as non-browser clients, are always accepted.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxMessageSize is the maximum message size in bytes.
	MaxMessageSize int64 `yaml:"max_message_size"`

	// IdleTimeout drops a client that answers neither messages nor pings.
	// Pings go out at nine tenths of it.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		MaxMessageSize: 64 * 1024,
		IdleTimeout:    defaultIdleTimeout,
	}
}

func (cfg WebSocketConfig) idleTimeout() time.Duration {
	if cfg.IdleTimeout <= 0 {
		return defaultIdleTimeout
	}
	return cfg.IdleTimeout
}

func (cfg WebSocketConfig) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	return slices.Contains(cfg.AllowedOrigins, "*") ||
		slices.ContainsFunc(cfg.AllowedOrigins, func(allowed string) bool {
			return strings.EqualFold(allowed, origin)
		})
}

// SetWebSocketConfig replaces the WebSocket limits. Call before StartWebSocket.
func (s *Server) SetWebSocketConfig(cfg WebSocketConfig) {
	s.websocket = cfg
}

// StartWebSocket serves the same protocol over WebSocket at /ws, one JSON
// request per text message.
func (s *Server) StartWebSocket(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start websocket server: %w", err)
	}
	s.wsListener = listener

	mux := http.NewServeMux()
	mux.HandleFunc(webSocketPath, s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, s.Sessions())
	})

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.ServerStartup("sql", "websocket", listener.Addr().String(), "path", webSocketPath)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		var serveErr error
		if s.tlsConfig != nil {
			s.httpServer.TLSConfig = s.tlsConfig
			serveErr = s.httpServer.ServeTLS(listener, "", "")
		} else {
			serveErr = s.httpServer.Serve(listener)
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logging.Error("websocket server failed", "error", serveErr)
		}
	}()
	return nil
}

// WebSocketAddr returns the WebSocket listener address, or "" when not started.
func (s *Server) WebSocketAddr() string {
	if s.wsListener == nil {
		return ""
	}
	return s.wsListener.Addr().String()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.websocket.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.SecurityEvent("websocket_rejected", "server",
			"remote", r.RemoteAddr,
			"origin", r.Header.Get("Origin"),
			"error", err.Error(),
		)
		return
	}
	defer conn.Close()

	s.wg.Add(1)
	defer s.wg.Done()

	sess := s.newSession(r.RemoteAddr)
	defer s.closeSession(sess)
	logging.WebSocketEvent("client_connected", s.Sessions(), "session_id", sess.id)
	defer func() {
		logging.WebSocketEvent("client_disconnected", s.Sessions()-1, "session_id", sess.id)
	}()

	// hijacked connections outlive http.Server.Shutdown
	go func() {
		select {
		case <-s.done:
			conn.Close()
		case <-sess.ctx.Done():
		}
	}()

	if s.websocket.MaxMessageSize > 0 {
		conn.SetReadLimit(s.websocket.MaxMessageSize)
	}
	idle := s.websocket.idleTimeout()
	conn.SetReadDeadline(time.Now().Add(idle))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(idle))
		return nil
	})

	send := make(chan *protocol.Response, sendQueueSize)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump(sess, conn, send, idle*9/10)
	}()
	defer func() {
		close(send)
		<-writerDone
	}()

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.WarnContext(sess.ctx, "websocket unexpected close", "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(idle))

		if messageType != websocket.TextMessage {
			continue
		}

		response, quit := s.handleLine(sess, string(message))
		if quit {
			return
		}
		if response == nil {
			continue
		}

		select {
		case send <- response:
		case <-writerDone:
			return
		}
	}
}

// writePump owns all data writes on conn. It pings every interval and sends
// a normal close once send is closed.
func (s *Server) writePump(sess *session, conn *websocket.Conn, send <-chan *protocol.Response, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case response, ok := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
				return
			}
			if err := conn.WriteJSON(response); err != nil {
				logging.WarnContext(sess.ctx, "websocket write error", "error", err)
				conn.Close()
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}
