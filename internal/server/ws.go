package server

import (
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/retroterm/sessiond/internal/errs"
	"github.com/retroterm/sessiond/internal/handler"
	"github.com/retroterm/sessiond/internal/monitor"
	"github.com/retroterm/sessiond/internal/session"
	"github.com/retroterm/sessiond/internal/transport"
)

// closeCodeForbidden is the (non-standard, per the spec's external
// interface) close code emitted for an Origin header that fails the
// allow-list check.
const closeCodeForbidden = 403

// closerFunc adapts a bare func() error to io.Closer, letting WSServer hand
// *http.Server.Close to BaseServer's generic shutdown path.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// WSServer serves the application protocol over WebSocket (plain or, once
// SetTLSConfig is called, TLS), plus — when Mon is set — the session-monitor
// viewer endpoint at Mon's configured path.
type WSServer struct {
	*BaseServer

	Path         string
	AllowOrigins []string
	Mon          *monitor.Monitor

	tlsConfig *tls.Config
	upgrader  websocket.Upgrader
}

// NewWSServer wires a WSServer. Every application handler it creates is
// configured as session.NegotiationTelnet, per the spec's WebSocket adapter
// contract. mon may be nil to disable monitoring entirely.
func NewWSServer(host string, port int, path string, allowOrigins []string, mon *monitor.Monitor, newHandler func(transport.Reader, transport.Writer) handler.Handler) *WSServer {
	configure := func(h handler.Handler) {
		if ms, ok := h.(handler.ModeSetter); ok {
			ms.SetMode(session.NegotiationTelnet)
		}
	}
	return &WSServer{
		BaseServer:   NewBaseServer(host, port, newHandler, configure),
		Path:         path,
		AllowOrigins: allowOrigins,
		Mon:          mon,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
			// Origin is enforced explicitly in serveHTTP against the
			// allow-list, with the spec's 403 close code; gorilla's own
			// origin check is disabled here to avoid rejecting before we
			// can send that code.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// SetTLSConfig switches StartServer to serve over TLS.
func (s *WSServer) SetTLSConfig(cfg *tls.Config) { s.tlsConfig = cfg }

// StartServer runs the HTTP/WebSocket listener until Shutdown closes it.
func (s *WSServer) StartServer() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveHTTP)
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	httpServer := &http.Server{Addr: addr, Handler: mux}
	s.SetCloser(closerFunc(httpServer.Close))
	s.SetRunning(true)

	var err error
	if s.tlsConfig != nil {
		httpServer.TLSConfig = s.tlsConfig
		var ln net.Listener
		ln, err = net.Listen("tcp", addr)
		if err == nil {
			err = httpServer.ServeTLS(ln, "", "")
		}
	} else {
		err = httpServer.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ws server: %w", err)
	}
	return nil
}

func (s *WSServer) serveHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws server: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	path := r.URL.Path
	isMonitorPath := s.Mon != nil && s.Mon.IsMonitorPath(path)

	if path != s.Path && !isMonitorPath {
		log.Printf("ws server: %v: %s", errs.ErrEndpointNotFound, path)
		closeWithCode(conn, websocket.CloseUnsupportedData, fmt.Sprintf("Endpoint %s not found", path))
		return
	}

	if len(s.AllowOrigins) > 0 && !containsString(s.AllowOrigins, "*") {
		origin := r.Header.Get("Origin")
		if !containsString(s.AllowOrigins, origin) {
			log.Printf("ws server: %v: %s", errs.ErrForbiddenOrigin, origin)
			closeWithCode(conn, closeCodeForbidden, "origin not allowed")
			return
		}
	}

	if isMonitorPath {
		s.Mon.HandleViewerConnection(conn)
		return
	}

	if s.atCapacity() {
		log.Printf("ws server: %v", errs.ErrCapacityExceeded)
		closeWithCode(conn, websocket.ClosePolicyViolation, "server at capacity")
		return
	}

	s.serveApplication(conn, r)
}

// serveApplication builds the reader/writer pair for one application
// session — monitorable when a monitor is configured, plain otherwise —
// and bounds its whole handle_client lifetime by ConnectionTimeout.
func (s *WSServer) serveApplication(conn *websocket.Conn, r *http.Request) {
	var rd transport.Reader
	var wr transport.Writer

	if s.Mon != nil {
		adapter := transport.NewMonitorableAdapter(conn, s.Mon, map[string]any{
			"peername":     conn.RemoteAddr().String(),
			"originalPath": r.URL.Path,
			"fullPath":     r.URL.RequestURI(),
		})
		rd, wr = adapter, adapter
	} else {
		rd = transport.NewWSReader(conn)
		wr = transport.NewWSWriter(conn)
	}

	done := make(chan struct{})
	go func() {
		s.HandleNewConnection(rd, wr)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.ConnectionTimeout):
		log.Printf("ws server: connection_timeout exceeded, forcing close")
		_ = wr.Close()
		<-done
	}
}

func closeWithCode(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

func containsString(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
