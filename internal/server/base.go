// Package server implements the accept-loop/admission-control layer shared
// by every transport: a base server holding the connection registry and
// lifecycle, specialized into a plain TCP server, a telnet-sniffing TCP
// server, and a WebSocket server (plain and TLS).
package server

import (
	"io"
	"log"
	"sync"
	"time"

	"github.com/retroterm/sessiond/internal/errs"
	"github.com/retroterm/sessiond/internal/handler"
	"github.com/retroterm/sessiond/internal/transport"
)

// BaseServer holds the connection registry and admission/shutdown logic
// common to every transport. newHandler and configure are set once by each
// concrete server's constructor — Go has no virtual dispatch through
// embedding, so per-transport handler setup (telnet mode, initial data) is
// threaded through as closures rather than overridden methods.
type BaseServer struct {
	Host              string
	Port              int
	WelcomeMessage    string
	MaxConnections    int // <= 0 means unlimited
	ConnectionTimeout time.Duration
	GraceTimeout      time.Duration

	newHandler func(transport.Reader, transport.Writer) handler.Handler
	configure  func(handler.Handler)

	mu                sync.Mutex
	running           bool
	activeConnections map[handler.Handler]struct{}
	closer            io.Closer
}

// NewBaseServer wires a server to its handler factory. configure may be nil;
// when set, it runs after the server/welcome-message injection on every
// handler this server creates.
func NewBaseServer(host string, port int, newHandler func(transport.Reader, transport.Writer) handler.Handler, configure func(handler.Handler)) *BaseServer {
	return &BaseServer{
		Host:              host,
		Port:              port,
		ConnectionTimeout: 5 * time.Minute,
		GraceTimeout:      2 * time.Second,
		newHandler:        newHandler,
		configure:         configure,
		activeConnections: make(map[handler.Handler]struct{}),
	}
}

// CreateHandler constructs a handler over (r, w), attaching server/
// welcome-message to it if it accepts them, then running this server's
// configure hook if any.
func (s *BaseServer) CreateHandler(r transport.Reader, w transport.Writer) handler.Handler {
	h := s.newHandler(r, w)
	if sa, ok := h.(handler.ServerAttacher); ok {
		sa.SetServer(s)
	}
	if wa, ok := h.(handler.WelcomeAttacher); ok {
		wa.SetWelcomeMessage(s.WelcomeMessage)
	}
	if s.configure != nil {
		s.configure(h)
	}
	return h
}

// HandleNewConnection is the default admission path: reject over capacity,
// otherwise construct a handler, register it, run it to completion, and
// remove it. Telnet TCP's per-connection mode sniff bypasses this in favor
// of admitSniffedConnection, which shares the same admit/run/remove core.
func (s *BaseServer) HandleNewConnection(r transport.Reader, w transport.Writer) {
	if s.atCapacity() {
		s.rejectForCapacity(w)
		return
	}
	h := s.CreateHandler(r, w)
	s.runHandler(h)
}

// admitSniffedConnection lets TelnetTCPServer inject a per-connection mode
// and initial-data payload after construction, something a static configure
// closure can't do since the sniff result differs per connection.
func (s *BaseServer) admitSniffedConnection(r transport.Reader, w transport.Writer, mode string, initial []byte) {
	if s.atCapacity() {
		s.rejectForCapacity(w)
		return
	}
	h := s.CreateHandler(r, w)
	if ms, ok := h.(handler.ModeSetter); ok {
		ms.SetMode(mode)
	}
	if ids, ok := h.(handler.InitialDataSetter); ok {
		ids.SetInitialData(initial)
	}
	s.runHandler(h)
}

func (s *BaseServer) runHandler(h handler.Handler) {
	s.addConnection(h)
	defer s.removeConnection(h)
	if err := h.HandleClient(); err != nil {
		h.OnError(err)
	}
}

func (s *BaseServer) rejectForCapacity(w transport.Writer) {
	log.Printf("server: rejecting connection: %v", errs.ErrCapacityExceeded)
	_ = w.Write([]byte("Server is at maximum capacity. Please try again later.\r\n"))
	_ = w.Drain()
	_ = w.Close()
}

func (s *BaseServer) atCapacity() bool {
	if s.MaxConnections <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConnections) >= s.MaxConnections
}

func (s *BaseServer) addConnection(h handler.Handler) {
	s.mu.Lock()
	s.activeConnections[h] = struct{}{}
	s.mu.Unlock()
}

func (s *BaseServer) removeConnection(h handler.Handler) {
	s.mu.Lock()
	delete(s.activeConnections, h)
	s.mu.Unlock()
}

// SetCloser records the listener (or http.Server) Shutdown should close.
func (s *BaseServer) SetCloser(c io.Closer) {
	s.mu.Lock()
	s.closer = c
	s.mu.Unlock()
}

func (s *BaseServer) SetRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}

func (s *BaseServer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SendGlobalMessage writes text to every active connection's handler,
// logging (not propagating) any per-handler failure.
func (s *BaseServer) SendGlobalMessage(text string) {
	s.mu.Lock()
	handlers := make([]handler.Handler, 0, len(s.activeConnections))
	for h := range s.activeConnections {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		if err := h.SendLine(text); err != nil {
			log.Printf("server: send_global_message failed for a connection: %v", err)
		}
	}
}

// Shutdown stops accepting new connections, closes the listener, then calls
// Cleanup (which closes the writer) on every in-flight handler at once and
// waits up to graceTimeout for those calls to return. Handlers are not given
// a period to finish on their own before their writers are closed.
func (s *BaseServer) Shutdown(graceTimeout time.Duration) error {
	s.SetRunning(false)

	s.mu.Lock()
	closer := s.closer
	handlers := make([]handler.Handler, 0, len(s.activeConnections))
	for h := range s.activeConnections {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	if closer != nil {
		if err := closer.Close(); err != nil {
			log.Printf("server: error closing listener: %v", err)
		}
	}

	s.waitForConnectionsToClose(handlers, graceTimeout)

	s.mu.Lock()
	s.activeConnections = make(map[handler.Handler]struct{})
	s.mu.Unlock()
	return nil
}

func (s *BaseServer) waitForConnectionsToClose(handlers []handler.Handler, timeout time.Duration) {
	if len(handlers) == 0 {
		return
	}
	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for _, h := range handlers {
			wg.Add(1)
			go func(h handler.Handler) {
				defer wg.Done()
				if err := h.Cleanup(); err != nil {
					log.Printf("server: cleanup during shutdown failed: %v", err)
				}
			}(h)
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		log.Printf("server: grace timeout exceeded, remaining connections were force-closed")
	}
}

// GetServerInfo reports the server's current configuration and load.
func (s *BaseServer) GetServerInfo() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]any{
		"host":               s.Host,
		"port":               s.Port,
		"connections":        len(s.activeConnections),
		"running":            s.running,
		"max_connections":    s.MaxConnections,
		"connection_timeout": s.ConnectionTimeout,
	}
}
