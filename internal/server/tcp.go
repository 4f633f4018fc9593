package server

import (
	"fmt"
	"log"
	"net"

	"github.com/retroterm/sessiond/internal/handler"
	"github.com/retroterm/sessiond/internal/session"
	"github.com/retroterm/sessiond/internal/transport"
)

// TCPServer serves a plain line-oriented protocol over TCP: every
// connection's handler is configured as session.NegotiationSimple with no
// initial data, regardless of what bytes the peer actually sends.
type TCPServer struct {
	*BaseServer
}

// NewTCPServer wires a TCPServer whose handlers are always simple-mode.
func NewTCPServer(host string, port int, newHandler func(transport.Reader, transport.Writer) handler.Handler) *TCPServer {
	configure := func(h handler.Handler) {
		if ms, ok := h.(handler.ModeSetter); ok {
			ms.SetMode(session.NegotiationSimple)
		}
		if ids, ok := h.(handler.InitialDataSetter); ok {
			ids.SetInitialData(nil)
		}
	}
	return &TCPServer{BaseServer: NewBaseServer(host, port, newHandler, configure)}
}

// StartServer binds a TCP listener and serves connections until Shutdown
// closes it.
func (s *TCPServer) StartServer() error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.Host, s.Port))
	if err != nil {
		return fmt.Errorf("tcp server: listen: %w", err)
	}
	s.SetCloser(ln)
	s.SetRunning(true)

	for s.Running() {
		conn, err := ln.Accept()
		if err != nil {
			if !s.Running() {
				return nil
			}
			log.Printf("tcp server: accept error: %v", err)
			continue
		}
		go s.serve(conn)
	}
	return nil
}

func (s *TCPServer) serve(conn net.Conn) {
	r := transport.NewTCPReader(conn)
	w := transport.NewTCPWriter(conn)
	s.HandleNewConnection(r, w)
}
