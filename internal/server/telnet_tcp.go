package server

import (
	"fmt"
	"log"
	"net"
	"time"

	"github.com/retroterm/sessiond/internal/handler"
	"github.com/retroterm/sessiond/internal/session"
	"github.com/retroterm/sessiond/internal/telnet"
	"github.com/retroterm/sessiond/internal/transport"
)

// sniffTimeout bounds the initial read used to decide telnet-vs-simple mode.
const sniffTimeout = 1 * time.Second

// sniffBudget is the largest chunk read while sniffing.
const sniffBudget = 64

// TelnetTCPServer specializes TCPServer: it sniffs the first bytes of each
// connection to decide whether the peer is speaking telnet (first byte IAC)
// or a plain line protocol, and carries over whatever it already read as
// the handler's initial data.
type TelnetTCPServer struct {
	*BaseServer
}

// NewTelnetTCPServer wires a TelnetTCPServer with no static handler
// configuration — mode and initial data are set per connection after the
// sniff, not by a shared configure closure.
func NewTelnetTCPServer(host string, port int, newHandler func(transport.Reader, transport.Writer) handler.Handler) *TelnetTCPServer {
	return &TelnetTCPServer{BaseServer: NewBaseServer(host, port, newHandler, nil)}
}

// StartServer binds a TCP listener and serves connections until Shutdown
// closes it.
func (s *TelnetTCPServer) StartServer() error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.Host, s.Port))
	if err != nil {
		return fmt.Errorf("telnet tcp server: listen: %w", err)
	}
	s.SetCloser(ln)
	s.SetRunning(true)

	for s.Running() {
		conn, err := ln.Accept()
		if err != nil {
			if !s.Running() {
				return nil
			}
			log.Printf("telnet tcp server: accept error: %v", err)
			continue
		}
		go s.serve(conn)
	}
	return nil
}

func (s *TelnetTCPServer) serve(conn net.Conn) {
	r := transport.NewTCPReader(conn)
	w := transport.NewTCPWriter(conn)

	mode, initial := sniffMode(conn, r)
	s.admitSniffedConnection(r, w, mode, initial)
}

// sniffMode reads up to sniffBudget bytes with a short deadline to decide
// whether the peer opened with an IAC byte. Whatever bytes it reads are
// returned as initial, since a real read already consumed them off the
// wire — they must reach the handler, not be discarded.
func sniffMode(conn net.Conn, r transport.Reader) (mode string, initial []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(sniffTimeout))
	data, err := r.Read(sniffBudget)
	_ = conn.SetReadDeadline(time.Time{})

	if err != nil || len(data) == 0 {
		return session.NegotiationSimple, nil
	}
	if data[0] == telnet.IAC {
		return session.NegotiationTelnet, data
	}
	return session.NegotiationSimple, data
}
