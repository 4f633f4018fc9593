package server

import (
	"net"
	"testing"
	"time"

	"github.com/retroterm/sessiond/internal/session"
	"github.com/retroterm/sessiond/internal/telnet"
	"github.com/retroterm/sessiond/internal/transport"
)

func TestSniffModeDetectsTelnetFirstByte(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go client.Write([]byte{telnet.IAC, telnet.WILL, telnet.OptEcho})

	r := transport.NewTCPReader(server)
	mode, initial := sniffMode(server, r)
	if mode != session.NegotiationTelnet {
		t.Fatalf("expected telnet mode, got %q", mode)
	}
	if len(initial) == 0 || initial[0] != telnet.IAC {
		t.Fatalf("expected sniffed bytes carried as initial data, got %v", initial)
	}
}

func TestSniffModeFallsBackToSimple(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go client.Write([]byte("hello"))

	r := transport.NewTCPReader(server)
	mode, initial := sniffMode(server, r)
	if mode != session.NegotiationSimple {
		t.Fatalf("expected simple mode, got %q", mode)
	}
	if string(initial) != "hello" {
		t.Fatalf("expected sniffed bytes carried as initial data, got %q", initial)
	}
}

func TestSniffModeTimesOutToSimple(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	_ = time.Millisecond // sniffTimeout is 1s; no data is ever written here.

	r := transport.NewTCPReader(server)
	mode, initial := sniffMode(server, r)
	if mode != session.NegotiationSimple {
		t.Fatalf("expected simple mode on timeout, got %q", mode)
	}
	if initial != nil {
		t.Fatalf("expected no initial data on timeout, got %v", initial)
	}
}
