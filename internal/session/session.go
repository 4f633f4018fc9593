// Package session defines the Session record described in the core data
// model: the identity and lifecycle state of one client connection, from
// accept through cleanup.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Transport kinds a session can be running over.
const (
	TransportTCPRaw    = "tcp-raw"
	TransportTCPTelnet = "tcp-telnet"
	TransportWSPlain   = "ws-plain"
	TransportWSTLS     = "ws-tls"
)

// Negotiation modes.
const (
	NegotiationTelnet = "telnet"
	NegotiationSimple = "simple"
)

// Interaction modes.
const (
	InteractionLine      = "line"
	InteractionCharacter = "character"
)

// Status values.
const (
	StatusConnecting = "connecting"
	StatusConnected  = "connected"
	StatusEnding     = "ending"
	StatusClosed     = "closed"
)

// Session is the identity and lifecycle record for one client connection.
type Session struct {
	ID              string
	PeerAddr        string
	Transport       string
	NegotiationMode string
	InteractionMode string
	Start           time.Time
	Status          string
	IsNewest        bool
}

// New allocates a session with a fresh 128-bit random textual id.
func New(peerAddr, transport string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		PeerAddr:  peerAddr,
		Transport: transport,
		Status:    StatusConnecting,
		Start:     time.Now(),
	}
}
