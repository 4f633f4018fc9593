package transport

import (
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// SessionMonitor is the narrow slice of the session monitor a monitorable
// adapter needs: register/unregister the session and fan out its traffic.
// Defined here (rather than importing the monitor package) to avoid a
// transport<->monitor import cycle; *monitor.Monitor satisfies it.
type SessionMonitor interface {
	RegisterSession(id string, clientInfo map[string]any)
	UnregisterSession(id string)
	BroadcastSessionEvent(id, eventType string, data map[string]any)
}

// MonitorableAdapter wraps a WebSocket connection's reader/writer pair and
// mirrors every inbound byte string and outbound write to the session
// monitor, identified by a freshly generated session id.
type MonitorableAdapter struct {
	reader    *WSReader
	writer    *WSWriter
	sessionID string
	mon       SessionMonitor
}

// NewMonitorableAdapter wraps conn, generates a session id, and registers
// the session with mon.
func NewMonitorableAdapter(conn *websocket.Conn, mon SessionMonitor, clientInfo map[string]any) *MonitorableAdapter {
	a := &MonitorableAdapter{
		reader:    NewWSReader(conn),
		writer:    NewWSWriter(conn),
		sessionID: uuid.NewString(),
		mon:       mon,
	}
	if mon != nil {
		mon.RegisterSession(a.sessionID, clientInfo)
	}
	return a
}

// SessionID returns the id this adapter registered under.
func (a *MonitorableAdapter) SessionID() string { return a.sessionID }

func (a *MonitorableAdapter) Read(n int) ([]byte, error) {
	data, err := a.reader.Read(n)
	a.mirrorInbound(data)
	return data, err
}

func (a *MonitorableAdapter) ReadLine() ([]byte, error) {
	data, err := a.reader.ReadLine()
	a.mirrorInbound(data)
	return data, err
}

func (a *MonitorableAdapter) AtEOF() bool { return a.reader.AtEOF() }

// mirrorInbound broadcasts a client_input event, suppressing whitespace-only
// data.
func (a *MonitorableAdapter) mirrorInbound(data []byte) {
	if len(data) == 0 || a.mon == nil {
		return
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return
	}
	a.mon.BroadcastSessionEvent(a.sessionID, "client_input", map[string]any{"text": text})
}

func (a *MonitorableAdapter) Write(p []byte) error {
	err := a.writer.Write(p)
	if a.mon != nil {
		a.mon.BroadcastSessionEvent(a.sessionID, "server_message", map[string]any{"text": string(p)})
	}
	return err
}

func (a *MonitorableAdapter) Drain() error { return a.writer.Drain() }

func (a *MonitorableAdapter) Close() error {
	err := a.writer.Close()
	if a.mon != nil {
		a.mon.UnregisterSession(a.sessionID)
	}
	return err
}

func (a *MonitorableAdapter) WaitClosed() error { return a.writer.WaitClosed() }

func (a *MonitorableAdapter) GetExtraInfo(name string, def any) any {
	return a.writer.GetExtraInfo(name, def)
}
