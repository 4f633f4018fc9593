package monitor

import (
	"log"

	"github.com/gorilla/websocket"
)

// viewerCommand is the shape of both incoming commands this protocol
// understands.
type viewerCommand struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// HandleViewerConnection registers conn as a viewer, sends the initial
// active_sessions snapshot, then loops processing watch_session/
// stop_watching commands until the connection closes. Errors are swallowed;
// disconnect just unwinds the loop and cleans up subscriptions.
func (m *Monitor) HandleViewerConnection(conn *websocket.Conn) {
	v := newViewer(conn)

	m.mu.Lock()
	m.allViewers[v] = struct{}{}
	m.mu.Unlock()
	defer m.removeViewer(v)

	snapshot := m.activeSessionsSnapshot()
	if err := v.sendJSON(map[string]any{
		"type":     "active_sessions",
		"sessions": snapshot,
	}); err != nil {
		return
	}

	for {
		var cmd viewerCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		switch cmd.Type {
		case "watch_session":
			m.watch(v, cmd.SessionID)
			_ = v.sendJSON(map[string]any{
				"type":       "watch_response",
				"session_id": cmd.SessionID,
				"status":     "success",
			})
		case "stop_watching":
			m.stopWatching(v, cmd.SessionID)
			_ = v.sendJSON(map[string]any{
				"type":       "watch_response",
				"session_id": cmd.SessionID,
				"status":     "stopped",
			})
		default:
			log.Printf("monitor: ignoring unknown viewer command %q", cmd.Type)
		}
	}
}

func (m *Monitor) watch(v *Viewer, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sessionViewers[sessionID]
	if !ok {
		set = make(map[*Viewer]struct{})
		m.sessionViewers[sessionID] = set
	}
	set[v] = struct{}{}
}

func (m *Monitor) stopWatching(v *Viewer, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sessionViewers[sessionID]
	if !ok {
		return
	}
	delete(set, v)
	if len(set) == 0 {
		delete(m.sessionViewers, sessionID)
	}
}
