// Package monitor implements the out-of-band session observation fabric: a
// registry of active sessions and subscribed viewers, JSON event fan-out
// over WebSocket, and the small watch/stop-watching control protocol.
// Delivery to viewers is best-effort — a viewer whose send fails is simply
// dropped, never allowed to block or crash the originating session.
package monitor

import (
	"log"
	"sync"
)

// SessionRecord is the monitor's view of one active session: just enough
// to describe it to a viewer, independent of the richer session.Session
// the owning handler holds.
type SessionRecord struct {
	ID       string         `json:"id"`
	Client   map[string]any `json:"client"`
	Status   string         `json:"status"`
	IsNewest bool           `json:"is_newest"`
}

// jsonWriter is the slice of *websocket.Conn a Viewer needs to send; kept
// as an interface so the registry/broadcast logic can be unit tested
// without a real socket.
type jsonWriter interface {
	WriteJSON(v any) error
}

// Viewer is a connected WebSocket observer. Writes are serialized because
// gorilla/websocket forbids concurrent writers on one connection.
type Viewer struct {
	conn jsonWriter
	mu   sync.Mutex
}

func newViewer(conn jsonWriter) *Viewer {
	return &Viewer{conn: conn}
}

func (v *Viewer) sendJSON(msg any) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.conn.WriteJSON(msg)
}

// Monitor holds the registry described in the data model: active sessions,
// per-session viewer subscriptions, and the set of all connected viewers.
type Monitor struct {
	mu             sync.Mutex
	path           string
	activeSessions map[string]*SessionRecord
	sessionViewers map[string]map[*Viewer]struct{}
	allViewers     map[*Viewer]struct{}
}

// New returns a monitor that accepts viewer connections at path.
func New(path string) *Monitor {
	return &Monitor{
		path:           path,
		activeSessions: make(map[string]*SessionRecord),
		sessionViewers: make(map[string]map[*Viewer]struct{}),
		allViewers:     make(map[*Viewer]struct{}),
	}
}

// IsMonitorPath reports whether path is this monitor's configured endpoint.
func (m *Monitor) IsMonitorPath(path string) bool {
	return path == m.path
}

// RegisterSession records a newly started session, flips the previously
// newest session's flag off, and broadcasts session_started to every
// viewer.
func (m *Monitor) RegisterSession(id string, clientInfo map[string]any) {
	m.mu.Lock()
	for _, rec := range m.activeSessions {
		rec.IsNewest = false
	}
	rec := &SessionRecord{ID: id, Client: clientInfo, Status: "connected", IsNewest: true}
	m.activeSessions[id] = rec
	viewers := m.snapshotAllViewersLocked()
	m.mu.Unlock()

	m.broadcast(viewers, map[string]any{
		"type":    "session_started",
		"session": rec,
	})
}

// UnregisterSession removes a session from the registry and broadcasts
// session_ended to every viewer and to that session's dedicated viewers.
func (m *Monitor) UnregisterSession(id string) {
	m.mu.Lock()
	rec, ok := m.activeSessions[id]
	dedicated := m.snapshotSessionViewersLocked(id)
	delete(m.activeSessions, id)
	delete(m.sessionViewers, id)
	all := m.snapshotAllViewersLocked()
	m.mu.Unlock()

	if !ok {
		return
	}
	rec.Status = "closed"
	event := map[string]any{
		"type":    "session_ended",
		"session": rec,
	}
	m.broadcast(all, event)
	m.broadcast(dedicated, event)
}

// BroadcastSessionEvent fans out one client_input/server_message/etc. event
// to the session's dedicated viewers only.
func (m *Monitor) BroadcastSessionEvent(id, eventType string, data map[string]any) {
	m.mu.Lock()
	viewers := m.snapshotSessionViewersLocked(id)
	m.mu.Unlock()
	if len(viewers) == 0 {
		return
	}
	m.broadcast(viewers, map[string]any{
		"type":       eventType,
		"session_id": id,
		"data":       data,
	})
}

// broadcast sends msg to every viewer in the snapshot, swallowing errors
// and dropping any viewer whose send fails from every subscription set.
func (m *Monitor) broadcast(viewers []*Viewer, msg any) {
	for _, v := range viewers {
		if err := v.sendJSON(msg); err != nil {
			log.Printf("monitor: dropping viewer after send error: %v", err)
			m.removeViewer(v)
		}
	}
}

func (m *Monitor) snapshotAllViewersLocked() []*Viewer {
	out := make([]*Viewer, 0, len(m.allViewers))
	for v := range m.allViewers {
		out = append(out, v)
	}
	return out
}

func (m *Monitor) snapshotSessionViewersLocked(id string) []*Viewer {
	set := m.sessionViewers[id]
	out := make([]*Viewer, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	return out
}

// activeSessionsSnapshot returns a point-in-time copy of the current
// session records, safe to hand to a new viewer without aliasing state
// that later registrations/unregistrations would mutate.
func (m *Monitor) activeSessionsSnapshot() []SessionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SessionRecord, 0, len(m.activeSessions))
	for _, rec := range m.activeSessions {
		out = append(out, *rec)
	}
	return out
}

func (m *Monitor) removeViewer(v *Viewer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.allViewers, v)
	for id, set := range m.sessionViewers {
		delete(set, v)
		if len(set) == 0 {
			delete(m.sessionViewers, id)
		}
	}
}
