package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/retroterm/sessiond/internal/handler"
	"github.com/retroterm/sessiond/internal/transport"
)

func newTestWSServer(allowOrigins []string) (*WSServer, *httptest.Server) {
	newHandler := func(r transport.Reader, w transport.Writer) handler.Handler {
		return handler.NewLineHandler(r, w)
	}
	s := NewWSServer("127.0.0.1", 0, "/ws", allowOrigins, nil, newHandler)
	srv := httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	return s, srv
}

func TestWSServerWrongPathClosesWithUnsupportedData(t *testing.T) {
	_, srv := newTestWSServer(nil)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/wrong"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected a close error, got %v", err)
	}
	if closeErr.Code != websocket.CloseUnsupportedData {
		t.Fatalf("expected close code %d, got %d", websocket.CloseUnsupportedData, closeErr.Code)
	}
}

func TestWSServerOriginNotAllowed(t *testing.T) {
	_, srv := newTestWSServer([]string{"http://allowed"})
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := make(map[string][]string)
	header["Origin"] = []string{"http://other"}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected a close error, got %v", err)
	}
	if closeErr.Code != closeCodeForbidden {
		t.Fatalf("expected close code %d, got %d", closeCodeForbidden, closeErr.Code)
	}
}

func TestWSServerAllowedOriginServesApplication(t *testing.T) {
	_, srv := newTestWSServer([]string{"http://allowed"})
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := make(map[string][]string)
	header["Origin"] = []string{"http://allowed"}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("expected a welcome/prompt message, got error: %v", err)
	}
	if !strings.Contains(string(msg), "> ") {
		t.Fatalf("expected prompt in first message, got %q", msg)
	}
}
