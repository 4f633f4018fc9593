package transport

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/retroterm/sessiond/internal/errs"
)

var testUpgrader = websocket.Upgrader{}

func dialTestServer(t *testing.T, handler func(*websocket.Conn)) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return clientConn, func() {
		clientConn.Close()
		srv.Close()
	}
}

func TestWSReaderReadLineAcrossFrames(t *testing.T) {
	serverDone := make(chan *WSReader, 1)
	client, cleanup := dialTestServer(t, func(conn *websocket.Conn) {
		r := NewWSReader(conn)
		serverDone <- r
	})
	defer cleanup()

	client.WriteMessage(websocket.TextMessage, []byte("hel"))
	client.WriteMessage(websocket.TextMessage, []byte("lo\n"))

	r := <-serverDone
	line, err := r.ReadLine()
	if err != nil {
		t.Fatal(err)
	}
	if string(line) != "hello\n" {
		t.Fatalf("got %q", line)
	}
}

func TestWSReaderReadDeadlineExceeded(t *testing.T) {
	serverDone := make(chan *WSReader, 1)
	_, cleanup := dialTestServer(t, func(conn *websocket.Conn) {
		serverDone <- NewWSReader(conn)
	})
	defer cleanup()

	r := <-serverDone
	if err := r.SetReadDeadline(time.Now().Add(50 * time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	_, err := r.Read(-1)
	if !errors.Is(err, errs.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if r.AtEOF() {
		t.Fatal("a timed-out read must not mark the reader closed")
	}
}

func TestWSWriterWritesReachPeer(t *testing.T) {
	serverConnCh := make(chan *websocket.Conn, 1)
	client, cleanup := dialTestServer(t, func(conn *websocket.Conn) {
		serverConnCh <- conn
		// keep the handler alive long enough for the test to use conn
		time.Sleep(200 * time.Millisecond)
	})
	defer cleanup()

	serverConn := <-serverConnCh
	w := NewWSWriter(serverConn)
	if err := w.Write([]byte("ping")); err != nil {
		t.Fatal(err)
	}
	if err := w.Drain(); err != nil {
		t.Fatal(err)
	}

	client.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := client.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "ping" {
		t.Fatalf("got %q", data)
	}
}
