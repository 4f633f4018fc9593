package transport

import (
	"bytes"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/retroterm/sessiond/internal/errs"
)

// WSReader adapts a *websocket.Conn into the Reader contract. WebSockets
// deliver whole messages, not a byte stream, so the adapter buffers
// incoming frames and slices bytes/lines off the front as callers consume
// them.
type WSReader struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	buf    []byte
	closed bool
}

// NewWSReader wraps conn.
func NewWSReader(conn *websocket.Conn) *WSReader {
	return &WSReader{conn: conn}
}

// fetch blocks for the next WebSocket message (up to any deadline set via
// SetReadDeadline) and appends its payload to the buffer. Text frames
// arrive as UTF-8 bytes already; both text and binary frames are treated
// identically once buffered. A deadline-exceeded read surfaces as
// errs.ErrTimeout without marking the reader closed; any other read
// failure is a genuine disconnect.
func (r *WSReader) fetch() error {
	_, data, err := r.conn.ReadMessage()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return errs.ErrTimeout
		}
		r.closed = true
		return errs.ErrPeerClosed
	}
	r.buf = append(r.buf, data...)
	return nil
}

// SetReadDeadline forwards to the underlying connection, letting callers
// bound the next fetch the way they would a TCP read.
func (r *WSReader) SetReadDeadline(t time.Time) error {
	return r.conn.SetReadDeadline(t)
}

// Read returns up to n bytes (or everything buffered, when n is negative),
// fetching additional frames if the buffer is empty.
func (r *WSReader) Read(n int) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ferr error
	for len(r.buf) == 0 && !r.closed {
		if err := r.fetch(); err != nil {
			ferr = err
			break
		}
	}
	if len(r.buf) == 0 {
		if ferr != nil {
			return nil, ferr
		}
		return nil, errs.ErrPeerClosed
	}
	if n < 0 || n > len(r.buf) {
		n = len(r.buf)
	}
	out := r.buf[:n]
	r.buf = r.buf[n:]
	return out, nil
}

// ReadLine accumulates frames until an LF appears, returning everything up
// to and including it. A deadline-exceeded fetch returns errs.ErrTimeout
// immediately. On peer-closed it drains whatever remains in the buffer
// before reporting EOF.
func (r *WSReader) ReadLine() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if idx := bytes.IndexByte(r.buf, '\n'); idx >= 0 {
			line := r.buf[:idx+1]
			r.buf = r.buf[idx+1:]
			return line, nil
		}
		if r.closed {
			if len(r.buf) > 0 {
				out := r.buf
				r.buf = nil
				return out, nil
			}
			return nil, errs.ErrPeerClosed
		}
		if err := r.fetch(); err != nil {
			if errors.Is(err, errs.ErrTimeout) {
				return nil, err
			}
			// loop again: closed is now true, the drain path above fires
			continue
		}
	}
}

// AtEOF reports whether the peer has closed the connection and the buffer
// has been fully drained.
func (r *WSReader) AtEOF() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed && len(r.buf) == 0
}

// WSWriter adapts a *websocket.Conn into the Writer contract. Write
// schedules a background send; Drain is the synchronization point that
// awaits every send issued since the last Drain. A send failure marks the
// writer closed and is surfaced on the next Drain call.
type WSWriter struct {
	conn  *websocket.Conn
	wg    sync.WaitGroup
	wmu   sync.Mutex // serializes the underlying gorilla writes
	mu    sync.Mutex // guards closed/err/doneCh
	closed bool
	err    error
	doneCh chan struct{}
	once   sync.Once
}

// NewWSWriter wraps conn.
func NewWSWriter(conn *websocket.Conn) *WSWriter {
	return &WSWriter{conn: conn, doneCh: make(chan struct{})}
}

func (w *WSWriter) Write(p []byte) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return errs.ErrWriterFailed
	}
	w.mu.Unlock()

	w.wg.Add(1)
	msg := append([]byte(nil), p...)
	go func() {
		defer w.wg.Done()
		w.wmu.Lock()
		err := w.conn.WriteMessage(websocket.TextMessage, msg)
		w.wmu.Unlock()
		if err != nil {
			w.mu.Lock()
			w.err = err
			w.closed = true
			w.mu.Unlock()
		}
	}()
	return nil
}

// Drain awaits every pending send and surfaces the first failure, if any.
func (w *WSWriter) Drain() error {
	w.wg.Wait()
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return errs.ErrWriterFailed
	}
	return nil
}

func (w *WSWriter) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.once.Do(func() { close(w.doneCh) })
	return w.conn.Close()
}

// WaitClosed blocks until Close has been called.
func (w *WSWriter) WaitClosed() error {
	<-w.doneCh
	return nil
}

func (w *WSWriter) GetExtraInfo(name string, def any) any {
	switch name {
	case "peername":
		return addrOf(w.conn.RemoteAddr())
	case "sockname":
		return addrOf(w.conn.LocalAddr())
	default:
		return def
	}
}
