// Package handler implements the connection-handler hierarchy: a base type
// holding the raw read/write/lifecycle primitives every handler shares, and
// three concrete handlers layered on top of it — line-oriented, raw
// character-oriented, and telnet-aware.
package handler

import (
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/retroterm/sessiond/internal/errs"
	"github.com/retroterm/sessiond/internal/transport"
)

// Handler is the contract internal/server drives a connection through.
type Handler interface {
	HandleClient() error
	Cleanup() error
	OnConnect() error
	OnDisconnect() error
	OnError(err error)
	SendLine(text string) error
	GetExtraInfo(name string, def any) any
}

// ServerAttacher is implemented by handlers that want a reference to the
// server that accepted them; create_handler calls SetServer only if the
// handler implements this.
type ServerAttacher interface {
	SetServer(server any)
}

// WelcomeAttacher is implemented by handlers with a configurable welcome
// message; create_handler calls SetWelcomeMessage only if the handler
// implements this.
type WelcomeAttacher interface {
	SetWelcomeMessage(message string)
}

// ModeSetter is implemented by handlers whose transport-level negotiation
// mode is decided by the server (the telnet-vs-simple sniff result).
type ModeSetter interface {
	SetMode(mode string)
}

// InitialDataSetter is implemented by handlers that accept bytes the server
// already consumed off the wire while sniffing the connection.
type InitialDataSetter interface {
	SetInitialData(data []byte)
}

// BaseHandler is the shared foundation of every handler: raw read/write
// primitives, running/ended state, the in-progress command buffer used by
// character-oriented handlers, and the connect/disconnect/error hooks.
type BaseHandler struct {
	Reader transport.Reader
	Writer transport.Writer

	Server         any
	WelcomeMessage string

	mu             sync.Mutex
	running        bool
	sessionEnded   bool
	currentCommand []rune
}

// NewBaseHandler wires a handler to its transport.
func NewBaseHandler(r transport.Reader, w transport.Writer) *BaseHandler {
	return &BaseHandler{Reader: r, Writer: w}
}

func (h *BaseHandler) SetServer(server any) { h.Server = server }
func (h *BaseHandler) SetWelcomeMessage(message string) { h.WelcomeMessage = message }

// HandleClient is the entry point concrete handlers override with their own
// read loop. The base implementation is intentionally abstract.
func (h *BaseHandler) HandleClient() error {
	return errs.ErrNotImplemented
}

func (h *BaseHandler) setRunning(v bool) {
	h.mu.Lock()
	h.running = v
	h.mu.Unlock()
}

// Running reports whether the handler's read loop should keep going.
func (h *BaseHandler) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// SessionEnded reports whether EndSession has already been called.
func (h *BaseHandler) SessionEnded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessionEnded
}

// ReadRaw reads up to n bytes (everything available when n is negative),
// bounding the read with timeout when the underlying reader supports
// deadlines and timeout is positive.
func (h *BaseHandler) ReadRaw(n int, timeout time.Duration) ([]byte, error) {
	if d, ok := h.Reader.(transport.Deadliner); ok && timeout > 0 {
		_ = d.SetReadDeadline(time.Now().Add(timeout))
	}
	return h.Reader.Read(n)
}

// ReadLineRaw reads bytes up to and including the next LF, bounded by
// timeout the same way ReadRaw is.
func (h *BaseHandler) ReadLineRaw(timeout time.Duration) ([]byte, error) {
	if d, ok := h.Reader.(transport.Deadliner); ok && timeout > 0 {
		_ = d.SetReadDeadline(time.Now().Add(timeout))
	}
	return h.Reader.ReadLine()
}

// SendRaw writes p and flushes it.
func (h *BaseHandler) SendRaw(p []byte) error {
	if err := h.Writer.Write(p); err != nil {
		return err
	}
	return h.Writer.Drain()
}

// SendLine writes text followed by CRLF.
func (h *BaseHandler) SendLine(text string) error {
	return h.SendRaw([]byte(text + "\r\n"))
}

// EndSession marks the session as ending and best-effort sends message (a
// failure to send is logged, never returned — the session is already on its
// way out).
func (h *BaseHandler) EndSession(message string) {
	h.mu.Lock()
	h.sessionEnded = true
	h.running = false
	h.mu.Unlock()
	if message == "" {
		return
	}
	if err := h.SendLine(message); err != nil {
		log.Printf("handler: best-effort goodbye failed: %v", err)
	}
}

// Cleanup closes the writer. Idempotent — safe to call more than once.
func (h *BaseHandler) Cleanup() error {
	if err := h.Writer.Close(); err != nil {
		return err
	}
	return h.Writer.WaitClosed()
}

func (h *BaseHandler) OnConnect() error {
	log.Printf("handler: connected")
	return nil
}

func (h *BaseHandler) OnDisconnect() error {
	log.Printf("handler: disconnected")
	return nil
}

func (h *BaseHandler) OnError(err error) {
	log.Printf("handler: error: %v", err)
}

// GetExtraInfo proxies to the underlying writer (peername/sockname, etc.).
func (h *BaseHandler) GetExtraInfo(name string, def any) any {
	return h.Writer.GetExtraInfo(name, def)
}

// AppendToCommand appends r to the in-progress command buffer.
func (h *BaseHandler) AppendToCommand(r rune) {
	h.mu.Lock()
	h.currentCommand = append(h.currentCommand, r)
	h.mu.Unlock()
}

// PopFromCommand removes the last rune from the in-progress command buffer,
// a no-op if it is already empty.
func (h *BaseHandler) PopFromCommand() {
	h.mu.Lock()
	if len(h.currentCommand) > 0 {
		h.currentCommand = h.currentCommand[:len(h.currentCommand)-1]
	}
	h.mu.Unlock()
}

// CurrentCommand returns the in-progress command buffer as a string.
func (h *BaseHandler) CurrentCommand() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return string(h.currentCommand)
}

// ClearCommand empties the in-progress command buffer.
func (h *BaseHandler) ClearCommand() {
	h.mu.Lock()
	h.currentCommand = h.currentCommand[:0]
	h.mu.Unlock()
}

// isExitCommand reports whether line is one of the recognized exit words,
// case-insensitively.
func isExitCommand(line string) bool {
	switch strings.ToLower(line) {
	case "quit", "exit", "bye":
		return true
	}
	return false
}

// stripCRLF trims every trailing CR and LF byte.
func stripCRLF(line []byte) string {
	return strings.TrimRight(string(line), "\r\n")
}

// errIsTimeout/errIsPeerClosed are small readability wrappers used across
// the handler implementations' read loops.
func errIsTimeout(err error) bool    { return errors.Is(err, errs.ErrTimeout) }
func errIsPeerClosed(err error) bool { return errors.Is(err, errs.ErrPeerClosed) }
