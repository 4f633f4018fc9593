package server

import (
	"sync"

	"github.com/retroterm/sessiond/internal/handler"
)

// fakeHandler is a minimal handler.Handler test double.
type fakeHandler struct {
	mu             sync.Mutex
	handleClientFn func() error
	sendLineErr    error
	lines          []string
	cleanupCalls   int
	errorsSeen     []error
	mode           string
	initialData    []byte
	server         any
	welcome        string
}

func (f *fakeHandler) HandleClient() error {
	if f.handleClientFn != nil {
		return f.handleClientFn()
	}
	return nil
}

func (f *fakeHandler) Cleanup() error {
	f.mu.Lock()
	f.cleanupCalls++
	f.mu.Unlock()
	return nil
}

func (f *fakeHandler) OnConnect() error    { return nil }
func (f *fakeHandler) OnDisconnect() error { return nil }

func (f *fakeHandler) OnError(err error) {
	f.mu.Lock()
	f.errorsSeen = append(f.errorsSeen, err)
	f.mu.Unlock()
}

func (f *fakeHandler) SendLine(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendLineErr != nil {
		return f.sendLineErr
	}
	f.lines = append(f.lines, text)
	return nil
}

func (f *fakeHandler) GetExtraInfo(name string, def any) any { return def }

func (f *fakeHandler) SetServer(s any)             { f.server = s }
func (f *fakeHandler) SetWelcomeMessage(m string)  { f.welcome = m }
func (f *fakeHandler) SetMode(mode string)         { f.mode = mode }
func (f *fakeHandler) SetInitialData(data []byte)  { f.initialData = data }

var _ handler.Handler = (*fakeHandler)(nil)
var _ handler.ServerAttacher = (*fakeHandler)(nil)
var _ handler.WelcomeAttacher = (*fakeHandler)(nil)
var _ handler.ModeSetter = (*fakeHandler)(nil)
var _ handler.InitialDataSetter = (*fakeHandler)(nil)

// fakeReader is an empty transport.Reader test double; the server tests
// exercise admission/shutdown logic, not byte-level reading.
type fakeReader struct{}

func (fakeReader) Read(int) ([]byte, error)  { return nil, nil }
func (fakeReader) ReadLine() ([]byte, error) { return nil, nil }
func (fakeReader) AtEOF() bool               { return true }

// fakeWriter is a transport.Writer test double that records everything
// written and whether Close was called.
type fakeWriter struct {
	mu     sync.Mutex
	writes [][]byte
	closed bool
}

func (f *fakeWriter) Write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, append([]byte(nil), p...))
	return nil
}

func (f *fakeWriter) Drain() error { return nil }

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeWriter) WaitClosed() error                     { return nil }
func (f *fakeWriter) GetExtraInfo(name string, def any) any { return def }

func (f *fakeWriter) all() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []byte
	for _, w := range f.writes {
		out = append(out, w...)
	}
	return string(out)
}
