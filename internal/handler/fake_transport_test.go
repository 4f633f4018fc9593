package handler

import (
	"bytes"
	"sync"
	"time"

	"github.com/retroterm/sessiond/internal/errs"
)

// fakeReader is a transport.Reader backed by a flat byte buffer. Once the
// buffer is exhausted it returns afterEmpty (errs.ErrPeerClosed by default,
// errs.ErrTimeout to simulate a quiet interval in tests that drive a
// handler method directly rather than through the full read loop).
type fakeReader struct {
	mu         sync.Mutex
	data       []byte
	afterEmpty error
}

func newFakeReader(data string) *fakeReader {
	return &fakeReader{data: []byte(data), afterEmpty: errs.ErrPeerClosed}
}

func (f *fakeReader) Read(n int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.data) == 0 {
		return nil, f.afterEmpty
	}
	if n < 0 || n > len(f.data) {
		n = len(f.data)
	}
	out := f.data[:n]
	f.data = f.data[n:]
	return out, nil
}

func (f *fakeReader) ReadLine() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.data) == 0 {
		return nil, f.afterEmpty
	}
	idx := bytes.IndexByte(f.data, '\n')
	if idx < 0 {
		out := f.data
		f.data = nil
		return out, nil
	}
	out := f.data[:idx+1]
	f.data = f.data[idx+1:]
	return out, nil
}

func (f *fakeReader) AtEOF() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data) == 0
}

func (f *fakeReader) SetReadDeadline(time.Time) error { return nil }

// fakeWriter is a transport.Writer that records everything written.
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

func (f *fakeWriter) WaitClosed() error { return nil }

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
