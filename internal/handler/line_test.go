package handler

import (
	"strings"
	"testing"
)

func TestLineHandlerEchoesAndPrompts(t *testing.T) {
	r := newFakeReader("hello\r\nquit\r\n")
	w := &fakeWriter{}
	h := NewLineHandler(r, w)

	if err := h.HandleClient(); err != nil {
		t.Fatalf("HandleClient: %v", err)
	}

	out := w.all()
	if !strings.Contains(out, "You entered: hello") {
		t.Errorf("expected echo of hello, got %q", out)
	}
	if !strings.Contains(out, "Goodbye!") {
		t.Errorf("expected goodbye on quit, got %q", out)
	}
	if !w.closed {
		t.Error("expected writer closed on cleanup")
	}
}

func TestLineHandlerCustomCallback(t *testing.T) {
	r := newFakeReader("ping\r\nbye\r\n")
	w := &fakeWriter{}
	h := NewLineHandler(r, w)

	var seen []string
	h.OnCommandSubmitted = func(line string) error {
		seen = append(seen, line)
		return nil
	}

	if err := h.HandleClient(); err != nil {
		t.Fatalf("HandleClient: %v", err)
	}
	if len(seen) != 1 || seen[0] != "ping" {
		t.Fatalf("expected callback invoked once with ping, got %v", seen)
	}
}

func TestLineHandlerWelcomeMessage(t *testing.T) {
	r := newFakeReader("quit\r\n")
	w := &fakeWriter{}
	h := NewLineHandler(r, w)
	h.WelcomeMessage = "Hi there"

	if err := h.HandleClient(); err != nil {
		t.Fatalf("HandleClient: %v", err)
	}
	if !strings.HasPrefix(w.all(), "Hi there\r\n") {
		t.Errorf("expected welcome message first, got %q", w.all())
	}
}
