package handler

import (
	"errors"
	"testing"

	"github.com/retroterm/sessiond/internal/errs"
)

func TestBaseHandlerHandleClientNotImplemented(t *testing.T) {
	h := NewBaseHandler(newFakeReader(""), &fakeWriter{})
	if err := h.HandleClient(); !errors.Is(err, errs.ErrNotImplemented) {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
}
