package telnet

import (
	"strings"
	"sync"
)

// TerminalInfo holds what a session has told us about its terminal: type,
// window size, and capabilities inferred from the type string.
type TerminalInfo struct {
	mu       sync.Mutex
	TermType string
	Width    int
	Height   int
	Color    bool
	Graphics bool
	UTF8     bool
	Received bool
}

const (
	defaultWidth  = 80
	defaultHeight = 24
	minWidth      = 10
	minHeight     = 5
)

// NewTerminalInfo returns a store with the documented defaults.
func NewTerminalInfo() *TerminalInfo {
	return &TerminalInfo{
		TermType: "UNKNOWN",
		Width:    defaultWidth,
		Height:   defaultHeight,
	}
}

// SetTerminalType records the reported terminal type and (re)infers
// capabilities from it, case-insensitively.
func (t *TerminalInfo) SetTerminalType(termType string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.TermType = termType
	lower := strings.ToLower(termType)
	t.Color = containsAny(lower, "color", "xterm", "256", "ansi")
	t.Graphics = containsAny(lower, "xterm", "vt100", "vt220", "vt3")
	t.UTF8 = containsAny(lower, "xterm", "utf", "ansi")
	t.Received = true
}

// SetWindowSize applies a NAWS-reported size, rejecting sub-minimum values
// (width<10 or height<5) and leaving the current size in place. Returns
// whether the new size was applied.
func (t *TerminalInfo) SetWindowSize(width, height int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if width < minWidth || height < minHeight {
		return false
	}
	t.Width = width
	t.Height = height
	t.Received = true
	return true
}

// Snapshot returns a copy of the current state.
func (t *TerminalInfo) Snapshot() TerminalInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := *t
	cp.mu = sync.Mutex{}
	return cp
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
