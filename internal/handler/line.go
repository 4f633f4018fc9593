package handler

import (
	"time"

	"github.com/retroterm/sessiond/internal/transport"
)

// LineHandler is the default line-oriented application handler: it sends a
// welcome banner and a prompt, then loops reading whole lines and handing
// each to OnCommandSubmitted until an exit word or a read failure ends the
// session.
type LineHandler struct {
	*BaseHandler

	// OnCommandSubmitted is invoked with each submitted line (exit words
	// are intercepted before reaching it). Replaceable by embedding
	// applications; defaults to an echo.
	OnCommandSubmitted func(line string) error

	ReadTimeout time.Duration
}

// NewLineHandler wires a LineHandler with the default echo callback.
func NewLineHandler(r transport.Reader, w transport.Writer) *LineHandler {
	lh := &LineHandler{
		BaseHandler: NewBaseHandler(r, w),
		ReadTimeout: 5 * time.Minute,
	}
	lh.OnCommandSubmitted = lh.defaultOnCommandSubmitted
	return lh
}

func (h *LineHandler) defaultOnCommandSubmitted(line string) error {
	return h.SendLine("You entered: " + line)
}

// SendWelcome sends the welcome message, if any, then the first prompt.
func (h *LineHandler) SendWelcome() error {
	if h.WelcomeMessage != "" {
		if err := h.SendLine(h.WelcomeMessage); err != nil {
			return err
		}
	}
	return h.ShowPrompt()
}

// ShowPrompt writes the "> " prompt.
func (h *LineHandler) ShowPrompt() error {
	return h.SendRaw([]byte("> "))
}

// ProcessLine handles one submitted line: exit words end the session,
// anything else goes to OnCommandSubmitted followed by a fresh prompt.
// Returns false once the session should stop reading.
func (h *LineHandler) ProcessLine(line string) (bool, error) {
	if isExitCommand(line) {
		h.EndSession("Goodbye!")
		return false, nil
	}
	if err := h.OnCommandSubmitted(line); err != nil {
		return false, err
	}
	if err := h.ShowPrompt(); err != nil {
		return false, err
	}
	return true, nil
}

// HandleClient runs the welcome/prompt/read loop described above.
func (h *LineHandler) HandleClient() error {
	h.setRunning(true)
	if err := h.OnConnect(); err != nil {
		h.OnError(err)
	}
	defer func() {
		if err := h.OnDisconnect(); err != nil {
			h.OnError(err)
		}
		if err := h.Cleanup(); err != nil {
			h.OnError(err)
		}
	}()

	if err := h.SendWelcome(); err != nil {
		return err
	}

	for h.Running() {
		raw, err := h.ReadLineRaw(h.ReadTimeout)
		if err != nil {
			if errIsTimeout(err) {
				continue
			}
			if errIsPeerClosed(err) {
				return nil
			}
			return err
		}
		cont, err := h.ProcessLine(stripCRLF(raw))
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return nil
}
