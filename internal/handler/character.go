package handler

import (
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/retroterm/sessiond/internal/termcode"
	"github.com/retroterm/sessiond/internal/transport"
)

// CharacterHandler reads and dispatches one rune at a time instead of whole
// lines: Ctrl-C ends the session, Enter submits the accumulated command,
// Backspace/Delete erases the last rune (echoing the terminal erase
// sequence), and any other printable rune is appended and echoed.
type CharacterHandler struct {
	*BaseHandler

	// OnCommandSubmitted is invoked with the accumulated command once
	// Enter is pressed (exit words are intercepted before reaching it).
	OnCommandSubmitted func(command string) error

	ReadTimeout time.Duration
}

// NewCharacterHandler wires a CharacterHandler with the default echo
// callback.
func NewCharacterHandler(r transport.Reader, w transport.Writer) *CharacterHandler {
	ch := &CharacterHandler{
		BaseHandler: NewBaseHandler(r, w),
		ReadTimeout: 5 * time.Minute,
	}
	ch.OnCommandSubmitted = ch.defaultOnCommandSubmitted
	return ch
}

func (h *CharacterHandler) defaultOnCommandSubmitted(command string) error {
	return h.SendLine("You entered: " + command)
}

// SendWelcome announces character mode and shows the first prompt.
func (h *CharacterHandler) SendWelcome() error {
	if h.WelcomeMessage != "" {
		if err := h.SendLine(h.WelcomeMessage); err != nil {
			return err
		}
	} else {
		if err := h.SendLine("Welcome to Character Mode"); err != nil {
			return err
		}
	}
	return h.ShowPrompt()
}

// ShowPrompt writes the "> " prompt.
func (h *CharacterHandler) ShowPrompt() error {
	return h.SendRaw([]byte("> "))
}

// readCharacter decodes one UTF-8 rune from the reader, one byte at a time.
// An invalid lead byte decodes to utf8.RuneError (U+FFFD) immediately,
// matching utf8.FullRune's treatment of invalid encodings as "full".
func (h *CharacterHandler) readCharacter() (rune, error) {
	buf := make([]byte, 0, utf8.UTFMax)
	for {
		b, err := h.ReadRaw(1, h.ReadTimeout)
		if err != nil {
			return 0, err
		}
		if len(b) == 0 {
			continue
		}
		buf = append(buf, b[0])
		if utf8.FullRune(buf) {
			r, _ := utf8.DecodeRune(buf)
			return r, nil
		}
		if len(buf) >= utf8.UTFMax {
			return utf8.RuneError, nil
		}
	}
}

// ProcessCharacter applies one decoded rune to the in-progress command
// buffer and returns false once the session should stop reading.
func (h *CharacterHandler) ProcessCharacter(c rune) (bool, error) {
	switch {
	case c == 0x03: // Ctrl-C
		h.EndSession("^C - Closing connection.")
		return false, nil
	case c == '\r' || c == '\n':
		return h.HandleEnter()
	case c == 0x7f || c == 0x08: // Delete / Backspace
		if len(h.CurrentCommand()) > 0 {
			h.PopFromCommand()
			if err := h.SendRaw(termcode.EraseChar()); err != nil {
				return false, err
			}
		}
		return true, nil
	default:
		if unicode.IsPrint(c) {
			h.AppendToCommand(c)
			if err := h.SendRaw([]byte(string(c))); err != nil {
				return false, err
			}
		}
		return true, nil
	}
}

// HandleEnter submits the accumulated command and resets the buffer.
func (h *CharacterHandler) HandleEnter() (bool, error) {
	if err := h.SendRaw([]byte("\r\n")); err != nil {
		return false, err
	}
	cmd := h.CurrentCommand()
	if isExitCommand(cmd) {
		h.EndSession("Goodbye!")
		return false, nil
	}
	if err := h.OnCommandSubmitted(cmd); err != nil {
		return false, err
	}
	h.ClearCommand()
	if err := h.ShowPrompt(); err != nil {
		return false, err
	}
	return true, nil
}

// HandleClient runs the welcome/prompt/per-rune read loop described above.
func (h *CharacterHandler) HandleClient() error {
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
		c, err := h.readCharacter()
		if err != nil {
			if errIsTimeout(err) {
				continue
			}
			if errIsPeerClosed(err) {
				return nil
			}
			return err
		}
		cont, err := h.ProcessCharacter(c)
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return nil
}
