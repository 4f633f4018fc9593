package handler

import (
	"bytes"
	"time"

	"github.com/retroterm/sessiond/internal/session"
	"github.com/retroterm/sessiond/internal/telnet"
	"github.com/retroterm/sessiond/internal/transport"
)

// TelnetHandler composes the telnet negotiation engine with a line-oriented
// read loop. Mode decides whether negotiation runs at all: a TelnetTCPServer
// sniffs the first byte of a connection and sets Mode to either
// session.NegotiationTelnet or session.NegotiationSimple before calling
// HandleClient.
type TelnetHandler struct {
	*BaseHandler

	Engine *telnet.Engine

	Mode        string
	LineMode    bool
	InitialData []byte

	OnCommandSubmitted func(line string) error

	// typedAhead holds already-filtered clean bytes the negotiation phase
	// (or a prior read) buffered but hasn't delivered yet.
	typedAhead []byte
	// iacCarry holds the raw tail of an IAC frame split across two reads;
	// it is rescanned exactly once, when the rest of the frame arrives.
	iacCarry []byte

	negotiationQuiet  time.Duration
	negotiationBudget int
	readTimeout       time.Duration
}

// NewTelnetHandler wires a TelnetHandler in session.NegotiationSimple mode
// by default; a server that sniffs telnet traffic calls SetMode to switch
// it to session.NegotiationTelnet before HandleClient runs.
func NewTelnetHandler(r transport.Reader, w transport.Writer) *TelnetHandler {
	th := &TelnetHandler{
		BaseHandler:       NewBaseHandler(r, w),
		Engine:            telnet.NewEngine(w),
		Mode:              session.NegotiationSimple,
		negotiationQuiet:  200 * time.Millisecond,
		negotiationBudget: 4096,
		readTimeout:       5 * time.Minute,
	}
	th.OnCommandSubmitted = th.defaultOnCommandSubmitted
	return th
}

func (h *TelnetHandler) defaultOnCommandSubmitted(line string) error {
	return h.SendLine("You entered: " + line)
}

// SetMode chooses the negotiation mode the server decided for this
// connection.
func (h *TelnetHandler) SetMode(mode string) { h.Mode = mode }

// SetInitialData stashes bytes the server already read off the wire while
// sniffing the connection, so they aren't lost.
func (h *TelnetHandler) SetInitialData(data []byte) { h.InitialData = data }

// ShowPrompt writes the "> " prompt.
func (h *TelnetHandler) ShowPrompt() error {
	return h.SendRaw([]byte("> "))
}

func (h *TelnetHandler) sendWelcome() error {
	if h.WelcomeMessage == "" {
		// Transparent mode: no banner, just the prompt.
		return h.ShowPrompt()
	}
	if err := h.SendLine(h.WelcomeMessage); err != nil {
		return err
	}
	return h.ShowPrompt()
}

// ProcessLine handles one submitted line. Unlike LineHandler it does not
// auto-emit a prompt; the telnet read loop emits it after ProcessLine
// returns, so a quit doesn't print a dangling prompt first.
func (h *TelnetHandler) ProcessLine(line string) (bool, error) {
	if isExitCommand(stripCRLF([]byte(line))) {
		h.EndSession("Goodbye!")
		return false, nil
	}
	return true, h.OnCommandSubmitted(line)
}

// negotiate sends the opening offer and consumes inbound IAC traffic until
// a quiet interval passes with nothing new, or the byte budget runs out.
// Non-IAC bytes seen during negotiation are not discarded: they land in
// typedAhead for the read loop to deliver as the session's first input.
func (h *TelnetHandler) negotiate() error {
	if err := h.Engine.SendInitialNegotiations(); err != nil {
		return err
	}
	if len(h.InitialData) > 0 {
		h.scan(h.InitialData)
		h.InitialData = nil
	}
	budget := h.negotiationBudget
	for budget > 0 {
		chunk, err := h.ReadRaw(-1, h.negotiationQuiet)
		if err != nil {
			if errIsTimeout(err) {
				break
			}
			return err
		}
		budget -= len(chunk)
		h.scan(chunk)
	}
	return nil
}

// scan feeds data (plus any pending iacCarry) through the negotiation
// engine, appending the clean bytes it yields to typedAhead and stashing
// any incomplete trailing IAC frame back into iacCarry.
func (h *TelnetHandler) scan(data []byte) {
	combined := append(h.iacCarry, data...)
	h.iacCarry = nil
	clean, carry := h.Engine.ScanAndFilter(combined)
	h.typedAhead = append(h.typedAhead, clean...)
	h.iacCarry = carry
}

// readLineWithTelnet returns the next telnet-filtered line (CR/LF
// stripped), reading and scanning as many raw chunks as it takes to either
// complete a pending IAC frame or see an unescaped LF.
func (h *TelnetHandler) readLineWithTelnet(timeout time.Duration) (string, error) {
	buf := h.typedAhead
	h.typedAhead = nil
	for {
		if idx := bytes.IndexByte(buf, '\n'); idx >= 0 {
			line := buf[:idx+1]
			h.typedAhead = append(h.typedAhead, buf[idx+1:]...)
			return stripCRLF(line), nil
		}
		chunk, err := h.ReadLineRaw(timeout)
		if err != nil {
			return "", err
		}
		combined := append(h.iacCarry, chunk...)
		h.iacCarry = nil
		clean, carry := h.Engine.ScanAndFilter(combined)
		h.iacCarry = carry
		buf = append(buf, clean...)
	}
}

// readMixedMode returns whatever clean bytes are available right now,
// preserving embedded CR/LF literally instead of splitting on them.
func (h *TelnetHandler) readMixedMode(timeout time.Duration) (string, error) {
	if len(h.typedAhead) > 0 {
		out := h.typedAhead
		h.typedAhead = nil
		return string(out), nil
	}
	chunk, err := h.ReadRaw(-1, timeout)
	if err != nil {
		return "", err
	}
	combined := append(h.iacCarry, chunk...)
	h.iacCarry = nil
	clean, carry := h.Engine.ScanAndFilter(combined)
	h.iacCarry = carry
	return string(clean), nil
}

// HandleClient runs negotiation (telnet mode only) followed by a read loop
// whose submode depends on whether the peer's LINEMODE negotiation left it
// in line mode or mixed (character-at-a-time) mode.
func (h *TelnetHandler) HandleClient() error {
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

	telnetMode := h.Mode == session.NegotiationTelnet
	if telnetMode {
		if err := h.negotiate(); err != nil {
			if errIsPeerClosed(err) {
				return nil
			}
			return err
		}
		h.LineMode = h.LineMode || h.Engine.Options.IsRemoteEnabled(telnet.OptLinemode)
	} else if len(h.InitialData) > 0 {
		h.typedAhead = append(h.typedAhead, h.InitialData...)
		h.InitialData = nil
	}

	if err := h.sendWelcome(); err != nil {
		return err
	}

	for h.Running() {
		var line string
		var err error
		skipEmpty := false

		switch {
		case telnetMode && h.LineMode:
			line, err = h.readLineWithTelnet(h.readTimeout)
		case telnetMode:
			line, err = h.readMixedMode(h.readTimeout)
			skipEmpty = true
		default:
			var raw []byte
			raw, err = h.ReadLineRaw(h.readTimeout)
			if err == nil {
				line = stripCRLF(raw)
			}
		}

		if err != nil {
			if errIsTimeout(err) {
				continue
			}
			if errIsPeerClosed(err) {
				return nil
			}
			return err
		}

		if skipEmpty && line == "" {
			continue
		}

		cont, err := h.ProcessLine(line)
		if err != nil {
			return err
		}
		if !cont {
			break
		}
		if err := h.ShowPrompt(); err != nil {
			return err
		}
	}
	return nil
}
