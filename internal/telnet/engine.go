package telnet

import (
	"encoding/binary"
	"log"

	"github.com/retroterm/sessiond/internal/errs"
)

// Sender is the minimal transport surface the negotiation engine needs:
// write bytes, then flush them. transport.Writer satisfies this directly.
type Sender interface {
	Write(p []byte) error
	Drain() error
}

// Engine drives telnet option negotiation for one session: it parses
// inbound IAC frames, updates the option registry, emits replies, and
// feeds terminal-type/NAWS subnegotiations into the terminal-info store.
type Engine struct {
	out      Sender
	Options  *OptionRegistry
	Terminal *TerminalInfo
}

// NewEngine wires a sender to a fresh option registry and terminal-info
// store.
func NewEngine(out Sender) *Engine {
	return &Engine{
		out:      out,
		Options:  NewOptionRegistry(),
		Terminal: NewTerminalInfo(),
	}
}

func (e *Engine) send(p []byte) error {
	if err := e.out.Write(p); err != nil {
		return err
	}
	return e.out.Drain()
}

// SendCommand emits IAC cmd opt.
func (e *Engine) SendCommand(cmd, opt byte) error {
	return e.send([]byte{IAC, cmd, opt})
}

// SendSubnegotiation emits IAC SB opt data IAC SE.
func (e *Engine) SendSubnegotiation(opt byte, data []byte) error {
	frame := make([]byte, 0, len(data)+5)
	frame = append(frame, IAC, SB, opt)
	frame = append(frame, data...)
	frame = append(frame, IAC, SE)
	return e.send(frame)
}

// RequestTerminalType asks the peer to send its terminal type.
func (e *Engine) RequestTerminalType() error {
	return e.SendSubnegotiation(OptTerminal, []byte{TerminalSend})
}

// SendInitialNegotiations emits the server's opening offer, in order:
// WILL ECHO, WILL SGA, DO SGA, DO TERMINAL, DO NAWS, WONT LINEMODE.
func (e *Engine) SendInitialNegotiations() error {
	frame := []byte{
		IAC, WILL, OptEcho,
		IAC, WILL, OptSGA,
		IAC, DO, OptSGA,
		IAC, DO, OptTerminal,
		IAC, DO, OptNAWS,
		IAC, WONT, OptLinemode,
	}
	e.Options.MarkPendingLocal(OptEcho)
	e.Options.MarkPendingLocal(OptSGA)
	e.Options.MarkPendingRemote(OptSGA)
	e.Options.MarkPendingRemote(OptTerminal)
	e.Options.MarkPendingRemote(OptNAWS)
	return e.send(frame)
}

// ProcessNegotiation applies the DO/DONT/WILL/WONT response table for opt
// and emits whatever reply it calls for.
func (e *Engine) ProcessNegotiation(cmd, opt byte) error {
	switch opt {
	case OptEcho:
		return e.processEcho(cmd)
	case OptSGA:
		return e.processSGA(cmd)
	case OptTerminal:
		return e.processTerminal(cmd)
	case OptNAWS:
		return e.processNAWS(cmd)
	case OptLinemode:
		return e.processLinemode(cmd)
	default:
		return e.processOther(cmd, opt)
	}
}

func (e *Engine) processEcho(cmd byte) error {
	switch cmd {
	case DO:
		e.Options.SetLocal(OptEcho, true)
		return e.SendCommand(WILL, OptEcho)
	case DONT:
		e.Options.SetLocal(OptEcho, false)
		return e.SendCommand(WONT, OptEcho)
	case WILL:
		e.Options.SetRemote(OptEcho, false)
		return e.SendCommand(DONT, OptEcho)
	case WONT:
		e.Options.SetRemote(OptEcho, false)
	}
	return nil
}

func (e *Engine) processSGA(cmd byte) error {
	switch cmd {
	case DO:
		e.Options.SetLocal(OptSGA, true)
		return e.SendCommand(WILL, OptSGA)
	case DONT:
		e.Options.SetLocal(OptSGA, false)
		return e.SendCommand(WONT, OptSGA)
	case WILL:
		e.Options.SetRemote(OptSGA, true)
		return e.SendCommand(DO, OptSGA)
	case WONT:
		e.Options.SetRemote(OptSGA, false)
		return e.SendCommand(DONT, OptSGA)
	}
	return nil
}

func (e *Engine) processTerminal(cmd byte) error {
	switch cmd {
	case DO:
		e.Options.SetLocal(OptTerminal, false)
		return e.SendCommand(WONT, OptTerminal)
	case DONT:
		e.Options.SetLocal(OptTerminal, false)
	case WILL:
		e.Options.SetRemote(OptTerminal, true)
		return e.RequestTerminalType()
	case WONT:
		e.Options.SetRemote(OptTerminal, false)
	}
	return nil
}

func (e *Engine) processNAWS(cmd byte) error {
	switch cmd {
	case DO:
		e.Options.SetLocal(OptNAWS, false)
		return e.SendCommand(WONT, OptNAWS)
	case DONT:
		e.Options.SetLocal(OptNAWS, false)
	case WILL:
		e.Options.SetRemote(OptNAWS, true)
	case WONT:
		e.Options.SetRemote(OptNAWS, false)
	}
	return nil
}

// processLinemode deliberately departs from the other options: on WILL it
// flips remote state without replying. Preserved exactly per spec (open
// question #2) rather than "fixed" to be symmetric.
func (e *Engine) processLinemode(cmd byte) error {
	switch cmd {
	case DO:
		e.Options.SetLocal(OptLinemode, false)
		return e.SendCommand(WONT, OptLinemode)
	case DONT:
		e.Options.SetLocal(OptLinemode, false)
	case WILL:
		e.Options.SetRemote(OptLinemode, true)
	case WONT:
		e.Options.SetRemote(OptLinemode, false)
	}
	return nil
}

func (e *Engine) processOther(cmd, opt byte) error {
	switch cmd {
	case DO:
		return e.SendCommand(WONT, opt)
	case DONT:
		e.Options.SetLocal(opt, false)
	case WILL:
		return e.SendCommand(DONT, opt)
	case WONT:
		e.Options.SetRemote(opt, false)
	}
	return nil
}

// ProcessSubnegotiation dispatches a decoded IAC SB opt data IAC SE frame.
// Malformed payloads are logged and discarded.
func (e *Engine) ProcessSubnegotiation(opt byte, data []byte) {
	switch opt {
	case OptTerminal:
		if len(data) < 1 || data[0] != TerminalIs {
			log.Printf("telnet: %v: TERMINAL subnegotiation: %x", errs.ErrMalformedProtocol, data)
			return
		}
		e.Terminal.SetTerminalType(string(data[1:]))
	case OptNAWS:
		if len(data) != 4 {
			log.Printf("telnet: %v: NAWS subnegotiation: %x", errs.ErrMalformedProtocol, data)
			return
		}
		width := int(binary.BigEndian.Uint16(data[0:2]))
		height := int(binary.BigEndian.Uint16(data[2:4]))
		e.Terminal.SetWindowSize(width, height)
	default:
		log.Printf("telnet: ignoring subnegotiation for option %d", opt)
	}
}

// ScanAndFilter walks data left to right, feeding every IAC negotiation and
// subnegotiation frame it finds into the engine and returning the remaining
// plain bytes (with escaped IAC IAC collapsed to one IAC). A trailing
// incomplete IAC frame is returned as carry rather than consumed, so the
// caller can prepend it to the next chunk and scan again; already-processed
// bytes are never rescanned, so a frame is never applied twice.
func (e *Engine) ScanAndFilter(data []byte) (clean, carry []byte) {
	i := 0
	for i < len(data) {
		if data[i] != IAC {
			clean = append(clean, data[i])
			i++
			continue
		}
		if i+1 >= len(data) {
			return clean, data[i:]
		}
		switch data[i+1] {
		case SB:
			opt, sbdata, consumed, ok := ParseSubnegotiation(data[i:])
			if !ok {
				return clean, data[i:]
			}
			e.ProcessSubnegotiation(opt, sbdata)
			i += consumed
		case DO, DONT, WILL, WONT:
			cmd, opt, consumed, ok := ParseNegotiation(data[i:])
			if !ok {
				return clean, data[i:]
			}
			if err := e.ProcessNegotiation(cmd, opt); err != nil {
				log.Printf("telnet: negotiation reply failed: %v", err)
			}
			i += consumed
		case IAC:
			clean = append(clean, IAC)
			i += 2
		default:
			i += 2
		}
	}
	return clean, nil
}
