package telopts

import (
	"errors"
	"fmt"

	"github.com/moodclient/tn3270/telnet"
)

const (
	ttypeIS byte = iota
	ttypeSEND
)

// TTYPE is a TERMINAL-TYPE subnegotiation. Basic TN3270 (RFC 1576) sessions identify the
// terminal model with TERMINAL-TYPE instead of the TN3270E DEVICE-TYPE exchange.
type TTYPE struct {
	// Send is true for the remote's SEND request, false for an IS reply
	Send     bool
	Terminal string
}

// ParseTTYPE decodes the bytes between IAC SB TERMINAL-TYPE and IAC SE
func ParseTTYPE(subnegotiation []byte) (TTYPE, error) {
	if len(subnegotiation) < 1 {
		return TTYPE{}, errors.New("ttype: received empty subnegotiation")
	}

	switch subnegotiation[0] {
	case ttypeSEND:
		return TTYPE{Send: true}, nil
	case ttypeIS:
		return TTYPE{Terminal: string(subnegotiation[1:])}, nil
	}

	return TTYPE{}, fmt.Errorf("ttype: unknown subnegotiation: %+v", subnegotiation)
}

// Command builds the subnegotiation command for this request
func (t TTYPE) Command() telnet.Command {
	if t.Send {
		return telnet.Command{
			OpCode:         telnet.SB,
			Option:         CodeTTYPE,
			Subnegotiation: []byte{ttypeSEND},
		}
	}

	terminalBytes := make([]byte, 0, len(t.Terminal)+1)
	terminalBytes = append(terminalBytes, ttypeIS)
	terminalBytes = append(terminalBytes, []byte(t.Terminal)...)

	return telnet.Command{
		OpCode:         telnet.SB,
		Option:         CodeTTYPE,
		Subnegotiation: terminalBytes,
	}
}

func (t TTYPE) String() string {
	if t.Send {
		return "SEND"
	}

	return "IS " + t.Terminal
}
