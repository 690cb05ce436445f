package telnet

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Telnet opcodes
const (
	// EOR - End Of Record. TN3270 uses IAC EOR to terminate every datastream record, in both
	// directions.
	EOR byte = 239
	// SE - Subnegotiation End. IAC SE is used to mark the end of a subnegotiation command
	SE byte = 240
	// NOP - No-Op. IAC NOP doesn't indicate anything at all, and this library ignores it.
	NOP byte = 241
	// DM - Data Mark
	DM byte = 242
	// BRK - Break
	BRK byte = 243
	// IP - Interrupt Process
	IP byte = 244
	// AO - Abort Output
	AO byte = 245
	// AYT - Are You There
	AYT byte = 246
	// EC - Erase Character
	EC byte = 247
	// EL - Erase Line
	EL byte = 248
	// GA - Go Ahead
	GA byte = 249
	// SB - Subnegotiation Begin. IAC SB is used to indicate the beginning of a subnegotiation
	// command. These are telopt-specific commands that have telopt-specific meanings.
	SB byte = 250
	// WILL - IAC WILL is used to indicate that this terminal intends to activate a telopt
	WILL byte = 251
	// WONT - IAC WONT is used to indicate that this terminal refuses to activate a telopt
	WONT byte = 252
	// DO - IAC DO is used to request that the remote terminal activates a telopt
	DO byte = 253
	// DONT - IAC DONT is used to demand that the remote terminal do not activate a telopt
	DONT byte = 254
	// IAC - This opcode indicates the beginning of a new command
	IAC byte = 255
)

var commandCodes = map[byte]string{
	EOR:  "EOR",
	SE:   "SE",
	NOP:  "NOP",
	DM:   "DM",
	BRK:  "BRK",
	IP:   "IP",
	AO:   "AO",
	AYT:  "AYT",
	EC:   "EC",
	EL:   "EL",
	GA:   "GA",
	SB:   "SB",
	WILL: "WILL",
	WONT: "WONT",
	DO:   "DO",
	DONT: "DONT",
	IAC:  "IAC",
}

// TelOptCode - each telopt has a unique identification number between 0 and 255
type TelOptCode byte

// Command is a struct that indicates some sort of IAC command either received from
// or sent to the remote. Subnegotiations, which come in the form of IAC SB <bytes> IAC SE,
// are represented as a single command object with the OpCode of SB.
type Command struct {
	// OpCode is the code that comes after IAC in this command.
	OpCode byte
	// Option indicates which telopt this command is referring to, if the command has one.
	// IAC WILL/WONT/DO/DONT/SB are always followed by a byte indicating a telopt.
	Option TelOptCode
	// Subnegotiation contains the unescaped bytes, if any, that came between IAC SB <option>
	// and IAC SE.  For non-SB commands, this slice is empty.
	Subnegotiation []byte
}

// HasOption indicates whether the opcode of this command is followed by an option byte
func (c Command) HasOption() bool {
	return c.OpCode == WILL || c.OpCode == WONT || c.OpCode == DO || c.OpCode == DONT || c.OpCode == SB
}

// IsActivateNegotiation indicates whether this command is a negotiation requesting activation
// of a telopt (DO/WILL).
func (c Command) IsActivateNegotiation() bool {
	return c.OpCode == DO || c.OpCode == WILL
}

// IsNegotiation indicates whether this command is one of DO/DONT/WILL/WONT
func (c Command) IsNegotiation() bool {
	return c.OpCode == DO || c.OpCode == DONT || c.OpCode == WILL || c.OpCode == WONT
}

// Reject produces a new command rejecting this one (WONT/DONT) if this command is
// an activate negotiation command (DO/WILL)
func (c Command) Reject() Command {
	var newOpCode byte
	switch c.OpCode {
	case DO:
		newOpCode = WONT
	case WILL:
		newOpCode = DONT
	default:
		return Command{OpCode: NOP}
	}

	return Command{OpCode: newOpCode, Option: c.Option}
}

// Accept produces a new command accepting this one (WILL/DO) if this command is
// an activate negotiation command (DO/WILL)
func (c Command) Accept() Command {
	var newOpCode byte
	switch c.OpCode {
	case DO:
		newOpCode = WILL
	case WILL:
		newOpCode = DO
	default:
		return Command{OpCode: NOP}
	}

	return Command{OpCode: newOpCode, Option: c.Option}
}

// Bytes produces the wire form of the command. 255s inside the subnegotiation are doubled.
func (c Command) Bytes() []byte {
	size := 2
	if c.HasOption() {
		size++
	}

	if c.OpCode == SB {
		size += len(c.Subnegotiation) + 2
	}

	b := make([]byte, 0, size)
	b = append(b, IAC, c.OpCode)

	if c.HasOption() {
		b = append(b, byte(c.Option))
	}

	if c.OpCode == SB {
		b = append(b, EscapeIAC(c.Subnegotiation)...)
		b = append(b, IAC, SE)
	}

	return b
}

// String produces a legible version of the command, such as "IAC DO 40"
func (c Command) String() string {
	return CommandStream(c.Bytes())
}

// ParseCommand parses a complete command, beginning with IAC, from its wire form
func ParseCommand(data []byte) (Command, error) {
	if len(data) == 0 || data[0] != IAC {
		return Command{}, fmt.Errorf("telnet: command did not begin with IAC: %q", CommandStream(data))
	}

	if len(data) < 2 {
		return Command{}, errors.New("telnet: command was just a standalone IAC with no opcode")
	}

	_, validOpcode := commandCodes[data[1]]
	if !validOpcode || data[1] == IAC {
		return Command{}, fmt.Errorf("telnet: command did not have valid opcode: %q", CommandStream(data))
	}

	if data[1] != WILL && data[1] != WONT && data[1] != DO && data[1] != DONT && data[1] != SB {
		return Command{
			OpCode: data[1],
		}, nil
	}

	if len(data) < 3 {
		return Command{}, fmt.Errorf("telnet: command did not contain parameters: %q", CommandStream(data))
	}

	if data[1] != SB {
		return Command{
			OpCode: data[1],
			Option: TelOptCode(data[2]),
		}, nil
	}

	if len(data) < 5 || data[len(data)-2] != IAC || data[len(data)-1] != SE {
		return Command{}, fmt.Errorf("telnet: subnegotiation command did not end with IAC SE: %q", CommandStream(data))
	}

	return Command{
		OpCode:         data[1],
		Option:         TelOptCode(data[2]),
		Subnegotiation: UnescapeIAC(data[3 : len(data)-2]),
	}, nil
}

// EscapeIAC doubles every 255 in the data so that it may be sent as literal data
func EscapeIAC(data []byte) []byte {
	escaped := make([]byte, 0, len(data))
	for _, b := range data {
		escaped = append(escaped, b)
		if b == IAC {
			escaped = append(escaped, IAC)
		}
	}

	return escaped
}

// UnescapeIAC pares doubled 255s down to a single 255
func UnescapeIAC(data []byte) []byte {
	unescaped := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		unescaped = append(unescaped, data[i])
		if data[i] == IAC && i+1 < len(data) && data[i+1] == IAC {
			i++
		}
	}

	return unescaped
}

// CommandStream renders bytes with telnet opcodes spelled out, which is useful for logging
func CommandStream(b []byte) string {
	var sb strings.Builder

	for i := 0; i < len(b); i++ {
		if i > 0 {
			sb.WriteRune(' ')
		}

		code, hasCode := commandCodes[b[i]]
		if !hasCode || (i > 0 && b[i-1] != IAC && b[i] != IAC) {
			sb.WriteString(strconv.Itoa(int(b[i])))
		} else {
			sb.WriteString(code)
		}
	}

	return sb.String()
}
