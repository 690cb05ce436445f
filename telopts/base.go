package telopts

import (
	"strconv"

	"github.com/moodclient/tn3270/telnet"
)

// Option codes used by TN3270 and TN3270E sessions
const (
	CodeTRANSMITBINARY telnet.TelOptCode = 0
	CodeTIMINGMARK     telnet.TelOptCode = 6
	CodeTTYPE          telnet.TelOptCode = 24
	CodeEOR            telnet.TelOptCode = 25
	CodeTN3270E        telnet.TelOptCode = 40
)

var optionNames = map[telnet.TelOptCode]string{
	CodeTRANSMITBINARY: "TRANSMIT-BINARY",
	CodeTIMINGMARK:     "TIMING-MARK",
	CodeTTYPE:          "TERMINAL-TYPE",
	CodeEOR:            "EOR",
	CodeTN3270E:        "TN3270E",
}

// Name returns the short name used to refer to an option
func Name(code telnet.TelOptCode) string {
	name, hasName := optionNames[code]
	if !hasName {
		return "? Unknown Option " + strconv.Itoa(int(code)) + "?"
	}

	return name
}

// CommandString converts a command into a legible form, spelling out the option and, for
// the subnegotiations this package understands, the subnegotiation contents. This is useful
// when logging a received command object.
func CommandString(c telnet.Command) string {
	if !c.HasOption() {
		return c.String()
	}

	opCode := telnet.CommandStream([]byte{telnet.IAC, c.OpCode})
	str := opCode + " " + Name(c.Option)

	if c.OpCode != telnet.SB {
		return str
	}

	var payload string
	switch c.Option {
	case CodeTN3270E:
		sub, err := ParseTN3270E(c.Subnegotiation)
		if err == nil {
			payload = sub.String()
		}
	case CodeTTYPE:
		sub, err := ParseTTYPE(c.Subnegotiation)
		if err == nil {
			payload = sub.String()
		}
	}

	if payload == "" {
		payload = telnet.CommandStream(c.Subnegotiation)
	}

	return str + " " + payload + " IAC SE"
}
