package tn3270

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/moodclient/tn3270/charset"
	"github.com/moodclient/tn3270/telopts"
)

// Model is a 3278 display model: its screen dimensions and the number that appears in the
// device type, as in IBM-3278-2-E
type Model struct {
	Number  int
	Rows    int
	Columns int
}

var (
	Model2 = Model{Number: 2, Rows: 24, Columns: 80}
	Model3 = Model{Number: 3, Rows: 32, Columns: 80}
	Model4 = Model{Number: 4, Rows: 43, Columns: 80}
	Model5 = Model{Number: 5, Rows: 27, Columns: 132}
)

// DeviceType returns the name sent to the host during negotiation. Extended device types
// advertise support for structured fields and extended attributes.
func (m Model) DeviceType(extended bool) string {
	if extended {
		return fmt.Sprintf("IBM-3278-%d-E", m.Number)
	}

	return fmt.Sprintf("IBM-3278-%d", m.Number)
}

func (m Model) String() string {
	return fmt.Sprintf("model %d (%dx%d)", m.Number, m.Rows, m.Columns)
}

// DialFunc opens the transport for Dial. It has the signature of net.Dialer.DialContext,
// and can be replaced to wrap the connection, for instance in TLS.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

const defaultNegotiationTimeout = 30 * time.Second

type TerminalConfig struct {
	// Model determines the screen dimensions and the device type requested from the host.
	// The zero value is Model2.
	Model Model

	// BasicDeviceType requests IBM-3278-n instead of IBM-3278-n-E. Hosts will not send
	// structured fields or extended attributes to a basic device.
	BasicDeviceType bool

	// LUName is sent with DEVICE-TYPE REQUEST CONNECT to ask for a specific logical unit.
	// When it is empty, the host assigns one, and the assigned name can be retrieved with
	// Terminal.DeviceName after the terminal is created.
	LUName string

	// CodepageName is the host codepage used to translate the datastream, as a registered
	// IANA name such as IBM037 or IBM1047. It defaults to IBM037.
	CodepageName string

	// Functions lists the TN3270E functions to request from the host. When it is nil,
	// RESPONSES is requested. An empty non-nil slice requests no functions.
	Functions []telopts.Function

	// AllowFallback permits a host that does not offer TN3270E to negotiate a basic TN3270
	// session using TERMINAL-TYPE, EOR and BINARY instead. Otherwise, a host that does not
	// send DO TN3270E fails negotiation.
	AllowFallback bool

	// NegotiationTimeout bounds the option negotiation that takes place before the terminal
	// is returned. It defaults to 30 seconds.
	NegotiationTimeout time.Duration

	// Dial is used by Dial to open the connection. It defaults to a zero net.Dialer.
	Dial DialFunc

	// EventHooks is a set of callbacks that the terminal will call when the relevant
	// event occurs.  You can register additional callbacks after creation with
	// Terminal.Register* methods.
	EventHooks EventHooks
}

func (c TerminalConfig) withDefaults() TerminalConfig {
	if c.Model == (Model{}) {
		c.Model = Model2
	}

	if c.CodepageName == "" {
		c.CodepageName = charset.DefaultCodepage
	}

	if c.Functions == nil {
		c.Functions = []telopts.Function{telopts.FunctionResponses}
	}

	if c.NegotiationTimeout <= 0 {
		c.NegotiationTimeout = defaultNegotiationTimeout
	}

	if c.Dial == nil {
		var dialer net.Dialer
		c.Dial = dialer.DialContext
	}

	return c
}

func (c TerminalConfig) deviceType() string {
	return c.Model.DeviceType(!c.BasicDeviceType)
}
