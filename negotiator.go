package tn3270

import (
	"errors"
	"fmt"
	"io"
	"net"
	"slices"

	"github.com/moodclient/tn3270/telnet"
	"github.com/moodclient/tn3270/telopts"
)

// NegotiationState is the progress of option negotiation with the host
type NegotiationState int

const (
	StateDisconnected NegotiationState = iota
	StateAwaitDoTN3270E
	StateAwaitSendDeviceType
	StateAwaitDeviceTypeRequestAck
	StateAwaitFunctionsAck
	// StateAwaitTerminalTypeSend and StateAwaitBinaryEOR are only reached in a basic
	// TN3270 session
	StateAwaitTerminalTypeSend
	StateAwaitBinaryEOR
	StateNegotiated
	StateFailed
)

var stateNames = map[NegotiationState]string{
	StateDisconnected:              "Disconnected",
	StateAwaitDoTN3270E:            "AwaitDoTN3270E",
	StateAwaitSendDeviceType:       "AwaitSendDeviceType",
	StateAwaitDeviceTypeRequestAck: "AwaitDeviceTypeRequestAck",
	StateAwaitFunctionsAck:         "AwaitFunctionsAck",
	StateAwaitTerminalTypeSend:     "AwaitTerminalTypeSend",
	StateAwaitBinaryEOR:            "AwaitBinaryEOR",
	StateNegotiated:                "Negotiated",
	StateFailed:                    "Failed",
}

func (s NegotiationState) String() string {
	name, hasName := stateNames[s]
	if !hasName {
		return fmt.Sprintf("NegotiationState(%d)", int(s))
	}

	return name
}

// negotiator runs the client side of option negotiation, one command at a time, before
// any datastream flows. Either TN3270E (RFC 2355) is agreed, or when fallback is allowed,
// a basic TN3270 session with TERMINAL-TYPE, EOR and BINARY (RFC 1576).
type negotiator struct {
	config   TerminalConfig
	printer  *telnet.Printer
	keyboard *telnet.Keyboard

	onState   func(event NegotiationEvent)
	onCommand func(event TelnetCommandEvent)

	state NegotiationState

	tn3270e    bool
	deviceType string
	deviceName string
	functions  []telopts.Function

	// Basic TN3270 requires EOR and BINARY in both directions
	hostDoEOR      bool
	hostWillEOR    bool
	hostDoBinary   bool
	hostWillBinary bool
}

func newNegotiator(config TerminalConfig, printer *telnet.Printer, keyboard *telnet.Keyboard) *negotiator {
	return &negotiator{
		config:   config,
		printer:  printer,
		keyboard: keyboard,
		state:    StateDisconnected,
	}
}

// run blocks until negotiation completes or fails
func (n *negotiator) run() error {
	n.transition(StateAwaitDoTN3270E, telnet.Command{})

	for n.state != StateNegotiated {
		c, err := n.printer.ReadCommand()
		if err != nil {
			return n.fail(telnet.Command{}, "could not read command", readFailure(err))
		}

		if n.onCommand != nil {
			n.onCommand(TelnetCommandEvent{Command: c})
		}

		if c.OpCode == telnet.NOP {
			continue
		}

		err = n.handle(c)
		if err != nil {
			return err
		}
	}

	return nil
}

func readFailure(err error) error {
	var netErr net.Error
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) || errors.As(err, &netErr) {
		return &NetworkError{Op: "read", Err: err}
	}

	return err
}

func (n *negotiator) handle(c telnet.Command) error {
	switch n.state {
	case StateAwaitDoTN3270E:
		return n.awaitDoTN3270E(c)
	case StateAwaitSendDeviceType:
		return n.awaitSendDeviceType(c)
	case StateAwaitDeviceTypeRequestAck:
		return n.awaitDeviceTypeRequestAck(c)
	case StateAwaitFunctionsAck:
		return n.awaitFunctionsAck(c)
	case StateAwaitTerminalTypeSend, StateAwaitBinaryEOR:
		return n.awaitBasic(c)
	}

	return n.unexpected(c)
}

func (n *negotiator) awaitDoTN3270E(c telnet.Command) error {
	if c.OpCode == telnet.DO && c.Option == telopts.CodeTN3270E {
		err := n.writeCommand(c.Accept())
		if err != nil {
			return n.fail(c, "could not accept TN3270E", err)
		}

		n.tn3270e = true
		n.transition(StateAwaitSendDeviceType, c)
		return nil
	}

	if n.config.AllowFallback && (c.OpCode == telnet.DO || c.OpCode == telnet.WILL) {
		return n.awaitBasic(c)
	}

	return n.unexpected(c)
}

func (n *negotiator) subnegotiation(c telnet.Command) (telopts.TN3270E, error) {
	if c.OpCode != telnet.SB || c.Option != telopts.CodeTN3270E {
		return telopts.TN3270E{}, n.unexpected(c)
	}

	sub, err := telopts.ParseTN3270E(c.Subnegotiation)
	if err != nil {
		return telopts.TN3270E{}, n.fail(c, "malformed subnegotiation", err)
	}

	return sub, nil
}

func (n *negotiator) awaitSendDeviceType(c telnet.Command) error {
	sub, err := n.subnegotiation(c)
	if err != nil {
		return err
	}

	if sub.Operation != telopts.TN3270EDeviceType || sub.Action != telopts.TN3270ESend {
		return n.unexpected(c)
	}

	err = n.writeCommand(telopts.DeviceTypeRequest(n.config.deviceType(), n.config.LUName).Command())
	if err != nil {
		return n.fail(c, "could not request device type", err)
	}

	n.transition(StateAwaitDeviceTypeRequestAck, c)
	return nil
}

func (n *negotiator) awaitDeviceTypeRequestAck(c telnet.Command) error {
	sub, err := n.subnegotiation(c)
	if err != nil {
		return err
	}

	if sub.Operation != telopts.TN3270EDeviceType {
		return n.unexpected(c)
	}

	switch sub.Action {
	case telopts.TN3270EReject:
		return n.fail(c, "host rejected device type: "+sub.Reason.String(), nil)
	case telopts.TN3270EIs:
	default:
		return n.unexpected(c)
	}

	n.deviceType = sub.DeviceType
	n.deviceName = sub.Device

	err = n.writeCommand(telopts.FunctionsRequest(n.config.Functions).Command())
	if err != nil {
		return n.fail(c, "could not request functions", err)
	}

	n.transition(StateAwaitFunctionsAck, c)
	return nil
}

func (n *negotiator) awaitFunctionsAck(c telnet.Command) error {
	sub, err := n.subnegotiation(c)
	if err != nil {
		return err
	}

	if sub.Operation != telopts.TN3270EFunctions {
		return n.unexpected(c)
	}

	for _, f := range sub.Functions {
		if !slices.Contains(n.config.Functions, f) {
			return n.fail(c, "host proposed function "+f.String()+", which was not requested", nil)
		}
	}

	// A REQUEST from the host is a counter-proposal, and a subset of ours is acceptable
	if sub.Action == telopts.TN3270ERequest {
		err = n.writeCommand(telopts.FunctionsIs(sub.Functions).Command())
		if err != nil {
			return n.fail(c, "could not accept functions", err)
		}
	}

	n.functions = sub.Functions
	n.transition(StateNegotiated, c)
	return nil
}

// awaitBasic handles the commands of a basic TN3270 session, which may arrive in any
// order once the host has asked for TERMINAL-TYPE
func (n *negotiator) awaitBasic(c telnet.Command) error {
	switch {
	case c.OpCode == telnet.DO && c.Option == telopts.CodeTTYPE:
		err := n.writeCommand(c.Accept())
		if err != nil {
			return n.fail(c, "could not accept TERMINAL-TYPE", err)
		}

		if n.state == StateAwaitDoTN3270E {
			n.transition(StateAwaitTerminalTypeSend, c)
		}
		return nil
	case c.OpCode == telnet.SB && c.Option == telopts.CodeTTYPE:
		if n.state == StateAwaitDoTN3270E {
			return n.unexpected(c)
		}

		sub, err := telopts.ParseTTYPE(c.Subnegotiation)
		if err != nil {
			return n.fail(c, "malformed subnegotiation", err)
		}

		if !sub.Send {
			return n.unexpected(c)
		}

		err = n.writeCommand(telopts.TTYPE{Terminal: n.config.deviceType()}.Command())
		if err != nil {
			return n.fail(c, "could not send terminal type", err)
		}

		n.deviceType = n.config.deviceType()
		if n.state == StateAwaitTerminalTypeSend {
			n.transition(StateAwaitBinaryEOR, c)
		}
	case c.IsActivateNegotiation() && (c.Option == telopts.CodeEOR || c.Option == telopts.CodeTRANSMITBINARY):
		err := n.writeCommand(c.Accept())
		if err != nil {
			return n.fail(c, "could not accept "+telopts.Name(c.Option), err)
		}

		n.agreeBasic(c)
	default:
		return n.unexpected(c)
	}

	if n.state == StateAwaitBinaryEOR && n.hostDoEOR && n.hostWillEOR && n.hostDoBinary && n.hostWillBinary {
		n.transition(StateNegotiated, c)
	}

	return nil
}

func (n *negotiator) agreeBasic(c telnet.Command) {
	switch {
	case c.OpCode == telnet.DO && c.Option == telopts.CodeEOR:
		n.hostDoEOR = true
	case c.OpCode == telnet.WILL && c.Option == telopts.CodeEOR:
		n.hostWillEOR = true
	case c.OpCode == telnet.DO && c.Option == telopts.CodeTRANSMITBINARY:
		n.hostDoBinary = true
	case c.OpCode == telnet.WILL && c.Option == telopts.CodeTRANSMITBINARY:
		n.hostWillBinary = true
	}
}

func (n *negotiator) writeCommand(c telnet.Command) error {
	err := n.keyboard.WriteCommand(c)
	if err != nil {
		return &NetworkError{Op: "write", Err: err}
	}

	if n.onCommand != nil {
		n.onCommand(TelnetCommandEvent{Command: c, Outbound: true})
	}

	return nil
}

func (n *negotiator) transition(state NegotiationState, c telnet.Command) {
	previous := n.state
	n.state = state

	if n.onState != nil {
		n.onState(NegotiationEvent{Previous: previous, State: state, Command: c})
	}
}

func (n *negotiator) unexpected(c telnet.Command) error {
	return n.fail(c, "unexpected command "+telopts.CommandString(c), nil)
}

func (n *negotiator) fail(c telnet.Command, reason string, err error) error {
	failed := &NegotiationError{State: n.state, Reason: reason, Err: err}
	n.transition(StateFailed, c)
	return failed
}
