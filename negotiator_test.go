package tn3270

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/moodclient/tn3270/telnet"
	"github.com/moodclient/tn3270/telopts"
)

func join(parts ...[]byte) []byte {
	var b []byte
	for _, part := range parts {
		b = append(b, part...)
	}

	return b
}

func sb(option byte, payload ...byte) []byte {
	return join([]byte{0xFF, 0xFA, option}, payload, []byte{0xFF, 0xF0})
}

func negotiate(t *testing.T, config TerminalConfig, host []byte) (*negotiator, []byte, []NegotiationEvent, error) {
	t.Helper()

	var client bytes.Buffer
	n := newNegotiator(config.withDefaults(), telnet.NewPrinter(bytes.NewReader(host)), telnet.NewKeyboard(&client))

	var events []NegotiationEvent
	n.onState = func(event NegotiationEvent) {
		events = append(events, event)
	}

	err := n.run()
	return n, client.Bytes(), events, err
}

var deviceIs = sb(40, join([]byte{0x02, 0x04}, []byte("IBM-3278-2-E"), []byte{0x01}, []byte("TCP00034"))...)

func TestNegotiateCanonical(t *testing.T) {
	host := join(
		[]byte{0xFF, 0xFD, 0x28},
		sb(40, 0x02, 0x08),
		deviceIs,
		sb(40, 0x03, 0x04, 0x02),
	)

	n, client, events, err := negotiate(t, TerminalConfig{}, host)
	if err != nil {
		t.Fatal(err)
	}

	want := join(
		[]byte{0xFF, 0xFB, 0x28},
		sb(40, join([]byte{0x02, 0x07}, []byte("IBM-3278-2-E"))...),
		sb(40, 0x03, 0x07, 0x02),
	)
	if !bytes.Equal(client, want) {
		t.Errorf("Got %s\nwant %s", telnet.CommandStream(client), telnet.CommandStream(want))
	}

	if !n.tn3270e || n.deviceName != "TCP00034" || n.deviceType != "IBM-3278-2-E" {
		t.Errorf("Got tn3270e %v device %q %q", n.tn3270e, n.deviceType, n.deviceName)
	}

	if !slices.Equal(n.functions, []telopts.Function{telopts.FunctionResponses}) {
		t.Errorf("Got functions %v", n.functions)
	}

	states := []NegotiationState{StateAwaitDoTN3270E, StateAwaitSendDeviceType, StateAwaitDeviceTypeRequestAck, StateAwaitFunctionsAck, StateNegotiated}
	if len(events) != len(states) {
		t.Fatalf("Got %d events, want %d", len(events), len(states))
	}
	for i, state := range states {
		if events[i].State != state {
			t.Errorf("Event %d: got %s, want %s", i, events[i].State, state)
		}
	}
}

func TestNegotiateConnectLU(t *testing.T) {
	host := join(
		[]byte{0xFF, 0xFD, 0x28},
		sb(40, 0x02, 0x08),
	)

	config := TerminalConfig{Model: Model4, LUName: "LU1", Functions: []telopts.Function{}}
	_, client, _, _ := negotiate(t, config, host)

	want := join(
		[]byte{0xFF, 0xFB, 0x28},
		sb(40, join([]byte{0x02, 0x07}, []byte("IBM-3278-4-E"), []byte{0x01}, []byte("LU1"))...),
	)
	if !bytes.Equal(client, want) {
		t.Errorf("Got %s\nwant %s", telnet.CommandStream(client), telnet.CommandStream(want))
	}
}

func TestNegotiateCounterProposal(t *testing.T) {
	host := join(
		[]byte{0xFF, 0xFD, 0x28},
		sb(40, 0x02, 0x08),
		deviceIs,
		sb(40, 0x03, 0x07),
	)

	config := TerminalConfig{Functions: []telopts.Function{telopts.FunctionResponses, telopts.FunctionBindImage}}
	n, client, _, err := negotiate(t, config, host)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.HasSuffix(client, sb(40, 0x03, 0x04)) {
		t.Errorf("Got %s, want FUNCTIONS IS", telnet.CommandStream(client))
	}

	if len(n.functions) != 0 {
		t.Errorf("Got functions %v", n.functions)
	}
}

func TestNegotiateFailures(t *testing.T) {
	cases := []struct {
		name   string
		config TerminalConfig
		host   []byte
		state  NegotiationState
		reason string
	}{
		{
			name:   "rejected",
			host:   join([]byte{0xFF, 0xFD, 0x28}, sb(40, 0x02, 0x08), sb(40, 0x02, 0x06, 0x05, 0x04)),
			state:  StateAwaitDeviceTypeRequestAck,
			reason: "INV-DEVICE-TYPE",
		},
		{
			name:   "no TN3270E",
			host:   []byte{0xFF, 0xFD, 0x18},
			state:  StateAwaitDoTN3270E,
			reason: "unexpected command",
		},
		{
			name:   "extra function",
			host:   join([]byte{0xFF, 0xFD, 0x28}, sb(40, 0x02, 0x08), deviceIs, sb(40, 0x03, 0x04, 0x02, 0x04)),
			state:  StateAwaitFunctionsAck,
			reason: "SYSREQ",
		},
		{
			name:   "out of order",
			host:   join([]byte{0xFF, 0xFD, 0x28}, deviceIs),
			state:  StateAwaitSendDeviceType,
			reason: "unexpected command",
		},
	}

	for _, c := range cases {
		_, _, events, err := negotiate(t, c.config, c.host)

		var negotiationErr *NegotiationError
		if !errors.As(err, &negotiationErr) {
			t.Errorf("%s: got %v, want a negotiation error", c.name, err)
			continue
		}

		if negotiationErr.State != c.state || !strings.Contains(negotiationErr.Reason, c.reason) {
			t.Errorf("%s: got %s %q", c.name, negotiationErr.State, negotiationErr.Reason)
		}

		if events[len(events)-1].State != StateFailed {
			t.Errorf("%s: last state was %s", c.name, events[len(events)-1].State)
		}
	}
}

func TestNegotiateConnectionClosed(t *testing.T) {
	_, _, _, err := negotiate(t, TerminalConfig{}, []byte{0xFF, 0xFD, 0x28})

	var networkErr *NetworkError
	if !errors.As(err, &networkErr) {
		t.Errorf("Got %v, want a network error", err)
	}

	var negotiationErr *NegotiationError
	if !errors.As(err, &negotiationErr) || negotiationErr.State != StateAwaitSendDeviceType {
		t.Errorf("Got %v", err)
	}
}

func TestNegotiateFallback(t *testing.T) {
	host := join(
		[]byte{0xFF, 0xFD, 0x18},
		sb(24, 0x01),
		[]byte{0xFF, 0xFD, 0x19},
		[]byte{0xFF, 0xFB, 0x19},
		[]byte{0xFF, 0xFD, 0x00},
		[]byte{0xFF, 0xFB, 0x00},
	)

	n, client, _, err := negotiate(t, TerminalConfig{AllowFallback: true}, host)
	if err != nil {
		t.Fatal(err)
	}

	want := join(
		[]byte{0xFF, 0xFB, 0x18},
		sb(24, join([]byte{0x00}, []byte("IBM-3278-2-E"))...),
		[]byte{0xFF, 0xFB, 0x19},
		[]byte{0xFF, 0xFD, 0x19},
		[]byte{0xFF, 0xFB, 0x00},
		[]byte{0xFF, 0xFD, 0x00},
	)
	if !bytes.Equal(client, want) {
		t.Errorf("Got %s\nwant %s", telnet.CommandStream(client), telnet.CommandStream(want))
	}

	if n.tn3270e || n.state != StateNegotiated {
		t.Errorf("Got tn3270e %v state %s", n.tn3270e, n.state)
	}
}

func TestNegotiateFallbackIncomplete(t *testing.T) {
	host := join(
		[]byte{0xFF, 0xFD, 0x18},
		sb(24, 0x01),
		[]byte{0xFF, 0xFD, 0x19},
	)

	_, _, _, err := negotiate(t, TerminalConfig{AllowFallback: true}, host)

	var negotiationErr *NegotiationError
	if !errors.As(err, &negotiationErr) || negotiationErr.State != StateAwaitBinaryEOR {
		t.Errorf("Got %v", err)
	}
}
