package tn3270

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/moodclient/tn3270/screen"
	"github.com/moodclient/tn3270/telnet"
)

type fakeHost struct {
	t        *testing.T
	conn     net.Conn
	printer  *telnet.Printer
	keyboard *telnet.Keyboard
}

func newFakeHost(t *testing.T) (*fakeHost, net.Conn) {
	hostConn, clientConn := net.Pipe()
	return &fakeHost{
		t:        t,
		conn:     hostConn,
		printer:  telnet.NewPrinter(hostConn),
		keyboard: telnet.NewKeyboard(hostConn),
	}, clientConn
}

func (h *fakeHost) send(b []byte) {
	if _, err := h.conn.Write(b); err != nil {
		h.t.Errorf("host write: %v", err)
	}
}

func (h *fakeHost) expect(want []byte) bool {
	c, err := h.printer.ReadCommand()
	if err != nil {
		h.t.Errorf("host read: %v", err)
		return false
	}

	if !bytes.Equal(c.Bytes(), want) {
		h.t.Errorf("Host got %s, want %s", c, telnet.CommandStream(want))
		return false
	}

	return true
}

func (h *fakeHost) negotiate() bool {
	h.send([]byte{0xFF, 0xFD, 0x28})
	if !h.expect([]byte{0xFF, 0xFB, 0x28}) {
		return false
	}

	h.send(sb(40, 0x02, 0x08))
	if !h.expect(sb(40, join([]byte{0x02, 0x07}, []byte("IBM-3278-2-E"))...)) {
		return false
	}

	h.send(deviceIs)
	if !h.expect(sb(40, 0x03, 0x07, 0x02)) {
		return false
	}

	h.send(sb(40, 0x03, 0x04, 0x02))
	return true
}

func (h *fakeHost) sendRecord(header []byte, data ...byte) {
	if err := h.keyboard.WriteRecord(join(header, data)); err != nil {
		h.t.Errorf("host write: %v", err)
	}
}

func (h *fakeHost) readRecord() []byte {
	record, err := h.printer.ReadRecord()
	if err != nil {
		h.t.Errorf("host read: %v", err)
	}

	return record
}

// login screen: USERID at 1-6, input field 8-19, cursor at 8
var loginScreen = []byte{
	0xF5, 0xC3,
	0x11, 0x40, 0x40, 0x1D, 0x60,
	0xE4, 0xE2, 0xC5, 0xD9, 0xC9, 0xC4,
	0x1D, 0x40,
	0x11, 0x40, 0xD4, 0x1D, 0x60,
	0x11, 0x40, 0xC8, 0x13,
}

func TestTerminalSession(t *testing.T) {
	host, clientConn := newFakeHost(t)
	defer host.conn.Close()

	hostDone := make(chan struct{})
	go func() {
		defer close(hostDone)
		defer host.conn.Close()

		if !host.negotiate() {
			return
		}

		host.sendRecord([]byte{0x00, 0x00, 0x00, 0x00, 0x01}, 0xF3, 0x00, 0x05, 0x01, 0xFF, 0x02)
		queryReply := host.readRecord()
		if len(queryReply) < 6 || !bytes.Equal(queryReply[:5], []byte{0, 0, 0, 0, 0}) || queryReply[5] != 0x88 {
			t.Errorf("Got query reply %x", queryReply)
		}

		host.sendRecord([]byte{0x00, 0x00, 0x02, 0x00, 0x02}, loginScreen...)

		wantResponse := []byte{0x02, 0x00, 0x00, 0x00, 0x02, 0x00}
		wantEnter := []byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x7D, 0x40, 0x4D, 0x11, 0x40, 0xC8, 0xC1, 0xD3, 0xC9, 0xC3, 0xC5}

		// The response and the key press race each other
		for range 2 {
			record := host.readRecord()
			if len(record) > 0 && record[0] == 0x02 {
				if !bytes.Equal(record, wantResponse) {
					t.Errorf("Got response %x", record)
				}
			} else if !bytes.Equal(record, wantEnter) {
				t.Errorf("Got %x, want %x", record, wantEnter)
			}
		}
	}()

	var inbound atomic.Int32
	config := TerminalConfig{
		EventHooks: EventHooks{
			InboundRecord: []RecordHandler{
				func(_ *Terminal, _ Record) { inbound.Add(1) },
			},
		},
	}

	terminal, err := NewTerminal(context.Background(), clientConn, config)
	if err != nil {
		t.Fatal(err)
	}

	if terminal.DeviceName() != "TCP00034" || !terminal.TN3270E() {
		t.Errorf("Got device %q tn3270e %v", terminal.DeviceName(), terminal.TN3270E())
	}

	if err := terminal.WaitForKeyboard(5 * time.Second); err != nil {
		t.Fatal(err)
	}

	if got := terminal.RetrieveScreen(); !strings.HasPrefix(got, " USERID ") {
		t.Errorf("Got screen %q", got[:80])
	}

	if err := terminal.Type("ALICE"); err != nil {
		t.Fatal(err)
	}
	if err := terminal.Enter(); err != nil {
		t.Fatal(err)
	}

	if err := terminal.WaitForExit(); err != nil {
		t.Errorf("Got exit error %v", err)
	}
	<-hostDone

	if inbound.Load() != 2 {
		t.Errorf("Got %d inbound records, want 2", inbound.Load())
	}
}

func TestTerminalRefusesNewOptions(t *testing.T) {
	host, clientConn := newFakeHost(t)
	defer host.conn.Close()

	go func() {
		defer host.conn.Close()

		if !host.negotiate() {
			return
		}

		host.send([]byte{0xFF, 0xFD, 0x1F})
		host.expect([]byte{0xFF, 0xFC, 0x1F})
	}()

	terminal, err := NewTerminal(context.Background(), clientConn, TerminalConfig{})
	if err != nil {
		t.Fatal(err)
	}

	if err := terminal.WaitForExit(); err != nil {
		t.Errorf("Got exit error %v", err)
	}
}

func TestTerminalFramingError(t *testing.T) {
	host, clientConn := newFakeHost(t)
	defer host.conn.Close()

	go func() {
		defer host.conn.Close()

		if host.negotiate() {
			host.send([]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0xF5, 0xC3})
		}
	}()

	var reported atomic.Value
	config := TerminalConfig{
		EventHooks: EventHooks{
			EncounteredError: []ErrorHandler{
				func(_ *Terminal, err error) { reported.Store(err) },
			},
		},
	}

	terminal, err := NewTerminal(context.Background(), clientConn, config)
	if err != nil {
		t.Fatal(err)
	}

	err = terminal.WaitForExit()
	if !errors.Is(err, telnet.ErrUnterminatedRecord) {
		t.Errorf("Got %v, want unterminated record", err)
	}

	if reported.Load() != err {
		t.Errorf("Hook got %v", reported.Load())
	}
}

func TestTerminalNegotiationFailure(t *testing.T) {
	host, clientConn := newFakeHost(t)
	defer host.conn.Close()

	hostDone := make(chan error, 1)
	go func() {
		host.send([]byte{0xFF, 0xFD, 0x18})

		_, err := host.conn.Read(make([]byte, 16))
		hostDone <- err
	}()

	var states []NegotiationState
	config := TerminalConfig{
		EventHooks: EventHooks{
			Negotiation: []NegotiationHandler{
				func(_ *Terminal, event NegotiationEvent) { states = append(states, event.State) },
			},
		},
	}

	_, err := NewTerminal(context.Background(), clientConn, config)

	var negotiationErr *NegotiationError
	if !errors.As(err, &negotiationErr) {
		t.Fatalf("Got %v, want a negotiation error", err)
	}

	if hostErr := <-hostDone; !errors.Is(hostErr, io.EOF) {
		t.Errorf("Connection was not closed: %v", hostErr)
	}

	if len(states) != 2 || states[1] != StateFailed {
		t.Errorf("Got states %v", states)
	}
}

func TestDialRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	address := listener.Addr().String()
	listener.Close()

	_, err = Dial(context.Background(), address, TerminalConfig{})

	var networkErr *NetworkError
	if !errors.As(err, &networkErr) {
		t.Errorf("Got %v, want a network error", err)
	}
}

func TestDialCustomDialer(t *testing.T) {
	dialErr := errors.New("no route")
	config := TerminalConfig{
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			return nil, dialErr
		},
	}

	_, err := Dial(context.Background(), "host:23", config)
	if !errors.Is(err, dialErr) {
		t.Errorf("Got %v", err)
	}
}

func TestHeader(t *testing.T) {
	header, data, err := ParseHeader([]byte{0x00, 0x00, 0x02, 0x01, 0x02, 0xF5})
	if err != nil {
		t.Fatal(err)
	}

	if header.DataType != DataType3270 || header.ResponseFlag != ResponseAlways || header.Sequence != 0x0102 {
		t.Errorf("Got %s", header)
	}
	if !bytes.Equal(data, []byte{0xF5}) {
		t.Errorf("Got data %x", data)
	}

	if _, _, err := ParseHeader([]byte{0x00, 0x00}); err == nil {
		t.Error("short header parsed")
	}

	response := header.response(false)
	wire := response.Header.Append(nil, response.Data)
	if !bytes.Equal(wire, []byte{0x02, 0x00, 0x01, 0x01, 0x02, 0x00}) {
		t.Errorf("Got response %x", wire)
	}

	cases := []struct {
		flag      ResponseFlag
		succeeded bool
		want      bool
	}{
		{ResponseNone, false, false},
		{ResponseError, true, false},
		{ResponseError, false, true},
		{ResponseAlways, true, true},
	}

	for _, c := range cases {
		h := Header{ResponseFlag: c.flag}
		if got := h.WantsResponse(c.succeeded); got != c.want {
			t.Errorf("flag %d succeeded %v: got %v", c.flag, c.succeeded, got)
		}
	}
}

func TestTerminalDisconnect(t *testing.T) {
	host, clientConn := newFakeHost(t)
	defer host.conn.Close()

	hostDone := make(chan error, 1)
	go func() {
		if !host.negotiate() {
			hostDone <- nil
			return
		}

		_, err := host.printer.ReadRecord()
		hostDone <- err
	}()

	terminal, err := NewTerminal(context.Background(), clientConn, TerminalConfig{})
	if err != nil {
		t.Fatal(err)
	}

	if err := terminal.Disconnect(); err != nil {
		t.Fatal(err)
	}

	if err := terminal.WaitForExit(); err != nil {
		t.Errorf("Got exit error %v", err)
	}

	if hostErr := <-hostDone; !errors.Is(hostErr, io.EOF) {
		t.Errorf("Host got %v", hostErr)
	}
}

func TestTerminalBasicSession(t *testing.T) {
	host, clientConn := newFakeHost(t)
	defer host.conn.Close()

	hostDone := make(chan struct{})
	go func() {
		defer close(hostDone)
		defer host.conn.Close()

		host.send([]byte{0xFF, 0xFD, 0x18})
		if !host.expect([]byte{0xFF, 0xFB, 0x18}) {
			return
		}

		host.send(sb(24, 0x01))
		if !host.expect(sb(24, join([]byte{0x00}, []byte("IBM-3278-2"))...)) {
			return
		}

		for _, option := range []byte{0x19, 0x00} {
			host.send([]byte{0xFF, 0xFD, option})
			host.expect([]byte{0xFF, 0xFB, option})
			host.send([]byte{0xFF, 0xFB, option})
			host.expect([]byte{0xFF, 0xFD, option})
		}

		host.sendRecord(nil, loginScreen...)

		want := []byte{0x7D, 0x40, 0x4B, 0x11, 0x40, 0xC8, 0xC2, 0xD6, 0xC2}
		if got := host.readRecord(); !bytes.Equal(got, want) {
			t.Errorf("Got %x, want %x", got, want)
		}
	}()

	config := TerminalConfig{AllowFallback: true, BasicDeviceType: true}
	terminal, err := NewTerminal(context.Background(), clientConn, config)
	if err != nil {
		t.Fatal(err)
	}

	if terminal.TN3270E() || terminal.DeviceType() != "IBM-3278-2" {
		t.Errorf("Got tn3270e %v device type %q", terminal.TN3270E(), terminal.DeviceType())
	}

	if _, err := terminal.WaitForTextInField(5*time.Second, "PASSWORD", "USERID"); err != nil {
		t.Fatal(err)
	}
	if err := terminal.WaitForKeyboard(time.Second); err != nil {
		t.Fatal(err)
	}

	if err := terminal.Type("BOB"); err != nil {
		t.Fatal(err)
	}
	if err := terminal.Enter(); err != nil {
		t.Fatal(err)
	}

	if err := terminal.WaitForExit(); err != nil {
		t.Errorf("Got exit error %v", err)
	}
	<-hostDone
}

func TestTerminalScreenHookReadsScreen(t *testing.T) {
	host, clientConn := newFakeHost(t)
	defer host.conn.Close()

	const writes = 300
	go func() {
		defer host.conn.Close()

		if !host.negotiate() {
			return
		}

		for range writes {
			host.sendRecord([]byte{0x00, 0x00, 0x00, 0x00, 0x00}, loginScreen...)
		}
	}()

	var updates atomic.Int32
	config := TerminalConfig{
		EventHooks: EventHooks{
			ScreenUpdate: []ScreenUpdateHandler{
				func(terminal *Terminal, _ screen.UpdateEvent) {
					time.Sleep(time.Millisecond)
					if !strings.HasPrefix(terminal.RetrieveScreen(), " USERID ") {
						t.Error("hook read an unexpected screen")
					}
					updates.Add(1)
				},
			},
		},
	}

	terminal, err := NewTerminal(context.Background(), clientConn, config)
	if err != nil {
		t.Fatal(err)
	}

	exited := make(chan error, 1)
	go func() { exited <- terminal.WaitForExit() }()

	select {
	case err := <-exited:
		if err != nil {
			t.Errorf("Got exit error %v", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("session stalled with a hook reading the screen")
	}

	if updates.Load() != writes {
		t.Errorf("Got %d screen updates, want %d", updates.Load(), writes)
	}
}

func TestTerminalOtherDataTypes(t *testing.T) {
	host, clientConn := newFakeHost(t)
	defer host.conn.Close()

	release := make(chan struct{})
	go func() {
		defer host.conn.Close()

		if !host.negotiate() {
			return
		}

		// BIND is reported and ignored, SSCP-LU data is written to the screen
		host.sendRecord([]byte{0x03, 0x00, 0x00, 0x00, 0x00}, 0x31, 0x01, 0x03)
		host.sendRecord([]byte{0x07, 0x00, 0x00, 0x00, 0x00}, 0xC8, 0xC5, 0xD3, 0xD3, 0xD6)
		<-release
	}()

	var types []DataType
	var typesLock sync.Mutex
	config := TerminalConfig{
		EventHooks: EventHooks{
			InboundRecord: []RecordHandler{
				func(_ *Terminal, record Record) {
					typesLock.Lock()
					defer typesLock.Unlock()
					types = append(types, record.Header.DataType)
				},
			},
		},
	}

	terminal, err := NewTerminal(context.Background(), clientConn, config)
	if err != nil {
		t.Fatal(err)
	}

	if err := terminal.WaitForKeyboard(5 * time.Second); err != nil {
		t.Fatal(err)
	}

	if got := terminal.RetrieveScreen(); !strings.HasPrefix(got, "HELLO ") {
		t.Errorf("Got screen %q", got[:80])
	}

	close(release)
	if err := terminal.WaitForExit(); err != nil {
		t.Errorf("Got exit error %v", err)
	}

	typesLock.Lock()
	defer typesLock.Unlock()
	if !slices.Equal(types, []DataType{DataTypeBind, DataTypeSSCPLU}) {
		t.Errorf("Got record types %v", types)
	}
}
