package tn3270

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moodclient/tn3270/charset"
	"github.com/moodclient/tn3270/datastream"
	"github.com/moodclient/tn3270/screen"
	"github.com/moodclient/tn3270/telnet"
	"github.com/moodclient/tn3270/telopts"
)

// maxScreenSize is the largest buffer that 14-bit addresses can reach
const maxScreenSize = 16384

// Terminal is a TN3270 session with a host.  Once option negotiation is complete, a single
// printer loop goroutine reads datastream records from the host and applies them to the
// Screen, answering read commands and query requests on its own. The consumer drives the
// session through the Screen operations exposed here: typing, cursor movement and
// attention keys, which are sent to the host as they are pressed.
//
// Consumers generally wait for the host between keys with WaitForKeyboard or
// WaitForTextInField. The host locks the keyboard with each attention key and unlocks
// it when it has written its reply.
//
// Event hooks are called from a separate goroutine in the order the events took place.
// Blocking calls made in hook methods will delay the delivery of later events and, once
// enough events are queued, the printer loop. It is the responsibility of the consumer to
// move long-running calls to their own concurrency scheme where necessary.
type Terminal struct {
	id     uuid.UUID
	conn   net.Conn
	config TerminalConfig

	printer  *telnet.Printer
	keyboard *telnet.Keyboard
	decoder  *datastream.Decoder
	screen   *screen.Screen
	pump     *terminalEventPump

	tn3270e    bool
	deviceType string
	deviceName string
	functions  []telopts.Function

	sequenceLock sync.Mutex
	sequence     uint16

	encounteredErrorHooks *EventPublisher[error]
	inboundRecordHooks    *EventPublisher[Record]
	outboundRecordHooks   *EventPublisher[Record]
	screenUpdateHooks     *EventPublisher[screen.UpdateEvent]
	negotiationHooks      *EventPublisher[NegotiationEvent]
	telnetCommandHooks    *EventPublisher[TelnetCommandEvent]

	complete chan error
	exitErr  error
	exitOnce sync.Once
}

// Dial connects to a TN3270 host at address (host:port) and negotiates a session. If the
// connection cannot be opened, the error is a *NetworkError. If negotiation fails, the
// connection is closed and the error is a *NegotiationError.
func Dial(ctx context.Context, address string, config TerminalConfig) (*Terminal, error) {
	config = config.withDefaults()

	conn, err := config.Dial(ctx, "tcp", address)
	if err != nil {
		return nil, &NetworkError{Op: "dial " + address, Err: err}
	}

	return NewTerminal(ctx, conn, config)
}

// NewTerminal negotiates a session over an existing connection and begins reading from
// the host. The terminal will continue until either the passed context is cancelled,
// Disconnect is called, or the host closes the connection. If negotiation fails, the
// connection is closed.
//
// All functioning of this terminal is determined by the properties passed in the TerminalConfig
// object.  See that type for more information.
func NewTerminal(ctx context.Context, conn net.Conn, config TerminalConfig) (*Terminal, error) {
	config = config.withDefaults()

	terminal, err := newTerminal(conn, config)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	go terminal.pump.TerminalLoop(terminal)

	err = terminal.negotiate(ctx)
	if err != nil {
		_ = conn.Close()
		terminal.pump.Stop()
		return nil, err
	}

	terminal.printer.SetCommandHandler(terminal.receivedCommand)

	go terminal.printerLoop(ctx)

	return terminal, nil
}

func newTerminal(conn net.Conn, config TerminalConfig) (*Terminal, error) {
	model := config.Model
	if model.Rows <= 0 || model.Columns <= 0 || model.Rows*model.Columns > maxScreenSize {
		return nil, fmt.Errorf("tn3270: unsupported screen dimensions %dx%d", model.Rows, model.Columns)
	}

	codepage, err := charset.NewCodepage(config.CodepageName)
	if err != nil {
		return nil, err
	}

	terminal := &Terminal{
		id:       uuid.New(),
		conn:     conn,
		config:   config,
		printer:  telnet.NewPrinter(conn),
		keyboard: telnet.NewKeyboard(conn),
		decoder:  datastream.NewDecoder(codepage, model.Rows*model.Columns),
		screen:   screen.NewScreen(model.Rows, model.Columns, codepage),
		pump:     newEventPump(),
		complete: make(chan error, 1),

		encounteredErrorHooks: NewPublisher(config.EventHooks.EncounteredError),
		inboundRecordHooks:    NewPublisher(config.EventHooks.InboundRecord),
		outboundRecordHooks:   NewPublisher(config.EventHooks.OutboundRecord),
		screenUpdateHooks:     NewPublisher(config.EventHooks.ScreenUpdate),
		negotiationHooks:      NewPublisher(config.EventHooks.Negotiation),
		telnetCommandHooks:    NewPublisher(config.EventHooks.TelnetCommand),
	}
	terminal.screen.RegisterUpdateListener(terminal.pump.ScreenUpdate)

	return terminal, nil
}

// negotiate runs option negotiation under a connection deadline, which is lifted once it
// completes
func (t *Terminal) negotiate(ctx context.Context) error {
	deadline := time.Now().Add(t.config.NegotiationTimeout)
	if ctxDeadline, hasDeadline := ctx.Deadline(); hasDeadline && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	_ = t.conn.SetDeadline(deadline)
	defer func() { _ = t.conn.SetDeadline(time.Time{}) }()

	stop := context.AfterFunc(ctx, func() {
		_ = t.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	n := newNegotiator(t.config, t.printer, t.keyboard)
	n.onState = t.pump.Negotiation
	n.onCommand = t.pump.TelnetCommand

	err := n.run()
	if err != nil {
		return err
	}

	t.tn3270e = n.tn3270e
	t.deviceType = n.deviceType
	t.deviceName = n.deviceName
	t.functions = n.functions
	return nil
}

// printerLoop reads records from the host until the connection closes or a record cannot
// be processed
func (t *Terminal) printerLoop(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() {
		_ = t.conn.Close()
	})
	defer stop()

	err := t.readRecords()
	if err != nil {
		t.pump.EncounteredError(err)
	}

	_ = t.conn.Close()
	t.pump.Stop()
	t.complete <- err
}

func (t *Terminal) readRecords() error {
	for {
		record, err := t.printer.ReadRecord()
		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
			return nil
		}

		var framingErr *telnet.FramingError
		var negotiationErr *NegotiationError
		var networkErr *NetworkError
		if errors.As(err, &framingErr) || errors.As(err, &negotiationErr) || errors.As(err, &networkErr) {
			return err
		} else if err != nil {
			return &NetworkError{Op: "read", Err: err}
		}

		err = t.processRecord(record)
		if err != nil {
			return err
		}
	}
}

func (t *Terminal) processRecord(record []byte) error {
	if !t.tn3270e {
		t.pump.InboundRecord(Record{Data: record})
		return t.processDatastream(record)
	}

	header, data, err := ParseHeader(record)
	if err != nil {
		return err
	}

	t.pump.InboundRecord(Record{HasHeader: true, Header: header, Data: data})

	switch {
	case header.DataType.HasDatastream():
		err = t.processDatastream(data)
	case header.DataType == DataTypeSSCPLU:
		t.screen.ProcessSSCPLU(data)
	default:
		// Other data types are only reported to hooks
		return nil
	}

	if header.WantsResponse(err == nil) && t.negotiatedFunction(telopts.FunctionResponses) {
		responseErr := t.writeRecord(header.response(err == nil))
		if err == nil {
			err = responseErr
		}
	}

	return err
}

func (t *Terminal) processDatastream(data []byte) error {
	msg, err := t.decoder.Decode(data)
	if err != nil {
		return err
	}

	reply, err := t.screen.ProcessInboundMessage(msg)
	if err != nil {
		return err
	}

	if reply == nil {
		return nil
	}

	return t.sendData(reply)
}

// receivedCommand answers commands that arrive after negotiation. Options that are already
// active are ignored and new ones are refused.
func (t *Terminal) receivedCommand(c telnet.Command) error {
	t.pump.TelnetCommand(TelnetCommandEvent{Command: c})

	switch {
	case c.IsActivateNegotiation() && t.activeOption(c.Option):
		return nil
	case c.IsActivateNegotiation():
		return t.writeCommand(c.Reject())
	case c.IsNegotiation() && t.activeOption(c.Option):
		return &NegotiationError{State: StateNegotiated, Reason: "host disabled " + telopts.Name(c.Option)}
	}

	return nil
}

func (t *Terminal) activeOption(option telnet.TelOptCode) bool {
	if t.tn3270e {
		return option == telopts.CodeTN3270E
	}

	return option == telopts.CodeTTYPE || option == telopts.CodeEOR || option == telopts.CodeTRANSMITBINARY
}

func (t *Terminal) writeCommand(c telnet.Command) error {
	err := t.keyboard.WriteCommand(c)
	if err != nil {
		return &NetworkError{Op: "write", Err: err}
	}

	t.pump.TelnetCommand(TelnetCommandEvent{Command: c, Outbound: true})
	return nil
}

// sendData sends a datastream to the host, as 3270-DATA with the next sequence number in
// a TN3270E session
func (t *Terminal) sendData(data []byte) error {
	if !t.tn3270e {
		return t.writeRecord(Record{Data: data})
	}

	t.sequenceLock.Lock()
	header := Header{DataType: DataType3270, Sequence: t.sequence}
	t.sequence++
	t.sequenceLock.Unlock()

	return t.writeRecord(Record{HasHeader: true, Header: header, Data: data})
}

func (t *Terminal) writeRecord(record Record) error {
	wire := record.Data
	if record.HasHeader {
		wire = record.Header.Append(make([]byte, 0, HeaderLength+len(record.Data)), record.Data)
	}

	err := t.keyboard.WriteRecord(wire)
	if err != nil {
		return &NetworkError{Op: "write", Err: err}
	}

	t.pump.OutboundRecord(record)
	return nil
}

func (t *Terminal) negotiatedFunction(function telopts.Function) bool {
	for _, f := range t.functions {
		if f == function {
			return true
		}
	}

	return false
}

// ID is a unique identifier for this session, used to tell sessions apart in logs
func (t *Terminal) ID() uuid.UUID {
	return t.id
}

// Screen returns the terminal's screen, for operations and state not exposed directly
// on Terminal
func (t *Terminal) Screen() *screen.Screen {
	return t.screen
}

// TN3270E indicates whether the session negotiated TN3270E rather than basic TN3270
func (t *Terminal) TN3270E() bool {
	return t.tn3270e
}

// DeviceType returns the device type the host agreed to, such as IBM-3278-2-E
func (t *Terminal) DeviceType() string {
	return t.deviceType
}

// DeviceName returns the LU name the host assigned. It is empty in basic TN3270 sessions.
func (t *Terminal) DeviceName() string {
	return t.deviceName
}

// Functions returns the TN3270E functions the host agreed to
func (t *Terminal) Functions() []telopts.Function {
	return append([]telopts.Function(nil), t.functions...)
}

func (t *Terminal) Type(text string) error {
	return t.screen.Type(text)
}

func (t *Terminal) Tab() error {
	return t.screen.Tab()
}

func (t *Terminal) BackTab() error {
	return t.screen.BackTab()
}

func (t *Terminal) Home() {
	t.screen.Home()
}

// MoveCursor places the cursor at a zero-based row and column
func (t *Terminal) MoveCursor(row, column int) error {
	return t.screen.MoveCursor(row, column)
}

func (t *Terminal) EraseEOF() error {
	return t.screen.EraseEOF()
}

func (t *Terminal) PositionCursorToFieldContaining(text string) error {
	return t.screen.PositionCursorToFieldContaining(text)
}

// PressKey sends an attention key to the host. The keyboard is locked until the host
// unlocks it, and pressing a key while it is locked fails with screen.ErrKeyboardLocked.
func (t *Terminal) PressKey(aid datastream.AID) error {
	data, err := t.screen.AID(aid)
	if err != nil {
		return err
	}

	return t.sendData(data)
}

func (t *Terminal) Enter() error {
	return t.PressKey(datastream.AIDEnter)
}

func (t *Terminal) Clear() error {
	return t.PressKey(datastream.AIDClear)
}

// PF presses one of the program function keys, numbered 1 to 24
func (t *Terminal) PF(n int) error {
	aid, err := datastream.PF(n)
	if err != nil {
		return err
	}

	return t.PressKey(aid)
}

// PA presses one of the program attention keys, numbered 1 to 3
func (t *Terminal) PA(n int) error {
	aid, err := datastream.PA(n)
	if err != nil {
		return err
	}

	return t.PressKey(aid)
}

func (t *Terminal) WaitForKeyboard(timeout time.Duration) error {
	return t.screen.WaitForKeyboard(timeout)
}

// WaitForTextInField blocks until one of texts appears in a field and returns its index
func (t *Terminal) WaitForTextInField(timeout time.Duration, texts ...string) (int, error) {
	return t.screen.WaitForTextInField(timeout, texts...)
}

func (t *Terminal) RetrieveScreen() string {
	return t.screen.RetrieveScreen()
}

func (t *Terminal) RetrieveFieldAtCursor() (string, error) {
	return t.screen.RetrieveFieldAtCursor()
}

// Disconnect closes the connection. The printer loop stops, and WaitForExit returns once
// the remaining events have been delivered to hooks.
func (t *Terminal) Disconnect() error {
	err := t.conn.Close()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return &NetworkError{Op: "close", Err: err}
	}

	return nil
}

// WaitForExit blocks until the printer loop stops and returns the error that stopped it.
// A connection closed by either side returns nil. It can be called more than once.
func (t *Terminal) WaitForExit() error {
	t.exitOnce.Do(func() {
		t.exitErr = <-t.complete
	})

	return t.exitErr
}

// RegisterEncounteredErrorHook will register an event to be called when the printer loop
// stops because of an error
func (t *Terminal) RegisterEncounteredErrorHook(hook ErrorHandler) {
	t.encounteredErrorHooks.Register(EventHook[error](hook))
}

// RegisterInboundRecordHook will register an event to be called for each record received
// from the host
func (t *Terminal) RegisterInboundRecordHook(hook RecordHandler) {
	t.inboundRecordHooks.Register(EventHook[Record](hook))
}

// RegisterOutboundRecordHook will register an event to be called for each record sent to
// the host
func (t *Terminal) RegisterOutboundRecordHook(hook RecordHandler) {
	t.outboundRecordHooks.Register(EventHook[Record](hook))
}

// RegisterScreenUpdateHook will register an event to be called whenever the screen changes
func (t *Terminal) RegisterScreenUpdateHook(hook ScreenUpdateHandler) {
	t.screenUpdateHooks.Register(EventHook[screen.UpdateEvent](hook))
}

// RegisterNegotiationHook will register an event to be called when negotiation changes
// state. Negotiation is complete when NewTerminal returns, so only hooks passed in
// TerminalConfig.EventHooks see it.
func (t *Terminal) RegisterNegotiationHook(hook NegotiationHandler) {
	t.negotiationHooks.Register(EventHook[NegotiationEvent](hook))
}

// RegisterTelnetCommandHook will register an event to be called for each telnet command
// sent or received
func (t *Terminal) RegisterTelnetCommandHook(hook TelnetCommandHandler) {
	t.telnetCommandHooks.Register(EventHook[TelnetCommandEvent](hook))
}
