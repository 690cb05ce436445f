package telnet

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// FramingError is returned when the inbound byte stream cannot be split into records
type FramingError struct {
	Reason string
}

func (e *FramingError) Error() string {
	return e.Reason
}

// ErrUnterminatedRecord is returned by ReadRecord when the stream ends partway through a record
var ErrUnterminatedRecord = &FramingError{Reason: "message did not terminate with IAC EOR"}

// CommandHandler receives telnet commands that are interleaved with datastream records
type CommandHandler func(c Command) error

// Printer splits the inbound telnet stream into datastream records and commands. 3270
// datastream records are binary and terminated by IAC EOR, with literal 255s doubled. A
// Printer is not safe for concurrent use: there is one reader per connection, first the
// negotiator and then the terminal's printer loop.
type Printer struct {
	reader         *bufio.Reader
	commandHandler CommandHandler
}

// NewPrinter wraps the inbound side of a connection
func NewPrinter(inputStream io.Reader) *Printer {
	return &Printer{
		reader: bufio.NewReaderSize(inputStream, 4096),
	}
}

// SetCommandHandler registers the callback that receives commands found between or inside
// records. If the handler returns an error, ReadRecord fails with it.
func (p *Printer) SetCommandHandler(handler CommandHandler) {
	p.commandHandler = handler
}

// ReadCommand reads exactly one telnet command. It is used during negotiation, when the
// remote is not permitted to send anything but commands.
func (p *Printer) ReadCommand() (Command, error) {
	b, err := p.reader.ReadByte()
	if err != nil {
		return Command{}, err
	}

	if b != IAC {
		return Command{}, fmt.Errorf("telnet: expected IAC but received %d", b)
	}

	opCode, err := p.reader.ReadByte()
	if err != nil {
		return Command{}, unexpectedEOF(err)
	}

	if opCode == IAC || opCode == EOR {
		return Command{}, fmt.Errorf("telnet: expected a command but received %s", CommandStream([]byte{IAC, opCode}))
	}

	return p.readCommandBody(opCode)
}

// ReadRecord blocks until a complete record has been received and returns its contents with
// IAC IAC pairs reduced to a single 255.  A stream that ends cleanly between records returns
// io.EOF; a stream that ends partway through a record returns ErrUnterminatedRecord.
func (p *Printer) ReadRecord() ([]byte, error) {
	record := make([]byte, 0, 256)
	started := false

	for {
		b, err := p.reader.ReadByte()
		if err != nil {
			return nil, p.endOfStream(err, started)
		}

		started = true
		if b != IAC {
			record = append(record, b)
			continue
		}

		next, err := p.reader.ReadByte()
		if err != nil {
			return nil, p.endOfStream(err, started)
		}

		switch next {
		case IAC:
			record = append(record, IAC)
		case EOR:
			return record, nil
		default:
			c, err := p.readCommandBody(next)
			if err != nil {
				return nil, err
			}

			if p.commandHandler != nil {
				err = p.commandHandler(c)
				if err != nil {
					return nil, err
				}
			}

			// A command between records does not begin a record
			if len(record) == 0 {
				started = false
			}
		}
	}
}

func (p *Printer) endOfStream(err error, started bool) error {
	if !errors.Is(err, io.EOF) {
		return err
	}

	if started {
		return ErrUnterminatedRecord
	}

	return io.EOF
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}

	return err
}

func (p *Printer) readCommandBody(opCode byte) (Command, error) {
	if opCode < EOR {
		return Command{}, &FramingError{Reason: fmt.Sprintf("invalid telnet command IAC %d", opCode)}
	}

	switch opCode {
	case WILL, WONT, DO, DONT:
		option, err := p.reader.ReadByte()
		if err != nil {
			return Command{}, unexpectedEOF(err)
		}

		return Command{OpCode: opCode, Option: TelOptCode(option)}, nil
	case SB:
		return p.readSubnegotiation()
	default:
		return Command{OpCode: opCode}, nil
	}
}

func (p *Printer) readSubnegotiation() (Command, error) {
	data := []byte{IAC, SB}

	for {
		b, err := p.reader.ReadByte()
		if err != nil {
			return Command{}, unexpectedEOF(err)
		}

		data = append(data, b)
		if b != IAC {
			continue
		}

		next, err := p.reader.ReadByte()
		if err != nil {
			return Command{}, unexpectedEOF(err)
		}

		data = append(data, next)
		if next == SE {
			return ParseCommand(data)
		}

		if next != IAC {
			return Command{}, fmt.Errorf("telnet: subnegotiation interrupted by %s", CommandStream([]byte{IAC, next}))
		}
	}
}
