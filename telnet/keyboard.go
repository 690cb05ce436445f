package telnet

import (
	"io"
	"sync"
)

// Keyboard writes commands and records to the outbound side of a connection. Writes are
// serialized so that the printer loop (query replies, responses) and the consumer (key
// presses) never interleave bytes of two records.
type Keyboard struct {
	lock         sync.Mutex
	outputStream io.Writer
}

// NewKeyboard wraps the outbound side of a connection
func NewKeyboard(output io.Writer) *Keyboard {
	return &Keyboard{outputStream: output}
}

func (k *Keyboard) writeOutput(b []byte) error {
	k.lock.Lock()
	defer k.lock.Unlock()

	_, err := k.outputStream.Write(b)
	return err
}

// WriteCommand sends a single command
func (k *Keyboard) WriteCommand(c Command) error {
	return k.writeOutput(c.Bytes())
}

// WriteRecord sends a datastream record, doubling 255s and terminating it with IAC EOR
func (k *Keyboard) WriteRecord(record []byte) error {
	b := EscapeIAC(record)
	b = append(b, IAC, EOR)

	return k.writeOutput(b)
}
