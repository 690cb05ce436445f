package datastream

import (
	"encoding/binary"

	"github.com/moodclient/tn3270/charset"
)

// Encoder builds terminal-to-host datastreams for a single terminal model
type Encoder struct {
	codepage *charset.Codepage
	rows     int
	columns  int
}

func NewEncoder(codepage *charset.Codepage, rows, columns int) *Encoder {
	return &Encoder{
		codepage: codepage,
		rows:     rows,
		columns:  columns,
	}
}

func (e *Encoder) screenSize() int {
	return e.rows * e.columns
}

// Inbound starts a new terminal-to-host datastream with the AID and cursor address every
// such datastream begins with
func (e *Encoder) Inbound(aid AID, cursor int) *InboundBuilder {
	address := EncodeAddress(cursor, e.screenSize())

	return &InboundBuilder{
		encoder: e,
		buffer:  []byte{byte(aid), address[0], address[1]},
	}
}

// ShortRead builds the datastream for keys that send no field data
func (e *Encoder) ShortRead(aid AID, cursor int) []byte {
	return e.Inbound(aid, cursor).Bytes()
}

// InboundBuilder accumulates the orders and characters of a terminal-to-host datastream
type InboundBuilder struct {
	encoder *Encoder
	buffer  []byte
}

// SetBufferAddress writes an SBA order
func (b *InboundBuilder) SetBufferAddress(address int) {
	encoded := EncodeAddress(address, b.encoder.screenSize())
	b.buffer = append(b.buffer, orderSetBufferAddress, encoded[0], encoded[1])
}

// StartField writes an SF order, used by Read Buffer replies
func (b *InboundBuilder) StartField(attr FieldAttribute) {
	b.buffer = append(b.buffer, orderStartField, EncodeAttribute(attr))
}

// Text writes characters in the host codepage
func (b *InboundBuilder) Text(text []rune) error {
	encoded, err := b.encoder.codepage.Encode(text)
	if err != nil {
		return err
	}

	b.buffer = append(b.buffer, encoded...)
	return nil
}

// Bytes returns the datastream built so far
func (b *InboundBuilder) Bytes() []byte {
	return b.buffer
}

func appendStructuredField(buffer []byte, body ...byte) []byte {
	buffer = binary.BigEndian.AppendUint16(buffer, uint16(len(body)+2))
	return append(buffer, body...)
}

// QueryReply builds the reply to a Read Partition Query: a Summary listing the replies
// that follow, then Usable Area, Character Sets and Implicit Partition
func (e *Encoder) QueryReply() []byte {
	rows := uint16(e.rows)
	columns := uint16(e.columns)
	size := uint16(e.screenSize())

	reply := []byte{byte(AIDStructuredField)}

	reply = appendStructuredField(reply,
		0x81, QueryReplySummary,
		QueryReplySummary, QueryReplyUsableArea, QueryReplyCharacterSets, QueryReplyImplicitPartition,
	)

	reply = appendStructuredField(reply,
		0x81, QueryReplyUsableArea,
		0x01, 0x00, // 12/14-bit addressing, no special features
		byte(columns>>8), byte(columns),
		byte(rows>>8), byte(rows),
		0x01,                   // units are millimeters
		0x00, 0x0A, 0x02, 0xE5, // horizontal distance between points
		0x00, 0x02, 0x00, 0x6F, // vertical distance between points
		0x09, 0x0C,             // cell width and height
		byte(size>>8), byte(size),
	)

	reply = appendStructuredField(reply,
		0x81, QueryReplyCharacterSets,
		0x82, 0x00,             // graphic escape supported
		0x09, 0x0C,             // default cell size
		0x00, 0x00, 0x00, 0x00, // load PS formats
		0x07,                   // descriptor length
		0x00, 0x10, 0x00,       // default character set, no flags
		0x02, 0xB9, 0x00, 0x25, // CGCSGID 697/37
	)

	reply = appendStructuredField(reply,
		0x81, QueryReplyImplicitPartition,
		0x00, 0x00,
		0x0B, 0x01, 0x00,
		byte(columns>>8), byte(columns),
		byte(rows>>8), byte(rows),
		byte(columns>>8), byte(columns),
		byte(rows>>8), byte(rows),
	)

	return reply
}
