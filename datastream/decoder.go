package datastream

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/moodclient/tn3270/charset"
)

// DatastreamError is returned when an inbound datastream cannot be decoded. A datastream
// error is fatal for the record being decoded.
type DatastreamError struct {
	Offset int
	Reason string
}

func (e *DatastreamError) Error() string {
	return fmt.Sprintf("datastream: %s at offset %d", e.Reason, e.Offset)
}

func newError(offset int, format string, args ...any) *DatastreamError {
	return &DatastreamError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

// InboundMessage is a single decoded host datastream. Write-type commands populate WCC
// and Orders, Write Structured Field populates StructuredFields, and the read commands
// and Erase All Unprotected carry nothing beyond the command.
type InboundMessage struct {
	Command          CommandCode
	WCC              WCC
	Orders           []Order
	StructuredFields []StructuredField
}

func (m *InboundMessage) String() string {
	var sb strings.Builder
	sb.WriteString(m.Command.String())

	if m.Command.HasOrders() {
		sb.WriteByte(' ')
		sb.WriteString(m.WCC.String())
		for _, o := range m.Orders {
			sb.WriteByte(' ')
			sb.WriteString(o.String())
		}
	}

	for _, sf := range m.StructuredFields {
		sb.WriteByte(' ')
		sb.WriteString(sf.String())
	}

	return sb.String()
}

// Decoder turns host records into InboundMessages. Addresses are validated against the
// screen size, so a decoder is built for one terminal model.
type Decoder struct {
	codepage   *charset.Codepage
	screenSize int
}

func NewDecoder(codepage *charset.Codepage, screenSize int) *Decoder {
	return &Decoder{
		codepage:   codepage,
		screenSize: screenSize,
	}
}

// Decode parses a single 3270 datastream, without any TN3270E header
func (d *Decoder) Decode(data []byte) (*InboundMessage, error) {
	if len(data) == 0 {
		return nil, newError(0, "empty datastream")
	}

	command, known := parseCommandCode(data[0])
	if !known {
		return nil, newError(0, "unknown command code %#02x", data[0])
	}

	if command == CommandWriteStructuredField {
		fields, err := d.decodeStructuredFields(data[1:], 1)
		if err != nil {
			return nil, err
		}

		return &InboundMessage{Command: command, StructuredFields: fields}, nil
	}

	return d.decodePlain(command, data[1:], 1)
}

// decodePlain decodes everything that follows a non-structured command code
func (d *Decoder) decodePlain(command CommandCode, data []byte, base int) (*InboundMessage, error) {
	msg := &InboundMessage{Command: command}
	if !command.HasOrders() {
		return msg, nil
	}

	if len(data) < 1 {
		return nil, newError(base, "%s is missing its WCC", command)
	}

	msg.WCC = WCC(data[0])

	orders, err := d.decodeOrders(data[1:], base+1)
	if err != nil {
		return nil, err
	}

	msg.Orders = orders
	return msg, nil
}

func (d *Decoder) operands(data []byte, i int, count int, base int, name string) ([]byte, error) {
	if i+count >= len(data) {
		return nil, newError(base+i, "%s order truncated", name)
	}

	return data[i+1 : i+1+count], nil
}

func (d *Decoder) address(b []byte, offset int) (int, error) {
	address := DecodeAddress(b[0], b[1])
	if address >= d.screenSize {
		return 0, newError(offset, "buffer address %d outside of screen size %d", address, d.screenSize)
	}

	return address, nil
}

func (d *Decoder) pairs(data []byte, i int, base int, name string) ([]AttributePair, int, error) {
	countBytes, err := d.operands(data, i, 1, base, name)
	if err != nil {
		return nil, 0, err
	}

	count := int(countBytes[0])
	raw, err := d.operands(data, i+1, count*2, base, name)
	if err != nil {
		return nil, 0, err
	}

	pairs := make([]AttributePair, 0, count)
	for p := 0; p < count; p++ {
		pairs = append(pairs, AttributePair{Type: raw[p*2], Value: raw[p*2+1]})
	}

	return pairs, 2 + count*2, nil
}

func (d *Decoder) decodeOrders(data []byte, base int) ([]Order, error) {
	var orders []Order
	var text []rune

	flushText := func() {
		if len(text) > 0 {
			orders = append(orders, Text{Text: text})
			text = nil
		}
	}

	i := 0
	for i < len(data) {
		b := data[i]

		if isTextByte(b) {
			text = append(text, d.codepage.DecodeByte(b))
			i++
			continue
		}

		switch b {
		case orderGraphicEscape:
			char, err := d.operands(data, i, 1, base, "GE")
			if err != nil {
				return nil, err
			}

			text = append(text, d.codepage.DecodeByte(char[0]))
			i += 2
			continue
		case orderSetBufferAddress:
			addr, err := d.operands(data, i, 2, base, "SBA")
			if err != nil {
				return nil, err
			}

			address, err := d.address(addr, base+i+1)
			if err != nil {
				return nil, err
			}

			flushText()
			orders = append(orders, SetBufferAddress{Address: address})
			i += 3
		case orderStartField:
			attr, err := d.operands(data, i, 1, base, "SF")
			if err != nil {
				return nil, err
			}

			flushText()
			orders = append(orders, StartField{Attribute: FieldAttribute(attr[0] & attributeSignificant)})
			i += 2
		case orderStartFieldExtended:
			pairs, consumed, err := d.pairs(data, i, base, "SFE")
			if err != nil {
				return nil, err
			}

			attr, _, extended := SplitAttributes(pairs)

			flushText()
			orders = append(orders, StartField{Attribute: attr, Extended: extended})
			i += consumed
		case orderInsertCursor:
			flushText()
			orders = append(orders, InsertCursor{})
			i++
		case orderProgramTab:
			flushText()
			orders = append(orders, ProgramTab{})
			i++
		case orderRepeatToAddress:
			operands, err := d.operands(data, i, 3, base, "RA")
			if err != nil {
				return nil, err
			}

			stop, err := d.address(operands, base+i+1)
			if err != nil {
				return nil, err
			}

			consumed := 4
			charByte := operands[2]
			if charByte == orderGraphicEscape {
				escaped, err := d.operands(data, i+3, 1, base, "RA")
				if err != nil {
					return nil, err
				}

				charByte = escaped[0]
				consumed++
			}

			flushText()
			orders = append(orders, RepeatToAddress{Char: d.codepage.DecodeByte(charByte), Stop: stop})
			i += consumed
		case orderEraseUnprotectedToAddress:
			addr, err := d.operands(data, i, 2, base, "EUA")
			if err != nil {
				return nil, err
			}

			stop, err := d.address(addr, base+i+1)
			if err != nil {
				return nil, err
			}

			flushText()
			orders = append(orders, EraseUnprotectedToAddress{Stop: stop})
			i += 3
		case orderSetAttribute:
			pair, err := d.operands(data, i, 2, base, "SA")
			if err != nil {
				return nil, err
			}

			flushText()
			orders = append(orders, SetAttribute{Attribute: AttributePair{Type: pair[0], Value: pair[1]}})
			i += 3
		case orderModifyField:
			pairs, consumed, err := d.pairs(data, i, base, "MF")
			if err != nil {
				return nil, err
			}

			flushText()
			orders = append(orders, ModifyField{Pairs: pairs})
			i += consumed
		default:
			return nil, newError(base+i, "unknown order %#02x", b)
		}
	}

	flushText()
	return orders, nil
}

func (d *Decoder) decodeStructuredFields(data []byte, base int) ([]StructuredField, error) {
	var fields []StructuredField

	i := 0
	for i < len(data) {
		if i+2 > len(data) {
			return nil, newError(base+i, "structured field length truncated")
		}

		length := int(binary.BigEndian.Uint16(data[i:]))
		if length == 0 {
			length = len(data) - i
		}

		if length < 3 || i+length > len(data) {
			return nil, newError(base+i, "structured field length %d invalid", length)
		}

		field, err := d.decodeStructuredField(data[i+3:i+length], data[i+2], base+i)
		if err != nil {
			return nil, err
		}

		fields = append(fields, field)
		i += length
	}

	return fields, nil
}

func (d *Decoder) decodeStructuredField(body []byte, id byte, offset int) (StructuredField, error) {
	switch id {
	case sfidReadPartition:
		if len(body) < 2 {
			return nil, newError(offset, "read partition field truncated")
		}

		switch body[1] {
		case readPartitionQuery:
			return ReadPartitionQuery{PartitionID: body[0]}, nil
		case readPartitionQueryList:
			return ReadPartitionQuery{
				PartitionID: body[0],
				List:        true,
				Requested:   append([]byte(nil), body[2:]...),
			}, nil
		}

		return nil, newError(offset, "unsupported read partition type %#02x", body[1])
	case sfidEraseReset:
		return EraseReset{Alternate: len(body) > 0 && body[0]&0x80 != 0}, nil
	case sfidOutbound3270DS:
		if len(body) < 2 {
			return nil, newError(offset, "outbound 3270DS field truncated")
		}

		command, known := parseCommandCode(body[1])
		if !known || command == CommandWriteStructuredField {
			return nil, newError(offset+4, "unsupported outbound 3270DS command %#02x", body[1])
		}

		msg, err := d.decodePlain(command, body[2:], offset+5)
		if err != nil {
			return nil, err
		}

		return Outbound3270DS{PartitionID: body[0], Message: msg}, nil
	}

	return nil, newError(offset+2, "unknown structured field %#02x", id)
}
