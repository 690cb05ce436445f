package screen

import (
	"github.com/moodclient/tn3270/datastream"
)

// ProcessInboundMessage applies a host datastream to the screen. When the host asked for
// a reply (a read command or a Read Partition Query) the reply datastream is returned; the
// caller is responsible for framing and sending it.
func (s *Screen) ProcessInboundMessage(msg *datastream.InboundMessage) ([]byte, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	reply, alarm, err := s.apply(msg)
	if err != nil {
		return nil, err
	}

	s.publish(UpdateEvent{
		Type:    UpdateInbound,
		Message: msg,
		Reply:   reply,
		Alarm:   alarm,
	})

	return reply, nil
}

func (s *Screen) apply(msg *datastream.InboundMessage) (reply []byte, alarm bool, err error) {
	switch msg.Command {
	case datastream.CommandEraseWrite, datastream.CommandEraseWriteAlternate:
		s.erase()
		alarm = s.write(msg.WCC, msg.Orders)
	case datastream.CommandWrite:
		alarm = s.write(msg.WCC, msg.Orders)
	case datastream.CommandEraseAllUnprotected:
		s.eraseAllUnprotected()
	case datastream.CommandReadBuffer:
		reply, err = s.readBuffer()
	case datastream.CommandReadModified:
		reply, err = s.readModified(s.lastAID, false)
	case datastream.CommandReadModifiedAll:
		reply, err = s.readModified(s.lastAID, true)
	case datastream.CommandWriteStructuredField:
		for _, sf := range msg.StructuredFields {
			switch sf := sf.(type) {
			case datastream.ReadPartitionQuery:
				reply = append(reply, s.encoder.QueryReply()...)
			case datastream.EraseReset:
				s.erase()
			case datastream.Outbound3270DS:
				nestedReply, nestedAlarm, err := s.apply(sf.Message)
				if err != nil {
					return nil, false, err
				}

				reply = append(reply, nestedReply...)
				alarm = alarm || nestedAlarm
			}
		}
	}

	return reply, alarm, err
}

// write applies the orders of a Write or Erase/Write and reports whether the host asked
// for the alarm
func (s *Screen) write(wcc datastream.WCC, orders []datastream.Order) bool {
	if wcc.ResetMDT() {
		s.resetModified()
	}

	working := 0
	for _, order := range orders {
		switch o := order.(type) {
		case datastream.SetBufferAddress:
			working = o.Address
		case datastream.StartField:
			s.insert(newStartOfField(working, o.Attribute, o.Extended))
			working = (working + 1) % s.size
		case datastream.Text:
			working = s.writeText(working, o.Text)
		case datastream.RepeatToAddress:
			s.fill(working, s.distance(working, o.Stop), o.Char)
			working = o.Stop
		case datastream.InsertCursor:
			s.cursor = working
		case datastream.EraseUnprotectedToAddress:
			s.eraseUnprotected(working, s.distance(working, o.Stop))
			working = o.Stop
		case datastream.ProgramTab:
			working = s.programTab(working)
		case datastream.ModifyField:
			working = s.modifyField(working, o.Pairs)
		case datastream.SetAttribute:
			// Character attributes are not part of the field model
		}
	}

	s.settle()

	if wcc.KeyboardRestore() {
		s.lastAID = datastream.AIDNone
		s.keyboard.Unlock()
	}

	return wcc.SoundAlarm()
}

// distance counts the positions from start up to but not including stop, wrapping past the
// end of the buffer. A stop equal to start covers the whole buffer.
func (s *Screen) distance(start, stop int) int {
	if stop > start {
		return stop - start
	}

	return s.size - start + stop
}

func (s *Screen) eraseUnprotected(from int, count int) {
	s.relink()

	var erase []span
	pos := from
	for count > 0 {
		index := s.fieldIndexAt(pos)
		n := min(s.fields[index].End()-pos+1, count)

		if s.isTypeable(index) {
			erase = append(erase, span{pos, pos + n - 1})
		}

		count -= n
		pos = (pos + n) % s.size
	}

	for _, e := range erase {
		s.insert(newCharsField(e.start, e.end, 0))
	}
}

// programTab returns the first data position of the next unprotected field after pos, or
// zero when the end of the buffer is reached first
func (s *Screen) programTab(pos int) int {
	s.relink()

	for i := s.fieldIndexAt(pos) + 1; i < len(s.fields); i++ {
		sof, isSOF := s.fields[i].(*StartOfField)
		if isSOF && !sof.Attribute.Protected() {
			return (sof.Start() + 1) % s.size
		}
	}

	return 0
}

// modifyField updates the attribute at pos. When pos is not an attribute position the
// order does nothing.
func (s *Screen) modifyField(pos int, pairs []datastream.AttributePair) int {
	sof, isSOF := s.fields[s.fieldIndexAt(pos)].(*StartOfField)
	if !isSOF {
		return pos
	}

	attr, hasBasic, extended := datastream.SplitAttributes(pairs)
	if hasBasic {
		sof.Attribute = attr
	}

	for _, pair := range extended {
		if pair.Type == datastream.ExtendedAllAttributes {
			sof.Extended = nil
			continue
		}

		replaced := false
		for i := range sof.Extended {
			if sof.Extended[i].Type == pair.Type {
				sof.Extended[i] = pair
				replaced = true
			}
		}

		if !replaced {
			sof.Extended = append(sof.Extended, pair)
		}
	}

	return (pos + 1) % s.size
}

func (s *Screen) eraseAllUnprotected() {
	for i := range s.fields {
		if s.isTypeable(i) {
			f := s.fields[i]
			s.fields[i] = newCharsField(f.Start(), f.End(), 0)
		}
	}

	for _, sof := range s.attributes() {
		if !sof.Attribute.Protected() {
			sof.Attribute = sof.Attribute.WithModified(false)
		}
	}

	s.settle()
	s.cursor = s.home()
	s.lastAID = datastream.AIDNone
	s.keyboard.Unlock()
}

// Bytes with a meaning of their own in SSCP-LU data
const (
	sscpNewLine        byte = 0x15
	sscpCarriageReturn byte = 0x0D
	sscpStartField     byte = 0x1D
	sscpInsertCursor   byte = 0x13
)

// ProcessSSCPLU writes unformatted SSCP-LU data, such as a USS logon prompt, at the cursor.
// There is no command or WCC: NL moves to the next row, CR to the start of the row, a
// Start Field and its attribute byte take one blank position, and Insert Cursor marks
// where the cursor ends up. The cursor otherwise follows the text and the keyboard is
// unlocked.
func (s *Screen) ProcessSSCPLU(data []byte) {
	s.lock.Lock()
	defer s.lock.Unlock()

	working := s.cursor
	cursor := -1
	var run []rune

	flush := func() {
		working = s.writeText(working, run)
		run = nil
	}

	for i := 0; i < len(data); i++ {
		switch data[i] {
		case sscpNewLine:
			flush()
			working = ((working/s.columns + 1) * s.columns) % s.size
		case sscpCarriageReturn:
			flush()
			working = working / s.columns * s.columns
		case sscpStartField:
			run = append(run, ' ')
			i++
		case sscpInsertCursor:
			flush()
			cursor = working
		default:
			run = append(run, s.codepage.DecodeByte(data[i]))
		}
	}
	flush()
	s.settle()

	if cursor < 0 {
		cursor = working
	}
	s.cursor = cursor
	s.keyboard.Unlock()

	s.publish(UpdateEvent{Type: UpdateInbound})
}
