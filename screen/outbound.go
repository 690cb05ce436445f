package screen

import (
	"github.com/moodclient/tn3270/datastream"
)

// AID locks the keyboard and builds the datastream for an attention key. Enter and the PF
// keys carry the contents of every modified field; Clear, the PA keys and SysReq carry
// only the AID and cursor. Clear also erases the screen.
func (s *Screen) AID(aid datastream.AID) ([]byte, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.keyboard.Lock(); err != nil {
		return nil, err
	}

	outbound, err := s.readModified(aid, false)
	if err != nil {
		s.keyboard.Unlock()
		return nil, err
	}

	s.lastAID = aid
	if aid == datastream.AIDClear {
		s.erase()
	}

	s.publish(UpdateEvent{Type: UpdateOutbound, AID: aid, Outbound: outbound})
	return outbound, nil
}

// readModified builds a Read Modified reply. Unless all is set, short read keys send only
// the AID and cursor.
func (s *Screen) readModified(aid datastream.AID, all bool) ([]byte, error) {
	if aid.IsShortRead() && !all {
		return s.encoder.ShortRead(aid, s.cursor), nil
	}

	builder := s.encoder.Inbound(aid, s.cursor)

	if !s.formatted {
		for _, f := range s.fields {
			if err := builder.Text(stripNulls(f.Runes())); err != nil {
				return nil, err
			}
		}

		return builder.Bytes(), nil
	}

	// Start at the first attribute so that a field which wraps the buffer is sent as one
	// run of characters
	first := 0
	for i, f := range s.fields {
		if _, isSOF := f.(*StartOfField); isSOF {
			first = i
			break
		}
	}

	modified := false
	for step := 0; step < len(s.fields); step++ {
		f := s.fields[(first+step)%len(s.fields)]

		if sof, isSOF := f.(*StartOfField); isSOF {
			modified = sof.Attribute.Modified()
			if modified {
				builder.SetBufferAddress((sof.Start() + 1) % s.size)
			}

			continue
		}

		if modified {
			if err := builder.Text(stripNulls(f.Runes())); err != nil {
				return nil, err
			}
		}
	}

	return builder.Bytes(), nil
}

// readBuffer builds a Read Buffer reply: every buffer position in order, with attributes
// sent as Start Field orders
func (s *Screen) readBuffer() ([]byte, error) {
	builder := s.encoder.Inbound(s.lastAID, s.cursor)

	for _, f := range s.fields {
		if sof, isSOF := f.(*StartOfField); isSOF {
			builder.StartField(sof.Attribute)
			continue
		}

		if err := builder.Text(f.Runes()); err != nil {
			return nil, err
		}
	}

	return builder.Bytes(), nil
}

func stripNulls(runes []rune) []rune {
	stripped := make([]rune, 0, len(runes))
	for _, r := range runes {
		if r != 0 {
			stripped = append(stripped, r)
		}
	}

	return stripped
}
