package screen

import (
	"fmt"
	"strings"

	"github.com/moodclient/tn3270/charset"
)

// Tab moves the cursor to the first position of the next unprotected field, wrapping
// around the screen. When the field the cursor is in is the only unprotected field, Tab
// does not fail: the cursor goes back to the start of that field.
// ErrFieldNotFound is returned only when the screen has no unprotected field.
func (s *Screen) Tab() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	current := s.fieldIndexAt(s.cursor)
	for step := 1; step <= len(s.fields); step++ {
		index := (current + step) % len(s.fields)
		if s.isTabStop(index) {
			s.cursor = s.fields[index].Start()
			s.publish(UpdateEvent{Type: UpdateLocal})
			return nil
		}
	}

	return ErrFieldNotFound
}

// BackTab moves the cursor to the first position of the current unprotected field, or
// when it is already there, to the first position of the previous one
func (s *Screen) BackTab() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	current := s.fieldIndexAt(s.cursor)
	if s.isTabStop(current) && s.cursor > s.fields[current].Start() {
		s.cursor = s.fields[current].Start()
		s.publish(UpdateEvent{Type: UpdateLocal})
		return nil
	}

	for step := 1; step <= len(s.fields); step++ {
		index := (current - step + len(s.fields)) % len(s.fields)
		if s.isTabStop(index) {
			s.cursor = s.fields[index].Start()
			s.publish(UpdateEvent{Type: UpdateLocal})
			return nil
		}
	}

	return ErrFieldNotFound
}

// Home moves the cursor to the first unprotected field on the screen, or to the first
// position when there is none
func (s *Screen) Home() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.cursor = s.home()
	s.publish(UpdateEvent{Type: UpdateLocal})
}

func (s *Screen) home() int {
	for i := range s.fields {
		if s.isTabStop(i) {
			return s.fields[i].Start()
		}
	}

	return 0
}

// MoveCursor places the cursor at a zero-based row and column
func (s *Screen) MoveCursor(row, column int) error {
	if row < 0 || row >= s.rows || column < 0 || column >= s.columns {
		return fmt.Errorf("%w: row %d column %d", ErrCursorOutOfRange, row, column)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.cursor = row*s.columns + column
	s.publish(UpdateEvent{Type: UpdateLocal})
	return nil
}

func (s *Screen) moveBy(offset int) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.cursor = ((s.cursor+offset)%s.size + s.size) % s.size
	s.publish(UpdateEvent{Type: UpdateLocal})
}

func (s *Screen) CursorUp()    { s.moveBy(-s.columns) }
func (s *Screen) CursorDown()  { s.moveBy(s.columns) }
func (s *Screen) CursorLeft()  { s.moveBy(-1) }
func (s *Screen) CursorRight() { s.moveBy(1) }

// NewLine moves the cursor to the first unprotected position on the following row,
// continuing to the next unprotected field when that row has none
func (s *Screen) NewLine() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	rowStart := ((s.cursor/s.columns + 1) * s.columns) % s.size
	index := s.fieldIndexAt(rowStart)
	if s.isTypeable(index) {
		s.cursor = rowStart
		s.publish(UpdateEvent{Type: UpdateLocal})
		return nil
	}

	for step := 1; step <= len(s.fields); step++ {
		next := (index + step) % len(s.fields)
		if s.isTabStop(next) {
			s.cursor = s.fields[next].Start()
			s.publish(UpdateEvent{Type: UpdateLocal})
			return nil
		}
	}

	return ErrFieldNotFound
}

// Type writes text at the cursor, which must be inside an unprotected field with room for
// all of it. The field is marked modified and the cursor moves past the text.
func (s *Screen) Type(text string) error {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	if !s.codepage.CanEncode(text) {
		return fmt.Errorf("%w: %q", charset.ErrUnencodable, text)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.keyboard.IsLocked() {
		return ErrKeyboardLocked
	}

	index := s.fieldIndexAt(s.cursor)
	if !s.isTypeable(index) {
		return fmt.Errorf("%w: position %d", ErrProtectedField, s.cursor)
	}

	f := s.fields[index]
	if room := f.End() - s.cursor + 1; len(runes) > room {
		return fmt.Errorf("%w: %d characters, %d available", ErrFieldOverflow, len(runes), room)
	}

	sof := s.governing(f)

	s.insert(newTextField(s.cursor, runes))
	s.settle()

	sof.Attribute = sof.Attribute.WithModified(true)
	s.cursor = (s.cursor + len(runes)) % s.size

	s.publish(UpdateEvent{Type: UpdateLocal})
	return nil
}

// EraseEOF nulls the rest of the field from the cursor and marks the field modified
func (s *Screen) EraseEOF() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.keyboard.IsLocked() {
		return ErrKeyboardLocked
	}

	index := s.fieldIndexAt(s.cursor)
	if !s.isTypeable(index) {
		return fmt.Errorf("%w: position %d", ErrProtectedField, s.cursor)
	}

	f := s.fields[index]
	sof := s.governing(f)

	s.insert(newCharsField(s.cursor, f.End(), 0))
	s.settle()

	sof.Attribute = sof.Attribute.WithModified(true)

	s.publish(UpdateEvent{Type: UpdateLocal})
	return nil
}

// PositionCursorToFieldContaining moves the cursor to the first position of the first field
// whose text contains the search text
func (s *Screen) PositionCursorToFieldContaining(text string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	for _, f := range s.fields {
		if _, isSOF := f.(*StartOfField); isSOF {
			continue
		}

		if strings.Contains(renderRunes(f.Runes()), text) {
			s.cursor = f.Start()
			s.publish(UpdateEvent{Type: UpdateLocal})
			return nil
		}
	}

	return fmt.Errorf("%w: %q", ErrTextNotFound, text)
}
