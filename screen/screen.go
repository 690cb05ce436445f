package screen

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/moodclient/tn3270/charset"
	"github.com/moodclient/tn3270/datastream"
)

// Screen is the terminal's presentation space: an ordered list of fields covering every
// buffer position, the cursor and the keyboard lock. Inbound host datastreams and local
// operator input both mutate it under the same mutex.
type Screen struct {
	lock sync.Mutex

	rows    int
	columns int
	size    int

	fields    []Field
	formatted bool
	cursor    int

	// implicit governs every position of an unformatted screen
	implicit *StartOfField

	keyboard *keyboardLock
	lastAID  datastream.AID

	codepage *charset.Codepage
	encoder  *datastream.Encoder

	changed   chan struct{}
	listeners []UpdateListener
}

func NewScreen(rows, columns int, codepage *charset.Codepage) *Screen {
	s := &Screen{
		rows:     rows,
		columns:  columns,
		size:     rows * columns,
		keyboard: newKeyboardLock(),
		lastAID:  datastream.AIDNone,
		codepage: codepage,
		encoder:  datastream.NewEncoder(codepage, rows, columns),
		changed:  make(chan struct{}),
	}
	s.erase()

	return s
}

// Size returns the screen dimensions
func (s *Screen) Size() (rows int, columns int) {
	return s.rows, s.columns
}

func (s *Screen) Cursor() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.cursor
}

// CursorRowCol returns the zero-based row and column of the cursor
func (s *Screen) CursorRowCol() (int, int) {
	cursor := s.Cursor()
	return cursor / s.columns, cursor % s.columns
}

func (s *Screen) IsKeyboardLocked() bool {
	return s.keyboard.IsLocked()
}

// Erase discards every field and leaves a single null run covering the screen
func (s *Screen) Erase() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.erase()
	s.publish(UpdateEvent{Type: UpdateLocal})
}

func (s *Screen) erase() {
	s.fields = []Field{newCharsField(0, s.size-1, 0)}
	s.implicit = newStartOfField(-1, 0, nil)
	s.cursor = 0
	s.relink()
}

func (s *Screen) fieldIndexAt(pos int) int {
	return sort.Search(len(s.fields), func(i int) bool {
		return s.fields[i].End() >= pos
	})
}

// insert places a field that does not wrap, splitting whatever it overlaps. The list
// needs normalize and relink afterward.
func (s *Screen) insert(f Field) {
	i := s.fieldIndexAt(f.Start())
	j := s.fieldIndexAt(f.End())

	if i == j {
		existing, existingIsText := s.fields[i].(*TextField)
		replacement, replacementIsText := f.(*TextField)
		if existingIsText && replacementIsText && existing.start == f.Start() && existing.end == f.End() {
			existing.Text = replacement.Text
			return
		}
	}

	replacements := make([]Field, 0, 3)
	if first := s.fields[i]; first.Start() < f.Start() {
		replacements = append(replacements, first.slice(first.Start(), f.Start()-1))
	}
	replacements = append(replacements, f)
	if last := s.fields[j]; last.End() > f.End() {
		replacements = append(replacements, last.slice(f.End()+1, last.End()))
	}

	s.fields = slices.Replace(s.fields, i, j+1, replacements...)
}

// writeText writes text starting at pos, wrapping past the end of the buffer, and returns
// the position after the last character
func (s *Screen) writeText(pos int, text []rune) int {
	for len(text) > 0 {
		n := min(len(text), s.size-pos)
		s.insert(newTextField(pos, slices.Clone(text[:n])))
		text = text[n:]
		pos = (pos + n) % s.size
	}

	return pos
}

// fill writes count copies of char starting at pos, wrapping past the end of the buffer
func (s *Screen) fill(pos int, count int, char rune) {
	for count > 0 {
		n := min(count, s.size-pos)
		s.insert(newCharsField(pos, pos+n-1, char))
		count -= n
		pos = (pos + n) % s.size
	}
}

// normalize merges adjacent character fields so that lookups scale with the number of
// 3270 fields rather than the number of writes
func (s *Screen) normalize() {
	normalized := make([]Field, 0, len(s.fields))
	for _, f := range s.fields {
		if len(normalized) > 0 {
			if merged := merge(normalized[len(normalized)-1], f); merged != nil {
				normalized[len(normalized)-1] = merged
				continue
			}
		}

		normalized = append(normalized, f)
	}

	s.fields = normalized
}

// relink points every character field at the attribute that governs it. Positions before
// the first attribute belong to the last attribute in the buffer.
func (s *Screen) relink() {
	current := -1
	for i := len(s.fields) - 1; i >= 0; i-- {
		if _, isSOF := s.fields[i].(*StartOfField); isSOF {
			current = i
			break
		}
	}

	s.formatted = current >= 0

	for i, f := range s.fields {
		switch f := f.(type) {
		case *StartOfField:
			current = i
		case *TextField:
			f.sof = current
		case *CharsField:
			f.sof = current
		}
	}
}

// settle restores the field list invariants after a batch of inserts
func (s *Screen) settle() {
	s.normalize()
	s.relink()
	s.verify()
}

// verify panics if the fields no longer tile the buffer. A broken partition is a bug in
// this package, not something a host can cause.
func (s *Screen) verify() {
	next := 0
	for _, f := range s.fields {
		if f.Start() != next || f.End() < f.Start() {
			panic(fmt.Sprintf("screen: field %d-%d breaks partition at %d", f.Start(), f.End(), next))
		}
		if text, isText := f.(*TextField); isText && len(text.Text) != f.Len() {
			panic(fmt.Sprintf("screen: text field %d-%d holds %d characters", f.Start(), f.End(), len(text.Text)))
		}

		next = f.End() + 1
	}

	if next != s.size {
		panic(fmt.Sprintf("screen: fields cover %d of %d positions", next, s.size))
	}
}

// governing returns the attribute that controls a field
func (s *Screen) governing(f Field) *StartOfField {
	var index int
	switch f := f.(type) {
	case *StartOfField:
		return f
	case *TextField:
		index = f.sof
	case *CharsField:
		index = f.sof
	}

	if index < 0 {
		return s.implicit
	}

	return s.fields[index].(*StartOfField)
}

func (s *Screen) isTypeable(index int) bool {
	f := s.fields[index]
	if _, isSOF := f.(*StartOfField); isSOF {
		return false
	}

	return !s.governing(f).Attribute.Protected()
}

// isTabStop reports whether a field holds the first data position of an unprotected 3270
// field. The continuation of a field that wraps the buffer is not a tab stop.
func (s *Screen) isTabStop(index int) bool {
	if !s.isTypeable(index) {
		return false
	}

	if !s.formatted {
		return index == 0
	}

	previous := s.fields[(index-1+len(s.fields))%len(s.fields)]
	_, isSOF := previous.(*StartOfField)
	return isSOF
}

func (s *Screen) attributes() []*StartOfField {
	var attributes []*StartOfField
	for _, f := range s.fields {
		if sof, isSOF := f.(*StartOfField); isSOF {
			attributes = append(attributes, sof)
		}
	}

	if !s.formatted {
		attributes = append(attributes, s.implicit)
	}

	return attributes
}

func (s *Screen) resetModified() {
	for _, sof := range s.attributes() {
		sof.Attribute = sof.Attribute.WithModified(false)
	}
}
