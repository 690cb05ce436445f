package screen

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/moodclient/tn3270/datastream"
)

type UpdateType int

const (
	// UpdateInbound follows a host datastream
	UpdateInbound UpdateType = iota
	// UpdateOutbound follows an attention key
	UpdateOutbound
	// UpdateLocal follows typing and cursor movement
	UpdateLocal
)

func (t UpdateType) String() string {
	switch t {
	case UpdateInbound:
		return "inbound"
	case UpdateOutbound:
		return "outbound"
	case UpdateLocal:
		return "local"
	}

	return fmt.Sprintf("UpdateType(%d)", int(t))
}

// UpdateEvent describes a change to the screen. Listeners receive a Snapshot instead of
// the screen itself, since they run while the screen is locked.
type UpdateEvent struct {
	Type UpdateType

	// Message and Reply are populated for inbound updates
	Message *datastream.InboundMessage
	Reply   []byte
	Alarm   bool

	// AID and Outbound are populated for outbound updates
	AID      datastream.AID
	Outbound []byte

	Snapshot Snapshot
}

// UpdateListener is called synchronously on every screen update and must not block
type UpdateListener func(event UpdateEvent)

func (s *Screen) RegisterUpdateListener(listener UpdateListener) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.listeners = append(s.listeners, listener)
}

// publish wakes waiters and calls listeners. The screen lock must be held.
func (s *Screen) publish(event UpdateEvent) {
	close(s.changed)
	s.changed = make(chan struct{})

	if len(s.listeners) == 0 {
		return
	}

	event.Snapshot = s.snapshot()
	for _, listener := range s.listeners {
		listener(event)
	}
}

// FieldView is a copy of one field
type FieldView struct {
	Start int
	End   int
	// StartOfField is true for attribute positions. Attribute is the field's own attribute
	// for those and the governing attribute for everything else.
	StartOfField bool
	Attribute    datastream.FieldAttribute
	Extended     []datastream.AttributePair
	Text         []rune
}

// Snapshot is a point-in-time copy of the screen
type Snapshot struct {
	Rows           int
	Columns        int
	Cursor         int
	KeyboardLocked bool
	Fields         []FieldView
}

func (s *Screen) Snapshot() Snapshot {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.snapshot()
}

func (s *Screen) snapshot() Snapshot {
	fields := make([]FieldView, 0, len(s.fields))
	for _, f := range s.fields {
		sof := s.governing(f)
		_, isSOF := f.(*StartOfField)

		fields = append(fields, FieldView{
			Start:        f.Start(),
			End:          f.End(),
			StartOfField: isSOF,
			Attribute:    sof.Attribute,
			Extended:     append([]datastream.AttributePair(nil), sof.Extended...),
			Text:         append([]rune(nil), f.Runes()...),
		})
	}

	return Snapshot{
		Rows:           s.rows,
		Columns:        s.columns,
		Cursor:         s.cursor,
		KeyboardLocked: s.keyboard.IsLocked(),
		Fields:         fields,
	}
}

// FieldAt returns the field covering a buffer position
func (s Snapshot) FieldAt(pos int) (FieldView, bool) {
	for _, f := range s.Fields {
		if pos >= f.Start && pos <= f.End {
			return f, true
		}
	}

	return FieldView{}, false
}

// Display returns what each buffer position shows. Attribute positions, nulls and the
// contents of non-display fields are blanks.
func (s Snapshot) Display() []rune {
	display := make([]rune, 0, s.Rows*s.Columns)
	for _, f := range s.Fields {
		if f.StartOfField || !f.Attribute.Display() {
			for range f.End - f.Start + 1 {
				display = append(display, ' ')
			}

			continue
		}

		display = append(display, []rune(renderRunes(f.Text))...)
	}

	return display
}

// Lines returns the displayed screen one row at a time
func (s Snapshot) Lines() []string {
	display := s.Display()

	lines := make([]string, 0, s.Rows)
	for row := 0; row < s.Rows; row++ {
		lines = append(lines, string(display[row*s.Columns:(row+1)*s.Columns]))
	}

	return lines
}

func (s Snapshot) String() string {
	return strings.Join(s.Lines(), "\n")
}

func renderRunes(runes []rune) string {
	var sb strings.Builder
	for _, r := range runes {
		if r == 0 || !unicode.IsPrint(r) {
			sb.WriteByte(' ')
			continue
		}

		sb.WriteRune(r)
	}

	return sb.String()
}

// RetrieveScreen returns the displayed screen with rows separated by newlines
func (s *Screen) RetrieveScreen() string {
	return s.Snapshot().String()
}

// RetrieveFieldAtCursor returns the text of the field the cursor is in, with nulls as
// blanks
func (s *Screen) RetrieveFieldAtCursor() (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	f := s.fields[s.fieldIndexAt(s.cursor)]
	if _, isSOF := f.(*StartOfField); isSOF {
		return "", fmt.Errorf("%w: cursor is on an attribute at %d", ErrFieldNotFound, s.cursor)
	}

	return renderRunes(f.Runes()), nil
}

// WaitForKeyboard blocks until the host unlocks the keyboard
func (s *Screen) WaitForKeyboard(timeout time.Duration) error {
	err := s.keyboard.Wait(timeout)
	if err != nil {
		return fmt.Errorf("%w waiting %s for keyboard", err, timeout)
	}

	return nil
}

// WaitForTextInField blocks until one of the texts appears in a field and returns the
// index of the text that was found
func (s *Screen) WaitForTextInField(timeout time.Duration, texts ...string) (int, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		s.lock.Lock()
		found := s.findText(texts)
		changed := s.changed
		s.lock.Unlock()

		if found >= 0 {
			return found, nil
		}

		select {
		case <-changed:
		case <-timer.C:
			return -1, fmt.Errorf("%w waiting %s for %q", ErrTimeout, timeout, texts)
		}
	}
}

func (s *Screen) findText(texts []string) int {
	for _, f := range s.fields {
		if _, isSOF := f.(*StartOfField); isSOF {
			continue
		}

		rendered := renderRunes(f.Runes())
		for i, text := range texts {
			if strings.Contains(rendered, text) {
				return i
			}
		}
	}

	return -1
}
