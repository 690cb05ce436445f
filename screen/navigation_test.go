package screen

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/moodclient/tn3270/datastream"
)

func TestTypeRoundTrip(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"ALICE", "ALICE      "},
		{"ABCDEFGHIJK", "ABCDEFGHIJK"},
		{"a b", "a b        "},
	}

	for _, c := range cases {
		s := formScreen(t)

		if err := s.Type(c.input); err != nil {
			t.Errorf("%q: unexpected error %v", c.input, err)
			continue
		}

		if err := s.MoveCursor(0, 9); err != nil {
			t.Fatal(err)
		}

		got, err := s.RetrieveFieldAtCursor()
		if err != nil || got != c.want {
			t.Errorf("Got %q %v, want %q", got, err, c.want)
		}
	}
}

func TestTypeAdvancesCursor(t *testing.T) {
	s := formScreen(t)

	if err := s.Type("AB"); err != nil {
		t.Fatal(err)
	}
	if err := s.Type("CD"); err != nil {
		t.Fatal(err)
	}

	if s.Cursor() != 13 {
		t.Errorf("Got cursor %d, want 13", s.Cursor())
	}

	got, _ := s.RetrieveFieldAtCursor()
	if !strings.HasPrefix(got, "ABCD") {
		t.Errorf("Got %q", got)
	}
}

func TestTypeErrors(t *testing.T) {
	s := formScreen(t)

	if err := s.Type("ABCDEFGHIJKL"); !errors.Is(err, ErrFieldOverflow) {
		t.Errorf("Got %v, want overflow", err)
	}

	if err := s.MoveCursor(0, 3); err != nil {
		t.Fatal(err)
	}
	if err := s.Type("X"); !errors.Is(err, ErrProtectedField) {
		t.Errorf("Got %v, want protected", err)
	}

	if err := s.MoveCursor(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.Type("X"); !errors.Is(err, ErrProtectedField) {
		t.Errorf("attribute position: Got %v, want protected", err)
	}

	if err := s.MoveCursor(24, 0); !errors.Is(err, ErrCursorOutOfRange) {
		t.Errorf("Got %v, want out of range", err)
	}

	if !strings.HasPrefix(s.RetrieveScreen(), " USERID: ") {
		t.Error("failed typing changed the screen")
	}

	locked := newTestScreen(t)
	if err := locked.Type("X"); !errors.Is(err, ErrKeyboardLocked) {
		t.Errorf("Got %v, want keyboard locked", err)
	}
}

// An attention key sent while an edit waits for the screen must win over the edit
func TestEditSeesKeyboardLockedWhileWaiting(t *testing.T) {
	edits := map[string]func(s *Screen) error{
		"type":      func(s *Screen) error { return s.Type("X") },
		"erase eof": func(s *Screen) error { return s.EraseEOF() },
	}

	for name, edit := range edits {
		s := formScreen(t)

		s.lock.Lock()
		result := make(chan error, 1)
		go func() { result <- edit(s) }()

		time.Sleep(10 * time.Millisecond)
		if err := s.keyboard.Lock(); err != nil {
			t.Fatal(err)
		}
		s.lock.Unlock()

		if err := <-result; !errors.Is(err, ErrKeyboardLocked) {
			t.Errorf("%s: Got %v, want keyboard locked", name, err)
		}

		if !strings.HasPrefix(s.RetrieveScreen()[9:], "           ") {
			t.Errorf("%s: edit changed the screen", name)
		}
	}
}

func TestTabWraps(t *testing.T) {
	s := formScreen(t)

	stops := []int{91, 9, 91, 9}
	for _, want := range stops {
		if err := s.Tab(); err != nil {
			t.Fatal(err)
		}

		if s.Cursor() != want {
			t.Errorf("Got cursor %d, want %d", s.Cursor(), want)
		}
	}

	if err := s.MoveCursor(5, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.Tab(); err != nil || s.Cursor() != 9 {
		t.Errorf("Got cursor %d %v, want 9", s.Cursor(), err)
	}
}

func TestBackTab(t *testing.T) {
	s := formScreen(t)

	if err := s.BackTab(); err != nil || s.Cursor() != 91 {
		t.Errorf("Got cursor %d %v, want 91", s.Cursor(), err)
	}

	if err := s.MoveCursor(1, 15); err != nil {
		t.Fatal(err)
	}
	if err := s.BackTab(); err != nil || s.Cursor() != 91 {
		t.Errorf("Got cursor %d %v, want 91", s.Cursor(), err)
	}
	if err := s.BackTab(); err != nil || s.Cursor() != 9 {
		t.Errorf("Got cursor %d %v, want 9", s.Cursor(), err)
	}
}

func TestTabSingleField(t *testing.T) {
	s := newTestScreen(t)
	process(t, s, datastream.CommandEraseWrite, restore, sba(100), sf(0), sba(200), sf(datastream.AttributeProtected), sba(101), datastream.InsertCursor{})

	if err := s.Tab(); err != nil || s.Cursor() != 101 {
		t.Errorf("Got cursor %d %v, want 101", s.Cursor(), err)
	}

	// Starting mid-field in the lone input field also lands on its start
	if err := s.MoveCursor(1, 50); err != nil {
		t.Fatal(err)
	}
	if err := s.Tab(); err != nil || s.Cursor() != 101 {
		t.Errorf("Got cursor %d %v, want 101", s.Cursor(), err)
	}
}

func TestTabNoFields(t *testing.T) {
	s := newTestScreen(t)
	process(t, s, datastream.CommandEraseWrite, restore, sf(datastream.AttributeProtected))

	if err := s.Tab(); !errors.Is(err, ErrFieldNotFound) {
		t.Errorf("Got %v, want field not found", err)
	}

	unformatted := newTestScreen(t)
	process(t, unformatted, datastream.CommandEraseWrite, restore, sba(500), datastream.InsertCursor{})
	if err := unformatted.Tab(); err != nil || unformatted.Cursor() != 0 {
		t.Errorf("Got cursor %d %v, want 0", unformatted.Cursor(), err)
	}
}

func TestHome(t *testing.T) {
	s := formScreen(t)
	if err := s.MoveCursor(10, 10); err != nil {
		t.Fatal(err)
	}

	s.Home()
	if s.Cursor() != 9 {
		t.Errorf("Got cursor %d, want 9", s.Cursor())
	}
}

func TestCursorMovement(t *testing.T) {
	s := formScreen(t)

	s.CursorUp()
	if row, column := s.CursorRowCol(); row != 23 || column != 9 {
		t.Errorf("Got %d,%d want 23,9", row, column)
	}

	s.CursorDown()
	s.CursorRight()
	s.CursorRight()
	s.CursorLeft()
	if s.Cursor() != 10 {
		t.Errorf("Got cursor %d, want 10", s.Cursor())
	}

	if err := s.NewLine(); err != nil || s.Cursor() != 91 {
		t.Errorf("Got cursor %d %v, want 91", s.Cursor(), err)
	}
}

func TestEraseEOF(t *testing.T) {
	s := formScreen(t)
	if err := s.Type("ABCDEF"); err != nil {
		t.Fatal(err)
	}
	if err := s.MoveCursor(0, 12); err != nil {
		t.Fatal(err)
	}

	if err := s.EraseEOF(); err != nil {
		t.Fatal(err)
	}

	if err := s.MoveCursor(0, 9); err != nil {
		t.Fatal(err)
	}
	got, _ := s.RetrieveFieldAtCursor()
	if got != "ABC        " {
		t.Errorf("Got %q", got)
	}
}

func TestPositionCursorToFieldContaining(t *testing.T) {
	s := formScreen(t)

	if err := s.PositionCursorToFieldContaining("PASSWORD"); err != nil || s.Cursor() != 81 {
		t.Errorf("Got cursor %d %v, want 81", s.Cursor(), err)
	}

	if err := s.PositionCursorToFieldContaining("MISSING"); !errors.Is(err, ErrTextNotFound) {
		t.Errorf("Got %v, want text not found", err)
	}
}

func TestAIDEnter(t *testing.T) {
	s := formScreen(t)
	if err := s.Type("ALICE"); err != nil {
		t.Fatal(err)
	}
	if err := s.MoveCursor(0, 9); err != nil {
		t.Fatal(err)
	}

	got, err := s.AID(datastream.AIDEnter)
	if err != nil {
		t.Fatal(err)
	}

	want := []byte{0x7D, 0x40, 0xC9, 0x11, 0x40, 0xC9, 0xC1, 0xD3, 0xC9, 0xC3, 0xC5}
	if !slices.Equal(got, want) {
		t.Errorf("Got %x, want %x", got, want)
	}

	if !s.IsKeyboardLocked() {
		t.Error("AID should lock the keyboard")
	}

	if _, err := s.AID(datastream.AIDEnter); !errors.Is(err, ErrKeyboardLocked) {
		t.Errorf("Got %v, want keyboard locked", err)
	}
}

func TestAIDLockedAtStart(t *testing.T) {
	s := newTestScreen(t)

	if _, err := s.AID(datastream.AIDEnter); !errors.Is(err, ErrKeyboardLocked) {
		t.Errorf("Got %v, want keyboard locked", err)
	}
}

func TestAIDClear(t *testing.T) {
	s := formScreen(t)
	if err := s.Type("ALICE"); err != nil {
		t.Fatal(err)
	}

	got, err := s.AID(datastream.AIDClear)
	if err != nil {
		t.Fatal(err)
	}

	if !slices.Equal(got, []byte{0x6D, 0x40, 0x4E}) {
		t.Errorf("Got %x", got)
	}

	if strings.TrimSpace(s.RetrieveScreen()) != "" || s.Cursor() != 0 {
		t.Error("clear should erase the screen")
	}
}

func TestAIDWrappingField(t *testing.T) {
	s := newTestScreen(t)
	process(t, s, datastream.CommandEraseWrite, restore,
		sba(10), sf(datastream.AttributeProtected),
		sba(1910), sf(0),
		sba(1911), datastream.InsertCursor{},
	)

	if err := s.MoveCursor(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.Tab(); err != nil || s.Cursor() != 1911 {
		t.Fatalf("Got cursor %d %v, want 1911", s.Cursor(), err)
	}

	if err := s.Type("ABCDEFGHI"); err != nil {
		t.Fatal(err)
	}

	got, err := s.AID(datastream.AIDPF3)
	if err != nil {
		t.Fatal(err)
	}

	want := []byte{0xF3, 0x40, 0x40, 0x11, 0x5D, 0xF7, 0xC1, 0xC2, 0xC3, 0xC4, 0xC5, 0xC6, 0xC7, 0xC8, 0xC9}
	if !slices.Equal(got, want) {
		t.Errorf("Got %x, want %x", got, want)
	}
}

func TestReadCommands(t *testing.T) {
	s := formScreen(t)
	if err := s.Type("AL"); err != nil {
		t.Fatal(err)
	}

	modified := process(t, s, datastream.CommandReadModified, 0)
	want := []byte{0x60, 0x40, 0x4B, 0x11, 0x40, 0xC9, 0xC1, 0xD3}
	if !slices.Equal(modified, want) {
		t.Errorf("Got %x, want %x", modified, want)
	}

	buffer := process(t, s, datastream.CommandReadBuffer, 0)
	// every position plus one extra byte for each of the six attributes
	if len(buffer) != 3+24*80+6 {
		t.Errorf("Got %d bytes", len(buffer))
	}
	if buffer[3] != 0x1D || buffer[4] != 0x60 || buffer[5] != 0xE4 {
		t.Errorf("Got %x", buffer[:6])
	}
}
