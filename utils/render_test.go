package utils

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/moodclient/tn3270/charset"
	"github.com/moodclient/tn3270/datastream"
	"github.com/moodclient/tn3270/screen"
)

func loginScreen(t *testing.T) *screen.Screen {
	t.Helper()

	codepage, err := charset.NewCodepage(charset.DefaultCodepage)
	if err != nil {
		t.Fatal(err)
	}

	msg, err := datastream.NewDecoder(codepage, 24*80).Decode([]byte{
		0xF5, 0xC3,
		0x11, 0x40, 0x40, 0x1D, 0xE8,
		0xE4, 0xE2, 0xC5, 0xD9, 0xC9, 0xC4,
		0x29, 0x02, 0xC0, 0x40, 0x42, 0xF2,
		0xC1, 0xC2,
		0x11, 0x40, 0xD4, 0x1D, 0x60,
		0x11, 0x40, 0xC8, 0x13,
	})
	if err != nil {
		t.Fatal(err)
	}

	s := screen.NewScreen(24, 80, codepage)
	if _, err := s.ProcessInboundMessage(msg); err != nil {
		t.Fatal(err)
	}

	return s
}

func TestRenderMatchesText(t *testing.T) {
	snapshot := loginScreen(t).Snapshot()

	rendered := NewScreenRenderer().Render(snapshot)
	if got := ansi.Strip(rendered); got != snapshot.String() {
		t.Errorf("Got\n%s\nwant\n%s", got, snapshot.String())
	}

	lines := strings.Split(ansi.Strip(rendered), "\n")
	if len(lines) != 24 || !strings.HasPrefix(lines[0], " USERID AB") {
		t.Errorf("Got %d lines, first %q", len(lines), lines[0])
	}
}

func TestRenderStyles(t *testing.T) {
	snapshot := loginScreen(t).Snapshot()
	r := NewScreenRenderer()

	user, _ := snapshot.FieldAt(1)
	if !r.fieldStyle(user).GetBold() {
		t.Error("intensified field should be bold")
	}

	input, _ := snapshot.FieldAt(8)
	if r.fieldStyle(input).GetBold() {
		t.Error("input field should not be bold")
	}
}
