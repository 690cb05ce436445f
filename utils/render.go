package utils

import (
	"strings"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/moodclient/tn3270/datastream"
	"github.com/moodclient/tn3270/screen"
)

// ScreenRenderer draws a screen snapshot for a colour terminal, in the manner of a 3279:
// protected fields in blue, input fields in green, intensified fields brighter, and the
// colours and highlighting of extended attributes where the host sent them
type ScreenRenderer struct {
	Protected   lipgloss.Style
	Input       lipgloss.Style
	Intensified lipgloss.Style
	Cursor      lipgloss.Style

	// ShowCursor draws the cursor position with the Cursor style
	ShowCursor bool
}

func NewScreenRenderer() *ScreenRenderer {
	return &ScreenRenderer{
		Protected:   lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		Input:       lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Intensified: lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true),
		Cursor:      lipgloss.NewStyle().Reverse(true),
		ShowCursor:  true,
	}
}

// 3270 colour values from the foreground extended attribute, as ANSI colours
var extendedColors = map[byte]string{
	0xF1: "12",
	0xF2: "9",
	0xF3: "13",
	0xF4: "10",
	0xF5: "14",
	0xF6: "11",
	0xF7: "15",
}

const (
	highlightBlink      byte = 0xF1
	highlightReverse    byte = 0xF2
	highlightUnderscore byte = 0xF4
)

func (r *ScreenRenderer) fieldStyle(field screen.FieldView) lipgloss.Style {
	style := r.Input
	switch {
	case field.Attribute.Intensified():
		style = r.Intensified
	case field.Attribute.Protected():
		style = r.Protected
	}

	for _, pair := range field.Extended {
		switch pair.Type {
		case datastream.ExtendedForeground:
			if color, hasColor := extendedColors[pair.Value]; hasColor {
				style = style.Foreground(lipgloss.Color(color))
			}
		case datastream.ExtendedHighlighting:
			switch pair.Value {
			case highlightBlink:
				style = style.Blink(true)
			case highlightReverse:
				style = style.Reverse(true)
			case highlightUnderscore:
				style = style.Underline(true)
			}
		}
	}

	return style
}

// Render returns the screen one row per line. Runs of cells with the same style are
// rendered together.
func (r *ScreenRenderer) Render(snapshot screen.Snapshot) string {
	display := snapshot.Display()
	styles := make([]*lipgloss.Style, len(display))

	for _, field := range snapshot.Fields {
		style := r.fieldStyle(field)
		for pos := field.Start; pos <= field.End && pos < len(styles); pos++ {
			styles[pos] = &style
		}
	}

	if r.ShowCursor && snapshot.Cursor >= 0 && snapshot.Cursor < len(styles) {
		styles[snapshot.Cursor] = &r.Cursor
	}

	var sb strings.Builder
	for row := 0; row < snapshot.Rows; row++ {
		if row > 0 {
			sb.WriteByte('\n')
		}

		start := row * snapshot.Columns
		end := start + snapshot.Columns
		for runStart := start; runStart < end; {
			runEnd := runStart + 1
			for runEnd < end && styles[runEnd] == styles[runStart] {
				runEnd++
			}

			text := string(display[runStart:runEnd])
			if styles[runStart] == nil {
				sb.WriteString(text)
			} else {
				sb.WriteString(styles[runStart].Render(text))
			}

			runStart = runEnd
		}
	}

	return sb.String()
}
