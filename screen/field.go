package screen

import (
	"slices"

	"github.com/moodclient/tn3270/datastream"
)

// Field is a contiguous span of buffer positions. The fields of a screen tile the buffer
// exactly, in buffer order. A field never wraps past the end of the buffer: anything the
// host writes across the end is stored as two fields.
//
// The set of field types is closed: StartOfField, TextField and CharsField.
type Field interface {
	Start() int
	// End is inclusive
	End() int
	Len() int
	// Runes returns one rune per position. Attribute positions hold a null.
	Runes() []rune

	slice(from, to int) Field
}

type span struct {
	start int
	end   int
}

func (s span) Start() int { return s.start }
func (s span) End() int   { return s.end }
func (s span) Len() int   { return s.end - s.start + 1 }

func (s span) contains(pos int) bool {
	return pos >= s.start && pos <= s.end
}

// StartOfField occupies the single attribute position that begins a 3270 field
type StartOfField struct {
	span
	Attribute datastream.FieldAttribute
	Extended  []datastream.AttributePair
}

func newStartOfField(pos int, attr datastream.FieldAttribute, extended []datastream.AttributePair) *StartOfField {
	return &StartOfField{
		span:      span{pos, pos},
		Attribute: attr,
		Extended:  extended,
	}
}

func (f *StartOfField) Runes() []rune { return []rune{0} }

func (f *StartOfField) slice(from, to int) Field { return f }

// TextField holds characters the host or the operator wrote individually
type TextField struct {
	span
	sof  int
	Text []rune
}

func newTextField(start int, text []rune) *TextField {
	return &TextField{
		span: span{start, start + len(text) - 1},
		sof:  -1,
		Text: text,
	}
}

func (f *TextField) Runes() []rune { return f.Text }

func (f *TextField) slice(from, to int) Field {
	return &TextField{
		span: span{from, to},
		sof:  f.sof,
		Text: slices.Clone(f.Text[from-f.start : to-f.start+1]),
	}
}

// CharsField is a run of a single repeated character, produced by erases and Repeat to
// Address
type CharsField struct {
	span
	sof  int
	Char rune
}

func newCharsField(start, end int, char rune) *CharsField {
	return &CharsField{
		span: span{start, end},
		sof:  -1,
		Char: char,
	}
}

func (f *CharsField) Runes() []rune {
	runes := make([]rune, f.Len())
	for i := range runes {
		runes[i] = f.Char
	}

	return runes
}

func (f *CharsField) slice(from, to int) Field {
	return &CharsField{
		span: span{from, to},
		sof:  f.sof,
		Char: f.Char,
	}
}

// merge combines two adjacent character fields, returning nil when either one is an
// attribute
func merge(left, right Field) Field {
	if _, isSOF := left.(*StartOfField); isSOF {
		return nil
	}
	if _, isSOF := right.(*StartOfField); isSOF {
		return nil
	}

	leftChars, leftIsChars := left.(*CharsField)
	rightChars, rightIsChars := right.(*CharsField)
	if leftIsChars && rightIsChars && leftChars.Char == rightChars.Char {
		return newCharsField(left.Start(), right.End(), leftChars.Char)
	}

	text := make([]rune, 0, left.Len()+right.Len())
	text = append(text, left.Runes()...)
	text = append(text, right.Runes()...)

	return newTextField(left.Start(), text)
}
