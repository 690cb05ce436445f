package datastream

import (
	"fmt"
	"strings"
)

// Order is a single instruction within a Write or Erase/Write datastream. The set of
// orders is closed: every implementation lives in this package.
type Order interface {
	order()
	String() string
}

// SetBufferAddress moves the working cursor to Address
type SetBufferAddress struct {
	Address int
}

// StartField places a field attribute at the working cursor and advances it one position
type StartField struct {
	Attribute FieldAttribute
	// Extended holds the non-basic pairs from a Start Field Extended order
	Extended []AttributePair
}

// Text writes host characters at the working cursor. Graphic Escape characters are folded
// into the surrounding text.
type Text struct {
	Text []rune
}

// RepeatToAddress fills from the working cursor up to, but not including, Stop with Char
type RepeatToAddress struct {
	Char rune
	Stop int
}

// InsertCursor moves the cursor to the working cursor
type InsertCursor struct{}

// EraseUnprotectedToAddress nulls every unprotected position from the working cursor up
// to, but not including, Stop
type EraseUnprotectedToAddress struct {
	Stop int
}

// ProgramTab advances the working cursor to the first position of the next unprotected
// field
type ProgramTab struct{}

// SetAttribute changes the character attribute used for subsequent text
type SetAttribute struct {
	Attribute AttributePair
}

// ModifyField changes the attribute of the field that starts at the working cursor
type ModifyField struct {
	Pairs []AttributePair
}

func (SetBufferAddress) order()          {}
func (StartField) order()                {}
func (Text) order()                      {}
func (RepeatToAddress) order()           {}
func (InsertCursor) order()              {}
func (EraseUnprotectedToAddress) order() {}
func (ProgramTab) order()                {}
func (SetAttribute) order()              {}
func (ModifyField) order()               {}

func (o SetBufferAddress) String() string {
	return fmt.Sprintf("SBA(%d)", o.Address)
}

func (o StartField) String() string {
	if len(o.Extended) > 0 {
		return fmt.Sprintf("SFE(%s %s)", o.Attribute, pairsString(o.Extended))
	}

	return fmt.Sprintf("SF(%s)", o.Attribute)
}

func (o Text) String() string {
	return fmt.Sprintf("TEXT(%q)", string(o.Text))
}

func (o RepeatToAddress) String() string {
	return fmt.Sprintf("RA(%q,%d)", o.Char, o.Stop)
}

func (InsertCursor) String() string { return "IC" }
func (ProgramTab) String() string   { return "PT" }

func (o EraseUnprotectedToAddress) String() string {
	return fmt.Sprintf("EUA(%d)", o.Stop)
}

func (o SetAttribute) String() string {
	return "SA(" + pairsString([]AttributePair{o.Attribute}) + ")"
}

func (o ModifyField) String() string {
	return "MF(" + pairsString(o.Pairs) + ")"
}

func pairsString(pairs []AttributePair) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, fmt.Sprintf("%02x=%02x", p.Type, p.Value))
	}

	return strings.Join(parts, " ")
}

// SplitAttributes finds the 3270 field attribute in a list of extended attribute pairs and
// returns the remaining pairs
func SplitAttributes(pairs []AttributePair) (FieldAttribute, bool, []AttributePair) {
	var attr FieldAttribute
	var found bool
	var rest []AttributePair

	for _, p := range pairs {
		if p.Type == ExtendedFieldAttribute {
			attr = FieldAttribute(p.Value & attributeSignificant)
			found = true
			continue
		}

		rest = append(rest, p)
	}

	return attr, found, rest
}
