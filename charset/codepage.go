package charset

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

// DefaultCodepage is the codepage used when a terminal is not configured with one. CP037
// is the US/Canada EBCDIC codepage, which is what nearly every 3270 host will assume.
const DefaultCodepage = "IBM037"

var builtinCodepages = map[string]*charmap.Charmap{
	"037":     charmap.CodePage037,
	"cp037":   charmap.CodePage037,
	"ibm037":  charmap.CodePage037,
	"ibm-037": charmap.CodePage037,
	"1047":    charmap.CodePage1047,
	"cp1047":  charmap.CodePage1047,
	"ibm1047": charmap.CodePage1047,
	"1140":    charmap.CodePage1140,
	"cp1140":  charmap.CodePage1140,
	"ibm1140": charmap.CodePage1140,
}

// Codepage translates between the single-byte host encoding used on the 3270 datastream and
// Go strings. 3270 buffers are strictly one byte per buffer position, so only single-byte
// character sets can be used: every byte decodes to exactly one rune and every rune that
// can be displayed encodes to exactly one byte.
type Codepage struct {
	name    string
	charmap *charmap.Charmap
}

// NewCodepage looks up a codepage by name. A handful of common EBCDIC aliases are
// recognized directly, anything else is resolved through the IANA registry.
func NewCodepage(name string) (*Codepage, error) {
	if name == "" {
		name = DefaultCodepage
	}

	builtin, hasBuiltin := builtinCodepages[strings.ToLower(name)]
	if hasBuiltin {
		return &Codepage{name: canonicalName(builtin, name), charmap: builtin}, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("charset: unknown codepage %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("charset: unsupported codepage %q", name)
	}

	single, ok := enc.(*charmap.Charmap)
	if !ok {
		return nil, fmt.Errorf("charset: codepage %q is not a single byte character set", name)
	}

	return &Codepage{name: canonicalName(single, name), charmap: single}, nil
}

func canonicalName(enc encoding.Encoding, fallback string) string {
	name, err := ianaindex.IANA.Name(enc)
	if err != nil || name == "" {
		return strings.ToUpper(fallback)
	}

	return name
}

// Name returns the registered name of the codepage
func (c *Codepage) Name() string {
	return c.name
}

// DecodeByte translates a single host byte. 0x00 decodes to the null rune, which callers
// render as a blank.
func (c *Codepage) DecodeByte(b byte) rune {
	return c.charmap.DecodeByte(b)
}

// Decode translates a run of host bytes, producing exactly one rune per byte
func (c *Codepage) Decode(b []byte) []rune {
	runes := make([]rune, len(b))
	for i, single := range b {
		runes[i] = c.charmap.DecodeByte(single)
	}

	return runes
}

// DecodeString is Decode for callers that want a string
func (c *Codepage) DecodeString(b []byte) string {
	return string(c.Decode(b))
}

// ErrUnencodable is returned when a rune has no representation in the host codepage
var ErrUnencodable = errors.New("charset: character cannot be encoded")

// EncodeRune translates a single rune into its host byte
func (c *Codepage) EncodeRune(r rune) (byte, error) {
	if r == 0 {
		return 0, nil
	}

	b, ok := c.charmap.EncodeRune(r)
	if !ok {
		return 0, fmt.Errorf("%w: %q in %s", ErrUnencodable, r, c.name)
	}

	return b, nil
}

// Encode translates a string into host bytes, one byte per rune
func (c *Codepage) Encode(text []rune) ([]byte, error) {
	b := make([]byte, 0, len(text))
	for _, r := range text {
		single, err := c.EncodeRune(r)
		if err != nil {
			return nil, err
		}

		b = append(b, single)
	}

	return b, nil
}

// CanEncode reports whether every rune in the text has a host representation. Screen
// typing uses this to reject text before anything on the screen is modified.
func (c *Codepage) CanEncode(text string) bool {
	for _, r := range text {
		if r == 0 {
			continue
		}
		if _, ok := c.charmap.EncodeRune(r); !ok {
			return false
		}
	}

	return true
}
