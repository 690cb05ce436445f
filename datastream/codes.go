package datastream

import (
	"fmt"
	"strconv"
	"strings"
)

// CommandCode is the first byte of an inbound 3270 datastream. Hosts may send either the
// CCW form or the SNA form of each command. Both are accepted, and the decoder folds the
// CCW form onto the SNA form.
type CommandCode byte

const (
	CommandWrite                CommandCode = 0xF1
	CommandEraseWrite           CommandCode = 0xF5
	CommandEraseWriteAlternate  CommandCode = 0x7E
	CommandReadBuffer           CommandCode = 0xF2
	CommandReadModified         CommandCode = 0xF6
	CommandReadModifiedAll      CommandCode = 0x6E
	CommandEraseAllUnprotected  CommandCode = 0x6F
	CommandWriteStructuredField CommandCode = 0xF3
)

var ccwCommands = map[byte]CommandCode{
	0x01: CommandWrite,
	0x05: CommandEraseWrite,
	0x0D: CommandEraseWriteAlternate,
	0x02: CommandReadBuffer,
	0x06: CommandReadModified,
	0x0E: CommandReadModifiedAll,
	0x0F: CommandEraseAllUnprotected,
	0x11: CommandWriteStructuredField,
}

var commandNames = map[CommandCode]string{
	CommandWrite:                "Write",
	CommandEraseWrite:           "EraseWrite",
	CommandEraseWriteAlternate:  "EraseWriteAlternate",
	CommandReadBuffer:           "ReadBuffer",
	CommandReadModified:         "ReadModified",
	CommandReadModifiedAll:      "ReadModifiedAll",
	CommandEraseAllUnprotected:  "EraseAllUnprotected",
	CommandWriteStructuredField: "WriteStructuredField",
}

func parseCommandCode(b byte) (CommandCode, bool) {
	if ccw, isCCW := ccwCommands[b]; isCCW {
		return ccw, true
	}

	_, known := commandNames[CommandCode(b)]
	return CommandCode(b), known
}

func (c CommandCode) String() string {
	name, hasName := commandNames[c]
	if !hasName {
		return fmt.Sprintf("Command(%#02x)", byte(c))
	}

	return name
}

// IsErase indicates whether the command clears the buffer before applying orders
func (c CommandCode) IsErase() bool {
	return c == CommandEraseWrite || c == CommandEraseWriteAlternate
}

// HasOrders indicates whether the command is followed by a WCC and orders
func (c CommandCode) HasOrders() bool {
	return c == CommandWrite || c.IsErase()
}

// Order codes
const (
	orderProgramTab                byte = 0x05
	orderGraphicEscape             byte = 0x08
	orderSetBufferAddress          byte = 0x11
	orderEraseUnprotectedToAddress byte = 0x12
	orderInsertCursor              byte = 0x13
	orderStartField                byte = 0x1D
	orderSetAttribute              byte = 0x28
	orderStartFieldExtended        byte = 0x29
	orderModifyField               byte = 0x2C
	orderRepeatToAddress           byte = 0x3C
)

// isTextByte reports whether a byte below 0x40 is a displayable control character that
// belongs in a text run rather than introducing an order
func isTextByte(b byte) bool {
	if b >= 0x40 {
		return true
	}

	switch b {
	case 0x00, 0x0C, 0x0D, 0x15, 0x19, 0x1C, 0x1E, 0x3F:
		return true
	}

	return false
}

// WCC is the Write Control Character that follows Write and Erase/Write commands
type WCC byte

const (
	WCCResetMDT        WCC = 0x01
	WCCKeyboardRestore WCC = 0x02
	WCCSoundAlarm      WCC = 0x04
	WCCStartPrinter    WCC = 0x08
	WCCReset           WCC = 0x40
)

func (w WCC) ResetMDT() bool        { return w&WCCResetMDT != 0 }
func (w WCC) KeyboardRestore() bool { return w&WCCKeyboardRestore != 0 }
func (w WCC) SoundAlarm() bool      { return w&WCCSoundAlarm != 0 }
func (w WCC) StartPrinter() bool    { return w&WCCStartPrinter != 0 }
func (w WCC) Reset() bool           { return w&WCCReset != 0 }

func (w WCC) String() string {
	var flags []string
	if w.Reset() {
		flags = append(flags, "reset")
	}
	if w.StartPrinter() {
		flags = append(flags, "print")
	}
	if w.SoundAlarm() {
		flags = append(flags, "alarm")
	}
	if w.KeyboardRestore() {
		flags = append(flags, "restore")
	}
	if w.ResetMDT() {
		flags = append(flags, "resetmdt")
	}

	return "WCC(" + strings.Join(flags, ",") + ")"
}

// FieldAttribute is the attribute byte that accompanies a Start Field order
type FieldAttribute byte

const (
	AttributeModified  FieldAttribute = 0x01
	AttributeDisplay   FieldAttribute = 0x0C
	AttributeNumeric   FieldAttribute = 0x10
	AttributeProtected FieldAttribute = 0x20

	displaySelectorPen  FieldAttribute = 0x04
	displayIntensified  FieldAttribute = 0x08
	displayNonDisplay   FieldAttribute = 0x0C
	attributeSignificant               = 0x3F
)

// NewFieldAttribute builds an attribute byte from its parts
func NewFieldAttribute(protected, numeric, display, intensified, selectorPen, modified bool) FieldAttribute {
	var a FieldAttribute
	if protected {
		a |= AttributeProtected
	}
	if numeric {
		a |= AttributeNumeric
	}

	switch {
	case !display:
		a |= displayNonDisplay
	case intensified:
		a |= displayIntensified
	case selectorPen:
		a |= displaySelectorPen
	}

	if modified {
		a |= AttributeModified
	}

	return a
}

func (a FieldAttribute) Protected() bool { return a&AttributeProtected != 0 }
func (a FieldAttribute) Numeric() bool   { return a&AttributeNumeric != 0 }
func (a FieldAttribute) Display() bool   { return a&AttributeDisplay != displayNonDisplay }
func (a FieldAttribute) Modified() bool  { return a&AttributeModified != 0 }

func (a FieldAttribute) Intensified() bool {
	return a&AttributeDisplay == displayIntensified
}

func (a FieldAttribute) SelectorPen() bool {
	display := a & AttributeDisplay
	return display == displaySelectorPen || display == displayIntensified
}

// WithModified returns the attribute with the modified data tag set or cleared
func (a FieldAttribute) WithModified(modified bool) FieldAttribute {
	if modified {
		return a | AttributeModified
	}

	return a &^ AttributeModified
}

func (a FieldAttribute) String() string {
	var flags []string
	if a.Protected() {
		flags = append(flags, "protected")
	} else {
		flags = append(flags, "unprotected")
	}
	if a.Numeric() {
		flags = append(flags, "numeric")
	}
	if !a.Display() {
		flags = append(flags, "hidden")
	} else if a.Intensified() {
		flags = append(flags, "intensified")
	}
	if a.SelectorPen() {
		flags = append(flags, "detectable")
	}
	if a.Modified() {
		flags = append(flags, "modified")
	}

	return strings.Join(flags, ",")
}

// Extended attribute types carried by Start Field Extended, Set Attribute and Modify Field
const (
	ExtendedAllAttributes  byte = 0x00
	ExtendedHighlighting   byte = 0x41
	ExtendedForeground     byte = 0x42
	ExtendedCharacterSet   byte = 0x43
	ExtendedBackground     byte = 0x45
	ExtendedTransparency   byte = 0x46
	ExtendedFieldAttribute byte = 0xC0
	ExtendedValidation     byte = 0xC1
	ExtendedOutlining      byte = 0xC2
)

// AttributePair is a single type/value pair from an extended attribute order
type AttributePair struct {
	Type  byte
	Value byte
}

// AID is the Attention Identifier that leads every inbound (terminal to host) message
type AID byte

const (
	AIDNone            AID = 0x60
	AIDStructuredField AID = 0x88
	AIDEnter           AID = 0x7D
	AIDClear           AID = 0x6D
	AIDSysReq          AID = 0xF0
	AIDPA1             AID = 0x6C
	AIDPA2             AID = 0x6E
	AIDPA3             AID = 0x6B
	AIDPF1             AID = 0xF1
	AIDPF2             AID = 0xF2
	AIDPF3             AID = 0xF3
	AIDPF4             AID = 0xF4
	AIDPF5             AID = 0xF5
	AIDPF6             AID = 0xF6
	AIDPF7             AID = 0xF7
	AIDPF8             AID = 0xF8
	AIDPF9             AID = 0xF9
	AIDPF10            AID = 0x7A
	AIDPF11            AID = 0x7B
	AIDPF12            AID = 0x7C
	AIDPF13            AID = 0xC1
	AIDPF14            AID = 0xC2
	AIDPF15            AID = 0xC3
	AIDPF16            AID = 0xC4
	AIDPF17            AID = 0xC5
	AIDPF18            AID = 0xC6
	AIDPF19            AID = 0xC7
	AIDPF20            AID = 0xC8
	AIDPF21            AID = 0xC9
	AIDPF22            AID = 0x4A
	AIDPF23            AID = 0x4B
	AIDPF24            AID = 0x4C
)

var pfKeys = [24]AID{
	AIDPF1, AIDPF2, AIDPF3, AIDPF4, AIDPF5, AIDPF6, AIDPF7, AIDPF8, AIDPF9, AIDPF10, AIDPF11, AIDPF12,
	AIDPF13, AIDPF14, AIDPF15, AIDPF16, AIDPF17, AIDPF18, AIDPF19, AIDPF20, AIDPF21, AIDPF22, AIDPF23, AIDPF24,
}

var paKeys = [3]AID{AIDPA1, AIDPA2, AIDPA3}

// PF returns the AID for program function key n (1-24)
func PF(n int) (AID, error) {
	if n < 1 || n > len(pfKeys) {
		return 0, fmt.Errorf("datastream: there is no PF%d key", n)
	}

	return pfKeys[n-1], nil
}

// PA returns the AID for program attention key n (1-3)
func PA(n int) (AID, error) {
	if n < 1 || n > len(paKeys) {
		return 0, fmt.Errorf("datastream: there is no PA%d key", n)
	}

	return paKeys[n-1], nil
}

// ParseAID converts a key name such as ENTER, CLEAR, PF3 or PA1 into its AID
func ParseAID(name string) (AID, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))

	switch upper {
	case "ENTER":
		return AIDEnter, nil
	case "CLEAR":
		return AIDClear, nil
	case "SYSREQ":
		return AIDSysReq, nil
	}

	if strings.HasPrefix(upper, "PF") {
		n, err := strconv.Atoi(upper[2:])
		if err == nil {
			return PF(n)
		}
	}

	if strings.HasPrefix(upper, "PA") {
		n, err := strconv.Atoi(upper[2:])
		if err == nil {
			return PA(n)
		}
	}

	return 0, fmt.Errorf("datastream: unknown key %q", name)
}

// IsShortRead indicates whether the key transmits only the AID and cursor, without any
// field data
func (a AID) IsShortRead() bool {
	return a == AIDClear || a == AIDPA1 || a == AIDPA2 || a == AIDPA3 || a == AIDSysReq
}

func (a AID) String() string {
	switch a {
	case AIDNone:
		return "NONE"
	case AIDStructuredField:
		return "STRUCTURED-FIELD"
	case AIDEnter:
		return "ENTER"
	case AIDClear:
		return "CLEAR"
	case AIDSysReq:
		return "SYSREQ"
	}

	for i, pf := range pfKeys {
		if pf == a {
			return "PF" + strconv.Itoa(i+1)
		}
	}

	for i, pa := range paKeys {
		if pa == a {
			return "PA" + strconv.Itoa(i+1)
		}
	}

	return fmt.Sprintf("AID(%#02x)", byte(a))
}
