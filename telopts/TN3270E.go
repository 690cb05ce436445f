package telopts

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/moodclient/tn3270/telnet"
)

// TN3270E subnegotiation codes (RFC 2355)
const (
	TN3270EAssociate  byte = 0
	TN3270EConnect    byte = 1
	TN3270EDeviceType byte = 2
	TN3270EFunctions  byte = 3
	TN3270EIs         byte = 4
	TN3270EReason     byte = 5
	TN3270EReject     byte = 6
	TN3270ERequest    byte = 7
	TN3270ESend       byte = 8
)

var tn3270eCodes = map[byte]string{
	TN3270EAssociate:  "ASSOCIATE",
	TN3270EConnect:    "CONNECT",
	TN3270EDeviceType: "DEVICE-TYPE",
	TN3270EFunctions:  "FUNCTIONS",
	TN3270EIs:         "IS",
	TN3270EReason:     "REASON",
	TN3270EReject:     "REJECT",
	TN3270ERequest:    "REQUEST",
	TN3270ESend:       "SEND",
}

// Function is a TN3270E function that the client and server may agree to use
type Function byte

const (
	FunctionBindImage     Function = 0
	FunctionDataStreamCtl Function = 1
	FunctionResponses     Function = 2
	FunctionSCSCtlCodes   Function = 3
	FunctionSysReq        Function = 4
)

func (f Function) String() string {
	switch f {
	case FunctionBindImage:
		return "BIND-IMAGE"
	case FunctionDataStreamCtl:
		return "DATA-STREAM-CTL"
	case FunctionResponses:
		return "RESPONSES"
	case FunctionSCSCtlCodes:
		return "SCS-CTL-CODES"
	case FunctionSysReq:
		return "SYSREQ"
	default:
		return "FUNCTION-" + strconv.Itoa(int(f))
	}
}

// Reason is the code a server sends with DEVICE-TYPE REJECT
type Reason byte

var reasonNames = map[Reason]string{
	0: "CONN-PARTNER",
	1: "DEVICE-IN-USE",
	2: "INV-ASSOCIATE",
	3: "INV-NAME",
	4: "INV-DEVICE-TYPE",
	5: "TYPE-NAME-ERROR",
	6: "UNKNOWN-ERROR",
	7: "UNSUPPORTED-REQ",
}

func (r Reason) String() string {
	name, hasName := reasonNames[r]
	if !hasName {
		return "REASON-" + strconv.Itoa(int(r))
	}

	return name
}

// TN3270E is a single TN3270E subnegotiation: a DEVICE-TYPE or FUNCTIONS operation along
// with the action (SEND, REQUEST, IS, REJECT) and whatever arguments go with it.
type TN3270E struct {
	Operation byte
	Action    byte

	// DeviceType is the terminal model, e.g. IBM-3278-2-E
	DeviceType string
	// Device is the LU name requested with CONNECT or assigned by the server
	Device string
	// Associate is the printer association requested with ASSOCIATE
	Associate string
	// Reason is populated for DEVICE-TYPE REJECT
	Reason Reason

	Functions []Function
}

// ParseTN3270E decodes the bytes between IAC SB TN3270E and IAC SE
func ParseTN3270E(subnegotiation []byte) (TN3270E, error) {
	if len(subnegotiation) < 2 {
		return TN3270E{}, fmt.Errorf("tn3270e: subnegotiation too short: %+v", subnegotiation)
	}

	sub := TN3270E{
		Operation: subnegotiation[0],
		Action:    subnegotiation[1],
	}
	args := subnegotiation[2:]

	switch sub.Operation {
	case TN3270EDeviceType:
		return sub, sub.parseDeviceType(args)
	case TN3270EFunctions:
		if sub.Action != TN3270ERequest && sub.Action != TN3270EIs {
			return TN3270E{}, fmt.Errorf("tn3270e: unknown functions action %d", sub.Action)
		}

		for _, f := range args {
			sub.Functions = append(sub.Functions, Function(f))
		}

		return sub, nil
	}

	return TN3270E{}, fmt.Errorf("tn3270e: unknown subnegotiation: %+v", subnegotiation)
}

func (t *TN3270E) parseDeviceType(args []byte) error {
	switch t.Action {
	case TN3270ESend:
		if len(args) > 0 {
			return fmt.Errorf("tn3270e: unexpected arguments to DEVICE-TYPE SEND: %+v", args)
		}

		return nil
	case TN3270EReject:
		if len(args) != 2 || args[0] != TN3270EReason {
			return fmt.Errorf("tn3270e: malformed DEVICE-TYPE REJECT: %+v", args)
		}

		t.Reason = Reason(args[1])
		return nil
	case TN3270ERequest, TN3270EIs:
	default:
		return fmt.Errorf("tn3270e: unknown device-type action %d", t.Action)
	}

	typeEnd := bytes.IndexAny(args, string([]byte{TN3270EConnect, TN3270EAssociate}))
	if typeEnd < 0 {
		t.DeviceType = string(args)
	} else {
		t.DeviceType = string(args[:typeEnd])
		name := string(args[typeEnd+1:])
		if args[typeEnd] == TN3270EConnect {
			t.Device = name
		} else {
			t.Associate = name
		}
	}

	if t.DeviceType == "" {
		return errors.New("tn3270e: DEVICE-TYPE did not contain a device type")
	}

	return nil
}

// Command builds the subnegotiation command for this operation
func (t TN3270E) Command() telnet.Command {
	sub := []byte{t.Operation, t.Action}

	switch {
	case t.Operation == TN3270EFunctions:
		for _, f := range t.Functions {
			sub = append(sub, byte(f))
		}
	case t.Action == TN3270EReject:
		sub = append(sub, TN3270EReason, byte(t.Reason))
	case t.Action == TN3270ERequest || t.Action == TN3270EIs:
		sub = append(sub, []byte(t.DeviceType)...)
		if t.Device != "" {
			sub = append(sub, TN3270EConnect)
			sub = append(sub, []byte(t.Device)...)
		} else if t.Associate != "" {
			sub = append(sub, TN3270EAssociate)
			sub = append(sub, []byte(t.Associate)...)
		}
	}

	return telnet.Command{
		OpCode:         telnet.SB,
		Option:         CodeTN3270E,
		Subnegotiation: sub,
	}
}

func (t TN3270E) String() string {
	var sb strings.Builder
	sb.WriteString(codeName(t.Operation))
	sb.WriteByte(' ')
	sb.WriteString(codeName(t.Action))

	switch {
	case t.Operation == TN3270EFunctions:
		for _, f := range t.Functions {
			sb.WriteByte(' ')
			sb.WriteString(f.String())
		}
	case t.Action == TN3270EReject:
		sb.WriteString(" REASON ")
		sb.WriteString(t.Reason.String())
	case t.DeviceType != "":
		sb.WriteByte(' ')
		sb.WriteString(t.DeviceType)
		if t.Device != "" {
			sb.WriteString(" CONNECT ")
			sb.WriteString(t.Device)
		}
		if t.Associate != "" {
			sb.WriteString(" ASSOCIATE ")
			sb.WriteString(t.Associate)
		}
	}

	return sb.String()
}

func codeName(code byte) string {
	name, hasName := tn3270eCodes[code]
	if !hasName {
		return strconv.Itoa(int(code))
	}

	return name
}

// DeviceTypeRequest builds the client's DEVICE-TYPE REQUEST
func DeviceTypeRequest(deviceType string, luName string) TN3270E {
	return TN3270E{
		Operation:  TN3270EDeviceType,
		Action:     TN3270ERequest,
		DeviceType: deviceType,
		Device:     luName,
	}
}

// FunctionsRequest builds a FUNCTIONS REQUEST listing the functions the client supports
func FunctionsRequest(functions []Function) TN3270E {
	return TN3270E{
		Operation: TN3270EFunctions,
		Action:    TN3270ERequest,
		Functions: functions,
	}
}

// FunctionsIs builds a FUNCTIONS IS, used to accept the server's counter-proposal
func FunctionsIs(functions []Function) TN3270E {
	return TN3270E{
		Operation: TN3270EFunctions,
		Action:    TN3270EIs,
		Functions: functions,
	}
}
