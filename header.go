package tn3270

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

// DataType is the first byte of a TN3270E header and says what the rest of the record holds
type DataType byte

const (
	DataType3270     DataType = 0x00
	DataTypeSCS      DataType = 0x01
	DataTypeResponse DataType = 0x02
	DataTypeBind     DataType = 0x03
	DataTypeUnbind   DataType = 0x04
	DataTypeNVT      DataType = 0x05
	DataTypeRequest  DataType = 0x06
	DataTypeSSCPLU   DataType = 0x07
	DataTypePrintEOJ DataType = 0x08
)

var dataTypeNames = map[DataType]string{
	DataType3270:     "3270-DATA",
	DataTypeSCS:      "SCS-DATA",
	DataTypeResponse: "RESPONSE",
	DataTypeBind:     "BIND-IMAGE",
	DataTypeUnbind:   "UNBIND",
	DataTypeNVT:      "NVT-DATA",
	DataTypeRequest:  "REQUEST",
	DataTypeSSCPLU:   "SSCP-LU-DATA",
	DataTypePrintEOJ: "PRINT-EOJ",
}

func (d DataType) String() string {
	name, hasName := dataTypeNames[d]
	if !hasName {
		return "DATA-TYPE-" + strconv.Itoa(int(d))
	}

	return name
}

// HasDatastream indicates whether records of this type carry a 3270 datastream. SSCP-LU
// data is shown on the screen too, but as unformatted text.
func (d DataType) HasDatastream() bool {
	return d == DataType3270
}

// ResponseFlag is the third header byte. On data records it says whether the host wants a
// response; on RESPONSE records it says whether the response is positive.
type ResponseFlag byte

const (
	ResponseNone   ResponseFlag = 0x00
	ResponseError  ResponseFlag = 0x01
	ResponseAlways ResponseFlag = 0x02

	ResponsePositive ResponseFlag = 0x00
	ResponseNegative ResponseFlag = 0x01
)

// Response data codes
const (
	responseDeviceEnd     byte = 0x00
	responseCommandReject byte = 0x00
)

// HeaderLength is the size of the header that prefixes every record in a TN3270E session
const HeaderLength = 5

// Header is the TN3270E record header (RFC 2355 section 8)
type Header struct {
	DataType     DataType
	RequestFlag  byte
	ResponseFlag ResponseFlag
	Sequence     uint16
}

// ParseHeader splits a record into its header and the data that follows
func ParseHeader(record []byte) (Header, []byte, error) {
	if len(record) < HeaderLength {
		return Header{}, nil, fmt.Errorf("tn3270: record of %d bytes is too short for a TN3270E header", len(record))
	}

	return Header{
		DataType:     DataType(record[0]),
		RequestFlag:  record[1],
		ResponseFlag: ResponseFlag(record[2]),
		Sequence:     binary.BigEndian.Uint16(record[3:5]),
	}, record[HeaderLength:], nil
}

// Append writes the header followed by data to buffer
func (h Header) Append(buffer []byte, data []byte) []byte {
	buffer = append(buffer, byte(h.DataType), h.RequestFlag, byte(h.ResponseFlag))
	buffer = binary.BigEndian.AppendUint16(buffer, h.Sequence)
	return append(buffer, data...)
}

// WantsResponse indicates whether the host asked for a response to this record, given
// whether processing it succeeded
func (h Header) WantsResponse(succeeded bool) bool {
	if h.ResponseFlag == ResponseAlways {
		return true
	}

	return !succeeded && h.ResponseFlag == ResponseError
}

func (h Header) String() string {
	return fmt.Sprintf("%s request=%d response=%d seq=%d", h.DataType, h.RequestFlag, h.ResponseFlag, h.Sequence)
}

// response builds the RESPONSE record answering the record with this header
func (h Header) response(succeeded bool) Record {
	response := Header{
		DataType:     DataTypeResponse,
		ResponseFlag: ResponsePositive,
		Sequence:     h.Sequence,
	}
	code := responseDeviceEnd

	if !succeeded {
		response.ResponseFlag = ResponseNegative
		code = responseCommandReject
	}

	return Record{HasHeader: true, Header: response, Data: []byte{code}}
}
