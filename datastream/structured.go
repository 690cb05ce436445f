package datastream

import "fmt"

// Structured field IDs
const (
	sfidReadPartition  byte = 0x01
	sfidEraseReset     byte = 0x03
	sfidOutbound3270DS byte = 0x40

	readPartitionQuery     byte = 0x02
	readPartitionQueryList byte = 0x03
)

// Query reply IDs
const (
	QueryReplySummary           byte = 0x80
	QueryReplyUsableArea        byte = 0x81
	QueryReplyCharacterSets     byte = 0x85
	QueryReplyImplicitPartition byte = 0xA6
)

// StructuredField is a single field from a Write Structured Field datastream. The set is
// closed: every implementation lives in this package.
type StructuredField interface {
	structuredField()
	String() string
}

// ReadPartitionQuery asks the terminal to describe itself with a Query Reply
type ReadPartitionQuery struct {
	PartitionID byte
	// List is true for Query List, whose request type and ID list are kept in Requested
	List      bool
	Requested []byte
}

// Outbound3270DS carries an ordinary Write or Erase/Write datastream for a partition
type Outbound3270DS struct {
	PartitionID byte
	Message     *InboundMessage
}

// EraseReset clears the screen and, when Alternate is set, switches to the alternate size
type EraseReset struct {
	Alternate bool
}

func (ReadPartitionQuery) structuredField() {}
func (Outbound3270DS) structuredField()     {}
func (EraseReset) structuredField()         {}

func (q ReadPartitionQuery) String() string {
	if q.List {
		return fmt.Sprintf("ReadPartition(QueryList %x)", q.Requested)
	}

	return "ReadPartition(Query)"
}

func (o Outbound3270DS) String() string {
	return fmt.Sprintf("Outbound3270DS(%d, %s)", o.PartitionID, o.Message)
}

func (e EraseReset) String() string {
	if e.Alternate {
		return "EraseReset(alternate)"
	}

	return "EraseReset"
}
