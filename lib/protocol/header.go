package protocol

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

const (
	// Magic is the "CTDB" marker every packet starts with (after the length)
	Magic uint32 = 0x43544442
	// Version is the protocol version this package speaks
	Version uint32 = 1
	// HeaderSize is the encoded size of ReqHeader
	HeaderSize = 32
)

// Destination node numbers with a special meaning
const (
	DestCurrent   uint32 = 0xF0000001
	DestBroadcast uint32 = 0xF0000002
)

// Operation is the packet type named in the request header
type Operation uint32

const (
	OperationCall         Operation = 0
	OperationReplyCall    Operation = 1
	OperationMessage      Operation = 6
	OperationControl      Operation = 7
	OperationReplyControl Operation = 8
)

func (o Operation) String() string {
	switch o {
	case OperationCall:
		return "CALL"
	case OperationReplyCall:
		return "REPLY_CALL"
	case OperationMessage:
		return "MESSAGE"
	case OperationControl:
		return "CONTROL"
	case OperationReplyControl:
		return "REPLY_CONTROL"
	default:
		return fmt.Sprintf("OPERATION(%d)", uint32(o))
	}
}

// --------------------------------------------------------------------------
// Header
// --------------------------------------------------------------------------

// ReqHeader starts every packet. Length covers the whole packet including the header.
type ReqHeader struct {
	Length     uint32
	Magic      uint32
	Version    uint32
	Generation uint32
	Operation  Operation
	DestNode   uint32
	SrcNode    uint32
	ReqID      uint32
}

// NewReqHeader returns a header with magic and version filled in
func NewReqHeader(op Operation, destNode, srcNode, reqID uint32) ReqHeader {
	return ReqHeader{
		Magic:     Magic,
		Version:   Version,
		Operation: op,
		DestNode:  destNode,
		SrcNode:   srcNode,
		ReqID:     reqID,
	}
}

func (*ReqHeader) Kind() Kind { return KindReqHeader }

func (m *ReqHeader) fields(l *layout) {
	field(l, &m.Length, Uint32)
	field(l, &m.Magic, Uint32)
	field(l, &m.Version, Uint32)
	field(l, &m.Generation, Uint32)
	field(l, (*uint32)(&m.Operation), Uint32)
	field(l, &m.DestNode, Uint32)
	field(l, &m.SrcNode, Uint32)
	field(l, &m.ReqID, Uint32)
}

// Verify checks magic, version and the packet length against maxLength (0 = no limit)
func (m *ReqHeader) Verify(maxLength int) error {
	if m.Magic != Magic {
		return errors.Wrapf(ErrBadHeader, "magic 0x%08x", m.Magic)
	}
	if m.Version != Version {
		return errors.Wrapf(ErrBadHeader, "version %d", m.Version)
	}
	if m.Length < HeaderSize {
		return malformed("packet length %d shorter than header", m.Length)
	}
	if maxLength > 0 && uint64(m.Length) > uint64(maxLength) {
		return malformed("packet length %d exceeds maximum %d", m.Length, maxLength)
	}
	return nil
}

// MarshalPacket sets h.Length and encodes header and body into one buffer
func MarshalPacket(h *ReqHeader, body Message) []byte {
	bodyLen := Len(body)
	h.Length = uint32(HeaderSize + bodyLen)
	buf := make([]byte, HeaderSize+bodyLen)
	pushOf(h, buf)
	pushOf(body, buf[HeaderSize:])
	return buf
}

// ParseHeader decodes and verifies the header at the start of buf
func ParseHeader(buf []byte, maxLength int) (ReqHeader, error) {
	if len(buf) < HeaderSize {
		return ReqHeader{}, truncated("packet header", HeaderSize, len(buf))
	}
	h, err := DecodeScalar[ReqHeader](buf[:HeaderSize])
	if err != nil {
		return ReqHeader{}, err
	}
	if err := h.Verify(maxLength); err != nil {
		return ReqHeader{}, err
	}
	return h, nil
}

// --------------------------------------------------------------------------
// Packet Bodies
// --------------------------------------------------------------------------

// ReqControl is the body of a control request
type ReqControl struct {
	Opcode   Opcode
	Pad      uint32
	SrvID    uint64
	ClientID uint32
	Flags    uint32
	Data     []byte
}

// Control flags
const (
	ControlFlagNoReply        uint32 = 0x00000001
	ControlFlagOpcodeSpecific uint32 = 0xFFFF0000
)

func (*ReqControl) Kind() Kind { return KindReqControl }

func (m *ReqControl) fields(l *layout) {
	field(l, (*uint32)(&m.Opcode), Uint32)
	field(l, &m.Pad, Uint32)
	field(l, &m.SrvID, Uint64)
	field(l, &m.ClientID, Uint32)
	field(l, &m.Flags, Uint32)
	field(l, &m.Data, Blob)
}

// ReplyControl is the body of a control reply. A non-zero status signals failure.
type ReplyControl struct {
	Status int32
	Data   []byte
	ErrMsg string
}

func (*ReplyControl) Kind() Kind { return KindReplyControl }

func (m *ReplyControl) fields(l *layout) {
	field(l, &m.Status, Int32)
	field(l, &m.Data, Blob)
	field(l, &m.ErrMsg, String)
}

// ReqMessage is the body of a message to a registered server id
type ReqMessage struct {
	SrvID uint64
	Data  []byte
}

func (*ReqMessage) Kind() Kind { return KindReqMessage }

func (m *ReqMessage) fields(l *layout) {
	field(l, &m.SrvID, Uint64)
	field(l, &m.Data, Blob)
}
