package serializer

import (
	"github.com/ValentinKolb/dctl/lib/arena"
	"github.com/ValentinKolb/dctl/lib/protocol"
)

// IRPCSerializer converts control requests and replies, including their typed payloads,
// to and from packet bodies
type IRPCSerializer interface {
	// SerializeControl encodes a control request. The payload is encoded into the data
	// field and must match the request kind of the opcode. A nil payload keeps req.Data.
	SerializeControl(req *protocol.ReqControl, payload protocol.Message) ([]byte, error)
	// DeserializeControl decodes a control request body. The payload is decoded according
	// to the request kind of the opcode and is nil for controls without a typed payload or
	// unknown opcodes. Nested data is allocated in a.
	DeserializeControl(b []byte, a *arena.Arena) (req protocol.ReqControl, payload protocol.Message, err error)
	// SerializeReply encodes a control reply. A non-nil payload is encoded into the data field.
	SerializeReply(reply *protocol.ReplyControl, payload protocol.Message) []byte
	// DeserializeReply decodes a control reply body. For a successful reply the payload is
	// decoded according to the reply kind of the opcode. Nested data is allocated in a.
	DeserializeReply(b []byte, opcode protocol.Opcode, a *arena.Arena) (reply protocol.ReplyControl, payload protocol.Message, err error)
}
