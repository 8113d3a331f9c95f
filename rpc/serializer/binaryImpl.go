package serializer

import (
	"github.com/ValentinKolb/dctl/lib/arena"
	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/cockroachdb/errors"
)

// NewBinarySerializer creates a new serializer using the binary control protocol encoding
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer with the codecs of lib/protocol
type binarySerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (s binarySerializerImpl) SerializeControl(req *protocol.ReqControl, payload protocol.Message) ([]byte, error) {
	if payload != nil {
		if want := req.Opcode.RequestKind(); payload.Kind() != want {
			return nil, errors.Newf("%s expects a %s payload, got %s", req.Opcode, want, payload.Kind())
		}
		req.Data = protocol.Marshal(payload)
	}
	return protocol.Marshal(req), nil
}

func (s binarySerializerImpl) DeserializeControl(b []byte, a *arena.Arena) (protocol.ReqControl, protocol.Message, error) {
	var req protocol.ReqControl
	if err := protocol.DecodeInto(&req, b, a); err != nil {
		return protocol.ReqControl{}, nil, err
	}

	kind := req.Opcode.RequestKind()
	if kind == protocol.KindInvalid {
		return req, nil, nil
	}

	payload, err := protocol.Unmarshal(kind, req.Data, len(req.Data), a)
	if err != nil {
		return req, nil, errors.Wrapf(err, "%s payload", req.Opcode)
	}
	return req, payload, nil
}

func (s binarySerializerImpl) SerializeReply(reply *protocol.ReplyControl, payload protocol.Message) []byte {
	if payload != nil {
		reply.Data = protocol.Marshal(payload)
	}
	return protocol.Marshal(reply)
}

func (s binarySerializerImpl) DeserializeReply(b []byte, opcode protocol.Opcode, a *arena.Arena) (protocol.ReplyControl, protocol.Message, error) {
	var reply protocol.ReplyControl
	if err := protocol.DecodeInto(&reply, b, a); err != nil {
		return protocol.ReplyControl{}, nil, err
	}

	// failed controls carry no payload, only the error message
	kind := opcode.ReplyKind()
	if reply.Status != 0 || kind == protocol.KindInvalid {
		return reply, nil, nil
	}

	payload, err := protocol.Unmarshal(kind, reply.Data, len(reply.Data), a)
	if err != nil {
		return reply, nil, errors.Wrapf(err, "%s reply payload", opcode)
	}
	return reply, payload, nil
}
