package client

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dctl/lib/arena"
	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/ValentinKolb/dctl/rpc/common"
	"github.com/ValentinKolb/dctl/rpc/serializer"
	"github.com/ValentinKolb/dctl/rpc/transport"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc/client")
)

// ControlError is returned for a control the node answered with a non-zero status
type ControlError struct {
	Opcode protocol.Opcode // The failed control
	Status int32           // The reply status
	Msg    string          // The error message of the reply
}

// Error implements the error interface.
func (e *ControlError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("control %s failed with status %d", e.Opcode, e.Status)
	}
	return fmt.Sprintf("control %s failed with status %d: %s", e.Opcode, e.Status, e.Msg)
}

// StatusOf returns the reply status carried by err, 0 if err is not a ControlError
func StatusOf(err error) int32 {
	var ce *ControlError
	if errors.As(err, &ce) {
		return ce.Status
	}
	return 0
}

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
type rpcClientAdapter struct {
	clientID   uint32
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invokeControl is the helper all controls are sent with.
// It serializes the request with its payload, sends it to the configured node and decodes the
// reply. The status is returned as is, the caller decides whether it signals a failure.
// The reply payload is allocated in a.
func (c *rpcClientAdapter) invokeControl(opcode protocol.Opcode, data []byte, payload protocol.Message, a *arena.Arena) (protocol.ReplyControl, protocol.Message, error) {
	req := protocol.ReqControl{
		Opcode:   opcode,
		ClientID: c.clientID,
		Data:     data,
	}

	// Serialize the request
	reqBytes, err := c.serializer.SerializeControl(&req, payload)
	if err != nil {
		return protocol.ReplyControl{}, nil, errors.Wrapf(err, "failed to serialize %s", opcode)
	}

	// Send the request
	respBytes, err := c.transport.Send(protocol.OperationControl, c.config.DestNode, reqBytes)
	if err != nil {
		return protocol.ReplyControl{}, nil, err
	}

	// Deserialize the reply
	reply, replyPayload, err := c.serializer.DeserializeReply(respBytes, opcode, a)
	if err != nil {
		common.RecordDecodeError(err)
		return protocol.ReplyControl{}, nil, errors.Wrapf(err, "failed to decode %s reply", opcode)
	}
	return reply, replyPayload, nil
}

// invoke sends a control whose non-zero status is a failure and returns the typed reply payload
func invoke[T any, PT interface {
	*T
	protocol.Message
}](c *rpcClientAdapter, opcode protocol.Opcode, payload protocol.Message, a *arena.Arena) (PT, error) {
	reply, replyPayload, err := c.invokeControl(opcode, nil, payload, a)
	if err != nil {
		return nil, err
	}
	if reply.Status != 0 {
		return nil, &ControlError{Opcode: opcode, Status: reply.Status, Msg: reply.ErrMsg}
	}

	// Check if the type of the reply is the expected type
	typed, ok := replyPayload.(PT)
	if !ok {
		return nil, errors.Newf("unexpected %T reply to %s", replyPayload, opcode)
	}
	return typed, nil
}

// invokeStatus sends a control without reply payload whose non-zero status is a failure
func (c *rpcClientAdapter) invokeStatus(opcode protocol.Opcode, payload protocol.Message) error {
	reply, _, err := c.invokeControl(opcode, nil, payload, nil)
	if err != nil {
		return err
	}
	if reply.Status != 0 {
		return &ControlError{Opcode: opcode, Status: reply.Status, Msg: reply.ErrMsg}
	}
	return nil
}

// defaultClientID identifies this process in the requests it sends
func defaultClientID() uint32 {
	return uint32(os.Getpid())
}
