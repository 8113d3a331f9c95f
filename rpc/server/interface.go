package server

import (
	"github.com/ValentinKolb/dctl/lib/node"
	"github.com/ValentinKolb/dctl/lib/protocol"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for answering decoded controls against a node
type IRPCServerAdapter interface {
	// Handle answers one control. payload is the decoded request payload, nil for
	// controls without one. It returns the reply status and the reply payload (nil
	// for controls that reply with a status only). A returned error is converted to a
	// failed reply by the server.
	Handle(req *protocol.ReqControl, payload protocol.Message, n node.INode) (status int32, reply protocol.Message, err error)
	// Opcodes lists the controls the adapter answers
	Opcodes() []protocol.Opcode
}

// ControlHandler answers a single control
type ControlHandler func(req *protocol.ReqControl, payload protocol.Message, n node.INode) (status int32, reply protocol.Message, err error)
