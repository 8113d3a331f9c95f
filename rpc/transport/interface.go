package transport

import (
	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/ValentinKolb/dctl/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc handles one incoming packet.
// It is called by a server transport with the verified header and the packet body and
// returns the operation and body of the reply. A nil reply body with a zero operation
// means that no reply is sent.
type ServerHandleFunc func(hdr protocol.ReqHeader, body []byte) (replyOp protocol.Operation, reply []byte)

// IRPCServerTransport is the interface for the server side of the transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers the handler called for every received packet
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and serves incoming packets until Close is called
	Listen(config common.ServerConfig) error
	// Close stops listening
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the client side of the transport layer
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a packet with the given operation and body to destNode and returns the reply body.
	// Request ids and the packet header are managed by the transport.
	Send(op protocol.Operation, destNode uint32, body []byte) (reply []byte, err error)
	// Close closes the transport connection
	Close() error
}
