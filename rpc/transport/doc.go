// Package transport defines the interfaces for moving control protocol packets between
// a client and a node. Every implementation carries complete packets: a
// protocol.ReqHeader followed by the body whose length the header declares.
//
// Key Components:
//
//   - IRPCClientTransport: client side. Connect opens connections to the configured
//     endpoints and Send delivers one packet and waits for the reply with the same reqid.
//
//   - IRPCServerTransport: server side. Listen accepts connections, verifies every header
//     against the configured maximum message size and calls the registered handler.
//
//   - ServerHandleFunc: callback receiving the verified header and the packet body.
//
// Implementations live in the subpackages tcp, unix and http, the first two share the
// stream logic of package base.
package transport
