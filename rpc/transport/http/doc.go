// Package http implements an HTTP based transport for the cluster control protocol.
// Every packet (header and body) is posted to PacketPath and the reply packet is
// returned as the response body, so the framing is identical to the stream transports.
//
// Key Components:
//
//   - httpClientTransport: implements IRPCClientTransport. It selects endpoints round-robin,
//     retries failed posts and verifies the header of every reply packet.
//
//   - httpServerTransport: implements IRPCServerTransport. It rejects bodies above the
//     configured maximum message size, verifies the packet header and hands the body to
//     the registered handler.
//
// Thread Safety:
//
//	The client transport is safe for concurrent use. The round-robin counter and the
//	reqid counter are updated atomically.
package http
