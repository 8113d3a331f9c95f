// Package rpc provides the control path of dCTL. It acts as the communication layer
// between the control client and a node, carrying packets of the binary control protocol.
//
// The package is organized into several subpackages:
//
//   - common: Configuration structures, logging and the metrics shared by client and server.
//
//   - transport: Packet transport abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP). Every transport frames packets with the protocol header.
//
//   - serializer: Conversion between control requests or replies with their typed
//     payloads and packet bodies.
//
//   - client: The typed control client, one method per control.
//
//   - server: The node server, answering controls against the in-memory node state.
package rpc
