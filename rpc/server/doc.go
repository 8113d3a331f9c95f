// Package server implements the control server of one cluster node.
// It decodes control packets delivered by a transport, answers them against the
// in-memory node state of lib/node and encodes the replies.
//
// The package focuses on:
//   - Server-side handling of every control of the protocol table
//   - Adapter pattern to decouple the node state from the RPC mechanisms
//   - Mapping of errors to negative reply status codes with an error message
//   - Per request decode arenas recycled through an arena.Pool
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for server adapters, with the
//     Handle method answering one decoded control against a node.INode.
//
//   - NewNodeServerAdapter: Factory function creating the adapter that holds an
//     opcode to ControlHandler table for all controls.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  PNN:       0,
//	  Nodes:     []string{"10.0.0.1:4379", "10.0.0.2:4379"},
//	  Databases: []string{"locking.tdb", "secrets.tdb:persistent"},
//	  Transport: common.ServerTransportConfig{Endpoint: "0.0.0.0:4379"},
//	  LogLevel:  "info",
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Failed controls reply with a negative status (StatusNotFound, StatusInvalid, ...) and
// the error text in the errmsg field. Unknown opcodes reply with StatusUnsupported.
// Controls flagged with protocol.ControlFlagNoReply are processed without a reply.
//
// Thread Safety:
//
//	The server is thread-safe and handles concurrent requests across multiple
//	connections. Serve is not thread-safe and should be called only once.
package server
