// Package base provides the stream transport shared by the tcp and unix transports of
// the cluster control protocol. It is independent of the network protocol and is
// extended with protocol specific connectors.
//
// Framing:
//
//	Every packet is a 32 byte protocol.ReqHeader followed by the body. The header
//	length covers header and body and is checked against the configured maximum
//	message size before the body is read. A header with a wrong magic, version or
//	length cannot be resynchronized, the connection is dropped.
//
// Key Components:
//
//   - IClientConnector/IServerConnector: interfaces for protocol specific operations
//     (dial, listen, socket options).
//
//   - clientTransport: manages several connections per endpoint with round-robin
//     selection. Replies are correlated with waiting requests by reqid through a
//     concurrent map. Failed attempts are retried with exponential backoff.
//
//   - serverTransport: accepts connections and runs a bounded number of workers per
//     connection. Replies carry the reqid and generation of the request and are
//     addressed back to its source node.
//
// Performance Optimizations:
//
//   - Buffer Pooling: the server reads bodies into pooled buffers sized to the maximum
//     message size.
//
//   - Asynchronous Processing: requests on one connection are processed concurrently,
//     replies may be written out of order.
//
//   - Frame Batching: header and body are written with net.Buffers in one call.
//
// Thread Safety:
//
//	All public methods are thread-safe. Writes to one connection are serialized with
//	a mutex, every connection has its own reader goroutine.
package base
