// Package tcp implements the TCP transport for the cluster control protocol. It provides
// TCP specific implementations of the base package's connector interfaces.
//
// The transport inherits packet framing, the per connection worker pool and reply
// correlation by reqid from the base package. See the base package documentation for
// details.
//
// Key Components:
//
//   - clientConnector: dials TCP endpoints and applies the socket options of the client config
//
//   - serverConnector: listens on a TCP endpoint and applies the socket options of the server
//     config (TCP_NODELAY, buffer sizes, keep-alive and linger) to accepted connections
package tcp
