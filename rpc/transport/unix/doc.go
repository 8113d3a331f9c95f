// Package unix implements the transport of the cluster control protocol over Unix
// domain sockets, the usual way a local tool talks to the daemon of its own node.
//
// This package extends the base transport with Unix socket specific connectors and
// inherits packet framing, worker pools and reply correlation from the base package.
//
// Key Components:
//
//   - clientConnector: dials the socket path given as endpoint
//
//   - serverConnector: removes a stale socket file and listens on the socket path
package unix
