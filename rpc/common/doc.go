// Package common provides the configuration structures and the logging setup shared by
// the control server, the control client and the transports.
//
// Key Components:
//
//   - ServerConfig: configuration of one cluster node: its pnn, the addresses of all
//     nodes, the public addresses and databases it serves, transport and metrics settings.
//     Validate checks the node identity before the server starts.
//
//   - ClientConfig: configuration of a control client: endpoints, destination node,
//     timeouts, retries and connections per endpoint.
//
//   - ServerTransportConfig / ClientTransportConfig: transport level settings. The maximum
//     message size lives here (default DefaultMaxMessageSize), the codecs in lib/protocol
//     carry no size limit of their own.
//
//   - Logger: custom implementation of dragonboats logger.ILogger printing
//     "LEVEL | name | message" lines. InitLoggers installs it and sets the level of all
//     package loggers of the module.
package common
