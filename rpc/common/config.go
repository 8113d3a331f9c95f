package common

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/cockroachdb/errors"
)

const (
	// DefaultMaxMessageSize is the largest packet a transport accepts unless configured otherwise
	DefaultMaxMessageSize = 1024 * 1024
	// DefaultWorkersPerConn is the number of requests processed concurrently per connection
	DefaultWorkersPerConn = 4
)

// --------------------------------------------------------------------------
// Transport configuration structs
// --------------------------------------------------------------------------

// SocketConf holds socket buffer sizes (0 keeps the system default)
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds options that only apply to TCP connections
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// ServerTransportConfig configures the listening side of a transport
type ServerTransportConfig struct {
	Endpoint       string
	MaxMessageSize int
	WorkersPerConn int
	SocketConf
	TCPConf
}

// ClientTransportConfig configures the dialing side of a transport
type ClientTransportConfig struct {
	Endpoints              []string
	RetryCount             int
	ConnectionsPerEndpoint int
	MaxMessageSize         int
	SocketConf
	TCPConf
}

// MaxMessage returns the configured maximum packet size, falling back to DefaultMaxMessageSize
func (c *ServerTransportConfig) MaxMessage() int {
	if c.MaxMessageSize <= 0 {
		return DefaultMaxMessageSize
	}
	return c.MaxMessageSize
}

// MaxMessage returns the configured maximum packet size, falling back to DefaultMaxMessageSize
func (c *ClientTransportConfig) MaxMessage() int {
	if c.MaxMessageSize <= 0 {
		return DefaultMaxMessageSize
	}
	return c.MaxMessageSize
}

// --------------------------------------------------------------------------
// Node server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of one cluster node
type ServerConfig struct {
	// PNN is the physical node number of this node, an index into Nodes
	PNN uint32
	// Nodes lists the addresses of all cluster nodes, the position is the pnn
	Nodes []string
	// PublicIPs lists the public addresses served by the cluster as "address/mask@iface"
	PublicIPs []string
	// Databases lists the databases attached at startup as "name" or "name:persistent"
	Databases []string

	// Transport settings
	Transport     ServerTransportConfig
	TimeoutSecond int64

	// Prometheus endpoint (empty disables it)
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// Validate checks the node identity and parses every configured address
func (c *ServerConfig) Validate() error {
	if len(c.Nodes) == 0 {
		return errors.New("no cluster nodes configured")
	}
	if int(c.PNN) >= len(c.Nodes) {
		return errors.Newf("pnn %d out of range, %d nodes configured", c.PNN, len(c.Nodes))
	}
	for i, addr := range c.Nodes {
		if _, err := protocol.ParseSockAddr(addr); err != nil {
			return errors.Wrapf(err, "node %d", i)
		}
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Transport settings
	addSection("Transport")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Max Message Size", fmt.Sprintf("%d bytes", c.Transport.MaxMessage()))
	addField("Workers Per Conn", strconv.Itoa(c.Transport.WorkersPerConn))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	if c.MetricsEndpoint != "" {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Node identity
	addSection("Node Identity")
	addField("PNN", strconv.FormatUint(uint64(c.PNN), 10))
	if int(c.PNN) < len(c.Nodes) {
		addField("Address", c.Nodes[c.PNN])
	}

	// Cluster
	addSection("Cluster Nodes")
	for i, node := range c.Nodes {
		addField(strconv.Itoa(i), node)
	}

	if len(c.PublicIPs) > 0 {
		addSection("Public Addresses")
		for i, ip := range c.PublicIPs {
			addField(strconv.Itoa(i), ip)
		}
	}

	if len(c.Databases) > 0 {
		addSection("Databases")
		for i, db := range c.Databases {
			addField(strconv.Itoa(i), db)
		}
	}
	return sb.String()
}

// --------------------------------------------------------------------------
// Control client configuration struct
// --------------------------------------------------------------------------

// ClientConfig configures a control client
type ClientConfig struct {
	TimeoutSecond int
	// DestNode is the pnn the controls are addressed to (protocol.DestCurrent for the connected node)
	DestNode  uint32
	Transport ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	if c.DestNode == protocol.DestCurrent {
		addField("Destination", "current node")
	} else {
		addField("Destination", fmt.Sprintf("pnn %d", c.DestNode))
	}
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(max(1, c.Transport.ConnectionsPerEndpoint)))
	addField("Max Message Size", fmt.Sprintf("%d bytes", c.Transport.MaxMessage()))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
