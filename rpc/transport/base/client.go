package base

import (
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/ValentinKolb/dctl/rpc/common"
	"github.com/ValentinKolb/dctl/rpc/transport"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains the result of a request
type responseResult struct {
	data []byte
	err  error
}

// clientConnection represents a single net connection
type clientConnection struct {
	conn         net.Conn
	endpoint     string
	stopCh       chan struct{} // Close signal for the reader goroutine
	requestChans *xsync.MapOf[uint32, chan responseResult]
	connMu       sync.Mutex // Protects the connection itself
	parent       *clientTransport
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	connections   []*clientConnection
	connectionsMu sync.RWMutex
	nextConnIndex uint64        // Atomic counter for Round Robin
	nextRequestID atomic.Uint32 // Atomic counter for unique reqids
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return errors.New("no endpoints provided")
	}

	t.config = config

	// Close all existing connections
	t.closeConnections()

	connectionsPerEP := max(config.Transport.ConnectionsPerEndpoint, 1)

	t.connections = make([]*clientConnection, 0, len(config.Transport.Endpoints)*connectionsPerEP)

	for _, endpoint := range config.Transport.Endpoints {
		for i := 0; i < connectionsPerEP; i++ {
			clientConn := &clientConnection{
				endpoint:     endpoint,
				stopCh:       make(chan struct{}),
				requestChans: xsync.NewMapOf[uint32, chan responseResult](),
				parent:       t,
			}

			// Establish the initial connection using reconnect
			if err := clientConn.reconnect(); err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, connectionsPerEP, err)
				continue
			}

			t.connectionsMu.Lock()
			t.connections = append(t.connections, clientConn)
			t.connectionsMu.Unlock()

			Logger.Debugf("Connected to %s (connection %d/%d)", endpoint, i+1, connectionsPerEP)

			go clientConn.readResponses()
		}
	}

	if len(t.connections) == 0 {
		return errors.New("failed to connect to any endpoint")
	}

	Logger.Debugf("Connected to %d out of %d connections to %d endpoints using %s transport",
		len(t.connections), len(config.Transport.Endpoints)*connectionsPerEP, len(config.Transport.Endpoints), t.connector.GetName())

	return nil
}

func (t *clientTransport) Send(op protocol.Operation, destNode uint32, body []byte) ([]byte, error) {
	if protocol.HeaderSize+len(body) > t.config.Transport.MaxMessage() {
		return nil, errors.Newf("packet of %d bytes exceeds maximum message size %d",
			protocol.HeaderSize+len(body), t.config.Transport.MaxMessage())
	}

	timeout := time.Duration(t.config.TimeoutSecond) * time.Second

	// send performs one attempt on one connection
	send := func(connection *clientConnection) ([]byte, error) {
		connection.connMu.Lock()
		conn := connection.conn
		connection.connMu.Unlock()
		if conn == nil {
			return nil, errors.New("connection is closed")
		}

		// every attempt gets its own reqid so a late reply of an earlier attempt is dropped
		reqID := t.nextRequestID.Add(1)
		hdr := protocol.NewReqHeader(op, destNode, protocol.DestCurrent, reqID)

		respCh := make(chan responseResult, 1)
		connection.requestChans.Store(reqID, respCh)
		defer connection.requestChans.Delete(reqID)

		// Lock the connection only for writing
		connection.connMu.Lock()
		if timeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(timeout))
		}
		err := writePacket(conn, hdr, body)
		connection.connMu.Unlock()
		if err != nil {
			return nil, err
		}

		var timeoutCh <-chan time.Time
		if timeout > 0 {
			timer := time.NewTimer(timeout)
			defer timer.Stop()
			timeoutCh = timer.C
		}

		select {
		case result := <-respCh:
			return result.data, result.err
		case <-timeoutCh:
			return nil, errors.Newf("request %d timed out after %s", reqID, timeout)
		}
	}

	// Retry logic with exponential backoff
	var lastErr error

	maxRetries := max(t.config.Transport.RetryCount, 1)

	// Initial backoff duration in milliseconds
	backoffMs := 50

	for i := 0; i < maxRetries; i++ {
		conn := t.getNextConnection()
		if conn == nil {
			return nil, errors.New("no active connections available")
		}

		data, err := send(conn)
		if err == nil {
			return data, nil
		}

		lastErr = err
		Logger.Debugf("Request attempt %d/%d failed: %v", i+1, maxRetries, err)

		if i < maxRetries-1 {
			// Exponential backoff with a small random jitter (+-10%)
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			time.Sleep(time.Duration(jitter) * time.Millisecond)
			backoffMs *= 2
		}
	}

	return nil, errors.Wrapf(lastErr, "failed to send %s packet after %d attempts", op, maxRetries)
}

func (t *clientTransport) Close() error {
	t.closeConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// getNextConnection selects the next connection via Round Robin
func (t *clientTransport) getNextConnection() *clientConnection {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	if len(t.connections) == 0 {
		return nil
	}

	var index uint64
	if len(t.connections) > 1 {
		index = atomic.AddUint64(&t.nextConnIndex, 1) % uint64(len(t.connections))
	}
	return t.connections[index]
}

// closeConnections closes all active connections
func (t *clientTransport) closeConnections() {
	t.connectionsMu.Lock()
	defer t.connectionsMu.Unlock()

	for _, c := range t.connections {
		// Signal reader goroutine to stop
		close(c.stopCh)

		c.connMu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.connMu.Unlock()
	}

	t.connections = nil
}

// stopped reports whether the connection was closed by the transport
func (c *clientConnection) stopped() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// failPending hands err to every request waiting on this connection
func (c *clientConnection) failPending(err error) {
	c.requestChans.Range(func(reqID uint32, respCh chan responseResult) bool {
		select {
		case respCh <- responseResult{nil, err}:
		default:
		}
		return true
	})
}

// readResponses reads replies in a loop and distributes them to waiting requests
func (c *clientConnection) readResponses() {
	maxLength := c.parent.config.Transport.MaxMessage()

	for {
		if c.stopped() {
			return
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		// Replies are matched by reqid, the body is owned by the waiting request
		hdr, data, err := readPacket(conn, nil, maxLength)
		if err != nil {
			if c.stopped() {
				c.failPending(errors.New("transport closed"))
				return
			}
			if errors.IsAny(err, protocol.ErrMalformedLength, protocol.ErrTruncatedInput) {
				common.RecordDecodeError(err)
			}
			Logger.Errorf("Error reading reply from %s: %v", c.endpoint, err)
			c.failPending(errors.Wrap(err, "error reading reply"))

			// Try to restore the connection
			if err := c.reconnect(); err != nil {
				Logger.Errorf("Failed to reconnect to %s: %v", c.endpoint, err)
				return
			}
			continue
		}

		if respCh, found := c.requestChans.Load(hdr.ReqID); found {
			select {
			case respCh <- responseResult{data, nil}:
			default:
			}
		} else {
			Logger.Warningf("Received %s reply for unknown reqid %d", hdr.Operation, hdr.ReqID)
		}
	}
}

// reconnect establishes or restores a connection to the endpoint
func (c *clientConnection) reconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	conn, err := c.parent.connector.Connect(c.endpoint)
	if err != nil {
		return errors.Wrapf(err, "failed to connect to %s", c.endpoint)
	}

	if err := c.parent.connector.UpgradeConnection(conn, c.parent.config); err != nil {
		conn.Close()
		return errors.Wrapf(err, "failed to upgrade connection to %s", c.endpoint)
	}

	c.conn = conn
	return nil
}
