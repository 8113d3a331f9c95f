package base

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/ValentinKolb/dctl/rpc/common"
	"github.com/ValentinKolb/dctl/rpc/transport"
	"github.com/cockroachdb/errors"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector      IServerConnector
	handler        transport.ServerHandleFunc
	config         common.ServerConfig
	listener       net.Listener
	closed         atomic.Bool
	bufferPool     *sync.Pool
	maxMessageSize int
	workersPerConn int
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport with per-connection worker pool
func NewBaseServerTransport(connector IServerConnector) transport.IRPCServerTransport {
	return &serverTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return errors.New("no handler registered")
	}
	t.config = config
	t.maxMessageSize = config.Transport.MaxMessage()

	// minimum one worker per connection
	t.workersPerConn = max(config.Transport.WorkersPerConn, 1)

	// bodies up to the maximum message size are read into pooled buffers
	bufferSize := max(t.maxMessageSize-protocol.HeaderSize, 0)
	t.bufferPool = &sync.Pool{
		New: func() interface{} {
			return make([]byte, bufferSize)
		},
	}

	// Create listener using the connector
	listener, err := t.connector.Listen(config)
	if err != nil {
		return errors.Wrap(err, "failed to create listener")
	}
	t.listener = listener
	t.closed.Store(false)

	Logger.Infof("Starting %s server on %s with %d workers per connection (max message size %d bytes)",
		t.connector.GetName(), config.Transport.Endpoint, t.workersPerConn, t.maxMessageSize)

	// Accept connections
	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.closed.Load() {
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		if err := t.connector.UpgradeConnection(conn, config); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
		}

		// Handle the connection in a goroutine
		go t.handleConnection(conn)
	}
}

func (t *serverTransport) Close() error {
	t.closed.Store(true)
	if t.listener == nil {
		return nil
	}
	return t.listener.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection handles incoming packets for one connection
func (t *serverTransport) handleConnection(conn net.Conn) {
	defer conn.Close()

	// Timeout in seconds
	timeout := time.Duration(t.config.TimeoutSecond) * time.Second

	// The buffered channel acts as a counting semaphore limiting concurrent workers
	workerSemaphore := make(chan struct{}, t.workersPerConn)

	// Wait for all workers before the connection is closed
	var wg sync.WaitGroup

	// Protects writes to the connection
	var connMutex sync.Mutex

	// handleReply processes one packet in a worker goroutine
	handleReply := func(hdr protocol.ReqHeader, body []byte) {
		defer func() {
			<-workerSemaphore
			wg.Done()
		}()

		start := time.Now()
		replyOp, reply := t.handler(hdr, body)
		Logger.Debugf("Processed %s packet with reqid %d took %s", hdr.Operation, hdr.ReqID, time.Since(start))

		if reply == nil {
			return
		}

		connMutex.Lock()
		defer connMutex.Unlock()

		if timeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Failed to set write deadline: %v", err)
				return
			}
		}

		// The reply goes back to the sender with the same reqid
		replyHdr := protocol.NewReqHeader(replyOp, hdr.SrcNode, hdr.DestNode, hdr.ReqID)
		replyHdr.Generation = hdr.Generation
		if err := writePacket(conn, replyHdr, reply); err != nil {
			Logger.Errorf("Failed to write reply: %v", err)
			return
		}
		common.ObservePacketSize("out", protocol.HeaderSize+len(reply))
	}

	// handleRequest reads one packet and hands it to a worker
	handleRequest := func() error {
		if timeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
				return errors.Wrap(err, "failed to set read deadline")
			}
		}

		buf := t.bufferPool.Get().([]byte)

		hdr, body, err := readPacket(conn, buf, t.maxMessageSize)
		if err != nil {
			t.bufferPool.Put(buf)
			return err
		}
		common.ObservePacketSize("in", int(hdr.Length))

		// Blocks if workersPerConn is reached
		workerSemaphore <- struct{}{}
		wg.Add(1)

		go func() {
			defer t.bufferPool.Put(buf)
			handleReply(hdr, body)
		}()

		return nil
	}

	for {
		err := handleRequest()

		// Case EOF: Connection closed by client
		if err == io.EOF {
			Logger.Debugf("Connection closed by client %s", conn.RemoteAddr())
			break
		}

		// Case corrupt header: the stream cannot be resynchronized
		if errors.IsAny(err, protocol.ErrMalformedLength, protocol.ErrTruncatedInput) {
			common.RecordDecodeError(err)
			Logger.Warningf("Dropping connection from %s: %v", conn.RemoteAddr(), err)
			break
		}

		if err != nil {
			Logger.Errorf("Error handling request: %v", err)
			break
		}
	}

	// Wait for all workers to finish before closing the connection
	wg.Wait()
}
