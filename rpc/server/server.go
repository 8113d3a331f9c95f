package server

import (
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ValentinKolb/dctl/lib/arena"
	"github.com/ValentinKolb/dctl/lib/node"
	"github.com/ValentinKolb/dctl/lib/protocol"
	"github.com/ValentinKolb/dctl/rpc/common"
	"github.com/ValentinKolb/dctl/rpc/serializer"
	"github.com/ValentinKolb/dctl/rpc/transport"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// arenaFactor bounds the decode arena of a request relative to the maximum message size
const arenaFactor = 4

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		adapter:    NewNodeServerAdapter(),
		arenas:     arena.NewPool(arenaFactor * config.Transport.MaxMessage()),
	}
}

// RPCServer answers control packets of one node
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	adapter    IRPCServerAdapter
	arenas     *arena.Pool
	node       node.INode
}

// Node returns the node state, nil before the server was initialized
func (s *RPCServer) Node() node.INode {
	return s.node
}

// Serve starts the RPC server
// This function will also initialize the loggers and the node state and start the transport layer
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}

	if s.config.MetricsEndpoint != "" {
		go func() {
			Logger.Infof("Serving metrics on %s/metrics", s.config.MetricsEndpoint)
			if err := common.ServeMetrics(s.config.MetricsEndpoint); err != nil {
				Logger.Errorf("Metrics endpoint failed: %v", err)
			}
		}()
	}

	return s.transport.Listen(s.config)
}

// Close stops the transport and the node
func (s *RPCServer) Close() error {
	err := s.transport.Close()
	if s.node != nil {
		err = errors.CombineErrors(err, s.node.Close())
	}
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *RPCServer) init() error {
	// Init logger
	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		return err
	}

	if err := s.config.Validate(); err != nil {
		return errors.Wrap(err, "invalid server config")
	}

	nodeConfig, err := NodeConfigOf(s.config)
	if err != nil {
		return err
	}

	n, err := node.NewNode(nodeConfig)
	if err != nil {
		return errors.Wrap(err, "failed to create node")
	}
	s.node = n

	Logger.Infof("dCTL node %d setup completed successfully, serving %d controls", n.PNN(), len(s.adapter.Opcodes()))

	// Configure the transport layer
	s.transport.RegisterHandler(s.handlePacket)
	return nil
}

// NodeConfigOf parses the cluster settings of a server config into a node config
func NodeConfigOf(config common.ServerConfig) (node.Config, error) {
	nc := node.Config{PNN: config.PNN}

	for i, s := range config.Nodes {
		addr, err := protocol.ParseSockAddr(s)
		if err != nil {
			return node.Config{}, errors.Wrapf(err, "node %d", i)
		}
		nc.Nodes = append(nc.Nodes, addr)
	}
	for _, s := range config.PublicIPs {
		ip, err := node.ParsePublicAddress(s)
		if err != nil {
			return node.Config{}, err
		}
		nc.PublicIPs = append(nc.PublicIPs, ip)
	}
	for _, s := range config.Databases {
		db, err := node.ParseDatabase(s)
		if err != nil {
			return node.Config{}, err
		}
		nc.Databases = append(nc.Databases, db)
	}
	return nc, nil
}

// handlePacket is the transport handler: it answers controls and consumes messages
func (s *RPCServer) handlePacket(hdr protocol.ReqHeader, body []byte) (protocol.Operation, []byte) {
	switch hdr.Operation {
	case protocol.OperationControl:
		s.node.Stats().PacketReceived()
		return s.handleControl(hdr, body)

	case protocol.OperationMessage:
		s.handleMessage(hdr, body)
		return protocol.OperationReplyControl, nil

	default:
		s.node.Stats().PacketReceived()
		Logger.Warningf("Dropping %s packet with reqid %d from node %d", hdr.Operation, hdr.ReqID, hdr.SrcNode)
		return protocol.OperationReplyControl, nil
	}
}

// handleControl decodes a control request, lets the adapter answer it and encodes the reply
func (s *RPCServer) handleControl(hdr protocol.ReqHeader, body []byte) (protocol.Operation, []byte) {
	a := s.arenas.Get()
	defer s.arenas.Put(a)

	req, payload, err := s.serializer.DeserializeControl(body, a)
	if err != nil {
		common.RecordDecodeError(err)
		Logger.Warningf("Failed to decode control with reqid %d: %v", hdr.ReqID, err)
		return protocol.OperationReplyControl, s.failedReply(err)
	}

	done := s.node.Stats().ControlStarted(req.ClientID)

	var status int32
	var replyPayload protocol.Message
	if hdr.DestNode != protocol.DestCurrent && hdr.DestNode != protocol.DestBroadcast && hdr.DestNode != s.node.PNN() {
		err = errors.Wrapf(ErrWrongNode, "destination %d, this is node %d", hdr.DestNode, s.node.PNN())
	} else {
		status, replyPayload, err = s.adapter.Handle(&req, payload, s.node)
	}

	reply := protocol.ReplyControl{Status: status}
	if err != nil {
		replyPayload = nil
		reply.Status = statusOf(err)
		reply.ErrMsg = err.Error()
		Logger.Debugf("Control %s failed with status %d: %v", req.Opcode, reply.Status, err)
	}
	done(reply.Status)
	common.RecordControl(req.Opcode, reply.Status)

	if req.Flags&protocol.ControlFlagNoReply != 0 {
		return protocol.OperationReplyControl, nil
	}
	return protocol.OperationReplyControl, s.serializer.SerializeReply(&reply, replyPayload)
}

// handleMessage decodes a message to a server id. Messages are counted and logged, no
// server ids are registered on this node.
func (s *RPCServer) handleMessage(hdr protocol.ReqHeader, body []byte) {
	a := s.arenas.Get()
	defer s.arenas.Put(a)

	var msg protocol.ReqMessage
	if err := protocol.DecodeInto(&msg, body, a); err != nil {
		common.RecordDecodeError(err)
		Logger.Warningf("Failed to decode message from node %d: %v", hdr.SrcNode, err)
		return
	}
	s.node.Stats().MessageReceived()
	Logger.Debugf("Message for srvid 0x%016x with %d bytes from node %d", msg.SrvID, len(msg.Data), hdr.SrcNode)
}

// failedReply encodes a reply for a request that could not be decoded
func (s *RPCServer) failedReply(err error) []byte {
	reply := protocol.ReplyControl{Status: statusOf(err), ErrMsg: err.Error()}
	return s.serializer.SerializeReply(&reply, nil)
}
